package erc20

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"unicode/utf8"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/multicall"
)

var errInvalidUTF8 = errors.New("invalid utf-8")

// Strategy is one way of decoding a raw return value.
type Strategy[T any] struct {
	Name   string
	Decode func(data []byte) (T, error)
}

// Chain tries its strategies in order; the first success wins and Default is used
// when all fail.
type Chain[T any] struct {
	Field      string
	Strategies []Strategy[T]
	Default    T
}

// Outcome describes how a Chain resolved a value.
type Outcome struct {
	Strategy string // empty when Default was used
	Fallback bool
}

// Decode resolves r. A failed call skips the strategies and takes Default.
func (c Chain[T]) Decode(r multicall.Result) (T, Outcome) {
	if !r.Success {
		return c.Default, Outcome{Fallback: true}
	}

	for _, s := range c.Strategies {
		v, err := s.Decode(r.ReturnData)
		if err == nil {
			return v, Outcome{Strategy: s.Name}
		}
		slog.Debug("erc20 decode strategy failed",
			"field", c.Field,
			"strategy", s.Name,
			"bytes", len(r.ReturnData),
			"error", err,
		)
	}

	return c.Default, Outcome{Fallback: true}
}

// NameChain decodes name(): ABI string, then legacy bytes32, then UNKNOWN.
func NameChain() Chain[string] {
	return stringChain("name")
}

// SymbolChain decodes symbol(): ABI string, then legacy bytes32, then UNKNOWN.
func SymbolChain() Chain[string] {
	return stringChain("symbol")
}

func stringChain(method string) Chain[string] {
	return Chain[string]{
		Field: method,
		Strategies: []Strategy[string]{
			{Name: "abi", Decode: func(data []byte) (string, error) { return DecodeABIString(method, data) }},
			{Name: "bytes32", Decode: DecodeBytes32String},
		},
		Default: config.UnknownTokenString,
	}
}

// DecimalsChain decodes decimals(): ABI uint256, then 18.
func DecimalsChain() Chain[int] {
	return Chain[int]{
		Field: "decimals",
		Strategies: []Strategy[int]{
			{Name: "abi", Decode: DecodeABIUint},
		},
		Default: config.DefaultDecimals,
	}
}

// DecodeABIString decodes the string return value of method ("name" or "symbol").
func DecodeABIString(method string, data []byte) (string, error) {
	out, err := tokenABI.Unpack(method, data)
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected type %T", out[0])
	}
	if !utf8.ValidString(s) {
		return "", errInvalidUTF8
	}
	return s, nil
}

// DecodeBytes32String decodes a legacy fixed-width string: exactly 32 bytes, the
// last of which is zero, with trailing zeros stripped.
func DecodeBytes32String(data []byte) (string, error) {
	if len(data) != 32 {
		return "", fmt.Errorf("bytes32 string must be 32 bytes, got %d", len(data))
	}
	if data[31] != 0 {
		return "", errors.New("bytes32 string has no null terminator")
	}

	n := 31
	for n > 0 && data[n-1] == 0 {
		n--
	}

	if !utf8.Valid(data[:n]) {
		return "", errInvalidUTF8
	}
	return string(data[:n]), nil
}

// DecodeABIUint decodes a uint256 decimals value. Values above
// config.MaxDecimals are rejected.
func DecodeABIUint(data []byte) (int, error) {
	out, err := tokenABI.Unpack("decimals", data)
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", out[0])
	}
	if v.Sign() < 0 || v.Cmp(big.NewInt(config.MaxDecimals)) > 0 {
		return 0, fmt.Errorf("decimals %s out of range 0..%d", v, config.MaxDecimals)
	}
	return int(v.Int64()), nil
}

// Fields is the decoded metadata of one token.
type Fields struct {
	Name     string
	Symbol   string
	Decimals int
}

// Decoder bundles the per-field chains.
type Decoder struct {
	Name     Chain[string]
	Symbol   Chain[string]
	Decimals Chain[int]
}

// DefaultDecoder returns the standard name/symbol/decimals chains.
func DefaultDecoder() Decoder {
	return Decoder{
		Name:     NameChain(),
		Symbol:   SymbolChain(),
		Decimals: DecimalsChain(),
	}
}

// Decode decodes each field of g independently. It never fails; the returned slice
// names the fields that fell back to their default.
func (d Decoder) Decode(g Group) (Fields, []string) {
	var fallbacks []string

	name, o := d.Name.Decode(g.Name)
	if o.Fallback {
		fallbacks = append(fallbacks, d.Name.Field)
	}
	symbol, o := d.Symbol.Decode(g.Symbol)
	if o.Fallback {
		fallbacks = append(fallbacks, d.Symbol.Field)
	}
	decimals, o := d.Decimals.Decode(g.Decimals)
	if o.Fallback {
		fallbacks = append(fallbacks, d.Decimals.Field)
	}

	return Fields{Name: name, Symbol: symbol, Decimals: decimals}, fallbacks
}
