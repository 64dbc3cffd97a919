// Package multicalltest provides an in-process aggregator contract and a JSON-RPC
// server around it for tests of code built on multicall.Client.
package multicalltest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Fantasim/tokenmeta/internal/multicall"
)

// Handler answers one inner call of an aggregate request.
type Handler func(target common.Address, callData []byte) multicall.Result

// Aggregator emulates a tryAggregate contract. It implements ethereum.ContractCaller.
type Aggregator struct {
	Address common.Address

	mu                 sync.Mutex
	handler            Handler
	err                error
	rawOutput          []byte
	aggregateCalls     int
	lastCalls          []multicall.Call
	lastRequireSuccess bool
}

// NewAggregator creates an aggregator at address answering inner calls with handler.
func NewAggregator(address common.Address, handler Handler) *Aggregator {
	return &Aggregator{Address: address, handler: handler}
}

// FailWith makes every following aggregate call fail with err (nil restores).
func (a *Aggregator) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// RespondRaw makes every following aggregate call return output verbatim (nil restores).
func (a *Aggregator) RespondRaw(output []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rawOutput = output
}

// AggregateCalls returns how many aggregate calls were received.
func (a *Aggregator) AggregateCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aggregateCalls
}

// LastCalls returns the inner calls of the most recent aggregate call.
func (a *Aggregator) LastCalls() []multicall.Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastCalls
}

// LastRequireSuccess returns the requireSuccess flag of the most recent aggregate call.
func (a *Aggregator) LastRequireSuccess() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRequireSuccess
}

// CallContract implements ethereum.ContractCaller.
func (a *Aggregator) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.aggregateCalls++

	if a.err != nil {
		return nil, a.err
	}
	if msg.To == nil || *msg.To != a.Address {
		return nil, fmt.Errorf("execution reverted: call to %v, aggregator is %s", msg.To, a.Address.Hex())
	}

	requireSuccess, calls, err := multicall.DecodeTryAggregateCall(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("execution reverted: %v", err)
	}
	a.lastCalls = calls
	a.lastRequireSuccess = requireSuccess

	if a.rawOutput != nil {
		return a.rawOutput, nil
	}

	results := make([]multicall.Result, len(calls))
	for i, c := range calls {
		results[i] = a.handler(c.Target, c.CallData)
		if requireSuccess && !results[i].Success {
			return nil, errors.New("execution reverted: Multicall2 aggregate: call failed")
		}
	}

	return multicall.EncodeTryAggregateResults(results)
}

// Server is a JSON-RPC endpoint serving eth_call against an Aggregator and
// eth_chainId with a fixed value.
type Server struct {
	*httptest.Server
	Aggregator *Aggregator
	ChainID    int64
}

// NewServer starts a server closed on test cleanup.
func NewServer(t testing.TB, agg *Aggregator, chainID int64) *Server {
	t.Helper()

	s := &Server{Aggregator: agg, ChainID: chainID}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveRPC))
	t.Cleanup(s.Server.Close)
	return s
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "eth_chainId":
		resp.Result = hexutil.EncodeBig(big.NewInt(s.ChainID))

	case "eth_call":
		out, err := s.ethCall(r.Context(), req.Params)
		if err != nil {
			resp.Error = &rpcError{Code: -32000, Message: err.Error()}
		} else {
			resp.Result = hexutil.Bytes(out)
		}

	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) ethCall(ctx context.Context, params []json.RawMessage) ([]byte, error) {
	if len(params) == 0 {
		return nil, errors.New("missing call object")
	}

	var arg struct {
		To    *common.Address `json:"to"`
		Data  hexutil.Bytes   `json:"data"`
		Input hexutil.Bytes   `json:"input"`
	}
	if err := json.Unmarshal(params[0], &arg); err != nil {
		return nil, fmt.Errorf("decode call object: %w", err)
	}

	data := arg.Input
	if len(data) == 0 {
		data = arg.Data
	}

	return s.Aggregator.CallContract(ctx, ethereum.CallMsg{To: arg.To, Data: data}, nil)
}

// Token describes how a fake ERC-20 contract answers name(), symbol() and decimals().
// Nil data with Revert unset answers with empty return data.
type Token struct {
	Name     []byte
	Symbol   []byte
	Decimals []byte
	Revert   bool
}

var (
	nameSelector     = crypto.Keccak256([]byte("name()"))[:4]
	symbolSelector   = crypto.Keccak256([]byte("symbol()"))[:4]
	decimalsSelector = crypto.Keccak256([]byte("decimals()"))[:4]
)

// TokenHandler answers inner calls from a table of fake tokens. Calls to unknown
// targets fail like calls to an address without code that reverts.
func TokenHandler(tokens map[common.Address]Token) Handler {
	return func(target common.Address, callData []byte) multicall.Result {
		tok, ok := tokens[target]
		if !ok || tok.Revert || len(callData) < 4 {
			return multicall.Result{Success: false, ReturnData: []byte{}}
		}

		var data []byte
		switch string(callData[:4]) {
		case string(nameSelector):
			data = tok.Name
		case string(symbolSelector):
			data = tok.Symbol
		case string(decimalsSelector):
			data = tok.Decimals
		default:
			return multicall.Result{Success: false, ReturnData: []byte{}}
		}
		if data == nil {
			data = []byte{}
		}
		return multicall.Result{Success: true, ReturnData: data}
	}
}

// StandardToken returns a Token answering with ABI-encoded values.
func StandardToken(name, symbol string, decimals uint8) Token {
	return Token{
		Name:     ABIString(name),
		Symbol:   ABIString(symbol),
		Decimals: ABIUint(uint64(decimals)),
	}
}

// ABIString encodes s as an ABI string return value.
func ABIString(s string) []byte {
	return mustPack("string", s)
}

// ABIUint encodes v as an ABI uint256 return value.
func ABIUint(v uint64) []byte {
	return mustPack("uint256", new(big.Int).SetUint64(v))
}

// Bytes32String encodes s as a legacy null-padded bytes32 return value.
func Bytes32String(s string) []byte {
	out := make([]byte, 32)
	copy(out, s)
	return out
}

func mustPack(typ string, v interface{}) []byte {
	t, err := abi.NewType(typ, "", nil)
	if err != nil {
		panic(err)
	}
	out, err := abi.Arguments{{Type: t}}.Pack(v)
	if err != nil {
		panic(err)
	}
	return out
}
