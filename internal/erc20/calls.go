package erc20

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/multicall"
)

// metadataABI declares decimals as uint256 so tokens returning uint8 and wider
// integers decode alike.
const metadataABI = `[
	{"name": "name", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "string"}]},
	{"name": "symbol", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "string"}]},
	{"name": "decimals", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint256"}]}
]`

var (
	tokenABI = mustParseABI(metadataABI)

	nameCallData     = mustPack("name")
	symbolCallData   = mustPack("symbol")
	decimalsCallData = mustPack("decimals")
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse erc20 abi: %v", err))
	}
	return parsed
}

func mustPack(method string) []byte {
	data, err := tokenABI.Pack(method)
	if err != nil {
		panic(fmt.Sprintf("pack %s(): %v", method, err))
	}
	return data
}

// BuildCalls returns the read requests for tokens: name, symbol and decimals for
// each token, in token order, so token k owns calls 3k, 3k+1 and 3k+2.
func BuildCalls(tokens []common.Address) []multicall.Call {
	calls := make([]multicall.Call, 0, len(tokens)*config.CallsPerToken)
	for _, token := range tokens {
		calls = append(calls,
			multicall.Call{Target: token, CallData: nameCallData},
			multicall.Call{Target: token, CallData: symbolCallData},
			multicall.Call{Target: token, CallData: decimalsCallData},
		)
	}
	return calls
}

// Group holds the three aggregate results belonging to one token.
type Group struct {
	Token    common.Address
	Name     multicall.Result
	Symbol   multicall.Result
	Decimals multicall.Result
}

// GroupResults maps a flat aggregate response back onto tokens. It is the only
// place that relies on positional alignment between BuildCalls and the response.
func GroupResults(tokens []common.Address, results []multicall.Result) ([]Group, error) {
	if len(results) != len(tokens)*config.CallsPerToken {
		return nil, fmt.Errorf("%w: %d tokens need %d results, got %d",
			config.ErrResultCountMismatch, len(tokens), len(tokens)*config.CallsPerToken, len(results))
	}

	groups := make([]Group, len(tokens))
	for k, token := range tokens {
		chunk := results[k*config.CallsPerToken : (k+1)*config.CallsPerToken]
		groups[k] = Group{
			Token:    token,
			Name:     chunk[0],
			Symbol:   chunk[1],
			Decimals: chunk[2],
		}
	}
	return groups, nil
}
