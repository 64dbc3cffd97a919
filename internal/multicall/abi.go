package multicall

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// tryAggregateABI is the Multicall2 tryAggregate fragment:
//
//	function tryAggregate(bool requireSuccess, (address target, bytes callData)[] calls)
//	    returns ((bool success, bytes returnData)[] returnData)
const tryAggregateABI = `[{
	"name": "tryAggregate",
	"type": "function",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "requireSuccess", "type": "bool"},
		{"name": "calls", "type": "tuple[]", "components": [
			{"name": "target", "type": "address"},
			{"name": "callData", "type": "bytes"}
		]}
	],
	"outputs": [
		{"name": "returnData", "type": "tuple[]", "components": [
			{"name": "success", "type": "bool"},
			{"name": "returnData", "type": "bytes"}
		]}
	]
}]`

const tryAggregateMethod = "tryAggregate"

var aggregatorABI = mustParseABI(tryAggregateABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse aggregator abi: %v", err))
	}
	return parsed
}

// Call is one read request routed through the aggregator.
type Call struct {
	Target   common.Address
	CallData []byte
}

// Result is the aggregator's answer for one Call, in request order.
type Result struct {
	Success    bool
	ReturnData []byte
}

// EncodeTryAggregate packs tryAggregate(requireSuccess, calls) calldata.
func EncodeTryAggregate(requireSuccess bool, calls []Call) ([]byte, error) {
	if calls == nil {
		calls = []Call{}
	}
	data, err := aggregatorABI.Pack(tryAggregateMethod, requireSuccess, calls)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}
	return data, nil
}

// DecodeTryAggregateResults unpacks the return value of tryAggregate.
func DecodeTryAggregateResults(output []byte) ([]Result, error) {
	var results []Result
	if err := aggregatorABI.UnpackIntoInterface(&results, tryAggregateMethod, output); err != nil {
		return nil, fmt.Errorf("unpack tryAggregate (%d bytes): %w", len(output), err)
	}
	return results, nil
}

// DecodeTryAggregateCall is the server side of EncodeTryAggregate: it unpacks
// tryAggregate calldata (selector included).
func DecodeTryAggregateCall(input []byte) (requireSuccess bool, calls []Call, err error) {
	method := aggregatorABI.Methods[tryAggregateMethod]
	if len(input) < 4 || !bytes.Equal(input[:4], method.ID) {
		return false, nil, fmt.Errorf("calldata is not tryAggregate")
	}

	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return false, nil, fmt.Errorf("unpack tryAggregate args: %w", err)
	}

	var decoded struct {
		RequireSuccess bool
		Calls          []Call
	}
	if err := method.Inputs.Copy(&decoded, args); err != nil {
		return false, nil, fmt.Errorf("copy tryAggregate args: %w", err)
	}

	return decoded.RequireSuccess, decoded.Calls, nil
}

// EncodeTryAggregateResults is the server side of DecodeTryAggregateResults.
func EncodeTryAggregateResults(results []Result) ([]byte, error) {
	if results == nil {
		results = []Result{}
	}
	out, err := aggregatorABI.Methods[tryAggregateMethod].Outputs.Pack(results)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate results: %w", err)
	}
	return out, nil
}
