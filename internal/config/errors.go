package config

import "errors"

// Sentinel errors for internal use.
var (
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrUnsupportedNetwork  = errors.New("unsupported network")
	ErrIncompleteRegistry  = errors.New("network registry incomplete")
	ErrChainIDMismatch     = errors.New("endpoint chain id does not match network")
	ErrNoEndpoint          = errors.New("no rpc endpoint configured")
	ErrDialFailed          = errors.New("rpc dial failed")
	ErrAggregateCallFailed = errors.New("aggregate call failed")
	ErrResultCountMismatch = errors.New("aggregate result count mismatch")
	ErrCircuitOpen         = errors.New("circuit breaker is open")
	ErrInvalidAddress      = errors.New("invalid token address")
	ErrOverridesLoad       = errors.New("failed to load metadata overrides")
)

// Error codes returned in API error responses.
const (
	ErrorInvalidNetwork      = "ERROR_INVALID_NETWORK"
	ErrorInvalidAddress      = "ERROR_INVALID_ADDRESS"
	ErrorInvalidRequest      = "ERROR_INVALID_REQUEST"
	ErrorTooManyTokens       = "ERROR_TOO_MANY_TOKENS"
	ErrorAggregateCallFailed = "ERROR_AGGREGATE_CALL_FAILED"
	ErrorCircuitOpen         = "ERROR_CIRCUIT_OPEN"
	ErrorDatabase            = "ERROR_DATABASE"
	ErrorInvalidList         = "ERROR_INVALID_LIST"
)
