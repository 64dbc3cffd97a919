package multicall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenmeta/internal/config"
)

// Client submits batches of read calls to an on-chain aggregator contract in a
// single eth_call.
type Client struct {
	name       string
	caller     ethereum.ContractCaller
	aggregator common.Address
	rl         *RateLimiter
	cb         *CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimiter waits on rl before every aggregate call.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) { c.rl = rl }
}

// WithCircuitBreaker guards aggregate calls with cb.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) { c.cb = cb }
}

// NewClient creates a Client calling the aggregator at address through caller.
// name labels log lines (usually the network).
func NewClient(name string, caller ethereum.ContractCaller, aggregator common.Address, opts ...Option) *Client {
	c := &Client{
		name:       name,
		caller:     caller,
		aggregator: aggregator,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Aggregator returns the aggregator contract address.
func (c *Client) Aggregator() common.Address {
	return c.aggregator
}

// TryAggregate executes calls with tryAggregate(false, calls) in one round trip and
// returns one Result per call, in call order. Individual call failures are reported
// in Result.Success; only transport, revert or decoding failures of the aggregate
// call itself return an error, wrapped in config.ErrAggregateCallFailed.
//
// An empty calls slice still performs the round trip.
func (c *Client) TryAggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	data, err := EncodeTryAggregate(false, calls)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrAggregateCallFailed, err)
	}

	msg := ethereum.CallMsg{
		To:   &c.aggregator,
		Data: data,
	}

	// Every path after Allow must end in Record or Release.
	if err := c.cb.Allow(); err != nil {
		slog.Warn("aggregate call rejected",
			"endpoint", c.name,
			"error", err,
		)
		return nil, err
	}

	slog.Debug("aggregate call sending",
		"endpoint", c.name,
		"aggregator", c.aggregator.Hex(),
		"calls", len(calls),
		"calldataBytes", len(data),
	)

	start := time.Now()
	output, err := c.caller.CallContract(ctx, msg, nil)
	elapsed := time.Since(start).Round(time.Millisecond)

	// Cancellation says nothing about endpoint health.
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		c.cb.Release()
	} else {
		c.cb.Record(err)
	}

	if err != nil {
		slog.Error("aggregate call failed",
			"endpoint", c.name,
			"aggregator", c.aggregator.Hex(),
			"calls", len(calls),
			"elapsed", elapsed,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %s: %v", config.ErrAggregateCallFailed, c.name, err)
	}

	results, err := DecodeTryAggregateResults(output)
	if err != nil {
		slog.Error("aggregate response malformed",
			"endpoint", c.name,
			"outputBytes", len(output),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %s: %v", config.ErrAggregateCallFailed, c.name, err)
	}

	if len(results) != len(calls) {
		return nil, fmt.Errorf("%w: %w: %s: sent %d calls, got %d results",
			config.ErrAggregateCallFailed, config.ErrResultCountMismatch, c.name, len(calls), len(results))
	}

	slog.Info("aggregate call completed",
		"endpoint", c.name,
		"calls", len(calls),
		"elapsed", elapsed,
	)

	return results, nil
}
