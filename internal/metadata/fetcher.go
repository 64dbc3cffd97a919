package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/erc20"
	"github.com/Fantasim/tokenmeta/internal/metrics"
	"github.com/Fantasim/tokenmeta/internal/models"
	"github.com/Fantasim/tokenmeta/internal/multicall"
	"github.com/Fantasim/tokenmeta/internal/network"
)

// Backend is the transport to one network. *ethclient.Client satisfies it.
type Backend interface {
	ethereum.ContractCaller
	Close()
}

// DialFunc opens a Backend for a network.
type DialFunc func(ctx context.Context, c network.Config) (Backend, error)

// Result is the outcome of one fetch.
type Result struct {
	Network models.Network
	// Tokens is keyed by address; with duplicate inputs the last occurrence wins.
	Tokens map[common.Address]models.TokenMetadata
	// Ordered has one entry per input address, in input order.
	Ordered   []models.TokenMetadata
	Fallbacks int
	Duration  time.Duration
}

// Fetcher resolves token metadata with one aggregate call per fetch.
type Fetcher struct {
	registry       *network.Registry
	dial           DialFunc
	decoder        erc20.Decoder
	metrics        *metrics.Metrics
	rateLimitRPS   int
	breakerEnabled bool
	verifyChainID  bool

	mu      sync.Mutex
	clients map[models.Network]*connection
}

type connection struct {
	backend Backend
	client  *multicall.Client
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithDialer replaces the default ethclient dialer.
func WithDialer(dial DialFunc) Option {
	return func(f *Fetcher) { f.dial = dial }
}

// WithMetrics records fetch metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithRateLimit spaces aggregate calls per network to rps per second.
func WithRateLimit(rps int) Option {
	return func(f *Fetcher) { f.rateLimitRPS = rps }
}

// WithCircuitBreaker enables a per-network circuit breaker.
func WithCircuitBreaker(enabled bool) Option {
	return func(f *Fetcher) { f.breakerEnabled = enabled }
}

// WithChainIDVerification makes the default dialer compare eth_chainId with the
// registry before first use.
func WithChainIDVerification(enabled bool) Option {
	return func(f *Fetcher) { f.verifyChainID = enabled }
}

// WithDecoder replaces the default field decoder.
func WithDecoder(d erc20.Decoder) Option {
	return func(f *Fetcher) { f.decoder = d }
}

// NewFetcher creates a Fetcher over registry. Without WithDialer it dials with
// network.Dial.
func NewFetcher(registry *network.Registry, opts ...Option) *Fetcher {
	f := &Fetcher{
		registry: registry,
		decoder:  erc20.DefaultDecoder(),
		clients:  make(map[models.Network]*connection),
	}
	f.dial = f.dialEthclient
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) dialEthclient(ctx context.Context, c network.Config) (Backend, error) {
	client, err := network.Dial(ctx, c, f.verifyChainID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Fetch returns the metadata of tokens on network n keyed by address. It performs
// exactly one aggregate call. A failure of that call fails the whole fetch; a
// token whose individual reads fail gets default field values instead.
func (f *Fetcher) Fetch(ctx context.Context, n models.Network, tokens []common.Address) (map[common.Address]models.TokenMetadata, error) {
	res, err := f.FetchResult(ctx, n, tokens)
	if err != nil {
		return nil, err
	}
	return res.Tokens, nil
}

// FetchResult is Fetch with the per-input ordering and fallback statistics kept.
func (f *Fetcher) FetchResult(ctx context.Context, n models.Network, tokens []common.Address) (*Result, error) {
	netCfg, err := f.registry.Lookup(n)
	if err != nil {
		return nil, err
	}

	conn, err := f.connect(ctx, netCfg)
	if err != nil {
		return nil, err
	}

	slog.Info("fetching token metadata",
		"network", n,
		"tokens", len(tokens),
		"aggregator", netCfg.Aggregator.Hex(),
	)

	calls := erc20.BuildCalls(tokens)

	start := time.Now()
	results, err := conn.client.TryAggregate(ctx, calls)
	elapsed := time.Since(start)
	f.metrics.ObserveAggregate(string(n), elapsed, err)
	if err != nil {
		return nil, fmt.Errorf("fetch %s metadata: %w", n, err)
	}

	groups, err := erc20.GroupResults(tokens, results)
	if err != nil {
		return nil, fmt.Errorf("fetch %s metadata: %w: %w", n, config.ErrAggregateCallFailed, err)
	}

	res := &Result{
		Network:  n,
		Tokens:   make(map[common.Address]models.TokenMetadata, len(tokens)),
		Ordered:  make([]models.TokenMetadata, 0, len(tokens)),
		Duration: elapsed,
	}

	for _, g := range groups {
		fields, fallbacks := f.decoder.Decode(g)

		md := models.TokenMetadata{
			Address:  g.Token,
			ChainID:  netCfg.ChainID,
			Name:     fields.Name,
			Symbol:   fields.Symbol,
			Decimals: fields.Decimals,
		}
		res.Tokens[g.Token] = md
		res.Ordered = append(res.Ordered, md)

		for _, field := range fallbacks {
			f.metrics.IncFallback(string(n), field)
		}
		if len(fallbacks) > 0 {
			res.Fallbacks += len(fallbacks)
			slog.Debug("token metadata defaulted",
				"network", n,
				"token", g.Token.Hex(),
				"fields", fallbacks,
			)
		}
	}

	f.metrics.AddTokens(string(n), len(groups))

	slog.Info("token metadata fetched",
		"network", n,
		"tokens", len(tokens),
		"unique", len(res.Tokens),
		"fallbacks", res.Fallbacks,
		"elapsed", elapsed.Round(time.Millisecond),
	)

	return res, nil
}

// connect returns the network's client, dialing on first use. The dial runs
// outside f.mu so a slow endpoint never holds up other networks.
func (f *Fetcher) connect(ctx context.Context, c network.Config) (*connection, error) {
	f.mu.Lock()
	conn, ok := f.clients[c.Network]
	f.mu.Unlock()
	if ok {
		return conn, nil
	}

	backend, err := f.dial(ctx, c)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// A concurrent fetch on the same network may have dialed first.
	if existing, ok := f.clients[c.Network]; ok {
		slog.Debug("dropping duplicate connection", "network", c.Network)
		backend.Close()
		return existing, nil
	}

	var opts []multicall.Option
	if f.rateLimitRPS > 0 {
		opts = append(opts, multicall.WithRateLimiter(multicall.NewRateLimiter(string(c.Network), f.rateLimitRPS)))
	}
	if f.breakerEnabled {
		opts = append(opts, multicall.WithCircuitBreaker(multicall.NewCircuitBreaker(
			string(c.Network), config.CircuitBreakerThreshold, config.CircuitBreakerCooldown)))
	}

	conn = &connection{
		backend: backend,
		client:  multicall.NewClient(string(c.Network), backend, c.Aggregator, opts...),
	}
	f.clients[c.Network] = conn

	return conn, nil
}

// Close closes every dialed backend.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for n, conn := range f.clients {
		conn.backend.Close()
		delete(f.clients, n)
		slog.Debug("rpc connection closed", "network", n)
	}
}
