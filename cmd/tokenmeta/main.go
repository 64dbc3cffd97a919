package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Fantasim/tokenmeta/internal/api"
	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/db"
	"github.com/Fantasim/tokenmeta/internal/logging"
	"github.com/Fantasim/tokenmeta/internal/metadata"
	"github.com/Fantasim/tokenmeta/internal/metrics"
	"github.com/Fantasim/tokenmeta/internal/models"
	"github.com/Fantasim/tokenmeta/internal/network"
	"github.com/Fantasim/tokenmeta/internal/tokenlist"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case "fetch":
		if err := runFetch(os.Args[2:]); err != nil {
			slog.Error("fetch error", "error", err)
			os.Exit(1)
		}
	case "networks":
		if err := runNetworks(); err != nil {
			slog.Error("networks error", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("tokenmeta %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: tokenmeta <command>

Commands:
  serve      Start the HTTP server
  fetch      Fetch metadata for tokens and print a token list
  networks   List supported networks
  version    Print version information
`)
}

func newRegistry(cfg *config.Config) (*network.Registry, error) {
	return network.NewRegistry(cfg.InfuraKey, cfg.EndpointOverrides())
}

func newFetcher(cfg *config.Config, registry *network.Registry, m *metrics.Metrics) *metadata.Fetcher {
	return metadata.NewFetcher(registry,
		metadata.WithMetrics(m),
		metadata.WithRateLimit(cfg.RateLimitRPS),
		metadata.WithCircuitBreaker(true),
		metadata.WithChainIDVerification(cfg.VerifyChainID),
	)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir, nil)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting tokenmeta",
		"version", version,
		"port", cfg.Port,
		"dbPath", cfg.DBPath,
		"logLevel", cfg.LogLevel,
		"verifyChainID", cfg.VerifyChainID,
	)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("database migrations applied")

	registry, err := newRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to build network registry: %w", err)
	}

	overrides, err := tokenlist.LoadOverrides(cfg.OverridesFile)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	fetcher := newFetcher(cfg, registry, m)
	defer fetcher.Close()

	api.Version = version
	router := api.NewRouter(api.Deps{
		DB:        database,
		Config:    cfg,
		Registry:  registry,
		Fetcher:   fetcher,
		Overrides: overrides,
		Metrics:   metrics.Handler(reg),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    config.ServerReadTimeout,
		WriteTimeout:   config.ServerWriteTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.ServerMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-done:
	}

	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func runFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	networkName := fs.String("network", string(models.NetworkHomestead), "Network to query")
	out := fs.String("out", "", "Write the token list to this file instead of stdout")
	list := fs.String("list", string(models.ListListed), "Token list tier: listed, vetted or untrusted")
	name := fs.String("name", config.DefaultTokenListName, "Token list name")
	file := fs.String("file", "", "Read token addresses from this file, one per line")
	store := fs.Bool("store", false, "Persist fetched metadata to the database")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// stdout carries the token list.
	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	n, err := network.ParseNetwork(*networkName)
	if err != nil {
		return err
	}

	tier := models.List(*list)
	if !tier.Valid() {
		return fmt.Errorf("unknown list %q", *list)
	}

	tokens, err := collectTokens(fs.Args(), *file)
	if err != nil {
		return err
	}

	registry, err := newRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to build network registry: %w", err)
	}

	overrides, err := tokenlist.LoadOverrides(cfg.OverridesFile)
	if err != nil {
		return err
	}

	fetcher := newFetcher(cfg, registry, nil)
	defer fetcher.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, config.AggregateTimeout)
	defer cancelTimeout()

	start := time.Now()
	res, fetchErr := fetcher.FetchResult(ctx, n, tokens)

	if *store {
		if err := storeResult(cfg.DBPath, n, len(tokens), res, fetchErr, time.Since(start)); err != nil {
			return err
		}
	}
	if fetchErr != nil {
		return fetchErr
	}

	doc := tokenlist.Build(*name, tier, res.Ordered, overrides.For(n))

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create %s: %w", *out, err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write token list: %w", err)
	}

	slog.Info("token list written",
		"network", n,
		"tokens", len(doc.Tokens),
		"fallbacks", res.Fallbacks,
		"out", *out,
	)
	return nil
}

// storeResult records the run and, on success, the fetched metadata.
func storeResult(dbPath string, n models.Network, count int, res *metadata.Result, fetchErr error, elapsed time.Duration) error {
	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	run := models.FetchRun{Network: n, TokenCount: count, DurationMs: elapsed.Milliseconds()}
	if fetchErr != nil {
		run.Error = fetchErr.Error()
	} else {
		run.FallbackCount = res.Fallbacks
	}
	if _, err := database.RecordFetchRun(run); err != nil {
		return err
	}

	if fetchErr != nil {
		return nil
	}
	return database.UpsertTokenMetadata(n, res.Ordered)
}

func runNetworks() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	registry, err := newRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to build network registry: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NETWORK\tCHAIN ID\tAGGREGATOR\tENDPOINT")
	for _, c := range registry.All() {
		endpoint := "configured"
		if c.EndpointURL == "" {
			endpoint = "missing"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.Network, c.ChainID, c.Aggregator.Hex(), endpoint)
	}
	return tw.Flush()
}
