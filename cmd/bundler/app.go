package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bundleKeeper/internal/bundler"
	"bundleKeeper/internal/chain"
	"bundleKeeper/internal/config"
	"bundleKeeper/internal/pipeline"
	"bundleKeeper/internal/storage"
	"bundleKeeper/internal/storage/postgres"
	"bundleKeeper/internal/wallet"
)

// app is everything one command invocation needs.
type app struct {
	ctx       context.Context
	cfg       config.Config
	logger    *zap.Logger
	client    *chain.Client
	session   *bundler.Session
	snapshots *storage.SnapshotStore
	store     *postgres.Store
	closers   []func()
}

func setup(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{ctx: ctx, cfg: cfg, logger: logger}
	a.closers = append(a.closers, stop, func() { _ = logger.Sync() })

	client, err := chain.NewClient(cfg.RPCURL,
		chain.WithCommitment(rpc.CommitmentType(cfg.Commitment)),
		chain.WithRetry(cfg.MaxRetries, cfg.RetryBackoff),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.client = client
	a.closers = append(a.closers, client.Close)

	journals := storage.Multi{storage.NewJsonlJournal(cfg.Journal)}
	if cfg.DBDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.DBDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.store = store
		journals = append(journals, store)
	}

	var metrics *pipeline.Metrics
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics = pipeline.NewMetrics(registry)
		a.serveMetrics(registry)
	}

	a.snapshots = storage.NewSnapshotStore(cfg.SnapshotDir)
	session, err := bundler.NewSession(client, bundler.Options{
		Logger:       logger,
		Journal:      journals,
		Snapshots:    a.snapshots,
		Metrics:      metrics,
		TokenSymbols: cfg.TokenSymbols,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session = session
	return a, nil
}

func (a *app) serveMetrics(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", zap.Error(err))
		}
	}()
	a.logger.Info("metrics listening", zap.String("addr", a.cfg.MetricsAddr))
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) signer() (*wallet.KeypairSigner, error) {
	path, err := expandHome(a.cfg.Keypair)
	if err != nil {
		return nil, err
	}
	return wallet.LoadKeypairSigner(path)
}

func (a *app) submitOptions() bundler.SubmitOptions {
	return bundler.SubmitOptions{
		Delay:          a.cfg.Delay,
		ConfirmTimeout: a.cfg.ConfirmTimeout,
		PollInterval:   a.cfg.PollInterval,
	}
}

func (a *app) progress(completed, total int, sig solana.Signature, desc string) {
	fmt.Fprintf(os.Stderr, "[%d/%d] %s %s\n", completed, total, desc, sig)
}

func expandHome(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("keypair path is required")
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func parseKey(name, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", name)
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return pk, nil
}
