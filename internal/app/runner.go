// internal/app/runner.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/admin"
	"github.com/rovshanmuradov/launchpad/internal/api"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/health"
	"github.com/rovshanmuradov/launchpad/internal/journal"
	"github.com/rovshanmuradov/launchpad/internal/metrics"
	"github.com/rovshanmuradov/launchpad/internal/protocol"
	"github.com/rovshanmuradov/launchpad/internal/state"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner owns every long-lived component of the daemon.
type Runner struct {
	logger    *zap.Logger
	config    *config.Config
	proto     *protocol.Protocol
	bus       *events.Bus
	collector *metrics.Collector
	watcher   *health.Watcher
	server    *api.Server
	handler   http.Handler
	shutdown  *ShutdownHandler
}

// NewRunner builds the protocol and its supporting services from cfg.
func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	r := &Runner{
		logger:   logger,
		config:   cfg,
		shutdown: NewShutdownHandler(logger.Named("shutdown"), 30*time.Second),
	}

	st, err := buildState(cfg, logger)
	if err != nil {
		return nil, err
	}

	r.bus = events.NewBus(logger, cfg.EventBuffer)

	r.collector = metrics.NewCollector(metrics.WithDroppedEvents(r.bus.Stats))
	r.collector.Attach(r.bus)

	if cfg.JournalFile != "" {
		j, err := journal.Open(cfg.JournalFile, time.Second, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		j.Attach(r.bus)
		r.shutdown.Add("journal", j)
	}
	// closed before the journal so queued events still reach it
	r.shutdown.AddFunc("event_bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.bus.Shutdown(ctx)
	})

	var monitor health.Monitor
	if cfg.Health.RPCURL == "" {
		logger.Warn("No health.rpc_url configured, network is assumed live")
		monitor = health.Static{Healthy: true}
	} else {
		rpc := health.NewRPCMonitorFromURL(cfg.Health.RPCURL, cfg.HealthConfig(), logger)
		r.watcher = health.NewWatcher(rpc, cfg.PollInterval(), cfg.HealthConfig().StalenessThreshold, logger)
		r.watcher.OnRefresh(r.collector.ObserveLiveness)
		monitor = r.watcher
	}

	r.proto = protocol.New(st, monitor, logger, protocol.WithPublisher(r.bus))
	r.handler = api.NewRouter(r.proto, r.collector, logger)
	r.server = api.NewServer(cfg.ListenAddr, r.handler, logger)

	return r, nil
}

func buildState(cfg *config.Config, logger *zap.Logger) (*state.State, error) {
	adminAddr, tax, pool, err := cfg.Addresses()
	if err != nil {
		return nil, err
	}
	params, err := cfg.Params()
	if err != nil {
		return nil, fmt.Errorf("invalid curve parameters: %w", err)
	}
	fees, err := cfg.Fees()
	if err != nil {
		return nil, err
	}

	gate, err := admin.NewSingleAdmin(adminAddr, logger, admin.WithBypassAuth(cfg.BypassAuth))
	if err != nil {
		return nil, err
	}
	st, err := state.New(gate, params, tax, fees)
	if err != nil {
		return nil, err
	}
	st.PoolPointer = pool

	logger.Info("Protocol state initialized",
		zap.String("admin", adminAddr.String()),
		zap.String("tax_address", tax.String()),
		zap.Bool("pool_configured", !pool.IsZero()),
		zap.Uint64("creation_fee", fees.CreationFee),
		zap.Uint64("trade_fee_bps", fees.TradeFeeBps))
	return st, nil
}

// Protocol returns the protocol instance served by the runner.
func (r *Runner) Protocol() *protocol.Protocol {
	return r.proto
}

// Handler returns the HTTP handler served by the runner.
func (r *Runner) Handler() http.Handler {
	return r.handler
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// every service down.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return r.server.Serve(egctx)
	})
	if r.watcher != nil {
		eg.Go(func() error {
			return r.watcher.Run(egctx)
		})
	}

	err := eg.Wait()
	if ctx.Err() != nil {
		r.logger.Info("Shutdown signal received")
	}
	if shutdownErr := r.shutdown.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}
