// internal/health/watcher.go
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher checks in the background and serves the latest result, so trade
// paths never wait on the network.
type Watcher struct {
	monitor  Monitor
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	last      Status
	seen      bool
	observers []func(Status)
}

// NewWatcher wraps monitor. Results older than maxAge are served as stale.
func NewWatcher(monitor Monitor, interval, maxAge time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultStalenessThreshold
	}
	return &Watcher{
		monitor:  monitor,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger.Named("health_watcher"),
		now:      time.Now,
	}
}

// OnRefresh registers fn to receive every check result. Call before Run.
func (w *Watcher) OnRefresh(fn func(Status)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, fn)
}

// Run refreshes until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	w.Refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Liveness watcher stopped")
			return nil
		case <-ticker.C:
			w.Refresh(ctx)
		}
	}
}

// Refresh runs one check and stores its result.
func (w *Watcher) Refresh(ctx context.Context) Status {
	status := w.monitor.CheckLiveness(ctx)

	w.mu.Lock()
	changed := !w.seen || w.last.Healthy != status.Healthy
	w.last = status
	w.seen = true
	observers := w.observers
	w.mu.Unlock()

	for _, fn := range observers {
		fn(status)
	}

	if changed {
		w.logger.Info("Network liveness changed",
			zap.Bool("healthy", status.Healthy),
			zap.String("error", status.Error))
	}
	return status
}

// CheckLiveness implements Monitor with the cached result.
func (w *Watcher) CheckLiveness(_ context.Context) Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	now := w.now()
	if !w.seen {
		return Status{Healthy: false, Error: "no liveness check yet", CheckedAt: now}
	}
	if now.Sub(w.last.CheckedAt) > w.maxAge {
		stale := w.last
		stale.Healthy = false
		stale.Error = "liveness result expired"
		return stale
	}
	return w.last
}
