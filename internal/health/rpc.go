// internal/health/rpc.go
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

var errCheckTimeout = errors.New(ErrorTimeout)

// ChainReader is the subset of the Solana JSON-RPC client the liveness check needs.
type ChainReader interface {
	GetSlot(ctx context.Context, commitment solanarpc.CommitmentType) (uint64, error)
	GetBlockHeight(ctx context.Context, commitment solanarpc.CommitmentType) (uint64, error)
	GetBlockTime(ctx context.Context, block uint64) (*solana.UnixTimeSeconds, error)
}

// Config bounds a single liveness check.
type Config struct {
	// Timeout applies to each check attempt.
	Timeout time.Duration
	// Retries is the total number of attempts before the check fails.
	Retries int
	// RetryInterval is the pause between attempts.
	RetryInterval time.Duration
	// StalenessThreshold is the maximum age of the latest confirmed block.
	StalenessThreshold time.Duration
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{
		Timeout:            DefaultTimeout,
		Retries:            DefaultRetries,
		RetryInterval:      500 * time.Millisecond,
		StalenessThreshold: DefaultStalenessThreshold,
	}
}

// RPCMonitor checks a Solana RPC node: the latest confirmed slot must have a
// block time within the staleness threshold.
type RPCMonitor struct {
	client ChainReader
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewRPCMonitor creates a monitor over an existing client.
func NewRPCMonitor(client ChainReader, cfg Config, logger *zap.Logger) *RPCMonitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = DefaultStalenessThreshold
	}
	return &RPCMonitor{
		client: client,
		cfg:    cfg,
		logger: logger.Named("health"),
		now:    time.Now,
	}
}

// NewRPCMonitorFromURL creates a monitor talking JSON-RPC to rpcURL.
func NewRPCMonitorFromURL(rpcURL string, cfg Config, logger *zap.Logger) *RPCMonitor {
	return NewRPCMonitor(solanarpc.New(rpcURL), cfg, logger)
}

type checkResult struct {
	height    uint64
	blockTime time.Time
}

// CheckLiveness implements Monitor.
func (m *RPCMonitor) CheckLiveness(ctx context.Context) Status {
	notify := func(err error, wait time.Duration) {
		m.logger.Debug("Liveness check failed, retrying",
			zap.Error(err),
			zap.Duration("backoff", wait))
	}

	res, err := backoff.Retry(ctx, func() (checkResult, error) {
		return m.check(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.cfg.RetryInterval)),
		backoff.WithMaxTries(uint(m.cfg.Retries)),
		backoff.WithNotify(notify),
	)

	checkedAt := m.now()
	if err != nil {
		reason := err.Error()
		if errors.Is(err, errCheckTimeout) || errors.Is(err, context.DeadlineExceeded) {
			reason = ErrorTimeout
		}
		m.logger.Warn("Network liveness check failed",
			zap.String("reason", reason),
			zap.Int("attempts", m.cfg.Retries))
		return Status{Healthy: false, Error: reason, CheckedAt: checkedAt}
	}

	height := res.height
	age := checkedAt.Sub(res.blockTime)
	if age > m.cfg.StalenessThreshold {
		m.logger.Warn("Network is stale",
			zap.Uint64("block_height", height),
			zap.Duration("block_age", age),
			zap.Duration("threshold", m.cfg.StalenessThreshold))
		return Status{
			Healthy:     false,
			BlockHeight: &height,
			Error:       fmt.Sprintf("latest block is %s old", age.Round(time.Second)),
			CheckedAt:   checkedAt,
		}
	}

	return Status{Healthy: true, BlockHeight: &height, CheckedAt: checkedAt}
}

func (m *RPCMonitor) check(ctx context.Context) (checkResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	slot, err := m.client.GetSlot(attemptCtx, solanarpc.CommitmentConfirmed)
	if err != nil {
		return checkResult{}, m.classify(attemptCtx, "getSlot", err)
	}

	height, err := m.client.GetBlockHeight(attemptCtx, solanarpc.CommitmentConfirmed)
	if err != nil {
		return checkResult{}, m.classify(attemptCtx, "getBlockHeight", err)
	}

	blockTime, err := m.client.GetBlockTime(attemptCtx, slot)
	if err != nil {
		return checkResult{}, m.classify(attemptCtx, "getBlockTime", err)
	}
	if blockTime == nil {
		return checkResult{}, backoff.Permanent(fmt.Errorf("no block time for slot %d", slot))
	}

	return checkResult{height: height, blockTime: time.Unix(int64(*blockTime), 0)}, nil
}

func (m *RPCMonitor) classify(attemptCtx context.Context, method string, err error) error {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return errCheckTimeout
	}
	return fmt.Errorf("%s: %w", method, err)
}
