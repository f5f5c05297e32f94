// ==============================================
// File: internal/migration/migration.go
// ==============================================
package migration

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/health"
	"github.com/rovshanmuradov/launchpad/internal/state"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"go.uber.org/zap"
)

// Result describes a completed migration.
type Result struct {
	TokenIndex  uint64
	PoolAddress solana.PublicKey
	Reserve     uint64
	SeedTokens  uint64
	Forced      bool
}

// Controller moves tokens from the curve to the external pool and handles
// admin pause/unpause.
//
// Migration is one step from the caller's point of view: the token goes from
// trading_on_curve to trading_on_pool or stays where it was.
type Controller struct {
	logger *zap.Logger
}

// NewController creates the migration controller.
func NewController(logger *zap.Logger) *Controller {
	return &Controller{logger: logger.Named("migration")}
}

// ThresholdReached reports whether the curve is complete or its reserve has
// reached the configured threshold.
func ThresholdReached(params state.Params, cs *types.CurveState) bool {
	if cs.Sold >= params.SupplyCap {
		return true
	}
	return params.MigrationReserveThreshold > 0 && cs.Reserve >= params.MigrationReserveThreshold
}

// CheckMigration migrates token index if it has crossed the threshold. It
// returns nil, nil when there is nothing to do.
func (c *Controller) CheckMigration(st *state.State, live health.Status, index uint64) (*Result, error) {
	token, cs, err := st.Token(index)
	if err != nil {
		return nil, err
	}
	if cs.Status != types.StatusTradingOnCurve || !ThresholdReached(st.Params, cs) {
		return nil, nil
	}

	c.logger.Info("Migration threshold reached",
		zap.Uint64("token", index),
		zap.Uint64("sold", cs.Sold),
		zap.Uint64("reserve", cs.Reserve))

	return c.migrate(st, live, token, cs, false)
}

// ForceMigrate migrates token index regardless of the threshold. Privileged.
func (c *Controller) ForceMigrate(st *state.State, live health.Status, caller solana.PublicKey, index uint64) (*Result, error) {
	if err := st.Gate.Authorize(caller); err != nil {
		return nil, err
	}
	token, cs, err := st.Token(index)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Forced migration requested",
		zap.Uint64("token", index),
		zap.String("caller", caller.String()))

	return c.migrate(st, live, token, cs, true)
}

// Pause stops curve trading on token index. Privileged.
func (c *Controller) Pause(st *state.State, caller solana.PublicKey, index uint64) error {
	return c.setPaused(st, caller, index, true)
}

// Unpause resumes curve trading on token index. Privileged.
func (c *Controller) Unpause(st *state.State, caller solana.PublicKey, index uint64) error {
	return c.setPaused(st, caller, index, false)
}

func (c *Controller) setPaused(st *state.State, caller solana.PublicKey, index uint64, pause bool) error {
	if err := st.Gate.Authorize(caller); err != nil {
		return err
	}
	_, cs, err := st.Token(index)
	if err != nil {
		return err
	}

	from, to := types.StatusTradingOnCurve, types.StatusPaused
	if !pause {
		from, to = types.StatusPaused, types.StatusTradingOnCurve
	}
	if cs.Status.Migrated() {
		return types.ErrAlreadyMigrated
	}
	if cs.Status != from {
		return fmt.Errorf("token %d is %s, expected %s: %w", index, cs.Status, from, types.ErrTokenNotTrading)
	}

	cs.Status = to
	c.logger.Info("Token status changed",
		zap.Uint64("token", index),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

func (c *Controller) migrate(st *state.State, live health.Status, token *types.Token, cs *types.CurveState, forced bool) (*Result, error) {
	switch {
	case cs.Status.Migrated():
		return nil, types.ErrAlreadyMigrated
	case cs.Status != types.StatusTradingOnCurve:
		return nil, fmt.Errorf("token %d is %s: %w", token.Index, cs.Status, types.ErrTokenNotTrading)
	}
	if !live.Healthy {
		return nil, fmt.Errorf("migration of token %d: %s: %w", token.Index, live.Error, types.ErrNetworkStale)
	}

	pool := st.PoolPointer
	if pool.IsZero() {
		c.logger.Error("Migration blocked, pool address not configured",
			zap.Uint64("token", token.Index),
			zap.Uint64("reserve", cs.Reserve))
		return nil, fmt.Errorf("token %d: %w", token.Index, types.ErrMigrationUnconfigured)
	}

	reserve := cs.Reserve
	seed := st.Params.PoolSeedTokens
	err := st.Ledger.Batch().
		Deposit(pool, reserve).
		Mint(token.Index, pool, seed).
		Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to seed pool for token %d: %w", token.Index, err)
	}

	// Seeding succeeded, nothing below can fail.
	cs.Status = types.StatusMigrating
	token.PoolAddress = pool
	cs.Reserve = 0
	cs.Status = types.StatusTradingOnPool

	c.logger.Info("Token migrated to pool",
		zap.Uint64("token", token.Index),
		zap.String("symbol", token.Symbol),
		zap.String("pool", pool.String()),
		zap.Uint64("reserve", reserve),
		zap.Uint64("seed_tokens", seed),
		zap.Bool("forced", forced))

	return &Result{
		TokenIndex:  token.Index,
		PoolAddress: pool,
		Reserve:     reserve,
		SeedTokens:  seed,
		Forced:      forced,
	}, nil
}
