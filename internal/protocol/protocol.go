// Package protocol is the entry point to the token factory, the bonding
// curves and the migration controller.
//
// Protocol owns the single state.State and applies every mutating operation
// under one lock, which gives all operations a single global order. Events
// are queued before the lock is released, so subscribers see them in that
// order too. The network liveness check runs before the lock is taken, so a
// slow RPC node never stalls other callers.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/health"
	"github.com/rovshanmuradov/launchpad/internal/migration"
	"github.com/rovshanmuradov/launchpad/internal/registry"
	"github.com/rovshanmuradov/launchpad/internal/state"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Protocol serializes access to the protocol state.
type Protocol struct {
	mu sync.RWMutex
	st *state.State

	registry  *registry.Registry
	curve     *curve.Engine
	migration *migration.Controller
	monitor   health.Monitor
	publisher events.Publisher
	logger    *zap.Logger
}

// Option customizes a Protocol.
type Option func(*Protocol)

// WithPublisher sends protocol events to p.
func WithPublisher(p events.Publisher) Option {
	return func(pr *Protocol) {
		pr.publisher = p
	}
}

// New wires the components around st.
func New(st *state.State, monitor health.Monitor, logger *zap.Logger, opts ...Option) *Protocol {
	p := &Protocol{
		st:        st,
		registry:  registry.New(logger),
		curve:     curve.NewEngine(logger),
		migration: migration.NewController(logger),
		monitor:   monitor,
		logger:    logger.Named("protocol"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TokenInfo is a consistent snapshot of a token and its curve.
type TokenInfo struct {
	Token       types.Token
	Curve       types.CurveState
	TotalSupply uint64
}

// CreateToken is the payable factory entry point.
func (p *Protocol) CreateToken(caller solana.PublicKey, name, ticker string, paidFee uint64) (*types.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.registry.CreateToken(p.st, caller, name, ticker, paidFee)
	if err != nil {
		return nil, err
	}
	snapshot := *token
	p.publish(&events.TokenCreatedEvent{
		BaseEvent: events.NewBase(events.TokenCreated),
		Token:     snapshot,
		FeePaid:   paidFee,
	})
	return &snapshot, nil
}

// CurrentTokenIndex returns the number of tokens created so far.
func (p *Protocol) CurrentTokenIndex() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st.CurrentTokenIndex()
}

// GetToken returns a snapshot of token index.
func (p *Protocol) GetToken(index uint64) (*TokenInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	token, cs, err := p.st.Token(index)
	if err != nil {
		return nil, err
	}
	return &TokenInfo{
		Token:       *token,
		Curve:       cs.Clone(),
		TotalSupply: p.st.Ledger.TotalSupply(index),
	}, nil
}

// SetPoolAddress updates the pool pointer. Privileged.
func (p *Protocol) SetPoolAddress(caller, addr solana.PublicKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.registry.SetPoolAddress(p.st, caller, addr); err != nil {
		return err
	}
	p.publishConfig("pool_address", caller, addr.String())
	return nil
}

// PoolAddress returns the pool pointer; zero when unset.
func (p *Protocol) PoolAddress() solana.PublicKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st.PoolPointer
}

// SetTaxAddress updates the fee destination. Privileged.
func (p *Protocol) SetTaxAddress(caller, addr solana.PublicKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.registry.SetTaxAddress(p.st, caller, addr); err != nil {
		return err
	}
	p.publishConfig("tax_address", caller, addr.String())
	return nil
}

// TaxAddress returns the fee destination.
func (p *Protocol) TaxAddress() solana.PublicKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st.TaxAddress
}

// CreateFee returns the flat token creation fee.
func (p *Protocol) CreateFee() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.curve.CreateFee(p.st)
}

// FeeSchedule returns both fee parameters.
func (p *Protocol) FeeSchedule() types.FeeSchedule {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st.Fees
}

// SetFeeSchedule replaces the fee parameters. Privileged.
func (p *Protocol) SetFeeSchedule(caller solana.PublicKey, fees types.FeeSchedule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.curve.SetFeeSchedule(p.st, caller, fees); err != nil {
		return err
	}
	p.publishConfig("fees", caller, decimal.New(int64(fees.TradeFeeBps), -4).String())
	return nil
}

// Admin returns the current admin identity.
func (p *Protocol) Admin() solana.PublicKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st.Gate.Admin()
}

// TransferAdmin hands admin rights to newAdmin. Only the admin may call it.
func (p *Protocol) TransferAdmin(caller, newAdmin solana.PublicKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.st.Gate.TransferAdmin(caller, newAdmin); err != nil {
		return err
	}
	p.publishConfig("admin", caller, newAdmin.String())
	return nil
}

// Deposit credits settlement to owner from outside the protocol. Privileged:
// on a real network deposits are the chain's business, here the admin funds accounts.
func (p *Protocol) Deposit(caller, owner solana.PublicKey, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.st.Gate.Authorize(caller); err != nil {
		return err
	}
	if err := p.st.Ledger.Deposit(owner, amount); err != nil {
		return err
	}
	p.logger.Info("Settlement deposited",
		zap.String("owner", owner.String()),
		zap.Uint64("amount", amount))
	return nil
}

// Balance returns the settlement balance of owner.
func (p *Protocol) Balance(owner solana.PublicKey) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st.Ledger.Balance(owner)
}

// TokenBalance returns owner's holdings of token index.
func (p *Protocol) TokenBalance(index uint64, owner solana.PublicKey) (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, _, err := p.st.Token(index); err != nil {
		return 0, err
	}
	return p.st.Ledger.TokenBalance(index, owner), nil
}

// QuoteBuy previews a buy.
func (p *Protocol) QuoteBuy(index, settlementIn uint64) (types.Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.curve.QuoteBuy(p.st, index, settlementIn)
}

// QuoteSell previews a sell.
func (p *Protocol) QuoteSell(index, tokensIn uint64) (types.Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.curve.QuoteSell(p.st, index, tokensIn)
}

// SpotPrice returns the marginal curve price of token index.
func (p *Protocol) SpotPrice(index uint64) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.curve.SpotPrice(p.st, index)
}

// Buy executes a curve buy and then checks the migration threshold. A buy
// that crosses the threshold stands even if the migration cannot complete.
// Later buys retry that migration first and are refused until it succeeds.
func (p *Protocol) Buy(ctx context.Context, trader solana.PublicKey, index, settlementIn, minOut uint64) (*BuyResult, error) {
	live := p.monitor.CheckLiveness(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.completePendingMigration(live, index); err != nil {
		return nil, err
	}
	trade, err := p.curve.Buy(p.st, live, trader, index, settlementIn, minOut)
	if err != nil {
		return nil, err
	}
	p.publish(&events.TradeExecutedEvent{BaseEvent: events.NewBase(events.TradeExecuted), Trade: *trade})

	migrated, migErr := p.migration.CheckMigration(p.st, live, index)
	result := &BuyResult{TradeResult: *trade}
	switch {
	case migErr != nil:
		result.MigrationError = migErr
		p.publish(&events.MigrationFailedEvent{
			BaseEvent:        events.NewBase(events.MigrationFailed),
			TokenIndex:       index,
			Error:            migErr,
			RequiresOperator: types.RequiresOperator(migErr),
		})
	case migrated != nil:
		result.Migration = migrated
		p.publishMigrated(migrated)
	}
	return result, nil
}

// completePendingMigration migrates token index when an earlier buy crossed
// the threshold but the migration failed. It returns the migration error while
// the token is still waiting, and ErrAlreadyMigrated once it has moved.
func (p *Protocol) completePendingMigration(live health.Status, index uint64) error {
	_, cs, err := p.st.Token(index)
	if err != nil {
		return err
	}
	if cs.Status != types.StatusTradingOnCurve || !migration.ThresholdReached(p.st.Params, cs) {
		return nil
	}

	migrated, err := p.migration.CheckMigration(p.st, live, index)
	if err != nil {
		return fmt.Errorf("token %d is waiting for migration: %w", index, err)
	}
	p.publishMigrated(migrated)
	return fmt.Errorf("token %d moved to its pool: %w", index, types.ErrAlreadyMigrated)
}

// BuyResult is a buy plus the outcome of the migration check that followed it.
type BuyResult struct {
	types.TradeResult
	Migration      *migration.Result
	MigrationError error
}

// Sell executes a curve sell.
func (p *Protocol) Sell(ctx context.Context, trader solana.PublicKey, index, tokensIn, minOut uint64) (*types.TradeResult, error) {
	live := p.monitor.CheckLiveness(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	trade, err := p.curve.Sell(p.st, live, trader, index, tokensIn, minOut)
	if err != nil {
		return nil, err
	}
	p.publish(&events.TradeExecutedEvent{BaseEvent: events.NewBase(events.TradeExecuted), Trade: *trade})
	return trade, nil
}

// ForceMigrate migrates token index without waiting for the threshold. Privileged.
func (p *Protocol) ForceMigrate(ctx context.Context, caller solana.PublicKey, index uint64) (*migration.Result, error) {
	live := p.monitor.CheckLiveness(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.migration.ForceMigrate(p.st, live, caller, index)
	if err != nil {
		if types.RequiresOperator(err) {
			p.logger.Error("Forced migration needs operator action", zap.Uint64("token", index), zap.Error(err))
		}
		return nil, err
	}
	p.publishMigrated(res)
	return res, nil
}

// Pause stops curve trading on token index. Privileged.
func (p *Protocol) Pause(caller solana.PublicKey, index uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.migration.Pause(p.st, caller, index); err != nil {
		return err
	}
	p.publish(&events.TokenStatusEvent{BaseEvent: events.NewBase(events.TokenPaused), TokenIndex: index, Caller: caller})
	return nil
}

// Unpause resumes curve trading on token index. Privileged.
func (p *Protocol) Unpause(caller solana.PublicKey, index uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.migration.Unpause(p.st, caller, index); err != nil {
		return err
	}
	p.publish(&events.TokenStatusEvent{BaseEvent: events.NewBase(events.TokenUnpaused), TokenIndex: index, Caller: caller})
	return nil
}

// Liveness runs the configured liveness check.
func (p *Protocol) Liveness(ctx context.Context) health.Status {
	return p.monitor.CheckLiveness(ctx)
}

func (p *Protocol) publishMigrated(res *migration.Result) {
	p.publish(&events.TokenMigratedEvent{
		BaseEvent:   events.NewBase(events.TokenMigrated),
		TokenIndex:  res.TokenIndex,
		PoolAddress: res.PoolAddress,
		Reserve:     res.Reserve,
		SeedTokens:  res.SeedTokens,
		Forced:      res.Forced,
	})
}

func (p *Protocol) publishConfig(field string, caller solana.PublicKey, value string) {
	p.publish(&events.ConfigChangedEvent{
		BaseEvent: events.NewBase(events.ConfigChanged),
		Field:     field,
		Caller:    caller,
		Value:     value,
	})
}

// publish queues event; callers hold p.mu so events leave in commit order.
func (p *Protocol) publish(event events.Event) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(event); err != nil && !errors.Is(err, events.ErrBusClosed) {
		p.logger.Warn("Failed to publish event",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}
