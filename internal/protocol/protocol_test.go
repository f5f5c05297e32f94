package protocol_test

import (
	"context"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/health"
	"github.com/rovshanmuradov/launchpad/internal/protocol"
	"github.com/rovshanmuradov/launchpad/internal/state"
	"github.com/rovshanmuradov/launchpad/internal/state/statetest"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) eventTypes() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type())
	}
	return out
}

func (r *recordingPublisher) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type harness struct {
	*statetest.Fixture
	proto *protocol.Protocol
	pub   *recordingPublisher
}

func newHarness(t *testing.T, monitor health.Monitor, fees types.FeeSchedule, mutate ...func(*state.Params)) *harness {
	t.Helper()
	f := statetest.New(t, fees, mutate...)
	pub := &recordingPublisher{}
	return &harness{
		Fixture: f,
		proto:   protocol.New(f.State, monitor, zaptest.NewLogger(t), protocol.WithPublisher(pub)),
		pub:     pub,
	}
}

func (h *harness) create(t *testing.T) uint64 {
	t.Helper()
	creator := statetest.Key(t)
	fee := h.proto.CreateFee()
	h.Fund(t, creator, fee)
	token, err := h.proto.CreateToken(creator, "Token", "TKN", fee)
	require.NoError(t, err)
	return token.Index
}

func threshold(v uint64) func(*state.Params) {
	return func(p *state.Params) { p.MigrationReserveThreshold = v }
}

func TestTokenLifecycle(t *testing.T) {
	h := newHarness(t, health.Static{Healthy: true}, types.FeeSchedule{CreationFee: 100, TradeFeeBps: 100})
	ctx := context.Background()
	trader := statetest.Key(t)

	index := h.create(t)
	assert.Equal(t, uint64(1), h.proto.CurrentTokenIndex())

	require.NoError(t, h.proto.Deposit(h.Admin, trader, 1_000))
	buy, err := h.proto.Buy(ctx, trader, index, 1_000, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(497_487), buy.AmountOut)
	assert.Nil(t, buy.Migration)
	assert.NoError(t, buy.MigrationError)

	info, err := h.proto.GetToken(index)
	require.NoError(t, err)
	assert.Equal(t, uint64(990), info.Curve.Reserve)
	assert.Equal(t, uint64(statetest.InitialSupply+497_487), info.TotalSupply)

	held, err := h.proto.TokenBalance(index, trader)
	require.NoError(t, err)
	sell, err := h.proto.Sell(ctx, trader, index, held, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(980), sell.AmountOut)
	assert.Equal(t, uint64(980), h.proto.Balance(trader))
	assert.Equal(t, uint64(120), h.proto.Balance(h.proto.TaxAddress()))

	assert.Equal(t, []events.EventType{
		events.TokenCreated,
		events.TradeExecuted,
		events.TradeExecuted,
	}, h.pub.eventTypes())
}

func TestGetTokenReturnsSnapshot(t *testing.T) {
	h := newHarness(t, health.Static{Healthy: true}, types.FeeSchedule{})
	index := h.create(t)

	info, err := h.proto.GetToken(index)
	require.NoError(t, err)
	info.Curve.Reserve = 1 << 40
	info.Curve.K.SetUint64(1)

	again, err := h.proto.GetToken(index)
	require.NoError(t, err)
	assert.Zero(t, again.Curve.Reserve)
	assert.True(t, again.Curve.K.Eq(h.State.Params.K))

	_, err = h.proto.GetToken(index + 1)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = h.proto.TokenBalance(index+1, statetest.Key(t))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestBuyCrossingThresholdMigrates(t *testing.T) {
	h := newHarness(t, health.Static{Healthy: true}, types.FeeSchedule{TradeFeeBps: 100}, threshold(2_000))
	pool := statetest.Key(t)
	require.NoError(t, h.proto.SetPoolAddress(h.Admin, pool))
	index := h.create(t)
	trader := statetest.Key(t)
	h.Fund(t, trader, 2_500)

	buy, err := h.proto.Buy(context.Background(), trader, index, 2_500, 0)
	require.NoError(t, err)
	require.NotNil(t, buy.Migration)
	assert.Equal(t, uint64(2_475), buy.Migration.Reserve)
	assert.Equal(t, pool, buy.Migration.PoolAddress)

	info, err := h.proto.GetToken(index)
	require.NoError(t, err)
	assert.Equal(t, types.StatusTradingOnPool, info.Curve.Status)
	assert.Equal(t, pool, info.Token.PoolAddress)
	assert.Equal(t, uint64(2_475), h.proto.Balance(pool))

	migrated, ok := h.pub.last().(*events.TokenMigratedEvent)
	require.True(t, ok)
	assert.False(t, migrated.Forced)

	_, err = h.proto.Sell(context.Background(), trader, index, 1, 0)
	assert.ErrorIs(t, err, types.ErrAlreadyMigrated)
}

func TestBuyCrossingThresholdWithoutPool(t *testing.T) {
	h := newHarness(t, health.Static{Healthy: true}, types.FeeSchedule{TradeFeeBps: 100}, threshold(2_000))
	index := h.create(t)
	trader := statetest.Key(t)
	h.Fund(t, trader, 2_500)

	buy, err := h.proto.Buy(context.Background(), trader, index, 2_500, 0)
	require.NoError(t, err, "the buy itself stands")
	assert.Nil(t, buy.Migration)
	assert.ErrorIs(t, buy.MigrationError, types.ErrMigrationUnconfigured)
	assert.Equal(t, uint64(2_475), buy.Reserve)

	info, err := h.proto.GetToken(index)
	require.NoError(t, err)
	assert.Equal(t, types.StatusTradingOnCurve, info.Curve.Status)

	failed, ok := h.pub.last().(*events.MigrationFailedEvent)
	require.True(t, ok)
	assert.True(t, failed.RequiresOperator)

	// fixed by configuration, then forced through
	require.NoError(t, h.proto.SetPoolAddress(h.Admin, statetest.Key(t)))
	res, err := h.proto.ForceMigrate(context.Background(), h.Admin, index)
	require.NoError(t, err)
	assert.True(t, res.Forced)
}

func TestStaleNetworkBlocksTrading(t *testing.T) {
	h := newHarness(t, health.Static{Error: health.ErrorTimeout}, types.FeeSchedule{})
	index := h.create(t)
	trader := statetest.Key(t)
	h.Fund(t, trader, 1_000)
	before := h.pub.eventTypes()

	_, err := h.proto.Buy(context.Background(), trader, index, 1_000, 0)
	assert.ErrorIs(t, err, types.ErrNetworkStale)
	_, err = h.proto.ForceMigrate(context.Background(), h.Admin, index)
	assert.ErrorIs(t, err, types.ErrNetworkStale)

	assert.Equal(t, uint64(1_000), h.proto.Balance(trader))
	assert.Equal(t, before, h.pub.eventTypes(), "rejected calls publish nothing")
	assert.False(t, h.proto.Liveness(context.Background()).Healthy)
}

func TestPrivilegedOperations(t *testing.T) {
	h := newHarness(t, health.Static{Healthy: true}, types.FeeSchedule{CreationFee: 10, TradeFeeBps: 100})
	index := h.create(t)
	stranger := statetest.Key(t)

	assert.ErrorIs(t, h.proto.Pause(stranger, index), types.ErrUnauthorized)
	assert.ErrorIs(t, h.proto.Deposit(stranger, stranger, 1), types.ErrUnauthorized)
	assert.ErrorIs(t, h.proto.SetTaxAddress(stranger, stranger), types.ErrUnauthorized)
	assert.ErrorIs(t, h.proto.SetFeeSchedule(stranger, types.FeeSchedule{}), types.ErrUnauthorized)
	assert.ErrorIs(t, h.proto.TransferAdmin(stranger, stranger), types.ErrUnauthorized)
	assert.Zero(t, h.proto.Balance(stranger))

	require.NoError(t, h.proto.Pause(h.Admin, index))
	h.Fund(t, stranger, 100)
	_, err := h.proto.Buy(context.Background(), stranger, index, 100, 0)
	assert.ErrorIs(t, err, types.ErrTokenNotTrading)
	require.NoError(t, h.proto.Unpause(h.Admin, index))

	require.NoError(t, h.proto.SetFeeSchedule(h.Admin, types.FeeSchedule{CreationFee: 5, TradeFeeBps: 50}))
	assert.Equal(t, uint64(5), h.proto.CreateFee())
	assert.Equal(t, types.FeeSchedule{CreationFee: 5, TradeFeeBps: 50}, h.proto.FeeSchedule())

	changed, ok := h.pub.last().(*events.ConfigChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "fees", changed.Field)
	assert.Equal(t, "0.005", changed.Value)

	next := statetest.Key(t)
	require.NoError(t, h.proto.TransferAdmin(h.Admin, next))
	assert.Equal(t, next, h.proto.Admin())
	assert.ErrorIs(t, h.proto.Pause(h.Admin, index), types.ErrUnauthorized, "old admin lost its rights")
	require.NoError(t, h.proto.Pause(next, index))
}

func TestConcurrentTradesConserveSettlement(t *testing.T) {
	h := newHarness(t, health.Static{Healthy: true}, types.FeeSchedule{TradeFeeBps: 100})
	index := h.create(t)

	const traders = 8
	keys := make([]solana.PublicKey, traders)
	for i := range keys {
		keys[i] = statetest.Key(t)
		h.Fund(t, keys[i], 300)
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(trader solana.PublicKey) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				res, err := h.proto.Buy(context.Background(), trader, index, 50, 0)
				if err != nil {
					continue
				}
				_, _ = h.proto.Sell(context.Background(), trader, index, res.AmountOut/2, 0)
			}
		}(key)
	}
	wg.Wait()

	info, err := h.proto.GetToken(index)
	require.NoError(t, err)

	total := info.Curve.Reserve + h.proto.Balance(h.proto.TaxAddress())
	var sold uint64
	for _, key := range keys {
		total += h.proto.Balance(key)
		held, err := h.proto.TokenBalance(index, key)
		require.NoError(t, err)
		sold += held
	}
	assert.Equal(t, uint64(traders*300), total, "settlement is neither created nor lost")
	assert.Equal(t, info.Curve.Sold, sold)
}

func TestSoldOutCurveWaitsForPool(t *testing.T) {
	h := newHarness(t, health.Static{Healthy: true}, types.FeeSchedule{TradeFeeBps: 100})
	index := h.create(t)
	trader := statetest.Key(t)
	h.Fund(t, trader, 11_000)
	ctx := context.Background()

	buy, err := h.proto.Buy(ctx, trader, index, 10_000, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(statetest.SupplyCap), buy.Sold)
	assert.Equal(t, uint64(5_959), buy.Refund)
	assert.ErrorIs(t, buy.MigrationError, types.ErrMigrationUnconfigured)

	_, err = h.proto.Buy(ctx, trader, index, 1_000, 0)
	assert.ErrorIs(t, err, types.ErrMigrationUnconfigured)
	assert.True(t, types.RequiresOperator(err))
	assert.Equal(t, uint64(6_959), h.proto.Balance(trader), "a refused buy moves nothing")

	pool := statetest.Key(t)
	require.NoError(t, h.proto.SetPoolAddress(h.Admin, pool))

	_, err = h.proto.Buy(ctx, trader, index, 1_000, 0)
	assert.ErrorIs(t, err, types.ErrAlreadyMigrated)
	assert.Equal(t, uint64(6_959), h.proto.Balance(trader))

	info, err := h.proto.GetToken(index)
	require.NoError(t, err)
	assert.Equal(t, types.StatusTradingOnPool, info.Curve.Status)
	assert.Equal(t, pool, info.Token.PoolAddress)
	assert.Equal(t, uint64(4_000), h.proto.Balance(pool))

	migrated, ok := h.pub.last().(*events.TokenMigratedEvent)
	require.True(t, ok)
	assert.False(t, migrated.Forced)
	assert.Equal(t, uint64(4_000), migrated.Reserve)
}

func TestTradeEventsFollowCommitOrder(t *testing.T) {
	h := newHarness(t, health.Static{Healthy: true}, types.FeeSchedule{TradeFeeBps: 100})
	index := h.create(t)

	const traders = 8
	var wg sync.WaitGroup
	for i := 0; i < traders; i++ {
		trader := statetest.Key(t)
		h.Fund(t, trader, 250)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := h.proto.Buy(context.Background(), trader, index, 50, 0)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	h.pub.mu.Lock()
	defer h.pub.mu.Unlock()
	var sold, reserve uint64
	trades := 0
	for _, e := range h.pub.events {
		trade, ok := e.(*events.TradeExecutedEvent)
		if !ok {
			continue
		}
		trades++
		assert.Greater(t, trade.Trade.Sold, sold, "trade %d", trades)
		assert.Greater(t, trade.Trade.Reserve, reserve, "trade %d", trades)
		sold, reserve = trade.Trade.Sold, trade.Trade.Reserve
	}
	assert.Equal(t, traders*5, trades)
}
