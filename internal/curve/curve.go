// Package curve implements bonding-curve pricing and reserve accounting.
//
// Prices follow a virtual constant-product curve (see Curve). All arithmetic
// is integer: fees round up, token output and sell proceeds round down, so a
// trader can never pull out more settlement than went in.
//
// Engine methods receive the protocol state and a liveness snapshot taken
// before the call; they check every precondition first and only then mutate
// the curve and the ledger together.
package curve

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/health"
	"github.com/rovshanmuradov/launchpad/internal/state"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine executes buys and sells against token curves.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a curve engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger.Named("curve")}
}

// For returns the pricing function of a curve under the deployment params.
func For(params state.Params, cs *types.CurveState) Curve {
	return Curve{K: cs.K, T0: params.VirtualTokenReserves, Cap: params.SupplyCap}
}

// QuoteBuy previews a buy of settlementIn without touching state.
func (e *Engine) QuoteBuy(st *state.State, index, settlementIn uint64) (types.Quote, error) {
	_, cs, err := st.Token(index)
	if err != nil {
		return types.Quote{}, err
	}
	if err := tradable(cs); err != nil {
		return types.Quote{}, err
	}
	return quoteBuy(st, cs, settlementIn)
}

// QuoteSell previews a sell of tokensIn without touching state.
func (e *Engine) QuoteSell(st *state.State, index, tokensIn uint64) (types.Quote, error) {
	_, cs, err := st.Token(index)
	if err != nil {
		return types.Quote{}, err
	}
	if err := tradable(cs); err != nil {
		return types.Quote{}, err
	}
	q, _, err := quoteSell(st, cs, tokensIn)
	return q, err
}

// SpotPrice returns the marginal price in settlement base units per token base unit.
func (e *Engine) SpotPrice(st *state.State, index uint64) (decimal.Decimal, error) {
	_, cs, err := st.Token(index)
	if err != nil {
		return decimal.Zero, err
	}
	c := For(st.Params, cs)
	v := decimal.NewFromBigInt(c.VirtualSettlement(cs.Sold).ToBig(), 0)
	t := decimal.NewFromBigInt(new(big.Int).SetUint64(c.T0-cs.Sold), 0)
	return v.DivRound(t, 18), nil
}

// Buy spends settlementIn from trader on token index. minOut of zero disables
// the slippage bound.
func (e *Engine) Buy(st *state.State, live health.Status, trader solana.PublicKey, index, settlementIn, minOut uint64) (*types.TradeResult, error) {
	token, cs, err := st.Token(index)
	if err != nil {
		return nil, err
	}
	if err := tradable(cs); err != nil {
		return nil, err
	}
	if err := requireLive(live); err != nil {
		return nil, err
	}

	q, err := quoteBuy(st, cs, settlementIn)
	if err != nil {
		return nil, err
	}
	if q.AmountOut < minOut {
		e.logger.Warn("Buy rejected by slippage bound",
			zap.Uint64("token", index),
			zap.Uint64("expected_out", q.AmountOut),
			zap.Uint64("min_out", minOut))
		return nil, &types.SlippageError{Expected: q.AmountOut, Minimum: minOut}
	}

	charged := settlementIn - q.Refund
	credited := charged - q.Fee
	reserve, carry := bits.Add64(cs.Reserve, credited, 0)
	if carry != 0 {
		return nil, fmt.Errorf("reserve overflow on token %d: %w", index, types.ErrInvalidArgument)
	}

	err = st.Ledger.Batch().
		Withdraw(trader, charged).
		Deposit(st.TaxAddress, q.Fee).
		Mint(index, trader, q.AmountOut).
		Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to settle buy: %w", err)
	}

	cs.Reserve = reserve
	cs.Sold += q.AmountOut
	cs.FeesPaid += q.Fee

	e.logger.Info("Buy executed",
		zap.Uint64("token", index),
		zap.String("symbol", token.Symbol),
		zap.String("trader", trader.String()),
		zap.Uint64("settlement_in", charged),
		zap.Uint64("fee", q.Fee),
		zap.Uint64("tokens_out", q.AmountOut),
		zap.Uint64("reserve", cs.Reserve),
		zap.Uint64("sold", cs.Sold))

	return &types.TradeResult{
		TokenIndex: index,
		Side:       types.SideBuy,
		Trader:     trader,
		AmountIn:   charged,
		AmountOut:  q.AmountOut,
		Fee:        q.Fee,
		Refund:     q.Refund,
		Reserve:    cs.Reserve,
		Sold:       cs.Sold,
	}, nil
}

// Sell burns tokensIn from trader and pays out the curve proceeds minus the fee.
func (e *Engine) Sell(st *state.State, live health.Status, trader solana.PublicKey, index, tokensIn, minOut uint64) (*types.TradeResult, error) {
	token, cs, err := st.Token(index)
	if err != nil {
		return nil, err
	}
	if err := tradable(cs); err != nil {
		return nil, err
	}
	if err := requireLive(live); err != nil {
		return nil, err
	}

	q, gross, err := quoteSell(st, cs, tokensIn)
	if err != nil {
		return nil, err
	}
	if gross > cs.Reserve {
		e.logger.Error("Curve reserve below sell proceeds",
			zap.Uint64("token", index),
			zap.Uint64("reserve", cs.Reserve),
			zap.Uint64("gross", gross))
		return nil, fmt.Errorf("token %d reserve %d, payout %d: %w", index, cs.Reserve, gross, types.ErrInsufficientReserve)
	}
	if q.AmountOut < minOut {
		e.logger.Warn("Sell rejected by slippage bound",
			zap.Uint64("token", index),
			zap.Uint64("expected_out", q.AmountOut),
			zap.Uint64("min_out", minOut))
		return nil, &types.SlippageError{Expected: q.AmountOut, Minimum: minOut}
	}

	err = st.Ledger.Batch().
		Burn(index, trader, tokensIn).
		Deposit(trader, q.AmountOut).
		Deposit(st.TaxAddress, q.Fee).
		Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to settle sell: %w", err)
	}

	cs.Reserve -= gross
	cs.Sold -= tokensIn
	cs.FeesPaid += q.Fee

	e.logger.Info("Sell executed",
		zap.Uint64("token", index),
		zap.String("symbol", token.Symbol),
		zap.String("trader", trader.String()),
		zap.Uint64("tokens_in", tokensIn),
		zap.Uint64("fee", q.Fee),
		zap.Uint64("settlement_out", q.AmountOut),
		zap.Uint64("reserve", cs.Reserve),
		zap.Uint64("sold", cs.Sold))

	return &types.TradeResult{
		TokenIndex: index,
		Side:       types.SideSell,
		Trader:     trader,
		AmountIn:   tokensIn,
		AmountOut:  q.AmountOut,
		Fee:        q.Fee,
		Reserve:    cs.Reserve,
		Sold:       cs.Sold,
	}, nil
}

// CreateFee is the flat fee charged by the factory on token creation.
func (e *Engine) CreateFee(st *state.State) uint64 {
	return st.Fees.CreationFee
}

// SetFeeSchedule replaces both fee parameters. Privileged.
func (e *Engine) SetFeeSchedule(st *state.State, caller solana.PublicKey, fees types.FeeSchedule) error {
	if err := st.Gate.Authorize(caller); err != nil {
		return err
	}
	if err := state.ValidateFees(fees); err != nil {
		return err
	}

	old := st.Fees
	st.Fees = fees
	e.logger.Info("Fee schedule updated",
		zap.Uint64("old_creation_fee", old.CreationFee),
		zap.Uint64("new_creation_fee", fees.CreationFee),
		zap.Uint64("old_trade_fee_bps", old.TradeFeeBps),
		zap.Uint64("new_trade_fee_bps", fees.TradeFeeBps))
	return nil
}

func quoteBuy(st *state.State, cs *types.CurveState, settlementIn uint64) (types.Quote, error) {
	if settlementIn == 0 {
		return types.Quote{}, fmt.Errorf("buy amount must be positive: %w", types.ErrInvalidArgument)
	}

	bps := st.Fees.TradeFeeBps
	fee := FeeFor(settlementIn, bps)
	net := settlementIn - fee

	c := For(st.Params, cs)
	out, capped := c.TokensForSettlement(cs.Sold, net)
	if out == 0 {
		return types.Quote{}, fmt.Errorf("buy of %d buys no tokens: %w", settlementIn, types.ErrInvalidArgument)
	}

	q := types.Quote{Side: types.SideBuy, AmountIn: settlementIn, AmountOut: out, Fee: fee, Capped: capped}
	if capped {
		// charge only what the remaining supply costs and refund the rest
		cost := c.Cost(cs.Sold, out).Uint64()
		gross := GrossForNet(cost, bps)
		q.Fee = FeeFor(gross, bps)
		q.Refund = settlementIn - gross
	}
	return q, nil
}

func quoteSell(st *state.State, cs *types.CurveState, tokensIn uint64) (types.Quote, uint64, error) {
	if tokensIn == 0 {
		return types.Quote{}, 0, fmt.Errorf("sell amount must be positive: %w", types.ErrInvalidArgument)
	}
	if tokensIn > cs.Sold {
		return types.Quote{}, 0, fmt.Errorf("sell of %d exceeds curve supply %d: %w", tokensIn, cs.Sold, types.ErrInvalidArgument)
	}

	gross := For(st.Params, cs).SellProceeds(cs.Sold, tokensIn).Uint64()
	if gross == 0 {
		return types.Quote{}, 0, fmt.Errorf("sell of %d releases no settlement: %w", tokensIn, types.ErrInvalidArgument)
	}
	fee := FeeFor(gross, st.Fees.TradeFeeBps)

	return types.Quote{Side: types.SideSell, AmountIn: tokensIn, AmountOut: gross - fee, Fee: fee}, gross, nil
}

func tradable(cs *types.CurveState) error {
	switch {
	case cs.Status == types.StatusTradingOnCurve:
		return nil
	case cs.Status.Migrated():
		return types.ErrAlreadyMigrated
	default:
		return fmt.Errorf("status %s: %w", cs.Status, types.ErrTokenNotTrading)
	}
}

func requireLive(live health.Status) error {
	if live.Healthy {
		return nil
	}
	reason := live.Error
	if reason == "" {
		reason = "liveness check failed"
	}
	return fmt.Errorf("%s: %w", reason, types.ErrNetworkStale)
}
