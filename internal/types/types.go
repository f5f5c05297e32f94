// internal/types/types.go
package types

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// Status is the lifecycle state of a token. A token opens directly on its
// curve; there is no separate created state.
type Status string

const (
	StatusTradingOnCurve Status = "trading_on_curve"
	StatusPaused         Status = "paused"
	StatusMigrating      Status = "migrating"
	StatusTradingOnPool  Status = "trading_on_pool"
)

// Migrated reports whether the token has left the curve for good.
func (s Status) Migrated() bool {
	return s == StatusMigrating || s == StatusTradingOnPool
}

// Token is the immutable creation record of a factory token plus its pool binding.
type Token struct {
	Index         uint64
	Name          string
	Symbol        string
	Address       solana.PublicKey
	CurveAddress  solana.PublicKey
	Creator       solana.PublicKey
	InitialSupply uint64
	CreatedAt     time.Time

	// PoolAddress is zero until the token migrates, then never changes.
	PoolAddress solana.PublicKey
}

// CurveState is the reserve ledger of a single token.
type CurveState struct {
	Reserve  uint64
	Sold     uint64
	K        *uint256.Int
	FeesPaid uint64
	Status   Status
}

// Clone returns a deep copy safe to hand out to readers.
func (c *CurveState) Clone() CurveState {
	out := *c
	if c.K != nil {
		out.K = c.K.Clone()
	}
	return out
}

// FeeSchedule holds the protocol fees. Both legs route to the tax address.
type FeeSchedule struct {
	CreationFee uint64
	TradeFeeBps uint64
}

// Side of a curve trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeResult describes an executed curve trade.
type TradeResult struct {
	TokenIndex uint64
	Side       Side
	Trader     solana.PublicKey
	// AmountIn is the settlement paid for buys and the tokens burned for sells.
	AmountIn uint64
	// AmountOut is the tokens minted for buys and the settlement paid out for sells.
	AmountOut uint64
	Fee       uint64
	// Refund is the unused settlement returned when a buy hits the supply cap.
	Refund  uint64
	Reserve uint64
	Sold    uint64
}

// Quote is a read-only preview of a trade at the current curve state.
type Quote struct {
	Side      Side   `json:"side"`
	AmountIn  uint64 `json:"amount_in"`
	AmountOut uint64 `json:"amount_out"`
	Fee       uint64 `json:"fee"`
	Refund    uint64 `json:"refund,omitempty"`
	// Capped is set when the buy would exhaust the curve supply.
	Capped bool `json:"capped,omitempty"`
}
