package report

import (
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/shopspring/decimal"
)

// Summary aggregates a set of journal entries. Amounts are base units.
type Summary struct {
	TotalEntries     int             `json:"total_entries"`
	TokensCreated    int             `json:"tokens_created"`
	Trades           int             `json:"trades"`
	BuyCount         int             `json:"buy_count"`
	SellCount        int             `json:"sell_count"`
	UniqueTokens     int             `json:"unique_tokens"`
	Migrations       int             `json:"migrations"`
	ForcedMigrations int             `json:"forced_migrations"`
	FailedMigrations int             `json:"failed_migrations"`
	BuyVolume        decimal.Decimal `json:"buy_volume"`
	SellVolume       decimal.Decimal `json:"sell_volume"`
	TradeFees        decimal.Decimal `json:"trade_fees"`
	CreationFees     decimal.Decimal `json:"creation_fees"`
	// NetFlow is buy volume minus sell volume: settlement retained by the curves.
	NetFlow   decimal.Decimal `json:"net_flow"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Tokens    []TokenStats    `json:"tokens"`
}

// TokenStats is the per-token breakdown of a summary.
type TokenStats struct {
	Token    string          `json:"token"`
	Buys     int             `json:"buys"`
	Sells    int             `json:"sells"`
	Volume   decimal.Decimal `json:"volume"`
	Fees     decimal.Decimal `json:"fees"`
	Reserve  uint64          `json:"reserve"`
	Sold     uint64          `json:"sold"`
	Migrated bool            `json:"migrated"`
}

func units(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// Volume is the settlement that moved through the curve for a trade entry:
// the reserve increase of a buy or the payout of a sell.
func (e Entry) Volume() uint64 {
	if e.Side == types.SideBuy {
		return e.AmountIn - e.Fee
	}
	return e.AmountOut
}

// Summarize computes summary statistics. Entries are expected in time order.
func Summarize(entries []Entry) Summary {
	summary := Summary{
		TotalEntries: len(entries),
		BuyVolume:    decimal.Zero,
		SellVolume:   decimal.Zero,
		TradeFees:    decimal.Zero,
		CreationFees: decimal.Zero,
		NetFlow:      decimal.Zero,
	}
	if len(entries) == 0 {
		return summary
	}
	summary.StartDate = entries[0].Timestamp
	summary.EndDate = entries[len(entries)-1].Timestamp

	perToken := make(map[string]*TokenStats)
	stats := func(token string) *TokenStats {
		s, ok := perToken[token]
		if !ok {
			s = &TokenStats{Token: token, Volume: decimal.Zero, Fees: decimal.Zero}
			perToken[token] = s
		}
		return s
	}

	for _, e := range entries {
		switch e.Event {
		case events.TokenCreated:
			summary.TokensCreated++
			summary.CreationFees = summary.CreationFees.Add(units(e.Fee))
			stats(e.Token)
		case events.TradeExecuted:
			summary.Trades++
			s := stats(e.Token)
			volume := units(e.Volume())
			fee := units(e.Fee)
			if e.Side == types.SideBuy {
				summary.BuyCount++
				summary.BuyVolume = summary.BuyVolume.Add(volume)
				s.Buys++
			} else {
				summary.SellCount++
				summary.SellVolume = summary.SellVolume.Add(volume)
				s.Sells++
			}
			summary.TradeFees = summary.TradeFees.Add(fee)
			s.Volume = s.Volume.Add(volume)
			s.Fees = s.Fees.Add(fee)
			s.Reserve = e.Reserve
			s.Sold = e.Sold
		case events.TokenMigrated:
			summary.Migrations++
			if strings.Contains(e.Detail, "forced=true") {
				summary.ForcedMigrations++
			}
			s := stats(e.Token)
			s.Migrated = true
			s.Reserve = 0
		case events.MigrationFailed:
			summary.FailedMigrations++
		}
	}

	summary.NetFlow = summary.BuyVolume.Sub(summary.SellVolume)
	summary.UniqueTokens = len(perToken)
	for _, s := range perToken {
		summary.Tokens = append(summary.Tokens, *s)
	}
	sort.Slice(summary.Tokens, func(i, j int) bool {
		return tokenLess(summary.Tokens[i].Token, summary.Tokens[j].Token)
	})
	return summary
}

func tokenLess(a, b string) bool {
	ai, errA := strconv.ParseUint(a, 10, 64)
	bi, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
