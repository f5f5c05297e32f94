// internal/types/slippage.go
package types

// SlippageType selects how the minimum accepted output of a trade is derived.
type SlippageType string

const (
	// SlippageFixed uses Value as the exact minimum output.
	SlippageFixed SlippageType = "fixed"
	// SlippagePercent allows the output to drop by Value basis points below the quote.
	SlippagePercent SlippageType = "bps"
	// SlippageNone disables the bound.
	SlippageNone SlippageType = "none"
)

// SlippageConfig configures the minimum-output bound of a trade.
type SlippageConfig struct {
	Type SlippageType `json:"type"`
	// Value is the minimum output for SlippageFixed and a tolerance in basis
	// points for SlippagePercent. Ignored for SlippageNone.
	Value uint64 `json:"value"`
}

// CalculateMinAmountOut derives the minimum output from a quoted amount.
// The percent branch rounds down so the bound is never stricter than asked.
func CalculateMinAmountOut(expectedAmount uint64, config SlippageConfig) uint64 {
	switch config.Type {
	case SlippageFixed:
		return config.Value
	case SlippagePercent:
		if config.Value >= 10_000 {
			return 0
		}
		// split so hi*keep cannot overflow
		hi := expectedAmount / 10_000
		lo := expectedAmount % 10_000
		keep := 10_000 - config.Value
		return hi*keep + lo*keep/10_000
	default:
		return 0
	}
}
