// internal/curve/math.go
package curve

import (
	"github.com/holiman/uint256"
)

const bpsDenominator = 10_000

// Curve is the virtual constant-product pricing function of one token.
//
// With T0 virtual token reserves and shape constant K the settlement needed to
// sell s tokens from the curve is V(s) - V(0), where V(s) = ceil(K / (T0 - s)).
// Every amount the engine moves is a difference of V at two supply levels, so
// buying d tokens and selling the same d back is exactly reversible and all
// rounding stays inside the reserve.
type Curve struct {
	K   *uint256.Int
	T0  uint64
	Cap uint64
}

// VirtualSettlement returns V(sold). sold must be below T0.
func (c Curve) VirtualSettlement(sold uint64) *uint256.Int {
	return ceilDiv(c.K, uint256.NewInt(c.T0-sold))
}

// Cost returns the settlement needed to move the curve from sold to sold+amount.
func (c Curve) Cost(sold, amount uint64) *uint256.Int {
	hi := c.VirtualSettlement(sold + amount)
	return hi.Sub(hi, c.VirtualSettlement(sold))
}

// TokensForSettlement returns the largest token amount whose cost at sold
// does not exceed net, clamped to the supply cap. capped reports the clamp.
func (c Curve) TokensForSettlement(sold, net uint64) (tokens uint64, capped bool) {
	if sold >= c.Cap {
		return 0, true
	}

	// V(sold+d) <= Y  <=>  T0-sold-d >= ceil(K/Y)
	y := new(uint256.Int).Add(c.VirtualSettlement(sold), uint256.NewInt(net))
	minRemaining := ceilDiv(c.K, y)

	remaining := uint256.NewInt(c.T0 - sold)
	if !minRemaining.Lt(remaining) {
		return 0, false
	}
	tokens = new(uint256.Int).Sub(remaining, minRemaining).Uint64()

	if tokens > c.Cap-sold {
		return c.Cap - sold, true
	}
	return tokens, false
}

// SellProceeds returns the gross settlement released by selling amount at sold.
// amount must not exceed sold.
func (c Curve) SellProceeds(sold, amount uint64) *uint256.Int {
	return c.Cost(sold-amount, amount)
}

// FeeFor returns ceil(amount * bps / 10000), rounding in favor of the protocol.
func FeeFor(amount, bps uint64) uint64 {
	if bps == 0 || amount == 0 {
		return 0
	}
	num := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(bps))
	return ceilDiv(num, uint256.NewInt(bpsDenominator)).Uint64()
}

// GrossForNet returns the smallest gross whose after-fee remainder covers net.
func GrossForNet(net, bps uint64) uint64 {
	if bps == 0 {
		return net
	}
	num := new(uint256.Int).Mul(uint256.NewInt(net), uint256.NewInt(bpsDenominator))
	gross := ceilDiv(num, uint256.NewInt(bpsDenominator-bps)).Uint64()
	for gross-FeeFor(gross, bps) < net {
		gross++
	}
	// step back while a smaller gross still covers net
	for gross > net && gross-1-FeeFor(gross-1, bps) >= net {
		gross--
	}
	return gross
}

func ceilDiv(x, y *uint256.Int) *uint256.Int {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(x, y, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}
