// internal/ledger/ledger.go
package ledger

import (
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// settlementAsset is the asset id of the base settlement currency. Token
// index i is stored as asset i+1.
const settlementAsset uint64 = 0

type account struct {
	asset uint64
	owner solana.PublicKey
}

// Ledger holds settlement balances and per-token holdings.
//
// It is not safe for concurrent use; the protocol serializes every access.
type Ledger struct {
	balances map[account]uint64
	supply   map[uint64]uint64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[account]uint64),
		supply:   make(map[uint64]uint64),
	}
}

// Balance returns the settlement balance of owner.
func (l *Ledger) Balance(owner solana.PublicKey) uint64 {
	return l.balances[account{asset: settlementAsset, owner: owner}]
}

// TokenBalance returns how many units of token owner holds.
func (l *Ledger) TokenBalance(token uint64, owner solana.PublicKey) uint64 {
	return l.balances[account{asset: tokenAsset(token), owner: owner}]
}

// TotalSupply returns the minted-minus-burned supply of token.
func (l *Ledger) TotalSupply(token uint64) uint64 {
	return l.supply[tokenAsset(token)]
}

// Deposit credits settlement from outside the protocol.
func (l *Ledger) Deposit(owner solana.PublicKey, amount uint64) error {
	b := l.Batch()
	b.Deposit(owner, amount)
	return b.Commit()
}

// Batch starts a group of movements that apply all together or not at all.
func (l *Ledger) Batch() *Batch {
	return &Batch{ledger: l}
}

func tokenAsset(token uint64) uint64 {
	return token + 1
}

type opKind int

const (
	opCredit opKind = iota
	opDebit
	opMint
	opBurn
)

type op struct {
	kind   opKind
	acct   account
	amount uint64
}

// Batch collects ledger movements. Nothing is visible until Commit succeeds.
type Batch struct {
	ledger *Ledger
	ops    []op
}

// Deposit queues an external settlement credit.
func (b *Batch) Deposit(owner solana.PublicKey, amount uint64) *Batch {
	b.ops = append(b.ops, op{kind: opCredit, acct: account{asset: settlementAsset, owner: owner}, amount: amount})
	return b
}

// Withdraw queues an external settlement debit, e.g. value locked into a curve reserve.
func (b *Batch) Withdraw(owner solana.PublicKey, amount uint64) *Batch {
	b.ops = append(b.ops, op{kind: opDebit, acct: account{asset: settlementAsset, owner: owner}, amount: amount})
	return b
}

// Transfer queues a settlement transfer.
func (b *Batch) Transfer(from, to solana.PublicKey, amount uint64) *Batch {
	return b.Withdraw(from, amount).Deposit(to, amount)
}

// Mint queues newly issued token units for owner.
func (b *Batch) Mint(token uint64, owner solana.PublicKey, amount uint64) *Batch {
	b.ops = append(b.ops, op{kind: opMint, acct: account{asset: tokenAsset(token), owner: owner}, amount: amount})
	return b
}

// Burn queues destruction of token units held by owner.
func (b *Batch) Burn(token uint64, owner solana.PublicKey, amount uint64) *Batch {
	b.ops = append(b.ops, op{kind: opBurn, acct: account{asset: tokenAsset(token), owner: owner}, amount: amount})
	return b
}

// Commit validates every queued movement against a scratch copy of the
// touched accounts and, only if all of them succeed, writes the result back.
func (b *Batch) Commit() error {
	balances := make(map[account]uint64, len(b.ops))
	supply := make(map[uint64]uint64)

	balanceOf := func(a account) uint64 {
		if v, ok := balances[a]; ok {
			return v
		}
		return b.ledger.balances[a]
	}
	supplyOf := func(asset uint64) uint64 {
		if v, ok := supply[asset]; ok {
			return v
		}
		return b.ledger.supply[asset]
	}

	for _, o := range b.ops {
		cur := balanceOf(o.acct)
		switch o.kind {
		case opCredit, opMint:
			next, carry := bits.Add64(cur, o.amount, 0)
			if carry != 0 {
				return fmt.Errorf("balance overflow for %s: %w", o.acct.owner, types.ErrInvalidArgument)
			}
			balances[o.acct] = next
			if o.kind == opMint {
				s, carry := bits.Add64(supplyOf(o.acct.asset), o.amount, 0)
				if carry != 0 {
					return fmt.Errorf("supply overflow: %w", types.ErrInvalidArgument)
				}
				supply[o.acct.asset] = s
			}
		case opDebit, opBurn:
			if cur < o.amount {
				return fmt.Errorf("%s holds %d, needs %d: %w",
					o.acct.owner, cur, o.amount, types.ErrInsufficientBalance)
			}
			balances[o.acct] = cur - o.amount
			if o.kind == opBurn {
				supply[o.acct.asset] = supplyOf(o.acct.asset) - o.amount
			}
		}
	}

	for a, v := range balances {
		if v == 0 {
			delete(b.ledger.balances, a)
			continue
		}
		b.ledger.balances[a] = v
	}
	for asset, v := range supply {
		b.ledger.supply[asset] = v
	}
	b.ops = nil
	return nil
}
