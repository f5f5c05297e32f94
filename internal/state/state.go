// Package state holds the single top-level context object of the protocol.
//
// Every process-wide singleton (admin gate, pool pointer, tax address, fee
// schedule) and every per-token record lives in State as an explicit field.
// Component packages receive *State on each operation instead of reaching for
// globals, which keeps them testable in isolation.
package state

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/launchpad/internal/admin"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Params are the deployment-time constants of the factory and the curve.
type Params struct {
	// ProgramID seeds the derived token and curve addresses.
	ProgramID solana.PublicKey

	// InitialSupply is minted to the creator of every token.
	InitialSupply uint64

	// VirtualTokenReserves is T0, the virtual token side of the curve.
	VirtualTokenReserves uint64
	// K is the default shape constant copied into each new curve.
	K *uint256.Int
	// SupplyCap bounds the tokens the curve may sell. Must be below T0.
	SupplyCap uint64

	// MigrationReserveThreshold triggers migration once the reserve reaches it. Zero disables it.
	MigrationReserveThreshold uint64
	// PoolSeedTokens are minted to the pool alongside the reserve on migration.
	PoolSeedTokens uint64
}

// Validate checks the invariants the curve math relies on.
func (p Params) Validate() error {
	if p.VirtualTokenReserves == 0 {
		return fmt.Errorf("virtual token reserves must be positive: %w", types.ErrInvalidArgument)
	}
	if p.SupplyCap == 0 || p.SupplyCap >= p.VirtualTokenReserves {
		return fmt.Errorf("supply cap %d must be in (0, %d): %w",
			p.SupplyCap, p.VirtualTokenReserves, types.ErrInvalidArgument)
	}
	if p.K == nil || p.K.IsZero() {
		return fmt.Errorf("curve constant K must be positive: %w", types.ErrInvalidArgument)
	}
	// the virtual settlement side at the supply cap must fit the uint64 ledger
	v0 := new(uint256.Int).Div(p.K, uint256.NewInt(p.VirtualTokenReserves-p.SupplyCap))
	if !v0.IsUint64() {
		return fmt.Errorf("curve constant K too large for settlement precision: %w", types.ErrInvalidArgument)
	}
	return nil
}

// State is the complete protocol state.
type State struct {
	Gate   admin.Authorizer
	Params Params

	// PoolPointer is zero until an admin sets it.
	PoolPointer solana.PublicKey
	TaxAddress  solana.PublicKey
	Fees        types.FeeSchedule

	// Tokens and Curves are indexed by token index.
	Tokens []*types.Token
	Curves []*types.CurveState

	Ledger *ledger.Ledger
	Now    func() time.Time
}

// New builds an empty state.
func New(gate admin.Authorizer, params Params, taxAddress solana.PublicKey, fees types.FeeSchedule) (*State, error) {
	if gate == nil {
		return nil, fmt.Errorf("admin gate is required: %w", types.ErrInvalidArgument)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if taxAddress.IsZero() {
		return nil, fmt.Errorf("tax address is required: %w", types.ErrInvalidArgument)
	}
	if err := ValidateFees(fees); err != nil {
		return nil, err
	}

	return &State{
		Gate:       gate,
		Params:     params,
		TaxAddress: taxAddress,
		Fees:       fees,
		Ledger:     ledger.New(),
		Now:        time.Now,
	}, nil
}

// ValidateFees rejects trade fee rates of 100% or more.
func ValidateFees(fees types.FeeSchedule) error {
	if fees.TradeFeeBps >= 10_000 {
		return fmt.Errorf("trade fee %d bps must be below 10000: %w", fees.TradeFeeBps, types.ErrInvalidArgument)
	}
	return nil
}

// CurrentTokenIndex is the index the next created token will receive.
func (s *State) CurrentTokenIndex() uint64 {
	return uint64(len(s.Tokens))
}

// Token looks up a token and its curve.
func (s *State) Token(index uint64) (*types.Token, *types.CurveState, error) {
	if index >= s.CurrentTokenIndex() {
		return nil, nil, fmt.Errorf("token %d: %w", index, types.ErrNotFound)
	}
	return s.Tokens[index], s.Curves[index], nil
}
