// Package statetest builds protocol states for tests.
package statetest

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/launchpad/internal/admin"
	"github.com/rovshanmuradov/launchpad/internal/state"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Small curve: V(0) = 1000, V(cap) = 5000, so completing the curve costs 4000.
const (
	T0            = 1_000_000
	V0            = 1_000
	SupplyCap     = 800_000
	InitialSupply = 1_000_000
	SeedTokens    = 200_000
)

// Fixture is a ready-to-use state plus the identities it was built with.
type Fixture struct {
	State *state.State
	Admin solana.PublicKey
	Tax   solana.PublicKey
}

// Params returns small curve parameters that keep test arithmetic readable.
func Params() state.Params {
	return state.Params{
		ProgramID:            solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"),
		InitialSupply:        InitialSupply,
		VirtualTokenReserves: T0,
		K:                    uint256.NewInt(T0 * V0),
		SupplyCap:            SupplyCap,
		PoolSeedTokens:       SeedTokens,
	}
}

// Key returns a fresh random identity.
func Key(t testing.TB) solana.PublicKey {
	t.Helper()
	return PrivateKey(t).PublicKey()
}

// PrivateKey returns a fresh random signing key.
func PrivateKey(t testing.TB) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

// New builds a state with the given fees and optional param overrides.
func New(t testing.TB, fees types.FeeSchedule, mutate ...func(*state.Params)) *Fixture {
	t.Helper()
	return NewWithAdmin(t, Key(t), fees, mutate...)
}

// NewWithAdmin is New with a caller-chosen admin identity.
func NewWithAdmin(t testing.TB, adminKey solana.PublicKey, fees types.FeeSchedule, mutate ...func(*state.Params)) *Fixture {
	t.Helper()

	params := Params()
	for _, m := range mutate {
		m(&params)
	}

	gate, err := admin.NewSingleAdmin(adminKey, zap.NewNop())
	require.NoError(t, err)

	tax := Key(t)
	st, err := state.New(gate, params, tax, fees)
	require.NoError(t, err)

	return &Fixture{State: st, Admin: adminKey, Tax: tax}
}

// AddToken appends a trading token directly, bypassing the factory.
func (f *Fixture) AddToken(t testing.TB) uint64 {
	t.Helper()
	index := f.State.CurrentTokenIndex()
	f.State.Tokens = append(f.State.Tokens, &types.Token{
		Index:         index,
		Name:          "Test",
		Symbol:        "TST",
		Address:       Key(t),
		CurveAddress:  Key(t),
		Creator:       Key(t),
		InitialSupply: f.State.Params.InitialSupply,
	})
	f.State.Curves = append(f.State.Curves, &types.CurveState{
		K:      f.State.Params.K.Clone(),
		Status: types.StatusTradingOnCurve,
	})
	return index
}

// Fund deposits settlement to owner.
func (f *Fixture) Fund(t testing.TB, owner solana.PublicKey, amount uint64) {
	t.Helper()
	require.NoError(t, f.State.Ledger.Deposit(owner, amount))
}
