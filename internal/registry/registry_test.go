package registry_test

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/registry"
	"github.com/rovshanmuradov/launchpad/internal/state/statetest"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCreateTokenScenario(t *testing.T) {
	f := statetest.New(t, types.FeeSchedule{CreationFee: 100, TradeFeeBps: 100})
	r := registry.New(zaptest.NewLogger(t))
	creator := statetest.Key(t)
	f.Fund(t, creator, 100)

	token, err := r.CreateToken(f.State, creator, "Doge Two", "DOGE2", 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), token.Index)
	assert.Equal(t, uint64(1), f.State.CurrentTokenIndex())
	assert.Equal(t, uint64(100), f.State.Ledger.Balance(f.Tax), "creation fee goes to the tax address")
	assert.Zero(t, f.State.Ledger.Balance(creator))
	assert.Equal(t, uint64(statetest.InitialSupply), f.State.Ledger.TokenBalance(0, creator))
	assert.Equal(t, uint64(statetest.InitialSupply), f.State.Ledger.TotalSupply(0))

	_, cs, err := f.State.Token(0)
	require.NoError(t, err)
	assert.Equal(t, types.StatusTradingOnCurve, cs.Status)
	assert.Zero(t, cs.Reserve)
	assert.Zero(t, cs.Sold)
	assert.True(t, cs.K.Eq(f.State.Params.K))
	assert.NotSame(t, f.State.Params.K, cs.K, "each curve owns its K")
}

func TestCreateTokenIndexSequence(t *testing.T) {
	f := statetest.New(t, types.FeeSchedule{})
	r := registry.New(zaptest.NewLogger(t))
	creator := statetest.Key(t)

	seen := make(map[solana.PublicKey]bool)
	for i := uint64(0); i < 5; i++ {
		token, err := r.CreateToken(f.State, creator, "Token", "TKN", 0)
		require.NoError(t, err)
		assert.Equal(t, i, token.Index)
		assert.False(t, seen[token.Address], "addresses are unique")
		seen[token.Address] = true
	}
	assert.Equal(t, uint64(5), f.State.CurrentTokenIndex())
}

func TestCreateTokenRejections(t *testing.T) {
	tests := []struct {
		name    string
		fund    uint64
		tokName string
		ticker  string
		paid    uint64
		wantErr error
	}{
		{"fee below creation fee", 1_000, "Token", "TKN", 99, types.ErrInsufficientFee},
		{"fee not held", 50, "Token", "TKN", 100, types.ErrInsufficientBalance},
		{"empty name", 1_000, "  ", "TKN", 100, types.ErrInvalidArgument},
		{"empty ticker", 1_000, "Token", "", 100, types.ErrInvalidArgument},
		{"long name", 1_000, strings.Repeat("n", registry.MaxNameLength+1), "TKN", 100, types.ErrInvalidArgument},
		{"long ticker", 1_000, "Token", strings.Repeat("T", registry.MaxSymbolLength+1), 100, types.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := statetest.New(t, types.FeeSchedule{CreationFee: 100})
			r := registry.New(zaptest.NewLogger(t))
			creator := statetest.Key(t)
			f.Fund(t, creator, tt.fund)

			_, err := r.CreateToken(f.State, creator, tt.tokName, tt.ticker, tt.paid)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Zero(t, f.State.CurrentTokenIndex(), "counter advances only on success")
			assert.Equal(t, tt.fund, f.State.Ledger.Balance(creator))
			assert.Zero(t, f.State.Ledger.Balance(f.Tax))
			assert.Zero(t, f.State.Ledger.TotalSupply(0))
		})
	}
}

func TestGetToken(t *testing.T) {
	f := statetest.New(t, types.FeeSchedule{})
	r := registry.New(zaptest.NewLogger(t))

	_, err := r.GetToken(f.State, 0)
	assert.ErrorIs(t, err, types.ErrNotFound)

	created, err := r.CreateToken(f.State, statetest.Key(t), "Token", "TKN", 0)
	require.NoError(t, err)

	got, err := r.GetToken(f.State, 0)
	require.NoError(t, err)
	assert.Equal(t, created.Address, got.Address)
	assert.Equal(t, "TKN", got.Symbol)

	_, err = r.GetToken(f.State, 1)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSetPoolAddress(t *testing.T) {
	f := statetest.New(t, types.FeeSchedule{})
	r := registry.New(zaptest.NewLogger(t))
	pool := statetest.Key(t)

	err := r.SetPoolAddress(f.State, statetest.Key(t), pool)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.True(t, f.State.PoolPointer.IsZero(), "rejected call leaves state unchanged")

	err = r.SetPoolAddress(f.State, f.Admin, solana.PublicKey{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	require.NoError(t, r.SetPoolAddress(f.State, f.Admin, pool))
	assert.Equal(t, pool, f.State.PoolPointer)
}

func TestSetTaxAddress(t *testing.T) {
	f := statetest.New(t, types.FeeSchedule{CreationFee: 10})
	r := registry.New(zaptest.NewLogger(t))
	oldTax, newTax := f.Tax, statetest.Key(t)
	creator := statetest.Key(t)
	f.Fund(t, creator, 20)

	err := r.SetTaxAddress(f.State, creator, newTax)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = r.CreateToken(f.State, creator, "A", "A", 10)
	require.NoError(t, err)
	require.NoError(t, r.SetTaxAddress(f.State, f.Admin, newTax))
	_, err = r.CreateToken(f.State, creator, "B", "B", 10)
	require.NoError(t, err)

	assert.Equal(t, uint64(10), f.State.Ledger.Balance(oldTax), "collected fees stay put")
	assert.Equal(t, uint64(10), f.State.Ledger.Balance(newTax))
}

func TestDeriveAddressesDeterministic(t *testing.T) {
	program := statetest.Params().ProgramID

	mint1, curve1, err := registry.DeriveAddresses(program, 7)
	require.NoError(t, err)
	mint2, curve2, err := registry.DeriveAddresses(program, 7)
	require.NoError(t, err)
	other, _, err := registry.DeriveAddresses(program, 8)
	require.NoError(t, err)

	assert.Equal(t, mint1, mint2)
	assert.Equal(t, curve1, curve2)
	assert.NotEqual(t, mint1, curve1)
	assert.NotEqual(t, mint1, other)
}
