package state_test

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/launchpad/internal/state"
	"github.com/rovshanmuradov/launchpad/internal/state/statetest"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*state.Params)
		ok     bool
	}{
		{"defaults", func(*state.Params) {}, true},
		{"zero reserves", func(p *state.Params) { p.VirtualTokenReserves = 0 }, false},
		{"zero cap", func(p *state.Params) { p.SupplyCap = 0 }, false},
		{"cap at T0", func(p *state.Params) { p.SupplyCap = p.VirtualTokenReserves }, false},
		{"nil K", func(p *state.Params) { p.K = nil }, false},
		{"zero K", func(p *state.Params) { p.K = uint256.NewInt(0) }, false},
		{"K too large", func(p *state.Params) {
			p.K = new(uint256.Int).Lsh(uint256.NewInt(1), 200)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := statetest.Params()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, types.ErrInvalidArgument)
			}
		})
	}
}

func TestValidateFees(t *testing.T) {
	assert.NoError(t, state.ValidateFees(types.FeeSchedule{TradeFeeBps: 9_999}))
	assert.ErrorIs(t, state.ValidateFees(types.FeeSchedule{TradeFeeBps: 10_000}), types.ErrInvalidArgument)
}

func TestNewRequiresTaxAddress(t *testing.T) {
	f := statetest.New(t, types.FeeSchedule{})
	_, err := state.New(f.State.Gate, statetest.Params(), solana.PublicKey{}, types.FeeSchedule{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestTokenLookup(t *testing.T) {
	f := statetest.New(t, types.FeeSchedule{})
	assert.Zero(t, f.State.CurrentTokenIndex())

	_, _, err := f.State.Token(0)
	assert.ErrorIs(t, err, types.ErrNotFound)

	index := f.AddToken(t)
	token, cs, err := f.State.Token(index)
	require.NoError(t, err)
	assert.Equal(t, index, token.Index)
	assert.Equal(t, types.StatusTradingOnCurve, cs.Status)
	assert.Equal(t, uint64(1), f.State.CurrentTokenIndex())
}
