package admin

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func TestAuthorize(t *testing.T) {
	owner, stranger := newKey(t), newKey(t)
	gate, err := NewSingleAdmin(owner, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, gate.Authorize(owner))
	assert.ErrorIs(t, gate.Authorize(stranger), types.ErrUnauthorized)
	assert.ErrorIs(t, gate.Authorize(solana.PublicKey{}), types.ErrUnauthorized)
}

func TestZeroAdminRejected(t *testing.T) {
	_, err := NewSingleAdmin(solana.PublicKey{}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestBypassAuth(t *testing.T) {
	gate, err := NewSingleAdmin(newKey(t), zaptest.NewLogger(t), WithBypassAuth(true))
	require.NoError(t, err)

	assert.NoError(t, gate.Authorize(newKey(t)))
}

func TestTransferAdmin(t *testing.T) {
	owner, next, stranger := newKey(t), newKey(t), newKey(t)
	gate, err := NewSingleAdmin(owner, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Run("stranger cannot transfer", func(t *testing.T) {
		err := gate.TransferAdmin(stranger, stranger)
		assert.ErrorIs(t, err, types.ErrUnauthorized)
		assert.Equal(t, owner, gate.Admin())
	})

	t.Run("zero identity rejected", func(t *testing.T) {
		err := gate.TransferAdmin(owner, solana.PublicKey{})
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
		assert.Equal(t, owner, gate.Admin())
	})

	t.Run("admin hands over", func(t *testing.T) {
		require.NoError(t, gate.TransferAdmin(owner, next))
		assert.Equal(t, next, gate.Admin())
		assert.ErrorIs(t, gate.Authorize(owner), types.ErrUnauthorized)
		assert.NoError(t, gate.Authorize(next))
	})
}
