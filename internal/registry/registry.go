// =================================
// File: internal/registry/registry.go
// =================================
package registry

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/launchpad/internal/state"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"go.uber.org/zap"
)

const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
)

// Registry is the token factory. It owns the token counter, the creation
// metadata and the process-wide pool and tax pointers.
type Registry struct {
	logger *zap.Logger
}

// New creates the registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{logger: logger.Named("registry")}
}

// CreateToken allocates the next index, mints the initial supply to caller,
// forwards paidFee to the tax address and opens the token's curve.
func (r *Registry) CreateToken(st *state.State, caller solana.PublicKey, name, ticker string, paidFee uint64) (*types.Token, error) {
	name = strings.TrimSpace(name)
	ticker = strings.TrimSpace(ticker)
	if err := validateMetadata(name, ticker); err != nil {
		return nil, err
	}
	if paidFee < st.Fees.CreationFee {
		r.logger.Warn("Token creation rejected, fee too low",
			zap.String("creator", caller.String()),
			zap.Uint64("paid_fee", paidFee),
			zap.Uint64("creation_fee", st.Fees.CreationFee))
		return nil, fmt.Errorf("paid %d, creation fee is %d: %w", paidFee, st.Fees.CreationFee, types.ErrInsufficientFee)
	}

	index := st.CurrentTokenIndex()
	mint, curveAddr, err := DeriveAddresses(st.Params.ProgramID, index)
	if err != nil {
		return nil, err
	}

	err = st.Ledger.Batch().
		Transfer(caller, st.TaxAddress, paidFee).
		Mint(index, caller, st.Params.InitialSupply).
		Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to settle token creation: %w", err)
	}

	token := &types.Token{
		Index:         index,
		Name:          name,
		Symbol:        ticker,
		Address:       mint,
		CurveAddress:  curveAddr,
		Creator:       caller,
		InitialSupply: st.Params.InitialSupply,
		CreatedAt:     st.Now().UTC(),
	}
	st.Tokens = append(st.Tokens, token)
	st.Curves = append(st.Curves, &types.CurveState{
		K:      new(uint256.Int).Set(st.Params.K),
		Status: types.StatusTradingOnCurve,
	})

	r.logger.Info("Token created",
		zap.Uint64("index", index),
		zap.String("name", name),
		zap.String("symbol", ticker),
		zap.String("address", mint.String()),
		zap.String("creator", caller.String()),
		zap.Uint64("fee", paidFee))

	return token, nil
}

// GetToken returns the metadata of token index.
func (r *Registry) GetToken(st *state.State, index uint64) (*types.Token, error) {
	token, _, err := st.Token(index)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// SetPoolAddress points future migrations at addr. Tokens that already
// migrated keep their own binding.
func (r *Registry) SetPoolAddress(st *state.State, caller, addr solana.PublicKey) error {
	if err := st.Gate.Authorize(caller); err != nil {
		return err
	}
	if addr.IsZero() {
		return fmt.Errorf("pool address is required: %w", types.ErrInvalidArgument)
	}

	old := st.PoolPointer
	st.PoolPointer = addr
	r.logger.Info("Pool address updated",
		zap.String("old", old.String()),
		zap.String("new", addr.String()))
	return nil
}

// SetTaxAddress routes all future fees to addr. Collected fees stay where they are.
func (r *Registry) SetTaxAddress(st *state.State, caller, addr solana.PublicKey) error {
	if err := st.Gate.Authorize(caller); err != nil {
		return err
	}
	if addr.IsZero() {
		return fmt.Errorf("tax address is required: %w", types.ErrInvalidArgument)
	}

	old := st.TaxAddress
	st.TaxAddress = addr
	r.logger.Info("Tax address updated",
		zap.String("old", old.String()),
		zap.String("new", addr.String()))
	return nil
}

// DeriveAddresses returns the deterministic token and curve addresses for index.
func DeriveAddresses(programID solana.PublicKey, index uint64) (mint, curve solana.PublicKey, err error) {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, index)

	mint, _, err = solana.FindProgramAddress([][]byte{[]byte("mint"), seed}, programID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive token address: %w", err)
	}

	curve, _, err = solana.FindProgramAddress([][]byte{[]byte("bonding-curve"), mint.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive bonding curve address: %w", err)
	}
	return mint, curve, nil
}

func validateMetadata(name, ticker string) error {
	if name == "" || ticker == "" {
		return fmt.Errorf("name and ticker are required: %w", types.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name longer than %d characters: %w", MaxNameLength, types.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(ticker) > MaxSymbolLength {
		return fmt.Errorf("ticker longer than %d characters: %w", MaxSymbolLength, types.ErrInvalidArgument)
	}
	return nil
}
