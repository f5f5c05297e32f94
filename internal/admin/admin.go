// Package admin implements the authorization gate in front of privileged
// protocol mutations: pool and tax address changes, fee schedule updates,
// forced migrations and pausing.
//
// The protocol trusts a single identity. Callers depend on the Authorizer
// interface so that a different policy (for example a multi-signature quorum)
// can be dropped in without touching them.
package admin

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"go.uber.org/zap"
)

// Authorizer decides whether a caller may perform a privileged operation.
type Authorizer interface {
	// Authorize returns nil for the admin and an error wrapping
	// types.ErrUnauthorized for everybody else.
	Authorize(caller solana.PublicKey) error
	// TransferAdmin replaces the admin identity. Only the current admin may call it.
	TransferAdmin(caller, newAdmin solana.PublicKey) error
	// Admin returns the identity currently in charge.
	Admin() solana.PublicKey
}

// SingleAdmin is an Authorizer backed by exactly one identity.
type SingleAdmin struct {
	mu         sync.RWMutex
	admin      solana.PublicKey
	bypassAuth bool
	logger     *zap.Logger
}

// Option customizes a SingleAdmin.
type Option func(*SingleAdmin)

// WithBypassAuth treats every caller as the admin. It exists for local test
// networks only and must stay off in production configs.
func WithBypassAuth(enabled bool) Option {
	return func(a *SingleAdmin) {
		a.bypassAuth = enabled
	}
}

// NewSingleAdmin creates the gate. A zero identity is rejected: the protocol
// would otherwise have no one able to configure it.
func NewSingleAdmin(admin solana.PublicKey, logger *zap.Logger, opts ...Option) (*SingleAdmin, error) {
	if admin.IsZero() {
		return nil, fmt.Errorf("admin identity is required: %w", types.ErrInvalidArgument)
	}

	a := &SingleAdmin{
		admin:  admin,
		logger: logger.Named("admin"),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.bypassAuth {
		a.logger.Warn("Authorization bypass enabled, every caller is treated as admin")
	}
	return a, nil
}

// Authorize implements Authorizer.
func (a *SingleAdmin) Authorize(caller solana.PublicKey) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.bypassAuth || caller.Equals(a.admin) {
		return nil
	}

	a.logger.Debug("Privileged call denied", zap.String("caller", caller.String()))
	return fmt.Errorf("caller %s: %w", caller, types.ErrUnauthorized)
}

// TransferAdmin implements Authorizer.
func (a *SingleAdmin) TransferAdmin(caller, newAdmin solana.PublicKey) error {
	if err := a.Authorize(caller); err != nil {
		return err
	}
	if newAdmin.IsZero() {
		return fmt.Errorf("new admin identity is required: %w", types.ErrInvalidArgument)
	}

	a.mu.Lock()
	old := a.admin
	a.admin = newAdmin
	a.mu.Unlock()

	a.logger.Info("Admin transferred",
		zap.String("old_admin", old.String()),
		zap.String("new_admin", newAdmin.String()))
	return nil
}

// Admin implements Authorizer.
func (a *SingleAdmin) Admin() solana.PublicKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.admin
}
