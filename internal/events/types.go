// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// EventType represents the type of event.
type EventType string

const (
	TokenCreated    EventType = "token.created"
	TradeExecuted   EventType = "trade.executed"
	TokenMigrated   EventType = "token.migrated"
	MigrationFailed EventType = "migration.failed"
	TokenPaused     EventType = "token.paused"
	TokenUnpaused   EventType = "token.unpaused"
	ConfigChanged   EventType = "config.changed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps an event of type t with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// TokenCreatedEvent is emitted after the factory mints a new token.
type TokenCreatedEvent struct {
	BaseEvent
	Token   types.Token
	FeePaid uint64
}

// TradeExecutedEvent is emitted for every accepted curve buy or sell.
type TradeExecutedEvent struct {
	BaseEvent
	Trade types.TradeResult
}

// TokenMigratedEvent is emitted once a token is trading on its pool.
type TokenMigratedEvent struct {
	BaseEvent
	TokenIndex  uint64
	PoolAddress solana.PublicKey
	Reserve     uint64
	SeedTokens  uint64
	Forced      bool
}

// MigrationFailedEvent is emitted when a threshold-triggered migration could
// not complete and the token stayed on its curve.
type MigrationFailedEvent struct {
	BaseEvent
	TokenIndex       uint64
	Error            error
	RequiresOperator bool
}

// TokenStatusEvent is emitted on admin pause and unpause.
type TokenStatusEvent struct {
	BaseEvent
	TokenIndex uint64
	Caller     solana.PublicKey
}

// ConfigChangedEvent is emitted when a privileged setter changes a singleton.
type ConfigChangedEvent struct {
	BaseEvent
	Field  string // "pool_address", "tax_address", "fees", "admin"
	Caller solana.PublicKey
	Value  string
}
