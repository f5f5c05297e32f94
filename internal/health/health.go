// Package health reports whether the settlement network is live and current.
//
// The protocol consults a Monitor before trades and migrations and refuses to
// proceed on anything but a healthy answer. A failed or timed-out check is
// reported as unhealthy, never as "unknown".
package health

import (
	"context"
	"time"
)

const (
	DefaultTimeout            = 10 * time.Second
	DefaultRetries            = 2
	DefaultStalenessThreshold = 5 * time.Minute
	DefaultPollInterval       = 15 * time.Second

	ErrorTimeout = "timeout"
)

// Status is the result of a liveness check.
type Status struct {
	Healthy     bool      `json:"healthy"`
	BlockHeight *uint64   `json:"block_height,omitempty"`
	Error       string    `json:"error,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Monitor checks network liveness.
type Monitor interface {
	CheckLiveness(ctx context.Context) Status
}

// Static always returns the same answer. Used by tests and local setups
// without an RPC endpoint.
type Static struct {
	Healthy bool
	Error   string
}

// CheckLiveness implements Monitor.
func (s Static) CheckLiveness(_ context.Context) Status {
	return Status{Healthy: s.Healthy, Error: s.Error, CheckedAt: time.Now()}
}
