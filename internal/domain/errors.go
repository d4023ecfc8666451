package domain

import (
	"errors"
	"fmt"
	"time"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Session errors
	ErrNoActiveSession = errors.New("no active tracking session")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionStopped  = errors.New("session already stopped")
	ErrNotPaused       = errors.New("session is not paused")

	// On-demand query errors
	ErrNoCredits   = errors.New("no on-demand query credits remaining")
	ErrQueryFailed = errors.New("point-of-interest query failed")

	// Route query errors
	ErrRouteQueryFailed = errors.New("route-wide query failed")

	// Store errors
	ErrLedgerNotFound    = errors.New("credit ledger not found")
	ErrDiscoveryNotFound = errors.New("discovery not found")
)

// ErrInCooldown is returned when a ping arrives before the cooldown has
// elapsed. It carries the remaining wait so the UI can show a countdown.
type ErrInCooldown struct {
	Remaining time.Duration
}

func (e ErrInCooldown) Error() string {
	return fmt.Sprintf("on-demand query in cooldown for another %.0fs", e.Remaining.Seconds())
}

// InCooldown unwraps an ErrInCooldown from an error chain.
func InCooldown(err error) (ErrInCooldown, bool) {
	var e ErrInCooldown
	ok := errors.As(err, &e)
	return e, ok
}
