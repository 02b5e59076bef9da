// Package utils collects small cross-cutting helpers: typed errors and
// the tx_id allocator, mirrored from the teacher's utils/errors.go.
package utils

import (
	"errors"

	"coffeewards/configs"
)

// Error kinds surfaced to branch clients, spec.md §7.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrOffline                = errors.New("node is offline")
	ErrCoordinatorUnavailable = errors.New("no coordinator elected")
	ErrBrewFailed             = errors.New("brew failed")
	ErrTimeout                = errors.New("timeout")
	ErrInvalidAmount          = errors.New("amount must be positive")
)

// ErrorForStatus maps a branch-protocol status string (spec.md §6) to
// the sentinel error it corresponds to, for log sites that want a Go
// error rather than a wire string. Returns nil for StatusOk.
func ErrorForStatus(status string) error {
	switch status {
	case configs.StatusOk:
		return nil
	case configs.StatusInsufficientFunds:
		return ErrInsufficientFunds
	case configs.StatusOffline:
		return ErrOffline
	case configs.StatusCoordinatorUnavailable:
		return ErrCoordinatorUnavailable
	case configs.StatusBrewFailed:
		return ErrBrewFailed
	case configs.StatusTimeout:
		return ErrTimeout
	case configs.StatusInvalidAmount:
		return ErrInvalidAmount
	default:
		return errors.New("unknown status: " + status)
	}
}
