package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coffeewards/configs"
)

func TestErrorForStatusRoundTripsKnownStatuses(t *testing.T) {
	cases := map[string]error{
		configs.StatusOk:                    nil,
		configs.StatusInsufficientFunds:     ErrInsufficientFunds,
		configs.StatusOffline:               ErrOffline,
		configs.StatusCoordinatorUnavailable: ErrCoordinatorUnavailable,
		configs.StatusBrewFailed:            ErrBrewFailed,
		configs.StatusTimeout:               ErrTimeout,
		configs.StatusInvalidAmount:         ErrInvalidAmount,
	}
	for status, want := range cases {
		assert.Equal(t, want, ErrorForStatus(status))
	}
}

func TestErrorForStatusRejectsUnknownStatus(t *testing.T) {
	err := ErrorForStatus("NotARealStatus")
	assert.Error(t, err)
}
