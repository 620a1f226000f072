package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a referenced entity (tariff, subscription, tracking)
	// does not exist. User-facing, never retried.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness or one-way-transition violation:
	// duplicate tracking, or an attempt to rebind a slot to a different account.
	ErrConflict = errors.New("conflict")
	// ErrQuotaExhausted means requests_available is insufficient for the action.
	ErrQuotaExhausted = errors.New("request quota exhausted")
	// ErrAmountMismatch means a payment amount does not match the tariff price.
	// The payment is rejected at the boundary and logged for ops review.
	ErrAmountMismatch = errors.New("payment amount mismatch")
)

// ProviderError is an unexpected response from the profile-data provider.
// Propagated to the caller and logged, never retried by the core.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// SoftProviderError is a structured, expected failure from the provider
// (e.g. "not enough data collected yet"). It is a normal branch: the detail
// is shown to the user verbatim and nothing is logged as an error.
type SoftProviderError struct {
	Detail string
}

func (e *SoftProviderError) Error() string {
	return e.Detail
}

// AsSoftError unwraps err into a SoftProviderError if it is one.
func AsSoftError(err error) (*SoftProviderError, bool) {
	var soft *SoftProviderError
	if errors.As(err, &soft) {
		return soft, true
	}
	return nil, false
}
