package check

import "errors"

// Sentinel errors returned by coordinator lookups.
var (
	// ErrNotFound indicates no check order exists for the given ID.
	ErrNotFound = errors.New("check order not found")

	// ErrNotReady indicates the check order has not completed yet.
	ErrNotReady = errors.New("check order not completed")

	// ErrNotCancelable indicates the order already reached a terminal state.
	ErrNotCancelable = errors.New("check order cannot be cancelled")
)
