package tracker

import "errors"

var (
	// ErrInvalidInput marks missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized marks a missing or wrong control secret.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTrackingDisabled is returned for signals received while the idle
	// threshold is zero. The request is declined, not failed.
	ErrTrackingDisabled = errors.New("tracking disabled")
)
