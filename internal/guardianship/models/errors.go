package models

import (
	"errors"
)

// Hard invariant violations. These are thrown synchronously from commands,
// never retried, and surface directly as caller-visible validation failures.
// Soft compliance findings never use these; they accumulate as warnings on
// the aggregate instead.
var (
	ErrInvalidGuardianship = errors.New("invalid guardianship")
	ErrGuardianIneligible  = errors.New("guardian ineligible")
	ErrWardNotMinor        = errors.New("ward is neither a minor nor incapacitated")
	ErrWardNotFound        = errors.New("ward not found or deceased")
	ErrGuardianNotFound    = errors.New("guardian not found")
	ErrMultipleGuardians   = errors.New("conflicting co-guardian appointment")

	// ErrReplayUnsupported marks event-log replay as an explicit gap: the
	// store is snapshot-based and the outbox is kept for audit only.
	// Rebuilding aggregates from events is not implemented.
	ErrReplayUnsupported = errors.New("event replay unsupported: aggregate state is snapshot-based")
)
