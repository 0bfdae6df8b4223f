// Package domain holds typed identifiers shared across bounded contexts.
//
// IDs are distinct types over uuid.UUID so the compiler rejects passing a
// guardian ID where a ward ID is expected. Parse functions enforce the
// invariant that IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "walezi/pkg/domain-errors"
)

// GuardianshipID identifies a guardianship aggregate.
type GuardianshipID uuid.UUID

// GuardianID identifies a guardian within (and across) guardianships.
type GuardianID uuid.UUID

// WardID identifies the ward the guardianship protects.
type WardID uuid.UUID

func parse(raw string, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be empty", kind)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", kind)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", kind)
	}
	return id, nil
}

// ParseGuardianshipID validates and converts a raw string.
func ParseGuardianshipID(raw string) (GuardianshipID, error) {
	id, err := parse(raw, "guardianship ID")
	return GuardianshipID(id), err
}

// ParseGuardianID validates and converts a raw string.
func ParseGuardianID(raw string) (GuardianID, error) {
	id, err := parse(raw, "guardian ID")
	return GuardianID(id), err
}

// ParseWardID validates and converts a raw string.
func ParseWardID(raw string) (WardID, error) {
	id, err := parse(raw, "ward ID")
	return WardID(id), err
}

// NewGuardianshipID returns a fresh random ID.
func NewGuardianshipID() GuardianshipID { return GuardianshipID(uuid.New()) }

// NewGuardianID returns a fresh random ID.
func NewGuardianID() GuardianID { return GuardianID(uuid.New()) }

// NewWardID returns a fresh random ID.
func NewWardID() WardID { return WardID(uuid.New()) }

func (id GuardianshipID) String() string { return uuid.UUID(id).String() }
func (id GuardianID) String() string     { return uuid.UUID(id).String() }
func (id WardID) String() string         { return uuid.UUID(id).String() }

func (id GuardianshipID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id GuardianID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id WardID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

func (id GuardianshipID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id GuardianID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id WardID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }

func (id *GuardianshipID) UnmarshalText(text []byte) error {
	parsed, err := ParseGuardianshipID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *GuardianID) UnmarshalText(text []byte) error {
	parsed, err := ParseGuardianID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *WardID) UnmarshalText(text []byte) error {
	parsed, err := ParseWardID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SameParty reports whether a guardian and a ward are the same person.
// A person cannot be both guardian and ward of the same guardianship.
func SameParty(g GuardianID, w WardID) bool {
	return uuid.UUID(g) == uuid.UUID(w)
}
