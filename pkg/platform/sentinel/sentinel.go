package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: aggregate does not exist in the store
// - ErrConflict: optimistic version check failed or unique key collided
// - ErrExpired: cached projection past its lifetime
// - ErrInvalidState: stored row cannot be rehydrated into a valid aggregate
// - ErrUnavailable: backing service (postgres, redis, kafka) unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
