package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: key absent, or its payload undecodable
// - ErrConflict: optimistic concurrency retries exhausted
// - ErrUnavailable: external store unreachable or not initialized
// - ErrRejected: write declined by the store (e.g. authorization refused)
// - ErrPartialFailure: record written but not registered in the index
// - ErrInvalidState: entity in wrong state for requested operation
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrUnavailable    = errors.New("store unavailable")
	ErrRejected       = errors.New("store rejected write")
	ErrPartialFailure = errors.New("partial failure")
	ErrInvalidState   = errors.New("invalid state")
)
