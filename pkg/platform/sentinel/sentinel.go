package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, catalogs, and remote
// clients return these (optionally wrapped) so services can translate them
// into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist (visit, client, caregiver, record)
// - ErrStateNotSupported: no rules or provider registered for a state code
// - ErrConflict: resource already held (e.g., submission lock)
// - ErrUnavailable: dependency temporarily unreachable
//
// Compliance failures are never errors: they are data on ValidationResult.
var (
	ErrNotFound          = errors.New("not found")
	ErrStateNotSupported = errors.New("state not supported")
	ErrConflict          = errors.New("conflict")
	ErrUnavailable       = errors.New("unavailable")
)
