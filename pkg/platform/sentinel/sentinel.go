package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, lockers and publishers return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: contact does not exist in the store
//   - ErrLockHeld: an identity key is held by another request past the wait budget
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrLockHeld    = errors.New("lock held")
	ErrUnavailable = errors.New("unavailable")
)
