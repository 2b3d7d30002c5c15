package probe

import "errors"

// Domain-specific errors for probe operations.
// Registry failures (device.ErrCapacityExceeded, device.ErrInvalidHandle,
// ...) are returned unchanged so callers can match them with errors.Is.
var (
	// ErrAlreadyBound is returned when probing an identity that is already attached.
	ErrAlreadyBound = errors.New("probe: identity already bound")

	// ErrNotBound is returned when removing an identity that is not attached.
	ErrNotBound = errors.New("probe: identity not bound")

	// ErrInvalidMessage is returned for bus payloads that cannot be decoded.
	ErrInvalidMessage = errors.New("probe: invalid bus message")

	// ErrNotCatalogued is returned when a descriptor is missing from the catalogue.
	ErrNotCatalogued = errors.New("probe: descriptor not catalogued")
)
