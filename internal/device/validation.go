package device

import (
	"fmt"
	"unicode"
)

// Validation constants.
const (
	maxIdentityLength = 100

	// DefaultMaxCapacity bounds a single device buffer when the registry is
	// built without an explicit limit.
	DefaultMaxCapacity = 1 << 20 // 1 MiB
)

// ValidateDescriptor checks a descriptor against a per-device capacity limit.
// A non-positive maxCapacity disables the upper bound.
func ValidateDescriptor(d Descriptor, maxCapacity int) error {
	if err := ValidateIdentity(d.Identity); err != nil {
		return err
	}

	if d.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidDescriptor, d.Capacity)
	}
	if maxCapacity > 0 && d.Capacity > maxCapacity {
		return fmt.Errorf("%w: capacity %d exceeds maximum %d bytes", ErrInvalidDescriptor, d.Capacity, maxCapacity)
	}

	if !d.Permission.Valid() {
		return fmt.Errorf("%w: unknown permission %#02b", ErrInvalidDescriptor, uint8(d.Permission))
	}

	return nil
}

// ValidateIdentity checks that an identity is non-empty, bounded and
// made of printable characters without whitespace. Identities end up in
// MQTT topic levels, so the wildcard characters are rejected as well.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: identity is required", ErrInvalidDescriptor)
	}
	if len(identity) > maxIdentityLength {
		return fmt.Errorf("%w: identity exceeds %d characters", ErrInvalidDescriptor, maxIdentityLength)
	}
	for _, r := range identity {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: identity contains non-printable or space character", ErrInvalidDescriptor)
		}
		switch r {
		case '/', '+', '#':
			return fmt.Errorf("%w: identity contains reserved character %q", ErrInvalidDescriptor, r)
		}
	}
	return nil
}
