package device

import "errors"

// Domain errors for the device package.
//
// Every operation reports failures through these sentinels, possibly
// wrapped with context. Check them with errors.Is():
//
//	if errors.Is(err, device.ErrDeviceGone) {
//	    // the slot was detached under this session
//	}
//
// None of them are fatal: the registry and all other slots remain usable
// after any single failure, and retrying without a state change reproduces
// the same error.
var (
	// ErrCapacityExceeded is returned by Attach when every slot is occupied.
	ErrCapacityExceeded = errors.New("device: registry full")

	// ErrInvalidHandle is returned when a handle is out of range or its slot is free.
	ErrInvalidHandle = errors.New("device: invalid handle")

	// ErrNoSuchDevice is returned by Open when no device is attached at the handle.
	ErrNoSuchDevice = errors.New("device: no such device")

	// ErrPermissionDenied is returned when the requested access mode is not
	// allowed by the device permission.
	ErrPermissionDenied = errors.New("device: permission denied")

	// ErrOutOfSpace is returned by Write when the cursor is at the end of the buffer.
	ErrOutOfSpace = errors.New("device: no space left on device")

	// ErrInvalidSeek is returned when a seek target falls outside [0, capacity]
	// or the whence value is unknown.
	ErrInvalidSeek = errors.New("device: invalid seek")

	// ErrCopyFault is returned when data cannot be moved across the caller boundary.
	ErrCopyFault = errors.New("device: copy fault")

	// ErrDeviceGone is returned when the slot behind a session was detached.
	ErrDeviceGone = errors.New("device: device gone")

	// ErrInvalidDescriptor is returned when a descriptor fails validation.
	ErrInvalidDescriptor = errors.New("device: invalid descriptor")

	// ErrSessionClosed is returned for operations on a released session.
	ErrSessionClosed = errors.New("device: session closed")
)
