package device

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Handle is the dense numeric index of a slot in the Registry.
// A handle identifies the same device for as long as the slot stays occupied.
type Handle int

// Permission is the access mask of a device.
// Bit 0 grants read access, bit 1 grants write access.
type Permission uint8

// Permission bits and the three valid device permissions.
const (
	PermRead  Permission = 0b01
	PermWrite Permission = 0b10

	ReadOnly  Permission = PermRead
	WriteOnly Permission = PermWrite
	ReadWrite Permission = PermRead | PermWrite
)

// AllPermissions returns all valid device permissions.
func AllPermissions() []Permission {
	return []Permission{ReadOnly, WriteOnly, ReadWrite}
}

// String returns the short form used in configuration and bus payloads.
func (p Permission) String() string {
	switch p {
	case ReadOnly:
		return "ro"
	case WriteOnly:
		return "wo"
	case ReadWrite:
		return "rw"
	default:
		return fmt.Sprintf("permission(%#02b)", uint8(p))
	}
}

// Valid reports whether p is one of ReadOnly, WriteOnly or ReadWrite.
func (p Permission) Valid() bool {
	return p == ReadOnly || p == WriteOnly || p == ReadWrite
}

// Allows reports whether a session opened with mode may be bound to a
// device carrying permission p.
//
//	ReadOnly  -> ModeRead only
//	WriteOnly -> ModeWrite only
//	ReadWrite -> any mode
func (p Permission) Allows(mode Mode) bool {
	if !mode.Valid() {
		return false
	}
	switch p {
	case ReadWrite:
		return true
	case ReadOnly:
		return mode == ModeRead
	case WriteOnly:
		return mode == ModeWrite
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Permission) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: permission %#02b", ErrInvalidDescriptor, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePermission parses the textual forms accepted in configuration:
// "ro", "wo", "rw" and their long spellings ("read_only", "write_only",
// "read_write"). Matching is case-insensitive.
func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ro", "r", "read_only", "readonly":
		return ReadOnly, nil
	case "wo", "w", "write_only", "writeonly":
		return WriteOnly, nil
	case "rw", "read_write", "readwrite":
		return ReadWrite, nil
	default:
		return 0, fmt.Errorf("%w: unknown permission %q", ErrInvalidDescriptor, s)
	}
}

// Mode is the access intent requested when a session is opened.
type Mode uint8

// Access intents. The values reuse the permission bits so that a mode
// can be compared against a device mask.
const (
	ModeRead      Mode = Mode(PermRead)
	ModeWrite     Mode = Mode(PermWrite)
	ModeReadWrite Mode = Mode(PermRead | PermWrite)
)

// Valid reports whether m is a known access intent.
func (m Mode) Valid() bool {
	return m == ModeRead || m == ModeWrite || m == ModeReadWrite
}

// CanRead reports whether the intent includes reading.
func (m Mode) CanRead() bool { return m.Valid() && m&Mode(PermRead) != 0 }

// CanWrite reports whether the intent includes writing.
func (m Mode) CanWrite() bool { return m.Valid() && m&Mode(PermWrite) != 0 }

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeReadWrite:
		return "read_write"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Whence is the reference point of a seek offset.
// The values match io.SeekStart, io.SeekCurrent and io.SeekEnd.
type Whence int

const (
	SeekStart   Whence = io.SeekStart
	SeekCurrent Whence = io.SeekCurrent
	SeekEnd     Whence = io.SeekEnd
)

func (w Whence) String() string {
	switch w {
	case SeekStart:
		return "start"
	case SeekCurrent:
		return "current"
	case SeekEnd:
		return "end"
	default:
		return fmt.Sprintf("whence(%d)", int(w))
	}
}

// Descriptor carries everything needed to attach a device.
type Descriptor struct {
	// Identity is an opaque label such as a serial number ("PLFDEV0000").
	Identity string `json:"identity" yaml:"identity"`

	// Capacity is the buffer size in bytes. It is fixed for the lifetime
	// of the attachment.
	Capacity int `json:"capacity" yaml:"capacity"`

	// Permission is the device access mask.
	Permission Permission `json:"permission" yaml:"permission"`
}

// Info is a point-in-time copy of an occupied slot's metadata.
type Info struct {
	Handle     Handle     `json:"handle"`
	Identity   string     `json:"identity"`
	Capacity   int        `json:"capacity"`
	Permission Permission `json:"permission"`
	Generation uint64     `json:"generation"`
	AttachedAt time.Time  `json:"attached_at"`
}

// Descriptor returns the descriptor the slot was attached with.
func (i Info) Descriptor() Descriptor {
	return Descriptor{
		Identity:   i.Identity,
		Capacity:   i.Capacity,
		Permission: i.Permission,
	}
}
