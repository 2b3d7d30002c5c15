package device

import (
	"fmt"
	"sync"
	"time"
)

// DefaultSize is the number of slots in a registry built with a non-positive size.
const DefaultSize = 5

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// slot is one entry of the registry table.
//
// Metadata fields change only while both the registry table lock and the
// slot write lock are held, so either lock is enough to read them.
// The buffer is guarded by mu alone.
type slot struct {
	mu sync.RWMutex

	occupied   bool
	generation uint64
	identity   string
	capacity   int
	permission Permission
	buffer     []byte
	attachedAt time.Time

	counters counters
}

// live reports whether the slot still holds the attachment a session was
// opened against. Callers must hold mu.
func (s *slot) live(generation uint64) bool {
	return s.occupied && s.generation == generation
}

// info builds a snapshot. Callers must hold mu.
func (s *slot) info(h Handle) Info {
	return Info{
		Handle:     h,
		Identity:   s.identity,
		Capacity:   s.capacity,
		Permission: s.permission,
		Generation: s.generation,
		AttachedAt: s.attachedAt,
	}
}

// Registry is a fixed-size table of device slots.
//
// Attach and Detach are serialised by the table lock. Session I/O only
// takes the lock of the slot it targets, so operations on different
// devices never contend. Lock order is registry then slot.
//
// All public methods are thread-safe.
type Registry struct {
	mu          sync.Mutex // Protects count and slot occupancy changes
	slots       []*slot
	count       int
	maxCapacity int

	logger Logger
	now    func() time.Time
}

// NewRegistry creates a registry with size slots.
//
// Parameters:
//   - size: Number of slots; values <= 0 use DefaultSize
//   - maxCapacity: Largest buffer a single device may request; values <= 0 use DefaultMaxCapacity
//
// Returns:
//   - *Registry: An empty registry ready for Attach
func NewRegistry(size, maxCapacity int) *Registry {
	if size <= 0 {
		size = DefaultSize
	}
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}

	slots := make([]*slot, size)
	for i := range slots {
		slots[i] = &slot{}
	}

	return &Registry{
		slots:       slots,
		maxCapacity: maxCapacity,
		logger:      noopLogger{},
		now:         time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Size returns the number of slots in the table.
func (r *Registry) Size() int {
	return len(r.slots)
}

// MaxCapacity returns the largest buffer a device may request.
func (r *Registry) MaxCapacity() int {
	return r.maxCapacity
}

// Count returns the number of occupied slots.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Attach places a device in the lowest free slot.
//
// The slot receives a zero-filled buffer of d.Capacity bytes and a new
// generation, so sessions opened against a previous occupant of the same
// index can never see this device.
//
// Returns ErrInvalidDescriptor if d fails validation and ErrCapacityExceeded
// if every slot is occupied. On failure the registry is unchanged.
func (r *Registry) Attach(d Descriptor) (Handle, error) {
	if err := ValidateDescriptor(d, r.maxCapacity); err != nil {
		return -1, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == len(r.slots) {
		return -1, fmt.Errorf("%w: %d of %d slots in use", ErrCapacityExceeded, r.count, len(r.slots))
	}

	h := -1
	for i, s := range r.slots {
		if !s.occupied {
			h = i
			break
		}
	}
	if h < 0 {
		// count and occupancy disagree; never expected.
		return -1, fmt.Errorf("%w: no free slot", ErrCapacityExceeded)
	}

	s := r.slots[h]
	s.mu.Lock()
	s.generation++
	s.occupied = true
	s.identity = d.Identity
	s.capacity = d.Capacity
	s.permission = d.Permission
	s.buffer = make([]byte, d.Capacity)
	s.attachedAt = r.now()
	s.counters.reset()
	generation := s.generation
	s.mu.Unlock()

	r.count++

	r.logger.Info("device attached",
		"handle", h,
		"identity", d.Identity,
		"capacity", d.Capacity,
		"permission", d.Permission.String(),
		"generation", generation,
	)
	return Handle(h), nil
}

// Detach frees the slot at h.
//
// Detach waits for in-flight I/O on the slot to finish, then releases the
// buffer. Sessions still open against the slot fail with ErrDeviceGone
// from then on.
//
// Returns ErrInvalidHandle if h is out of range or the slot is free.
func (r *Registry) Detach(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.slotAt(h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.occupied {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d is not attached", ErrInvalidHandle, h)
	}
	identity := s.identity
	generation := s.generation
	s.occupied = false
	s.identity = ""
	s.capacity = 0
	s.permission = 0
	s.buffer = nil
	s.attachedAt = time.Time{}
	s.mu.Unlock()

	r.count--

	r.logger.Info("device detached",
		"handle", int(h),
		"identity", identity,
		"generation", generation,
	)
	return nil
}

// Lookup returns a snapshot of the device attached at h.
// Returns ErrInvalidHandle if h is out of range or the slot is free.
func (r *Registry) Lookup(h Handle) (Info, error) {
	s, err := r.slotAt(h)
	if err != nil {
		return Info{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.occupied {
		return Info{}, fmt.Errorf("%w: %d is not attached", ErrInvalidHandle, h)
	}
	return s.info(h), nil
}

// List returns snapshots of all attached devices ordered by handle.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, r.count)
	for i, s := range r.slots {
		s.mu.RLock()
		if s.occupied {
			infos = append(infos, s.info(Handle(i)))
		}
		s.mu.RUnlock()
	}
	return infos
}

// FindByIdentity returns the lowest-handle device whose identity matches.
// Returns ErrNoSuchDevice if no attached device carries the identity.
func (r *Registry) FindByIdentity(identity string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.slots {
		s.mu.RLock()
		if s.occupied && s.identity == identity {
			info := s.info(Handle(i))
			s.mu.RUnlock()
			return info, nil
		}
		s.mu.RUnlock()
	}
	return Info{}, fmt.Errorf("%w: identity %q", ErrNoSuchDevice, identity)
}

// slotAt bounds-checks h. Slot pointers never change after construction,
// so no lock is needed.
func (r *Registry) slotAt(h Handle) (*slot, error) {
	if h < 0 || int(h) >= len(r.slots) {
		return nil, fmt.Errorf("%w: %d out of range [0, %d)", ErrInvalidHandle, h, len(r.slots))
	}
	return r.slots[h], nil
}
