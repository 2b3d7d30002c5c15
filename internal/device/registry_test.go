package device

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// newTestRegistry creates a registry with the four devices of the default
// static table attached at handles 0..3.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	reg := NewRegistry(5, 0)
	for _, d := range defaultTable() {
		if _, err := reg.Attach(d); err != nil {
			t.Fatalf("Attach(%s) error = %v", d.Identity, err)
		}
	}
	return reg
}

func defaultTable() []Descriptor {
	return []Descriptor{
		{Identity: "1024_BYTE_RONLY_MEM", Capacity: 1024, Permission: ReadOnly},
		{Identity: "1024_BYTE_RW_MEM", Capacity: 1024, Permission: ReadWrite},
		{Identity: "512_BYTE_WONLY_MEM", Capacity: 512, Permission: WriteOnly},
		{Identity: "512_BYTE_RW_MEM", Capacity: 512, Permission: ReadWrite},
	}
}

func TestNewRegistry_Defaults(t *testing.T) {
	reg := NewRegistry(0, 0)

	if reg.Size() != DefaultSize {
		t.Errorf("Size() = %d, want %d", reg.Size(), DefaultSize)
	}
	if reg.MaxCapacity() != DefaultMaxCapacity {
		t.Errorf("MaxCapacity() = %d, want %d", reg.MaxCapacity(), DefaultMaxCapacity)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}
	if got := reg.List(); len(got) != 0 {
		t.Errorf("List() = %d entries, want 0", len(got))
	}
}

func TestAttach_LowestFreeIndex(t *testing.T) {
	reg := newTestRegistry(t)

	if reg.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", reg.Count())
	}

	for i, d := range defaultTable() {
		info, err := reg.Lookup(Handle(i))
		if err != nil {
			t.Fatalf("Lookup(%d) error = %v", i, err)
		}
		if info.Descriptor() != d {
			t.Errorf("Lookup(%d) = %+v, want %+v", i, info.Descriptor(), d)
		}
	}

	if err := reg.Detach(1); err != nil {
		t.Fatalf("Detach(1) error = %v", err)
	}

	h, err := reg.Attach(Descriptor{Identity: "PLFDEV0009", Capacity: 64, Permission: ReadWrite})
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if h != 1 {
		t.Errorf("Attach() handle = %d, want 1 (lowest free)", h)
	}
}

func TestAttach_CapacityExceeded(t *testing.T) {
	reg := NewRegistry(2, 0)
	desc := Descriptor{Identity: "dev", Capacity: 16, Permission: ReadWrite}

	for i := 0; i < 2; i++ {
		if _, err := reg.Attach(desc); err != nil {
			t.Fatalf("Attach() #%d error = %v", i, err)
		}
	}

	before := reg.List()
	h, err := reg.Attach(desc)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Attach() on full registry error = %v, want ErrCapacityExceeded", err)
	}
	if h != -1 {
		t.Errorf("Attach() handle = %d, want -1", h)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}
	if after := reg.List(); len(after) != len(before) {
		t.Errorf("List() length changed from %d to %d", len(before), len(after))
	}
}

func TestAttach_InvalidDescriptor(t *testing.T) {
	reg := NewRegistry(2, 128)

	tests := []Descriptor{
		{Identity: "dev", Capacity: 0, Permission: ReadWrite},
		{Identity: "dev", Capacity: 129, Permission: ReadWrite},
		{Identity: "dev", Capacity: 1, Permission: Permission(4)},
		{Identity: "", Capacity: 1, Permission: ReadOnly},
	}
	for _, d := range tests {
		if _, err := reg.Attach(d); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("Attach(%+v) error = %v, want ErrInvalidDescriptor", d, err)
		}
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after rejected attaches", reg.Count())
	}
}

func TestAttach_ZeroFilledAndFreshGeneration(t *testing.T) {
	reg := NewRegistry(1, 0)
	desc := Descriptor{Identity: "dev", Capacity: 32, Permission: ReadWrite}

	h, _ := reg.Attach(desc)
	first, _ := reg.Lookup(h)

	s, err := reg.Open(h, ModeWrite)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := reg.Write(s, []byte("leftover data")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	_ = reg.Release(s)

	if err := reg.Detach(h); err != nil {
		t.Fatalf("Detach() error = %v", err)
	}
	h2, err := reg.Attach(desc)
	if err != nil {
		t.Fatalf("re-Attach() error = %v", err)
	}
	if h2 != h {
		t.Fatalf("re-Attach() handle = %d, want %d", h2, h)
	}

	second, _ := reg.Lookup(h2)
	if second.Generation <= first.Generation {
		t.Errorf("Generation = %d, want > %d", second.Generation, first.Generation)
	}

	s, _ = reg.Open(h2, ModeRead)
	buf := make([]byte, 32)
	n, err := reg.Read(s, buf)
	if err != nil || n != 32 {
		t.Fatalf("Read() = %d, %v; want 32, nil", n, err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("buf[%d] = %#x, want 0 (buffer not zeroed on attach)", i, b)
		}
	}
}

func TestDetach_InvalidHandle(t *testing.T) {
	reg := newTestRegistry(t)

	tests := []struct {
		name   string
		handle Handle
	}{
		{"negative", -1},
		{"out of range", 5},
		{"far out of range", 1 << 20},
		{"free slot", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := reg.Detach(tt.handle); !errors.Is(err, ErrInvalidHandle) {
				t.Errorf("Detach(%d) error = %v, want ErrInvalidHandle", tt.handle, err)
			}
		})
	}
	if reg.Count() != 4 {
		t.Errorf("Count() = %d, want 4", reg.Count())
	}
}

func TestDetach_Twice(t *testing.T) {
	reg := newTestRegistry(t)

	if err := reg.Detach(2); err != nil {
		t.Fatalf("Detach(2) error = %v", err)
	}
	if err := reg.Detach(2); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("second Detach(2) error = %v, want ErrInvalidHandle", err)
	}
	if reg.Count() != 3 {
		t.Errorf("Count() = %d, want 3", reg.Count())
	}
	if _, err := reg.Lookup(2); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Lookup(2) error = %v, want ErrInvalidHandle", err)
	}
}

func TestLookup(t *testing.T) {
	reg := newTestRegistry(t)
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return fixed }

	h, err := reg.Attach(Descriptor{Identity: "PLFDEV0004", Capacity: 8, Permission: ReadOnly})
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	info, err := reg.Lookup(h)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if info.Handle != h || info.Identity != "PLFDEV0004" || info.Capacity != 8 || info.Permission != ReadOnly {
		t.Errorf("Lookup() = %+v", info)
	}
	if !info.AttachedAt.Equal(fixed) {
		t.Errorf("AttachedAt = %v, want %v", info.AttachedAt, fixed)
	}

	// Mutating the returned copy must not affect the registry.
	info.Identity = "changed"
	again, _ := reg.Lookup(h)
	if again.Identity != "PLFDEV0004" {
		t.Errorf("Lookup() after mutation Identity = %q, want PLFDEV0004", again.Identity)
	}

	if _, err := reg.Lookup(-1); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Lookup(-1) error = %v, want ErrInvalidHandle", err)
	}
}

func TestList_OrderedByHandle(t *testing.T) {
	reg := newTestRegistry(t)
	_ = reg.Detach(0)

	infos := reg.List()
	if len(infos) != 3 {
		t.Fatalf("List() = %d entries, want 3", len(infos))
	}
	for i, info := range infos {
		if want := Handle(i + 1); info.Handle != want {
			t.Errorf("List()[%d].Handle = %d, want %d", i, info.Handle, want)
		}
	}
}

func TestFindByIdentity(t *testing.T) {
	reg := newTestRegistry(t)

	info, err := reg.FindByIdentity("512_BYTE_WONLY_MEM")
	if err != nil {
		t.Fatalf("FindByIdentity() error = %v", err)
	}
	if info.Handle != 2 {
		t.Errorf("FindByIdentity() handle = %d, want 2", info.Handle)
	}

	if _, err := reg.FindByIdentity("missing"); !errors.Is(err, ErrNoSuchDevice) {
		t.Errorf("FindByIdentity(missing) error = %v, want ErrNoSuchDevice", err)
	}
}

func TestStats(t *testing.T) {
	reg := newTestRegistry(t)

	s, err := reg.Open(3, ModeReadWrite)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_, _ = reg.Write(s, []byte("abcdef"))
	_, _ = reg.Seek(s, 0, SeekStart)
	_, _ = reg.Read(s, make([]byte, 4))
	_, _ = reg.Open(0, ModeWrite) // denied

	st := reg.Stats()
	if st.Size != 5 || st.Attached != 4 {
		t.Errorf("Stats() size/attached = %d/%d, want 5/4", st.Size, st.Attached)
	}
	if len(st.Devices) != 4 {
		t.Fatalf("Stats().Devices = %d, want 4", len(st.Devices))
	}

	rw := st.Devices[3]
	if rw.Writes != 1 || rw.BytesWritten != 6 {
		t.Errorf("writes = %d (%d bytes), want 1 (6 bytes)", rw.Writes, rw.BytesWritten)
	}
	if rw.Reads != 1 || rw.BytesRead != 4 {
		t.Errorf("reads = %d (%d bytes), want 1 (4 bytes)", rw.Reads, rw.BytesRead)
	}
	if rw.Seeks != 1 {
		t.Errorf("seeks = %d, want 1", rw.Seeks)
	}
	if rw.OpenSessions != 1 {
		t.Errorf("open sessions = %d, want 1", rw.OpenSessions)
	}
	if st.Devices[0].Denied != 1 {
		t.Errorf("denied on read-only device = %d, want 1", st.Devices[0].Denied)
	}

	_ = reg.Release(s)
	if got := reg.Stats().Devices[3].OpenSessions; got != 0 {
		t.Errorf("open sessions after release = %d, want 0", got)
	}
}

type recordingLogger struct {
	msgs []string
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.msgs = append(l.msgs, "debug:"+msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.msgs = append(l.msgs, "info:"+msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.msgs = append(l.msgs, "warn:"+msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.msgs = append(l.msgs, "error:"+msg) }

func TestSetLogger(t *testing.T) {
	reg := NewRegistry(1, 0)
	log := &recordingLogger{}
	reg.SetLogger(log)

	h, _ := reg.Attach(Descriptor{Identity: "dev", Capacity: 1, Permission: ReadOnly})
	_ = reg.Detach(h)

	want := []string{"info:device attached", "info:device detached"}
	if fmt.Sprint(log.msgs) != fmt.Sprint(want) {
		t.Errorf("logged %v, want %v", log.msgs, want)
	}
}
