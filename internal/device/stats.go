package device

import "sync/atomic"

// counters tracks per-attachment I/O activity. The fields are updated
// with atomics so readers holding only the slot read lock can bump them.
type counters struct {
	reads        atomic.Uint64
	writes       atomic.Uint64
	seeks        atomic.Uint64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
	faults       atomic.Uint64
	denied       atomic.Uint64
	sessions     atomic.Int64
}

func (c *counters) reset() {
	c.reads.Store(0)
	c.writes.Store(0)
	c.seeks.Store(0)
	c.bytesRead.Store(0)
	c.bytesWritten.Store(0)
	c.faults.Store(0)
	c.denied.Store(0)
	c.sessions.Store(0)
}

// SlotStats is the activity of one attached device since it was attached.
type SlotStats struct {
	Info

	Reads        uint64 `json:"reads"`
	Writes       uint64 `json:"writes"`
	Seeks        uint64 `json:"seeks"`
	BytesRead    uint64 `json:"bytes_read"`
	BytesWritten uint64 `json:"bytes_written"`
	Faults       uint64 `json:"faults"`
	Denied       uint64 `json:"denied"`
	OpenSessions int64  `json:"open_sessions"`
}

// Stats is a snapshot of registry occupancy and per-device activity.
type Stats struct {
	Size     int         `json:"size"`
	Attached int         `json:"attached"`
	Devices  []SlotStats `json:"devices"`
}

// Stats returns occupancy and per-device counters ordered by handle.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{
		Size:     len(r.slots),
		Attached: r.count,
		Devices:  make([]SlotStats, 0, r.count),
	}
	for i, s := range r.slots {
		s.mu.RLock()
		if s.occupied {
			st.Devices = append(st.Devices, SlotStats{
				Info:         s.info(Handle(i)),
				Reads:        s.counters.reads.Load(),
				Writes:       s.counters.writes.Load(),
				Seeks:        s.counters.seeks.Load(),
				BytesRead:    s.counters.bytesRead.Load(),
				BytesWritten: s.counters.bytesWritten.Load(),
				Faults:       s.counters.faults.Load(),
				Denied:       s.counters.denied.Load(),
				OpenSessions: s.counters.sessions.Load(),
			})
		}
		s.mu.RUnlock()
	}
	return st
}
