package device

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Session is an open access context on one device.
//
// A session remembers the slot generation it was opened against. Once the
// device is detached every operation fails with ErrDeviceGone, even if a new
// device has since been attached at the same handle.
//
// Session implements io.Reader, io.Writer, io.Seeker and io.Closer. It is
// safe for concurrent use; calls on one session are serialised.
type Session struct {
	mu sync.Mutex // Protects cursor and closed. Taken before the slot lock.

	slot       *slot
	handle     Handle
	generation uint64
	mode       Mode
	cursor     int64
	closed     bool
}

var (
	_ io.ReadWriteSeeker = (*Session)(nil)
	_ io.Closer          = (*Session)(nil)
)

// Handle returns the handle the session was opened on.
func (s *Session) Handle() Handle { return s.handle }

// Mode returns the access intent the session was opened with.
func (s *Session) Mode() Mode { return s.mode }

// Generation returns the slot generation captured at open.
func (s *Session) Generation() uint64 { return s.generation }

// Offset returns the current cursor position.
func (s *Session) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Closed reports whether the session has been released.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Read implements io.Reader. It returns io.EOF once the cursor reaches the
// end of the device.
func (s *Session) Read(p []byte) (int, error) {
	n, err := s.read(p)
	if err == nil && n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

// Write implements io.Writer. A write truncated by the end of the device
// returns io.ErrShortWrite along with the bytes stored.
func (s *Session) Write(p []byte) (int, error) {
	n, err := s.write(p)
	if err == nil && n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, err
}

// Seek implements io.Seeker.
func (s *Session) Seek(offset int64, whence int) (int64, error) {
	return s.seek(offset, Whence(whence))
}

// Close implements io.Closer.
func (s *Session) Close() error {
	return s.release()
}

// CopyOut transfers up to limit bytes from the cursor into w.
//
// The bytes are snapshotted under the slot read lock and handed to w after
// the lock is dropped. If w fails or accepts fewer bytes than offered, the
// result is ErrCopyFault and the cursor does not move.
func (s *Session) CopyOut(w io.Writer, limit int) (int, error) {
	if limit < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrCopyFault, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	sl := s.slot
	sl.mu.RLock()
	if !sl.live(s.generation) {
		sl.mu.RUnlock()
		return 0, fmt.Errorf("%w: handle %d", ErrDeviceGone, s.handle)
	}
	if !s.mode.CanRead() {
		sl.counters.denied.Add(1)
		sl.mu.RUnlock()
		return 0, fmt.Errorf("%w: session opened for %s", ErrPermissionDenied, s.mode)
	}
	n := min(int64(limit), int64(sl.capacity)-s.cursor)
	chunk := make([]byte, n)
	copy(chunk, sl.buffer[s.cursor:s.cursor+n])
	sl.mu.RUnlock()

	if n == 0 {
		sl.counters.reads.Add(1)
		return 0, nil
	}

	written, err := w.Write(chunk)
	if err == nil && written != len(chunk) {
		err = io.ErrShortWrite
	}
	if err != nil {
		sl.counters.faults.Add(1)
		return 0, fmt.Errorf("%w: %w", ErrCopyFault, err)
	}

	s.cursor += n
	sl.counters.reads.Add(1)
	sl.counters.bytesRead.Add(uint64(n))
	return int(n), nil
}

// CopyIn transfers exactly min(limit, remaining space) bytes from r into the
// device at the cursor.
//
// The source is drained before the slot is locked, so a slow reader never
// holds up other sessions. If r fails or runs dry early, the result is
// ErrCopyFault and neither the buffer nor the cursor changes.
func (s *Session) CopyIn(r io.Reader, limit int) (int, error) {
	if limit < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrCopyFault, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	sl := s.slot
	sl.mu.RLock()
	if !sl.live(s.generation) {
		sl.mu.RUnlock()
		return 0, fmt.Errorf("%w: handle %d", ErrDeviceGone, s.handle)
	}
	if !s.mode.CanWrite() {
		sl.counters.denied.Add(1)
		sl.mu.RUnlock()
		return 0, fmt.Errorf("%w: session opened for %s", ErrPermissionDenied, s.mode)
	}
	room := int64(sl.capacity) - s.cursor
	sl.mu.RUnlock()

	if room == 0 {
		return 0, fmt.Errorf("%w: handle %d", ErrOutOfSpace, s.handle)
	}

	chunk := make([]byte, min(int64(limit), room))
	if _, err := io.ReadFull(r, chunk); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		sl.counters.faults.Add(1)
		return 0, fmt.Errorf("%w: %w", ErrCopyFault, err)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	// The device may have gone while the source was being read.
	if !sl.live(s.generation) {
		return 0, fmt.Errorf("%w: handle %d", ErrDeviceGone, s.handle)
	}

	n := copy(sl.buffer[s.cursor:], chunk)
	s.cursor += int64(n)
	sl.counters.writes.Add(1)
	sl.counters.bytesWritten.Add(uint64(n))
	return n, nil
}

// read copies min(len(dst), capacity-cursor) bytes into dst.
// At the end of the device it returns (0, nil).
func (s *Session) read(dst []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	sl := s.slot
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if !sl.live(s.generation) {
		return 0, fmt.Errorf("%w: handle %d", ErrDeviceGone, s.handle)
	}
	if !s.mode.CanRead() {
		sl.counters.denied.Add(1)
		return 0, fmt.Errorf("%w: session opened for %s", ErrPermissionDenied, s.mode)
	}

	n := copy(dst, sl.buffer[s.cursor:])
	s.cursor += int64(n)
	sl.counters.reads.Add(1)
	sl.counters.bytesRead.Add(uint64(n))
	return n, nil
}

// write copies min(len(src), capacity-cursor) bytes from src.
// A cursor already at the end of the device yields ErrOutOfSpace, even for
// an empty src.
func (s *Session) write(src []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	sl := s.slot
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if !sl.live(s.generation) {
		return 0, fmt.Errorf("%w: handle %d", ErrDeviceGone, s.handle)
	}
	if !s.mode.CanWrite() {
		sl.counters.denied.Add(1)
		return 0, fmt.Errorf("%w: session opened for %s", ErrPermissionDenied, s.mode)
	}
	if s.cursor == int64(sl.capacity) {
		return 0, fmt.Errorf("%w: handle %d", ErrOutOfSpace, s.handle)
	}

	n := copy(sl.buffer[s.cursor:], src)
	s.cursor += int64(n)
	sl.counters.writes.Add(1)
	sl.counters.bytesWritten.Add(uint64(n))
	return n, nil
}

// seek moves the cursor to a target within [0, capacity].
func (s *Session) seek(offset int64, whence Whence) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	sl := s.slot
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if !sl.live(s.generation) {
		return 0, fmt.Errorf("%w: handle %d", ErrDeviceGone, s.handle)
	}

	capacity := int64(sl.capacity)
	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = s.cursor
	case SeekEnd:
		base = capacity
	default:
		return s.cursor, fmt.Errorf("%w: unknown whence %d", ErrInvalidSeek, int(whence))
	}

	// base is within [0, capacity], so neither bound can overflow.
	if offset < -base || offset > capacity-base {
		return s.cursor, fmt.Errorf("%w: offset %d from %s outside [0, %d]", ErrInvalidSeek, offset, whence, capacity)
	}

	s.cursor = base + offset
	sl.counters.seeks.Add(1)
	return s.cursor, nil
}

// release closes the session. The slot is not affected.
func (s *Session) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true

	sl := s.slot
	sl.mu.RLock()
	if sl.live(s.generation) {
		sl.counters.sessions.Add(-1)
	}
	sl.mu.RUnlock()
	return nil
}
