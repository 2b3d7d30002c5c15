package device

import "fmt"

// FileOperations is the operation contract a device exposes to callers.
//
// Read returns (0, nil) at the end of a device; Write returns ErrOutOfSpace
// when the cursor already sits at the end. Both may transfer fewer bytes
// than requested without error.
type FileOperations interface {
	Open(h Handle, mode Mode) (*Session, error)
	Read(s *Session, dst []byte) (int, error)
	Write(s *Session, src []byte) (int, error)
	Seek(s *Session, offset int64, whence Whence) (int64, error)
	Release(s *Session) error
}

var _ FileOperations = (*Registry)(nil)

// Open starts a session on the device at h with cursor 0.
//
// Returns ErrNoSuchDevice if nothing is attached at h and
// ErrPermissionDenied if the device permission does not allow mode.
func (r *Registry) Open(h Handle, mode Mode) (*Session, error) {
	s, err := r.slotAt(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSuchDevice, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.occupied {
		return nil, fmt.Errorf("%w: handle %d", ErrNoSuchDevice, h)
	}
	if !s.permission.Allows(mode) {
		s.counters.denied.Add(1)
		return nil, fmt.Errorf("%w: %s device does not allow %s", ErrPermissionDenied, s.permission, mode)
	}

	s.counters.sessions.Add(1)
	r.logger.Debug("session opened", "handle", int(h), "mode", mode.String(), "generation", s.generation)

	return &Session{
		slot:       s,
		handle:     h,
		generation: s.generation,
		mode:       mode,
	}, nil
}

// Read copies bytes from the session cursor into dst.
func (r *Registry) Read(s *Session, dst []byte) (int, error) {
	if s == nil {
		return 0, ErrSessionClosed
	}
	return s.read(dst)
}

// Write copies bytes from src to the session cursor.
func (r *Registry) Write(s *Session, src []byte) (int, error) {
	if s == nil {
		return 0, ErrSessionClosed
	}
	return s.write(src)
}

// Seek moves the session cursor and returns the new position.
func (r *Registry) Seek(s *Session, offset int64, whence Whence) (int64, error) {
	if s == nil {
		return 0, ErrSessionClosed
	}
	return s.seek(offset, whence)
}

// Release closes the session. It has no effect on the device.
// Releasing twice returns ErrSessionClosed.
func (r *Registry) Release(s *Session) error {
	if s == nil {
		return ErrSessionClosed
	}
	if err := s.release(); err != nil {
		return err
	}
	r.logger.Debug("session released", "handle", int(s.handle))
	return nil
}
