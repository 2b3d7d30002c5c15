package probe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/pseudodev/internal/device"
)

// Logger defines the logging interface used by the probe package.
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

// Registry is the part of *device.Registry the controller drives.
type Registry interface {
	Attach(d device.Descriptor) (device.Handle, error)
	Detach(h device.Handle) error
	Lookup(h device.Handle) (device.Info, error)
}

// Controller is the enumeration side of the registry. It attaches devices
// when they are probed, detaches them when they are removed and tells
// listeners about both.
//
// Identities are unique among devices attached through a controller.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Listeners run after the controller lock is released, so a listener
//     may call back into the controller.
type Controller struct {
	mu       sync.Mutex
	registry Registry
	bound    map[string]device.Handle

	listeners  []Listener
	listenerMu sync.RWMutex

	logger Logger
	now    func() time.Time
}

// NewController creates a controller that attaches devices to registry.
func NewController(registry Registry) *Controller {
	return &Controller{
		registry: registry,
		bound:    make(map[string]device.Handle),
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// AddListener registers l for every subsequent event.
func (c *Controller) AddListener(l Listener) {
	c.listenerMu.Lock()
	c.listeners = append(c.listeners, l)
	c.listenerMu.Unlock()
}

// Probe attaches the device described by d.
//
// Parameters:
//   - ctx: Carries the Origin (see ContextWithOrigin) and cancellation
//   - d: Descriptor of the device to attach
//
// Returns:
//   - device.Handle: The assigned handle, or -1 on failure
//   - error: ErrAlreadyBound, or the registry error unchanged
//     (device.ErrInvalidDescriptor, device.ErrCapacityExceeded)
//
// A failed probe leaves no partial state behind.
func (c *Controller) Probe(ctx context.Context, d device.Descriptor) (device.Handle, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	c.mu.Lock()
	if _, exists := c.bound[d.Identity]; exists {
		c.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrAlreadyBound, d.Identity)
		c.emitFailure(ctx, d, err)
		return -1, err
	}

	h, err := c.registry.Attach(d)
	if err != nil {
		c.mu.Unlock()
		c.emitFailure(ctx, d, err)
		return -1, err
	}
	c.bound[d.Identity] = h

	info, err := c.registry.Lookup(h)
	if err != nil {
		info = device.Info{Handle: h, Identity: d.Identity, Capacity: d.Capacity, Permission: d.Permission}
	}
	c.mu.Unlock()

	origin := OriginFrom(ctx)
	c.logger.Info("device probed",
		"identity", d.Identity,
		"handle", int(h),
		"source", string(origin.Source),
	)
	c.emit(ctx, Event{Type: EventAttached, Info: info, Source: origin.Source, Actor: origin.Actor})

	return h, nil
}

// Remove detaches the device at h.
//
// Removing an already-removed handle returns device.ErrInvalidHandle and
// changes nothing.
func (c *Controller) Remove(ctx context.Context, h device.Handle) error {
	c.mu.Lock()
	info, err := c.detachLocked(h)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.emitDetached(ctx, info)
	return nil
}

// RemoveByIdentity detaches the device bound to identity.
//
// Returns ErrNotBound when no device with that identity is attached.
func (c *Controller) RemoveByIdentity(ctx context.Context, identity string) error {
	c.mu.Lock()
	h, ok := c.bound[identity]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotBound, identity)
	}
	info, err := c.detachLocked(h)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.emitDetached(ctx, info)
	return nil
}

// detachLocked detaches h and drops its binding. Callers must hold c.mu.
func (c *Controller) detachLocked(h device.Handle) (device.Info, error) {
	info, err := c.registry.Lookup(h)
	if err != nil {
		return device.Info{}, err
	}
	if err := c.registry.Detach(h); err != nil {
		return device.Info{}, err
	}
	if bound, ok := c.bound[info.Identity]; ok && bound == h {
		delete(c.bound, info.Identity)
	}
	return info, nil
}

func (c *Controller) emitDetached(ctx context.Context, info device.Info) {
	origin := OriginFrom(ctx)
	c.logger.Info("device removed",
		"identity", info.Identity,
		"handle", int(info.Handle),
		"source", string(origin.Source),
	)
	c.emit(ctx, Event{Type: EventDetached, Info: info, Source: origin.Source, Actor: origin.Actor})
}

// ProbeAll probes every descriptor in order, continuing past failures.
//
// Returns:
//   - []device.Handle: One entry per descriptor, -1 where the probe failed
//     or was not attempted
//   - error: All failures joined, nil if every probe succeeded
//
// Cancelling ctx stops the loop; the remaining descriptors are skipped.
func (c *Controller) ProbeAll(ctx context.Context, descriptors []device.Descriptor) ([]device.Handle, error) {
	handles := make([]device.Handle, len(descriptors))
	for i := range handles {
		handles[i] = -1
	}

	var errs []error
	for i, d := range descriptors {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		h, err := c.Probe(ctx, d)
		if err != nil {
			errs = append(errs, fmt.Errorf("probing %q: %w", d.Identity, err))
			continue
		}
		handles[i] = h
	}
	return handles, errors.Join(errs...)
}

// Shutdown removes every bound device, lowest handle first.
//
// Events carry SourceShutdown so persistent listeners keep their records.
// Errors are joined; Shutdown always attempts every device.
func (c *Controller) Shutdown(ctx context.Context) error {
	ctx = ContextWithOrigin(ctx, Origin{Source: SourceShutdown, Actor: OriginFrom(ctx).Actor})

	bound := c.Bound()
	handles := make([]device.Handle, 0, len(bound))
	for _, h := range bound {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	var errs []error
	for _, h := range handles {
		if err := c.Remove(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("removing handle %d: %w", h, err))
		}
	}
	return errors.Join(errs...)
}

// Bound returns a snapshot of identity to handle bindings.
func (c *Controller) Bound() map[string]device.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]device.Handle, len(c.bound))
	for identity, h := range c.bound {
		out[identity] = h
	}
	return out
}

// Lookup returns the device bound to identity.
func (c *Controller) Lookup(identity string) (device.Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.bound[identity]
	if !ok {
		return device.Info{}, fmt.Errorf("%w: %s", ErrNotBound, identity)
	}
	return c.registry.Lookup(h)
}

func (c *Controller) emitFailure(ctx context.Context, d device.Descriptor, err error) {
	origin := OriginFrom(ctx)
	c.logger.Warn("device probe failed",
		"identity", d.Identity,
		"source", string(origin.Source),
		"error", err,
	)
	c.emit(ctx, Event{
		Type: EventProbeFailed,
		Info: device.Info{
			Handle:     -1,
			Identity:   d.Identity,
			Capacity:   d.Capacity,
			Permission: d.Permission,
		},
		Source: origin.Source,
		Actor:  origin.Actor,
		Err:    err,
	})
}

// emit delivers ev to every listener. A panicking listener is logged and
// does not stop delivery to the others.
func (c *Controller) emit(ctx context.Context, ev Event) {
	ev.Timestamp = c.now().UTC()

	c.listenerMu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.RUnlock()

	for _, l := range listeners {
		c.deliver(ctx, l, ev)
	}
}

func (c *Controller) deliver(ctx context.Context, l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("probe listener panic recovered",
				"event", string(ev.Type),
				"identity", ev.Info.Identity,
				"panic", r,
			)
		}
	}()
	l.HandleEvent(ctx, ev)
}
