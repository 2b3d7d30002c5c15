package probe

import (
	"context"
	"time"

	"github.com/nerrad567/pseudodev/internal/device"
)

// EventType identifies a lifecycle change reported to listeners.
type EventType string

const (
	// EventAttached is emitted after a device has been attached.
	EventAttached EventType = "device.attached"

	// EventDetached is emitted after a device has been detached.
	EventDetached EventType = "device.detached"

	// EventProbeFailed is emitted when a probe request is rejected.
	EventProbeFailed EventType = "device.probe_failed"
)

// Source names what asked for a probe or remove.
type Source string

const (
	SourceConfig    Source = "config"
	SourceBus       Source = "bus"
	SourceAPI       Source = "api"
	SourceCatalogue Source = "catalogue"
	SourceShutdown  Source = "shutdown"
	SourceUnknown   Source = "unknown"
)

// Persistent reports whether devices probed from this source belong in
// the descriptor catalogue. Config devices come back from the config file
// and shutdown removals must not forget anything.
func (s Source) Persistent() bool {
	return s == SourceBus || s == SourceAPI
}

// Origin describes who initiated an operation. It travels in the context
// so the controller stays free of transport details.
type Origin struct {
	Source Source
	Actor  string // operator subject or bus client; empty when unknown
}

type originKey struct{}

// ContextWithOrigin returns a context carrying origin.
func ContextWithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom extracts the origin stored by ContextWithOrigin.
// A context without one yields SourceUnknown.
func OriginFrom(ctx context.Context) Origin {
	if origin, ok := ctx.Value(originKey{}).(Origin); ok && origin.Source != "" {
		return origin
	}
	return Origin{Source: SourceUnknown}
}

// Event describes one attach, detach or failed probe.
//
// For EventProbeFailed, Info carries the requested descriptor with
// Handle -1 and Err holds the reason.
type Event struct {
	Type      EventType
	Info      device.Info
	Source    Source
	Actor     string
	Err       error
	Timestamp time.Time
}

// Listener receives controller events.
//
// HandleEvent is called synchronously after the controller has released
// its lock, in registration order. Implementations must not block for long.
type Listener interface {
	HandleEvent(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, ev Event)

// HandleEvent calls f(ctx, ev).
func (f ListenerFunc) HandleEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}
