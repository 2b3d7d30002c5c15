package probe

import (
	"time"

	"github.com/nerrad567/pseudodev/internal/device"
)

// Bus message types exchanged with enumerators over MQTT.

// ProbeRequest asks for a device to be attached.
// Topic: {prefix}/bus/probe
type ProbeRequest struct {
	Identity   string            `json:"identity"`
	Capacity   int               `json:"capacity"`
	Permission device.Permission `json:"permission"`

	// Actor names the enumerator, for the audit trail.
	Actor string `json:"actor,omitempty"`
}

// Descriptor converts the request to a registry descriptor.
func (r ProbeRequest) Descriptor() device.Descriptor {
	return device.Descriptor{
		Identity:   r.Identity,
		Capacity:   r.Capacity,
		Permission: r.Permission,
	}
}

// RemoveRequest asks for a device to be detached, by identity or handle.
// Identity wins when both are set.
// Topic: {prefix}/bus/remove
type RemoveRequest struct {
	Identity string         `json:"identity,omitempty"`
	Handle   *device.Handle `json:"handle,omitempty"`
	Actor    string         `json:"actor,omitempty"`
}

// DeviceStatus values.
const (
	StatusAttached = "attached"
	StatusDetached = "detached"
)

// StatusMessage is the retained state of one device.
// Topic: {prefix}/device/{identity}/status
type StatusMessage struct {
	Status     string            `json:"status"`
	Identity   string            `json:"identity"`
	Handle     device.Handle     `json:"handle"`
	Capacity   int               `json:"capacity"`
	Permission device.Permission `json:"permission"`
	Generation uint64            `json:"generation"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ErrorMessage reports a bus request that failed. Failed requests are
// not retried.
// Topic: {prefix}/bus/error
type ErrorMessage struct {
	Op        string         `json:"op"`
	Identity  string         `json:"identity,omitempty"`
	Handle    *device.Handle `json:"handle,omitempty"`
	Error     string         `json:"error"`
	Timestamp time.Time      `json:"timestamp"`
}
