package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every pseudodevd topic.
const DefaultTopicPrefix = "pseudodev"

// Topics builds pseudodevd MQTT topics under a configurable prefix.
// Using these helpers keeps topic naming consistent between publishers
// and subscribers.
//
//	topics := mqtt.NewTopics("pseudodev")
//	topics.DeviceStatus("PLFDEV0000")
//	// Returns: "pseudodev/device/PLFDEV0000/status"
type Topics struct {
	Prefix string
}

// NewTopics returns a builder rooted at prefix. Surrounding slashes are
// trimmed; an empty prefix uses DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Probe bus
// =============================================================================

// BusProbe is where enumeration requests to attach a device arrive.
//
// Example: pseudodev/bus/probe
func (t Topics) BusProbe() string {
	return fmt.Sprintf("%s/bus/probe", t.root())
}

// BusRemove is where enumeration requests to detach a device arrive.
//
// Example: pseudodev/bus/remove
func (t Topics) BusRemove() string {
	return fmt.Sprintf("%s/bus/remove", t.root())
}

// BusError carries failures of bus requests.
//
// Example: pseudodev/bus/error
func (t Topics) BusError() string {
	return fmt.Sprintf("%s/bus/error", t.root())
}

// =============================================================================
// Device status
// =============================================================================

// DeviceStatus is the retained attach/detach status of one device.
//
// Example: pseudodev/device/PLFDEV0000/status
func (t Topics) DeviceStatus(identity string) string {
	return fmt.Sprintf("%s/device/%s/status", t.root(), identity)
}

// AllDeviceStatus matches every device status topic.
//
// Pattern: pseudodev/device/+/status
func (t Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/device/+/status", t.root())
}

// =============================================================================
// System
// =============================================================================

// SystemStatus is the retained online/offline status of the daemon (LWT).
//
// Example: pseudodev/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.root())
}

// AllTopics matches everything under the prefix.
//
// Pattern: pseudodev/#
func (t Topics) AllTopics() string {
	return t.root() + "/#"
}
