package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/pseudodev/internal/infrastructure/mqtt"
)

// Messenger is the subset of *mqtt.Client the bus needs.
// This allows mocking in tests.
type Messenger interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Bus connects the controller to an MQTT probe bus.
//
// Incoming probe and remove requests are applied to the controller. As a
// Listener, the bus publishes a retained status message for every attach
// and detach, whatever its source.
type Bus struct {
	messenger  Messenger
	controller *Controller
	topics     mqtt.Topics
	qos        byte

	ctx    context.Context
	ctxMu  sync.RWMutex
	logger Logger
	now    func() time.Time
}

// NewBus creates a bus for controller using messenger.
//
// Parameters:
//   - messenger: Connected MQTT client (usually *mqtt.Client)
//   - controller: Controller that handles requests
//   - topics: Topic builder for the configured prefix
//   - qos: QoS for subscriptions and publishes
func NewBus(messenger Messenger, controller *Controller, topics mqtt.Topics, qos byte) *Bus {
	return &Bus{
		messenger:  messenger,
		controller: controller,
		topics:     topics,
		qos:        qos,
		ctx:        context.Background(),
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for the bus.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to the probe and remove topics. Requests are handled
// with ctx as parent, so cancelling it makes later probes fail fast.
func (b *Bus) Start(ctx context.Context) error {
	b.ctxMu.Lock()
	b.ctx = ctx
	b.ctxMu.Unlock()

	if err := b.messenger.Subscribe(b.topics.BusProbe(), b.qos, b.handleProbe); err != nil {
		return fmt.Errorf("subscribing to probe topic: %w", err)
	}
	if err := b.messenger.Subscribe(b.topics.BusRemove(), b.qos, b.handleRemove); err != nil {
		_ = b.messenger.Unsubscribe(b.topics.BusProbe()) //nolint:errcheck // best effort rollback
		return fmt.Errorf("subscribing to remove topic: %w", err)
	}

	b.logger.Info("probe bus started",
		"probe_topic", b.topics.BusProbe(),
		"remove_topic", b.topics.BusRemove(),
	)
	return nil
}

// Stop unsubscribes from the request topics.
func (b *Bus) Stop() error {
	return errors.Join(
		b.messenger.Unsubscribe(b.topics.BusProbe()),
		b.messenger.Unsubscribe(b.topics.BusRemove()),
	)
}

func (b *Bus) requestContext(actor string) context.Context {
	b.ctxMu.RLock()
	parent := b.ctx
	b.ctxMu.RUnlock()
	return ContextWithOrigin(parent, Origin{Source: SourceBus, Actor: actor})
}

// handleProbe processes a ProbeRequest.
func (b *Bus) handleProbe(_ string, payload []byte) error {
	var req ProbeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		b.publishError(ErrorMessage{Op: "probe", Error: err.Error()})
		return err
	}

	b.logger.Debug("received probe request", "identity", req.Identity, "actor", req.Actor)

	h, err := b.controller.Probe(b.requestContext(req.Actor), req.Descriptor())
	if err != nil {
		b.publishError(ErrorMessage{Op: "probe", Identity: req.Identity, Error: err.Error()})
		return err
	}

	b.logger.Debug("bus probe applied", "identity", req.Identity, "handle", int(h))
	return nil
}

// handleRemove processes a RemoveRequest.
func (b *Bus) handleRemove(_ string, payload []byte) error {
	var req RemoveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		b.publishError(ErrorMessage{Op: "remove", Error: err.Error()})
		return err
	}

	ctx := b.requestContext(req.Actor)

	var err error
	switch {
	case req.Identity != "":
		err = b.controller.RemoveByIdentity(ctx, req.Identity)
	case req.Handle != nil:
		err = b.controller.Remove(ctx, *req.Handle)
	default:
		err = fmt.Errorf("%w: identity or handle required", ErrInvalidMessage)
	}

	if err != nil {
		b.publishError(ErrorMessage{Op: "remove", Identity: req.Identity, Handle: req.Handle, Error: err.Error()})
		return err
	}
	return nil
}

// HandleEvent publishes the retained status of attached and detached
// devices. Failed probes are reported by the request handlers instead.
func (b *Bus) HandleEvent(_ context.Context, ev Event) {
	var status string
	switch ev.Type {
	case EventAttached:
		status = StatusAttached
	case EventDetached:
		status = StatusDetached
	default:
		return
	}

	msg := StatusMessage{
		Status:     status,
		Identity:   ev.Info.Identity,
		Handle:     ev.Info.Handle,
		Capacity:   ev.Info.Capacity,
		Permission: ev.Info.Permission,
		Generation: ev.Info.Generation,
		Timestamp:  ev.Timestamp,
	}
	b.publish(b.topics.DeviceStatus(ev.Info.Identity), msg, true)
}

func (b *Bus) publishError(msg ErrorMessage) {
	msg.Timestamp = b.now().UTC()
	b.publish(b.topics.BusError(), msg, false)
}

func (b *Bus) publish(topic string, msg any, retained bool) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal bus message", "topic", topic, "error", err)
		return
	}
	if err := b.messenger.Publish(topic, payload, b.qos, retained); err != nil {
		b.logger.Warn("failed to publish bus message", "topic", topic, "error", err)
	}
}
