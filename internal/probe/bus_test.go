package probe

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/pseudodev/internal/device"
	"github.com/nerrad567/pseudodev/internal/infrastructure/mqtt"
)

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// mockMessenger is an in-memory Messenger. deliver simulates a message
// arriving from the broker.
type mockMessenger struct {
	mu           sync.Mutex
	published    []mockPublish
	handlers     map[string]mqtt.MessageHandler
	subscribeErr error
}

func newMockMessenger() *mockMessenger {
	return &mockMessenger{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMessenger) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *mockMessenger) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockMessenger) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *mockMessenger) deliver(t *testing.T, topic, payload string) error {
	t.Helper()
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no handler subscribed to %s", topic)
	}
	return handler(topic, []byte(payload))
}

func (m *mockMessenger) publishedTo(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func newTestBus(t *testing.T, size int) (*Bus, *Controller, *mockMessenger, *recorder) {
	t.Helper()
	controller, _, rec := newTestController(t, size)
	messenger := newMockMessenger()
	bus := NewBus(messenger, controller, mqtt.NewTopics("test"), 1)
	controller.AddListener(bus)
	if err := bus.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return bus, controller, messenger, rec
}

func TestBus_Probe(t *testing.T) {
	_, controller, messenger, rec := newTestBus(t, 2)

	err := messenger.deliver(t, "test/bus/probe",
		`{"identity":"PLFDEV0000","capacity":512,"permission":"rw","actor":"enumerator"}`)
	if err != nil {
		t.Fatalf("probe handler error = %v", err)
	}

	if _, ok := controller.Bound()["PLFDEV0000"]; !ok {
		t.Fatal("device not bound after bus probe")
	}

	events := rec.snapshot()
	if len(events) != 1 || events[0].Source != SourceBus || events[0].Actor != "enumerator" {
		t.Errorf("events = %+v, want one bus event from enumerator", events)
	}

	status := messenger.publishedTo("test/device/PLFDEV0000/status")
	if len(status) != 1 {
		t.Fatalf("status publishes = %d, want 1", len(status))
	}
	if !status[0].Retained || status[0].QoS != 1 {
		t.Errorf("status retained/qos = %v/%d, want true/1", status[0].Retained, status[0].QoS)
	}

	var msg StatusMessage
	if err := json.Unmarshal(status[0].Payload, &msg); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if msg.Status != StatusAttached || msg.Handle != 0 || msg.Capacity != 512 || msg.Permission != device.ReadWrite {
		t.Errorf("status = %+v", msg)
	}
}

func TestBus_Probe_Failures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"malformed json", `{"identity":`, ErrInvalidMessage},
		{"unknown permission", `{"identity":"x","capacity":8,"permission":"exec"}`, ErrInvalidMessage},
		{"zero capacity", `{"identity":"x","capacity":0,"permission":"ro"}`, device.ErrInvalidDescriptor},
		{"missing identity", `{"capacity":8,"permission":"ro"}`, device.ErrInvalidDescriptor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, controller, messenger, _ := newTestBus(t, 2)

			err := messenger.deliver(t, "test/bus/probe", tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("probe handler error = %v, want %v", err, tt.wantErr)
			}
			if len(controller.Bound()) != 0 {
				t.Error("failed probe bound a device")
			}

			errs := messenger.publishedTo("test/bus/error")
			if len(errs) != 1 {
				t.Fatalf("error publishes = %d, want 1", len(errs))
			}
			var msg ErrorMessage
			if err := json.Unmarshal(errs[0].Payload, &msg); err != nil {
				t.Fatalf("error payload: %v", err)
			}
			if msg.Op != "probe" || msg.Error == "" || errs[0].Retained {
				t.Errorf("error message = %+v retained=%v", msg, errs[0].Retained)
			}
		})
	}
}

func TestBus_RegistryFull(t *testing.T) {
	_, _, messenger, _ := newTestBus(t, 1)

	if err := messenger.deliver(t, "test/bus/probe", `{"identity":"a","capacity":8,"permission":"ro"}`); err != nil {
		t.Fatal(err)
	}
	err := messenger.deliver(t, "test/bus/probe", `{"identity":"b","capacity":8,"permission":"ro"}`)
	if !errors.Is(err, device.ErrCapacityExceeded) {
		t.Errorf("probe handler error = %v, want ErrCapacityExceeded", err)
	}
	if len(messenger.publishedTo("test/bus/error")) != 1 {
		t.Error("registry full not reported on the error topic")
	}
}

func TestBus_Remove(t *testing.T) {
	_, controller, messenger, _ := newTestBus(t, 3)

	for _, p := range []string{
		`{"identity":"a","capacity":8,"permission":"ro"}`,
		`{"identity":"b","capacity":8,"permission":"wo"}`,
	} {
		if err := messenger.deliver(t, "test/bus/probe", p); err != nil {
			t.Fatal(err)
		}
	}

	if err := messenger.deliver(t, "test/bus/remove", `{"identity":"a"}`); err != nil {
		t.Fatalf("remove by identity error = %v", err)
	}
	if err := messenger.deliver(t, "test/bus/remove", `{"handle":1}`); err != nil {
		t.Fatalf("remove by handle error = %v", err)
	}
	if len(controller.Bound()) != 0 {
		t.Errorf("Bound() = %v, want empty", controller.Bound())
	}

	status := messenger.publishedTo("test/device/a/status")
	if len(status) != 2 {
		t.Fatalf("status publishes for a = %d, want 2", len(status))
	}
	var msg StatusMessage
	if err := json.Unmarshal(status[1].Payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Status != StatusDetached || !status[1].Retained {
		t.Errorf("final status = %+v retained=%v, want detached/retained", msg, status[1].Retained)
	}
}

func TestBus_Remove_Failures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"malformed", `not json`, ErrInvalidMessage},
		{"empty request", `{}`, ErrInvalidMessage},
		{"unknown identity", `{"identity":"ghost"}`, ErrNotBound},
		{"free handle", `{"handle":0}`, device.ErrInvalidHandle},
		{"out of range handle", `{"handle":-4}`, device.ErrInvalidHandle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, messenger, _ := newTestBus(t, 2)

			err := messenger.deliver(t, "test/bus/remove", tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("remove handler error = %v, want %v", err, tt.wantErr)
			}
			errs := messenger.publishedTo("test/bus/error")
			if len(errs) != 1 {
				t.Fatalf("error publishes = %d, want 1", len(errs))
			}
			var msg ErrorMessage
			if err := json.Unmarshal(errs[0].Payload, &msg); err != nil {
				t.Fatal(err)
			}
			if msg.Op != "remove" {
				t.Errorf("error op = %q, want remove", msg.Op)
			}
		})
	}
}

func TestBus_StatusForOtherSources(t *testing.T) {
	_, controller, messenger, _ := newTestBus(t, 2)
	ctx := ContextWithOrigin(context.Background(), Origin{Source: SourceConfig})

	if _, err := controller.Probe(ctx, rw("static", 8)); err != nil {
		t.Fatal(err)
	}
	if len(messenger.publishedTo("test/device/static/status")) != 1 {
		t.Error("config-probed device has no status message")
	}
}

func TestBus_StartStop(t *testing.T) {
	controller, _, _ := newTestController(t, 1)
	messenger := newMockMessenger()
	bus := NewBus(messenger, controller, mqtt.NewTopics("test"), 0)

	if err := bus.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(messenger.handlers) != 2 {
		t.Errorf("subscriptions = %d, want 2", len(messenger.handlers))
	}
	if err := bus.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(messenger.handlers) != 0 {
		t.Errorf("subscriptions after Stop() = %d, want 0", len(messenger.handlers))
	}

	failing := newMockMessenger()
	failing.subscribeErr = mqtt.ErrNotConnected
	if err := NewBus(failing, controller, mqtt.NewTopics("test"), 0).Start(context.Background()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}
