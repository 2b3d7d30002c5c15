//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"
)

// These tests need a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func TestIntegration_Connect(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "pseudodevd-int-connect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if client.Topics().Prefix != "pseudodev" {
		t.Errorf("Topics().Prefix = %q, want pseudodev", client.Topics().Prefix)
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "pseudodevd-int-sub-track"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := []string{
		client.Topics().BusProbe(),
		client.Topics().BusRemove(),
		client.Topics().AllDeviceStatus(),
	}
	handler := func(string, []byte) error { return nil }

	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	cfg := testConfig()

	cfg.Broker.ClientID = "pseudodevd-int-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "pseudodevd-int-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topic := subClient.Topics().DeviceStatus("roundtrip")
	expected := `{"status":"attached"}`

	received := make(chan string, 1)
	var once sync.Once
	err = subClient.Subscribe(topic, 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.Publish(topic, []byte(expected), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != expected {
			t.Errorf("received = %q, want %q", msg, expected)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}
