package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestNewClientSplitsBrokers(t *testing.T) {
	t.Parallel()

	c := NewClient([]string{"a:9092, b:9092", "", "c:9092"})
	if len(c.Brokers) != 3 || c.Brokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", c.Brokers)
	}
	if !c.Enabled() {
		t.Fatal("expected client to be enabled")
	}
	if NewClient(nil).Enabled() {
		t.Fatal("expected empty client to be disabled")
	}
}

func TestRelayKeysByAggregate(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	r := NewRelay(w, nil)

	if err := r.Handle(context.Background(), domorder.PlacedEvent{OrderID: "o1", TrackingNumber: "SP1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "o1" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}

	var env struct {
		EventID string         `json:"event_id"`
		OrderID string         `json:"order_id"`
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(w.msgs[0].Value, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != "order.placed" || env.OrderID != "o1" || env.EventID == "" || env.Payload["tracking_number"] != "SP1" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	w.err = errors.New("broker down")
	if err := r.Handle(context.Background(), domorder.PlacedEvent{OrderID: "o2"}); err == nil {
		t.Fatal("expected relay error")
	}
}

func TestNotifierPublishesRequest(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	if err := NewNotifier(w).Notify(context.Background(), "a@b.c", "Hi", "Body"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	var got NotificationRequested
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.To != "a@b.c" || got.Type != notificationRequested || got.Subject != "Hi" {
		t.Fatalf("unexpected message %+v", got)
	}
}
