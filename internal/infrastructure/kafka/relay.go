package kafka

import (
	"context"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/storefront-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"
	"github.com/google/uuid"
)

const relayPeer = "kafka"

// Envelope is the wire shape of every relayed domain event.
type Envelope struct {
	EventID    string    `json:"event_id"`
	OrderID    string    `json:"order_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Relay forwards bus events to a Kafka topic, keyed by aggregate id so one order's events
// stay ordered within a partition.
type Relay struct {
	writer   MessageWriter
	now      func() time.Time
	log      observability.Logger
	requests observability.Counter
	duration observability.Histogram
}

func NewRelay(writer MessageWriter, tel observability.Observability) *Relay {
	_, logger, metrics := observability.Resolve(tel)
	return &Relay{
		writer:   writer,
		now:      time.Now,
		log:      logger.With(observability.F("component", "kafka_relay")),
		requests: metrics.Counter(observability.MExternalRequests),
		duration: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Attach subscribes the relay to the named events.
func (r *Relay) Attach(sub domoutbox.Subscriber, eventNames ...string) {
	for _, name := range eventNames {
		sub.Subscribe(name, r.Handle)
	}
}

func (r *Relay) Handle(ctx context.Context, e domoutbox.Event) error {
	key := domoutbox.KeyOf(e)
	env := Envelope{
		EventID:    uuid.NewString(),
		OrderID:    key,
		Type:       e.EventName(),
		OccurredAt: r.now().UTC(),
		Payload:    e,
	}

	start := time.Now()
	err := PublishJSON(ctx, r.writer, key, env)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.requests.Add(1,
		observability.L("peer", relayPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	r.duration.Observe(time.Since(start).Seconds(),
		observability.L("peer", relayPeer),
		observability.L("endpoint", e.EventName()),
	)
	if err != nil {
		return fmt.Errorf("kafka: relay %s: %w", e.EventName(), err)
	}
	logctx.FromOr(ctx, r.log).Debug("event_relayed", observability.F("event_id", env.EventID))
	return nil
}
