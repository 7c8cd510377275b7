package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationRequested is consumed by a downstream mailer.
type NotificationRequested struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	RequestedAt time.Time `json:"requested_at"`
}

const notificationRequested = "notification.requested"

// Notifier hands mail to a mailer service through a Kafka topic.
type Notifier struct {
	writer MessageWriter
}

func NewNotifier(writer MessageWriter) *Notifier {
	return &Notifier{writer: writer}
}

func (n *Notifier) Notify(ctx context.Context, email, subject, body string) error {
	msg := NotificationRequested{
		EventID:     uuid.NewString(),
		Type:        notificationRequested,
		To:          email,
		Subject:     subject,
		Body:        body,
		RequestedAt: time.Now().UTC(),
	}
	if err := PublishJSON(ctx, n.writer, email, msg); err != nil {
		return fmt.Errorf("kafka: request notification: %w", err)
	}
	return nil
}
