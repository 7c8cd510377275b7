package notification

import (
	"context"
	"errors"
)

var (
	ErrCustomerNotFound = errors.New("notification: customer not found")
	ErrNoRecipient      = errors.New("notification: recipient e-mail is required")
	ErrUnknownTemplate  = errors.New("notification: unknown template")
)

// Notifier delivers one message. Callers treat delivery as best effort.
type Notifier interface {
	Notify(ctx context.Context, email, subject, body string) error
}

// CustomerDirectory resolves the owning user of an order to a contact address.
type CustomerDirectory interface {
	Email(ctx context.Context, userID string) (string, error)
}

// Template names rendered by the dispatcher.
const (
	TemplateOutForDelivery  = "out_for_delivery"
	TemplateOrderPlaced     = "order_placed"
	TemplateFulfillmentRisk = "fulfillment_risk"
)
