package order

import "time"

// PlacedEvent is emitted once the placement saga has written the order.
type PlacedEvent struct {
	OrderID         string    `json:"order_id"`
	UserID          string    `json:"user_id"`
	TrackingNumber  string    `json:"tracking_number"`
	TotalAmount     string    `json:"total_amount"`
	TransactionID   string    `json:"transaction_id"`
	FulfillmentRisk bool      `json:"fulfillment_risk"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func (PlacedEvent) EventName() string { return "order.placed" }

func (e PlacedEvent) AggregateID() string { return e.OrderID }

func NewPlacedEvent(o *Order, now time.Time) PlacedEvent {
	return PlacedEvent{
		OrderID:         o.ID,
		UserID:          o.UserID,
		TrackingNumber:  o.TrackingNumber,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		TransactionID:   o.GatewayTransactionID,
		FulfillmentRisk: o.FulfillmentRisk,
		OccurredAt:      now.UTC(),
	}
}

// StatusChangedEvent is emitted after every applied status transition.
type StatusChangedEvent struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (StatusChangedEvent) EventName() string { return "order.status_changed" }

func (e StatusChangedEvent) AggregateID() string { return e.OrderID }

func NewStatusChangedEvent(o *Order, from Status, now time.Time) StatusChangedEvent {
	return StatusChangedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		From:       from,
		To:         o.Status,
		OccurredAt: now.UTC(),
	}
}

// FulfillmentRiskEvent is emitted when a charged order could not be fully written.
type FulfillmentRiskEvent struct {
	OrderID       string    `json:"order_id"`
	IntentID      string    `json:"intent_id"`
	TransactionID string    `json:"transaction_id"`
	Stage         string    `json:"stage"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (FulfillmentRiskEvent) EventName() string { return "order.fulfillment_risk" }

func (e FulfillmentRiskEvent) AggregateID() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.IntentID
}
