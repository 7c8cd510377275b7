package order

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("order: not found")
	ErrConflict            = errors.New("order: already exists")
	ErrTrackingNumberTaken = errors.New("order: tracking number already assigned")
	ErrInvalidAmount       = errors.New("order: amount must be greater than zero")
	ErrInvalidQuantity     = errors.New("order: quantity must be greater than zero")
	ErrUserRequired        = errors.New("order: user id is required")
	ErrAddressRequired     = errors.New("order: delivery address is required")
)

// DefaultLeadTime is the gap between placement and the first delivery estimate.
const DefaultLeadTime = 7 * 24 * time.Hour

type Order struct {
	ID                   string
	UserID               string
	TotalAmount          decimal.Decimal
	PaymentMode          string
	PaymentDetails       map[string]string
	Status               Status
	PlacedAt             time.Time
	EstimatedDeliveryAt  time.Time
	DeliveryAddress      string
	TrackingNumber       string
	GatewayTransactionID string
	PaymentNonce         string
	FulfillmentRisk      bool
	UpdatedAt            time.Time
	Items                []Item
}

// NewParams collects what placement knows when the charge has gone through.
type NewParams struct {
	ID                   string
	UserID               string
	TotalAmount          decimal.Decimal
	PaymentMode          string
	PaymentDetails       map[string]string
	DeliveryAddress      string
	TrackingNumber       string
	GatewayTransactionID string
	PaymentNonce         string
	PlacedAt             time.Time
	LeadTime             time.Duration
}

func New(p NewParams) (*Order, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(p.DeliveryAddress) == "" {
		return nil, ErrAddressRequired
	}
	if !p.TotalAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	lead := p.LeadTime
	if lead <= 0 {
		lead = DefaultLeadTime
	}
	placed := p.PlacedAt.UTC()
	return &Order{
		ID:                   p.ID,
		UserID:               p.UserID,
		TotalAmount:          p.TotalAmount,
		PaymentMode:          p.PaymentMode,
		PaymentDetails:       p.PaymentDetails,
		Status:               StatusPending,
		PlacedAt:             placed,
		EstimatedDeliveryAt:  placed.Add(lead),
		DeliveryAddress:      p.DeliveryAddress,
		TrackingNumber:       p.TrackingNumber,
		GatewayTransactionID: p.GatewayTransactionID,
		PaymentNonce:         p.PaymentNonce,
		UpdatedAt:            placed,
	}, nil
}

// TransitionTo moves the order along the status graph.
func (o *Order) TransitionTo(next Status, now time.Time) error {
	if err := CheckTransition(o.Status, next); err != nil {
		return err
	}
	o.Status = next
	o.UpdatedAt = now.UTC()
	return nil
}

func (o *Order) MarkFulfillmentRisk(now time.Time) {
	o.FulfillmentRisk = true
	o.UpdatedAt = now.UTC()
}

// ItemsTotal sums unitPrice * quantity over the attached items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.PaymentDetails != nil {
		clone.PaymentDetails = make(map[string]string, len(o.PaymentDetails))
		for k, v := range o.PaymentDetails {
			clone.PaymentDetails[k] = v
		}
	}
	clone.Items = append([]Item(nil), o.Items...)
	return &clone
}
