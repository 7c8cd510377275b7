// Package saga holds the durable record of an order placement attempt. An intent is written
// before the charge so a paid-for order can always be completed or escalated later.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("saga: intent not found")
	ErrDuplicateNonce = errors.New("saga: nonce already used")
	ErrInvalidState   = errors.New("saga: invalid intent state")
	// ErrStale means the stored intent moved on since it was read; another worker owns it.
	ErrStale = errors.New("saga: intent changed concurrently")
)

type State string

const (
	StateStarted    State = "started"
	StateAuthorized State = "authorized"
	StateFulfilled  State = "fulfilled"
	StateDeclined   State = "declined"
	StateUnknown    State = "unknown"
	StateAtRisk     State = "at_risk"
	StateAbandoned  State = "abandoned"
)

// Charged reports whether the gateway is known to hold money for this intent.
func (s State) Charged() bool {
	return s == StateAuthorized || s == StateFulfilled || s == StateAtRisk
}

// Open reports whether the reconciliation sweep should still look at the intent.
func (s State) Open() bool {
	return s == StateStarted || s == StateUnknown || s == StateAuthorized
}

// Line is the cart snapshot captured at intent time. Applied flips once the stock for the line
// has been decremented, so a resumed saga never decrements twice.
type Line struct {
	ProductID   string          `json:"product_id"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ItemWritten bool            `json:"item_written"`
	Applied     bool            `json:"applied"`
}

type Intent struct {
	ID              string
	OrderID         string
	UserID          string
	Nonce           string
	Amount          decimal.Decimal
	Lines           []Line
	DeliveryAddress string
	PaymentMode     string
	PaymentDetails  map[string]string
	State           State
	TransactionID   string
	LastError       string
	Attempts        int
	// Version is bumped by every successful Update; Update only applies on a matching Version.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *Intent) transition(to State, allowed []State, now time.Time) error {
	for _, s := range allowed {
		if i.State == s {
			i.State = to
			i.UpdatedAt = now.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidState, i.State, to)
}

// MarkAuthorized records a confirmed charge. An abandoned intent can still be authorized when
// the charge lands after the sweep gave up on it.
func (i *Intent) MarkAuthorized(transactionID string, now time.Time) error {
	if err := i.transition(StateAuthorized, []State{StateStarted, StateUnknown, StateAbandoned}, now); err != nil {
		return err
	}
	i.TransactionID = transactionID
	i.LastError = ""
	return nil
}

func (i *Intent) MarkDeclined(reason string, now time.Time) error {
	if err := i.transition(StateDeclined, []State{StateStarted, StateUnknown}, now); err != nil {
		return err
	}
	i.LastError = reason
	return nil
}

func (i *Intent) MarkUnknown(reason string, now time.Time) error {
	if err := i.transition(StateUnknown, []State{StateStarted, StateUnknown}, now); err != nil {
		return err
	}
	i.LastError = reason
	return nil
}

func (i *Intent) MarkAbandoned(reason string, now time.Time) error {
	if err := i.transition(StateAbandoned, []State{StateStarted, StateUnknown}, now); err != nil {
		return err
	}
	i.LastError = reason
	return nil
}

func (i *Intent) MarkAtRisk(reason string, now time.Time) error {
	if err := i.transition(StateAtRisk, []State{StateAuthorized, StateAtRisk}, now); err != nil {
		return err
	}
	i.LastError = reason
	return nil
}

func (i *Intent) MarkFulfilled(now time.Time) error {
	if err := i.transition(StateFulfilled, []State{StateAuthorized}, now); err != nil {
		return err
	}
	i.LastError = ""
	return nil
}

// Touch records another resumption attempt.
func (i *Intent) Touch(now time.Time) {
	i.Attempts++
	i.UpdatedAt = now.UTC()
}

// Complete reports whether every line has its item written and its stock applied.
func (i *Intent) Complete() bool {
	for _, l := range i.Lines {
		if !l.ItemWritten || !l.Applied {
			return false
		}
	}
	return true
}

func (i *Intent) Clone() *Intent {
	if i == nil {
		return nil
	}
	clone := *i
	clone.Lines = append([]Line(nil), i.Lines...)
	if i.PaymentDetails != nil {
		clone.PaymentDetails = make(map[string]string, len(i.PaymentDetails))
		for k, v := range i.PaymentDetails {
			clone.PaymentDetails[k] = v
		}
	}
	return &clone
}

// Repository persists intents. Create fails with ErrDuplicateNonce when the nonce was seen before
// and sets Version to 1. Update fails with ErrStale when the stored Version differs from the
// intent's, and increments Version on success.
type Repository interface {
	Create(ctx context.Context, intent *Intent) error
	Get(ctx context.Context, id string) (*Intent, error)
	FindByNonce(ctx context.Context, nonce string) (*Intent, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*Intent, error)
	Update(ctx context.Context, intent *Intent) error
	ListOpen(ctx context.Context, updatedBefore time.Time, limit int) ([]*Intent, error)
}
