package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrDeclined means the processor answered and refused the charge.
	ErrDeclined = errors.New("payment: declined")
	// ErrUnavailable means the outcome of the call is unknown (timeout, transport failure, 5xx).
	ErrUnavailable = errors.New("payment: gateway unavailable")
	// ErrNotFound is returned by FindByReference when the processor has no charge for the reference.
	ErrNotFound      = errors.New("payment: transaction not found")
	ErrNonceRequired = errors.New("payment: nonce is required")
	ErrInvalidAmount = errors.New("payment: amount must be greater than zero")
)

// AuthorizeRequest is a one-time charge against a client nonce. Reference is the merchant
// order reference the processor stores alongside the charge so it can be found again.
type AuthorizeRequest struct {
	Amount    decimal.Decimal
	Nonce     string
	Reference string
}

func (r AuthorizeRequest) Validate() error {
	if r.Nonce == "" {
		return ErrNonceRequired
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

type Authorization struct {
	TransactionID string
	Success       bool
	Status        string
	DeclineReason string
	Amount        decimal.Decimal
}

// Gateway wraps the external payment processor.
type Gateway interface {
	ClientToken(ctx context.Context) (string, error)
	Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error)
	FindByReference(ctx context.Context, reference string) (Authorization, error)
}

// DeclineError carries the processor's reason; it matches ErrDeclined under errors.Is.
type DeclineError struct {
	Reason        string
	TransactionID string
}

func (e *DeclineError) Error() string {
	if e.Reason == "" {
		return ErrDeclined.Error()
	}
	return fmt.Sprintf("%s: %s", ErrDeclined.Error(), e.Reason)
}

func (e *DeclineError) Is(target error) bool { return target == ErrDeclined }

// FormatAmount renders an amount the way processors expect it: fixed two decimals, dot separator.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
