package order

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/clock"
	domcart "github.com/Zhima-Mochi/storefront-orders/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront-orders/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
)

type IDGenerator interface {
	NewID() string
}

type TrackingGenerator interface {
	NewTrackingNumber() (string, error)
}

// StockValidator reports per-line availability; see inventory.ValidateStockUseCase.
type StockValidator interface {
	Execute(ctx context.Context, demands []dominv.Demand) ([]dominv.Availability, error)
}

// UserNotifier sends a templated message to the owner of an order.
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID, template string, data any) error
}

// Dependencies are the stores and adapters shared by the placement saga and its sweep.
type Dependencies struct {
	Orders    domorder.Repository
	Intents   saga.Repository
	Ledger    dominv.Ledger
	Carts     domcart.Repository
	Gateway   dompay.Gateway
	Publisher domoutbox.Publisher
	IDs       IDGenerator
	Tracking  TrackingGenerator
	Clock     clock.Clock
	LeadTime  time.Duration
}

func (d Dependencies) now() time.Time {
	if d.Clock == nil {
		return time.Now().UTC()
	}
	return d.Clock.Now().UTC()
}
