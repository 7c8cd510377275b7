package order

import "context"

// Repository persists orders and their items. Insert and Update return
// ErrTrackingNumberTaken when the tracking number is already used by another order.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	FindByNonce(ctx context.Context, nonce string) (*Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*Order, error)
	InsertItem(ctx context.Context, item Item) error
	Items(ctx context.Context, orderID string) ([]Item, error)
}
