package inventory

import (
	"context"
)

// Ledger is the catalog stock store. Decrement must be a single conditional write:
// it succeeds only while stockCount >= quantity at commit time.
type Ledger interface {
	Get(ctx context.Context, productID string) (*Product, error)
	Decrement(ctx context.Context, productID, size string, quantity int) (remaining int, err error)
}
