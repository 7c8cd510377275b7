package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/storefront-orders/internal/clock"
	domain "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
)

// InventoryRepository is an in-process stock ledger. Decrement holds the write lock across
// the compare and the write, so concurrent decrements never oversell.
type InventoryRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	clock    clock.Clock
}

func NewInventoryRepository(clk clock.Clock, products ...*domain.Product) *InventoryRepository {
	if clk == nil {
		clk = clock.NewSystem()
	}
	r := &InventoryRepository{
		products: make(map[string]*domain.Product, len(products)),
		clock:    clk,
	}
	for _, p := range products {
		r.products[p.ID] = p.Clone()
	}
	return r
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *InventoryRepository) Decrement(ctx context.Context, productID, size string, quantity int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p.Deduct(size, quantity, r.clock.Now())
}

// Put inserts or replaces a product; used for seeding.
func (r *InventoryRepository) Put(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[p.ID] = p.Clone()
	return nil
}
