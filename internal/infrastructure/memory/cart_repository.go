package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/storefront-orders/internal/domain/cart"
)

type CartRepository struct {
	mu    sync.RWMutex
	carts map[string][]domain.Line
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string][]domain.Line)}
}

func (r *CartRepository) Lines(ctx context.Context, userID string) ([]domain.Line, error) {
	_ = ctx
	if userID == "" {
		return nil, domain.ErrUserRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.Line(nil), r.carts[userID]...), nil
}

func (r *CartRepository) Replace(ctx context.Context, userID string, lines []domain.Line) error {
	_ = ctx
	if userID == "" {
		return domain.ErrUserRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[userID] = append([]domain.Line(nil), lines...)
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_ = ctx
	if userID == "" {
		return domain.ErrUserRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)
	return nil
}
