package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
)

// OrderRepository keeps orders and items in maps; secondary maps play the role of the
// unique indexes on tracking number, nonce and gateway transaction id.
type OrderRepository struct {
	mu            sync.RWMutex
	orders        map[string]*domain.Order
	items         map[string][]domain.Item
	itemIDs       map[string]struct{}
	byTracking    map[string]string
	byNonce       map[string]string
	byTransaction map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:        make(map[string]*domain.Order),
		items:         make(map[string][]domain.Item),
		itemIDs:       make(map[string]struct{}),
		byTracking:    make(map[string]string),
		byNonce:       make(map[string]string),
		byTransaction: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	if order.TrackingNumber != "" {
		if _, taken := r.byTracking[order.TrackingNumber]; taken {
			return domain.ErrTrackingNumberTaken
		}
	}
	if order.PaymentNonce != "" {
		if _, taken := r.byNonce[order.PaymentNonce]; taken {
			return domain.ErrConflict
		}
	}

	r.orders[order.ID] = stripItems(order)
	r.index(order)
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.getLocked(id)
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if order.TrackingNumber != "" && order.TrackingNumber != current.TrackingNumber {
		if owner, taken := r.byTracking[order.TrackingNumber]; taken && owner != order.ID {
			return domain.ErrTrackingNumberTaken
		}
		delete(r.byTracking, current.TrackingNumber)
	}

	r.orders[order.ID] = stripItems(order)
	r.index(order)
	return nil
}

func (r *OrderRepository) FindByNonce(ctx context.Context, nonce string) (*domain.Order, error) {
	return r.findBy(ctx, r.byNonce, nonce)
}

func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error) {
	return r.findBy(ctx, r.byTransaction, transactionID)
}

func (r *OrderRepository) InsertItem(ctx context.Context, item domain.Item) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[item.OrderID]; !ok {
		return domain.ErrNotFound
	}
	if _, dup := r.itemIDs[item.ID]; dup {
		return domain.ErrConflict
	}
	r.itemIDs[item.ID] = struct{}{}
	r.items[item.OrderID] = append(r.items[item.OrderID], item)
	return nil
}

func (r *OrderRepository) Items(ctx context.Context, orderID string) ([]domain.Item, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.orders[orderID]; !ok {
		return nil, domain.ErrNotFound
	}
	out := append([]domain.Item(nil), r.items[orderID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *OrderRepository) findBy(ctx context.Context, index map[string]string, key string) (*domain.Order, error) {
	_ = ctx
	if key == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.getLocked(id)
}

func (r *OrderRepository) getLocked(id string) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := order.Clone()
	clone.Items = append([]domain.Item(nil), r.items[id]...)
	return clone, nil
}

func (r *OrderRepository) index(order *domain.Order) {
	if order.TrackingNumber != "" {
		r.byTracking[order.TrackingNumber] = order.ID
	}
	if order.PaymentNonce != "" {
		r.byNonce[order.PaymentNonce] = order.ID
	}
	if order.GatewayTransactionID != "" {
		r.byTransaction[order.GatewayTransactionID] = order.ID
	}
}

func stripItems(order *domain.Order) *domain.Order {
	clone := order.Clone()
	clone.Items = nil
	return clone
}
