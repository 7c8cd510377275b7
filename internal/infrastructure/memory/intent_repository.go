package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
)

type IntentRepository struct {
	mu      sync.RWMutex
	intents map[string]*domain.Intent
	byNonce map[string]string
}

func NewIntentRepository() *IntentRepository {
	return &IntentRepository{
		intents: make(map[string]*domain.Intent),
		byNonce: make(map[string]string),
	}
}

func (r *IntentRepository) Create(ctx context.Context, intent *domain.Intent) error {
	_ = ctx
	if intent == nil || intent.ID == "" {
		return fmt.Errorf("intent repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byNonce[intent.Nonce]; taken {
		return domain.ErrDuplicateNonce
	}
	intent.Version = 1
	r.intents[intent.ID] = intent.Clone()
	r.byNonce[intent.Nonce] = intent.ID
	return nil
}

func (r *IntentRepository) Get(ctx context.Context, id string) (*domain.Intent, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.intents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return in.Clone(), nil
}

func (r *IntentRepository) FindByNonce(ctx context.Context, nonce string) (*domain.Intent, error) {
	r.mu.RLock()
	id, ok := r.byNonce[nonce]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *IntentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Intent, error) {
	_ = ctx
	if transactionID == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, in := range r.intents {
		if in.TransactionID == transactionID {
			return in.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *IntentRepository) Update(ctx context.Context, intent *domain.Intent) error {
	_ = ctx
	if intent == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.intents[intent.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != intent.Version {
		return domain.ErrStale
	}
	intent.Version++
	r.intents[intent.ID] = intent.Clone()
	return nil
}

func (r *IntentRepository) ListOpen(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Intent, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Intent
	for _, in := range r.intents {
		if in.State.Open() && in.UpdatedAt.Before(updatedBefore) {
			out = append(out, in.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
