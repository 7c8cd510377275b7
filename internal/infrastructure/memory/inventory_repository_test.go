package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/clock"
	domain "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

func seedProduct(stock int) *domain.Product {
	return &domain.Product{
		ID:        "product-a",
		Name:      "Tee",
		UnitPrice: decimal.NewFromInt(250),
		Stock:     []domain.StockEntry{{Size: "M", StockCount: stock}},
	}
}

func TestInventoryRepositoryDecrement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewInventoryRepository(clock.NewFixed(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)), seedProduct(3))

	left, err := repo.Decrement(ctx, "product-a", "M", 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if left != 1 {
		t.Fatalf("expected 1 left, got %d", left)
	}

	if _, err := repo.Decrement(ctx, "product-a", "M", 2); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	p, _ := repo.Get(ctx, "product-a")
	if got, _ := p.StockFor("M"); got != 1 {
		t.Fatalf("expected stock untouched at 1, got %d", got)
	}

	if _, err := repo.Decrement(ctx, "missing", "M", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInventoryRepositoryConcurrentDecrementNeverOversells(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewInventoryRepository(nil, seedProduct(5))

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Decrement(ctx, "product-a", "M", 2); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 2 {
		t.Fatalf("expected exactly 2 successful decrements of 2 from 5, got %d", ok.Load())
	}
	p, _ := repo.Get(ctx, "product-a")
	if got, _ := p.StockFor("M"); got != 1 {
		t.Fatalf("expected 1 left, got %d", got)
	}
}

func TestInventoryRepositoryGetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewInventoryRepository(nil, seedProduct(3))

	p, _ := repo.Get(ctx, "product-a")
	p.Stock[0].StockCount = 100

	again, _ := repo.Get(ctx, "product-a")
	if got, _ := again.StockFor("M"); got != 3 {
		t.Fatalf("expected stored stock 3, got %d", got)
	}
}
