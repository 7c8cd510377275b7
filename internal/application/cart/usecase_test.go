package cart

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	domcart "github.com/Zhima-Mochi/storefront-orders/internal/domain/cart"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/memory"
)

func TestClearCart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewCartRepository()
	if err := repo.Replace(ctx, "u1", []domcart.Line{{ProductID: "a", Size: "M", Quantity: 1}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	uc := NewClearCartUseCase(repo, nil)

	if _, err := uc.Execute(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines, _ := repo.Lines(ctx, "u1")
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(lines))
	}

	if _, err := uc.Execute(ctx, " "); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
