package order

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	"github.com/shopspring/decimal"
)

func TestAddOrderItem(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	seedOrder(t, h, "o1", "SP1")
	uc := NewAddOrderItemUseCase(h.deps, nil)
	ctx := context.Background()

	item, err := uc.Execute(ctx, AddOrderItemInput{OrderID: "o1", ProductID: "productA", Size: "M", Quantity: 1, UnitPrice: decimal.NewFromInt(250)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ID == "" || item.OrderID != "o1" {
		t.Fatalf("unexpected item %+v", item)
	}

	cases := []struct {
		name string
		cmd  AddOrderItemInput
		code apperr.Code
	}{
		{"exceeds order total", AddOrderItemInput{OrderID: "o1", ProductID: "productA", Size: "M", Quantity: 2, UnitPrice: decimal.NewFromInt(250)}, apperr.CodeValidation},
		{"unknown order", AddOrderItemInput{OrderID: "nope", ProductID: "productA", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}, apperr.CodeNotFound},
		{"zero quantity", AddOrderItemInput{OrderID: "o1", ProductID: "productA", Quantity: 0, UnitPrice: decimal.NewFromInt(1)}, apperr.CodeValidation},
		{"negative price", AddOrderItemInput{OrderID: "o1", ProductID: "productA", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}, apperr.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.Execute(ctx, tc.cmd); !apperr.Is(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	items, _ := h.orders.Items(ctx, "o1")
	if len(items) != 1 {
		t.Fatalf("expected 1 stored item, got %d", len(items))
	}
}
