package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	dominv "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/observabilitytest"
	"github.com/shopspring/decimal"
)

func newLedger() *memory.InventoryRepository {
	return memory.NewInventoryRepository(nil,
		&dominv.Product{ID: "a", UnitPrice: decimal.NewFromInt(250), Stock: []dominv.StockEntry{{Size: "M", StockCount: 3}}},
		&dominv.Product{ID: "b", UnitPrice: decimal.NewFromInt(40), Stock: []dominv.StockEntry{{Size: "S", StockCount: 1}}},
	)
}

type failingLedger struct{ err error }

func (f failingLedger) Get(context.Context, string) (*dominv.Product, error) { return nil, f.err }
func (f failingLedger) Decrement(context.Context, string, string, int) (int, error) {
	return 0, f.err
}

func TestValidateStock(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		demands []dominv.Demand
		allOK   bool
		reasons []string
		code    apperr.Code
	}{
		{
			name:    "all lines available",
			demands: []dominv.Demand{{ProductID: "a", Size: "M", Quantity: 2}, {ProductID: "b", Size: "s", Quantity: 1}},
			allOK:   true,
			reasons: []string{"", ""},
		},
		{
			name:    "one line short",
			demands: []dominv.Demand{{ProductID: "a", Size: "M", Quantity: 4}, {ProductID: "b", Size: "S", Quantity: 1}},
			reasons: []string{dominv.ReasonShort, ""},
		},
		{
			name:    "repeated size summed across lines",
			demands: []dominv.Demand{{ProductID: "a", Size: "M", Quantity: 2}, {ProductID: "a", Size: "m", Quantity: 2}},
			reasons: []string{dominv.ReasonShort, dominv.ReasonShort},
		},
		{
			name:    "unknown product and size",
			demands: []dominv.Demand{{ProductID: "zzz", Size: "M", Quantity: 1}, {ProductID: "a", Size: "XL", Quantity: 1}},
			reasons: []string{dominv.ReasonUnknownProduct, dominv.ReasonUnknownSize},
		},
		{
			name: "empty demand list",
			code: apperr.CodeValidation,
		},
		{
			name:    "zero quantity",
			demands: []dominv.Demand{{ProductID: "a", Size: "M", Quantity: 0}},
			code:    apperr.CodeValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			uc := NewValidateStockUseCase(newLedger(), 2, nil)
			report, err := uc.Execute(context.Background(), tc.demands)
			if tc.code != "" {
				if !apperr.Is(err, tc.code) {
					t.Fatalf("expected %s, got %v", tc.code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(report) != len(tc.demands) {
				t.Fatalf("expected %d lines, got %d", len(tc.demands), len(report))
			}
			for i, a := range report {
				if a.Reason != tc.reasons[i] {
					t.Fatalf("line %d: expected reason %q, got %q", i, tc.reasons[i], a.Reason)
				}
				if a.ProductID != tc.demands[i].ProductID {
					t.Fatalf("line %d: expected product %s, got %s", i, tc.demands[i].ProductID, a.ProductID)
				}
			}
			if AllAvailable(report) != tc.allOK {
				t.Fatalf("expected allOK=%v, got %v", tc.allOK, !tc.allOK)
			}
		})
	}
}

func TestValidateStockLedgerFailure(t *testing.T) {
	t.Parallel()

	uc := NewValidateStockUseCase(failingLedger{err: errors.New("boom")}, 0, nil)
	_, err := uc.Execute(context.Background(), []dominv.Demand{{ProductID: "a", Size: "M", Quantity: 1}})
	if !apperr.Is(err, apperr.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestDecrementStock(t *testing.T) {
	t.Parallel()

	rec := observabilitytest.New()
	uc := NewDecrementStockUseCase(newLedger(), rec)
	ctx := context.Background()

	p, err := uc.Execute(ctx, DecrementStockInput{ProductID: "a", Size: "M", Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := p.StockFor("M"); got != 1 {
		t.Fatalf("expected 1 left, got %d", got)
	}

	_, err = uc.Execute(ctx, DecrementStockInput{ProductID: "a", Size: "M", Quantity: 2})
	if !apperr.Is(err, apperr.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if !errors.Is(err, dominv.ErrInsufficientStock) {
		t.Fatalf("expected sentinel to survive wrapping, got %v", err)
	}

	_, err = uc.Execute(ctx, DecrementStockInput{ProductID: "nope", Size: "M", Quantity: 1})
	if !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = uc.Execute(ctx, DecrementStockInput{ProductID: "a", Size: "", Quantity: 1})
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if got := rec.Count(observability.MStockDecrementRejected, observability.L("source", "api")); got != 2 {
		t.Fatalf("expected 2 rejected decrements, got %v", got)
	}
	if got := rec.Count(observability.MUsecaseRequests, observability.L("use_case", useCaseDecrement), observability.L("outcome", "success")); got != 1 {
		t.Fatalf("expected 1 successful request, got %v", got)
	}
}
