package order

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/gateway"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	ctx := context.Background()

	placed := placeInput(gateway.NonceValid, 250)
	placed.Lines = []LineInput{{ProductID: "productA", Size: "M", Quantity: 1}}
	res, err := h.placeUseCase().Execute(ctx, placed)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	pending := placeInput(gateway.NonceTimeout, 250)
	pending.Lines = placed.Lines
	if _, err := h.placeUseCase().Execute(ctx, pending); !apperr.Is(err, apperr.CodeGatewayUnavailable) {
		t.Fatalf("expected gateway_unavailable, got %v", err)
	}

	uc := NewLookupUseCase(h.orders, h.intents, nil)

	byNonce, err := uc.Execute(ctx, LookupInput{Nonce: gateway.NonceValid})
	if err != nil || byNonce.Order == nil || byNonce.Order.ID != res.Order.ID {
		t.Fatalf("expected order by nonce, got %+v %v", byNonce, err)
	}

	byTx, err := uc.Execute(ctx, LookupInput{TransactionID: res.Order.GatewayTransactionID})
	if err != nil || byTx.Order == nil || byTx.Intent.State != saga.StateFulfilled {
		t.Fatalf("expected order by transaction id, got %+v %v", byTx, err)
	}

	unknown, err := uc.Execute(ctx, LookupInput{Nonce: gateway.NonceTimeout})
	if err != nil || unknown.Order != nil || unknown.Intent.State != saga.StateUnknown {
		t.Fatalf("expected only an unknown intent, got %+v %v", unknown, err)
	}

	if _, err := uc.Execute(ctx, LookupInput{Nonce: "never-seen"}); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
	if _, err := uc.Execute(ctx, LookupInput{Nonce: "a", TransactionID: "b"}); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	seedOrder(t, h, "o1", "SP1")
	uc := NewGetOrderUseCase(h.orders, nil)

	if o, err := uc.Execute(context.Background(), "o1"); err != nil || o.ID != "o1" {
		t.Fatalf("expected o1, got %+v %v", o, err)
	}
	if _, err := uc.Execute(context.Background(), "missing"); !apperr.Is(err, apperr.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
