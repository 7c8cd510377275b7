package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/memory"
)

// interleavedGateway runs during before the charge reaches the sandbox, standing in for a sweep
// that acts while the charge is in flight.
type interleavedGateway struct {
	dompay.Gateway
	during func(ctx context.Context, reference string)
}

func (g interleavedGateway) Authorize(ctx context.Context, req dompay.AuthorizeRequest) (dompay.Authorization, error) {
	g.during(ctx, req.Reference)
	return g.Gateway.Authorize(ctx, req)
}

// touchingIntents writes every listed intent once more before handing it out, as a live request
// would between the sweep's read and its first write.
type touchingIntents struct {
	*memory.IntentRepository
}

func (r touchingIntents) ListOpen(ctx context.Context, updatedBefore time.Time, limit int) ([]*saga.Intent, error) {
	out, err := r.IntentRepository.ListOpen(ctx, updatedBefore, limit)
	for _, in := range out {
		live, gerr := r.Get(ctx, in.ID)
		if gerr != nil {
			return nil, gerr
		}
		if uerr := r.Update(ctx, live); uerr != nil {
			return nil, uerr
		}
	}
	return out, err
}

func twoOfA(nonce string) PlaceOrderInput {
	in := placeInput(nonce, 500)
	in.Lines = []LineInput{{ProductID: "productA", Size: "M", Quantity: 2}}
	return in
}

func TestPlaceOrderRevivesIntentAbandonedDuringCharge(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	ctx := context.Background()
	h.deps.Gateway = interleavedGateway{Gateway: h.gateway, during: func(ctx context.Context, ref string) {
		in, err := h.intents.Get(ctx, ref)
		if err != nil {
			t.Errorf("get intent: %v", err)
			return
		}
		if err := in.MarkAbandoned("no charge found at gateway", t0); err != nil {
			t.Errorf("abandon: %v", err)
			return
		}
		if err := h.intents.Update(ctx, in); err != nil {
			t.Errorf("update: %v", err)
		}
	}}

	res, err := h.placeUseCase().Execute(ctx, twoOfA(gateway.NonceValid))
	if err != nil {
		t.Fatalf("expected the charge to be honoured, got %v", err)
	}
	intent, _ := h.intents.FindByNonce(ctx, gateway.NonceValid)
	if intent.State != saga.StateFulfilled || intent.OrderID != res.Order.ID {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if got := h.stock(t, "productA", "M"); got != 1 {
		t.Fatalf("expected stock 1, got %d", got)
	}
}

func TestPlaceOrderYieldsToSweepThatConfirmedCharge(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	ctx := context.Background()
	h.deps.Gateway = interleavedGateway{Gateway: h.gateway, during: func(ctx context.Context, ref string) {
		in, err := h.intents.Get(ctx, ref)
		if err != nil {
			t.Errorf("get intent: %v", err)
			return
		}
		if err := in.MarkAuthorized("tx-sweep", t0); err != nil {
			t.Errorf("authorize: %v", err)
			return
		}
		if err := h.intents.Update(ctx, in); err != nil {
			t.Errorf("update: %v", err)
		}
	}}

	_, err := h.placeUseCase().Execute(ctx, twoOfA(gateway.NonceValid))
	if !apperr.Is(err, apperr.CodeConflict) || !errors.Is(err, saga.ErrStale) {
		t.Fatalf("expected a conflict handing over to the sweep, got %v", err)
	}
	if got := h.stock(t, "productA", "M"); got != 3 {
		t.Fatalf("expected the request to leave stock alone, got %d", got)
	}

	h.clock.Advance(time.Hour)
	res, err := NewReconcileUseCase(h.deps, nil).Execute(ctx, ReconcileInput{OlderThan: time.Minute})
	if err != nil || res.Fulfilled != 1 {
		t.Fatalf("expected the sweep to fulfil, got %+v %v", res, err)
	}
	if got := h.stock(t, "productA", "M"); got != 1 {
		t.Fatalf("expected exactly one decrement, got stock %d", got)
	}
}

func TestReconcileSkipsIntentWrittenAfterListing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	ctx := context.Background()
	intent := &saga.Intent{
		ID:              "intent-1",
		OrderID:         "order-1",
		UserID:          "user-1",
		Nonce:           "n-1",
		Amount:          mustDecimal("500"),
		DeliveryAddress: "1 Main St",
		State:           saga.StateAuthorized,
		TransactionID:   "tx-1",
		Lines:           []saga.Line{{ProductID: "productA", Size: "M", Quantity: 2, UnitPrice: mustDecimal("250")}},
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
	if err := h.intents.Create(ctx, intent); err != nil {
		t.Fatalf("seed intent: %v", err)
	}

	deps := h.deps
	deps.Intents = touchingIntents{h.intents}
	h.clock.Advance(time.Hour)

	res, err := NewReconcileUseCase(deps, nil).Execute(ctx, ReconcileInput{OlderThan: time.Minute})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Pending != 1 || res.Fulfilled != 0 {
		t.Fatalf("expected the intent to be left to its owner, got %+v", res)
	}
	if got := h.stock(t, "productA", "M"); got != 3 {
		t.Fatalf("expected stock untouched, got %d", got)
	}
	if _, err := h.orders.Get(ctx, "order-1"); err == nil {
		t.Fatal("expected no order from the skipped sweep")
	}
}
