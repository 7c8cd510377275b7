package order

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	domcart "github.com/Zhima-Mochi/storefront-orders/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
)

func TestPlaceOrderHappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.seedCart(t, "user-1", domcart.Line{ProductID: "productA", Size: "M", Quantity: 2})
	ctx := context.Background()

	res, err := h.placeUseCase().Execute(ctx, placeInput(gateway.NonceValid, 500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := res.Order
	if o.Status != domorder.StatusPending {
		t.Fatalf("expected Pending, got %s", o.Status)
	}
	if got := h.stock(t, "productA", "M"); got != 1 {
		t.Fatalf("expected stock 1, got %d", got)
	}
	if lines, _ := h.carts.Lines(ctx, "user-1"); len(lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(lines))
	}
	if !strings.HasPrefix(o.TrackingNumber, "SP") || len(o.TrackingNumber) != 28 {
		t.Fatalf("unexpected tracking number %q", o.TrackingNumber)
	}
	if want := t0.Add(domorder.DefaultLeadTime); !o.EstimatedDeliveryAt.Equal(want) {
		t.Fatalf("expected estimate %v, got %v", want, o.EstimatedDeliveryAt)
	}
	if o.GatewayTransactionID == "" || o.PaymentNonce != gateway.NonceValid {
		t.Fatalf("expected payment references on order, got %+v", o)
	}
	if len(o.Items) != 1 || !o.Items[0].UnitPrice.Equal(mustDecimal("250")) || o.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", o.Items)
	}
	if !o.ItemsTotal().Equal(o.TotalAmount) {
		t.Fatalf("expected items to sum to %s, got %s", o.TotalAmount, o.ItemsTotal())
	}
	if o.FulfillmentRisk {
		t.Fatal("expected no fulfillment risk")
	}

	in, err := h.intents.FindByNonce(ctx, gateway.NonceValid)
	if err != nil {
		t.Fatalf("find intent: %v", err)
	}
	if in.State != saga.StateFulfilled || in.OrderID != o.ID || in.TransactionID != o.GatewayTransactionID {
		t.Fatalf("unexpected intent %+v", in)
	}
	if got := len(h.publisher.named("order.placed")); got != 1 {
		t.Fatalf("expected 1 order.placed event, got %d", got)
	}
	if got := h.gateway.Calls(); got != 1 {
		t.Fatalf("expected 1 gateway call, got %d", got)
	}
}

func TestPlaceOrderRejectedBeforeCharge(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		stock int
		in    func() PlaceOrderInput
		code  apperr.Code
	}{
		{
			name:  "insufficient stock",
			stock: 1,
			in: func() PlaceOrderInput {
				in := placeInput(gateway.NonceValid, 500)
				in.Lines = []LineInput{{ProductID: "productA", Size: "M", Quantity: 2}}
				return in
			},
			code: apperr.CodeInsufficientStock,
		},
		{
			name:  "repeated size exceeds stock once summed",
			stock: 3,
			in: func() PlaceOrderInput {
				in := placeInput(gateway.NonceValid, 1000)
				in.Lines = []LineInput{
					{ProductID: "productA", Size: "M", Quantity: 2},
					{ProductID: "productA", Size: "m", Quantity: 2},
				}
				return in
			},
			code: apperr.CodeInsufficientStock,
		},
		{
			name:  "unknown size",
			stock: 3,
			in: func() PlaceOrderInput {
				in := placeInput(gateway.NonceValid, 250)
				in.Lines = []LineInput{{ProductID: "productA", Size: "XXL", Quantity: 1}}
				return in
			},
			code: apperr.CodeInsufficientStock,
		},
		{
			name:  "total mismatch",
			stock: 3,
			in: func() PlaceOrderInput {
				in := placeInput(gateway.NonceValid, 1)
				in.Lines = []LineInput{{ProductID: "productA", Size: "M", Quantity: 2}}
				return in
			},
			code: apperr.CodeValidation,
		},
		{
			name:  "empty cart",
			stock: 3,
			in:    func() PlaceOrderInput { return placeInput(gateway.NonceValid, 500) },
			code:  apperr.CodeValidation,
		},
		{
			name:  "missing nonce",
			stock: 3,
			in:    func() PlaceOrderInput { return placeInput("", 500) },
			code:  apperr.CodeValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, tc.stock)
			_, err := h.placeUseCase().Execute(context.Background(), tc.in())
			if !apperr.Is(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			if got := h.gateway.Calls(); got != 0 {
				t.Fatalf("expected no gateway call, got %d", got)
			}
			if got := h.stock(t, "productA", "M"); got != tc.stock {
				t.Fatalf("expected stock unchanged at %d, got %d", tc.stock, got)
			}
		})
	}
}

func TestPlaceOrderInsufficientStockCarriesReport(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	in := placeInput(gateway.NonceValid, 500)
	in.Lines = []LineInput{{ProductID: "productA", Size: "M", Quantity: 2}}

	_, err := h.placeUseCase().Execute(context.Background(), in)
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apperr.Error, got %v", err)
	}
	report, ok := ae.Details.([]dominv.Availability)
	if !ok || len(report) != 1 || report[0].Available != 1 || report[0].OK {
		t.Fatalf("unexpected report %#v", ae.Details)
	}
}

func TestPlaceOrderDeclined(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.seedCart(t, "user-1", domcart.Line{ProductID: "productA", Size: "M", Quantity: 2})
	ctx := context.Background()

	_, err := h.placeUseCase().Execute(ctx, placeInput(gateway.NonceDeclined, 500))
	if !apperr.Is(err, apperr.CodePaymentDeclined) || !errors.Is(err, dompay.ErrDeclined) {
		t.Fatalf("expected payment_declined, got %v", err)
	}
	if _, err := h.orders.FindByNonce(ctx, gateway.NonceDeclined); !errors.Is(err, domorder.ErrNotFound) {
		t.Fatalf("expected no order, got %v", err)
	}
	if got := h.stock(t, "productA", "M"); got != 3 {
		t.Fatalf("expected stock unchanged, got %d", got)
	}
	if lines, _ := h.carts.Lines(ctx, "user-1"); len(lines) != 1 {
		t.Fatalf("expected cart kept, got %d lines", len(lines))
	}
	in, _ := h.intents.FindByNonce(ctx, gateway.NonceDeclined)
	if in == nil || in.State != saga.StateDeclined || in.LastError != "Do Not Honor" {
		t.Fatalf("unexpected intent %+v", in)
	}

	_, err = h.placeUseCase().Execute(ctx, placeInput(gateway.NonceDeclined, 500))
	if !apperr.Is(err, apperr.CodePaymentDeclined) {
		t.Fatalf("expected replayed decline, got %v", err)
	}
	if got := h.gateway.Calls(); got != 1 {
		t.Fatalf("expected replay not to reach the gateway, got %d calls", got)
	}
}

func TestPlaceOrderReplayReturnsSameOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	uc := h.placeUseCase()
	in := placeInput(gateway.NonceValid, 500)
	in.Lines = []LineInput{{ProductID: "productA", Size: "M", Quantity: 2}}

	first, err := uc.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := uc.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed || second.Order.ID != first.Order.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Order.ID, second)
	}
	if got := h.gateway.Calls(); got != 1 {
		t.Fatalf("expected 1 gateway call, got %d", got)
	}
	if got := h.stock(t, "productA", "M"); got != 1 {
		t.Fatalf("expected a single decrement, got stock %d", got)
	}
}

func TestPlaceOrderGatewayTimeoutLeavesUnknownIntent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	in := placeInput(gateway.NonceTimeout, 500)
	in.Lines = []LineInput{{ProductID: "productA", Size: "M", Quantity: 2}}

	_, err := h.placeUseCase().Execute(context.Background(), in)
	if !apperr.Is(err, apperr.CodeGatewayUnavailable) {
		t.Fatalf("expected gateway_unavailable, got %v", err)
	}
	intent, _ := h.intents.FindByNonce(context.Background(), gateway.NonceTimeout)
	if intent == nil || intent.State != saga.StateUnknown {
		t.Fatalf("expected unknown intent, got %+v", intent)
	}
	if got := h.stock(t, "productA", "M"); got != 3 {
		t.Fatalf("expected stock untouched, got %d", got)
	}

	_, err = h.placeUseCase().Execute(context.Background(), in)
	if !apperr.Is(err, apperr.CodeGatewayUnavailable) {
		t.Fatalf("expected replay to report the pending outcome, got %v", err)
	}
	if got := h.gateway.Calls(); got != 1 {
		t.Fatalf("expected the nonce to be charged once, got %d calls", got)
	}
}

func TestPlaceOrderTrackingCollisionIsRetried(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 5)
	if err := h.orders.Insert(context.Background(), &domorder.Order{ID: "existing", TrackingNumber: "SPTAKEN"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	h.deps.Tracking = &scriptedTracking{script: []string{"SPTAKEN", "SPTAKEN", "SPFRESH"}, next: h.deps.Tracking}

	in := placeInput(gateway.NonceValid, 250)
	in.Lines = []LineInput{{ProductID: "productA", Size: "M", Quantity: 1}}
	res, err := h.placeUseCase().Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.TrackingNumber != "SPFRESH" {
		t.Fatalf("expected SPFRESH, got %s", res.Order.TrackingNumber)
	}
}

func TestPlaceOrderDecrementFailureIsFulfillmentRisk(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.deps.Ledger = flakyLedger{Ledger: h.ledger, fail: map[string]bool{"productB": true}}
	in := PlaceOrderInput{
		UserID:          "user-1",
		TotalAmount:     mustDecimal("269.99"),
		Nonce:           gateway.NonceValid,
		DeliveryAddress: "1 Main St",
		Lines: []LineInput{
			{ProductID: "productA", Size: "M", Quantity: 1},
			{ProductID: "productB", Size: "OS", Quantity: 1},
		},
	}

	res, err := h.placeUseCase().Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("expected the order to be returned as created, got %v", err)
	}
	if !res.Order.FulfillmentRisk {
		t.Fatal("expected order to be flagged")
	}
	if len(res.Order.Items) != 2 {
		t.Fatalf("expected both items written, got %d", len(res.Order.Items))
	}
	if got := h.stock(t, "productA", "M"); got != 2 {
		t.Fatalf("expected the healthy line to be applied, got stock %d", got)
	}

	intent, _ := h.intents.FindByNonce(context.Background(), gateway.NonceValid)
	if intent.State != saga.StateAtRisk || intent.TransactionID == "" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if !intent.Lines[0].Applied || intent.Lines[1].Applied {
		t.Fatalf("unexpected line progress %+v", intent.Lines)
	}
	if got := len(h.publisher.named("order.fulfillment_risk")); got != 1 {
		t.Fatalf("expected 1 risk event, got %d", got)
	}
	if got := h.rec.Count(observability.MFulfillmentRisk, observability.L("stage", stageLineItems)); got != 1 {
		t.Fatalf("expected risk counter 1, got %v", got)
	}
	if got := len(h.rec.Entries("fulfillment_risk")); got != 1 {
		t.Fatalf("expected 1 fulfillment_risk log line, got %d", got)
	}

	stored, _ := h.orders.Get(context.Background(), res.Order.ID)
	if !stored.FulfillmentRisk {
		t.Fatal("expected flag to be persisted")
	}
}

func TestPlaceOrderInsertFailureKeepsIntent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.deps.Orders = brokenOrders{Repository: h.orders}
	in := placeInput(gateway.NonceValid, 500)
	in.Lines = []LineInput{{ProductID: "productA", Size: "M", Quantity: 2}}

	_, err := h.placeUseCase().Execute(context.Background(), in)
	if !apperr.Is(err, apperr.CodeFulfillmentRisk) {
		t.Fatalf("expected fulfillment_risk, got %v", err)
	}
	var ae *apperr.Error
	errors.As(err, &ae)
	details, _ := ae.Details.(map[string]any)
	if details["intent_id"] == "" || details["transaction_id"] == "" {
		t.Fatalf("expected intent and transaction ids in details, got %v", ae.Details)
	}

	intent, _ := h.intents.FindByNonce(context.Background(), gateway.NonceValid)
	if intent.State != saga.StateAtRisk || len(intent.Lines) != 1 || intent.TransactionID == "" {
		t.Fatalf("expected at_risk intent with cart snapshot, got %+v", intent)
	}
	if got := h.stock(t, "productA", "M"); got != 3 {
		t.Fatalf("expected no decrement without an order, got %d", got)
	}
}
