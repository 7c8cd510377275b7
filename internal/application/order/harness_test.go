package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application/inventory"
	"github.com/Zhima-Mochi/storefront-orders/internal/clock"
	domcart "github.com/Zhima-Mochi/storefront-orders/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/id"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/observabilitytest"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) named(name string) []domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domoutbox.Event
	for _, e := range p.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

// scriptedTracking hands out fixed numbers first, then falls back to real ULIDs.
type scriptedTracking struct {
	mu     sync.Mutex
	script []string
	next   TrackingGenerator
}

func (s *scriptedTracking) NewTrackingNumber() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) > 0 {
		tn := s.script[0]
		s.script = s.script[1:]
		return tn, nil
	}
	return s.next.NewTrackingNumber()
}

// flakyLedger fails decrements for the listed product ids.
type flakyLedger struct {
	dominv.Ledger
	fail map[string]bool
}

func (l flakyLedger) Decrement(ctx context.Context, productID, size string, qty int) (int, error) {
	if l.fail[productID] {
		return 0, errors.New("ledger write timeout")
	}
	return l.Ledger.Decrement(ctx, productID, size, qty)
}

// brokenOrders fails every Insert.
type brokenOrders struct {
	domorder.Repository
}

func (brokenOrders) Insert(context.Context, *domorder.Order) error {
	return errors.New("disk full")
}

type harness struct {
	clock     *clock.Manual
	ledger    *memory.InventoryRepository
	orders    *memory.OrderRepository
	intents   *memory.IntentRepository
	carts     *memory.CartRepository
	gateway   *gateway.Sandbox
	publisher *recordingPublisher
	rec       *observabilitytest.Recorder
	deps      Dependencies
}

func newHarness(t *testing.T, stockM int) *harness {
	t.Helper()
	clk := clock.NewManual(t0)
	h := &harness{
		clock: clk,
		ledger: memory.NewInventoryRepository(clk,
			&dominv.Product{ID: "productA", Name: "Tee", UnitPrice: decimal.NewFromInt(250), Stock: []dominv.StockEntry{{Size: "M", StockCount: stockM}}},
			&dominv.Product{ID: "productB", Name: "Cap", UnitPrice: decimal.RequireFromString("19.99"), Stock: []dominv.StockEntry{{Size: "OS", StockCount: 10}}},
		),
		orders:    memory.NewOrderRepository(),
		intents:   memory.NewIntentRepository(),
		carts:     memory.NewCartRepository(),
		gateway:   gateway.NewSandbox(),
		publisher: &recordingPublisher{},
		rec:       observabilitytest.New(),
	}
	h.deps = Dependencies{
		Orders:    h.orders,
		Intents:   h.intents,
		Ledger:    h.ledger,
		Carts:     h.carts,
		Gateway:   h.gateway,
		Publisher: h.publisher,
		IDs:       id.NewUUIDGenerator(),
		Tracking:  id.NewTrackingGenerator("SP", clk),
		Clock:     clk,
	}
	return h
}

func (h *harness) placeUseCase() *PlaceOrderUseCase {
	return NewPlaceOrderUseCase(h.deps, inventory.NewValidateStockUseCase(h.deps.Ledger, 4, h.rec), h.rec)
}

func (h *harness) seedCart(t *testing.T, userID string, lines ...domcart.Line) {
	t.Helper()
	if err := h.carts.Replace(context.Background(), userID, lines); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
}

func (h *harness) stock(t *testing.T, productID, size string) int {
	t.Helper()
	p, err := h.ledger.Get(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	n, _ := p.StockFor(size)
	return n
}

func placeInput(nonce string, total int64) PlaceOrderInput {
	return PlaceOrderInput{
		UserID:          "user-1",
		TotalAmount:     decimal.NewFromInt(total),
		Nonce:           nonce,
		DeliveryAddress: "1 Main St, Springfield",
		PaymentMode:     "card",
	}
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
