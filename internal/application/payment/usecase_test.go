package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/observabilitytest"
	"github.com/shopspring/decimal"
)

type downGateway struct{}

func (downGateway) ClientToken(context.Context) (string, error) {
	return "", dompay.ErrUnavailable
}

func (downGateway) Authorize(context.Context, dompay.AuthorizeRequest) (dompay.Authorization, error) {
	return dompay.Authorization{}, dompay.ErrUnavailable
}

func (downGateway) FindByReference(context.Context, string) (dompay.Authorization, error) {
	return dompay.Authorization{}, dompay.ErrUnavailable
}

func TestClientToken(t *testing.T) {
	t.Parallel()

	t.Run("sandbox token", func(t *testing.T) {
		t.Parallel()
		uc := NewClientTokenUseCase(gateway.NewSandbox(), nil)
		tok, err := uc.Execute(context.Background(), struct{}{})
		if err != nil || tok == "" {
			t.Fatalf("expected token, got %q %v", tok, err)
		}
	})

	t.Run("gateway down", func(t *testing.T) {
		t.Parallel()
		uc := NewClientTokenUseCase(downGateway{}, nil)
		_, err := uc.Execute(context.Background(), struct{}{})
		if !apperr.Is(err, apperr.CodeGatewayUnavailable) {
			t.Fatalf("expected gateway_unavailable, got %v", err)
		}
	})
}

func TestInstrumentedGatewayOutcomes(t *testing.T) {
	t.Parallel()

	rec := observabilitytest.New()
	g := NewInstrumentedGateway(gateway.NewSandbox(), rec)
	ctx := context.Background()
	amount := decimal.NewFromInt(10)

	if _, err := g.Authorize(ctx, dompay.AuthorizeRequest{Amount: amount, Nonce: gateway.NonceValid, Reference: "r1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.Authorize(ctx, dompay.AuthorizeRequest{Amount: amount, Nonce: gateway.NonceDeclined}); !errors.Is(err, dompay.ErrDeclined) {
		t.Fatalf("expected decline, got %v", err)
	}
	if _, err := g.Authorize(ctx, dompay.AuthorizeRequest{Amount: amount, Nonce: gateway.NonceUnreachable}); !errors.Is(err, dompay.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := g.FindByReference(ctx, "missing"); !errors.Is(err, dompay.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	for outcome, want := range map[string]float64{"success": 1, "declined": 1, "unavailable": 1} {
		got := rec.Count(observability.MExternalRequests,
			observability.L("peer", gatewayPeer),
			observability.L("endpoint", "authorize"),
			observability.L("outcome", outcome),
		)
		if got != want {
			t.Fatalf("outcome %s: expected %v, got %v", outcome, want, got)
		}
	}
	if got := rec.Count(observability.MExternalRequests,
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", "find_by_reference"),
		observability.L("outcome", "success"),
	); got != 1 {
		t.Fatalf("expected not-found lookup to count as success, got %v", got)
	}
}
