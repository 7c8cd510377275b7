package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

func newTestGateway(t *testing.T, h http.HandlerFunc, timeout time.Duration) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewHTTPGateway(HTTPConfig{BaseURL: srv.URL, MerchantID: "m1", PublicKey: "pub", PrivateKey: "priv", Timeout: timeout}, nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return g
}

func TestHTTPGatewayAuthorize(t *testing.T) {
	t.Parallel()

	t.Run("sends fixed-point amount and returns transaction", func(t *testing.T) {
		t.Parallel()
		var got saleRequest
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/merchants/m1/transactions/sale" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if user, pass, ok := r.BasicAuth(); !ok || user != "pub" || pass != "priv" {
				t.Errorf("expected basic auth, got %q %q", user, pass)
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			_ = json.NewEncoder(w).Encode(saleResponse{Success: true, Transaction: &transaction{ID: "tx-1", Status: "submitted_for_settlement", Amount: "500.00"}})
		}, time.Second)

		auth, err := g.Authorize(context.Background(), payment.AuthorizeRequest{Amount: decimal.NewFromInt(500), Nonce: "n-1", Reference: "ord-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Amount != "500.00" {
			t.Fatalf("expected amount 500.00, got %q", got.Amount)
		}
		if !got.Options.SubmitForSettlement || got.OrderID != "ord-1" || got.PaymentMethodNonce != "n-1" {
			t.Fatalf("unexpected request body %+v", got)
		}
		if auth.TransactionID != "tx-1" || !auth.Success {
			t.Fatalf("unexpected authorization %+v", auth)
		}
	})

	t.Run("processor decline", func(t *testing.T) {
		t.Parallel()
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(saleResponse{Message: "declined", Transaction: &transaction{ID: "tx-2", Status: "processor_declined", ProcessorResponseText: "Do Not Honor"}})
		}, time.Second)

		_, err := g.Authorize(context.Background(), payment.AuthorizeRequest{Amount: decimal.NewFromInt(10), Nonce: "n"})
		var de *payment.DeclineError
		if !errors.As(err, &de) {
			t.Fatalf("expected DeclineError, got %v", err)
		}
		if de.Reason != "Do Not Honor" || de.TransactionID != "tx-2" {
			t.Fatalf("unexpected decline %+v", de)
		}
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		t.Parallel()
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, time.Second)

		_, err := g.Authorize(context.Background(), payment.AuthorizeRequest{Amount: decimal.NewFromInt(10), Nonce: "n"})
		if !errors.Is(err, payment.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("timeout is unavailable", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}, 50*time.Millisecond)
		defer close(release)

		_, err := g.Authorize(context.Background(), payment.AuthorizeRequest{Amount: decimal.NewFromInt(10), Nonce: "n"})
		if !errors.Is(err, payment.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("invalid request never leaves the process", func(t *testing.T) {
		t.Parallel()
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		}, time.Second)

		_, err := g.Authorize(context.Background(), payment.AuthorizeRequest{Amount: decimal.Zero, Nonce: "n"})
		if !errors.Is(err, payment.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})
}

func TestHTTPGatewayFindByReference(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("order_id") == "known" {
			_ = json.NewEncoder(w).Encode(searchResponse{Transactions: []transaction{
				{ID: "tx-void", Status: "voided"},
				{ID: "tx-ok", Status: "settled", Amount: "12.50"},
			}})
			return
		}
		_ = json.NewEncoder(w).Encode(searchResponse{})
	}, time.Second)

	auth, err := g.FindByReference(context.Background(), "known")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth.TransactionID != "tx-ok" || !auth.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("unexpected authorization %+v", auth)
	}

	if _, err := g.FindByReference(context.Background(), "missing"); !errors.Is(err, payment.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTPGatewayClientToken(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(clientTokenResponse{ClientToken: "tok"})
	}, time.Second)

	tok, err := g.ClientToken(context.Background())
	if err != nil || tok != "tok" {
		t.Fatalf("expected tok, got %q %v", tok, err)
	}
}
