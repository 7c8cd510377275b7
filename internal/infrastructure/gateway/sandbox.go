package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/google/uuid"
)

// Test nonces understood by the sandbox.
const (
	NonceValid       = "fake-valid-nonce"
	NonceDeclined    = "fake-processor-declined-nonce"
	NonceTimeout     = "fake-gateway-timeout-nonce"
	NonceUnreachable = "fake-gateway-unreachable-nonce"
)

// Sandbox is an in-process processor for development and tests. NonceTimeout charges and then
// reports ErrUnavailable, which is the case reconciliation exists for. NonceUnreachable fails
// without charging. Any other nonce is approved at the configured success rate.
type Sandbox struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	usedNonces  map[string]struct{}
	byReference map[string]payment.Authorization
	calls       int
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: 1,
		usedNonces:  make(map[string]struct{}),
		byReference: make(map[string]payment.Authorization),
	}
}

// SetSuccessRate adjusts the approval rate for ordinary nonces.
func (s *Sandbox) SetSuccessRate(rate float64) {
	s.mu.Lock()
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	s.successRate = rate
	s.mu.Unlock()
}

func (s *Sandbox) ClientToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", payment.ErrUnavailable, err)
	}
	return "sandbox_" + uuid.NewString(), nil
}

func (s *Sandbox) Authorize(ctx context.Context, req payment.AuthorizeRequest) (payment.Authorization, error) {
	if err := req.Validate(); err != nil {
		return payment.Authorization{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	select {
	case <-ctx.Done():
		return payment.Authorization{}, fmt.Errorf("%w: %w", payment.ErrUnavailable, ctx.Err())
	default:
	}

	if _, used := s.usedNonces[req.Nonce]; used {
		return payment.Authorization{Status: "gateway_rejected", DeclineReason: "nonce already consumed"},
			&payment.DeclineError{Reason: "nonce already consumed"}
	}

	switch req.Nonce {
	case NonceUnreachable:
		return payment.Authorization{}, fmt.Errorf("%w: sandbox unreachable", payment.ErrUnavailable)
	case NonceDeclined:
		s.usedNonces[req.Nonce] = struct{}{}
		return payment.Authorization{Status: "processor_declined", DeclineReason: "Do Not Honor"},
			&payment.DeclineError{Reason: "Do Not Honor"}
	}

	s.usedNonces[req.Nonce] = struct{}{}
	if req.Nonce != NonceValid && req.Nonce != NonceTimeout && s.random.Float64() > s.successRate {
		return payment.Authorization{Status: "processor_declined", DeclineReason: "Insufficient Funds"},
			&payment.DeclineError{Reason: "Insufficient Funds"}
	}

	auth := payment.Authorization{
		TransactionID: "sbx_" + uuid.NewString()[:8],
		Success:       true,
		Status:        "submitted_for_settlement",
		Amount:        req.Amount,
	}
	if req.Reference != "" {
		s.byReference[req.Reference] = auth
	}
	if req.Nonce == NonceTimeout {
		return payment.Authorization{}, fmt.Errorf("%w: %w", payment.ErrUnavailable, context.DeadlineExceeded)
	}
	return auth, nil
}

func (s *Sandbox) FindByReference(ctx context.Context, reference string) (payment.Authorization, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.byReference[reference]
	if !ok {
		return payment.Authorization{}, payment.ErrNotFound
	}
	return auth, nil
}

// Calls reports how many Authorize calls reached the sandbox.
func (s *Sandbox) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
