package cart

import (
	"context"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	domcart "github.com/Zhima-Mochi/storefront-orders/internal/domain/cart"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseClearCart = "cart.clear"

type ClearCartUseCase struct {
	repo domcart.Repository
	ins  application.Instruments
}

var _ application.UseCase[string, struct{}] = (*ClearCartUseCase)(nil)

func NewClearCartUseCase(repo domcart.Repository, tel observability.Observability) *ClearCartUseCase {
	return &ClearCartUseCase{repo: repo, ins: application.NewInstruments(tel, "cart-service")}
}

func (uc *ClearCartUseCase) Execute(ctx context.Context, userID string) (_ struct{}, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(
		observability.F("use_case", useCaseClearCart),
		observability.F("user_id", userID),
	)
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"ClearCart",
		attribute.String("use_case", useCaseClearCart),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseClearCart, start, outcome, statusText, err)
	}()

	if strings.TrimSpace(userID) == "" {
		outcome, statusText = "error", "USER_ID_REQUIRED"
		return struct{}{}, apperr.Wrap(apperr.CodeValidation, "user_id is required", domcart.ErrUserRequired)
	}
	if cerr := uc.repo.Clear(ctx, userID); cerr != nil {
		outcome, statusText = "error", "REPO_CLEAR_FAILED"
		return struct{}{}, apperr.Wrap(apperr.CodeInternal, "could not clear cart", cerr)
	}
	return struct{}{}, nil
}
