package payment

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService     = "payment-service"
	useCaseClientToken = "payment.client_token"
)

// ClientTokenUseCase hands the browser SDK a token for collecting a payment nonce.
type ClientTokenUseCase struct {
	gateway dompay.Gateway
	ins     application.Instruments
}

var _ application.UseCase[struct{}, string] = (*ClientTokenUseCase)(nil)

func NewClientTokenUseCase(gateway dompay.Gateway, tel observability.Observability) *ClientTokenUseCase {
	return &ClientTokenUseCase{gateway: gateway, ins: application.NewInstruments(tel, paymentService)}
}

func (uc *ClientTokenUseCase) Execute(ctx context.Context, _ struct{}) (_ string, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(observability.F("use_case", useCaseClientToken))
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"ClientToken",
		attribute.String("use_case", useCaseClientToken),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseClientToken, start, outcome, statusText, err)
	}()

	token, terr := uc.gateway.ClientToken(ctx)
	if terr != nil {
		outcome = "error"
		if errors.Is(terr, dompay.ErrUnavailable) {
			statusText = "GATEWAY_UNAVAILABLE"
			return "", apperr.Wrap(apperr.CodeGatewayUnavailable, "payment gateway unavailable", terr)
		}
		statusText = "CLIENT_TOKEN_FAILED"
		return "", apperr.Wrap(apperr.CodeInternal, "could not create client token", terr)
	}
	return token, nil
}
