package payment

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const gatewayPeer = "payment-gateway"

// InstrumentedGateway records a span and the external RED metrics around every processor call.
type InstrumentedGateway struct {
	next dompay.Gateway
	ins  application.Instruments
}

var _ dompay.Gateway = (*InstrumentedGateway)(nil)

func NewInstrumentedGateway(next dompay.Gateway, tel observability.Observability) *InstrumentedGateway {
	return &InstrumentedGateway{next: next, ins: application.NewInstruments(tel, paymentService)}
}

func (g *InstrumentedGateway) ClientToken(ctx context.Context) (token string, err error) {
	ctx, finish := g.call(ctx, "client_token")
	defer func() { finish(err) }()
	return g.next.ClientToken(ctx)
}

func (g *InstrumentedGateway) Authorize(ctx context.Context, req dompay.AuthorizeRequest) (auth dompay.Authorization, err error) {
	ctx, finish := g.call(ctx, "authorize",
		attribute.String("payment.reference", req.Reference),
		attribute.String("payment.amount", dompay.FormatAmount(req.Amount)),
	)
	defer func() { finish(err) }()
	return g.next.Authorize(ctx, req)
}

func (g *InstrumentedGateway) FindByReference(ctx context.Context, reference string) (auth dompay.Authorization, err error) {
	ctx, finish := g.call(ctx, "find_by_reference", attribute.String("payment.reference", reference))
	defer func() {
		if errors.Is(err, dompay.ErrNotFound) {
			finish(nil)
			return
		}
		finish(err)
	}()
	return g.next.FindByReference(ctx, reference)
}

func (g *InstrumentedGateway) call(ctx context.Context, endpoint string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	attrs = append(attrs, attribute.String("peer", gatewayPeer), attribute.String("endpoint", endpoint))
	ctx, span := g.ins.Tracer.Start(ctx, "EXT."+gatewayPeer+"."+endpoint, attrs...)
	start := time.Now()
	logger := logctx.FromOr(ctx, g.ins.Log)

	return ctx, func(err error) {
		outcome := "success"
		switch {
		case err == nil:
		case errors.Is(err, dompay.ErrDeclined):
			outcome = "declined"
		case errors.Is(err, dompay.ErrUnavailable):
			outcome = "unavailable"
		default:
			outcome = "error"
		}
		if err != nil && outcome != "declined" {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			logger.Warn("gateway_call_failed",
				observability.F("endpoint", endpoint),
				observability.F("outcome", outcome),
				observability.F("error", err.Error()),
			)
		} else {
			span.SetStatus(codes.Ok, outcome)
		}
		span.End()
		g.ins.External(gatewayPeer, endpoint, outcome, start)
	}
}
