package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderGet    = "order.get"
	useCaseOrderLookup = "order.lookup"
)

type GetOrderUseCase struct {
	orders domorder.Repository
	ins    application.Instruments
}

var _ application.UseCase[string, *domorder.Order] = (*GetOrderUseCase)(nil)

func NewGetOrderUseCase(orders domorder.Repository, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{orders: orders, ins: application.NewInstruments(tel, orderService)}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, id string) (_ *domorder.Order, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(observability.F("use_case", useCaseOrderGet))
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"GetOrder",
		attribute.String("use_case", useCaseOrderGet),
		attribute.String("order.id", id),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseOrderGet, start, outcome, statusText, err)
	}()

	if strings.TrimSpace(id) == "" {
		outcome, statusText = "error", "ORDER_ID_REQUIRED"
		return nil, apperr.Validation("order id is required")
	}
	o, gerr := uc.orders.Get(ctx, id)
	if gerr != nil {
		outcome, statusText = "error", "ORDER_LOOKUP_FAILED"
		return nil, wrapRepositoryError("could not load order", gerr)
	}
	return o, nil
}

type LookupInput struct {
	Nonce         string
	TransactionID string
}

// LookupResult holds the order when one exists, and the intent that produced it when known.
type LookupResult struct {
	Order  *domorder.Order
	Intent *saga.Intent
}

// LookupUseCase answers "what happened to my payment?" by nonce or gateway transaction id.
type LookupUseCase struct {
	orders  domorder.Repository
	intents saga.Repository
	ins     application.Instruments
}

var _ application.UseCase[LookupInput, *LookupResult] = (*LookupUseCase)(nil)

func NewLookupUseCase(orders domorder.Repository, intents saga.Repository, tel observability.Observability) *LookupUseCase {
	return &LookupUseCase{orders: orders, intents: intents, ins: application.NewInstruments(tel, orderService)}
}

func (uc *LookupUseCase) Execute(ctx context.Context, cmd LookupInput) (_ *LookupResult, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(observability.F("use_case", useCaseOrderLookup))
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"LookupOrder",
		attribute.String("use_case", useCaseOrderLookup),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseOrderLookup, start, outcome, statusText, err)
	}()

	nonce, tx := strings.TrimSpace(cmd.Nonce), strings.TrimSpace(cmd.TransactionID)
	if (nonce == "") == (tx == "") {
		outcome, statusText = "error", "KEY_REQUIRED"
		return nil, apperr.Validation("exactly one of nonce or transaction_id is required")
	}

	var in *saga.Intent
	var ierr error
	if nonce != "" {
		in, ierr = uc.intents.FindByNonce(ctx, nonce)
	} else {
		in, ierr = uc.intents.FindByTransactionID(ctx, tx)
	}
	if ierr != nil && !errors.Is(ierr, saga.ErrNotFound) {
		outcome, statusText = "error", "INTENT_LOOKUP_FAILED"
		return nil, apperr.Wrap(apperr.CodeInternal, "could not look up payment", ierr)
	}

	var o *domorder.Order
	var oerr error
	switch {
	case in != nil:
		o, oerr = uc.orders.Get(ctx, in.OrderID)
	case nonce != "":
		o, oerr = uc.orders.FindByNonce(ctx, nonce)
	default:
		o, oerr = uc.orders.FindByTransactionID(ctx, tx)
	}
	if oerr != nil && !errors.Is(oerr, domorder.ErrNotFound) {
		outcome, statusText = "error", "ORDER_LOOKUP_FAILED"
		return nil, wrapRepositoryError("could not load order", oerr)
	}

	if in == nil && o == nil {
		outcome, statusText = "error", "NOT_FOUND"
		return nil, apperr.New(apperr.CodeNotFound, "no order or payment attempt found")
	}
	if in != nil {
		statusText = "INTENT_" + strings.ToUpper(string(in.State))
	}
	return &LookupResult{Order: o, Intent: in}, nil
}
