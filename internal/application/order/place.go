package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	"github.com/Zhima-Mochi/storefront-orders/internal/application/inventory"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	dominv "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService      = "order-service"
	useCaseOrderPlace = "order.place"
)

type LineInput struct {
	ProductID string
	Size      string
	Quantity  int
}

type PlaceOrderInput struct {
	UserID          string
	TotalAmount     decimal.Decimal
	Nonce           string
	DeliveryAddress string
	PaymentMode     string
	PaymentDetails  map[string]string
	// Lines overrides the stored cart when non-empty.
	Lines []LineInput
}

type PlaceOrderResult struct {
	Order    *domorder.Order
	IntentID string
	Replayed bool
}

// PlaceOrderUseCase is the placement saga: validate stock, record an intent, charge, then write
// the order and items, decrement stock and clear the cart.
type PlaceOrderUseCase struct {
	deps      Dependencies
	validator StockValidator
	fulfiller *fulfiller
	ins       application.Instruments
}

var _ application.UseCase[PlaceOrderInput, *PlaceOrderResult] = (*PlaceOrderUseCase)(nil)

func NewPlaceOrderUseCase(deps Dependencies, validator StockValidator, tel observability.Observability) *PlaceOrderUseCase {
	ins := application.NewInstruments(tel, orderService)
	return &PlaceOrderUseCase{
		deps:      deps,
		validator: validator,
		fulfiller: newFulfiller(deps, ins),
		ins:       ins,
	}
}

func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	ctx, logger := logctx.Enrich(ctx, uc.ins.Log,
		observability.F("use_case", useCaseOrderPlace),
		observability.F("user_id", cmd.UserID),
	)

	var intentID string
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"PlaceOrder",
		attribute.String("use_case", useCaseOrderPlace),
		attribute.String("order.user_id", cmd.UserID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseOrderPlace, start, outcome, statusText, err,
			observability.F("intent_id", intentID),
		)
	}()

	switch {
	case strings.TrimSpace(cmd.UserID) == "":
		outcome, statusText = "error", "USER_ID_REQUIRED"
		return nil, apperr.Validation("user_id is required")
	case strings.TrimSpace(cmd.Nonce) == "":
		outcome, statusText = "error", "NONCE_REQUIRED"
		return nil, apperr.Validation("payment_method_nonce is required")
	case strings.TrimSpace(cmd.DeliveryAddress) == "":
		outcome, statusText = "error", "ADDRESS_REQUIRED"
		return nil, apperr.Validation("delivery_address is required")
	case !cmd.TotalAmount.IsPositive():
		outcome, statusText = "error", "AMOUNT_INVALID"
		return nil, apperr.Validation("total_amount must be greater than zero")
	}

	if existing, ferr := uc.deps.Intents.FindByNonce(ctx, cmd.Nonce); ferr == nil {
		intentID = existing.ID
		statusText = "IDEMPOTENT_REPLAY"
		res, rerr := uc.replay(ctx, existing, span)
		if rerr != nil {
			outcome = "error"
		}
		return res, rerr
	} else if !errors.Is(ferr, saga.ErrNotFound) {
		outcome, statusText = "error", "IDEMPOTENCY_LOOKUP_FAILED"
		return nil, apperr.Wrap(apperr.CodeInternal, "could not check payment nonce", ferr)
	}

	lines, lerr := uc.resolveLines(ctx, cmd)
	if lerr != nil {
		outcome, statusText = "error", "CART_INVALID"
		return nil, lerr
	}

	demands := make([]dominv.Demand, len(lines))
	for i, l := range lines {
		demands[i] = dominv.Demand{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity}
	}
	report, verr := uc.validator.Execute(ctx, demands)
	if verr != nil {
		outcome, statusText = "error", "STOCK_VALIDATION_FAILED"
		return nil, verr
	}
	if !inventory.AllAvailable(report) {
		outcome, statusText = "error", "INSUFFICIENT_STOCK"
		return nil, apperr.Wrap(apperr.CodeInsufficientStock, "insufficient stock", dominv.ErrInsufficientStock).
			WithDetails(report)
	}

	snapshot := make([]saga.Line, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		snapshot[i] = saga.Line{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity, UnitPrice: report[i].UnitPrice}
		total = total.Add(report[i].UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	if !total.Equal(cmd.TotalAmount) {
		outcome, statusText = "error", "TOTAL_MISMATCH"
		return nil, apperr.Validation("total_mismatch").WithDetails(map[string]string{
			"submitted": dompay.FormatAmount(cmd.TotalAmount),
			"computed":  dompay.FormatAmount(total),
		})
	}

	now := uc.deps.now()
	intent := &saga.Intent{
		ID:              uc.deps.IDs.NewID(),
		OrderID:         uc.deps.IDs.NewID(),
		UserID:          cmd.UserID,
		Nonce:           cmd.Nonce,
		Amount:          total,
		Lines:           snapshot,
		DeliveryAddress: cmd.DeliveryAddress,
		PaymentMode:     cmd.PaymentMode,
		PaymentDetails:  cmd.PaymentDetails,
		State:           saga.StateStarted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if cerr := uc.deps.Intents.Create(ctx, intent); cerr != nil {
		if errors.Is(cerr, saga.ErrDuplicateNonce) {
			if existing, ferr := uc.deps.Intents.FindByNonce(ctx, cmd.Nonce); ferr == nil {
				intentID = existing.ID
				statusText = "IDEMPOTENT_REPLAY"
				res, rerr := uc.replay(ctx, existing, span)
				if rerr != nil {
					outcome = "error"
				}
				return res, rerr
			}
		}
		outcome, statusText = "error", "INTENT_CREATE_FAILED"
		return nil, apperr.Wrap(apperr.CodeInternal, "could not record order intent", cerr)
	}
	intentID = intent.ID
	span.SetAttributes(attribute.String("saga.intent_id", intent.ID))
	ctx, logger = logctx.Enrich(ctx, logger, observability.F("intent_id", intent.ID))

	auth, aerr := uc.deps.Gateway.Authorize(ctx, dompay.AuthorizeRequest{
		Amount:    total,
		Nonce:     cmd.Nonce,
		Reference: intent.ID,
	})
	if aerr == nil && !auth.Success {
		aerr = &dompay.DeclineError{Reason: auth.DeclineReason, TransactionID: auth.TransactionID}
	}
	if aerr != nil {
		outcome = "error"
		if errors.Is(aerr, dompay.ErrDeclined) {
			statusText = "PAYMENT_DECLINED"
			reason := auth.DeclineReason
			var de *dompay.DeclineError
			if errors.As(aerr, &de) {
				reason = de.Reason
			}
			uc.recordIntent(ctx, logger, intent, intent.MarkDeclined(reason, uc.deps.now()))
			return nil, apperr.Wrap(apperr.CodePaymentDeclined, "payment declined", aerr).
				WithDetails(map[string]string{"reason": reason, "intent_id": intent.ID})
		}
		statusText = "GATEWAY_UNAVAILABLE"
		uc.recordIntent(ctx, logger, intent, intent.MarkUnknown(aerr.Error(), uc.deps.now()))
		return nil, apperr.Wrap(apperr.CodeGatewayUnavailable, "payment outcome unknown; it will be reconciled", aerr).
			WithDetails(map[string]string{"intent_id": intent.ID})
	}

	authorized, rerr := uc.recordAuthorized(ctx, logger, intent, auth.TransactionID)
	if rerr != nil {
		outcome, statusText = "error", "FULFILLMENT_RISK"
		if errors.Is(rerr, saga.ErrStale) {
			statusText = "INTENT_BUSY"
		}
		return nil, rerr
	}
	intent = authorized
	span.AddEvent("payment.authorized", trace.WithAttributes(attribute.String("payment.transaction_id", auth.TransactionID)))

	o, ferr := uc.fulfiller.complete(ctx, intent, logger)
	if ferr != nil {
		outcome, statusText = "error", "FULFILLMENT_RISK"
		if errors.Is(ferr, saga.ErrStale) {
			statusText = "INTENT_BUSY"
		}
		return nil, ferr
	}
	if o.FulfillmentRisk {
		statusText = "CREATED_WITH_FULFILLMENT_RISK"
	}
	span.SetAttributes(attribute.String("order.status", string(o.Status)))
	return &PlaceOrderResult{Order: o, IntentID: intent.ID}, nil
}

// replay answers a repeated nonce from stored state. The gateway is never called again.
func (uc *PlaceOrderUseCase) replay(ctx context.Context, in *saga.Intent, span trace.Span) (*PlaceOrderResult, error) {
	span.AddEvent("order.idempotent_replay", trace.WithAttributes(
		attribute.String("saga.intent_id", in.ID),
		attribute.String("saga.state", string(in.State)),
	))
	details := map[string]string{"intent_id": in.ID, "state": string(in.State)}

	switch in.State {
	case saga.StateFulfilled, saga.StateAtRisk:
		o, err := uc.deps.Orders.Get(ctx, in.OrderID)
		if err == nil {
			return &PlaceOrderResult{Order: o, IntentID: in.ID, Replayed: true}, nil
		}
		if errors.Is(err, domorder.ErrNotFound) {
			return nil, fulfillmentRisk("payment captured but the order could not be recorded", in, err)
		}
		return nil, wrapRepositoryError("could not load order", err)
	case saga.StateDeclined:
		details["reason"] = in.LastError
		return nil, apperr.Wrap(apperr.CodePaymentDeclined, "payment declined", dompay.ErrDeclined).WithDetails(details)
	case saga.StateUnknown:
		return nil, apperr.New(apperr.CodeGatewayUnavailable, "payment outcome is still being confirmed").WithDetails(details)
	case saga.StateAbandoned:
		return nil, apperr.New(apperr.CodeConflict, "payment nonce already used; request a new one").WithDetails(details)
	default:
		return nil, apperr.New(apperr.CodeConflict, "order placement already in progress").WithDetails(details)
	}
}

func (uc *PlaceOrderUseCase) resolveLines(ctx context.Context, cmd PlaceOrderInput) ([]LineInput, error) {
	if len(cmd.Lines) > 0 {
		return cmd.Lines, nil
	}
	stored, err := uc.deps.Carts.Lines(ctx, cmd.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "could not load cart", err)
	}
	if len(stored) == 0 {
		return nil, apperr.Validation("cart is empty")
	}
	lines := make([]LineInput, len(stored))
	for i, l := range stored {
		lines[i] = LineInput{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity}
	}
	return lines, nil
}

// recordAuthorized stores the confirmed charge. If the sweep wrote the intent in the meantime the
// stored copy wins: an abandoned intent is revived with this charge, any other state belongs to
// the sweep and the caller gets a conflict.
func (uc *PlaceOrderUseCase) recordAuthorized(ctx context.Context, logger observability.Logger, in *saga.Intent, transactionID string) (*saga.Intent, error) {
	if err := in.MarkAuthorized(transactionID, uc.deps.now()); err != nil {
		logger.Error("intent_transition_failed", observability.F("error", err.Error()))
		return in, nil
	}
	err := uc.deps.Intents.Update(ctx, in)
	switch {
	case err == nil:
		return in, nil
	case !errors.Is(err, saga.ErrStale):
		logger.Error("intent_update_failed",
			observability.F("state", string(in.State)),
			observability.F("error", err.Error()),
		)
		return in, nil
	}

	fresh, gerr := uc.deps.Intents.Get(ctx, in.ID)
	if gerr != nil {
		return nil, fulfillmentRisk("payment captured but the order intent could not be reloaded", in, gerr)
	}
	if fresh.State != saga.StateAbandoned {
		return nil, intentBusy(fresh)
	}
	if terr := fresh.MarkAuthorized(transactionID, uc.deps.now()); terr != nil {
		return nil, fulfillmentRisk("payment captured but the order intent could not be revived", in, terr)
	}
	if uerr := uc.deps.Intents.Update(ctx, fresh); uerr != nil {
		if errors.Is(uerr, saga.ErrStale) {
			return nil, intentBusy(fresh)
		}
		return nil, fulfillmentRisk("payment captured but the order intent could not be revived", in, uerr)
	}
	logger.Warn("intent_revived", observability.F("transaction_id", transactionID))
	return fresh, nil
}

// recordIntent persists a state change. A failed write is logged and the saga carries on.
func (uc *PlaceOrderUseCase) recordIntent(ctx context.Context, logger observability.Logger, in *saga.Intent, transitionErr error) {
	if transitionErr != nil {
		logger.Error("intent_transition_failed", observability.F("error", transitionErr.Error()))
		return
	}
	if err := uc.deps.Intents.Update(ctx, in); err != nil {
		logger.Error("intent_update_failed",
			observability.F("state", string(in.State)),
			observability.F("error", err.Error()),
		)
	}
}
