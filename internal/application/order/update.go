package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	domnotify "github.com/Zhima-Mochi/storefront-orders/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCaseOrderUpdate = "order.update"
	notifyTimeout      = 10 * time.Second
)

// UpdateOrderInput carries an optional status transition plus optional field edits.
// Nil pointers leave the field untouched.
type UpdateOrderInput struct {
	OrderID             string
	Status              string
	EstimatedDeliveryAt *time.Time
	DeliveryAddress     *string
	TrackingNumber      *string
}

// UpdateOrderUseCase applies operator edits and status transitions. Moving to Out for Delivery
// sends one notification to the owner; its failure never undoes the transition.
type UpdateOrderUseCase struct {
	orders        domorder.Repository
	notifier      UserNotifier
	notifyTimeout time.Duration
	publisher     domoutbox.Publisher
	deps          Dependencies
	ins           application.Instruments
}

var _ application.UseCase[UpdateOrderInput, *domorder.Order] = (*UpdateOrderUseCase)(nil)

func NewUpdateOrderUseCase(deps Dependencies, notifier UserNotifier, tel observability.Observability) *UpdateOrderUseCase {
	ins := application.NewInstruments(tel, orderService)
	return &UpdateOrderUseCase{
		orders:        deps.Orders,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		publisher:     deps.Publisher,
		deps:          deps,
		ins:           ins,
	}
}

func (uc *UpdateOrderUseCase) Execute(ctx context.Context, cmd UpdateOrderInput) (_ *domorder.Order, err error) {
	ctx, logger := logctx.Enrich(ctx, uc.ins.Log,
		observability.F("use_case", useCaseOrderUpdate),
		observability.F("order_id", cmd.OrderID),
	)
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"UpdateOrder",
		attribute.String("use_case", useCaseOrderUpdate),
		attribute.String("order.id", cmd.OrderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var notifyErr error

	defer func() {
		var extra []observability.Field
		if notifyErr != nil {
			extra = append(extra, observability.F("notification_error", notifyErr.Error()))
		}
		uc.ins.Done(ctx, span, logger, useCaseOrderUpdate, start, outcome, statusText, err, extra...)
	}()

	if strings.TrimSpace(cmd.OrderID) == "" {
		outcome, statusText = "error", "ORDER_ID_REQUIRED"
		return nil, apperr.Validation("order id is required")
	}
	if cmd.Status == "" && cmd.EstimatedDeliveryAt == nil && cmd.DeliveryAddress == nil && cmd.TrackingNumber == nil {
		outcome, statusText = "error", "NOTHING_TO_UPDATE"
		return nil, apperr.Validation("no changes requested")
	}

	o, gerr := uc.orders.Get(ctx, cmd.OrderID)
	if gerr != nil {
		outcome, statusText = "error", "ORDER_LOOKUP_FAILED"
		return nil, wrapRepositoryError("could not load order", gerr)
	}
	from := o.Status
	now := uc.deps.now()

	if cmd.Status != "" {
		next, perr := domorder.ParseStatus(cmd.Status)
		if perr != nil {
			outcome, statusText = "error", "STATUS_UNKNOWN"
			return nil, apperr.Wrap(apperr.CodeValidation, "unknown order_status", perr)
		}
		if terr := o.TransitionTo(next, now); terr != nil {
			outcome, statusText = "error", "INVALID_TRANSITION"
			if from.Terminal() {
				statusText = "ORDER_FINAL"
			}
			return nil, apperr.Wrap(apperr.CodeInvalidTransition, "status change not allowed", terr).
				WithDetails(map[string]any{"from": from, "to": next, "allowed": from.Next()})
		}
	}
	if cmd.EstimatedDeliveryAt != nil {
		if cmd.EstimatedDeliveryAt.IsZero() {
			outcome, statusText = "error", "ESTIMATE_INVALID"
			return nil, apperr.Validation("estimatedDeliveryDate is invalid")
		}
		o.EstimatedDeliveryAt = cmd.EstimatedDeliveryAt.UTC()
	}
	if cmd.DeliveryAddress != nil {
		if strings.TrimSpace(*cmd.DeliveryAddress) == "" {
			outcome, statusText = "error", "ADDRESS_REQUIRED"
			return nil, apperr.Wrap(apperr.CodeValidation, "delivery_address must not be empty", domorder.ErrAddressRequired)
		}
		o.DeliveryAddress = *cmd.DeliveryAddress
	}
	if cmd.TrackingNumber != nil {
		if strings.TrimSpace(*cmd.TrackingNumber) == "" {
			outcome, statusText = "error", "TRACKING_REQUIRED"
			return nil, apperr.Validation("tracking_number must not be empty")
		}
		o.TrackingNumber = strings.TrimSpace(*cmd.TrackingNumber)
	}
	o.UpdatedAt = now

	if uerr := uc.orders.Update(ctx, o); uerr != nil {
		outcome = "error"
		statusText = "REPO_UPDATE_FAILED"
		if errors.Is(uerr, domorder.ErrTrackingNumberTaken) {
			statusText = "TRACKING_NUMBER_TAKEN"
			return nil, apperr.Wrap(apperr.CodeConflict, "tracking_number already assigned to another order", uerr)
		}
		return nil, wrapRepositoryError("could not update order", uerr)
	}
	span.SetAttributes(attribute.String("order.status", string(o.Status)))

	if o.Status != from {
		span.AddEvent("order.status_changed", trace.WithAttributes(
			attribute.String("order.from", string(from)),
			attribute.String("order.to", string(o.Status)),
		))
		if o.Status == domorder.StatusOutForDelivery && uc.notifier != nil {
			notifyCtx, cancel := context.WithTimeout(ctx, uc.notifyTimeout)
			notifyErr = uc.notifier.NotifyUser(notifyCtx, o.UserID, domnotify.TemplateOutForDelivery, o)
			cancel()
			if notifyErr != nil {
				statusText = "NOTIFICATION_FAILED"
			}
		}
		publishEvent(ctx, uc.publisher, uc.ins, domorder.NewStatusChangedEvent(o, from, now), logger)
	}
	return o, nil
}
