package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	publishPeer         = "outbox"
	publishTimeout      = 300 * time.Millisecond
	maxTrackingAttempts = 5

	stageOrderInsert = "order_insert"
	stageLineItems   = "line_items"
)

// fulfiller runs the post-charge half of the saga for an authorized intent. Every step checks
// the intent first, so running it again after a crash only does what is still missing.
type fulfiller struct {
	deps     Dependencies
	ins      application.Instruments
	risk     observability.Counter // fulfillment_risk_total{stage}
	rejected observability.Counter // stock_decrement_rejected_total{source}
}

func newFulfiller(deps Dependencies, ins application.Instruments) *fulfiller {
	return &fulfiller{
		deps:     deps,
		ins:      ins,
		risk:     ins.Metrics.Counter(observability.MFulfillmentRisk),
		rejected: ins.Metrics.Counter(observability.MStockDecrementRejected),
	}
}

// complete returns the order with its items. A non-nil order with a nil error may still carry
// FulfillmentRisk; a nil order means not even the order row could be written. The caller must
// hold the intent's latest Version: progress is written with it, and a stale write stops the
// run so the worker that moved the intent finishes it.
func (f *fulfiller) complete(ctx context.Context, in *saga.Intent, logger observability.Logger) (*domorder.Order, error) {
	span := trace.SpanFromContext(ctx)
	if !in.State.Charged() {
		return nil, apperr.Wrap(apperr.CodeInternal, "order intent has no charge to fulfil",
			fmt.Errorf("%w: %s", saga.ErrInvalidState, in.State))
	}

	o, err := f.ensureOrder(ctx, in, logger)
	if err != nil {
		f.escalate(ctx, in, stageOrderInsert, err, logger)
		return nil, fulfillmentRisk("payment captured but the order could not be recorded", in, err)
	}
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("order.tracking_number", o.TrackingNumber),
	)

	var failures []error
	for i := range in.Lines {
		if lerr := f.applyLine(ctx, in, i, o); lerr != nil {
			failures = append(failures, lerr)
		}
		in.UpdatedAt = f.deps.now()
		if uerr := f.deps.Intents.Update(ctx, in); uerr != nil {
			if errors.Is(uerr, saga.ErrStale) {
				logger.Warn("intent_taken_over", observability.F("intent_id", in.ID), observability.F("line", i))
				return nil, intentBusy(in)
			}
			failures = append(failures, fmt.Errorf("line %d: record progress: %w", i, uerr))
			break
		}
	}

	if len(failures) > 0 {
		lineErr := errors.Join(failures...)
		o.MarkFulfillmentRisk(f.deps.now())
		if uerr := f.deps.Orders.Update(ctx, o); uerr != nil {
			logger.Error("order_risk_flag_failed", observability.F("order_id", o.ID), observability.F("error", uerr.Error()))
		}
		f.escalate(ctx, in, stageLineItems, lineErr, logger)
	}

	if cerr := f.deps.Carts.Clear(ctx, in.UserID); cerr != nil {
		logger.Warn("cart_clear_failed", observability.F("user_id", in.UserID), observability.F("error", cerr.Error()))
	}

	if in.State == saga.StateAuthorized && in.Complete() {
		if merr := in.MarkFulfilled(f.deps.now()); merr == nil {
			if uerr := f.deps.Intents.Update(ctx, in); uerr != nil {
				logger.Warn("intent_update_failed", observability.F("intent_id", in.ID), observability.F("error", uerr.Error()))
			}
		}
	}

	if items, ierr := f.deps.Orders.Items(ctx, o.ID); ierr == nil {
		o.Items = items
	} else {
		logger.Warn("order_items_load_failed", observability.F("order_id", o.ID), observability.F("error", ierr.Error()))
	}

	f.publish(ctx, domorder.NewPlacedEvent(o, f.deps.now()), logger)
	span.AddEvent("order.placed", trace.WithAttributes(
		attribute.String("order.id", o.ID),
		attribute.Bool("order.fulfillment_risk", o.FulfillmentRisk),
	))
	return o, nil
}

// ensureOrder loads the intent's order or creates it, drawing a fresh tracking number after
// every unique-index collision.
func (f *fulfiller) ensureOrder(ctx context.Context, in *saga.Intent, logger observability.Logger) (*domorder.Order, error) {
	existing, err := f.deps.Orders.Get(ctx, in.OrderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domorder.ErrNotFound) {
		return nil, err
	}

	for attempt := 1; attempt <= maxTrackingAttempts; attempt++ {
		tracking, terr := f.deps.Tracking.NewTrackingNumber()
		if terr != nil {
			return nil, fmt.Errorf("tracking number: %w", terr)
		}
		o, nerr := domorder.New(domorder.NewParams{
			ID:                   in.OrderID,
			UserID:               in.UserID,
			TotalAmount:          in.Amount,
			PaymentMode:          in.PaymentMode,
			PaymentDetails:       in.PaymentDetails,
			DeliveryAddress:      in.DeliveryAddress,
			TrackingNumber:       tracking,
			GatewayTransactionID: in.TransactionID,
			PaymentNonce:         in.Nonce,
			PlacedAt:             f.deps.now(),
			LeadTime:             f.deps.LeadTime,
		})
		if nerr != nil {
			return nil, nerr
		}

		ierr := f.deps.Orders.Insert(ctx, o)
		switch {
		case ierr == nil:
			return o, nil
		case errors.Is(ierr, domorder.ErrTrackingNumberTaken):
			logger.Warn("tracking_number_collision",
				observability.F("tracking_number", tracking),
				observability.F("attempt", attempt),
			)
			continue
		case errors.Is(ierr, domorder.ErrConflict):
			return f.deps.Orders.Get(ctx, in.OrderID)
		default:
			return nil, ierr
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", domorder.ErrTrackingNumberTaken, maxTrackingAttempts)
}

// applyLine writes the item and decrements stock for line i, skipping whatever the intent
// already records as done.
func (f *fulfiller) applyLine(ctx context.Context, in *saga.Intent, i int, o *domorder.Order) error {
	line := &in.Lines[i]
	var errs []error

	if !line.ItemWritten {
		item, err := domorder.NewItem(lineItemID(o.ID, i), o.ID, line.ProductID, line.Size, line.Quantity, line.UnitPrice, f.deps.now())
		if err == nil {
			err = f.deps.Orders.InsertItem(ctx, item)
		}
		switch {
		case err == nil, errors.Is(err, domorder.ErrConflict):
			line.ItemWritten = true
		default:
			errs = append(errs, fmt.Errorf("line %d: write item: %w", i, err))
		}
	}

	if !line.Applied {
		if _, err := f.deps.Ledger.Decrement(ctx, line.ProductID, line.Size, line.Quantity); err != nil {
			f.rejected.Add(1, observability.L("source", "saga"))
			errs = append(errs, fmt.Errorf("line %d: decrement %s/%s: %w", i, line.ProductID, line.Size, err))
		} else {
			line.Applied = true
		}
	}
	return errors.Join(errs...)
}

// escalate parks the intent in at_risk and raises the alarm. The intent keeps the transaction id
// and the cart snapshot, which is all an operator needs to finish by hand.
func (f *fulfiller) escalate(ctx context.Context, in *saga.Intent, stage string, cause error, logger observability.Logger) {
	now := f.deps.now()
	if err := in.MarkAtRisk(cause.Error(), now); err != nil {
		logger.Error("intent_transition_failed", observability.F("intent_id", in.ID), observability.F("error", err.Error()))
	}
	if err := f.deps.Intents.Update(ctx, in); err != nil {
		logger.Error("intent_update_failed", observability.F("intent_id", in.ID), observability.F("error", err.Error()))
	}

	f.risk.Add(1, observability.L("stage", stage))
	logger.Error("fulfillment_risk",
		observability.F("intent_id", in.ID),
		observability.F("order_id", in.OrderID),
		observability.F("transaction_id", in.TransactionID),
		observability.F("stage", stage),
		observability.F("error", cause.Error()),
	)
	trace.SpanFromContext(ctx).AddEvent("order.fulfillment_risk", trace.WithAttributes(
		attribute.String("saga.intent_id", in.ID),
		attribute.String("stage", stage),
	))

	f.publish(ctx, domorder.FulfillmentRiskEvent{
		OrderID:       in.OrderID,
		IntentID:      in.ID,
		TransactionID: in.TransactionID,
		Stage:         stage,
		Reason:        cause.Error(),
		OccurredAt:    now,
	}, logger)
}

func (f *fulfiller) publish(ctx context.Context, e domoutbox.Event, logger observability.Logger) {
	publishEvent(ctx, f.deps.Publisher, f.ins, e, logger)
}

// publishEvent is best effort; the order state is already durable.
func publishEvent(ctx context.Context, pub domoutbox.Publisher, ins application.Instruments, e domoutbox.Event, logger observability.Logger) {
	if pub == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := pub.Publish(pubCtx, e)
	switch {
	case err != nil && pubCtx.Err() != nil:
		outcome = "canceled"
	case err != nil:
		outcome = "error"
	}
	ins.External(publishPeer, e.EventName(), outcome, start)
	if err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

// lineItemID is stable per order and line so a replayed insert hits the same row.
func lineItemID(orderID string, line int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(orderID+"/"+strconv.Itoa(line))).String()
}
