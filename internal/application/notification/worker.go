package notification

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	domnotify "github.com/Zhima-Mochi/storefront-orders/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/storefront-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderPlaced     = "notification.order_placed"
	useCaseFulfillmentRisk = "notification.fulfillment_risk"
	sendTimeout            = 10 * time.Second
)

// Worker turns order events into mail: a confirmation for the customer on order.placed and an
// alert for operations on order.fulfillment_risk.
type Worker struct {
	subscriber    domoutbox.Subscriber
	dispatcher    *Dispatcher
	operatorEmail string
	ins           application.Instruments
}

func NewWorker(subscriber domoutbox.Subscriber, dispatcher *Dispatcher, operatorEmail string, tel observability.Observability) *Worker {
	return &Worker{
		subscriber:    subscriber,
		dispatcher:    dispatcher,
		operatorEmail: operatorEmail,
		ins:           application.NewInstruments(tel, "notification-worker"),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.dispatcher == nil {
		return
	}
	w.subscriber.Subscribe(domorder.PlacedEvent{}.EventName(), w.handlePlaced)
	w.subscriber.Subscribe(domorder.FulfillmentRiskEvent{}.EventName(), w.handleFulfillmentRisk)
}

func (w *Worker) handlePlaced(ctx context.Context, e domoutbox.Event) (err error) {
	evt, ok := e.(domorder.PlacedEvent)
	if !ok {
		return nil
	}
	logger := logctx.FromOr(ctx, w.ins.Log).With(
		observability.F("use_case", useCaseOrderPlaced),
		observability.F("order_id", evt.OrderID),
	)
	ctx, span := w.ins.Tracer.Start(ctx, application.SpanPrefix+"NotifyOrderPlaced",
		attribute.String("use_case", useCaseOrderPlaced),
		attribute.String("order.id", evt.OrderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		w.ins.Done(ctx, span, logger, useCaseOrderPlaced, start, outcome, statusText, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err = w.dispatcher.NotifyUser(ctx, evt.UserID, domnotify.TemplateOrderPlaced, evt); err != nil {
		outcome, statusText = "error", "NOTIFY_FAILED"
	}
	return err
}

func (w *Worker) handleFulfillmentRisk(ctx context.Context, e domoutbox.Event) (err error) {
	evt, ok := e.(domorder.FulfillmentRiskEvent)
	if !ok {
		return nil
	}
	logger := logctx.FromOr(ctx, w.ins.Log).With(
		observability.F("use_case", useCaseFulfillmentRisk),
		observability.F("order_id", evt.OrderID),
		observability.F("intent_id", evt.IntentID),
	)
	ctx, span := w.ins.Tracer.Start(ctx, application.SpanPrefix+"EscalateFulfillmentRisk",
		attribute.String("use_case", useCaseFulfillmentRisk),
		attribute.String("saga.intent_id", evt.IntentID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		w.ins.Done(ctx, span, logger, useCaseFulfillmentRisk, start, outcome, statusText, err)
	}()

	if w.operatorEmail == "" {
		statusText = "NO_OPERATOR"
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err = w.dispatcher.NotifyAddress(ctx, w.operatorEmail, domnotify.TemplateFulfillmentRisk, evt); err != nil {
		outcome, statusText = "error", "NOTIFY_FAILED"
	}
	return err
}
