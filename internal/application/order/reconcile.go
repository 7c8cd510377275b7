package order

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseReconcile = "order.reconcile"
	defaultSweepSize = 100
)

type ReconcileInput struct {
	// OlderThan skips intents touched more recently, leaving live requests alone.
	OlderThan time.Duration
	Limit     int
}

type ReconcileResult struct {
	Scanned   int `json:"scanned"`
	Fulfilled int `json:"fulfilled"`
	AtRisk    int `json:"at_risk"`
	Abandoned int `json:"abandoned"`
	Pending   int `json:"pending"`
}

// ReconcileUseCase settles intents a request left open: unknown charges are looked up at the
// gateway by intent id, and authorized intents are driven to completion.
type ReconcileUseCase struct {
	deps       Dependencies
	fulfiller  *fulfiller
	ins        application.Instruments
	reconciled observability.Counter // saga_reconciled_total{result}
}

var _ application.UseCase[ReconcileInput, ReconcileResult] = (*ReconcileUseCase)(nil)

func NewReconcileUseCase(deps Dependencies, tel observability.Observability) *ReconcileUseCase {
	ins := application.NewInstruments(tel, orderService)
	return &ReconcileUseCase{
		deps:       deps,
		fulfiller:  newFulfiller(deps, ins),
		ins:        ins,
		reconciled: ins.Metrics.Counter(observability.MSagaReconciled),
	}
}

func (uc *ReconcileUseCase) Execute(ctx context.Context, cmd ReconcileInput) (res ReconcileResult, err error) {
	ctx, logger := logctx.Enrich(ctx, uc.ins.Log, observability.F("use_case", useCaseReconcile))
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"Reconcile",
		attribute.String("use_case", useCaseReconcile),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		span.SetAttributes(
			attribute.Int("saga.scanned", res.Scanned),
			attribute.Int("saga.fulfilled", res.Fulfilled),
			attribute.Int("saga.pending", res.Pending),
		)
		uc.ins.Done(ctx, span, logger, useCaseReconcile, start, outcome, statusText, err,
			observability.F("scanned", res.Scanned),
			observability.F("fulfilled", res.Fulfilled),
			observability.F("at_risk", res.AtRisk),
			observability.F("abandoned", res.Abandoned),
			observability.F("pending", res.Pending),
		)
	}()

	if cmd.OlderThan < 0 {
		outcome, statusText = "error", "CUTOFF_INVALID"
		return res, apperr.Validation("older-than must not be negative")
	}
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultSweepSize
	}

	intents, lerr := uc.deps.Intents.ListOpen(ctx, uc.deps.now().Add(-cmd.OlderThan), limit)
	if lerr != nil {
		outcome, statusText = "error", "INTENT_LIST_FAILED"
		return res, apperr.Wrap(apperr.CodeInternal, "could not list open intents", lerr)
	}
	res.Scanned = len(intents)

	for _, in := range intents {
		if cerr := ctx.Err(); cerr != nil {
			outcome, statusText = "error", "CONTEXT_CANCELED"
			return res, cerr
		}
		result := uc.settle(ctx, in, logger.With(observability.F("intent_id", in.ID)))
		uc.reconciled.Add(1, observability.L("result", result))
		switch result {
		case "fulfilled":
			res.Fulfilled++
		case "at_risk":
			res.AtRisk++
		case "abandoned":
			res.Abandoned++
		default:
			res.Pending++
		}
	}
	return res, nil
}

// settle moves one intent as far as it can go and names where it ended up.
func (uc *ReconcileUseCase) settle(ctx context.Context, in *saga.Intent, logger observability.Logger) string {
	now := uc.deps.now()
	in.Touch(now)

	if in.State == saga.StateStarted || in.State == saga.StateUnknown {
		auth, ferr := uc.deps.Gateway.FindByReference(ctx, in.ID)
		switch {
		case errors.Is(ferr, dompay.ErrNotFound):
			if err := in.MarkAbandoned("no charge found at gateway", now); err != nil {
				logger.Error("intent_transition_failed", observability.F("error", err.Error()))
				return "pending"
			}
			if err := uc.deps.Intents.Update(ctx, in); err != nil {
				uc.updateFailed(logger, err)
				return "pending"
			}
			logger.Info("intent_abandoned")
			return "abandoned"
		case ferr != nil:
			logger.Warn("gateway_lookup_failed", observability.F("error", ferr.Error()))
			if err := uc.deps.Intents.Update(ctx, in); err != nil {
				uc.updateFailed(logger, err)
			}
			return "pending"
		}
		if err := in.MarkAuthorized(auth.TransactionID, now); err != nil {
			logger.Error("intent_transition_failed", observability.F("error", err.Error()))
			return "pending"
		}
		if err := uc.deps.Intents.Update(ctx, in); err != nil {
			uc.updateFailed(logger, err)
			return "pending"
		}
		logger.Info("intent_charge_confirmed", observability.F("transaction_id", auth.TransactionID))
	} else if in.State == saga.StateAuthorized {
		// Claim the intent before touching stock.
		if err := uc.deps.Intents.Update(ctx, in); err != nil {
			uc.updateFailed(logger, err)
			return "pending"
		}
	}

	if in.State != saga.StateAuthorized {
		return "pending"
	}
	o, err := uc.fulfiller.complete(ctx, in, logger)
	switch {
	case errors.Is(err, saga.ErrStale):
		return "pending"
	case err != nil || o.FulfillmentRisk:
		return "at_risk"
	}
	logger.Info("intent_fulfilled", observability.F("order_id", o.ID))
	return "fulfilled"
}

func (uc *ReconcileUseCase) updateFailed(logger observability.Logger, err error) {
	if errors.Is(err, saga.ErrStale) {
		logger.Info("intent_skipped_in_use")
		return
	}
	logger.Warn("intent_update_failed", observability.F("error", err.Error()))
}

// RunPeriodically sweeps on every tick until ctx ends.
func (uc *ReconcileUseCase) RunPeriodically(ctx context.Context, interval time.Duration, cmd ReconcileInput) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = uc.Execute(ctx, cmd)
		}
	}
}
