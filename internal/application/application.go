package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/observability"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const SpanPrefix = "UC."

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// Instruments are the RED instruments shared by every use case of a service.
type Instruments struct {
	Log          observability.Logger
	Tracer       observability.Tracer
	Metrics      observability.Metrics
	ReqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	DurHistogram observability.Histogram // usecase_duration_seconds{use_case}
	ExtCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	ExtHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

// NewInstruments resolves tel (nil is allowed) and binds the service name to the base logger.
func NewInstruments(tel observability.Observability, service string) Instruments {
	tracer, logger, metrics := observability.Resolve(tel)
	return Instruments{
		Log:          logger.With(observability.F("service", service)),
		Tracer:       tracer,
		Metrics:      metrics,
		ReqCounter:   metrics.Counter(observability.MUsecaseRequests),
		DurHistogram: metrics.Histogram(observability.MUsecaseDuration),
		ExtCounter:   metrics.Counter(observability.MExternalRequests),
		ExtHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// Done closes the span, records the RED metrics and writes the use_case_done line.
func (in Instruments) Done(ctx context.Context, span trace.Span, logger observability.Logger, useCase string, start time.Time, outcome, statusText string, err error, extra ...observability.Field) {
	lat := time.Since(start).Seconds()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()
	}

	in.ReqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
	in.DurHistogram.Observe(lat,
		observability.L("use_case", useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", outcome),
		observability.F("status", statusText),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, extra...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	if outcome == "error" {
		logger.Warn("use_case_done", fields...)
		return
	}
	logger.Info("use_case_done", fields...)
}

// External records one call to a dependency outside the process.
func (in Instruments) External(peer, endpoint, outcome string, start time.Time) {
	in.ExtCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.ExtHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}
