package logctx

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
)

type recordingLogger struct {
	observability.Logger
	fields []observability.Field
}

func (r *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{Logger: observability.NopLogger(), fields: append(append([]observability.Field(nil), r.fields...), fields...)}
}

func TestFromOr(t *testing.T) {
	t.Parallel()

	fallback := &recordingLogger{Logger: observability.NopLogger()}
	if got := FromOr(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}

	stored := &recordingLogger{Logger: observability.NopLogger()}
	ctx := With(context.Background(), stored)
	if got := FromOr(ctx, fallback); got != stored {
		t.Fatalf("expected stored logger")
	}

	if got := FromOr(context.Background(), nil); got == nil {
		t.Fatalf("expected nop logger when fallback is nil")
	}
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	base := &recordingLogger{Logger: observability.NopLogger()}
	ctx, logger := Enrich(context.Background(), base, observability.F("order_id", "o-1"))

	rec, ok := logger.(*recordingLogger)
	if !ok {
		t.Fatalf("expected recordingLogger, got %T", logger)
	}
	if len(rec.fields) != 1 || rec.fields[0].Key != "order_id" {
		t.Fatalf("expected order_id field, got %+v", rec.fields)
	}
	if From(ctx) != logger {
		t.Fatalf("expected enriched logger stored on context")
	}
}
