package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	dominv "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	inventoryService  = "inventory-service"
	useCaseValidate   = "inventory.validate"
	useCaseDecrement  = "inventory.decrement"
	defaultValidation = 8
)

// ValidateStockUseCase checks every demand against the ledger. Lookups run concurrently.
type ValidateStockUseCase struct {
	ledger      dominv.Ledger
	concurrency int
	ins         application.Instruments
}

var _ application.UseCase[[]dominv.Demand, []dominv.Availability] = (*ValidateStockUseCase)(nil)

func NewValidateStockUseCase(ledger dominv.Ledger, concurrency int, tel observability.Observability) *ValidateStockUseCase {
	if concurrency <= 0 {
		concurrency = defaultValidation
	}
	return &ValidateStockUseCase{
		ledger:      ledger,
		concurrency: concurrency,
		ins:         application.NewInstruments(tel, inventoryService),
	}
}

// Execute returns one Availability per demand, in input order. Unknown products and sizes are
// reported as unavailable lines, as are lines whose product and size together ask for more than
// the ledger holds. Only ledger failures come back as errors.
func (uc *ValidateStockUseCase) Execute(ctx context.Context, demands []dominv.Demand) (_ []dominv.Availability, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(observability.F("use_case", useCaseValidate))
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"ValidateStock",
		attribute.String("use_case", useCaseValidate),
		attribute.Int("inventory.lines", len(demands)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseValidate, start, outcome, statusText, err)
	}()

	if len(demands) == 0 {
		outcome, statusText = "error", "NO_LINES"
		return nil, apperr.Validation("at least one line is required")
	}
	for i, d := range demands {
		if verr := d.Validate(); verr != nil {
			outcome, statusText = "error", "LINE_INVALID"
			return nil, apperr.Wrap(apperr.CodeValidation, fmt.Sprintf("line %d is invalid", i), verr).
				WithDetails(map[string]any{"line": i})
		}
	}

	report := make([]dominv.Availability, len(demands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, d := range demands {
		g.Go(func() error {
			p, gerr := uc.ledger.Get(gctx, d.ProductID)
			switch {
			case errors.Is(gerr, dominv.ErrNotFound):
				report[i] = dominv.Check(nil, d)
				return nil
			case gerr != nil:
				return fmt.Errorf("inventory: load %s: %w", d.ProductID, gerr)
			}
			report[i] = dominv.Check(p, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		outcome, statusText = "error", "LEDGER_READ_FAILED"
		return nil, apperr.Wrap(apperr.CodeInternal, "stock ledger unavailable", err)
	}

	dominv.CheckCombined(report, demands)

	if short := ShortLines(report); len(short) > 0 {
		statusText = "SHORT"
		span.SetAttributes(
			attribute.Bool("inventory.short", true),
			attribute.Int("inventory.short_lines", len(short)),
		)
	}
	return report, nil
}

// AllAvailable reports whether every line of a report can be met.
func AllAvailable(report []dominv.Availability) bool {
	for _, a := range report {
		if !a.OK {
			return false
		}
	}
	return true
}

// ShortLines keeps the failing lines of a report.
func ShortLines(report []dominv.Availability) []dominv.Availability {
	var out []dominv.Availability
	for _, a := range report {
		if !a.OK {
			out = append(out, a)
		}
	}
	return out
}

type DecrementStockInput struct {
	ProductID string
	Size      string
	Quantity  int
}

// DecrementStockUseCase applies one conditional decrement and returns the updated product.
type DecrementStockUseCase struct {
	ledger   dominv.Ledger
	ins      application.Instruments
	rejected observability.Counter // stock_decrement_rejected_total{source}
}

var _ application.UseCase[DecrementStockInput, *dominv.Product] = (*DecrementStockUseCase)(nil)

func NewDecrementStockUseCase(ledger dominv.Ledger, tel observability.Observability) *DecrementStockUseCase {
	ins := application.NewInstruments(tel, inventoryService)
	return &DecrementStockUseCase{
		ledger:   ledger,
		ins:      ins,
		rejected: ins.Metrics.Counter(observability.MStockDecrementRejected),
	}
}

func (uc *DecrementStockUseCase) Execute(ctx context.Context, cmd DecrementStockInput) (_ *dominv.Product, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(
		observability.F("use_case", useCaseDecrement),
		observability.F("product_id", cmd.ProductID),
		observability.F("size", cmd.Size),
	)
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"DecrementStock",
		attribute.String("use_case", useCaseDecrement),
		attribute.String("product.id", cmd.ProductID),
		attribute.String("product.size", cmd.Size),
		attribute.Int("inventory.quantity", cmd.Quantity),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseDecrement, start, outcome, statusText, err)
	}()

	if strings.TrimSpace(cmd.ProductID) == "" {
		outcome, statusText = "error", "PRODUCT_ID_REQUIRED"
		return nil, apperr.Validation("productId is required")
	}
	if strings.TrimSpace(cmd.Size) == "" {
		outcome, statusText = "error", "SIZE_REQUIRED"
		return nil, apperr.Validation("size is required")
	}
	if cmd.Quantity <= 0 {
		outcome, statusText = "error", "QUANTITY_INVALID"
		return nil, apperr.Validation("quantity must be greater than zero")
	}

	remaining, derr := uc.ledger.Decrement(ctx, cmd.ProductID, cmd.Size, cmd.Quantity)
	if derr != nil {
		outcome = "error"
		uc.rejected.Add(1, observability.L("source", "api"))
		switch {
		case errors.Is(derr, dominv.ErrInsufficientStock):
			statusText = "INSUFFICIENT_STOCK"
			return nil, apperr.Wrap(apperr.CodeInsufficientStock, "insufficient stock", derr).
				WithDetails([]dominv.Availability{{
					ProductID: cmd.ProductID, Size: cmd.Size, Requested: cmd.Quantity,
					Available: remaining, Reason: dominv.ReasonShort,
				}})
		case errors.Is(derr, dominv.ErrNotFound), errors.Is(derr, dominv.ErrSizeNotFound):
			statusText = "NOT_FOUND"
			return nil, apperr.Wrap(apperr.CodeNotFound, "product or size not found", derr)
		case errors.Is(derr, dominv.ErrInvalidQuantity):
			statusText = "QUANTITY_INVALID"
			return nil, apperr.Wrap(apperr.CodeValidation, "quantity must be greater than zero", derr)
		default:
			statusText = "LEDGER_WRITE_FAILED"
			return nil, apperr.Wrap(apperr.CodeInternal, "stock ledger unavailable", derr)
		}
	}
	span.SetAttributes(attribute.Int("inventory.remaining", remaining))

	p, gerr := uc.ledger.Get(ctx, cmd.ProductID)
	if gerr != nil {
		outcome, statusText = "error", "LEDGER_READ_FAILED"
		return nil, apperr.Wrap(apperr.CodeInternal, "stock ledger unavailable", gerr)
	}
	return p, nil
}
