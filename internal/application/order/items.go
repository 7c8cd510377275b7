package order

import (
	"context"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/application"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	dompay "github.com/Zhima-Mochi/storefront-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability"
	"github.com/Zhima-Mochi/storefront-orders/internal/observability/logctx"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const useCaseAddItem = "order.add_item"

type AddOrderItemInput struct {
	OrderID   string
	ProductID string
	Size      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// AddOrderItemUseCase records one line against an existing order. The items of an order may
// never sum to more than its total.
type AddOrderItemUseCase struct {
	orders domorder.Repository
	ids    IDGenerator
	deps   Dependencies
	ins    application.Instruments
}

var _ application.UseCase[AddOrderItemInput, domorder.Item] = (*AddOrderItemUseCase)(nil)

func NewAddOrderItemUseCase(deps Dependencies, tel observability.Observability) *AddOrderItemUseCase {
	return &AddOrderItemUseCase{
		orders: deps.Orders,
		ids:    deps.IDs,
		deps:   deps,
		ins:    application.NewInstruments(tel, orderService),
	}
}

func (uc *AddOrderItemUseCase) Execute(ctx context.Context, cmd AddOrderItemInput) (_ domorder.Item, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(
		observability.F("use_case", useCaseAddItem),
		observability.F("order_id", cmd.OrderID),
	)
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"AddOrderItem",
		attribute.String("use_case", useCaseAddItem),
		attribute.String("order.id", cmd.OrderID),
		attribute.String("product.id", cmd.ProductID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseAddItem, start, outcome, statusText, err)
	}()

	switch {
	case strings.TrimSpace(cmd.OrderID) == "":
		outcome, statusText = "error", "ORDER_ID_REQUIRED"
		return domorder.Item{}, apperr.Validation("order_id is required")
	case strings.TrimSpace(cmd.ProductID) == "":
		outcome, statusText = "error", "PRODUCT_ID_REQUIRED"
		return domorder.Item{}, apperr.Validation("product_id is required")
	case cmd.Quantity <= 0:
		outcome, statusText = "error", "QUANTITY_INVALID"
		return domorder.Item{}, apperr.Validation("quantity must be greater than zero")
	case cmd.UnitPrice.IsNegative():
		outcome, statusText = "error", "PRICE_INVALID"
		return domorder.Item{}, apperr.Validation("price must not be negative")
	}

	o, gerr := uc.orders.Get(ctx, cmd.OrderID)
	if gerr != nil {
		outcome, statusText = "error", "ORDER_LOOKUP_FAILED"
		return domorder.Item{}, wrapRepositoryError("could not load order", gerr)
	}

	item, nerr := domorder.NewItem(uc.ids.NewID(), o.ID, cmd.ProductID, cmd.Size, cmd.Quantity, cmd.UnitPrice, uc.deps.now())
	if nerr != nil {
		outcome, statusText = "error", "ITEM_INVALID"
		return domorder.Item{}, apperr.Wrap(apperr.CodeValidation, "invalid order item", nerr)
	}
	if after := o.ItemsTotal().Add(item.LineTotal()); after.GreaterThan(o.TotalAmount) {
		outcome, statusText = "error", "ITEMS_EXCEED_TOTAL"
		return domorder.Item{}, apperr.Validation("items_exceed_total").WithDetails(map[string]string{
			"order_total": dompay.FormatAmount(o.TotalAmount),
			"items_total": dompay.FormatAmount(after),
		})
	}

	if ierr := uc.orders.InsertItem(ctx, item); ierr != nil {
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return domorder.Item{}, wrapRepositoryError("could not add order item", ierr)
	}
	return item, nil
}
