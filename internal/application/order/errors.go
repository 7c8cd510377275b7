package order

import (
	"errors"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
	domorder "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	"github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
)

// wrapRepositoryError classifies a store failure for the client.
func wrapRepositoryError(msg string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domorder.ErrNotFound), errors.Is(err, saga.ErrNotFound):
		return apperr.Wrap(apperr.CodeNotFound, "order not found", err)
	case errors.Is(err, domorder.ErrConflict), errors.Is(err, domorder.ErrTrackingNumberTaken):
		return apperr.Wrap(apperr.CodeConflict, msg, err)
	default:
		return apperr.Wrap(apperr.CodeInternal, msg, err)
	}
}

func fulfillmentRisk(msg string, in *saga.Intent, err error) error {
	return apperr.Wrap(apperr.CodeFulfillmentRisk, msg, err).WithDetails(map[string]any{
		"intent_id":      in.ID,
		"order_id":       in.OrderID,
		"transaction_id": in.TransactionID,
	})
}

// intentBusy reports that another worker advanced the intent first and now owns it.
func intentBusy(in *saga.Intent) error {
	return apperr.Wrap(apperr.CodeConflict, "order placement is being completed elsewhere", saga.ErrStale).
		WithDetails(map[string]string{"intent_id": in.ID})
}
