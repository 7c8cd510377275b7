package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is one line of an order. Immutable once stored.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	Size      string
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

func NewItem(id, orderID, productID, size string, quantity int, unitPrice decimal.Decimal, now time.Time) (Item, error) {
	if strings.TrimSpace(orderID) == "" {
		return Item{}, ErrNotFound
	}
	if quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return Item{}, ErrInvalidAmount
	}
	return Item{
		ID:        id,
		OrderID:   orderID,
		ProductID: productID,
		Size:      size,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		CreatedAt: now.UTC(),
	}, nil
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
