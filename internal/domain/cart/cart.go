package cart

import (
	"context"
	"errors"
)

var ErrUserRequired = errors.New("cart: user id is required")

// Line is one product/size/quantity entry in a user's cart.
type Line struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type Repository interface {
	Lines(ctx context.Context, userID string) ([]Line, error)
	Replace(ctx context.Context, userID string, lines []Line) error
	Clear(ctx context.Context, userID string) error
}
