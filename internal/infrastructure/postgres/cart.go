package postgres

import (
	"context"
	"fmt"

	domain "github.com/Zhima-Mochi/storefront-orders/internal/domain/cart"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CartRepository struct {
	conn
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{conn{pool: pool}}
}

func (r *CartRepository) Lines(ctx context.Context, userID string) ([]domain.Line, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	rows, err := r.query(ctx,
		`SELECT product_id, size, quantity FROM cart_lines WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Line])
	if err != nil {
		return nil, fmt.Errorf("scan cart: %w", err)
	}
	return lines, nil
}

func (r *CartRepository) Replace(ctx context.Context, userID string, lines []domain.Line) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	return withTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("reset cart: %w", err)
		}
		for i, l := range lines {
			if _, err := r.exec(ctx,
				`INSERT INTO cart_lines (user_id, position, product_id, size, quantity) VALUES ($1, $2, $3, $4, $5)`,
				userID, i, l.ProductID, l.Size, l.Quantity,
			); err != nil {
				return fmt.Errorf("insert cart line: %w", err)
			}
		}
		return nil
	})
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	if _, err := r.exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
