package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/storefront-orders/internal/domain/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryRepository is the stock ledger over products and product_stock.
type InventoryRepository struct {
	conn
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{conn{pool: pool}}
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	const productQuery = `SELECT id, name, unit_price::text, updated_at FROM products WHERE id = $1`

	var (
		p     domain.Product
		price string
	)
	err := r.queryRow(ctx, productQuery, productID).Scan(&p.ID, &p.Name, &price, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p.UnitPrice, err = parseDecimal("unit_price", price); err != nil {
		return nil, err
	}

	rows, err := r.query(ctx, `SELECT size, stock_count FROM product_stock WHERE product_id = $1 ORDER BY size`, productID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	p.Stock, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StockEntry, error) {
		var e domain.StockEntry
		err := row.Scan(&e.Size, &e.StockCount)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan stock: %w", err)
	}
	return &p, nil
}

// Decrement is a single conditional UPDATE; the row is only touched when enough stock is left.
func (r *InventoryRepository) Decrement(ctx context.Context, productID, size string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	const stmt = `
UPDATE product_stock
SET stock_count = stock_count - $3
WHERE product_id = $1 AND lower(size) = lower($2) AND stock_count >= $3
RETURNING stock_count`

	var remaining int
	err := withTx(ctx, r.pool, func(ctx context.Context) error {
		err := r.queryRow(ctx, stmt, productID, size, quantity).Scan(&remaining)
		if errors.Is(err, pgx.ErrNoRows) {
			return r.explainMiss(ctx, productID, size, &remaining)
		}
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		_, err = r.exec(ctx, `UPDATE products SET updated_at = NOW() WHERE id = $1`, productID)
		return err
	})
	return remaining, err
}

func (r *InventoryRepository) explainMiss(ctx context.Context, productID, size string, remaining *int) error {
	const lookup = `
SELECT s.stock_count
FROM products p
LEFT JOIN product_stock s ON s.product_id = p.id AND lower(s.size) = lower($2)
WHERE p.id = $1`

	var count *int
	err := r.queryRow(ctx, lookup, productID, size).Scan(&count)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("explain stock miss: %w", err)
	case count == nil:
		return domain.ErrSizeNotFound
	}
	*remaining = *count
	return domain.ErrInsufficientStock
}

// Put upserts a product and replaces its stock rows.
func (r *InventoryRepository) Put(ctx context.Context, p *domain.Product) error {
	if p == nil {
		return nil
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return withTx(ctx, r.pool, func(ctx context.Context) error {
		const upsert = `
INSERT INTO products (id, name, unit_price, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price, updated_at = EXCLUDED.updated_at`
		if _, err := r.exec(ctx, upsert, p.ID, p.Name, p.UnitPrice.String(), updated); err != nil {
			return fmt.Errorf("upsert product: %w", err)
		}
		if _, err := r.exec(ctx, `DELETE FROM product_stock WHERE product_id = $1`, p.ID); err != nil {
			return fmt.Errorf("reset stock: %w", err)
		}
		for _, e := range p.Stock {
			if _, err := r.exec(ctx,
				`INSERT INTO product_stock (product_id, size, stock_count) VALUES ($1, $2, $3)`,
				p.ID, e.Size, e.StockCount,
			); err != nil {
				return fmt.Errorf("insert stock %s: %w", e.Size, err)
			}
		}
		return nil
	})
}
