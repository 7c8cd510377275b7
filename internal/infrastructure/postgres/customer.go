package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/notification"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CustomerDirectory reads contact addresses from the shared customers table.
type CustomerDirectory struct {
	conn
}

func NewCustomerDirectory(pool *pgxpool.Pool) *CustomerDirectory {
	return &CustomerDirectory{conn{pool: pool}}
}

func (d *CustomerDirectory) Email(ctx context.Context, userID string) (string, error) {
	var email string
	err := d.queryRow(ctx, `SELECT email FROM customers WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", notification.ErrCustomerNotFound
		}
		return "", fmt.Errorf("get customer: %w", err)
	}
	if email == "" {
		return "", notification.ErrCustomerNotFound
	}
	return email, nil
}

func (d *CustomerDirectory) Set(ctx context.Context, userID, email string) error {
	_, err := d.exec(ctx, `
INSERT INTO customers (id, email) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`, userID, email)
	if err != nil {
		return fmt.Errorf("set customer: %w", err)
	}
	return nil
}
