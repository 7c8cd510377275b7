package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/storefront-orders/internal/domain/saga"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntentRepository stores saga intents; the cart snapshot lives in a JSONB column.
type IntentRepository struct {
	conn
}

func NewIntentRepository(pool *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{conn{pool: pool}}
}

const intentColumns = `
id, order_id, user_id, nonce, amount::text, lines, delivery_address, payment_mode,
payment_details, state, transaction_id, last_error, attempts, version, created_at, updated_at`

func (r *IntentRepository) Create(ctx context.Context, in *domain.Intent) error {
	if in == nil || in.ID == "" {
		return fmt.Errorf("intent repository: id is required")
	}
	lines, details, err := encodeIntent(in)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO saga_intents (
	id, order_id, user_id, nonce, amount, lines, delivery_address, payment_mode,
	payment_details, state, transaction_id, last_error, attempts, version, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14, $15)`

	_, err = r.exec(ctx, stmt,
		in.ID, in.OrderID, in.UserID, in.Nonce, in.Amount.String(), lines, in.DeliveryAddress, in.PaymentMode,
		details, string(in.State), in.TransactionID, in.LastError, in.Attempts, in.CreatedAt, in.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "saga_intents_nonce_key" {
			return domain.ErrDuplicateNonce
		}
		return fmt.Errorf("create intent: %w", err)
	}
	in.Version = 1
	return nil
}

func (r *IntentRepository) Get(ctx context.Context, id string) (*domain.Intent, error) {
	return r.getBy(ctx, "id", id)
}

func (r *IntentRepository) FindByNonce(ctx context.Context, nonce string) (*domain.Intent, error) {
	return r.getBy(ctx, "nonce", nonce)
}

func (r *IntentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Intent, error) {
	if transactionID == "" {
		return nil, domain.ErrNotFound
	}
	return r.getBy(ctx, "transaction_id", transactionID)
}

func (r *IntentRepository) Update(ctx context.Context, in *domain.Intent) error {
	if in == nil {
		return nil
	}
	lines, _, err := encodeIntent(in)
	if err != nil {
		return err
	}

	const stmt = `
UPDATE saga_intents SET
	lines = $2,
	state = $3,
	transaction_id = $4,
	last_error = $5,
	attempts = $6,
	updated_at = $7,
	version = version + 1
WHERE id = $1 AND version = $8`

	tag, err := r.exec(ctx, stmt, in.ID, lines, string(in.State), in.TransactionID, in.LastError, in.Attempts, in.UpdatedAt, in.Version)
	if err != nil {
		return fmt.Errorf("update intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM saga_intents WHERE id = $1)`, in.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update intent: %w", err)
		}
		if exists {
			return domain.ErrStale
		}
		return domain.ErrNotFound
	}
	in.Version++
	return nil
}

func (r *IntentRepository) ListOpen(ctx context.Context, updatedBefore time.Time, limit int) ([]*domain.Intent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + intentColumns + `
FROM saga_intents
WHERE state IN ($1, $2, $3) AND updated_at < $4
ORDER BY updated_at
LIMIT $5`

	rows, err := r.query(ctx, q,
		string(domain.StateStarted), string(domain.StateUnknown), string(domain.StateAuthorized), updatedBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list open intents: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Intent, error) {
		return scanIntent(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan intents: %w", err)
	}
	return out, nil
}

func (r *IntentRepository) getBy(ctx context.Context, column, value string) (*domain.Intent, error) {
	q := `SELECT ` + intentColumns + ` FROM saga_intents WHERE ` + column + ` = $1 LIMIT 1`

	in, err := scanIntent(r.queryRow(ctx, q, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get intent: %w", err)
	}
	return in, nil
}

func scanIntent(row pgx.Row) (*domain.Intent, error) {
	var (
		in             domain.Intent
		amount, state  string
		lines, details []byte
	)
	err := row.Scan(
		&in.ID, &in.OrderID, &in.UserID, &in.Nonce, &amount, &lines, &in.DeliveryAddress, &in.PaymentMode,
		&details, &state, &in.TransactionID, &in.LastError, &in.Attempts, &in.Version, &in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if in.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &in.Lines); err != nil {
		return nil, fmt.Errorf("decode intent lines: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &in.PaymentDetails); err != nil {
			return nil, fmt.Errorf("decode payment details: %w", err)
		}
	}
	in.State = domain.State(state)
	in.CreatedAt = in.CreatedAt.UTC()
	in.UpdatedAt = in.UpdatedAt.UTC()
	return &in, nil
}

func encodeIntent(in *domain.Intent) (lines, details []byte, err error) {
	if lines, err = json.Marshal(in.Lines); err != nil {
		return nil, nil, fmt.Errorf("encode intent lines: %w", err)
	}
	if details, err = json.Marshal(detailsOrEmpty(in.PaymentDetails)); err != nil {
		return nil, nil, fmt.Errorf("encode payment details: %w", err)
	}
	return lines, details, nil
}
