package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/storefront-orders/internal/domain/order"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const trackingConstraint = "orders_tracking_number_key"

type OrderRepository struct {
	conn
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{conn{pool: pool}}
}

const orderColumns = `
id, user_id, total_amount::text, payment_mode, payment_details, status, placed_at,
estimated_delivery_at, delivery_address, tracking_number, gateway_transaction_id,
payment_nonce, fulfillment_risk, updated_at`

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	details, err := json.Marshal(detailsOrEmpty(o.PaymentDetails))
	if err != nil {
		return fmt.Errorf("encode payment details: %w", err)
	}

	const stmt = `
INSERT INTO orders (` + orderColumnsInsert + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.exec(ctx, stmt,
		o.ID, o.UserID, o.TotalAmount.String(), o.PaymentMode, details, string(o.Status), o.PlacedAt,
		o.EstimatedDeliveryAt, o.DeliveryAddress, nullable(o.TrackingNumber), nullable(o.GatewayTransactionID),
		nullable(o.PaymentNonce), o.FulfillmentRisk, o.UpdatedAt,
	)
	return mapOrderWriteError("insert order", err)
}

const orderColumnsInsert = `
id, user_id, total_amount, payment_mode, payment_details, status, placed_at,
estimated_delivery_at, delivery_address, tracking_number, gateway_transaction_id,
payment_nonce, fulfillment_risk, updated_at`

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.getBy(ctx, "id", id)
}

// Update rewrites the mutable columns. Identity, owner, nonce and placement time never change.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	const stmt = `
UPDATE orders SET
	status = $2,
	estimated_delivery_at = $3,
	delivery_address = $4,
	tracking_number = $5,
	gateway_transaction_id = $6,
	fulfillment_risk = $7,
	updated_at = $8
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		o.ID, string(o.Status), o.EstimatedDeliveryAt, o.DeliveryAddress, nullable(o.TrackingNumber),
		nullable(o.GatewayTransactionID), o.FulfillmentRisk, o.UpdatedAt,
	)
	if err != nil {
		return mapOrderWriteError("update order", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) FindByNonce(ctx context.Context, nonce string) (*domain.Order, error) {
	if nonce == "" {
		return nil, domain.ErrNotFound
	}
	return r.getBy(ctx, "payment_nonce", nonce)
}

func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Order, error) {
	if transactionID == "" {
		return nil, domain.ErrNotFound
	}
	return r.getBy(ctx, "gateway_transaction_id", transactionID)
}

func (r *OrderRepository) InsertItem(ctx context.Context, item domain.Item) error {
	const stmt = `
INSERT INTO order_items (id, order_id, product_id, size, quantity, unit_price, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		item.ID, item.OrderID, item.ProductID, item.Size, item.Quantity, item.UnitPrice.String(), item.CreatedAt,
	)
	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	if _, ok := uniqueViolation(err); ok {
		return domain.ErrConflict
	}
	return fmt.Errorf("insert order item: %w", err)
}

func (r *OrderRepository) Items(ctx context.Context, orderID string) ([]domain.Item, error) {
	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return r.items(ctx, orderID)
}

func (r *OrderRepository) items(ctx context.Context, orderID string) ([]domain.Item, error) {
	const q = `
SELECT id, order_id, product_id, size, quantity, unit_price::text, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at, id`

	rows, err := r.query(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Item, error) {
		var (
			it    domain.Item
			price string
		)
		if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Size, &it.Quantity, &price, &it.CreatedAt); err != nil {
			return it, err
		}
		var err error
		it.UnitPrice, err = parseDecimal("unit_price", price)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan order items: %w", err)
	}
	return items, nil
}

// getBy only ever receives column names from this file.
func (r *OrderRepository) getBy(ctx context.Context, column, value string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1 LIMIT 1`

	var (
		o                               domain.Order
		total, status                   string
		details                         []byte
		tracking, transaction, nonceCol *string
	)
	err := r.queryRow(ctx, q, value).Scan(
		&o.ID, &o.UserID, &total, &o.PaymentMode, &details, &status, &o.PlacedAt,
		&o.EstimatedDeliveryAt, &o.DeliveryAddress, &tracking, &transaction,
		&nonceCol, &o.FulfillmentRisk, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.TotalAmount, err = parseDecimal("total_amount", total); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &o.PaymentDetails); err != nil {
			return nil, fmt.Errorf("decode payment details: %w", err)
		}
	}
	o.Status = domain.Status(status)
	o.TrackingNumber = deref(tracking)
	o.GatewayTransactionID = deref(transaction)
	o.PaymentNonce = deref(nonceCol)
	o.PlacedAt = o.PlacedAt.UTC()
	o.EstimatedDeliveryAt = o.EstimatedDeliveryAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()

	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func mapOrderWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolation(err); ok {
		if constraint == trackingConstraint {
			return domain.ErrTrackingNumberTaken
		}
		return domain.ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

func detailsOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
