package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triplebarrelracing/storefront/internal/inventory"
	"github.com/triplebarrelracing/storefront/internal/models"
)

var ErrInvalidStatusTransition = errors.New("invalid order status transition")

const orderColumns = `id, customer_name, customer_email, product_id, product_name, size, quantity,
	unit_price, base_price, discount_percent, discount_source, sale_version, currency,
	status, fulfillment_status, payment_id, failure_reason, reconciliation_note,
	capture_started_at, created_at, updated_at, paid_at, failed_at`

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

func (s *OrderStore) Create(ctx context.Context, order *Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	quantity, err := intToInt32(order.Item.Quantity, "quantity")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (id, customer_name, customer_email, product_id, product_name, size, quantity,
			unit_price, base_price, discount_percent, discount_source, sale_version, currency,
			status, fulfillment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	return s.pool.QueryRow(ctx, query,
		order.ID, order.Name, order.Email,
		order.Item.ProductID, order.Item.ProductName, nullText(order.Item.Size), quantity,
		toNumeric(order.Item.UnitPrice), toNumeric(order.Item.BasePrice),
		toNumeric(order.Item.DiscountPercent), order.Item.DiscountSource,
		order.SaleVersion, order.Currency,
		string(order.Status), string(order.FulfillmentStatus),
	).Scan(&order.CreatedAt, &order.UpdatedAt)
}

func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, notFound(err, "order")
	}
	return order, nil
}

func (s *OrderStore) List(ctx context.Context, limit int) ([]*Order, error) {
	limitInt32, err := intToInt32(limit, "limit")
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limitInt32)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ClaimCapture marks a pending order as having a capture in flight. Only
// one caller can claim an order.
func (s *OrderStore) ClaimCapture(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET capture_started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND capture_started_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected unclaimed pending", ErrInvalidStatusTransition)
	}
	return nil
}

// MarkPaid flips a pending order to paid and decrements stock in one
// transaction. When the decrement fails nothing is written and the
// inventory error is returned.
func (s *OrderStore) MarkPaid(ctx context.Context, id uuid.UUID, paymentID string, stock inventory.Request) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = 'paid', payment_id = $2, paid_at = NOW(), updated_at = NOW(), failure_reason = NULL
			WHERE id = $1 AND status = 'pending'
		`, id, paymentID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: expected pending", ErrInvalidStatusTransition)
		}

		return decrementStock(ctx, tx, stock)
	})
}

func (s *OrderStore) MarkFailed(ctx context.Context, id uuid.UUID, failure models.PaymentFailure) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'failed', failure_reason = $2, payment_id = COALESCE($3, payment_id),
		    reconciliation_note = COALESCE($4, reconciliation_note), failed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, failure.Reason, nullText(failure.PaymentID), nullText(failure.ReconciliationNote))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending", ErrInvalidStatusTransition)
	}
	return nil
}

// FlagReconciliationGap records an operator note without touching payment status.
func (s *OrderStore) FlagReconciliationGap(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET reconciliation_note = $2, updated_at = NOW() WHERE id = $1
	`, id, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order: %w", ErrNotFound)
	}
	return nil
}

func (s *OrderStore) UpdateFulfillment(ctx context.Context, id uuid.UUID, status models.FulfillmentStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET fulfillment_status = $2, updated_at = NOW() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order: %w", ErrNotFound)
	}
	return nil
}

// ExpireStalePending fails unclaimed pending orders created before cutoff.
func (s *OrderStore) ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'failed', failure_reason = 'expired', failed_at = NOW(), updated_at = NOW()
		WHERE status = 'pending' AND capture_started_at IS NULL AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExpireAbandonedCaptures fails pending orders whose capture claim started
// before cutoff and never resolved. note is stored as the reconciliation note.
func (s *OrderStore) ExpireAbandonedCaptures(ctx context.Context, cutoff time.Time, note string) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE orders
		SET status = 'failed', failure_reason = 'capture_abandoned', reconciliation_note = $2,
			failed_at = NOW(), updated_at = NOW()
		WHERE status = 'pending' AND capture_started_at IS NOT NULL AND capture_started_at < $1
		RETURNING id
	`, cutoff, note)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order              Order
		size               pgtype.Text
		quantity           int32
		unitPrice          pgtype.Numeric
		basePrice          pgtype.Numeric
		discountPercent    pgtype.Numeric
		status             string
		fulfillment        string
		paymentID          pgtype.Text
		failureReason      pgtype.Text
		reconciliationNote pgtype.Text
		captureStartedAt   pgtype.Timestamptz
		paidAt             pgtype.Timestamptz
		failedAt           pgtype.Timestamptz
	)
	if err := row.Scan(
		&order.ID, &order.Name, &order.Email,
		&order.Item.ProductID, &order.Item.ProductName, &size, &quantity,
		&unitPrice, &basePrice, &discountPercent, &order.Item.DiscountSource,
		&order.SaleVersion, &order.Currency,
		&status, &fulfillment, &paymentID, &failureReason, &reconciliationNote,
		&captureStartedAt, &order.CreatedAt, &order.UpdatedAt, &paidAt, &failedAt,
	); err != nil {
		return nil, err
	}

	order.Item.Size = size.String
	order.Item.Quantity = int(quantity)
	order.Item.UnitPrice = fromNumeric(unitPrice)
	order.Item.BasePrice = fromNumeric(basePrice)
	order.Item.DiscountPercent = fromNumeric(discountPercent)
	order.Status = models.PaymentStatus(status)
	order.FulfillmentStatus = models.FulfillmentStatus(fulfillment)
	order.PaymentID = paymentID.String
	order.FailureReason = failureReason.String
	order.ReconciliationNote = reconciliationNote.String
	if captureStartedAt.Valid {
		order.CaptureStartedAt = captureStartedAt.Time
	}
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}
	if failedAt.Valid {
		order.FailedAt = failedAt.Time
	}
	return &order, nil
}
