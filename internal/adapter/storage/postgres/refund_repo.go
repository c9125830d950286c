package postgres

import (
	"context"
	"errors"
	"fmt"

	"rebooked-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct {
	pool Pool
}

func NewRefundRepo(pool Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

// Create relies on the partial unique index over live refunds to reject a
// second refund for the same order.
func (r *RefundRepo) Create(ctx context.Context, tx pgx.Tx, rf *domain.RefundTransaction) (bool, error) {
	query := `INSERT INTO refund_transactions (id, order_id, payment_reference, amount, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) WHERE status <> 'failed' DO NOTHING`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		rf.ID, rf.OrderID, rf.PaymentReference, rf.Amount, rf.Status, rf.Reason, rf.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert refund: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByOrderID returns the most recent refund of the order.
func (r *RefundRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.RefundTransaction, error) {
	query := `SELECT id, order_id, payment_reference, amount, status, reason, gateway_refund_reference,
		created_at, processed_at
		FROM refund_transactions WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`

	var rf domain.RefundTransaction
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&rf.ID, &rf.OrderID, &rf.PaymentReference, &rf.Amount, &rf.Status, &rf.Reason,
		&rf.GatewayRefundReference, &rf.CreatedAt, &rf.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refund: %w", err)
	}
	return &rf, nil
}

func (r *RefundRepo) UpdateResult(ctx context.Context, rf *domain.RefundTransaction) error {
	query := `UPDATE refund_transactions SET status = $1, gateway_refund_reference = $2, processed_at = $3
		WHERE id = $4`

	tag, err := r.pool.Exec(ctx, query, rf.Status, rf.GatewayRefundReference, rf.ProcessedAt, rf.ID)
	if err != nil {
		return fmt.Errorf("update refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refund not found: %s", rf.ID)
	}
	return nil
}
