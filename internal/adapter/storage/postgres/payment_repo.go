package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.PaymentTransaction) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal payment metadata: %w", err)
	}

	query := `INSERT INTO payment_transactions (reference, buyer_id, buyer_email, amount, currency, status,
		metadata, authorization_url, access_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.pool.Exec(ctx, query,
		p.Reference, p.BuyerID, p.BuyerEmail, p.Amount, p.Currency, p.Status,
		metadata, p.AuthorizationURL, p.AccessCode, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment transaction: %w", err)
	}
	return nil
}

func (r *PaymentRepo) GetByReference(ctx context.Context, reference string) (*domain.PaymentTransaction, error) {
	query := `SELECT reference, buyer_id, buyer_email, amount, currency, status, metadata, gateway_payload,
		authorization_url, access_code, created_at, updated_at, paid_at
		FROM payment_transactions WHERE reference = $1`

	var p domain.PaymentTransaction
	var metadata []byte
	err := r.pool.QueryRow(ctx, query, reference).Scan(
		&p.Reference, &p.BuyerID, &p.BuyerEmail, &p.Amount, &p.Currency, &p.Status, &metadata,
		&p.GatewayPayload, &p.AuthorizationURL, &p.AccessCode, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment transaction: %w", err)
	}
	if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
		return nil, fmt.Errorf("decode payment metadata: %w", err)
	}
	return &p, nil
}

// MarkTerminal only touches pending rows, so a repeated webhook is a no-op.
func (r *PaymentRepo) MarkTerminal(ctx context.Context, u ports.PaymentStatusUpdate) (bool, error) {
	query := `UPDATE payment_transactions
		SET status = $1, gateway_payload = $2, paid_at = COALESCE($3, paid_at), updated_at = $4
		WHERE reference = $5 AND status = 'pending'`

	tag, err := r.pool.Exec(ctx, query, u.Status, u.GatewayPayload, u.PaidAt, u.At, u.Reference)
	if err != nil {
		return false, fmt.Errorf("mark payment terminal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
