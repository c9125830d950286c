package postgres

import (
	"context"
	"fmt"

	"rebooked-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderEventRepo implements ports.OrderEventRepository.
type OrderEventRepo struct {
	pool Pool
}

func NewOrderEventRepo(pool Pool) *OrderEventRepo {
	return &OrderEventRepo{pool: pool}
}

func (r *OrderEventRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.OrderEvent) error {
	query := `INSERT INTO order_events (id, order_id, from_status, to_status, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := on(r.pool, tx).Exec(ctx, query, e.ID, e.OrderID, e.FromStatus, e.ToStatus, e.Actor, e.Note, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

func (r *OrderEventRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderEvent, error) {
	query := `SELECT id, order_id, from_status, to_status, actor, note, created_at
		FROM order_events WHERE order_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	var events []domain.OrderEvent
	for rows.Next() {
		var e domain.OrderEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FromStatus, &e.ToStatus, &e.Actor, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order event rows: %w", err)
	}
	return events, nil
}
