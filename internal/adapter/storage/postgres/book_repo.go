package postgres

import (
	"context"
	"fmt"
	"time"

	"rebooked-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BookRepo implements ports.BookRepository.
type BookRepo struct {
	pool Pool
}

func NewBookRepo(pool Pool) *BookRepo {
	return &BookRepo{pool: pool}
}

func (r *BookRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Book, error) {
	query := `SELECT id, seller_id, title, author, price, condition, sold, reserved_until, reserved_by, created_at
		FROM books WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(
			&b.ID, &b.SellerID, &b.Title, &b.Author, &b.Price, &b.Condition,
			&b.Sold, &b.ReservedUntil, &b.ReservedBy, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book rows: %w", err)
	}
	return books, nil
}

// Reserve claims every unsold book that is free or already held by buyer.
func (r *BookRepo) Reserve(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, buyerID uuid.UUID, until time.Time, now time.Time) (int64, error) {
	query := `UPDATE books SET reserved_until = $1, reserved_by = $2
		WHERE id = ANY($3) AND sold = FALSE
		AND (reserved_until IS NULL OR reserved_until <= $4 OR reserved_by = $2)`

	tag, err := on(r.pool, tx).Exec(ctx, query, until, buyerID, ids, now)
	if err != nil {
		return 0, fmt.Errorf("reserve books: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReleaseReservation drops holds owned by buyer. Holds taken by someone else
// are left alone.
func (r *BookRepo) ReleaseReservation(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, buyerID uuid.UUID) error {
	query := `UPDATE books SET reserved_until = NULL, reserved_by = NULL
		WHERE id = ANY($1) AND reserved_by = $2 AND sold = FALSE`

	if _, err := on(r.pool, tx).Exec(ctx, query, ids, buyerID); err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}

// MarkSold flips sold on the books that are still unsold and returns their ids.
func (r *BookRepo) MarkSold(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]uuid.UUID, error) {
	query := `UPDATE books SET sold = TRUE, reserved_until = NULL, reserved_by = NULL
		WHERE id = ANY($1) AND sold = FALSE
		RETURNING id`

	rows, err := on(r.pool, tx).Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("mark books sold: %w", err)
	}
	defer rows.Close()

	var sold []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sold book id: %w", err)
		}
		sold = append(sold, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sold book ids: %w", err)
	}
	return sold, nil
}

// Restore relists books after orderID is refunded. A book still carried by
// another order that has not been released stays sold.
func (r *BookRepo) Restore(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, ids []uuid.UUID) error {
	query := `UPDATE books b SET sold = FALSE, reserved_until = NULL, reserved_by = NULL
		WHERE b.id = ANY($1) AND NOT EXISTS (
			SELECT 1 FROM orders o, jsonb_array_elements(o.items) item
			WHERE o.id <> $2 AND o.status <> ALL($3)
			AND (item->>'book_id')::uuid = b.id)`

	released := domain.ReleasedOrderStatuses()
	statuses := make([]string, len(released))
	for i, st := range released {
		statuses[i] = string(st)
	}

	if _, err := on(r.pool, tx).Exec(ctx, query, ids, orderID, statuses); err != nil {
		return fmt.Errorf("restore books: %w", err)
	}
	return nil
}

func (r *BookRepo) ClearExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE books SET reserved_until = NULL, reserved_by = NULL
		WHERE reserved_until IS NOT NULL AND reserved_until <= $1`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("clear expired reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}
