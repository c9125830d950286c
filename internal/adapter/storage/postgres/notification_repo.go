package postgres

import (
	"context"
	"fmt"
	"time"

	"rebooked-marketplace/internal/core/domain"

	"github.com/google/uuid"
)

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	query := `INSERT INTO notifications (id, user_id, type, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// CreateMany inserts all rows in one statement.
func (r *NotificationRepo) CreateMany(ctx context.Context, ns []domain.Notification) (int64, error) {
	if len(ns) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, len(ns))
	users := make([]uuid.UUID, len(ns))
	types := make([]string, len(ns))
	titles := make([]string, len(ns))
	messages := make([]string, len(ns))
	created := make([]time.Time, len(ns))
	for i, n := range ns {
		ids[i], users[i], types[i] = n.ID, n.UserID, string(n.Type)
		titles[i], messages[i], created[i] = n.Title, n.Message, n.CreatedAt
	}

	query := `INSERT INTO notifications (id, user_id, type, title, message, created_at)
		SELECT * FROM unnest($1::uuid[], $2::uuid[], $3::text[], $4::text[], $5::text[], $6::timestamptz[])`

	tag, err := r.pool.Exec(ctx, query, ids, users, types, titles, messages, created)
	if err != nil {
		return 0, fmt.Errorf("insert notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, page int, pageSize int) ([]domain.Notification, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	query := `SELECT id, user_id, type, title, message, read, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan notification row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notification rows: %w", err)
	}
	return out, total, nil
}

// MarkRead returns false when the notification does not belong to userID.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID uuid.UUID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
