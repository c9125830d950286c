package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"rebooked-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Methods accepting pgx.Tx run inside the caller's transaction; a nil tx
// runs directly on the pool.

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	// CreateIfAbsent inserts the order unless one already exists for the same
	// payment reference and seller. Returns false when it already existed.
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, order *domain.Order) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByPaymentReference(ctx context.Context, reference string) ([]domain.Order, error)
	List(ctx context.Context, params domain.OrderListParams) ([]domain.Order, int64, error)
	ListStale(ctx context.Context, query domain.StaleOrderQuery) ([]domain.Order, error)
	// Transition applies a conditional status update. Returns nil when the
	// order was not in any of the expected statuses.
	Transition(ctx context.Context, tx pgx.Tx, t domain.OrderTransition) (*domain.Order, error)
	UpdateRefundStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status domain.OrderRefundStatus) error
}

// BookRepository defines persistence operations for listed books.
type BookRepository interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Book, error)
	// Reserve holds every book for buyer until the given time. Returns the
	// number of books reserved; fewer than len(ids) means some were taken.
	Reserve(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, buyerID uuid.UUID, until time.Time, now time.Time) (int64, error)
	ReleaseReservation(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, buyerID uuid.UUID) error
	// MarkSold flips sold on books that are still unsold and returns the ids it changed.
	MarkSold(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]uuid.UUID, error)
	// Restore relists ids for a refunded order unless another live order holds them.
	Restore(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, ids []uuid.UUID) error
	ClearExpiredReservations(ctx context.Context, now time.Time) (int64, error)
}

// PaymentRepository defines persistence operations for payment transactions.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.PaymentTransaction) error
	GetByReference(ctx context.Context, reference string) (*domain.PaymentTransaction, error)
	// MarkTerminal moves a pending payment to status. Returns false when the
	// payment was already terminal.
	MarkTerminal(ctx context.Context, update PaymentStatusUpdate) (bool, error)
}

// PaymentStatusUpdate is the terminal state recorded from a webhook.
type PaymentStatusUpdate struct {
	Reference      string
	Status         domain.PaymentStatus
	GatewayPayload string
	PaidAt         *time.Time
	At             time.Time
}

// RefundRepository defines persistence operations for refund transactions.
type RefundRepository interface {
	// Create inserts a pending refund unless a non-failed one exists for the
	// order. Returns false when one already existed.
	Create(ctx context.Context, tx pgx.Tx, refund *domain.RefundTransaction) (bool, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.RefundTransaction, error)
	UpdateResult(ctx context.Context, refund *domain.RefundTransaction) error
}

// ProfileRepository reads marketplace profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Profile, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// NotificationRepository defines persistence for in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	CreateMany(ctx context.Context, ns []domain.Notification) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page int, pageSize int) ([]domain.Notification, int64, error)
	MarkRead(ctx context.Context, userID uuid.UUID, id uuid.UUID) (bool, error)
}

// OrderEventRepository stores the order audit trail.
type OrderEventRepository interface {
	Create(ctx context.Context, tx pgx.Tx, event *domain.OrderEvent) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderEvent, error)
}

// DBTransactor manages database transactions.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
