package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"rebooked-marketplace/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService computes and checks webhook HMAC-SHA512 signatures.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// HashService handles secret hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService validates user session tokens.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// IsAdmin reports whether the session carries the admin role.
func (c *TokenClaims) IsAdmin() bool {
	return c.Role == "admin"
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventGuard claims one-time processing of an external event id.
type EventGuard interface {
	// Claim returns true the first time key is seen within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so a later delivery is processed again.
	Release(ctx context.Context, key string) error
}

// --- Service Ports (Business Logic) ---

// CheckoutService initializes payments for a cart.
type CheckoutService interface {
	Initialize(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

// CheckoutRequest holds validated input for payment initialization.
type CheckoutRequest struct {
	BuyerID         uuid.UUID
	BuyerEmail      string
	Items           []domain.CartItem
	DeliveryFee     int64 // cents
	TotalAmount     int64 // cents, declared by the client
	ShippingAddress domain.Address
	IdempotencyKey  string
}

// CheckoutResult is what the client needs to redirect to the gateway.
type CheckoutResult struct {
	Reference        string            `json:"reference"`
	AuthorizationURL string            `json:"authorization_url"`
	AccessCode       string            `json:"access_code"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Split            *domain.SplitPlan `json:"split,omitempty"`
	ReservedUntil    time.Time         `json:"reserved_until"`
}

// WebhookService handles payment gateway callbacks.
type WebhookService interface {
	// HandlePaystack verifies and processes one webhook delivery. Only
	// signature failures are returned; processing errors are logged.
	HandlePaystack(ctx context.Context, payload []byte, signature string) error
}

// OrderService drives the order lifecycle.
type OrderService interface {
	CreateFromPayment(ctx context.Context, reference string) ([]domain.Order, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDetails, error)
	List(ctx context.Context, actor Actor, filter OrderFilter) ([]domain.Order, int64, error)
	Commit(ctx context.Context, actor Actor, orderID uuid.UUID) (*domain.Order, error)
	Decline(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*domain.Order, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*domain.Order, error)
	ScheduleCourier(ctx context.Context, actor Actor, orderID uuid.UUID) (*domain.Order, error)
	MarkCollected(ctx context.Context, actor Actor, orderID uuid.UUID) (*domain.Order, error)
	ConfirmDelivery(ctx context.Context, actor Actor, orderID uuid.UUID) (*domain.Order, error)
	Expire(ctx context.Context, orderID uuid.UUID) (*domain.Order, *domain.RefundTransaction, error)
	TimeoutCollection(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ResolveDeliveryTimeout(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// OrderFilter narrows the caller's order listing.
type OrderFilter struct {
	Role     string // "buyer" or "seller"
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

// OrderDetails is an order with its audit trail and refund, if any.
type OrderDetails struct {
	Order  domain.Order              `json:"order"`
	Events []domain.OrderEvent       `json:"events"`
	Refund *domain.RefundTransaction `json:"refund,omitempty"`
}

// RefundService issues gateway refunds for orders.
type RefundService interface {
	// Execute sends a pending refund to the gateway and records the outcome.
	Execute(ctx context.Context, refund *domain.RefundTransaction) (*domain.RefundTransaction, error)
}

// CourierService prices and books deliveries.
type CourierService interface {
	Quote(ctx context.Context, req domain.QuoteRequest) ([]domain.Quote, error)
	CreateShipment(ctx context.Context, req domain.ShipmentRequest) (*domain.Shipment, error)
}

// SweepService runs the time-triggered order checks.
type SweepService interface {
	AutoExpire(ctx context.Context) (*AutoExpireSummary, error)
	CheckExpiredOrders(ctx context.Context) (*ExpiryCheckSummary, error)
}

// SweepEntry is one order touched by a sweep.
type SweepEntry struct {
	OrderID uuid.UUID          `json:"order_id"`
	Status  domain.OrderStatus `json:"status,omitempty"`
	Amount  int64              `json:"amount"`
	Error   string             `json:"error,omitempty"`
}

// AutoExpireSummary reports one auto-expire run.
type AutoExpireSummary struct {
	Processed      int          `json:"processed"`
	Expired        int          `json:"expired"`
	Failed         int          `json:"failed"`
	RefundTotal    int64        `json:"refund_total"`
	Entries        []SweepEntry `json:"entries"`
	SummaryEmailed bool         `json:"summary_emailed"`
}

// ExpiryCheckSummary reports one check-expired-orders run.
type ExpiryCheckSummary struct {
	CollectionTimeouts   int          `json:"collection_timeouts"`
	DeliveryTimeouts     int          `json:"delivery_timeouts"`
	ReservationsReleased int64        `json:"reservations_released"`
	Failed               int          `json:"failed"`
	Entries              []SweepEntry `json:"entries"`
}

// NotificationService fans out emails and in-app notifications.
type NotificationService interface {
	Notify(ctx context.Context, notice Notice) error
	NotifyAdmin(ctx context.Context, notice Notice) error
	Broadcast(ctx context.Context, req BroadcastRequest) (int64, error)
	List(ctx context.Context, userID uuid.UUID, page int, pageSize int) ([]domain.Notification, int64, error)
	MarkRead(ctx context.Context, userID uuid.UUID, id uuid.UUID) error
}

// Notice asks for one templated message to one recipient.
type Notice struct {
	UserID   uuid.UUID
	Email    string
	Name     string
	Template string
	Data     map[string]any
}

// BroadcastRequest is an admin message to many users.
type BroadcastRequest struct {
	Title   string
	Message string
	UserIDs []uuid.UUID // empty means every profile
}
