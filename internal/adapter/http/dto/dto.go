package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddressRequest is a South African street address. Provinces may be given
// by name or abbreviation.
type AddressRequest struct {
	Street     string `json:"street" binding:"required,max=200"`
	Suburb     string `json:"suburb" binding:"max=100"`
	City       string `json:"city" binding:"required,max=100"`
	Province   string `json:"province" binding:"required,province"`
	PostalCode string `json:"postal_code" binding:"required,postal_code"`
}

// CartItemRequest is one book in the checkout cart. Price is in rands.
type CartItemRequest struct {
	BookID   string          `json:"book_id" binding:"required,uuid"`
	SellerID string          `json:"seller_id" binding:"required,uuid"`
	Title    string          `json:"title" binding:"required,max=300"`
	Price    decimal.Decimal `json:"price" binding:"gt=0"`
}

// CheckoutRequest is the request body for POST /checkout/initialize.
// Amounts are in rands.
type CheckoutRequest struct {
	Items           []CartItemRequest `json:"items" binding:"required,min=1,max=50,dive"`
	DeliveryFee     decimal.Decimal   `json:"delivery_fee" binding:"gte=0"`
	TotalAmount     decimal.Decimal   `json:"total_amount" binding:"gt=0"`
	Email           string            `json:"email" binding:"omitempty,email"`
	ShippingAddress AddressRequest    `json:"shipping_address" binding:"required"`
}

// CheckoutResponse tells the client where to complete payment.
type CheckoutResponse struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
	Amount           decimal.Decimal `json:"amount"`
	AmountCents      int64           `json:"amount_cents"`
	Currency         string          `json:"currency"`
	SplitSellers     int             `json:"split_sellers"`
	ReservedUntil    string          `json:"reserved_until"`
}

// ParcelRequest describes the package. Omitted or zero dimensions mean one
// standard textbook.
type ParcelRequest struct {
	WeightKg float64         `json:"weight_kg" binding:"gte=0"`
	LengthCm float64         `json:"length_cm" binding:"gte=0"`
	WidthCm  float64         `json:"width_cm" binding:"gte=0"`
	HeightCm float64         `json:"height_cm" binding:"gte=0"`
	Value    decimal.Decimal `json:"value" binding:"gte=0"`
}

// QuoteRequest is the request body for POST /courier/quotes.
type QuoteRequest struct {
	From   AddressRequest `json:"from" binding:"required"`
	To     AddressRequest `json:"to" binding:"required"`
	Parcel *ParcelRequest `json:"parcel"`
}

// QuoteResponse is one priced delivery option.
type QuoteResponse struct {
	Provider     string          `json:"provider"`
	ServiceName  string          `json:"service_name"`
	ServiceCode  string          `json:"service_code,omitempty"`
	ServiceLevel string          `json:"service_level"`
	Price        decimal.Decimal `json:"price"`
	PriceCents   int64           `json:"price_cents"`
	TransitDays  int             `json:"transit_days"`
	Zone         string          `json:"zone"`
	Fallback     bool            `json:"fallback"`
}

// ReasonRequest carries the optional reason for declining or cancelling.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// OrderItemResponse is one book in an order.
type OrderItemResponse struct {
	BookID string          `json:"book_id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
}

// OrderResponse is the client view of an order. Amounts are in rands.
type OrderResponse struct {
	ID                string              `json:"id"`
	BuyerID           string              `json:"buyer_id"`
	SellerID          string              `json:"seller_id"`
	Status            string              `json:"status"`
	Items             []OrderItemResponse `json:"items"`
	TotalAmount       decimal.Decimal     `json:"total_amount"`
	DeliveryFee       decimal.Decimal     `json:"delivery_fee"`
	PaymentReference  string              `json:"payment_reference"`
	ShippingAddress   any                 `json:"shipping_address"`
	WaybillNumber     *string             `json:"waybill_number,omitempty"`
	CourierPickupDate *string             `json:"courier_pickup_date,omitempty"`
	EstimatedDelivery *string             `json:"estimated_delivery,omitempty"`
	DeclineReason     *string             `json:"decline_reason,omitempty"`
	DeliveryNote      *string             `json:"delivery_note,omitempty"`
	RefundStatus      string              `json:"refund_status"`
	CreatedAt         string              `json:"created_at"`
	CommittedAt       *string             `json:"committed_at,omitempty"`
	CollectedAt       *string             `json:"collected_at,omitempty"`
	DeliveredAt       *string             `json:"delivered_at,omitempty"`
	UpdatedAt         string              `json:"updated_at"`
}

// OrderEventResponse is one entry of an order's audit trail.
type OrderEventResponse struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Actor      string `json:"actor"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// RefundResponse summarises the refund of an order.
type RefundResponse struct {
	Amount           decimal.Decimal `json:"amount"`
	Status           string          `json:"status"`
	Reason           string          `json:"reason"`
	GatewayReference *string         `json:"gateway_reference,omitempty"`
	ProcessedAt      *string         `json:"processed_at,omitempty"`
}

// OrderDetailsResponse is an order with its history.
type OrderDetailsResponse struct {
	Order  OrderResponse        `json:"order"`
	Events []OrderEventResponse `json:"events"`
	Refund *RefundResponse      `json:"refund,omitempty"`
}

// NotificationResponse is one in-app notification.
type NotificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// BroadcastRequest is the request body for POST /internal/broadcasts.
// An empty user list targets every profile.
type BroadcastRequest struct {
	Title   string   `json:"title" binding:"required,max=200"`
	Message string   `json:"message" binding:"required,max=2000"`
	UserIDs []string `json:"user_ids" binding:"omitempty,max=1000,dive,uuid"`
}

// BroadcastResponse reports how many notifications were written.
type BroadcastResponse struct {
	Recipients int64 `json:"recipients"`
}

// FormatTime renders t as RFC 3339 in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatTimePtr is FormatTime for optional timestamps.
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}
