package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is a lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPendingCommit     OrderStatus = "pending_commit"
	OrderStatusCommitted         OrderStatus = "committed"
	OrderStatusCourierScheduled  OrderStatus = "courier_scheduled"
	OrderStatusCollected         OrderStatus = "collected"
	OrderStatusDelivered         OrderStatus = "delivered"
	OrderStatusDeclined          OrderStatus = "declined"
	OrderStatusExpired           OrderStatus = "expired"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusCollectionTimeout OrderStatus = "collection_timeout"
)

// orderTransitions lists, for each status, the statuses it may move to.
// Terminal statuses have no entry.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingCommit: {
		OrderStatusCommitted, OrderStatusDeclined, OrderStatusExpired, OrderStatusCancelled,
	},
	OrderStatusCommitted: {
		OrderStatusCourierScheduled, OrderStatusCancelled,
	},
	OrderStatusCourierScheduled: {
		OrderStatusCollected, OrderStatusCollectionTimeout,
	},
	OrderStatusCollected: {
		OrderStatusDelivered,
	},
}

// ParseOrderStatus returns the status named by s.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusPendingCommit, OrderStatusCommitted, OrderStatusCourierScheduled,
		OrderStatusCollected, OrderStatusDelivered, OrderStatusDeclined, OrderStatusExpired,
		OrderStatusCancelled, OrderStatusCollectionTimeout:
		return st, true
	}
	return "", false
}

// IsTerminal returns true if no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	_, ok := orderTransitions[s]
	return !ok
}

// CanTransitionTo reports whether next directly follows s in the lifecycle.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Predecessors returns every status that may move directly to s.
func (s OrderStatus) Predecessors() []OrderStatus {
	var out []OrderStatus
	for _, from := range []OrderStatus{
		OrderStatusPendingCommit, OrderStatusCommitted, OrderStatusCourierScheduled, OrderStatusCollected,
	} {
		if from.CanTransitionTo(s) {
			out = append(out, from)
		}
	}
	return out
}

// RequiresRefund reports whether entering s returns the buyer's money.
func (s OrderStatus) RequiresRefund() bool {
	return s == OrderStatusDeclined || s == OrderStatusExpired || s == OrderStatusCancelled
}

// ReleasedOrderStatuses are the statuses whose books go back on sale.
func ReleasedOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusDeclined, OrderStatusExpired, OrderStatusCancelled}
}

// OrderRefundStatus tracks the refund of a cancelled order.
type OrderRefundStatus string

const (
	OrderRefundNone     OrderRefundStatus = "none"
	OrderRefundPending  OrderRefundStatus = "pending"
	OrderRefundRefunded OrderRefundStatus = "refunded"
	OrderRefundFailed   OrderRefundStatus = "failed"
)

// OrderItem is one book bought in an order.
type OrderItem struct {
	BookID uuid.UUID `json:"book_id"`
	Title  string    `json:"title"`
	Price  int64     `json:"price"` // cents
}

// Order is the purchase of one seller's books from a single payment.
type Order struct {
	ID                uuid.UUID         `json:"id"`
	BuyerID           uuid.UUID         `json:"buyer_id"`
	SellerID          uuid.UUID         `json:"seller_id"`
	Items             []OrderItem       `json:"items"`
	TotalAmount       int64             `json:"total_amount"` // cents, items plus delivery share
	DeliveryFee       int64             `json:"delivery_fee"`
	Status            OrderStatus       `json:"status"`
	PaymentReference  string            `json:"payment_reference"`
	ShippingAddress   Address           `json:"shipping_address"`
	PickupAddress     *Address          `json:"pickup_address,omitempty"`
	WaybillNumber     *string           `json:"waybill_number,omitempty"`
	CourierShipmentID *string           `json:"courier_shipment_id,omitempty"`
	CourierPickupDate *time.Time        `json:"courier_pickup_date,omitempty"`
	EstimatedDelivery *time.Time        `json:"estimated_delivery,omitempty"`
	DeclineReason     *string           `json:"decline_reason,omitempty"`
	DeliveryNote      *string           `json:"delivery_note,omitempty"`
	RefundStatus      OrderRefundStatus `json:"refund_status"`
	CreatedAt         time.Time         `json:"created_at"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	CommittedAt       *time.Time        `json:"committed_at,omitempty"`
	DeclinedAt        *time.Time        `json:"declined_at,omitempty"`
	CollectedAt       *time.Time        `json:"collected_at,omitempty"`
	DeliveredAt       *time.Time        `json:"delivered_at,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// BookIDs returns the ids of every book in the order.
func (o *Order) BookIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.BookID
	}
	return ids
}

// ItemsTotal sums item prices in cents.
func (o *Order) ItemsTotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.Price
	}
	return sum
}

// IsParty reports whether user is the buyer or the seller.
func (o *Order) IsParty(user uuid.UUID) bool {
	return o.BuyerID == user || o.SellerID == user
}

// OrderTransition is one conditional status change. The update applies only
// while the order is still in one of From. Optional fields are written when
// non-nil.
type OrderTransition struct {
	OrderID uuid.UUID
	From    []OrderStatus
	To      OrderStatus
	At      time.Time
	Actor   string
	Note    string

	DeclineReason     *string
	DeliveryNote      *string
	WaybillNumber     *string
	CourierShipmentID *string
	CourierPickupDate *time.Time
	EstimatedDelivery *time.Time
	PickupAddress     *Address
}

// OrderListParams filters a listing of orders.
type OrderListParams struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   *OrderStatus
	Page     int
	PageSize int
}

// StaleOrderQuery selects orders that have sat in Status since before
// Before. Which timestamp counts depends on the status.
type StaleOrderQuery struct {
	Status OrderStatus
	Before time.Time
	Limit  int
}
