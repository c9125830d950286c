package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus is the state of a gateway refund.
type RefundStatus string

const (
	RefundStatusPending RefundStatus = "pending"
	RefundStatusSuccess RefundStatus = "success"
	RefundStatusFailed  RefundStatus = "failed"
)

// RefundTransaction is a refund of one order's total back to the buyer.
// At most one non-failed refund exists per order.
type RefundTransaction struct {
	ID                     uuid.UUID    `json:"id"`
	OrderID                uuid.UUID    `json:"order_id"`
	PaymentReference       string       `json:"payment_reference"`
	Amount                 int64        `json:"amount"` // cents
	Status                 RefundStatus `json:"status"`
	Reason                 string       `json:"reason"`
	GatewayRefundReference *string      `json:"gateway_refund_reference,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	ProcessedAt            *time.Time   `json:"processed_at,omitempty"`
}

// IsTerminal returns true once the gateway outcome is known.
func (r *RefundTransaction) IsTerminal() bool {
	return r.Status == RefundStatusSuccess || r.Status == RefundStatusFailed
}

// OrderRefundStatus maps the refund outcome onto the order's refund column.
func (r *RefundTransaction) OrderRefundStatus() OrderRefundStatus {
	switch r.Status {
	case RefundStatusSuccess:
		return OrderRefundRefunded
	case RefundStatusFailed:
		return OrderRefundFailed
	default:
		return OrderRefundPending
	}
}
