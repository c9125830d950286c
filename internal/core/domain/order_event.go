package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderEvent records one status change or policy decision on an order.
type OrderEvent struct {
	ID         uuid.UUID   `json:"id"`
	OrderID    uuid.UUID   `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
	Actor      string      `json:"actor"`
	Note       string      `json:"note,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Actor labels stored on order events.
func SellerActor(id uuid.UUID) string { return "seller:" + id.String() }
func BuyerActor(id uuid.UUID) string { return "buyer:" + id.String() }
func AdminActor(id uuid.UUID) string { return "admin:" + id.String() }
func SystemActor(job string) string { return "system:" + job }
