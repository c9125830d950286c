package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType groups in-app notifications for display.
type NotificationType string

const (
	NotificationOrder     NotificationType = "order"
	NotificationPayment   NotificationType = "payment"
	NotificationDelivery  NotificationType = "delivery"
	NotificationRefund    NotificationType = "refund"
	NotificationBroadcast NotificationType = "broadcast"
	NotificationAdmin     NotificationType = "admin"
)

// Notification is an in-app message shown to one user.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
