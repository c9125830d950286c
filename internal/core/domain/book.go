package domain

import (
	"time"

	"github.com/google/uuid"
)

// Book is a single listed copy of a textbook.
type Book struct {
	ID            uuid.UUID  `json:"id"`
	SellerID      uuid.UUID  `json:"seller_id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Price         int64      `json:"price"` // cents
	Condition     string     `json:"condition"`
	Sold          bool       `json:"sold"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
	ReservedBy    *uuid.UUID `json:"reserved_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// IsReserved reports whether a reservation is still live at now.
func (b *Book) IsReserved(now time.Time) bool {
	return b.ReservedUntil != nil && b.ReservedUntil.After(now)
}

// AvailableFor reports whether buyer may reserve the book at now: unsold and
// either unreserved or already held by the same buyer.
func (b *Book) AvailableFor(buyer uuid.UUID, now time.Time) bool {
	if b.Sold {
		return false
	}
	if !b.IsReserved(now) {
		return true
	}
	return b.ReservedBy != nil && *b.ReservedBy == buyer
}
