package domain

import "github.com/google/uuid"

// Profile is a marketplace user, buyer and seller alike.
type Profile struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	SubaccountCode  *string   `json:"subaccount_code,omitempty"`
	PickupAddress   *Address  `json:"pickup_address,omitempty"`
	ShippingAddress *Address  `json:"shipping_address,omitempty"`
	IsAdmin         bool      `json:"is_admin"`
}

// HasSubaccount reports whether split payouts can be routed to the profile.
func (p *Profile) HasSubaccount() bool {
	return p.SubaccountCode != nil && *p.SubaccountCode != ""
}
