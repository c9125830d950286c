package domain

import (
	"fmt"
	"time"

	"rebooked-marketplace/pkg/money"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment transaction.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Split bearer types understood by the gateway.
const (
	BearerAccount    = "account"
	BearerSubaccount = "subaccount"
)

// CartItem is one book in a checkout request.
type CartItem struct {
	BookID   uuid.UUID `json:"book_id"`
	SellerID uuid.UUID `json:"seller_id"`
	Title    string    `json:"title"`
	Price    int64     `json:"price"` // cents
}

// SellerAllocation is one seller's slice of a checkout: their items and the
// part of the payment total routed to them.
type SellerAllocation struct {
	SellerID   uuid.UUID   `json:"seller_id"`
	Subaccount string      `json:"subaccount,omitempty"`
	Items      []OrderItem `json:"items"`
	ItemsTotal int64       `json:"items_total"`
	Share      int64       `json:"share"`
}

// DeliveryShare is the part of Share that covers delivery.
func (a SellerAllocation) DeliveryShare() int64 {
	return a.Share - a.ItemsTotal
}

// SplitShare routes a flat amount to one subaccount.
type SplitShare struct {
	Subaccount string `json:"subaccount"`
	Share      int64  `json:"share"`
}

// SplitPlan is a dynamic multi-seller split.
type SplitPlan struct {
	BearerType       string       `json:"bearer_type"`
	BearerSubaccount string       `json:"bearer_subaccount,omitempty"`
	Shares           []SplitShare `json:"shares"`
}

// Total sums the shares.
func (p SplitPlan) Total() int64 {
	var sum int64
	for _, s := range p.Shares {
		sum += s.Share
	}
	return sum
}

// PaymentMetadata is what order creation needs once the charge succeeds.
type PaymentMetadata struct {
	Items           []CartItem         `json:"items"`
	ShippingAddress Address            `json:"shipping_address"`
	DeliveryFee     int64              `json:"delivery_fee"`
	Sellers         []SellerAllocation `json:"sellers"`
	Split           *SplitPlan         `json:"split,omitempty"`
}

// BookIDs returns every book id in the cart.
func (m PaymentMetadata) BookIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(m.Items))
	for i, it := range m.Items {
		ids[i] = it.BookID
	}
	return ids
}

// PaymentTransaction is a checkout session correlated with the gateway by
// Reference. It reaches a terminal status exactly once.
type PaymentTransaction struct {
	Reference        string          `json:"reference"`
	BuyerID          uuid.UUID       `json:"buyer_id"`
	BuyerEmail       string          `json:"buyer_email"`
	Amount           int64           `json:"amount"` // cents
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"`
	Metadata         PaymentMetadata `json:"metadata"`
	GatewayPayload   string          `json:"-"` // AES-256 encrypted webhook body
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
}

// IsTerminal returns true if the payment is in a final state.
func (p *PaymentTransaction) IsTerminal() bool {
	return p.Status == PaymentStatusSuccess || p.Status == PaymentStatusFailed
}

// AllocateBySeller groups items by seller in order of first appearance and
// splits total across sellers in proportion to their item subtotals. The
// rounding remainder goes to the seller with the largest subtotal so that
// shares sum to total exactly.
func AllocateBySeller(items []CartItem, total int64) ([]SellerAllocation, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("allocate: no items")
	}

	index := make(map[uuid.UUID]int)
	var allocs []SellerAllocation
	var itemsTotal int64
	for _, it := range items {
		i, ok := index[it.SellerID]
		if !ok {
			i = len(allocs)
			index[it.SellerID] = i
			allocs = append(allocs, SellerAllocation{SellerID: it.SellerID})
		}
		allocs[i].Items = append(allocs[i].Items, OrderItem{BookID: it.BookID, Title: it.Title, Price: it.Price})
		allocs[i].ItemsTotal += it.Price
		itemsTotal += it.Price
	}

	if len(allocs) == 1 {
		allocs[0].Share = total
		return allocs, nil
	}

	var assigned int64
	largest := 0
	for i := range allocs {
		share, err := money.Share(total, allocs[i].ItemsTotal, itemsTotal)
		if err != nil {
			return nil, fmt.Errorf("allocate: %w", err)
		}
		allocs[i].Share = share
		assigned += share
		if allocs[i].ItemsTotal > allocs[largest].ItemsTotal {
			largest = i
		}
	}
	allocs[largest].Share += total - assigned

	return allocs, nil
}
