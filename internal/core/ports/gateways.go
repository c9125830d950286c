package ports

//go:generate mockgen -source=gateways.go -destination=mocks/mock_gateways.go -package=mocks

import (
	"context"

	"rebooked-marketplace/internal/core/domain"
)

// PaymentGateway is the payment provider (Paystack).
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, params InitializeParams) (*InitializeResult, error)
	Refund(ctx context.Context, params RefundParams) (*RefundResult, error)
}

// InitializeParams opens a hosted checkout session.
type InitializeParams struct {
	Reference   string
	Email       string
	Amount      int64 // cents
	Currency    string
	CallbackURL string
	Subaccount  string // single-seller payouts
	Split       *domain.SplitPlan
	Metadata    map[string]string
}

// InitializeResult is the hosted checkout session.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// RefundParams refunds part or all of a charge.
type RefundParams struct {
	Reference string
	Amount    int64 // cents
	Reason    string
}

// RefundResult is the gateway's acknowledgement of a refund.
type RefundResult struct {
	GatewayReference string
	Status           string
}

// CourierProvider prices deliveries for one courier.
type CourierProvider interface {
	Name() string
	// Enabled reports whether live quotes can be requested (API key set).
	Enabled() bool
	Quote(ctx context.Context, req domain.QuoteRequest) ([]domain.Quote, error)
}

// ShipmentProvider books collections with a courier.
type ShipmentProvider interface {
	CreateShipment(ctx context.Context, req domain.ShipmentRequest) (*domain.Shipment, error)
}

// EmailSender delivers rendered emails.
type EmailSender interface {
	Enabled() bool
	Send(ctx context.Context, email Email) error
}

// Email is a rendered message for one recipient.
type Email struct {
	ToEmail string
	ToName  string
	Subject string
	HTML    string
	Text    string
	Tags    []string
}
