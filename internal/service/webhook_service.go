package service

import (
	"context"
	"encoding/json"
	"time"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"
	"rebooked-marketplace/pkg/metrics"

	"github.com/rs/zerolog"
)

// Paystack event names.
const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventTransferSuccess = "transfer.success"
	EventTransferFailed  = "transfer.failed"
)

const eventGuardTTL = 72 * time.Hour

type paystackEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type chargeData struct {
	ID        int64      `json:"id"`
	Reference string     `json:"reference"`
	Status    string     `json:"status"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paid_at"`
}

type transferData struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
}

// WebhookServiceImpl implements ports.WebhookService.
type WebhookServiceImpl struct {
	secretKey string
	payments  ports.PaymentRepository
	books     ports.BookRepository
	orderSvc  ports.OrderService
	sigSvc    ports.SignatureService
	encSvc    ports.EncryptionService
	guard     ports.EventGuard
	metrics   *metrics.DomainMetrics
	log       zerolog.Logger
	now       func() time.Time
}

func NewWebhookService(
	secretKey string,
	payments ports.PaymentRepository,
	books ports.BookRepository,
	orderSvc ports.OrderService,
	sigSvc ports.SignatureService,
	encSvc ports.EncryptionService,
	guard ports.EventGuard,
	m *metrics.DomainMetrics,
	log zerolog.Logger,
) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		secretKey: secretKey,
		payments:  payments,
		books:     books,
		orderSvc:  orderSvc,
		sigSvc:    sigSvc,
		encSvc:    encSvc,
		guard:     guard,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// HandlePaystack verifies the signature and dispatches on the event name.
// After a valid signature every outcome is logged and nil is returned, so
// Paystack stops redelivering.
func (s *WebhookServiceImpl) HandlePaystack(ctx context.Context, payload []byte, signature string) error {
	if s.secretKey == "" || !s.sigSvc.Verify(s.secretKey, payload, signature) {
		s.metrics.WebhookEvent("unknown", "invalid_signature")
		s.log.Warn().Int("bytes", len(payload)).Msg("paystack webhook rejected: bad signature")
		return apperror.ErrInvalidSignature()
	}

	var evt paystackEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		s.metrics.WebhookEvent("unknown", "malformed")
		s.log.Warn().Err(err).Msg("paystack webhook body is not valid JSON")
		return nil
	}

	log := s.log.With().Str("event", evt.Event).Logger()
	var result string
	switch evt.Event {
	case EventChargeSuccess:
		result = s.chargeSuccess(ctx, log, payload, evt.Data)
	case EventChargeFailed:
		result = s.chargeFailed(ctx, log, payload, evt.Data)
	case EventTransferSuccess, EventTransferFailed:
		var d transferData
		_ = json.Unmarshal(evt.Data, &d)
		log.Info().
			Str("reference", d.Reference).
			Str("transfer_code", d.TransferCode).
			Int64("amount", d.Amount).
			Msg("transfer event received")
		result = "logged"
	default:
		log.Info().Msg("ignoring unhandled paystack event")
		result = "ignored"
	}
	s.metrics.WebhookEvent(evt.Event, result)
	return nil
}

func (s *WebhookServiceImpl) chargeSuccess(ctx context.Context, log zerolog.Logger, payload []byte, raw json.RawMessage) string {
	var d chargeData
	if err := json.Unmarshal(raw, &d); err != nil || d.Reference == "" {
		log.Warn().Err(err).Msg("charge.success without a reference")
		return "malformed"
	}
	log = log.With().Str("reference", d.Reference).Logger()

	key := EventChargeSuccess + ":" + d.Reference
	claimed, err := s.guard.Claim(ctx, key, eventGuardTTL)
	if err != nil {
		log.Warn().Err(err).Msg("event guard unavailable, relying on conditional update")
		claimed = true
	}
	if !claimed {
		log.Info().Msg("duplicate charge.success delivery")
		return "duplicate"
	}

	payment, err := s.payments.GetByReference(ctx, d.Reference)
	if err != nil {
		s.release(ctx, log, key)
		log.Error().Err(err).Msg("failed to load payment")
		return "error"
	}
	if payment == nil {
		log.Warn().Msg("charge.success for unknown reference")
		return "unknown_reference"
	}
	if d.Amount != 0 && d.Amount != payment.Amount {
		log.Error().Int64("paid", d.Amount).Int64("expected", payment.Amount).Msg("charge amount does not match payment")
		return "amount_mismatch"
	}

	now := s.now().UTC()
	paidAt := now
	if d.PaidAt != nil {
		paidAt = d.PaidAt.UTC()
	}
	applied, err := s.payments.MarkTerminal(ctx, ports.PaymentStatusUpdate{
		Reference:      d.Reference,
		Status:         domain.PaymentStatusSuccess,
		GatewayPayload: s.seal(log, payload),
		PaidAt:         &paidAt,
		At:             now,
	})
	if err != nil {
		s.release(ctx, log, key)
		log.Error().Err(err).Msg("failed to mark payment successful")
		return "error"
	}
	if !applied {
		log.Info().Str("status", string(payment.Status)).Msg("payment already terminal")
		return "duplicate"
	}

	orders, err := s.orderSvc.CreateFromPayment(ctx, d.Reference)
	if err != nil {
		log.Error().Err(err).Msg("order creation failed after successful charge")
		return "order_error"
	}
	log.Info().Int("orders", len(orders)).Msg("charge.success processed")
	return "processed"
}

func (s *WebhookServiceImpl) chargeFailed(ctx context.Context, log zerolog.Logger, payload []byte, raw json.RawMessage) string {
	var d chargeData
	if err := json.Unmarshal(raw, &d); err != nil || d.Reference == "" {
		log.Warn().Err(err).Msg("charge.failed without a reference")
		return "malformed"
	}
	log = log.With().Str("reference", d.Reference).Logger()

	payment, err := s.payments.GetByReference(ctx, d.Reference)
	if err != nil {
		log.Error().Err(err).Msg("failed to load payment")
		return "error"
	}
	if payment == nil {
		log.Warn().Msg("charge.failed for unknown reference")
		return "unknown_reference"
	}

	now := s.now().UTC()
	applied, err := s.payments.MarkTerminal(ctx, ports.PaymentStatusUpdate{
		Reference:      d.Reference,
		Status:         domain.PaymentStatusFailed,
		GatewayPayload: s.seal(log, payload),
		At:             now,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to mark payment failed")
		return "error"
	}
	if !applied {
		return "duplicate"
	}

	if err := s.books.ReleaseReservation(ctx, nil, payment.Metadata.BookIDs(), payment.BuyerID); err != nil {
		log.Warn().Err(err).Msg("failed to release reservation after failed charge")
	}
	log.Info().Msg("charge.failed processed")
	return "processed"
}

func (s *WebhookServiceImpl) seal(log zerolog.Logger, payload []byte) string {
	sealed, err := s.encSvc.Encrypt(string(payload))
	if err != nil {
		log.Error().Err(err).Msg("failed to encrypt webhook payload")
		return ""
	}
	return sealed
}

func (s *WebhookServiceImpl) release(ctx context.Context, log zerolog.Logger, key string) {
	if err := s.guard.Release(ctx, key); err != nil {
		log.Warn().Err(err).Msg("failed to release event guard")
	}
}
