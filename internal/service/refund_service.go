package service

import (
	"context"
	"fmt"
	"time"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/money"

	"github.com/rs/zerolog"
)

// RefundServiceImpl implements ports.RefundService.
type RefundServiceImpl struct {
	gateway  ports.PaymentGateway
	refunds  ports.RefundRepository
	orders   ports.OrderRepository
	notifier ports.NotificationService
	log      zerolog.Logger
	now      func() time.Time
}

func NewRefundService(
	gateway ports.PaymentGateway,
	refunds ports.RefundRepository,
	orders ports.OrderRepository,
	notifier ports.NotificationService,
	log zerolog.Logger,
) *RefundServiceImpl {
	return &RefundServiceImpl{
		gateway:  gateway,
		refunds:  refunds,
		orders:   orders,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Execute calls the gateway for a pending refund and records the outcome on
// the refund row and the order. A gateway failure marks the refund failed
// and alerts the admin inbox; it is returned so callers can report it.
func (s *RefundServiceImpl) Execute(ctx context.Context, refund *domain.RefundTransaction) (*domain.RefundTransaction, error) {
	if refund.IsTerminal() {
		return refund, nil
	}

	log := s.log.With().
		Str("order_id", refund.OrderID.String()).
		Str("reference", refund.PaymentReference).
		Logger()

	res, gwErr := s.gateway.Refund(ctx, ports.RefundParams{
		Reference: refund.PaymentReference,
		Amount:    refund.Amount,
		Reason:    refund.Reason,
	})

	now := s.now().UTC()
	out := *refund
	out.ProcessedAt = &now
	if gwErr != nil {
		out.Status = domain.RefundStatusFailed
		log.Error().Err(gwErr).Int64("amount", refund.Amount).Msg("gateway refund failed")
	} else {
		out.Status = domain.RefundStatusSuccess
		if res != nil && res.GatewayReference != "" {
			ref := res.GatewayReference
			out.GatewayRefundReference = &ref
		}
	}

	if err := s.refunds.UpdateResult(ctx, &out); err != nil {
		return nil, fmt.Errorf("record refund result: %w", err)
	}
	if err := s.orders.UpdateRefundStatus(ctx, nil, out.OrderID, out.OrderRefundStatus()); err != nil {
		return nil, fmt.Errorf("update order refund status: %w", err)
	}

	if gwErr != nil {
		if err := s.notifier.NotifyAdmin(ctx, ports.Notice{
			Template: TplAdminRefundFailed,
			Data: map[string]any{
				"OrderID":   out.OrderID.String(),
				"Reference": out.PaymentReference,
				"Amount":    money.Format(out.Amount),
				"Error":     gwErr.Error(),
			},
		}); err != nil {
			log.Warn().Err(err).Msg("failed to alert admin about refund failure")
		}
		return &out, fmt.Errorf("gateway refund: %w", gwErr)
	}

	log.Info().Int64("amount", out.Amount).Msg("refund processed")
	return &out, nil
}
