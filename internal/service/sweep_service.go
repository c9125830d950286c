package service

import (
	"context"
	"fmt"
	"time"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// summaryEntries caps the orders listed in the admin summary email.
const summaryEntries = 10

// SweepServiceImpl implements ports.SweepService.
type SweepServiceImpl struct {
	orders    ports.OrderRepository
	books     ports.BookRepository
	orderSvc  ports.OrderService
	notifier  ports.NotificationService
	lifecycle LifecycleConfig
	batchSize int
	log       zerolog.Logger
	now       func() time.Time
}

func NewSweepService(
	orders ports.OrderRepository,
	books ports.BookRepository,
	orderSvc ports.OrderService,
	notifier ports.NotificationService,
	lifecycle LifecycleConfig,
	batchSize int,
	log zerolog.Logger,
) *SweepServiceImpl {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &SweepServiceImpl{
		orders:    orders,
		books:     books,
		orderSvc:  orderSvc,
		notifier:  notifier,
		lifecycle: lifecycle,
		batchSize: batchSize,
		log:       log,
		now:       time.Now,
	}
}

// AutoExpire expires every pending_commit order past the commit window and
// mails one summary to the admin inbox.
func (s *SweepServiceImpl) AutoExpire(ctx context.Context) (*ports.AutoExpireSummary, error) {
	now := s.now().UTC()
	stale, err := s.orders.ListStale(ctx, domain.StaleOrderQuery{
		Status: domain.OrderStatusPendingCommit,
		Before: now.Add(-s.lifecycle.CommitWindow),
		Limit:  s.batchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list stale pending orders: %w", err)
	}

	summary := &ports.AutoExpireSummary{Entries: []ports.SweepEntry{}}
	for _, o := range stale {
		if ctx.Err() != nil {
			break
		}
		summary.Processed++
		entry := ports.SweepEntry{OrderID: o.ID, Amount: o.TotalAmount}

		expired, refund, err := s.orderSvc.Expire(ctx, o.ID)
		if err != nil {
			summary.Failed++
			entry.Error = err.Error()
			s.log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("auto-expire failed for order")
		} else {
			summary.Expired++
			entry.Status = expired.Status
			if refund != nil && refund.Status != domain.RefundStatusFailed {
				summary.RefundTotal += refund.Amount
			}
		}
		summary.Entries = append(summary.Entries, entry)
	}

	if summary.Processed > 0 {
		if err := s.notifier.NotifyAdmin(ctx, ports.Notice{
			Template: TplAdminAutoExpireSummary,
			Data:     summaryData(summary),
		}); err != nil {
			s.log.Warn().Err(err).Msg("failed to send auto-expire summary")
		} else {
			summary.SummaryEmailed = true
		}
	}

	s.log.Info().
		Int("processed", summary.Processed).
		Int("expired", summary.Expired).
		Int("failed", summary.Failed).
		Int64("refund_total", summary.RefundTotal).
		Msg("auto-expire sweep finished")
	return summary, ctx.Err()
}

// CheckExpiredOrders handles collection timeouts, delivery timeouts and
// stale reservations. Each phase runs even when another fails; the errors
// are combined.
func (s *SweepServiceImpl) CheckExpiredOrders(ctx context.Context) (*ports.ExpiryCheckSummary, error) {
	now := s.now().UTC()
	summary := &ports.ExpiryCheckSummary{Entries: []ports.SweepEntry{}}
	var errs error

	n, err := s.sweepStatus(ctx, summary, domain.StaleOrderQuery{
		Status: domain.OrderStatusCourierScheduled,
		Before: now.Add(-s.lifecycle.CollectionTimeout),
		Limit:  s.batchSize,
	}, s.orderSvc.TimeoutCollection)
	summary.CollectionTimeouts = n
	errs = multierr.Append(errs, err)

	n, err = s.sweepStatus(ctx, summary, domain.StaleOrderQuery{
		Status: domain.OrderStatusCollected,
		Before: now.Add(-s.lifecycle.DeliveryTimeout),
		Limit:  s.batchSize,
	}, s.orderSvc.ResolveDeliveryTimeout)
	summary.DeliveryTimeouts = n
	errs = multierr.Append(errs, err)

	released, err := s.books.ClearExpiredReservations(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("clear expired reservations: %w", err))
	}
	summary.ReservationsReleased = released

	s.log.Info().
		Int("collection_timeouts", summary.CollectionTimeouts).
		Int("delivery_timeouts", summary.DeliveryTimeouts).
		Int64("reservations_released", summary.ReservationsReleased).
		Int("failed", summary.Failed).
		Msg("expired order check finished")
	return summary, errs
}

func (s *SweepServiceImpl) sweepStatus(
	ctx context.Context,
	summary *ports.ExpiryCheckSummary,
	q domain.StaleOrderQuery,
	resolve func(context.Context, uuid.UUID) (*domain.Order, error),
) (int, error) {
	stale, err := s.orders.ListStale(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("list stale %s orders: %w", q.Status, err)
	}

	var done int
	var errs error
	for _, o := range stale {
		if ctx.Err() != nil {
			return done, multierr.Append(errs, ctx.Err())
		}
		entry := ports.SweepEntry{OrderID: o.ID, Amount: o.TotalAmount}
		updated, err := resolve(ctx, o.ID)
		if err != nil {
			summary.Failed++
			entry.Error = err.Error()
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", o.ID, err))
			s.log.Warn().Err(err).Str("order_id", o.ID.String()).Str("status", string(q.Status)).Msg("timeout handling failed")
		} else {
			done++
			entry.Status = updated.Status
		}
		summary.Entries = append(summary.Entries, entry)
	}
	return done, errs
}

func summaryData(sum *ports.AutoExpireSummary) map[string]any {
	shown := sum.Entries
	if len(shown) > summaryEntries {
		shown = shown[:summaryEntries]
	}
	entries := make([]map[string]any, len(shown))
	for i, e := range shown {
		entries[i] = map[string]any{
			"OrderID": e.OrderID.String(),
			"Status":  string(e.Status),
			"Amount":  money.Format(e.Amount),
			"Error":   e.Error,
		}
	}
	return map[string]any{
		"Processed":   sum.Processed,
		"Expired":     sum.Expired,
		"Failed":      sum.Failed,
		"RefundTotal": money.Format(sum.RefundTotal),
		"Entries":     entries,
		"More":        len(sum.Entries) - len(shown),
	}
}
