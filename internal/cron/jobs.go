package cron

import (
	"context"

	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/metrics"

	"github.com/rs/zerolog"
)

// Job names, also used as lock keys and metric labels.
const (
	JobAutoExpire         = "auto-expire"
	JobCheckExpiredOrders = "check-expired-orders"
)

// AutoExpireJob expires orders sellers never committed to.
type AutoExpireJob struct {
	sweeps  ports.SweepService
	metrics *metrics.SweepMetrics
}

func NewAutoExpireJob(sweeps ports.SweepService, m *metrics.SweepMetrics) *AutoExpireJob {
	return &AutoExpireJob{sweeps: sweeps, metrics: m}
}

func (j *AutoExpireJob) Name() string { return JobAutoExpire }

func (j *AutoExpireJob) Run(ctx context.Context) error {
	summary, err := j.sweeps.AutoExpire(ctx)
	if summary != nil {
		j.metrics.AddItems(JobAutoExpire, "expired", summary.Expired)
		j.metrics.AddItems(JobAutoExpire, "failed", summary.Failed)
		zerolog.Ctx(ctx).Info().
			Int("processed", summary.Processed).
			Int("expired", summary.Expired).
			Int("failed", summary.Failed).
			Int64("refund_total", summary.RefundTotal).
			Bool("summary_emailed", summary.SummaryEmailed).
			Msg("auto-expire summary")
	}
	return err
}

// ExpiryCheckJob handles collection and delivery timeouts and stale
// reservations.
type ExpiryCheckJob struct {
	sweeps  ports.SweepService
	metrics *metrics.SweepMetrics
}

func NewExpiryCheckJob(sweeps ports.SweepService, m *metrics.SweepMetrics) *ExpiryCheckJob {
	return &ExpiryCheckJob{sweeps: sweeps, metrics: m}
}

func (j *ExpiryCheckJob) Name() string { return JobCheckExpiredOrders }

func (j *ExpiryCheckJob) Run(ctx context.Context) error {
	summary, err := j.sweeps.CheckExpiredOrders(ctx)
	if summary != nil {
		j.metrics.AddItems(JobCheckExpiredOrders, "collection_timeout", summary.CollectionTimeouts)
		j.metrics.AddItems(JobCheckExpiredOrders, "delivery_timeout", summary.DeliveryTimeouts)
		j.metrics.AddItems(JobCheckExpiredOrders, "reservation_released", int(summary.ReservationsReleased))
		j.metrics.AddItems(JobCheckExpiredOrders, "failed", summary.Failed)
		zerolog.Ctx(ctx).Info().
			Int("collection_timeouts", summary.CollectionTimeouts).
			Int("delivery_timeouts", summary.DeliveryTimeouts).
			Int64("reservations_released", summary.ReservationsReleased).
			Int("failed", summary.Failed).
			Msg("expiry check summary")
	}
	return err
}
