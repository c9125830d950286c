package handler

import (
	"context"
	"errors"

	"rebooked-marketplace/internal/adapter/http/dto"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/internal/cron"
	"rebooked-marketplace/pkg/apperror"
	"rebooked-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobRunner runs a sweep under its cross-instance lock.
type JobRunner interface {
	Exclusive(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// SweepResponse reports one triggered sweep.
type SweepResponse struct {
	Job     string `json:"job"`
	Summary any    `json:"summary"`
	Error   string `json:"error,omitempty"`
}

// InternalHandler serves operator and scheduler endpoints behind the
// service token.
type InternalHandler struct {
	sweepSvc        ports.SweepService
	orderSvc        ports.OrderService
	notificationSvc ports.NotificationService
	jobs            JobRunner
	log             zerolog.Logger
}

func NewInternalHandler(
	sweepSvc ports.SweepService,
	orderSvc ports.OrderService,
	notificationSvc ports.NotificationService,
	jobs JobRunner,
	log zerolog.Logger,
) *InternalHandler {
	return &InternalHandler{
		sweepSvc:        sweepSvc,
		orderSvc:        orderSvc,
		notificationSvc: notificationSvc,
		jobs:            jobs,
		log:             log,
	}
}

// AutoExpire handles POST /api/v1/internal/sweeps/auto-expire.
func (h *InternalHandler) AutoExpire(c *gin.Context) {
	var summary *ports.AutoExpireSummary
	err := h.jobs.Exclusive(c.Request.Context(), cron.JobAutoExpire, func(ctx context.Context) error {
		var err error
		summary, err = h.sweepSvc.AutoExpire(ctx)
		return err
	})
	h.writeSweep(c, cron.JobAutoExpire, summary, summary != nil, err)
}

// CheckExpiredOrders handles POST /api/v1/internal/sweeps/check-expired-orders.
func (h *InternalHandler) CheckExpiredOrders(c *gin.Context) {
	var summary *ports.ExpiryCheckSummary
	err := h.jobs.Exclusive(c.Request.Context(), cron.JobCheckExpiredOrders, func(ctx context.Context) error {
		var err error
		summary, err = h.sweepSvc.CheckExpiredOrders(ctx)
		return err
	})
	h.writeSweep(c, cron.JobCheckExpiredOrders, summary, summary != nil, err)
}

// writeSweep reports partial failures alongside the summary; only a sweep
// that produced nothing is an error response.
func (h *InternalHandler) writeSweep(c *gin.Context, job string, summary any, hasSummary bool, err error) {
	if errors.Is(err, cron.ErrJobRunning) {
		response.Error(c, apperror.ErrConflict(job+" is already running"))
		return
	}
	if err != nil && !hasSummary {
		response.Error(c, apperror.InternalError(err))
		return
	}
	resp := SweepResponse{Job: job, Summary: summary}
	if err != nil {
		h.log.Warn().Err(err).Str("job", job).Msg("sweep finished with errors")
		resp.Error = err.Error()
	}
	response.OK(c, resp)
}

// ReconcileOrders handles POST /api/v1/internal/payments/:reference/orders.
// Order creation is idempotent per seller, so re-running it only fills gaps.
func (h *InternalHandler) ReconcileOrders(c *gin.Context) {
	reference := c.Param("reference")
	if !dto.IsSafeID(reference) {
		response.Error(c, apperror.Validation("invalid payment reference"))
		return
	}

	orders, err := h.orderSvc.CreateFromPayment(c.Request.Context(), reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	response.OK(c, gin.H{"reference": reference, "orders": items})
}

// Broadcast handles POST /api/v1/internal/broadcasts.
func (h *InternalHandler) Broadcast(c *gin.Context) {
	var req dto.BroadcastRequest
	if !bindJSON(c, &req) {
		return
	}

	ids := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("user_ids must be UUIDs"))
			return
		}
		ids = append(ids, id)
	}

	n, err := h.notificationSvc.Broadcast(c.Request.Context(), ports.BroadcastRequest{
		Title:   req.Title,
		Message: req.Message,
		UserIDs: ids,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.BroadcastResponse{Recipients: n})
}
