package handler

import (
	"context"

	"rebooked-marketplace/internal/adapter/http/dto"
	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"
	"rebooked-marketplace/pkg/money"
	"rebooked-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderHandler exposes the order lifecycle to buyers and sellers.
type OrderHandler struct {
	orderSvc ports.OrderService
}

func NewOrderHandler(orderSvc ports.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// List handles GET /api/v1/orders?role=buyer|seller&status=&page=&page_size=.
func (h *OrderHandler) List(c *gin.Context) {
	act, _, ok := actor(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	filter := ports.OrderFilter{
		Role:     c.DefaultQuery("role", "buyer"),
		Page:     page,
		PageSize: pageSize,
	}
	if s := c.Query("status"); s != "" {
		status, ok := domain.ParseOrderStatus(s)
		if !ok {
			response.Error(c, apperror.Validation("unknown order status "+s))
			return
		}
		filter.Status = &status
	}

	orders, total, err := h.orderSvc.List(c.Request.Context(), act, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	response.OK(c, response.NewPage(items, page, pageSize, total))
}

// Get handles GET /api/v1/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	act, _, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	details, err := h.orderSvc.Get(c.Request.Context(), act, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOrderDetailsResponse(details))
}

// Commit handles POST /api/v1/orders/:id/commit.
func (h *OrderHandler) Commit(c *gin.Context) {
	h.transition(c, h.orderSvc.Commit)
}

// Decline handles POST /api/v1/orders/:id/decline.
func (h *OrderHandler) Decline(c *gin.Context) {
	h.withReason(c, h.orderSvc.Decline)
}

// Cancel handles POST /api/v1/orders/:id/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.withReason(c, h.orderSvc.Cancel)
}

// ScheduleCourier handles POST /api/v1/orders/:id/schedule-courier.
func (h *OrderHandler) ScheduleCourier(c *gin.Context) {
	h.transition(c, h.orderSvc.ScheduleCourier)
}

// MarkCollected handles POST /api/v1/orders/:id/collected.
func (h *OrderHandler) MarkCollected(c *gin.Context) {
	h.transition(c, h.orderSvc.MarkCollected)
}

// ConfirmDelivery handles POST /api/v1/orders/:id/delivered.
func (h *OrderHandler) ConfirmDelivery(c *gin.Context) {
	h.transition(c, h.orderSvc.ConfirmDelivery)
}

type transitionFunc func(ctx context.Context, actor ports.Actor, id uuid.UUID) (*domain.Order, error)

type reasonFunc func(ctx context.Context, actor ports.Actor, id uuid.UUID, reason string) (*domain.Order, error)

func (h *OrderHandler) transition(c *gin.Context, fn transitionFunc) {
	act, _, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := fn(c.Request.Context(), act, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOrderResponse(order))
}

func (h *OrderHandler) withReason(c *gin.Context, fn reasonFunc) {
	act, _, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	order, err := fn(c.Request.Context(), act, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOrderResponse(order))
}

func toOrderResponse(o *domain.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, dto.OrderItemResponse{
			BookID: it.BookID.String(),
			Title:  it.Title,
			Price:  money.FromCents(it.Price),
		})
	}
	return dto.OrderResponse{
		ID:                o.ID.String(),
		BuyerID:           o.BuyerID.String(),
		SellerID:          o.SellerID.String(),
		Status:            string(o.Status),
		Items:             items,
		TotalAmount:       money.FromCents(o.TotalAmount),
		DeliveryFee:       money.FromCents(o.DeliveryFee),
		PaymentReference:  o.PaymentReference,
		ShippingAddress:   o.ShippingAddress,
		WaybillNumber:     o.WaybillNumber,
		CourierPickupDate: dto.FormatTimePtr(o.CourierPickupDate),
		EstimatedDelivery: dto.FormatTimePtr(o.EstimatedDelivery),
		DeclineReason:     o.DeclineReason,
		DeliveryNote:      o.DeliveryNote,
		RefundStatus:      string(o.RefundStatus),
		CreatedAt:         dto.FormatTime(o.CreatedAt),
		CommittedAt:       dto.FormatTimePtr(o.CommittedAt),
		CollectedAt:       dto.FormatTimePtr(o.CollectedAt),
		DeliveredAt:       dto.FormatTimePtr(o.DeliveredAt),
		UpdatedAt:         dto.FormatTime(o.UpdatedAt),
	}
}

func toOrderDetailsResponse(d *ports.OrderDetails) dto.OrderDetailsResponse {
	events := make([]dto.OrderEventResponse, 0, len(d.Events))
	for _, e := range d.Events {
		events = append(events, dto.OrderEventResponse{
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Actor:      e.Actor,
			Note:       e.Note,
			CreatedAt:  dto.FormatTime(e.CreatedAt),
		})
	}
	resp := dto.OrderDetailsResponse{Order: toOrderResponse(&d.Order), Events: events}
	if r := d.Refund; r != nil {
		resp.Refund = &dto.RefundResponse{
			Amount:           money.FromCents(r.Amount),
			Status:           string(r.Status),
			Reason:           r.Reason,
			GatewayReference: r.GatewayRefundReference,
			ProcessedAt:      dto.FormatTimePtr(r.ProcessedAt),
		}
	}
	return resp
}
