package handler

import (
	"rebooked-marketplace/internal/adapter/http/dto"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	notificationSvc ports.NotificationService
}

func NewNotificationHandler(notificationSvc ports.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

// List handles GET /api/v1/notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	act, _, ok := actor(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	items, total, err := h.notificationSvc.List(c.Request.Context(), act.UserID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, dto.NotificationResponse{
			ID:        n.ID.String(),
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: dto.FormatTime(n.CreatedAt),
		})
	}
	response.OK(c, response.NewPage(out, page, pageSize, total))
}

// MarkRead handles POST /api/v1/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	act, _, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.notificationSvc.MarkRead(c.Request.Context(), act.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id.String(), "read": true})
}
