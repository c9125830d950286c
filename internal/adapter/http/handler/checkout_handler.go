package handler

import (
	"strings"

	"rebooked-marketplace/internal/adapter/http/dto"
	"rebooked-marketplace/internal/adapter/http/middleware"
	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"
	"rebooked-marketplace/pkg/money"
	"rebooked-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxIdempotencyKeyLen = 128

// CheckoutHandler handles payment initialization.
type CheckoutHandler struct {
	checkoutSvc ports.CheckoutService
}

func NewCheckoutHandler(checkoutSvc ports.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutSvc: checkoutSvc}
}

// Initialize handles POST /api/v1/checkout/initialize.
func (h *CheckoutHandler) Initialize(c *gin.Context) {
	_, claims, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	items := make([]domain.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		bookID, err := uuid.Parse(it.BookID)
		if err != nil {
			response.Error(c, apperror.Validation("book_id must be a UUID"))
			return
		}
		sellerID, err := uuid.Parse(it.SellerID)
		if err != nil {
			response.Error(c, apperror.Validation("seller_id must be a UUID"))
			return
		}
		items = append(items, domain.CartItem{
			BookID:   bookID,
			SellerID: sellerID,
			Title:    it.Title,
			Price:    money.ToCents(it.Price),
		})
	}

	email := claims.Email
	if email == "" {
		email = req.Email
	}

	key := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key is too long"))
		return
	}

	result, err := h.checkoutSvc.Initialize(c.Request.Context(), ports.CheckoutRequest{
		BuyerID:         claims.UserID,
		BuyerEmail:      email,
		Items:           items,
		DeliveryFee:     money.ToCents(req.DeliveryFee),
		TotalAmount:     money.ToCents(req.TotalAmount),
		ShippingAddress: toAddress(req.ShippingAddress),
		IdempotencyKey:  key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toCheckoutResponse(result))
}

func toCheckoutResponse(r *ports.CheckoutResult) dto.CheckoutResponse {
	resp := dto.CheckoutResponse{
		Reference:        r.Reference,
		AuthorizationURL: r.AuthorizationURL,
		AccessCode:       r.AccessCode,
		Amount:           money.FromCents(r.Amount),
		AmountCents:      r.Amount,
		Currency:         r.Currency,
		ReservedUntil:    dto.FormatTime(r.ReservedUntil),
	}
	if r.Split != nil {
		resp.SplitSellers = len(r.Split.Shares)
	}
	return resp
}
