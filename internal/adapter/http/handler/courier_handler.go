package handler

import (
	"rebooked-marketplace/internal/adapter/http/dto"
	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/money"
	"rebooked-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// CourierHandler serves delivery price lookups.
type CourierHandler struct {
	courierSvc ports.CourierService
}

func NewCourierHandler(courierSvc ports.CourierService) *CourierHandler {
	return &CourierHandler{courierSvc: courierSvc}
}

// Quotes handles POST /api/v1/courier/quotes.
func (h *CourierHandler) Quotes(c *gin.Context) {
	var req dto.QuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	q := domain.QuoteRequest{From: toAddress(req.From), To: toAddress(req.To)}
	if p := req.Parcel; p != nil {
		q.Parcel = domain.Parcel{
			WeightKg: p.WeightKg,
			LengthCm: p.LengthCm,
			WidthCm:  p.WidthCm,
			HeightCm: p.HeightCm,
			Value:    money.ToCents(p.Value),
		}
	}

	quotes, err := h.courierSvc.Quote(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.QuoteResponse, 0, len(quotes))
	for _, qt := range quotes {
		items = append(items, dto.QuoteResponse{
			Provider:     qt.Provider,
			ServiceName:  qt.ServiceName,
			ServiceCode:  qt.ServiceCode,
			ServiceLevel: string(qt.ServiceLevel),
			Price:        money.FromCents(qt.Price),
			PriceCents:   qt.Price,
			TransitDays:  qt.TransitDays,
			Zone:         string(qt.Zone),
			Fallback:     qt.Fallback,
		})
	}
	response.OK(c, gin.H{"quotes": items})
}
