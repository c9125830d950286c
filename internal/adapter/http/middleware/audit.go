package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuditLog writes one structured audit line for every successful state
// changing request, keyed by route.
func AuditLog(log zerolog.Logger) gin.HandlerFunc {
	auditLog := log.With().Str("stream", "audit").Logger()
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resourceType := mapPathToAction(c.FullPath())
		if action == "" {
			return
		}

		event := auditLog.Info().
			Str("action", action).
			Str("resource_type", resourceType).
			Str("request_id", c.GetString(CtxRequestID)).
			Str("client_ip", c.ClientIP()).
			Int("status", status)
		if id := c.Param("id"); id != "" {
			event = event.Str("resource_id", id)
		} else if ref := c.Param("reference"); ref != "" {
			event = event.Str("resource_id", ref)
		}
		if claims, ok := Claims(c); ok {
			event = event.Str("actor", "user:"+claims.UserID.String())
		} else if c.GetBool(CtxService) {
			event = event.Str("actor", "service")
		}
		event.Msg("audit")
	}
}

func mapPathToAction(route string) (action, resourceType string) {
	const v1 = "/api/v1"
	path, ok := strings.CutPrefix(route, v1)
	if !ok {
		return "", ""
	}
	switch path {
	case "/checkout/initialize":
		return "checkout.initialize", "payment"
	case "/orders/:id/commit":
		return "order.commit", "order"
	case "/orders/:id/decline":
		return "order.decline", "order"
	case "/orders/:id/cancel":
		return "order.cancel", "order"
	case "/orders/:id/schedule-courier":
		return "order.schedule_courier", "order"
	case "/orders/:id/collected":
		return "order.collected", "order"
	case "/orders/:id/delivered":
		return "order.delivered", "order"
	case "/internal/sweeps/auto-expire":
		return "sweep.auto_expire", "sweep"
	case "/internal/sweeps/check-expired-orders":
		return "sweep.check_expired_orders", "sweep"
	case "/internal/payments/:reference/orders":
		return "payment.reconcile_orders", "payment"
	case "/internal/broadcasts":
		return "notification.broadcast", "notification"
	}
	return "", ""
}
