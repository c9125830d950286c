package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_OrderAction(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), AuditLog(zerolog.New(&buf)))
	r.POST("/api/v1/orders/:id/commit", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/abc/commit", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "audit", entry["stream"])
	assert.Equal(t, "order.commit", entry["action"])
	assert.Equal(t, "order", entry["resource_type"])
	assert.Equal(t, "abc", entry["resource_id"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestAuditLog_SkipsGET(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(AuditLog(zerolog.New(&buf)))
	r.GET("/api/v1/orders/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/abc", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, buf.String())
}

func TestAuditLog_SkipsFailedRequests(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(AuditLog(zerolog.New(&buf)))
	r.POST("/api/v1/orders/:id/decline", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"ok": false})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/abc/decline", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, buf.String())
}

func TestMapPathToAction(t *testing.T) {
	tests := []struct {
		route        string
		wantAction   string
		wantResource string
	}{
		{"/api/v1/checkout/initialize", "checkout.initialize", "payment"},
		{"/api/v1/orders/:id/delivered", "order.delivered", "order"},
		{"/api/v1/internal/sweeps/auto-expire", "sweep.auto_expire", "sweep"},
		{"/api/v1/internal/payments/:reference/orders", "payment.reconcile_orders", "payment"},
		{"/api/v1/internal/broadcasts", "notification.broadcast", "notification"},
		{"/api/v1/webhooks/paystack", "", ""},
		{"/health", "", ""},
	}
	for _, tt := range tests {
		action, resource := mapPathToAction(tt.route)
		assert.Equal(t, tt.wantAction, action, tt.route)
		assert.Equal(t, tt.wantResource, resource, tt.route)
	}
}
