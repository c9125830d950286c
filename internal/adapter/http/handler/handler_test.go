package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rebooked-marketplace/internal/adapter/http/middleware"
	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/internal/core/ports/mocks"
	"rebooked-marketplace/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	buyerID  = uuid.MustParse("0b7e4c1a-5f2d-4e11-9a3b-6c8d2e1f0a01")
	sellerID = uuid.MustParse("7d3a9e2b-1c4f-4b8a-a5e6-2f1d0c9b8a02")
	bookID   = uuid.MustParse("4b8c1a3e-2d1f-4c55-9f7e-0e3a8c2b9d10")
)

func newContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	c.Request = r
	return c, w
}

func withUser(c *gin.Context, id uuid.UUID, role string) {
	claims := &ports.TokenClaims{UserID: id, Email: "reader@example.com", Role: role}
	c.Set(middleware.CtxClaims, claims)
	c.Set(middleware.CtxUserID, id)
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "data object")
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Error.Code
}

const checkoutBody = `{
	"items": [{"book_id": "4b8c1a3e-2d1f-4c55-9f7e-0e3a8c2b9d10", "seller_id": "7d3a9e2b-1c4f-4b8a-a5e6-2f1d0c9b8a02", "title": "Calculus", "price": 250.00}],
	"delivery_fee": 85,
	"total_amount": "335.00",
	"shipping_address": {"street": "12 Main Road", "city": "Cape Town", "province": "Western Cape", "postal_code": "7700"}
}`

// --- Checkout Handler Tests ---

func TestCheckoutInitialize_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCheckout := mocks.NewMockCheckoutService(ctrl)
	h := NewCheckoutHandler(mockCheckout)

	reserved := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	mockCheckout.EXPECT().Initialize(gomock.Any(), ports.CheckoutRequest{
		BuyerID:    buyerID,
		BuyerEmail: "reader@example.com",
		Items: []domain.CartItem{
			{BookID: bookID, SellerID: sellerID, Title: "Calculus", Price: 25000},
		},
		DeliveryFee: 8500,
		TotalAmount: 33500,
		ShippingAddress: domain.Address{
			Street:     "12 Main Road",
			City:       "Cape Town",
			Province:   "Western Cape",
			PostalCode: "7700",
		},
		IdempotencyKey: "cart-42",
	}).Return(&ports.CheckoutResult{
		Reference:        "RB-abc",
		AuthorizationURL: "https://checkout.paystack.com/abc",
		AccessCode:       "abc",
		Amount:           33500,
		Currency:         "ZAR",
		ReservedUntil:    reserved,
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/checkout/initialize", []byte(checkoutBody))
	c.Request.Header.Set(middleware.HeaderIdempotencyKey, "cart-42")
	withUser(c, buyerID, "")

	h.Initialize(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, "RB-abc", data["reference"])
	assert.Equal(t, "https://checkout.paystack.com/abc", data["authorization_url"])
	assert.Equal(t, "335", data["amount"])
	assert.Equal(t, float64(33500), data["amount_cents"])
	assert.Equal(t, "2026-03-01T10:15:00Z", data["reserved_until"])
}

func TestCheckoutInitialize_RequiresSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewCheckoutHandler(mocks.NewMockCheckoutService(ctrl))
	c, w := newContext(http.MethodPost, "/", []byte(checkoutBody))

	h.Initialize(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckoutInitialize_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewCheckoutHandler(mocks.NewMockCheckoutService(ctrl))

	body := strings.Replace(checkoutBody, `"postal_code": "7700"`, `"postal_code": "77"`, 1)
	c, w := newContext(http.MethodPost, "/", []byte(body))
	withUser(c, buyerID, "")

	h.Initialize(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", errorCode(t, w))
	assert.Contains(t, w.Body.String(), "postal_code")
}

func TestCheckoutInitialize_BookUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCheckout := mocks.NewMockCheckoutService(ctrl)
	h := NewCheckoutHandler(mockCheckout)
	mockCheckout.EXPECT().Initialize(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrBookUnavailable())

	c, w := newContext(http.MethodPost, "/", []byte(checkoutBody))
	withUser(c, buyerID, "")

	h.Initialize(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "RES_003", errorCode(t, w))
}

func TestCheckoutInitialize_GatewayError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCheckout := mocks.NewMockCheckoutService(ctrl)
	h := NewCheckoutHandler(mockCheckout)
	mockCheckout.EXPECT().Initialize(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrGateway("Invalid split code", errors.New("400")))

	c, w := newContext(http.MethodPost, "/", []byte(checkoutBody))
	withUser(c, buyerID, "")

	h.Initialize(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid split code")
}

// --- Webhook Handler Tests ---

func TestPaystackWebhook_PassesRawBodyAndSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWebhook := mocks.NewMockWebhookService(ctrl)
	h := NewWebhookHandler(mockWebhook)

	payload := []byte(`{"event":"charge.success","data":{"reference":"RB-abc"}}`)
	mockWebhook.EXPECT().HandlePaystack(gomock.Any(), payload, "sig-123").Return(nil)

	c, w := newContext(http.MethodPost, "/api/v1/webhooks/paystack", payload)
	c.Request.Header.Set(HeaderPaystackSignature, "sig-123")

	h.Paystack(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData(t, w)["received"])
}

func TestPaystackWebhook_InvalidSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWebhook := mocks.NewMockWebhookService(ctrl)
	h := NewWebhookHandler(mockWebhook)
	mockWebhook.EXPECT().HandlePaystack(gomock.Any(), gomock.Any(), "").Return(apperror.ErrInvalidSignature())

	c, w := newContext(http.MethodPost, "/", []byte(`{"event":"charge.success"}`))

	h.Paystack(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_002", errorCode(t, w))
}

func TestPaystackWebhook_EmptyBodyGoesThroughSignatureCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWebhook := mocks.NewMockWebhookService(ctrl)
	h := NewWebhookHandler(mockWebhook)
	mockWebhook.EXPECT().HandlePaystack(gomock.Any(), gomock.Len(0), "").Return(apperror.ErrInvalidSignature())

	c, w := newContext(http.MethodPost, "/", []byte{})

	h.Paystack(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_002", errorCode(t, w))
}

// --- Courier Handler Tests ---

func TestCourierQuotes_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCourier := mocks.NewMockCourierService(ctrl)
	h := NewCourierHandler(mockCourier)

	mockCourier.EXPECT().Quote(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req domain.QuoteRequest) ([]domain.Quote, error) {
			assert.Equal(t, "Cape Town", req.From.City)
			assert.Equal(t, "Durban", req.To.City)
			assert.Equal(t, 2.5, req.Parcel.WeightKg)
			return []domain.Quote{
				{Provider: "fallback", ServiceName: "Economy", ServiceLevel: domain.ServiceEconomy, Price: 16250, TransitDays: 5, Zone: domain.ZoneNational, Fallback: true},
			}, nil
		})

	body := `{"from": {"street": "1 Long St", "city": "Cape Town", "province": "WC", "postal_code": "8001"},
		"to": {"street": "2 Point Rd", "city": "Durban", "province": "KZN", "postal_code": "4001"},
		"parcel": {"weight_kg": 2.5}}`
	c, w := newContext(http.MethodPost, "/api/v1/courier/quotes", []byte(body))

	h.Quotes(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	quotes := decodeData(t, w)["quotes"].([]interface{})
	require.Len(t, quotes, 1)
	q := quotes[0].(map[string]interface{})
	assert.Equal(t, "162.5", q["price"])
	assert.Equal(t, float64(16250), q["price_cents"])
	assert.Equal(t, true, q["fallback"])
	assert.Equal(t, "national", q["zone"])
}

func TestCourierQuotes_MissingAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewCourierHandler(mocks.NewMockCourierService(ctrl))
	c, w := newContext(http.MethodPost, "/", []byte(`{"from": {"city": "Cape Town"}}`))

	h.Quotes(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health Check Tests ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgres").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(nil)

	c, w := newContext(http.MethodGet, "/health", nil)
	HealthCheck(pg)(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgres").AnyTimes()
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	rdb := mocks.NewMockHealthChecker(ctrl)
	rdb.EXPECT().Name().Return("redis").AnyTimes()
	rdb.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	c, w := newContext(http.MethodGet, "/health", nil)
	HealthCheck(pg, rdb)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp struct {
		Status       string `json:"status"`
		Dependencies map[string]struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "healthy", resp.Dependencies["postgres"].Status)
	assert.Equal(t, "connection refused", resp.Dependencies["redis"].Error)
}

func TestSwaggerUI(t *testing.T) {
	c, w := newContext(http.MethodGet, "/swagger", nil)

	SwaggerUI(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "swagger-ui")
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}

func TestSwaggerSpec_Override(t *testing.T) {
	SetSwaggerSpec([]byte("openapi: '3.0.0'\ninfo:\n  title: Test"))
	t.Cleanup(func() { SetSwaggerSpec(nil) })

	c, w := newContext(http.MethodGet, "/swagger/spec", nil)
	SwaggerSpec(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "title: Test")
}

func TestSwaggerSpec_Embedded(t *testing.T) {
	SetSwaggerSpec(nil)

	c, w := newContext(http.MethodGet, "/swagger/spec", nil)
	SwaggerSpec(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "ReBooked Marketplace API")
	assert.Contains(t, w.Body.String(), "/orders/{id}/commit:")
}
