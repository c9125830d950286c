package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/internal/core/ports/mocks"
	"rebooked-marketplace/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testPaystackSecret = "sk_test_webhook"

type webhookTestDeps struct {
	svc      *WebhookServiceImpl
	payments *mocks.MockPaymentRepository
	books    *mocks.MockBookRepository
	orderSvc *mocks.MockOrderService
	encSvc   *mocks.MockEncryptionService
	guard    *mocks.MockEventGuard
	signer   *HMACSignatureService
}

func setupWebhookService(t *testing.T) *webhookTestDeps {
	ctrl := gomock.NewController(t)
	d := &webhookTestDeps{
		payments: mocks.NewMockPaymentRepository(ctrl),
		books:    mocks.NewMockBookRepository(ctrl),
		orderSvc: mocks.NewMockOrderService(ctrl),
		encSvc:   mocks.NewMockEncryptionService(ctrl),
		guard:    mocks.NewMockEventGuard(ctrl),
		signer:   NewHMACSignatureService(),
	}
	d.svc = NewWebhookService(testPaystackSecret, d.payments, d.books, d.orderSvc, d.signer, d.encSvc, d.guard, nil, zerolog.Nop())
	d.svc.now = func() time.Time { return fixedNow }
	return d
}

func (d *webhookTestDeps) sign(body []byte) string {
	return d.signer.Sign(testPaystackSecret, body)
}

const chargeSuccessBody = `{"event":"charge.success","data":{"id":99,"reference":"RB-1","status":"success","amount":25000,"currency":"ZAR","paid_at":"2026-03-02T09:59:00Z"}}`

func TestWebhookService_InvalidSignature(t *testing.T) {
	d := setupWebhookService(t)
	body := []byte(chargeSuccessBody)

	err := d.svc.HandlePaystack(context.Background(), body, "deadbeef")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))

	err = d.svc.HandlePaystack(context.Background(), body, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))
}

func TestWebhookService_EmptyBodyIsUnsigned(t *testing.T) {
	d := setupWebhookService(t)

	err := d.svc.HandlePaystack(context.Background(), []byte{}, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))

	err = d.svc.HandlePaystack(context.Background(), nil, "deadbeef")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))
}

func TestWebhookService_MissingSecretRejectsEverything(t *testing.T) {
	d := setupWebhookService(t)
	d.svc.secretKey = ""
	body := []byte(chargeSuccessBody)

	err := d.svc.HandlePaystack(context.Background(), body, d.sign(body))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))
}

func TestWebhookService_ChargeSuccess_CreatesOrders(t *testing.T) {
	d := setupWebhookService(t)
	ctx := context.Background()
	body := []byte(chargeSuccessBody)

	d.guard.EXPECT().Claim(ctx, "charge.success:RB-1", eventGuardTTL).Return(true, nil)
	d.payments.EXPECT().GetByReference(ctx, "RB-1").Return(&domain.PaymentTransaction{Reference: "RB-1", Amount: 25000, Status: domain.PaymentStatusPending}, nil)
	d.encSvc.EXPECT().Encrypt(chargeSuccessBody).Return("v1:sealed", nil)
	d.payments.EXPECT().MarkTerminal(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, u ports.PaymentStatusUpdate) (bool, error) {
		assert.Equal(t, domain.PaymentStatusSuccess, u.Status)
		assert.Equal(t, "v1:sealed", u.GatewayPayload)
		require.NotNil(t, u.PaidAt)
		assert.Equal(t, 59, u.PaidAt.Minute())
		return true, nil
	})
	d.orderSvc.EXPECT().CreateFromPayment(ctx, "RB-1").Return([]domain.Order{{ID: uuid.New()}}, nil)

	require.NoError(t, d.svc.HandlePaystack(ctx, body, d.sign(body)))
}

func TestWebhookService_ChargeSuccess_DuplicateDeliveryStopsAtGuard(t *testing.T) {
	d := setupWebhookService(t)
	ctx := context.Background()
	body := []byte(chargeSuccessBody)

	d.guard.EXPECT().Claim(ctx, "charge.success:RB-1", eventGuardTTL).Return(false, nil)

	require.NoError(t, d.svc.HandlePaystack(ctx, body, d.sign(body)))
}

func TestWebhookService_ChargeSuccess_AlreadyTerminalSkipsOrders(t *testing.T) {
	d := setupWebhookService(t)
	ctx := context.Background()
	body := []byte(chargeSuccessBody)

	d.guard.EXPECT().Claim(ctx, gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
	d.payments.EXPECT().GetByReference(ctx, "RB-1").Return(&domain.PaymentTransaction{Amount: 25000, Status: domain.PaymentStatusSuccess}, nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("v1:sealed", nil)
	d.payments.EXPECT().MarkTerminal(ctx, gomock.Any()).Return(false, nil)

	require.NoError(t, d.svc.HandlePaystack(ctx, body, d.sign(body)))
}

func TestWebhookService_ChargeSuccess_OrderFailureStillAcknowledged(t *testing.T) {
	d := setupWebhookService(t)
	ctx := context.Background()
	body := []byte(chargeSuccessBody)

	d.guard.EXPECT().Claim(ctx, gomock.Any(), gomock.Any()).Return(true, nil)
	d.payments.EXPECT().GetByReference(ctx, "RB-1").Return(&domain.PaymentTransaction{Amount: 25000}, nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("v1:sealed", nil)
	d.payments.EXPECT().MarkTerminal(ctx, gomock.Any()).Return(true, nil)
	d.orderSvc.EXPECT().CreateFromPayment(ctx, "RB-1").Return(nil, errors.New("db down"))

	assert.NoError(t, d.svc.HandlePaystack(ctx, body, d.sign(body)))
}

func TestWebhookService_ChargeSuccess_StoreErrorReleasesGuard(t *testing.T) {
	d := setupWebhookService(t)
	ctx := context.Background()
	body := []byte(chargeSuccessBody)

	d.guard.EXPECT().Claim(ctx, gomock.Any(), gomock.Any()).Return(true, nil)
	d.payments.EXPECT().GetByReference(ctx, "RB-1").Return(&domain.PaymentTransaction{Amount: 25000}, nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("v1:sealed", nil)
	d.payments.EXPECT().MarkTerminal(ctx, gomock.Any()).Return(false, errors.New("conn reset"))
	d.guard.EXPECT().Release(ctx, "charge.success:RB-1").Return(nil)

	assert.NoError(t, d.svc.HandlePaystack(ctx, body, d.sign(body)))
}

func TestWebhookService_ChargeSuccess_AmountMismatch(t *testing.T) {
	d := setupWebhookService(t)
	ctx := context.Background()
	body := []byte(chargeSuccessBody)

	d.guard.EXPECT().Claim(ctx, gomock.Any(), gomock.Any()).Return(true, nil)
	d.payments.EXPECT().GetByReference(ctx, "RB-1").Return(&domain.PaymentTransaction{Amount: 30000}, nil)

	assert.NoError(t, d.svc.HandlePaystack(ctx, body, d.sign(body)))
}

func TestWebhookService_ChargeFailed_ReleasesReservation(t *testing.T) {
	d := setupWebhookService(t)
	ctx := context.Background()
	body := []byte(`{"event":"charge.failed","data":{"reference":"RB-2","status":"failed"}}`)
	buyer, book := uuid.New(), uuid.New()

	d.payments.EXPECT().GetByReference(ctx, "RB-2").Return(&domain.PaymentTransaction{
		Reference: "RB-2",
		BuyerID:   buyer,
		Metadata:  domain.PaymentMetadata{Items: []domain.CartItem{{BookID: book}}},
	}, nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("v1:sealed", nil)
	d.payments.EXPECT().MarkTerminal(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, u ports.PaymentStatusUpdate) (bool, error) {
		assert.Equal(t, domain.PaymentStatusFailed, u.Status)
		assert.Nil(t, u.PaidAt)
		return true, nil
	})
	d.books.EXPECT().ReleaseReservation(ctx, nil, []uuid.UUID{book}, buyer).Return(nil)

	require.NoError(t, d.svc.HandlePaystack(ctx, body, d.sign(body)))
}

func TestWebhookService_TransferAndUnknownEventsAreAcknowledged(t *testing.T) {
	d := setupWebhookService(t)
	for _, body := range []string{
		`{"event":"transfer.success","data":{"reference":"TRF-1","transfer_code":"TRF_x","amount":5000}}`,
		`{"event":"transfer.failed","data":{"reference":"TRF-2"}}`,
		`{"event":"subscription.create","data":{}}`,
		`not json`,
	} {
		b := []byte(body)
		assert.NoError(t, d.svc.HandlePaystack(context.Background(), b, d.sign(b)), body)
	}
}
