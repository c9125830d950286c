package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type refundTestDeps struct {
	svc      *RefundServiceImpl
	gateway  *mocks.MockPaymentGateway
	refunds  *mocks.MockRefundRepository
	orders   *mocks.MockOrderRepository
	notifier *mocks.MockNotificationService
}

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func setupRefundService(t *testing.T) *refundTestDeps {
	ctrl := gomock.NewController(t)
	d := &refundTestDeps{
		gateway:  mocks.NewMockPaymentGateway(ctrl),
		refunds:  mocks.NewMockRefundRepository(ctrl),
		orders:   mocks.NewMockOrderRepository(ctrl),
		notifier: mocks.NewMockNotificationService(ctrl),
	}
	d.svc = NewRefundService(d.gateway, d.refunds, d.orders, d.notifier, zerolog.Nop())
	d.svc.now = func() time.Time { return fixedNow }
	return d
}

func pendingRefund() *domain.RefundTransaction {
	return &domain.RefundTransaction{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		PaymentReference: "RB-123",
		Amount:           25000,
		Status:           domain.RefundStatusPending,
		Reason:           "seller declined",
	}
}

func TestRefundService_Execute_Success(t *testing.T) {
	d := setupRefundService(t)
	ctx := context.Background()
	r := pendingRefund()

	d.gateway.EXPECT().Refund(ctx, ports.RefundParams{Reference: "RB-123", Amount: 25000, Reason: "seller declined"}).
		Return(&ports.RefundResult{GatewayReference: "rf_1", Status: "pending"}, nil)
	d.refunds.EXPECT().UpdateResult(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, got *domain.RefundTransaction) error {
		assert.Equal(t, domain.RefundStatusSuccess, got.Status)
		require.NotNil(t, got.GatewayRefundReference)
		assert.Equal(t, "rf_1", *got.GatewayRefundReference)
		assert.Equal(t, fixedNow, *got.ProcessedAt)
		return nil
	})
	d.orders.EXPECT().UpdateRefundStatus(ctx, nil, r.OrderID, domain.OrderRefundRefunded).Return(nil)

	out, err := d.svc.Execute(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundStatusSuccess, out.Status)
	assert.Equal(t, domain.RefundStatusPending, r.Status, "input is not mutated")
}

func TestRefundService_Execute_GatewayFailureAlertsAdmin(t *testing.T) {
	d := setupRefundService(t)
	ctx := context.Background()
	r := pendingRefund()

	d.gateway.EXPECT().Refund(ctx, gomock.Any()).Return(nil, errors.New("paystack: insufficient balance"))
	d.refunds.EXPECT().UpdateResult(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, got *domain.RefundTransaction) error {
		assert.Equal(t, domain.RefundStatusFailed, got.Status)
		assert.Nil(t, got.GatewayRefundReference)
		return nil
	})
	d.orders.EXPECT().UpdateRefundStatus(ctx, nil, r.OrderID, domain.OrderRefundFailed).Return(nil)
	d.notifier.EXPECT().NotifyAdmin(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, n ports.Notice) error {
		assert.Equal(t, TplAdminRefundFailed, n.Template)
		assert.Equal(t, "R250.00", n.Data["Amount"])
		assert.Equal(t, "RB-123", n.Data["Reference"])
		return nil
	})

	out, err := d.svc.Execute(ctx, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
	require.NotNil(t, out)
	assert.Equal(t, domain.RefundStatusFailed, out.Status)
}

func TestRefundService_Execute_TerminalIsNoop(t *testing.T) {
	d := setupRefundService(t)
	r := pendingRefund()
	r.Status = domain.RefundStatusSuccess

	out, err := d.svc.Execute(context.Background(), r)
	require.NoError(t, err)
	assert.Same(t, r, out)
}

func TestRefundService_Execute_RecordFailure(t *testing.T) {
	d := setupRefundService(t)
	ctx := context.Background()

	d.gateway.EXPECT().Refund(ctx, gomock.Any()).Return(&ports.RefundResult{GatewayReference: "rf_2"}, nil)
	d.refunds.EXPECT().UpdateResult(ctx, gomock.Any()).Return(errors.New("db down"))

	_, err := d.svc.Execute(ctx, pendingRefund())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record refund result")
}
