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
	"go.uber.org/multierr"
)

type sweepTestDeps struct {
	svc      *SweepServiceImpl
	orders   *mocks.MockOrderRepository
	books    *mocks.MockBookRepository
	orderSvc *mocks.MockOrderService
	notifier *mocks.MockNotificationService
}

func setupSweepService(t *testing.T) *sweepTestDeps {
	ctrl := gomock.NewController(t)
	d := &sweepTestDeps{
		orders:   mocks.NewMockOrderRepository(ctrl),
		books:    mocks.NewMockBookRepository(ctrl),
		orderSvc: mocks.NewMockOrderService(ctrl),
		notifier: mocks.NewMockNotificationService(ctrl),
	}
	d.svc = NewSweepService(d.orders, d.books, d.orderSvc, d.notifier, LifecycleConfig{
		CommitWindow:      48 * time.Hour,
		CollectionTimeout: 7 * 24 * time.Hour,
		DeliveryTimeout:   14 * 24 * time.Hour,
	}, 50, zerolog.Nop())
	d.svc.now = func() time.Time { return fixedNow }
	return d
}

func TestSweepService_AutoExpire(t *testing.T) {
	d := setupSweepService(t)
	ctx := context.Background()
	ok1, ok2, bad := pendingOrder(25000), pendingOrder(12000), pendingOrder(9000)

	d.orders.EXPECT().ListStale(ctx, domain.StaleOrderQuery{
		Status: domain.OrderStatusPendingCommit,
		Before: fixedNow.Add(-48 * time.Hour),
		Limit:  50,
	}).Return([]domain.Order{*ok1, *bad, *ok2}, nil)

	expire := func(o *domain.Order, refundStatus domain.RefundStatus) {
		expired := *o
		expired.Status = domain.OrderStatusExpired
		d.orderSvc.EXPECT().Expire(ctx, o.ID).Return(&expired, &domain.RefundTransaction{Amount: o.TotalAmount, Status: refundStatus}, nil)
	}
	expire(ok1, domain.RefundStatusSuccess)
	d.orderSvc.EXPECT().Expire(ctx, bad.ID).Return(nil, nil, apperror.ErrConflict("order status changed"))
	expire(ok2, domain.RefundStatusFailed)

	d.notifier.EXPECT().NotifyAdmin(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, n ports.Notice) error {
		assert.Equal(t, TplAdminAutoExpireSummary, n.Template)
		assert.Equal(t, 3, n.Data["Processed"])
		assert.Equal(t, "R250.00", n.Data["RefundTotal"])
		assert.Equal(t, 0, n.Data["More"])
		return nil
	})

	sum, err := d.svc.AutoExpire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 2, sum.Expired)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, int64(25000), sum.RefundTotal)
	assert.True(t, sum.SummaryEmailed)
	require.Len(t, sum.Entries, 3)
	assert.NotEmpty(t, sum.Entries[1].Error)
}

func TestSweepService_AutoExpire_NothingStale(t *testing.T) {
	d := setupSweepService(t)
	ctx := context.Background()

	d.orders.EXPECT().ListStale(ctx, gomock.Any()).Return(nil, nil)

	sum, err := d.svc.AutoExpire(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Processed)
	assert.False(t, sum.SummaryEmailed)
}

func TestSummaryData_CapsEntries(t *testing.T) {
	sum := &ports.AutoExpireSummary{Processed: 12}
	for i := 0; i < 12; i++ {
		sum.Entries = append(sum.Entries, ports.SweepEntry{OrderID: uuid.New(), Amount: 100})
	}
	data := summaryData(sum)
	assert.Len(t, data["Entries"], 10)
	assert.Equal(t, 2, data["More"])
}

func TestSweepService_CheckExpiredOrders(t *testing.T) {
	d := setupSweepService(t)
	ctx := context.Background()
	scheduled, collected := pendingOrder(1000), pendingOrder(2000)

	d.orders.EXPECT().ListStale(ctx, domain.StaleOrderQuery{
		Status: domain.OrderStatusCourierScheduled,
		Before: fixedNow.Add(-7 * 24 * time.Hour),
		Limit:  50,
	}).Return([]domain.Order{*scheduled}, nil)
	d.orderSvc.EXPECT().TimeoutCollection(ctx, scheduled.ID).Return(&domain.Order{ID: scheduled.ID, Status: domain.OrderStatusCollectionTimeout}, nil)

	d.orders.EXPECT().ListStale(ctx, domain.StaleOrderQuery{
		Status: domain.OrderStatusCollected,
		Before: fixedNow.Add(-14 * 24 * time.Hour),
		Limit:  50,
	}).Return([]domain.Order{*collected}, nil)
	d.orderSvc.EXPECT().ResolveDeliveryTimeout(ctx, collected.ID).Return(&domain.Order{ID: collected.ID, Status: domain.OrderStatusDelivered}, nil)

	d.books.EXPECT().ClearExpiredReservations(ctx, fixedNow).Return(int64(4), nil)

	sum, err := d.svc.CheckExpiredOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.CollectionTimeouts)
	assert.Equal(t, 1, sum.DeliveryTimeouts)
	assert.Equal(t, int64(4), sum.ReservationsReleased)
	assert.Zero(t, sum.Failed)
}

func TestSweepService_CheckExpiredOrders_PhasesIndependent(t *testing.T) {
	d := setupSweepService(t)
	ctx := context.Background()
	collected := pendingOrder(2000)

	d.orders.EXPECT().ListStale(ctx, gomock.Any()).Return(nil, errors.New("db timeout"))
	d.orders.EXPECT().ListStale(ctx, gomock.Any()).Return([]domain.Order{*collected}, nil)
	d.orderSvc.EXPECT().ResolveDeliveryTimeout(ctx, collected.ID).Return(nil, errors.New("boom"))
	d.books.EXPECT().ClearExpiredReservations(ctx, fixedNow).Return(int64(2), nil)

	sum, err := d.svc.CheckExpiredOrders(ctx)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, int64(2), sum.ReservationsReleased)
	assert.Equal(t, 1, sum.Failed)
}
