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

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	capeTown = domain.Address{Street: "1 Long St", City: "Cape Town", Province: "WC", PostalCode: "8001"}
	stellies = domain.Address{Street: "2 Dorp St", City: "Stellenbosch", Province: "Western Cape", PostalCode: "7600"}
	joburg   = domain.Address{Street: "3 Main Rd", City: "Johannesburg", Province: "Gauteng", PostalCode: "2001"}
)

func newCourierService(t *testing.T, providers ...ports.CourierProvider) (*CourierServiceImpl, *mocks.MockShipmentProvider) {
	ctrl := gomock.NewController(t)
	shipper := mocks.NewMockShipmentProvider(ctrl)
	return NewCourierService(providers, shipper, nil, zerolog.Nop()), shipper
}

func TestFallbackQuotes(t *testing.T) {
	tests := []struct {
		name        string
		zone        domain.Zone
		parcel      domain.Parcel
		wantEconomy int64
		wantExpress int64
	}{
		{"local default parcel", domain.ZoneLocal, domain.DefaultParcel(), 8500, 12000},
		{"provincial 2kg exactly", domain.ZoneProvincial, domain.Parcel{WeightKg: 2}, 10500, 15000},
		{"national 3.2kg rounds up", domain.ZoneNational, domain.Parcel{WeightKg: 3.2}, 14000 + 2*1500, 19500 + 2*2500},
		{"volumetric wins", domain.ZoneLocal, domain.Parcel{WeightKg: 1, LengthCm: 50, WidthCm: 40, HeightCm: 10}, 8500 + 2*1500, 12000 + 2*2500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := FallbackQuotes(tt.zone, tt.parcel)
			require.Len(t, q, 2)
			assert.Equal(t, domain.ServiceEconomy, q[0].ServiceLevel)
			assert.Equal(t, tt.wantEconomy, q[0].Price)
			assert.Equal(t, tt.wantExpress, q[1].Price)
			assert.True(t, q[0].Fallback)
			assert.Equal(t, tt.zone, q[1].Zone)
		})
	}
}

func TestCourierService_Quote_FallbackWhenNoProviders(t *testing.T) {
	svc, _ := newCourierService(t)

	quotes, err := svc.Quote(context.Background(), domain.QuoteRequest{From: capeTown, To: stellies})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, domain.ZoneProvincial, quotes[0].Zone)
	assert.Equal(t, int64(10500), quotes[0].Price)
	assert.Equal(t, FallbackProvider, quotes[0].Provider)
}

func TestCourierService_Quote_MergesLiveProvidersSorted(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	guy := mocks.NewMockCourierProvider(ctrl)
	guy.EXPECT().Enabled().Return(true)
	guy.EXPECT().Name().Return("courier_guy").AnyTimes()
	guy.EXPECT().Quote(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, req domain.QuoteRequest) ([]domain.Quote, error) {
		assert.Equal(t, "Western Cape", req.From.Province)
		assert.Equal(t, domain.DefaultParcel(), req.Parcel)
		return []domain.Quote{{Provider: "courier_guy", Price: 16000}, {Provider: "courier_guy", Price: 9000}}, nil
	})

	fast := mocks.NewMockCourierProvider(ctrl)
	fast.EXPECT().Enabled().Return(true)
	fast.EXPECT().Name().Return("fastway").AnyTimes()
	fast.EXPECT().Quote(ctx, gomock.Any()).Return([]domain.Quote{{Provider: "fastway", Price: 12000}}, nil)

	svc := NewCourierService([]ports.CourierProvider{guy, fast}, nil, nil, zerolog.Nop())
	quotes, err := svc.Quote(ctx, domain.QuoteRequest{From: capeTown, To: joburg})
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, []int64{9000, 12000, 16000}, []int64{quotes[0].Price, quotes[1].Price, quotes[2].Price})
	for _, q := range quotes {
		assert.Equal(t, domain.ZoneNational, q.Zone)
		assert.False(t, q.Fallback)
	}
}

func TestCourierService_Quote_ProviderErrorFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	guy := mocks.NewMockCourierProvider(ctrl)
	guy.EXPECT().Enabled().Return(true)
	guy.EXPECT().Name().Return("courier_guy").AnyTimes()
	guy.EXPECT().Quote(ctx, gomock.Any()).Return(nil, errors.New("timeout"))

	off := mocks.NewMockCourierProvider(ctrl)
	off.EXPECT().Enabled().Return(false)
	off.EXPECT().Name().Return("fastway").AnyTimes()

	svc := NewCourierService([]ports.CourierProvider{guy, off}, nil, nil, zerolog.Nop())
	quotes, err := svc.Quote(ctx, domain.QuoteRequest{From: capeTown, To: capeTown})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.True(t, quotes[0].Fallback)
	assert.Equal(t, domain.ZoneLocal, quotes[0].Zone)
}

func TestCourierService_Quote_InvalidAddress(t *testing.T) {
	svc, _ := newCourierService(t)

	bad := capeTown
	bad.PostalCode = "80"
	_, err := svc.Quote(context.Background(), domain.QuoteRequest{From: bad, To: joburg})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Contains(t, err.Error(), "from.postal_code")
}

func TestCourierService_Quote_TooHeavy(t *testing.T) {
	svc, _ := newCourierService(t)

	_, err := svc.Quote(context.Background(), domain.QuoteRequest{From: capeTown, To: joburg, Parcel: domain.Parcel{WeightKg: 80}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCourierService_CreateShipment(t *testing.T) {
	svc, shipper := newCourierService(t)
	ctx := context.Background()
	pickup := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	shipper.EXPECT().CreateShipment(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, req domain.ShipmentRequest) (*domain.Shipment, error) {
		assert.Equal(t, "Western Cape", req.Collection.Province)
		assert.Equal(t, domain.DefaultParcel(), req.Parcel)
		return &domain.Shipment{ShipmentID: "sh_1", WaybillNumber: "WB1", PickupDate: pickup}, nil
	})

	s, err := svc.CreateShipment(ctx, domain.ShipmentRequest{OrderID: "o1", Collection: capeTown, Delivery: joburg})
	require.NoError(t, err)
	assert.Equal(t, "WB1", s.WaybillNumber)
}

func TestCourierService_CreateShipment_ProviderError(t *testing.T) {
	svc, shipper := newCourierService(t)
	ctx := context.Background()

	shipper.EXPECT().CreateShipment(ctx, gomock.Any()).Return(nil, errors.New("502"))

	_, err := svc.CreateShipment(ctx, domain.ShipmentRequest{OrderID: "o1", Collection: capeTown, Delivery: joburg})
	assert.True(t, apperror.HasCode(err, apperror.CodeGateway))
}
