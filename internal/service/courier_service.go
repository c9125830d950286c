package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"
	"rebooked-marketplace/pkg/metrics"

	"github.com/rs/zerolog"
)

// FallbackProvider labels quotes from the static rate table.
const FallbackProvider = "rebooked_standard"

const (
	includedWeightKg = 2.0
	maxParcelKg      = 70.0
)

type rate struct {
	base        int64 // cents
	transitDays int
}

var fallbackRates = map[domain.Zone]map[domain.ServiceLevel]rate{
	domain.ZoneLocal: {
		domain.ServiceEconomy: {base: 8500, transitDays: 2},
		domain.ServiceExpress: {base: 12000, transitDays: 1},
	},
	domain.ZoneProvincial: {
		domain.ServiceEconomy: {base: 10500, transitDays: 3},
		domain.ServiceExpress: {base: 15000, transitDays: 2},
	},
	domain.ZoneNational: {
		domain.ServiceEconomy: {base: 14000, transitDays: 5},
		domain.ServiceExpress: {base: 19500, transitDays: 3},
	},
}

// per started kg above includedWeightKg
var perKgSurcharge = map[domain.ServiceLevel]int64{
	domain.ServiceEconomy: 1500,
	domain.ServiceExpress: 2500,
}

// FallbackQuotes prices a parcel from the static zone table.
func FallbackQuotes(zone domain.Zone, parcel domain.Parcel) []domain.Quote {
	extraKg := int64(math.Ceil(parcel.BillableWeight() - includedWeightKg))
	if extraKg < 0 {
		extraKg = 0
	}

	quotes := make([]domain.Quote, 0, 2)
	for _, level := range []domain.ServiceLevel{domain.ServiceEconomy, domain.ServiceExpress} {
		r := fallbackRates[zone][level]
		quotes = append(quotes, domain.Quote{
			Provider:     FallbackProvider,
			ServiceName:  fallbackServiceName(level),
			ServiceCode:  string(level),
			ServiceLevel: level,
			Price:        r.base + extraKg*perKgSurcharge[level],
			TransitDays:  r.transitDays,
			Zone:         zone,
			Fallback:     true,
		})
	}
	return quotes
}

func fallbackServiceName(level domain.ServiceLevel) string {
	if level == domain.ServiceExpress {
		return "Standard Express"
	}
	return "Standard Economy"
}

// CourierServiceImpl implements ports.CourierService.
type CourierServiceImpl struct {
	providers []ports.CourierProvider
	shipper   ports.ShipmentProvider
	metrics   *metrics.DomainMetrics
	log       zerolog.Logger
}

func NewCourierService(
	providers []ports.CourierProvider,
	shipper ports.ShipmentProvider,
	m *metrics.DomainMetrics,
	log zerolog.Logger,
) *CourierServiceImpl {
	return &CourierServiceImpl{providers: providers, shipper: shipper, metrics: m, log: log}
}

// Quote asks every enabled provider for prices. Provider failures are
// logged and skipped; when no live quote comes back the static table is
// used. The result is sorted by price, cheapest first.
func (s *CourierServiceImpl) Quote(ctx context.Context, req domain.QuoteRequest) ([]domain.Quote, error) {
	req, err := normalizeQuoteRequest(req)
	if err != nil {
		return nil, err
	}
	zone := domain.ZoneBetween(req.From, req.To)

	var quotes []domain.Quote
	for _, p := range s.providers {
		if !p.Enabled() {
			s.metrics.Quote(p.Name(), "disabled")
			continue
		}
		live, err := p.Quote(ctx, req)
		if err != nil {
			s.log.Warn().Err(err).Str("provider", p.Name()).Msg("live courier quote failed")
			s.metrics.Quote(p.Name(), "error")
			continue
		}
		for i := range live {
			if live[i].Zone == "" {
				live[i].Zone = zone
			}
		}
		quotes = append(quotes, live...)
		s.metrics.Quote(p.Name(), "live")
	}

	if len(quotes) == 0 {
		quotes = FallbackQuotes(zone, req.Parcel)
		s.metrics.Quote(FallbackProvider, "fallback")
	}

	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].Price < quotes[j].Price })
	return quotes, nil
}

// CreateShipment books the collection with the shipment provider.
func (s *CourierServiceImpl) CreateShipment(ctx context.Context, req domain.ShipmentRequest) (*domain.Shipment, error) {
	if err := req.Collection.Validate(); err != nil {
		return nil, apperror.Validation(validationMessage(err, "collection"))
	}
	if err := req.Delivery.Validate(); err != nil {
		return nil, apperror.Validation(validationMessage(err, "delivery"))
	}
	req.Collection = req.Collection.Normalized()
	req.Delivery = req.Delivery.Normalized()
	if req.Parcel == (domain.Parcel{}) {
		req.Parcel = domain.DefaultParcel()
	}

	shipment, err := s.shipper.CreateShipment(ctx, req)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", req.OrderID).Msg("courier shipment booking failed")
		return nil, apperror.ErrGateway("Courier booking failed", err)
	}
	return shipment, nil
}

func normalizeQuoteRequest(req domain.QuoteRequest) (domain.QuoteRequest, error) {
	var errs domain.ValidationErrors
	if err := req.From.Validate(); err != nil {
		errs = append(errs, asValidationErrors(err).Prefix("from")...)
	}
	if err := req.To.Validate(); err != nil {
		errs = append(errs, asValidationErrors(err).Prefix("to")...)
	}
	p := req.Parcel
	if p.WeightKg < 0 || p.LengthCm < 0 || p.WidthCm < 0 || p.HeightCm < 0 {
		errs = append(errs, domain.FieldError{Field: "parcel", Message: "dimensions must not be negative"})
	}
	if p.BillableWeight() > maxParcelKg {
		errs = append(errs, domain.FieldError{Field: "parcel", Message: fmt.Sprintf("billable weight exceeds %.0f kg", maxParcelKg)})
	}
	if len(errs) > 0 {
		return req, apperror.Validation(errs.Error())
	}

	req.From = req.From.Normalized()
	req.To = req.To.Normalized()
	if p.WeightKg == 0 && p.VolumetricWeight() == 0 {
		req.Parcel = domain.DefaultParcel()
		req.Parcel.Value = p.Value
	}
	return req, nil
}

func asValidationErrors(err error) domain.ValidationErrors {
	if v, ok := err.(domain.ValidationErrors); ok {
		return v
	}
	return domain.ValidationErrors{{Field: "address", Message: err.Error()}}
}

func validationMessage(err error, prefix string) string {
	return asValidationErrors(err).Prefix(prefix).Error()
}
