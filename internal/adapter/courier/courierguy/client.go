// Package courierguy quotes and books deliveries with The Courier Guy
// through the ShipLogic API.
package courierguy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/pkg/money"

	"github.com/shopspring/decimal"
)

// ProviderName labels quotes from this adapter.
const ProviderName = "courier_guy"

const (
	defaultBaseURL    = "https://api.shiplogic.com"
	defaultTimeout    = 15 * time.Second
	responseReadLimit = 64 << 10
	dateLayout        = "2006-01-02"
)

var errNotConfigured = errors.New("courier guy api key not configured")

// Client implements ports.CourierProvider and ports.ShipmentProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient builds the adapter. An empty key yields a disabled client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Name() string  { return ProviderName }
func (c *Client) Enabled() bool { return c.apiKey != "" }

type address struct {
	Type          string `json:"type"`
	StreetAddress string `json:"street_address"`
	LocalArea     string `json:"local_area,omitempty"`
	City          string `json:"city"`
	Zone          string `json:"zone"`
	Country       string `json:"country"`
	Code          string `json:"code"`
}

type parcel struct {
	LengthCm float64 `json:"submitted_length_cm"`
	WidthCm  float64 `json:"submitted_width_cm"`
	HeightCm float64 `json:"submitted_height_cm"`
	WeightKg float64 `json:"submitted_weight_kg"`
}

type contact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func toAddress(a domain.Address) address {
	return address{
		Type:          "residential",
		StreetAddress: a.Street,
		LocalArea:     a.Suburb,
		City:          a.City,
		Zone:          domain.ProvinceCode(a.Province),
		Country:       "ZA",
		Code:          a.PostalCode,
	}
}

func toParcels(p domain.Parcel) []parcel {
	return []parcel{{LengthCm: p.LengthCm, WidthCm: p.WidthCm, HeightCm: p.HeightCm, WeightKg: p.WeightKg}}
}

type ratesRequest struct {
	CollectionAddress address  `json:"collection_address"`
	DeliveryAddress   address  `json:"delivery_address"`
	Parcels           []parcel `json:"parcels"`
	DeclaredValue     float64  `json:"declared_value"`
	CollectionMinDate string   `json:"collection_min_date"`
}

type ratesResponse struct {
	Rates []struct {
		Rate         json.Number `json:"rate"`
		ServiceLevel struct {
			Code           string `json:"code"`
			Name           string `json:"name"`
			DeliveryDateTo string `json:"delivery_date_to"`
		} `json:"service_level"`
	} `json:"rates"`
}

// Quote prices the parcel for every service level ShipLogic returns.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) ([]domain.Quote, error) {
	if !c.Enabled() {
		return nil, errNotConfigured
	}
	now := c.now()
	body := ratesRequest{
		CollectionAddress: toAddress(req.From),
		DeliveryAddress:   toAddress(req.To),
		Parcels:           toParcels(req.Parcel),
		DeclaredValue:     money.FromCents(req.Parcel.Value).InexactFloat64(),
		CollectionMinDate: now.Format(dateLayout),
	}

	var resp ratesResponse
	if err := c.post(ctx, "/v2/rates", body, &resp); err != nil {
		return nil, err
	}

	zone := domain.ZoneBetween(req.From, req.To)
	quotes := make([]domain.Quote, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		price, err := decimal.NewFromString(r.Rate.String())
		if err != nil {
			return nil, fmt.Errorf("courier guy rate %q: %w", r.Rate, err)
		}
		level := serviceLevel(r.ServiceLevel.Code)
		quotes = append(quotes, domain.Quote{
			Provider:     ProviderName,
			ServiceName:  r.ServiceLevel.Name,
			ServiceCode:  r.ServiceLevel.Code,
			ServiceLevel: level,
			Price:        money.ToCents(price),
			TransitDays:  transitDays(now, r.ServiceLevel.DeliveryDateTo, level),
			Zone:         zone,
		})
	}
	return quotes, nil
}

type shipmentRequest struct {
	CollectionAddress address  `json:"collection_address"`
	CollectionContact contact  `json:"collection_contact"`
	DeliveryAddress   address  `json:"delivery_address"`
	DeliveryContact   contact  `json:"delivery_contact"`
	Parcels           []parcel `json:"parcels"`
	DeclaredValue     float64  `json:"declared_value"`
	ServiceLevelCode  string   `json:"service_level_code"`
	CollectionMinDate string   `json:"collection_min_date"`
	CustomerReference string   `json:"customer_reference"`
}

type shipmentResponse struct {
	ID                     json.Number `json:"id"`
	ShortTrackingReference string      `json:"short_tracking_reference"`
	CollectionMinDate      time.Time   `json:"collection_min_date"`
	EstimatedDeliveryTo    time.Time   `json:"estimated_delivery_to"`
}

// CreateShipment books a collection. Without a service code economy is used.
func (c *Client) CreateShipment(ctx context.Context, req domain.ShipmentRequest) (*domain.Shipment, error) {
	if !c.Enabled() {
		return nil, errNotConfigured
	}
	code := req.ServiceCode
	if code == "" {
		code = "ECO"
	}
	body := shipmentRequest{
		CollectionAddress: toAddress(req.Collection),
		CollectionContact: contact{Name: req.CollectionName, Email: req.CollectionMail},
		DeliveryAddress:   toAddress(req.Delivery),
		DeliveryContact:   contact{Name: req.DeliveryName, Email: req.DeliveryMail},
		Parcels:           toParcels(req.Parcel),
		DeclaredValue:     money.FromCents(req.Parcel.Value).InexactFloat64(),
		ServiceLevelCode:  code,
		CollectionMinDate: req.CollectAfter.UTC().Format(time.RFC3339),
		CustomerReference: req.Reference,
	}

	var resp shipmentResponse
	if err := c.post(ctx, "/v2/shipments", body, &resp); err != nil {
		return nil, err
	}
	if resp.ShortTrackingReference == "" {
		return nil, fmt.Errorf("courier guy shipment for %s: no tracking reference", req.OrderID)
	}

	pickup := resp.CollectionMinDate
	if pickup.IsZero() {
		pickup = req.CollectAfter
	}
	eta := resp.EstimatedDeliveryTo
	if eta.IsZero() {
		eta = pickup.AddDate(0, 0, 3)
	}
	return &domain.Shipment{
		ShipmentID:        resp.ID.String(),
		WaybillNumber:     resp.ShortTrackingReference,
		PickupDate:        pickup,
		EstimatedDelivery: eta,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal courier guy request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build courier guy request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("courier guy %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("courier guy %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseReadLimit)).Decode(out); err != nil {
		return fmt.Errorf("decode courier guy %s: %w", path, err)
	}
	return nil
}

// serviceLevel maps ShipLogic codes onto economy or express.
func serviceLevel(code string) domain.ServiceLevel {
	switch strings.ToUpper(code) {
	case "ECO", "ECON", "LOF", "LSE":
		return domain.ServiceEconomy
	}
	return domain.ServiceExpress
}

func transitDays(from time.Time, deliveryTo string, level domain.ServiceLevel) int {
	if t, err := time.Parse(time.RFC3339, deliveryTo); err == nil {
		if d := int(math.Ceil(t.Sub(from).Hours() / 24)); d > 0 {
			return d
		}
	}
	if t, err := time.Parse(dateLayout, deliveryTo); err == nil {
		start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		if d := int(t.Sub(start).Hours() / 24); d > 0 {
			return d
		}
	}
	if level == domain.ServiceExpress {
		return 1
	}
	return 3
}

