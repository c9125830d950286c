// Package fastway prices deliveries with the Fastway South Africa lookup API.
package fastway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rebooked-marketplace/internal/core/domain"
	"rebooked-marketplace/pkg/money"

	"github.com/shopspring/decimal"
)

// ProviderName labels quotes from this adapter.
const ProviderName = "fastway"

const (
	defaultBaseURL    = "https://sa.api.fastway.org/latest"
	defaultTimeout    = 15 * time.Second
	responseReadLimit = 64 << 10
	defaultFranchise  = "JNB"
)

var errNotConfigured = errors.New("fastway api key not configured")

// franchise is the Fastway regional franchise that collects in a province.
var franchise = map[string]string{
	"Western Cape":  "CPT",
	"Northern Cape": "CPT",
	"Eastern Cape":  "PLZ",
	"KwaZulu-Natal": "DUR",
	"Free State":    "BFN",
	"Gauteng":       "JNB",
	"North West":    "JNB",
	"Limpopo":       "PTA",
	"Mpumalanga":    "PTA",
}

// Client implements ports.CourierProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
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

type lookupResponse struct {
	Error  string `json:"error"`
	Result struct {
		DeliveryTimeframeDays string `json:"delivery_timeframe_days"`
		Services              []struct {
			Type        string `json:"type"`
			Name        string `json:"name"`
			LabelColour string `json:"labelcolour"`
			Price       string `json:"totalprice_frequent"`
		} `json:"services"`
	} `json:"result"`
}

// Quote looks up Fastway services from the collecting franchise to the
// destination suburb. Weight is rounded up to whole kilograms.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) ([]domain.Quote, error) {
	if !c.Enabled() {
		return nil, errNotConfigured
	}

	rf, ok := franchise[req.From.Province]
	if !ok {
		rf = defaultFranchise
	}
	suburb := req.To.Suburb
	if suburb == "" {
		suburb = req.To.City
	}
	weight := int(math.Ceil(req.Parcel.BillableWeight()))
	if weight < 1 {
		weight = 1
	}

	endpoint := fmt.Sprintf("%s/psc/lookup/%s/%s/%s/%d?%s", c.baseURL,
		url.PathEscape(rf), url.PathEscape(suburb), url.PathEscape(req.To.PostalCode), weight,
		url.Values{"api_key": {c.apiKey}}.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build fastway request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fastway lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fastway lookup: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseReadLimit)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode fastway lookup: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("fastway lookup: %s", body.Error)
	}

	days, _ := strconv.Atoi(strings.TrimSpace(body.Result.DeliveryTimeframeDays))
	zone := domain.ZoneBetween(req.From, req.To)
	quotes := make([]domain.Quote, 0, len(body.Result.Services))
	for _, s := range body.Result.Services {
		price, err := decimal.NewFromString(strings.TrimSpace(s.Price))
		if err != nil {
			return nil, fmt.Errorf("fastway price %q: %w", s.Price, err)
		}
		level := domain.ServiceEconomy
		transit := days
		if isExpress(s.Name) {
			level = domain.ServiceExpress
			if transit > 1 {
				transit--
			}
		}
		if transit <= 0 {
			transit = 3
		}
		quotes = append(quotes, domain.Quote{
			Provider:     ProviderName,
			ServiceName:  strings.TrimSpace(s.Type + " " + s.Name),
			ServiceCode:  s.LabelColour,
			ServiceLevel: level,
			Price:        money.ToCents(price),
			TransitDays:  transit,
			Zone:         zone,
		})
	}
	return quotes, nil
}

func isExpress(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "express") || strings.Contains(n, "overnight")
}
