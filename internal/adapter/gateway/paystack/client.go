// Package paystack is the Paystack payment gateway adapter.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL         = "https://api.paystack.co"
	defaultTimeout         = 15 * time.Second
	responseReadLimit      = 64 << 10
	splitTypeFlat          = "flat"
	initializePath         = "/transaction/initialize"
	refundPath             = "/refund"
	unavailableMessage     = "Payment provider unavailable"
	defaultRejectedMessage = "Payment provider rejected the request"
)

var errSecretRequired = errors.New("paystack secret key is required")

// Client implements ports.PaymentGateway against the Paystack REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	log        zerolog.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Paystack API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func NewClient(secretKey string, log zerolog.Logger, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errSecretRequired
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		secretKey:  key,
		log:        log.With().Str("component", "paystack").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type splitSubaccount struct {
	Subaccount string `json:"subaccount"`
	Share      int64  `json:"share"`
}

type splitBody struct {
	Type             string            `json:"type"`
	BearerType       string            `json:"bearer_type"`
	BearerSubaccount string            `json:"bearer_subaccount,omitempty"`
	Subaccounts      []splitSubaccount `json:"subaccounts"`
}

type initializeBody struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Subaccount  string            `json:"subaccount,omitempty"`
	Split       *splitBody        `json:"split,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InitializeTransaction opens a hosted checkout. A multi-seller split is sent
// as a flat dynamic split so each subaccount receives its exact share.
func (c *Client) InitializeTransaction(ctx context.Context, p ports.InitializeParams) (*ports.InitializeResult, error) {
	body := initializeBody{
		Email:       p.Email,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Reference:   p.Reference,
		CallbackURL: p.CallbackURL,
		Metadata:    p.Metadata,
	}
	if p.Split != nil {
		split := &splitBody{
			Type:             splitTypeFlat,
			BearerType:       p.Split.BearerType,
			BearerSubaccount: p.Split.BearerSubaccount,
		}
		for _, s := range p.Split.Shares {
			split.Subaccounts = append(split.Subaccounts, splitSubaccount{Subaccount: s.Subaccount, Share: s.Share})
		}
		body.Split = split
	} else {
		body.Subaccount = p.Subaccount
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := c.post(ctx, initializePath, body, &data); err != nil {
		return nil, err
	}
	if data.AuthorizationURL == "" {
		return nil, apperror.ErrGateway(defaultRejectedMessage, fmt.Errorf("initialize %s: empty authorization_url", p.Reference))
	}

	ref := data.Reference
	if ref == "" {
		ref = p.Reference
	}
	return &ports.InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        ref,
	}, nil
}

type refundBody struct {
	Transaction  string `json:"transaction"`
	Amount       int64  `json:"amount,omitempty"`
	MerchantNote string `json:"merchant_note,omitempty"`
}

// Refund asks Paystack to return Amount of the charge identified by Reference.
func (c *Client) Refund(ctx context.Context, p ports.RefundParams) (*ports.RefundResult, error) {
	var data struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	}
	body := refundBody{Transaction: p.Reference, Amount: p.Amount, MerchantNote: p.Reason}
	if err := c.post(ctx, refundPath, body, &data); err != nil {
		return nil, err
	}
	return &ports.RefundResult{GatewayReference: data.ID.String(), Status: data.Status}, nil
}

// post sends body as JSON and decodes the data field of a successful reply.
// Rejections carry Paystack's message so the caller can show it.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal paystack request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build paystack request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("paystack request failed")
		return apperror.ErrGateway(unavailableMessage, fmt.Errorf("paystack %s: %w", path, err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return apperror.ErrGateway(unavailableMessage, fmt.Errorf("read paystack %s: %w", path, err))
	}

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("paystack response")

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperror.ErrGateway(unavailableMessage,
			fmt.Errorf("paystack %s: status %d: %w", path, resp.StatusCode, err))
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = defaultRejectedMessage
		}
		c.log.Warn().Str("path", path).Int("status", resp.StatusCode).Str("message", msg).Msg("paystack rejected request")
		return apperror.ErrGateway(msg, fmt.Errorf("paystack %s: status %d", path, resp.StatusCode))
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperror.ErrGateway(unavailableMessage, fmt.Errorf("decode paystack %s data: %w", path, err))
		}
	}
	return nil
}
