// Package brevo sends transactional email through the Brevo SMTP API.
package brevo

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
)

const (
	defaultBaseURL = "https://api.brevo.com"
	defaultTimeout = 15 * time.Second
	sendPath       = "/v3/smtp/email"
)

var errNotConfigured = errors.New("brevo api key not configured")

// Client implements ports.EmailSender.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	senderName  string
	senderEmail string
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

// NewClient builds the sender. Without an API key Enabled reports false.
func NewClient(apiKey, senderName, senderEmail string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     defaultBaseURL,
		apiKey:      strings.TrimSpace(apiKey),
		senderName:  senderName,
		senderEmail: senderEmail,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Enabled() bool { return c.apiKey != "" }

type party struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type payload struct {
	Sender      party    `json:"sender"`
	To          []party  `json:"to"`
	Subject     string   `json:"subject"`
	HTMLContent string   `json:"htmlContent"`
	TextContent string   `json:"textContent,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Send posts one message. Brevo answers 201 with a message id on success.
func (c *Client) Send(ctx context.Context, email ports.Email) error {
	if !c.Enabled() {
		return errNotConfigured
	}
	to := strings.TrimSpace(email.ToEmail)
	if to == "" || !strings.Contains(to, "@") {
		return fmt.Errorf("invalid recipient email: %q", email.ToEmail)
	}

	body, err := json.Marshal(payload{
		Sender:      party{Name: c.senderName, Email: c.senderEmail},
		To:          []party{{Name: email.ToName, Email: to}},
		Subject:     email.Subject,
		HTMLContent: email.HTML,
		TextContent: email.Text,
		Tags:        email.Tags,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brevo send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("brevo send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
