// Package yookassa creates payments through the YooKassa REST API.
package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/courierbot-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

const (
	defaultBaseURL = "https://api.yookassa.ru/v3"
	defaultTimeout = 10 * time.Second
	currencyRUB    = "RUB"
)

const responseBodyReadLimit int64 = 1024

var errCredentialsRequired = errors.New("yookassa shop id and secret key are required")

// Payment is the provider view of a created payment.
type Payment struct {
	ID     string
	Status string
	URL    string
}

// Gateway is what order services depend on.
type Gateway interface {
	CreatePayment(ctx context.Context, amount int64, description string, orderID int64) (*Payment, error)
}

// Client talks to the YooKassa payments endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	shopID     string
	secretKey  string
	returnURL  string
	newKey     func() string
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

// WithIdempotenceKeys overrides the Idempotence-Key generator.
func WithIdempotenceKeys(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newKey = fn
		}
	}
}

// NewClient builds a client from configuration.
func NewClient(cfg config.YooKassaConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errCredentialsRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		shopID:     strings.TrimSpace(cfg.ShopID),
		secretKey:  strings.TrimSpace(cfg.SecretKey),
		returnURL:  cfg.ReturnURL,
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type      string `json:"type"`
	ReturnURL string `json:"return_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation confirmation      `json:"confirmation"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
}

// FormatAmount renders whole rubles the way the API expects ("150.00").
func FormatAmount(rubles int64) string {
	return decimal.NewFromInt(rubles).StringFixed(2)
}

// CreatePayment registers an immediately captured redirect payment for the order.
func (c *Client) CreatePayment(ctx context.Context, rubles int64, description string, orderID int64) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "yookassa client not configured")
	}
	if rubles <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	payload, err := json.Marshal(createPaymentRequest{
		Amount:       amount{Value: FormatAmount(rubles), Currency: currencyRUB},
		Capture:      true,
		Confirmation: confirmation{Type: "redirect", ReturnURL: c.returnURL},
		Description:  description,
		Metadata:     map[string]string{"order_id": strconv.FormatInt(orderID, 10)},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal payment request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("payments"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build payment request")
	}
	httpReq.SetBasicAuth(c.shopID, c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", c.newKey())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute payment request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "payment request failed")
	}

	var apiResp struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		Confirmation struct {
			URL string `json:"confirmation_url"`
		} `json:"confirmation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment response")
	}
	if apiResp.ID == "" || apiResp.Confirmation.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment response missing id or confirmation url")
	}

	return &Payment{
		ID:     apiResp.ID,
		Status: apiResp.Status,
		URL:    apiResp.Confirmation.URL,
	}, nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}
