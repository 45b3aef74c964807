package pixgo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pixgo-gateway/internal/constants"
)

var (
	ErrConfigInvalid   = errors.New("pixgo config invalid")
	ErrRequestFailed   = errors.New("communication with PixGo failed")
	ErrResponseInvalid = errors.New("pixgo response invalid")
)

const (
	defaultBaseURL = "https://pixgo.org/api/v1"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config API access
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// ValidateConfig checks required fields
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("%w: api_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("%w: base_url is required", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) normalize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// APIError provider answered with HTTP >= 400
type APIError struct {
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pixgo api error (HTTP %d): %s", e.HTTPStatus, e.Message)
}

// Code returns the provider error code from the body, if any
func (e *APIError) Code() string {
	if e == nil || e.Details == nil {
		return ""
	}
	code, _ := e.Details["error"].(string)
	return strings.TrimSpace(code)
}

// IsLimitExceeded reports a provider quota rejection
func IsLimitExceeded(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code() == constants.ProviderErrorLimitExceeded {
		return apiErr, true
	}
	return nil, false
}

// Client PixGo HTTP client. Stateless and safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a client with a bounded wait
func NewClient(cfg Config) *Client {
	cfg.normalize()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c != nil && ValidateConfig(&c.cfg) == nil
}

// CreatePayment calls POST /payment/create. The idempotency key lets the
// provider return the original payment when a creation is replayed.
func (c *Client) CreatePayment(ctx context.Context, payload map[string]interface{}, idempotencyKey string) (map[string]interface{}, error) {
	if err := ValidateConfig(&c.cfg); err != nil {
		return nil, err
	}
	headers := map[string]string{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		headers["X-Idempotency-Key"] = key
	}
	return c.call(ctx, http.MethodPost, "/payment/create", payload, headers)
}

// GetPaymentStatus calls GET /payment/{id}/status
func (c *Client) GetPaymentStatus(ctx context.Context, providerID string) (map[string]interface{}, error) {
	if err := ValidateConfig(&c.cfg); err != nil {
		return nil, err
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, fmt.Errorf("%w: provider payment id is empty", ErrConfigInvalid)
	}
	return c.call(ctx, http.MethodGet, "/payment/"+url.PathEscape(providerID)+"/status", nil, nil)
}

func (c *Client) call(ctx context.Context, method, endpoint string, payload map[string]interface{}, headers map[string]string) (map[string]interface{}, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal payload: %v", ErrRequestFailed, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRequestFailed, err)
	}
	var decoded map[string]interface{}
	decodeErr := json.Unmarshal(respBytes, &decoded)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{
			Message:    errorMessage(decoded, resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			Details:    decoded,
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, decodeErr)
	}
	if data, ok := decoded["data"].(map[string]interface{}); ok {
		return data, nil
	}
	return decoded, nil
}

func errorMessage(decoded map[string]interface{}, status int) string {
	for _, key := range []string{"message", "error"} {
		if msg, ok := decoded[key].(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return fmt.Sprintf("PixGo API error (HTTP %d)", status)
}

// NormalizeStatus maps a provider status onto the local status set
func NormalizeStatus(raw string) (string, bool) {
	status := strings.ToLower(strings.TrimSpace(raw))
	switch status {
	case "paid", "approved", "confirmed":
		status = constants.PaymentStatusCompleted
	case "canceled":
		status = constants.PaymentStatusCancelled
	}
	switch status {
	case constants.PaymentStatusPending,
		constants.PaymentStatusCompleted,
		constants.PaymentStatusExpired,
		constants.PaymentStatusCancelled,
		constants.PaymentStatusRefunded:
		return status, true
	default:
		return "", false
	}
}
