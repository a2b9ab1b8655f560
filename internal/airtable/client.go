package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Defaults for the public Airtable API.
const (
	DefaultBaseURL       = "https://api.airtable.com/v0"
	DefaultRatePerSecond = 5
	DefaultMaxRetries    = 5
	DefaultTimeout       = 30 * time.Second
	MaxBatchSize         = 10
	pageSize             = 100

	DefaultEmployeesTable = "Employees"
	DefaultStoresTable    = "Stores"
	DefaultStoreField     = "Store ID"
)

// Config locates the base and tables.
type Config struct {
	BaseURL string
	BaseID  string

	EmployeesTable string
	StoresTable    string

	// KeyField is the payroll field of the employee table.
	KeyField string
	// StoreField is the store code field of the stores table.
	StoreField string

	RatePerSecond float64
	MaxRetries    int
	Timeout       time.Duration
}

// Client talks to one Airtable base.
type Client struct {
	cfg        Config
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithBackOff replaces the retry policy for 429 responses.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client. Zero config fields take defaults.
func New(apiKey string, cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.EmployeesTable == "" {
		cfg.EmployeesTable = DefaultEmployeesTable
	}
	if cfg.StoresTable == "" {
		cfg.StoresTable = DefaultStoresTable
	}
	if cfg.KeyField == "" {
		cfg.KeyField = "LiQ - Payroll Number"
	}
	if cfg.StoreField == "" {
		cfg.StoreField = DefaultStoreField
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:        cfg,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:     slog.Default(),
	}
	c.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		b.MaxInterval = 30 * time.Second
		return b
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) tableURL(table string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + url.PathEscape(c.cfg.BaseID) + "/" + url.PathEscape(table)
}

// do sends one request, retrying 429 responses, and decodes a 2xx body
// into out.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, table, err)
		}
	}

	target := c.tableURL(table)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		err := c.send(ctx, method, table, target, payload, out)
		if err == nil {
			return nil
		}
		if IsRateLimited(err) {
			c.logger.Warn("airtable rate limited", "method", method, "table", table, "attempt", attempt)
			return err
		}
		return backoff.Permanent(err)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.cfg.MaxRetries)), ctx)
	return backoff.Retry(op, policy)
}

func (c *Client) send(ctx context.Context, method, table, target string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("airtable %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("airtable %s %s: read body: %w", method, table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, method, table, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("airtable %s %s: decode: %w", method, table, err)
	}
	return nil
}

// Airtable reports errors either as {"error":{"type","message"}} or as
// {"error":"TYPE"}.
func parseAPIError(status int, method, table string, data []byte) *APIError {
	ae := &APIError{Status: status, Method: method, Table: table}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(data, &envelope) != nil || len(envelope.Error) == 0 {
		return ae
	}
	var detailed struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &detailed) == nil {
		ae.Type, ae.Message = detailed.Type, detailed.Message
		return ae
	}
	var code string
	if json.Unmarshal(envelope.Error, &code) == nil {
		ae.Type = code
	}
	return ae
}
