// Package api is the HTTP client for the stock-watchlist service. Every call
// is a single request/response against a fixed base URL with a shared cookie
// jar. There is no retry, backoff or timeout policy: failures go straight
// back to the caller and cancellation comes from the caller's context.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/luckfunc/stockwatch/internal/models"
)

// RequestIDHeader carries the per-call id used in diagnostic traces.
const RequestIDHeader = "X-Request-ID"

// Client talks to the watchlist service.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its Jar is kept if set,
// otherwise the default jar is attached.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient builds a client for baseURL, e.g. "http://localhost:10789".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	c.log = c.log.Named("api")
	return c, nil
}

// BaseURL returns the service endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register creates an account. It does not establish a session.
func (c *Client) Register(ctx context.Context, creds models.Credentials) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "register", http.MethodPost, "/api/user/register", creds, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and returns the full user record, watchlist included.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "login", http.MethodPost, "/api/user/login", creds, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchStocks runs a free-text catalog search. Results carry no prices.
func (c *Client) SearchStocks(ctx context.Context, text string) ([]models.Stock, error) {
	var stocks []models.Stock
	path := "/api/stocks/search/" + url.PathEscape(text)
	if err := c.do(ctx, "search", http.MethodGet, path, nil, &stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

// StockDetails resolves many symbols in one request.
func (c *Client) StockDetails(ctx context.Context, symbols []string) ([]models.Stock, error) {
	if symbols == nil {
		symbols = []string{}
	}
	var stocks []models.Stock
	if err := c.do(ctx, "details", http.MethodPost, "/api/stocks/details", symbols, &stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

// StockDetail resolves one symbol, price included.
func (c *Client) StockDetail(ctx context.Context, symbol string) (*models.Stock, error) {
	var stock models.Stock
	path := "/api/stocks/" + url.PathEscape(symbol)
	if err := c.do(ctx, "detail", http.MethodGet, path, nil, &stock); err != nil {
		return nil, err
	}
	return &stock, nil
}

type symbolBody struct {
	Symbol string `json:"symbol"`
}

// AddToWatchlist adds symbol to the user's server-side watchlist.
func (c *Client) AddToWatchlist(ctx context.Context, userID models.UserID, symbol string) error {
	path := "/api/user/add-to-watchlist/" + url.PathEscape(userID.String())
	return c.do(ctx, "add-to-watchlist", http.MethodPost, path, symbolBody{Symbol: symbol}, nil)
}

// RemoveFromWatchlist removes symbol from the user's server-side watchlist.
func (c *Client) RemoveFromWatchlist(ctx context.Context, userID models.UserID, symbol string) error {
	path := "/api/user/delete-from-watchlist/" + url.PathEscape(userID.String())
	return c.do(ctx, "delete-from-watchlist", http.MethodPost, path, symbolBody{Symbol: symbol}, nil)
}

// do sends one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", reqID),
			zap.Error(err))
		return transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, err)
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("elapsed", time.Since(start)),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("request rejected", fields...)
		return rejectedError(op, resp.StatusCode, data)
	}
	c.log.Debug("request ok", fields...)

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    "bad response: " + err.Error(),
			Err:        ErrRejected,
		}
	}
	return nil
}
