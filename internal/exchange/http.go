// Package exchange provides the domain.Exchange implementations: a REST
// client for the venue gateway and an in-memory paper venue.
package exchange

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

	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange: HTTP %d: %s", e.Status, e.Message)
}

// Unwrap maps the status onto the domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrInvalidOrder
	default:
		return domain.ErrExchange
	}
}

// HTTPClient talks to the exchange gateway over JSON/REST.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	limiter    domain.RateLimiter
	limiterKey string
}

// NewHTTPClient creates a gateway client. A zero timeout uses 10s.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetRateLimiter throttles order inserts and cancels through rl under key.
func (c *HTTPClient) SetRateLimiter(rl domain.RateLimiter, key string) {
	c.limiter = rl
	c.limiterKey = key
}

// GetPositions returns the net position per instrument.
func (c *HTTPClient) GetPositions(ctx context.Context) (map[string]int, error) {
	var resp struct {
		Positions map[string]int `json:"positions"`
	}
	if err := c.do(ctx, http.MethodGet, "/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("exchange: get positions: %w", err)
	}
	if resp.Positions == nil {
		resp.Positions = map[string]int{}
	}
	return resp.Positions, nil
}

// GetPnL returns the account PnL. A null pnl yields an invalid NullDecimal.
func (c *HTTPClient) GetPnL(ctx context.Context) (decimal.NullDecimal, error) {
	var resp struct {
		PnL decimal.NullDecimal `json:"pnl"`
	}
	if err := c.do(ctx, http.MethodGet, "/pnl", nil, &resp); err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("exchange: get pnl: %w", err)
	}
	return resp.PnL, nil
}

// GetLastPriceBook returns the last book of instrumentID. An unknown
// instrument or a missing book yields an empty Book.
func (c *HTTPClient) GetLastPriceBook(ctx context.Context, instrumentID string) (domain.Book, error) {
	var book domain.Book
	path := "/instruments/" + url.PathEscape(instrumentID) + "/book"
	if err := c.do(ctx, http.MethodGet, path, nil, &book); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Book{InstrumentID: instrumentID}, nil
		}
		return domain.Book{}, fmt.Errorf("exchange: get book %s: %w", instrumentID, err)
	}
	book.InstrumentID = instrumentID
	return book, nil
}

// GetOutstandingOrders returns our resting orders on instrumentID keyed by
// order id.
func (c *HTTPClient) GetOutstandingOrders(ctx context.Context, instrumentID string) (map[string]domain.OutstandingOrder, error) {
	var resp struct {
		Orders []domain.OutstandingOrder `json:"orders"`
	}
	path := "/instruments/" + url.PathEscape(instrumentID) + "/orders"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("exchange: get outstanding orders %s: %w", instrumentID, err)
	}

	out := make(map[string]domain.OutstandingOrder, len(resp.Orders))
	for _, o := range resp.Orders {
		if !o.Side.Valid() {
			return nil, fmt.Errorf("exchange: order %s on %s: %w: %q", o.OrderID, instrumentID, domain.ErrInvalidSide, o.Side)
		}
		o.InstrumentID = instrumentID
		out[o.OrderID] = o
	}
	return out, nil
}

// InsertOrder submits an order.
func (c *HTTPClient) InsertOrder(ctx context.Context, order domain.Order) (domain.InsertResult, error) {
	if !order.Side.Valid() {
		return domain.InsertResult{}, fmt.Errorf("exchange: insert order: %w: %q", domain.ErrInvalidSide, order.Side)
	}
	if !order.Type.Valid() || order.Volume <= 0 {
		return domain.InsertResult{}, fmt.Errorf("exchange: insert order %s: %w", order, domain.ErrInvalidOrder)
	}
	if err := c.throttle(ctx); err != nil {
		return domain.InsertResult{}, err
	}

	var res domain.InsertResult
	if err := c.do(ctx, http.MethodPost, "/orders", order, &res); err != nil {
		return domain.InsertResult{}, fmt.Errorf("exchange: insert order: %w", err)
	}
	return res, nil
}

// DeleteOrders cancels every resting order on instrumentID.
func (c *HTTPClient) DeleteOrders(ctx context.Context, instrumentID string) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}
	path := "/instruments/" + url.PathEscape(instrumentID) + "/orders"
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("exchange: delete orders %s: %w", instrumentID, err)
	}
	return nil
}

func (c *HTTPClient) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx, c.limiterKey); err != nil {
		return fmt.Errorf("exchange: throttle: %w", err)
	}
	return nil
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, reqBody, out any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = apiErr.Message
		}
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ domain.Exchange = (*HTTPClient)(nil)
