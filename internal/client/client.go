// Package client is a Go client for the staybook REST API, used by
// companion services such as channel managers and reporting jobs.
package client

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

	"staybook/internal/api"
	"staybook/internal/models"

	"github.com/redis/go-redis/v9"
)

const defaultTimeout = 10 * time.Second

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode           int    `json:"-"`
	Message              string `json:"error"`
	Reason               string `json:"reason,omitempty"`
	ConflictingBookingID string `json:"conflicting_booking_id,omitempty"`
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("http %d: %s (%s)", e.StatusCode, e.Message, e.Reason)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusConflict
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client with baseURL, API key and extra header.
func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// UseRedisCache enables caching of catalog reads. Booking reads are never cached.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// CreateBooking posts a booking. A non-empty idempotencyKey makes retries safe;
// replayed reports whether the server returned an earlier result.
func (c *Client) CreateBooking(ctx context.Context, req api.CreateBookingRequest, idempotencyKey string) (b *api.BookingMessage, replayed bool, err error) {
	headers := http.Header{}
	if idempotencyKey != "" {
		headers.Set("Idempotency-Key", idempotencyKey)
	}
	var out api.BookingMessage
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/bookings", nil, req, headers, &out)
	if err != nil {
		return nil, false, err
	}
	return &out, resp.Header.Get("Idempotent-Replayed") == "true", nil
}

func (c *Client) GetBooking(ctx context.Context, id string) (*api.BookingMessage, error) {
	var out api.BookingMessage
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/bookings/"+url.PathEscape(id), nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBooking(ctx context.Context, id string, req api.UpdateBookingRequest) (*api.BookingMessage, error) {
	var out api.BookingMessage
	if _, err := c.do(ctx, http.MethodPatch, "/api/v1/bookings/"+url.PathEscape(id), nil, req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TransitionStatus(ctx context.Context, id string, status models.Status) (*api.BookingMessage, error) {
	var out api.BookingMessage
	body := api.TransitionStatusRequest{Status: status.String()}
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/bookings/"+url.PathEscape(id)+"/status", nil, body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/bookings/"+url.PathEscape(id), nil, nil, nil, nil)
	return err
}

func (c *Client) ListBookings(ctx context.Context, f api.ListBookingsRequest) ([]*api.BookingMessage, error) {
	q := url.Values{}
	setIf(q, "property_id", f.PropertyID)
	setIf(q, "customer_id", f.CustomerID)
	setIf(q, "status", f.Status)
	setIf(q, "search", f.Search)
	setIf(q, "from", f.From)
	setIf(q, "to", f.To)

	var out api.ListBookingsResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/bookings", q, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Bookings, nil
}

// CheckAvailability asks whether [start, end) is free for the property.
func (c *Client) CheckAvailability(ctx context.Context, propertyID string, start, end time.Time) (*api.CheckAvailabilityResponse, error) {
	q := url.Values{}
	q.Set("property_id", propertyID)
	q.Set("start", start.Format(models.DateLayout))
	q.Set("end", end.Format(models.DateLayout))

	var out api.CheckAvailabilityResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/availability", q, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MonthView(ctx context.Context, year int, month time.Month, propertyID string) (*api.MonthViewMessage, error) {
	q := url.Values{}
	q.Set("month", fmt.Sprintf("%04d-%02d", year, int(month)))
	setIf(q, "property_id", propertyID)

	var out api.MonthViewMessage
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/calendar/month", q, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProperties returns the property catalog, cached when Redis is configured.
func (c *Client) ListProperties(ctx context.Context) ([]models.Property, error) {
	var wrap struct {
		Properties []models.Property `json:"properties"`
	}
	if err := c.cachedGet(ctx, "staybook:client:properties", "/api/v1/properties", &wrap); err != nil {
		return nil, err
	}
	return wrap.Properties, nil
}

func (c *Client) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var wrap struct {
		Customers []models.Customer `json:"customers"`
	}
	if err := c.cachedGet(ctx, "staybook:client:customers", "/api/v1/customers", &wrap); err != nil {
		return nil, err
	}
	return wrap.Customers, nil
}

func (c *Client) cachedGet(ctx context.Context, cacheKey, path string, out any) error {
	if c.readCache(ctx, cacheKey, out) {
		return nil
	}
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, nil, out); err != nil {
		return err
	}
	c.writeCache(ctx, cacheKey, out)
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, headers http.Header, out any) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	c.addHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if decErr := json.NewDecoder(resp.Body).Decode(apiErr); decErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return resp, apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	return resp, json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}

func setIf(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}
