// Package api is the HTTP client for the trip-planning backend. Everything is
// JSON over HTTP with cookies carried across calls; cancellation arrives as
// context.Canceled so callers can tell a stop from a transport failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"tripdesk/internal/utils"
)

// ErrEndpointUnavailable marks a non-2xx reply from an optional endpoint.
// Callers fall back to a behaviorally equivalent path instead of failing.
var ErrEndpointUnavailable = errors.New("endpoint unavailable")

// BookingError carries the backend's structured rejection of a booking.
type BookingError struct {
	Status int
	Detail string
}

func (e *BookingError) Error() string {
	return fmt.Sprintf("booking rejected (%d): %s", e.Status, e.Detail)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *utils.Logger
}

func NewClient(baseURL string, logger *utils.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
		logger:  logger,
	}
}

// Health checks backend reachability via GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return unwrapURLError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	var out healthResponse
	return json.NewDecoder(resp.Body).Decode(&out)
}

// Chat posts one conversation turn to /api/chat.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.postJSON(ctx, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reset tells the backend to drop server-side memory for a trip. Fire and
// forget: failures are logged at debug and ignored.
func (c *Client) Reset(ctx context.Context, userID, clientTripID string) {
	body := map[string]string{"user_id": userID, "client_trip_id": clientTripID}
	if err := c.postJSON(ctx, "/api/chat/reset", body, nil); err != nil {
		c.logger.Debugf("chat reset ignored: %v", err)
	}
}

// SelectChoice posts to /api/select_choice. A non-2xx status comes back as
// ErrEndpointUnavailable so the caller can take the chat fallback.
func (c *Client) SelectChoice(ctx context.Context, userID, choiceID string) (*ChatResponse, error) {
	var out ChatResponse
	err := c.postJSON(ctx, "/api/select_choice", SelectChoiceRequest{UserID: userID, ChoiceID: choiceID}, &out)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("%w: select_choice returned %d", ErrEndpointUnavailable, se.status)
		}
		return nil, err
	}
	return &out, nil
}

// ConfirmBooking posts to /api/booking/confirm. A non-2xx reply decodes the
// structured detail into a BookingError.
func (c *Client) ConfirmBooking(ctx context.Context, req BookingRequest) (*BookingResponse, error) {
	var out BookingResponse
	err := c.postJSON(ctx, "/api/booking/confirm", req, &out)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, &BookingError{Status: se.status, Detail: se.detail()}
		}
		return nil, err
	}
	return &out, nil
}

type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend returned %d", e.status)
}

// detail extracts the backend's "detail" field, which may be a plain string
// or a structured object.
func (e *statusError) detail() string {
	var wrapper struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(e.body, &wrapper); err != nil || len(wrapper.Detail) == 0 {
		return strings.TrimSpace(string(e.body))
	}
	var asString string
	if err := json.Unmarshal(wrapper.Detail, &asString); err == nil {
		return asString
	}
	return string(wrapper.Detail)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return unwrapURLError(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return unwrapURLError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{status: resp.StatusCode, body: raw}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// unwrapURLError surfaces context cancellation from under url.Error wrapping,
// so errors.Is(err, context.Canceled) holds for stopped requests.
func unwrapURLError(err error) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}
