package calendar

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
)

// HTTPClient talks to the calendar bridge service that owns the actual
// provider integration (Google Calendar and friends).
type HTTPClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// HTTPConfig configures the bridge client.
type HTTPConfig struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
}

// NewHTTPClient creates a calendar bridge client.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("calendar: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		apiToken:   strings.TrimSpace(cfg.APIToken),
		httpClient: httpClient,
	}, nil
}

type eventResponse struct {
	EventID string `json:"event_id"`
}

// CreateEvent mirrors an appointment and returns the provider event id.
func (c *HTTPClient) CreateEvent(ctx context.Context, ev Event) (string, error) {
	var resp eventResponse
	if err := c.do(ctx, http.MethodPost, "/v1/events", ev, &resp); err != nil {
		return "", err
	}
	if resp.EventID == "" {
		return "", errors.New("calendar: bridge returned no event id")
	}
	return resp.EventID, nil
}

// UpdateEvent re-mirrors an appointment onto an existing event.
func (c *HTTPClient) UpdateEvent(ctx context.Context, eventID string, ev Event) error {
	return c.do(ctx, http.MethodPut, "/v1/events/"+url.PathEscape(eventID), ev, nil)
}

// DeleteEvent removes a mirrored event. A missing event is not an error;
// the mirror is already gone.
func (c *HTTPClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.do(ctx, http.MethodDelete, "/v1/events/"+url.PathEscape(eventID), nil, nil)
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
		return nil
	}
	return err
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("calendar: bridge returned status %d: %s", e.code, e.body)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("calendar: encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("calendar: decode response: %w", err)
		}
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
