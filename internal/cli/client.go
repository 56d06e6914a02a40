package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mcoot/guessnumber-go/internal/api/apierr"
)

// Client talks to the relay's JSON API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is an error reported by the server
type APIError struct {
	Status int
	apierr.APIError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Health fetches relay liveness and counts
func (c *Client) Health(ctx context.Context) (*HealthResult, error) {
	var result HealthResult
	if err := c.getJSON(ctx, "/api/v1/health", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Room fetches a room from the presence directory
func (c *Client) Room(ctx context.Context, id string) (*Room, error) {
	var room Room
	if err := c.getJSON(ctx, roomPath(id), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// Rooms lists every live room
func (c *Client) Rooms(ctx context.Context) (*RoomList, error) {
	var list RoomList
	if err := c.getJSON(ctx, "/api/v1/rooms", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Participant fetches a connected participant
func (c *Client) Participant(ctx context.Context, id string) (*Participant, error) {
	var p Participant
	if err := c.getJSON(ctx, "/api/v1/participants/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RoomQR fetches a room's invite QR code as a PNG; size 0 uses the
// server default
func (c *Client) RoomQR(ctx context.Context, id string, size int) ([]byte, error) {
	path := roomPath(id) + "/qr"
	if size > 0 {
		path += "?size=" + strconv.Itoa(size)
	}
	return c.get(ctx, path, "image/png")
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	body, err := c.get(ctx, path, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp apierr.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Code != "" {
			return nil, &APIError{Status: resp.StatusCode, APIError: errResp.Error}
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func roomPath(id string) string {
	return "/api/v1/rooms/" + url.PathEscape(id)
}
