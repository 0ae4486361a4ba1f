// Package daily provides a minimal client for the Daily REST API: creating
// ephemeral rooms and minting meeting tokens for a voice session.
package daily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-voicebot/internal/httpc"
)

const defaultBaseURL = "https://api.daily.co/v1"

// RoomExpiry is how long a demo room lives before participants are ejected.
const RoomExpiry = 10 * time.Minute

// Client talks to the Daily REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	maxRetries int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With("component", "daily") }
}

// WithRetry configures retry behavior for 429/5xx responses.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// NewClient creates a Daily API client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		http:       httpc.Client,
		logger:     slog.Default().With("component", "daily"),
		maxRetries: 2,
		retryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Room is a provisioned Daily room.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RoomProperties controls room behavior. Exp is a Unix timestamp.
type RoomProperties struct {
	Exp                  int64 `json:"exp,omitempty"`
	EnableChat           bool  `json:"enable_chat"`
	EnableEmojiReactions bool  `json:"enable_emoji_reactions"`
	EjectAtRoomExp       bool  `json:"eject_at_room_exp"`
}

// DemoRoomProperties returns the properties used for demo sessions: a
// short-lived room with chat and reactions off, ejecting everyone at expiry.
func DemoRoomProperties() RoomProperties {
	return RoomProperties{
		Exp:                  time.Now().Add(RoomExpiry).Unix(),
		EnableChat:           false,
		EnableEmojiReactions: false,
		EjectAtRoomExp:       true,
	}
}

// CreateRoom provisions a new room.
func (c *Client) CreateRoom(ctx context.Context, props RoomProperties) (*Room, error) {
	body := map[string]any{"properties": props}

	var room Room
	if err := c.post(ctx, "/rooms", body, &room); err != nil {
		return nil, err
	}

	c.logger.Info("created room", "name", room.Name, "url", room.URL)
	return &room, nil
}

// CreateToken mints a meeting token for the room identified by roomURL.
// The token expires after the given duration.
func (c *Client) CreateToken(ctx context.Context, roomURL string, expiry time.Duration) (string, error) {
	name, err := roomNameFromURL(roomURL)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"properties": map[string]any{
			"room_name": name,
			"exp":       time.Now().Add(expiry).Unix(),
		},
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/meeting-tokens", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// roomNameFromURL extracts the room name from a room URL such as
// https://example.daily.co/my-room.
func roomNameFromURL(roomURL string) (string, error) {
	trimmed := strings.TrimSuffix(roomURL, "/")
	if trimmed == "" {
		return "", ErrNoRoomURL
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return "", fmt.Errorf("daily: malformed room URL %q", roomURL)
	}
	return trimmed[idx+1:], nil
}

// post sends a JSON request and decodes the response, retrying 429/5xx.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("daily: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("daily: create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("daily: %s: %w", path, err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := parseError(resp)
			resp.Body.Close()
			lastErr = apiErr
			if e, ok := apiErr.(*APIError); ok && e.IsRetryable() {
				c.logger.Warn("retrying request", "path", path, "attempt", attempt+1, "status", e.StatusCode)
				continue
			}
			return apiErr
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("daily: decode response: %w", err)
		}
		return nil
	}

	return lastErr
}

// parseError reads an error response body. Daily reports errors as
// {"error": "...", "info": "..."}.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error string `json:"error"`
		Info  string `json:"info"`
	}

	info := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Info != "" {
		info = errResp.Info
	} else if errResp.Error != "" {
		info = errResp.Error
	}

	return &APIError{StatusCode: resp.StatusCode, Info: info}
}
