package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oakmere/wallcal/pkg/models"
)

const defaultTimeout = 10 * time.Second

var (
	ErrLoginRejected   = errors.New("login rejected")
	ErrNoToken         = errors.New("no token supplied")
	ErrTokenInvalid    = errors.New("token invalid or expired")
	ErrInvalidDocument = errors.New("document rejected by server")
)

type Config struct {
	// BaseURL of the service, e.g. "http://localhost:8080".
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is the API client for the calendar service. Read calls need no
// token; write calls use the token captured by Login (or set explicitly).
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	token      string
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL '%s': %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithGroup("wallcal_client"),
	}, nil
}

// SetToken installs a previously issued bearer token.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = path
	return u.String()
}

func (c *Client) doJSON(method, path string, body any, authed bool, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.endpoint(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrNoToken
	case http.StatusForbidden:
		return ErrTokenInvalid
	case http.StatusBadRequest:
		return ErrInvalidDocument
	default:
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Login authenticates with the admin password. On success the minted token
// is stored on the client and returned.
func (c *Client) Login(password string) (string, error) {
	encoded, err := json.Marshal(models.LoginRequest{Password: password})
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Post(
		c.endpoint("/api/auth/login"), "application/json", bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrLoginRejected
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var login models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if login.Token == nil || *login.Token == "" {
		return "", ErrLoginRejected
	}

	c.token = *login.Token
	return c.token, nil
}

// GetCalendar fetches the document for a year. A year with no data returns
// the server's empty skeleton, not an error.
func (c *Client) GetCalendar(year int) (*models.CalendarDocument, error) {
	var doc models.CalendarDocument
	if err := c.doJSON(http.MethodGet, fmt.Sprintf("/api/data/%d", year), nil, false, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveCalendar replaces the document for a year. Requires a logged-in
// client.
func (c *Client) SaveCalendar(year int, doc *models.CalendarDocument) error {
	return c.doJSON(http.MethodPost, fmt.Sprintf("/api/data/%d", year), doc, true, nil)
}

func (c *Client) GetConfig() (*models.Configuration, error) {
	var cfg models.Configuration
	if err := c.doJSON(http.MethodGet, "/api/config", nil, false, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) SaveConfig(cfg *models.Configuration) error {
	return c.doJSON(http.MethodPost, "/api/config", cfg, true, nil)
}

// Subscribe opens the realtime channel at the service root and invokes
// onEvent for every broadcast envelope until ctx is cancelled or the
// connection drops. The transport answers liveness pings automatically; no
// application messages are sent upstream.
func (c *Client) Subscribe(ctx context.Context, onEvent func(models.Envelope)) error {
	wsURL := *c.baseURL
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial realtime channel: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var envelope models.Envelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			c.logger.Warn("Dropping undecodable broadcast", "error", err)
			continue
		}
		onEvent(envelope)
	}
}
