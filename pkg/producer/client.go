package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/logrelay/pkg/relay"
)

// DefaultServerURL is the relay used when none is configured
const DefaultServerURL = "http://localhost:8080"

// ClientConfig holds relay client configuration
type ClientConfig struct {
	ServerURL string
	// ViewerURL is a format string with one %s for the session id.
	ViewerURL  string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// Client issues sessions and opens relay connections
type Client struct {
	baseURL    *url.URL
	viewerURL  string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates a relay client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL scheme: %q", base.Scheme)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	return &Client{
		baseURL:    base,
		viewerURL:  cfg.ViewerURL,
		httpClient: cfg.HTTPClient,
		dialer:     cfg.Dialer,
	}, nil
}

// CreateSession asks the relay for a fresh session id
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+"/api/session", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build session request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("session request failed with status %d", resp.StatusCode)
	}

	var body relay.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if body.SessionID == "" {
		return "", fmt.Errorf("session response has no session_id")
	}
	return body.SessionID, nil
}

// Health fetches the relay health report
func (c *Client) Health(ctx context.Context) (relay.HealthResponse, error) {
	var health relay.HealthResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+"/healthz", nil)
	if err != nil {
		return health, fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return health, fmt.Errorf("failed to request health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("health request failed with status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return health, fmt.Errorf("failed to decode health response: %w", err)
	}
	return health, nil
}

// ListSessions returns the sessions currently registered on the relay
func (c *Client) ListSessions(ctx context.Context) ([]relay.SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+"/api/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sessions request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sessions request failed with status %d", resp.StatusCode)
	}

	var sessions []relay.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions response: %w", err)
	}
	return sessions, nil
}

// Dial opens the relay connection for a session
func (c *Client) Dial(ctx context.Context, sessionID string) (*Conn, error) {
	ws, resp, err := c.dialer.DialContext(ctx, c.WebSocketURL(sessionID), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", relay.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// WebSocketURL returns the relay endpoint for a session
func (c *Client) WebSocketURL(sessionID string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + url.PathEscape(sessionID)
	return u.String()
}

// ViewerURL returns where a human can watch the session
func (c *Client) ViewerURL(sessionID string) string {
	if c.viewerURL == "" {
		return c.WebSocketURL(sessionID)
	}
	if strings.Contains(c.viewerURL, "%s") {
		return fmt.Sprintf(c.viewerURL, sessionID)
	}
	return strings.TrimRight(c.viewerURL, "/") + "/" + sessionID
}

// Conn is one relay connection. Writes are serialized; reads must come
// from a single goroutine.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// Send writes one line as a text frame
func (c *Conn) Send(ctx context.Context, line string) error {
	return c.write(ctx, []byte(line))
}

// SendChat writes a chat message
func (c *Conn) SendChat(ctx context.Context, msg relay.ChatMessage) error {
	data, err := relay.EncodeChat(msg)
	if err != nil {
		return err
	}
	return c.write(ctx, data)
}

func (c *Conn) write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Receive reads the next text frame sent by the relay
func (c *Conn) Receive() (relay.Frame, error) {
	for {
		messageType, payload, err := c.ws.ReadMessage()
		if err != nil {
			return relay.Frame{}, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		return relay.DecodeFrame(payload)
	}
}

// Close sends a normal close frame and closes the connection
func (c *Conn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	if closeErr := c.ws.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
