// ABOUTME: HTTP client for the huddle API: register, login and conversation history
// ABOUTME: Carries the login token on subsequent requests and the realtime dial

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response carrying the server's {"error": ...} message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Message mirrors the server's message JSON.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	SenderID       int64     `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sentAt"`
}

// User is the login and registration response.
type User struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Token       string `json:"token,omitempty"`
}

// Client talks to one huddle server.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New creates a client for baseURL (e.g. http://localhost:8080).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken sets the bearer token sent with history requests and the realtime dial.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current bearer token, if any.
func (c *Client) Token() string {
	return c.token
}

// Register creates a user.
func (c *Client) Register(ctx context.Context, userID int64, password, displayName string) (*User, error) {
	var user User
	body := map[string]any{"userId": userID, "password": password, "displayName": displayName}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and stores the returned token, if the server issued one.
func (c *Client) Login(ctx context.Context, userID int64, password string) (*User, error) {
	var user User
	body := map[string]any{"userId": userID, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &user); err != nil {
		return nil, err
	}
	if user.Token != "" {
		c.token = user.Token
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
