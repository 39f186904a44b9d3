// Package client talks to the chat backend's auth and chat-session endpoints.
// Every call is authenticated with a bearer token supplied by the caller; the
// client itself holds no credentials and is safe for concurrent use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Endpoint paths, relative to the base URL.
const (
	PathLogin    = "/api/auth/login"
	PathRefresh  = "/api/auth/refresh"
	PathNewChat  = "/api/chat/new-id"
	PathHistory  = "/api/chat/history"
	PathSessions = "/api/chat/sessions"
	PathMessages = "/api/chat/messages"

	// HeaderChatID selects the conversation for history and message calls.
	HeaderChatID = "X-Chat-ID"
)

var (
	ErrRefreshRejected      = errors.New("refresh token rejected")
	ErrMalformedResponse    = errors.New("malformed token response")
	ErrChatAllocationFailed = errors.New("chat id allocation failed")
	ErrHistoryFetchFailed   = errors.New("chat history fetch failed")
	ErrSessionsFetchFailed  = errors.New("chat sessions fetch failed")
)

// StatusError carries a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return http.StatusText(e.StatusCode)
	}
	return http.StatusText(e.StatusCode) + ": " + e.Body
}

// Client provides HTTP methods for the chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// New creates a client for the backend at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL of the client.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TokenResponse is the body of the login and refresh endpoints.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// ChatSession is one entry of the session list.
type ChatSession struct {
	ChatID string `json:"chat_id"`
	Title  string `json:"title"`
}

// Message is a history record. Its shape belongs to the backend and the UI.
type Message = json.RawMessage

// Refresh trades a refresh token for a new pair. Both tokens must be present
// in the response, otherwise ErrMalformedResponse is returned.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, PathRefresh, refreshToken, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "refresh")
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fail(ErrRefreshRejected, err)
	}
	return decodeTokens(resp.Body)
}

// Login obtains a pair from the development backend.
func (c *Client) Login(ctx context.Context, userID string) (*TokenResponse, error) {
	body, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return nil, errors.Wrap(err, "login: marshal")
	}
	resp, err := c.do(ctx, http.MethodPost, PathLogin, "", nil, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, errors.Wrap(err, "login")
	}
	return decodeTokens(resp.Body)
}

// NewChatID asks the backend to allocate a chat identifier.
func (c *Client) NewChatID(ctx context.Context, accessToken string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, PathNewChat, accessToken, nil, nil)
	if err != nil {
		return "", fail(ErrChatAllocationFailed, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", fail(ErrChatAllocationFailed, err)
	}

	var out struct {
		ActiveChatID string `json:"active_chat_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fail(ErrChatAllocationFailed, errors.Wrap(err, "decode"))
	}
	if out.ActiveChatID == "" {
		return "", errors.Wrap(ErrChatAllocationFailed, "empty active_chat_id")
	}
	return out.ActiveChatID, nil
}

// History returns the stored messages of chatID, oldest first.
func (c *Client) History(ctx context.Context, chatID, accessToken string) ([]Message, error) {
	resp, err := c.do(ctx, http.MethodGet, PathHistory, accessToken, chatHeader(chatID), nil)
	if err != nil {
		return nil, fail(ErrHistoryFetchFailed, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fail(ErrHistoryFetchFailed, err)
	}

	var out struct {
		History []Message `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fail(ErrHistoryFetchFailed, errors.Wrap(err, "decode"))
	}
	if out.History == nil {
		out.History = []Message{}
	}
	return out.History, nil
}

// Sessions lists the user's prior chats in server order.
func (c *Client) Sessions(ctx context.Context, accessToken string) ([]ChatSession, error) {
	resp, err := c.do(ctx, http.MethodGet, PathSessions, accessToken, nil, nil)
	if err != nil {
		return nil, fail(ErrSessionsFetchFailed, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fail(ErrSessionsFetchFailed, err)
	}

	var out struct {
		Sessions []ChatSession `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fail(ErrSessionsFetchFailed, errors.Wrap(err, "decode"))
	}
	return out.Sessions, nil
}

// PostMessage appends a user message to chatID on the development backend.
func (c *Client) PostMessage(ctx context.Context, chatID, accessToken, text string) error {
	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return errors.Wrap(err, "post message: marshal")
	}
	resp, err := c.do(ctx, http.MethodPost, PathMessages, accessToken, chatHeader(chatID), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "post message")
	}
	defer resp.Body.Close()
	return errors.Wrap(checkStatus(resp), "post message")
}

func (c *Client) do(ctx context.Context, method, path, bearer string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// fail keeps both the sentinel and the underlying cause in the chain.
func fail(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

func chatHeader(chatID string) http.Header {
	h := http.Header{}
	h.Set(HeaderChatID, chatID)
	return h
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func decodeTokens(r io.Reader) (*TokenResponse, error) {
	var out TokenResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fail(ErrMalformedResponse, errors.Wrap(err, "decode"))
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "access_token and refresh_token are required")
	}
	return &out, nil
}
