package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/chat-dashboard/internal/auth"
	"gwi.com/chat-dashboard/internal/client"
)

func newTestBackend(t *testing.T) (*client.Client, *Registry) {
	t.Helper()
	registry := NewRegistry()
	issuer := auth.NewIssuer("test-secret", 15*time.Minute, time.Hour)
	srv := httptest.NewServer(NewRouter(NewAPIHandler(registry, issuer)))
	t.Cleanup(srv.Close)
	return client.New(srv.URL), registry
}

func login(t *testing.T, c *client.Client, user string) *client.TokenResponse {
	t.Helper()
	tokens, err := c.Login(context.Background(), user)
	require.NoError(t, err)
	return tokens
}

func TestHealth(t *testing.T) {
	registry := NewRegistry()
	h := NewRouter(NewAPIHandler(registry, auth.NewIssuer("s", time.Minute, time.Hour)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLoginAndRefreshRotation(t *testing.T) {
	c, _ := newTestBackend(t)
	tokens := login(t, c, "obiwan")
	assert.Equal(t, "bearer", tokens.TokenType)

	claims, err := auth.Decode(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.TypeAccess, claims.Type)

	rotated, err := c.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// a spent refresh token is rejected
	_, err = c.Refresh(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, client.ErrRefreshRejected)

	// an access token is not a refresh token
	_, err = c.Refresh(context.Background(), rotated.AccessToken)
	assert.ErrorIs(t, err, client.ErrRefreshRejected)
}

func TestChatEndpointsRequireAccessToken(t *testing.T) {
	c, _ := newTestBackend(t)
	tokens := login(t, c, "obiwan")

	_, err := c.NewChatID(context.Background(), "")
	assert.ErrorIs(t, err, client.ErrChatAllocationFailed)

	_, err = c.Sessions(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, client.ErrSessionsFetchFailed)
}

func TestChatLifecycle(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()
	access := login(t, c, "obiwan").AccessToken

	first, err := c.NewChatID(ctx, access)
	require.NoError(t, err)
	second, err := c.NewChatID(ctx, access)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	history, err := c.History(ctx, first, access)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, c.PostMessage(ctx, first, access, "Hello there"))
	history, err = c.History(ctx, first, access)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.JSONEq(t, `{"role":"user","content":[{"type":"text","text":"Hello there"}]}`, string(history[0]))

	sessions, err := c.Sessions(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, []client.ChatSession{
		{ChatID: second, Title: "New Chat"},
		{ChatID: first, Title: "Hello there"},
	}, sessions)
}

func TestHistoryOfForeignOrUnknownChat(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()
	obiwan := login(t, c, "obiwan").AccessToken
	anakin := login(t, c, "anakin").AccessToken

	chatID, err := c.NewChatID(ctx, obiwan)
	require.NoError(t, err)

	_, err = c.History(ctx, chatID, anakin)
	assert.ErrorIs(t, err, client.ErrHistoryFetchFailed)
	_, err = c.History(ctx, "does-not-exist", obiwan)
	assert.ErrorIs(t, err, client.ErrHistoryFetchFailed)

	sessions, err := c.Sessions(ctx, anakin)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestHistoryWithoutChatHeader(t *testing.T) {
	registry := NewRegistry()
	issuer := auth.NewIssuer("s", time.Minute, time.Hour)
	access, _, err := issuer.IssuePair("yoda")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	NewRouter(NewAPIHandler(registry, issuer)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body["history"])
	assert.Empty(t, body["history"])
}

func TestSessionTitles(t *testing.T) {
	registry := NewRegistry()
	long := strings.Repeat("é", 80)
	registry.AppendMessage("u", "c1", Message{Role: RoleUser, Content: []ContentPart{{Type: "text", Text: long}}})
	registry.AppendMessage("u", "c2", Message{Role: RoleUser, Content: []ContentPart{{Type: "image"}}})

	sessions := registry.Sessions("u")
	require.Len(t, sessions, 2)
	assert.Equal(t, "c2", sessions[0].ChatID)
	assert.Equal(t, defaultTitle, sessions[0].Title)
	assert.Equal(t, strings.Repeat("é", maxTitleRunes), sessions[1].Title)

	assert.False(t, registry.AppendMessage("someone-else", "c1", Message{Role: RoleUser}))
}

func TestSessionsAreCapped(t *testing.T) {
	registry := NewRegistry()
	for i := 0; i < maxSessions+5; i++ {
		registry.CreateChat("u")
	}
	assert.Len(t, registry.Sessions("u"), maxSessions)
}
