package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"gwi.com/chat-dashboard/internal/auth"
	"gwi.com/chat-dashboard/internal/client"
)

type contextKey string

const userIDKey contextKey = "userID"

type APIHandler struct {
	registry *Registry
	issuer   *auth.Issuer
}

func NewAPIHandler(registry *Registry, issuer *auth.Issuer) *APIHandler {
	return &APIHandler{registry: registry, issuer: issuer}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		userID, _, err := h.issuer.Validate(tokenString, auth.TypeAccess)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

type LoginRequest struct {
	UserID string `json:"user_id"`
}

// LoginHandler issues a token pair to any user id. Development use only.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "User ID is required", http.StatusBadRequest)
		return
	}
	h.writeTokens(w, req.UserID)
}

// RefreshHandler rotates the pair. Each refresh token is accepted once.
func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		http.Error(w, "Authorization header is required", http.StatusUnauthorized)
		return
	}

	userID, tokenID, err := h.issuer.Validate(tokenString, auth.TypeRefresh)
	if err != nil {
		http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}
	if !h.registry.ConsumeRefresh(tokenID) {
		log.Warn().Str("user_id", userID).Msg("refresh token reused")
		http.Error(w, "Refresh token already used", http.StatusUnauthorized)
		return
	}
	h.writeTokens(w, userID)
}

func (h *APIHandler) writeTokens(w http.ResponseWriter, userID string) {
	access, refresh, err := h.issuer.IssuePair(userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Error generating tokens")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
}

func (h *APIHandler) NewChatIDHandler(w http.ResponseWriter, r *http.Request) {
	chat := h.registry.CreateChat(userIDFrom(r))
	writeJSON(w, http.StatusOK, map[string]string{"active_chat_id": chat.ID})
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	chatID := r.Header.Get(client.HeaderChatID)
	if chatID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"history": []Message{}})
		return
	}

	history, ok := h.registry.History(userIDFrom(r), chatID)
	if !ok {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *APIHandler) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.registry.Sessions(userIDFrom(r))})
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	chatID := r.Header.Get(client.HeaderChatID)
	if chatID == "" {
		http.Error(w, "X-Chat-ID header is required", http.StatusBadRequest)
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		return
	}

	msg := Message{Role: RoleUser, Content: []ContentPart{{Type: "text", Text: req.Content}}}
	if !h.registry.AppendMessage(userIDFrom(r), chatID, msg) {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}
