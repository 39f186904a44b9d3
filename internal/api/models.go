package api

import "time"

// Roles a stored message can have.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentPart is one piece of a stored message. Only text parts are produced here.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message is a history record as the backend stores it.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type Chat struct {
	ID        string
	UserID    string
	Messages  []Message
	CreatedAt time.Time
	seq       uint64
}

// SessionSummary is an entry of the sessions listing.
type SessionSummary struct {
	ChatID string `json:"chat_id"`
	Title  string `json:"title"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
