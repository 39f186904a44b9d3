package api

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTitle  = "New Chat"
	maxTitleRunes = 50
	maxSessions   = 100
)

// Registry keeps chats and consumed refresh tokens in memory.
type Registry struct {
	mu            sync.Mutex
	chats         map[string]*Chat // by chat id
	seq           uint64
	usedRefreshes map[string]time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		chats:         make(map[string]*Chat),
		usedRefreshes: make(map[string]time.Time),
	}
}

// CreateChat allocates a new empty chat for userID.
func (r *Registry) CreateChat(userID string) *Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	chat := &Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Messages:  []Message{},
		CreatedAt: time.Now(),
		seq:       r.seq,
	}
	r.chats[chat.ID] = chat
	return chat
}

// History returns a copy of the chat's messages. ok is false when the chat
// does not exist or belongs to someone else.
func (r *Registry) History(userID, chatID string) (messages []Message, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[chatID]
	if !ok || chat.UserID != userID {
		return nil, false
	}
	return append([]Message{}, chat.Messages...), true
}

// AppendMessage stores a message, creating the chat under chatID if needed.
func (r *Registry) AppendMessage(userID, chatID string, msg Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[chatID]
	if !ok {
		r.seq++
		chat = &Chat{ID: chatID, UserID: userID, CreatedAt: time.Now(), seq: r.seq}
		r.chats[chatID] = chat
	}
	if chat.UserID != userID {
		return false
	}
	chat.Messages = append(chat.Messages, msg)
	return true
}

// Sessions lists userID's chats newest first, capped at maxSessions.
func (r *Registry) Sessions(userID string) []SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var owned []*Chat
	for _, chat := range r.chats {
		if chat.UserID == userID {
			owned = append(owned, chat)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].seq > owned[j].seq })
	if len(owned) > maxSessions {
		owned = owned[:maxSessions]
	}

	sessions := make([]SessionSummary, 0, len(owned))
	for _, chat := range owned {
		sessions = append(sessions, SessionSummary{ChatID: chat.ID, Title: titleOf(chat)})
	}
	return sessions
}

// ConsumeRefresh marks a refresh token id as spent. It reports false if the
// id was already used.
func (r *Registry) ConsumeRefresh(tokenID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, used := r.usedRefreshes[tokenID]; used {
		return false
	}
	r.usedRefreshes[tokenID] = time.Now()
	return true
}

// titleOf uses the first message's text, truncated, or the default title.
func titleOf(chat *Chat) string {
	if len(chat.Messages) == 0 {
		return defaultTitle
	}
	for _, part := range chat.Messages[0].Content {
		if part.Type == "text" && part.Text != "" {
			runes := []rune(part.Text)
			if len(runes) > maxTitleRunes {
				runes = runes[:maxTitleRunes]
			}
			return string(runes)
		}
	}
	return defaultTitle
}
