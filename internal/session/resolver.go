package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gwi.com/chat-dashboard/internal/auth"
	"gwi.com/chat-dashboard/internal/client"
	"gwi.com/chat-dashboard/internal/store"
)

// ChatAPI is the part of the backend the resolver needs.
type ChatAPI interface {
	NewChatID(ctx context.Context, accessToken string) (string, error)
	History(ctx context.Context, chatID, accessToken string) ([]client.Message, error)
	Sessions(ctx context.Context, accessToken string) ([]client.ChatSession, error)
}

// Resolver hands out a usable access token and the active chat, reading and
// writing the credential store as the single source of truth.
type Resolver struct {
	creds     *store.CredentialStore
	refresher *Refresher
	api       ChatAPI
	threshold time.Duration
	now       func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithThreshold sets the renewal window. Defaults to auth.DefaultRenewThreshold.
func WithThreshold(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.threshold = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(creds *store.CredentialStore, refresher *Refresher, api ChatAPI, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		creds:     creds,
		refresher: refresher,
		api:       api,
		threshold: auth.DefaultRenewThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetValidToken returns an access token that is outside the renewal window,
// refreshing it first if needed. ok is false when the user is not logged in
// or the refresh failed; in the latter case all credentials are cleared.
func (r *Resolver) GetValidToken(ctx context.Context) (token string, ok bool) {
	if !r.creds.HasValidPair() {
		return "", false
	}

	token = r.creds.AccessToken()
	if !auth.IsExpiringSoon(token, r.now(), r.threshold) {
		return token, true
	}

	token, err := r.refresher.Refresh(ctx)
	if err != nil {
		log.Warn().Err(err).Str("component", "resolver").Msg("token refresh failed, clearing credentials")
		if err := r.creds.Clear(); err != nil {
			log.Error().Err(err).Str("component", "resolver").Msg("failed to clear credentials")
		}
		return "", false
	}
	return token, true
}

// GetActiveChatID returns the persisted chat id, allocating and persisting a
// new one when none is stored. On failure nothing is persisted.
func (r *Resolver) GetActiveChatID(ctx context.Context, token string) (string, error) {
	if chatID := r.creds.ActiveChatID(); chatID != "" {
		return chatID, nil
	}

	chatID, err := r.api.NewChatID(ctx, token)
	if err != nil {
		log.Error().Err(err).Str("component", "resolver").Msg("could not allocate chat id")
		return "", err
	}
	if err := r.creds.SetActiveChatID(chatID); err != nil {
		return "", errors.Wrap(err, "persist chat id")
	}
	log.Info().Str("component", "resolver").Str("chat_id", chatID).Msg("allocated chat id")
	return chatID, nil
}

// FetchHistory loads the messages of chatID. A failure means the stored chat
// id cannot be trusted any more, so it is dropped before the error returns.
func (r *Resolver) FetchHistory(ctx context.Context, chatID, token string) ([]client.Message, error) {
	history, err := r.api.History(ctx, chatID, token)
	if err != nil {
		log.Error().Err(err).Str("component", "resolver").Str("chat_id", chatID).Msg("history fetch failed, dropping chat id")
		if r.creds.ActiveChatID() == chatID {
			if cerr := r.creds.ClearActiveChatID(); cerr != nil {
				log.Error().Err(cerr).Str("component", "resolver").Msg("failed to drop chat id")
			}
		}
		return nil, err
	}
	return history, nil
}

// FetchSessions lists prior chats. Failures degrade to an empty list.
func (r *Resolver) FetchSessions(ctx context.Context, token string) []client.ChatSession {
	sessions, err := r.api.Sessions(ctx, token)
	if err != nil {
		log.Warn().Err(err).Str("component", "resolver").Msg("session list unavailable")
		return []client.ChatSession{}
	}
	if sessions == nil {
		return []client.ChatSession{}
	}
	return sessions
}

// SelectChat makes chatID the persisted active chat.
func (r *Resolver) SelectChat(chatID string) error {
	return r.creds.SetActiveChatID(chatID)
}

// ResetChat forgets the persisted active chat.
func (r *Resolver) ResetChat() error {
	return r.creds.ClearActiveChatID()
}
