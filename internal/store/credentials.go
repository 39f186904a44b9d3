package store

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Keys under which client state is persisted.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyActiveChatID = "active_chat_id"
)

// ErrIncompletePair is returned when SetTokens is given an empty token.
var ErrIncompletePair = errors.New("access and refresh token must both be set")

// CredentialStore owns the persisted token pair and active chat id.
// Read failures are logged and reported as absence.
type CredentialStore struct {
	storage Storage
}

func NewCredentialStore(storage Storage) *CredentialStore {
	return &CredentialStore{storage: storage}
}

func (c *CredentialStore) AccessToken() string {
	return c.get(KeyAccessToken)
}

func (c *CredentialStore) RefreshToken() string {
	return c.get(KeyRefreshToken)
}

// SetTokens replaces both tokens in a single write.
func (c *CredentialStore) SetTokens(access, refresh string) error {
	if access == "" || refresh == "" {
		return ErrIncompletePair
	}
	err := c.storage.SetMany(map[string]string{
		KeyAccessToken:  access,
		KeyRefreshToken: refresh,
	})
	return errors.Wrap(err, "failed to store token pair")
}

// Clear removes the tokens and the chat id together.
func (c *CredentialStore) Clear() error {
	err := c.storage.Delete(KeyAccessToken, KeyRefreshToken, KeyActiveChatID)
	return errors.Wrap(err, "failed to clear credentials")
}

// HasValidPair reports whether both tokens are present. Expiry is not checked.
func (c *CredentialStore) HasValidPair() bool {
	return c.AccessToken() != "" && c.RefreshToken() != ""
}

func (c *CredentialStore) ActiveChatID() string {
	return c.get(KeyActiveChatID)
}

func (c *CredentialStore) SetActiveChatID(chatID string) error {
	if chatID == "" {
		return errors.New("chat id must not be empty")
	}
	err := c.storage.SetMany(map[string]string{KeyActiveChatID: chatID})
	return errors.Wrap(err, "failed to store active chat id")
}

func (c *CredentialStore) ClearActiveChatID() error {
	return errors.Wrap(c.storage.Delete(KeyActiveChatID), "failed to clear active chat id")
}

func (c *CredentialStore) get(key string) string {
	v, err := c.storage.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("credential store read failed")
		}
		return ""
	}
	return v
}
