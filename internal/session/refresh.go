package session

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"gwi.com/chat-dashboard/internal/client"
	"gwi.com/chat-dashboard/internal/store"
)

// ErrNoRefreshToken is returned when a refresh is requested with nothing stored.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// TokenAPI is the part of the backend the refresher needs.
type TokenAPI interface {
	Refresh(ctx context.Context, refreshToken string) (*client.TokenResponse, error)
}

// Refresher exchanges the stored refresh token for a new pair. Concurrent
// callers share a single in-flight exchange, so the initialization path and
// the renewal timer never spend the same refresh token twice.
type Refresher struct {
	api    TokenAPI
	creds  *store.CredentialStore
	flight singleflight.Group
}

func NewRefresher(api TokenAPI, creds *store.CredentialStore) *Refresher {
	return &Refresher{api: api, creds: creds}
}

// Refresh returns the new access token after committing the new pair. On any
// error the store is left as it was. The shared exchange ignores the
// cancellation of whichever caller started it, so joined callers only see
// failures of the exchange itself.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	exchangeCtx := context.WithoutCancel(ctx)
	v, err, shared := r.flight.Do("refresh", func() (interface{}, error) {
		return r.refresh(exchangeCtx)
	})
	if shared {
		log.Debug().Str("component", "refresher").Msg("joined in-flight refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Refresher) refresh(ctx context.Context) (string, error) {
	refreshToken := r.creds.RefreshToken()
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	tokens, err := r.api.Refresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	if err := r.creds.SetTokens(tokens.AccessToken, tokens.RefreshToken); err != nil {
		return "", errors.Wrap(err, "commit refreshed tokens")
	}
	log.Info().Str("component", "refresher").Msg("access token renewed")
	return tokens.AccessToken, nil
}
