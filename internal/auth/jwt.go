package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// DefaultRenewThreshold is how long before expiry an access token is renewed.
const DefaultRenewThreshold = 300 * time.Second

// ErrDecode is returned when a token's claims cannot be read. It is never
// fatal: callers treat an undecodable token as not expiring.
var ErrDecode = errors.New("token claims could not be decoded")

// Claims is the decoded, unverified payload of an access token.
type Claims struct {
	ExpiresAt *time.Time
	Type      string
	Extra     map[string]any
}

// Decode reads the token payload without checking the signature. The backend
// validates every request, so the client only needs the timestamps.
func Decode(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, errors.Wrap(ErrDecode, err.Error())
	}

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, errors.Wrap(ErrDecode, err.Error())
	}

	claims := Claims{Extra: make(map[string]any, len(mc))}
	if exp != nil {
		t := exp.Time
		claims.ExpiresAt = &t
	}
	for k, v := range mc {
		switch k {
		case "exp":
		case "type":
			claims.Type, _ = v.(string)
		default:
			claims.Extra[k] = v
		}
	}
	return claims, nil
}

// IsExpiringSoon reports whether the token expires in less than threshold.
// Tokens that fail to decode or carry no exp claim are never expiring.
func IsExpiringSoon(token string, now time.Time, threshold time.Duration) bool {
	claims, err := Decode(token)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	secondsRemaining := claims.ExpiresAt.Unix() - now.Unix()
	return secondsRemaining < int64(threshold/time.Second)
}
