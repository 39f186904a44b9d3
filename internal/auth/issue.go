package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Issuer signs and validates HS256 tokens for the development backend.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the issuer's time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// IssuePair returns a fresh access and refresh token for userID.
func (i *Issuer) IssuePair(userID string) (access string, refresh string, err error) {
	access, err = i.generateJWT(userID, TypeAccess, i.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = i.generateJWT(userID, TypeRefresh, i.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (i *Issuer) generateJWT(userID, tokenType string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"type": tokenType,
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate checks signature, expiry and token type, and returns the subject
// and token id.
func (i *Issuer) Validate(tokenString, wantType string) (subject string, tokenID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))

	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}
	if t, _ := claims["type"].(string); t != wantType {
		return "", "", fmt.Errorf("expected %s token, got %q", wantType, t)
	}
	subject, err = claims.GetSubject()
	if err != nil || subject == "" {
		return "", "", fmt.Errorf("token has no subject")
	}
	tokenID, _ = claims["jti"].(string)
	return subject, tokenID, nil
}
