package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unrelated-secret"))
	require.NoError(t, err)
	return s
}

func TestDecode(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	token := signed(t, jwt.MapClaims{"exp": exp.Unix(), "type": "access", "sub": "luke"})

	claims, err := Decode(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, exp.Equal(*claims.ExpiresAt))
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "luke", claims.Extra["sub"])
	assert.NotContains(t, claims.Extra, "exp")
}

func TestDecodeFailure(t *testing.T) {
	for _, token := range []string{"", "not-a-jwt", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30"} {
		_, err := Decode(token)
		assert.ErrorIs(t, err, ErrDecode, token)
	}

	_, err := Decode(signed(t, jwt.MapClaims{"exp": "tomorrow"}))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestIsExpiringSoon(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		remaining int64
		want      bool
	}{
		{"already expired", -10, true},
		{"well inside window", 100, true},
		{"one second inside window", 299, true},
		{"exactly at threshold", 300, false},
		{"outside window", 301, false},
		{"far away", 3600, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := signed(t, jwt.MapClaims{"exp": now.Unix() + tt.remaining})
			assert.Equal(t, tt.want, IsExpiringSoon(token, now, DefaultRenewThreshold))
		})
	}
}

func TestIsExpiringSoonFailsOpen(t *testing.T) {
	now := time.Now()
	assert.False(t, IsExpiringSoon("garbage", now, DefaultRenewThreshold))
	assert.False(t, IsExpiringSoon(signed(t, jwt.MapClaims{"sub": "no-exp"}), now, DefaultRenewThreshold))
}

func TestIssuerRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := NewIssuer("secret", 15*time.Minute, time.Hour).WithClock(func() time.Time { return now })

	access, refresh, err := issuer.IssuePair("leia")
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	sub, accessID, err := issuer.Validate(access, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "leia", sub)

	_, _, err = issuer.Validate(access, TypeRefresh)
	assert.Error(t, err)

	sub, refreshID, err := issuer.Validate(refresh, TypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, "leia", sub)
	assert.NotEmpty(t, refreshID)
	assert.NotEqual(t, accessID, refreshID)

	claims, err := Decode(access)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, TypeAccess, claims.Type)
}

func TestIssuerRejectsExpiredAndForeign(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := NewIssuer("secret", time.Minute, time.Hour).WithClock(func() time.Time { return now })
	access, _, err := issuer.IssuePair("han")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, _, err = issuer.Validate(access, TypeAccess)
	assert.Error(t, err)

	foreign := NewIssuer("other", time.Minute, time.Hour)
	token, _, err := foreign.IssuePair("han")
	require.NoError(t, err)
	_, _, err = issuer.Validate(token, TypeAccess)
	assert.Error(t, err)
}
