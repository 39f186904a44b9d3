package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHATDASH_API_URL", "http://localhost:8080")

	require.NoError(t, LoadConfig())
	require.NoError(t, AppConfig.Validate())
	assert.Equal(t, 300*time.Second, AppConfig.RenewThreshold)
	assert.Equal(t, 60*time.Second, AppConfig.RenewInterval)
	assert.Equal(t, "chatdash.db", AppConfig.DatabaseURL)
}

func TestLoadConfigOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHATDASH_RENEW_THRESHOLD", "120")
	t.Setenv("CHATDASH_RENEW_INTERVAL", "15")

	require.NoError(t, LoadConfig())
	assert.Equal(t, 120*time.Second, AppConfig.RenewThreshold)
	assert.Equal(t, 15*time.Second, AppConfig.RenewInterval)
}

func TestLoadConfigRejectsMalformedNumber(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHATDASH_RENEW_INTERVAL", "abc")

	err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHATDASH_RENEW_INTERVAL")
}

func TestBadURLCanBeOverriddenBeforeValidation(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHATDASH_API_URL", "localhost")

	require.NoError(t, LoadConfig())
	assert.Error(t, AppConfig.Validate())

	AppConfig.APIBaseURL = "http://localhost:9090"
	assert.NoError(t, AppConfig.Validate())
}

func TestOrigin(t *testing.T) {
	origin, err := Origin("https://chat.example.com:8443/api/v1?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com:8443", origin)

	_, err = Origin("://nope")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
