package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/chat-dashboard/internal/config"
)

func TestAPIURLFlagCorrectsEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHATDASH_API_URL", "localhost")
	apiURLFlag, dbFlag = "https://chat.example.com/api", "override.db"
	t.Cleanup(func() { apiURLFlag, dbFlag = "", "" })

	require.NoError(t, loadConfig())
	require.NoError(t, config.AppConfig.Validate())
	assert.Equal(t, "https://chat.example.com/api", config.AppConfig.APIBaseURL)
	assert.Equal(t, "override.db", config.AppConfig.DatabaseURL)
}

func TestBadEnvironmentURLWithoutFlagFailsValidation(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHATDASH_API_URL", "localhost")

	require.NoError(t, loadConfig())
	assert.Error(t, config.AppConfig.Validate())
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
