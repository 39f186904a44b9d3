package main

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gwi.com/chat-dashboard/internal/config"
	"gwi.com/chat-dashboard/internal/logging"
	"gwi.com/chat-dashboard/internal/store"
)

var (
	apiURLFlag string
	dbFlag     string
	logCloser  io.Closer
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "chatdash",
		Short:         "Keeps a chat dashboard session authenticated",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			logCloser = logging.Setup(config.AppConfig.LogLevel, config.AppConfig.LogFile)
			return config.AppConfig.Validate()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "backend base URL (overrides CHATDASH_API_URL)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "credential database path (overrides CHATDASH_DB)")

	rootCmd.AddCommand(
		newRunCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newTokensCmd(),
		newServeDevCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies flag overrides. Validation is
// left to the caller so a flag can correct a bad environment value.
func loadConfig() error {
	if err := config.LoadConfig(); err != nil {
		return err
	}
	if apiURLFlag != "" {
		config.AppConfig.APIBaseURL = apiURLFlag
	}
	if dbFlag != "" {
		config.AppConfig.DatabaseURL = dbFlag
	}
	return nil
}

// openCredentials opens the credential store scoped to the configured backend.
func openCredentials() (*store.CredentialStore, func() error, error) {
	origin, err := config.Origin(config.AppConfig.APIBaseURL)
	if err != nil {
		return nil, nil, err
	}
	db, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL, origin)
	if err != nil {
		return nil, nil, err
	}
	return store.NewCredentialStore(db), db.Close, nil
}
