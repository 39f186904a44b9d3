package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gwi.com/chat-dashboard/internal/api"
	"gwi.com/chat-dashboard/internal/auth"
	"gwi.com/chat-dashboard/internal/config"
)

func newServeDevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-dev",
		Short: "Run an in-memory backend implementing the chat session endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveDev()
		},
	}
}

func serveDev() error {
	cfg := config.AppConfig
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	apiHandler := api.NewAPIHandler(api.NewRegistry(), issuer)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Starting dev backend. Press Ctrl+C to quit.")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- errors.Wrapf(err, "could not listen on %s", serverAddr)
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info().Msg("Shutting down dev backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	log.Info().Msg("Dev backend exiting gracefully")
	return nil
}
