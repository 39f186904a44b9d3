package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"gwi.com/chat-dashboard/internal/auth"
	"gwi.com/chat-dashboard/internal/client"
	"gwi.com/chat-dashboard/internal/config"
)

func newAPIClient() *client.Client {
	return client.New(config.AppConfig.APIBaseURL, client.WithTimeout(config.AppConfig.HTTPTimeout))
}

func newLoginCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in against the dev backend and store the token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, closeStore, err := openCredentials()
			if err != nil {
				return err
			}
			defer closeStore()

			tokens, err := newAPIClient().Login(contextOrBackground(cmd), userID)
			if err != nil {
				return err
			}
			// a new identity must not inherit the previous user's chat
			if err := creds.Clear(); err != nil {
				return err
			}
			if err := creds.SetTokens(tokens.AccessToken, tokens.RefreshToken); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to log in as")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored tokens and the active chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, closeStore, err := openCredentials()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := creds.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newTokensCmd() *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage the stored token pair",
	}

	var access, refresh string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store a token pair issued elsewhere",
		RunE: func(cmd *cobra.Command, args []string) error {
			if access == "" || refresh == "" {
				return errors.New("both --access and --refresh are required")
			}
			creds, closeStore, err := openCredentials()
			if err != nil {
				return err
			}
			defer closeStore()
			return creds.SetTokens(access, refresh)
		},
	}
	setCmd.Flags().StringVar(&access, "access", "", "access token")
	setCmd.Flags().StringVar(&refresh, "refresh", "", "refresh token")
	tokensCmd.AddCommand(setCmd)
	return tokensCmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, closeStore, err := openCredentials()
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:      %s\n", config.AppConfig.APIBaseURL)
			if !creds.HasValidPair() {
				fmt.Fprintln(out, "tokens:       none (not logged in)")
				return nil
			}
			fmt.Fprintln(out, "tokens:       present")

			access := creds.AccessToken()
			claims, err := auth.Decode(access)
			switch {
			case err != nil:
				fmt.Fprintln(out, "access token: opaque (claims not readable)")
			case claims.ExpiresAt == nil:
				fmt.Fprintln(out, "access token: no expiry")
			default:
				fmt.Fprintf(out, "access token: expires %s (in %s)\n",
					claims.ExpiresAt.Format(time.RFC3339), time.Until(*claims.ExpiresAt).Round(time.Second))
			}
			fmt.Fprintf(out, "renew now:    %t\n", auth.IsExpiringSoon(access, time.Now(), config.AppConfig.RenewThreshold))

			chatID := creds.ActiveChatID()
			if chatID == "" {
				chatID = "(none)"
			}
			fmt.Fprintf(out, "active chat:  %s\n", chatID)
			return nil
		},
	}
}

// contextOrBackground guards commands run without cobra's ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
