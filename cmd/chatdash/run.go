package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gwi.com/chat-dashboard/internal/config"
	"gwi.com/chat-dashboard/internal/lifecycle"
	"gwi.com/chat-dashboard/internal/session"
	"gwi.com/chat-dashboard/internal/store"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the dashboard session in the terminal",
		Long: "Open the dashboard session in the terminal.\n\n" +
			"Commands: select <chat-id>, new, say <text>, quit",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, closeStore, err := openCredentials()
			if err != nil {
				return err
			}
			defer closeStore()
			return runDashboard(contextOrBackground(cmd), creds, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// terminalView prints view models and closes loggedOut when the session ends.
type terminalView struct {
	out       io.Writer
	mu        sync.Mutex
	once      sync.Once
	loggedOut chan struct{}
}

func (v *terminalView) Render(vm lifecycle.ViewModel) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintln(v.out, "chats:")
	for _, s := range vm.Sessions {
		marker := " "
		if s.ChatID == vm.ChatID {
			marker = "*"
		}
		fmt.Fprintf(v.out, " %s %s  %s\n", marker, s.ChatID, s.Title)
	}
	if vm.ChatID == "" {
		fmt.Fprintln(v.out, "no active chat; type 'new' to start one")
		return
	}
	fmt.Fprintf(v.out, "active chat %s (%d messages)\n", vm.ChatID, len(vm.InitialMessages))
	for _, raw := range vm.InitialMessages {
		fmt.Fprintf(v.out, "  %s\n", summarize(raw))
	}
}

func (v *terminalView) Unauthenticated() {
	v.once.Do(func() {
		fmt.Fprintln(v.out, "session expired or missing; run 'chatdash login' to sign in")
		close(v.loggedOut)
	})
}

// summarize prints "role: text" for messages in the {role, content[]} shape
// and the raw JSON for anything else.
func summarize(raw json.RawMessage) string {
	var msg struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Role == "" {
		return string(raw)
	}
	var texts []string
	for _, part := range msg.Content {
		if part.Type == "text" {
			texts = append(texts, part.Text)
		}
	}
	return msg.Role + ": " + strings.Join(texts, " ")
}

func runDashboard(ctx context.Context, creds *store.CredentialStore, in io.Reader, out io.Writer) error {
	cfg := config.AppConfig
	backend := newAPIClient()
	resolver := session.NewResolver(creds, session.NewRefresher(backend, creds), backend,
		session.WithThreshold(cfg.RenewThreshold))

	view := &terminalView{out: out, loggedOut: make(chan struct{})}
	orch := lifecycle.New(resolver, view, view, lifecycle.WithRenewInterval(cfg.RenewInterval))

	if err := orch.Mount(ctx); err != nil {
		return err
	}
	defer orch.Unmount()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	for {
		select {
		case <-view.loggedOut:
			return nil
		case <-quit:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := handleLine(ctx, orch, resolver, line, out); done {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, orch *lifecycle.Orchestrator, resolver *session.Resolver, line string, out io.Writer) (quit bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "":
	case "quit", "exit":
		return true
	case "select":
		if arg == "" {
			fmt.Fprintln(out, "usage: select <chat-id>")
			return false
		}
		err = orch.SelectChat(ctx, arg)
	case "new":
		err = orch.CreateNewChat(ctx)
	case "say":
		err = say(ctx, orch, resolver, arg)
	default:
		fmt.Fprintf(out, "unknown command %q\n", cmd)
	}
	if err != nil {
		log.Warn().Err(err).Str("command", cmd).Msg("command not applied")
	}
	return false
}

// say posts a message to the active chat of the dev backend.
func say(ctx context.Context, orch *lifecycle.Orchestrator, resolver *session.Resolver, text string) error {
	if text == "" {
		return nil
	}
	chatID := orch.View().ChatID
	if chatID == "" {
		return lifecycle.ErrNotReady
	}
	token, ok := resolver.GetValidToken(ctx)
	if !ok {
		return lifecycle.ErrNotReady
	}
	return newAPIClient().PostMessage(ctx, chatID, token, text)
}
