// Package lifecycle drives the dashboard session: it initializes credentials
// and the active chat on mount, keeps the access token renewed in the
// background and reacts to the user switching or creating chats. It never
// renders; results are handed to a Renderer and logout to a Navigator.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gwi.com/chat-dashboard/internal/client"
)

// DefaultRenewInterval is the period of the background token check.
const DefaultRenewInterval = 60 * time.Second

var (
	ErrAlreadyMounted = errors.New("orchestrator already mounted")
	ErrNotReady       = errors.New("orchestrator is not ready")
)

// State is the orchestrator's lifecycle state.
type State int

const (
	Initializing State = iota
	Unauthenticated
	Ready
	SwitchingChat
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Unauthenticated:
		return "unauthenticated"
	case Ready:
		return "ready"
	case SwitchingChat:
		return "switching-chat"
	}
	return "unknown"
}

// ViewModel is what the UI needs to draw the dashboard.
type ViewModel struct {
	ChatID          string
	InitialMessages []client.Message
	Sessions        []client.ChatSession
}

// Renderer receives a new ViewModel every time the orchestrator becomes Ready.
// Render is called while the triggering operation still holds the
// orchestrator, so it must not call SelectChat or CreateNewChat synchronously.
type Renderer interface {
	Render(vm ViewModel)
}

// Navigator is told once when the session is lost. When the loss is noticed
// by background renewal the call arrives after the renewal goroutine has
// exited, so Unauthenticated may call Unmount.
type Navigator interface {
	Unauthenticated()
}

// SessionResolver is implemented by session.Resolver.
type SessionResolver interface {
	GetValidToken(ctx context.Context) (string, bool)
	GetActiveChatID(ctx context.Context, token string) (string, error)
	FetchHistory(ctx context.Context, chatID, token string) ([]client.Message, error)
	FetchSessions(ctx context.Context, token string) []client.ChatSession
	SelectChat(chatID string) error
	ResetChat() error
}

// Orchestrator is the dashboard's session state machine.
type Orchestrator struct {
	resolver  SessionResolver
	renderer  Renderer
	navigator Navigator
	interval  time.Duration
	logger    zerolog.Logger

	// opMu serializes user-driven operations and initialization.
	opMu sync.Mutex

	mu     sync.Mutex
	state  State
	view   ViewModel
	active bool
	stopCh chan struct{}
	doneCh chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRenewInterval sets the background check period.
func WithRenewInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.interval = d
	}
}

func New(resolver SessionResolver, renderer Renderer, navigator Navigator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:  resolver,
		renderer:  renderer,
		navigator: navigator,
		interval:  DefaultRenewInterval,
		logger:    log.With().Str("component", "lifecycle").Logger(),
		state:     Initializing,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.interval <= 0 {
		o.interval = DefaultRenewInterval
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// View returns the last rendered view model.
func (o *Orchestrator) View() ViewModel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view
}

// Mount initializes the session and starts background renewal. It returns
// once the orchestrator is Ready or Unauthenticated.
func (o *Orchestrator) Mount(ctx context.Context) error {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return ErrAlreadyMounted
	}
	o.active = true
	o.state = Initializing
	o.view = ViewModel{}
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	go o.renewLoop(o.stopCh, o.doneCh)
	o.mu.Unlock()

	o.opMu.Lock()
	defer o.opMu.Unlock()
	o.initialize(ctx, true)
	return nil
}

// Unmount stops background renewal and waits for it to exit. Operations
// still in flight complete without touching state or the renderer.
func (o *Orchestrator) Unmount() {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return
	}
	o.active = false
	o.stopTimerLocked()
	done := o.doneCh
	o.mu.Unlock()

	<-done
}

// SelectChat switches to an existing chat. Selecting the active chat is a no-op.
func (o *Orchestrator) SelectChat(ctx context.Context, chatID string) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	if !o.active || o.state != Ready {
		o.mu.Unlock()
		return ErrNotReady
	}
	if chatID == o.view.ChatID {
		o.mu.Unlock()
		return nil
	}
	o.state = SwitchingChat
	sessions := o.view.Sessions
	o.mu.Unlock()

	token, ok := o.resolver.GetValidToken(ctx)
	if !ok {
		o.unauthenticated()
		return nil
	}

	if err := o.resolver.SelectChat(chatID); err != nil {
		o.logger.Error().Err(err).Str("chat_id", chatID).Msg("could not persist selected chat")
		o.restoreReady()
		return nil
	}

	history, err := o.resolver.FetchHistory(ctx, chatID, token)
	if err != nil {
		o.logger.Warn().Str("chat_id", chatID).Msg("selected chat unusable, resetting session")
		o.reset(ctx)
		return nil
	}
	o.ready(chatID, history, sessions)
	return nil
}

// CreateNewChat drops the active chat and starts a fresh one.
func (o *Orchestrator) CreateNewChat(ctx context.Context) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	ok := o.active && o.state == Ready
	o.mu.Unlock()
	if !ok {
		return ErrNotReady
	}

	token, ok := o.resolver.GetValidToken(ctx)
	if !ok {
		o.unauthenticated()
		return nil
	}

	if err := o.resolver.ResetChat(); err != nil {
		o.logger.Error().Err(err).Msg("could not drop active chat")
	}
	chatID, err := o.resolver.GetActiveChatID(ctx, token)
	if err != nil {
		chatID = ""
	}
	sessions := o.resolver.FetchSessions(ctx, token)
	o.ready(chatID, []client.Message{}, sessions)
	return nil
}

// initialize runs the mount sequence: token, sessions, chat id, history.
// When the history of the chosen chat cannot be loaded the stored chat id is
// already gone; with allowReset the sequence runs once more to allocate a
// fresh chat, otherwise the chat opens empty.
func (o *Orchestrator) initialize(ctx context.Context, allowReset bool) {
	token, ok := o.resolver.GetValidToken(ctx)
	if !ok {
		o.unauthenticated()
		return
	}

	sessions := o.resolver.FetchSessions(ctx, token)

	chatID, err := o.resolver.GetActiveChatID(ctx, token)
	if err != nil {
		o.ready("", []client.Message{}, sessions)
		return
	}

	history, err := o.resolver.FetchHistory(ctx, chatID, token)
	if err != nil {
		if allowReset {
			o.logger.Warn().Str("chat_id", chatID).Msg("stored chat unusable, reinitializing")
			o.initialize(ctx, false)
			return
		}
		history = []client.Message{}
	}
	o.ready(chatID, history, sessions)
}

// reset recovers from an unusable chat: forget it and initialize again.
func (o *Orchestrator) reset(ctx context.Context) {
	if err := o.resolver.ResetChat(); err != nil {
		o.logger.Error().Err(err).Msg("could not drop active chat")
	}
	o.mu.Lock()
	if o.active && o.state != Unauthenticated {
		o.state = Initializing
	}
	o.mu.Unlock()
	o.initialize(ctx, false)
}

func (o *Orchestrator) ready(chatID string, history []client.Message, sessions []client.ChatSession) {
	o.mu.Lock()
	if !o.active || o.state == Unauthenticated {
		o.mu.Unlock()
		o.logger.Debug().Str("chat_id", chatID).Msg("discarding result of inactive session")
		return
	}
	o.state = Ready
	o.view = ViewModel{ChatID: chatID, InitialMessages: history, Sessions: sessions}
	vm := o.view
	o.mu.Unlock()

	o.logger.Info().Str("chat_id", chatID).Int("messages", len(history)).Int("sessions", len(sessions)).Msg("session ready")
	o.renderer.Render(vm)
}

func (o *Orchestrator) restoreReady() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == SwitchingChat {
		o.state = Ready
	}
}

// unauthenticated moves to the terminal state and notifies the navigator once.
func (o *Orchestrator) unauthenticated() {
	if o.markUnauthenticated() {
		o.notifyLost()
	}
}

// markUnauthenticated reports whether this call made the transition.
func (o *Orchestrator) markUnauthenticated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active || o.state == Unauthenticated {
		return false
	}
	o.state = Unauthenticated
	o.view = ViewModel{}
	o.stopTimerLocked()
	return true
}

func (o *Orchestrator) notifyLost() {
	o.logger.Info().Msg("session lost, handing over to navigation")
	o.navigator.Unauthenticated()
}

func (o *Orchestrator) stopTimerLocked() {
	if o.stopCh != nil {
		close(o.stopCh)
		o.stopCh = nil
	}
}

// renewLoop closes doneCh before notifying the navigator of a lost session.
func (o *Orchestrator) renewLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	lost := o.watch(stopCh)
	close(doneCh)
	if lost {
		o.notifyLost()
	}
}

func (o *Orchestrator) watch(stopCh <-chan struct{}) bool {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return false
		case <-ticker.C:
			if o.renew(stopCh) {
				return true
			}
		}
	}
}

// renew is the timer's own token check, independent of the user path. It
// reports whether the check moved the orchestrator to Unauthenticated.
func (o *Orchestrator) renew(stopCh <-chan struct{}) bool {
	select {
	case <-stopCh:
		return false
	default:
	}
	if _, ok := o.resolver.GetValidToken(context.Background()); ok {
		return false
	}
	o.logger.Warn().Msg("background renewal failed")
	return o.markUnauthenticated()
}
