// Package chat orchestrates chat sessions: it persists user messages,
// delegates reply generation to an external completion collaborator, and
// guarantees every user message gets an answer even when the collaborator
// fails.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/showcaselabs/showcase-go/internal/inference"
	"github.com/showcaselabs/showcase-go/internal/store"
)

// ErrEmptyMessage rejects a user message that is empty or whitespace-only.
var ErrEmptyMessage = errors.New("message is empty")

// Orchestrator drives the send-message flow over a session store and a
// reply-generation collaborator.
type Orchestrator struct {
	sessions  store.SessionStore
	completer inference.Completer
	logger    *slog.Logger

	// timeout bounds a single completion call; fallback is the reply
	// recorded when the collaborator fails or times out.
	timeout  time.Duration
	fallback string

	completerFailures atomic.Int64
}

// NewOrchestrator creates an orchestrator. A zero timeout disables the
// completion deadline; fallback must be non-empty so a failed completion
// still produces a bot message.
func NewOrchestrator(sessions store.SessionStore, completer inference.Completer, timeout time.Duration, fallback string, logger *slog.Logger) *Orchestrator {
	if fallback == "" {
		fallback = "Sorry, I can't answer right now. Please try again later."
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		sessions:  sessions,
		completer: completer,
		logger:    logger,
		timeout:   timeout,
		fallback:  fallback,
	}
}

// CompleterFailures reports how many completion calls have fallen back
// since process start.
func (o *Orchestrator) CompleterFailures() int64 {
	return o.completerFailures.Load()
}

// resolveSession loads the session when an id is supplied and creates a
// fresh one otherwise. An unknown supplied id is the caller's error and
// propagates as store.ErrNotFound.
func (o *Orchestrator) resolveSession(ctx context.Context, sessionID *string) (*store.ChatSession, error) {
	if sessionID != nil && *sessionID != "" {
		return o.sessions.GetSession(ctx, *sessionID)
	}
	return o.sessions.CreateSession(ctx)
}

// SendMessage appends the user message, generates a reply, appends it as
// the bot message, and returns the bot message. The completion call runs
// outside any session lock; when it errors or times out the deterministic
// fallback reply is recorded instead and the request still succeeds.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID *string, text string) (*store.ChatMessage, error) {
	// A user turn must carry content. Checked before session resolution
	// so a rejected first message does not leave an empty session behind.
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	session, err := o.resolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := o.sessions.AppendMessage(ctx, session.ID, store.SenderUser, text); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	reply := o.generateReply(ctx, session.ID, text)

	botMsg, err := o.sessions.AppendMessage(ctx, session.ID, store.SenderBot, reply)
	if err != nil {
		return nil, fmt.Errorf("append bot message: %w", err)
	}

	return botMsg, nil
}

// generateReply calls the completer under its own deadline. Failures
// never surface to the caller; they yield the fallback reply.
func (o *Orchestrator) generateReply(ctx context.Context, sessionID, text string) string {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	reply, err := o.completer.Complete(ctx, text)
	if err != nil {
		n := o.completerFailures.Add(1)
		o.logger.Warn("reply generation failed, using fallback",
			"session_id", sessionID, "failures", n, "error", err)
		return o.fallback
	}

	return reply
}

// GetHistory returns the session id and its ordered messages, creating a
// fresh session (with empty history) when no id is supplied.
func (o *Orchestrator) GetHistory(ctx context.Context, sessionID *string) (string, []*store.ChatMessage, error) {
	session, err := o.resolveSession(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}

	messages, err := o.sessions.ListMessages(ctx, session.ID)
	if err != nil {
		return "", nil, fmt.Errorf("list messages: %w", err)
	}

	return session.ID, messages, nil
}
