package chat_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/showcaselabs/showcase-go/internal/chat"
	"github.com/showcaselabs/showcase-go/internal/inference"
	"github.com/showcaselabs/showcase-go/internal/store"
	_ "github.com/showcaselabs/showcase-go/internal/store/memory"
)

const testFallback = "Sorry, I can't answer right now."

// fakeCompleter scripts the collaborator's behavior per call.
type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	delay   time.Duration
	replyFn func(userMessage string) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, userMessage string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", inference.ErrUnavailable, ctx.Err())
		}
	}
	if f.replyFn != nil {
		return f.replyFn(userMessage)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newSessions(t *testing.T) store.SessionStore {
	t.Helper()

	driver, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := driver.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { driver.Close() })

	sessions, ok := driver.(store.SessionStore)
	if !ok {
		t.Fatal("memory driver does not implement SessionStore")
	}
	return sessions
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendMessage_NewSession(t *testing.T) {
	sessions := newSessions(t)
	completer := &fakeCompleter{reply: "Hello from the bot"}
	o := chat.NewOrchestrator(sessions, completer, time.Second, testFallback, discardLogger())

	botMsg, err := o.SendMessage(context.Background(), nil, "hi there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if botMsg.Sender != store.SenderBot {
		t.Errorf("expected bot sender, got %q", botMsg.Sender)
	}
	if botMsg.Message != "Hello from the bot" {
		t.Errorf("unexpected reply: %q", botMsg.Message)
	}
	if botMsg.SessionID == "" {
		t.Error("bot message must carry the new session id")
	}

	// Both turns recorded, user first.
	msgs, err := sessions.ListMessages(context.Background(), botMsg.SessionID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Sender != store.SenderUser || msgs[0].Message != "hi there" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Sender != store.SenderBot {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestSendMessage_ExistingSession(t *testing.T) {
	sessions := newSessions(t)
	completer := &fakeCompleter{reply: "ok"}
	o := chat.NewOrchestrator(sessions, completer, time.Second, testFallback, discardLogger())

	first, err := o.SendMessage(context.Background(), nil, "first")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := o.SendMessage(context.Background(), &first.SessionID, "second")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("expected same session, got %q and %q", first.SessionID, second.SessionID)
	}

	msgs, _ := sessions.ListMessages(context.Background(), first.SessionID)
	if len(msgs) != 4 {
		t.Errorf("expected 4 messages, got %d", len(msgs))
	}
}

func TestSendMessage_BlankMessage(t *testing.T) {
	sessions := newSessions(t)
	completer := &fakeCompleter{reply: "ok"}
	o := chat.NewOrchestrator(sessions, completer, time.Second, testFallback, discardLogger())

	session, err := sessions.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, text := range []string{"", "   ", " \t\n "} {
		if _, err := o.SendMessage(context.Background(), &session.ID, text); !errors.Is(err, chat.ErrEmptyMessage) {
			t.Errorf("SendMessage(%q): expected ErrEmptyMessage, got %v", text, err)
		}
	}

	if completer.callCount() != 0 {
		t.Errorf("completer must not run for a blank message, got %d calls", completer.callCount())
	}
	msgs, err := sessions.ListMessages(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no persisted messages, got %d", len(msgs))
	}
}

func TestSendMessage_UnknownSession(t *testing.T) {
	sessions := newSessions(t)
	completer := &fakeCompleter{reply: "ok"}
	o := chat.NewOrchestrator(sessions, completer, time.Second, testFallback, discardLogger())

	unknown := "no-such-session"
	_, err := o.SendMessage(context.Background(), &unknown, "hi")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if completer.callCount() != 0 {
		t.Errorf("completer must not run for an unknown session, got %d calls", completer.callCount())
	}
}

func TestSendMessage_CompleterFailure_Fallback(t *testing.T) {
	sessions := newSessions(t)
	completer := &fakeCompleter{err: inference.ErrUnavailable}
	o := chat.NewOrchestrator(sessions, completer, time.Second, testFallback, discardLogger())

	botMsg, err := o.SendMessage(context.Background(), nil, "hi")
	if err != nil {
		t.Fatalf("fallback path must not fail the request: %v", err)
	}
	if botMsg.Message != testFallback {
		t.Errorf("expected fallback reply, got %q", botMsg.Message)
	}
	if o.CompleterFailures() != 1 {
		t.Errorf("expected 1 recorded failure, got %d", o.CompleterFailures())
	}

	// The user message is still answered: both rows exist.
	msgs, _ := sessions.ListMessages(context.Background(), botMsg.SessionID)
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %d", len(msgs))
	}
}

func TestSendMessage_CompleterTimeout_Fallback(t *testing.T) {
	sessions := newSessions(t)
	completer := &fakeCompleter{reply: "too late", delay: 500 * time.Millisecond}
	o := chat.NewOrchestrator(sessions, completer, 20*time.Millisecond, testFallback, discardLogger())

	start := time.Now()
	botMsg, err := o.SendMessage(context.Background(), nil, "hi")
	if err != nil {
		t.Fatalf("timeout path must not fail the request: %v", err)
	}
	if botMsg.Message != testFallback {
		t.Errorf("expected fallback reply, got %q", botMsg.Message)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestSendMessage_ConcurrentSameSession_Ordered(t *testing.T) {
	sessions := newSessions(t)
	completer := &fakeCompleter{replyFn: func(m string) (string, error) {
		return "re: " + m, nil
	}}
	o := chat.NewOrchestrator(sessions, completer, time.Second, testFallback, discardLogger())

	first, err := o.SendMessage(context.Background(), nil, "start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sessionID := first.SessionID

	const senders = 20
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := o.SendMessage(context.Background(), &sessionID, fmt.Sprintf("msg-%d", i)); err != nil {
				t.Errorf("concurrent send failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	msgs, err := sessions.ListMessages(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if want := 2 * (senders + 1); len(msgs) != want {
		t.Fatalf("expected %d messages, got %d", want, len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Fatalf("timestamps out of order at index %d", i)
		}
	}
}

func TestGetHistory(t *testing.T) {
	sessions := newSessions(t)
	completer := &fakeCompleter{reply: "ok"}
	o := chat.NewOrchestrator(sessions, completer, time.Second, testFallback, discardLogger())

	// Without a session id, a fresh session with empty history.
	id, msgs, err := o.GetHistory(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected a session id")
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty history, got %d messages", len(msgs))
	}

	// After a send, history shows both turns.
	if _, err := o.SendMessage(context.Background(), &id, "hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	gotID, msgs, err := o.GetHistory(context.Background(), &id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != id {
		t.Errorf("expected session %q, got %q", id, gotID)
	}
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %d", len(msgs))
	}

	// Unknown session id propagates NotFound.
	unknown := "no-such-session"
	if _, _, err := o.GetHistory(context.Background(), &unknown); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
