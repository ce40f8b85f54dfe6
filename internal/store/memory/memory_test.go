package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/showcaselabs/showcase-go/internal/store"
	_ "github.com/showcaselabs/showcase-go/internal/store/memory"
	"github.com/showcaselabs/showcase-go/internal/store/testutil"
)

func TestMemoryDriver(t *testing.T) {
	testutil.RunDriverTests(t, "memory", &store.DriverConfig{Driver: "memory"})
}

func TestConcurrentAppends_SameSession(t *testing.T) {
	driver, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}
	ctx := context.Background()
	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init driver: %v", err)
	}
	sessions := driver.(store.SessionStore)

	session, err := sessions.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	const appends = 50
	var wg sync.WaitGroup
	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sessions.AppendMessage(ctx, session.ID, store.SenderUser, "msg"); err != nil {
				t.Errorf("AppendMessage failed: %v", err)
			}
		}()
	}
	wg.Wait()

	msgs, err := sessions.ListMessages(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != appends {
		t.Fatalf("expected %d messages, got %d", appends, len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Fatalf("timestamps regressed at index %d: %v < %v",
				i, msgs[i].Timestamp, msgs[i-1].Timestamp)
		}
	}
}
