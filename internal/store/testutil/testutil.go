// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/showcaselabs/showcase-go/internal/store"
)

// TestProject creates a test project.
func TestProject() *store.Project {
	return &store.Project{
		Title:       "Pathfinder",
		Description: "A* visualizer with weighted graphs",
		Tags:        []string{"go", "algorithms"},
		ImageURL:    "https://example.com/pathfinder.png",
		LiveURL:     "https://pathfinder.example.com",
		RepoURL:     "https://example.com/repo/pathfinder",
	}
}

// TestUser creates a test user.
func TestUser(username string) *store.User {
	return &store.User{
		Username:     username,
		PasswordHash: "$2a$10$not-a-real-hash",
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	t.Run("Sessions", func(t *testing.T) {
		TestSessionContract(t, ctx, driver.(store.SessionStore))
	})
	t.Run("Users", func(t *testing.T) {
		TestUserContract(t, ctx, driver.(store.UserStore))
	})
	t.Run("Projects", func(t *testing.T) {
		TestProjectContract(t, ctx, driver.(store.ProjectStore))
	})
	t.Run("Analytics", func(t *testing.T) {
		TestAnalyticsContract(t, ctx, driver.(store.AnalyticsStore))
	})
}

// TestSessionContract verifies the SessionStore contract.
func TestSessionContract(t *testing.T, ctx context.Context, s store.SessionStore) {
	session, err := s.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.ID == "" {
		t.Fatal("CreateSession returned empty id")
	}

	got, err := s.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.ID != session.ID {
		t.Errorf("expected session id %q, got %q", session.ID, got.ID)
	}

	if _, err := s.GetSession(ctx, "nonexistent"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown session, got %v", err)
	}

	// Empty log lists as empty, not nil error
	msgs, err := s.ListMessages(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListMessages on empty session failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty log, got %d messages", len(msgs))
	}

	// Append assigns timestamps and preserves order
	first, err := s.AppendMessage(ctx, session.ID, store.SenderUser, "hello")
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if first.Timestamp.IsZero() {
		t.Error("AppendMessage did not assign a timestamp")
	}
	second, err := s.AppendMessage(ctx, session.ID, store.SenderBot, "hi there")
	if err != nil {
		t.Fatalf("second AppendMessage failed: %v", err)
	}
	if second.Timestamp.Before(first.Timestamp) {
		t.Errorf("timestamps regressed: %v then %v", first.Timestamp, second.Timestamp)
	}

	msgs, err = s.ListMessages(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Sender != store.SenderUser || msgs[1].Sender != store.SenderBot {
		t.Errorf("unexpected sender order: %s then %s", msgs[0].Sender, msgs[1].Sender)
	}
	if msgs[0].Message != "hello" {
		t.Errorf("expected first message %q, got %q", "hello", msgs[0].Message)
	}

	// Appends against unknown sessions fail
	if _, err := s.AppendMessage(ctx, "nonexistent", store.SenderUser, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound appending to unknown session, got %v", err)
	}
	if _, err := s.ListMessages(ctx, "nonexistent"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound listing unknown session, got %v", err)
	}
}

// TestUserContract verifies the UserStore contract.
func TestUserContract(t *testing.T, ctx context.Context, s store.UserStore) {
	user := TestUser("alice")
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("CreateUser did not assign an id")
	}

	if err := s.CreateUser(ctx, TestUser("alice")); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate username, got %v", err)
	}

	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user id %q, got %q", user.ID, got.ID)
	}

	if _, err := s.GetUser(ctx, "nonexistent"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}

	count, err := s.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 user, got %d", count)
	}
}

// TestProjectContract verifies the ProjectStore contract.
func TestProjectContract(t *testing.T, ctx context.Context, s store.ProjectStore) {
	project := TestProject()
	if err := s.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	got, err := s.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.Title != project.Title {
		t.Errorf("expected title %q, got %q", project.Title, got.Title)
	}
	if len(got.Tags) != 2 {
		t.Errorf("expected 2 tags, got %v", got.Tags)
	}

	project.Title = "Pathfinder v2"
	if err := s.UpdateProject(ctx, project); err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	got, _ = s.GetProject(ctx, project.ID)
	if got.Title != "Pathfinder v2" {
		t.Errorf("expected updated title, got %q", got.Title)
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) == 0 {
		t.Error("expected at least one project in list")
	}

	// Comments
	comment := &store.Comment{ProjectID: project.ID, Author: "bob", Body: "nice work"}
	if err := s.CreateComment(ctx, comment); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	comments, err := s.ListComments(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListComments failed: %v", err)
	}
	if len(comments) != 1 || comments[0].Body != "nice work" {
		t.Errorf("unexpected comments: %+v", comments)
	}
	if err := s.CreateComment(ctx, &store.Comment{ProjectID: "nonexistent", Body: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for comment on unknown project, got %v", err)
	}

	// Delete cascades comments
	if err := s.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	if _, err := s.GetProject(ctx, project.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := s.ListComments(ctx, project.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound listing comments of deleted project, got %v", err)
	}
	if err := s.DeleteProject(ctx, project.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

// TestAnalyticsContract verifies the AnalyticsStore contract.
func TestAnalyticsContract(t *testing.T, ctx context.Context, s store.AnalyticsStore) {
	views := []*store.PageView{
		{Path: "/", Visitor: "v1", UserAgent: "test"},
		{Path: "/", Visitor: "v2", UserAgent: "test"},
		{Path: "/projects/1", Visitor: "v1", UserAgent: "test"},
	}
	for _, view := range views {
		if err := s.RecordPageView(ctx, view); err != nil {
			t.Fatalf("RecordPageView failed: %v", err)
		}
	}

	stats, err := s.ViewStats(ctx)
	if err != nil {
		t.Fatalf("ViewStats failed: %v", err)
	}
	if stats.TotalViews != 3 {
		t.Errorf("expected 3 total views, got %d", stats.TotalViews)
	}
	if stats.UniqueVisitors != 2 {
		t.Errorf("expected 2 unique visitors, got %d", stats.UniqueVisitors)
	}
	if len(stats.ViewsByPath) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(stats.ViewsByPath))
	}
	if stats.ViewsByPath[0].Path != "/" || stats.ViewsByPath[0].Views != 2 {
		t.Errorf("expected / with 2 views first, got %+v", stats.ViewsByPath[0])
	}
}
