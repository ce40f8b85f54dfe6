// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string
}

// SessionStore defines operations for chat session persistence.
//
// AppendMessage and ListMessages serialize per session: concurrent appends
// to the same session are mutually exclusive so that assigned timestamps
// are non-decreasing within the session's log. Appends to different
// sessions do not contend. Sessions are never deleted through this
// interface.
type SessionStore interface {
	// CreateSession allocates a new session with an empty message log.
	CreateSession(ctx context.Context) (*ChatSession, error)

	// GetSession retrieves a session by id. Returns ErrNotFound if absent.
	GetSession(ctx context.Context, id string) (*ChatSession, error)

	// AppendMessage appends a message to the session's log with a
	// store-assigned timestamp. Returns ErrNotFound if the session is
	// absent.
	AppendMessage(ctx context.Context, sessionID string, sender Sender, text string) (*ChatMessage, error)

	// ListMessages returns the session's messages ascending by timestamp,
	// insertion order breaking ties. Returns ErrNotFound if the session is
	// absent, and an empty slice for a session with no messages.
	ListMessages(ctx context.Context, sessionID string) ([]*ChatMessage, error)
}

// UserStore defines operations for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ProjectStore defines operations for project and comment persistence.
type ProjectStore interface {
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// DeleteProject removes a project and its comments.
	DeleteProject(ctx context.Context, id string) error

	// ListProjects returns all projects, newest first.
	ListProjects(ctx context.Context) ([]*Project, error)

	// CreateComment appends a comment to a project. Returns ErrNotFound
	// if the project is absent.
	CreateComment(ctx context.Context, comment *Comment) error

	// ListComments returns a project's comments ascending by creation
	// time. Returns ErrNotFound if the project is absent.
	ListComments(ctx context.Context, projectID string) ([]*Comment, error)
}

// AnalyticsStore defines operations for page-view analytics.
type AnalyticsStore interface {
	RecordPageView(ctx context.Context, view *PageView) error
	ViewStats(ctx context.Context) (*ViewStats, error)
}
