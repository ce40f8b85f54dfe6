// Package memory implements an in-memory persistence driver. It backs
// the default configuration and the handler tests; data does not survive
// a process restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/showcaselabs/showcase-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements the store interfaces with in-process maps.
type Driver struct {
	mu sync.RWMutex

	sessions map[string]*store.ChatSession
	messages map[string][]*store.ChatMessage // by session id, insertion order
	users    map[string]*store.User
	byName   map[string]string // username -> user id
	projects map[string]*store.Project
	comments map[string][]*store.Comment // by project id, insertion order
	views    []*store.PageView

	sessionLocks  *store.SessionLocks
	nextMsgID     uint
	nextCommentID uint
	nextViewID    uint
}

// NewDriver creates a new in-memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	return &Driver{
		sessions:     make(map[string]*store.ChatSession),
		messages:     make(map[string][]*store.ChatMessage),
		users:        make(map[string]*store.User),
		byName:       make(map[string]string),
		projects:     make(map[string]*store.Project),
		comments:     make(map[string][]*store.Comment),
		sessionLocks: store.NewSessionLocks(),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close is a no-op for the memory driver.
func (d *Driver) Close() error { return nil }

// SessionStore implementation

func (d *Driver) CreateSession(ctx context.Context) (*store.ChatSession, error) {
	session := &store.ChatSession{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}

	d.mu.Lock()
	d.sessions[session.ID] = session
	d.mu.Unlock()

	return session, nil
}

func (d *Driver) GetSession(ctx context.Context, id string) (*store.ChatSession, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	session, ok := d.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (d *Driver) AppendMessage(ctx context.Context, sessionID string, sender store.Sender, text string) (*store.ChatMessage, error) {
	// Serialize appends per session so assigned timestamps are
	// non-decreasing within the log.
	unlock := d.sessionLocks.Lock(sessionID)
	defer unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[sessionID]; !ok {
		return nil, store.ErrNotFound
	}

	ts := time.Now().UTC()
	if log := d.messages[sessionID]; len(log) > 0 {
		if last := log[len(log)-1].Timestamp; ts.Before(last) {
			ts = last
		}
	}

	d.nextMsgID++
	msg := &store.ChatMessage{
		ID:        d.nextMsgID,
		SessionID: sessionID,
		Sender:    sender,
		Message:   text,
		Timestamp: ts,
	}
	d.messages[sessionID] = append(d.messages[sessionID], msg)

	copied := *msg
	return &copied, nil
}

func (d *Driver) ListMessages(ctx context.Context, sessionID string) ([]*store.ChatMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.sessions[sessionID]; !ok {
		return nil, store.ErrNotFound
	}

	log := d.messages[sessionID]
	result := make([]*store.ChatMessage, 0, len(log))
	for _, msg := range log {
		copied := *msg
		result = append(result, &copied)
	}
	return result, nil
}

// UserStore implementation

func (d *Driver) CreateUser(ctx context.Context, user *store.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byName[user.Username]; ok {
		return store.ErrAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	copied := *user
	d.users[user.ID] = &copied
	d.byName[user.Username] = user.ID
	return nil
}

func (d *Driver) GetUser(ctx context.Context, id string) (*store.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (d *Driver) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *d.users[id]
	return &copied, nil
}

func (d *Driver) CountUsers(ctx context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.users)), nil
}

// ProjectStore implementation

func (d *Driver) CreateProject(ctx context.Context, project *store.Project) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	copied := *project
	d.projects[project.ID] = &copied
	return nil
}

func (d *Driver) GetProject(ctx context.Context, id string) (*store.Project, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	project, ok := d.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *project
	return &copied, nil
}

func (d *Driver) UpdateProject(ctx context.Context, project *store.Project) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.projects[project.ID]
	if !ok {
		return store.ErrNotFound
	}
	project.CreatedAt = existing.CreatedAt
	project.UpdatedAt = time.Now().UTC()

	copied := *project
	d.projects[project.ID] = &copied
	return nil
}

func (d *Driver) DeleteProject(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.projects, id)
	delete(d.comments, id)
	return nil
}

func (d *Driver) ListProjects(ctx context.Context) ([]*store.Project, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*store.Project, 0, len(d.projects))
	for _, project := range d.projects {
		copied := *project
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (d *Driver) CreateComment(ctx context.Context, comment *store.Comment) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.projects[comment.ProjectID]; !ok {
		return store.ErrNotFound
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	d.nextCommentID++
	comment.ID = d.nextCommentID

	copied := *comment
	d.comments[comment.ProjectID] = append(d.comments[comment.ProjectID], &copied)
	return nil
}

func (d *Driver) ListComments(ctx context.Context, projectID string) ([]*store.Comment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.projects[projectID]; !ok {
		return nil, store.ErrNotFound
	}

	log := d.comments[projectID]
	result := make([]*store.Comment, 0, len(log))
	for _, comment := range log {
		copied := *comment
		result = append(result, &copied)
	}
	return result, nil
}

// AnalyticsStore implementation

func (d *Driver) RecordPageView(ctx context.Context, view *store.PageView) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}
	d.nextViewID++
	view.ID = d.nextViewID

	copied := *view
	d.views = append(d.views, &copied)
	return nil
}

func (d *Driver) ViewStats(ctx context.Context) (*store.ViewStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byPath := make(map[string]int64)
	visitors := make(map[string]struct{})
	for _, view := range d.views {
		byPath[view.Path]++
		visitors[view.Visitor] = struct{}{}
	}

	paths := make([]store.PathViews, 0, len(byPath))
	for path, views := range byPath {
		paths = append(paths, store.PathViews{Path: path, Views: views})
	}
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Views != paths[j].Views {
			return paths[i].Views > paths[j].Views
		}
		return paths[i].Path < paths[j].Path
	})

	return &store.ViewStats{
		TotalViews:     int64(len(d.views)),
		UniqueVisitors: int64(len(visitors)),
		ViewsByPath:    paths,
	}, nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.SessionStore = (*Driver)(nil)
var _ store.UserStore = (*Driver)(nil)
var _ store.ProjectStore = (*Driver)(nil)
var _ store.AnalyticsStore = (*Driver)(nil)
