// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/showcaselabs/showcase-go/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store interfaces using SQLite via GORM.
type Driver struct {
	dataDir      string
	db           *gorm.DB
	sessionLocks *store.SessionLocks
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir:      cfg.DataDir,
		sessionLocks: store.NewSessionLocks(),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "showcase.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.AutoMigrate(
		&store.ChatSession{},
		&store.ChatMessage{},
		&store.User{},
		&store.Project{},
		&store.Comment{},
		&store.PageView{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SessionStore implementation

// CreateSession allocates a new chat session with an empty message log.
func (d *Driver) CreateSession(ctx context.Context) (*store.ChatSession, error) {
	session := &store.ChatSession{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	result := d.db.WithContext(ctx).Create(session)
	if result.Error != nil {
		return nil, result.Error
	}
	return session, nil
}

// GetSession retrieves a chat session by id.
func (d *Driver) GetSession(ctx context.Context, id string) (*store.ChatSession, error) {
	var session store.ChatSession
	result := d.db.WithContext(ctx).First(&session, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &session, nil
}

// AppendMessage appends a message with a store-assigned timestamp.
// Appends within one session are serialized so the assigned timestamp is
// never earlier than the previous message's; the autoincrement id breaks
// equal-timestamp ties in insertion order.
func (d *Driver) AppendMessage(ctx context.Context, sessionID string, sender store.Sender, text string) (*store.ChatMessage, error) {
	unlock := d.sessionLocks.Lock(sessionID)
	defer unlock()

	if _, err := d.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	var last store.ChatMessage
	result := d.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp DESC, id DESC").
		Limit(1).
		Find(&last)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 && ts.Before(last.Timestamp) {
		ts = last.Timestamp
	}

	msg := &store.ChatMessage{
		SessionID: sessionID,
		Sender:    sender,
		Message:   text,
		Timestamp: ts,
	}
	if err := d.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns a session's messages in timestamp order.
func (d *Driver) ListMessages(ctx context.Context, sessionID string) ([]*store.ChatMessage, error) {
	if _, err := d.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	messages := make([]*store.ChatMessage, 0)
	result := d.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC, id ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}
	return messages, nil
}

// UserStore implementation

// CreateUser creates a new user.
func (d *Driver) CreateUser(ctx context.Context, user *store.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	var count int64
	if err := d.db.WithContext(ctx).Model(&store.User{}).
		Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return store.ErrAlreadyExists
	}

	return d.db.WithContext(ctx).Create(user).Error
}

// GetUser retrieves a user by id.
func (d *Driver) GetUser(ctx context.Context, id string) (*store.User, error) {
	var user store.User
	result := d.db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (d *Driver) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	var user store.User
	result := d.db.WithContext(ctx).First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// CountUsers returns the number of registered users.
func (d *Driver) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	result := d.db.WithContext(ctx).Model(&store.User{}).Count(&count)
	return count, result.Error
}

// ProjectStore implementation

// CreateProject creates a new project.
func (d *Driver) CreateProject(ctx context.Context, project *store.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	return d.db.WithContext(ctx).Create(project).Error
}

// GetProject retrieves a project by id.
func (d *Driver) GetProject(ctx context.Context, id string) (*store.Project, error) {
	var project store.Project
	result := d.db.WithContext(ctx).First(&project, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &project, nil
}

// UpdateProject updates an existing project.
func (d *Driver) UpdateProject(ctx context.Context, project *store.Project) error {
	existing, err := d.GetProject(ctx, project.ID)
	if err != nil {
		return err
	}
	project.CreatedAt = existing.CreatedAt
	project.UpdatedAt = time.Now().UTC()
	return d.db.WithContext(ctx).Save(project).Error
}

// DeleteProject deletes a project and its comments.
func (d *Driver) DeleteProject(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&store.Project{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return tx.Delete(&store.Comment{}, "project_id = ?", id).Error
	})
}

// ListProjects returns all projects, newest first.
func (d *Driver) ListProjects(ctx context.Context) ([]*store.Project, error) {
	projects := make([]*store.Project, 0)
	result := d.db.WithContext(ctx).Order("created_at DESC").Find(&projects)
	if result.Error != nil {
		return nil, result.Error
	}
	return projects, nil
}

// CreateComment appends a comment to a project.
func (d *Driver) CreateComment(ctx context.Context, comment *store.Comment) error {
	if _, err := d.GetProject(ctx, comment.ProjectID); err != nil {
		return err
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	return d.db.WithContext(ctx).Create(comment).Error
}

// ListComments returns a project's comments, oldest first.
func (d *Driver) ListComments(ctx context.Context, projectID string) ([]*store.Comment, error) {
	if _, err := d.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	comments := make([]*store.Comment, 0)
	result := d.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&comments)
	if result.Error != nil {
		return nil, result.Error
	}
	return comments, nil
}

// AnalyticsStore implementation

// RecordPageView stores a single page view.
func (d *Driver) RecordPageView(ctx context.Context, view *store.PageView) error {
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}
	return d.db.WithContext(ctx).Create(view).Error
}

// ViewStats aggregates recorded page views.
func (d *Driver) ViewStats(ctx context.Context) (*store.ViewStats, error) {
	stats := &store.ViewStats{}

	if err := d.db.WithContext(ctx).Model(&store.PageView{}).
		Count(&stats.TotalViews).Error; err != nil {
		return nil, err
	}

	if err := d.db.WithContext(ctx).Model(&store.PageView{}).
		Distinct("visitor").Count(&stats.UniqueVisitors).Error; err != nil {
		return nil, err
	}

	rows := make([]store.PathViews, 0)
	if err := d.db.WithContext(ctx).Model(&store.PageView{}).
		Select("path, count(*) as views").
		Group("path").
		Order("views DESC, path ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	stats.ViewsByPath = rows

	return stats, nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
var _ store.SessionStore = (*Driver)(nil)
var _ store.UserStore = (*Driver)(nil)
var _ store.ProjectStore = (*Driver)(nil)
var _ store.AnalyticsStore = (*Driver)(nil)
