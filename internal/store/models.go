package store

import "time"

// Sender identifies who authored a chat message. The set is closed: a
// message is either a user turn or a bot turn.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reports whether s is one of the permitted sender values.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// ChatSession groups an ordered sequence of chat messages.
type ChatSession struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is a single turn in a chat session. Timestamp is assigned
// by the store at append time, never by the client. ID is monotonic per
// insertion and breaks timestamp ties.
type ChatMessage struct {
	ID        uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	SessionID string    `json:"session_id" gorm:"index"`
	Sender    Sender    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// User is an authenticated account. The first registered user becomes
// the admin unless one was bootstrapped from config.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex"`
	PasswordHash string    `json:"-"` // bcrypt hash, never serialized
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Project is a portfolio entry.
type Project struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags" gorm:"serializer:json"`
	ImageURL    string    `json:"image_url"`
	LiveURL     string    `json:"live_url"`
	RepoURL     string    `json:"repo_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Comment is a visitor comment on a project.
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ProjectID string    `json:"project_id" gorm:"index"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// PageView is a single recorded page view.
type PageView struct {
	ID        uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Path      string    `json:"path" gorm:"index"`
	Visitor   string    `json:"visitor" gorm:"index"` // opaque visitor token
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// PathViews is the view count for a single path.
type PathViews struct {
	Path  string `json:"path"`
	Views int64  `json:"views"`
}

// ViewStats is the aggregate page-view report.
type ViewStats struct {
	TotalViews     int64       `json:"total_views"`
	UniqueVisitors int64       `json:"unique_visitors"`
	ViewsByPath    []PathViews `json:"views_by_path"`
}
