// Package notify is the dismissible notification sink shown by the client
// bundle as toasts.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sink accepts notifications.
type Sink interface {
	Notify(level Level, title, message string)
}

// Queue keeps the most recent notifications, oldest dropped first.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	limit int
	now   func() time.Time
}

const defaultLimit = 20

func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Queue{limit: limit, now: time.Now}
}

func (q *Queue) Notify(level Level, title, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: q.now().UTC(),
	})
	if over := len(q.items) - q.limit; over > 0 {
		q.items = append([]Notification(nil), q.items[over:]...)
	}
}

// List returns pending notifications, oldest first.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification{}, q.items...)
}

// Dismiss removes one notification and reports whether it existed.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}
