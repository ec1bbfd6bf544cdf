package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level is the severity shown to the user
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a one-shot message for the presentation layer
type Notification struct {
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier receives user-visible notifications
type Notifier interface {
	Notify(n Notification)
}

// Queue buffers notifications until the presentation layer drains them.
// When full, the oldest notification is dropped.
type Queue struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
}

// NewQueue creates a queue holding at most capacity notifications
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		items:    make([]Notification, 0, capacity),
		capacity: capacity,
	}
}

// Notify appends n to the queue
func (q *Queue) Notify(n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == q.capacity {
		slog.Warn("Notification queue full, dropping oldest", "dropped_title", q.items[0].Title)
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
}

// Drain returns and removes all pending notifications
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = make([]Notification, 0, q.capacity)
	return out
}

// Len returns the number of pending notifications
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// FetchFailed is the generic notification for a failed background fetch
func FetchFailed(source string) Notification {
	return Notification{
		Level:  LevelError,
		Title:  "Something went wrong!",
		Text:   "Please try again later",
		Source: source,
	}
}

// Failed reports a failed user command with the server's message
func Failed(source, title, text string) Notification {
	return Notification{
		Level:  LevelError,
		Title:  title,
		Text:   text,
		Source: source,
	}
}

// Succeeded reports a completed user command
func Succeeded(source, text string) Notification {
	return Notification{
		Level:  LevelSuccess,
		Title:  "Success!",
		Text:   text,
		Source: source,
	}
}
