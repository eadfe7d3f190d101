package notify

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const DefaultCapacity = 50

type Notice struct {
	ID          string    `json:"id"`
	Level       Level     `json:"level"`
	Message     string    `json:"message"`
	WorkspaceID uint      `json:"ws_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Inbox keeps the pending notices of each user. Once a user holds capacity
// notices the oldest one is dropped.
type Inbox struct {
	mu       sync.Mutex
	capacity int
	pending  map[uint][]Notice
	entropy  *ulid.MonotonicEntropy
	now      func() time.Time
}

func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Inbox{
		capacity: capacity,
		pending:  make(map[uint][]Notice),
		entropy:  ulid.Monotonic(rand.Reader, 0),
		now:      time.Now,
	}
}

func (b *Inbox) Push(userID uint, level Level, wsID uint, message string) Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	n := Notice{
		ID:          ulid.MustNew(ulid.Timestamp(now), b.entropy).String(),
		Level:       level,
		Message:     message,
		WorkspaceID: wsID,
		CreatedAt:   now,
	}
	queue := append(b.pending[userID], n)
	if over := len(queue) - b.capacity; over > 0 {
		queue = append([]Notice(nil), queue[over:]...)
	}
	b.pending[userID] = queue
	return n
}

func (b *Inbox) Success(userID, wsID uint, message string) Notice {
	return b.Push(userID, LevelSuccess, wsID, message)
}

func (b *Inbox) Info(userID, wsID uint, message string) Notice {
	return b.Push(userID, LevelInfo, wsID, message)
}

func (b *Inbox) Warning(userID, wsID uint, message string) Notice {
	return b.Push(userID, LevelWarning, wsID, message)
}

func (b *Inbox) Error(userID, wsID uint, message string) Notice {
	return b.Push(userID, LevelError, wsID, message)
}

// Drain returns the pending notices of a user, oldest first, and clears them.
func (b *Inbox) Drain(userID uint) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending[userID]
	delete(b.pending, userID)
	if out == nil {
		return []Notice{}
	}
	return out
}
