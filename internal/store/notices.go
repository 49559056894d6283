package store

import (
	"sync"
	"time"
)

// NoticeLevel grades how loudly the collaborator should show a notice
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a transient advisory message, e.g. "sync unavailable,
// working locally". Notices expire on their own; they are never errors.
type Notice struct {
	Message   string
	Level     NoticeLevel
	ExpiresAt time.Time
}

// Notices is the in-memory notice board the collaborator polls
type Notices struct {
	mu  sync.Mutex
	ttl time.Duration
	all []Notice
}

// NewNotices creates a board whose notices auto-dismiss after ttl
func NewNotices(ttl time.Duration) *Notices {
	return &Notices{ttl: ttl}
}

// Post adds a notice that will expire after the board's TTL
func (n *Notices) Post(level NoticeLevel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, Notice{
		Message:   message,
		Level:     level,
		ExpiresAt: time.Now().Add(n.ttl),
	})
}

// Active returns the notices that have not expired yet, dropping the
// rest from the board
func (n *Notices) Active() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	var live []Notice
	for _, notice := range n.all {
		if notice.ExpiresAt.After(now) {
			live = append(live, notice)
		}
	}
	n.all = live
	return live
}
