package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NoticeKind classifies a transient notice.
type NoticeKind string

const (
	NoticeReward   NoticeKind = "reward"
	NoticeProgress NoticeKind = "progress"
	NoticeWarning  NoticeKind = "warning"
)

// Notice is a message shown for a limited time.
type Notice struct {
	ID        uuid.UUID  `json:"id"`
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	PostedAt  time.Time  `json:"posted_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Visible reports whether the notice is still shown at now.
func (n Notice) Visible(now time.Time) bool {
	return now.Before(n.ExpiresAt)
}

// NoticeBoard holds transient notices. Expired notices are dropped by
// Expire, which the session timer calls on every tick.
type NoticeBoard struct {
	mu      sync.Mutex
	ttl     time.Duration
	notices []Notice
}

// NewNoticeBoard creates a board. A non-positive ttl means 3 seconds.
func NewNoticeBoard(ttl time.Duration) *NoticeBoard {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &NoticeBoard{ttl: ttl}
}

// Post adds a notice visible from now for the board's TTL.
func (b *NoticeBoard) Post(kind NoticeKind, message string, now time.Time) Notice {
	n := Notice{
		ID:        uuid.New(),
		Kind:      kind,
		Message:   message,
		PostedAt:  now,
		ExpiresAt: now.Add(b.ttl),
	}

	b.mu.Lock()
	b.notices = append(b.notices, n)
	b.mu.Unlock()
	return n
}

// Expire removes notices no longer visible at now and returns how many
// were removed.
func (b *NoticeBoard) Expire(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.notices[:0]
	for _, n := range b.notices {
		if n.Visible(now) {
			kept = append(kept, n)
		}
	}
	removed := len(b.notices) - len(kept)
	b.notices = kept
	return removed
}

// Visible returns the notices shown at now, oldest first.
func (b *NoticeBoard) Visible(now time.Time) []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Notice, 0, len(b.notices))
	for _, n := range b.notices {
		if n.Visible(now) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.Before(out[j].PostedAt) })
	return out
}

// Clear drops every notice.
func (b *NoticeBoard) Clear() {
	b.mu.Lock()
	b.notices = nil
	b.mu.Unlock()
}
