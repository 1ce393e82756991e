package utils

import (
	"context"
	"strings"
	"sync"
	"time"
)

// URLTracker remembers URLs for a cooldown window. It is the in-process
// counterpart of the Redis-backed scrape cooldown tracker.
type URLTracker struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewURLTracker creates a tracker whose entries expire after ttl.
// A zero ttl keeps entries forever.
func NewURLTracker(ttl time.Duration) *URLTracker {
	return &URLTracker{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

// Add returns true if the URL is new (or its cooldown has expired), false if still tracked
func (t *URLTracker) Add(url string) bool {
	key := trackerKey(url)
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if at, exists := t.seen[key]; exists && (t.ttl == 0 || now.Sub(at) < t.ttl) {
		return false
	}
	t.seen[key] = now
	return true
}

// Claim implements the cooldown tracker contract used by the ingestion job
func (t *URLTracker) Claim(_ context.Context, url string) (bool, error) {
	return t.Add(url), nil
}

func trackerKey(url string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(url)), "/")
}
