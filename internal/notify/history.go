package notify

import (
	"strings"
	"sync"

	"github.com/samber/lo"
)

// History is a thread-safe ring buffer of notices
type History struct {
	mu      sync.RWMutex
	entries []Notice
	cap     int
}

// NewHistory creates a new history with the given capacity
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		entries: make([]Notice, 0, capacity),
		cap:     capacity,
	}
}

// Add adds a notice, dropping the oldest when full
func (h *History) Add(n Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cap {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = n
	} else {
		h.entries = append(h.entries, n)
	}
}

// Entries returns all notices, optionally filtered by level
func (h *History) Entries(levels []string) []Notice {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(levels) == 0 {
		result := make([]Notice, len(h.entries))
		copy(result, h.entries)
		return result
	}

	want := lo.Map(levels, func(l string, _ int) Level { return Level(strings.ToLower(l)) })
	return lo.Filter(h.entries, func(n Notice, _ int) bool {
		return lo.Contains(want, n.Level)
	})
}

// Clear removes all notices
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}
