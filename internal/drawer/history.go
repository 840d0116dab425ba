package drawer

import (
	"sync"
	"time"
)

// Record describes one drawer attempt
type Record struct {
	ID         string     `json:"id"`
	RegisterID string     `json:"register_id,omitempty"`
	Printer    string     `json:"printer,omitempty"`
	Status     string     `json:"status"` // opening, opened, failed, rejected
	Kind       string     `json:"kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	PageURL    string     `json:"page_url,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// History is a thread-safe ring buffer of drawer attempts
type History struct {
	mu      sync.RWMutex
	entries []Record
	cap     int
}

// NewHistory creates a new history with the given capacity
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		entries: make([]Record, 0, capacity),
		cap:     capacity,
	}
}

// Add adds a record to the history
func (h *History) Add(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cap {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = rec
	} else {
		h.entries = append(h.entries, rec)
	}
}

// Entries returns all records (newest first)
func (h *History) Entries() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Record, len(h.entries))
	for i, j := 0, len(h.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = h.entries[j]
	}
	return result
}

// Finish updates the outcome of a record by ID
func (h *History) Finish(id, status string, printer string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].ID != id {
			continue
		}
		h.entries[i].Status = status
		if printer != "" {
			h.entries[i].Printer = printer
		}
		if err != nil {
			h.entries[i].Error = err.Error()
			h.entries[i].Kind = KindOf(err).String()
		}
		now := time.Now()
		h.entries[i].FinishedAt = &now
		return
	}
}
