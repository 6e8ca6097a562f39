package cache

import (
	"sync"
	"time"
)

type timed[T any] struct {
	at    time.Time
	value T
}

// History is a bounded time-windowed list of samples. Entries older than
// the window are pruned lazily on each append, not by a timer.
type History[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	entries []timed[T]

	now func() time.Time
}

// NewHistory creates a history retaining samples for the given window.
func NewHistory[T any](window time.Duration) *History[T] {
	return &History[T]{
		window: window,
		now:    time.Now,
	}
}

// Append records a sample at the current time and prunes expired entries.
func (h *History[T]) Append(value T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.entries = append(h.entries, timed[T]{at: now, value: value})

	cutoff := now.Add(-h.window)
	keep := 0
	for keep < len(h.entries) && h.entries[keep].at.Before(cutoff) {
		keep++
	}
	if keep > 0 {
		h.entries = append([]timed[T]{}, h.entries[keep:]...)
	}
}

// Since returns the samples recorded within the last d, oldest first.
// d larger than the retention window just returns everything retained.
func (h *History[T]) Since(d time.Duration) []T {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-d)
	out := []T{}
	for _, e := range h.entries {
		if !e.at.Before(cutoff) {
			out = append(out, e.value)
		}
	}
	return out
}

// Len returns the number of retained samples.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
