// Package progress holds the per-slot status table shared by clip workers
// and the display loop that renders it.
package progress

import (
	"sync"

	"streamsnip/internal/consts"
)

// Table maps a worker slot to its latest status string.
// Writes are last-write-wins until the slot is finished; a finished slot is frozen.
type Table struct {
	mu       sync.Mutex
	size     int
	statuses map[int]string
	finished map[int]bool
}

// NewTable creates a table for slots 0..size-1.
func NewTable(size int) *Table {
	return &Table{
		size:     size,
		statuses: make(map[int]string, size),
		finished: make(map[int]bool, size),
	}
}

// Len returns the number of slots.
func (t *Table) Len() int {
	return t.size
}

// Set records an intermediate status. It is ignored once the slot is finished.
func (t *Table) Set(slot int, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished[slot] {
		return
	}

	t.statuses[slot] = status
}

// Finish records a terminal status. Later Set and Finish calls are ignored.
func (t *Table) Finish(slot int, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished[slot] {
		return
	}

	t.statuses[slot] = status
	t.finished[slot] = true
}

// Status returns the latest status, "0%" when the slot has not reported yet.
func (t *Table) Status(slot int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.status(slot)
}

// Snapshot copies all statuses in slot order.
func (t *Table) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, t.size)
	for slot := range t.size {
		out[slot] = t.status(slot)
	}

	return out
}

func (t *Table) status(slot int) string {
	if s, ok := t.statuses[slot]; ok {
		return s
	}

	return consts.StatusPending
}
