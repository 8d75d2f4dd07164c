// Package history keeps the bounded list of recently started downloads.
package history

import (
	"fmt"
	"io"
	"sync"
	"time"

	"scdl/types"
)

const (
	// Capacity is the maximum number of entries kept
	Capacity = 10
	// SlotKey names the durable slot holding the list
	SlotKey = "scDownloads"
)

// Store is a durable slot holding the whole list
type Store interface {
	Load() ([]types.HistoryEntry, error)
	Save(entries []types.HistoryEntry) error
}

// List is the in-memory view of the history, newest first
type List struct {
	mu      sync.Mutex
	store   Store
	entries []types.HistoryEntry
}

// Open loads the current list from store
func Open(store Store) (*List, error) {
	entries, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(entries) > Capacity {
		entries = entries[:Capacity]
	}

	return &List{store: store, entries: entries}, nil
}

// NewEntry builds an entry for a download started at now
func NewEntry(url string, mode types.Mode, now time.Time) types.HistoryEntry {
	return types.HistoryEntry{
		ID:   now.UnixMilli(),
		URL:  url,
		Mode: mode,
		Date: now.Format("02/01/2006"),
		Time: now.Format("15:04"),
	}
}

// Record prepends entry, drops the oldest entries beyond Capacity and
// persists the result.
func (l *List) Record(entry types.HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]types.HistoryEntry, 0, Capacity)
	entries = append(entries, entry)
	entries = append(entries, l.entries...)
	if len(entries) > Capacity {
		entries = entries[:Capacity]
	}
	l.entries = entries

	if err := l.store.Save(entries); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

// Entries returns a copy of the list, newest first
func (l *List) Entries() []types.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.HistoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Render writes the list, or an empty-state placeholder, to w
func Render(w io.Writer, entries []types.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No recent downloads")
		return err
	}

	for _, e := range entries {
		title := "Track"
		if e.Mode == types.ModePlaylist {
			title = "Playlist"
		}

		if _, err := fmt.Fprintf(w, "%-8s  %-43s  %s %s\n", title, truncate(e.URL, 40), e.Date, e.Time); err != nil {
			return err
		}
	}
	return nil
}

// truncate keeps the first n runes of s
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// MemoryStore keeps the slot in memory
type MemoryStore struct {
	mu      sync.Mutex
	entries []types.HistoryEntry
	saves   int
}

func (m *MemoryStore) Load() ([]types.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.HistoryEntry(nil), m.entries...), nil
}

func (m *MemoryStore) Save(entries []types.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]types.HistoryEntry(nil), entries...)
	m.saves++
	return nil
}

// Saves reports how many times the slot was written
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
