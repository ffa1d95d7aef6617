package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kamusis/sentari/internal/diary"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string][]diary.HistoryEntry
	profiles map[string]*diary.Profile
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string][]diary.HistoryEntry),
		profiles: make(map[string]*diary.Profile),
	}
}

func (m *MemoryStore) LoadRecent(ctx context.Context, userID string, n int) ([]diary.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.entries[userID], n), nil
}

func (m *MemoryStore) Append(ctx context.Context, userID string, e diary.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = append(m.entries[userID], e.Clone())
	return nil
}

func (m *MemoryStore) Count(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := ValidateUserID(userID); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[userID]), nil
}

func (m *MemoryStore) Load(ctx context.Context, userID string) (*diary.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[userID]; ok {
		return p.Clone(), nil
	}
	return diary.NewProfile(), nil
}

func (m *MemoryStore) Save(ctx context.Context, userID string, p *diary.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = p.Clone()
	return nil
}

func (m *MemoryStore) Commit(ctx context.Context, userID string, e diary.HistoryEntry, p *diary.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = append(m.entries[userID], e.Clone())
	m.profiles[userID] = p.Clone()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// newestFirst copies up to n entries ordered by timestamp, newest first.
// Entries with equal timestamps keep reverse append order.
func newestFirst(log []diary.HistoryEntry, n int) []diary.HistoryEntry {
	out := make([]diary.HistoryEntry, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, log[i].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
