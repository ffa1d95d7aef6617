// Package store persists diary history and per-user profiles.
//
// Three backends share one contract: an in-memory store for tests and
// throwaway sessions, a JSONL file store guarded by a cross-process file
// lock, and a SQLite store. Every value handed out is a deep copy, so callers
// can never mutate stored state.
package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/kamusis/sentari/internal/diary"
)

// HistoryStore is the ordered, append-only entry log of each user.
type HistoryStore interface {
	// LoadRecent returns up to n entries, newest first. n <= 0 returns all.
	LoadRecent(ctx context.Context, userID string, n int) ([]diary.HistoryEntry, error)
	Append(ctx context.Context, userID string, e diary.HistoryEntry) error
	Count(ctx context.Context, userID string) (int, error)
}

// ProfileStore holds one profile per user.
type ProfileStore interface {
	// Load returns the stored profile, or a fresh diary.NewProfile when the
	// user has none yet.
	Load(ctx context.Context, userID string) (*diary.Profile, error)
	Save(ctx context.Context, userID string, p *diary.Profile) error
}

// Store is what a pipeline run needs. Commit appends e and saves p as one
// unit: either both are persisted or neither is.
type Store interface {
	HistoryStore
	ProfileStore
	Commit(ctx context.Context, userID string, e diary.HistoryEntry, p *diary.Profile) error
	Close() error
}

// Locker is implemented by stores that can exclude other processes from a
// user's data. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, userID string) (func(), error)
}

var userIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateUserID rejects IDs that are empty, too long, or unsafe to use as a
// path component.
func ValidateUserID(userID string) error {
	if !userIDRe.MatchString(userID) {
		return &diary.ValidationError{
			Field:  "user",
			Reason: fmt.Sprintf("%q must be 1-64 characters of letters, digits, '.', '_' or '-'", userID),
		}
	}
	return nil
}
