package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/kamusis/sentari/internal/diary"
)

const (
	entriesFile = "entries.jsonl"
	profileFile = "profile.json"
	lockFile    = ".lock"

	lockRetryDelay = 50 * time.Millisecond
	maxLineBytes   = 16 << 20
)

// FileStore keeps each user under <root>/users/<user>/: an append-only
// entries.jsonl log and a profile.json snapshot replaced atomically on save.
type FileStore struct {
	root string
}

// NewFile returns a file store rooted at dir, creating it if needed.
func NewFile(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "users"), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create data dir %s: %w", dir, err)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) userDir(userID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, "users", userID), nil
}

// Lock takes the user's cross-process lock, retrying until ctx is done.
func (s *FileStore) Lock(ctx context.Context, userID string) (func(), error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create user dir %s: %w", dir, err)
	}
	return lockPath(ctx, filepath.Join(dir, lockFile), userID)
}

// lockPath takes an exclusive flock on path, retrying until ctx is done.
func lockPath(ctx context.Context, path, userID string) (func(), error) {
	l := flock.New(path)
	locked, err := l.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("cannot acquire lock for %s: %w", userID, err)
	}
	if !locked {
		return nil, fmt.Errorf("another process holds the lock for %s", userID)
	}
	return func() { _ = l.Unlock() }, nil
}

func (s *FileStore) LoadRecent(ctx context.Context, userID string, n int) ([]diary.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	log, err := readEntries(filepath.Join(dir, entriesFile))
	if err != nil {
		return nil, err
	}
	return newestFirst(log, n), nil
}

func (s *FileStore) Count(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(filepath.Join(dir, entriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("cannot open entries: %w", err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("cannot read entries: %w", err)
	}
	return n, nil
}

func (s *FileStore) Append(ctx context.Context, userID string, e diary.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	_, err = appendEntry(dir, e)
	return err
}

func (s *FileStore) Load(ctx context.Context, userID string) (*diary.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	p := filepath.Join(dir, profileFile)
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return diary.NewProfile(), nil
		}
		return nil, fmt.Errorf("cannot read profile %s: %w", p, err)
	}
	prof := diary.NewProfile()
	if err := json.Unmarshal(b, prof); err != nil {
		return nil, fmt.Errorf("invalid profile JSON %s: %w", p, err)
	}
	return prof, nil
}

func (s *FileStore) Save(ctx context.Context, userID string, p *diary.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	return writeProfile(dir, p)
}

// Commit appends e, then replaces the profile. If the profile cannot be
// written the log is truncated back to its previous size.
func (s *FileStore) Commit(ctx context.Context, userID string, e diary.HistoryEntry, p *diary.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	prevSize, err := appendEntry(dir, e)
	if err != nil {
		return err
	}
	if err := writeProfile(dir, p); err != nil {
		if terr := os.Truncate(filepath.Join(dir, entriesFile), prevSize); terr != nil {
			return errors.Join(err, fmt.Errorf("cannot roll back entry %s: %w", e.ID, terr))
		}
		return err
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// appendEntry writes e as one JSON line and returns the log size before the
// write.
func appendEntry(dir string, e diary.HistoryEntry) (int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("cannot create user dir %s: %w", dir, err)
	}
	line, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("cannot marshal entry %s: %w", e.ID, err)
	}
	p := filepath.Join(dir, entriesFile)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("cannot open entries %s: %w", p, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("cannot stat entries %s: %w", p, err)
	}
	prev := st.Size()
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		_ = os.Truncate(p, prev)
		return 0, fmt.Errorf("cannot append entry %s: %w", e.ID, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("cannot sync entries %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return prev, nil
}

func writeProfile(dir string, p *diary.Profile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create user dir %s: %w", dir, err)
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal profile: %w", err)
	}
	tmp, err := os.CreateTemp(dir, profileFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create temp profile: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cannot write temp profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	dst := filepath.Join(dir, profileFile)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("cannot replace profile %s: %w", dst, err)
	}
	return nil
}

func readEntries(path string) ([]diary.HistoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot open entries %s: %w", path, err)
	}
	defer f.Close()

	var out []diary.HistoryEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e diary.HistoryEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("invalid entries JSONL %s: %w", path, err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read entries %s: %w", path, err)
	}
	return out, nil
}
