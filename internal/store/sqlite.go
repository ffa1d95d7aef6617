package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kamusis/sentari/internal/diary"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	raw_text       TEXT NOT NULL,
	parsed         TEXT NOT NULL,
	meta           TEXT NOT NULL,
	embedding      BLOB,
	created_at     INTEGER NOT NULL,
	carry_in       INTEGER NOT NULL DEFAULT 0,
	emotional_flip INTEGER NOT NULL DEFAULT 0,
	response_text  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_entries_user_time ON entries(user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteStore keeps entries and profiles in a single SQLite database.
// Per-user locks are flock files in <path>.locks/, shared by every handle
// and process opening the same database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a private in-memory database.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("cannot create directory for %s: %w", path, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cannot apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Lock takes the user's cross-process lock, retrying until ctx is done. A
// ":memory:" database is private to its handle and needs none.
func (s *SQLiteStore) Lock(ctx context.Context, userID string) (func(), error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if s.path == ":memory:" {
		return func() {}, nil
	}
	dir := s.path + ".locks"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create lock dir %s: %w", dir, err)
	}
	return lockPath(ctx, filepath.Join(dir, userID+".lock"), userID)
}

func (s *SQLiteStore) LoadRecent(ctx context.Context, userID string, n int) ([]diary.HistoryEntry, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_text, parsed, meta, embedding, created_at, carry_in, emotional_flip, response_text
		FROM entries WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("cannot query entries: %w", err)
	}
	defer rows.Close()

	var out []diary.HistoryEntry
	for rows.Next() {
		var (
			e             diary.HistoryEntry
			parsed, meta  string
			blob          []byte
			createdAt     int64
			carryIn, flip bool
		)
		if err := rows.Scan(&e.ID, &e.RawText, &parsed, &meta, &blob, &createdAt, &carryIn, &flip, &e.ResponseText); err != nil {
			return nil, fmt.Errorf("cannot scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(parsed), &e.Classified); err != nil {
			return nil, fmt.Errorf("invalid parsed JSON for entry %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(meta), &e.Meta); err != nil {
			return nil, fmt.Errorf("invalid meta JSON for entry %s: %w", e.ID, err)
		}
		if e.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.UserID = userID
		e.Timestamp = time.Unix(0, createdAt).UTC()
		e.CarryIn, e.EmotionalFlip = carryIn, flip
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot read entries: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context, userID string) (int, error) {
	if err := ValidateUserID(userID); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("cannot count entries: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Append(ctx context.Context, userID string, e diary.HistoryEntry) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	return insertEntry(ctx, s.db, userID, e)
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (*diary.Profile, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return diary.NewProfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load profile: %w", err)
	}
	p := diary.NewProfile()
	if err := json.Unmarshal([]byte(data), p); err != nil {
		return nil, fmt.Errorf("invalid profile JSON for %s: %w", userID, err)
	}
	return p, nil
}

func (s *SQLiteStore) Save(ctx context.Context, userID string, p *diary.Profile) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	return upsertProfile(ctx, s.db, userID, p)
}

// Commit inserts e and upserts p in one transaction.
func (s *SQLiteStore) Commit(ctx context.Context, userID string, e diary.HistoryEntry, p *diary.Profile) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cannot begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertEntry(ctx, tx, userID, e); err != nil {
		return err
	}
	if err := upsertProfile(ctx, tx, userID, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cannot commit entry %s: %w", e.ID, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEntry(ctx context.Context, db execer, userID string, e diary.HistoryEntry) error {
	parsed, err := json.Marshal(e.Classified)
	if err != nil {
		return fmt.Errorf("cannot marshal parsed entry: %w", err)
	}
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("cannot marshal metadata: %w", err)
	}
	blob, err := encodeVector(e.Embedding)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO entries (id, user_id, raw_text, parsed, meta, embedding, created_at, carry_in, emotional_flip, response_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, userID, e.RawText, string(parsed), string(meta), blob, e.Timestamp.UnixNano(), e.CarryIn, e.EmotionalFlip, e.ResponseText)
	if err != nil {
		return fmt.Errorf("cannot insert entry %s: %w", e.ID, err)
	}
	return nil
}

func upsertProfile(ctx context.Context, db execer, userID string, p *diary.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cannot marshal profile: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("cannot save profile: %w", err)
	}
	return nil
}
