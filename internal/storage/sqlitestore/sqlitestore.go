// Package sqlitestore is the durable storage adapter backed by SQLite.
// Meant for long lived hosts (desktop agents, kiosks) where sessions and
// lockout state must survive restarts. Uses the pure Go driver, so the SDK
// stays CGO free.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // driver registers itself under name "sqlite"

	"github.com/voyago/tripsession/internal/apperrors"
	"github.com/voyago/tripsession/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	path       TEXT NOT NULL DEFAULT '',
	secure     INTEGER NOT NULL DEFAULT 0,
	same_site  TEXT NOT NULL DEFAULT '',
	expires_at INTEGER
);`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New opens the database at path and creates the schema if needed.
// Foreign keys pragma is not required for a single table but WAL keeps
// concurrent readers cheap.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("error while creating schema. Err: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Set(key string, value string, opts storage.Options) error {
	var expiresAt *int64
	if opts.TTL > 0 {
		ms := s.now().Add(opts.TTL).UnixMilli()
		expiresAt = &ms
	}

	secure := 0
	if opts.Secure {
		secure = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, path, secure, same_site, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			path = excluded.path,
			secure = excluded.secure,
			same_site = excluded.same_site,
			expires_at = excluded.expires_at`,
		key, value, opts.Path, secure, opts.SameSite, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Get(key string) (string, bool) {
	var value string
	var expiresAt *int64

	err := s.db.QueryRow(`SELECT value, expires_at FROM kv WHERE key = ?`, key).
		Scan(&value, &expiresAt)
	if err != nil {
		return "", false
	}

	if expiresAt != nil && *expiresAt <= s.now().UnixMilli() {
		s.Remove(key)
		return "", false
	}
	return value, true
}

func (s *Store) Remove(key string) {
	_, _ = s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
}

func (s *Store) Clear() {
	_, _ = s.db.Exec(`DELETE FROM kv`)
}

// Sweep deletes expired rows, returns how many were dropped
func (s *Store) Sweep() int {
	res, err := s.db.Exec(`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}
