package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection holding build stamps.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Stamp records when a root was last built and what its closure looked like.
type Stamp struct {
	RootPath    string
	BuiltAt     time.Time
	Fingerprint string
}

// cacheDir returns the default directory for the stamp database.
func cacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	dir := filepath.Join(home, ".cache", "depclosure")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir cache: %w", err)
	}
	return dir, nil
}

// DefaultPath returns ~/.cache/depclosure/stamps.db.
func DefaultPath() (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "stamps.db"), nil
}

// OpenPath opens or creates the stamp database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// Each pooled connection would get its own empty :memory: database.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dbPath: ":memory:"}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS stamps (
		root_path TEXT PRIMARY KEY,
		built_at INTEGER NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT ''
	);`)
	return err
}

// PutStamp inserts or replaces the stamp for st.RootPath.
func (s *Store) PutStamp(st Stamp) error {
	_, err := s.db.Exec(`
		INSERT INTO stamps (root_path, built_at, fingerprint) VALUES (?, ?, ?)
		ON CONFLICT(root_path) DO UPDATE SET built_at=excluded.built_at, fingerprint=excluded.fingerprint`,
		st.RootPath, st.BuiltAt.UnixNano(), st.Fingerprint)
	if err != nil {
		return fmt.Errorf("put stamp: %w", err)
	}
	return nil
}

// GetStamp returns the stamp for root, or nil if it was never built.
func (s *Store) GetStamp(root string) (*Stamp, error) {
	var (
		st      Stamp
		builtAt int64
	)
	err := s.db.QueryRow(`SELECT root_path, built_at, fingerprint FROM stamps WHERE root_path=?`, root).
		Scan(&st.RootPath, &builtAt, &st.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stamp: %w", err)
	}
	st.BuiltAt = time.Unix(0, builtAt)
	return &st, nil
}

// ListStamps returns every stamp ordered by root path.
func (s *Store) ListStamps() ([]Stamp, error) {
	rows, err := s.db.Query(`SELECT root_path, built_at, fingerprint FROM stamps ORDER BY root_path`)
	if err != nil {
		return nil, fmt.Errorf("list stamps: %w", err)
	}
	defer rows.Close()

	var stamps []Stamp
	for rows.Next() {
		var (
			st      Stamp
			builtAt int64
		)
		if err := rows.Scan(&st.RootPath, &builtAt, &st.Fingerprint); err != nil {
			return nil, err
		}
		st.BuiltAt = time.Unix(0, builtAt)
		stamps = append(stamps, st)
	}
	return stamps, rows.Err()
}

// DeleteStamp forgets root. Deleting an unknown root is not an error.
func (s *Store) DeleteStamp(root string) error {
	if _, err := s.db.Exec(`DELETE FROM stamps WHERE root_path=?`, root); err != nil {
		return fmt.Errorf("delete stamp: %w", err)
	}
	return nil
}
