package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite database that holds the learning archive and the
// chat transcript. The live profile and memory documents stay in JSON.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) agenttwo.db in dataDir and applies pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "agenttwo.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and avoids
	// "database is locked" on file databases.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Learning archive ---

// ArchiveLearningEntries stores entries evicted from a learning log. The
// insert is atomic: either every entry is archived or none is.
func (s *Store) ArchiveLearningEntries(log string, entries []ArchivedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning archive: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO learning_archive (id, log, created_at, message, intent, success, feedback, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing archive insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(timeLayout)
	for _, e := range entries {
		if _, err := stmt.Exec(
			e.ID, log, e.CreatedAt.UTC().Format(timeLayout),
			e.Message, e.Intent, boolToInt(e.Success), e.Feedback, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("archiving entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// ArchivedEntries returns archived entries of one log, newest first.
func (s *Store) ArchivedEntries(log string, limit int) ([]ArchivedEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, log, created_at, message, intent, success, feedback, archived_at
		FROM learning_archive WHERE log = ? ORDER BY created_at DESC LIMIT ?`, log, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedEntry
	for rows.Next() {
		var (
			e                     ArchivedEntry
			createdAt, archivedAt string
			success               int
		)
		if err := rows.Scan(&e.ID, &e.Log, &createdAt, &e.Message, &e.Intent, &success, &e.Feedback, &archivedAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if e.ArchivedAt, err = time.Parse(timeLayout, archivedAt); err != nil {
			return nil, fmt.Errorf("parsing archived_at: %w", err)
		}
		e.Success = success != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountArchived returns how many entries of the given log have been archived.
func (s *Store) CountArchived(log string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM learning_archive WHERE log = ?", log).Scan(&n)
	return n, err
}

// --- Chat transcript ---

// SaveChatTurn appends one turn to the transcript.
func (s *Store) SaveChatTurn(t ChatTurn) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_turns (id, created_at, role, content, model, response_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.CreatedAt.UTC().Format(timeLayout), t.Role, t.Content, t.Model, t.ResponseMS,
	)
	return err
}

// GetChatTurn returns a single turn or ErrNotFound.
func (s *Store) GetChatTurn(id string) (ChatTurn, error) {
	var (
		t         ChatTurn
		createdAt string
	)
	err := s.db.QueryRow(`
		SELECT id, created_at, role, content, model, response_ms FROM chat_turns WHERE id = ?`, id,
	).Scan(&t.ID, &createdAt, &t.Role, &t.Content, &t.Model, &t.ResponseMS)
	if err == sql.ErrNoRows {
		return ChatTurn{}, ErrNotFound
	}
	if err != nil {
		return ChatTurn{}, err
	}
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return ChatTurn{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return t, nil
}

// RecentChatTurns returns up to limit turns in chronological order.
func (s *Store) RecentChatTurns(limit int) ([]ChatTurn, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, role, content, model, response_ms FROM (
			SELECT * FROM chat_turns ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatTurn
	for rows.Next() {
		var (
			t         ChatTurn
			createdAt string
		)
		if err := rows.Scan(&t.ID, &createdAt, &t.Role, &t.Content, &t.Model, &t.ResponseMS); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteChatTurns removes the whole transcript and returns the number of rows deleted.
func (s *Store) DeleteChatTurns() (int64, error) {
	res, err := s.db.Exec("DELETE FROM chat_turns")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
