package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kalambet/ambridge/internal/events"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DatabaseName is the file created inside the data directory.
const DatabaseName = "ambridge.db"

var (
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrTableNotFound = errors.New("table not found")
)

// Store wraps the local SQLite database holding config entries and app states.
// Every committed mutation is published on the store's bus.
type Store struct {
	db     *sql.DB
	bus    *events.Bus
	logger *slog.Logger

	config   *ConfigTable
	appState *AppStateTable
}

// Option configures a Store.
type Option func(*Store)

// WithBus makes the store publish changes on b instead of a private bus.
func WithBus(b *events.Bus) Option {
	return func(s *Store) { s.bus = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (or creates) the database in dataDir and upgrades it to the latest
// schema version. Pass ":memory:" as dataDir for an isolated in-memory database.
func Open(dataDir string, opts ...Option) (*Store, error) {
	return open(dataDir, 0, opts...)
}

// open stops migrating after version upTo when upTo > 0.
func open(dataDir string, upTo int, opts ...Option) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, DatabaseName)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps the in-memory database shared and avoids
	// "database is locked" between our own statements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = events.NewBus(16, events.WithLogger(s.logger))
	}

	if err := s.migrate(upTo); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.config = &ConfigTable{s: s}
	s.appState = &AppStateTable{s: s}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Bus returns the bus on which the store publishes changes.
func (s *Store) Bus() *events.Bus { return s.bus }

// Config returns the repository for the config table.
func (s *Store) Config() *ConfigTable { return s.config }

// AppStates returns the repository for the app_state table.
func (s *Store) AppStates() *AppStateTable { return s.appState }

// migration is one embedded schema step.
type migration struct {
	version int
	file    string
	sql     string
}

// loadMigrations returns the embedded migrations ordered by version.
func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}
	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		out = append(out, migration{version: version, file: entry.Name(), sql: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// migrate applies every pending migration up to and including version upTo
// (all of them when upTo is 0). Each step commits on its own, so an
// interrupted upgrade resumes from the last completed version.
func (s *Store) migrate(upTo int) error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	steps, err := loadMigrations()
	if err != nil {
		return err
	}
	current, err := s.SchemaVersion()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	ctx := context.Background()
	for _, m := range steps {
		if m.version <= current {
			continue
		}
		if upTo > 0 && m.version > upTo {
			break
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.sql); err != nil {
				return fmt.Errorf("applying migration %d: %w", m.version, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
				return fmt.Errorf("recording migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		s.logger.Debug("schema migrated", "version", m.version, "file", m.file)
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

// AppliedMigrations returns the list of applied migration versions in ascending order.
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

// SchemaVersion returns the highest applied migration version, or 0 for an
// empty database.
func (s *Store) SchemaVersion() (int, error) {
	var v sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// withTx runs fn inside a transaction. The store's single connection is held
// by the transaction, so fn must only use tx.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) publish(table string, op events.Op, keys ...string) {
	s.bus.Publish(events.Change{Table: table, Op: op, Keys: keys})
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Extended result codes are not enabled on every build.
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
