package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SchemaVersion is the latest schema version of the SQLite repository.
const SchemaVersion = 2

type migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS units (
				unit_id TEXT PRIMARY KEY,
				frequency INTEGER NOT NULL DEFAULT 0,
				is_favorite INTEGER NOT NULL DEFAULT 0,
				paired_unit_id TEXT
			)`)
			return err
		},
	},
	{
		Version:     2,
		Description: "Track update time",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE units ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0`,
				`CREATE INDEX IF NOT EXISTS idx_units_frequency ON units(frequency)`,
			}
			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// SQLite is a Repository backed by a SQLite database file.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLite opens (creating if needed) the database at path and migrates it.
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLite{db: db, path: path, logger: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
		s.logger.Info("applied migration", "version", m.Version, "description", m.Description)
	}

	var final int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&final); err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	if final != SchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", SchemaVersion, final)
	}
	return nil
}

const selectUnit = `SELECT unit_id, frequency, is_favorite, COALESCE(paired_unit_id, ''), updated_at FROM units`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUnit(row scanner) (UnitStats, error) {
	var (
		st      UnitStats
		fav     int
		updated int64
	)
	if err := row.Scan(&st.UnitID, &st.Frequency, &fav, &st.PairedUnitID, &updated); err != nil {
		return UnitStats{}, err
	}
	st.Favorite = fav != 0
	if updated > 0 {
		st.UpdateTime = time.Unix(0, updated).UTC()
	}
	return st, nil
}

// Get returns the stats of unitID.
func (s *SQLite) Get(ctx context.Context, unitID string) (UnitStats, error) {
	if unitID == "" {
		return UnitStats{}, ErrEmptyUnitID
	}
	st, err := scanUnit(s.db.QueryRowContext(ctx, selectUnit+` WHERE unit_id = ?`, unitID))
	if err == sql.ErrNoRows {
		return UnitStats{UnitID: unitID}, nil
	}
	if err != nil {
		return UnitStats{}, fmt.Errorf("failed to get unit %s: %w", unitID, err)
	}
	return st, nil
}

// List returns every stored unit ordered by id.
func (s *SQLite) List(ctx context.Context) ([]UnitStats, error) {
	rows, err := s.db.QueryContext(ctx, selectUnit+` ORDER BY unit_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []UnitStats
	for rows.Next() {
		st, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// IncrementCounter adds one use to unitID.
func (s *SQLite) IncrementCounter(ctx context.Context, unitID string) (UnitStats, error) {
	return s.upsert(ctx, unitID,
		`INSERT INTO units (unit_id, frequency, updated_at) VALUES (?, 1, ?)
		 ON CONFLICT(unit_id) DO UPDATE SET frequency = frequency + 1, updated_at = excluded.updated_at`)
}

// ToggleFavorite flips the favorite flag of unitID.
func (s *SQLite) ToggleFavorite(ctx context.Context, unitID string) (UnitStats, error) {
	return s.upsert(ctx, unitID,
		`INSERT INTO units (unit_id, is_favorite, updated_at) VALUES (?, 1, ?)
		 ON CONFLICT(unit_id) DO UPDATE SET is_favorite = 1 - is_favorite, updated_at = excluded.updated_at`)
}

// SetPair records pairedUnitID as the last unit converted to from unitID.
func (s *SQLite) SetPair(ctx context.Context, unitID, pairedUnitID string) (UnitStats, error) {
	return s.upsert(ctx, unitID,
		`INSERT INTO units (unit_id, paired_unit_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(unit_id) DO UPDATE SET paired_unit_id = excluded.paired_unit_id, updated_at = excluded.updated_at`,
		pairedUnitID)
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// upsert runs query with (unitID, extra..., now) and returns the new row.
func (s *SQLite) upsert(ctx context.Context, unitID, query string, extra ...interface{}) (UnitStats, error) {
	if unitID == "" {
		return UnitStats{}, ErrEmptyUnitID
	}
	args := append([]interface{}{unitID}, extra...)
	args = append(args, s.now().UnixNano())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UnitStats{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return UnitStats{}, fmt.Errorf("failed to update unit %s: %w", unitID, err)
	}
	st, err := scanUnit(tx.QueryRowContext(ctx, selectUnit+` WHERE unit_id = ?`, unitID))
	if err != nil {
		_ = tx.Rollback()
		return UnitStats{}, fmt.Errorf("failed to read unit %s: %w", unitID, err)
	}
	if err := tx.Commit(); err != nil {
		return UnitStats{}, fmt.Errorf("failed to commit unit %s: %w", unitID, err)
	}
	return st, nil
}
