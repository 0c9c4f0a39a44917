package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/habitboard/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// :memory: databases are per-connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// profileRow mirrors the profiles table.
type profileRow struct {
	Slot      int       `db:"slot"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Bio       string    `db:"bio"`
	CreatedAt string    `db:"created_at"`
	Stats     string    `db:"stats"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GetProfile returns the stored profile, or ErrNoProfile.
func (s *SQLiteStore) GetProfile(ctx context.Context) (*model.Profile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM profiles WHERE slot = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoProfile
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	p := &model.Profile{
		Username:  row.Username,
		Email:     row.Email,
		Bio:       row.Bio,
		CreatedAt: row.CreatedAt,
	}
	if row.Stats != "" {
		var stats model.ProfileStats
		if err := json.Unmarshal([]byte(row.Stats), &stats); err != nil {
			return nil, fmt.Errorf("unmarshaling profile stats: %w", err)
		}
		p.Stats = &stats
	}

	return p, nil
}

// SetProfile replaces the stored profile.
func (s *SQLiteStore) SetProfile(ctx context.Context, p model.Profile) error {
	stats := ""
	if p.Stats != nil {
		data, err := json.Marshal(p.Stats)
		if err != nil {
			return fmt.Errorf("marshaling profile stats: %w", err)
		}
		stats = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO profiles (
			slot, username, email, bio, created_at, stats, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?)`,
		p.Username, p.Email, p.Bio, p.CreatedAt, stats, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing profile %s: %w", p.Username, err)
	}
	return nil
}

// UpdateProfile merges patch into the stored profile inside one
// transaction. It reports false and writes nothing when no profile exists.
func (s *SQLiteStore) UpdateProfile(
	ctx context.Context,
	patch model.ProfilePatch,
) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var row profileRow
	err = tx.GetContext(ctx, &row, "SELECT * FROM profiles WHERE slot = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting profile: %w", err)
	}

	if patch.Email != nil {
		row.Email = *patch.Email
	}
	if patch.Bio != nil {
		row.Bio = *patch.Bio
	}
	if patch.Stats != nil {
		data, err := json.Marshal(patch.Stats)
		if err != nil {
			return false, fmt.Errorf("marshaling profile stats: %w", err)
		}
		row.Stats = string(data)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE profiles SET email = ?, bio = ?, stats = ?, updated_at = ?
		WHERE slot = 1`,
		row.Email, row.Bio, row.Stats, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("updating profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing profile update: %w", err)
	}
	return true, nil
}

// RemoveProfile deletes the stored profile, if any.
func (s *SQLiteStore) RemoveProfile(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM profiles"); err != nil {
		return fmt.Errorf("removing profile: %w", err)
	}
	return nil
}

// GetSetting returns a stored setting, or "" when it is not set.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting value.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting.
func (s *SQLiteStore) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}
