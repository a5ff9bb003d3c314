// Package sqlite provides SQLite-backed persistence for engine flags and
// the stunt audit trail.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/improv.engine/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/improv.engine/internal/storage"
	"github.com/louisbranch/improv.engine/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed flag and audit persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetFlag returns the stored payload for a flag.
func (s *Store) GetFlag(ctx context.Context, scope storage.Scope, name string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, false, fmt.Errorf("storage is not configured")
	}

	var payload string
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT payload FROM flags WHERE scope = ? AND name = ?",
		scope.Key(), name,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get flag %s/%s: %w", scope.Key(), name, err)
	}
	return json.RawMessage(payload), true, nil
}

// SetFlag stores a flag payload, replacing any previous value.
func (s *Store) SetFlag(ctx context.Context, scope storage.Scope, name string, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO flags (scope, name, payload, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (scope, name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
`, scope.Key(), name, string(payload), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("set flag %s/%s: %w", scope.Key(), name, err)
	}
	return nil
}

// AppendStuntAudit records one resolved stunt.
func (s *Store) AppendStuntAudit(ctx context.Context, record storage.StuntAudit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("audit record id is required")
	}

	timestamp := record.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO stunt_audit (
    id, encounter_id, system_id, actor_id, target_id,
    roll_kind, roll_key, total, degree,
    pool_spent, advantage_used, tactical_risk, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.EncounterID,
		record.SystemID,
		record.ActorID,
		record.TargetID,
		record.RollKind,
		record.RollKey,
		record.Total,
		int(record.Degree),
		boolToInt(record.PoolSpent),
		boolToInt(record.AdvantageUse),
		boolToInt(record.TacticalRisk),
		timestamp.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append stunt audit %s: %w", record.ID, err)
	}
	return nil
}

// CountStuntAudits returns the number of audit rows for an encounter.
func (s *Store) CountStuntAudits(ctx context.Context, encounterID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM stunt_audit WHERE encounter_id = ?", encounterID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stunt audits: %w", err)
	}
	return count, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
