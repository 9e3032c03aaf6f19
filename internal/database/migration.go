package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// MigrationManager handles database schema migrations
type MigrationManager struct {
	manager    *Manager
	logger     logrus.FieldLogger
	migrations []Migration
}

// Migration represents a single database migration
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
	Checksum    string
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(manager *Manager, logger logrus.FieldLogger) *MigrationManager {
	mm := &MigrationManager{
		manager: manager,
		logger:  logger,
	}
	mm.loadMigrations()
	return mm
}

// loadMigrations defines the archive schema. The DDL sticks to the subset
// DuckDB and SQLite share.
func (mm *MigrationManager) loadMigrations() {
	mm.migrations = []Migration{
		{
			Version:     1,
			Description: "Create run and raw table schema",
			Up: `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    log_file TEXT NOT NULL,
    mode TEXT NOT NULL,
    lines BIGINT NOT NULL,
    skipped BIGINT NOT NULL,
    overall_pdr DOUBLE,
    mean_dc DOUBLE,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sent_records (
    run_id TEXT NOT NULL,
    row_idx BIGINT NOT NULL,
    time_sent TEXT NOT NULL,
    dest INTEGER NOT NULL,
    src INTEGER NOT NULL,
    seqn INTEGER NOT NULL,
    status INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS recv_records (
    run_id TEXT NOT NULL,
    row_idx BIGINT NOT NULL,
    time_recv TEXT NOT NULL,
    dest INTEGER NOT NULL,
    src INTEGER NOT NULL,
    seqn INTEGER NOT NULL,
    hops INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS energest_samples (
    run_id TEXT NOT NULL,
    row_idx BIGINT NOT NULL,
    sample_time TEXT NOT NULL,
    node INTEGER NOT NULL,
    cnt BIGINT NOT NULL,
    cpu BIGINT NOT NULL,
    lpm BIGINT NOT NULL,
    tx BIGINT NOT NULL,
    rx BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sent_run ON sent_records(run_id);
CREATE INDEX IF NOT EXISTS idx_recv_run ON recv_records(run_id);
CREATE INDEX IF NOT EXISTS idx_energest_run ON energest_samples(run_id);
`,
			Down: `
DROP INDEX IF EXISTS idx_energest_run;
DROP INDEX IF EXISTS idx_recv_run;
DROP INDEX IF EXISTS idx_sent_run;
DROP TABLE IF EXISTS energest_samples;
DROP TABLE IF EXISTS recv_records;
DROP TABLE IF EXISTS sent_records;
DROP TABLE IF EXISTS runs;
`,
		},
		{
			Version:     2,
			Description: "Add per-node result tables",
			Up: `
CREATE TABLE IF NOT EXISTS node_pdr (
    run_id TEXT NOT NULL,
    node INTEGER NOT NULL,
    sent_trials BIGINT NOT NULL,
    sent BIGINT NOT NULL,
    recv BIGINT NOT NULL,
    pdr DOUBLE,
    PRIMARY KEY (run_id, node)
);

CREATE TABLE IF NOT EXISTS node_dc (
    run_id TEXT NOT NULL,
    node INTEGER NOT NULL,
    total_ticks BIGINT NOT NULL,
    radio_ticks BIGINT NOT NULL,
    dc DOUBLE,
    PRIMARY KEY (run_id, node)
);
`,
			Down: `
DROP TABLE IF EXISTS node_dc;
DROP TABLE IF EXISTS node_pdr;
`,
		},
	}

	for i := range mm.migrations {
		mm.migrations[i].Checksum = mm.calculateChecksum(mm.migrations[i].Up)
	}
}

// RunMigrations applies all pending migrations
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	currentVersion, err := mm.getCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	pendingMigrations := mm.getPendingMigrations(currentVersion)
	if len(pendingMigrations) == 0 {
		mm.logger.Debug("No pending migrations")
		return nil
	}

	mm.logger.WithFields(logrus.Fields{
		"current_version": currentVersion,
		"pending_count":   len(pendingMigrations),
		"target_version":  pendingMigrations[len(pendingMigrations)-1].Version,
	}).Debug("Starting database migrations")

	for _, migration := range pendingMigrations {
		if err := mm.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	mm.logger.WithField("new_version", pendingMigrations[len(pendingMigrations)-1].Version).Info("Archive schema migrated")
	return nil
}

// createMigrationTable creates the migration tracking table
func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL,
    checksum TEXT
)`

	_, err := mm.manager.db.ExecContext(ctx, query)
	return err
}

// getCurrentVersion gets the current migration version
func (mm *MigrationManager) getCurrentVersion(ctx context.Context) (int, error) {
	query := "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"

	var version int
	err := mm.manager.db.QueryRowContext(ctx, query).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return version, nil
}

// getPendingMigrations returns migrations that need to be applied
func (mm *MigrationManager) getPendingMigrations(currentVersion int) []Migration {
	var pending []Migration
	for _, migration := range mm.migrations {
		if migration.Version > currentVersion {
			pending = append(pending, migration)
		}
	}
	return pending
}

// execScript runs every statement of script inside tx
func execScript(ctx context.Context, tx *sql.Tx, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w (statement: %s)", err, stmt)
		}
	}
	return nil
}

// applyMigration applies a single migration
func (mm *MigrationManager) applyMigration(ctx context.Context, migration Migration) error {
	mm.logger.WithFields(logrus.Fields{
		"version":     migration.Version,
		"description": migration.Description,
	}).Debug("Applying migration")

	start := time.Now()

	err := mm.manager.Transaction(ctx, func(tx *sql.Tx) error {
		if err := execScript(ctx, tx, migration.Up); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}

		insertQuery := `
INSERT INTO schema_migrations (version, description, applied_at, checksum)
VALUES (?, ?, ?, ?)`

		if _, err := tx.ExecContext(ctx, insertQuery, migration.Version, migration.Description, time.Now().UTC(), migration.Checksum); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}

		return nil
	})

	if err != nil {
		return err
	}

	mm.logger.WithFields(logrus.Fields{
		"version":  migration.Version,
		"duration": time.Since(start),
	}).Debug("Migration applied successfully")

	return nil
}

// RollbackMigration rolls back the last applied migration
func (mm *MigrationManager) RollbackMigration(ctx context.Context) error {
	currentVersion, err := mm.getCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	var migrationToRollback *Migration
	for i := range mm.migrations {
		if mm.migrations[i].Version == currentVersion {
			migrationToRollback = &mm.migrations[i]
			break
		}
	}

	if migrationToRollback == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	mm.logger.WithFields(logrus.Fields{
		"version":     migrationToRollback.Version,
		"description": migrationToRollback.Description,
	}).Warn("Rolling back migration")

	err = mm.manager.Transaction(ctx, func(tx *sql.Tx) error {
		if err := execScript(ctx, tx, migrationToRollback.Down); err != nil {
			return fmt.Errorf("failed to execute rollback SQL: %w", err)
		}

		deleteQuery := "DELETE FROM schema_migrations WHERE version = ?"
		if _, err := tx.ExecContext(ctx, deleteQuery, migrationToRollback.Version); err != nil {
			return fmt.Errorf("failed to remove migration record: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	mm.logger.WithField("version", migrationToRollback.Version).Info("Migration rolled back successfully")
	return nil
}

// GetMigrationStatus returns the status of all migrations
func (mm *MigrationManager) GetMigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	appliedQuery := "SELECT version, description, applied_at, checksum FROM schema_migrations ORDER BY version"
	rows, err := mm.manager.db.QueryContext(ctx, appliedQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	appliedMap := make(map[int]MigrationStatus)
	for rows.Next() {
		var status MigrationStatus
		var appliedAt time.Time
		err := rows.Scan(&status.Version, &status.Description, &appliedAt, &status.Checksum)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		status.AppliedAt = &appliedAt
		status.Applied = true
		appliedMap[status.Version] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	var statuses []MigrationStatus
	for _, migration := range mm.migrations {
		if applied, exists := appliedMap[migration.Version]; exists {
			applied.ChecksumMatch = applied.Checksum == migration.Checksum
			statuses = append(statuses, applied)
		} else {
			statuses = append(statuses, MigrationStatus{
				Version:       migration.Version,
				Description:   migration.Description,
				Applied:       false,
				ChecksumMatch: true, // not applicable for unapplied migrations
			})
		}
	}

	return statuses, nil
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version       int
	Description   string
	Applied       bool
	AppliedAt     *time.Time
	Checksum      string
	ChecksumMatch bool
}

// calculateChecksum generates a checksum for migration content
func (mm *MigrationManager) calculateChecksum(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// ValidateMigrations checks if applied migrations match expected checksums
func (mm *MigrationManager) ValidateMigrations(ctx context.Context) error {
	statuses, err := mm.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	var invalidMigrations []int
	for _, status := range statuses {
		if status.Applied && !status.ChecksumMatch {
			invalidMigrations = append(invalidMigrations, status.Version)
		}
	}

	if len(invalidMigrations) > 0 {
		return fmt.Errorf("invalid migration checksums for versions: %v", invalidMigrations)
	}

	return nil
}

// GetCurrentVersion returns the current migration version
func (mm *MigrationManager) GetCurrentVersion(ctx context.Context) (int, error) {
	return mm.getCurrentVersion(ctx)
}
