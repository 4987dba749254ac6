package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQLite      []string
	MySQL       []string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	Driver           string          `json:"driver"`
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// migrations is the ordered list of all schema migrations.
// Version 1 matches the table layout of databases created by the legacy app.
var migrations = []Migration{
	{
		Version:     1,
		Description: "markers table",
		SQLite: []string{`
CREATE TABLE IF NOT EXISTS markers (
  text TEXT,
  lat TEXT,
  lon TEXT,
  user TEXT,
  url TEXT,
  id INTEGER PRIMARY KEY
)`},
		MySQL: []string{`
CREATE TABLE IF NOT EXISTS markers (
  text VARCHAR(255),
  lat VARCHAR(255),
  lon VARCHAR(255),
  user VARCHAR(255),
  url VARCHAR(255),
  id INT PRIMARY KEY
)`},
	},
	{
		Version:     2,
		Description: "marker id sequence seeded from existing rows",
		SQLite: []string{
			`CREATE TABLE IF NOT EXISTS marker_sequence (
  name TEXT PRIMARY KEY,
  next_id INTEGER NOT NULL
)`,
			seedSequenceSQL,
		},
		MySQL: []string{
			`CREATE TABLE IF NOT EXISTS marker_sequence (
  name VARCHAR(64) PRIMARY KEY,
  next_id BIGINT NOT NULL
)`,
			seedSequenceSQL,
		},
	},
	{
		Version:     3,
		Description: "browser sessions",
		SQLite: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
  token_hash TEXT PRIMARY KEY,
  user_name TEXT NOT NULL,
  created_at TEXT NOT NULL,
  expires_at TEXT NOT NULL,
  revoked_at TEXT
)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
		},
		MySQL: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
  token_hash VARCHAR(64) PRIMARY KEY,
  user_name VARCHAR(255) NOT NULL,
  created_at VARCHAR(40) NOT NULL,
  expires_at VARCHAR(40) NOT NULL,
  revoked_at VARCHAR(40)
)`,
			`CREATE INDEX idx_sessions_expires_at ON sessions(expires_at)`,
		},
	},
}

const seedSequenceSQL = `
INSERT INTO marker_sequence (name, next_id)
SELECT 'markers', CASE WHEN MAX(id) IS NULL OR MAX(id) < 100000 THEN 100000 ELSE MAX(id) + 1 END
FROM markers`

func (m Migration) statements(d dialect) []string {
	if d.name == DriverMySQL {
		return m.MySQL
	}
	return m.SQLite
}

func migrationsTableSQL(d dialect) string {
	if d.name == DriverMySQL {
		return `CREATE TABLE IF NOT EXISTS schema_migrations (
  version INT PRIMARY KEY,
  applied_at VARCHAR(40) NOT NULL
)`
	}
	return `CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
)`
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist.
func ensureMigrationsTable(db *sql.DB, d dialect) error {
	_, err := db.Exec(migrationsTableSQL(d))
	return err
}

// currentVersion returns the highest applied migration version, or 0 if none.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func tableExists(db *sql.DB, d dialect, name string) (bool, error) {
	var count int
	if err := db.QueryRow(d.tableExistsSQL, name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// detectPreMigrationDB checks if the markers table exists but no migrations have been recorded.
// This indicates a database created by the legacy app.
func detectPreMigrationDB(db *sql.DB, d dialect) (bool, error) {
	markersExist, err := tableExists(db, d, "markers")
	if err != nil {
		return false, err
	}
	if !markersExist {
		return false, nil
	}

	migrationsExist, err := tableExists(db, d, "schema_migrations")
	if err != nil {
		return false, err
	}
	if !migrationsExist {
		return true, nil
	}

	// Table exists but may be empty (e.g. created but no versions recorded).
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func sortedMigrations() []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return sorted
}

// runMigrations applies all pending migrations in order.
// MySQL commits DDL implicitly, so a failed MySQL migration may be partially applied.
func runMigrations(db *sql.DB, d dialect) error {
	// Detect pre-migration databases BEFORE creating the migrations table.
	preMigration, err := detectPreMigrationDB(db, d)
	if err != nil {
		return fmt.Errorf("detect pre-migration db: %w", err)
	}

	if err := ensureMigrationsTable(db, d); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	if preMigration {
		// Mark migration 1 as applied since the legacy markers table already exists.
		if _, err := db.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", 1, dbFormatTime(time.Now())); err != nil {
			return fmt.Errorf("stamp pre-migration db: %w", err)
		}
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range sortedMigrations() {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		for _, stmt := range m.statements(d) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
			}
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, dbFormatTime(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// migrationPlan returns the current migration status without applying schema changes.
func migrationPlan(db *sql.DB, d dialect) (*MigrationStatus, error) {
	// Detect pre-migration databases BEFORE creating the migrations table.
	preMigration, err := detectPreMigrationDB(db, d)
	if err != nil {
		return nil, err
	}

	if err := ensureMigrationsTable(db, d); err != nil {
		return nil, err
	}

	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}

	// If pre-migration DB, treat as version 1 for planning purposes.
	effective := current
	if preMigration && effective == 0 {
		effective = 1
	}

	sorted := sortedMigrations()
	available := 0
	if len(sorted) > 0 {
		available = sorted[len(sorted)-1].Version
	}

	pending := []MigrationInfo{}
	for _, m := range sorted {
		if m.Version > effective {
			pending = append(pending, MigrationInfo{Version: m.Version, Description: m.Description})
		}
	}

	return &MigrationStatus{
		Driver:           d.name,
		CurrentVersion:   effective,
		AvailableVersion: available,
		Pending:          pending,
	}, nil
}
