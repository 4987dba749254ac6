package store

import (
	"database/sql"
	"net/url"
	"path/filepath"
	"testing"
)

func testRawDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func latestVersion() int {
	sorted := sortedMigrations()
	return sorted[len(sorted)-1].Version
}

func TestRunMigrationsFreshDB(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db, sqliteDialect); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != latestVersion() {
		t.Fatalf("expected version %d, got %d", latestVersion(), version)
	}

	for _, table := range []string{"markers", "marker_sequence", "sessions"} {
		ok, err := tableExists(db, sqliteDialect, table)
		if err != nil {
			t.Fatalf("check %s: %v", table, err)
		}
		if !ok {
			t.Fatalf("%s table not created", table)
		}
	}

	var next int64
	if err := db.QueryRow("SELECT next_id FROM marker_sequence WHERE name = 'markers'").Scan(&next); err != nil {
		t.Fatalf("read sequence: %v", err)
	}
	if next != 100000 {
		t.Fatalf("expected sequence seeded at 100000, got %d", next)
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db, sqliteDialect); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runMigrations(db, sqliteDialect); err != nil {
		t.Fatalf("second run: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != latestVersion() {
		t.Fatalf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestDetectPreMigrationDB(t *testing.T) {
	db := testRawDB(t)

	pre, err := detectPreMigrationDB(db, sqliteDialect)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if pre {
		t.Fatal("empty DB should not be pre-migration")
	}

	if _, err := db.Exec("CREATE TABLE markers (text TEXT, lat TEXT, lon TEXT, user TEXT, url TEXT, id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create markers: %v", err)
	}

	pre, err = detectPreMigrationDB(db, sqliteDialect)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !pre {
		t.Fatal("legacy markers table should be detected")
	}
}

func TestRunMigrationsLegacyDBSeedsSequence(t *testing.T) {
	db := testRawDB(t)

	if _, err := db.Exec("CREATE TABLE markers (text TEXT, lat TEXT, lon TEXT, user TEXT, url TEXT, id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create markers: %v", err)
	}
	if _, err := db.Exec("INSERT INTO markers (text, lat, lon, user, url, id) VALUES ('a', '1', '2', 'bob', NULL, 100041)"); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	if err := runMigrations(db, sqliteDialect); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	var stamped int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = 1").Scan(&stamped); err != nil {
		t.Fatalf("read stamp: %v", err)
	}
	if stamped != 1 {
		t.Fatalf("expected version 1 stamped once, got %d", stamped)
	}

	var next int64
	if err := db.QueryRow("SELECT next_id FROM marker_sequence WHERE name = 'markers'").Scan(&next); err != nil {
		t.Fatalf("read sequence: %v", err)
	}
	if next != 100042 {
		t.Fatalf("expected sequence 100042, got %d", next)
	}
}

func TestMigrationPlanDoesNotApply(t *testing.T) {
	db := testRawDB(t)

	status, err := migrationPlan(db, sqliteDialect)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if status.CurrentVersion != 0 {
		t.Fatalf("expected current version 0, got %d", status.CurrentVersion)
	}
	if status.AvailableVersion != latestVersion() {
		t.Fatalf("expected available %d, got %d", latestVersion(), status.AvailableVersion)
	}
	if len(status.Pending) != latestVersion() {
		t.Fatalf("expected %d pending, got %d", latestVersion(), len(status.Pending))
	}
	if status.Driver != DriverSQLite {
		t.Fatalf("expected driver sqlite, got %q", status.Driver)
	}

	ok, err := tableExists(db, sqliteDialect, "markers")
	if err != nil {
		t.Fatalf("check markers: %v", err)
	}
	if ok {
		t.Fatal("plan must not create the markers table")
	}
}

func TestMigrationPlanLegacyDB(t *testing.T) {
	db := testRawDB(t)
	if _, err := db.Exec("CREATE TABLE markers (text TEXT, lat TEXT, lon TEXT, user TEXT, url TEXT, id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("create markers: %v", err)
	}

	status, err := migrationPlan(db, sqliteDialect)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if status.CurrentVersion != 1 {
		t.Fatalf("expected legacy db treated as version 1, got %d", status.CurrentVersion)
	}
	if len(status.Pending) != latestVersion()-1 {
		t.Fatalf("expected %d pending, got %d", latestVersion()-1, len(status.Pending))
	}
}
