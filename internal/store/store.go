package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	busyTimeoutMS          = 5000
	sqliteMaxOpenConns     = 1
	sqliteMaxIdleConns     = 1
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultMySQLPort       = 3306
)

// Options selects and tunes the database backend.
type Options struct {
	Driver string

	// Path is the SQLite database file.
	Path string

	// MySQL connection settings.
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store wraps the marker database.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open opens a SQLite database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	return OpenWithOptions(Options{Driver: DriverSQLite, Path: path})
}

// OpenWithOptions opens the configured backend and applies pending migrations.
func OpenWithOptions(opts Options) (*Store, error) {
	db, d, err := openDB(opts)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

// Inspect reports migration status without applying anything.
func Inspect(opts Options) (*MigrationStatus, error) {
	db, d, err := openDB(opts)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return migrationPlan(db, d)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the backend name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, &StorageError{Op: "schema version", Err: err}
	}
	return version, nil
}

func openDB(opts Options) (*sql.DB, dialect, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	switch driver {
	case DriverSQLite:
		dsn, err := sqliteDSN(opts.Path)
		if err != nil {
			return nil, dialect{}, err
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, dialect{}, err
		}
		if err := configureSQLite(db); err != nil {
			_ = db.Close()
			return nil, dialect{}, err
		}
		return db, sqliteDialect, nil
	case DriverMySQL:
		dsn, err := mysqlDSN(opts)
		if err != nil {
			return nil, dialect{}, err
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, dialect{}, err
		}
		configurePool(db, opts)
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, dialect{}, &StorageError{Op: "connect", Err: err}
		}
		return db, mysqlDialect, nil
	default:
		return nil, dialect{}, fmt.Errorf("unsupported db driver %q", opts.Driver)
	}
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// One writer connection serializes identifier allocation.
	db.SetMaxOpenConns(sqliteMaxOpenConns)
	db.SetMaxIdleConns(sqliteMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	return nil
}

func configurePool(db *sql.DB, opts Options) {
	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}

func mysqlDSN(opts Options) (string, error) {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		return "", fmt.Errorf("db host is required")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return "", fmt.Errorf("db name is required")
	}
	port := opts.Port
	if port <= 0 {
		port = defaultMySQLPort
	}

	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = name
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN(), nil
}
