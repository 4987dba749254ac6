package store

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const mysqlErrDuplicateEntry = 1062

// dialect captures the SQL differences between the supported backends.
type dialect struct {
	name           string
	tableExistsSQL string
	forUpdate      string
	isDuplicateKey func(error) bool
}

var sqliteDialect = dialect{
	name:           DriverSQLite,
	tableExistsSQL: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
	isDuplicateKey: sqliteDuplicateKey,
}

var mysqlDialect = dialect{
	name:           DriverMySQL,
	tableExistsSQL: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
	forUpdate:      " FOR UPDATE",
	isDuplicateKey: mysqlDuplicateKey,
}

func sqliteDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func mysqlDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
