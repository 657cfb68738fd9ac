// Package dbpkg provides helpers to make db initialization and testing easier.
package dbpkg

import (
	"context"
	"database/sql"
	"os"
	"testing"
)

// SQLInterface provides neccessary db methods to perform transactions and queries.
//
// Both *sql.DB and *sql.Tx satisfy it, so repositories built on top of it
// compose inside a caller-scoped transaction.
type SQLInterface interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Setup sets up connection with database.
func Setup(driver, source string) (*sql.DB, error) {
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// ExecFile executes the SQL statements from the given file, e.g. the schema.
func ExecFile(db *sql.DB, path string) error {
	stmts, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	_, err = db.Exec(string(stmts))

	return err
}

// SetupTX sets up a database transaction to be used in tests.
// Once the tests are done it will rollback the transaction.
func SetupTX(t *testing.T, driver, source string) *sql.Tx {
	t.Helper()

	db, err := Setup(driver, source)
	if err != nil {
		t.Fatalf("dbpkg.Setup(%v, source) failed: %v", driver, err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("db.Begin() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := tx.Rollback(); err != nil {
			t.Fatalf("tx.Rollback() failed: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("db.Close() failed: %v", err)
		}
	})

	return tx
}
