package services

import (
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/username/ledgerly/backend/src/storage"
	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) (storage.Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../db/migrations/000001_init_schema.up.sql")
	if err != nil {
		t.Fatalf("reading schema: %v", err)
	}
	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("applying schema: %v\n%s", err, stmt)
		}
	}
	return storage.NewSQLiteStore(db), db
}

func seedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO users (email) VALUES (?)`, email)
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
