// Package testutil opens migrated in-memory databases with a small seed for
// package tests.
package testutil

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"replayhub/internal/platform/database/migrations"
)

// Fixed ids of the seeded rows.
const (
	TenantID      int64 = 1
	OtherTenantID int64 = 2
	OwnerID       int64 = 1
	AdminID       int64 = 2
	MemberID      int64 = 3
	OutsiderID    int64 = 4
)

// NewDB returns an in-memory database with the schema applied and two
// tenants seeded. Tenant 1 has an owner, an admin and a member; tenant 2 has
// one admin. The connection pool is pinned to one connection so every query
// sees the same in-memory database.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.Up(db))

	_, err = db.Exec(`
		INSERT INTO tenants (tenant_id, name, created_at) VALUES
			(1, 'Acme', 1700000000000),
			(2, 'Globex', 1700000000000);
		INSERT INTO users (user_id, tenant_id, email, name, role, created_at) VALUES
			(1, 1, 'owner@acme.test', 'Olive Owner', 'owner', 1700000000000),
			(2, 1, 'admin@acme.test', 'Ada Admin', 'admin', 1700000000000),
			(3, 1, 'member@acme.test', 'Max Member', 'member', 1700000000000),
			(4, 2, 'admin@globex.test', 'Gus Globex', 'admin', 1700000000000);
	`)
	require.NoError(t, err)

	return db
}

// InsertProject adds a live project to tenant and returns its id.
func InsertProject(t *testing.T, db *sql.DB, tenantID int64, name string, createdAt int64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`
		INSERT INTO projects (tenant_id, name, name_folded, project_key, created_at)
		VALUES (?, ?, ?, lower(hex(randomblob(10))), ?)
		RETURNING project_id
	`, tenantID, name, strings.ToLower(name), createdAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertSession records a session start for project.
func InsertSession(t *testing.T, db *sql.DB, projectID, startTs int64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO sessions (project_id, start_ts) VALUES (?, ?)`, projectID, startTs)
	require.NoError(t, err)
}
