// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package node reads the routing table and node aliases from the node database
package node

import (
	"context"
	"errors"

	"zombiezen.com/go/sqlite"

	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/sqlitedb"
)

// Database represents the node database
type Database struct {
	pool *sqlitedb.Pool
}

// Open opens the node database at path; a missing database is empty
func Open(path string) (*Database, error) {
	pool, err := sqlitedb.Open(path, 0)
	if err != nil {
		return nil, err
	}
	return &Database{pool: pool}, nil
}

// Count returns the number of nodes seeding the repository
func (db *Database) Count(ctx context.Context, rid identity.RepoID) (int, error) {
	count := 0
	err := db.pool.Query(ctx, `SELECT COUNT(*) FROM routing WHERE repo = ?`, func(stmt *sqlite.Stmt) error {
		count = stmt.ColumnInt(0)
		return nil
	}, rid.String())
	if errors.Is(err, sqlitedb.ErrUnavailable) {
		return 0, nil
	}
	return count, err
}

// Alias returns the alias the node announced, if any
func (db *Database) Alias(ctx context.Context, nid identity.NodeID) (string, bool) {
	alias := ""
	err := db.pool.Query(ctx, `SELECT alias FROM nodes WHERE id = ?`, func(stmt *sqlite.Stmt) error {
		alias = stmt.ColumnText(0)
		return nil
	}, nid.String())
	if err != nil || alias == "" {
		return "", false
	}
	return alias, true
}

// Close closes the database
func (db *Database) Close() error {
	return db.pool.Close()
}
