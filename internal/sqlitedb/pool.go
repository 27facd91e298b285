// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sqlitedb opens the SQLite databases written by the node
// in read-only mode
package sqlitedb

import (
	"context"
	"errors"
	"fmt"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DefaultPoolSize is the number of connections kept by a Pool
const DefaultPoolSize = 4

// ErrUnavailable is returned when the database file doesn't exist
var ErrUnavailable = errors.New("database unavailable")

// Pool is a pool of read-only connections. A nil Pool represents a
// database that doesn't exist.
type Pool struct {
	inner *sqlitex.Pool
	path  string
}

// Open opens the database at path. A nil Pool and no error are returned
// if the file doesn't exist.
func Open(path string, poolSize int) (*Pool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	inner, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		Flags:    sqlite.OpenReadOnly | sqlite.OpenURI,
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout=5000", nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return &Pool{inner: inner, path: path}, nil
}

// Path returns the database path
func (p *Pool) Path() string {
	if p == nil {
		return ""
	}
	return p.path
}

// Query runs query with args and calls resultFn for each row
func (p *Pool) Query(ctx context.Context, query string, resultFn func(stmt *sqlite.Stmt) error, args ...interface{}) error {
	if p == nil {
		return ErrUnavailable
	}

	conn, err := p.inner.Take(ctx)
	if err != nil {
		return fmt.Errorf("failed to take connection to %s: %w", p.path, err)
	}
	defer p.inner.Put(conn)

	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args:       args,
		ResultFunc: resultFn,
	})
}

// Close closes all connections
func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	return p.inner.Close()
}
