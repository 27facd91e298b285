// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cob reads issue and patch counts from the collaborative objects cache
package cob

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/sqlitedb"
)

// IssueCounts counts issues by state
type IssueCounts struct {
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// PatchCounts counts patches by state
type PatchCounts struct {
	Open     int `json:"open"`
	Draft    int `json:"draft"`
	Archived int `json:"archived"`
	Merged   int `json:"merged"`
}

// Cache represents the collaborative objects cache
type Cache struct {
	pool *sqlitedb.Pool
}

// Open opens the cache at path; a missing cache makes every count unavailable
func Open(path string) (*Cache, error) {
	pool, err := sqlitedb.Open(path, 0)
	if err != nil {
		return nil, err
	}
	return &Cache{pool: pool}, nil
}

func (c *Cache) countByStatus(ctx context.Context, table, column string, rid identity.RepoID) (map[string]int, error) {
	query := fmt.Sprintf(
		`SELECT json_extract(%[1]s, '$.state.status'), COUNT(*) FROM %[2]s WHERE repo = ? GROUP BY 1`,
		column, table)

	counts := map[string]int{}
	err := c.pool.Query(ctx, query, func(stmt *sqlite.Stmt) error {
		counts[stmt.ColumnText(0)] = stmt.ColumnInt(1)
		return nil
	}, rid.String())
	if err != nil {
		return nil, fmt.Errorf("failed to count %s of %s: %w", table, rid, err)
	}
	return counts, nil
}

// IssueCounts counts the issues of the repository
func (c *Cache) IssueCounts(ctx context.Context, rid identity.RepoID) (IssueCounts, error) {
	counts, err := c.countByStatus(ctx, "issues", "issue", rid)
	if err != nil {
		return IssueCounts{}, err
	}
	return IssueCounts{Open: counts["open"], Closed: counts["closed"]}, nil
}

// PatchCounts counts the patches of the repository
func (c *Cache) PatchCounts(ctx context.Context, rid identity.RepoID) (PatchCounts, error) {
	counts, err := c.countByStatus(ctx, "patches", "patch", rid)
	if err != nil {
		return PatchCounts{}, err
	}
	return PatchCounts{
		Open:     counts["open"],
		Draft:    counts["draft"],
		Archived: counts["archived"],
		Merged:   counts["merged"],
	}, nil
}

// Close closes the cache
func (c *Cache) Close() error {
	return c.pool.Close()
}
