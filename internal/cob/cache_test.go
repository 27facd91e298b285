// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cob_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/lirios/radicle-httpd/internal/cob"
	"github.com/lirios/radicle-httpd/internal/sqlitedb"
)

const (
	rid    = "rad:z4FucBZHZMCsxTyQE1dfE2YR59Qbp"
	schema = `
CREATE TABLE issues (id TEXT PRIMARY KEY NOT NULL, repo TEXT NOT NULL, issue TEXT NOT NULL);
CREATE TABLE patches (id TEXT PRIMARY KEY NOT NULL, repo TEXT NOT NULL, patch TEXT NOT NULL);
INSERT INTO issues VALUES ('i1', 'rad:z4FucBZHZMCsxTyQE1dfE2YR59Qbp', '{"title":"a","state":{"status":"open"}}');
INSERT INTO issues VALUES ('i2', 'rad:z4FucBZHZMCsxTyQE1dfE2YR59Qbp', '{"title":"b","state":{"status":"open"}}');
INSERT INTO issues VALUES ('i3', 'rad:z4FucBZHZMCsxTyQE1dfE2YR59Qbp', '{"title":"c","state":{"status":"closed","reason":"solved"}}');
INSERT INTO issues VALUES ('i4', 'rad:z3gqcJUoA1n9HaHKufZs5FCSGazv5', '{"title":"d","state":{"status":"open"}}');
INSERT INTO patches VALUES ('p1', 'rad:z4FucBZHZMCsxTyQE1dfE2YR59Qbp', '{"title":"a","state":{"status":"draft"}}');
INSERT INTO patches VALUES ('p2', 'rad:z4FucBZHZMCsxTyQE1dfE2YR59Qbp', '{"title":"b","state":{"status":"merged"}}');
INSERT INTO patches VALUES ('p3', 'rad:z4FucBZHZMCsxTyQE1dfE2YR59Qbp', '{"title":"c","state":{"status":"merged"}}');
`
)

func TestCache(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *cob.Cache {
		path := filepath.Join(t.TempDir(), "cache.db")

		conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
		require.NoError(t, err)
		require.NoError(t, sqlitex.ExecuteScript(conn, schema, nil))
		require.NoError(t, conn.Close())

		cache, err := cob.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() {
			cache.Close()
		})

		return cache
	}

	t.Run("counts issues", func(t *testing.T) {
		cache := setup(t)

		counts, err := cache.IssueCounts(ctx, rid)
		require.NoError(t, err)
		require.Equal(t, cob.IssueCounts{Open: 2, Closed: 1}, counts)
	})

	t.Run("counts patches", func(t *testing.T) {
		cache := setup(t)

		counts, err := cache.PatchCounts(ctx, rid)
		require.NoError(t, err)
		require.Equal(t, cob.PatchCounts{Draft: 1, Merged: 2}, counts)
	})

	t.Run("when the cache doesn't exist", func(t *testing.T) {
		cache, err := cob.Open(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)

		_, err = cache.IssueCounts(ctx, rid)
		require.ErrorIs(t, err, sqlitedb.ErrUnavailable)
	})
}
