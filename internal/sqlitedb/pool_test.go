// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package sqlitedb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/lirios/radicle-httpd/internal/sqlitedb"
)

func TestPool(t *testing.T) {
	ctx := context.Background()

	t.Run("queries an existing database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")

		conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
		require.NoError(t, err)
		require.NoError(t, sqlitex.ExecuteScript(conn, `
CREATE TABLE kv (k TEXT NOT NULL, v INTEGER NOT NULL);
INSERT INTO kv VALUES ('a', 1), ('b', 2), ('a', 3);
`, nil))
		require.NoError(t, conn.Close())

		pool, err := sqlitedb.Open(path, 2)
		require.NoError(t, err)
		require.NotNil(t, pool)
		defer pool.Close()
		require.Equal(t, path, pool.Path())

		var values []int64
		err = pool.Query(ctx, "SELECT v FROM kv WHERE k = ? ORDER BY v", func(stmt *sqlite.Stmt) error {
			values = append(values, stmt.ColumnInt64(0))
			return nil
		}, "a")
		require.NoError(t, err)
		require.Equal(t, []int64{1, 3}, values)

		t.Run("is read-only", func(t *testing.T) {
			err := pool.Query(ctx, "INSERT INTO kv VALUES ('c', 4)", nil)
			require.Error(t, err)
		})
	})

	t.Run("a missing file is unavailable", func(t *testing.T) {
		pool, err := sqlitedb.Open(filepath.Join(t.TempDir(), "missing.db"), 0)
		require.NoError(t, err)
		require.Nil(t, pool)

		err = pool.Query(ctx, "SELECT 1", nil)
		require.ErrorIs(t, err, sqlitedb.ErrUnavailable)
		require.Empty(t, pool.Path())
		require.NoError(t, pool.Close())
	})
}
