// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpd_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lirios/radicle-httpd/internal/api"
	"github.com/lirios/radicle-httpd/internal/common"
	"github.com/lirios/radicle-httpd/internal/httpd"
	"github.com/lirios/radicle-httpd/internal/web"
)

func router(t *testing.T) http.Handler {
	t.Helper()

	c, err := api.NewContext(api.Collaborators{}, api.Node{ID: "z6MknSLrJoTcukLrE435hVNQT4JUhbvWLX4kUzqkEStBU8Vi"}, api.NewWebConfig(web.Config{}), 0)
	require.NoError(t, err)

	return httpd.Router(httpd.Handlers{API: c})
}

func TestRouter(t *testing.T) {
	t.Run("serves the root index", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var reply common.IndexResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
		require.Equal(t, "/", reply.Path)
		require.Equal(t, common.Version, reply.Version)
		require.Contains(t, reply.Links, common.GetLink("/api", "api"))
	})

	t.Run("mounts the API", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/node", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var reply api.NodeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
		require.EqualValues(t, "z6MknSLrJoTcukLrE435hVNQT4JUhbvWLX4kUzqkEStBU8Vi", reply.ID)
	})

	t.Run("allows cross-origin reads", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api", nil)
		req.Header.Set("Origin", "https://app.radicle.xyz")

		rec := httptest.NewRecorder()
		router(t).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("answers preflight requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/node", nil)
		req.Header.Set("Origin", "https://app.radicle.xyz")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)

		rec := httptest.NewRecorder()
		router(t).ServeHTTP(rec, req)

		require.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
	})

	t.Run("unknown routes are not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/nope", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
