// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpd

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	"github.com/lirios/radicle-httpd/internal/api"
	"github.com/lirios/radicle-httpd/internal/common"
	"github.com/lirios/radicle-httpd/internal/git"
	"github.com/lirios/radicle-httpd/internal/raw"
)

const welcome = "Welcome to the radicle-httpd JSON API, this service doesn't serve the Radicle Explorer web client."

// Handlers are the routers served by the server
type Handlers struct {
	API *api.Context
	Raw raw.Storage
	Git *git.Handler
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	api.EncodeJSONReply(w, r, common.IndexResponse{
		Welcome: welcome,
		Version: common.Version,
		Path:    "/",
		Links: []common.Link{
			common.GetLink("/api", "api"),
			common.GetLink("/raw/:rid/:sha/*path", "file_by_commit"),
			common.GetLink("/raw/:rid/head/*path", "file_by_canonical_head"),
			common.GetLink("/raw/:rid/blobs/:oid", "file_by_oid"),
			common.GetLink("/:rid/*request", "git"),
		},
	})
}

// Router returns the root router
func Router(h Handlers) http.Handler {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(Tracing)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", rootHandler)
	r.Mount("/api", api.Router(h.API))
	r.Mount("/raw", raw.Router(h.Raw))

	// Catches everything else, keep last
	if h.Git != nil {
		h.Git.Routes(r)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.HTTPError(w, http.StatusNotFound)
	})

	return r
}
