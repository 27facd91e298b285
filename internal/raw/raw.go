// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package raw serves the content of files stored in repositories
package raw

import (
	"context"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi"

	"github.com/lirios/radicle-httpd/internal/api"
	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/storage"
)

// Repository is a repository files are read from
type Repository interface {
	IdentityDoc(ctx context.Context) (*identity.Doc, error)
	Head(ctx context.Context, doc *identity.Doc) (string, error)
	Blob(ctx context.Context, oid string) ([]byte, error)
	File(ctx context.Context, rev, path string) ([]byte, error)
}

// Storage opens repositories
type Storage interface {
	Repository(rid identity.RepoID) (Repository, error)
}

// FromStorage adapts s to Storage
func FromStorage(s *storage.Storage) Storage {
	return repoStorage{s}
}

type repoStorage struct {
	*storage.Storage
}

func (s repoStorage) Repository(rid identity.RepoID) (Repository, error) {
	repo, err := s.Storage.Repository(rid)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

type handlers struct {
	storage Storage
}

// Router returns the raw file routes, to be mounted under /raw
func Router(s Storage) http.Handler {
	h := &handlers{storage: s}

	r := chi.NewRouter()
	r.Get("/{rid}/blobs/{oid}", h.blob)
	r.Get("/{rid}/head/*", h.headFile)
	r.Get("/{rid}/{sha}/*", h.file)

	return r
}

// open returns the repository and its document, hiding private ones
func (h *handlers) open(w http.ResponseWriter, r *http.Request) (Repository, *identity.Doc, bool) {
	rid, err := identity.ParseRepoID(chi.URLParam(r, "rid"))
	if err != nil {
		api.HandleError(w, r, err)
		return nil, nil, false
	}

	repo, err := h.storage.Repository(rid)
	if err != nil {
		api.HandleError(w, r, err)
		return nil, nil, false
	}
	doc, err := repo.IdentityDoc(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return nil, nil, false
	}
	if doc.Visibility.IsPrivate() {
		api.HandleError(w, r, storage.ErrNotFound)
		return nil, nil, false
	}

	return repo, doc, true
}

func (h *handlers) blob(w http.ResponseWriter, r *http.Request) {
	repo, _, ok := h.open(w, r)
	if !ok {
		return
	}

	oid := chi.URLParam(r, "oid")
	content, err := repo.Blob(r.Context(), oid)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	w.Header().Set("ETag", `"`+oid+`"`)
	reply(w, "", content)
}

func (h *handlers) headFile(w http.ResponseWriter, r *http.Request) {
	repo, doc, ok := h.open(w, r)
	if !ok {
		return
	}

	head, err := repo.Head(r.Context(), doc)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	h.serveFile(w, r, repo, head)
}

func (h *handlers) file(w http.ResponseWriter, r *http.Request) {
	repo, _, ok := h.open(w, r)
	if !ok {
		return
	}

	rev := chi.URLParam(r, "sha")
	if err := storage.CheckRev(rev); err != nil {
		api.HandleError(w, r, err)
		return
	}

	h.serveFile(w, r, repo, rev)
}

func (h *handlers) serveFile(w http.ResponseWriter, r *http.Request, repo Repository, rev string) {
	filePath := strings.Trim(chi.URLParam(r, "*"), "/")
	if filePath == "" {
		api.HTTPError(w, http.StatusNotFound)
		return
	}

	content, err := repo.File(r.Context(), rev, filePath)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	reply(w, filePath, content)
}

// Source files the system types get wrong or don't know
var sourceTypes = map[string]string{
	".md":   "text/markdown; charset=utf-8",
	".rs":   "text/plain; charset=utf-8",
	".go":   "text/plain; charset=utf-8",
	".ts":   "text/plain; charset=utf-8",
	".toml": "text/plain; charset=utf-8",
	".yaml": "text/plain; charset=utf-8",
	".yml":  "text/plain; charset=utf-8",
	".lock": "text/plain; charset=utf-8",
}

// ContentType guesses the media type of a file from its name, then
// from its content
func ContentType(name string, content []byte) string {
	if ext := strings.ToLower(path.Ext(name)); ext != "" {
		if t, ok := sourceTypes[ext]; ok {
			return t
		}
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return http.DetectContentType(content)
}

func reply(w http.ResponseWriter, name string, content []byte) {
	w.Header().Set("Content-Type", ContentType(name, content))
	w.Write(content)
}
