// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package git serves repositories over the git smart HTTP protocol, for
// fetching only
package git

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cgi"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi"
	"github.com/golang/gddo/httputil/header"
	"go.uber.org/zap"

	"github.com/lirios/radicle-httpd/internal/api"
	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/logger"
	"github.com/lirios/radicle-httpd/internal/storage"
)

const (
	uploadPack        = "git-upload-pack"
	uploadPackRequest = "application/x-git-upload-pack-request"
)

// Repository is a repository served over git
type Repository interface {
	Path() string
	IdentityDoc(ctx context.Context) (*identity.Doc, error)
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

// Handler runs git http-backend for fetch requests
type Handler struct {
	git     string
	storage Storage
	aliases *Aliases
}

// NewHandler creates a new Handler serving the repositories of s,
// also reachable through aliases
func NewHandler(s Storage, aliases *Aliases) (*Handler, error) {
	git, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git binary not found in PATH: %w", err)
	}

	if aliases == nil {
		aliases, err = NewAliases()
		if err != nil {
			return nil, err
		}
	}

	return &Handler{git: git, storage: s, aliases: aliases}, nil
}

// Routes registers the git routes on r; they catch everything under /{repo}
// so they must be registered last
func (h *Handler) Routes(r chi.Router) {
	r.Get("/{repo}/info/refs", h.infoRefs)
	r.Post("/{repo}/"+uploadPack, h.uploadPack)
	r.HandleFunc("/{repo}/*", h.forbidden)
}

// resolve maps the first path segment, a repository id or an alias with
// an optional .git suffix, to a repository
func (h *Handler) resolve(name string) (identity.RepoID, error) {
	name = strings.TrimSuffix(name, ".git")

	if rid, ok := h.aliases.Resolve(name); ok {
		return rid, nil
	}
	return identity.ParseRepoID(name)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) (Repository, bool) {
	rid, err := h.resolve(chi.URLParam(r, "repo"))
	if err != nil {
		api.HTTPError(w, http.StatusNotFound)
		return nil, false
	}

	repo, err := h.storage.Repository(rid)
	if err == nil {
		var doc *identity.Doc
		doc, err = repo.IdentityDoc(r.Context())
		if err == nil && doc.Visibility.IsPrivate() {
			err = storage.ErrNotFound
		}
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		api.HTTPError(w, http.StatusNotFound)
		return nil, false
	case err != nil:
		logger.Errorf("Failed to open repository %s: %v", rid, err)
		api.HTTPError(w, http.StatusInternalServerError)
		return nil, false
	}

	return repo, true
}

func (h *Handler) infoRefs(w http.ResponseWriter, r *http.Request) {
	if service := r.URL.Query().Get("service"); service != uploadPack {
		h.forbidden(w, r)
		return
	}

	repo, ok := h.open(w, r)
	if !ok {
		return
	}

	h.serve(w, r, repo, "info/refs")
}

func (h *Handler) uploadPack(w http.ResponseWriter, r *http.Request) {
	value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
	if value != uploadPackRequest {
		msg := fmt.Sprintf("Content-Type header is not %s", uploadPackRequest)
		api.EncodeJSONReplyStatus(w, http.StatusUnsupportedMediaType, api.ErrorReply{Error: msg, Code: http.StatusUnsupportedMediaType})
		return
	}

	repo, ok := h.open(w, r)
	if !ok {
		return
	}

	h.serve(w, r, repo, uploadPack)
}

// forbidden rejects pushes and the dumb protocol
func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Rejecting git request %s %s", r.Method, r.URL.RequestURI())
	api.HTTPError(w, http.StatusForbidden)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, repo Repository, request string) {
	root, name := filepath.Split(filepath.Clean(repo.Path()))

	handler := &cgi.Handler{
		Path: h.git,
		Args: []string{"http-backend"},
		Dir:  repo.Path(),
		Env: []string{
			"GIT_PROJECT_ROOT=" + root,
			"PATH_INFO=/" + name + "/" + request,
			"QUERY_STRING=" + r.URL.RawQuery,
			"REQUEST_METHOD=" + r.Method,
			"GIT_HTTP_EXPORT_ALL=true",
		},
		Logger: zap.NewStdLog(logger.Logger()),
		Stderr: os.Stderr,
	}

	handler.ServeHTTP(w, r)
}
