// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/lirios/radicle-httpd/internal/common"
	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/logger"
	"github.com/lirios/radicle-httpd/internal/storage"
	"github.com/lirios/radicle-httpd/internal/web"
)

// ContextKey is a type that represent the key of a context
type ContextKey int

const (
	// KeyContext is the context key for the API context
	KeyContext ContextKey = iota
)

const defaultPerPage = 10

func apiContext(c *Context) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), KeyContext, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

func fromRequest(w http.ResponseWriter, r *http.Request) (*Context, bool) {
	c, ok := r.Context().Value(KeyContext).(*Context)
	if !ok {
		logger.Error("Unable to retrieve API context from context")
		HTTPError(w, http.StatusInternalServerError)
	}
	return c, ok
}

func v1Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", V1Handler)
	r.Get("/node", NodeHandler)
	r.Get("/repos", ReposHandler)
	r.Get("/repos/search", SearchHandler)
	r.Get("/repos/{rid}", RepoHandler)
	r.Get("/repos/{rid}/tree/{sha}", TreeHandler)
	r.Get("/repos/{rid}/tree/{sha}/*", TreeHandler)

	return r
}

// Router returns the JSON API, to be mounted under /api
func Router(c *Context) http.Handler {
	r := chi.NewRouter()

	r.Use(apiContext(c))
	r.Get("/", RootHandler)
	r.Mount("/v1", v1Router())

	return r
}

// RootHandler links to the API versions
func RootHandler(w http.ResponseWriter, r *http.Request) {
	EncodeJSONReply(w, r, common.IndexResponse{
		Path:  "/api",
		Links: []common.Link{common.GetLink("/v1", "v1")},
	})
}

// V1Handler describes the version 1 of the API
func V1Handler(w http.ResponseWriter, r *http.Request) {
	EncodeJSONReply(w, r, common.IndexResponse{
		Version: common.Version,
		Path:    "/api/v1",
		Links: []common.Link{
			common.GetLink("/node", "node"),
			common.GetLink("/repos?show=<pinned|all>&page=<page>&perPage=<perPage>", "repos"),
			common.GetLink("/repos/search?q=<query>&page=<page>&perPage=<perPage>", "repo.search"),
			common.GetLink("/repos/:rid", "repo"),
			common.GetLink("/repos/:rid/tree/:sha/*path", "repo.tree"),
		},
	})
}

// NodeResponse describes the node serving the API
type NodeResponse struct {
	ID      identity.NodeID `json:"id"`
	Alias   string          `json:"alias,omitempty"`
	Version string          `json:"version"`
	Config  web.Config      `json:"config"`
	State   string          `json:"state"`
}

// NodeHandler returns the node identity and its web configuration
func NodeHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := fromRequest(w, r)
	if !ok {
		return
	}

	EncodeJSONReply(w, r, NodeResponse{
		ID:      c.node.ID,
		Alias:   c.node.Alias,
		Version: common.Version,
		Config:  c.webConfig.Read(),
		State:   "running",
	})
}

func pagination(r *http.Request) (page, perPage int) {
	query := r.URL.Query()

	page, err := strconv.Atoi(query.Get("page"))
	if err != nil || page < 0 {
		page = 0
	}
	perPage, err = strconv.Atoi(query.Get("perPage"))
	if err != nil || perPage < 1 {
		perPage = defaultPerPage
	}
	return page, perPage
}

// paginate returns the bounds of page within n items, clamped to n
func paginate(n, page, perPage int) (int, int) {
	if page > n/perPage {
		return n, n
	}
	start := page * perPage
	end := start + min(perPage, n-start)
	return start, end
}

// ReposHandler lists the pinned repositories, or all the public ones
// with show=all
func ReposHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := fromRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var rids []identity.RepoID
	switch show := r.URL.Query().Get("show"); show {
	case "", "pinned":
		rids = c.webConfig.Read().Pinned.Repositories
	case "all":
		all, err := c.collaborators.Storage.Repositories()
		if err != nil {
			HandleError(w, r, err)
			return
		}
		page, perPage := pagination(r)
		start, end := paginate(len(all), page, perPage)
		rids = all[start:end]
	default:
		EncodeJSONReplyStatus(w, http.StatusBadRequest, ErrorReply{
			Error: "show must be one of pinned, all",
			Code:  http.StatusBadRequest,
		})
		return
	}

	infos := []*RepoInfo{}
	for _, rid := range rids {
		repo, doc, err := c.Repo(ctx, rid)
		if err != nil {
			logger.Debugf("Skipping repository %s: %v", rid, err)
			continue
		}
		info, err := c.RepoInfo(ctx, repo, doc)
		if err != nil {
			logger.Debugf("Skipping repository %s: %v", rid, err)
			continue
		}
		infos = append(infos, info)
	}

	EncodeJSONReply(w, r, infos)
}

func repoFromRequest(w http.ResponseWriter, r *http.Request) (*Context, Repository, *identity.Doc, bool) {
	c, ok := fromRequest(w, r)
	if !ok {
		return nil, nil, nil, false
	}

	rid, err := identity.ParseRepoID(chi.URLParam(r, "rid"))
	if err != nil {
		HandleError(w, r, err)
		return nil, nil, nil, false
	}

	repo, doc, err := c.Repo(r.Context(), rid)
	if err != nil {
		HandleError(w, r, err)
		return nil, nil, nil, false
	}

	return c, repo, doc, true
}

// RepoHandler describes a repository
func RepoHandler(w http.ResponseWriter, r *http.Request) {
	c, repo, doc, ok := repoFromRequest(w, r)
	if !ok {
		return
	}

	info, err := c.RepoInfo(r.Context(), repo, doc)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	EncodeJSONReply(w, r, info)
}

// TreeResponse lists a directory
type TreeResponse struct {
	Path    string              `json:"path"`
	Entries []storage.TreeEntry `json:"entries"`
}

// TreeHandler lists a directory of a commit
func TreeHandler(w http.ResponseWriter, r *http.Request) {
	c, repo, _, ok := repoFromRequest(w, r)
	if !ok {
		return
	}

	rev := chi.URLParam(r, "sha")
	if err := storage.CheckRev(rev); err != nil {
		HandleError(w, r, err)
		return
	}

	path := strings.Trim(chi.URLParam(r, "*"), "/")
	entries, err := c.Tree(r.Context(), repo, rev, path)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	EncodeJSONReply(w, r, TreeResponse{Path: path, Entries: entries})
}

// SearchResult is a repository whose project name matches a query
type SearchResult struct {
	RID       identity.RepoID                        `json:"rid"`
	Payloads  map[identity.PayloadID]json.RawMessage `json:"payloads"`
	Delegates []Delegate                             `json:"delegates"`
	Seeds     int                                    `json:"seeds"`

	index int
}

// Search returns the public repositories whose project name contains q.
// Names starting with q come first, then the most seeded.
func (c *Context) Search(ctx context.Context, q string) ([]SearchResult, error) {
	rids, err := c.collaborators.Storage.Repositories()
	if err != nil {
		return nil, err
	}

	results := []SearchResult{}
	for _, rid := range rids {
		_, doc, err := c.Repo(ctx, rid)
		if err != nil {
			continue
		}
		project, err := doc.Project()
		if err != nil {
			continue
		}
		index := strings.Index(project.Name, q)
		if index < 0 {
			continue
		}

		seeds, err := c.collaborators.Seeds.Count(ctx, rid)
		if err != nil {
			seeds = 0
		}
		results = append(results, SearchResult{
			RID:       rid,
			Payloads:  doc.Payload,
			Delegates: c.delegates(ctx, doc),
			Seeds:     seeds,
			index:     index,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if (a.index == 0) != (b.index == 0) {
			return a.index == 0
		}
		return a.Seeds > b.Seeds
	})

	return results, nil
}

// SearchHandler searches repositories by project name
func SearchHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := fromRequest(w, r)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		EncodeJSONReplyStatus(w, http.StatusBadRequest, ErrorReply{
			Error: "missing query",
			Code:  http.StatusBadRequest,
		})
		return
	}

	results, err := c.Search(r.Context(), q)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	page, perPage := pagination(r)
	start, end := paginate(len(results), page, perPage)
	EncodeJSONReply(w, r, results[start:end])
}
