// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/lirios/radicle-httpd/internal/canonical"
	"github.com/lirios/radicle-httpd/internal/cob"
	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/profile"
	"github.com/lirios/radicle-httpd/internal/storage"
)

// ErrNotFound is returned for repositories that are missing or private
var ErrNotFound = errors.New("not found")

// Repository is a stored repository
type Repository interface {
	ID() identity.RepoID
	IdentityDoc(ctx context.Context) (*identity.Doc, error)
	Remotes(ctx context.Context) canonical.Remotes
	Head(ctx context.Context, doc *identity.Doc) (string, error)
	Tree(ctx context.Context, rev, path string) ([]storage.TreeEntry, error)
}

// Storage opens stored repositories
type Storage interface {
	Repository(rid identity.RepoID) (Repository, error)
	Repositories() ([]identity.RepoID, error)
}

// SeedCounter counts the nodes seeding a repository
type SeedCounter interface {
	Count(ctx context.Context, rid identity.RepoID) (int, error)
}

// AliasStore resolves node aliases
type AliasStore interface {
	Alias(ctx context.Context, nid identity.NodeID) (string, bool)
}

// CobCounter counts the collaborative objects of a repository
type CobCounter interface {
	IssueCounts(ctx context.Context, rid identity.RepoID) (cob.IssueCounts, error)
	PatchCounts(ctx context.Context, rid identity.RepoID) (cob.PatchCounts, error)
}

// Collaborators are the stores the API reads from
type Collaborators struct {
	Storage Storage
	Seeds   SeedCounter
	Aliases AliasStore
	Cobs    CobCounter
}

// Node describes the node serving the API
type Node struct {
	ID    identity.NodeID
	Alias string
}

// Context represents the API context shared by all requests
type Context struct {
	collaborators Collaborators
	node          Node
	webConfig     *WebConfig
	trees         *lru.Cache
}

// NewContext creates a new Context. Tree listings are cached when
// cacheSize is positive.
func NewContext(collaborators Collaborators, node Node, webConfig *WebConfig, cacheSize int) (*Context, error) {
	c := &Context{
		collaborators: collaborators,
		node:          node,
		webConfig:     webConfig,
	}

	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, err
		}
		c.trees = cache
	}

	return c, nil
}

type profileStorage struct {
	*storage.Storage
}

func (s profileStorage) Repository(rid identity.RepoID) (Repository, error) {
	repo, err := s.Storage.Repository(rid)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// FromProfile creates a Context reading from the stores of p
func FromProfile(p *profile.Profile, webConfig *WebConfig, cacheSize int) (*Context, error) {
	collaborators := Collaborators{
		Storage: profileStorage{p.Storage},
		Seeds:   p.Database,
		Aliases: p,
		Cobs:    p.Cobs,
	}
	node := Node{ID: p.Config.Node.ID, Alias: p.Config.Node.Alias}

	return NewContext(collaborators, node, webConfig, cacheSize)
}

// WebConfig returns the live web configuration
func (c *Context) WebConfig() *WebConfig {
	return c.webConfig
}

// Repo opens a repository and its identity document, refusing private ones
func (c *Context) Repo(ctx context.Context, rid identity.RepoID) (Repository, *identity.Doc, error) {
	repo, err := c.collaborators.Storage.Repository(rid)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open repository %s: %w", rid, err)
	}

	doc, err := repo.IdentityDoc(ctx)
	if err != nil {
		return nil, nil, err
	}

	// Private repositories are reported as missing
	if doc.Visibility.IsPrivate() {
		return nil, nil, ErrNotFound
	}

	return repo, doc, nil
}
