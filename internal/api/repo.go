// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lirios/radicle-httpd/internal/canonical"
	"github.com/lirios/radicle-httpd/internal/cob"
	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/logger"
	"github.com/lirios/radicle-httpd/internal/storage"
)

// Delegate is a delegate of a repository, with its alias when known
type Delegate struct {
	ID    identity.DID `json:"id"`
	Alias string       `json:"alias,omitempty"`
}

// ProjectMeta enriches the project payload
type ProjectMeta struct {
	Head    string          `json:"head"`
	Issues  cob.IssueCounts `json:"issues"`
	Patches cob.PatchCounts `json:"patches"`
}

// Payload is a payload of the identity document
type Payload struct {
	Data json.RawMessage `json:"data"`
	Meta *ProjectMeta    `json:"meta,omitempty"`
}

// RepoInfo describes a repository
type RepoInfo struct {
	Payloads      map[identity.PayloadID]Payload `json:"payloads"`
	Delegates     []Delegate                     `json:"delegates"`
	Threshold     int                            `json:"threshold"`
	Visibility    identity.Visibility            `json:"visibility"`
	RID           identity.RepoID                `json:"rid"`
	Seeding       int                            `json:"seeding"`
	CanonicalTags canonical.Tags                 `json:"canonicalTags,omitempty"`
}

// RepoInfo assembles the description of a repository. Derived fields that
// cannot be computed are left out rather than failing the request.
func (c *Context) RepoInfo(ctx context.Context, repo Repository, doc *identity.Doc) (*RepoInfo, error) {
	rid := repo.ID()

	seeding, err := c.collaborators.Seeds.Count(ctx, rid)
	if err != nil {
		logger.Warningf("Failed to count seeds of %s: %v", rid, err)
		seeding = 0
	}

	payloads := map[identity.PayloadID]Payload{}
	for _, id := range doc.PayloadIDs() {
		payload := Payload{Data: doc.Payload[id]}
		if id == identity.PayloadProject {
			meta, err := c.projectMeta(ctx, repo, doc)
			if err != nil {
				logger.Debugf("Omitting project payload of %s: %v", rid, err)
				continue
			}
			payload.Meta = meta
		}
		payloads[id] = payload
	}

	tags, err := canonical.ResolveDoc(doc, repo.Remotes(ctx))
	if err != nil {
		logger.Debugf("Omitting canonical tags of %s: %v", rid, err)
		tags = nil
	}

	return &RepoInfo{
		Payloads:      payloads,
		Delegates:     c.delegates(ctx, doc),
		Threshold:     doc.Threshold,
		Visibility:    doc.Visibility,
		RID:           rid,
		Seeding:       seeding,
		CanonicalTags: tags,
	}, nil
}

func (c *Context) delegates(ctx context.Context, doc *identity.Doc) []Delegate {
	delegates := make([]Delegate, 0, len(doc.Delegates))
	for _, did := range doc.Delegates {
		delegate := Delegate{ID: did}
		if alias, ok := c.collaborators.Aliases.Alias(ctx, did.NodeID()); ok {
			delegate.Alias = alias
		}
		delegates = append(delegates, delegate)
	}
	return delegates
}

func (c *Context) projectMeta(ctx context.Context, repo Repository, doc *identity.Doc) (*ProjectMeta, error) {
	head, err := repo.Head(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	issues, err := c.collaborators.Cobs.IssueCounts(ctx, repo.ID())
	if err != nil {
		return nil, fmt.Errorf("issues: %w", err)
	}
	patches, err := c.collaborators.Cobs.PatchCounts(ctx, repo.ID())
	if err != nil {
		return nil, fmt.Errorf("patches: %w", err)
	}

	return &ProjectMeta{Head: head, Issues: issues, Patches: patches}, nil
}

type treeKey struct {
	rid  identity.RepoID
	rev  string
	path string
}

// Tree lists a directory of a commit; listings of full commit ids are cached
func (c *Context) Tree(ctx context.Context, repo Repository, rev, path string) ([]storage.TreeEntry, error) {
	key := treeKey{rid: repo.ID(), rev: rev, path: path}
	cacheable := c.trees != nil && isCommitID(rev)

	if cacheable {
		if entries, ok := c.trees.Get(key); ok {
			return entries.([]storage.TreeEntry), nil
		}
	}

	entries, err := repo.Tree(ctx, rev, path)
	if err != nil {
		return nil, err
	}

	if cacheable {
		c.trees.Add(key, entries)
	}

	return entries, nil
}

func isCommitID(rev string) bool {
	if len(rev) != 40 {
		return false
	}
	for _, c := range rev {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
