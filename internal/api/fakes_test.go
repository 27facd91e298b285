// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package api_test

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lirios/radicle-httpd/internal/api"
	"github.com/lirios/radicle-httpd/internal/canonical"
	"github.com/lirios/radicle-httpd/internal/cob"
	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/storage"
	"github.com/lirios/radicle-httpd/internal/web"
)

const (
	alice identity.NodeID = "z6MknSLrJoTcukLrE435hVNQT4JUhbvWLX4kUzqkEStBU8Vi"
	bob   identity.NodeID = "z6MkireRatUThvd3qzfKht1S44wpm4FEWSSa4PRMTSQZ3voM"

	headOID = "f2de534b5e81d7c6e2dcaf58c3dd91573c0a0354"
)

type fakeRemotes struct {
	refs map[identity.NodeID]map[string]string
	err  error
}

func (f fakeRemotes) WalkRemotes(walkFn canonical.RemoteWalkFn) error {
	if f.err != nil {
		return f.err
	}
	nodes := make([]string, 0, len(f.refs))
	for nid := range f.refs {
		nodes = append(nodes, string(nid))
	}
	sort.Strings(nodes)
	for _, nid := range nodes {
		if err := walkFn(identity.NodeID(nid), f.refs[identity.NodeID(nid)]); err != nil {
			return err
		}
	}
	return nil
}

type fakeRepo struct {
	id      identity.RepoID
	doc     *identity.Doc
	docErr  error
	remotes fakeRemotes
	head    string
	headErr error
	trees   map[string][]storage.TreeEntry
	listed  int
}

func (r *fakeRepo) ID() identity.RepoID { return r.id }

func (r *fakeRepo) IdentityDoc(ctx context.Context) (*identity.Doc, error) {
	return r.doc, r.docErr
}

func (r *fakeRepo) Remotes(ctx context.Context) canonical.Remotes { return r.remotes }

func (r *fakeRepo) Head(ctx context.Context, doc *identity.Doc) (string, error) {
	return r.head, r.headErr
}

func (r *fakeRepo) Tree(ctx context.Context, rev, path string) ([]storage.TreeEntry, error) {
	r.listed++
	entries, ok := r.trees[rev+":"+path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return entries, nil
}

type fakeStorage map[identity.RepoID]*fakeRepo

func (s fakeStorage) Repository(rid identity.RepoID) (api.Repository, error) {
	repo, ok := s[rid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return repo, nil
}

func (s fakeStorage) Repositories() ([]identity.RepoID, error) {
	rids := make([]identity.RepoID, 0, len(s))
	for rid := range s {
		rids = append(rids, rid)
	}
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })
	return rids, nil
}

type fakeSeeds struct {
	counts map[identity.RepoID]int
	err    error
}

func (f fakeSeeds) Count(ctx context.Context, rid identity.RepoID) (int, error) {
	return f.counts[rid], f.err
}

type fakeAliases map[identity.NodeID]string

func (f fakeAliases) Alias(ctx context.Context, nid identity.NodeID) (string, bool) {
	alias, ok := f[nid]
	return alias, ok
}

type fakeCobs struct {
	issues     cob.IssueCounts
	patches    cob.PatchCounts
	issuesErr  error
	patchesErr error
}

func (f fakeCobs) IssueCounts(ctx context.Context, rid identity.RepoID) (cob.IssueCounts, error) {
	return f.issues, f.issuesErr
}

func (f fakeCobs) PatchCounts(ctx context.Context, rid identity.RepoID) (cob.PatchCounts, error) {
	return f.patches, f.patchesErr
}

func newDoc(t *testing.T, name string, visibility identity.Visibility, crefs ...string) *identity.Doc {
	t.Helper()

	project, err := json.Marshal(identity.Project{Name: name, Description: "A project", DefaultBranch: "master"})
	require.NoError(t, err)

	payload := map[identity.PayloadID]json.RawMessage{identity.PayloadProject: project}
	if len(crefs) > 0 {
		rules := map[string]interface{}{}
		for _, pattern := range crefs {
			rules[pattern] = map[string]interface{}{"allow": "delegates", "threshold": 1}
		}
		raw, err := json.Marshal(map[string]interface{}{"rules": rules})
		require.NoError(t, err)
		payload[identity.PayloadCanonicalRefs] = raw
	}

	return &identity.Doc{
		Payload:    payload,
		Delegates:  []identity.DID{alice.DID(), bob.DID()},
		Threshold:  1,
		Visibility: visibility,
	}
}

type fixture struct {
	storage fakeStorage
	seeds   fakeSeeds
	aliases fakeAliases
	cobs    fakeCobs
	config  web.Config
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		storage: fakeStorage{
			rid1: {
				id:   rid1,
				doc:  newDoc(t, "heartwood", identity.Public(), "refs/tags/v*"),
				head: headOID,
				remotes: fakeRemotes{refs: map[identity.NodeID]map[string]string{
					alice: {"refs/tags/v1.0": "1111111111111111111111111111111111111111"},
				}},
				trees: map[string][]storage.TreeEntry{
					headOID + ":":    {{Name: "src", Kind: "tree", OID: "2222222222222222222222222222222222222222"}},
					headOID + ":src": {{Name: "main.rs", Kind: "blob", OID: "3333333333333333333333333333333333333333"}},
				},
			},
			rid2: {
				id:  rid2,
				doc: newDoc(t, "secret", identity.Private(alice.DID())),
			},
		},
		seeds:   fakeSeeds{counts: map[identity.RepoID]int{rid1: 3}},
		aliases: fakeAliases{alice: "alice"},
		cobs: fakeCobs{
			issues:  cob.IssueCounts{Open: 2, Closed: 1},
			patches: cob.PatchCounts{Open: 1, Merged: 4},
		},
		config: web.Config{Pinned: web.Pinned{Repositories: []identity.RepoID{rid1, rid2}}},
	}
}

func (f *fixture) context(t *testing.T, cacheSize int) *api.Context {
	t.Helper()

	c, err := api.NewContext(api.Collaborators{
		Storage: f.storage,
		Seeds:   f.seeds,
		Aliases: f.aliases,
		Cobs:    f.cobs,
	}, api.Node{ID: alice, Alias: "seed.example.com"}, api.NewWebConfig(f.config), cacheSize)
	require.NoError(t, err)
	return c
}
