// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage reads repositories from the bare git repositories
// of the profile storage
package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lirios/radicle-httpd/internal/canonical"
	"github.com/lirios/radicle-httpd/internal/identity"
)

const (
	// IdentityRef points to the identity commit
	IdentityRef = "refs/rad/id"

	// Name of the identity document in the identity commit
	identityDocPath = "radicle.json"

	namespacesPrefix = "refs/namespaces/"
)

// ErrNotFound is returned when a repository or object doesn't exist
var ErrNotFound = errors.New("not found")

// ErrInvalidRev is returned for revisions git would take for an option
var ErrInvalidRev = errors.New("invalid revision")

// Storage represents the directory holding all repositories
type Storage struct {
	path string
}

// Open opens the storage at path
func Open(path string) (*Storage, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("storage path %s is not a directory", path)
	}

	return &Storage{path: path}, nil
}

// Path returns the storage path
func (s *Storage) Path() string {
	return s.path
}

// Repository opens the repository identified by rid
func (s *Storage) Repository(rid identity.RepoID) (*Repository, error) {
	path := filepath.Join(s.path, rid.Canonical())
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("repository %s: %w", rid, ErrNotFound)
	} else if err != nil {
		return nil, err
	}

	return &Repository{id: rid, path: path, git: git{dir: path}}, nil
}

// Repositories lists the identifiers of the stored repositories
func (s *Storage) Repositories() ([]identity.RepoID, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, err
	}

	rids := []identity.RepoID{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rid, err := identity.ParseRepoID(entry.Name())
		if err != nil {
			continue
		}
		rids = append(rids, rid)
	}

	return rids, nil
}

// Repository represents a stored repository
type Repository struct {
	id   identity.RepoID
	path string
	git  git
}

// ID returns the repository identifier
func (r *Repository) ID() identity.RepoID {
	return r.id
}

// Path returns the repository path
func (r *Repository) Path() string {
	return r.path
}

// IdentityDoc reads the current identity document
func (r *Repository) IdentityDoc(ctx context.Context) (*identity.Doc, error) {
	data, err := r.git.run(ctx, "cat-file", "blob", IdentityRef+":"+identityDocPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity document of %s: %w", r.id, err)
	}

	return identity.ParseDoc(data)
}

// Remotes returns the remotes of the repository, read within ctx
func (r *Repository) Remotes(ctx context.Context) canonical.Remotes {
	return remotes{repo: r, ctx: ctx}
}

type remotes struct {
	repo *Repository
	ctx  context.Context
}

// WalkRemotes calls walkFn for each namespace of the repository, in node order
func (rs remotes) WalkRemotes(walkFn canonical.RemoteWalkFn) error {
	out, err := rs.repo.git.run(rs.ctx, "for-each-ref", "--format=%(objectname) %(refname)", namespacesPrefix)
	if err != nil {
		return err
	}

	byNode := map[identity.NodeID]map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		oid, refname, ok := strings.Cut(scanner.Text(), " ")
		if !ok {
			return fmt.Errorf("unexpected for-each-ref output %q", scanner.Text())
		}

		rest := strings.TrimPrefix(refname, namespacesPrefix)
		namespace, ref, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		nid, err := identity.ParseNodeID(namespace)
		if err != nil {
			continue
		}

		refs, ok := byNode[nid]
		if !ok {
			refs = map[string]string{}
			byNode[nid] = refs
		}
		refs[ref] = oid
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	nodes := make([]identity.NodeID, 0, len(byNode))
	for nid := range byNode {
		nodes = append(nodes, nid)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	for _, nid := range nodes {
		if err := walkFn(nid, byNode[nid]); err != nil {
			return err
		}
	}

	return nil
}

// Head returns the commit of the canonical default branch
func (r *Repository) Head(ctx context.Context, doc *identity.Doc) (string, error) {
	project, err := doc.Project()
	if err != nil {
		return "", err
	}

	out, err := r.git.run(ctx, "rev-parse", "--verify", "refs/heads/"+project.DefaultBranch+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Blob returns the content of the blob oid
func (r *Repository) Blob(ctx context.Context, oid string) ([]byte, error) {
	if !isOID(oid) {
		return nil, fmt.Errorf("blob %q: %w", oid, ErrNotFound)
	}
	return r.readBlob(ctx, oid)
}

// File returns the content of the file at path in the commit rev
func (r *Repository) File(ctx context.Context, rev, path string) ([]byte, error) {
	if err := CheckRev(rev); err != nil {
		return nil, err
	}
	return r.readBlob(ctx, rev+":"+strings.TrimPrefix(path, "/"))
}

func (r *Repository) readBlob(ctx context.Context, object string) ([]byte, error) {
	ok, err := r.git.exists(ctx, object)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("object %s: %w", object, ErrNotFound)
	}

	kind, err := r.git.run(ctx, "cat-file", "-t", object)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(kind)) != "blob" {
		return nil, fmt.Errorf("object %s is not a blob: %w", object, ErrNotFound)
	}

	return r.git.run(ctx, "cat-file", "blob", object)
}

// TreeEntry is an entry of a tree listing
type TreeEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	OID  string `json:"oid"`
}

// Tree lists the entries of the directory at path in the commit rev
func (r *Repository) Tree(ctx context.Context, rev, path string) ([]TreeEntry, error) {
	if err := CheckRev(rev); err != nil {
		return nil, err
	}
	object := rev + ":" + strings.Trim(path, "/")
	ok, err := r.git.exists(ctx, object)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("tree %s: %w", object, ErrNotFound)
	}

	out, err := r.git.run(ctx, "ls-tree", "-z", object)
	if err != nil {
		return nil, err
	}

	entries := []TreeEntry{}
	for _, line := range bytes.Split(out, []byte{0}) {
		if len(line) == 0 {
			continue
		}
		// <mode> SP <type> SP <object> TAB <file>
		meta, name, ok := strings.Cut(string(line), "\t")
		if !ok {
			return nil, fmt.Errorf("unexpected ls-tree output %q", line)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected ls-tree output %q", line)
		}
		entries = append(entries, TreeEntry{Name: name, Kind: fields[1], OID: fields[2]})
	}

	return entries, nil
}

// CheckRev rejects revisions that are empty or would be read as an option
func CheckRev(rev string) error {
	if rev == "" || strings.HasPrefix(rev, "-") {
		return fmt.Errorf("%w %q", ErrInvalidRev, rev)
	}
	return nil
}

func isOID(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
