// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package git

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-memdb"

	"github.com/lirios/radicle-httpd/internal/identity"
)

// ErrDuplicateAlias is returned when a name is already taken by another repository
var ErrDuplicateAlias = errors.New("duplicate alias")

// Alias pairs a short name with a repository
type Alias struct {
	Name string
	RID  identity.RepoID
}

// ParseAlias parses an alias in the form name=rid
func ParseAlias(s string) (Alias, error) {
	name, rid, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Alias{}, fmt.Errorf("invalid alias %q, expected <name>=<rid>", s)
	}
	if strings.ContainsAny(name, "/:") {
		return Alias{}, fmt.Errorf("invalid alias name %q", name)
	}

	parsed, err := identity.ParseRepoID(strings.TrimSpace(rid))
	if err != nil {
		return Alias{}, err
	}

	return Alias{Name: strings.TrimSuffix(name, ".git"), RID: parsed}, nil
}

// aliasEntry is what the directory indexes
type aliasEntry struct {
	Name string
	RID  string
}

// Aliases is the directory of repository aliases
type Aliases struct {
	db *memdb.MemDB
}

// AliasWalkFn is a function prototype for Walk()
type AliasWalkFn func(alias Alias) error

// NewAliases creates a directory holding aliases
func NewAliases(aliases ...Alias) (*Aliases, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"alias": {
				Name: "alias",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:         "id",
						Unique:       true,
						AllowMissing: false,
						Indexer:      &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}

	a := &Aliases{db}
	for _, alias := range aliases {
		if err := a.Add(alias); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Add adds an alias; adding the same pair twice is a no-op
func (a *Aliases) Add(alias Alias) error {
	txn := a.db.Txn(true)

	raw, err := txn.First("alias", "id", alias.Name)
	if err != nil {
		txn.Abort()
		return err
	}
	if raw != nil {
		txn.Abort()
		if existing := raw.(*aliasEntry); existing.RID != alias.RID.String() {
			return fmt.Errorf("%w: %s is already %s", ErrDuplicateAlias, alias.Name, existing.RID)
		}
		return nil
	}

	if err := txn.Insert("alias", &aliasEntry{Name: alias.Name, RID: alias.RID.String()}); err != nil {
		txn.Abort()
		return err
	}
	txn.Commit()
	return nil
}

// Resolve returns the repository behind name
func (a *Aliases) Resolve(name string) (identity.RepoID, bool) {
	txn := a.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First("alias", "id", name)
	if err != nil || raw == nil {
		return "", false
	}

	return identity.RepoID(raw.(*aliasEntry).RID), true
}

// Walk walks through the aliases in name order and execute walkFn for each of them
func (a *Aliases) Walk(walkFn AliasWalkFn) error {
	txn := a.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get("alias", "id")
	if err != nil {
		return err
	}

	for object := it.Next(); object != nil; object = it.Next() {
		entry := object.(*aliasEntry)
		if err := walkFn(Alias{Name: entry.Name, RID: identity.RepoID(entry.RID)}); err != nil {
			return err
		}
	}

	return nil
}
