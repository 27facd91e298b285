// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"errors"
	"fmt"
	"strings"
)

const (
	repoIDPrefix = "rad:"
	didPrefix    = "did:key:"

	// Multibase prefix of base58btc encoded identifiers
	multibaseBase58 = 'z'

	base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
)

// ErrInvalidID is returned when an identifier cannot be parsed
var ErrInvalidID = errors.New("invalid identifier")

// RepoID is the stable identifier of a repository, in the form rad:z...
type RepoID string

// NodeID identifies a peer on the network
type NodeID string

// DID is a delegate identity, in the form did:key:z...
type DID string

func validMultibase(s string) bool {
	if len(s) < 2 || s[0] != multibaseBase58 {
		return false
	}
	for _, c := range s[1:] {
		if !strings.ContainsRune(base58Alphabet, c) {
			return false
		}
	}
	return true
}

// ParseRepoID parses a repository identifier, with or without the rad: prefix
func ParseRepoID(s string) (RepoID, error) {
	encoded := strings.TrimPrefix(s, repoIDPrefix)
	if !validMultibase(encoded) {
		return "", fmt.Errorf("%w: repository id %q", ErrInvalidID, s)
	}
	return RepoID(repoIDPrefix + encoded), nil
}

// String returns the rad:z... form
func (id RepoID) String() string {
	return string(id)
}

// Canonical returns the identifier without the rad: prefix, as used
// for storage paths
func (id RepoID) Canonical() string {
	return strings.TrimPrefix(string(id), repoIDPrefix)
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *RepoID) UnmarshalText(text []byte) error {
	parsed, err := ParseRepoID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseNodeID parses a node identifier
func ParseNodeID(s string) (NodeID, error) {
	if !validMultibase(s) {
		return "", fmt.Errorf("%w: node id %q", ErrInvalidID, s)
	}
	return NodeID(s), nil
}

// String returns the multibase form
func (id NodeID) String() string {
	return string(id)
}

// DID returns the did:key form of the node
func (id NodeID) DID() DID {
	return DID(didPrefix + string(id))
}

// ParseDID parses a did:key identifier
func ParseDID(s string) (DID, error) {
	if !strings.HasPrefix(s, didPrefix) || !validMultibase(strings.TrimPrefix(s, didPrefix)) {
		return "", fmt.Errorf("%w: did %q", ErrInvalidID, s)
	}
	return DID(s), nil
}

// NodeID returns the node behind the did
func (d DID) NodeID() NodeID {
	return NodeID(strings.TrimPrefix(string(d), didPrefix))
}

// String returns the did:key form
func (d DID) String() string {
	return string(d)
}
