// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package canonical computes the tags the peers of a repository agree on
package canonical

import (
	"fmt"
	"strings"

	"github.com/lirios/radicle-httpd/internal/identity"
)

// TagsPrefix is the namespace of tag references
const TagsPrefix = "refs/tags/"

// RemoteWalkFn is called by WalkRemotes for each remote of a repository
// with its references, mapping reference names to object ids
type RemoteWalkFn func(remote identity.NodeID, refs map[string]string) error

// Remotes gives access to the remotes of a repository
type Remotes interface {
	WalkRemotes(walkFn RemoteWalkFn) error
}

// Tags maps tag short names to object ids
type Tags map[string]string

// tally records, per tag and object id, the set of nodes voting for it
type tally map[string]map[string]map[identity.NodeID]struct{}

func (t tally) vote(tag, oid string, voter identity.NodeID) {
	oids, ok := t[tag]
	if !ok {
		oids = map[string]map[identity.NodeID]struct{}{}
		t[tag] = oids
	}
	voters, ok := oids[oid]
	if !ok {
		voters = map[identity.NodeID]struct{}{}
		oids[oid] = voters
	}
	voters[voter] = struct{}{}
}

// winner returns the object id with the most voters; on a tie the
// lexicographically smallest object id wins
func winner(oids map[string]map[identity.NodeID]struct{}) (string, int) {
	best, count := "", 0
	for oid, voters := range oids {
		n := len(voters)
		if n > count || (n == count && oid < best) {
			best, count = oid, n
		}
	}
	return best, count
}

// Rules is a set of tag patterns
type Rules []string

// TagRules keeps the patterns restricted to tags
func TagRules(patterns []string) Rules {
	var rules Rules
	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, TagsPrefix) {
			rules = append(rules, pattern)
		}
	}
	return rules
}

// Match returns whether refname matches pattern. Patterns ending with "/*"
// match a subtree, patterns ending with "*" match a prefix, anything else
// must be equal.
func Match(pattern, refname string) bool {
	if refname == pattern {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(refname, strings.TrimSuffix(pattern, "/*"))
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(refname, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// Matches returns whether refname matches at least one rule
func (r Rules) Matches(refname string) bool {
	for _, pattern := range r {
		if Match(pattern, refname) {
			return true
		}
	}
	return false
}

// Resolve computes the tags that reached the threshold among the remotes,
// considering only references matching the rules. A nil map is returned
// when no tag qualifies.
func Resolve(rules Rules, threshold int, remotes Remotes) (Tags, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	votes := tally{}
	err := remotes.WalkRemotes(func(remote identity.NodeID, refs map[string]string) error {
		for refname, oid := range refs {
			if !strings.HasPrefix(refname, TagsPrefix) || !rules.Matches(refname) {
				continue
			}
			votes.vote(strings.TrimPrefix(refname, TagsPrefix), oid, remote)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk remotes: %w", err)
	}

	var tags Tags
	for tag, oids := range votes {
		oid, count := winner(oids)
		if count < threshold {
			continue
		}
		if tags == nil {
			tags = Tags{}
		}
		tags[tag] = oid
	}

	return tags, nil
}

// ResolveDoc computes the canonical tags of a repository from the rules
// and threshold of its identity document. A nil map is returned when
// canonical references are not configured or no tag qualifies.
func ResolveDoc(doc *identity.Doc, remotes Remotes) (Tags, error) {
	// An undecodable rules payload counts as not configured
	patterns, err := doc.CanonicalRefs()
	if err != nil {
		return nil, nil
	}

	return Resolve(TagRules(patterns), doc.Threshold, remotes)
}
