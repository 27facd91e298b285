// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package canonical_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lirios/radicle-httpd/internal/canonical"
	"github.com/lirios/radicle-httpd/internal/identity"
)

type remote struct {
	id   identity.NodeID
	refs map[string]string
}

type fakeRemotes struct {
	remotes []remote
	err     error
}

func (f fakeRemotes) WalkRemotes(walkFn canonical.RemoteWalkFn) error {
	for _, r := range f.remotes {
		if err := walkFn(r.id, r.refs); err != nil {
			return err
		}
	}
	return f.err
}

func node(n int) identity.NodeID {
	return identity.NodeID(fmt.Sprintf("z6MkNode%d", n))
}

func docWithRules(t *testing.T, threshold int, patterns ...string) *identity.Doc {
	t.Helper()

	rules := map[string]interface{}{}
	for _, p := range patterns {
		rules[p] = map[string]interface{}{"allow": "delegates", "threshold": 1}
	}
	crefs, err := json.Marshal(map[string]interface{}{"rules": rules})
	require.NoError(t, err)

	return &identity.Doc{
		Payload:    map[identity.PayloadID]json.RawMessage{identity.PayloadCanonicalRefs: crefs},
		Threshold:  threshold,
		Visibility: identity.Public(),
	}
}

func TestMatch(t *testing.T) {
	t.Run("subtree wildcard", func(t *testing.T) {
		require.True(t, canonical.Match("refs/tags/release/*", "refs/tags/release/1.0"))
		require.False(t, canonical.Match("refs/tags/release/*", "refs/tags/rc-1.0"))
	})

	t.Run("trailing wildcard", func(t *testing.T) {
		require.True(t, canonical.Match("refs/tags/v*", "refs/tags/v1"))
		require.True(t, canonical.Match("refs/tags/v*", "refs/tags/v"))
		require.False(t, canonical.Match("refs/tags/v*", "refs/tags/release"))
	})

	t.Run("exact", func(t *testing.T) {
		require.True(t, canonical.Match("refs/tags/v1.0", "refs/tags/v1.0"))
		require.False(t, canonical.Match("refs/tags/v1.0", "refs/tags/v1.0.1"))
	})

	t.Run("tag rules drop other namespaces", func(t *testing.T) {
		rules := canonical.TagRules([]string{"refs/heads/*", "refs/tags/v*", "refs/notes/*"})
		require.Equal(t, canonical.Rules{"refs/tags/v*"}, rules)
	})
}

func TestResolve(t *testing.T) {
	t.Run("scenario A: unanimous tag reaches the threshold", func(t *testing.T) {
		remotes := fakeRemotes{remotes: []remote{
			{node(1), map[string]string{"refs/tags/v1": "abc123"}},
			{node(2), map[string]string{"refs/tags/v1": "abc123"}},
			{node(3), map[string]string{"refs/tags/v1": "abc123"}},
		}}

		tags, err := canonical.ResolveDoc(docWithRules(t, 2, "refs/tags/v*"), remotes)
		require.NoError(t, err)

		out, err := json.Marshal(tags)
		require.NoError(t, err)
		require.JSONEq(t, `{"v1":"abc123"}`, string(out))
	})

	t.Run("scenario B: split vote below the threshold", func(t *testing.T) {
		remotes := fakeRemotes{remotes: []remote{
			{node(1), map[string]string{"refs/tags/v1": "abc123"}},
			{node(2), map[string]string{"refs/tags/v1": "abc123"}},
			{node(3), map[string]string{"refs/tags/v1": "def456"}},
		}}

		tags, err := canonical.ResolveDoc(docWithRules(t, 3, "refs/tags/v*"), remotes)
		require.NoError(t, err)
		require.Nil(t, tags)
	})

	t.Run("scenario C: no rules configured", func(t *testing.T) {
		remotes := fakeRemotes{remotes: []remote{
			{node(1), map[string]string{"refs/tags/v1": "abc123"}},
		}}
		doc := &identity.Doc{Threshold: 1, Visibility: identity.Public()}

		tags, err := canonical.ResolveDoc(doc, remotes)
		require.NoError(t, err)
		require.Nil(t, tags)
	})

	t.Run("only branch rules configured", func(t *testing.T) {
		remotes := fakeRemotes{remotes: []remote{
			{node(1), map[string]string{"refs/heads/master": "abc123", "refs/tags/v1": "abc123"}},
		}}

		tags, err := canonical.ResolveDoc(docWithRules(t, 1, "refs/heads/*"), remotes)
		require.NoError(t, err)
		require.Nil(t, tags)
	})

	t.Run("ignores refs outside the rules", func(t *testing.T) {
		remotes := fakeRemotes{remotes: []remote{
			{node(1), map[string]string{
				"refs/tags/release/1.0": "aaa",
				"refs/tags/rc-1.0":      "bbb",
				"refs/heads/master":     "ccc",
			}},
		}}

		tags, err := canonical.ResolveDoc(docWithRules(t, 1, "refs/tags/release/*"), remotes)
		require.NoError(t, err)
		require.Equal(t, canonical.Tags{"release/1.0": "aaa"}, tags)
	})

	t.Run("majority wins when it reaches the threshold", func(t *testing.T) {
		remotes := fakeRemotes{remotes: []remote{
			{node(1), map[string]string{"refs/tags/v1": "abc123"}},
			{node(2), map[string]string{"refs/tags/v1": "abc123"}},
			{node(3), map[string]string{"refs/tags/v1": "def456"}},
		}}

		tags, err := canonical.ResolveDoc(docWithRules(t, 2, "refs/tags/v*"), remotes)
		require.NoError(t, err)
		require.Equal(t, canonical.Tags{"v1": "abc123"}, tags)
	})

	t.Run("ties pick the smallest object id", func(t *testing.T) {
		remotes := fakeRemotes{remotes: []remote{
			{node(1), map[string]string{"refs/tags/v1": "fff"}},
			{node(2), map[string]string{"refs/tags/v1": "aaa"}},
		}}

		for i := 0; i < 20; i++ {
			tags, err := canonical.ResolveDoc(docWithRules(t, 1, "refs/tags/*"), remotes)
			require.NoError(t, err)
			require.Equal(t, canonical.Tags{"v1": "aaa"}, tags)
		}
	})

	t.Run("a node votes once", func(t *testing.T) {
		remotes := fakeRemotes{remotes: []remote{
			{node(1), map[string]string{"refs/tags/v1": "abc123"}},
			{node(1), map[string]string{"refs/tags/v1": "abc123"}},
		}}

		tags, err := canonical.ResolveDoc(docWithRules(t, 2, "refs/tags/v*"), remotes)
		require.NoError(t, err)
		require.Nil(t, tags)
	})

	t.Run("is idempotent", func(t *testing.T) {
		remotes := fakeRemotes{remotes: []remote{
			{node(1), map[string]string{"refs/tags/v1": "abc", "refs/tags/v2": "def", "refs/tags/v3": "123"}},
			{node(2), map[string]string{"refs/tags/v1": "abc", "refs/tags/v2": "def"}},
			{node(3), map[string]string{"refs/tags/v1": "abc", "refs/tags/v3": "456"}},
		}}
		doc := docWithRules(t, 2, "refs/tags/v*")

		first, err := canonical.ResolveDoc(doc, remotes)
		require.NoError(t, err)
		expected, err := json.Marshal(first)
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			tags, err := canonical.ResolveDoc(doc, remotes)
			require.NoError(t, err)
			out, err := json.Marshal(tags)
			require.NoError(t, err)
			require.Equal(t, string(expected), string(out))
		}
	})

	t.Run("never returns a tag below the threshold", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		oids := []string{"aaa", "bbb", "ccc"}
		names := []string{"v1", "v2", "v3", "v4"}

		for round := 0; round < 200; round++ {
			var remotes fakeRemotes
			voters := map[string]map[string]map[identity.NodeID]bool{}
			for n := 0; n < 1+rng.Intn(6); n++ {
				refs := map[string]string{}
				for _, name := range names {
					if rng.Intn(3) == 0 {
						continue
					}
					oid := oids[rng.Intn(len(oids))]
					refs["refs/tags/"+name] = oid
					if voters[name] == nil {
						voters[name] = map[string]map[identity.NodeID]bool{}
					}
					if voters[name][oid] == nil {
						voters[name][oid] = map[identity.NodeID]bool{}
					}
					voters[name][oid][node(n)] = true
				}
				remotes.remotes = append(remotes.remotes, remote{node(n), refs})
			}
			threshold := 1 + rng.Intn(4)

			tags, err := canonical.Resolve(canonical.Rules{"refs/tags/v*"}, threshold, remotes)
			require.NoError(t, err)
			if tags != nil {
				require.NotEmpty(t, tags)
			}
			for name, oid := range tags {
				require.GreaterOrEqual(t, len(voters[name][oid]), threshold)
			}
		}
	})

	t.Run("failure cases", func(t *testing.T) {
		t.Run("when a remote cannot be read", func(t *testing.T) {
			remotes := fakeRemotes{
				remotes: []remote{{node(1), map[string]string{"refs/tags/v1": "abc123"}}},
				err:     errors.New("some-error"),
			}

			_, err := canonical.ResolveDoc(docWithRules(t, 1, "refs/tags/v*"), remotes)
			require.ErrorContains(t, err, "some-error")
		})
	})
}
