// Copyright (c) 2026 The Incbuild Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package relation_test

import (
	"sort"
	"testing"

	"github.com/go-incremental/incbuild/relation"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sortedPairs(r *relation.Relation[string, string]) []relation.Pair[string, string] {
	ps := r.Pairs()
	sort.Slice(ps, func(i, j int) bool {
		return pairKey(ps[i]) < pairKey(ps[j])
	})
	return ps
}

func pairKey(p relation.Pair[string, string]) string {
	return p.Key + "\x00" + p.Value
}

func TestAddForwardReverse(t *testing.T) {
	t.Parallel()

	r := relation.New[string, string]()
	r = r.Add("a", "x", "y")
	r = r.Add("b", "y")

	require.ElementsMatch(t, []string{"x", "y"}, r.Forward("a"))
	require.ElementsMatch(t, []string{"y"}, r.Forward("b"))
	require.ElementsMatch(t, []string{"a", "b"}, r.Reverse("y"))
	require.ElementsMatch(t, []string{"a"}, r.Reverse("x"))
	require.Nil(t, r.Forward("missing"))
	require.Nil(t, r.Reverse("missing"))
}

func TestAddIsImmutable(t *testing.T) {
	t.Parallel()

	r1 := relation.New[string, string]()
	r2 := r1.Add("a", "x")

	require.Equal(t, 0, r1.Len())
	require.Equal(t, 1, r2.Len())
}

func TestRemoveClearsBothIndices(t *testing.T) {
	t.Parallel()

	r := relation.New[string, string]().Add("a", "x", "y").Add("b", "x")
	r = r.Remove("a")

	require.Nil(t, r.Forward("a"))
	require.ElementsMatch(t, []string{"b"}, r.Reverse("x"))
	require.Nil(t, r.Reverse("y"))
}

func TestRemoveAll(t *testing.T) {
	t.Parallel()

	r := relation.New[string, string]().Add("a", "x").Add("b", "y").Add("c", "z")
	r = r.RemoveAll([]string{"a", "b"})

	require.Nil(t, r.Forward("a"))
	require.Nil(t, r.Forward("b"))
	require.ElementsMatch(t, []string{"z"}, r.Forward("c"))
}

func TestMergeUnionsValues(t *testing.T) {
	t.Parallel()

	a := relation.New[string, string]().Add("k", "1", "2")
	b := relation.New[string, string]().Add("k", "2", "3")

	merged := a.Merge(b)
	require.ElementsMatch(t, []string{"1", "2", "3"}, merged.Forward("k"))
}

func TestEqualByContent(t *testing.T) {
	t.Parallel()

	a := relation.New[string, string]().Add("a", "x").Add("b", "y")
	b := relation.New[string, string]().Add("b", "y").Add("a", "x")

	require.True(t, a.Equal(b))

	c := b.Add("a", "z")
	require.False(t, a.Equal(c))
}

// TestAddThenRemoveEqualsOriginal checks that adding a key and then
// removing it again leaves the relation equal to the original.
func TestAddThenRemoveEqualsOriginal(t *testing.T) {
	t.Parallel()

	original := relation.New[string, string]().Add("untouched", "v")
	mutated := original.Add("new-key", "v1", "v2").Remove("new-key")

	require.True(t, original.Equal(mutated))
	if diff := cmp.Diff(sortedPairs(original), sortedPairs(mutated)); diff != "" {
		t.Fatalf("mismatch after add+remove round trip (-original +mutated):\n%s", diff)
	}
}

func TestFromPairsRoundTrip(t *testing.T) {
	t.Parallel()

	r := relation.New[string, string]().Add("a", "x", "y").Add("b", "x")
	rebuilt := relation.FromPairs(r.Pairs())

	require.True(t, r.Equal(rebuilt))
}

func TestContains(t *testing.T) {
	t.Parallel()

	r := relation.New[string, string]().Add("a", "x")
	require.True(t, r.Contains("a", "x"))
	require.False(t, r.Contains("a", "y"))
	require.False(t, r.Contains("b", "x"))
}
