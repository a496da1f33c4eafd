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

// Package api models a compiled class or object's public surface well
// enough to hash it: a whole-API hash for change detection, an extra hash
// that additionally covers private members (the trait tie-break signal of
// spec.md §4.C), and per-exported-name hashes tagged by use-scope so the
// invalidator can propagate a name change only to the classes that
// actually reference that name.
package api

import (
	"hash/fnv"
	"sort"

	"github.com/go-incremental/incbuild/ids"
)

// UseScope is the syntactic role a name reference plays, per spec.md §3/§4.E.
type UseScope int

const (
	// Default is an ordinary unqualified reference.
	Default UseScope = iota
	// Implicit is a reference resolved via implicit/contextual lookup.
	Implicit
	// PatternTarget is a reference used as a pattern-match target (e.g. an
	// extractor in a case analysis).
	PatternTarget
)

// String implements fmt.Stringer.
func (s UseScope) String() string {
	switch s {
	case Default:
		return "Default"
	case Implicit:
		return "Implicit"
	case PatternTarget:
		return "PatternTarget"
	default:
		return "UseScope(?)"
	}
}

// Member is one definition (method, field, nested type, ...) belonging to
// a ClassDefinition.
type Member struct {
	// Name is the top-level definition name this member contributes to.
	Name string
	// Private members never contribute to APIHash or PerNameHashes; they
	// only affect ExtraHash.
	Private bool
	// Signature is a textual, order-independent summary of the member's
	// type/shape; two members with the same Name but different
	// Signatures are what makes a name's hash change.
	Signature string
	// Body is implementation payload (e.g. a method body) that never
	// contributes to any hash; Minimize strips it unless apiDebug is set.
	Body string
	// Scopes lists the UseScopes under which this member contributes to
	// its Name's per-name hash. A plain method/field contributes only
	// under Default; an implicit definition also contributes under
	// Implicit; an extractor contributes under PatternTarget. Defaults to
	// []UseScope{Default} when empty.
	Scopes []UseScope
}

func (m Member) scopes() []UseScope {
	if len(m.Scopes) == 0 {
		return []UseScope{Default}
	}
	return m.Scopes
}

// ClassDefinition is the subset of a compiled class/trait/object's shape
// the engine needs in order to compute its API hashes. It is supplied by
// the api(source, classLike) callback of spec.md §6.
type ClassDefinition struct {
	Name            ids.ClassName
	IsTrait         bool
	IsPackageObject bool
	IsSealed        bool
	HasMacro        bool
	Members         []Member
}

// NameHash is one per-name entry of spec.md §4.C: a hash over the members
// that contribute to Name under Scope.
type NameHash struct {
	Name  string
	Scope UseScope
	Hash  uint64
}

// AnalyzedClass is the API-model tuple of spec.md §3.
type AnalyzedClass struct {
	CompilationTimestamp int64
	Name                 ids.ClassName
	// Companion pairs a class-like and object-like definition under one
	// name; populated lazily by the caller that owns both halves (see
	// MergeCompanions), nil when this class has no companion.
	Companion       *AnalyzedClass
	APIHash         uint64
	ExtraHash       uint64
	PerNameHashes   []NameHash
	HasMacro        bool
	IsPackageObject bool
	IsSealed        bool
	Provenance      ids.SourceId
}

// Analyze computes the AnalyzedClass for def, stamped with the given
// compilation timestamp and provenance source.
func Analyze(def ClassDefinition, timestamp int64, provenance ids.SourceId) AnalyzedClass {
	return AnalyzedClass{
		CompilationTimestamp: timestamp,
		Name:                 def.Name,
		APIHash:              APIHash(def),
		ExtraHash:            ExtraHash(def),
		PerNameHashes:        PerNameHashes(def),
		HasMacro:             def.HasMacro,
		IsPackageObject:      def.IsPackageObject,
		IsSealed:             def.IsSealed,
		Provenance:           provenance,
	}
}

// APIHash hashes def's whole public API deterministically: every
// non-private member's (Name, Signature), combined order-independently so
// that member declaration order never affects the result.
func APIHash(def ClassDefinition) uint64 {
	return combineHashes(memberHashes(def, false))
}

// ExtraHash hashes def's whole API including private members. For traits
// this is the tie-break signal of spec.md §4.C: a change here with no
// change in APIHash means only a private member changed.
func ExtraHash(def ClassDefinition) uint64 {
	return combineHashes(memberHashes(def, true))
}

// PerNameHashes computes, for each top-level definition name, a hash over
// the non-private members that contribute to that name, tagged with every
// UseScope they contribute under.
func PerNameHashes(def ClassDefinition) []NameHash {
	type key struct {
		name  string
		scope UseScope
	}
	grouped := make(map[key][]uint64)
	for _, m := range def.Members {
		if m.Private {
			continue
		}
		h := hashString(m.Name + "\x00" + m.Signature)
		for _, sc := range m.scopes() {
			k := key{m.Name, sc}
			grouped[k] = append(grouped[k], h)
		}
	}

	out := make([]NameHash, 0, len(grouped))
	for k, hashes := range grouped {
		out = append(out, NameHash{Name: k.name, Scope: k.scope, Hash: combineUint64s(hashes)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Scope < out[j].Scope
	})
	return out
}

// Minimize strips the payload that contributes to no hash (member bodies,
// and, unless apiDebug is set, private member structure for non-trait
// classes) before the definition is stored, per spec.md §4.C. Traits
// always keep their private members since ExtraHash needs them.
func Minimize(def ClassDefinition, apiDebug bool) ClassDefinition {
	out := def
	out.Members = make([]Member, 0, len(def.Members))
	for _, m := range def.Members {
		if m.Private && !def.IsTrait && !apiDebug {
			continue
		}
		m.Body = ""
		out.Members = append(out.Members, m)
	}
	return out
}

// MergeCompanions merges a class-like AnalyzedClass and its companion
// object-like AnalyzedClass's per-name hash arrays by (name, scope), using
// a stable (order-independent) combinator, and links them via Companion.
// The companion name must already be encoded per ids.ClassName.Companion.
func MergeCompanions(classLike, objectLike AnalyzedClass) (merged AnalyzedClass, companion AnalyzedClass) {
	merged = classLike
	companion = objectLike

	merged.PerNameHashes = mergeNameHashes(classLike.PerNameHashes, objectLike.PerNameHashes)
	companion.PerNameHashes = merged.PerNameHashes

	merged.Companion = &companion
	companion.Companion = &merged
	return merged, companion
}

func mergeNameHashes(a, b []NameHash) []NameHash {
	type key struct {
		name  string
		scope UseScope
	}
	combined := make(map[key]uint64, len(a)+len(b))
	order := make([]key, 0, len(a)+len(b))
	add := func(nh NameHash) {
		k := key{nh.Name, nh.Scope}
		if existing, ok := combined[k]; ok {
			combined[k] = combineUint64s([]uint64{existing, nh.Hash})
			return
		}
		combined[k] = nh.Hash
		order = append(order, k)
	}
	for _, nh := range a {
		add(nh)
	}
	for _, nh := range b {
		add(nh)
	}

	out := make([]NameHash, 0, len(order))
	for _, k := range order {
		out = append(out, NameHash{Name: k.name, Scope: k.scope, Hash: combined[k]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Scope < out[j].Scope
	})
	return out
}

func memberHashes(def ClassDefinition, includePrivate bool) []uint64 {
	hashes := make([]uint64, 0, len(def.Members))
	for _, m := range def.Members {
		if m.Private && !includePrivate {
			continue
		}
		hashes = append(hashes, hashString(m.Name+"\x00"+m.Signature))
	}
	return hashes
}

// combineHashes combines member hashes order-independently (by summing
// each scrambled hash into a running accumulator), so that member
// declaration order never perturbs the result.
func combineHashes(hashes []uint64) uint64 {
	return combineUint64s(hashes)
}

func combineUint64s(hashes []uint64) uint64 {
	var acc uint64
	for _, h := range hashes {
		acc += scramble(h)
	}
	return acc
}

// scramble further mixes a hash before it is summed into an accumulator;
// summing rather than XOR-folding means two equal member hashes don't
// cancel out to zero.
func scramble(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
