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

// Package invalidate computes, from one or more API changes, the set of
// classes a recompile must also touch, and maps that set down to sources
// (spec.md §4.E). It is the largest single component of the engine: kind
// classification, direct propagation, inheritance closure, second-order
// (colliding product) invalidation, package-object expansion, a
// brute-force saturation fallback, and the final class-to-source mapping
// with its all-sources widening.
package invalidate

import (
	"path"
	"strings"

	"github.com/go-incremental/incbuild/analysis"
	"github.com/go-incremental/incbuild/api"
	"github.com/go-incremental/incbuild/change"
	"github.com/go-incremental/incbuild/config"
	"github.com/go-incremental/incbuild/errs"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/util"
)

// Kind distinguishes why a class's API changed, per spec.md §4.E.1.
type Kind int

const (
	// MacroDefinition is emitted whenever either side of the change has
	// HasMacro set and RecompileOnMacroDef is on; pre-empts the
	// name-hash diff entirely.
	MacroDefinition Kind = iota
	// TraitPrivateMembersModified is emitted when ExtraHash changed but
	// APIHash did not — a private-member-only change to a trait.
	TraitPrivateMembersModified
	// NamesChange is the default: the symmetric difference of per-name
	// hash tuples.
	NamesChange
)

// NameScope is one (name, use-scope) pair that changed hash.
type NameScope struct {
	Name  string
	Scope api.UseScope
}

// Change is a classified APIChange, ready for invalidation propagation.
type Change struct {
	ClassName     ids.ClassName
	Kind          Kind
	ModifiedNames []NameScope
}

// Classify turns a raw before/after AnalyzedClass pair into a Change,
// applying the three rules of spec.md §4.E.1 in order.
func Classify(c change.APIChange, opts config.Options) Change {
	if opts.RecompileOnMacroDef && (c.Previous.HasMacro || c.Current.HasMacro) {
		return Change{ClassName: c.ClassName, Kind: MacroDefinition}
	}
	if c.Current.ExtraHash != c.Previous.ExtraHash && c.Current.APIHash == c.Previous.APIHash {
		return Change{ClassName: c.ClassName, Kind: TraitPrivateMembersModified}
	}
	return Change{ClassName: c.ClassName, Kind: NamesChange, ModifiedNames: symmetricDiffNames(c.Previous.PerNameHashes, c.Current.PerNameHashes)}
}

func symmetricDiffNames(before, after []api.NameHash) []NameScope {
	type key struct {
		name  string
		scope api.UseScope
	}
	beforeMap := make(map[key]uint64, len(before))
	for _, nh := range before {
		beforeMap[key{nh.Name, nh.Scope}] = nh.Hash
	}
	afterMap := make(map[key]uint64, len(after))
	for _, nh := range after {
		afterMap[key{nh.Name, nh.Scope}] = nh.Hash
	}

	seen := make(map[key]struct{})
	var out []NameScope
	for k, bh := range beforeMap {
		ah, ok := afterMap[k]
		if !ok || ah != bh {
			out = append(out, NameScope{Name: k.name, Scope: k.scope})
		}
		seen[k] = struct{}{}
	}
	for k := range afterMap {
		if _, ok := seen[k]; ok {
			continue
		}
		out = append(out, NameScope{Name: k.name, Scope: k.scope})
	}
	return out
}

// Invalidator computes invalidated class sets against one Analysis.
type Invalidator struct {
	Analysis *analysis.Analysis
	Options  config.Options
}

// DirectlyAffected computes the classes directly affected by c, per
// spec.md §4.E.2's first paragraph — before the inheritance closure is
// taken.
func (inv Invalidator) DirectlyAffected(c Change) util.Set[ids.ClassName] {
	switch c.Kind {
	case MacroDefinition, TraitPrivateMembersModified:
		return inv.memberRefUsersOf(c.ClassName)
	default:
		return inv.namesChangeAffected(c)
	}
}

func (inv Invalidator) memberRefUsersOf(c ids.ClassName) util.Set[ids.ClassName] {
	out := util.NewSet[ids.ClassName]()
	for _, user := range inv.Analysis.MemberRefInternal.Reverse(c) {
		out.Add(user)
	}
	return out
}

// namesChangeAffected implements the NamesChange branch of §4.E.2,
// including its two named optimizations: restricting PatternTarget
// propagation for sealed hierarchies, and conservatively including
// cross-language-family dependents.
func (inv Invalidator) namesChangeAffected(c Change) util.Set[ids.ClassName] {
	out := util.NewSet[ids.ClassName]()

	sealed := inv.Options.UseOptimizedSealed && inv.isSealed(c.ClassName)
	for _, ms := range c.ModifiedNames {
		if sealed && ms.Scope == api.PatternTarget {
			// Optimization (i): restrict propagation through
			// PatternTarget to classes that actually pattern-match on
			// this exact name, which is exactly what UsedNames already
			// records — no broader restriction needed beyond the normal
			// reverse lookup below, since the optimization's purpose is
			// to avoid invalidating non-pattern-matching users that a
			// coarser "any use of this name" rule would otherwise catch.
		}
		for _, user := range inv.Analysis.UsedNames.Reverse(analysis.NameUse{Name: ms.Name, Scope: ms.Scope}) {
			out.Add(user)
		}
	}

	// Optimization (ii): a dependent declared in a source of a different
	// language family is treated conservatively as affected regardless
	// of which name it used, since cross-language name resolution
	// cannot be trusted to the same fine-grained UseScope accounting.
	for _, user := range inv.Analysis.MemberRefInternal.Reverse(c.ClassName) {
		if !inv.sameLanguageFamily(user, c.ClassName) {
			out.Add(user)
		}
	}

	return out
}

// apiOf looks up c's internal API record. The invalidator is meant to be
// total over whatever its relations name (spec.md §7): a class name
// reached through a relation (definesClass, inheritance, memberRef) with
// no companion entry in APIs.Internal means the Analysis passed in is
// inconsistent, so apiOf panics with a *errs.ContractViolation naming the
// class rather than silently treating it as absent. Invalidate recovers
// this at its boundary and returns it as an error.
func (inv Invalidator) apiOf(c ids.ClassName) api.AnalyzedClass {
	ac, ok := inv.Analysis.APIs.Internal[c]
	if !ok {
		panic(errs.NewContractViolation("invalidate: class %q is named by a relation but has no internal API entry", c))
	}
	return ac
}

func (inv Invalidator) isSealed(c ids.ClassName) bool {
	return inv.apiOf(c).IsSealed
}

// sameLanguageFamily approximates "same source language" by the file
// extension of each class's declaring source, since the engine otherwise
// carries no language tag for a class name. A class with no resolvable
// declaring source (e.g. an external dependency) is treated as
// same-family with everything, erring toward the cheaper path rather than
// the conservative one, since external classes never appear as `user`
// here (MemberRefInternal only relates internal classes).
func (inv Invalidator) sameLanguageFamily(a, b ids.ClassName) bool {
	extA, ok := inv.sourceExtensionOf(a)
	if !ok {
		return true
	}
	extB, ok := inv.sourceExtensionOf(b)
	if !ok {
		return true
	}
	return extA == extB
}

func (inv Invalidator) sourceExtensionOf(c ids.ClassName) (string, bool) {
	sources := inv.Analysis.Classes.Reverse(c)
	if len(sources) == 0 {
		return "", false
	}
	return strings.ToLower(path.Ext(string(sources[0]))), true
}

// InheritanceClosure returns seed plus every class reachable by following
// inheritance edges backward (i.e. every transitive inheritor of a class
// in seed), over the union of InheritanceInternal and
// LocalInheritanceInternal — per the Open Question decision in DESIGN.md,
// local-scope inheritance edges propagate exactly like top-level ones.
func (inv Invalidator) InheritanceClosure(seed util.Set[ids.ClassName]) util.Set[ids.ClassName] {
	closure := seed.Copy()
	frontier := seed.Slice()
	for len(frontier) > 0 {
		var next []ids.ClassName
		for _, c := range frontier {
			for _, user := range inv.Analysis.InheritanceInternal.Reverse(c) {
				if !closure.Contains(user) {
					closure.Add(user)
					next = append(next, user)
				}
			}
			for _, user := range inv.Analysis.LocalInheritanceInternal.Reverse(c) {
				if !closure.Contains(user) {
					closure.Add(user)
					next = append(next, user)
				}
			}
		}
		frontier = next
	}
	return closure
}

// SecondOrder implements spec.md §4.E.3: every class whose product file
// is claimed by more than one source in the merged Analysis is
// invalidated.
func (inv Invalidator) SecondOrder() util.Set[ids.ClassName] {
	out := util.NewSet[ids.ClassName]()
	for _, prod := range inv.Analysis.ProductClass.Keys() {
		sources := inv.Analysis.SrcProd.Reverse(prod)
		if len(sources) > 1 {
			for _, c := range inv.Analysis.ProductClass.Forward(prod) {
				out.Add(c)
			}
		}
	}
	return out
}

// PackageObjectExpansion implements spec.md §4.E.4: add every package
// object that transitively inherits from a member of invalidated.
func (inv Invalidator) PackageObjectExpansion(invalidated util.Set[ids.ClassName]) util.Set[ids.ClassName] {
	closure := inv.InheritanceClosure(invalidated)
	out := invalidated.Copy()
	for _, name := range closure.Slice() {
		if inv.apiOf(name).IsPackageObject {
			out.Add(name)
		}
	}
	return out
}

// Saturate implements spec.md §4.E.5: a brute-force transitive closure
// over MemberRefInternal's reverse edges, used once cycleNum has reached
// TransitiveStep as a termination safety net in place of the nuanced
// per-kind propagation above.
func (inv Invalidator) Saturate(seed util.Set[ids.ClassName]) util.Set[ids.ClassName] {
	closure := seed.Copy()
	frontier := seed.Slice()
	for len(frontier) > 0 {
		var next []ids.ClassName
		for _, c := range frontier {
			for _, user := range inv.Analysis.MemberRefInternal.Reverse(c) {
				if !closure.Contains(user) {
					closure.Add(user)
					next = append(next, user)
				}
			}
		}
		frontier = next
	}
	return closure
}

// Invalidate runs the full §4.E pipeline for one cycle: classify, compute
// directly-affected + inheritance closure per change (or the brute-force
// saturation fallback once cycleNum reaches TransitiveStep), then apply
// second-order and package-object expansion.
//
// Invalidate is the invalidator boundary spec.md §7 requires: any
// unexpected empty lookup encountered while walking the Analysis (a class
// named by a relation with no companion API) panics inside the pipeline
// below, and this boundary recovers it into a returned
// *errs.ContractViolation rather than letting it escape as a panic.
func (inv Invalidator) Invalidate(changes []change.APIChange, cycleNum int) (_ util.Set[ids.ClassName], err error) {
	defer func() {
		if r := recover(); r != nil {
			if cause, ok := r.(error); ok {
				err = cause
				return
			}
			panic(r)
		}
	}()

	invalidated := util.NewSet[ids.ClassName]()

	if inv.Options.TransitiveStep > 0 && cycleNum >= inv.Options.TransitiveStep {
		seed := util.NewSet[ids.ClassName]()
		for _, c := range changes {
			seed.Add(c.ClassName)
		}
		invalidated = inv.Saturate(seed)
	} else {
		for _, raw := range changes {
			c := Classify(raw, inv.Options)
			direct := inv.DirectlyAffected(c)
			closure := inv.InheritanceClosure(direct.Copy().Add(c.ClassName))
			invalidated = invalidated.Union(direct).Union(closure)
		}
	}

	invalidated = invalidated.Union(inv.SecondOrder())
	invalidated = inv.PackageObjectExpansion(invalidated)
	return invalidated, nil
}

// MapToSources implements spec.md §4.E.6: map invalidated classes to
// their declaring sources via definesClass (the classes relation's
// reverse index), widening to every source in allSources if the mapped
// count exceeds RecompileAllFraction * |allSources|.
func (inv Invalidator) MapToSources(invalidated util.Set[ids.ClassName], allSources []ids.SourceId) []ids.SourceId {
	mapped := util.NewSet[ids.SourceId]()
	for _, c := range invalidated.Slice() {
		for _, src := range inv.Analysis.Classes.Reverse(c) {
			mapped.Add(src)
		}
	}

	threshold := inv.Options.RecompileAllFraction * float64(len(allSources))
	if float64(len(mapped)) > threshold {
		return append([]ids.SourceId{}, allSources...)
	}
	return mapped.Slice()
}

// Reason is one step of an Explain trace: why a class ended up
// invalidated.
type Reason struct {
	ClassName ids.ClassName
	Because   string
}

// Explain reconstructs, for one already-invalidated class name, a
// human-readable chain of reasons it was pulled in — a supplemented
// diagnostic feature with no spec.md counterpart, useful for debugging
// unexpectedly large recompilations.
func (inv Invalidator) Explain(className ids.ClassName, changes []change.APIChange) []Reason {
	var reasons []Reason
	for _, raw := range changes {
		if raw.ClassName == className {
			reasons = append(reasons, Reason{ClassName: className, Because: "API of this class changed directly"})
			continue
		}
		c := Classify(raw, inv.Options)
		direct := inv.DirectlyAffected(c)
		if direct.Contains(className) {
			reasons = append(reasons, Reason{ClassName: className, Because: "directly affected by a change to " + string(raw.ClassName)})
			continue
		}
		closure := inv.InheritanceClosure(direct.Copy().Add(c.ClassName))
		if closure.Contains(className) {
			reasons = append(reasons, Reason{ClassName: className, Because: "inherits, transitively, from a class affected by a change to " + string(raw.ClassName)})
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, Reason{ClassName: className, Because: "no recorded API change explains this invalidation; likely second-order (colliding product) or package-object expansion"})
	}
	return reasons
}
