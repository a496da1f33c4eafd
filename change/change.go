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

// Package change detects what moved between the previous Analysis and the
// current world (spec.md §4.D): which sources were added, removed, or
// changed; which products vanished; which library dependencies moved; and
// which external (classpath) APIs changed shape.
package change

import (
	"github.com/go-incremental/incbuild/analysis"
	"github.com/go-incremental/incbuild/api"
	"github.com/go-incremental/incbuild/config"
	"github.com/go-incremental/incbuild/driver"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/stamp"
)

// SourceChanges partitions the sources the caller asked to compile
// against the sources recorded in the previous Analysis.
type SourceChanges struct {
	Added      []ids.SourceId
	Removed    []ids.SourceId
	Changed    []ids.SourceId
	Unmodified []ids.SourceId
}

// All returns every source mentioned by sc, in no particular order.
func (sc SourceChanges) All() []ids.SourceId {
	out := make([]ids.SourceId, 0, len(sc.Added)+len(sc.Removed)+len(sc.Changed)+len(sc.Unmodified))
	out = append(out, sc.Added...)
	out = append(out, sc.Removed...)
	out = append(out, sc.Changed...)
	out = append(out, sc.Unmodified...)
	return out
}

// APIChange is one (previous, current) AnalyzedClass pair whose hashes
// differ; package invalidate classifies it into a specific kind.
type APIChange struct {
	ClassName ids.ClassName
	Previous  api.AnalyzedClass
	Current   api.AnalyzedClass
}

// InitialChanges is the detector's output, feeding the cycle driver's
// first invalidation pass.
type InitialChanges struct {
	Sources            SourceChanges
	RemovedProducts    []ids.ProductId
	ChangedLibraryDeps []ids.LibraryId
	ExternalAPIChanges []APIChange
}

// Detector computes InitialChanges given the previous Analysis, a set of
// stamp readers, and an external lookup collaborator.
type Detector struct {
	Stamps  stamp.Readers
	Lookup  driver.ExternalLookup
	Options config.Options
}

// Detect computes InitialChanges for currentSources against previous.
// previous may be nil (no prior Analysis: every source is Added).
func (d Detector) Detect(currentSources []ids.SourceId, previous *analysis.Analysis) InitialChanges {
	if previous == nil {
		previous = analysis.New()
	}

	sources := d.sourceChanges(currentSources, previous)
	removedProducts := d.removedProducts(previous)
	changedLibs := d.changedLibraryDeps(previous)
	externalChanges := d.externalAPIChanges(previous)

	return InitialChanges{
		Sources:            sources,
		RemovedProducts:    removedProducts,
		ChangedLibraryDeps: changedLibs,
		ExternalAPIChanges: externalChanges,
	}
}

func (d Detector) sourceChanges(currentSources []ids.SourceId, previous *analysis.Analysis) SourceChanges {
	currentSet := make(map[ids.SourceId]struct{}, len(currentSources))
	for _, s := range currentSources {
		currentSet[s] = struct{}{}
	}

	var sc SourceChanges
	for src := range previous.Stamps.Sources {
		if _, ok := currentSet[src]; !ok {
			sc.Removed = append(sc.Removed, src)
		}
	}

	for _, src := range currentSources {
		prevStamp, known := previous.Stamps.Sources[src]
		if !known {
			sc.Added = append(sc.Added, src)
			continue
		}
		cur, err := d.Stamps.Source.SourceStamp(src)
		if err != nil || !cur.Equal(prevStamp) {
			sc.Changed = append(sc.Changed, src)
			continue
		}
		sc.Unmodified = append(sc.Unmodified, src)
	}
	return sc
}

func (d Detector) removedProducts(previous *analysis.Analysis) []ids.ProductId {
	var removed []ids.ProductId
	for prod, prevStamp := range previous.Stamps.Products {
		cur, err := d.Stamps.Product.ProductStamp(prod)
		if err != nil || cur.IsZero() || !cur.Equal(prevStamp) {
			removed = append(removed, prod)
		}
	}
	return removed
}

// changedLibraryDeps implements spec.md §4.D's three-part library-change
// rule. With SkipClasspathLookup set, only same-path stamp comparison
// (rule ii) runs. Rule (iii) is simplified: shadowing is detected against
// products already recorded in
// previous (the previous cycle's own classes), since the sources being
// compiled this cycle have not produced anything yet.
func (d Detector) changedLibraryDeps(previous *analysis.Analysis) []ids.LibraryId {
	var changed []ids.LibraryId
	hashChanged := false
	if !d.Options.SkipClasspathLookup && d.Lookup != nil {
		_, hashChanged = d.Lookup.ChangedClasspathHash()
	}

	for lib, prevStamp := range previous.Stamps.Libraries {
		if d.Options.SkipClasspathLookup || d.Lookup == nil {
			cur, err := d.Stamps.Library.LibraryStamp(lib)
			if err != nil || !cur.Equal(prevStamp) {
				changed = append(changed, lib)
			}
			continue
		}

		if hashChanged {
			for _, bin := range previous.LibraryClassName.Forward(lib) {
				if !d.Lookup.LookupOnClasspath(bin) {
					changed = append(changed, lib)
					break
				}
			}
		}
		if containsLibrary(changed, lib) {
			continue
		}

		cur, err := d.Stamps.Library.LibraryStamp(lib)
		if err != nil || !cur.Equal(prevStamp) {
			changed = append(changed, lib)
			continue
		}

		for _, bin := range previous.LibraryClassName.Forward(lib) {
			if len(previous.ProductClassName.Reverse(bin)) > 0 {
				changed = append(changed, lib)
				break
			}
		}
	}
	return changed
}

func containsLibrary(libs []ids.LibraryId, lib ids.LibraryId) bool {
	for _, l := range libs {
		if l == lib {
			return true
		}
	}
	return false
}

// externalAPIChanges implements spec.md §4.D's last rule: every external
// class whose whole-API or extra hash differs from what the lookup
// reports now. If every resulting change fails the
// ShouldDoIncrementalCompilation veto individually, the whole set is
// cleared: the detector then reports no external API changes at all.
func (d Detector) externalAPIChanges(previous *analysis.Analysis) []APIChange {
	if d.Lookup == nil {
		return nil
	}
	var changes []APIChange
	for className, prevAC := range previous.APIs.External {
		binaryName := ids.BinaryClassName(className)
		curAC, _ := d.Lookup.LookupAnalyzedClass(binaryName)
		if curAC.APIHash != prevAC.APIHash || curAC.ExtraHash != prevAC.ExtraHash {
			changes = append(changes, APIChange{ClassName: className, Previous: prevAC, Current: curAC})
		}
	}
	if len(changes) == 0 {
		return nil
	}

	allVetoed := true
	for _, c := range changes {
		if d.Lookup.ShouldDoIncrementalCompilation([]ids.ClassName{c.ClassName}, previous) {
			allVetoed = false
			break
		}
	}
	if allVetoed {
		return nil
	}
	return changes
}
