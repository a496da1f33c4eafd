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

// Package cycle drives the top-level loop of spec.md §4.F: invalidate,
// map classes to sources, prune, compile, merge, detect API changes,
// repeat, until the cycle recompiles every source, runs dry, or is
// vetoed. It is the one component that owns a mutable Analysis value
// across many compile invocations, coordinating the change detector, the
// invalidator, the concurrent callback builder, and the Class-file
// Manager's commit/rollback scope.
package cycle

import (
	"context"
	"errors"
	"time"

	"github.com/go-incremental/incbuild/analysis"
	"github.com/go-incremental/incbuild/callback"
	"github.com/go-incremental/incbuild/change"
	"github.com/go-incremental/incbuild/classfile"
	"github.com/go-incremental/incbuild/config"
	"github.com/go-incremental/incbuild/driver"
	"github.com/go-incremental/incbuild/errs"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/invalidate"
	"github.com/go-incremental/incbuild/stamp"
	"github.com/go-incremental/incbuild/util"
)

// Trace receives progress events as the driver runs; the demo CLI renders
// these, and tests can substitute a recording Trace to assert on cycle
// behavior without parsing log output.
type Trace interface {
	Event(format string, args ...any)
}

// NoopTrace discards every event; the Driver's zero value uses it.
type NoopTrace struct{}

// Event implements Trace.
func (NoopTrace) Event(string, ...any) {}

// Driver owns the collaborators one call to Run needs: the embedding
// compiler's entry point, the external lookup hooks, the stamp providers,
// and the Class-file Manager scope.
type Driver struct {
	Compile    driver.CompileFunc
	Lookup     driver.ExternalLookup
	Stamps     stamp.Readers
	ClassFiles classfile.Manager
	Options    config.Options
	Trace      Trace
}

// Result is what Run returns: the resulting Analysis, and whether a
// compile actually ran to completion (false only on cooperative
// cancellation, per spec.md §7).
type Result struct {
	Analysis *analysis.Analysis
	Compiled bool
	Cycles   int
}

func (d Driver) trace(format string, args ...any) {
	if d.Trace == nil {
		return
	}
	d.Trace.Event(format, args...)
}

// Run executes the full cycle state machine of spec.md §4.F for sources
// against previous (nil means no prior Analysis: everything is Added).
// It acquires no extra resource beyond the Driver's own ClassFiles, which
// the caller must have constructed (acquired) before calling Run, and
// completes exactly once before returning, committing on every successful
// or dry-run exit and rolling back on cancellation or failure.
func (d Driver) Run(ctx context.Context, sources []ids.SourceId, previous *analysis.Analysis) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = d.ClassFiles.Complete(false)
			err = errs.NewContractViolation("cycle driver panicked: %v", r)
		}
	}()

	if previous == nil {
		previous = analysis.New()
	}

	detector := change.Detector{Stamps: d.Stamps, Lookup: d.Lookup, Options: d.Options}
	initial := detector.Detect(sources, previous)

	allSources := append([]ids.SourceId{}, sources...)
	current := previous

	invalidatedClasses, err := invalidate.Invalidator{Analysis: current, Options: d.Options}.Invalidate(initial.ExternalAPIChanges, 0)
	if err != nil {
		_ = d.ClassFiles.Complete(false)
		return nil, err
	}
	changedSources := append(append([]ids.SourceId{}, initial.Sources.Added...), initial.Sources.Changed...)
	librarySources := sourcesForLibraries(current, initial.ChangedLibraryDeps)
	removedProductSources := sourcesForProducts(current, initial.RemovedProducts)
	removedSources := initial.Sources.Removed

	cycleNum := 0
	for {
		if ctx.Err() != nil {
			_ = d.ClassFiles.Complete(false)
			return &Result{Analysis: previous, Compiled: false, Cycles: cycleNum}, nil
		}

		invalidator := invalidate.Invalidator{Analysis: current, Options: d.Options}
		recompileSources := unionSources(
			invalidator.MapToSources(invalidatedClasses, allSources),
			changedSources,
			librarySources,
			removedProductSources,
			removedSources,
		)
		if len(recompileSources) == 0 {
			d.trace("cycle %d: nothing left to recompile", cycleNum)
			break
		}

		beforeMerge := current
		pruned, err := d.prune(current, recompileSources)
		if err != nil {
			_ = d.ClassFiles.Complete(false)
			return nil, errs.NewContractViolation("pruning cycle %d: %v", cycleNum, err)
		}

		d.trace("cycle %d: compiling %d source(s)", cycleNum, len(recompileSources))
		fresh, outputJarCls, compileErr := d.compileOnce(ctx, recompileSources)
		if compileErr != nil {
			var cancellation *errs.Cancellation
			if errors.As(compileErr, &cancellation) {
				d.trace("cycle %d: cancelled (%s)", cycleNum, cancellation.Error())
				_ = d.ClassFiles.Complete(false)
				return &Result{Analysis: previous, Compiled: false, Cycles: cycleNum}, nil
			}
			_ = d.ClassFiles.Complete(false)
			return nil, &errs.CompilerFailure{Cause: compileErr}
		}

		current = pruned.Merge(fresh).RecordCompilation(analysis.Compilation{
			CycleNum:     cycleNum,
			Sources:      recompileSources,
			OutputJarCls: outputJarCls,
		})

		if sourceSetEqual(recompileSources, allSources) {
			d.trace("cycle %d: recompiled every source, done", cycleNum)
			break
		}

		recompiledClasses := util.NewSet[ids.ClassName]()
		for _, c := range invalidatedClasses.Slice() {
			recompiledClasses.Add(c)
		}
		for _, s := range changedSources {
			for _, c := range beforeMerge.Classes.Forward(s) {
				recompiledClasses.Add(c)
			}
			for _, c := range current.Classes.Forward(s) {
				recompiledClasses.Add(c)
			}
		}

		apiChanges := diffAPIs(beforeMerge, current, recompiledClasses.Slice())
		next, err := invalidate.Invalidator{Analysis: current, Options: d.Options}.Invalidate(apiChanges, cycleNum+1)
		if err != nil {
			_ = d.ClassFiles.Complete(false)
			return nil, err
		}

		if next.IsEmpty() && len(changedSources) == 0 {
			d.trace("cycle %d: no further invalidations, done", cycleNum)
			break
		}
		if d.Lookup != nil && !d.Lookup.ShouldDoIncrementalCompilation(next.Slice(), current) {
			d.trace("cycle %d: incremental compilation vetoed", cycleNum)
			break
		}

		invalidatedClasses = next
		changedSources = nil
		librarySources = nil
		removedProductSources = nil
		removedSources = nil
		cycleNum++
	}

	if err := d.ClassFiles.Complete(true); err != nil {
		return nil, err
	}
	return &Result{Analysis: current, Compiled: true, Cycles: cycleNum + 1}, nil
}

// prune deletes sources' previous products (via the Class-file Manager)
// and removes every fact keyed on them from current, per spec.md §4.F's
// "recompile" step (a).
func (d Driver) prune(current *analysis.Analysis, sources []ids.SourceId) (*analysis.Analysis, error) {
	var products []ids.ProductId
	for _, src := range sources {
		products = append(products, current.SrcProd.Forward(src)...)
	}
	if len(products) > 0 {
		if err := d.ClassFiles.Delete(products); err != nil {
			return nil, err
		}
	}
	return current.Remove(sources), nil
}

// compileOnce builds a fresh concurrent callback, invokes the compile
// function, and finalizes the callback into an immutable Analysis, along
// with whatever output-jar contents the compiler reported.
func (d Driver) compileOnce(ctx context.Context, sources []ids.SourceId) (*analysis.Analysis, []ids.BinaryClassName, error) {
	builder := callback.NewBuilder(time.Now().UnixNano(), d.Stamps.Source)
	if err := d.Compile(ctx, sources, builder); err != nil {
		return nil, nil, err
	}
	outputJarCls := builder.ClassesInOutputJar()
	fresh, err := builder.GetOnce()
	if err != nil {
		return nil, nil, err
	}
	return fresh, outputJarCls, nil
}

// diffAPIs compares each named class's AnalyzedClass between before and
// after, returning a change.APIChange for every one whose API or extra
// hash differs (or that appeared/disappeared).
func diffAPIs(before, after *analysis.Analysis, classNames []ids.ClassName) []change.APIChange {
	var out []change.APIChange
	for _, name := range classNames {
		prev, hadPrev := before.APIs.Internal[name]
		cur, hasCur := after.APIs.Internal[name]
		if !hadPrev && !hasCur {
			continue
		}
		if hadPrev && hasCur && prev.APIHash == cur.APIHash && prev.ExtraHash == cur.ExtraHash {
			continue
		}
		out = append(out, change.APIChange{ClassName: name, Previous: prev, Current: cur})
	}
	return out
}

// sourcesForLibraries maps changed library ids back to the sources that
// depend on them, so a library-only change still forces those sources to
// recompile even though no class-level invalidation names them.
func sourcesForLibraries(current *analysis.Analysis, libs []ids.LibraryId) []ids.SourceId {
	seen := util.NewSet[ids.SourceId]()
	for _, lib := range libs {
		for _, src := range current.LibraryDep.Reverse(lib) {
			seen.Add(src)
		}
	}
	return seen.Slice()
}

// sourcesForProducts maps removed products back to the sources that
// emitted them.
func sourcesForProducts(current *analysis.Analysis, products []ids.ProductId) []ids.SourceId {
	seen := util.NewSet[ids.SourceId]()
	for _, prod := range products {
		for _, src := range current.SrcProd.Reverse(prod) {
			seen.Add(src)
		}
	}
	return seen.Slice()
}

func unionSources(groups ...[]ids.SourceId) []ids.SourceId {
	seen := util.NewSet[ids.SourceId]()
	for _, g := range groups {
		for _, s := range g {
			seen.Add(s)
		}
	}
	return seen.Slice()
}

func sourceSetEqual(a, b []ids.SourceId) bool {
	if len(a) != len(b) {
		return false
	}
	set := util.NewSet[ids.SourceId]()
	for _, s := range a {
		set.Add(s)
	}
	for _, s := range b {
		if !set.Contains(s) {
			return false
		}
	}
	return true
}
