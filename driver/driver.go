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

// Package driver defines the two boundaries an embedding compiler crosses
// with the engine (spec.md §6): the callback contract the compiler reports
// facts through during a single compile invocation, and the external
// lookup hooks the engine consults for classpath/library information the
// engine itself does not own.
package driver

import (
	"context"

	"github.com/go-incremental/incbuild/analysis"
	"github.com/go-incremental/incbuild/api"
	"github.com/go-incremental/incbuild/ids"
)

// Callback is what a compiler-driver implementation calls into while
// compiling one set of sources. Every method may be called concurrently
// from multiple compiler threads, except where noted; see
// package callback for the concurrency-safe implementation the cycle
// driver actually hands out.
type Callback interface {
	// StartSource is called exactly once per compiled source, before any
	// other fact about that source is reported.
	StartSource(src ids.SourceId)
	// ClassDependency records that fromClass depends on onClass under the
	// given edge context.
	ClassDependency(onClass, fromClass ids.ClassName, context analysis.EdgeContext)
	// BinaryDependency records a dependency discovered via a binary class
	// name rather than a source-level class name; the engine classifies
	// it as internal (same cycle), internal (another in-project
	// compiler's output), or external once the cycle resolves.
	BinaryDependency(classFilePath string, onBinaryName ids.BinaryClassName, fromClass ids.ClassName, fromSource ids.SourceId, context analysis.EdgeContext)
	// GeneratedNonLocalClass records one emitted, nameable class file.
	GeneratedNonLocalClass(src ids.SourceId, classFilePath string, binaryName ids.BinaryClassName, srcName ids.ClassName)
	// GeneratedLocalClass records one emitted class file with no stable
	// source-level name (an anonymous/local class).
	GeneratedLocalClass(src ids.SourceId, classFilePath string)
	// API is called once per top-level class or object definition.
	API(src ids.SourceId, classLike api.ClassDefinition)
	// UsedName records that className references name under the given
	// use-scopes.
	UsedName(className ids.ClassName, name string, scopes []api.UseScope)
	// MainClass records src's entry-point class, if any.
	MainClass(src ids.SourceId, className ids.ClassName)
	// Problem records one diagnostic.
	Problem(category, position, message string, severity analysis.Severity, reported bool)
	// DependencyPhaseCompleted is called once the compiler has reported
	// every dependency edge for this cycle.
	DependencyPhaseCompleted()
	// APIPhaseCompleted is called once the compiler has reported every
	// API definition for this cycle.
	APIPhaseCompleted()
	// ClassesInOutputJar returns every binary class name written to the
	// output jar this cycle, for the class-to-source bookkeeping the
	// driver performs once the cycle's compile step returns.
	ClassesInOutputJar() []ids.BinaryClassName
}

// CompileFunc is the embedding compiler's entry point: given the sources
// selected for one cycle, it must report every fact via cb and return.
// Returning an *errs.Cancellation signals cooperative cancellation; any
// other error is wrapped as an errs.CompilerFailure by the cycle driver.
type CompileFunc func(ctx context.Context, sources []ids.SourceId, cb Callback) error

// ExternalLookup is the set of hooks the engine consults for information
// it does not itself own: the classpath, another compiler's analysis, and
// the incremental/non-incremental veto.
type ExternalLookup interface {
	// LookupAnalyzedClass returns the current AnalyzedClass for an
	// external binary class name, if known.
	LookupAnalyzedClass(binaryName ids.BinaryClassName) (api.AnalyzedClass, bool)
	// LookupOnClasspath reports whether binaryName currently resolves
	// somewhere on the classpath.
	LookupOnClasspath(binaryName ids.BinaryClassName) bool
	// LookupAnalysis returns another in-project compiler's Analysis, for
	// binary names produced outside this compilation unit.
	LookupAnalysis(binaryName ids.BinaryClassName) (*analysis.Analysis, bool)
	// ChangedClasspathHash returns the classpath's current hash, and
	// whether it differs from the one recorded in the previous Analysis.
	ChangedClasspathHash() (hash string, changed bool)
	// ShouldDoIncrementalCompilation may veto incremental compilation for
	// a given set of next invalidations. Returning false makes the cycle
	// driver stop its loop after the current compile and commit; the
	// vetoed invalidations are not recompiled.
	ShouldDoIncrementalCompilation(nextInvalidations []ids.ClassName, current *analysis.Analysis) bool
}
