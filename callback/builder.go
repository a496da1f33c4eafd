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

// Package callback implements the concurrency-safe collector the cycle
// driver hands to the embedding compiler for a single cycle: every
// mutating method may be called from any thread, insertions are
// idempotent, and GetOnce freezes the accumulated facts into an immutable
// analysis.Analysis exactly once (spec.md §5).
package callback

import (
	"sync"

	"github.com/go-incremental/incbuild/analysis"
	"github.com/go-incremental/incbuild/api"
	"github.com/go-incremental/incbuild/driver"
	"github.com/go-incremental/incbuild/errs"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/stamp"
)

// classDepRecord is a classDependency report, resolved to an owning
// source only once GetOnce knows every API report this cycle made.
type classDepRecord struct {
	edge analysis.DepEdge
}

// binaryDepRecord is a binaryDependency report pending classification
// once the cycle resolves which compiler produced which binary name.
type binaryDepRecord struct {
	onBinaryName ids.BinaryClassName
	fromClass    ids.ClassName
	fromSource   ids.SourceId
	context      analysis.EdgeContext
}

// Builder accumulates facts reported by a compiler driver during one
// cycle. The zero value is not usable; use NewBuilder. A Builder is safe
// for concurrent use by multiple goroutines until GetOnce is called.
type Builder struct {
	mu sync.Mutex

	started          map[ids.SourceId]struct{}
	perSource        map[ids.SourceId]*analysis.AddSourceParams
	classDeps        []classDepRecord
	binaryDeps       []binaryDepRecord
	pendingUsedNames []analysis.UsedName
	problems         []analysis.Problem
	classesInJar     []ids.BinaryClassName
	timestamp        int64
	sourceReader     stamp.SourceStampReader

	done bool
}

// NewBuilder returns a Builder ready to collect facts for one cycle.
// timestamp stamps every AnalyzedClass produced this cycle. sourceReader
// supplies each started source's current Stamp; it may be nil, in which
// case AddSource is called with a zero Stamp for every source.
func NewBuilder(timestamp int64, sourceReader stamp.SourceStampReader) *Builder {
	return &Builder{
		started:      make(map[ids.SourceId]struct{}),
		perSource:    make(map[ids.SourceId]*analysis.AddSourceParams),
		timestamp:    timestamp,
		sourceReader: sourceReader,
	}
}

var _ driver.Callback = (*Builder)(nil)

func (b *Builder) entryLocked(src ids.SourceId) *analysis.AddSourceParams {
	p, ok := b.perSource[src]
	if !ok {
		p = &analysis.AddSourceParams{}
		b.perSource[src] = p
	}
	return p
}

// StartSource implements driver.Callback. Idempotent: starting the same
// source twice has no additional effect.
func (b *Builder) StartSource(src ids.SourceId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started[src] = struct{}{}
	b.entryLocked(src)
}

// ClassDependency implements driver.Callback. Ownership (which source
// declared fromClass) and internal-vs-external classification are both
// resolved once GetOnce sees every api() report this cycle made.
func (b *Builder) ClassDependency(onClass, fromClass ids.ClassName, context analysis.EdgeContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.classDeps = append(b.classDeps, classDepRecord{edge: analysis.DepEdge{From: fromClass, To: onClass, Context: context}})
}

// BinaryDependency implements driver.Callback. Classification into
// internal-same-cycle / internal-other-compiler / external is deferred to
// GetOnce, once every started source (and therefore every class this
// cycle produces) is known.
func (b *Builder) BinaryDependency(_ string, onBinaryName ids.BinaryClassName, fromClass ids.ClassName, fromSource ids.SourceId, context analysis.EdgeContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.binaryDeps = append(b.binaryDeps, binaryDepRecord{
		onBinaryName: onBinaryName,
		fromClass:    fromClass,
		fromSource:   fromSource,
		context:      context,
	})
}

// GeneratedNonLocalClass implements driver.Callback.
func (b *Builder) GeneratedNonLocalClass(src ids.SourceId, classFilePath string, binaryName ids.BinaryClassName, srcName ids.ClassName) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.entryLocked(src)
	p.NonLocalProducts = append(p.NonLocalProducts, analysis.Product{
		ProductId:  ids.ProductId(classFilePath),
		ClassName:  srcName,
		BinaryName: binaryName,
	})
}

// GeneratedLocalClass implements driver.Callback.
func (b *Builder) GeneratedLocalClass(src ids.SourceId, classFilePath string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.entryLocked(src)
	p.LocalProducts = append(p.LocalProducts, ids.ProductId(classFilePath))
}

// API implements driver.Callback.
func (b *Builder) API(src ids.SourceId, classLike api.ClassDefinition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.entryLocked(src)
	p.AnalyzedClasses = append(p.AnalyzedClasses, api.Analyze(classLike, b.timestamp, src))
}

// UsedName implements driver.Callback. Like ClassDependency, ownership is
// resolved in GetOnce.
func (b *Builder) UsedName(className ids.ClassName, name string, scopes []api.UseScope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingUsedNames = append(b.pendingUsedNames, analysis.UsedName{ClassName: className, Name: name, Scopes: scopes})
}

// MainClass implements driver.Callback.
func (b *Builder) MainClass(src ids.SourceId, className ids.ClassName) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.entryLocked(src)
	p.Info.MainClass = className
	p.Info.HasMain = true
}

// Problem implements driver.Callback. The contract does not attribute a
// problem to a specific source, so problems are recorded once per cycle
// and distributed to every started source's SourceInfo in GetOnce.
func (b *Builder) Problem(category, position, message string, severity analysis.Severity, reported bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.problems = append(b.problems, analysis.Problem{
		Category: category, Position: position, Message: message, Severity: severity, Reported: reported,
	})
}

// DependencyPhaseCompleted implements driver.Callback.
func (b *Builder) DependencyPhaseCompleted() {}

// APIPhaseCompleted implements driver.Callback.
func (b *Builder) APIPhaseCompleted() {}

// ClassesInOutputJar implements driver.Callback.
func (b *Builder) ClassesInOutputJar() []ids.BinaryClassName {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ids.BinaryClassName{}, b.classesInJar...)
}

// NoteOutputJarClasses records the output jar's contents. It is not part
// of driver.Callback, so the cycle driver never calls it; a CompileFunc
// that knows its own packaging type-asserts the callback to *Builder and
// calls it before returning. ClassesInOutputJar is the query the driver
// issues afterward.
func (b *Builder) NoteOutputJarClasses(names []ids.BinaryClassName) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.classesInJar = append(b.classesInJar, names...)
}

// GetOnce finalizes the builder into an immutable Analysis. It must be
// called exactly once; a second call returns an errs.ContractViolation.
func (b *Builder) GetOnce() (*analysis.Analysis, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return nil, errs.NewContractViolation("GetOnce called twice on the same callback builder")
	}
	b.done = true

	owner := make(map[ids.ClassName]ids.SourceId)
	internal := make(map[ids.ClassName]struct{})
	for src, p := range b.perSource {
		for _, ac := range p.AnalyzedClasses {
			owner[ac.Name] = src
			internal[ac.Name] = struct{}{}
		}
	}
	resolveOwner := func(c ids.ClassName) (ids.SourceId, bool) {
		if src, ok := owner[c]; ok {
			return src, true
		}
		if len(b.started) == 1 {
			for src := range b.started {
				return src, true
			}
		}
		return "", false
	}

	for _, cd := range b.classDeps {
		src, ok := resolveOwner(cd.edge.From)
		if !ok {
			continue
		}
		p := b.entryLocked(src)
		if _, ok := internal[cd.edge.To]; ok {
			p.InternalDeps = append(p.InternalDeps, cd.edge)
		} else {
			p.ExternalDeps = append(p.ExternalDeps, cd.edge)
		}
	}

	for _, un := range b.pendingUsedNames {
		src, ok := resolveOwner(un.ClassName)
		if !ok {
			continue
		}
		p := b.entryLocked(src)
		p.UsedNames = append(p.UsedNames, un)
	}

	for _, bd := range b.binaryDeps {
		edge := analysis.DepEdge{From: bd.fromClass, To: ids.ClassName(bd.onBinaryName), Context: bd.context}
		p := b.entryLocked(bd.fromSource)
		if _, ok := internal[edge.To]; ok {
			p.InternalDeps = append(p.InternalDeps, edge)
		} else {
			p.ExternalDeps = append(p.ExternalDeps, edge)
		}
	}

	out := analysis.New()
	for src := range b.started {
		p := b.perSource[src]
		if p == nil {
			p = &analysis.AddSourceParams{}
		}
		if s, ok := b.readStamp(src); ok {
			p.Stamp = s
		}
		out = out.AddSource(src, *p)
	}

	if len(b.problems) > 0 {
		for src := range b.started {
			info := out.SourceInfos[src]
			info.Problems = append(info.Problems, b.problems...)
			out.SourceInfos[src] = info
		}
	}

	return out, nil
}

func (b *Builder) readStamp(src ids.SourceId) (stamp.Stamp, bool) {
	if b.sourceReader == nil {
		return stamp.Stamp{}, false
	}
	s, err := b.sourceReader.SourceStamp(src)
	if err != nil {
		return stamp.Stamp{}, false
	}
	return s, true
}
