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

// Package analysis aggregates the relations, APIs, stamps, and
// compilation metadata of one compilation outcome into a single immutable
// value, as specified in spec.md §3/§4.B. An Analysis is created empty,
// progressively populated one source at a time during a compile round,
// and merged with a pruned previous Analysis at the end of a cycle.
package analysis

import (
	"reflect"

	"github.com/go-incremental/incbuild/api"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/relation"
	"github.com/go-incremental/incbuild/stamp"
)

// EdgeContext classifies a classDependency/binaryDependency edge, matching
// the context enum of the compiler-driver callback in spec.md §6.
type EdgeContext int

const (
	// MemberRef is an ordinary "A mentions name B" dependency.
	MemberRef EdgeContext = iota
	// Inheritance is "A has B in a parent position" at the top level.
	Inheritance
	// LocalInheritance is an Inheritance edge originating inside a local
	// (non-top-level) scope.
	LocalInheritance
)

// DepEdge is one class-to-class dependency edge reported by the compiler
// driver via classDependency.
type DepEdge struct {
	From    ids.ClassName
	To      ids.ClassName
	Context EdgeContext
}

// NameUse is one (name, use-scope) pair a class references, the value side
// of the usedNames relation (spec.md §3 relation #11).
type NameUse struct {
	Name  string
	Scope api.UseScope
}

// Product is one emitted, non-local class file, as reported by
// generatedNonLocalClass.
type Product struct {
	ProductId ids.ProductId
	ClassName ids.ClassName
	BinaryName ids.BinaryClassName
}

// Problem is one diagnostic reported by the compiler driver's `problem`
// callback; stored verbatim in SourceInfo, never interpreted by the
// engine itself (producing diagnostics for the user is a Non-goal).
type Problem struct {
	Category string
	Position string
	Message  string
	Severity Severity
	Reported bool
}

// Severity mirrors the three levels a compiler driver typically reports.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

// SourceInfo is the per-source metadata recorded alongside the dependency
// relations: the source's reported problems and, if any, its main class.
type SourceInfo struct {
	Problems  []Problem
	MainClass ids.ClassName
	HasMain   bool
}

// Compilation is one entry of the compilations log: a record of a single
// compile invocation that contributed to this Analysis.
type Compilation struct {
	CycleNum     int
	Sources      []ids.SourceId
	OutputJarCls []ids.BinaryClassName
}

// APIs bundles the internal (this-project) and external (classpath)
// AnalyzedClass maps.
type APIs struct {
	Internal map[ids.ClassName]api.AnalyzedClass
	External map[ids.ClassName]api.AnalyzedClass
}

func newAPIs() APIs {
	return APIs{Internal: make(map[ids.ClassName]api.AnalyzedClass), External: make(map[ids.ClassName]api.AnalyzedClass)}
}

func (a APIs) clone() APIs {
	out := newAPIs()
	for k, v := range a.Internal {
		out.Internal[k] = v
	}
	for k, v := range a.External {
		out.External[k] = v
	}
	return out
}

// Stamps bundles last-observed fingerprints for sources, products, and
// libraries. AddSource records only the source stamp, and only when it is
// non-zero; nothing in this package fills Products or Libraries, so they
// hold only the stamps a caller stores there directly.
type Stamps struct {
	Sources   map[ids.SourceId]stamp.Stamp
	Products  map[ids.ProductId]stamp.Stamp
	Libraries map[ids.LibraryId]stamp.Stamp
}

func newStamps() Stamps {
	return Stamps{
		Sources:   make(map[ids.SourceId]stamp.Stamp),
		Products:  make(map[ids.ProductId]stamp.Stamp),
		Libraries: make(map[ids.LibraryId]stamp.Stamp),
	}
}

func (s Stamps) clone() Stamps {
	out := newStamps()
	for k, v := range s.Sources {
		out.Sources[k] = v
	}
	for k, v := range s.Products {
		out.Products[k] = v
	}
	for k, v := range s.Libraries {
		out.Libraries[k] = v
	}
	return out
}

// Analysis is the immutable record of spec.md §3: relations + APIs +
// stamps + per-source metadata + compilation log. The zero value is not
// usable; use New.
type Analysis struct {
	SrcProd          *relation.Relation[ids.SourceId, ids.ProductId]
	LibraryDep       *relation.Relation[ids.SourceId, ids.LibraryId]
	LibraryClassName *relation.Relation[ids.LibraryId, ids.BinaryClassName]
	Classes          *relation.Relation[ids.SourceId, ids.ClassName]
	ProductClassName *relation.Relation[ids.ClassName, ids.BinaryClassName]
	// ProductClass maps each emitted product back to the class name it
	// holds, so that a product-file collision (two sources claiming the
	// same path) can be resolved back to the colliding class names (§4.E.3).
	ProductClass *relation.Relation[ids.ProductId, ids.ClassName]

	MemberRefInternal *relation.Relation[ids.ClassName, ids.ClassName]
	MemberRefExternal *relation.Relation[ids.ClassName, ids.ClassName]

	InheritanceInternal *relation.Relation[ids.ClassName, ids.ClassName]
	InheritanceExternal *relation.Relation[ids.ClassName, ids.ClassName]

	LocalInheritanceInternal *relation.Relation[ids.ClassName, ids.ClassName]
	LocalInheritanceExternal *relation.Relation[ids.ClassName, ids.ClassName]

	UsedNames       *relation.Relation[ids.ClassName, NameUse]
	DeclaredClasses *relation.Relation[ids.SourceId, ids.ClassName]

	APIs        APIs
	Stamps      Stamps
	SourceInfos map[ids.SourceId]SourceInfo
	Compilations []Compilation
}

// New returns a new, empty Analysis.
func New() *Analysis {
	return &Analysis{
		SrcProd:                  relation.New[ids.SourceId, ids.ProductId](),
		LibraryDep:               relation.New[ids.SourceId, ids.LibraryId](),
		LibraryClassName:         relation.New[ids.LibraryId, ids.BinaryClassName](),
		Classes:                  relation.New[ids.SourceId, ids.ClassName](),
		ProductClassName:         relation.New[ids.ClassName, ids.BinaryClassName](),
		ProductClass:             relation.New[ids.ProductId, ids.ClassName](),
		MemberRefInternal:        relation.New[ids.ClassName, ids.ClassName](),
		MemberRefExternal:        relation.New[ids.ClassName, ids.ClassName](),
		InheritanceInternal:      relation.New[ids.ClassName, ids.ClassName](),
		InheritanceExternal:      relation.New[ids.ClassName, ids.ClassName](),
		LocalInheritanceInternal: relation.New[ids.ClassName, ids.ClassName](),
		LocalInheritanceExternal: relation.New[ids.ClassName, ids.ClassName](),
		UsedNames:                relation.New[ids.ClassName, NameUse](),
		DeclaredClasses:          relation.New[ids.SourceId, ids.ClassName](),
		APIs:                     newAPIs(),
		Stamps:                   newStamps(),
		SourceInfos:              make(map[ids.SourceId]SourceInfo),
	}
}

// AddSourceParams bundles everything addSource needs to know about one
// newly compiled source, matching the callback facts of spec.md §6.
type AddSourceParams struct {
	AnalyzedClasses  []api.AnalyzedClass
	Stamp            stamp.Stamp
	Info             SourceInfo
	NonLocalProducts []Product
	LocalProducts    []ids.ProductId
	InternalDeps     []DepEdge
	ExternalDeps     []DepEdge
	UsedNames        []UsedName
	LibraryDeps      []ids.LibraryId
	// CheckAbsolute is accepted for interface parity with the original
	// implementation's addSource signature but is an unused no-op per
	// spec.md §9's Open Question (no conformance test exercises it).
	CheckAbsolute bool
}

// UsedName is one usedName callback report: className references name
// under one or more use-scopes.
type UsedName struct {
	ClassName ids.ClassName
	Name      string
	Scopes    []api.UseScope
}

// AddSource returns a new Analysis equal to a with every relation updated
// to reflect one newly compiled source, per spec.md §4.B.
func (a *Analysis) AddSource(src ids.SourceId, p AddSourceParams) *Analysis {
	out := a.clone()

	allProducts := make([]ids.ProductId, 0, len(p.NonLocalProducts)+len(p.LocalProducts))
	for _, prod := range p.NonLocalProducts {
		allProducts = append(allProducts, prod.ProductId)
		out.Classes = out.Classes.Add(src, prod.ClassName)
		out.ProductClassName = out.ProductClassName.Add(prod.ClassName, prod.BinaryName)
		out.ProductClass = out.ProductClass.Add(prod.ProductId, prod.ClassName)
	}
	allProducts = append(allProducts, p.LocalProducts...)
	out.SrcProd = out.SrcProd.Add(src, allProducts...)

	for _, lib := range p.LibraryDeps {
		out.LibraryDep = out.LibraryDep.Add(src, lib)
	}

	declared := make([]ids.ClassName, 0, len(p.InternalDeps)+len(p.ExternalDeps))
	for _, e := range p.InternalDeps {
		declared = append(declared, e.From)
		out.MemberRefInternal = out.MemberRefInternal.Add(e.From, e.To)
		switch e.Context {
		case Inheritance:
			out.InheritanceInternal = out.InheritanceInternal.Add(e.From, e.To)
		case LocalInheritance:
			out.LocalInheritanceInternal = out.LocalInheritanceInternal.Add(e.From, e.To)
		}
	}
	for _, e := range p.ExternalDeps {
		declared = append(declared, e.From)
		out.MemberRefExternal = out.MemberRefExternal.Add(e.From, e.To)
		switch e.Context {
		case Inheritance:
			out.InheritanceExternal = out.InheritanceExternal.Add(e.From, e.To)
		case LocalInheritance:
			out.LocalInheritanceExternal = out.LocalInheritanceExternal.Add(e.From, e.To)
		}
	}
	if len(declared) > 0 {
		out.DeclaredClasses = out.DeclaredClasses.Add(src, declared...)
	}

	for _, u := range p.UsedNames {
		for _, sc := range u.Scopes {
			out.UsedNames = out.UsedNames.Add(u.ClassName, NameUse{Name: u.Name, Scope: sc})
		}
	}

	for _, ac := range p.AnalyzedClasses {
		out.APIs.Internal[ac.Name] = ac
	}

	if !p.Stamp.IsZero() {
		out.Stamps.Sources[src] = p.Stamp
	}
	out.SourceInfos[src] = p.Info

	return out
}

// RecordCompilation returns a new Analysis equal to a with c appended to
// its compilations log, used by the cycle driver to record one compile
// invocation per pass through the loop.
func (a *Analysis) RecordCompilation(c Compilation) *Analysis {
	out := a.clone()
	out.Compilations = append(out.Compilations, c)
	return out
}

// WithLibraryClassNames returns a new Analysis with lib's set of binary
// class names replaced by names. Library classpath contents are rescanned
// independently of source compilation, so this is a separate entry point
// from AddSource.
func (a *Analysis) WithLibraryClassNames(lib ids.LibraryId, names []ids.BinaryClassName) *Analysis {
	out := a.clone()
	out.LibraryClassName = out.LibraryClassName.Remove(lib).Add(lib, names...)
	return out
}

// Remove returns a new Analysis equal to a with every fact keyed on one of
// srcs, or on one of their declared classes, removed (spec.md §3's "--"
// operator and its removal invariant).
func (a *Analysis) Remove(srcs []ids.SourceId) *Analysis {
	out := a.clone()

	classNames := make([]ids.ClassName, 0)
	seen := make(map[ids.ClassName]struct{})
	addClass := func(c ids.ClassName) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		classNames = append(classNames, c)
	}
	for _, src := range srcs {
		for _, c := range out.Classes.Forward(src) {
			addClass(c)
		}
		for _, c := range out.DeclaredClasses.Forward(src) {
			addClass(c)
		}
	}

	var removedProducts []ids.ProductId
	for _, src := range srcs {
		for _, prodID := range out.SrcProd.Forward(src) {
			delete(out.Stamps.Products, prodID)
			removedProducts = append(removedProducts, prodID)
		}
	}

	out.SrcProd = out.SrcProd.RemoveAll(srcs)
	out.LibraryDep = out.LibraryDep.RemoveAll(srcs)
	out.Classes = out.Classes.RemoveAll(srcs)
	out.DeclaredClasses = out.DeclaredClasses.RemoveAll(srcs)

	out.ProductClass = out.ProductClass.RemoveAll(removedProducts)
	out.ProductClassName = out.ProductClassName.RemoveAll(classNames)
	out.MemberRefInternal = removeEndpoints(out.MemberRefInternal, classNames)
	out.MemberRefExternal = removeEndpoints(out.MemberRefExternal, classNames)
	out.InheritanceInternal = removeEndpoints(out.InheritanceInternal, classNames)
	out.InheritanceExternal = removeEndpoints(out.InheritanceExternal, classNames)
	out.LocalInheritanceInternal = removeEndpoints(out.LocalInheritanceInternal, classNames)
	out.LocalInheritanceExternal = removeEndpoints(out.LocalInheritanceExternal, classNames)
	out.UsedNames = out.UsedNames.RemoveAll(classNames)

	for _, c := range classNames {
		delete(out.APIs.Internal, c)
	}
	for _, src := range srcs {
		delete(out.SourceInfos, src)
		delete(out.Stamps.Sources, src)
	}

	return out
}

// removeEndpoints removes classNames as keys and, since a class-name
// relation's key and value types coincide, also as values — an edge is
// gone if either endpoint is gone.
func removeEndpoints(r *relation.Relation[ids.ClassName, ids.ClassName], classNames []ids.ClassName) *relation.Relation[ids.ClassName, ids.ClassName] {
	r = r.RemoveAll(classNames)
	pairs := r.Pairs()
	keep := make([]relation.Pair[ids.ClassName, ids.ClassName], 0, len(pairs))
	removedSet := make(map[ids.ClassName]struct{}, len(classNames))
	for _, c := range classNames {
		removedSet[c] = struct{}{}
	}
	for _, p := range pairs {
		if _, gone := removedSet[p.Value]; gone {
			continue
		}
		keep = append(keep, p)
	}
	return relation.FromPairs(keep)
}

// Merge returns a new Analysis that is the union of a and other ("++"):
// every relation, API, stamp, and source-info map is unioned, with other
// taking precedence on overlapping keys (the expected case: other is the
// freshly compiled Analysis being merged atop a pruned previous one).
func (a *Analysis) Merge(other *Analysis) *Analysis {
	if other == nil {
		return a.clone()
	}
	out := &Analysis{
		SrcProd:                  a.SrcProd.Merge(other.SrcProd),
		LibraryDep:               a.LibraryDep.Merge(other.LibraryDep),
		LibraryClassName:         a.LibraryClassName.Merge(other.LibraryClassName),
		Classes:                  a.Classes.Merge(other.Classes),
		ProductClassName:         a.ProductClassName.Merge(other.ProductClassName),
		ProductClass:             a.ProductClass.Merge(other.ProductClass),
		MemberRefInternal:        a.MemberRefInternal.Merge(other.MemberRefInternal),
		MemberRefExternal:        a.MemberRefExternal.Merge(other.MemberRefExternal),
		InheritanceInternal:      a.InheritanceInternal.Merge(other.InheritanceInternal),
		InheritanceExternal:      a.InheritanceExternal.Merge(other.InheritanceExternal),
		LocalInheritanceInternal: a.LocalInheritanceInternal.Merge(other.LocalInheritanceInternal),
		LocalInheritanceExternal: a.LocalInheritanceExternal.Merge(other.LocalInheritanceExternal),
		UsedNames:                a.UsedNames.Merge(other.UsedNames),
		DeclaredClasses:          a.DeclaredClasses.Merge(other.DeclaredClasses),
		APIs:                     a.APIs.clone(),
		Stamps:                   a.Stamps.clone(),
		SourceInfos:              make(map[ids.SourceId]SourceInfo, len(a.SourceInfos)+len(other.SourceInfos)),
		Compilations:             append(append([]Compilation{}, a.Compilations...), other.Compilations...),
	}
	for k, v := range a.SourceInfos {
		out.SourceInfos[k] = v
	}
	for k, v := range other.APIs.Internal {
		out.APIs.Internal[k] = v
	}
	for k, v := range other.APIs.External {
		out.APIs.External[k] = v
	}
	for k, v := range other.Stamps.Sources {
		out.Stamps.Sources[k] = v
	}
	for k, v := range other.Stamps.Products {
		out.Stamps.Products[k] = v
	}
	for k, v := range other.Stamps.Libraries {
		out.Stamps.Libraries[k] = v
	}
	for k, v := range other.SourceInfos {
		out.SourceInfos[k] = v
	}
	return out
}

// Equal reports whether a and other describe the same facts: every
// relation by content, every API/stamp/source-info map by content, and the
// compilations log by content (order-sensitive, since it's a log).
func (a *Analysis) Equal(other *Analysis) bool {
	if other == nil {
		return false
	}
	if !a.SrcProd.Equal(other.SrcProd) ||
		!a.LibraryDep.Equal(other.LibraryDep) ||
		!a.LibraryClassName.Equal(other.LibraryClassName) ||
		!a.Classes.Equal(other.Classes) ||
		!a.ProductClassName.Equal(other.ProductClassName) ||
		!a.ProductClass.Equal(other.ProductClass) ||
		!a.MemberRefInternal.Equal(other.MemberRefInternal) ||
		!a.MemberRefExternal.Equal(other.MemberRefExternal) ||
		!a.InheritanceInternal.Equal(other.InheritanceInternal) ||
		!a.InheritanceExternal.Equal(other.InheritanceExternal) ||
		!a.LocalInheritanceInternal.Equal(other.LocalInheritanceInternal) ||
		!a.LocalInheritanceExternal.Equal(other.LocalInheritanceExternal) ||
		!a.UsedNames.Equal(other.UsedNames) ||
		!a.DeclaredClasses.Equal(other.DeclaredClasses) {
		return false
	}
	if !reflect.DeepEqual(a.APIs, other.APIs) {
		return false
	}
	if !reflect.DeepEqual(a.Stamps, other.Stamps) {
		return false
	}
	if !reflect.DeepEqual(a.SourceInfos, other.SourceInfos) {
		return false
	}
	return reflect.DeepEqual(a.Compilations, other.Compilations)
}

// Stats is a read-only snapshot of relation sizes, for progress
// reporting and tests.
type Stats struct {
	Sources      int
	Products     int
	InternalAPIs int
	ExternalAPIs int
	MemberRefs   int
	Inheritance  int
}

// Stats computes a Stats snapshot of a.
func (a *Analysis) Stats() Stats {
	return Stats{
		Sources:      len(a.SourceInfos),
		Products:     a.SrcProd.Len(),
		InternalAPIs: len(a.APIs.Internal),
		ExternalAPIs: len(a.APIs.External),
		MemberRefs:   a.MemberRefInternal.Len() + a.MemberRefExternal.Len(),
		Inheritance:  a.InheritanceInternal.Len() + a.InheritanceExternal.Len(),
	}
}

func (a *Analysis) clone() *Analysis {
	return &Analysis{
		SrcProd:                  a.SrcProd,
		LibraryDep:               a.LibraryDep,
		LibraryClassName:         a.LibraryClassName,
		Classes:                  a.Classes,
		ProductClassName:         a.ProductClassName,
		ProductClass:             a.ProductClass,
		MemberRefInternal:        a.MemberRefInternal,
		MemberRefExternal:        a.MemberRefExternal,
		InheritanceInternal:      a.InheritanceInternal,
		InheritanceExternal:      a.InheritanceExternal,
		LocalInheritanceInternal: a.LocalInheritanceInternal,
		LocalInheritanceExternal: a.LocalInheritanceExternal,
		UsedNames:                a.UsedNames,
		DeclaredClasses:          a.DeclaredClasses,
		APIs:                     a.APIs.clone(),
		Stamps:                   a.Stamps.clone(),
		SourceInfos:              cloneSourceInfos(a.SourceInfos),
		Compilations:             append([]Compilation{}, a.Compilations...),
	}
}

func cloneSourceInfos(m map[ids.SourceId]SourceInfo) map[ids.SourceId]SourceInfo {
	out := make(map[ids.SourceId]SourceInfo, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
