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

package analysis

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/go-incremental/incbuild/errs"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/relation"
	"github.com/klauspost/compress/s2"
)

// legacyRelationCount is the number of relations the persisted format's
// fixed legacy layout carries, per spec.md §6: products, library
// dependencies, four empty legacy placeholders, memberRef internal,
// memberRef external, inheritance internal, inheritance external, class
// names, used names, declared classes. Readers refuse any file whose
// legacy relation count differs from this.
const legacyRelationCount = 13

// wireHeader is the first thing written (and read) in a persisted
// Analysis, per spec.md §6.
type wireHeader struct {
	NameHashingStyle bool
	RelationCount    int
}

// wireRelation is a serialization-friendly pair list, since gob cannot
// encode the unexported map fields of relation.Relation directly.
type wireRelation[K comparable, V comparable] struct {
	Pairs []relation.Pair[K, V]
}

func toWire[K comparable, V comparable](r *relation.Relation[K, V]) wireRelation[K, V] {
	return wireRelation[K, V]{Pairs: r.Pairs()}
}

func (w wireRelation[K, V]) toRelation() *relation.Relation[K, V] {
	return relation.FromPairs(w.Pairs)
}

// wireAnalysis is the full gob-encoded representation of an Analysis. The
// thirteen legacy-shaped fields come first, matching spec.md §6's required
// on-disk order; libraryClassName, productClassName, and both
// local-inheritance relations are written as an appended extension so that
// the distinction between inheritance and local-inheritance survives a
// round trip through this engine's own Encode/Decode, while the legacy
// relation count (used by the format check) still refers only to the
// thirteen fields preceding the extension.
type wireAnalysis struct {
	Header wireHeader

	// Legacy 13-slot section, in spec.md §6 order.
	Products                 wireRelation[ids.SourceId, ids.ProductId]
	LibraryDependencies      wireRelation[ids.SourceId, ids.LibraryId]
	legacyDirectSource       struct{} // always empty; kept only to document the slot
	legacyDirectExternal     struct{} // always empty; kept only to document the slot
	legacyPublicInheritedA   struct{} // always empty; kept only to document the slot
	legacyPublicInheritedB   struct{} // always empty; kept only to document the slot
	MemberRefInternal        wireRelation[ids.ClassName, ids.ClassName]
	MemberRefExternal        wireRelation[ids.ClassName, ids.ClassName]
	InheritanceInternal      wireRelation[ids.ClassName, ids.ClassName]
	InheritanceExternal      wireRelation[ids.ClassName, ids.ClassName]
	ClassNames               wireRelation[ids.SourceId, ids.ClassName]
	UsedNames                wireRelation[ids.ClassName, NameUse]
	DeclaredClasses          wireRelation[ids.SourceId, ids.ClassName]

	// Extension section: relations the legacy 13-slot layout has no room
	// for.
	ProductClassName         wireRelation[ids.ClassName, ids.BinaryClassName]
	ProductClass             wireRelation[ids.ProductId, ids.ClassName]
	LibraryClassName         wireRelation[ids.LibraryId, ids.BinaryClassName]
	LocalInheritanceInternal wireRelation[ids.ClassName, ids.ClassName]
	LocalInheritanceExternal wireRelation[ids.ClassName, ids.ClassName]

	APIs         APIs
	Stamps       Stamps
	SourceInfos  map[ids.SourceId]SourceInfo
	Compilations []Compilation
}

// Encode serializes a as gob, then frames it with S2 compression (spec.md
// §9's supplemented persistence format), and writes the result to w.
func (a *Analysis) Encode(w io.Writer) error {
	wire := wireAnalysis{
		Header:                   wireHeader{NameHashingStyle: true, RelationCount: legacyRelationCount},
		Products:                 toWire(a.SrcProd),
		LibraryDependencies:      toWire(a.LibraryDep),
		MemberRefInternal:        toWire(a.MemberRefInternal),
		MemberRefExternal:        toWire(a.MemberRefExternal),
		InheritanceInternal:      toWire(a.InheritanceInternal),
		InheritanceExternal:      toWire(a.InheritanceExternal),
		ClassNames:               toWire(a.Classes),
		UsedNames:                toWire(a.UsedNames),
		DeclaredClasses:          toWire(a.DeclaredClasses),
		ProductClassName:         toWire(a.ProductClassName),
		ProductClass:             toWire(a.ProductClass),
		LibraryClassName:         toWire(a.LibraryClassName),
		LocalInheritanceInternal: toWire(a.LocalInheritanceInternal),
		LocalInheritanceExternal: toWire(a.LocalInheritanceExternal),
		APIs:                     a.APIs,
		Stamps:                   a.Stamps,
		SourceInfos:              a.SourceInfos,
		Compilations:             a.Compilations,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&wire); err != nil {
		return err
	}

	zw := s2.NewWriter(w)
	if _, err := zw.Write(buf.Bytes()); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Decode reads an Analysis previously written by Encode from r, refusing
// any file whose legacy relation count differs from thirteen.
func Decode(r io.Reader) (*Analysis, error) {
	zr := s2.NewReader(r)
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, errs.NewFormatError("decompressing analysis stream: %v", err)
	}

	var wire wireAnalysis
	if err := gob.NewDecoder(&buf).Decode(&wire); err != nil {
		return nil, errs.NewFormatError("decoding analysis stream: %v", err)
	}
	if wire.Header.RelationCount != legacyRelationCount {
		return nil, errs.NewFormatError("expected %d legacy relations, file declares %d", legacyRelationCount, wire.Header.RelationCount)
	}

	out := &Analysis{
		SrcProd:                  wire.Products.toRelation(),
		LibraryDep:               wire.LibraryDependencies.toRelation(),
		LibraryClassName:         wire.LibraryClassName.toRelation(),
		Classes:                  wire.ClassNames.toRelation(),
		ProductClassName:         wire.ProductClassName.toRelation(),
		ProductClass:             wire.ProductClass.toRelation(),
		MemberRefInternal:        wire.MemberRefInternal.toRelation(),
		MemberRefExternal:        wire.MemberRefExternal.toRelation(),
		InheritanceInternal:      wire.InheritanceInternal.toRelation(),
		InheritanceExternal:      wire.InheritanceExternal.toRelation(),
		LocalInheritanceInternal: wire.LocalInheritanceInternal.toRelation(),
		LocalInheritanceExternal: wire.LocalInheritanceExternal.toRelation(),
		UsedNames:                wire.UsedNames.toRelation(),
		DeclaredClasses:          wire.DeclaredClasses.toRelation(),
		APIs:                     wire.APIs,
		Stamps:                   wire.Stamps,
		SourceInfos:              wire.SourceInfos,
		Compilations:             wire.Compilations,
	}
	if out.APIs.Internal == nil {
		out.APIs = newAPIs()
	}
	if out.Stamps.Sources == nil {
		out.Stamps = newStamps()
	}
	if out.SourceInfos == nil {
		out.SourceInfos = make(map[ids.SourceId]SourceInfo)
	}
	return out, nil
}
