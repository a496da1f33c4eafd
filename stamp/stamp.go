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

// Package stamp defines the opaque fingerprint type the engine compares
// sources, products, and library files by, and the reader interfaces that
// the (externally supplied) stamp/hash providers of spec.md §1 must
// satisfy. The engine never inspects a Stamp's contents, only whether two
// Stamps are equivalent.
package stamp

import (
	"github.com/go-incremental/incbuild/ids"
)

// Stamp is an opaque fingerprint produced by an external reader (a content
// hash, an mtime, a size+mtime pair, ...). The engine only ever tests two
// Stamps for equivalence via Equal.
type Stamp struct {
	value string
}

// New wraps an externally computed fingerprint value as a Stamp.
func New(value string) Stamp {
	return Stamp{value: value}
}

// Equal reports whether s and other are equivalent fingerprints. The zero
// Stamp is never equal to any Stamp produced by New, including another zero
// Stamp from a different reader — callers should treat an absent Stamp as
// "unknown", not "equal to any other unknown".
func (s Stamp) Equal(other Stamp) bool {
	return s.value != "" && s.value == other.value
}

// IsZero reports whether s carries no fingerprint value.
func (s Stamp) IsZero() bool {
	return s.value == ""
}

// String returns the underlying fingerprint value, for diagnostics only.
func (s Stamp) String() string {
	return s.value
}

// GobEncode implements gob.GobEncoder. Stamp's only field is unexported,
// so without this, a gob-encoded Stamp would silently lose its value.
func (s Stamp) GobEncode() ([]byte, error) {
	return []byte(s.value), nil
}

// GobDecode implements gob.GobDecoder.
func (s *Stamp) GobDecode(data []byte) error {
	s.value = string(data)
	return nil
}

// SourceStampReader returns the current Stamp for a source.
type SourceStampReader interface {
	SourceStamp(src ids.SourceId) (Stamp, error)
}

// ProductStampReader returns the current Stamp for an emitted product
// (class file). A missing product (deleted on disk) should be reported as
// a zero Stamp, not an error.
type ProductStampReader interface {
	ProductStamp(prod ids.ProductId) (Stamp, error)
}

// LibraryStampReader returns the current Stamp for a classpath library
// entry, keyed by the same-path convention the classpath lookup uses.
type LibraryStampReader interface {
	LibraryStamp(lib ids.LibraryId) (Stamp, error)
}

// Readers bundles the three stamp-reading collaborators the change
// detector needs; it is the "Stamp/Hash providers" collaborator named in
// spec.md §1.
type Readers struct {
	Source  SourceStampReader
	Product ProductStampReader
	Library LibraryStampReader
}
