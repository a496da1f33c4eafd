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

// Package ids defines the opaque identifier types the engine's relations
// are keyed on: sources, emitted products, classpath libraries, and the
// two flavors of class name (source-level and binary/flattened).
package ids

import "strings"

// SourceId opaquely references an input source, e.g. a file path.
type SourceId string

// ProductId opaquely references an emitted class file.
type ProductId string

// LibraryId references a classpath artifact (jar or external class file).
type LibraryId string

// companionSuffix is appended to a ClassName to encode its companion
// singleton form, e.g. `pkg.Foo` vs `pkg.Foo$`.
const companionSuffix = "$"

// ClassName is a fully-qualified source-level class name. A companion
// singleton is encoded by appending companionSuffix; both forms are
// preserved by the engine rather than collapsed into one.
type ClassName string

// Companion returns the companion-singleton form of c. Calling Companion on
// an already-companion name is idempotent.
func (c ClassName) Companion() ClassName {
	if c.IsCompanion() {
		return c
	}
	return c + ClassName(companionSuffix)
}

// IsCompanion reports whether c is already encoded as a companion singleton.
func (c ClassName) IsCompanion() bool {
	return strings.HasSuffix(string(c), companionSuffix)
}

// Base strips the companion suffix from c, if present, returning the
// class-like name that companion c pairs with.
func (c ClassName) Base() ClassName {
	return ClassName(strings.TrimSuffix(string(c), companionSuffix))
}

// String implements fmt.Stringer.
func (c ClassName) String() string { return string(c) }

// BinaryClassName is the compiled, flattened class name that appears in a
// class file (e.g. with `$` used for nested-class separators by the
// compiler, distinct from the companion-singleton `$` above).
type BinaryClassName string

// String implements fmt.Stringer.
func (b BinaryClassName) String() string { return string(b) }
