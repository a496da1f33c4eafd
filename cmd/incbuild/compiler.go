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

package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/go-incremental/incbuild/analysis"
	"github.com/go-incremental/incbuild/callback"
	"github.com/go-incremental/incbuild/driver"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/stamp"
)

// fileCompiler is a toy driver.CompileFunc: it "compiles" a .inc source by
// parsing its one class definition and reporting it through cb, exactly
// the way a real frontend would report one source's dependencies and API
// shape during a single cycle.
type fileCompiler struct {
	reg *registry
}

var _ driver.CompileFunc = (*fileCompiler)(nil).Compile

// Compile implements driver.CompileFunc.
func (c *fileCompiler) Compile(ctx context.Context, sources []ids.SourceId, cb driver.Callback) error {
	var outputJarClasses []ids.BinaryClassName

	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		content, ok := c.reg.contents.Load(src)
		if !ok {
			return fmt.Errorf("no content registered for source %q", src)
		}
		def, err := parse(content)
		if err != nil {
			return fmt.Errorf("parsing %q: %w", src, err)
		}

		cb.StartSource(src)
		cb.API(src, def.def)

		for _, parent := range def.extends {
			cb.ClassDependency(parent, def.def.Name, analysis.Inheritance)
		}
		for _, used := range def.uses {
			cb.ClassDependency(used, def.def.Name, analysis.MemberRef)
		}

		binaryName := ids.BinaryClassName(def.def.Name)
		classFilePath := strings.TrimSuffix(string(src), sourceExt) + ".class"
		cb.GeneratedNonLocalClass(src, classFilePath, binaryName, def.def.Name)
		outputJarClasses = append(outputJarClasses, binaryName)
	}

	cb.DependencyPhaseCompleted()
	cb.APIPhaseCompleted()

	// The output-jar bookkeeping is specific to how a given compiler
	// packages its own build output, so only a concrete CompileFunc
	// implementation can report it; driver.Callback itself has no such
	// method. Here every generated class is assumed to land in the one
	// jar this demo always "produces".
	if builder, ok := cb.(*callback.Builder); ok {
		builder.NoteOutputJarClasses(outputJarClasses)
	}
	return nil
}

// sourceStamps hashes each source's registered content with FNV-1a, the
// same hashing convention package api uses for member signatures, so an
// unchanged file always reports the same stamp across runs.
type sourceStamps struct {
	reg *registry
}

var _ stamp.SourceStampReader = (*sourceStamps)(nil)

// SourceStamp implements stamp.SourceStampReader.
func (s *sourceStamps) SourceStamp(src ids.SourceId) (stamp.Stamp, error) {
	content, ok := s.reg.contents.Load(src)
	if !ok {
		return stamp.Stamp{}, fmt.Errorf("no content registered for source %q", src)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(content))
	return stamp.New(fmt.Sprintf("%x", h.Sum64())), nil
}

// productStamps reads the current stamp of an emitted product straight
// out of the Class-file Manager's committed contents, so a product
// deleted outside this demo (there is none: the manager is in-memory) or
// never written reports as a zero Stamp.
type productStamps struct {
	contents func() map[ids.ProductId][]byte
}

var _ stamp.ProductStampReader = (*productStamps)(nil)

// ProductStamp implements stamp.ProductStampReader.
func (p *productStamps) ProductStamp(prod ids.ProductId) (stamp.Stamp, error) {
	bytes, ok := p.contents()[prod]
	if !ok {
		return stamp.Stamp{}, nil
	}
	h := fnv.New64a()
	_, _ = h.Write(bytes)
	return stamp.New(fmt.Sprintf("%x", h.Sum64())), nil
}

// noLibraryStamps reports every library as permanently unchanged: this
// demo has no classpath.
type noLibraryStamps struct{}

var _ stamp.LibraryStampReader = noLibraryStamps{}

// LibraryStamp implements stamp.LibraryStampReader.
func (noLibraryStamps) LibraryStamp(ids.LibraryId) (stamp.Stamp, error) {
	return stamp.Stamp{}, nil
}
