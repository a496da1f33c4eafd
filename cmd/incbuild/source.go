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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-incremental/incbuild/api"
	"github.com/go-incremental/incbuild/ids"
)

// sourceExt is the extension this demo recognizes as one of its own toy
// source files; anything else in the directory is ignored.
const sourceExt = ".inc"

// sourceContents maps each discovered source to its raw file content.
// Iteration order over the map itself is never relied on anywhere in the
// demo; loadRegistry hands back a separately directory-sorted []ids.SourceId
// for anything that needs a deterministic source order (trace output, the
// order sources are handed to the compile function).
type sourceContents map[ids.SourceId]string

// Load looks up one source's content.
func (m sourceContents) Load(src ids.SourceId) (string, bool) {
	content, ok := m[src]
	return content, ok
}

// registry holds every discovered source's raw content, keyed by path.
type registry struct {
	contents sourceContents
}

// loadRegistry walks dir non-recursively for *.inc files and reads them
// into a registry, sorted by path for determinism.
func loadRegistry(dir string) (*registry, []ids.SourceId, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read source directory %q: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != sourceExt {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	contents := make(sourceContents, len(paths))
	sources := make([]ids.SourceId, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("read source %q: %w", p, err)
		}
		src := ids.SourceId(p)
		contents[src] = string(b)
		sources = append(sources, src)
	}
	return &registry{contents: contents}, sources, nil
}

// classDef is one source file's parsed toy class definition.
type classDef struct {
	def     api.ClassDefinition
	extends []ids.ClassName
	uses    []ids.ClassName
}

// parse interprets one .inc file's textual convention:
//
//	class <Name> [trait] [sealed] [macro] [packageobject]
//	extends <ClassName>
//	uses <ClassName>
//	member <name> <signature> [private]
//
// Blank lines and lines starting with # are ignored. This is a stand-in
// for a real compiler frontend; its only job is to give the demo CLI
// something deterministic to feed the engine's callback contract.
func parse(content string) (classDef, error) {
	var out classDef
	seenClass := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "class":
			if len(fields) < 2 {
				return classDef{}, fmt.Errorf("class line missing a name: %q", line)
			}
			out.def.Name = ids.ClassName(fields[1])
			for _, flag := range fields[2:] {
				switch flag {
				case "trait":
					out.def.IsTrait = true
				case "sealed":
					out.def.IsSealed = true
				case "macro":
					out.def.HasMacro = true
				case "packageobject":
					out.def.IsPackageObject = true
				}
			}
			seenClass = true
		case "extends":
			if len(fields) < 2 {
				return classDef{}, fmt.Errorf("extends line missing a name: %q", line)
			}
			out.extends = append(out.extends, ids.ClassName(fields[1]))
		case "uses":
			if len(fields) < 2 {
				return classDef{}, fmt.Errorf("uses line missing a name: %q", line)
			}
			out.uses = append(out.uses, ids.ClassName(fields[1]))
		case "member":
			if len(fields) < 3 {
				return classDef{}, fmt.Errorf("member line needs a name and signature: %q", line)
			}
			m := api.Member{Name: fields[1], Signature: fields[2]}
			for _, flag := range fields[3:] {
				if flag == "private" {
					m.Private = true
				}
			}
			out.def.Members = append(out.def.Members, m)
		default:
			return classDef{}, fmt.Errorf("unrecognized line: %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return classDef{}, err
	}
	if !seenClass {
		return classDef{}, fmt.Errorf("source has no class line")
	}
	return out, nil
}
