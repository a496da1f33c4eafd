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

// Package main implements a standalone demo driver for the incremental
// build engine: it reads a directory of toy ".inc" source files, runs the
// engine's cycle driver over them, optionally persisting and reloading the
// resulting Analysis across invocations so a second run over an unchanged
// directory recompiles nothing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/go-incremental/incbuild/analysis"
	"github.com/go-incremental/incbuild/api"
	"github.com/go-incremental/incbuild/classfile"
	"github.com/go-incremental/incbuild/config"
	"github.com/go-incremental/incbuild/cycle"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/stamp"
)

// consoleTrace prints cycle.Driver progress events to stdout, colorized
// the way golden-test's diff output is: green/yellow/plain according to
// the outcome the event describes, inferred from its own text rather than
// from a separate severity field.
type consoleTrace struct{}

// Event implements cycle.Trace.
func (consoleTrace) Event(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch {
	case strings.Contains(msg, "cancelled"), strings.Contains(msg, "vetoed"):
		color.Yellow("  %s", msg)
	case strings.Contains(msg, "done"), strings.Contains(msg, "recompiled every source"):
		color.Green("  %s", msg)
	default:
		fmt.Println("  " + msg)
	}
}

// demoLookup is a driver.ExternalLookup with no classpath: this demo
// never vetoes incremental compilation and has no external dependencies
// to resolve.
type demoLookup struct{}

func (demoLookup) LookupAnalyzedClass(ids.BinaryClassName) (api.AnalyzedClass, bool) {
	return api.AnalyzedClass{}, false
}
func (demoLookup) LookupOnClasspath(ids.BinaryClassName) bool { return false }
func (demoLookup) LookupAnalysis(ids.BinaryClassName) (*analysis.Analysis, bool) {
	return nil, false
}
func (demoLookup) ChangedClasspathHash() (string, bool) { return "", false }
func (demoLookup) ShouldDoIncrementalCompilation([]ids.ClassName, *analysis.Analysis) bool {
	return true
}

func main() {
	fs := flag.NewFlagSet("incbuild", flag.ExitOnError)
	dir := fs.String("dir", "", "directory of .inc source files to build incrementally")
	analysisPath := fs.String("analysis", "", "path to load/save the persisted Analysis (gob+s2); omitted means always a clean build")
	options := config.Default()
	options.RegisterFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	if *dir == "" {
		fmt.Fprintln(os.Stderr, "incbuild: -dir is required")
		fs.PrintDefaults()
		os.Exit(2)
	}

	reg, sources, err := loadRegistry(*dir)
	if err != nil {
		log.Fatalf("load sources: %v", err)
	}
	color.Cyan("incbuild: found %d source(s) in %s", len(sources), *dir)

	var previous *analysis.Analysis
	if *analysisPath != "" {
		if f, err := os.Open(*analysisPath); err == nil {
			previous, err = analysis.Decode(f)
			_ = f.Close()
			if err != nil {
				log.Fatalf("decode previous analysis %q: %v", *analysisPath, err)
			}
		}
	}

	classFiles := classfile.NewInMemoryManager(nil)
	d := cycle.Driver{
		Compile: (&fileCompiler{reg: reg}).Compile,
		Lookup:  demoLookup{},
		Stamps: stamp.Readers{
			Source:  &sourceStamps{reg: reg},
			Product: &productStamps{contents: classFiles.Snapshot},
			Library: noLibraryStamps{},
		},
		ClassFiles: classFiles,
		Options:    options,
		Trace:      consoleTrace{},
	}

	result, err := d.Run(context.Background(), sources, previous)
	if err != nil {
		log.Fatalf("build failed: %v", err)
	}

	if !result.Compiled {
		color.Yellow("incbuild: build cancelled after %d cycle(s)", result.Cycles)
		return
	}
	color.Green("incbuild: built %d source(s) in %d cycle(s)", len(result.Analysis.Classes.Keys()), result.Cycles)

	if *analysisPath != "" {
		f, err := os.OpenFile(*analysisPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			log.Fatalf("open %q for writing: %v", *analysisPath, err)
		}
		defer f.Close()
		if err := result.Analysis.Encode(f); err != nil {
			log.Fatalf("encode analysis: %v", err)
		}
	}
}
