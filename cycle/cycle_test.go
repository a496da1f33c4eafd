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

package cycle_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-incremental/incbuild/analysis"
	"github.com/go-incremental/incbuild/api"
	"github.com/go-incremental/incbuild/classfile"
	"github.com/go-incremental/incbuild/config"
	"github.com/go-incremental/incbuild/cycle"
	"github.com/go-incremental/incbuild/driver"
	"github.com/go-incremental/incbuild/errs"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/stamp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

// TestMain verifies the simulated concurrent compiler workers below (see
// TestRunCompileFuncReportsSourcesConcurrently) leave nothing running once
// their errgroup.Wait returns and Run itself has returned.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSourceStamps hands out a distinct stamp per source, configurable
// between Run calls to simulate a source edit.
type fakeSourceStamps struct {
	stamps map[ids.SourceId]stamp.Stamp
}

func (f *fakeSourceStamps) SourceStamp(src ids.SourceId) (stamp.Stamp, error) {
	return f.stamps[src], nil
}

// fakeLookup is a driver.ExternalLookup with no classpath and a
// configurable incremental-compilation veto.
type fakeLookup struct {
	veto bool
}

func (fakeLookup) LookupAnalyzedClass(ids.BinaryClassName) (api.AnalyzedClass, bool) { return api.AnalyzedClass{}, false }
func (fakeLookup) LookupOnClasspath(ids.BinaryClassName) bool                        { return false }
func (fakeLookup) LookupAnalysis(ids.BinaryClassName) (*analysis.Analysis, bool)      { return nil, false }
func (fakeLookup) ChangedClasspathHash() (string, bool)                              { return "", false }
func (f fakeLookup) ShouldDoIncrementalCompilation([]ids.ClassName, *analysis.Analysis) bool {
	return !f.veto
}

// compileOne builds a CompileFunc that reports one class per source named
// after the source itself, with a fixed member set, via cb.
func compileOne(membersOf func(ids.SourceId) []api.Member) driver.CompileFunc {
	return func(_ context.Context, sources []ids.SourceId, cb driver.Callback) error {
		for _, src := range sources {
			cb.StartSource(src)
			name := ids.ClassName(src)
			cb.API(src, api.ClassDefinition{Name: name, Members: membersOf(src)})
			cb.GeneratedNonLocalClass(src, string(src)+".class", ids.BinaryClassName(name), name)
		}
		cb.DependencyPhaseCompleted()
		cb.APIPhaseCompleted()
		return nil
	}
}

func TestRunFullRecompileFromNothing(t *testing.T) {
	t.Parallel()

	sources := []ids.SourceId{"a.lang", "b.lang"}
	d := cycle.Driver{
		Compile:    compileOne(func(ids.SourceId) []api.Member { return nil }),
		Lookup:     fakeLookup{},
		Stamps:     stamp.Readers{Source: &fakeSourceStamps{stamps: map[ids.SourceId]stamp.Stamp{}}},
		ClassFiles: classfile.NewInMemoryManager(nil),
		Options:    config.Default(),
	}

	result, err := d.Run(context.Background(), sources, nil)
	require.NoError(t, err)
	require.True(t, result.Compiled)
	require.Equal(t, 1, result.Cycles)
	require.Len(t, result.Analysis.Classes.Pairs(), 2)
}

func TestRunNoChangesCompilesNothing(t *testing.T) {
	t.Parallel()

	sources := []ids.SourceId{"a.lang"}
	compileCalls := 0
	compile := func(_ context.Context, srcs []ids.SourceId, cb driver.Callback) error {
		compileCalls++
		for _, src := range srcs {
			cb.StartSource(src)
			cb.API(src, api.ClassDefinition{Name: ids.ClassName(src)})
		}
		return nil
	}

	reader := &fakeSourceStamps{stamps: map[ids.SourceId]stamp.Stamp{"a.lang": stamp.New("v1")}}
	d := cycle.Driver{
		Compile:    compile,
		Lookup:     fakeLookup{},
		Stamps:     stamp.Readers{Source: reader},
		ClassFiles: classfile.NewInMemoryManager(nil),
		Options:    config.Default(),
	}

	first, err := d.Run(context.Background(), sources, nil)
	require.NoError(t, err)
	require.Equal(t, 1, compileCalls)

	second, err := d.Run(context.Background(), sources, first.Analysis)
	require.NoError(t, err)
	require.True(t, second.Compiled)
	require.Equal(t, 1, compileCalls, "unchanged source stamps must not trigger a recompile")
}

func TestRunCancellationReturnsUncompiledWithPreviousAnalysis(t *testing.T) {
	t.Parallel()

	sources := []ids.SourceId{"a.lang"}
	previous := analysis.New()
	compile := func(context.Context, []ids.SourceId, driver.Callback) error {
		return &errs.Cancellation{Reason: "user requested stop"}
	}

	mgr := classfile.NewInMemoryManager(nil)
	d := cycle.Driver{
		Compile:    compile,
		Lookup:     fakeLookup{},
		Stamps:     stamp.Readers{Source: &fakeSourceStamps{stamps: map[ids.SourceId]stamp.Stamp{}}},
		ClassFiles: mgr,
		Options:    config.Default(),
	}

	result, err := d.Run(context.Background(), sources, previous)
	require.NoError(t, err)
	require.False(t, result.Compiled)
	require.Same(t, previous, result.Analysis)

	require.Error(t, mgr.Complete(true), "Complete must already have been called once, rolling back")
}

func TestRunCompileFailureWrapsCompilerFailureAndRollsBack(t *testing.T) {
	t.Parallel()

	sources := []ids.SourceId{"a.lang"}
	compile := func(context.Context, []ids.SourceId, driver.Callback) error {
		return errs.NewFormatError("unexpected token in %s", "a.lang")
	}

	mgr := classfile.NewInMemoryManager(map[ids.ProductId][]byte{"old.class": []byte("old")})
	d := cycle.Driver{
		Compile:    compile,
		Lookup:     fakeLookup{},
		Stamps:     stamp.Readers{Source: &fakeSourceStamps{stamps: map[ids.SourceId]stamp.Stamp{}}},
		ClassFiles: mgr,
		Options:    config.Default(),
	}

	result, err := d.Run(context.Background(), sources, nil)
	require.Nil(t, result)
	require.Error(t, err)

	var failure *errs.CompilerFailure
	require.ErrorAs(t, err, &failure)

	snap := mgr.Snapshot()
	require.Equal(t, []byte("old"), snap["old.class"], "a failed cycle must not commit any staged writes")
}

func TestRunVetoForcesStopAfterFirstCycle(t *testing.T) {
	t.Parallel()

	cycles := 0
	compile := func(_ context.Context, srcs []ids.SourceId, cb driver.Callback) error {
		cycles++
		for _, src := range srcs {
			cb.StartSource(src)
			cb.API(src, api.ClassDefinition{Name: ids.ClassName(src), Members: []api.Member{
				{Name: "v", Signature: fmt.Sprintf("v%d", cycles)},
			}})
		}
		return nil
	}
	reader := &fakeSourceStamps{stamps: map[ids.SourceId]stamp.Stamp{"c.lang": stamp.New("v1")}}

	baseline := cycle.Driver{
		Compile:    compile,
		Lookup:     fakeLookup{},
		Stamps:     stamp.Readers{Source: reader},
		ClassFiles: classfile.NewInMemoryManager(nil),
		Options:    config.Default(),
	}
	previous, err := baseline.Run(context.Background(), []ids.SourceId{"c.lang"}, nil)
	require.NoError(t, err)

	d := cycle.Driver{
		Compile:    compile,
		Lookup:     fakeLookup{veto: true},
		Stamps:     stamp.Readers{Source: reader},
		ClassFiles: classfile.NewInMemoryManager(nil),
		Options:    config.Default(),
	}
	result, err := d.Run(context.Background(), []ids.SourceId{"a.lang", "b.lang", "c.lang"}, previous.Analysis)
	require.NoError(t, err)
	require.True(t, result.Compiled)
	require.Equal(t, 1, result.Cycles, "a veto on the first re-invalidation check must stop the loop before a second compile")
}

// TestRunCompileFuncReportsSourcesConcurrently simulates a compile
// function that dispatches one worker goroutine per source against the
// same driver.Callback, the way a real multi-file frontend would; the
// callback.Builder it drives is documented safe for exactly this.
func TestRunCompileFuncReportsSourcesConcurrently(t *testing.T) {
	t.Parallel()

	sources := []ids.SourceId{"a.lang", "b.lang", "c.lang", "d.lang"}
	compile := func(_ context.Context, srcs []ids.SourceId, cb driver.Callback) error {
		var g errgroup.Group
		for _, src := range srcs {
			g.Go(func() error {
				cb.StartSource(src)
				cb.API(src, api.ClassDefinition{Name: ids.ClassName(src)})
				cb.GeneratedNonLocalClass(src, string(src)+".class", ids.BinaryClassName(src), ids.ClassName(src))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		cb.DependencyPhaseCompleted()
		cb.APIPhaseCompleted()
		return nil
	}

	d := cycle.Driver{
		Compile:    compile,
		Lookup:     fakeLookup{},
		Stamps:     stamp.Readers{Source: &fakeSourceStamps{stamps: map[ids.SourceId]stamp.Stamp{}}},
		ClassFiles: classfile.NewInMemoryManager(nil),
		Options:    config.Default(),
	}

	result, err := d.Run(context.Background(), sources, nil)
	require.NoError(t, err)
	require.True(t, result.Compiled)
	require.Len(t, result.Analysis.Classes.Pairs(), len(sources))
}

func TestRunTraceReceivesEvents(t *testing.T) {
	t.Parallel()

	var events []string
	d := cycle.Driver{
		Compile:    compileOne(func(ids.SourceId) []api.Member { return nil }),
		Lookup:     fakeLookup{},
		Stamps:     stamp.Readers{Source: &fakeSourceStamps{stamps: map[ids.SourceId]stamp.Stamp{}}},
		ClassFiles: classfile.NewInMemoryManager(nil),
		Options:    config.Default(),
		Trace:      recordingTrace{events: &events},
	}

	_, err := d.Run(context.Background(), []ids.SourceId{"a.lang"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, events)
}

type recordingTrace struct {
	events *[]string
}

func (r recordingTrace) Event(format string, args ...any) {
	*r.events = append(*r.events, format)
	_ = args
}
