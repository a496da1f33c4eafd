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

package change_test

import (
	"testing"

	"github.com/go-incremental/incbuild/analysis"
	"github.com/go-incremental/incbuild/api"
	"github.com/go-incremental/incbuild/change"
	"github.com/go-incremental/incbuild/config"
	"github.com/go-incremental/incbuild/ids"
	"github.com/go-incremental/incbuild/stamp"
	"github.com/stretchr/testify/require"
)

type fakeSourceReader map[ids.SourceId]stamp.Stamp

func (f fakeSourceReader) SourceStamp(src ids.SourceId) (stamp.Stamp, error) { return f[src], nil }

type fakeProductReader map[ids.ProductId]stamp.Stamp

func (f fakeProductReader) ProductStamp(p ids.ProductId) (stamp.Stamp, error) { return f[p], nil }

type fakeLibraryReader map[ids.LibraryId]stamp.Stamp

func (f fakeLibraryReader) LibraryStamp(l ids.LibraryId) (stamp.Stamp, error) { return f[l], nil }

type fakeLookup struct {
	analyzed   map[ids.BinaryClassName]api.AnalyzedClass
	onClasspath map[ids.BinaryClassName]bool
	allowIncremental bool
}

func (f fakeLookup) LookupAnalyzedClass(bn ids.BinaryClassName) (api.AnalyzedClass, bool) {
	ac, ok := f.analyzed[bn]
	return ac, ok
}
func (f fakeLookup) LookupOnClasspath(bn ids.BinaryClassName) bool { return f.onClasspath[bn] }
func (f fakeLookup) LookupAnalysis(ids.BinaryClassName) (*analysis.Analysis, bool) {
	return nil, false
}
func (f fakeLookup) ChangedClasspathHash() (string, bool) { return "", false }
func (f fakeLookup) ShouldDoIncrementalCompilation([]ids.ClassName, *analysis.Analysis) bool {
	return f.allowIncremental
}

func buildPrevious(t *testing.T) *analysis.Analysis {
	t.Helper()
	a := analysis.New().AddSource("src/Foo.lang", analysis.AddSourceParams{
		Stamp: stamp.New("h1"),
		NonLocalProducts: []analysis.Product{
			{ProductId: "out/Foo.class", ClassName: "pkg.Foo", BinaryName: "pkg.Foo"},
		},
	})
	a = a.AddSource("src/Bar.lang", analysis.AddSourceParams{Stamp: stamp.New("h2")})
	return a
}

func TestSourceChangesPartitionsByStamp(t *testing.T) {
	t.Parallel()

	previous := buildPrevious(t)
	d := change.Detector{
		Stamps: stamp.Readers{
			Source:  fakeSourceReader{"src/Foo.lang": stamp.New("h1"), "src/Bar.lang": stamp.New("h2-changed"), "src/New.lang": stamp.New("h3")},
			Product: fakeProductReader{},
			Library: fakeLibraryReader{},
		},
		Options: config.Default(),
	}

	res := d.Detect([]ids.SourceId{"src/Foo.lang", "src/Bar.lang", "src/New.lang"}, previous)

	require.ElementsMatch(t, []ids.SourceId{"src/New.lang"}, res.Sources.Added)
	require.ElementsMatch(t, []ids.SourceId{"src/Bar.lang"}, res.Sources.Changed)
	require.ElementsMatch(t, []ids.SourceId{"src/Foo.lang"}, res.Sources.Unmodified)
	require.Empty(t, res.Sources.Removed)
}

func TestSourceRemoved(t *testing.T) {
	t.Parallel()

	previous := buildPrevious(t)
	d := change.Detector{
		Stamps: stamp.Readers{
			Source:  fakeSourceReader{"src/Foo.lang": stamp.New("h1")},
			Product: fakeProductReader{},
			Library: fakeLibraryReader{},
		},
		Options: config.Default(),
	}

	res := d.Detect([]ids.SourceId{"src/Foo.lang"}, previous)
	require.ElementsMatch(t, []ids.SourceId{"src/Bar.lang"}, res.Sources.Removed)
}

func TestRemovedProductsDetectsMissingOrChangedStamp(t *testing.T) {
	t.Parallel()

	previous := buildPrevious(t)
	// AddSource records no product stamps, so record the one being checked.
	previous.Stamps.Products["out/Foo.class"] = stamp.New("p1")
	d := change.Detector{
		Stamps: stamp.Readers{
			Source:  fakeSourceReader{},
			Product: fakeProductReader{}, // empty: every recorded product now reads as zero-stamp/missing
			Library: fakeLibraryReader{},
		},
		Options: config.Default(),
	}

	res := d.Detect(nil, previous)
	require.ElementsMatch(t, []ids.ProductId{"out/Foo.class"}, res.RemovedProducts)
}

func TestExternalAPIChangesClearedWhenAllVetoed(t *testing.T) {
	t.Parallel()

	previous := analysis.New()
	previous.APIs.External["pkg.Ext"] = api.AnalyzedClass{Name: "pkg.Ext", APIHash: 1}

	d := change.Detector{
		Stamps: stamp.Readers{Source: fakeSourceReader{}, Product: fakeProductReader{}, Library: fakeLibraryReader{}},
		Lookup: fakeLookup{
			analyzed:         map[ids.BinaryClassName]api.AnalyzedClass{"pkg.Ext": {Name: "pkg.Ext", APIHash: 2}},
			allowIncremental: false,
		},
		Options: config.Default(),
	}

	res := d.Detect(nil, previous)
	require.Empty(t, res.ExternalAPIChanges)
}

func TestExternalAPIChangesKeptWhenNotVetoed(t *testing.T) {
	t.Parallel()

	previous := analysis.New()
	previous.APIs.External["pkg.Ext"] = api.AnalyzedClass{Name: "pkg.Ext", APIHash: 1}

	d := change.Detector{
		Stamps: stamp.Readers{Source: fakeSourceReader{}, Product: fakeProductReader{}, Library: fakeLibraryReader{}},
		Lookup: fakeLookup{
			analyzed:         map[ids.BinaryClassName]api.AnalyzedClass{"pkg.Ext": {Name: "pkg.Ext", APIHash: 2}},
			allowIncremental: true,
		},
		Options: config.Default(),
	}

	res := d.Detect(nil, previous)
	require.Len(t, res.ExternalAPIChanges, 1)
	require.Equal(t, ids.ClassName("pkg.Ext"), res.ExternalAPIChanges[0].ClassName)
}
