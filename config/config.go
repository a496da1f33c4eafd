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

// Package config holds the engine's recognized settings (spec.md §6) and
// registers them on a flag.FlagSet the way the teacher's top-level
// configuration lifts an analyzer's flags into its own FlagSet.
package config

import "flag"

// Options bundles every recognized configuration setting.
type Options struct {
	// RecompileAllFraction is the source-count fraction (§4.E.6) beyond
	// which the driver widens an invalidation to all sources instead of
	// recompiling the mapped subset.
	RecompileAllFraction float64
	// TransitiveStep is the cycle number from which Invalidate replaces
	// per-change propagation with the brute-force saturation of §4.E.5;
	// zero disables the switch.
	TransitiveStep int
	// RecompileOnMacroDef makes any hash change on a class with HasMacro
	// set emit a MacroDefinition APIChange, pre-empting the name-hash
	// diff.
	RecompileOnMacroDef bool
	// UseOptimizedSealed makes NamesChange propagation look up whether the
	// changed class is sealed. PatternTarget propagation already reaches
	// only classes whose used names record that exact (name,
	// PatternTarget) pair, so the invalidated set is the same with or
	// without it.
	UseOptimizedSealed bool
	// RelationsDebug is registered as a flag; no component reads it.
	RelationsDebug bool
	// APIDebug is registered as a flag; api.Minimize takes its own
	// apiDebug argument, and nothing passes this field to it.
	APIDebug bool
	// StrictMode is registered as a flag; no component reads it.
	StrictMode bool
	// APIDiffContextSize is registered as a flag; no component reads it.
	APIDiffContextSize int
	// SkipClasspathLookup reduces library-dependency change detection to
	// same-path stamp comparison only (§4.D).
	SkipClasspathLookup bool
}

// Default returns the Options the engine uses absent any flags.
func Default() Options {
	return Options{
		RecompileAllFraction: 0.5,
		TransitiveStep:       0,
		RecompileOnMacroDef:  true,
		UseOptimizedSealed:   false,
		RelationsDebug:       false,
		APIDebug:             false,
		StrictMode:           false,
		APIDiffContextSize:   3,
		SkipClasspathLookup:  false,
	}
}

// RegisterFlags registers every Options field onto fs, the way the
// teacher's CLI lifts its analyzer's flags into the top-level FlagSet
// before parsing.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	fs.Float64Var(&o.RecompileAllFraction, "recompile-all-fraction", o.RecompileAllFraction,
		"widen to recompiling all sources once invalidation maps to more than this fraction of sources")
	fs.IntVar(&o.TransitiveStep, "transitive-step", o.TransitiveStep,
		"cycle number from which invalidation switches to brute-force saturation; 0 disables the switch")
	fs.BoolVar(&o.RecompileOnMacroDef, "recompile-on-macro-def", o.RecompileOnMacroDef,
		"treat any hash change on a macro-bearing class as a MacroDefinition change")
	fs.BoolVar(&o.UseOptimizedSealed, "use-optimized-sealed", o.UseOptimizedSealed,
		"restrict PatternTarget propagation for sealed-hierarchy changes")
	fs.BoolVar(&o.RelationsDebug, "relations-debug", o.RelationsDebug, "keep extra relation detail for diagnostics")
	fs.BoolVar(&o.APIDebug, "api-debug", o.APIDebug, "disable private-member stripping when minimizing class definitions")
	fs.BoolVar(&o.StrictMode, "strict", o.StrictMode, "treat recoverable contract violations as hard failures")
	fs.IntVar(&o.APIDiffContextSize, "api-diff-context", o.APIDiffContextSize, "lines of context in diagnostic API diffs")
	fs.BoolVar(&o.SkipClasspathLookup, "skip-classpath-lookup", o.SkipClasspathLookup,
		"reduce library-dependency change detection to same-path stamp comparison only")
}
