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

// Package relation implements Relation[K,V], a finite binary relation with
// an eagerly-maintained reverse index, as specified for the dependency
// store backing the incremental compilation engine. Values returned by a
// Relation are used functionally: mutating operations like Add and Remove
// return a new Relation rather than mutating the receiver in place, so
// callers can treat a Relation the same way the engine treats a whole
// Analysis snapshot.
package relation

// Relation is a finite mapping from keys to sets of values, with a
// reverse index from values back to the keys that reference them. Neither
// direction carries ordering. The zero value is not usable; use New.
type Relation[K comparable, V comparable] struct {
	forward map[K]map[V]struct{}
	reverse map[V]map[K]struct{}
}

// New returns a new, empty Relation.
func New[K comparable, V comparable]() *Relation[K, V] {
	return &Relation[K, V]{
		forward: make(map[K]map[V]struct{}),
		reverse: make(map[V]map[K]struct{}),
	}
}

// Forward returns the set of values associated with k, or an empty (nil)
// slice if k has no associated values.
func (r *Relation[K, V]) Forward(k K) []V {
	vs := r.forward[k]
	if len(vs) == 0 {
		return nil
	}
	out := make([]V, 0, len(vs))
	for v := range vs {
		out = append(out, v)
	}
	return out
}

// Reverse returns the set of keys that reference v, or an empty (nil) slice
// if no key references v.
func (r *Relation[K, V]) Reverse(v V) []K {
	ks := r.reverse[v]
	if len(ks) == 0 {
		return nil
	}
	out := make([]K, 0, len(ks))
	for k := range ks {
		out = append(out, k)
	}
	return out
}

// Contains reports whether the pair (k, v) is present in the relation.
func (r *Relation[K, V]) Contains(k K, v V) bool {
	vs, ok := r.forward[k]
	if !ok {
		return false
	}
	_, ok = vs[v]
	return ok
}

// Add returns a new Relation equal to r with (k, v) added for each v in vs.
func (r *Relation[K, V]) Add(k K, vs ...V) *Relation[K, V] {
	out := r.clone()
	out.addInPlace(k, vs...)
	return out
}

// Remove returns a new Relation equal to r with k, and every pair keyed on
// k, removed entirely.
func (r *Relation[K, V]) Remove(k K) *Relation[K, V] {
	out := r.clone()
	out.removeInPlace(k)
	return out
}

// RemoveAll returns a new Relation equal to r with every key in ks, and
// every pair keyed on one of them, removed.
func (r *Relation[K, V]) RemoveAll(ks []K) *Relation[K, V] {
	out := r.clone()
	for _, k := range ks {
		out.removeInPlace(k)
	}
	return out
}

// Merge returns a new Relation that is the union of r and other: for every
// key present in either, the returned relation associates it with the
// union of the values each side associates it with.
func (r *Relation[K, V]) Merge(other *Relation[K, V]) *Relation[K, V] {
	out := r.clone()
	if other == nil {
		return out
	}
	for k, vs := range other.forward {
		for v := range vs {
			out.addInPlace(k, v)
		}
	}
	return out
}

// Pairs yields every (k, v) pair in the relation, in unspecified order. It
// is intended for serialization (spec.md §6's persisted relation layout)
// and for building comparisons in tests.
func (r *Relation[K, V]) Pairs() []Pair[K, V] {
	out := make([]Pair[K, V], 0, len(r.forward))
	for k, vs := range r.forward {
		for v := range vs {
			out = append(out, Pair[K, V]{Key: k, Value: v})
		}
	}
	return out
}

// Pair is a single (key, value) pair of a Relation, as yielded by Pairs.
type Pair[K comparable, V comparable] struct {
	Key   K
	Value V
}

// Keys returns every key with at least one associated value, in
// unspecified order.
func (r *Relation[K, V]) Keys() []K {
	out := make([]K, 0, len(r.forward))
	for k := range r.forward {
		out = append(out, k)
	}
	return out
}

// Len returns the number of (key, value) pairs in the relation.
func (r *Relation[K, V]) Len() int {
	n := 0
	for _, vs := range r.forward {
		n += len(vs)
	}
	return n
}

// Equal reports whether r and other contain exactly the same pairs.
func (r *Relation[K, V]) Equal(other *Relation[K, V]) bool {
	if other == nil {
		return r.Len() == 0
	}
	if r.Len() != other.Len() {
		return false
	}
	for k, vs := range r.forward {
		ovs, ok := other.forward[k]
		if !ok || len(ovs) != len(vs) {
			return false
		}
		for v := range vs {
			if _, ok := ovs[v]; !ok {
				return false
			}
		}
	}
	return true
}

// FromPairs builds a Relation containing exactly the given pairs. It is the
// inverse of Pairs, used when decoding a persisted Analysis.
func FromPairs[K comparable, V comparable](pairs []Pair[K, V]) *Relation[K, V] {
	out := New[K, V]()
	for _, p := range pairs {
		out.addInPlace(p.Key, p.Value)
	}
	return out
}

func (r *Relation[K, V]) clone() *Relation[K, V] {
	out := &Relation[K, V]{
		forward: make(map[K]map[V]struct{}, len(r.forward)),
		reverse: make(map[V]map[K]struct{}, len(r.reverse)),
	}
	for k, vs := range r.forward {
		cp := make(map[V]struct{}, len(vs))
		for v := range vs {
			cp[v] = struct{}{}
		}
		out.forward[k] = cp
	}
	for v, ks := range r.reverse {
		cp := make(map[K]struct{}, len(ks))
		for k := range ks {
			cp[k] = struct{}{}
		}
		out.reverse[v] = cp
	}
	return out
}

func (r *Relation[K, V]) addInPlace(k K, vs ...V) {
	if len(vs) == 0 {
		return
	}
	fwd, ok := r.forward[k]
	if !ok {
		fwd = make(map[V]struct{}, len(vs))
		r.forward[k] = fwd
	}
	for _, v := range vs {
		fwd[v] = struct{}{}
		rev, ok := r.reverse[v]
		if !ok {
			rev = make(map[K]struct{}, 1)
			r.reverse[v] = rev
		}
		rev[k] = struct{}{}
	}
}

func (r *Relation[K, V]) removeInPlace(k K) {
	vs, ok := r.forward[k]
	if !ok {
		return
	}
	for v := range vs {
		if rev, ok := r.reverse[v]; ok {
			delete(rev, k)
			if len(rev) == 0 {
				delete(r.reverse, v)
			}
		}
	}
	delete(r.forward, k)
}
