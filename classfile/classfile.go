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

// Package classfile models the Class-file Manager resource: a scoped,
// transactional handle over generated class files, acquired once before
// the first compile cycle and completed exactly once, committing or
// rolling back every class file written in between (spec.md §5).
package classfile

import (
	"fmt"
	"sync"

	"github.com/go-incremental/incbuild/errs"
	"github.com/go-incremental/incbuild/ids"
)

// Manager is the scoped resource a cycle driver acquires before its first
// compile and completes on every exit path, successful or not.
type Manager interface {
	// Delete removes the class files backing products, as part of
	// pruning a source's previous outputs before recompiling it. A
	// deletion is provisional until Complete(true) commits it.
	Delete(products []ids.ProductId) error
	// Write records a freshly generated class file at path for product,
	// provisional until Complete(true) commits it.
	Write(product ids.ProductId, path string, contents []byte) error
	// Complete ends the scope. commit=true durably applies every
	// Delete/Write issued since the manager was acquired (constructed);
	// commit=false rolls all of them back, restoring the state observed at
	// acquisition. Complete must be
	// called exactly once; a second call returns a contract violation.
	Complete(commit bool) error
}

// action is one pending Delete or Write, recorded so Complete(false) can
// undo it.
type action struct {
	isDelete bool
	product  ids.ProductId
	path     string
	contents []byte
}

// InMemoryManager is a reference Manager backed by a plain map, suitable
// for tests and the demo CLI: there is no real filesystem, only a
// product-id-to-bytes table that Write/Delete stage changes against and
// Complete either commits or discards.
type InMemoryManager struct {
	mu        sync.Mutex
	committed map[ids.ProductId][]byte
	pending   []action
	done      bool
}

// NewInMemoryManager returns an acquired InMemoryManager seeded with an
// existing committed state (may be nil for a fresh store).
func NewInMemoryManager(seed map[ids.ProductId][]byte) *InMemoryManager {
	committed := make(map[ids.ProductId][]byte, len(seed))
	for k, v := range seed {
		committed[k] = v
	}
	return &InMemoryManager{committed: committed}
}

var _ Manager = (*InMemoryManager)(nil)

// Delete implements Manager.
func (m *InMemoryManager) Delete(products []ids.ProductId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return errs.NewContractViolation("classfile manager already completed")
	}
	for _, p := range products {
		m.pending = append(m.pending, action{isDelete: true, product: p})
	}
	return nil
}

// Write implements Manager.
func (m *InMemoryManager) Write(product ids.ProductId, path string, contents []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return errs.NewContractViolation("classfile manager already completed")
	}
	m.pending = append(m.pending, action{product: product, path: path, contents: contents})
	return nil
}

// Complete implements Manager.
func (m *InMemoryManager) Complete(commit bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return errs.NewContractViolation("classfile manager already completed")
	}
	m.done = true
	if commit {
		for _, a := range m.pending {
			if a.isDelete {
				delete(m.committed, a.product)
				continue
			}
			m.committed[a.product] = a.contents
		}
	}
	m.pending = nil
	return nil
}

// Snapshot returns a copy of the committed state, for test assertions.
func (m *InMemoryManager) Snapshot() map[ids.ProductId][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[ids.ProductId][]byte, len(m.committed))
	for k, v := range m.committed {
		out[k] = v
	}
	return out
}

// String implements fmt.Stringer, summarizing pending/committed counts for
// trace logging.
func (m *InMemoryManager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("classfile.InMemoryManager{committed=%d, pending=%d, done=%t}", len(m.committed), len(m.pending), m.done)
}
