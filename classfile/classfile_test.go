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

package classfile_test

import (
	"testing"

	"github.com/go-incremental/incbuild/classfile"
	"github.com/go-incremental/incbuild/ids"
	"github.com/stretchr/testify/require"
)

func TestCompleteTrueCommitsWritesAndDeletes(t *testing.T) {
	t.Parallel()
	m := classfile.NewInMemoryManager(map[ids.ProductId][]byte{"out/Old.class": []byte("old")})

	require.NoError(t, m.Delete([]ids.ProductId{"out/Old.class"}))
	require.NoError(t, m.Write("out/New.class", "/tmp/out/New.class", []byte("new")))
	require.NoError(t, m.Complete(true))

	snap := m.Snapshot()
	require.NotContains(t, snap, ids.ProductId("out/Old.class"))
	require.Equal(t, []byte("new"), snap["out/New.class"])
}

func TestCompleteFalseDiscardsPendingChanges(t *testing.T) {
	t.Parallel()
	m := classfile.NewInMemoryManager(map[ids.ProductId][]byte{"out/Old.class": []byte("old")})

	require.NoError(t, m.Delete([]ids.ProductId{"out/Old.class"}))
	require.NoError(t, m.Write("out/New.class", "/tmp/out/New.class", []byte("new")))
	require.NoError(t, m.Complete(false))

	snap := m.Snapshot()
	require.Equal(t, []byte("old"), snap["out/Old.class"])
	require.NotContains(t, snap, ids.ProductId("out/New.class"))
}

func TestSecondCompleteIsContractViolation(t *testing.T) {
	t.Parallel()
	m := classfile.NewInMemoryManager(nil)
	require.NoError(t, m.Complete(true))
	require.Error(t, m.Complete(true))
}

func TestWriteAfterCompleteIsContractViolation(t *testing.T) {
	t.Parallel()
	m := classfile.NewInMemoryManager(nil)
	require.NoError(t, m.Complete(true))
	require.Error(t, m.Write("out/Late.class", "/tmp/out/Late.class", []byte("x")))
}
