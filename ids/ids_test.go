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

package ids_test

import (
	"testing"

	"github.com/go-incremental/incbuild/ids"
	"github.com/stretchr/testify/require"
)

func TestClassNameCompanion(t *testing.T) {
	t.Parallel()

	c := ids.ClassName("pkg.Foo")
	require.False(t, c.IsCompanion())

	companion := c.Companion()
	require.True(t, companion.IsCompanion())
	require.Equal(t, ids.ClassName("pkg.Foo$"), companion)
	require.Equal(t, c, companion.Base())

	// Companion is idempotent.
	require.Equal(t, companion, companion.Companion())
}

func TestClassNameBaseOnNonCompanion(t *testing.T) {
	t.Parallel()

	c := ids.ClassName("pkg.Foo")
	require.Equal(t, c, c.Base())
}
