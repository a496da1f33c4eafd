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

package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-incremental/incbuild/errs"
	"github.com/stretchr/testify/require"
)

func TestContractViolationAs(t *testing.T) {
	t.Parallel()

	err := errs.NewContractViolation("product %s reported for unstarted source", "x.class")
	var cv *errs.ContractViolation
	require.True(t, errors.As(err, &cv))
}

func TestCompilerFailureUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	wrapped := &errs.CompilerFailure{Cause: cause}

	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, fmt.Sprintf("compiler failure: %v", cause), wrapped.Error())
}

func TestCancellationWithAndWithoutReason(t *testing.T) {
	t.Parallel()

	require.Equal(t, "cancelled", (&errs.Cancellation{}).Error())
	require.Equal(t, "cancelled: user requested", (&errs.Cancellation{Reason: "user requested"}).Error())
}
