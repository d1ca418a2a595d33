// Copyright 2024 Sona Authors
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

package compilererr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/sona-project/sona/compilererr"
	"github.com/sona-project/sona/ir"
)

func TestIsMatchesWrappedBottom(t *testing.T) {
	b := compilererr.NewBailout("unsupported opcode", nil)
	wrapped := fmt.Errorf("compiling frame 3: %w", b)

	qt.Assert(t, qt.IsTrue(compilererr.Is(wrapped, compilererr.Bailout)))
	qt.Assert(t, qt.IsFalse(compilererr.Is(wrapped, compilererr.VerificationFailure)))
}

func TestVerificationFailureCarriesNodeAndInvariant(t *testing.T) {
	b := compilererr.NewVerificationFailure(ir.Invalid, "usages-reciprocity", "dangling usage")
	qt.Assert(t, qt.Equals(b.Code, compilererr.VerificationFailure))
	qt.Assert(t, qt.Equals(b.Invariant, "usages-reciprocity"))
	qt.Assert(t, qt.IsTrue(compilererr.Is(b, compilererr.VerificationFailure)))
}

func TestUnsupportedQueryWrapsCause(t *testing.T) {
	cause := fmt.Errorf("method resolution failed")
	b := compilererr.NewUnsupportedQuery("resolveMethod", cause)
	qt.Assert(t, qt.IsTrue(errors.Is(b, cause)))
}
