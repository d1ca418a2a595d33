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

package ir

import (
	"testing"

	"github.com/go-quicktest/qt"
)

func TestCanonicalGuardNodeUnwrapsNegationBeforeFolding(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())

	// !true, not negated at the guard itself: the unwrap loop flips
	// Negated to true and hands constBool the bare "true" constant, which
	// (negated) means the guard always fails, not never — exercising both
	// the unwrap and the always-fails normalization in one pass.
	trueC := g.NewConstantInt(1, false, 1)
	negated := g.NewLogicNegation(trueC.ID())
	guard := g.NewGuardNode(negated.ID(), false, start.ID(), "never")

	res := canonicalGuardNode(guard, tool)

	qt.Assert(t, qt.IsFalse(res.Dead))
	qt.Assert(t, qt.IsFalse(negated.IsAlive()))

	ex := guard.Extra.(*GuardExtra)
	qt.Assert(t, qt.IsFalse(ex.Negated))
	cond, ok := g.Node(guard.InputAt(0))
	qt.Assert(t, qt.IsTrue(ok))
	b, isConst := constBool(cond)
	qt.Assert(t, qt.IsTrue(isConst))
	qt.Assert(t, qt.IsFalse(b))
}

func TestCanonicalGuardNodeNeverFailsRewiresGuardUsagesToStart(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())

	trueC := g.NewConstantInt(1, false, 1)
	guard := g.NewGuardNode(trueC.ID(), false, start.ID(), "never")
	val := g.NewConstantInt(32, true, 7)
	pi := g.NewPi(val.ID(), guard.ID(), val.Stamp())

	res := canonicalGuardNode(guard, tool)

	qt.Assert(t, qt.IsTrue(res.Dead))
	qt.Assert(t, qt.Equals(pi.InputAt(1), start.id))
	qt.Assert(t, qt.DeepEquals(tool.worklist, []NodeID{pi.id}))
}

func TestCanonicalGuardNodeAlwaysFailsNormalizesToUnnegatedFalse(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())

	trueC := g.NewConstantInt(1, false, 1)
	guard := g.NewGuardNode(trueC.ID(), true, start.ID(), "always")

	res := canonicalGuardNode(guard, tool)

	qt.Assert(t, qt.IsFalse(res.Dead))
	qt.Assert(t, qt.IsFalse(res.Replacement.IsValid()))
	ex := guard.Extra.(*GuardExtra)
	qt.Assert(t, qt.IsFalse(ex.Negated))

	cond, ok := g.Node(guard.InputAt(0))
	qt.Assert(t, qt.IsTrue(ok))
	b, isConst := constBool(cond)
	qt.Assert(t, qt.IsTrue(isConst))
	qt.Assert(t, qt.IsFalse(b))

	// Re-running against the now-normalized guard is stable.
	res2 := canonicalGuardNode(guard, tool)
	qt.Assert(t, qt.IsFalse(res2.Dead))
	qt.Assert(t, qt.Equals(guard.InputAt(0), cond.id))
}

func TestCanonicalGuardNodeLeavesNonConstantConditionAlone(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())

	x := g.NewConstantInt(32, true, 5)
	y := g.NewConstantInt(32, true, 9)
	cmp := g.NewCompare(CompareEQ, x.ID(), y.ID())
	guard := g.NewGuardNode(cmp.ID(), false, start.ID(), "maybe")

	res := canonicalGuardNode(guard, tool)

	qt.Assert(t, qt.IsFalse(res.Dead))
	qt.Assert(t, qt.IsFalse(res.Replacement.IsValid()))
	qt.Assert(t, qt.Equals(guard.InputAt(0), cmp.id))
}
