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

func newTestGraph() *Graph {
	return New(FloatingGuards, true)
}

func TestNewGraphHasLiveStart(t *testing.T) {
	g := newTestGraph()
	start, ok := g.Node(g.Start())
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(start.Kind(), KindStart))
	qt.Assert(t, qt.IsNil(g.Verify()))
}

func TestConstantUniquing(t *testing.T) {
	g := newTestGraph()
	a := g.NewConstantInt(32, true, 7)
	b := g.NewConstantInt(32, true, 7)
	qt.Assert(t, qt.Equals(a.ID(), b.ID()))
	c := g.NewConstantInt(32, true, 8)
	qt.Assert(t, qt.IsTrue(c.ID() != a.ID()))
}

func TestAddConstantFold(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	a := g.NewConstantInt(32, true, 2)
	b := g.NewConstantInt(32, true, 3)
	sum := g.NewBinary(KindAdd, a.ID(), b.ID())
	res := canonicalAdd(sum, tool)
	qt.Assert(t, qt.IsFalse(res.Self))
	qt.Assert(t, qt.IsFalse(res.Dead))
	folded := g.MustNode(res.Replacement)
	qt.Assert(t, qt.Equals(folded.Kind(), KindConstant))
	s := folded.Stamp().(interface{ IsConstant() bool })
	qt.Assert(t, qt.IsTrue(s.IsConstant()))
}

func TestAddIdentityFold(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	x := g.NewConstantInt(32, true, 9)
	zero := g.NewConstantInt(32, true, 0)
	sum := g.NewBinary(KindAdd, x.ID(), zero.ID())
	res := canonicalAdd(sum, tool)
	qt.Assert(t, qt.Equals(res.Replacement, x.ID()))
}

func TestIfConstantConditionCollapses(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())

	trueC := g.NewConstantInt(1, false, 1)
	split := g.NewIf(start, trueC.ID(), 0.5)
	tBegin := g.NewBegin()
	fBegin := g.NewBegin()
	g.LinkIfSuccessor(split, tBegin.ID(), fBegin.ID())
	tRet := g.NewReturn(tBegin, Invalid)
	_ = g.NewReturn(fBegin, Invalid)

	simplifyIf(split, tool)

	qt.Assert(t, qt.IsFalse(split.IsAlive()))
	qt.Assert(t, qt.IsTrue(tBegin.IsAlive()))
	qt.Assert(t, qt.IsTrue(tRet.IsAlive()))
	qt.Assert(t, qt.IsFalse(fBegin.IsAlive()))
	qt.Assert(t, qt.IsNil(g.Verify()))
}

func TestFixedGuardConstantTrueRemoved(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())
	trueC := g.NewConstantInt(1, false, 1)
	guard := g.NewFixedGuard(start, trueC.ID(), false, "never")
	ret := g.NewReturn(guard, Invalid)

	simplifyFixedGuard(guard, tool)

	qt.Assert(t, qt.IsFalse(guard.IsAlive()))
	qt.Assert(t, qt.IsTrue(ret.IsAlive()))
	qt.Assert(t, qt.Equals(ret.Predecessor(), g.start))
}

func TestFixedGuardConstantFalseDeoptimizes(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())
	falseC := g.NewConstantInt(1, false, 0)
	guard := g.NewFixedGuard(start, falseC.ID(), false, "always")
	_ = g.NewReturn(guard, Invalid)

	simplifyFixedGuard(guard, tool)

	qt.Assert(t, qt.IsFalse(guard.IsAlive()))
	next, ok := g.Node(fixedSuccessorOf(start))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(next.Kind(), KindDeoptimize))
}

func TestFixedGuardNegationIsUnwrapped(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())
	falseC := g.NewConstantInt(1, false, 0)
	neg := g.NewLogicNegation(falseC.ID())
	guard := g.NewFixedGuard(start, neg.ID(), false, "r")
	_ = g.NewReturn(guard, Invalid)

	simplifyFixedGuard(guard, tool)

	// !false == true, so the guard can never fail and is simply removed.
	qt.Assert(t, qt.IsFalse(guard.IsAlive()))
}

func TestPhiReducesWhenAllInputsEqual(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())
	merge := g.NewMerge()
	b1 := g.NewBegin()
	b2 := g.NewBegin()
	g.AddAfterFixed(start, b1)
	_ = b2
	g.LinkMergeEnd(merge, b1)
	g.LinkMergeEnd(merge, b2)

	val := g.NewConstantInt(32, true, 42)
	phi := g.NewPhi(merge, []NodeID{val.ID(), val.ID()})

	res := canonicalPhi(phi, tool)
	qt.Assert(t, qt.Equals(res.Replacement, val.ID()))
}

func TestValueProxyConstantCollapses(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	val := g.NewConstantInt(32, true, 5)
	proxy := g.NewValueProxy(val.ID(), Invalid)
	res := canonicalValueProxy(proxy, tool)
	qt.Assert(t, qt.Equals(res.Replacement, val.ID()))
}

func TestReduceTrivialMerge(t *testing.T) {
	g := newTestGraph()
	start := g.MustNode(g.Start())
	merge := g.NewMerge()
	g.LinkMergeEnd(merge, start)
	ret := g.NewReturn(merge, Invalid)

	g.ReduceTrivialMerge(merge)

	qt.Assert(t, qt.IsFalse(merge.IsAlive()))
	qt.Assert(t, qt.IsTrue(ret.IsAlive()))
	qt.Assert(t, qt.Equals(ret.Predecessor(), g.start))
}

func TestSortedUsageIDsDeduplicates(t *testing.T) {
	g := newTestGraph()
	x := g.NewConstantInt(32, true, 1)
	y := g.NewConstantInt(32, true, 2)
	// Add(x, x) records x's usage twice; the sorted list holds it once.
	_ = g.NewBinary(KindAdd, x.ID(), x.ID())
	_ = g.NewBinary(KindMul, x.ID(), y.ID())
	ids := SortedUsageIDs(x)
	for i := 1; i < len(ids); i++ {
		qt.Assert(t, qt.IsTrue(ids[i-1] < ids[i]))
	}
}

// testTool is a minimal CanonicalizerTool/SimplifierTool good enough for
// unit-testing individual rewrite hooks directly, without the full
// work-list engine (component C4, built separately).
type testTool struct {
	g        *Graph
	worklist []NodeID
}

func (t *testTool) Graph() *Graph                      { return t.g }
func (t *testTool) AddToWorkList(ids ...NodeID)         { t.worklist = append(t.worklist, ids...) }
func (t *testTool) DeleteBranch(fixed NodeID)           { t.g.deleteBranchFrom(fixed) }
func (t *testTool) RemoveIfUnused(floating NodeID) {
	if n, ok := t.g.Node(floating); ok {
		t.g.RemoveIfUnused(n)
	}
}
func (t *testTool) AllUsagesAvailable() bool { return true }

var _ SimplifierTool = (*testTool)(nil)
