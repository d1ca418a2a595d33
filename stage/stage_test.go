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

package stage_test

import (
	"context"
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/sona-project/sona/canon"
	"github.com/sona-project/sona/ir"
	"github.com/sona-project/sona/stage"
)

func newTestGraph() *ir.Graph {
	return ir.New(ir.FloatingGuards, true)
}

func TestAdvanceLowersFloatingGuardToFixed(t *testing.T) {
	g := newTestGraph()
	start := g.MustNode(g.Start())
	begin := g.NewBegin()
	g.AddAfterFixed(start, begin)
	merge := g.NewMerge()
	g.LinkMergeEnd(merge, begin)
	b2 := g.NewBegin()
	g.LinkMergeEnd(merge, b2)

	zero := g.NewConstantInt(1, false, 0)
	one := g.NewConstantInt(1, false, 1)
	// A non-foldable, non-constant condition: a Phi whose two arriving
	// values disagree, so canonicalGuardNode's constant-fold check never
	// fires and the GuardNode survives to be lowered by the stage.
	cond := g.NewPhi(merge, []ir.NodeID{zero.ID(), one.ID()})
	guard := g.NewGuardNode(cond.ID(), false, merge.ID(), "bounds-check")
	pi := g.NewPi(cond.ID(), guard.ID(), cond.Stamp())
	ret := g.NewReturn(merge, pi.ID())

	e := canon.NewEngine(g)
	qt.Assert(t, qt.IsNil(e.Run(context.Background())))
	qt.Assert(t, qt.IsTrue(guard.IsAlive()))

	qt.Assert(t, qt.Equals(g.GuardsStage(), ir.FloatingGuards))
	err := stage.Advance(context.Background(), g, e, ir.FixedDeopts)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(g.GuardsStage(), ir.FixedDeopts))

	qt.Assert(t, qt.IsFalse(guard.IsAlive()))
	qt.Assert(t, qt.IsNil(g.Verify()))
	_ = ret
	_ = pi
}

func TestAdvanceRejectsBackwardTransition(t *testing.T) {
	g := newTestGraph()
	e := canon.NewEngine(g)
	err := stage.Advance(context.Background(), g, e, ir.FloatingGuards)
	qt.Assert(t, qt.IsNotNil(err))
}

func TestAdvanceToAfterFSAAttachesFrameState(t *testing.T) {
	g := newTestGraph()
	start := g.MustNode(g.Start())

	local := g.NewConstantInt(32, true, 5)
	fs := g.NewFrameState(0, []ir.NodeID{local.ID()}, nil)
	inf := g.NewFullInfopoint(start, fs.ID())

	// A condition the canonicalizer cannot fold (it folds only equality
	// compares), so the guard survives to AFTER_FSA.
	limit := g.NewConstantInt(32, true, 9)
	cond := g.NewCompare(ir.CompareLT, local.ID(), limit.ID())
	guard := g.NewFixedGuard(inf, cond.ID(), false, "bounds-check")
	_ = g.NewReturn(guard, ir.Invalid)

	e := canon.NewEngine(g)
	qt.Assert(t, qt.IsNil(e.Run(context.Background())))
	qt.Assert(t, qt.IsNil(stage.Advance(context.Background(), g, e, ir.FixedDeopts)))
	qt.Assert(t, qt.IsNil(stage.Advance(context.Background(), g, e, ir.AfterFSA)))

	qt.Assert(t, qt.IsTrue(guard.IsAlive()))
	states := 0
	for _, in := range guard.Inputs() {
		if in.Usage == ir.UsageState {
			states++
		}
	}
	qt.Assert(t, qt.Equals(states, 1))
	qt.Assert(t, qt.IsNil(g.Verify()))
}

func TestStripValueProxiesRewritesToUnderlyingValue(t *testing.T) {
	g := newTestGraph()
	val := g.NewConstantInt(32, true, 11)
	proxy := g.NewValueProxy(val.ID(), ir.Invalid)
	start := g.MustNode(g.Start())
	ret := g.NewReturn(start, proxy.ID())

	e := canon.NewEngine(g)
	qt.Assert(t, qt.IsNil(e.Run(context.Background())))
	qt.Assert(t, qt.IsTrue(g.HasValueProxies()))

	stage.StripValueProxies(g, e)

	qt.Assert(t, qt.IsFalse(g.HasValueProxies()))
	qt.Assert(t, qt.Equals(ret.InputAt(0), val.ID()))
}
