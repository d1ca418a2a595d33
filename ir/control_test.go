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

func TestHoistCrossIfPromotesMoreLikelyDisjointIf(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())

	x := g.NewConstantInt(32, true, 99)
	one := g.NewConstantInt(32, true, 1)
	two := g.NewConstantInt(32, true, 2)
	c1 := g.NewCompare(CompareEQ, x.ID(), one.ID())
	c2 := g.NewCompare(CompareEQ, x.ID(), two.ID())

	if1 := g.NewIf(start, c1.ID(), 0.1)
	aBegin := g.NewBegin()
	midBegin := g.NewBegin()
	g.LinkIfSuccessor(if1, aBegin.ID(), midBegin.ID())
	aRet := g.NewReturn(aBegin, Invalid)

	if2 := g.NewIf(midBegin, c2.ID(), 0.9)
	yBegin := g.NewBegin()
	zBegin := g.NewBegin()
	g.LinkIfSuccessor(if2, yBegin.ID(), zBegin.ID())
	yRet := g.NewReturn(yBegin, Invalid)
	zRet := g.NewReturn(zBegin, Invalid)

	qt.Assert(t, qt.IsTrue(hoistCrossIf(if1, tool)))

	qt.Assert(t, qt.Equals(start.Successors()[0], if2.id))
	qt.Assert(t, qt.Equals(if2.Successors()[0], yBegin.id))
	qt.Assert(t, qt.Equals(if2.Successors()[1], midBegin.id))
	qt.Assert(t, qt.Equals(midBegin.Successors()[0], if1.id))
	qt.Assert(t, qt.Equals(if1.Successors()[0], aBegin.id))
	qt.Assert(t, qt.Equals(if1.Successors()[1], zBegin.id))

	ex1 := if1.Extra.(*IfExtra)
	qt.Assert(t, qt.IsTrue(ex1.HoistConsidered))

	qt.Assert(t, qt.IsTrue(aRet.IsAlive()))
	qt.Assert(t, qt.IsTrue(yRet.IsAlive()))
	qt.Assert(t, qt.IsTrue(zRet.IsAlive()))
	qt.Assert(t, qt.IsNil(g.Verify()))
}

func TestHoistCrossIfDeclinesWhenNotProfitable(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())

	x := g.NewConstantInt(32, true, 99)
	one := g.NewConstantInt(32, true, 1)
	two := g.NewConstantInt(32, true, 2)
	c1 := g.NewCompare(CompareEQ, x.ID(), one.ID())
	c2 := g.NewCompare(CompareEQ, x.ID(), two.ID())

	if1 := g.NewIf(start, c1.ID(), 0.9)
	aBegin := g.NewBegin()
	midBegin := g.NewBegin()
	g.LinkIfSuccessor(if1, aBegin.ID(), midBegin.ID())
	_ = g.NewReturn(aBegin, Invalid)

	if2 := g.NewIf(midBegin, c2.ID(), 0.1)
	yBegin := g.NewBegin()
	zBegin := g.NewBegin()
	g.LinkIfSuccessor(if2, yBegin.ID(), zBegin.ID())
	_ = g.NewReturn(yBegin, Invalid)
	_ = g.NewReturn(zBegin, Invalid)

	qt.Assert(t, qt.IsFalse(hoistCrossIf(if1, tool)))
}

func TestHoistCrossIfRequiresDisjointConditions(t *testing.T) {
	g := newTestGraph()
	tool := &testTool{g: g}
	start := g.MustNode(g.Start())

	x := g.NewConstantInt(32, true, 99)
	y := g.NewConstantInt(32, true, 7)
	one := g.NewConstantInt(32, true, 1)
	c1 := g.NewCompare(CompareEQ, x.ID(), one.ID())
	c2 := g.NewCompare(CompareEQ, y.ID(), one.ID())

	if1 := g.NewIf(start, c1.ID(), 0.1)
	aBegin := g.NewBegin()
	midBegin := g.NewBegin()
	g.LinkIfSuccessor(if1, aBegin.ID(), midBegin.ID())
	_ = g.NewReturn(aBegin, Invalid)

	if2 := g.NewIf(midBegin, c2.ID(), 0.9)
	yBegin := g.NewBegin()
	zBegin := g.NewBegin()
	g.LinkIfSuccessor(if2, yBegin.ID(), zBegin.ID())
	_ = g.NewReturn(yBegin, Invalid)
	_ = g.NewReturn(zBegin, Invalid)

	qt.Assert(t, qt.IsFalse(hoistCrossIf(if1, tool)))
}
