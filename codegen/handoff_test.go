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

package codegen_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/sona-project/sona/codegen"
	"github.com/sona-project/sona/ir"
)

func TestScheduleOrdersFloatingInputsBeforeFixedUser(t *testing.T) {
	g := ir.New(ir.FloatingGuards, true)
	start := g.MustNode(g.Start())
	begin := g.NewBegin()
	g.AddAfterFixed(start, begin)

	a := g.NewConstantInt(32, true, 1)
	b := g.NewConstantInt(32, true, 2)
	sum := g.NewBinary(ir.KindAdd, a.ID(), b.ID())
	ret := g.NewReturn(begin, sum.ID())

	handoffs := codegen.Schedule(g)

	index := make(map[ir.NodeID]int, len(handoffs))
	for i, h := range handoffs {
		index[h.ID] = i
	}

	if _, ok := index[sum.ID()]; !ok {
		t.Fatalf("sum node missing from schedule")
	}
	if _, ok := index[ret.ID()]; !ok {
		t.Fatalf("ret node missing from schedule")
	}
	qt.Assert(t, qt.IsTrue(index[sum.ID()] < index[ret.ID()]))

	retHandoff := handoffs[index[ret.ID()]]
	qt.Assert(t, qt.DeepEquals(retHandoff.Inputs, []ir.NodeID{sum.ID()}))
}

func TestScheduleVisitsBothControlSplitSuccessors(t *testing.T) {
	g := ir.New(ir.FloatingGuards, true)
	start := g.MustNode(g.Start())

	a := g.NewConstantInt(32, true, 1)
	b := g.NewConstantInt(32, true, 2)
	cond := g.NewCompare(ir.CompareLT, a.ID(), b.ID())
	split := g.NewIf(start, cond.ID(), 0.5)

	trueBegin := g.NewBegin()
	falseBegin := g.NewBegin()
	g.LinkIfSuccessor(split, trueBegin.ID(), falseBegin.ID())

	trueRet := g.NewReturn(trueBegin, a.ID())
	falseRet := g.NewReturn(falseBegin, b.ID())

	handoffs := codegen.Schedule(g)

	seen := make(map[ir.NodeID]bool, len(handoffs))
	for _, h := range handoffs {
		seen[h.ID] = true
	}
	qt.Assert(t, qt.IsTrue(seen[trueRet.ID()]))
	qt.Assert(t, qt.IsTrue(seen[falseRet.ID()]))
}
