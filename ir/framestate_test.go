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

func TestNewFrameStateFullSeparatesLocalsStackLocks(t *testing.T) {
	g := newTestGraph()

	l0 := g.NewConstantInt(32, true, 1)
	s0 := g.NewConstantInt(32, true, 2)
	s1 := g.NewConstantInt(32, true, 3)
	lock0 := g.NewConstantInt(32, true, 4)

	fs := g.NewFrameStateFull(FrameStateConfig{
		Method: "Foo.bar",
		BCI:    7,
		Locals: []NodeID{l0.ID()},
		Stack:  []NodeID{s0.ID(), s1.ID()},
		Locks:  []NodeID{lock0.ID()},
	})

	qt.Assert(t, qt.DeepEquals(fs.Locals(), []NodeID{l0.ID()}))
	qt.Assert(t, qt.DeepEquals(fs.Stack(), []NodeID{s0.ID(), s1.ID()}))
	qt.Assert(t, qt.DeepEquals(fs.Locks(), []NodeID{lock0.ID()}))
	_, hasOuter := fs.OuterFrameState()
	qt.Assert(t, qt.IsFalse(hasOuter))

	ex := fs.Extra.(*FrameStateExtra)
	qt.Assert(t, qt.Equals(ex.Method, "Foo.bar"))
	qt.Assert(t, qt.Equals(ex.BCI, 7))
	qt.Assert(t, qt.IsNil(g.Verify()))
}

func TestFrameStateOuterChain(t *testing.T) {
	g := newTestGraph()

	outer := g.NewFrameStateFull(FrameStateConfig{BCI: BeforeBCI})
	inner := g.NewFrameStateFull(FrameStateConfig{BCI: 3, OuterFrameState: outer.ID()})

	got, ok := inner.OuterFrameState()
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got, outer.ID()))

	_, outerHasOuter := outer.OuterFrameState()
	qt.Assert(t, qt.IsFalse(outerHasOuter))
	qt.Assert(t, qt.IsNil(g.Verify()))
}

func TestDuplicateCarriesOuterFrameStateAndVirtualObjectMappings(t *testing.T) {
	g := newTestGraph()

	outer := g.NewFrameStateFull(FrameStateConfig{BCI: BeforeBCI})
	vobj := g.NewConstantInt(32, true, 42)
	local := g.NewConstantInt(32, true, 1)
	fs := g.NewFrameStateFull(FrameStateConfig{
		BCI:                   5,
		Locals:                []NodeID{local.ID()},
		OuterFrameState:       outer.ID(),
		VirtualObjectMappings: []NodeID{vobj.ID()},
	})

	dup := g.Duplicate(fs)
	qt.Assert(t, qt.DeepEquals(dup.Locals(), []NodeID{local.ID()}))
	qt.Assert(t, qt.DeepEquals(dup.VirtualObjectMappings(), []NodeID{vobj.ID()}))
	got, ok := dup.OuterFrameState()
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got, outer.ID()))
}

func TestDuplicateModifiedPopsAndPushesStack(t *testing.T) {
	g := newTestGraph()

	argA := g.NewConstantInt(32, true, 1)
	argB := g.NewConstantInt(32, true, 2)
	fs := g.NewFrameStateFull(FrameStateConfig{
		BCI:   10,
		Stack: []NodeID{argA.ID(), argB.ID()},
	})

	result := g.NewConstantInt(32, true, 99)
	dup := g.DuplicateModified(fs, 13, false, PopSingle, result.ID())

	ex := dup.Extra.(*FrameStateExtra)
	qt.Assert(t, qt.Equals(ex.BCI, 13))
	qt.Assert(t, qt.IsFalse(ex.RethrowException))
	qt.Assert(t, qt.DeepEquals(dup.Stack(), []NodeID{argA.ID(), result.ID()}))
}

func TestDuplicateModifiedCanMarkRethrow(t *testing.T) {
	g := newTestGraph()

	fs := g.NewFrameStateFull(FrameStateConfig{BCI: 4})
	dup := g.DuplicateModified(fs, AfterExceptionBCI, true, PopNone)

	ex := dup.Extra.(*FrameStateExtra)
	qt.Assert(t, qt.Equals(ex.BCI, AfterExceptionBCI))
	qt.Assert(t, qt.IsTrue(ex.RethrowException))
	qt.Assert(t, qt.Equals(len(dup.Stack()), 0))
}
