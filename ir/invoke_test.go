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

	"github.com/sona-project/sona/stamp"
)

func TestIntrinsifyReplacesWithFloatingValue(t *testing.T) {
	g := newTestGraph()
	start := g.MustNode(g.Start())

	target := g.NewCallTarget("len", true, stamp.ForInteger(32, true, -1<<31, 1<<31-1), nil)
	invoke := g.NewInvoke(start, target.ID(), Invalid)
	ret := g.NewReturn(invoke, invoke.ID())

	replacement := g.NewConstantInt(32, true, 0)
	invoke.Intrinsify(replacement)

	qt.Assert(t, qt.IsFalse(invoke.IsAlive()))
	qt.Assert(t, qt.Equals(ret.InputAt(0), replacement.ID()))
	qt.Assert(t, qt.Equals(start.Successors()[0], ret.id))
	qt.Assert(t, qt.IsNil(g.Verify()))
}

func TestIntrinsifyReplacesWithFixedNode(t *testing.T) {
	g := newTestGraph()
	start := g.MustNode(g.Start())

	target := g.NewCallTarget("noop", true, nil, nil)
	invoke := g.NewInvoke(start, target.ID(), Invalid)
	ret := g.NewReturn(invoke, Invalid)

	replacement := g.NewMembar(invoke)
	g.DetachFixed(replacement)
	invoke.Intrinsify(replacement)

	qt.Assert(t, qt.IsFalse(invoke.IsAlive()))
	qt.Assert(t, qt.Equals(start.Successors()[0], replacement.id))
	qt.Assert(t, qt.Equals(replacement.Successors()[0], ret.id))
	qt.Assert(t, qt.IsNil(g.Verify()))
}

func TestIntrinsifyWithExceptionDiscardsExceptionEdgeAndReplacesWithSink(t *testing.T) {
	g := newTestGraph()
	start := g.MustNode(g.Start())

	target := g.NewCallTarget("risky", true, nil, nil)
	invoke := g.NewInvokeWithException(start, target.ID(), Invalid)

	normalBegin := g.NewBegin()
	exceptionBegin := g.NewBegin()
	g.LinkInvokeSuccessors(invoke, normalBegin.ID(), exceptionBegin.ID())
	normalRet := g.NewReturn(normalBegin, Invalid)
	excUnwind := g.NewUnwind(exceptionBegin, g.NewConstantInt(32, true, 1).ID())

	replacement := g.NewDeoptimize(normalBegin, Invalid, "intrinsic never throws")
	g.DetachFixed(replacement)
	invoke.Intrinsify(replacement)

	qt.Assert(t, qt.IsFalse(invoke.IsAlive()))
	qt.Assert(t, qt.IsFalse(normalBegin.IsAlive()))
	qt.Assert(t, qt.IsFalse(normalRet.IsAlive()))
	qt.Assert(t, qt.IsFalse(exceptionBegin.IsAlive()))
	qt.Assert(t, qt.IsFalse(excUnwind.IsAlive()))
	qt.Assert(t, qt.Equals(start.Successors()[0], replacement.id))
	qt.Assert(t, qt.Equals(len(replacement.Successors()), 0))
	qt.Assert(t, qt.IsNil(g.Verify()))
}
