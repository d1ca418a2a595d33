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

import "github.com/sona-project/sona/stamp"

// DefaultExceptionProbability is the estimate an InvokeWithException
// carries for its exception edge until profiling data says otherwise:
// exceptions are assumed overwhelmingly rare.
const DefaultExceptionProbability = 1e-5

func init() {
	RegisterClass(&Class{
		Kind:          KindInvoke,
		Shape:         shapeFixedWithNext,
		IsStateSplit:  true,
		TouchesMemory: true,
		CanDeopt:      true,
		IsSafepoint:   true,
		StampFn:       invokeStamp,
	})
	RegisterClass(&Class{
		Kind:          KindInvokeWithException,
		Shape:         shapeControlSplit,
		IsStateSplit:  true,
		TouchesMemory: true,
		CanDeopt:      true,
		IsSafepoint:   true,
		StampFn:       invokeStamp,
	})
	RegisterClass(&Class{
		Kind: KindCallTarget,
		Shape: shapeFloating,
		Pure:  false, // distinct call sites to the same method are not value-numbered together
	})
}

// CallTargetExtra names the callee and its static return stamp.
type CallTargetExtra struct {
	MethodName   string
	ReturnStamp  stamp.Stamp
	IsStatic     bool
}

func (e *CallTargetExtra) HashKey() string { return "" }

// NewCallTarget creates a floating CallTarget naming method, over the
// ordered receiver+argument values (receiver omitted for a static call).
func (g *Graph) NewCallTarget(method string, isStatic bool, returnStamp stamp.Stamp, args []NodeID) *Node {
	n := g.newBareNode(KindCallTarget)
	for _, a := range args {
		n.AppendInput(a, UsageValue)
	}
	n.Extra = &CallTargetExtra{MethodName: method, ReturnStamp: returnStamp, IsStatic: isStatic}
	id := g.Add(n)
	return g.MustNode(id)
}

func invokeStamp(n *Node) stamp.Stamp {
	ct, ok := n.graph.Node(n.InputAt(0))
	if !ok {
		return stamp.TheIllegal
	}
	ex, ok := ct.Extra.(*CallTargetExtra)
	if !ok || ex.ReturnStamp == nil {
		return stamp.TheVoid
	}
	return ex.ReturnStamp
}

// NewInvoke appends a non-exceptional call after anchor, naming its
// CallTarget (UsageAssociation) and the FrameState to deoptimize to
// (UsageState) if the call cannot complete.
func (g *Graph) NewInvoke(anchor *Node, target NodeID, state NodeID) *Node {
	n := g.newBareNode(KindInvoke)
	n.AppendInput(target, UsageAssociation)
	if state.IsValid() {
		n.AppendInput(state, UsageState)
	}
	id := g.Add(n)
	n = g.MustNode(id)
	n.stamp = invokeStamp(n)
	g.AddAfterFixed(anchor, n)
	return n
}

// NewInvokeWithException appends a call whose exceptional path is an
// explicit control-split successor, after anchor.
func (g *Graph) NewInvokeWithException(anchor *Node, target NodeID, state NodeID) *Node {
	n := g.newBareNode(KindInvokeWithException)
	n.AppendInput(target, UsageAssociation)
	if state.IsValid() {
		n.AppendInput(state, UsageState)
	}
	id := g.Add(n)
	n = g.MustNode(id)
	n.stamp = invokeStamp(n)
	g.AddAfterFixed(anchor, n)
	return n
}

// LinkInvokeSuccessors attaches normalBegin/exceptionBegin as an
// InvokeWithException's two ordered successors (index 0 = normal return,
// index 1 = exception dispatch).
func (g *Graph) LinkInvokeSuccessors(invoke *Node, normalBegin, exceptionBegin NodeID) {
	invoke.AppendSuccessor(normalBegin)
	invoke.AppendSuccessor(exceptionBegin)
}

// Intrinsify splices replacement into n's position in place of a call,
// following replacement's own shape: a fixed-with-next node takes over
// n's control-chain position; any other control sink (including an
// unconditional Deoptimize) keeps only itself, discarding every node n
// could otherwise have reached; a floating value node replaces n's
// result outright and n's own control position collapses away. For an
// InvokeWithException, the exception-dispatch successor is always
// discarded first, since a spliced-in intrinsic is assumed never to
// throw.
//
// A fixed or control-sink replacement must not already be linked into
// the chain at n's predecessor's former position; build it anchored
// right after n (e.g. g.NewDeoptimize(n, ...)) and detach it with
// Graph.DetachFixed first, since every anchor-taking constructor links
// its result into the chain immediately.
func (n *Node) Intrinsify(replacement *Node) {
	if n.kind != KindInvoke && n.kind != KindInvokeWithException {
		panic("ir: Intrinsify is only valid on Invoke/InvokeWithException")
	}
	g := n.graph
	if n.kind == KindInvokeWithException {
		g.deleteBranchFrom(n.succs[1])
		n.succs = n.succs[:1]
	}
	switch replacement.Class().Shape {
	case shapeFloating:
		g.ReplaceFixedWithFloating(n, replacement.id)
	case shapeFixedWithNext, shapeBegin:
		g.ReplaceFixedWithFixed(n, replacement)
	default:
		g.ReplaceFixedWithSink(n, replacement)
	}
}
