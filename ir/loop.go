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

func init() {
	RegisterClass(&Class{Kind: KindLoopBegin, Shape: shapeMerge})
	RegisterClass(&Class{Kind: KindLoopEnd, Shape: shapeFixedNoNext})
	RegisterClass(&Class{Kind: KindLoopExit, Shape: shapeBegin})
}

// LoopBeginExtra tracks a loop's single forward entry and its (possibly
// several, for irreducible-at-the-source multi-continue loops) backward
// LoopEnd predecessors.
type LoopBeginExtra struct {
	ForwardEnd NodeID
	LoopEnds   []NodeID
}

// NewLoopBegin creates a LoopBegin with no ends linked yet.
func (g *Graph) NewLoopBegin() *Node {
	n := g.newBareNode(KindLoopBegin)
	n.Extra = &LoopBeginExtra{}
	return g.MustNode(g.Add(n))
}

// LinkForwardEntry records the single forward (non-loop) predecessor of
// a LoopBegin.
func (g *Graph) LinkForwardEntry(loopBegin, entry *Node) {
	entry.AppendSuccessor(loopBegin.id)
	loopBegin.Extra.(*LoopBeginExtra).ForwardEnd = entry.id
}

// NewLoopEnd creates a LoopEnd terminator and links it as one of
// loopBegin's backward edges.
func (g *Graph) NewLoopEnd(loopBegin *Node) *Node {
	n := g.newBareNode(KindLoopEnd)
	id := g.Add(n)
	n = g.MustNode(id)
	n.AppendSuccessor(loopBegin.id)
	ex := loopBegin.Extra.(*LoopBeginExtra)
	ex.LoopEnds = append(ex.LoopEnds, n.id)
	return n
}

// ReduceDegenerateLoopBegin reduces a degenerate LoopBegin: a LoopBegin
// with no remaining LoopEnd
// (every back edge has been proven dead, e.g. the loop body always
// returns) is not a loop anymore; it reduces the same way a
// single-forward-end Merge would.
func (g *Graph) ReduceDegenerateLoopBegin(loopBegin *Node) {
	ex, ok := loopBegin.Extra.(*LoopBeginExtra)
	if !ok || len(ex.LoopEnds) != 0 {
		return
	}
	merged := &MergeExtra{Ends: []NodeID{ex.ForwardEnd}}
	loopBegin.kind = KindMerge
	loopBegin.Extra = merged
	g.ReduceTrivialMerge(loopBegin)
}

// ValueProxyExtra names the underlying value a ValueProxy re-exposes
// outside a loop, and the LoopExit it is pinned to.
type ValueProxyExtra struct {
	ProxyPoint NodeID // the LoopExit
}

func init() {
	RegisterClass(&Class{
		Kind:      KindValueProxy,
		Shape:     shapeFloating,
		Pure:      false, // proxy identity depends on the live loop structure, not just inputs
		StampFn:   stampOfInput0,
		Canonical: canonicalValueProxy,
	})
}

// NewValueProxy creates a ValueProxy wrapping value, pinned at exitPoint
// (a LoopExit).
func (g *Graph) NewValueProxy(value NodeID, exitPoint NodeID) *Node {
	n := g.newBareNode(KindValueProxy)
	n.AppendInput(value, UsageValue)
	n.Extra = &ValueProxyExtra{ProxyPoint: exitPoint}
	id := g.Add(n)
	return g.MustNode(id)
}

func canonicalValueProxy(n *Node, tool CanonicalizerTool) CanonResult {
	v, ok := tool.Graph().Node(n.InputAt(0))
	if !ok {
		return SelfResult
	}
	if v.Kind() == KindConstant {
		// A constant needs no loop-exit materialization: it is equally
		// valid to observe inside or outside the loop.
		return ReplaceWith(v.id)
	}
	return SelfResult
}
