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

import "fmt"

// fixedSuccessorOf returns the sole successor of a FixedWithNext node.
func fixedSuccessorOf(n *Node) NodeID {
	if len(n.succs) != 1 {
		return Invalid
	}
	return n.succs[0]
}

// RemoveFixed unlinks a FixedWithNext node n from the control chain,
// splicing its predecessor directly to its successor, and deletes n once
// its inputs are unlinked. n must have no usages of its own value (it is
// a pure-control node, e.g. a Membar with no observers) before removal.
func (g *Graph) RemoveFixed(n *Node) {
	next := fixedSuccessorOf(n)
	pred, ok := g.Node(n.pred)
	if !ok {
		panic(fmt.Sprintf("ir: RemoveFixed(%s): no predecessor", n.id))
	}
	replacePredSuccessor(pred, n.id, next)
	n.succs = nil
	g.ReplaceAtUsages(n.id, Invalid)
	g.SafeDelete(n)
}

// replacePredSuccessor repoints whichever of pred's successor slots held
// old to now hold new.
func replacePredSuccessor(pred *Node, old, new NodeID) {
	for i, s := range pred.succs {
		if s == old {
			pred.SetSuccessorAt(i, new)
			return
		}
	}
	panic(fmt.Sprintf("ir: %s is not a successor of %s", old, pred.id))
}

// ReplaceFixedWithFixed splices b into the control chain at a's position
// (a FixedWithNext node): b inherits a's predecessor link and a's single
// successor, a is deleted. b must already be live in the graph with no
// control links of its own.
func (g *Graph) ReplaceFixedWithFixed(a, b *Node) {
	next := fixedSuccessorOf(a)
	pred, ok := g.Node(a.pred)
	if !ok {
		panic(fmt.Sprintf("ir: ReplaceFixedWithFixed(%s): no predecessor", a.id))
	}
	replacePredSuccessor(pred, a.id, b.id)
	if next.IsValid() {
		b.AppendSuccessor(next)
	}
	g.ReplaceAtUsages(a.id, b.id)
	a.succs = nil
	g.SafeDelete(a)
}

// ReplaceFixedWithFloating removes fixed node a from the control chain
// (like RemoveFixed) and forwards any value-usages of a to the floating
// node value instead.
func (g *Graph) ReplaceFixedWithFloating(a *Node, value NodeID) {
	next := fixedSuccessorOf(a)
	pred, ok := g.Node(a.pred)
	if !ok {
		panic(fmt.Sprintf("ir: ReplaceFixedWithFloating(%s): no predecessor", a.id))
	}
	replacePredSuccessor(pred, a.id, next)
	a.succs = nil
	g.ReplaceAtUsages(a.id, value)
	g.SafeDelete(a)
}

// RemoveSplit collapses a ControlSplit down to its surviving successor,
// deleting the split and every other (now-unreachable) successor
// subtree. The split's condition input is only unlinked, not deleted.
func (g *Graph) RemoveSplit(split *Node, surviving NodeID) {
	pred, ok := g.Node(split.pred)
	if !ok {
		panic(fmt.Sprintf("ir: RemoveSplit(%s): no predecessor", split.id))
	}
	for _, s := range split.succs {
		if s != surviving {
			g.deleteBranchFrom(s)
		}
	}
	replacePredSuccessor(pred, split.id, surviving)
	split.succs = nil
	g.ReplaceAtUsages(split.id, Invalid)
	for _, e := range split.inputs {
		if in, ok := g.Node(e.Target); ok {
			in.removeUsage(split.id)
		}
	}
	split.inputs = nil
	g.SafeDelete(split)
}

// ReplaceFixedWithSink splices a control-sink replacement (no successor
// of its own, e.g. Deoptimize/Return/Unwind) into a's position: control
// never returns past replacement, so every node a used to reach is
// deleted along with a itself.
func (g *Graph) ReplaceFixedWithSink(a, replacement *Node) {
	pred, ok := g.Node(a.pred)
	if !ok {
		panic(fmt.Sprintf("ir: ReplaceFixedWithSink(%s): no predecessor", a.id))
	}
	for _, s := range a.succs {
		g.deleteBranchFrom(s)
	}
	a.succs = nil
	replacePredSuccessor(pred, a.id, replacement.id)
	g.ReplaceAtUsages(a.id, Invalid)
	g.SafeDelete(a)
}

// DetachFixed unlinks a fixed node from wherever it currently sits in the
// control chain, restoring its predecessor's successor slot to n's own
// former successor (or to Invalid, if n had none) and clearing n's own
// control links. Every anchor-taking constructor (NewMembar, NewReturn,
// ...) links its result into the chain immediately, so building a
// free-standing replacement for Intrinsify means constructing it
// anchored right after the node being replaced and then detaching it
// before splicing it in for real.
func (g *Graph) DetachFixed(n *Node) {
	next := Invalid
	if len(n.succs) > 0 {
		next = n.succs[0]
	}
	if pred, ok := g.Node(n.pred); ok {
		replacePredSuccessor(pred, n.id, next)
	}
	n.succs = nil
	n.pred = Invalid
}

// DeleteBranch deletes every fixed node reachable from root along control
// edges, unlinking it from control flow first. Exposed for the canon
// package's SimplifierTool.DeleteBranch; root must
// already be unreachable from live control flow (callers typically call
// this right after detaching root from its former predecessor).
func (g *Graph) DeleteBranch(root NodeID) { g.deleteBranchFrom(root) }

// deleteBranchFrom deletes every fixed node reachable from root along
// control-successor edges (a post-order walk so each node's own
// successors, which depend on it, are cleared first). The input edges of
// each deleted node are unlinked; floating inputs left without usages
// are not deleted.
func (g *Graph) deleteBranchFrom(root NodeID) {
	n, ok := g.Node(root)
	if !ok {
		return
	}
	if n.Kind() == KindMerge || n.Kind() == KindLoopBegin {
		// A merge reachable from a dead branch may still have other
		// live forward-end predecessors; deleting it here would corrupt
		// invariant 2 for those. A dead predecessor detaches its own
		// forward edge in the successor loop below; reached here as
		// root, the merge names no end of its own to detach.
		g.detachMergeEnd(n, root)
		return
	}
	succs := append([]NodeID(nil), n.succs...)
	n.succs = nil
	for _, s := range succs {
		if sn, ok := g.Node(s); ok && sn.Kind() == KindMerge {
			g.detachMergeEnd(sn, n.id)
			continue
		}
		g.deleteBranchFrom(s)
	}
	inputs := append([]Edge(nil), n.inputs...)
	n.inputs = nil
	for _, e := range inputs {
		if in, ok := g.Node(e.Target); ok {
			in.removeUsage(n.id)
		}
	}
	g.ReplaceAtUsages(n.id, Invalid)
	if n.alive {
		g.SafeDelete(n)
	}
}

// AddAfterFixed inserts newNode immediately after anchor in the control
// chain: anchor's old successor becomes newNode's successor, and
// newNode becomes anchor's successor.
func (g *Graph) AddAfterFixed(anchor, newNode *Node) {
	old := fixedSuccessorOf(anchor)
	if old.IsValid() {
		newNode.AppendSuccessor(old)
	}
	if len(anchor.succs) == 0 {
		anchor.AppendSuccessor(newNode.id)
	} else {
		anchor.SetSuccessorAt(0, newNode.id)
	}
}

// AddBeforeFixed inserts newNode immediately before anchor: anchor's
// predecessor now points at newNode, and newNode's successor is anchor
//.
func (g *Graph) AddBeforeFixed(anchor, newNode *Node) {
	pred, ok := g.Node(anchor.pred)
	if !ok {
		panic(fmt.Sprintf("ir: AddBeforeFixed(%s): no predecessor", anchor.id))
	}
	replacePredSuccessor(pred, anchor.id, newNode.id)
	newNode.AppendSuccessor(anchor.id)
}
