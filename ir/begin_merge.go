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

func init() {
	RegisterClass(&Class{
		Kind:     KindBegin,
		Shape:    shapeBegin,
		Simplify: simplifyBegin,
	})
	RegisterClass(&Class{
		Kind:  KindMerge,
		Shape: shapeMerge,
	})
}

// BeginExtra holds an AbstractBegin's anchored usages: GuardNodes and
// ValueAnchors whose placement this begin establishes.
type BeginExtra struct {
	// Guards/Anchors are not stored here directly; a guard/anchor names
	// its begin via a UsageAnchor input edge on the begin itself, so
	// "the guards owned by this begin" is just
	// usagesWithUsageType(begin, UsageAnchor). BeginExtra exists so
	// Begin has a distinct, documented Extra type rather than nil, and
	// as a home for future begin-local bookkeeping.
}

// NewBegin creates a Begin node, the marker at one successor of a
// ControlSplit, or at the Start, or at a Merge.
func (g *Graph) NewBegin() *Node {
	n := g.newBareNode(KindBegin)
	n.Extra = &BeginExtra{}
	return g.MustNode(g.Add(n))
}

// MergeExtra tracks a Merge's forward-end predecessors in arrival order,
// which phi arity (invariant 6) is checked against.
type MergeExtra struct {
	Ends []NodeID
}

// NewMerge creates an AbstractMerge with no forward ends yet; callers
// attach ends with LinkMergeEnd.
func (g *Graph) NewMerge() *Node {
	n := g.newBareNode(KindMerge)
	n.Extra = &MergeExtra{}
	return g.MustNode(g.Add(n))
}

// LinkMergeEnd records that end's control flow joins at merge, appending
// it to the merge's forward-end order.
func (g *Graph) LinkMergeEnd(merge, end *Node) {
	end.AppendSuccessor(merge.id)
	ex := merge.Extra.(*MergeExtra)
	ex.Ends = append(ex.Ends, end.id)
}

// ForwardEnds returns merge's forward-end predecessors in join order.
func (merge *Node) ForwardEnds() []NodeID {
	switch ex := merge.Extra.(type) {
	case *MergeExtra:
		return append([]NodeID(nil), ex.Ends...)
	case *LoopBeginExtra:
		out := append([]NodeID{ex.ForwardEnd}, ex.LoopEnds...)
		return out
	default:
		return nil
	}
}

// usagesWithUsageType returns the subset of n's usages whose edge back
// to n carries the given UsageType.
func usagesWithUsageType(n *Node, usage UsageType) []NodeID {
	var out []NodeID
	for _, uid := range n.usages {
		u, ok := n.graph.Node(uid)
		if !ok {
			continue
		}
		for _, e := range u.inputs {
			if e.Target == n.id && e.Usage == usage {
				out = append(out, uid)
				break
			}
		}
	}
	return out
}

// isBeginNecessary reports whether an AbstractBegin must be kept (true)
// rather than removed (false): it is necessary iff its predecessor is a ControlSplit, or it is start, or
// it is a merge's... (a Begin never guards a Merge directly in this
// taxonomy — merges own phis, not begins — so the merge case reduces to
// "is this node itself the Start").
func isBeginNecessary(n *Node) bool {
	if n.id == n.graph.start {
		return true
	}
	pred, ok := n.graph.Node(n.pred)
	if !ok {
		return true // unlinked; treat conservatively as necessary
	}
	return pred.Class().Shape == shapeControlSplit
}

// simplifyBegin removes an unnecessary AbstractBegin: if the
// predecessor is not a split and this is not start, evacuate any
// guard/anchor usages to the nearest preceding begin and unlink.
func simplifyBegin(n *Node, tool SimplifierTool) {
	g := tool.Graph()
	if isBeginNecessary(n) {
		return
	}
	nearest := nearestPrecedingBegin(n)
	for _, usage := range append(usagesWithUsageType(n, UsageAnchor), usagesWithUsageType(n, UsageGuard)...) {
		u, ok := g.Node(usage)
		if !ok {
			continue
		}
		g.ReplaceFirstInput(u, n.id, nearest)
		tool.AddToWorkList(usage)
	}
	g.RemoveFixed(n)
}

// nearestPrecedingBegin walks control predecessors from n until it finds
// a live Begin (or Start, which is itself begin-shaped for this
// purpose), used for guard evacuation (invariant 3).
func nearestPrecedingBegin(n *Node) NodeID {
	cur := n.pred
	for {
		cn, ok := n.graph.Node(cur)
		if !ok {
			return n.graph.start
		}
		if cn.Kind() == KindBegin || cn.id == n.graph.start {
			return cn.id
		}
		cur = cn.pred
		if !cur.IsValid() {
			return n.graph.start
		}
	}
}

// detachMergeEnd removes exactly one forward-end edge (the one
// terminating at end) from merge, without affecting the merge's other
// live predecessors. If that was the merge's last forward end, the
// merge itself (and its phis) becomes dead and is deleted too.
func (g *Graph) detachMergeEnd(merge *Node, end NodeID) {
	switch ex := merge.Extra.(type) {
	case *MergeExtra:
		idx := indexOfEnd(ex.Ends, end)
		for i, e := range ex.Ends {
			if e == end {
				ex.Ends = append(ex.Ends[:i], ex.Ends[i+1:]...)
				break
			}
		}
		dropPhiInput(merge, idx)
		if len(ex.Ends) == 0 {
			for _, uid := range usagesWithUsageType(merge, UsageAssociation) {
				if u, ok := g.Node(uid); ok && u.Kind() == KindPhi {
					g.ReplaceAtUsages(u.id, Invalid)
					g.SafeDelete(u)
				}
			}
			g.ReplaceAtUsages(merge.id, Invalid)
			if merge.alive {
				g.SafeDelete(merge)
			}
		} else if len(ex.Ends) == 1 {
			g.ReduceTrivialMerge(merge)
		}
	default:
		panic(fmt.Sprintf("ir: detachMergeEnd on non-merge %s", merge.kind))
	}
}

func indexOfEnd(ends []NodeID, target NodeID) int {
	for i, e := range ends {
		if e == target {
			return i
		}
	}
	return -1
}

// dropPhiInput removes value input slot idx from every Phi hosted at
// merge, preserving invariant 6 (phi arity == number of forward ends)
// after a forward end is detached.
func dropPhiInput(merge *Node, idx int) {
	if idx < 0 {
		return
	}
	for _, uid := range usagesWithUsageType(merge, UsageAssociation) {
		u, ok := merge.graph.Node(uid)
		if !ok || u.Kind() != KindPhi {
			continue
		}
		valueIdx := 0
		for i := range u.inputs {
			if u.inputs[i].Usage != UsageValue {
				continue
			}
			if valueIdx == idx {
				if t, ok := merge.graph.Node(u.inputs[i].Target); ok {
					t.removeUsage(u.id)
				}
				u.inputs = append(u.inputs[:i], u.inputs[i+1:]...)
				break
			}
			valueIdx++
		}
	}
}

// ReduceTrivialMerge collapses a merge with exactly one remaining forward
// end: such a merge is not really a join point, so it is removed and its
// single predecessor spliced directly to its successor, and every phi at
// the merge is replaced by its sole remaining value input.
func (g *Graph) ReduceTrivialMerge(merge *Node) {
	ex, ok := merge.Extra.(*MergeExtra)
	if !ok || len(ex.Ends) != 1 {
		return
	}
	for _, uid := range usagesWithUsageType(merge, UsageAssociation) {
		u, ok := g.Node(uid)
		if !ok || u.Kind() != KindPhi {
			continue
		}
		if len(u.inputs) == 0 {
			continue
		}
		sole := Invalid
		for _, e := range u.inputs {
			if e.Usage == UsageValue {
				sole = e.Target
				break
			}
		}
		g.ReplaceAtUsages(u.id, sole)
		u.inputs = nil
		g.SafeDelete(u)
	}
	end, ok := g.Node(ex.Ends[0])
	if !ok {
		return
	}
	next := fixedSuccessorOf(merge)
	replacePredSuccessor(end, merge.id, next)
	merge.succs = nil
	g.ReplaceAtUsages(merge.id, Invalid)
	g.SafeDelete(merge)
}
