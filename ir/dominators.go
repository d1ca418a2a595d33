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

// Dominators computes the immediate-dominator relation over g's fixed
// control-flow skeleton (the supplemented feature invariant 8 needs: "a
// GuardNode's guarding-node input must dominate every use of the guard").
// Grounded on the classic Cooper/Harvey/Kennedy iterative algorithm,
// which tolerates the back-edges a LoopEnd introduces without requiring
// a separate loop-nesting pass first.
type Dominators struct {
	g    *Graph
	idom map[NodeID]NodeID
	rpo  []NodeID
	pos  map[NodeID]int
}

// ComputeDominators walks every fixed node reachable from start,
// following control successors (and, for a Merge/LoopBegin, every
// forward end as a predecessor), and returns the resulting Dominators.
func ComputeDominators(g *Graph) *Dominators {
	order := reversePostorder(g)
	pos := make(map[NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	idom := map[NodeID]NodeID{g.start: g.start}
	changed := true
	for changed {
		changed = false
		for i := len(order) - 1; i >= 0; i-- {
			id := order[i]
			if id == g.start {
				continue
			}
			preds := controlPreds(g, id)
			var newIdom NodeID
			first := true
			for _, p := range preds {
				if _, ok := idom[p]; !ok {
					continue
				}
				if first {
					newIdom = p
					first = false
					continue
				}
				newIdom = intersect(idom, pos, newIdom, p)
			}
			if first {
				continue
			}
			if old, ok := idom[id]; !ok || old != newIdom {
				idom[id] = newIdom
				changed = true
			}
		}
	}
	return &Dominators{g: g, idom: idom, rpo: order, pos: pos}
}

func intersect(idom map[NodeID]NodeID, pos map[NodeID]int, a, b NodeID) NodeID {
	for a != b {
		for pos[a] > pos[b] {
			a = idom[a]
		}
		for pos[b] > pos[a] {
			b = idom[b]
		}
	}
	return a
}

// reversePostorder walks the fixed control graph from start.
func reversePostorder(g *Graph) []NodeID {
	visited := make(map[NodeID]bool)
	var post []NodeID
	var visit func(NodeID)
	visit = func(id NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		n, ok := g.Node(id)
		if !ok {
			return
		}
		for _, s := range n.succs {
			visit(s)
		}
		post = append(post, id)
	}
	visit(g.start)
	out := make([]NodeID, len(post))
	for i, id := range post {
		out[len(post)-1-i] = id
	}
	return out
}

// controlPreds returns id's control predecessors: its sole pred for an
// ordinary fixed node, or every live forward end for a Merge/LoopBegin.
func controlPreds(g *Graph, id NodeID) []NodeID {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	switch n.Class().Shape {
	case shapeMerge:
		return n.ForwardEnds()
	default:
		if n.pred.IsValid() {
			return []NodeID{n.pred}
		}
		return nil
	}
}

// Dominates reports whether a dominates b (reflexively: a dominates
// itself) in the fixed control skeleton.
func (d *Dominators) Dominates(a, b NodeID) bool {
	if a == b {
		return true
	}
	cur, ok := d.idom[b]
	if !ok {
		return false
	}
	for {
		if cur == a {
			return true
		}
		next, ok := d.idom[cur]
		if !ok || next == cur {
			return false
		}
		cur = next
	}
}

// VerifyGuardDominance checks invariant 8 for every live GuardNode in g:
// its UsageAnchor input must dominate every node that uses the guard.
func (g *Graph) VerifyGuardDominance() error {
	dom := ComputeDominators(g)
	for _, n := range g.AllNodes() {
		if n.Kind() != KindGuardNode && n.Kind() != KindConditionAnchor {
			continue
		}
		var anchor NodeID
		for _, e := range n.inputs {
			if e.Usage == UsageAnchor {
				anchor = e.Target
				break
			}
		}
		if !anchor.IsValid() {
			continue
		}
		for _, uid := range n.usages {
			u, ok := g.Node(uid)
			if !ok {
				continue
			}
			site := nearestFixedSite(u)
			if !site.IsValid() {
				continue
			}
			if !dom.Dominates(anchor, site) {
				return &VerifyError{n.id, "guard-dominance", "anchor does not dominate a use of this guard"}
			}
		}
	}
	return nil
}

// nearestFixedSite returns n itself if n is fixed, or n's nearest fixed
// control ancestor by walking usages upward, used to map a floating
// guard-usage back to a control-flow point dominance can be checked
// against.
func nearestFixedSite(n *Node) NodeID {
	seen := make(map[NodeID]bool)
	cur := n
	for {
		if cur.IsFixed() {
			return cur.id
		}
		if len(cur.usages) == 0 || seen[cur.id] {
			return Invalid
		}
		seen[cur.id] = true
		next, ok := cur.graph.Node(cur.usages[0])
		if !ok {
			return Invalid
		}
		cur = next
	}
}
