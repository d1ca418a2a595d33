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
	"fmt"

	"github.com/sona-project/sona/stamp"
)

func init() {
	RegisterClass(&Class{
		Kind:      KindPhi,
		Shape:     shapeFloating,
		Pure:      false, // a phi's identity is tied to its merge, not just its inputs
		StampFn:   phiStamp,
		Canonical: canonicalPhi,
	})
	RegisterClass(&Class{
		Kind:      KindPi,
		Shape:     shapeFloating,
		Pure:      false, // depends on the live guard it is pinned under
		StampFn:   piStamp,
		Canonical: canonicalPi,
	})
}

// NewPhi creates a value Phi at merge, with one value input per of
// merge's current forward ends (order must match ForwardEnds()). The
// phi's first input edge is a UsageAssociation to the merge itself, the
// convention begin_merge.go's usage-scanning helpers rely on to find a
// merge's phis without a separate stored list.
func (g *Graph) NewPhi(merge *Node, values []NodeID) *Node {
	if len(values) != len(merge.ForwardEnds()) {
		panic(fmt.Sprintf("ir: NewPhi: %d values for %d forward ends at %s", len(values), len(merge.ForwardEnds()), merge.id))
	}
	n := g.newBareNode(KindPhi)
	n.AppendInput(merge.id, UsageAssociation)
	for _, v := range values {
		n.AppendInput(v, UsageValue)
	}
	id := g.Add(n)
	return g.MustNode(id)
}

// phiMerge returns the Merge/LoopBegin a Phi is hosted at (input slot 0,
// by the UsageAssociation convention NewPhi establishes).
func (n *Node) phiMerge() (*Node, bool) {
	if len(n.inputs) == 0 {
		return nil, false
	}
	return n.graph.Node(n.inputs[0].Target)
}

func phiValueInputs(n *Node) []NodeID {
	var out []NodeID
	for _, e := range n.inputs {
		if e.Usage == UsageValue {
			out = append(out, e.Target)
		}
	}
	return out
}

func phiStamp(n *Node) stamp.Stamp {
	values := phiValueInputs(n)
	if len(values) == 0 {
		return stamp.TheIllegal
	}
	var acc stamp.Stamp
	for _, v := range values {
		in, ok := n.graph.Node(v)
		if !ok || in.stamp == nil {
			return stamp.TheIllegal
		}
		if acc == nil {
			acc = in.stamp
			continue
		}
		acc = acc.Meet(in.stamp)
	}
	return acc
}

// canonicalPhi canonicalizes a phi: a phi whose every
// value input is the same node (after accounting for self-reference,
// which a loop phi can have on its backedge slot) reduces to that node.
func canonicalPhi(n *Node, tool CanonicalizerTool) CanonResult {
	values := phiValueInputs(n)
	var sole NodeID
	for _, v := range values {
		if v == n.id {
			continue // a loop phi may refer to itself on its backedge input
		}
		if !sole.IsValid() {
			sole = v
			continue
		}
		if sole != v {
			return SelfResult
		}
	}
	if !sole.IsValid() {
		return SelfResult
	}
	return ReplaceWith(sole)
}

// PiExtra holds the refined stamp a Pi node applies to its input; the
// guard the refinement is valid under is the Pi's second input edge.
// A Pi re-exposes its input value with a stamp narrowed by a proven
// condition.
type PiExtra struct {
	Refined stamp.Stamp
}

func (e *PiExtra) HashKey() string { return e.Refined.String() }

// NewPi creates a Pi over value, valid under guard, narrowing value's
// stamp to refined (refined must already account for value's own stamp;
// callers typically compute it via value.Stamp().ImproveWith(...)).
func (g *Graph) NewPi(value, guard NodeID, refined stamp.Stamp) *Node {
	n := g.newBareNode(KindPi)
	n.AppendInput(value, UsageValue)
	n.AppendInput(guard, UsageGuard)
	n.Extra = &PiExtra{Refined: refined}
	id := g.Add(n)
	return g.MustNode(id)
}

func piStamp(n *Node) stamp.Stamp {
	ex, ok := n.Extra.(*PiExtra)
	if !ok {
		return stampOfInput0(n)
	}
	in, ok := n.graph.Node(n.InputAt(0))
	if !ok || in.stamp == nil {
		return stamp.TheIllegal
	}
	return in.stamp.ImproveWith(ex.Refined)
}

// canonicalPi canonicalizes a Pi: three folds, tried
// in order —
//  1. if the refinement adds nothing beyond the input's own current
//     stamp, the Pi is redundant and forwards to its input directly;
//  2. if an identical Pi (same input, same guard) already exists, forward
//     to it instead of keeping a duplicate;
//  3. otherwise the Pi stays, but its stamp may have tightened as its
//     input's own stamp tightened (handled by the engine re-running
//     StampFn, not by this hook).
func canonicalPi(n *Node, tool CanonicalizerTool) CanonResult {
	g := tool.Graph()
	in, ok := g.Node(n.InputAt(0))
	if !ok {
		return SelfResult
	}
	ex, ok := n.Extra.(*PiExtra)
	if !ok {
		return SelfResult
	}
	if in.stamp != nil && stampEqual(in.stamp, in.stamp.ImproveWith(ex.Refined)) {
		return ReplaceWith(in.id)
	}
	guard := n.InputAt(1)
	for _, uid := range in.usages {
		if uid == n.id {
			continue
		}
		u, ok := g.Node(uid)
		if !ok || u.Kind() != KindPi {
			continue
		}
		uex, ok := u.Extra.(*PiExtra)
		if !ok {
			continue
		}
		if u.InputAt(1) == guard && stampEqual(uex.Refined, ex.Refined) {
			return ReplaceWith(u.id)
		}
	}
	return SelfResult
}
