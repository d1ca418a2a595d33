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

package stage

import "github.com/sona-project/sona/ir"

// lowerFloatingGuards implements the FLOATING_GUARDS -> FIXED_DEOPTS
// transition's node rewrites: every live floating
// GuardNode is anchored into a fixed FixedGuard chained after its
// anchor point, and every live ConditionAnchor lowers to a fixed
// ValueAnchor the same way. Usages of the floating node's id are
// forwarded to the new fixed node's id, since a FixedGuard/ValueAnchor
// is just as valid a target for a UsageGuard/UsageValue edge as the
// floating node it replaces.
//
// Multiple guards/anchors sharing one anchor point are chained in
// construction order rather than all colliding at the same insertion
// point: lastAt tracks, per original anchor id, the most recently
// inserted fixed node so the next one chains after it instead.
func lowerFloatingGuards(g *ir.Graph) {
	lastAt := make(map[ir.NodeID]*ir.Node)

	resolveAnchor := func(anchorID ir.NodeID) *ir.Node {
		if last, ok := lastAt[anchorID]; ok {
			return last
		}
		return g.MustNode(anchorID)
	}

	for _, n := range g.AllNodes() {
		if n.Kind() != ir.KindGuardNode {
			continue
		}
		anchorID := anchorInputOf(n)
		condID := n.InputAt(0)
		ex := n.Extra.(*ir.GuardExtra)

		at := resolveAnchor(anchorID)
		fixed := g.NewFixedGuard(at, condID, ex.Negated, ex.Reason)
		lastAt[anchorID] = fixed

		g.ReplaceAtUsages(n.ID(), fixed.ID())
		detachFloatingGuardLike(g, n)
	}

	for _, n := range g.AllNodes() {
		if n.Kind() != ir.KindConditionAnchor {
			continue
		}
		anchorID := anchorInputOf(n)
		condID := n.InputAt(0)

		at := resolveAnchor(anchorID)
		anchored := g.NewValueAnchor(at, condID)
		lastAt[anchorID] = anchored

		g.ReplaceAtUsages(n.ID(), anchored.ID())
		detachFloatingGuardLike(g, n)
	}
}

// anchorInputOf returns the UsageAnchor-tagged input of a GuardNode or
// ConditionAnchor (both declare it as their second input slot, per
// guards.go's NewGuardNode/NewConditionAnchor).
func anchorInputOf(n *ir.Node) ir.NodeID {
	for _, e := range n.Inputs() {
		if e.Usage == ir.UsageAnchor {
			return e.Target
		}
	}
	return ir.Invalid
}

// detachFloatingGuardLike deletes n now that ReplaceAtUsages has already
// forwarded every usage elsewhere; SafeDelete unlinks n's own input
// edges as part of removing it.
func detachFloatingGuardLike(g *ir.Graph, n *ir.Node) {
	g.SafeDelete(n)
}

// attachDeoptFrameStates implements the (FIXED_DEOPTS|FLOATING_GUARDS)
// -> AFTER_FSA transition's node rewrite: every live
// CanDeopt fixed node that does not yet own a FrameState gets one
// derived (via Duplicate) from the nearest preceding state-split's
// FrameState, so a deopt taken after this point always has somewhere to
// resume from even though new, from-scratch FrameStates can no longer
// be synthesized for it past this stage.
func attachDeoptFrameStates(g *ir.Graph) {
	for _, n := range g.AllNodes() {
		if !n.Class().CanDeopt || n.IsFloating() {
			continue
		}
		if ownsFrameState(n) {
			continue
		}
		fs, ok := nearestPrecedingFrameState(g, n)
		if !ok {
			continue
		}
		dup := g.Duplicate(fs)
		g.AppendLiveInput(n, dup.ID(), ir.UsageState)
	}
}

func ownsFrameState(n *ir.Node) bool {
	for _, e := range n.Inputs() {
		if e.Usage == ir.UsageState {
			return true
		}
	}
	return false
}

// nearestPrecedingFrameState walks the fixed control chain backward from
// n looking for the first state-split ancestor that owns a FrameState.
// A Merge/LoopBegin ancestor's forward ends may disagree on their
// reaching state in general; this walk follows the first recorded
// forward end, a documented simplification (see DESIGN.md) rather than
// merging divergent states into a fresh Phi-backed FrameState.
func nearestPrecedingFrameState(g *ir.Graph, n *ir.Node) (*ir.Node, bool) {
	cur := n.Predecessor()
	for {
		p, ok := g.Node(cur)
		if !ok {
			return nil, false
		}
		if p.Class().IsStateSplit {
			for _, e := range p.Inputs() {
				if e.Usage == ir.UsageState {
					if fs, ok := g.Node(e.Target); ok {
						return fs, true
					}
				}
			}
		}
		ends := p.ForwardEnds()
		if len(ends) > 0 {
			cur = ends[0]
			continue
		}
		if p.ID() == g.Start() {
			return nil, false
		}
		cur = p.Predecessor()
		if !cur.IsValid() {
			return nil, false
		}
	}
}
