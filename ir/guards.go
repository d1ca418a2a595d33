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

func init() {
	RegisterClass(&Class{
		Kind:     KindFixedGuard,
		Shape:    shapeFixedWithNext,
		CanDeopt: true,
		Simplify: simplifyFixedGuard,
	})
	RegisterClass(&Class{
		Kind:      KindGuardNode,
		Shape:     shapeFloating,
		Pure:      true,
		CanDeopt:  true,
		StampFn:   func(n *Node) stamp.Stamp { return stamp.TheVoid },
		Canonical: canonicalGuardNode,
	})
	RegisterClass(&Class{
		Kind:      KindConditionAnchor,
		Shape:     shapeFloating,
		Pure:      true,
		StampFn:   logicStamp,
		Canonical: canonicalSelf,
	})
	RegisterClass(&Class{Kind: KindValueAnchor, Shape: shapeFixedWithNext, StampFn: stampOfInput0})
}

// GuardExtra names why a guard deoptimizes on failure and whether its
// condition is evaluated negated (Open Question decision: negation is
// stripped before constant-folding is attempted, not after — see
// DESIGN.md).
type GuardExtra struct {
	Reason   any
	Negated  bool
}

func (e *GuardExtra) HashKey() string { return "" }

// NewFixedGuard appends a fixed guard after anchor: if condition
// evaluates to negated's opposite, execution deoptimizes with reason
// instead of falling through.
func (g *Graph) NewFixedGuard(anchor *Node, condition NodeID, negated bool, reason any) *Node {
	n := g.newBareNode(KindFixedGuard)
	n.AppendInput(condition, UsageGuard)
	n.Extra = &GuardExtra{Reason: reason, Negated: negated}
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// simplifyFixedGuard simplifies a FixedGuard, following the Open Question
// decision recorded in DESIGN.md: a LogicNegation
// wrapping the guard's condition is unwrapped (flipping Negated) before
// the now-direct condition is checked for a compile-time constant,
// rather than folding through the negation node's own canonical form
// first. This ordering lets a guard whose condition arrives pre-negated
// collapse in one simplifier pass instead of two.
func simplifyFixedGuard(n *Node, tool SimplifierTool) {
	g := tool.Graph()
	ex, ok := n.Extra.(*GuardExtra)
	if !ok {
		return
	}
	cond, ok := g.Node(n.InputAt(0))
	if !ok {
		return
	}
	for cond.Kind() == KindLogicNegation {
		inner, ok := g.Node(cond.InputAt(0))
		if !ok {
			break
		}
		g.ReplaceFirstInput(n, cond.id, inner.id)
		tool.RemoveIfUnused(cond.id)
		ex.Negated = !ex.Negated
		cond = inner
	}
	b, isConst := constBool(cond)
	if !isConst {
		return
	}
	holds := b
	if ex.Negated {
		holds = !holds
	}
	if holds {
		// The guard can never fail; it contributes nothing further.
		g.ReplaceFixedWithFloating(n, Invalid)
		return
	}
	// The guard always fails: the rest of this control path is dead.
	// Converting in place to an unconditional Deoptimize is the
	// fixed-guard analogue of If's remove_split.
	pred, ok := g.Node(n.pred)
	if !ok {
		return
	}
	for _, s := range n.succs {
		g.deleteBranchFrom(s)
	}
	n.succs = nil
	deopt := g.newBareNode(KindDeoptimize)
	deopt.Extra = &DeoptimizeExtra{Reason: ex.Reason}
	id := g.Add(deopt)
	deopt = g.MustNode(id)
	replacePredSuccessor(pred, n.id, deopt.id)
	g.ReplaceAtUsages(n.id, Invalid)
	for _, e := range n.inputs {
		if in, ok := g.Node(e.Target); ok {
			in.removeUsage(n.id)
		}
	}
	n.inputs = nil
	g.SafeDelete(n)
}

// canonicalGuardNode folds a floating guard whose condition is already a
// compile-time constant, mirroring simplifyFixedGuard's own two steps: a
// LogicNegation wrapping the condition is unwrapped (flipping Negated)
// before the now-direct condition is checked for a constant, then:
//   - a guard that can never fail is dead, but first hands off each of
//     its own UsageGuard-typed usages (a Pi's proof-of-condition input)
//     to Start, which trivially dominates everything a guard anchored
//     anywhere in the graph could have;
//   - a guard that always fails is normalized to the canonical
//     unconditional-failure shape (Negated cleared, condition replaced
//     by a constant false) so that once FIXED_DEOPTS lowering turns it
//     into a FixedGuard, simplifyFixedGuard recognizes it immediately
//     as an always-fail guard rather than re-deriving that fact through
//     a lingering negation or a condition it must re-fold itself.
func canonicalGuardNode(n *Node, tool CanonicalizerTool) CanonResult {
	g := tool.Graph()
	ex, ok := n.Extra.(*GuardExtra)
	if !ok {
		return SelfResult
	}
	cond, ok := g.Node(n.InputAt(0))
	if !ok {
		return SelfResult
	}
	for cond.Kind() == KindLogicNegation {
		inner, ok := g.Node(cond.InputAt(0))
		if !ok {
			break
		}
		g.ReplaceFirstInput(n, cond.id, inner.id)
		g.RemoveIfUnused(cond)
		ex.Negated = !ex.Negated
		cond = inner
	}
	b, isConst := constBool(cond)
	if !isConst {
		return SelfResult
	}
	holds := b
	if ex.Negated {
		holds = !holds
	}
	if holds {
		start := g.Start()
		for _, uid := range usagesWithUsageType(n, UsageGuard) {
			u, ok := g.Node(uid)
			if !ok {
				continue
			}
			g.ReplaceFirstInput(u, n.id, start)
			tool.AddToWorkList(uid)
		}
		return DeadResult
	}
	falseConst := g.NewConstantInt(1, false, 0)
	if n.InputAt(0) == falseConst.id && !ex.Negated {
		return SelfResult
	}
	g.ReplaceFirstInput(n, n.InputAt(0), falseConst.id)
	ex.Negated = false
	return SelfResult
}

// NewGuardNode creates a floating guard over condition, anchored at
// begin (invariant 8: a guard must be dominated by its anchor).
func (g *Graph) NewGuardNode(condition NodeID, negated bool, anchor NodeID, reason any) *Node {
	if !g.guardsStage.AllowsFloatingGuards() {
		panic("ir: NewGuardNode: floating guards are no longer allowed at this graph's guards stage")
	}
	n := g.newBareNode(KindGuardNode)
	n.AppendInput(condition, UsageGuard)
	n.AppendInput(anchor, UsageAnchor)
	n.Extra = &GuardExtra{Reason: reason, Negated: negated}
	n.stamp = stamp.TheVoid
	id := g.Unique(n)
	return g.MustNode(id)
}

// NewConditionAnchor creates a floating node asserting condition's truth
// at anchor without itself being capable of deoptimizing (unlike
// GuardNode); used where a branch's condition has already been checked
// by control flow and downstream code merely needs to reference that
// fact as a value.
func (g *Graph) NewConditionAnchor(condition NodeID, anchor NodeID) *Node {
	n := g.newBareNode(KindConditionAnchor)
	n.AppendInput(condition, UsageGuard)
	n.AppendInput(anchor, UsageAnchor)
	n.stamp = logicStamp(n)
	id := g.Unique(n)
	return g.MustNode(id)
}

// NewValueAnchor appends a node after anchorPoint that pins value to this
// control location, preventing it from floating above a point the
// optimizer must not move it past (e.g. across a safepoint).
func (g *Graph) NewValueAnchor(anchorPoint *Node, value NodeID) *Node {
	n := g.newBareNode(KindValueAnchor)
	n.AppendInput(value, UsageValue)
	id := g.Add(n)
	n = g.MustNode(id)
	n.stamp = stampOfInput0(n)
	g.AddAfterFixed(anchorPoint, n)
	return n
}
