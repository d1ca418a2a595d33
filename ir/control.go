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
	RegisterClass(&Class{Kind: KindStart, Shape: shapeFixedWithNext})
	RegisterClass(&Class{Kind: KindReturn, Shape: shapeFixedNoNext, IsStateSplit: true})
	RegisterClass(&Class{Kind: KindUnwind, Shape: shapeFixedNoNext, IsStateSplit: true})
	RegisterClass(&Class{Kind: KindDeoptimize, Shape: shapeFixedNoNext, CanDeopt: true, IsStateSplit: true})
	RegisterClass(&Class{
		Kind:     KindIf,
		Shape:    shapeControlSplit,
		Simplify: simplifyIf,
	})
}

// ReturnExtra carries a Return's optional value (nil for a void method
// return).
type ReturnExtra struct {
	HasValue bool
}

// NewReturn appends a Return terminator after anchor, optionally
// returning value (Invalid for a void return).
func (g *Graph) NewReturn(anchor *Node, value NodeID) *Node {
	n := g.newBareNode(KindReturn)
	n.Extra = &ReturnExtra{HasValue: value.IsValid()}
	if value.IsValid() {
		n.AppendInput(value, UsageValue)
	}
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// NewUnwind appends an Unwind terminator (method exit via exception)
// after anchor, carrying the live exception object.
func (g *Graph) NewUnwind(anchor *Node, exception NodeID) *Node {
	n := g.newBareNode(KindUnwind)
	n.AppendInput(exception, UsageValue)
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// DeoptimizeExtra names why execution bails to the interpreter. Reason is
// an opaque value owned by the runtime's meta.MetaAccess collaborator
//; this module never interprets it, only carries it.
type DeoptimizeExtra struct {
	Reason any
}

func (e *DeoptimizeExtra) HashKey() string { return "" }

// NewDeoptimize appends an unconditional Deoptimize terminator after
// anchor, consuming state for the resulting interpreter frame.
func (g *Graph) NewDeoptimize(anchor *Node, state NodeID, reason any) *Node {
	n := g.newBareNode(KindDeoptimize)
	n.Extra = &DeoptimizeExtra{Reason: reason}
	if state.IsValid() {
		n.AppendInput(state, UsageState)
	}
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// IfExtra carries an If's branch-taken probability estimate.
type IfExtra struct {
	TrueProbability float64

	// HoistConsidered marks an If that has already taken part in a
	// cross-If hoist, either as the node pushed down to become the inner
	// test or as the inner test a hoist declined to re-promote. Without
	// this bit a hoisted pair's inner and outer roles could swap back and
	// forth indefinitely, since the two conditions remain just as
	// disjoint after the rewrite as before it.
	HoistConsidered bool
}

func (e *IfExtra) HashKey() string { return "" }

// NewIf appends an If split after anchor, branching on condition with
// the given estimated probability the true successor is taken. Callers
// attach the true/false Begin successors with LinkIfSuccessor.
func (g *Graph) NewIf(anchor *Node, condition NodeID, trueProbability float64) *Node {
	n := g.newBareNode(KindIf)
	n.AppendInput(condition, UsageCondition)
	n.Extra = &IfExtra{TrueProbability: trueProbability}
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// LinkIfSuccessor attaches trueBegin/falseBegin as split's two ordered
// successors (index 0 = true, index 1 = false).
func (g *Graph) LinkIfSuccessor(split *Node, trueBegin, falseBegin NodeID) {
	split.AppendSuccessor(trueBegin)
	split.AppendSuccessor(falseBegin)
}

func constLogicValue(g *Graph, id NodeID) (bool, bool) {
	n, ok := g.Node(id)
	if !ok {
		return false, false
	}
	return constBool(n)
}

// simplifyIf simplifies an If, the taxonomy's representative
// control-flow rewrite with four cases, tried in order:
//
//  1. constant condition: the dead branch is pruned entirely
//     (remove_split), leaving only the taken successor.
//  2. empty diamond: both successors immediately reconverge at a Merge
//     with nothing but a Phi of the same two constants/values — this
//     collapses to a single Conditional floating node ahead of the split.
//  3. profile-based swap: if the false branch is overwhelmingly more
//     likely than the true branch, swap them and negate the condition so
//     the likely path is laid out first (a layout hint consumed by
//     codegen, not a semantic change).
//  4. cross-If hoist: a successive If reached through a trivial Begin,
//     with a condition disjoint from this one and a more likely path
//     than this If's own, is hoisted above it.
func simplifyIf(n *Node, tool SimplifierTool) {
	g := tool.Graph()
	cond := n.InputAt(0)
	if b, ok := constLogicValue(g, cond); ok {
		surviving := n.succs[0]
		if !b {
			surviving = n.succs[1]
		}
		g.RemoveSplit(n, surviving)
		return
	}
	if collapseEmptyDiamond(n, tool) {
		return
	}
	if ex, ok := n.Extra.(*IfExtra); ok {
		const swapThreshold = 0.9
		if ex.TrueProbability < 1-swapThreshold {
			neg := g.NewLogicNegation(cond)
			g.ReplaceFirstInput(n, cond, neg.id)
			tool.AddToWorkList(neg.id)
			n.succs[0], n.succs[1] = n.succs[1], n.succs[0]
			ex.TrueProbability = 1 - ex.TrueProbability
			if tb, ok := g.Node(n.succs[0]); ok {
				tool.AddToWorkList(tb.id)
			}
		}
	}
	if hoistCrossIf(n, tool) {
		return
	}
}

// branchProbability returns the probability an If whose true-successor
// (index 0) is taken with trueProb instead takes successor index i.
func branchProbability(trueProb float64, i int) float64 {
	if i == 0 {
		return trueProb
	}
	return 1 - trueProb
}

// hoistCrossIf implements case 4: two successive Ifs, if1(c1) reaching,
// through a trivial Begin, if2(c2), whose conditions are disjoint (both
// instanceof tests or both equality compares that cannot agree on the
// same operand). Disjointness means c2 holding true proves c1 is false,
// so whichever of if2's successors is reached when c2 is true can be
// wired directly off if1 without re-testing c1 at all; if2 is hoisted to
// if1's former position and if1 is pushed down to guard only the
// remaining (c2-false) path, provided that direct path is profiled more
// likely than the path still gated by c1.
func hoistCrossIf(n *Node, tool SimplifierTool) bool {
	g := tool.Graph()
	ex1, ok := n.Extra.(*IfExtra)
	if !ok || ex1.HoistConsidered || len(n.succs) != 2 {
		return false
	}
	c1 := n.InputAt(0)

	for sIf2 := 0; sIf2 < 2; sIf2++ {
		begin1, ok := g.Node(n.succs[sIf2])
		if !ok || begin1.Kind() != KindBegin {
			continue
		}
		if len(usagesWithUsageType(begin1, UsageAnchor)) != 0 {
			continue
		}
		if2, ok := g.Node(fixedSuccessorOf(begin1))
		if !ok || if2.Kind() != KindIf || len(if2.succs) != 2 {
			continue
		}
		ex2, ok := if2.Extra.(*IfExtra)
		if !ok || ex2.HoistConsidered {
			continue
		}
		c2 := if2.InputAt(0)
		if !disjointConditions(g, c1, c2) {
			continue
		}

		pX := branchProbability(ex1.TrueProbability, 1-sIf2)
		pIf2 := branchProbability(ex1.TrueProbability, sIf2)

		k := 0
		pY := pIf2 * branchProbability(ex2.TrueProbability, k)
		if !(pX < pY) {
			k = 1
			pY = pIf2 * branchProbability(ex2.TrueProbability, k)
			if !(pX < pY) {
				continue
			}
		}

		anchor, ok := g.Node(n.pred)
		if !ok {
			continue
		}
		beginZ, ok := g.Node(if2.succs[1-k])
		if !ok {
			continue
		}

		replacePredSuccessor(anchor, n.id, if2.id)
		if2.SetSuccessorAt(1-k, begin1.id)
		begin1.SetSuccessorAt(0, n.id)
		n.SetSuccessorAt(sIf2, beginZ.id)

		if k == 0 {
			ex2.TrueProbability = pY
		} else {
			ex2.TrueProbability = 1 - pY
		}
		ex1.HoistConsidered = true

		tool.AddToWorkList(n.id, if2.id)
		return true
	}
	return false
}

// collapseEmptyDiamond implements case 2: trueBegin and falseBegin are
// both trivial (no side effects between the If and the Merge they both
// flow to unconditionally) and the Merge hosts exactly one Phi selecting
// between the two path-specific values; the whole diamond reduces to a
// Conditional computed directly from the If's own condition.
func collapseEmptyDiamond(n *Node, tool SimplifierTool) bool {
	g := tool.Graph()
	if len(n.succs) != 2 {
		return false
	}
	trueBegin, ok1 := g.Node(n.succs[0])
	falseBegin, ok2 := g.Node(n.succs[1])
	if !ok1 || !ok2 || trueBegin.Kind() != KindBegin || falseBegin.Kind() != KindBegin {
		return false
	}
	trueNext := fixedSuccessorOf(trueBegin)
	falseNext := fixedSuccessorOf(falseBegin)
	if !trueNext.IsValid() || trueNext != falseNext {
		return false
	}
	merge, ok := g.Node(trueNext)
	if !ok || merge.Kind() != KindMerge {
		return false
	}
	phis := usagesWithUsageType(merge, UsageAssociation)
	if len(phis) != 1 {
		return false
	}
	phi, ok := g.Node(phis[0])
	if !ok || phi.Kind() != KindPhi {
		return false
	}
	values := phiValueInputs(phi)
	ends := merge.ForwardEnds()
	if len(values) != 2 || len(ends) != 2 {
		return false
	}
	// ends[i] must match forward-edge order trueBegin/falseBegin feed.
	trueVal, falseVal := values[0], values[1]
	if ends[0] != trueBegin.id {
		trueVal, falseVal = falseVal, trueVal
	}
	cond := n.InputAt(0)
	cv := g.NewConditional(cond, trueVal, falseVal)
	anchor, aok := g.Node(n.pred)
	if !aok {
		return false
	}
	g.ReplaceAtUsages(phi.id, cv.id)
	phi.inputs = nil
	g.SafeDelete(phi)
	next := fixedSuccessorOf(merge)
	// Splice the If's whole diamond out, leaving anchor -> next.
	replacePredSuccessor(anchor, n.id, next)
	n.succs = nil
	g.ReplaceAtUsages(n.id, Invalid)
	g.SafeDelete(n)
	for _, begin := range []*Node{trueBegin, falseBegin} {
		begin.succs = nil
		if begin.alive {
			g.SafeDelete(begin)
		}
	}
	merge.succs = nil
	if merge.alive {
		g.SafeDelete(merge)
	}
	tool.AddToWorkList(cv.id)
	return true
}
