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

// VerifyError names one violated invariant, identified by the node id
// that witnesses it.
type VerifyError struct {
	Node      NodeID
	Invariant string
	Detail    string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("ir: verify: %s at %s: %s", e.Invariant, e.Node, e.Detail)
}

// Verify checks every structural invariant over the graph's current
// live node set, returning the first violation found (nil if the graph
// is well-formed). A verification failure is fatal to the surrounding
// compilation; callers should treat a non-nil result as "abort", not
// "retry".
func (g *Graph) Verify() error {
	nodes := g.AllNodes()
	if err := g.verifyEdgeConsistency(nodes); err != nil {
		return err
	}
	if err := g.verifyFixedChain(nodes); err != nil {
		return err
	}
	if err := g.verifyBeginNecessity(nodes); err != nil {
		return err
	}
	if err := g.verifyFrameStateAttachment(nodes); err != nil {
		return err
	}
	if err := g.verifyPhiArity(nodes); err != nil {
		return err
	}
	if err := g.verifyUsageSchema(nodes); err != nil {
		return err
	}
	if err := g.verifyStampMonotonicity(nodes); err != nil {
		return err
	}
	if err := g.verifyLoopExitProxies(nodes); err != nil {
		return err
	}
	if err := g.VerifyGuardDominance(); err != nil {
		return err
	}
	return nil
}

// verifyEdgeConsistency checks invariant 1: every input edge has a
// matching usage entry on its target, and vice versa.
func (g *Graph) verifyEdgeConsistency(nodes []*Node) error {
	for _, n := range nodes {
		for _, e := range n.inputs {
			target, ok := g.Node(e.Target)
			if !ok {
				return &VerifyError{n.id, "edge-consistency", fmt.Sprintf("input %s is not live", e.Target)}
			}
			found := false
			for _, u := range target.usages {
				if u == n.id {
					found = true
					break
				}
			}
			if !found {
				return &VerifyError{n.id, "edge-consistency", fmt.Sprintf("%s not recorded in usages(%s)", n.id, target.id)}
			}
		}
		for _, uid := range n.usages {
			u, ok := g.Node(uid)
			if !ok {
				return &VerifyError{n.id, "edge-consistency", fmt.Sprintf("usage %s is not live", uid)}
			}
			found := false
			for _, e := range u.inputs {
				if e.Target == n.id {
					found = true
					break
				}
			}
			if !found {
				return &VerifyError{n.id, "edge-consistency", fmt.Sprintf("%s has no input edge to %s", u.id, n.id)}
			}
		}
	}
	return nil
}

// verifyFixedChain checks invariant 2.
func (g *Graph) verifyFixedChain(nodes []*Node) error {
	for _, n := range nodes {
		if n.IsFloating() {
			continue
		}
		switch n.Class().Shape {
		case shapeFixedNoNext, shapeFixedWithNext, shapeBegin:
			if n.id != g.start {
				pred, ok := g.Node(n.pred)
				if !ok {
					return &VerifyError{n.id, "fixed-node-chain", "no live control predecessor"}
				}
				_ = pred
			}
			if n.Class().Shape == shapeFixedWithNext || n.Class().Shape == shapeBegin {
				if len(n.succs) != 1 {
					return &VerifyError{n.id, "fixed-node-chain", fmt.Sprintf("FixedWithNext must have exactly one successor, has %d", len(n.succs))}
				}
			}
		case shapeControlSplit:
			if len(n.succs) < 2 {
				return &VerifyError{n.id, "fixed-node-chain", fmt.Sprintf("ControlSplit must have >=2 successors, has %d", len(n.succs))}
			}
			for _, s := range n.succs {
				sn, ok := g.Node(s)
				if !ok || sn.Kind() != KindBegin {
					return &VerifyError{n.id, "fixed-node-chain", fmt.Sprintf("ControlSplit successor %s must be a Begin", s)}
				}
			}
		case shapeMerge:
			if len(n.ForwardEnds()) < 1 {
				return &VerifyError{n.id, "fixed-node-chain", "merge has no forward-end predecessor"}
			}
		}
	}
	return nil
}

// verifyBeginNecessity checks invariant 3: every live Begin must still be
// necessary (a simplifier pass that leaves an unnecessary begin behind is
// a bug the engine should have caught before committing).
func (g *Graph) verifyBeginNecessity(nodes []*Node) error {
	for _, n := range nodes {
		if n.Kind() != KindBegin {
			continue
		}
		if !isBeginNecessary(n) {
			return &VerifyError{n.id, "begin-necessity", "unnecessary begin was not evacuated"}
		}
	}
	return nil
}

// verifyFrameStateAttachment checks invariant 4: before AFTER_FSA, a
// state-split owns at most one FrameState; at/after AFTER_FSA, only
// CanDeopt nodes own one.
func (g *Graph) verifyFrameStateAttachment(nodes []*Node) error {
	for _, n := range nodes {
		states := usagesWithUsageType(n, UsageState)
		count := 0
		for _, sid := range states {
			if s, ok := g.Node(sid); ok && s.Kind() == KindFrameState {
				count++
			}
		}
		if g.guardsStage == AfterFSA {
			if count > 0 && !n.Class().CanDeopt {
				return &VerifyError{n.id, "frame-state-attachment", "frame state owned by non-deoptimizing node after AFTER_FSA"}
			}
		} else if n.Class().IsStateSplit && count > 1 {
			return &VerifyError{n.id, "frame-state-attachment", fmt.Sprintf("state-split owns %d frame states, want <=1", count)}
		}
	}
	return nil
}

// verifyPhiArity checks invariant 6.
func (g *Graph) verifyPhiArity(nodes []*Node) error {
	for _, n := range nodes {
		if n.Kind() != KindPhi {
			continue
		}
		merge, ok := n.phiMerge()
		if !ok {
			return &VerifyError{n.id, "phi-arity", "phi has no live merge"}
		}
		want := len(merge.ForwardEnds())
		got := len(phiValueInputs(n))
		if got != want {
			return &VerifyError{n.id, "phi-arity", fmt.Sprintf("phi has %d value inputs, merge has %d forward ends", got, want)}
		}
	}
	return nil
}

// usageSchema declares, per Kind, which UsageType each input slot
// accepts, used by verifyUsageSchema. Kinds not listed here accept any
// usage on any slot (most node kinds have a fixed, small input list
// already enforced by their typed constructor; this schema only guards
// the handful of kinds the canonicalizer/simplifier actively rewires).
var usageSchema = map[Kind][]UsageType{
	KindCompare:         {UsageValue, UsageValue},
	KindLogicNegation:   {UsageValue},
	KindConditional:     {UsageCondition, UsageValue, UsageValue},
	KindIf:              {UsageCondition},
	KindGuardNode:        {UsageGuard, UsageAnchor},
	KindConditionAnchor: {UsageGuard, UsageAnchor},
	KindFixedGuard:      {UsageGuard},
	KindPi:              {UsageValue, UsageGuard},
}

// verifyStampMonotonicity checks invariant 5: recomputing a node's stamp
// from its current live inputs must never be wider than the stamp
// already cached on it. Re-inference is expected to only ever narrow a
// stamp (new.join(old) == new); a fresh computation that comes out wider
// than what is cached means some earlier rewrite widened it, which is a
// bug, not a cache-staleness curiosity.
func (g *Graph) verifyStampMonotonicity(nodes []*Node) error {
	for _, n := range nodes {
		fn := n.Class().StampFn
		if fn == nil || n.stamp == nil {
			continue
		}
		fresh := fn(n)
		if fresh == nil {
			continue
		}
		if !stampEqual(fresh.Join(n.stamp), fresh) {
			return &VerifyError{n.id, "stamp-monotonicity", fmt.Sprintf("fresh re-inference %s is wider than cached stamp %s", fresh, n.stamp)}
		}
	}
	return nil
}

// verifyLoopExitProxies checks invariant 7: while has_value_proxies
// holds, every live ValueProxy's proxy-point must be a LoopExit.
func (g *Graph) verifyLoopExitProxies(nodes []*Node) error {
	if !g.HasValueProxies() {
		return nil
	}
	for _, n := range nodes {
		if n.Kind() != KindValueProxy {
			continue
		}
		ex, ok := n.Extra.(*ValueProxyExtra)
		if !ok {
			return &VerifyError{n.id, "loop-exit-proxies", "ValueProxy has no ValueProxyExtra"}
		}
		point, ok := g.Node(ex.ProxyPoint)
		if !ok || point.Kind() != KindLoopExit {
			return &VerifyError{n.id, "loop-exit-proxies", "proxy-point is not a live LoopExit"}
		}
	}
	return nil
}

// verifyUsageSchema checks that each input slot of a schema-constrained
// node carries the usage type its class declares, the structural
// counterpart to invariant 1's liveness check.
func (g *Graph) verifyUsageSchema(nodes []*Node) error {
	for _, n := range nodes {
		schema, ok := usageSchema[n.kind]
		if !ok {
			continue
		}
		for i, want := range schema {
			if i >= len(n.inputs) {
				break
			}
			if got := n.inputs[i].Usage; got != want {
				return &VerifyError{n.id, "usage-schema", fmt.Sprintf("input %d: got usage %s, want %s", i, got, want)}
			}
		}
	}
	return nil
}
