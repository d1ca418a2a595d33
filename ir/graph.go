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

	"github.com/google/uuid"
)

// Assumption is an optimistic fact recorded during compilation that the
// runtime must be able to invalidate later. The
// concrete encoding of a kind of assumption is owned by the external
// meta.Assumptions collaborator; Graph only tracks opaque records so it
// never needs to import the runtime package.
type Assumption struct {
	Kind string
	Data any
}

// InlinedMethod records provenance of a method inlined into this graph,
// used when config.RecordInlinedMethods is set.
type InlinedMethod struct {
	Name string
	Data any
}

// Graph is a StructuredGraph: the arena-owned, mutable sea-of-nodes graph
// for one method compilation. A Graph is never shared
// across goroutines.
type Graph struct {
	// CompilationID correlates diagnostics from this graph across a host
	// that runs many concurrent single-threaded compilations.
	CompilationID string

	slots   []*Node
	gens    []uint32
	freeIDs []uint32

	start NodeID

	guardsStage GuardsStage

	isAfterFloatingReadPhase bool
	hasValueProxies          bool

	assumptions    []Assumption
	inlinedMethods []InlinedMethod

	// uniquing indexes pure floating nodes by their canonical hash so
	// structurally-equal candidates collapse to one instance.
	uniquing map[string]NodeID

	// constantNodeRecordsUsages mirrors config.Compiler's option of the
	// same name. Threaded in at New rather than read from
	// a global, per the "no hidden globals" convention.
	constantNodeRecordsUsages bool
}

// New creates an empty Graph with a Start node already installed. The
// guardsStage starting point matches the configured
// guards-stage-start option.
func New(guardsStageStart GuardsStage, constantNodeRecordsUsages bool) *Graph {
	g := &Graph{
		CompilationID:             uuid.NewString(),
		guardsStage:                guardsStageStart,
		uniquing:                   make(map[string]NodeID),
		constantNodeRecordsUsages:  constantNodeRecordsUsages,
		hasValueProxies:            true,
	}
	start := g.newBareNode(KindStart)
	g.start = start.id
	return g
}

// Start returns the graph's distinguished entry control node.
func (g *Graph) Start() NodeID { return g.start }

// GuardsStage reports the graph's current position in the monotone C5
// lifecycle.
func (g *Graph) GuardsStage() GuardsStage { return g.guardsStage }

// AdvanceGuardsStage moves the graph forward in the guards-stage
// lifecycle. Transitions are one-way;
// calling this with a stage that is not strictly later than the current
// one panics, since that can only be a caller bug in the stage package,
// never a recoverable runtime condition.
func (g *Graph) AdvanceGuardsStage(next GuardsStage) {
	if next <= g.guardsStage {
		panic(fmt.Sprintf("ir: guards stage is monotone: cannot go from %s to %s", g.guardsStage, next))
	}
	g.guardsStage = next
}

// IsAfterFloatingReadPhase reports the one-way "reads have been pinned"
// flag.
func (g *Graph) IsAfterFloatingReadPhase() bool { return g.isAfterFloatingReadPhase }

// SetAfterFloatingReadPhase sets the one-way flag; calling it twice, or
// clearing it, is a caller bug.
func (g *Graph) SetAfterFloatingReadPhase() {
	if g.isAfterFloatingReadPhase {
		panic("ir: is_after_floating_read_phase is one-way")
	}
	g.isAfterFloatingReadPhase = true
}

// HasValueProxies reports whether ValueProxy nodes are still required at
// loop exits. True from graph construction
// until the stage package strips proxies.
func (g *Graph) HasValueProxies() bool { return g.hasValueProxies }

// ClearValueProxies is the one-way transition the stage package performs
// once every ValueProxy has been rewritten to its underlying value.
func (g *Graph) ClearValueProxies() {
	if !g.hasValueProxies {
		panic("ir: has_value_proxies is one-way")
	}
	g.hasValueProxies = false
}

// ConstantNodeRecordsUsages reports the experimental memory/feature
// trade-off option. This
// module implements only the recordsUsages=true mode, per the Open
// Question decision in DESIGN.md; the accessor still exists so a caller
// threading config.Compiler.ConstantNodeRecordsUsages through has
// somewhere honest to read it back from.
func (g *Graph) ConstantNodeRecordsUsages() bool { return g.constantNodeRecordsUsages }

// RecordAssumption appends an optimistic fact to the graph for later
// invalidation by the runtime.
func (g *Graph) RecordAssumption(a Assumption) { g.assumptions = append(g.assumptions, a) }

// Assumptions returns every assumption recorded so far.
func (g *Graph) Assumptions() []Assumption { return append([]Assumption(nil), g.assumptions...) }

// RecordInlinedMethod appends provenance for a method inlined into this
// graph.
func (g *Graph) RecordInlinedMethod(m InlinedMethod) { g.inlinedMethods = append(g.inlinedMethods, m) }

// InlinedMethods returns every inlined-method record so far.
func (g *Graph) InlinedMethods() []InlinedMethod {
	return append([]InlinedMethod(nil), g.inlinedMethods...)
}

// Node dereferences id, returning (node, true) iff id still refers to a
// live node in this graph.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	if !id.IsValid() || int(id.index) >= len(g.slots) {
		return nil, false
	}
	if g.gens[id.index] != id.gen {
		return nil, false
	}
	n := g.slots[id.index]
	if n == nil || !n.alive {
		return nil, false
	}
	return n, true
}

// MustNode is Node but panics on a stale/invalid id; used internally
// where the caller already knows the id is live.
func (g *Graph) MustNode(id NodeID) *Node {
	n, ok := g.Node(id)
	if !ok {
		panic(fmt.Sprintf("ir: %s does not refer to a live node", id))
	}
	return n
}

// AllNodes returns every currently-live node, in arena insertion order.
// Per §4.1's snapshot-iteration discipline, this is a snapshot: mutating
// the graph while ranging over the result is safe but will not reveal
// nodes added during the walk.
func (g *Graph) AllNodes() []*Node {
	out := make([]*Node, 0, len(g.slots))
	for i, n := range g.slots {
		if n != nil && n.alive && g.gens[i] == n.id.gen {
			out = append(out, n)
		}
	}
	return out
}

// newBareNode allocates a node with no inputs/successors yet; typed
// constructors (NewIf, NewConstant, ...) call this and then wire up the
// class-specific Extra/inputs/successors before returning to the caller.
func (g *Graph) newBareNode(k Kind) *Node {
	n := &Node{kind: k, graph: g, alive: true}
	if len(g.freeIDs) > 0 {
		idx := g.freeIDs[len(g.freeIDs)-1]
		g.freeIDs = g.freeIDs[:len(g.freeIDs)-1]
		g.gens[idx]++
		n.id = NodeID{index: idx, gen: g.gens[idx]}
		g.slots[idx] = n
	} else {
		idx := uint32(len(g.slots))
		g.gens = append(g.gens, 1)
		n.id = NodeID{index: idx, gen: 1}
		g.slots = append(g.slots, n)
	}
	cls := classFor(k)
	if cls.StampFn == nil {
		n.stamp = nil
	}
	return n
}
