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

// Package codegen declares the interface the compiler core hands a
// finished graph off to: for each node, its final stamp, its
// topologically-ordered inputs, its frame state, and its kind as a
// selector into the back end's own dispatch. This package defines the
// contract only; emitting machine code is out of scope.
package codegen

import (
	"github.com/sona-project/sona/ir"
	"github.com/sona-project/sona/stamp"
)

// NodeHandoff is everything a back end needs to generate code for one
// node, gathered after scheduling has fixed a topological order.
type NodeHandoff struct {
	ID     ir.NodeID
	Kind   ir.Kind
	Stamp  stamp.Stamp
	Inputs []ir.NodeID
	State  ir.NodeID // Invalid if the node carries no frame state.
}

// Backend consumes a fully-lowered, scheduled graph one node at a time.
// The core calls Emit in the scheduled topological order; a Backend
// implementation is supplied by the embedding host and lives outside this
// module.
type Backend interface {
	// Emit generates code for one node. Returning an error aborts the
	// remainder of code generation for this compilation.
	Emit(h NodeHandoff) error

	// Finish is called once every node has been emitted, to let the
	// Backend finalize and install the resulting code object.
	Finish() error
}

// Schedule orders a lowered graph's fixed nodes into the sequence a
// Backend's Emit calls should follow: each fixed node after its
// predecessor, and with every floating value node placed immediately
// before its first fixed usage in graph traversal order (a local
// schedule, not a global one — producing the already-topologically-ordered
// inputs a Backend expects, computed once per Schedule call rather than
// incrementally). Every successor of a control split (If,
// InvokeWithException, ...) is walked, not just the first: a stack-based
// DFS over the fixed control skeleton visits both the true and false
// branches of an If and both the normal and exception edges of an
// InvokeWithException, converging again at a shared merge.
func Schedule(g *ir.Graph) []NodeHandoff {
	var order []ir.NodeID
	seen := make(map[ir.NodeID]bool)

	stack := []ir.NodeID{g.Start()}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !cur.IsValid() || seen[cur] {
			continue
		}
		n, ok := g.Node(cur)
		if !ok {
			continue
		}
		emitFloatingInputs(g, n, seen, &order)
		if seen[n.ID()] {
			continue
		}
		seen[n.ID()] = true
		order = append(order, n.ID())

		succs := n.Successors()
		for i := len(succs) - 1; i >= 0; i-- {
			stack = append(stack, succs[i])
		}
	}

	handoffs := make([]NodeHandoff, 0, len(order))
	for _, id := range order {
		n := g.MustNode(id)
		handoffs = append(handoffs, handoffFor(n))
	}
	return handoffs
}

// emitFloatingInputs appends any not-yet-seen floating value input of n
// (and, transitively, its own floating inputs) to order before n itself,
// so every floating operand already appears earlier in the handoff
// sequence than its first fixed user.
func emitFloatingInputs(g *ir.Graph, n *ir.Node, seen map[ir.NodeID]bool, order *[]ir.NodeID) {
	for _, e := range n.Inputs() {
		in, ok := g.Node(e.Target)
		if !ok || seen[in.ID()] || in.IsFixed() {
			continue
		}
		seen[in.ID()] = true
		emitFloatingInputs(g, in, seen, order)
		*order = append(*order, in.ID())
	}
}

func handoffFor(n *ir.Node) NodeHandoff {
	h := NodeHandoff{ID: n.ID(), Kind: n.Kind(), Stamp: n.Stamp(), State: ir.Invalid}
	for _, e := range n.Inputs() {
		switch e.Usage {
		case ir.UsageValue:
			h.Inputs = append(h.Inputs, e.Target)
		case ir.UsageState:
			h.State = e.Target
		}
	}
	return h
}
