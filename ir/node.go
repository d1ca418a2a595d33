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

// Edge is one input dependency, annotated with the usage type the owning
// node's class declared for that slot.
type Edge struct {
	Target NodeID
	Usage  UsageType
}

// Node is the unit of the IR. Nodes are never constructed
// directly by callers; use the typed constructors in
// control.go/value.go/etc., which allocate through Graph.newBareNode and
// populate Extra with the node kind's immediate fields.
type Node struct {
	id    NodeID
	kind  Kind
	graph *Graph

	stamp stamp.Stamp // nil for void-shaped (pure control) nodes

	inputs []Edge
	succs  []NodeID // ordered control successors; empty for floating nodes
	usages []NodeID // one entry per live input edge that targets this node
	pred   NodeID   // sole control predecessor, for fixed nodes (invariant 2)

	alive bool

	// Extra holds the node kind's plain-record immediate fields (e.g.
	// *IfExtra, *ConstantExtra). Populated by the typed constructor,
	// read by that kind's class hooks. Never read generically.
	Extra any
}

// ID returns the node's stable arena handle.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the node's taxonomy tag.
func (n *Node) Kind() Kind { return n.kind }

// Graph returns the owning graph.
func (n *Node) Graph() *Graph { return n.graph }

// Stamp returns the node's current value stamp, or nil for void nodes.
func (n *Node) Stamp() stamp.Stamp { return n.stamp }

// SetStamp installs a new stamp computed by the class's stamp function or
// by an explicit infer_stamp call. Returns true iff the stamp changed
// (used by the canonicalizer to decide whether to requeue usages).
// Per invariant 5, new must never be wider than the old stamp for a
// value that has already been observed; this method does not itself
// check monotonicity; Graph.Verify's stamp-monotonicity pass does.
func (n *Node) SetStamp(new stamp.Stamp) bool {
	if stampEqual(n.stamp, new) {
		return false
	}
	n.stamp = new
	return true
}

func stampEqual(a, b stamp.Stamp) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// IsAlive reports whether the node has not been deleted.
func (n *Node) IsAlive() bool { return n.alive }

// Class returns the node's taxonomy descriptor.
func (n *Node) Class() *Class { return classFor(n.kind) }

// IsFloating reports whether the node is a floating (unpinned) value
// producer: it has no control predecessor/successor of its own.
func (n *Node) IsFloating() bool { return n.Class().Shape == shapeFloating }

// IsFixed is the complement of IsFloating.
func (n *Node) IsFixed() bool { return !n.IsFloating() }

// Inputs returns the node's input edges in declaration order. The slice
// must not be mutated by the caller; use Graph's edge-update API.
func (n *Node) Inputs() []Edge { return n.inputs }

// InputAt returns the target of input slot i, or Invalid if out of range.
func (n *Node) InputAt(i int) NodeID {
	if i < 0 || i >= len(n.inputs) {
		return Invalid
	}
	return n.inputs[i].Target
}

// Successors returns the node's ordered control successors.
func (n *Node) Successors() []NodeID { return append([]NodeID(nil), n.succs...) }

// Predecessor returns the node's sole control predecessor (invariant 2),
// or Invalid for the start node and for floating nodes.
func (n *Node) Predecessor() NodeID { return n.pred }

// Usages returns a snapshot of every node using this one as an input,
// with one entry per live edge (a usage appears more than once if the
// user holds more than one edge to this node, e.g. Add(x, x)).
func (n *Node) Usages() []NodeID { return append([]NodeID(nil), n.usages...) }

// HasUsages reports whether any live node currently depends on this one.
func (n *Node) HasUsages() bool { return len(n.usages) > 0 }

func (n *Node) addUsage(user NodeID) { n.usages = append(n.usages, user) }

func (n *Node) removeUsage(user NodeID) {
	for i, u := range n.usages {
		if u == user {
			n.usages = append(n.usages[:i], n.usages[i+1:]...)
			return
		}
	}
}
