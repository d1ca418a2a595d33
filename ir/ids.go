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

// Package ir implements the sea-of-nodes intermediate representation: the
// graph arena and edge model (component C1) and the closed node taxonomy
// (component C3). Nodes are stored in a generational arena so edges can be
// plain integer handles instead of pointers, matching the "no cyclic
// ownership, cheap-to-copy index" design called for by a mutable graph
// with back-edges (loops) and cross-edges (usages).
package ir

import "fmt"

// NodeID is a stable handle to a Node within one Graph's arena. The zero
// value never refers to a live node.
type NodeID struct {
	index uint32
	gen   uint32
}

// Invalid is the reserved NodeID that refers to no node.
var Invalid = NodeID{}

// IsValid reports whether id was ever assigned by a Graph's arena.
func (id NodeID) IsValid() bool { return id.gen != 0 }

func (id NodeID) String() string {
	if !id.IsValid() {
		return "<invalid>"
	}
	return fmt.Sprintf("n%d", id.index)
}

// UsageType classifies why one node refers to another as an input.
// Every node class declares which usage types its
// input slots accept; Graph.Verify checks every live edge against its
// declaring class.
type UsageType uint8

const (
	// UsageValue is an ordinary data-flow dependency: the user consumes
	// the value the input produces.
	UsageValue UsageType = iota
	// UsageState is a dependency on a FrameState.
	UsageState
	// UsageGuard is a dependency of a GuardNode/FixedGuard on its
	// logic condition.
	UsageGuard
	// UsageAnchor is a dependency on the guarding-node anchor that
	// establishes a floating guard's placement (invariant 8).
	UsageAnchor
	// UsageCondition is the logic-condition input of a control split.
	UsageCondition
	// UsageAssociation is a loose bookkeeping edge (e.g. a call target
	// naming its Invoke) that carries no runtime value of its own.
	UsageAssociation
	// UsageExtension is reserved for node-kind-specific auxiliary edges
	// that don't fit the other categories (e.g. a virtual-object mapping
	// inside a FrameState).
	UsageExtension
	// UsageMemory is a dependency that orders one memory effect after
	// another without carrying a value.
	UsageMemory
)

func (u UsageType) String() string {
	switch u {
	case UsageValue:
		return "value"
	case UsageState:
		return "state"
	case UsageGuard:
		return "guard"
	case UsageAnchor:
		return "anchor"
	case UsageCondition:
		return "condition"
	case UsageAssociation:
		return "association"
	case UsageExtension:
		return "extension"
	case UsageMemory:
		return "memory"
	default:
		return "unknown-usage"
	}
}
