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

// CanonicalizerTool is the minimal interface the canon package's engine
// hands to a floating node's Canonical hook.
type CanonicalizerTool interface {
	Graph() *Graph
	// AddToWorkList requeues nodes for re-examination (e.g. because a
	// canonicalization changed one of their inputs).
	AddToWorkList(ids ...NodeID)
}

// SimplifierTool extends CanonicalizerTool with the control-flow-aware
// operations a fixed node's Simplify hook may need.
type SimplifierTool interface {
	CanonicalizerTool
	// DeleteBranch removes an entire unreachable fixed subtree rooted at
	// fixed, unlinking it from control flow first.
	DeleteBranch(fixed NodeID)
	// RemoveIfUnused deletes a floating node if it has no remaining
	// usages after a rewrite made it dead.
	RemoveIfUnused(floating NodeID)
	// AllUsagesAvailable reports whether the engine has finished an
	// initial sweep over the whole graph, so a rewrite that needs to see
	// every usage of a node (not just the ones discovered so far) may
	// proceed.
	AllUsagesAvailable() bool
}

// CanonResult is returned by a Canonical hook.
type CanonResult struct {
	// Self is true when the node canonicalizes to itself (no change).
	Self bool
	// Dead is true when the node canonicalizes to nothing and should be
	// deleted once unused.
	Dead bool
	// Replacement names a different, already-live node to forward all
	// usages to (valid only when !Self && !Dead).
	Replacement NodeID
}

// SelfResult is the canonical "no change" result.
var SelfResult = CanonResult{Self: true}

// DeadResult marks a node as canonicalizing away entirely.
var DeadResult = CanonResult{Dead: true}

// ReplaceWith builds a CanonResult that forwards to an existing node.
func ReplaceWith(id NodeID) CanonResult { return CanonResult{Replacement: id} }

// Class is the C3 node-kind descriptor: the per-variant plain record that
// a startup-populated vtable (classTable) dispatches through, per §9's
// "tagged variant... dispatch through a vtable" design note.
type Class struct {
	Kind  Kind
	Shape shape

	// Pure marks a floating node eligible for value-numbering via the
	// uniquing table.
	Pure bool

	// IsStateSplit, CanDeopt, TouchesMemory, IsSafepoint describe the
	// node's side-effect profile.
	IsStateSplit  bool
	CanDeopt      bool
	TouchesMemory bool
	IsSafepoint   bool

	// StampFn computes the node's output stamp from its current inputs.
	// Nil for void-shaped nodes.
	StampFn func(n *Node) stamp.Stamp

	// Canonical is the pure, floating rewrite hook. At most one of
	// Canonical/Simplify is set per class.
	Canonical func(n *Node, tool CanonicalizerTool) CanonResult

	// Simplify is the control-flow-aware rewrite hook for fixed nodes.
	Simplify func(n *Node, tool SimplifierTool)

	// Lower implements a stage-sensitive rewrite. Called once per node,
	// once per stage advance, for every node whose class sets this.
	Lower func(n *Node, toStage GuardsStage)
}

var classTable [numKinds]*Class

// RegisterClass installs (or overwrites, for tests) a node class
// descriptor. Called from each node-kind's defining file's init().
func RegisterClass(c *Class) {
	classTable[c.Kind] = c
}

func classFor(k Kind) *Class {
	c := classTable[k]
	if c == nil {
		// A Kind with no registered class is a programmer error (a new
		// Kind constant was added without a matching init()) — panic-worthy,
		// not a recoverable compilererr.Bottom.
		panic("ir: no class registered for kind " + k.String())
	}
	return c
}
