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

// Sentinel bytecode indices. BeforeBCI/AfterBCI/AfterExceptionBCI mark an
// inlined call's caller-side frame state relative to the call bytecode
// itself (before it executes, after it returns normally, after it
// returns via exception); an inliner substitutes the caller's matching
// frame state wherever a callee node was stamped with one of these
// instead of a real bytecode index. UnknownBCI marks a synthetic
// FrameState (one fabricated by the compiler rather than mirroring an
// interpreter point, e.g. after a rewrite collapses a callee's own
// state) so a deopt reading it can tell "no real resumption point" from
// bci 0. InvalidBCI marks a FrameState that must never itself be used
// as a deopt target.
const (
	BeforeBCI         = -1
	AfterBCI          = -2
	AfterExceptionBCI = -3
	UnknownBCI        = -4
	InvalidBCI        = -5
)

func init() {
	RegisterClass(&Class{Kind: KindFrameState, Shape: shapeFloating, Pure: false, StampFn: func(*Node) stamp.Stamp { return stamp.TheVoid }})
	RegisterClass(&Class{Kind: KindSimpleInfopoint, Shape: shapeFixedWithNext})
	RegisterClass(&Class{Kind: KindFullInfopoint, Shape: shapeFixedWithNext, IsStateSplit: true})
}

// PopKind describes how many interpreter stack slots DuplicateModified's
// pop phase discards before pushing its replacement values, mirroring a
// bytecode operand's width: a long/double result occupies two stack
// slots where everything else occupies one.
type PopKind int

const (
	PopNone PopKind = iota
	PopSingle
	PopDouble
)

func (k PopKind) slots() int {
	switch k {
	case PopSingle:
		return 1
	case PopDouble:
		return 2
	default:
		return 0
	}
}

// FrameStateExtra captures an abstract-interpretation snapshot: the
// owning method, the bytecode index to resume at, and the live
// locals/stack/locks slots (as value-producing node ids, each tracked by
// count rather than by a separate slice field since all three share one
// input-edge list in locals-then-stack-then-locks-then-virtual-object
// order). An outer frame state, when present, is the next-older entry in
// the inlining chain's frame-state-per-call-site sequence; it is carried
// as a genuine UsageState input edge, not a bare field, so that
// replacing or dead-coding the outer state is visible to the usual
// usage-edge bookkeeping.
type FrameStateExtra struct {
	Method string
	BCI    int

	NumLocals                int
	NumStack                 int
	NumLocks                 int
	NumVirtualObjectMappings int
	HasOuterFrameState       bool

	RethrowException bool
	DuringCall       bool
}

func (e *FrameStateExtra) HashKey() string { return "" }

// FrameStateConfig assembles the fields of a FrameState. Locals/Stack are
// value-producing node ids in slot order; Locks are the held monitor
// objects (by object identity, not lock-record index); VirtualObjectMappings
// names the EscapeObjectState-shaped description for each scalar-replaced
// object the runtime must re-materialize on deopt into this frame.
type FrameStateConfig struct {
	Method string
	BCI    int

	Locals []NodeID
	Stack  []NodeID
	Locks  []NodeID

	OuterFrameState       NodeID
	RethrowException      bool
	DuringCall            bool
	VirtualObjectMappings []NodeID
}

// NewFrameStateFull creates a FrameState from the full tuple spec.md
// §4.3 describes: `(method, bci, locals[], stack[], locks[],
// outer_frame_state?, rethrow_exception_flag, during_call_flag,
// virtual-object-mappings[])`.
func (g *Graph) NewFrameStateFull(cfg FrameStateConfig) *Node {
	n := g.newBareNode(KindFrameState)
	for _, v := range cfg.Locals {
		n.AppendInput(v, UsageValue)
	}
	for _, v := range cfg.Stack {
		n.AppendInput(v, UsageValue)
	}
	for _, m := range cfg.Locks {
		n.AppendInput(m, UsageExtension)
	}
	for _, vo := range cfg.VirtualObjectMappings {
		n.AppendInput(vo, UsageExtension)
	}
	hasOuter := cfg.OuterFrameState.IsValid()
	if hasOuter {
		n.AppendInput(cfg.OuterFrameState, UsageState)
	}
	n.Extra = &FrameStateExtra{
		Method:                   cfg.Method,
		BCI:                      cfg.BCI,
		NumLocals:                len(cfg.Locals),
		NumStack:                 len(cfg.Stack),
		NumLocks:                 len(cfg.Locks),
		NumVirtualObjectMappings: len(cfg.VirtualObjectMappings),
		HasOuterFrameState:       hasOuter,
		RethrowException:         cfg.RethrowException,
		DuringCall:               cfg.DuringCall,
	}
	n.stamp = stamp.TheVoid
	id := g.Add(n)
	return g.MustNode(id)
}

// NewFrameState creates a FrameState at bci, over the given ordered local
// values and held monitor objects, with no stack slots, method name, or
// outer frame state of its own. A convenience wrapper over
// NewFrameStateFull for the common case (bytecode-boundary snapshots
// taken outside of an inlined call).
func (g *Graph) NewFrameState(bci int, locals []NodeID, monitors []NodeID) *Node {
	return g.NewFrameStateFull(FrameStateConfig{BCI: bci, Locals: locals, Locks: monitors})
}

func inputTargets(edges []Edge) []NodeID {
	out := make([]NodeID, len(edges))
	for i, e := range edges {
		out[i] = e.Target
	}
	return out
}

// Locals returns fs's live local-variable slots in slot order.
func (fs *Node) Locals() []NodeID {
	ex := fs.Extra.(*FrameStateExtra)
	return inputTargets(fs.inputs[:ex.NumLocals])
}

// Stack returns fs's live interpreter operand-stack slots, bottom first.
func (fs *Node) Stack() []NodeID {
	ex := fs.Extra.(*FrameStateExtra)
	lo := ex.NumLocals
	return inputTargets(fs.inputs[lo : lo+ex.NumStack])
}

// Locks returns fs's held monitor objects in acquisition order.
func (fs *Node) Locks() []NodeID {
	ex := fs.Extra.(*FrameStateExtra)
	lo := ex.NumLocals + ex.NumStack
	return inputTargets(fs.inputs[lo : lo+ex.NumLocks])
}

// VirtualObjectMappings returns the scalar-replaced object descriptions
// fs's deopt must re-materialize alongside its locals/stack/locks.
func (fs *Node) VirtualObjectMappings() []NodeID {
	ex := fs.Extra.(*FrameStateExtra)
	lo := ex.NumLocals + ex.NumStack + ex.NumLocks
	return inputTargets(fs.inputs[lo : lo+ex.NumVirtualObjectMappings])
}

// OuterFrameState returns the next-older frame state in fs's inlining
// chain, if any.
func (fs *Node) OuterFrameState() (NodeID, bool) {
	ex := fs.Extra.(*FrameStateExtra)
	if !ex.HasOuterFrameState {
		return Invalid, false
	}
	lo := ex.NumLocals + ex.NumStack + ex.NumLocks + ex.NumVirtualObjectMappings
	return fs.inputs[lo].Target, true
}

// Duplicate returns an identical copy of fs, sharing all its value
// inputs, used when two state-splits need their own FrameState instance
// but the same logical interpreter state (e.g. after an inline, the
// caller's and callee's entry states start out identical).
func (g *Graph) Duplicate(fs *Node) *Node {
	ex, ok := fs.Extra.(*FrameStateExtra)
	if !ok {
		panic("ir: Duplicate: not a FrameState")
	}
	outer, _ := fs.OuterFrameState()
	return g.NewFrameStateFull(FrameStateConfig{
		Method:                ex.Method,
		BCI:                   ex.BCI,
		Locals:                fs.Locals(),
		Stack:                 fs.Stack(),
		Locks:                 fs.Locks(),
		OuterFrameState:       outer,
		RethrowException:      ex.RethrowException,
		DuringCall:            ex.DuringCall,
		VirtualObjectMappings: fs.VirtualObjectMappings(),
	})
}

// DuplicateModified returns a copy of fs with its bci, rethrow flag, and
// operand stack updated: pop's slot count is discarded from the top of
// fs's current stack, then pushed is appended. This is the shape an
// inliner needs to rewrite a caller's frame state across the bytecode it
// is inlining over (e.g. popping the call's argument slots and pushing
// its now-known return value), without disturbing locals, locks, or the
// outer frame-state chain.
func (g *Graph) DuplicateModified(fs *Node, newBCI int, rethrow bool, pop PopKind, pushed ...NodeID) *Node {
	ex, ok := fs.Extra.(*FrameStateExtra)
	if !ok {
		panic("ir: DuplicateModified: not a FrameState")
	}
	stack := fs.Stack()
	n := pop.slots()
	if n > len(stack) {
		panic("ir: DuplicateModified: pop exceeds current stack depth")
	}
	stack = append(append([]NodeID(nil), stack[:len(stack)-n]...), pushed...)
	outer, _ := fs.OuterFrameState()
	return g.NewFrameStateFull(FrameStateConfig{
		Method:                ex.Method,
		BCI:                   newBCI,
		Locals:                fs.Locals(),
		Stack:                 stack,
		Locks:                 fs.Locks(),
		OuterFrameState:       outer,
		RethrowException:      rethrow,
		DuringCall:            ex.DuringCall,
		VirtualObjectMappings: fs.VirtualObjectMappings(),
	})
}

// NewSimpleInfopoint appends a debug-info-only marker after anchor: it
// records a bytecode position for profiling/debugging but cannot itself
// be a deopt target.
func (g *Graph) NewSimpleInfopoint(anchor *Node, bci int) *Node {
	n := g.newBareNode(KindSimpleInfopoint)
	n.Extra = bci
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// NewFullInfopoint appends a debug marker that also carries a full
// FrameState (e.g. for a breakpoint location), after anchor.
func (g *Graph) NewFullInfopoint(anchor *Node, state NodeID) *Node {
	n := g.newBareNode(KindFullInfopoint)
	n.AppendInput(state, UsageState)
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}
