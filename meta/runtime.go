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

// Package meta declares the runtime interface the core consumes: class/
// field/method resolution, profiling information, staged lowering hooks,
// and assumption bookkeeping. Implementations live outside this module —
// the embedding host supplies them.
package meta

import (
	"github.com/sona-project/sona/config"
	"github.com/sona-project/sona/ir"
)

// ClassRef, FieldRef, and MethodRef are opaque handles a MetaAccess
// implementation hands back; the core never inspects their contents,
// only threads them through to later MetaAccess calls and to the
// code-generator hand-off.
type (
	ClassRef  any
	FieldRef  any
	MethodRef any
)

// MetaAccess resolves classes, fields, and methods, and encodes/decodes
// deopt reason values. Implementations must be safe for concurrent use by
// many single-threaded compilations running against the same runtime.
type MetaAccess interface {
	// ResolveClass looks up a class by its runtime-specific name/id. ok is
	// false if the runtime cannot resolve it (an UnsupportedQuery
	// candidate).
	ResolveClass(name string) (ref ClassRef, ok bool)

	// ResolveField looks up a field of class by name.
	ResolveField(class ClassRef, name string) (ref FieldRef, ok bool)

	// ResolveMethod looks up a method of class by signature.
	ResolveMethod(class ClassRef, signature string) (ref MethodRef, ok bool)
}

// NullSeen is ProfilingInfo's tristate answer to "has a null ever been
// observed at this BCI".
type NullSeen uint8

const (
	NullSeenUnknown NullSeen = iota
	NullSeenNever
	NullSeenAlways
	NullSeenSometimes
)

// TypeProfile is one class's observed share of the values seen at a BCI.
type TypeProfile struct {
	Class       ClassRef
	Probability float64
}

// BranchProfile is the observed taken/not-taken counts for a conditional
// branch at a BCI.
type BranchProfile struct {
	Taken    uint64
	NotTaken uint64
}

// ProfilingInfo answers per-BCI type and branch profile questions.
// Profiling information may be stale but must stay internally consistent
// for the duration of one compilation.
type ProfilingInfo interface {
	NullSeenAt(bci int) NullSeen
	TypeProfileAt(bci int) []TypeProfile
	BranchProfileAt(bci int) (BranchProfile, bool)
}

// LoweringProvider handles node-specific lowering at stage boundaries, for
// node kinds whose lowering depends on runtime metadata the core itself
// has no business knowing (e.g. choosing a field offset). The stage
// package runs every node's Lower hook (ir.Class.Lower) at each stage
// advance; a hook that delegates to the runtime calls into this.
type LoweringProvider interface {
	// Lower rewrites n (already fixed in the graph) for stage, returning
	// whether it made a change. Nodes the provider has no opinion about
	// should report false rather than touching the graph.
	Lower(g *ir.Graph, n *ir.Node, stage ir.GuardsStage) (changed bool)
}

// AssumptionKind names a recognized category of optimistic assumption.
type AssumptionKind int

const (
	AssumptionLeafMethod AssumptionKind = iota
	AssumptionUniqueConcreteSubtype
)

// Assumption is one optimistic, runtime-invalidatable fact a compilation
// recorded while compiling (e.g. "class C has no subclasses").
type Assumption struct {
	Kind    AssumptionKind
	Subject any
}

// Assumptions records, merges, and invalidates optimistic assumptions
// made during compilation. A compilation that depended on an assumption
// the runtime later invalidates must bail out and recompile — an
// "assumption invalidation during compile" bailout.
type Assumptions interface {
	// Record adds a to the current compilation's assumption set. Record
	// is a no-op if cfg.AllowAssumptions is AllowAssumptionsNo; callers
	// should still call it unconditionally and let the implementation
	// enforce the policy rather than branching at each call site.
	Record(cfg config.Compiler, a Assumption)

	// Merge folds in's assumptions into the receiver's set (used when
	// inlining brings in assumptions the inlined method itself depended
	// on).
	Merge(in Assumptions)

	// Invalidate reports whether any recorded assumption about subject is
	// still valid; false means the compilation that recorded it must
	// bail out.
	Invalidate(subject any) (stillValid bool)
}
