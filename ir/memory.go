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
	RegisterClass(&Class{Kind: KindLoadField, Shape: shapeFixedWithNext, TouchesMemory: true, StampFn: fieldLoadStamp, Canonical: canonicalLoadField})
	RegisterClass(&Class{Kind: KindStoreField, Shape: shapeFixedWithNext, TouchesMemory: true})
	RegisterClass(&Class{Kind: KindLoadIndexed, Shape: shapeFixedWithNext, TouchesMemory: true, CanDeopt: true, StampFn: indexedLoadStamp})
	RegisterClass(&Class{Kind: KindStoreIndexed, Shape: shapeFixedWithNext, TouchesMemory: true, CanDeopt: true})
	RegisterClass(&Class{Kind: KindNewInstance, Shape: shapeFixedWithNext, TouchesMemory: true, StampFn: newInstanceStamp})
	RegisterClass(&Class{Kind: KindNewArray, Shape: shapeFixedWithNext, TouchesMemory: true, CanDeopt: true, StampFn: newArrayStamp})
	RegisterClass(&Class{Kind: KindMonitorEnter, Shape: shapeFixedWithNext, TouchesMemory: true, IsSafepoint: true})
	RegisterClass(&Class{Kind: KindMonitorExit, Shape: shapeFixedWithNext, TouchesMemory: true})
	RegisterClass(&Class{Kind: KindMembar, Shape: shapeFixedWithNext, TouchesMemory: true, Simplify: simplifyMembar})
}

// FieldExtra identifies a field access by name, with its declared stamp
// and volatility, the minimal metadata a LoadField/StoreField needs
// without depending on the runtime's full meta.MetaAccess. It carries no
// layout offset.
type FieldExtra struct {
	Name       string
	FieldStamp stamp.Stamp
	Volatile   bool
}

func (e *FieldExtra) HashKey() string { return e.Name }

// NewLoadField appends a field read after anchor, ordered after the
// given prior memory effect (Invalid if none).
func (g *Graph) NewLoadField(anchor *Node, object NodeID, field FieldExtra, priorMemory NodeID) *Node {
	n := g.newBareNode(KindLoadField)
	n.AppendInput(object, UsageValue)
	if priorMemory.IsValid() {
		n.AppendInput(priorMemory, UsageMemory)
	}
	ex := field
	n.Extra = &ex
	id := g.Add(n)
	n = g.MustNode(id)
	n.stamp = fieldLoadStamp(n)
	g.AddAfterFixed(anchor, n)
	return n
}

func fieldLoadStamp(n *Node) stamp.Stamp {
	ex, ok := n.Extra.(*FieldExtra)
	if !ok || ex.FieldStamp == nil {
		return stamp.TheIllegal
	}
	return ex.FieldStamp
}

// canonicalLoadField folds a read of a field that a preceding StoreField
// on the identical object already pinned to a known value (a minimal
// store-to-load forwarding, the representative TouchesMemory rewrite).
// LoadField is fixed, not floating, so the splice is performed directly
// against the graph rather than through the engine's generic
// replace-and-remove path (which assumes a floating node's usages are
// its only live edges): ReplaceFixedWithFloating both unlinks the load
// from the control chain and forwards its value usages.
func canonicalLoadField(n *Node, tool CanonicalizerTool) CanonResult {
	ex, ok := n.Extra.(*FieldExtra)
	if !ok || ex.Volatile {
		return SelfResult
	}
	forwarded, ok := forwardedStoreValue(tool.Graph(), n, n.InputAt(0), ex.Name)
	if !ok {
		return SelfResult
	}
	usages := n.Usages()
	tool.Graph().ReplaceFixedWithFloating(n, forwarded)
	tool.AddToWorkList(usages...)
	return SelfResult
}

// forwardedStoreValue walks n's same-object prior-memory chain looking
// for a StoreField to field that n's load can use directly. It stops
// (reporting no forwarding) at the first memory effect it cannot prove
// does not alias: a store to a different object, or any memory-touching
// kind it does not understand. A store to a different field of the same
// object does not alias and the walk continues past it.
func forwardedStoreValue(g *Graph, n *Node, object NodeID, field string) (NodeID, bool) {
	cur, ok := inputByUsage(n, UsageMemory)
	if !ok {
		return Invalid, false
	}
	for cur.IsValid() {
		m, ok := g.Node(cur)
		if !ok {
			return Invalid, false
		}
		if m.Kind() != KindStoreField {
			return Invalid, false
		}
		mex, ok := m.Extra.(*FieldExtra)
		if !ok || m.InputAt(0) != object {
			return Invalid, false
		}
		if mex.Name == field {
			return m.InputAt(1), true
		}
		cur, ok = inputByUsage(m, UsageMemory)
		if !ok {
			return Invalid, false
		}
	}
	return Invalid, false
}

// inputByUsage returns n's first input edge of the given usage type.
func inputByUsage(n *Node, usage UsageType) (NodeID, bool) {
	for _, e := range n.Inputs() {
		if e.Usage == usage {
			return e.Target, true
		}
	}
	return Invalid, false
}

// NewStoreField appends a field write after anchor.
func (g *Graph) NewStoreField(anchor *Node, object, value NodeID, field FieldExtra, priorMemory NodeID) *Node {
	n := g.newBareNode(KindStoreField)
	n.AppendInput(object, UsageValue)
	n.AppendInput(value, UsageValue)
	if priorMemory.IsValid() {
		n.AppendInput(priorMemory, UsageMemory)
	}
	ex := field
	n.Extra = &ex
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// IndexedExtra carries an array access's element stamp.
type IndexedExtra struct {
	ElementStamp stamp.Stamp
}

func (e *IndexedExtra) HashKey() string { return "" }

// NewLoadIndexed appends an array read after anchor. It can deopt on an
// out-of-bounds index before a bounds check has been hoisted into a
// guard.
func (g *Graph) NewLoadIndexed(anchor *Node, array, index NodeID, elem stamp.Stamp, priorMemory NodeID) *Node {
	n := g.newBareNode(KindLoadIndexed)
	n.AppendInput(array, UsageValue)
	n.AppendInput(index, UsageValue)
	if priorMemory.IsValid() {
		n.AppendInput(priorMemory, UsageMemory)
	}
	n.Extra = &IndexedExtra{ElementStamp: elem}
	id := g.Add(n)
	n = g.MustNode(id)
	n.stamp = indexedLoadStamp(n)
	g.AddAfterFixed(anchor, n)
	return n
}

func indexedLoadStamp(n *Node) stamp.Stamp {
	ex, ok := n.Extra.(*IndexedExtra)
	if !ok || ex.ElementStamp == nil {
		return stamp.TheIllegal
	}
	return ex.ElementStamp
}

// NewStoreIndexed appends an array write after anchor.
func (g *Graph) NewStoreIndexed(anchor *Node, array, index, value NodeID, priorMemory NodeID) *Node {
	n := g.newBareNode(KindStoreIndexed)
	n.AppendInput(array, UsageValue)
	n.AppendInput(index, UsageValue)
	n.AppendInput(value, UsageValue)
	if priorMemory.IsValid() {
		n.AppendInput(priorMemory, UsageMemory)
	}
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// NewInstanceExtra names the allocated type.
type NewInstanceExtra struct {
	Type stamp.ResolvedType
}

func (e *NewInstanceExtra) HashKey() string { return "" }

// NewNewInstance appends an allocation after anchor.
func (g *Graph) NewNewInstance(anchor *Node, t stamp.ResolvedType) *Node {
	n := g.newBareNode(KindNewInstance)
	n.Extra = &NewInstanceExtra{Type: t}
	id := g.Add(n)
	n = g.MustNode(id)
	n.stamp = newInstanceStamp(n)
	g.AddAfterFixed(anchor, n)
	return n
}

func newInstanceStamp(n *Node) stamp.Stamp {
	ex, ok := n.Extra.(*NewInstanceExtra)
	if !ok {
		return stamp.TheIllegal
	}
	return stamp.ForObject(ex.Type, true, true, false)
}

// NewArrayExtra names the allocated array's element type.
type NewArrayExtra struct {
	ElementType stamp.ResolvedType
}

func (e *NewArrayExtra) HashKey() string { return "" }

// NewNewArray appends an array allocation after anchor; it can deopt on a
// negative length before that check has been proven unnecessary.
func (g *Graph) NewNewArray(anchor *Node, length NodeID, elem stamp.ResolvedType) *Node {
	n := g.newBareNode(KindNewArray)
	n.AppendInput(length, UsageValue)
	n.Extra = &NewArrayExtra{ElementType: elem}
	id := g.Add(n)
	n = g.MustNode(id)
	n.stamp = newArrayStamp(n)
	g.AddAfterFixed(anchor, n)
	return n
}

func newArrayStamp(n *Node) stamp.Stamp {
	ex, ok := n.Extra.(*NewArrayExtra)
	if !ok {
		return stamp.TheIllegal
	}
	return stamp.ForObject(ex.ElementType, true, true, false)
}

// NewMonitorEnter appends a lock acquisition after anchor.
func (g *Graph) NewMonitorEnter(anchor *Node, object NodeID) *Node {
	n := g.newBareNode(KindMonitorEnter)
	n.AppendInput(object, UsageValue)
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// NewMonitorExit appends a lock release after anchor.
func (g *Graph) NewMonitorExit(anchor *Node, object NodeID) *Node {
	n := g.newBareNode(KindMonitorExit)
	n.AppendInput(object, UsageValue)
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// NewMembar appends a memory barrier after anchor.
func (g *Graph) NewMembar(anchor *Node) *Node {
	n := g.newBareNode(KindMembar)
	id := g.Add(n)
	n = g.MustNode(id)
	g.AddAfterFixed(anchor, n)
	return n
}

// simplifyMembar removes a Membar with no other memory-effectful node
// depending on its ordering.
func simplifyMembar(n *Node, tool SimplifierTool) {
	if n.HasUsages() {
		return
	}
	tool.Graph().RemoveFixed(n)
}
