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

	"github.com/sona-project/sona/stamp"
)

// stampOfInput0 is shared by node kinds whose output stamp simply passes
// through their first input's stamp unchanged (e.g. ValueProxy, Pi before
// refinement is applied).
func stampOfInput0(n *Node) stamp.Stamp {
	in, ok := n.graph.Node(n.InputAt(0))
	if !ok {
		return stamp.TheIllegal
	}
	return in.stamp
}

// noExtraFields implements the HashKey() contract edges.go's hashKey
// looks for, for a node whose identity is fully captured by its kind and
// ordered inputs (the common case — no immediate fields beyond those).
type noExtraFields struct{}

func (noExtraFields) HashKey() string { return "" }

func init() {
	RegisterClass(&Class{Kind: KindAdd, Shape: shapeFloating, Pure: true, StampFn: arithStamp(opAdd), Canonical: canonicalAdd})
	RegisterClass(&Class{Kind: KindSub, Shape: shapeFloating, Pure: true, StampFn: arithStamp(opSub), Canonical: canonicalSub})
	RegisterClass(&Class{Kind: KindMul, Shape: shapeFloating, Pure: true, StampFn: arithStamp(opMul), Canonical: canonicalMul})
	RegisterClass(&Class{Kind: KindDiv, Shape: shapeFloating, Pure: true, StampFn: stampOfInput0, Canonical: canonicalSelf})
	RegisterClass(&Class{Kind: KindNeg, Shape: shapeFloating, Pure: true, StampFn: stampOfInput0, Canonical: canonicalSelf})
	RegisterClass(&Class{Kind: KindAnd, Shape: shapeFloating, Pure: true, StampFn: stampOfInput0, Canonical: canonicalSelf})
	RegisterClass(&Class{Kind: KindOr, Shape: shapeFloating, Pure: true, StampFn: stampOfInput0, Canonical: canonicalSelf})
	RegisterClass(&Class{Kind: KindXor, Shape: shapeFloating, Pure: true, StampFn: stampOfInput0, Canonical: canonicalSelf})
	RegisterClass(&Class{Kind: KindNot, Shape: shapeFloating, Pure: true, StampFn: stampOfInput0, Canonical: canonicalSelf})
	RegisterClass(&Class{Kind: KindShl, Shape: shapeFloating, Pure: true, StampFn: stampOfInput0, Canonical: canonicalSelf})
	RegisterClass(&Class{Kind: KindShr, Shape: shapeFloating, Pure: true, StampFn: stampOfInput0, Canonical: canonicalSelf})
	RegisterClass(&Class{Kind: KindCompare, Shape: shapeFloating, Pure: true, StampFn: logicStamp, Canonical: canonicalCompare})
	RegisterClass(&Class{Kind: KindLogicNegation, Shape: shapeFloating, Pure: true, StampFn: logicStamp, Canonical: canonicalLogicNegation})
	RegisterClass(&Class{Kind: KindConditional, Shape: shapeFloating, Pure: true, StampFn: meetStampOf(1, 2), Canonical: canonicalConditional})
	RegisterClass(&Class{Kind: KindInstanceOf, Shape: shapeFloating, Pure: true, StampFn: logicStamp, Canonical: canonicalSelf})
	RegisterClass(&Class{Kind: KindIsNull, Shape: shapeFloating, Pure: true, StampFn: logicStamp, Canonical: canonicalIsNull})
}

func logicStamp(n *Node) stamp.Stamp { return stamp.ForInteger(1, false, 0, 1) }

func meetStampOf(a, b int) func(*Node) stamp.Stamp {
	return func(n *Node) stamp.Stamp {
		x, okX := n.graph.Node(n.InputAt(a))
		y, okY := n.graph.Node(n.InputAt(b))
		if !okX || !okY || x.stamp == nil || y.stamp == nil {
			return stamp.TheIllegal
		}
		return x.stamp.Meet(y.stamp)
	}
}

type arithOp uint8

const (
	opAdd arithOp = iota
	opSub
	opMul
)

func arithStamp(op arithOp) func(*Node) stamp.Stamp {
	return func(n *Node) stamp.Stamp {
		x, okX := n.graph.Node(n.InputAt(0))
		y, okY := n.graph.Node(n.InputAt(1))
		if !okX || !okY || x.stamp == nil || y.stamp == nil {
			return stamp.TheIllegal
		}
		xs, xok := x.stamp.(stamp.IntegerStamp)
		ys, yok := y.stamp.(stamp.IntegerStamp)
		if !xok || !yok || xs.Bits != ys.Bits || xs.Signed != ys.Signed {
			return x.stamp
		}
		var fold func(bits int8, signed bool, a, b int64) (int64, bool)
		switch op {
		case opAdd:
			fold = stamp.AddExact
		case opSub:
			fold = stamp.SubExact
		case opMul:
			fold = stamp.MulExact
		}
		// The extremes of x op y over two ranges lie at the corners of
		// those ranges (for Sub the low bound is x.Lo - y.Hi, for Mul any
		// corner may be the minimum once signs mix).
		corners := [4][2]int64{{xs.Lo, ys.Lo}, {xs.Lo, ys.Hi}, {xs.Hi, ys.Lo}, {xs.Hi, ys.Hi}}
		var loR, hiR int64
		overflow := false
		for i, c := range corners {
			v, of := fold(xs.Bits, xs.Signed, c[0], c[1])
			overflow = overflow || of
			if i == 0 || v < loR {
				loR = v
			}
			if i == 0 || v > hiR {
				hiR = v
			}
		}
		if overflow {
			// Overflow anywhere in the bound computation forces the
			// full representable range rather than a wrong narrow one
			// (invariant 5: never silently widen past correctness by
			// pretending we know a tighter bound than we do).
			lo, hi := fullRange(xs.Bits, xs.Signed)
			return stamp.ForInteger(xs.Bits, xs.Signed, lo, hi)
		}
		return stamp.ForInteger(xs.Bits, xs.Signed, loR, hiR)
	}
}

func fullRange(bits int8, signed bool) (int64, int64) {
	if !signed {
		if bits >= 63 {
			return 0, 1<<62 - 1
		}
		return 0, (1 << uint(bits)) - 1
	}
	if bits >= 64 {
		return -(1 << 63), 1<<63 - 1
	}
	half := int64(1) << uint(bits-1)
	return -half, half - 1
}

func canonicalSelf(n *Node, tool CanonicalizerTool) CanonResult { return SelfResult }

// canonicalAdd/Sub/Mul fold two constant integer operands and canonicalize
// `x + 0`, `x - 0`, `x * 1`, `x * 0` — the representative arithmetic
// simplifications every sea-of-nodes IR performs.
func canonicalAdd(n *Node, tool CanonicalizerTool) CanonResult {
	g := tool.Graph()
	x, y := g.MustNode(n.InputAt(0)), g.MustNode(n.InputAt(1))
	if cx, cy, ok := bothConstantInt(x, y); ok {
		v, overflow := stamp.AddExact(cx.Bits, cx.Signed, cx.Lo, cy.Lo)
		if !overflow {
			return foldToConstant(g, cx.Bits, cx.Signed, v)
		}
	}
	if isZeroConstant(y) {
		return ReplaceWith(x.id)
	}
	if isZeroConstant(x) {
		return ReplaceWith(y.id)
	}
	return SelfResult
}

func canonicalSub(n *Node, tool CanonicalizerTool) CanonResult {
	g := tool.Graph()
	x, y := g.MustNode(n.InputAt(0)), g.MustNode(n.InputAt(1))
	if cx, cy, ok := bothConstantInt(x, y); ok {
		v, overflow := stamp.SubExact(cx.Bits, cx.Signed, cx.Lo, cy.Lo)
		if !overflow {
			return foldToConstant(g, cx.Bits, cx.Signed, v)
		}
	}
	if isZeroConstant(y) {
		return ReplaceWith(x.id)
	}
	return SelfResult
}

func canonicalMul(n *Node, tool CanonicalizerTool) CanonResult {
	g := tool.Graph()
	x, y := g.MustNode(n.InputAt(0)), g.MustNode(n.InputAt(1))
	if cx, cy, ok := bothConstantInt(x, y); ok {
		v, overflow := stamp.MulExact(cx.Bits, cx.Signed, cx.Lo, cy.Lo)
		if !overflow {
			return foldToConstant(g, cx.Bits, cx.Signed, v)
		}
	}
	if isOneConstant(y) {
		return ReplaceWith(x.id)
	}
	if isOneConstant(x) {
		return ReplaceWith(y.id)
	}
	if isZeroConstant(y) {
		return ReplaceWith(y.id)
	}
	if isZeroConstant(x) {
		return ReplaceWith(x.id)
	}
	return SelfResult
}

func bothConstantInt(x, y *Node) (stamp.IntegerStamp, stamp.IntegerStamp, bool) {
	if x.Kind() != KindConstant || y.Kind() != KindConstant {
		return stamp.IntegerStamp{}, stamp.IntegerStamp{}, false
	}
	xs, xok := x.stamp.(stamp.IntegerStamp)
	ys, yok := y.stamp.(stamp.IntegerStamp)
	if !xok || !yok || !xs.IsConstant() || !ys.IsConstant() {
		return stamp.IntegerStamp{}, stamp.IntegerStamp{}, false
	}
	return xs, ys, true
}

func isZeroConstant(n *Node) bool {
	s, ok := n.stamp.(stamp.IntegerStamp)
	return n.Kind() == KindConstant && ok && s.IsConstant() && s.Lo == 0
}

func isOneConstant(n *Node) bool {
	s, ok := n.stamp.(stamp.IntegerStamp)
	return n.Kind() == KindConstant && ok && s.IsConstant() && s.Lo == 1
}

func foldToConstant(g *Graph, bits int8, signed bool, v int64) CanonResult {
	c := g.NewConstantInt(bits, signed, v)
	return ReplaceWith(c.id)
}

func canonicalCompare(n *Node, tool CanonicalizerTool) CanonResult {
	g := tool.Graph()
	x, okX := g.Node(n.InputAt(0))
	y, okY := g.Node(n.InputAt(1))
	if !okX || !okY {
		return SelfResult
	}
	if x.stamp != nil && y.stamp != nil && x.stamp.AlwaysDistinct(y.stamp) {
		if op, ok := n.Extra.(*CompareExtra); ok && op.Op == CompareEQ {
			return foldBool(g, false)
		}
	}
	return SelfResult
}

func canonicalLogicNegation(n *Node, tool CanonicalizerTool) CanonResult {
	g := tool.Graph()
	in, ok := g.Node(n.InputAt(0))
	if !ok {
		return SelfResult
	}
	if in.Kind() == KindLogicNegation {
		// negate(negate(x)) == x.
		return ReplaceWith(in.InputAt(0))
	}
	if b, ok := constBool(in); ok {
		return foldBool(g, !b)
	}
	return SelfResult
}

func canonicalConditional(n *Node, tool CanonicalizerTool) CanonResult {
	g := tool.Graph()
	cond, ok := g.Node(n.InputAt(0))
	if !ok {
		return SelfResult
	}
	if b, ok := constBool(cond); ok {
		if b {
			return ReplaceWith(n.InputAt(1))
		}
		return ReplaceWith(n.InputAt(2))
	}
	if n.InputAt(1) == n.InputAt(2) {
		return ReplaceWith(n.InputAt(1))
	}
	return SelfResult
}

func canonicalIsNull(n *Node, tool CanonicalizerTool) CanonResult {
	g := tool.Graph()
	in, ok := g.Node(n.InputAt(0))
	if !ok {
		return SelfResult
	}
	if os, ok := in.stamp.(stamp.ObjectStamp); ok {
		if os.AlwaysNull {
			return foldBool(g, true)
		}
		if os.NonNull {
			return foldBool(g, false)
		}
	}
	return SelfResult
}

func constBool(n *Node) (bool, bool) {
	if n.Kind() != KindConstant {
		return false, false
	}
	s, ok := n.stamp.(stamp.IntegerStamp)
	if !ok || !s.IsConstant() {
		return false, false
	}
	return s.Lo != 0, true
}

func foldBool(g *Graph, v bool) CanonResult {
	iv := int64(0)
	if v {
		iv = 1
	}
	c := g.NewConstantInt(1, false, iv)
	return ReplaceWith(c.id)
}

// CompareOp names the comparison predicate a Compare node evaluates.
type CompareOp uint8

const (
	CompareEQ CompareOp = iota
	CompareNE
	CompareLT
	CompareLE
)

func (o CompareOp) String() string {
	switch o {
	case CompareEQ:
		return "=="
	case CompareNE:
		return "!="
	case CompareLT:
		return "<"
	case CompareLE:
		return "<="
	default:
		return "?"
	}
}

// CompareExtra is a Compare node's immediate field.
type CompareExtra struct{ Op CompareOp }

func (e *CompareExtra) HashKey() string { return e.Op.String() }

// NewBinary constructs a floating binary arithmetic/logic node of the
// given kind over x, y.
func (g *Graph) NewBinary(kind Kind, x, y NodeID) *Node {
	switch kind {
	case KindAdd, KindSub, KindMul, KindDiv, KindAnd, KindOr, KindXor, KindShl, KindShr:
	default:
		panic(fmt.Sprintf("ir: NewBinary: %s is not a binary kind", kind))
	}
	n := g.newBareNode(kind)
	n.AppendInput(x, UsageValue)
	n.AppendInput(y, UsageValue)
	n.Extra = noExtraFields{}
	n.stamp = classFor(kind).StampFn(n)
	return g.finishFloating(n)
}

// NewUnary constructs a floating unary node (Neg or Not) over x.
func (g *Graph) NewUnary(kind Kind, x NodeID) *Node {
	switch kind {
	case KindNeg, KindNot:
	default:
		panic(fmt.Sprintf("ir: NewUnary: %s is not a unary kind", kind))
	}
	n := g.newBareNode(kind)
	n.AppendInput(x, UsageValue)
	n.Extra = noExtraFields{}
	n.stamp = classFor(kind).StampFn(n)
	return g.finishFloating(n)
}

// NewCompare constructs a Compare node.
func (g *Graph) NewCompare(op CompareOp, x, y NodeID) *Node {
	n := g.newBareNode(KindCompare)
	n.AppendInput(x, UsageValue)
	n.AppendInput(y, UsageValue)
	n.Extra = &CompareExtra{Op: op}
	n.stamp = logicStamp(n)
	return g.finishFloating(n)
}

// NewLogicNegation wraps a logic-valued node in a negation.
func (g *Graph) NewLogicNegation(x NodeID) *Node {
	n := g.newBareNode(KindLogicNegation)
	n.AppendInput(x, UsageValue)
	n.Extra = noExtraFields{}
	n.stamp = logicStamp(n)
	return g.finishFloating(n)
}

// NewConditional constructs a select: cond ? t : f.
func (g *Graph) NewConditional(cond, t, f NodeID) *Node {
	n := g.newBareNode(KindConditional)
	n.AppendInput(cond, UsageCondition)
	n.AppendInput(t, UsageValue)
	n.AppendInput(f, UsageValue)
	n.Extra = noExtraFields{}
	n.stamp = meetStampOf(1, 2)(n)
	return g.finishFloating(n)
}

// NewIsNull constructs an IsNull type test.
func (g *Graph) NewIsNull(x NodeID) *Node {
	n := g.newBareNode(KindIsNull)
	n.AppendInput(x, UsageValue)
	n.Extra = noExtraFields{}
	n.stamp = logicStamp(n)
	return g.finishFloating(n)
}

// InstanceOfExtra names the type an InstanceOf tests its object input
// against.
type InstanceOfExtra struct {
	Type stamp.ResolvedType
}

func (e *InstanceOfExtra) HashKey() string {
	if e.Type == nil {
		return ""
	}
	return e.Type.Name()
}

// NewInstanceOf constructs a type test of object against t.
func (g *Graph) NewInstanceOf(object NodeID, t stamp.ResolvedType) *Node {
	n := g.newBareNode(KindInstanceOf)
	n.AppendInput(object, UsageValue)
	n.Extra = &InstanceOfExtra{Type: t}
	n.stamp = logicStamp(n)
	return g.finishFloating(n)
}

// disjointInstanceOf reports whether x and y are both InstanceOf tests of
// the identical object against types that cannot both hold at once: an
// exact-type join that comes up empty proves no object satisfies both, the
// same reasoning ImproveWith's object-stamp arm already relies on.
func disjointInstanceOf(g *Graph, x, y NodeID) bool {
	xn, ok := g.Node(x)
	if !ok || xn.Kind() != KindInstanceOf {
		return false
	}
	yn, ok := g.Node(y)
	if !ok || yn.Kind() != KindInstanceOf {
		return false
	}
	if xn.InputAt(0) != yn.InputAt(0) {
		return false
	}
	xex, ok := xn.Extra.(*InstanceOfExtra)
	if !ok || xex.Type == nil {
		return false
	}
	yex, ok := yn.Extra.(*InstanceOfExtra)
	if !ok || yex.Type == nil {
		return false
	}
	xs := stamp.ForObject(xex.Type, true, true, false)
	ys := stamp.ForObject(yex.Type, true, true, false)
	return xs.Join(ys).Empty()
}

// disjointCompare reports whether x and y are both equality Compares of
// the identical left operand against right operands whose stamps can never
// agree (AlwaysDistinct): x and y cannot both hold for the same operand.
func disjointCompare(g *Graph, x, y NodeID) bool {
	xn, ok := g.Node(x)
	if !ok || xn.Kind() != KindCompare {
		return false
	}
	yn, ok := g.Node(y)
	if !ok || yn.Kind() != KindCompare {
		return false
	}
	xex, ok := xn.Extra.(*CompareExtra)
	if !ok || xex.Op != CompareEQ {
		return false
	}
	yex, ok := yn.Extra.(*CompareExtra)
	if !ok || yex.Op != CompareEQ {
		return false
	}
	if xn.InputAt(0) != yn.InputAt(0) {
		return false
	}
	xr, ok := g.Node(xn.InputAt(1))
	if !ok || xr.stamp == nil {
		return false
	}
	yr, ok := g.Node(yn.InputAt(1))
	if !ok || yr.stamp == nil {
		return false
	}
	return xr.stamp.AlwaysDistinct(yr.stamp)
}

// disjointConditions reports whether two floating logic-valued conditions
// can never both hold, the reorderability test a cross-If hoist needs
// before it may swap two successive Ifs' relative order.
func disjointConditions(g *Graph, x, y NodeID) bool {
	return disjointInstanceOf(g, x, y) || disjointCompare(g, x, y)
}

// finishFloating runs the canonicalizer-table's Unique step for a pure
// floating node once its inputs/Extra/stamp are populated.
func (g *Graph) finishFloating(n *Node) *Node {
	cls := n.Class()
	if cls.Pure {
		return g.MustNode(g.Unique(n))
	}
	return g.MustNode(g.Add(n))
}
