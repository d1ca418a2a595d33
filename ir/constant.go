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

// ConstantExtra carries a Constant node's immediate value, already folded
// into its precise stamp (a Constant's stamp never needs recomputing).
type ConstantExtra struct {
	Value stamp.Stamp
}

func (e *ConstantExtra) HashKey() string { return e.Value.String() }

func init() {
	RegisterClass(&Class{
		Kind:    KindConstant,
		Shape:   shapeFloating,
		Pure:    true,
		StampFn: constantStamp,
	})
}

func constantStamp(n *Node) stamp.Stamp {
	ex, ok := n.Extra.(*ConstantExtra)
	if !ok {
		return stamp.TheIllegal
	}
	return ex.Value
}

// newConstant is the shared entry point for every NewConstantX helper.
// It does not read Graph.ConstantNodeRecordsUsages: this module
// implements only the recordsUsages=true mode (see DESIGN.md), so every
// constant interns through the uniquing table and records its usages
// like any other node, whatever the flag says.
func (g *Graph) newConstant(v stamp.Stamp) *Node {
	n := g.newBareNode(KindConstant)
	n.Extra = &ConstantExtra{Value: v}
	n.stamp = v
	id := g.Unique(n)
	return g.MustNode(id)
}

// NewConstantInt creates (or returns the existing uniqued instance of) an
// integer constant.
func (g *Graph) NewConstantInt(bits int8, signed bool, value int64) *Node {
	return g.newConstant(stamp.ForConstant(bits, signed, value))
}

// NewConstantFloat creates a float constant of the given width (32 or 64).
func (g *Graph) NewConstantFloat(bits int8, value float64) *Node {
	return g.newConstant(stamp.ForFloatConstant(bits, value))
}

// NewConstantNull creates the canonical always-null object constant.
func (g *Graph) NewConstantNull() *Node {
	return g.newConstant(stamp.ForObject(nil, false, false, true))
}

// NewConstantObject creates a constant naming a specific, known-non-null
// runtime object identity. Two constants naming the same ResolvedType do
// not themselves unique together (object identity, unlike integer value,
// is not captured by the stamp), so callers that want reference equality
// to collapse duplicate loads must dedupe before calling this.
func (g *Graph) NewConstantObject(t stamp.ResolvedType) *Node {
	n := g.newBareNode(KindConstant)
	n.Extra = &ConstantExtra{Value: stamp.ForObject(t, true, true, false)}
	n.stamp = n.Extra.(*ConstantExtra).Value
	id := g.Add(n)
	return g.MustNode(id)
}

func (n *Node) String() string {
	if n.Kind() == KindConstant {
		if ex, ok := n.Extra.(*ConstantExtra); ok {
			return fmt.Sprintf("%s(%s)", n.id, ex.Value)
		}
	}
	return fmt.Sprintf("%s(%s)", n.id, n.kind)
}
