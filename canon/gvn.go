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

package canon

import (
	"context"

	"github.com/sona-project/sona/ir"
)

// GlobalValueNumber re-checks every already-inserted pure floating node
// for value-numbering opportunities that incremental Unique() calls at
// construction time can miss: a batch of canonicalizations can rewrite
// two previously-distinct subgraphs' inputs until they become the same
// shape, without either node ever being re-run through Unique itself.
//
// It groups live Pure nodes by ir.HashKey, and for each group with more
// than one member forwards every member but one to a single survivor via
// ReplaceAtUsages, requeuing the survivor and every forwarded node's
// usages so the engine's next pass can react to the merge. It returns
// the number of nodes merged away.
func GlobalValueNumber(g *ir.Graph, tool ir.CanonicalizerTool) int {
	groups := make(map[string][]*ir.Node)
	for _, n := range g.AllNodes() {
		if !n.Class().Pure {
			continue
		}
		key := ir.HashKey(n)
		groups[key] = append(groups[key], n)
	}

	merged := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		survivor := group[0]
		for _, dup := range group[1:] {
			if dup.ID() == survivor.ID() {
				continue
			}
			usages := dup.Usages()
			g.ReplaceAtUsages(dup.ID(), survivor.ID())
			g.RemoveIfUnused(dup)
			tool.AddToWorkList(survivor.ID())
			tool.AddToWorkList(usages...)
			merged++
		}
	}
	return merged
}

// RunToFixedPointWithGVN drives e to a fixed point, then runs a
// GlobalValueNumber sweep; if the sweep merged anything it requeues the
// engine and repeats, since a merge can expose further canonicalization
// opportunities the incremental work list never saw.
func RunToFixedPointWithGVN(ctx context.Context, e *Engine) error {
	for {
		if err := e.Run(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if GlobalValueNumber(e.g, e.tool) == 0 {
			return nil
		}
	}
}
