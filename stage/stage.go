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

// Package stage implements the staged-lowering half of component C5: the
// orchestration that moves a Graph forward through its monotone
// GuardsStage lifecycle, rewriting every node whose shape depends on the
// stage as it goes.
package stage

import (
	"context"
	"fmt"

	"github.com/sona-project/sona/canon"
	"github.com/sona-project/sona/ir"
)

// Advance moves g's guards stage forward by exactly one transition (to
// must be strictly later than g's current stage), performs the
// stage-specific rewrites that transition requires, then drives e back
// to a fixed point so the canon engine can react to whatever the
// rewrite exposed before the stage is considered settled.
//
// Advance returns an error (rather than panicking, per the bailout error
// taxonomy) if to is not a valid forward transition.
func Advance(ctx context.Context, g *ir.Graph, e *canon.Engine, to ir.GuardsStage) error {
	from := g.GuardsStage()
	if to <= from {
		return fmt.Errorf("stage: guards stage is monotone: cannot advance from %s to %s", from, to)
	}

	switch to {
	case ir.FixedDeopts:
		lowerFloatingGuards(g)
	case ir.AfterFSA:
		attachDeoptFrameStates(g)
	}

	for _, n := range g.AllNodes() {
		if lower := n.Class().Lower; lower != nil {
			lower(n, to)
		}
	}

	g.AdvanceGuardsStage(to)

	if to == ir.AfterFSA && g.HasValueProxies() {
		StripValueProxies(g, e)
	}

	e.Reset()
	return e.Run(ctx)
}
