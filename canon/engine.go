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
	"fmt"

	"github.com/sona-project/sona/ir"
)

// Engine drives the fixed-point canonicalization/simplification sweep
// over one Graph.
type Engine struct {
	g    *ir.Graph
	work *workList
	tool *engineTool

	initialSweepDone bool

	// Steps counts live nodes popped from the work list (whether or not
	// their class has a hook to run), accumulated across every Run on
	// this Engine, for diagnostics/tests; not used for any control-flow
	// decision.
	Steps int
}

// NewEngine creates an Engine over g with every currently-live node
// queued for an initial pass.
func NewEngine(g *ir.Graph) *Engine {
	e := &Engine{g: g, work: newWorkList()}
	e.tool = &engineTool{e: e}
	for _, n := range g.AllNodes() {
		e.work.push(n.ID())
	}
	return e
}

// AddToWorkList requeues ids for re-examination; used by callers (e.g.
// the stage package, after a Lower rewrite) that want the canonicalizer
// to revisit nodes it already passed over.
func (e *Engine) AddToWorkList(ids ...ir.NodeID) { e.work.push(ids...) }

// Run drains the work list to a fixed point, honoring ctx cancellation
// between steps. It
// returns ctx.Err() if cancelled before reaching a fixed point.
func (e *Engine) Run(ctx context.Context) error {
	for !e.work.empty() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		id, ok := e.work.pop()
		if !ok {
			break
		}
		e.step(id)
	}
	e.initialSweepDone = true
	return ctx.Err()
}

func (e *Engine) step(id ir.NodeID) {
	n, ok := e.g.Node(id)
	if !ok {
		return
	}
	e.Steps++
	cls := n.Class()
	switch {
	case cls.Canonical != nil:
		e.applyCanonical(n, cls)
	case cls.Simplify != nil:
		cls.Simplify(n, e.tool)
	}
}

func (e *Engine) applyCanonical(n *ir.Node, cls *ir.Class) {
	res := cls.Canonical(n, e.tool)
	switch {
	case res.Self:
		return
	case res.Dead:
		e.g.RemoveIfUnused(n)
	case res.Replacement.IsValid():
		if res.Replacement == n.ID() {
			panic(fmt.Sprintf("canon: %s canonicalized to itself without Self=true", n.ID()))
		}
		usages := n.Usages()
		e.g.ReplaceAtUsages(n.ID(), res.Replacement)
		e.work.push(res.Replacement)
		e.work.push(usages...)
		e.g.RemoveIfUnused(n)
	default:
		panic(fmt.Sprintf("canon: %s: canonical hook returned an empty CanonResult", n.ID()))
	}
}

// Reset requeues every currently-live node, used between stage advances
// when the stage package wants a full fresh sweep rather than only the
// nodes its Lower rewrites explicitly touched.
func (e *Engine) Reset() {
	e.work = newWorkList()
	for _, n := range e.g.AllNodes() {
		e.work.push(n.ID())
	}
	e.initialSweepDone = false
}
