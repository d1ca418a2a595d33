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

import "github.com/sona-project/sona/ir"

// engineTool is the concrete ir.CanonicalizerTool/ir.SimplifierTool the
// Engine hands to each node's rewrite hook. It is a thin adapter: every
// operation delegates straight to the Engine's graph and work list.
type engineTool struct {
	e *Engine
}

var _ ir.SimplifierTool = (*engineTool)(nil)

func (t *engineTool) Graph() *ir.Graph { return t.e.g }

func (t *engineTool) AddToWorkList(ids ...ir.NodeID) { t.e.work.push(ids...) }

func (t *engineTool) DeleteBranch(fixed ir.NodeID) { t.e.g.DeleteBranch(fixed) }

func (t *engineTool) RemoveIfUnused(floating ir.NodeID) {
	n, ok := t.e.g.Node(floating)
	if !ok {
		return
	}
	t.e.g.RemoveIfUnused(n)
}

func (t *engineTool) AllUsagesAvailable() bool { return t.e.initialSweepDone }
