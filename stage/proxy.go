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

package stage

import (
	"github.com/sona-project/sona/canon"
	"github.com/sona-project/sona/ir"
)

// StripValueProxies rewrites every live ValueProxy to its underlying
// value and clears Graph.HasValueProxies: once no further
// loop-exit-sensitive rewrite can observe the pinning a ValueProxy
// provides, the proxy itself is just indirection. Affected usages are
// requeued on e so the engine's next run can react to values it can now
// see through directly.
func StripValueProxies(g *ir.Graph, e *canon.Engine) {
	if !g.HasValueProxies() {
		return
	}
	for _, n := range g.AllNodes() {
		if n.Kind() != ir.KindValueProxy {
			continue
		}
		underlying := n.InputAt(0)
		usages := n.Usages()
		g.ReplaceAtUsages(n.ID(), underlying)
		g.RemoveIfUnused(n)
		e.AddToWorkList(usages...)
	}
	g.ClearValueProxies()
}
