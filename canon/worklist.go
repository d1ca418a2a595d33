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

// Package canon implements the fixed-point canonicalizer/simplifier
// engine (component C4): a work-list driver that repeatedly invokes each
// live node's registered Canonical/Simplify hook until no node requests
// another look.
package canon

import "github.com/sona-project/sona/ir"

// workList is a FIFO queue of node ids with membership tracking so a
// node already queued is never duplicated.
type workList struct {
	queue  []ir.NodeID
	queued map[ir.NodeID]bool
}

func newWorkList() *workList {
	return &workList{queued: make(map[ir.NodeID]bool)}
}

func (w *workList) push(ids ...ir.NodeID) {
	for _, id := range ids {
		if !id.IsValid() || w.queued[id] {
			continue
		}
		w.queued[id] = true
		w.queue = append(w.queue, id)
	}
}

func (w *workList) pop() (ir.NodeID, bool) {
	if len(w.queue) == 0 {
		return ir.Invalid, false
	}
	id := w.queue[0]
	w.queue = w.queue[1:]
	delete(w.queued, id)
	return id, true
}

func (w *workList) empty() bool { return len(w.queue) == 0 }
