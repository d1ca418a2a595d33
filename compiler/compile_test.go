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

package compiler_test

import (
	"context"
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/sona-project/sona/codegen"
	"github.com/sona-project/sona/compiler"
	"github.com/sona-project/sona/compilererr"
	"github.com/sona-project/sona/config"
	"github.com/sona-project/sona/ir"
)

func newTestGraph() *ir.Graph {
	return ir.New(ir.FloatingGuards, true)
}

type recordingBackend struct {
	emitted  []codegen.NodeHandoff
	finished bool
}

func (b *recordingBackend) Emit(h codegen.NodeHandoff) error {
	b.emitted = append(b.emitted, h)
	return nil
}

func (b *recordingBackend) Finish() error {
	b.finished = true
	return nil
}

func TestCompileReachesAfterFSAAndSchedules(t *testing.T) {
	g := newTestGraph()
	start := g.MustNode(g.Start())
	begin := g.NewBegin()
	g.AddAfterFixed(start, begin)

	a := g.NewConstantInt(32, true, 1)
	b := g.NewConstantInt(32, true, 2)
	sum := g.NewBinary(ir.KindAdd, a.ID(), b.ID())
	_ = g.NewReturn(begin, sum.ID())

	cfg := config.Default()
	result, err := compiler.Compile(context.Background(), g, cfg, nil)

	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(g.GuardsStage(), ir.AfterFSA))
	qt.Assert(t, qt.IsTrue(len(result.Handoffs) > 0))
	qt.Assert(t, qt.Equals(result.CompilationID, g.CompilationID))
}

func TestCompileDrivesBackend(t *testing.T) {
	g := newTestGraph()
	start := g.MustNode(g.Start())
	begin := g.NewBegin()
	g.AddAfterFixed(start, begin)
	val := g.NewConstantInt(32, true, 7)
	_ = g.NewReturn(begin, val.ID())

	backend := &recordingBackend{}
	result, err := compiler.Compile(context.Background(), g, config.Default(), backend)

	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(backend.finished))
	qt.Assert(t, qt.Equals(len(backend.emitted), len(result.Handoffs)))
}

func TestCompileRejectsInvalidConfig(t *testing.T) {
	g := newTestGraph()
	cfg := config.Default()
	cfg.ReasonEncoding.DebugIDBits = 30
	cfg.ReasonEncoding.ReasonBits = 30
	cfg.ReasonEncoding.ActionBits = 30

	_, err := compiler.Compile(context.Background(), g, cfg, nil)
	qt.Assert(t, qt.IsTrue(compilererr.Is(err, compilererr.Bailout)))
}

func TestCompileBailsOutWhenGraphIsAheadOfConfiguredStartStage(t *testing.T) {
	g := ir.New(ir.AfterFSA, true)
	cfg := config.Default()
	cfg.GuardsStageStart = ir.FloatingGuards

	_, err := compiler.Compile(context.Background(), g, cfg, nil)
	qt.Assert(t, qt.IsTrue(compilererr.Is(err, compilererr.Bailout)))
}
