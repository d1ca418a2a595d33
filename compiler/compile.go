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

// Package compiler is the driver that orchestrates the canonicalizer
// (component C4) and the staged-lowering lifecycle (component C5) to a
// fixed point, then hands the result to a codegen.Backend: graph in,
// canonicalize/simplify/lower to a fixed point, hand off to the code
// generator. It is the single top-level entry point; everything else is
// a component the driver calls.
package compiler

import (
	"context"
	"fmt"

	"github.com/sona-project/sona/canon"
	"github.com/sona-project/sona/codegen"
	"github.com/sona-project/sona/compilererr"
	"github.com/sona-project/sona/config"
	"github.com/sona-project/sona/ir"
	"github.com/sona-project/sona/stage"
)

// Result is what a successful Compile call produces: the scheduled
// node hand-offs a codegen.Backend was already driven with, kept here so
// a caller can inspect or re-emit without re-running the compiler.
type Result struct {
	CompilationID string
	Handoffs      []codegen.NodeHandoff
}

// Compile drives g through canonicalization/simplification and every
// remaining guards-stage transition up to ir.AfterFSA, verifying that the
// graph still satisfies every invariant after each step, then schedules
// the final graph and, if backend is non-nil, emits it.
//
// Compile returns a *compilererr.Bottom on any failure: a
// VerificationFailure if g stops satisfying an invariant, or a Bailout if
// g's starting guards stage is already past what cfg asks for — no
// panics escape this call.
func Compile(ctx context.Context, g *ir.Graph, cfg config.Compiler, backend codegen.Backend) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, compilererr.NewBailout("invalid compiler configuration", err)
	}
	if g.GuardsStage() > cfg.GuardsStageStart {
		return nil, compilererr.NewBailout(
			fmt.Sprintf("graph is already past the configured start stage (%s > %s)", g.GuardsStage(), cfg.GuardsStageStart),
			nil,
		)
	}

	e := canon.NewEngine(g)
	if err := runToFixedPoint(ctx, g, e); err != nil {
		return nil, err
	}

	for _, next := range []ir.GuardsStage{ir.FixedDeopts, ir.AfterFSA} {
		if g.GuardsStage() >= next {
			continue
		}
		if err := stage.Advance(ctx, g, e, next); err != nil {
			return nil, compilererr.NewBailout(fmt.Sprintf("advancing to %s", next), err)
		}
		if err := verify(g); err != nil {
			return nil, err
		}
	}

	handoffs := codegen.Schedule(g)
	if backend != nil {
		for _, h := range handoffs {
			if err := backend.Emit(h); err != nil {
				return nil, compilererr.NewBailout("backend rejected node", err)
			}
		}
		if err := backend.Finish(); err != nil {
			return nil, compilererr.NewBailout("backend failed to finish", err)
		}
	}

	return &Result{CompilationID: g.CompilationID, Handoffs: handoffs}, nil
}

// runToFixedPoint drives e (and the supplemented GVN sweep) until no
// further canonicalization or merge opportunity remains, verifying the
// graph afterward.
func runToFixedPoint(ctx context.Context, g *ir.Graph, e *canon.Engine) error {
	if err := canon.RunToFixedPointWithGVN(ctx, e); err != nil {
		if ctx.Err() != nil {
			return compilererr.NewBailout("compilation canceled", err)
		}
		return compilererr.NewBailout("canonicalization did not converge", err)
	}
	return verify(g)
}

func verify(g *ir.Graph) error {
	if err := g.Verify(); err != nil {
		var ve *ir.VerifyError
		if asVerifyError(err, &ve) {
			return compilererr.NewVerificationFailure(ve.Node, ve.Invariant, ve.Detail)
		}
		return compilererr.NewVerificationFailure(ir.Invalid, "unknown", err.Error())
	}
	return nil
}

func asVerifyError(err error, target **ir.VerifyError) bool {
	ve, ok := err.(*ir.VerifyError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
