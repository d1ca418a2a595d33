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

// Package config defines the enumerated compilation options, threaded
// explicitly through the compiler rather than read from ambient/global
// state.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/sona-project/sona/ir"
)

// AllowAssumptions controls whether optimistic assumptions (leaf method,
// unique concrete subtype, ...) may be recorded during compilation.
type AllowAssumptions uint8

const (
	AllowAssumptionsYes AllowAssumptions = iota
	AllowAssumptionsNo
)

func (a AllowAssumptions) String() string {
	if a == AllowAssumptionsNo {
		return "NO"
	}
	return "YES"
}

// ReasonEncoding gives the bit-field widths meta.EncodeDeoptReason and
// meta.DecodeDeoptReason pack a deopt (action, reason, debug-id) triple
// into, laid out as "[sign | debug-id | reason | action]". Widths are in
// bits and must sum to at most 31 (the remaining high bit is always the
// sign bit).
type ReasonEncoding struct {
	DebugIDBits int
	ReasonBits  int
	ActionBits  int
}

// DefaultReasonEncoding gives the field widths a packed int32 diagnostic
// code typically budgets.
var DefaultReasonEncoding = ReasonEncoding{DebugIDBits: 16, ReasonBits: 8, ActionBits: 7}

func (r ReasonEncoding) totalBits() int { return r.DebugIDBits + r.ReasonBits + r.ActionBits }

// Validate reports an error if the widths do not leave room for the sign
// bit in a 32-bit reason value.
func (r ReasonEncoding) Validate() error {
	if r.DebugIDBits < 0 || r.ReasonBits < 0 || r.ActionBits < 0 {
		return fmt.Errorf("config: ReasonEncoding widths must be non-negative, got %+v", r)
	}
	if r.totalBits() > 31 {
		return fmt.Errorf("config: ReasonEncoding widths sum to %d bits, leaving no room for the sign bit", r.totalBits())
	}
	return nil
}

// Compiler is the enumerated compilation-options surface, threaded
// explicitly by the caller into compiler.Compile rather than held as
// package state.
type Compiler struct {
	// RecordInlinedMethods populates the inlined-method set as part of
	// compilation.
	RecordInlinedMethods bool

	// AllowAssumptions controls whether optimistic assumptions may be
	// recorded.
	AllowAssumptions AllowAssumptions

	// ConstantNodeRecordsUsages is retained as a documented no-op per the
	// Open Question decision recorded in DESIGN.md: this implementation
	// always records constant usages, so this field only round-trips a
	// caller's intent without changing behavior.
	ConstantNodeRecordsUsages bool

	// GuardsStageStart is the entry stage for a pre-lowered graph,
	// defaulting to ir.FloatingGuards.
	GuardsStageStart ir.GuardsStage

	// ReasonEncoding gives the deopt reason-value bit-field widths.
	ReasonEncoding ReasonEncoding
}

// Default returns the zero-value-safe default Compiler configuration:
// floating guards from the start, assumptions allowed, the default
// reason-value encoding.
func Default() Compiler {
	return Compiler{
		AllowAssumptions: AllowAssumptionsYes,
		GuardsStageStart: ir.FloatingGuards,
		ReasonEncoding:   DefaultReasonEncoding,
	}
}

// Validate reports an error if c's fields cannot be realized (e.g. a
// ReasonEncoding that does not fit in 32 bits). Persisted configuration
// layout is left to the embedding host: Compiler is an in-memory struct,
// with this JSON round-trip provided only as a convenience load path for
// a host that wants one, not a specified wire format.
func (c Compiler) Validate() error {
	return c.ReasonEncoding.Validate()
}

// LoadJSON decodes a Compiler from JSON, applying Default()'s values for
// any field the JSON document omits.
func LoadJSON(data []byte) (Compiler, error) {
	c := Default()
	if err := json.Unmarshal(data, &c); err != nil {
		return Compiler{}, fmt.Errorf("config: decoding Compiler: %w", err)
	}
	return c, nil
}
