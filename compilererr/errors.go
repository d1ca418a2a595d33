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

// Package compilererr defines the error taxonomy a compilation can fail
// with: a verification failure, a bailout, or an unsupported runtime
// query. Every failure is surfaced as a single Bottom value rather than a
// family of unrelated error types.
package compilererr

import (
	"errors"
	"fmt"

	"github.com/sona-project/sona/ir"
)

// Code classifies a Bottom's error taxonomy.
type Code int

const (
	// VerificationFailure means a graph invariant was violated. Fatal:
	// the compilation that produced it must abort.
	VerificationFailure Code = iota
	// Bailout means the current graph cannot be safely or profitably
	// compiled further (unsupported pattern, assumption invalidated
	// mid-compile, resource budget exhausted). The host typically falls
	// back to the interpreter.
	Bailout
	// UnsupportedQuery means the runtime interface (meta.Runtime) reported
	// an unresolved metadata lookup that the caller did not itself convert
	// into a Bailout or a deoptimization.
	UnsupportedQuery
)

func (c Code) String() string {
	switch c {
	case VerificationFailure:
		return "verification failure"
	case Bailout:
		return "bailout"
	case UnsupportedQuery:
		return "unsupported runtime query"
	default:
		return fmt.Sprintf("compilererr.Code(%d)", int(c))
	}
}

// Bottom is the distinguished failure value returned up to the driver,
// rather than a family of panics or sentinel errors threaded ad hoc
// through every rewrite. The name echoes the bottom-value convention used
// for an irrecoverable per-node failure.
type Bottom struct {
	Code Code
	Msg  string

	// Node and Invariant are populated only for a VerificationFailure:
	// the failing node id and the violated invariant's name.
	Node      ir.NodeID
	Invariant string

	// Err is the underlying cause, if any (e.g. a ProfilingInfo lookup
	// error that became an UnsupportedQuery).
	Err error
}

func (b *Bottom) Error() string {
	switch b.Code {
	case VerificationFailure:
		return fmt.Sprintf("verification failure: node %s violates invariant %q: %s", b.Node, b.Invariant, b.Msg)
	default:
		if b.Err != nil {
			return fmt.Sprintf("%s: %s: %v", b.Code, b.Msg, b.Err)
		}
		return fmt.Sprintf("%s: %s", b.Code, b.Msg)
	}
}

func (b *Bottom) Unwrap() error { return b.Err }

// Is reports whether err is a *Bottom tagged with code, unwrapping through
// any wrapping in between.
func Is(err error, code Code) bool {
	var b *Bottom
	if !errors.As(err, &b) {
		return false
	}
	return b.Code == code
}

// NewVerificationFailure builds a Bottom for an invariant violated on
// node, named by invariant (e.g. "invariant-1-usages-input-reciprocity"),
// with a human-readable msg.
func NewVerificationFailure(node ir.NodeID, invariant, msg string) *Bottom {
	return &Bottom{Code: VerificationFailure, Node: node, Invariant: invariant, Msg: msg}
}

// NewBailout builds a Bottom recording a compile-time decision that the
// current graph cannot be safely or profitably compiled, optionally
// wrapping the cause (e.g. an unsupported bytecode pattern).
func NewBailout(msg string, cause error) *Bottom {
	return &Bottom{Code: Bailout, Msg: msg, Err: cause}
}

// NewUnsupportedQuery builds a Bottom recording that a runtime-interface
// query (meta.MetaAccess, meta.ProfilingInfo, ...) came back
// null/unresolved and the caller chose to surface that as a hard failure
// rather than itself emitting a deoptimization or a Bailout.
func NewUnsupportedQuery(msg string, cause error) *Bottom {
	return &Bottom{Code: UnsupportedQuery, Msg: msg, Err: cause}
}
