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

package meta

import (
	"fmt"

	"github.com/sona-project/sona/config"
)

// DeoptReason is the (action, reason, debug-id) triple a Deoptimize or
// FixedGuard carries, before it is packed into the single 32-bit value
// the runtime's reason-value encoding expects. Action and reason are
// small runtime-defined enumerations; DebugID identifies the specific
// compile site for diagnostics.
type DeoptReason struct {
	Action  int
	Reason  int
	DebugID int
}

// EncodeDeoptReason packs r into the single 32-bit value laid out as
// `[sign | debug-id | reason | action]`, with field widths taken from
// enc. It returns an error if any field of r overflows the width enc
// allots it, rather than silently truncating a deopt reason into a
// different one.
func EncodeDeoptReason(enc config.ReasonEncoding, r DeoptReason) (int32, error) {
	if err := enc.Validate(); err != nil {
		return 0, err
	}
	if err := fitsIn(r.Action, enc.ActionBits); err != nil {
		return 0, fmt.Errorf("meta: action field: %w", err)
	}
	if err := fitsIn(r.Reason, enc.ReasonBits); err != nil {
		return 0, fmt.Errorf("meta: reason field: %w", err)
	}
	if err := fitsIn(r.DebugID, enc.DebugIDBits); err != nil {
		return 0, fmt.Errorf("meta: debug-id field: %w", err)
	}

	var v int32
	v |= int32(r.Action)
	v |= int32(r.Reason) << enc.ActionBits
	v |= int32(r.DebugID) << (enc.ActionBits + enc.ReasonBits)
	return v, nil
}

// DecodeDeoptReason is EncodeDeoptReason's inverse: it unpacks a 32-bit
// reason value back into its (action, reason, debug-id) triple using the
// same field widths.
func DecodeDeoptReason(enc config.ReasonEncoding, v int32) (DeoptReason, error) {
	if err := enc.Validate(); err != nil {
		return DeoptReason{}, err
	}
	actionMask := int32(1<<enc.ActionBits) - 1
	reasonMask := int32(1<<enc.ReasonBits) - 1
	debugMask := int32(1<<enc.DebugIDBits) - 1

	return DeoptReason{
		Action:  int(v & actionMask),
		Reason:  int((v >> enc.ActionBits) & reasonMask),
		DebugID: int((v >> (enc.ActionBits + enc.ReasonBits)) & debugMask),
	}, nil
}

// fitsIn reports an error if field cannot be represented in bits bits
// (unsigned, since the sign bit is reserved separately per the layout).
func fitsIn(field, bits int) error {
	if field < 0 {
		return fmt.Errorf("value %d is negative", field)
	}
	if bits == 0 {
		if field != 0 {
			return fmt.Errorf("value %d does not fit in a zero-width field", field)
		}
		return nil
	}
	limit := 1 << bits
	if field >= limit {
		return fmt.Errorf("value %d does not fit in %d bits (max %d)", field, bits, limit-1)
	}
	return nil
}
