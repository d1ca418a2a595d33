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

package stamp

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// apdCtx is the fixed-precision decimal context used for bound arithmetic
// that must not silently overflow a native int64 while narrowing ranges.
var apdCtx = apd.BaseContext.WithPrecision(40)

// IntegerStamp describes a fixed-width, optionally-signed integer value.
// Lo and Hi bound the possible values (inclusive); KnownOnes/KnownZeros
// are bitmasks of bit positions known to always be 1 or always be 0
// respectively (a bit never appears in both masks).
type IntegerStamp struct {
	Bits       int8
	Signed     bool
	Lo, Hi     int64
	KnownZeros uint64
	KnownOnes  uint64
}

// ForInteger constructs a narrowed IntegerStamp, clamping lo/hi to what
// bits/signed can represent and deriving known-bit masks from the bound
// range (a bound range of a single value pins every bit).
func ForInteger(bits int8, signed bool, lo, hi int64) IntegerStamp {
	lo, hi = clampRange(bits, signed, lo, hi)
	s := IntegerStamp{Bits: bits, Signed: signed, Lo: lo, Hi: hi}
	if lo == hi {
		mask := maskFor(bits)
		u := uint64(lo) & mask
		s.KnownOnes = u
		s.KnownZeros = ^u & mask
	}
	return s
}

// ForConstant returns the most precise IntegerStamp describing a single
// constant value.
func ForConstant(bits int8, signed bool, value int64) IntegerStamp {
	return ForInteger(bits, signed, value, value)
}

func maskFor(bits int8) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

func clampRange(bits int8, signed bool, lo, hi int64) (int64, int64) {
	minV, maxV := boundsFor(bits, signed)
	if lo < minV {
		lo = minV
	}
	if hi > maxV {
		hi = maxV
	}
	if lo > hi {
		// Empty range collapses to the single representable minimum;
		// callers that can produce this should check Empty() instead.
		lo, hi = minV, minV
	}
	return lo, hi
}

func boundsFor(bits int8, signed bool) (lo, hi int64) {
	if !signed {
		if bits >= 64 {
			return 0, int64(^uint64(0) >> 1) // best effort; unsigned 64 overflows int64
		}
		return 0, int64((uint64(1) << uint(bits)) - 1)
	}
	if bits >= 64 {
		return -(1 << 63), (1 << 63) - 1
	}
	half := int64(1) << uint(bits-1)
	return -half, half - 1
}

func (s IntegerStamp) Kind() Kind { return Integer }

func (s IntegerStamp) Empty() bool { return s.Lo > s.Hi }

func (s IntegerStamp) String() string {
	return fmt.Sprintf("int%d[%d,%d]", s.Bits, s.Lo, s.Hi)
}

// IsConstant reports whether this stamp describes exactly one value.
func (s IntegerStamp) IsConstant() bool { return s.Lo == s.Hi }

func (s IntegerStamp) IsCompatible(other Stamp) bool {
	o, ok := other.(IntegerStamp)
	return ok && o.Bits == s.Bits && o.Signed == s.Signed
}

// Join narrows self to the intersection with other (invariant: the result
// is never wider than self).
func (s IntegerStamp) Join(other Stamp) Stamp {
	o, ok := other.(IntegerStamp)
	if !ok || o.Bits != s.Bits || o.Signed != s.Signed {
		return NewEmpty(Integer)
	}
	lo := maxI64(s.Lo, o.Lo)
	hi := minI64(s.Hi, o.Hi)
	if lo > hi {
		return NewEmpty(Integer)
	}
	r := ForInteger(s.Bits, s.Signed, lo, hi)
	r.KnownZeros = s.KnownZeros | o.KnownZeros
	r.KnownOnes = s.KnownOnes | o.KnownOnes
	return r
}

// Meet widens self to cover both self and other (used at merge points).
func (s IntegerStamp) Meet(other Stamp) Stamp {
	o, ok := other.(IntegerStamp)
	if !ok || o.Bits != s.Bits || o.Signed != s.Signed {
		return ForInteger(s.Bits, s.Signed, boundsFor(s.Bits, s.Signed))
	}
	lo := minI64(s.Lo, o.Lo)
	hi := maxI64(s.Hi, o.Hi)
	r := ForInteger(s.Bits, s.Signed, lo, hi)
	r.KnownZeros = s.KnownZeros & o.KnownZeros
	r.KnownOnes = s.KnownOnes & o.KnownOnes
	return r
}

func (s IntegerStamp) ImproveWith(other Stamp) Stamp {
	joined := s.Join(other)
	if joined.Empty() {
		// ImproveWith must never report emptiness as wider than self;
		// an incompatible refinement is simply ignored.
		return s
	}
	return joined
}

func (s IntegerStamp) AlwaysDistinct(other Stamp) bool {
	o, ok := other.(IntegerStamp)
	if !ok {
		return true
	}
	return s.Hi < o.Lo || o.Hi < s.Lo
}

// Contains reports whether value lies within the stamp's bound range.
func (s IntegerStamp) Contains(value int64) bool {
	return value >= s.Lo && value <= s.Hi
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

type apdOp func(ctx *apd.Context, z, x, y *apd.Decimal) (apd.Condition, error)

// AddExact folds a+b using exact decimal arithmetic so a bound computation
// that would overflow int64 during narrowing is detected rather than
// silently wrapping. A result outside the bits/signed range is reported
// as overflowed (result 0), not clamped.
func AddExact(bits int8, signed bool, a, b int64) (result int64, overflowed bool) {
	return foldExact(bits, signed, a, b, (*apd.Context).Add)
}

// MulExact is AddExact's multiplicative counterpart.
func MulExact(bits int8, signed bool, a, b int64) (result int64, overflowed bool) {
	return foldExact(bits, signed, a, b, (*apd.Context).Mul)
}

// SubExact is AddExact's subtractive counterpart.
func SubExact(bits int8, signed bool, a, b int64) (result int64, overflowed bool) {
	return foldExact(bits, signed, a, b, (*apd.Context).Sub)
}

func foldExact(bits int8, signed bool, a, b int64, op apdOp) (int64, bool) {
	var x, y, z apd.Decimal
	x.SetInt64(a)
	y.SetInt64(b)
	if _, err := op(apdCtx, &z, &x, &y); err != nil {
		return 0, true
	}
	i, err := z.Int64()
	if err != nil {
		return 0, true
	}
	lo, hi := boundsFor(bits, signed)
	if i < lo || i > hi {
		return 0, true
	}
	return i, false
}
