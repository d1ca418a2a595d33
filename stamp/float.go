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
	"math"
)

// FloatStamp describes an IEEE-754 floating point value.
type FloatStamp struct {
	Bits              int8 // 32 or 64
	Lo, Hi            float64
	CanBeNaN          bool
	CanBeNegativeZero bool
}

// ForFloat constructs a FloatStamp over the closed range [lo, hi].
func ForFloat(bits int8, lo, hi float64, canBeNaN, canBeNegativeZero bool) FloatStamp {
	return FloatStamp{Bits: bits, Lo: lo, Hi: hi, CanBeNaN: canBeNaN, CanBeNegativeZero: canBeNegativeZero}
}

// ForFloatConstant returns the most precise FloatStamp for a single value.
func ForFloatConstant(bits int8, v float64) FloatStamp {
	return FloatStamp{Bits: bits, Lo: v, Hi: v, CanBeNegativeZero: v == 0 && negZero(v)}
}

func negZero(v float64) bool { return v == 0 && 1/v < 0 }

func (s FloatStamp) Kind() Kind { return Float }

func (s FloatStamp) Empty() bool { return s.Lo > s.Hi && !s.CanBeNaN }

func (s FloatStamp) String() string {
	return fmt.Sprintf("float%d[%v,%v,nan=%v]", s.Bits, s.Lo, s.Hi, s.CanBeNaN)
}

func (s FloatStamp) IsCompatible(other Stamp) bool {
	o, ok := other.(FloatStamp)
	return ok && o.Bits == s.Bits
}

func (s FloatStamp) Join(other Stamp) Stamp {
	o, ok := other.(FloatStamp)
	if !ok || o.Bits != s.Bits {
		return NewEmpty(Float)
	}
	lo, hi := maxF64(s.Lo, o.Lo), minF64(s.Hi, o.Hi)
	canNaN := s.CanBeNaN && o.CanBeNaN
	canNegZero := s.CanBeNegativeZero && o.CanBeNegativeZero
	if lo > hi && !canNaN {
		return NewEmpty(Float)
	}
	return FloatStamp{Bits: s.Bits, Lo: lo, Hi: hi, CanBeNaN: canNaN, CanBeNegativeZero: canNegZero}
}

func (s FloatStamp) Meet(other Stamp) Stamp {
	o, ok := other.(FloatStamp)
	if !ok || o.Bits != s.Bits {
		return FloatStamp{Bits: s.Bits, Lo: negInf(), Hi: posInf(), CanBeNaN: true, CanBeNegativeZero: true}
	}
	return FloatStamp{
		Bits:              s.Bits,
		Lo:                minF64(s.Lo, o.Lo),
		Hi:                maxF64(s.Hi, o.Hi),
		CanBeNaN:          s.CanBeNaN || o.CanBeNaN,
		CanBeNegativeZero: s.CanBeNegativeZero || o.CanBeNegativeZero,
	}
}

func negInf() float64 { return math.Inf(-1) }
func posInf() float64 { return math.Inf(1) }

func (s FloatStamp) ImproveWith(other Stamp) Stamp {
	joined := s.Join(other)
	if joined.Empty() {
		return s
	}
	return joined
}

func (s FloatStamp) AlwaysDistinct(other Stamp) bool {
	o, ok := other.(FloatStamp)
	if !ok {
		return true
	}
	if s.CanBeNaN || o.CanBeNaN {
		// NaN is never equal to anything, including itself, so it can
		// never be proven distinct from a concrete value by range alone.
		return false
	}
	return s.Hi < o.Lo || o.Hi < s.Lo
}

func minF64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
