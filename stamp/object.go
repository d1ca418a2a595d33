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

import "fmt"

// ObjectStamp describes a managed object reference.
type ObjectStamp struct {
	Type       ResolvedType // nil means "top" (java.lang.Object-equivalent)
	Exact      bool         // Type is the runtime type exactly, not a supertype
	NonNull    bool
	AlwaysNull bool
}

// ForObject constructs an ObjectStamp. AlwaysNull implies !NonNull and
// !Exact (a null reference has no runtime type).
func ForObject(t ResolvedType, exact, nonNull, alwaysNull bool) ObjectStamp {
	if alwaysNull {
		return ObjectStamp{AlwaysNull: true}
	}
	return ObjectStamp{Type: t, Exact: exact, NonNull: nonNull}
}

func (s ObjectStamp) Kind() Kind { return Object }

func (s ObjectStamp) Empty() bool { return s.AlwaysNull && s.NonNull }

func (s ObjectStamp) String() string {
	if s.AlwaysNull {
		return "object<null>"
	}
	name := "Object"
	if s.Type != nil {
		name = s.Type.Name()
	}
	exact := ""
	if s.Exact {
		exact = "!"
	}
	nn := ""
	if s.NonNull {
		nn = " nonnull"
	}
	return fmt.Sprintf("object<%s%s%s>", name, exact, nn)
}

func (s ObjectStamp) IsCompatible(other Stamp) bool {
	_, ok := other.(ObjectStamp)
	return ok
}

// Join computes the most precise stamp both self and other agree on. Two
// stamps naming unrelated, non-assignable exact types join to empty.
func (s ObjectStamp) Join(other Stamp) Stamp {
	o, ok := other.(ObjectStamp)
	if !ok {
		return NewEmpty(Object)
	}
	if s.AlwaysNull || o.AlwaysNull {
		if (s.AlwaysNull && o.NonNull) || (o.AlwaysNull && s.NonNull) {
			return NewEmpty(Object)
		}
		return ObjectStamp{AlwaysNull: true}
	}
	t, exact, ok := joinTypes(s.Type, s.Exact, o.Type, o.Exact)
	if !ok {
		return NewEmpty(Object)
	}
	return ObjectStamp{Type: t, Exact: exact, NonNull: s.NonNull || o.NonNull}
}

func joinTypes(a ResolvedType, aExact bool, b ResolvedType, bExact bool) (ResolvedType, bool, bool) {
	if a == nil {
		return b, bExact, true
	}
	if b == nil {
		return a, aExact, true
	}
	if a.Equal(b) {
		return a, aExact || bExact, true
	}
	if aExact && bExact {
		return nil, false, false // two distinct exact types: unreachable
	}
	if a.IsAssignableFrom(b) {
		return b, bExact, true
	}
	if b.IsAssignableFrom(a) {
		return a, aExact, true
	}
	if aExact || bExact {
		return nil, false, false
	}
	// Neither exact and neither assignable to the other: join is the
	// least precise common ancestor, which this module cannot compute
	// without a type hierarchy; fall back to top rather than claim
	// emptiness, as that would wrongly mark reachable code unreachable.
	return nil, false, true
}

func (s ObjectStamp) Meet(other Stamp) Stamp {
	o, ok := other.(ObjectStamp)
	if !ok {
		return ObjectStamp{}
	}
	if s.AlwaysNull && o.AlwaysNull {
		return ObjectStamp{AlwaysNull: true}
	}
	nonNull := s.NonNull && o.NonNull && !s.AlwaysNull && !o.AlwaysNull
	if s.AlwaysNull || o.AlwaysNull {
		return ObjectStamp{NonNull: false}
	}
	t, exact := meetTypes(s.Type, s.Exact, o.Type, o.Exact)
	return ObjectStamp{Type: t, Exact: exact, NonNull: nonNull}
}

func meetTypes(a ResolvedType, aExact bool, b ResolvedType, bExact bool) (ResolvedType, bool) {
	if a == nil || b == nil {
		return nil, false
	}
	if a.Equal(b) {
		return a, aExact && bExact
	}
	return nil, false
}

func (s ObjectStamp) ImproveWith(other Stamp) Stamp {
	joined := s.Join(other)
	if joined.Empty() {
		return s
	}
	return joined
}

func (s ObjectStamp) AlwaysDistinct(other Stamp) bool {
	o, ok := other.(ObjectStamp)
	if !ok {
		return true
	}
	if s.AlwaysNull != o.AlwaysNull && (s.NonNull || o.NonNull) {
		return true
	}
	if s.Exact && o.Exact && s.Type != nil && o.Type != nil {
		return !s.Type.Equal(o.Type)
	}
	return false
}
