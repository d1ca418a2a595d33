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

package config_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/sona-project/sona/config"
	"github.com/sona-project/sona/ir"
)

func TestDefaultIsValid(t *testing.T) {
	c := config.Default()
	qt.Assert(t, qt.IsNil(c.Validate()))
	qt.Assert(t, qt.Equals(c.GuardsStageStart, ir.FloatingGuards))
}

func TestReasonEncodingRejectsOverflow(t *testing.T) {
	r := config.ReasonEncoding{DebugIDBits: 20, ReasonBits: 10, ActionBits: 5}
	qt.Assert(t, qt.IsNotNil(r.Validate()))
}

func TestLoadJSONAppliesDefaultsForOmittedFields(t *testing.T) {
	c, err := config.LoadJSON([]byte(`{"RecordInlinedMethods": true}`))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(c.RecordInlinedMethods))
	qt.Assert(t, qt.Equals(c.GuardsStageStart, ir.FloatingGuards))
	qt.Assert(t, qt.Equals(c.ReasonEncoding, config.DefaultReasonEncoding))
}

func TestLoadJSONRejectsMalformedInput(t *testing.T) {
	_, err := config.LoadJSON([]byte(`not json`))
	qt.Assert(t, qt.IsNotNil(err))
}
