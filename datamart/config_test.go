// Copyright 2023 USDA Data Acquisition Authors

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datamart

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// testConfig covers the livestock reports used throughout the package tests:
// a single-section daily report, a report whose section display names are not
// identifiers, and a report keyed by a six-field tuple.
const testConfig = `
[2451]
name = "lm_pk602"
description = "National Daily Pork Report FOB Plant - Afternoon"
independent = "report_date"

[2451.sections.Cutout]
independent = ["report_date"]
fields = ["pork_carcass", "pork_loin", "pork_belly"]

[2466]
name = "lm_ct100"
description = "National Daily Cattle and Beef Summary"
independent = "report_date"

[2466.sections.Summary]
independent = ["report_date"]
fields = ["head_count", "week_ago_head_count", "year_ago_head_count"]

[2480]
name = "lm_ct150"
description = "National Daily Cattle Slaughtered Under Federal Inspection"
independent = "report_date"

[2480.sections."A. Packer Owned Slaughter"]
alias = "packer_owned_slaughter"
independent = ["report_date", "source_desc"]
fields = ["head_count"]

[2480.sections."B. Steer and Heifer Slaughter"]
alias = "steer_heifer_slaughter"
independent = ["report_date", "source_desc"]
fields = ["head_count"]

[2481]
name = "lm_ct155"
description = "National Weekly Direct Slaughter Cattle - Negotiated Purchases"
independent = "report_date"

[2481.sections.Detail]
independent = [
  "report_date",
  "class_description",
  "source_description",
  "selling_basis_description",
  "purchase_type_code",
  "grade_description",
]
fields = ["head_count", "weight_range_avg", "price_range_avg"]

[2481.sections.Summary]
independent = ["report_date", "class_description"]
fields = ["head_count"]
`

// testSchema parses the shared fixture, failing the test on any error.
func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatalf("failed to parse test config: %s", err.Error())
	}
	return s
}

func TestConfig(t *testing.T) {
	t.Parallel()

	Convey("ParseConfig loads the full fixture", t, func() {
		s, err := ParseConfig([]byte(testConfig))
		So(err, ShouldBeNil)
		So(len(s.Reports()), ShouldEqual, 4)

		Convey("reports are indexed by ID and name", func() {
			byID, err := s.ByID(2466)
			So(err, ShouldBeNil)
			byName, err := s.ByName("lm_ct100")
			So(err, ShouldBeNil)
			So(byID, ShouldEqual, byName)
			So(byID.Independent, ShouldEqual, "report_date")
			So(byID.Description, ShouldContainSubstring, "Cattle and Beef")
		})

		Convey("sections keep declared field order", func() {
			r, err := s.ByID(2481)
			So(err, ShouldBeNil)
			sec, err := r.Section("Detail")
			So(err, ShouldBeNil)
			So(sec.Fields.Independent, ShouldResemble, []string{
				"report_date",
				"class_description",
				"source_description",
				"selling_basis_description",
				"purchase_type_code",
				"grade_description",
			})
			So(sec.Fields.DateField(), ShouldEqual, "report_date")
		})

		Convey("an explicit alias shadows the display name", func() {
			r, err := s.ByID(2480)
			So(err, ShouldBeNil)
			sec, err := r.Section("packer_owned_slaughter")
			So(err, ShouldBeNil)
			So(sec.DisplayName, ShouldEqual, "A. Packer Owned Slaughter")

			byDisplay, ok := r.SectionByDisplayName("A. Packer Owned Slaughter")
			So(ok, ShouldBeTrue)
			So(byDisplay, ShouldEqual, sec)
		})

		Convey("a display name that is an identifier doubles as the alias", func() {
			r, err := s.ByID(2466)
			So(err, ShouldBeNil)
			sec, err := r.Section("Summary")
			So(err, ShouldBeNil)
			So(sec.Alias, ShouldEqual, "Summary")
		})
	})

	Convey("ParseConfig rejects bad documents", t, func() {
		Convey("invalid TOML", func() {
			_, err := ParseConfig([]byte(`[2466`))
			So(err, ShouldNotBeNil)
		})

		Convey("non-numeric report key", func() {
			_, err := ParseConfig([]byte(`
[cattle]
name = "lm_ct100"
independent = "report_date"
[cattle.sections.Summary]
independent = ["report_date"]
`))
			So(err, ShouldNotBeNil)
			_, ok := err.(*ValidationError)
			So(ok, ShouldBeTrue)
		})

		Convey("missing required entry fields", func() {
			_, err := ParseConfig([]byte(`
[2466]
name = "lm_ct100"
[2466.sections.Summary]
independent = ["report_date"]
`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "independent")
		})

		Convey("unknown entry fields", func() {
			_, err := ParseConfig([]byte(`
[2466]
name = "lm_ct100"
independent = "report_date"
frequency = "daily"
[2466.sections.Summary]
independent = ["report_date"]
`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "frequency")
		})
	})
}
