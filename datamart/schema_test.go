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

// report builds a minimal single-section definition for validation tests.
func report(id int, name string, sections map[string]*SectionDef) *ReportDef {
	return &ReportDef{
		ID:          id,
		Name:        name,
		Independent: "report_date",
		Sections:    sections,
	}
}

func section(alias string, independent, dependent []string) *SectionDef {
	return &SectionDef{
		Alias: alias,
		Fields: FieldSet{
			Independent: independent,
			Dependent:   dependent,
		},
	}
}

func TestSchema(t *testing.T) {
	t.Parallel()

	Convey("NewSchema accepts a consistent set of definitions", t, func() {
		s, err := NewSchema([]*ReportDef{
			report(2466, "lm_ct100", map[string]*SectionDef{
				"Summary": section("", []string{"report_date"}, []string{"head_count"}),
			}),
			report(2480, "lm_ct150", map[string]*SectionDef{
				"A. Packer Owned Slaughter": section("packer_owned_slaughter",
					[]string{"report_date", "source_desc"}, []string{"head_count"}),
			}),
		})
		So(err, ShouldBeNil)

		r, err := s.ByID(2480)
		So(err, ShouldBeNil)
		So(r.Name, ShouldEqual, "lm_ct150")
		So(s.Reports()[0].ID, ShouldEqual, 2466)

		Convey("lookups of undefined reports fail", func() {
			_, err := s.ByID(9999)
			So(err, ShouldNotBeNil)
			unknownErr, ok := err.(*UnknownReportError)
			So(ok, ShouldBeTrue)
			So(unknownErr.ID, ShouldEqual, 9999)

			_, err = s.ByName("lm_hg201")
			So(err, ShouldNotBeNil)
		})

		Convey("lookups of undefined sections fail", func() {
			_, err := r.Section("A. Packer Owned Slaughter") // display name, not alias
			So(err, ShouldNotBeNil)
			_, ok := err.(*UnknownSectionError)
			So(ok, ShouldBeTrue)
		})
	})

	Convey("NewSchema fails fast on the first violation", t, func() {
		check := func(reports []*ReportDef, substr string) {
			_, err := NewSchema(reports)
			So(err, ShouldNotBeNil)
			verr, ok := err.(*ValidationError)
			So(ok, ShouldBeTrue)
			So(verr.Error(), ShouldContainSubstring, substr)
		}

		summary := func() map[string]*SectionDef {
			return map[string]*SectionDef{
				"Summary": section("", []string{"report_date"}, []string{"head_count"}),
			}
		}

		Convey("non-positive report ID", func() {
			check([]*ReportDef{report(0, "lm_ct100", summary())}, "positive")
		})

		Convey("empty report name", func() {
			check([]*ReportDef{report(2466, "", summary())}, "name")
		})

		Convey("duplicate report ID", func() {
			check([]*ReportDef{
				report(2466, "lm_ct100", summary()),
				report(2466, "lm_ct150", summary()),
			}, "duplicate report ID")
		})

		Convey("duplicate report name", func() {
			check([]*ReportDef{
				report(2466, "lm_ct100", summary()),
				report(2480, "lm_ct100", summary()),
			}, "duplicate report name")
		})

		Convey("report without sections", func() {
			check([]*ReportDef{report(2466, "lm_ct100", map[string]*SectionDef{})},
				"no sections")
		})

		Convey("section without independent fields", func() {
			check([]*ReportDef{report(2466, "lm_ct100", map[string]*SectionDef{
				"Summary": section("", nil, []string{"head_count"}),
			})}, "no independent fields")
		})

		Convey("field that is both independent and dependent", func() {
			check([]*ReportDef{report(2466, "lm_ct100", map[string]*SectionDef{
				"Summary": section("", []string{"report_date", "head_count"},
					[]string{"head_count"}),
			})}, "both independent and dependent")
		})

		Convey("empty field name", func() {
			check([]*ReportDef{report(2466, "lm_ct100", map[string]*SectionDef{
				"Summary": section("", []string{"report_date", ""}, nil),
			})}, "empty independent field")
		})

		Convey("display name that is not an identifier and has no alias", func() {
			check([]*ReportDef{report(2480, "lm_ct150", map[string]*SectionDef{
				"A. Packer Owned Slaughter": section("",
					[]string{"report_date"}, []string{"head_count"}),
			})}, "identifier")
		})

		Convey("alias starting with a digit", func() {
			check([]*ReportDef{report(2480, "lm_ct150", map[string]*SectionDef{
				"Summary": section("1st_section", []string{"report_date"}, nil),
			})}, "identifier")
		})

		Convey("two sections sharing an alias", func() {
			check([]*ReportDef{report(2480, "lm_ct150", map[string]*SectionDef{
				"A. Packer Owned Slaughter": section("slaughter",
					[]string{"report_date"}, nil),
				"B. Steer and Heifer Slaughter": section("slaughter",
					[]string{"report_date"}, nil),
			})}, "duplicate section alias")
		})

		Convey("the error names the offending report and section", func() {
			_, err := NewSchema([]*ReportDef{report(2481, "lm_ct155", map[string]*SectionDef{
				"Detail": section("", []string{"report_date", "head_count"},
					[]string{"head_count"}),
			})})
			So(err, ShouldNotBeNil)
			verr, ok := err.(*ValidationError)
			So(ok, ShouldBeTrue)
			So(verr.ReportID, ShouldEqual, 2481)
			So(verr.Section, ShouldEqual, "Detail")
			So(verr.Field, ShouldEqual, "head_count")
		})
	})

	Convey("Field name matching is byte-exact", t, func() {
		s, err := NewSchema([]*ReportDef{
			report(2466, "lm_ct100", map[string]*SectionDef{
				"Summary": section("", []string{"report_date"}, []string{"Head_Count"}),
			}),
		})
		So(err, ShouldBeNil)
		r, err := s.ByID(2466)
		So(err, ShouldBeNil)
		sec, err := r.Section("Summary")
		So(err, ShouldBeNil)
		So(sec.Fields.HasDependent("Head_Count"), ShouldBeTrue)
		So(sec.Fields.HasDependent("head_count"), ShouldBeFalse)
		So(sec.Fields.HasIndependent("Report_Date"), ShouldBeFalse)
	})
}
