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

	"github.com/isosphere/usda-data-acquisition/dates"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMapRecords(t *testing.T) {
	t.Parallel()

	s := testSchema(t)

	slaughterSection := func() *SectionDef {
		r, err := s.ByID(2480)
		if err != nil {
			t.Fatalf("missing report 2480: %s", err.Error())
		}
		sec, err := r.Section("packer_owned_slaughter")
		if err != nil {
			t.Fatalf("missing section: %s", err.Error())
		}
		return sec
	}

	detailSection := func() *SectionDef {
		r, err := s.ByID(2481)
		if err != nil {
			t.Fatalf("missing report 2481: %s", err.Error())
		}
		sec, err := r.Section("Detail")
		if err != nil {
			t.Fatalf("missing section: %s", err.Error())
		}
		return sec
	}

	detailRow := func(date, class, headCount string) Row {
		return Row{
			"report_date":               str(date),
			"class_description":         str(class),
			"source_description":        str("Direct"),
			"selling_basis_description": str("Live FOB"),
			"purchase_type_code":        str("1"),
			"grade_description":         str("65-80% Choice"),
			"head_count":                str(headCount),
			"weight_range_avg":          str("1,350"),
		}
	}

	Convey("MapRecords builds typed records", t, func() {
		sec := slaughterSection()
		rows := []Row{
			{
				"report_date": str("03/15/2024"),
				"source_desc": str("packer"),
				"head_count":  str("4,567"),
			},
			{
				"report_date": str("03/15/2024"),
				"source_desc": str("negotiated"),
			},
		}
		recs, err := MapRecords(2480, sec, rows, MapperOptions{})
		So(err, ShouldBeNil)
		So(len(recs), ShouldEqual, 2)

		So(recs[0].ReportID, ShouldEqual, 2480)
		So(recs[0].Section, ShouldEqual, "packer_owned_slaughter")
		So(recs[0].Date, ShouldResemble, dates.New(2024, 3, 15))
		So(recs[0].Key, ShouldResemble, []string{"03/15/2024", "packer"})

		Convey("numeric values strip comma separators", func() {
			n, ok := recs[0].Values["head_count"].Number()
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, 4567.0)
		})

		Convey("an absent dependent field maps to a not-present value", func() {
			v := recs[1].Values["head_count"]
			So(v.Present, ShouldBeFalse)
			_, ok := v.Number()
			So(ok, ShouldBeFalse)
		})
	})

	Convey("a missing independent field fails the section", t, func() {
		sec := slaughterSection()
		rows := []Row{{
			"report_date": str("03/15/2024"),
			"head_count":  str("4,567"),
		}}
		_, err := MapRecords(2480, sec, rows, MapperOptions{})
		So(err, ShouldNotBeNil)
		merr, ok := err.(*FieldMappingError)
		So(ok, ShouldBeTrue)
		So(merr.Field, ShouldEqual, "source_desc")
		So(merr.Row, ShouldEqual, 0)
	})

	Convey("a null independent field fails the section", t, func() {
		sec := slaughterSection()
		rows := []Row{{
			"report_date": str("03/15/2024"),
			"source_desc": nil,
		}}
		_, err := MapRecords(2480, sec, rows, MapperOptions{})
		So(err, ShouldNotBeNil)
		merr, ok := err.(*FieldMappingError)
		So(ok, ShouldBeTrue)
		So(merr.Field, ShouldEqual, "source_desc")
	})

	Convey("a malformed date-axis value fails the section", t, func() {
		sec := slaughterSection()
		rows := []Row{{
			"report_date": str("2024-03-15"),
			"source_desc": str("packer"),
		}}
		_, err := MapRecords(2480, sec, rows, MapperOptions{})
		So(err, ShouldNotBeNil)
		_, ok := err.(*dates.FormatError)
		So(ok, ShouldBeTrue)
	})

	Convey("SkipNullDates drops null-dated rows only", t, func() {
		sec := slaughterSection()
		rows := []Row{
			{"report_date": nil, "source_desc": str("packer")},
			{"report_date": str("03/15/2024"), "source_desc": str("packer")},
		}
		recs, err := MapRecords(2480, sec, rows, MapperOptions{SkipNullDates: true})
		So(err, ShouldBeNil)
		So(len(recs), ShouldEqual, 1)
		So(recs[0].Key[1], ShouldEqual, "packer")

		Convey("a null non-date key still fails", func() {
			rows := []Row{{"report_date": str("03/15/2024"), "source_desc": nil}}
			_, err := MapRecords(2480, sec, rows, MapperOptions{SkipNullDates: true})
			So(err, ShouldNotBeNil)
			merr, ok := err.(*FieldMappingError)
			So(ok, ShouldBeTrue)
			So(merr.Field, ShouldEqual, "source_desc")
		})

		Convey("an absent date field still fails", func() {
			rows := []Row{{"source_desc": str("packer")}}
			_, err := MapRecords(2480, sec, rows, MapperOptions{SkipNullDates: true})
			So(err, ShouldNotBeNil)
			_, ok := err.(*FieldMappingError)
			So(ok, ShouldBeTrue)
		})
	})

	Convey("duplicate key tuples", t, func() {
		sec := detailSection()
		rows := []Row{
			detailRow("03/15/2024", "Steers", "100"),
			detailRow("03/15/2024", "Heifers", "200"),
			detailRow("03/15/2024", "Steers", "300"), // same six-field tuple as row 0
		}

		Convey("fail the section by default, naming both rows", func() {
			_, err := MapRecords(2481, sec, rows, MapperOptions{})
			So(err, ShouldNotBeNil)
			derr, ok := err.(*DuplicateKeyError)
			So(ok, ShouldBeTrue)
			So(derr.Section, ShouldEqual, "Detail")
			So(derr.Row, ShouldEqual, 2)
			So(derr.Prior, ShouldEqual, 0)
			So(derr.Key[1], ShouldEqual, "Steers")
		})

		Convey("keep-first keeps the earlier row", func() {
			recs, err := MapRecords(2481, sec, rows,
				MapperOptions{Duplicates: DuplicateKeepFirst})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].Values["head_count"].Text, ShouldEqual, "100")
		})

		Convey("keep-last replaces in place, preserving order", func() {
			recs, err := MapRecords(2481, sec, rows,
				MapperOptions{Duplicates: DuplicateKeepLast})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].Values["head_count"].Text, ShouldEqual, "300")
			So(recs[1].Values["head_count"].Text, ShouldEqual, "200")
		})

		Convey("differing tuples are not duplicates", func() {
			rows := []Row{
				detailRow("03/15/2024", "Steers", "100"),
				detailRow("03/16/2024", "Steers", "100"),
			}
			recs, err := MapRecords(2481, sec, rows, MapperOptions{})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
		})
	})
}
