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

// Package dates implements the calendar date value used throughout the
// datamart packages, and its conversion to and from the MM/DD/YYYY textual
// form the datamart API speaks on the wire. Dates are calendar dates only;
// there is no timezone concept.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatError indicates that a piece of text could not be interpreted as a
// wire-format calendar date.
type FormatError struct {
	Input  string
	Reason string
}

var _ error = &FormatError{}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid date %q: %s", e.Input, e.Reason)
}

// Date records a calendar date as year, month and day. The struct is designed
// to fit into 4 bytes.
type Date struct {
	YearVal  uint16
	MonthVal uint8
	DayVal   uint8
}

// New is the constructor for Date.
func New(year uint16, month, day uint8) Date {
	return Date{year, month, day}
}

// NewFromTime creates a Date instance from the calendar date of t.
func NewFromTime(t time.Time) Date {
	return Date{
		YearVal:  uint16(t.Year()),
		MonthVal: uint8(t.Month()),
		DayVal:   uint8(t.Day()),
	}
}

// Today returns the current date in local time. Range queries against the
// datamart use it as the open upper bound.
func Today() Date {
	return NewFromTime(time.Now())
}

func (d Date) Year() uint16 { return d.YearVal }
func (d Date) Month() uint8 { return d.MonthVal }
func (d Date) Day() uint8   { return d.DayVal }

// String representation of the value, YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), d.Month(), d.Day())
}

// Wire formats the date the way the datamart API expects it in queries and
// returns it in responses: MM/DD/YYYY, zero-padded, four-digit year.
func (d Date) Wire() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Month(), d.Day(), d.Year())
}

// ToTime converts Date to time.Time in UTC.
func (d Date) ToTime() time.Time {
	return time.Date(int(d.Year()), time.Month(d.Month()), int(d.Day()),
		0, 0, 0, 0, time.UTC)
}

// IsZero checks whether the date has a zero value.
func (d Date) IsZero() bool {
	return d.Year() == 0 && d.Month() == 0 && d.Day() == 0
}

// Before compares two Date objects for strict inequality (self < d2).
func (d Date) Before(d2 Date) bool {
	if d.Year() != d2.Year() {
		return d.Year() < d2.Year()
	}
	if d.Month() != d2.Month() {
		return d.Month() < d2.Month()
	}
	return d.Day() < d2.Day()
}

// After compares two Date objects for strict inequality, self > d2.
func (d Date) After(d2 Date) bool {
	return d2.Before(d)
}

func (d Date) IsLeapYear() bool {
	if d.Year()%400 == 0 {
		return true
	}
	if d.Year()%100 == 0 {
		return false
	}
	return d.Year()%4 == 0
}

// DaysInMonth is the number of days in the current month, which for February
// depends on the year.
func (d Date) DaysInMonth() uint8 {
	switch d.Month() {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if d.IsLeapYear() {
			return 29
		}
		return 28
	}
	return 0
}

// checkRange validates the month and day components of an already assembled
// date.
func checkRange(d Date, input string) (Date, error) {
	if d.Month() < 1 || d.Month() > 12 {
		return Date{}, &FormatError{Input: input, Reason: "month out of range"}
	}
	if d.Day() < 1 || d.Day() > d.DaysInMonth() {
		return Date{}, &FormatError{Input: input, Reason: "day out of range"}
	}
	return d, nil
}

// FromWire parses the datamart's MM/DD/YYYY form. The year must be exactly
// four digits; month and day may omit the zero padding, since the API is not
// consistent about it.
func FromWire(s string) (Date, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Date{}, &FormatError{Input: s, Reason: "expected MM/DD/YYYY"}
	}
	month, err := parseComponent(parts[0], 2)
	if err != nil {
		return Date{}, &FormatError{Input: s, Reason: "month is not numeric"}
	}
	day, err := parseComponent(parts[1], 2)
	if err != nil {
		return Date{}, &FormatError{Input: s, Reason: "day is not numeric"}
	}
	if len(parts[2]) != 4 {
		return Date{}, &FormatError{Input: s, Reason: "year must be four digits"}
	}
	year, err := parseComponent(parts[2], 4)
	if err != nil {
		return Date{}, &FormatError{Input: s, Reason: "year is not numeric"}
	}
	return checkRange(New(uint16(year), uint8(month), uint8(day)), s)
}

// parseComponent parses a date component of at most maxDigits decimal digits.
func parseComponent(s string, maxDigits int) (int, error) {
	if len(s) == 0 || len(s) > maxDigits {
		return 0, &FormatError{Input: s, Reason: "wrong number of digits"}
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, &FormatError{Input: s, Reason: "not a digit"}
		}
	}
	return strconv.Atoi(s)
}

// Parse accepts a date in either the ISO form YYYY-MM-DD or the wire form
// MM/DD/YYYY. Query filter values arrive in whichever form the caller finds
// convenient; the builder always emits the wire form.
func Parse(s string) (Date, error) {
	if strings.Contains(s, "/") {
		return FromWire(s)
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return Date{}, &FormatError{Input: s, Reason: "expected YYYY-MM-DD or MM/DD/YYYY"}
	}
	if len(parts[0]) != 4 {
		return Date{}, &FormatError{Input: s, Reason: "year must be four digits"}
	}
	year, err := parseComponent(parts[0], 4)
	if err != nil {
		return Date{}, &FormatError{Input: s, Reason: "year is not numeric"}
	}
	month, err := parseComponent(parts[1], 2)
	if err != nil {
		return Date{}, &FormatError{Input: s, Reason: "month is not numeric"}
	}
	day, err := parseComponent(parts[2], 2)
	if err != nil {
		return Date{}, &FormatError{Input: s, Reason: "day is not numeric"}
	}
	return checkRange(New(uint16(year), uint8(month), uint8(day)), s)
}
