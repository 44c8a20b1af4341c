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
	"errors"
	"fmt"
	"strings"

	"github.com/isosphere/usda-data-acquisition/dates"
)

// ValidationError reports an internal inconsistency in a report definition
// found at schema load time. It is fatal: a registry with a bad definition is
// never constructed.
type ValidationError struct {
	ReportID int
	Report   string // report short name, when known
	Section  string // section display name, when the fault is inside a section
	Field    string // offending field name, when applicable
	Reason   string
}

var _ error = &ValidationError{}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid schema: report %d", e.ReportID)
	if e.Report != "" {
		fmt.Fprintf(&b, " (%s)", e.Report)
	}
	if e.Section != "" {
		fmt.Fprintf(&b, " section %q", e.Section)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// UnknownReportError indicates a lookup of a report the schema does not
// define, by ID or by short name.
type UnknownReportError struct {
	ID   int    // zero when the lookup was by name
	Name string // empty when the lookup was by ID
}

var _ error = &UnknownReportError{}

func (e *UnknownReportError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown report %q", e.Name)
	}
	return fmt.Sprintf("unknown report %d", e.ID)
}

// UnknownSectionError indicates a section name that the owning report does
// not define, either as an alias in a caller request or as a display name in
// a response payload.
type UnknownSectionError struct {
	ReportID int
	Section  string
}

var _ error = &UnknownSectionError{}

func (e *UnknownSectionError) Error() string {
	return fmt.Sprintf("report %d has no section %q", e.ReportID, e.Section)
}

// MissingSectionError indicates that a strict demultiplex found fewer
// sections in the payload than the schema declares for the report.
type MissingSectionError struct {
	ReportID int
	Section  string // the declared display name absent from the payload
}

var _ error = &MissingSectionError{}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("response for report %d is missing section %q",
		e.ReportID, e.Section)
}

// UnknownFieldError indicates a query filter on a field that is not one of
// the section's independent fields.
type UnknownFieldError struct {
	ReportID int
	Section  string // section alias
	Field    string
}

var _ error = &UnknownFieldError{}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("report %d section %q has no independent field %q",
		e.ReportID, e.Section, e.Field)
}

// QueryError indicates a structurally invalid query, e.g. filters without a
// date-axis clause.
type QueryError struct {
	ReportID int
	Section  string // section alias
	Reason   string
}

var _ error = &QueryError{}

func (e *QueryError) Error() string {
	return fmt.Sprintf("bad query for report %d section %q: %s",
		e.ReportID, e.Section, e.Reason)
}

// FieldMappingError indicates a response row with a missing or null
// independent field, which makes the row's key tuple unconstructible.
type FieldMappingError struct {
	Section string // section alias
	Field   string
	Row     int // zero-based index in the delivered row order
}

var _ error = &FieldMappingError{}

func (e *FieldMappingError) Error() string {
	return fmt.Sprintf("section %q row %d: missing independent field %q",
		e.Section, e.Row, e.Field)
}

// DuplicateKeyError indicates two rows within a single section fetch whose
// independent-field tuples are identical.
type DuplicateKeyError struct {
	Section string // section alias
	Key     []string
	Row     int // the offending row
	Prior   int // the earlier row with the same key
}

var _ error = &DuplicateKeyError{}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("section %q rows %d and %d share the key tuple [%s]",
		e.Section, e.Prior, e.Row, strings.Join(e.Key, ", "))
}

// Retryable reports whether retrying the operation that produced err can
// possibly succeed. Errors of the schema, query, demultiplex and mapping
// layers are deterministic, so retrying them against the same inputs cannot
// help. Anything else is assumed to come from the transport and is left to
// the caller's retry policy.
func Retryable(err error) bool {
	var (
		validation *ValidationError
		report     *UnknownReportError
		section    *UnknownSectionError
		missing    *MissingSectionError
		field      *UnknownFieldError
		query      *QueryError
		mapping    *FieldMappingError
		duplicate  *DuplicateKeyError
		format     *dates.FormatError
	)
	switch {
	case errors.As(err, &validation),
		errors.As(err, &report),
		errors.As(err, &section),
		errors.As(err, &missing),
		errors.As(err, &field),
		errors.As(err, &query),
		errors.As(err, &mapping),
		errors.As(err, &duplicate),
		errors.As(err, &format):
		return false
	}
	return true
}
