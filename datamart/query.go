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
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/isosphere/usda-data-acquisition/dates"
)

// dateKind enumerates the forms of the date-axis clause.
type dateKind int

const (
	dateNone dateKind = iota
	dateOn
	dateRange
)

// filter is a single literal equality constraint.
type filter struct {
	Field string
	Value string
}

// Query is an immutable builder for the q= equality query of one report
// section. Builder methods return deep copies, leaving the original intact,
// and building the same query twice yields byte-identical output.
type Query struct {
	report  *ReportDef
	section *SectionDef

	kind     dateKind
	on       dates.Date
	min, max dates.Date
	filters  []filter
}

// NewQuery creates a query against the section of the report identified by
// its alias.
func NewQuery(report *ReportDef, sectionAlias string) (*Query, error) {
	sec, err := report.Section(sectionAlias)
	if err != nil {
		return nil, err
	}
	return &Query{report: report, section: sec}, nil
}

// Copy creates a deep copy of the query.
func (q *Query) Copy() *Query {
	q2 := *q
	q2.filters = make([]filter, len(q.filters))
	copy(q2.filters, q.filters)
	return &q2
}

// On constrains the date axis to a single report date.
func (q *Query) On(d dates.Date) *Query {
	q2 := q.Copy()
	q2.kind = dateOn
	q2.on = d
	return q2
}

// Between constrains the date axis to the inclusive range [min, max], the
// form the API accepts for backfills.
func (q *Query) Between(min, max dates.Date) *Query {
	q2 := q.Copy()
	q2.kind = dateRange
	q2.min, q2.max = min, max
	return q2
}

// Equal adds a literal equality filter on an independent field. A filter on
// the section's date field accepts either the ISO or the wire date form and
// is always emitted first, normalized to the wire form.
func (q *Query) Equal(field, value string) *Query {
	q2 := q.Copy()
	q2.filters = append(q2.filters, filter{Field: field, Value: value})
	return q2
}

// Where adds equality filters for several fields at once, in the order the
// section declares its independent fields. Fields absent from the
// declaration are appended in sorted order so that Build can report them.
func (q *Query) Where(values map[string]string) *Query {
	q2 := q.Copy()
	rest := make(map[string]string, len(values))
	for f, v := range values {
		rest[f] = v
	}
	for _, f := range q.section.Fields.Independent {
		if v, ok := rest[f]; ok {
			q2.filters = append(q2.filters, filter{Field: f, Value: v})
			delete(rest, f)
		}
	}
	unknown := make([]string, 0, len(rest))
	for f := range rest {
		unknown = append(unknown, f)
	}
	sort.Strings(unknown)
	for _, f := range unknown {
		q2.filters = append(q2.filters, filter{Field: f, Value: rest[f]})
	}
	return q2
}

// Section returns the section definition this query targets.
func (q *Query) Section() *SectionDef {
	return q.section
}

// Report returns the report definition this query targets.
func (q *Query) Report() *ReportDef {
	return q.report
}

// Path returns the URL path of the query relative to the API base, with the
// section display name escaped.
func (q *Query) Path() string {
	return fmt.Sprintf("reports/%d/%s",
		q.report.ID, url.PathEscape(q.section.DisplayName))
}

// Build assembles the canonical clause list for the q= query parameter:
// field=value pairs joined with ";" (logical AND), the first pair always the
// section's date field in MM/DD/YYYY form. An empty string means an
// unconstrained query. Build is deterministic and has no side effects.
func (q *Query) Build() (string, error) {
	dateField := q.section.Fields.DateField()
	queryErr := func(reason string) error {
		return &QueryError{ReportID: q.report.ID, Section: q.section.Alias, Reason: reason}
	}

	dateClause := ""
	switch q.kind {
	case dateOn:
		dateClause = fmt.Sprintf("%s=%s", dateField, q.on.Wire())
	case dateRange:
		dateClause = fmt.Sprintf("%s=%s:%s", dateField, q.min.Wire(), q.max.Wire())
	}

	clauses := []string{}
	for _, f := range q.filters {
		if !q.section.Fields.HasIndependent(f.Field) {
			return "", &UnknownFieldError{
				ReportID: q.report.ID, Section: q.section.Alias, Field: f.Field,
			}
		}
		if f.Field == dateField {
			if dateClause != "" {
				return "", queryErr("more than one date-axis constraint")
			}
			d, err := dates.Parse(f.Value)
			if err != nil {
				return "", err
			}
			dateClause = fmt.Sprintf("%s=%s", dateField, d.Wire())
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s=%s", f.Field, f.Value))
	}
	if dateClause == "" {
		if len(clauses) > 0 {
			return "", queryErr("filters require a date-axis constraint first")
		}
		return "", nil
	}
	return strings.Join(append([]string{dateClause}, clauses...), ";"), nil
}

// Values renders the query as URL query values. An unconstrained query
// yields no values at all.
func (q *Query) Values() (url.Values, error) {
	clause, err := q.Build()
	if err != nil {
		return nil, err
	}
	v := make(url.Values)
	if clause != "" {
		v["q"] = []string{clause}
	}
	return v, nil
}
