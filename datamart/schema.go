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
	"sort"
)

// FieldSet is the field schema of one report section: an ordered list of
// independent (key) field names plus the dependent (value) field names. The
// first independent field is always the section's date axis. Field names are
// case-sensitive and compared byte for byte; no normalization is ever
// applied.
type FieldSet struct {
	Independent []string
	Dependent   []string
}

// DateField is the name of the section's date axis, the first independent
// field.
func (fs FieldSet) DateField() string {
	return fs.Independent[0]
}

// HasIndependent checks whether name is one of the independent fields.
func (fs FieldSet) HasIndependent(name string) bool {
	for _, f := range fs.Independent {
		if f == name {
			return true
		}
	}
	return false
}

// HasDependent checks whether name is one of the dependent fields.
func (fs FieldSet) HasDependent(name string) bool {
	for _, f := range fs.Dependent {
		if f == name {
			return true
		}
	}
	return false
}

// SectionDef is a single section of a report.
type SectionDef struct {
	// DisplayName keys this section inside a raw API response. It may contain
	// characters illegal in an identifier, e.g. "A. Packer Owned Slaughter".
	DisplayName string
	// Alias is the canonical programmatic name of the section. When the
	// configuration supplies none, it equals DisplayName, which then must
	// itself be a valid identifier.
	Alias  string
	Fields FieldSet
}

// ReportDef is a single datamart report: a numbered data product decomposed
// into sections. Instances are built once at schema load time and never
// mutated afterwards.
type ReportDef struct {
	ID          int
	Name        string // short machine-friendly identifier, e.g. "lm_ct100"
	Description string
	// Independent is the report-level default date field, used when a query
	// does not target a specific section.
	Independent string
	// Sections maps the section display name to its definition. Read-only
	// after load.
	Sections map[string]*SectionDef

	byAlias map[string]*SectionDef
}

// Section resolves a section by its alias.
func (r *ReportDef) Section(alias string) (*SectionDef, error) {
	sec, ok := r.byAlias[alias]
	if !ok {
		return nil, &UnknownSectionError{ReportID: r.ID, Section: alias}
	}
	return sec, nil
}

// SectionByDisplayName resolves a section by the name the API payload uses.
func (r *ReportDef) SectionByDisplayName(name string) (*SectionDef, bool) {
	sec, ok := r.Sections[name]
	return sec, ok
}

// SectionNames returns the display names of all sections in a stable order.
func (r *ReportDef) SectionNames() []string {
	names := make([]string, 0, len(r.Sections))
	for name := range r.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema is the read-only index of all loaded report definitions. It is
// constructed once by NewSchema and safe for unsynchronized concurrent reads
// afterwards.
type Schema struct {
	byID   map[int]*ReportDef
	byName map[string]*ReportDef
}

// ByID returns the report definition with the given numeric ID.
func (s *Schema) ByID(id int) (*ReportDef, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, &UnknownReportError{ID: id}
	}
	return r, nil
}

// ByName returns the report definition with the given short name.
func (s *Schema) ByName(name string) (*ReportDef, error) {
	r, ok := s.byName[name]
	if !ok {
		return nil, &UnknownReportError{Name: name}
	}
	return r, nil
}

// Reports lists all definitions ordered by ID.
func (s *Schema) Reports() []*ReportDef {
	reports := make([]*ReportDef, 0, len(s.byID))
	for _, r := range s.byID {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })
	return reports
}

// validIdent checks that s is usable as a programmatic identifier: letters,
// digits and underscores, not starting with a digit.
func validIdent(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// validateSection checks the cross-field invariants of a single section and
// fills in the implied alias. Returns the first violation found.
func validateSection(r *ReportDef, name string, sec *SectionDef) error {
	fail := func(field, reason string) error {
		return &ValidationError{
			ReportID: r.ID, Report: r.Name, Section: name,
			Field: field, Reason: reason,
		}
	}
	if name == "" {
		return fail("", "empty section display name")
	}
	if sec.Alias == "" {
		sec.Alias = sec.DisplayName
	}
	if !validIdent(sec.Alias) {
		return fail("", "section alias "+sec.Alias+" is not a valid identifier")
	}
	if len(sec.Fields.Independent) == 0 {
		return fail("", "no independent fields")
	}
	for _, f := range sec.Fields.Independent {
		if f == "" {
			return fail(f, "empty independent field name")
		}
	}
	for _, f := range sec.Fields.Dependent {
		if f == "" {
			return fail(f, "empty dependent field name")
		}
		if sec.Fields.HasIndependent(f) {
			return fail(f, "field is both independent and dependent")
		}
	}
	return nil
}

// NewSchema validates report definitions and indexes them by ID and short
// name. It fails fast on the first violation, naming the report, section and
// field that triggered it. On success the returned Schema is frozen: neither
// it nor the definitions it holds are modified again.
func NewSchema(reports []*ReportDef) (*Schema, error) {
	s := &Schema{
		byID:   make(map[int]*ReportDef, len(reports)),
		byName: make(map[string]*ReportDef, len(reports)),
	}
	for _, r := range reports {
		fail := func(reason string) error {
			return &ValidationError{ReportID: r.ID, Report: r.Name, Reason: reason}
		}
		if r.ID <= 0 {
			return nil, fail("report ID must be positive")
		}
		if r.Name == "" {
			return nil, fail("empty report name")
		}
		if _, ok := s.byID[r.ID]; ok {
			return nil, fail("duplicate report ID")
		}
		if _, ok := s.byName[r.Name]; ok {
			return nil, fail("duplicate report name")
		}
		if r.Independent == "" {
			return nil, fail("empty report-level independent field")
		}
		if len(r.Sections) == 0 {
			return nil, fail("report has no sections")
		}
		r.byAlias = make(map[string]*SectionDef, len(r.Sections))
		for _, name := range r.SectionNames() {
			sec := r.Sections[name]
			if sec.DisplayName == "" {
				sec.DisplayName = name
			}
			if sec.DisplayName != name {
				return nil, &ValidationError{
					ReportID: r.ID, Report: r.Name, Section: name,
					Reason: "section display name disagrees with its key",
				}
			}
			if err := validateSection(r, name, sec); err != nil {
				return nil, err
			}
			if _, ok := r.byAlias[sec.Alias]; ok {
				return nil, &ValidationError{
					ReportID: r.ID, Report: r.Name, Section: name,
					Reason: "duplicate section alias " + sec.Alias,
				}
			}
			r.byAlias[sec.Alias] = sec
		}
		s.byID[r.ID] = r
		s.byName[r.Name] = r
	}
	return s, nil
}
