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

// Mode selects how the demultiplexer treats disagreements between a payload
// and the schema.
type Mode string

const (
	// Strict fails on a payload section the schema does not declare, and on a
	// declared section the payload does not contain.
	Strict = Mode("strict")
	// Lenient drops unknown payload sections and tolerates missing ones.
	Lenient = Mode("lenient")
)

// Valid reports whether m is a recognized mode.
func (m Mode) Valid() bool {
	return m == Strict || m == Lenient
}

// Row is a single raw result row: field name to value, nil for a JSON null.
type Row map[string]*string

// Payload is a raw multi-section response, keyed by section display name.
// Row and field ordering inside a payload is not guaranteed by the API.
type Payload map[string][]Row

// Demux splits a multi-section payload into per-section row sets keyed by
// the canonical section alias. Payload keys are matched against the report's
// section display names byte for byte.
func Demux(report *ReportDef, payload Payload, mode Mode) (map[string][]Row, error) {
	if !mode.Valid() {
		return nil, &ValidationError{
			ReportID: report.ID, Report: report.Name,
			Reason: "unknown demultiplex mode " + string(mode),
		}
	}
	names := make([]string, 0, len(payload))
	for name := range payload {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic error reporting

	out := make(map[string][]Row, len(payload))
	for _, name := range names {
		sec, ok := report.SectionByDisplayName(name)
		if !ok {
			if mode == Lenient {
				continue
			}
			return nil, &UnknownSectionError{ReportID: report.ID, Section: name}
		}
		out[sec.Alias] = payload[name]
	}
	if mode == Strict {
		for _, name := range report.SectionNames() {
			if _, ok := payload[name]; !ok {
				return nil, &MissingSectionError{ReportID: report.ID, Section: name}
			}
		}
	}
	return out, nil
}
