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
	"strconv"
	"strings"

	"github.com/isosphere/usda-data-acquisition/dates"
)

// Value is a dependent-field value of a record. Present is false when the
// section did not fill the column for the row; not every section fills every
// measured column.
type Value struct {
	Text    string
	Present bool
}

// Number attempts a numeric reading of the value. The datamart publishes
// numbers with comma thousands separators, which are stripped first.
func (v Value) Number() (float64, bool) {
	if !v.Present {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(v.Text, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Record is one uniquely-keyed row of a section fetch. Instances are owned
// exclusively by the caller that receives them.
type Record struct {
	ReportID int
	Section  string // section alias
	// Date is the parsed value of the first key component, the date axis.
	Date dates.Date
	// Key holds the values of the section's independent fields, in declared
	// order; Key[0] is the raw date text as received.
	Key []string
	// Values maps each dependent field name to its value.
	Values map[string]Value
}

// DuplicatePolicy decides what to do when two rows of one fetch share a key
// tuple. The schema source does not prescribe a resolution, so failing the
// section is the documented default; the relaxations must be asked for
// explicitly.
type DuplicatePolicy string

const (
	DuplicateFail      = DuplicatePolicy("fail")
	DuplicateKeepFirst = DuplicatePolicy("keep-first")
	DuplicateKeepLast  = DuplicatePolicy("keep-last")
)

// MapperOptions adjust record mapping. The zero value is the strict default.
type MapperOptions struct {
	Duplicates DuplicatePolicy // default: DuplicateFail
	// SkipNullDates drops rows whose date-axis value is null instead of
	// failing. The live datamart does emit such rows on occasion.
	SkipNullDates bool
}

// keySeparator joins key components for the seen-tuple set. NUL cannot occur
// in a response value.
const keySeparator = "\x00"

// MapRecords converts the raw rows of one section into typed Records,
// enforcing the key-tuple uniqueness invariant. Rows are processed in the
// delivered order; all reported row indices are zero-based positions in that
// order. All duplicate-key bookkeeping is local to the call.
func MapRecords(reportID int, sec *SectionDef, rows []Row, opts MapperOptions) ([]Record, error) {
	policy := opts.Duplicates
	if policy == "" {
		policy = DuplicateFail
	}
	dateField := sec.Fields.DateField()

	records := []Record{}
	seen := map[string]int{}    // key tuple -> index into records
	seenRow := map[string]int{} // key tuple -> raw row index of the kept record
	for i, row := range rows {
		key := make([]string, len(sec.Fields.Independent))
		null := false
		for ki, field := range sec.Fields.Independent {
			v, ok := row[field]
			if !ok || v == nil {
				if opts.SkipNullDates && field == dateField && ok {
					null = true
					break
				}
				return nil, &FieldMappingError{Section: sec.Alias, Field: field, Row: i}
			}
			key[ki] = *v
		}
		if null {
			continue
		}
		date, err := dates.FromWire(key[0])
		if err != nil {
			return nil, err
		}

		rec := Record{
			ReportID: reportID,
			Section:  sec.Alias,
			Date:     date,
			Key:      key,
			Values:   make(map[string]Value, len(sec.Fields.Dependent)),
		}
		for _, field := range sec.Fields.Dependent {
			if v, ok := row[field]; ok && v != nil {
				rec.Values[field] = Value{Text: *v, Present: true}
			} else {
				rec.Values[field] = Value{}
			}
		}

		joined := strings.Join(key, keySeparator)
		if prior, ok := seen[joined]; ok {
			switch policy {
			case DuplicateKeepFirst:
				continue
			case DuplicateKeepLast:
				records[prior] = rec
				seenRow[joined] = i
				continue
			default:
				return nil, &DuplicateKeyError{
					Section: sec.Alias, Key: key, Row: i, Prior: seenRow[joined],
				}
			}
		}
		seen[joined] = len(records)
		seenRow[joined] = i
		records = append(records, rec)
	}
	return records, nil
}
