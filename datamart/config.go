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
	"strconv"

	"github.com/isosphere/usda-data-acquisition/message"
	"github.com/stockparfait/errors"

	toml "github.com/pelletier/go-toml/v2"
)

// SectionConfig is a raw section entry in the schema configuration file.
type SectionConfig struct {
	// Alias, when present, is used instead of the section display name as the
	// canonical section identifier.
	Alias string `config:"alias"`
	// Independent are the key fields, in key-tuple order. The first one is
	// always interpreted as a date.
	Independent []string `config:"independent" required:"true"`
	// Fields are the dependent value fields.
	Fields []string `config:"fields"`
}

var _ message.Message = &SectionConfig{}

func (c *SectionConfig) InitMessage(tree interface{}) error {
	return message.Init(c, tree)
}

// ReportConfig is a raw report entry in the schema configuration file. The
// numeric report ID is the entry's own key in the file and is supplied
// separately to Definition.
type ReportConfig struct {
	Name        string                    `config:"name" required:"true"`
	Description string                    `config:"description"`
	Independent string                    `config:"independent" required:"true"`
	Sections    map[string]*SectionConfig `config:"sections" required:"true"`
}

var _ message.Message = &ReportConfig{}

func (c *ReportConfig) InitMessage(tree interface{}) error {
	return message.Init(c, tree)
}

// Definition converts the raw entry into a report definition for the given
// report ID. The result still needs NewSchema to validate and index it.
func (c *ReportConfig) Definition(id int) *ReportDef {
	r := &ReportDef{
		ID:          id,
		Name:        c.Name,
		Description: c.Description,
		Independent: c.Independent,
		Sections:    make(map[string]*SectionDef, len(c.Sections)),
	}
	for name, sec := range c.Sections {
		r.Sections[name] = &SectionDef{
			DisplayName: name,
			Alias:       sec.Alias,
			Fields: FieldSet{
				Independent: sec.Independent,
				Dependent:   sec.Fields,
			},
		}
	}
	return r
}

// LoadSchema validates a decoded configuration tree, one entry per report
// keyed by the report ID, and builds the indexed Schema.
func LoadSchema(tree map[string]interface{}) (*Schema, error) {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	reports := make([]*ReportDef, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.Atoi(k)
		if err != nil || id <= 0 {
			return nil, &ValidationError{
				Reason: "report key " + strconv.Quote(k) + " is not a positive numeric ID",
			}
		}
		var rc ReportConfig
		if err := rc.InitMessage(tree[k]); err != nil {
			return nil, errors.Annotate(err, "bad config entry for report %d", id)
		}
		reports = append(reports, rc.Definition(id))
	}
	return NewSchema(reports)
}

// ParseConfig decodes a TOML schema configuration document and loads it into
// a Schema.
func ParseConfig(data []byte) (*Schema, error) {
	var tree map[string]interface{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, errors.Annotate(err, "failed to parse schema config")
	}
	return LoadSchema(tree)
}
