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
	"context"
	"net/url"

	"github.com/isosphere/usda-data-acquisition/dates"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default base URL of the datamart service. It may be overwritten
// in tests before creating a new client.
var URL = "https://mpr.datamart.ams.usda.gov/services/v1.1"

const userAgent = "usda-data-acquisition/0.1"

// Client for querying datamart reports.
type Client struct {
	baseURL string
}

func newClient(baseURL string) *Client {
	return &Client{baseURL: baseURL}
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client and injects it into the context.
func UseClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, clientContextKey, newClient(URL))
}

// sectionPage is the JSON shape of a single section response.
type sectionPage struct {
	ReportSection  string         `json:"reportSection"`
	ReportSections []string       `json:"reportSections"`
	Stats          map[string]int `json:"stats"`
	Results        []Row          `json:"results"`
	Message        string         `json:"message"`
}

// truncated detects a response clipped at the row allowance. The off-by-one
// is a datamart oddity.
func (p *sectionPage) truncated() bool {
	returned, ok := p.Stats["returnedRows:"]
	if !ok {
		return false
	}
	allowed, ok := p.Stats["userAllowedRows:"]
	return ok && returned == allowed+1
}

func (c *Client) fetchPage(ctx context.Context, path string, query url.Values, page *sectionPage) error {
	uri := c.baseURL + "/" + path
	if err := fetch.FetchJSON(ctx, uri, page, query, nil); err != nil {
		return errors.Annotate(err, "failed to fetch URL %s", uri)
	}
	return nil
}

// FetchSection executes the query and downloads the raw rows of its report
// section. The rows come back in the delivered order, ready for Demux or
// MapRecords.
func FetchSection(ctx context.Context, q *Query) ([]Row, error) {
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("FetchSection: no client in context")
	}
	query, err := q.Values()
	if err != nil {
		return nil, err
	}
	var page sectionPage
	if err := client.fetchPage(ctx, q.Path(), query, &page); err != nil {
		return nil, errors.Annotate(err, "FetchSection: report %d section %q",
			q.Report().ID, q.Section().Alias)
	}
	if page.Message != "" {
		logging.Infof(ctx, "datamart message for report %d: %s",
			q.Report().ID, page.Message)
	}
	if page.truncated() {
		logging.Warningf(ctx,
			"report %d section %q hit the row allowance; data may be incomplete",
			q.Report().ID, q.Section().Alias)
	}
	if page.Results == nil {
		return nil, errors.Reason(
			"FetchSection: no results in response for report %d section %q",
			q.Report().ID, q.Section().Alias)
	}
	return page.Results, nil
}

// FetchOptions constrain a report fetch. The zero value fetches the full
// available history.
type FetchOptions struct {
	On    dates.Date // fetch this report date only
	Since dates.Date // fetch the range [Since, today]; ignored when On is set
}

func (o FetchOptions) apply(q *Query) *Query {
	switch {
	case !o.On.IsZero():
		return q.On(o.On)
	case !o.Since.IsZero():
		return q.Between(o.Since, dates.Today())
	}
	return q
}

// FetchReport downloads every declared section of the report, one request
// per section, and assembles the multi-section payload keyed by display
// name for Demux.
func FetchReport(ctx context.Context, report *ReportDef, opts FetchOptions) (Payload, error) {
	payload := make(Payload, len(report.Sections))
	for _, name := range report.SectionNames() {
		sec := report.Sections[name]
		q, err := NewQuery(report, sec.Alias)
		if err != nil {
			return nil, err
		}
		rows, err := FetchSection(ctx, opts.apply(q))
		if err != nil {
			return nil, errors.Annotate(err, "failed to fetch report %d section %q",
				report.ID, name)
		}
		payload[name] = rows
	}
	return payload, nil
}

// The fastest known datamart query. The service is slow and unreliable
// enough that serious fetches need very long timeouts; probing first with a
// short one avoids tying those timeouts up when it is down.
const (
	probePath  = "reports/2451"
	probeQuery = "report_date=01/01/2020"
)

// Probe issues a cheap query to confirm that the datamart is up and
// responding with the expected structure.
func Probe(ctx context.Context) error {
	client := GetClient(ctx)
	if client == nil {
		return errors.Reason("Probe: no client in context")
	}
	var page sectionPage
	query := url.Values{"q": []string{probeQuery}}
	if err := client.fetchPage(ctx, probePath, query, &page); err != nil {
		return errors.Annotate(err, "datamart probe failed")
	}
	return nil
}
