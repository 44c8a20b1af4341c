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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"

	"github.com/isosphere/usda-data-acquisition/datamart"
	"github.com/isosphere/usda-data-acquisition/dates"
	"github.com/isosphere/usda-data-acquisition/export"
)

type Flags struct {
	Config        string // path to the report schema TOML (required)
	OutDir        string // default: current directory
	Format        string // "csv" or "text"
	LogLevel      logging.Level
	Date          dates.Date // fetch a single report date
	Since         dates.Date // fetch the range [since, today]
	Mode          datamart.Mode
	Duplicates    datamart.DuplicatePolicy
	SkipNullDates bool
	Workers       int
	Reports       string // comma-separated report names or IDs; empty = all
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	var date, since, mode, duplicates string
	fs := flag.NewFlagSet("usda-datamart", flag.ExitOnError)
	fs.StringVar(&flags.Config, "config", "", "report schema file (required)")
	fs.StringVar(&flags.OutDir, "out", ".", "output directory")
	fs.StringVar(&flags.Format, "format", "csv", "output format: csv or text")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&date, "date", "", "fetch a single report date (YYYY-MM-DD)")
	fs.StringVar(&since, "since", "",
		"fetch all report dates from this one through today (YYYY-MM-DD)")
	fs.StringVar(&mode, "mode", string(datamart.Strict),
		"section handling: strict or lenient")
	fs.StringVar(&duplicates, "on-duplicate", string(datamart.DuplicateFail),
		"duplicate key handling: fail, keep-first or keep-last")
	fs.BoolVar(&flags.SkipNullDates, "skip-null-dates", false,
		"drop rows with a null report date instead of failing")
	fs.IntVar(&flags.Workers, "workers", 2*runtime.NumCPU(),
		"number of reports to fetch in parallel")
	fs.StringVar(&flags.Reports, "reports", "",
		"comma-separated report names or IDs; default: all configured reports")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.Config == "" {
		return nil, errors.Reason("missing required -config argument")
	}
	if flags.Format != "csv" && flags.Format != "text" {
		return nil, errors.Reason("-format must be csv or text, got %q", flags.Format)
	}
	if date != "" && since != "" {
		return nil, errors.Reason("-date and -since are mutually exclusive")
	}
	var err error
	if date != "" {
		if flags.Date, err = dates.Parse(date); err != nil {
			return nil, errors.Annotate(err, "invalid -date argument")
		}
	}
	if since != "" {
		if flags.Since, err = dates.Parse(since); err != nil {
			return nil, errors.Annotate(err, "invalid -since argument")
		}
	}
	flags.Mode = datamart.Mode(mode)
	if !flags.Mode.Valid() {
		return nil, errors.Reason("-mode must be strict or lenient, got %q", mode)
	}
	flags.Duplicates = datamart.DuplicatePolicy(duplicates)
	switch flags.Duplicates {
	case datamart.DuplicateFail, datamart.DuplicateKeepFirst, datamart.DuplicateKeepLast:
	default:
		return nil, errors.Reason(
			"-on-duplicate must be fail, keep-first or keep-last, got %q", duplicates)
	}
	if flags.Workers < 1 {
		return nil, errors.Reason("-workers must be positive, got %d", flags.Workers)
	}
	return &flags, nil
}

func readSchema(path string) (*datamart.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read schema file %s", path)
	}
	s, err := datamart.ParseConfig(data)
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse schema file %s", path)
	}
	return s, nil
}

// selectReports resolves the -reports argument against the schema. Each
// comma-separated token is a report ID or a report name.
func selectReports(s *datamart.Schema, arg string) ([]*datamart.ReportDef, error) {
	if arg == "" {
		return s.Reports(), nil
	}
	var reports []*datamart.ReportDef
	for _, token := range strings.Split(arg, ",") {
		token = strings.TrimSpace(token)
		var r *datamart.ReportDef
		var err error
		if id, convErr := strconv.Atoi(token); convErr == nil {
			r, err = s.ByID(id)
		} else {
			r, err = s.ByName(token)
		}
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func writeSection(flags *Flags, r *datamart.ReportDef, sec *datamart.SectionDef,
	recs []datamart.Record) error {
	tbl := export.RecordTable(sec, recs)
	name := fmt.Sprintf("%s_%s.%s", r.Name, sec.Alias, flags.Format)
	path := filepath.Join(flags.OutDir, name)
	f, err := os.Create(path)
	if err != nil {
		return errors.Annotate(err, "failed to create %s", path)
	}
	defer f.Close()
	if flags.Format == "text" {
		err = tbl.WriteText(f, export.Params{})
	} else {
		err = tbl.WriteCSV(f, export.Params{})
	}
	if err != nil {
		return errors.Annotate(err, "failed to write %s", path)
	}
	return nil
}

// processReport fetches, demultiplexes and exports one report.
func processReport(ctx context.Context, flags *Flags, r *datamart.ReportDef) error {
	opts := datamart.FetchOptions{On: flags.Date, Since: flags.Since}
	payload, err := datamart.FetchReport(ctx, r, opts)
	if err != nil {
		return err
	}
	demuxed, err := datamart.Demux(r, payload, flags.Mode)
	if err != nil {
		return err
	}
	aliases := make([]string, 0, len(demuxed))
	for alias := range demuxed {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	mapperOpts := datamart.MapperOptions{
		Duplicates:    flags.Duplicates,
		SkipNullDates: flags.SkipNullDates,
	}
	for _, alias := range aliases {
		sec, err := r.Section(alias)
		if err != nil {
			return err
		}
		recs, err := datamart.MapRecords(r.ID, sec, demuxed[alias], mapperOpts)
		if err != nil {
			return err
		}
		if err := writeSection(flags, r, sec, recs); err != nil {
			return err
		}
		logging.Infof(ctx, "report %d section %q: %d records",
			r.ID, sec.Alias, len(recs))
	}
	return nil
}

func fetchAll(ctx context.Context, flags *Flags) error {
	s, err := readSchema(flags.Config)
	if err != nil {
		return err
	}
	reports, err := selectReports(s, flags.Reports)
	if err != nil {
		return err
	}
	ctx = datamart.UseClient(ctx)
	if err := datamart.Probe(ctx); err != nil {
		return errors.Annotate(err, "datamart is not responding")
	}

	f := func(r *datamart.ReportDef) error {
		if err := processReport(ctx, flags, r); err != nil {
			logging.Errorf(ctx, "failed to process report %d %q: %s",
				r.ID, r.Name, err.Error())
			return err
		}
		return nil
	}
	pm := iterator.ParallelMap(ctx, flags.Workers, iterator.FromSlice(reports), f)
	defer pm.Close()

	failed := iterator.Reduce[error, int](pm, 0, func(err error, n int) int {
		if err != nil {
			n++
		}
		return n
	})
	if failed > 0 {
		return errors.Reason("%d of %d reports failed", failed, len(reports))
	}
	return nil
}

func run(ctx context.Context, args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return errors.Annotate(err, "failed to parse flags")
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))
	return fetchAll(ctx, flags)
}

// main is not tested, keep it short.
func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		ctx := logging.Use(context.Background(), logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
