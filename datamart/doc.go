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

// Package datamart implements the schema-driven query and response engine
// for the USDA market-report datamart at mpr.datamart.ams.usda.gov.
//
// A report is a numbered data product decomposed into named sections, each
// with its own ordered independent (key) fields and dependent (value)
// fields. Report definitions are supplied externally, validated and indexed
// once by NewSchema (or loaded from a TOML document by ParseConfig), and
// frozen for the life of the process; concurrent reads need no
// synchronization after that.
//
// The engine itself is three pure steps. Query builds the wire query for
// one section, formatting the date axis as MM/DD/YYYY. Demux splits a raw
// multi-section payload into per-section row sets keyed by canonical alias.
// MapRecords turns one section's rows into typed Records, enforcing that no
// two records of a fetch share an independent-field tuple.
//
// FetchSection, FetchReport and Probe tie the steps to the live service
// through the Client injected into the context by UseClient. Transport is
// otherwise out of scope: the engine returns typed, never-retryable errors
// for schema and data faults and passes transport failures through
// untouched.
package datamart
