// Copyright (C) 2024 Janus Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package rsp defines the two external-collaborator interfaces spec §6.5
// abstracts Janus behind: the SPARQL evaluator and the RSP windowing
// engine. Neither is implemented here — only the boundary, plus a pair of
// in-process fakes used by this repo's own tests and by cmd/janusd (spec.md §1 "out of
// scope", SPEC_FULL.md §6.5).
package rsp

import (
	"fmt"

	"github.com/janus-rsp/janus/quadmat"
)

// Bindings is one SPARQL result row: variable name (without the leading
// '?') to its lexical term-string form.
type Bindings map[string]string

// SparqlError is the SparqlError kind from spec §7. Category is the
// adapter-defined sub-reason (e.g. "timeout", "malformed-query"); Kind()
// always reports the fixed spec kind name, not Category.
type SparqlError struct {
	Category string
	Msg      string
}

func (e *SparqlError) Error() string {
	return fmt.Sprintf("sparql: %s: %s", e.Category, e.Msg)
}

// Kind identifies SparqlError as the SparqlError kind (spec §7).
func (e *SparqlError) Kind() string { return "SparqlError" }

// SparqlAdapter evaluates a SPARQL query text against a materialized quad
// container (spec §6.5).
type SparqlAdapter interface {
	Execute(sparqlText string, quads []quadmat.Quad) ([]Bindings, error)
}

// Source tags where a QueryResult's bindings came from (spec §4.7, §4.8).
type Source int

const (
	Historical Source = iota
	Live
)

func (s Source) String() string {
	if s == Live {
		return "live"
	}
	return "historical"
}

// QueryResult is one emitted batch of bindings, tagged with its query and
// origin (spec §4.7 "QueryResult{query_id, timestamp, source, bindings}").
// It lives here, next to Bindings, so both HistoricalExecutor and
// LiveWorker can construct it without importing the engine package that
// consumes it (which in turn imports them) — the same "small shared leaf
// type" role spec §3's Term plays for Dictionary/Segment/BatchBuffer.
type QueryResult struct {
	QueryID   string
	Timestamp uint64
	Source    Source
	Bindings  []Bindings
}

// WindowBindings is one window-completion result from an RspEngine: the
// timestamp the window closed at, and the bindings produced.
type WindowBindings struct {
	WindowCloseTS uint64
	Bindings      []Bindings
}

// RspEngine is the capability set spec §6.5 requires: register a
// continuous query, register the streams it reads from, feed quads in,
// and poll for completed windows.
type RspEngine interface {
	Register(queryText string) (handle string, err error)
	RegisterStream(streamURI string) error
	Feed(streamURI string, quad quadmat.Quad) error
	// Poll returns the next completed window's bindings, if any are
	// ready; ok is false when none are currently available (the caller
	// is expected to poll again later, not to treat this as an error).
	Poll() (wb WindowBindings, ok bool, err error)
	Shutdown() error
}
