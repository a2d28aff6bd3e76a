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

package exec

import (
	"github.com/janus-rsp/janus/janusql"
	"github.com/janus-rsp/janus/quadmat"
	"github.com/janus-rsp/janus/rsp"
	"github.com/janus-rsp/janus/term"
)

// EventReader is the slice of storage.SegmentedStore this package needs;
// accepting the interface rather than the concrete type lets tests supply
// an in-memory fake instead of standing up a real segment directory.
type EventReader interface {
	ReadRange(a, b uint64) ([]term.RDFEvent, error)
}

// Fixed executes one historical-fixed window exactly once (spec §4.7
// "Fixed"): materialise [start,end], run the SPARQL query, emit a single
// QueryResult batch.
type Fixed struct {
	QueryID    string
	Window     janusql.Window // must have Kind == janusql.HistoricalFixed
	SPARQL     string         // the per-window sparql_queries[i] text
	Store      EventReader
	Adapter    rsp.SparqlAdapter
	Classifier quadmat.TermClassifier
}

// Run performs the single materialise-and-execute pass.
func (f Fixed) Run() (rsp.QueryResult, error) {
	events, err := f.Store.ReadRange(f.Window.StartTS, f.Window.EndTS)
	if err != nil {
		return rsp.QueryResult{}, &ExecutionError{QueryID: f.QueryID, Window: f.Window.Name, Err: err}
	}
	quads := quadmat.Materialize(events, f.Window.Name, f.Classifier)
	bindings, err := f.Adapter.Execute(f.SPARQL, quads)
	if err != nil {
		return rsp.QueryResult{}, &ExecutionError{QueryID: f.QueryID, Window: f.Window.Name, Err: err}
	}
	return rsp.QueryResult{
		QueryID:   f.QueryID,
		Timestamp: f.Window.EndTS,
		Source:    rsp.Historical,
		Bindings:  bindings,
	}, nil
}
