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

// Package exec implements HistoricalExecutor (spec §4.7): for each
// historical window, materialise the relevant event range and run it
// through a SparqlAdapter, emitting QueryResult batches.
package exec

import "fmt"

// ExecutionError is the ExecutionError kind from spec §7: a ReadRange or
// SparqlAdapter failure while evaluating a historical window. engine.Start
// also returns one when the query is already running.
type ExecutionError struct {
	QueryID string
	Window  string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("exec: query %s window %s: %v", e.QueryID, e.Window, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Kind identifies ExecutionError as the ExecutionError kind (spec §7).
func (e *ExecutionError) Kind() string { return "ExecutionError" }
