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

// Package engine implements the Coordinator / QueryEngine (spec §4.9): a
// registry of parsed queries, a running map of their live executions, and
// the register/start/stop/status/list/unregister operations that drive
// the per-query state machine.
package engine

import (
	"sync"
	"time"

	"github.com/janus-rsp/janus/janusql"
	"github.com/janus-rsp/janus/rsp"
)

// Status is a query's state in the per-query state machine (spec §4.9
// "State machine").
type Status int

const (
	Registered Status = iota
	Running
	Stopped
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Registered:
		return "registered"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// RegistryEntry is the List() snapshot row (SPEC_FULL.md NEW 4.9).
type RegistryEntry struct {
	ID             string
	RegisteredAt   time.Time
	ExecutionCount int
	Status         Status
}

// Handle is what start(id) hands back to the caller (spec §4.9): the
// query id and the multiplexed receiver its workers forward results into.
type Handle struct {
	ID      string
	Results <-chan rsp.QueryResult
}

// entry is one registry row plus whatever a Running execution needs. The
// registry and running maps of spec §4.9 are folded into a single map
// here: a query not currently running simply has its run-only fields
// (cancel/results/wg/errored/total) zeroed.
type entry struct {
	query          *janusql.Query
	seq            int // insertion order, for a deterministic List() tie-break
	registeredAt   time.Time
	executionCount int
	status         Status

	cancel  func()
	results chan rsp.QueryResult
	wg      sync.WaitGroup

	total   int32
	errored int32
}
