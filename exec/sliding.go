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
	"time"

	"github.com/janus-rsp/janus/janusql"
	"github.com/janus-rsp/janus/quadmat"
	"github.com/janus-rsp/janus/rsp"
)

// SlidingHistorical executes a historical-sliding window as a lazy,
// step-paced sequence of batches (spec §4.7 "Sliding"): windows close at
// t_k = now - offset + k*step for k = 0, 1, 2, ..., each covering
// [t_k - range, t_k], where now is captured once at worker spawn (see
// DESIGN.md's resolution of spec §9's open question) rather than re-read
// on every iteration — otherwise the window boundaries would drift with
// wall-clock jitter instead of advancing by exactly step each time.
type SlidingHistorical struct {
	QueryID    string
	Window     janusql.Window // must have Kind == janusql.HistoricalSliding
	SPARQL     string
	Store      EventReader
	Adapter    rsp.SparqlAdapter
	Classifier quadmat.TermClassifier

	// Now, if set, overrides time.Now for the anchor (tests only). Left
	// nil, the anchor is the wall-clock time in epoch milliseconds at
	// the moment Run is called.
	Now func() uint64
}

// Run emits one QueryResult per window on out, pacing emission by
// Window.StepMS, until stop is closed. A ReadRange or Execute failure
// terminates the worker immediately with an *ExecutionError (spec §7:
// "the offending worker logs, emits nothing further, exits"); it does not
// retry. Run blocks; callers run it in its own goroutine.
func (s SlidingHistorical) Run(stop <-chan struct{}, out chan<- rsp.QueryResult) error {
	now := s.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().UnixMilli()) }
	}
	anchor := now()
	step := time.Duration(s.Window.StepMS) * time.Millisecond
	if step <= 0 {
		step = time.Millisecond
	}

	for k := uint64(0); ; k++ {
		tk := anchor - s.Window.OffsetMS + k*s.Window.StepMS
		a := uint64(0)
		if tk > s.Window.RangeMS {
			a = tk - s.Window.RangeMS
		}
		b := tk

		events, err := s.Store.ReadRange(a, b)
		if err != nil {
			return &ExecutionError{QueryID: s.QueryID, Window: s.Window.Name, Err: err}
		}
		quads := quadmat.Materialize(events, s.Window.Name, s.Classifier)
		bindings, err := s.Adapter.Execute(s.SPARQL, quads)
		if err != nil {
			return &ExecutionError{QueryID: s.QueryID, Window: s.Window.Name, Err: err}
		}
		select {
		case out <- rsp.QueryResult{
			QueryID:   s.QueryID,
			Timestamp: b,
			Source:    rsp.Historical,
			Bindings:  bindings,
		}:
		case <-stop:
			return nil
		}

		select {
		case <-stop:
			return nil
		case <-time.After(step):
		}
	}
}
