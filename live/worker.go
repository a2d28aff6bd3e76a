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

// Package live implements LiveWorker (spec §4.8): registers a stream's
// live windows with an RspEngine, pumps EventBus deliveries into it, and
// polls for window-completion bindings.
package live

import (
	"time"

	"github.com/janus-rsp/janus/janusql"
	"github.com/janus-rsp/janus/quadmat"
	"github.com/janus-rsp/janus/rsp"
	"github.com/janus-rsp/janus/term"
)

// EventSource is the slice of bus.Subscription this package needs — a
// channel of events and a way to release the subscription — so tests can
// supply a plain channel instead of a real EventBus.
type EventSource interface {
	Events() <-chan term.RDFEvent
	Unsubscribe()
}

// DefaultPollInterval is how often Worker polls the engine for completed
// windows when PollInterval is unset.
const DefaultPollInterval = 20 * time.Millisecond

// Worker runs one live query's LiveWorker lifecycle (spec §4.8).
type Worker struct {
	QueryID      string
	RSPQLQuery   string // the rspql_query this worker registers
	LiveWindows  []janusql.Window
	Engine       rsp.RspEngine
	Source       EventSource
	Classifier   quadmat.TermClassifier
	PollInterval time.Duration
}

// streamIndex maps a stream IRI to the live windows reading from it, so
// Run can look up, for an incoming event, which window(s) to feed it to
// under their window IRI (spec §4.8's "same rules as §4.6" graph
// override).
func (w *Worker) streamIndex() map[string][]janusql.Window {
	idx := make(map[string][]janusql.Window, len(w.LiveWindows))
	for _, win := range w.LiveWindows {
		idx[win.Stream] = append(idx[win.Stream], win)
	}
	return idx
}

// Run registers the engine and streams, then loops feeding events and
// polling for window completions until stop is closed, emitting each
// completed window as a Live QueryResult on out. Run blocks; callers run
// it in its own goroutine. Cancellation unsubscribes from the bus and
// shuts down the engine before returning (spec §4.8).
func (w *Worker) Run(stop <-chan struct{}, out chan<- rsp.QueryResult) error {
	if _, err := w.Engine.Register(w.RSPQLQuery); err != nil {
		return &LiveProcessingError{QueryID: w.QueryID, Err: err}
	}
	defer w.Engine.Shutdown()
	defer w.Source.Unsubscribe()

	idx := w.streamIndex()
	for stream := range idx {
		if err := w.Engine.RegisterStream(stream); err != nil {
			return &LiveProcessingError{QueryID: w.QueryID, Stream: stream, Err: err}
		}
	}

	pollInterval := w.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-w.Source.Events():
			if !ok {
				return nil
			}
			for _, win := range idx[ev.Graph] {
				quad := quadmat.MaterializeOne(ev, win.Name, w.Classifier)
				if err := w.Engine.Feed(win.Stream, quad); err != nil {
					return &LiveProcessingError{QueryID: w.QueryID, Stream: win.Stream, Err: err}
				}
			}
		case <-ticker.C:
			w.drainCompletedWindows(out, stop)
		}
	}
}

// drainCompletedWindows polls until the engine reports no window ready,
// so a burst of several windows closing between two poll ticks is not
// throttled down to one result per tick.
func (w *Worker) drainCompletedWindows(out chan<- rsp.QueryResult, stop <-chan struct{}) {
	for {
		wb, ok, err := w.Engine.Poll()
		if err != nil || !ok {
			return
		}
		result := rsp.QueryResult{
			QueryID:   w.QueryID,
			Timestamp: wb.WindowCloseTS,
			Source:    rsp.Live,
			Bindings:  wb.Bindings,
		}
		select {
		case out <- result:
		case <-stop:
			return
		}
	}
}
