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

package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/janus-rsp/janus/exec"
	"github.com/janus-rsp/janus/janusql"
	"github.com/janus-rsp/janus/live"
	"github.com/janus-rsp/janus/rsp"
)

// Start spawns one worker per historical window plus, if any live windows
// are present, one LiveWorker, and records their handles under id's entry
// (spec §4.9 "start(id) → Handle"). The returned Handle's Results channel
// is closed once every spawned worker has exited.
func (e *QueryEngine) Start(id string) (*Handle, error) {
	e.mu.Lock()
	ent, ok := e.entries[id]
	if !ok {
		e.mu.Unlock()
		return nil, &RegistryError{ID: id, Reason: "not registered"}
	}
	if ent.status == Running {
		e.mu.Unlock()
		return nil, &exec.ExecutionError{QueryID: id, Err: errors.New("already running")}
	}

	q := ent.query
	ctx, cancel := context.WithCancel(context.Background())
	ent.cancel = cancel
	ent.results = make(chan rsp.QueryResult, e.resultQueueSize())
	ent.status = Running
	ent.executionCount++
	ent.errored = 0
	ent.total = int32(len(q.HistoricalWindows))
	if len(q.LiveWindows) > 0 {
		ent.total++
	}
	stop := ctx.Done()
	results := ent.results
	e.mu.Unlock()

	for i, w := range q.HistoricalWindows {
		ent.wg.Add(1)
		go e.runHistoricalWindow(ent, id, w, q.SPARQLQueries[i], stop)
	}
	if len(q.LiveWindows) > 0 {
		ent.wg.Add(1)
		go e.runLiveWorker(ent, id, q, stop)
	}
	go e.watchCompletion(id, ent)

	return &Handle{ID: id, Results: results}, nil
}

// runHistoricalWindow runs one historical window to completion (fixed) or
// until stop is closed (sliding), forwarding every batch into ent.results
// (spec §4.7, §4.9 step 3). A Fixed failure is logged and counted; it
// does not stop sibling workers (spec §7 "Single historical window
// error").
func (e *QueryEngine) runHistoricalWindow(ent *entry, id string, w janusql.Window, sparqlText string, stop <-chan struct{}) {
	defer ent.wg.Done()
	switch w.Kind {
	case janusql.HistoricalFixed:
		f := exec.Fixed{
			QueryID:    id,
			Window:     w,
			SPARQL:     sparqlText,
			Store:      e.Store,
			Adapter:    e.Adapter,
			Classifier: e.Classifier,
		}
		result, err := f.Run()
		if err != nil {
			atomic.AddInt32(&ent.errored, 1)
			e.logf("query %s window %s: %v", id, w.Name, err)
			return
		}
		select {
		case ent.results <- result:
		case <-stop:
		}
	case janusql.HistoricalSliding:
		s := exec.SlidingHistorical{
			QueryID:    id,
			Window:     w,
			SPARQL:     sparqlText,
			Store:      e.Store,
			Adapter:    e.Adapter,
			Classifier: e.Classifier,
		}
		if err := s.Run(stop, ent.results); err != nil {
			atomic.AddInt32(&ent.errored, 1)
			e.logf("query %s window %s: %v", id, w.Name, err)
		}
	}
}

// runLiveWorker subscribes to the bus, spawns a fresh RspEngine, and runs
// a LiveWorker until stop is closed (spec §4.8, §4.9 step 4).
func (e *QueryEngine) runLiveWorker(ent *entry, id string, q *janusql.Query, stop <-chan struct{}) {
	defer ent.wg.Done()
	sub := e.Store.Subscribe(e.subscriptionQueueSize())
	w := &live.Worker{
		QueryID:     id,
		RSPQLQuery:  q.RSPQLQuery,
		LiveWindows: q.LiveWindows,
		Engine:      e.EngineFactory(),
		Source:      sub,
		Classifier:  e.Classifier,
	}
	if err := w.Run(stop, ent.results); err != nil {
		atomic.AddInt32(&ent.errored, 1)
		e.logf("query %s live worker: %v", id, err)
	}
}

// watchCompletion waits for every worker spawned by Start to exit, closes
// the results channel, and — unless Stop already moved the query to
// Stopped — derives the natural-completion status (spec §7: Failed only
// if every worker errored, Completed otherwise).
func (e *QueryEngine) watchCompletion(id string, ent *entry) {
	ent.wg.Wait()
	close(ent.results)

	e.mu.Lock()
	defer e.mu.Unlock()
	if ent.status != Running {
		return
	}
	if ent.total > 0 && atomic.LoadInt32(&ent.errored) == ent.total {
		ent.status = Failed
	} else {
		ent.status = Completed
	}
}

// Stop cancels id's running execution and joins its workers, bounded by
// StopTimeout (spec §4.9 "stop(id)", spec §5 "hard-abort after timeout").
func (e *QueryEngine) Stop(id string) error {
	e.mu.Lock()
	ent, ok := e.entries[id]
	if !ok {
		e.mu.Unlock()
		return &RegistryError{ID: id, Reason: "not registered"}
	}
	if ent.status != Running {
		e.mu.Unlock()
		return &RegistryError{ID: id, Reason: "not running"}
	}
	ent.status = Stopped
	cancel := ent.cancel
	e.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		ent.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.stopTimeout()):
		e.logf("query %s: workers did not join within stop timeout", id)
	}
	return nil
}
