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
	"errors"
	"testing"
	"time"

	"github.com/janus-rsp/janus/janusql"
	"github.com/janus-rsp/janus/rsp"
	"github.com/janus-rsp/janus/term"
)

// fakeStore is an in-memory EventReader fake: a fixed set of events
// filtered by range, no flushing/segments involved. Mirrors the
// "db/queue_test.go in-memory Queue" style of fake used elsewhere. A
// non-nil readErr makes every ReadRange call fail, for exercising the
// sliding executor's error path.
type fakeStore struct {
	events  []term.RDFEvent
	readErr error
}

func (f *fakeStore) ReadRange(a, b uint64) ([]term.RDFEvent, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []term.RDFEvent
	for _, e := range f.events {
		if e.Timestamp >= a && e.Timestamp <= b {
			out = append(out, e)
		}
	}
	return out, nil
}

func quadEvent(ts uint64, object string) term.RDFEvent {
	return term.RDFEvent{
		Timestamp: ts,
		Subject:   term.NewIRI("http://s"),
		Predicate: term.NewIRI("http://p"),
		Object:    term.NewLiteral(object),
		Graph:     term.DefaultGraph,
	}
}

func TestFixedRunEmitsOneBatch(t *testing.T) {
	store := &fakeStore{events: []term.RDFEvent{quadEvent(1000, "23.5")}}
	f := Fixed{
		QueryID: "q1",
		Window:  janusql.Window{Name: "http://w", Kind: janusql.HistoricalFixed, StartTS: 500, EndTS: 1500},
		SPARQL:  "SELECT ?s ?v WHERE { GRAPH <http://w> { ?s <http://p> ?v } }",
		Store:   store,
		Adapter: &rsp.StaticAdapter{},
	}
	result, err := f.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Source != rsp.Historical {
		t.Fatalf("Source = %v, want Historical", result.Source)
	}
	if result.Timestamp != 1500 {
		t.Fatalf("Timestamp = %d, want 1500 (window end)", result.Timestamp)
	}
	if len(result.Bindings) != 1 || result.Bindings[0]["s"] != "http://s" {
		t.Fatalf("Bindings = %v", result.Bindings)
	}
}

func TestFixedRunEmptyRangeProducesEmptyBindings(t *testing.T) {
	store := &fakeStore{events: nil}
	f := Fixed{
		Window:  janusql.Window{Name: "http://w", StartTS: 0, EndTS: 100},
		SPARQL:  "SELECT ?s",
		Store:   store,
		Adapter: &rsp.StaticAdapter{},
	}
	result, err := f.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Bindings) != 0 {
		t.Fatalf("Bindings = %v, want empty", result.Bindings)
	}
}

// TestSlidingProducesSpecExampleWindows reproduces spec scenario 4
// verbatim: stored events at ts=10,20,30,40,50, OFFSET 0 RANGE 20 STEP
// 10, anchored at wall-clock 50. The first three batches must cover
// [30,50], [40,60], [50,70] containing {30,40,50}, {40,50}, {50}.
func TestSlidingProducesSpecExampleWindows(t *testing.T) {
	store := &fakeStore{events: []term.RDFEvent{
		quadEvent(10, "a"), quadEvent(20, "b"), quadEvent(30, "c"),
		quadEvent(40, "d"), quadEvent(50, "e"),
	}}
	s := SlidingHistorical{
		QueryID: "q1",
		Window:  janusql.Window{Name: "http://w", Kind: janusql.HistoricalSliding, OffsetMS: 0, RangeMS: 20, StepMS: 10},
		SPARQL:  "SELECT ?s",
		Store:   store,
		Adapter: &rsp.StaticAdapter{},
		Now:     func() uint64 { return 50 },
	}
	stop := make(chan struct{})
	out := make(chan rsp.QueryResult, 8)
	go s.Run(stop, out)
	defer close(stop)

	wantTS := []uint64{50, 60, 70}
	wantCounts := []int{3, 2, 1}
	for i := 0; i < 3; i++ {
		select {
		case r := <-out:
			if r.Timestamp != wantTS[i] {
				t.Fatalf("batch %d: Timestamp = %d, want %d", i, r.Timestamp, wantTS[i])
			}
			if len(r.Bindings) != wantCounts[i] {
				t.Fatalf("batch %d: got %d bindings, want %d", i, len(r.Bindings), wantCounts[i])
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for batch %d", i)
		}
	}
}

func TestSlidingStopsWithinBoundedBatches(t *testing.T) {
	store := &fakeStore{}
	s := SlidingHistorical{
		Window:  janusql.Window{Name: "http://w", Kind: janusql.HistoricalSliding, OffsetMS: 0, RangeMS: 10, StepMS: 10},
		SPARQL:  "SELECT ?s",
		Store:   store,
		Adapter: &rsp.StaticAdapter{},
		Now:     func() uint64 { return 1000 },
	}
	stop := make(chan struct{})
	out := make(chan rsp.QueryResult, 32)
	done := make(chan struct{})
	go func() {
		s.Run(stop, out)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Run did not return within 200ms of stop")
	}
	if len(out) > 7 {
		t.Fatalf("got %d batches, want no more than ~7", len(out))
	}
}

// TestSlidingRunReturnsExecutionErrorOnReadFailure covers spec §7's
// "offending worker logs, emits nothing further, exits": a ReadRange
// failure must stop Run immediately with an *ExecutionError, not retry
// forever.
func TestSlidingRunReturnsExecutionErrorOnReadFailure(t *testing.T) {
	store := &fakeStore{readErr: errors.New("disk gone")}
	s := SlidingHistorical{
		QueryID: "q1",
		Window:  janusql.Window{Name: "http://w", Kind: janusql.HistoricalSliding, OffsetMS: 0, RangeMS: 10, StepMS: 10},
		SPARQL:  "SELECT ?s",
		Store:   store,
		Adapter: &rsp.StaticAdapter{},
		Now:     func() uint64 { return 1000 },
	}
	stop := make(chan struct{})
	defer close(stop)
	out := make(chan rsp.QueryResult, 1)

	err := s.Run(stop, out)
	if err == nil {
		t.Fatal("Run with a failing store returned nil error, want *ExecutionError")
	}
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Run error %v does not unwrap to a *ExecutionError", err)
	}
	if len(out) != 0 {
		t.Fatalf("got %d batches after a read failure, want 0", len(out))
	}
}
