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

package live

import (
	"errors"
	"testing"
	"time"

	"github.com/janus-rsp/janus/janusql"
	"github.com/janus-rsp/janus/quadmat"
	"github.com/janus-rsp/janus/rsp"
	"github.com/janus-rsp/janus/term"
)

// chanSource is an EventSource fake backed by a plain channel.
type chanSource struct {
	ch           chan term.RDFEvent
	unsubscribed bool
}

func (c *chanSource) Events() <-chan term.RDFEvent { return c.ch }
func (c *chanSource) Unsubscribe()                 { c.unsubscribed = true }

// failingFeedEngine is an RspEngine fake whose Feed always errors, for
// exercising Run's LiveProcessingError path.
type failingFeedEngine struct {
	feedErr error
}

func (e *failingFeedEngine) Register(queryText string) (string, error) { return "handle-1", nil }
func (e *failingFeedEngine) RegisterStream(streamURI string) error     { return nil }
func (e *failingFeedEngine) Feed(streamURI string, quad quadmat.Quad) error {
	return e.feedErr
}
func (e *failingFeedEngine) Poll() (rsp.WindowBindings, bool, error) { return rsp.WindowBindings{}, false, nil }
func (e *failingFeedEngine) Shutdown() error                         { return nil }

func TestWorkerFeedsMatchingStreamEvents(t *testing.T) {
	src := &chanSource{ch: make(chan term.RDFEvent, 4)}
	engine := rsp.NewTumblingEngine(1)
	w := &Worker{
		QueryID:      "q1",
		RSPQLQuery:   "SELECT ?s",
		LiveWindows:  []janusql.Window{{Name: "http://w", Stream: "http://s1", Kind: janusql.Live, RangeMS: 1000, StepMS: 500}},
		Engine:       engine,
		Source:       src,
		PollInterval: 5 * time.Millisecond,
	}
	stop := make(chan struct{})
	out := make(chan rsp.QueryResult, 4)
	done := make(chan struct{})
	go func() {
		w.Run(stop, out)
		close(done)
	}()

	src.ch <- term.RDFEvent{
		Timestamp: 42,
		Subject:   term.NewIRI("http://s"),
		Predicate: term.NewIRI("http://p"),
		Object:    term.NewLiteral("v"),
		Graph:     "http://s1",
	}

	select {
	case r := <-out:
		if r.Source != rsp.Live {
			t.Fatalf("Source = %v, want Live", r.Source)
		}
		if r.Timestamp != 42 {
			t.Fatalf("Timestamp = %d, want 42", r.Timestamp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live QueryResult")
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop")
	}
	if !src.unsubscribed {
		t.Fatal("Run did not unsubscribe on exit")
	}
}

func TestWorkerIgnoresNonMatchingStreamEvents(t *testing.T) {
	src := &chanSource{ch: make(chan term.RDFEvent, 4)}
	engine := rsp.NewTumblingEngine(1)
	w := &Worker{
		RSPQLQuery:   "SELECT ?s",
		LiveWindows:  []janusql.Window{{Name: "http://w", Stream: "http://s1", Kind: janusql.Live, RangeMS: 1000, StepMS: 500}},
		Engine:       engine,
		Source:       src,
		PollInterval: 5 * time.Millisecond,
	}
	stop := make(chan struct{})
	out := make(chan rsp.QueryResult, 4)
	go w.Run(stop, out)
	defer close(stop)

	src.ch <- term.RDFEvent{Timestamp: 1, Graph: "http://other-stream"}

	select {
	case r := <-out:
		t.Fatalf("unexpected QueryResult for non-matching stream event: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWorkerExitsOnSourceClose(t *testing.T) {
	src := &chanSource{ch: make(chan term.RDFEvent)}
	close(src.ch)
	engine := rsp.NewTumblingEngine(1)
	w := &Worker{
		RSPQLQuery: "SELECT ?s",
		Engine:     engine,
		Source:     src,
	}
	stop := make(chan struct{})
	out := make(chan rsp.QueryResult, 1)
	done := make(chan struct{})
	go func() {
		w.Run(stop, out)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after source channel closed")
	}
}

func TestWorkerReturnsLiveProcessingErrorOnFeedFailure(t *testing.T) {
	src := &chanSource{ch: make(chan term.RDFEvent, 1)}
	engine := &failingFeedEngine{feedErr: errors.New("engine rejected quad")}
	w := &Worker{
		QueryID:     "q1",
		RSPQLQuery:  "SELECT ?s",
		LiveWindows: []janusql.Window{{Name: "http://w", Stream: "http://s1", Kind: janusql.Live, RangeMS: 1000, StepMS: 500}},
		Engine:      engine,
		Source:      src,
	}
	stop := make(chan struct{})
	defer close(stop)
	out := make(chan rsp.QueryResult, 1)

	src.ch <- term.RDFEvent{
		Timestamp: 1,
		Subject:   term.NewIRI("http://s"),
		Predicate: term.NewIRI("http://p"),
		Object:    term.NewLiteral("v"),
		Graph:     "http://s1",
	}

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(stop, out) }()

	select {
	case err := <-errCh:
		var liveErr *LiveProcessingError
		if !errors.As(err, &liveErr) {
			t.Fatalf("Run error %v does not unwrap to a *LiveProcessingError", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after a Feed failure")
	}
}
