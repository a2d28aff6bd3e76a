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

package rsp

import (
	"sync"

	"github.com/janus-rsp/janus/quadmat"
)

// StaticAdapter is an in-process SparqlAdapter fake: it delegates to Fn,
// or, if Fn is nil, projects every quad's subject/predicate/object into a
// binding row under the variable names "s"/"p"/"o". It is test and demo
// scaffolding (cmd/janusd wires it in) — not a production SPARQL engine, analogous to
// db/queue_test.go's in-memory Queue in the teacher.
type StaticAdapter struct {
	Fn func(sparqlText string, quads []quadmat.Quad) ([]Bindings, error)
}

func (a *StaticAdapter) Execute(sparqlText string, quads []quadmat.Quad) ([]Bindings, error) {
	if a.Fn != nil {
		return a.Fn(sparqlText, quads)
	}
	out := make([]Bindings, 0, len(quads))
	for _, q := range quads {
		out = append(out, Bindings{
			"s": q.Subject.Value(),
			"p": q.Predicate.Value(),
			"o": q.Object.Value(),
		})
	}
	return out, nil
}

// TumblingEngine is an in-process RspEngine fake: it closes a window
// every WindowSize fed quads (or immediately, if WindowSize <= 0), one
// binding row per quad, WindowCloseTS set to the last quad's timestamp.
// Test and demo scaffolding (cmd/janusd wires it in).
type TumblingEngine struct {
	WindowSize int

	mu      sync.Mutex
	streams map[string]bool
	pending []quadmat.Quad
	closed  []WindowBindings
	shut    bool
}

func NewTumblingEngine(windowSize int) *TumblingEngine {
	return &TumblingEngine{WindowSize: windowSize, streams: make(map[string]bool)}
}

func (e *TumblingEngine) Register(queryText string) (string, error) {
	return "handle-1", nil
}

func (e *TumblingEngine) RegisterStream(streamURI string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.streams[streamURI] = true
	return nil
}

func (e *TumblingEngine) Feed(streamURI string, quad quadmat.Quad) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shut {
		return nil
	}
	e.pending = append(e.pending, quad)
	size := e.WindowSize
	if size <= 0 {
		size = 1
	}
	if len(e.pending) >= size {
		e.closeWindowLocked(size)
	}
	return nil
}

func (e *TumblingEngine) closeWindowLocked(size int) {
	batch := e.pending[:size]
	e.pending = append([]quadmat.Quad(nil), e.pending[size:]...)

	bindings := make([]Bindings, 0, len(batch))
	var closeTS uint64
	for _, q := range batch {
		bindings = append(bindings, Bindings{
			"s": q.Subject.Value(),
			"p": q.Predicate.Value(),
			"o": q.Object.Value(),
		})
		if q.Timestamp > closeTS {
			closeTS = q.Timestamp
		}
	}
	e.closed = append(e.closed, WindowBindings{WindowCloseTS: closeTS, Bindings: bindings})
}

func (e *TumblingEngine) Poll() (WindowBindings, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.closed) == 0 {
		return WindowBindings{}, false, nil
	}
	wb := e.closed[0]
	e.closed = e.closed[1:]
	return wb, true, nil
}

func (e *TumblingEngine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shut = true
	return nil
}
