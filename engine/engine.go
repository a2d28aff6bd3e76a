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
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/janus-rsp/janus/bus"
	"github.com/janus-rsp/janus/exec"
	"github.com/janus-rsp/janus/janusql"
	"github.com/janus-rsp/janus/quadmat"
	"github.com/janus-rsp/janus/rsp"
)

// DefaultResultQueueSize bounds the per-query multiplexed receiver (spec
// §4.9 "bounded result channel"); a slow consumer applies backpressure to
// workers rather than letting the engine buffer without limit.
const DefaultResultQueueSize = 64

// DefaultSubscriptionQueueSize is the EventBus queue size a live worker's
// subscription is opened with.
const DefaultSubscriptionQueueSize = 256

// DefaultStopTimeout bounds how long Stop waits for workers to join
// before giving up (spec §5 "hard-abort after timeout").
const DefaultStopTimeout = 5 * time.Second

// Store is the slice of storage.SegmentedStore the engine needs: reading
// historical ranges and subscribing to live deliveries.
type Store interface {
	exec.EventReader
	Subscribe(queueSize int) *bus.Subscription
}

// QueryEngine is the Coordinator (spec §4.9): a registry of parsed
// queries and, for the ones currently running, their worker handles.
// Both maps spec §4.9 describes are folded into one map of *entry here,
// guarded by a single mutex (spec §5: "Registry / Running maps: each a
// mutex; held only for map mutations, never across thread joins").
type QueryEngine struct {
	Store         Store
	Adapter       rsp.SparqlAdapter
	EngineFactory func() rsp.RspEngine // constructs a fresh RspEngine per query execution's LiveWorker
	Classifier    quadmat.TermClassifier
	Logger        *log.Logger

	ResultQueueSize       int
	SubscriptionQueueSize int
	StopTimeout           time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	nextSeq int
}

// New constructs a QueryEngine backed by store, adapter, and engine
// factory. Callers fill in defaults via the exported fields before first
// use if the zero values don't suit them.
func New(store Store, adapter rsp.SparqlAdapter, engineFactory func() rsp.RspEngine) *QueryEngine {
	return &QueryEngine{
		Store:         store,
		Adapter:       adapter,
		EngineFactory: engineFactory,
		Logger:        log.Default(),
		entries:       make(map[string]*entry),
	}
}

func (e *QueryEngine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

func (e *QueryEngine) resultQueueSize() int {
	if e.ResultQueueSize > 0 {
		return e.ResultQueueSize
	}
	return DefaultResultQueueSize
}

func (e *QueryEngine) subscriptionQueueSize() int {
	if e.SubscriptionQueueSize > 0 {
		return e.SubscriptionQueueSize
	}
	return DefaultSubscriptionQueueSize
}

func (e *QueryEngine) stopTimeout() time.Duration {
	if e.StopTimeout > 0 {
		return e.StopTimeout
	}
	return DefaultStopTimeout
}

// Register parses text and stores it under id (spec §4.9 "register(id,
// text)"). A parse error is not stored — per the state machine diagram
// it is reported to the caller as Failed without ever occupying the
// registry. Re-registering an id already present is rejected.
func (e *QueryEngine) Register(id, text string) (RegistryEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.entries[id]; exists {
		return RegistryEntry{}, &RegistryError{ID: id, Reason: "already registered"}
	}

	q, err := janusql.Parse(text)
	if err != nil {
		return RegistryEntry{}, fmt.Errorf("engine: query %s: %w", id, err)
	}

	ent := &entry{
		query:        q,
		seq:          e.nextSeq,
		registeredAt: now(),
		status:       Registered,
	}
	e.nextSeq++
	e.entries[id] = ent
	return ent.snapshot(id), nil
}

// Status returns id's current state (spec §4.9 "status(id)").
func (e *QueryEngine) Status(id string) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	if !ok {
		return 0, &RegistryError{ID: id, Reason: "not registered"}
	}
	return ent.status, nil
}

// List returns a snapshot of every registered query (SPEC_FULL.md NEW
// 4.9), ordered by registration time.
func (e *QueryEngine) List() []RegistryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	type row struct {
		seq   int
		entry RegistryEntry
	}
	rows := make([]row, 0, len(e.entries))
	for id, ent := range e.entries {
		rows = append(rows, row{seq: ent.seq, entry: ent.snapshot(id)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]RegistryEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry
	}
	return out
}

// Unregister removes a Stopped/Completed/Failed entry (SPEC_FULL.md NEW
// 4.9); it fails if id does not exist or is currently Running.
func (e *QueryEngine) Unregister(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	if !ok {
		return &RegistryError{ID: id, Reason: "not registered"}
	}
	if ent.status == Running {
		return &RegistryError{ID: id, Reason: "cannot unregister a running query"}
	}
	delete(e.entries, id)
	return nil
}

func (ent *entry) snapshot(id string) RegistryEntry {
	return RegistryEntry{
		ID:             id,
		RegisteredAt:   ent.registeredAt,
		ExecutionCount: ent.executionCount,
		Status:         ent.status,
	}
}

// now is the source of RegistryEntry.RegisteredAt, held in a var so it can
// be replaced. List() orders by insertion sequence, not by this value.
var now = time.Now
