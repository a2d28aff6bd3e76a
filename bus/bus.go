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

// Package bus implements EventBus (spec §4.10): a fan-out of freshly
// written events to zero or more live subscribers, with bounded,
// drop-oldest-on-full per-subscriber queues.
package bus

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dchest/siphash"
	"github.com/google/uuid"

	"github.com/janus-rsp/janus/term"
)

// DefaultQueueSize is the default bound on a subscriber's pending-event
// queue before the bus starts dropping the oldest pending message.
const DefaultQueueSize = 1024

// shardKey0/shardKey1 seed the siphash used to assign a subscription to a
// shard. They need not be secret; they only need to be stable so the same
// subscription id always lands on the same shard (mirrors splitter.go's
// siphash-keyed deterministic peer selection in the teacher).
const shardKey0, shardKey1 = 0x5a6e7573, 0x62757321 // "Janus" / "bus!" ASCII-derived

// EventBus fans freshly written events out to live subscribers. Publishers
// never block on a slow subscriber: each subscriber has its own bounded
// queue, and a full queue causes the oldest pending event for that
// subscriber to be dropped (spec §4.10).
type EventBus struct {
	shards []*shard
}

type shard struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

// New constructs an EventBus sharded across runtime.NumCPU() independent
// lock domains, so Publish's fan-out loop does not serialize on one global
// mutex as subscriber count grows (SPEC_FULL.md §2: siphash-sharded
// dispatch).
func New() *EventBus {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	b := &EventBus{shards: make([]*shard, n)}
	for i := range b.shards {
		b.shards[i] = &shard{subs: make(map[uuid.UUID]*Subscription)}
	}
	return b
}

func (b *EventBus) shardFor(id uuid.UUID) *shard {
	h := siphash.Hash(shardKey0, shardKey1, id[:])
	return b.shards[h%uint64(len(b.shards))]
}

// Subscription is a live subscriber's handle on the bus. Reads come from
// Events(); Unsubscribe stops further deliveries and releases the queue.
type Subscription struct {
	id        uuid.UUID
	bus       *EventBus
	ch        chan term.RDFEvent
	delivered atomic.Uint64
	dropped   atomic.Uint64
	refs      atomic.Int32
	closed    atomic.Bool
}

// ID returns the subscription's handle id.
func (s *Subscription) ID() uuid.UUID { return s.id }

// Events returns the channel of delivered events. The channel is closed
// when Unsubscribe has been called by every reference holder.
func (s *Subscription) Events() <-chan term.RDFEvent { return s.ch }

// Stats reports how many events were delivered to, and dropped for, this
// subscription (the "metrics/log surface" spec §7 requires for fan-out
// drops).
func (s *Subscription) Stats() (delivered, dropped uint64) {
	return s.delivered.Load(), s.dropped.Load()
}

// Retain adds a reference to the subscription handle; Unsubscribe must be
// called an equal number of times before the underlying queue is released
// (spec §4.10: "handles are reference-counted").
func (s *Subscription) Retain() *Subscription {
	s.refs.Add(1)
	return s
}

// Unsubscribe releases one reference. When the last reference is released,
// the subscription is removed from the bus and its channel is closed.
func (s *Subscription) Unsubscribe() {
	if s.refs.Add(-1) > 0 {
		return
	}
	if s.closed.CompareAndSwap(false, true) {
		sh := s.bus.shardFor(s.id)
		sh.mu.Lock()
		delete(sh.subs, s.id)
		sh.mu.Unlock()
		close(s.ch)
	}
}

// Subscribe registers a new subscriber with a bounded queue of the given
// size (DefaultQueueSize if size <= 0) and returns a handle with one
// reference already held.
func (b *EventBus) Subscribe(size int) *Subscription {
	if size <= 0 {
		size = DefaultQueueSize
	}
	s := &Subscription{
		id:  uuid.New(),
		bus: b,
		ch:  make(chan term.RDFEvent, size),
	}
	s.refs.Store(1)
	sh := b.shardFor(s.id)
	sh.mu.Lock()
	sh.subs[s.id] = s
	sh.mu.Unlock()
	return s
}

// Publish fans ev out to every live subscriber. A subscriber whose queue
// is full has its oldest pending message dropped to make room — Publish
// itself never blocks (spec §4.10 and §4.4 "emit each event on the
// EventBus before returning").
func (b *EventBus) Publish(ev term.RDFEvent) {
	for _, sh := range b.shards {
		sh.mu.RLock()
		for _, s := range sh.subs {
			deliver(s, ev)
		}
		sh.mu.RUnlock()
	}
}

func deliver(s *Subscription, ev term.RDFEvent) {
	select {
	case s.ch <- ev:
		s.delivered.Add(1)
		return
	default:
	}
	// Queue full: drop the oldest pending message and retry once.
	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
		// Raced with a consumer draining the channel; fall through to retry.
	}
	select {
	case s.ch <- ev:
		s.delivered.Add(1)
	default:
		// Another producer refilled it between our drain and our send;
		// give up on this event for this subscriber rather than spin.
		s.dropped.Add(1)
	}
}

// SubscriberCount returns the number of live subscriptions, for tests and
// diagnostics.
func (b *EventBus) SubscriberCount() int {
	n := 0
	for _, sh := range b.shards {
		sh.mu.RLock()
		n += len(sh.subs)
		sh.mu.RUnlock()
	}
	return n
}
