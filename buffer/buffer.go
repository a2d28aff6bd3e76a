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

// Package buffer implements BatchBuffer (spec §4.3): the in-memory,
// ordered staging area of recently-written events that sits in front of
// the segmented store's background flusher.
package buffer

import (
	"sort"
	"sync"

	"github.com/janus-rsp/janus/term"
)

// BatchBuffer is a thread-safe ordered staging area. Writers take the
// exclusive side of the lock; readers (ScanRange, snapshotting for flush)
// take the shared side. No lock is ever held across I/O (spec §5).
type BatchBuffer struct {
	mu     sync.RWMutex
	events []term.Event
	minTS  uint64
	maxTS  uint64
	bytes  int64
	hasAny bool
}

// New returns an empty BatchBuffer.
func New() *BatchBuffer {
	return &BatchBuffer{}
}

// Push appends events to the buffer and updates (min_ts, max_ts). It
// returns the buffer's size (event count) and approximate byte footprint
// after the push, which callers use to decide whether to signal a flush
// (spec §4.4 "size-based flush trigger").
func (b *BatchBuffer) Push(events []term.Event) (size int, bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range events {
		if !b.hasAny || e.Timestamp < b.minTS {
			b.minTS = e.Timestamp
		}
		if !b.hasAny || e.Timestamp > b.maxTS {
			b.maxTS = e.Timestamp
		}
		b.hasAny = true
	}
	b.events = append(b.events, events...)
	b.bytes += int64(len(events)) * term.EventSize
	return len(b.events), b.bytes
}

// Len returns the number of events currently buffered.
func (b *BatchBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Bytes returns the approximate byte footprint of the buffer.
func (b *BatchBuffer) Bytes() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bytes
}

// Range returns the buffer's current (min_ts, max_ts) and whether it is
// non-empty.
func (b *BatchBuffer) Range() (min, max uint64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.minTS, b.maxTS, b.hasAny
}

// DrainSorted produces an ordered copy of the buffer's contents and clears
// the buffer atomically (spec §4.3, invariant 4: "buffer is cleared
// atomically on success" is the caller's responsibility once the drained
// copy has been durably written to a segment — see storage.flusher).
func (b *BatchBuffer) DrainSorted() []term.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]term.Event(nil), b.events...)
	sort.Sort(term.ByOrder(out))
	b.events = nil
	b.bytes = 0
	b.hasAny = false
	b.minTS, b.maxTS = 0, 0
	return out
}

// DrainUpTo sorts the buffer and removes at most n events from the front
// of the sorted order, leaving the remainder (also sorted) buffered. It
// is used when a size threshold is crossed mid-write: only the events
// that pushed the buffer over the threshold are flushed, not whatever a
// concurrent writer has appended since (spec §4.4 "forced flush" trigger,
// spec §8 scenario 3: writing one event past max_batch_events leaves
// exactly one event buffered).
func (b *BatchBuffer) DrainUpTo(n int) []term.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	sort.Sort(term.ByOrder(b.events))
	if n >= len(b.events) {
		out := b.events
		b.events = nil
		b.bytes = 0
		b.hasAny = false
		b.minTS, b.maxTS = 0, 0
		return out
	}
	out := append([]term.Event(nil), b.events[:n]...)
	rest := append([]term.Event(nil), b.events[n:]...)
	b.events = rest
	b.bytes = int64(len(rest)) * term.EventSize
	if len(rest) == 0 {
		b.hasAny = false
		b.minTS, b.maxTS = 0, 0
	} else {
		b.minTS = rest[0].Timestamp
		b.maxTS = rest[0].Timestamp
		for _, e := range rest {
			if e.Timestamp < b.minTS {
				b.minTS = e.Timestamp
			}
			if e.Timestamp > b.maxTS {
				b.maxTS = e.Timestamp
			}
		}
	}
	return out
}

// Restore re-inserts events into the buffer. Used by the flusher to put
// events back after a failed flush (spec §4.4: "re-enqueues events into
// buffer" on I/O failure) without losing whatever concurrent writers
// already pushed in the meantime.
func (b *BatchBuffer) Restore(events []term.Event) {
	b.Push(events)
}

// ScanRange linearly filters the buffer for events whose timestamp falls
// in [a,b]. The buffer is expected to be small (spec §4.3), so a linear
// scan under the read lock is appropriate; the returned slice is a copy.
func (b *BatchBuffer) ScanRange(a, bEnd uint64) []term.Event {
	if a > bEnd {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasAny || b.maxTS < a || b.minTS > bEnd {
		return nil
	}
	var out []term.Event
	for _, e := range b.events {
		if e.Timestamp >= a && e.Timestamp <= bEnd {
			out = append(out, e)
		}
	}
	return out
}
