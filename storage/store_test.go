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

package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/janus-rsp/janus/term"
)

func quad(ts uint64) term.RDFEvent {
	return term.RDFEvent{
		Timestamp: ts,
		Subject:   term.NewIRI("http://s"),
		Predicate: term.NewIRI("http://p"),
		Object:    term.NewLiteral("23.5"),
		Graph:     term.DefaultGraph,
	}
}

func openStore(t *testing.T, cfg Config) *SegmentedStore {
	t.Helper()
	cfg.StorageDir = t.TempDir()
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteThenReadRangeBeforeFlush(t *testing.T) {
	s := openStore(t, Config{FlushIntervalMS: 60_000})
	if err := s.Write([]term.RDFEvent{quad(1000)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.ReadRange(500, 1500)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 1 || got[0].Timestamp != 1000 {
		t.Fatalf("got %v, want one event at ts=1000", got)
	}
}

func TestRangePruning(t *testing.T) {
	s := openStore(t, Config{FlushIntervalMS: 60_000})
	if err := s.Write([]term.RDFEvent{quad(100), quad(200), quad(300)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.ReadRange(150, 250)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 1 || got[0].Timestamp != 200 {
		t.Fatalf("got %v, want exactly the ts=200 event", got)
	}
}

func TestEmptyBufferFlushCreatesNoSegment(t *testing.T) {
	s := openStore(t, Config{FlushIntervalMS: 20})
	time.Sleep(150 * time.Millisecond)
	s.dirMu.RLock()
	n := len(s.dir)
	s.dirMu.RUnlock()
	if n != 0 {
		t.Fatalf("flushing an empty buffer created %d segments, want 0", n)
	}
}

func TestForcedFlushBySize(t *testing.T) {
	s := openStore(t, Config{FlushIntervalMS: 60_000, MaxBatchEvents: 3, SparseStride: 2})
	if err := s.Write([]term.RDFEvent{quad(1), quad(2), quad(3)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.dirMu.RLock()
		n := len(s.dir)
		s.dirMu.RUnlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.dirMu.RLock()
	n := len(s.dir)
	s.dirMu.RUnlock()
	if n != 1 {
		t.Fatalf("expected exactly one flushed segment, got %d", n)
	}
	if s.buf.Len() != 0 {
		t.Fatalf("buffer not drained after forced flush: len=%d", s.buf.Len())
	}
	got, err := s.ReadRange(0, 10)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadRange after flush returned %d events, want 3", len(got))
	}
}

func TestRangeSpanningBufferAndSegment(t *testing.T) {
	s := openStore(t, Config{FlushIntervalMS: 60_000})
	if err := s.Write([]term.RDFEvent{quad(100), quad(200)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.tryFlush() // force a flush synchronously for the test
	if err := s.Write([]term.RDFEvent{quad(300), quad(400)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.ReadRange(0, 1000)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d events spanning buffer+segment, want 4", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp < got[i-1].Timestamp {
			t.Fatalf("merged results not sorted: %v", got)
		}
	}
}

func TestAGreaterThanBReturnsEmpty(t *testing.T) {
	s := openStore(t, Config{FlushIntervalMS: 60_000})
	if err := s.Write([]term.RDFEvent{quad(100)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.ReadRange(500, 100)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ReadRange(a>b) = %v, want empty", got)
	}
}

func TestReopenAfterFlushRoundTrips(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	cfg := Config{StorageDir: dir, FlushIntervalMS: 60_000}
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Write([]term.RDFEvent{quad(10), quad(20), quad(30)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.tryFlush()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.ReadRange(0, 1000)
	if err != nil {
		t.Fatalf("ReadRange after reopen: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events after reopen, want 3", len(got))
	}
}

func TestClearResetsEverything(t *testing.T) {
	s := openStore(t, Config{FlushIntervalMS: 60_000})
	if err := s.Write([]term.RDFEvent{quad(1)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.tryFlush()
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := s.ReadRange(0, 1000)
	if err != nil {
		t.Fatalf("ReadRange after Clear: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v after Clear, want empty", got)
	}
}

// TestFlushCorrectnessAtScale is a scaled-down version of spec scenario 3
// (1,000,001 events / max_batch_events=1,000,000): the shape of the
// invariant — exactly one segment holding MaxBatchEvents records, one left
// over in the buffer, all of it readable back in sorted order — does not
// depend on the literal magnitude, so this runs it at 1,001/1,000 events
// to keep the test fast while still exercising the forced-flush boundary.
func TestFlushCorrectnessAtScale(t *testing.T) {
	const n = 1001
	const maxBatch = 1000
	s := openStore(t, Config{FlushIntervalMS: 60_000, MaxBatchEvents: maxBatch, SparseStride: 100})
	events := make([]term.RDFEvent, n)
	for i := 0; i < n; i++ {
		events[i] = quad(uint64(i + 1))
	}
	if err := s.Write(events); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && s.buf.Len() != 1 {
		time.Sleep(10 * time.Millisecond)
	}

	s.dirMu.RLock()
	segCount := len(s.dir)
	var segRecords int
	for _, seg := range s.dir {
		segRecords += seg.Descriptor().Records
	}
	s.dirMu.RUnlock()

	if segCount != 1 {
		t.Fatalf("segment count = %d, want 1", segCount)
	}
	if segRecords != maxBatch {
		t.Fatalf("segment holds %d records, want %d", segRecords, maxBatch)
	}
	if s.buf.Len() != n-maxBatch {
		t.Fatalf("buffer holds %d events, want %d", s.buf.Len(), n-maxBatch)
	}

	got, err := s.ReadRange(0, uint64(n+1))
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(got) != n {
		t.Fatalf("ReadRange returned %d events, want %d", len(got), n)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp < got[i-1].Timestamp {
			t.Fatalf("results not sorted at index %d", i)
		}
	}
}

func TestWritePublishesToSubscribers(t *testing.T) {
	s := openStore(t, Config{FlushIntervalMS: 60_000})
	sub := s.Subscribe(4)
	defer sub.Unsubscribe()

	if err := s.Write([]term.RDFEvent{quad(42)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case ev := <-sub.Events():
		if ev.Timestamp != 42 {
			t.Fatalf("got ts %d, want 42", ev.Timestamp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EventBus delivery from Write")
	}
}

func TestWriteAndReadRangeFailAfterClose(t *testing.T) {
	s := openStore(t, Config{FlushIntervalMS: 60_000})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := s.Write([]term.RDFEvent{quad(1)}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write after Close = %v, want an error wrapping ErrClosed", err)
	}
	if _, err := s.ReadRange(0, 1000); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReadRange after Close = %v, want an error wrapping ErrClosed", err)
	}
}
