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

package buffer

import (
	"testing"

	"github.com/janus-rsp/janus/term"
)

func ev(ts uint64) term.Event { return term.Event{Timestamp: ts} }

func TestPushUpdatesRange(t *testing.T) {
	b := New()
	b.Push([]term.Event{ev(300), ev(100), ev(200)})
	min, max, ok := b.Range()
	if !ok || min != 100 || max != 300 {
		t.Fatalf("Range() = (%d,%d,%v), want (100,300,true)", min, max, ok)
	}
}

func TestDrainSortedClearsAndSorts(t *testing.T) {
	b := New()
	b.Push([]term.Event{ev(300), ev(100), ev(200)})
	drained := b.DrainSorted()
	if len(drained) != 3 {
		t.Fatalf("drained %d events, want 3", len(drained))
	}
	for i := 1; i < len(drained); i++ {
		if drained[i].Timestamp < drained[i-1].Timestamp {
			t.Fatalf("drained events not sorted: %v", drained)
		}
	}
	if b.Len() != 0 {
		t.Fatalf("buffer not empty after drain: len=%d", b.Len())
	}
	_, _, ok := b.Range()
	if ok {
		t.Fatal("Range() still reports data present after drain")
	}
}

func TestScanRangeFiltersAndHandlesEmptyRange(t *testing.T) {
	b := New()
	b.Push([]term.Event{ev(100), ev(200), ev(300)})
	got := b.ScanRange(150, 250)
	if len(got) != 1 || got[0].Timestamp != 200 {
		t.Fatalf("ScanRange(150,250) = %v, want [200]", got)
	}
	if got := b.ScanRange(300, 100); got != nil {
		t.Fatalf("ScanRange with a>b returned %v, want nil", got)
	}
	if got := NewEmptyScan(); got != nil {
		t.Fatalf("sanity: %v", got)
	}
}

// NewEmptyScan exercises ScanRange against a buffer that has never been
// pushed to, which must not panic or return spurious data.
func NewEmptyScan() []term.Event {
	b := New()
	return b.ScanRange(0, 1000)
}

func TestRestoreAfterFailedFlush(t *testing.T) {
	b := New()
	drained := []term.Event{ev(1), ev(2)}
	b.Restore(drained)
	if b.Len() != 2 {
		t.Fatalf("Len() = %d after Restore, want 2", b.Len())
	}
}

func TestDrainUpToTakesFrontOfSortedOrderAndKeepsRest(t *testing.T) {
	b := New()
	b.Push([]term.Event{ev(400), ev(100), ev(300), ev(200)})
	drained := b.DrainUpTo(2)
	if len(drained) != 2 || drained[0].Timestamp != 100 || drained[1].Timestamp != 200 {
		t.Fatalf("DrainUpTo(2) = %v, want [100,200]", drained)
	}
	if b.Len() != 2 {
		t.Fatalf("buffer holds %d events after DrainUpTo, want 2", b.Len())
	}
	min, max, ok := b.Range()
	if !ok || min != 300 || max != 400 {
		t.Fatalf("Range() after DrainUpTo = (%d,%d,%v), want (300,400,true)", min, max, ok)
	}
}

func TestDrainUpToNGreaterThanLenDrainsEverything(t *testing.T) {
	b := New()
	b.Push([]term.Event{ev(10), ev(20)})
	drained := b.DrainUpTo(10)
	if len(drained) != 2 {
		t.Fatalf("DrainUpTo(10) on a 2-event buffer = %d events, want 2", len(drained))
	}
	if b.Len() != 0 {
		t.Fatalf("buffer not empty after over-sized DrainUpTo: len=%d", b.Len())
	}
	if _, _, ok := b.Range(); ok {
		t.Fatal("Range() still reports data present after draining everything")
	}
}
