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

package term

// EventSize is the fixed on-disk and in-memory size of an Event, in bytes:
// four dictionary ids (4 bytes each) plus a millisecond timestamp (8
// bytes). This is the record width referenced throughout segment.
const EventSize = 4 + 4 + 4 + 4 + 8

// Event is the internal, dictionary-encoded, fixed-width representation of
// an RDFEvent: (subject_id, predicate_id, object_id, graph_id, timestamp).
// Event is the unit stored in a BatchBuffer and packed into Segment data
// files.
type Event struct {
	Subject   uint32
	Predicate uint32
	Object    uint32
	Graph     uint32
	Timestamp uint64
}

// Less implements the total order from spec §3:
// (timestamp ASC, then subject_id, predicate_id, object_id, graph_id).
func (e Event) Less(o Event) bool {
	if e.Timestamp != o.Timestamp {
		return e.Timestamp < o.Timestamp
	}
	if e.Subject != o.Subject {
		return e.Subject < o.Subject
	}
	if e.Predicate != o.Predicate {
		return e.Predicate < o.Predicate
	}
	if e.Object != o.Object {
		return e.Object < o.Object
	}
	return e.Graph < o.Graph
}

// Compare returns -1, 0, or 1 as e is less than, equal to, or greater than
// o under the total order.
func (e Event) Compare(o Event) int {
	switch {
	case e.Less(o):
		return -1
	case o.Less(e):
		return 1
	default:
		return 0
	}
}

// ByOrder sorts a slice of Event in the total order required by spec
// invariant 2 (segment records must be sorted).
type ByOrder []Event

func (b ByOrder) Len() int           { return len(b) }
func (b ByOrder) Less(i, j int) bool { return b[i].Less(b[j]) }
func (b ByOrder) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
