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

package segment

import (
	"encoding/binary"

	"github.com/janus-rsp/janus/term"
)

// recordSize is the on-disk width of a single Event record (spec §6.1):
// [u32 s][u32 p][u32 o][u32 g][u64 ts], little-endian.
const recordSize = term.EventSize

// indexBlockSize is the on-disk width of a single IndexBlock record
// (spec §6.1): [u64 min_ts][u64 max_ts][u64 first_offset][u32 record_count].
const indexBlockSize = 8 + 8 + 8 + 4

// putEvent encodes e into buf[:recordSize] in the documented layout.
func putEvent(buf []byte, e term.Event) {
	binary.LittleEndian.PutUint32(buf[0:4], e.Subject)
	binary.LittleEndian.PutUint32(buf[4:8], e.Predicate)
	binary.LittleEndian.PutUint32(buf[8:12], e.Object)
	binary.LittleEndian.PutUint32(buf[12:16], e.Graph)
	binary.LittleEndian.PutUint64(buf[16:24], e.Timestamp)
}

// getEvent decodes an Event from buf[:recordSize].
func getEvent(buf []byte) term.Event {
	return term.Event{
		Subject:   binary.LittleEndian.Uint32(buf[0:4]),
		Predicate: binary.LittleEndian.Uint32(buf[4:8]),
		Object:    binary.LittleEndian.Uint32(buf[8:12]),
		Graph:     binary.LittleEndian.Uint32(buf[12:16]),
		Timestamp: binary.LittleEndian.Uint64(buf[16:24]),
	}
}

// IndexBlock describes one sparse-index stride within a segment (spec §3).
type IndexBlock struct {
	MinTS             uint64
	MaxTS             uint64
	FirstRecordOffset uint64 // byte offset into the decoded record stream (after the header byte)
	RecordCount       uint32
}

func putIndexBlock(buf []byte, b IndexBlock) {
	binary.LittleEndian.PutUint64(buf[0:8], b.MinTS)
	binary.LittleEndian.PutUint64(buf[8:16], b.MaxTS)
	binary.LittleEndian.PutUint64(buf[16:24], b.FirstRecordOffset)
	binary.LittleEndian.PutUint32(buf[24:28], b.RecordCount)
}

func getIndexBlock(buf []byte) IndexBlock {
	return IndexBlock{
		MinTS:             binary.LittleEndian.Uint64(buf[0:8]),
		MaxTS:             binary.LittleEndian.Uint64(buf[8:16]),
		FirstRecordOffset: binary.LittleEndian.Uint64(buf[16:24]),
		RecordCount:       binary.LittleEndian.Uint32(buf[24:28]),
	}
}
