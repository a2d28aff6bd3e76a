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

// Package segment implements the immutable (.data, .idx, .sum) file set
// described in spec §4.2: fixed-width Event records, a sparse in-memory +
// on-disk index, and a binary-search-then-scan range reader.
package segment

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/janus-rsp/janus/internal/mmapfile"
	"github.com/janus-rsp/janus/term"
)

// Descriptor is the in-memory directory entry for a segment: exactly the
// (segment_id, min_ts, max_ts, block_count) tuple from spec §4.2, plus the
// bookkeeping Storage needs to reopen the files.
type Descriptor struct {
	ID         int
	MinTS      uint64
	MaxTS      uint64
	BlockCount int
	Records    int
	DataPath   string
	IndexPath  string
	SumPath    string
}

// Segment is an open, read-only handle on a segment's data and index
// files. Segments are immutable once constructed (spec invariant 1); a
// Segment is safe for concurrent ScanRange calls.
type Segment struct {
	desc   Descriptor
	idx    *mmapfile.File
	blocks []IndexBlock

	dataOnce  sync.Once
	dataBytes []byte
	dataErr   error
}

// Open opens the segment described by d, verifying the checksum recorded
// at write time (§2 of SPEC_FULL.md) and loading the index file. mmapIndex
// selects mmapfile.Open (mmap on Linux, a plain read elsewhere) when true,
// or mmapfile.ReadFile (always a plain read) when false — SPEC_FULL.md
// §6.4's storage.Config.MmapIndex knob.
func Open(d Descriptor, mmapIndex bool) (*Segment, error) {
	if err := verifyChecksum(d); err != nil {
		return nil, fmt.Errorf("segment %d: %w", d.ID, err)
	}
	openIndex := mmapfile.Open
	if !mmapIndex {
		openIndex = mmapfile.ReadFile
	}
	idx, err := openIndex(d.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("segment %d: opening index: %w", d.ID, err)
	}
	blocks, err := decodeBlocks(idx.Bytes())
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("segment %d: decoding index: %w", d.ID, err)
	}
	if len(blocks) == 0 {
		idx.Close()
		return nil, fmt.Errorf("segment %d: index file has no blocks", d.ID)
	}
	// The descriptor's range/count fields are always recomputed from the
	// index itself rather than trusted from the caller, so that a
	// freshly-discovered segment (Discover never saw the in-memory
	// Descriptor produced by Write) reports the same values a
	// just-flushed segment would.
	d.MinTS = blocks[0].MinTS
	d.MaxTS = blocks[len(blocks)-1].MaxTS
	d.BlockCount = len(blocks)
	records := 0
	for _, b := range blocks {
		records += int(b.RecordCount)
	}
	d.Records = records
	return &Segment{desc: d, idx: idx, blocks: blocks}, nil
}

func decodeBlocks(buf []byte) ([]IndexBlock, error) {
	if len(buf)%indexBlockSize != 0 {
		return nil, fmt.Errorf("index file size %d is not a multiple of %d", len(buf), indexBlockSize)
	}
	n := len(buf) / indexBlockSize
	blocks := make([]IndexBlock, n)
	for i := 0; i < n; i++ {
		blocks[i] = getIndexBlock(buf[i*indexBlockSize : (i+1)*indexBlockSize])
	}
	return blocks, nil
}

func verifyChecksum(d Descriptor) error {
	want, err := os.ReadFile(d.SumPath)
	if err != nil {
		return fmt.Errorf("reading checksum: %w", err)
	}
	data, err := os.ReadFile(d.DataPath)
	if err != nil {
		return fmt.Errorf("reading data file: %w", err)
	}
	got := blake2b.Sum256(data)
	if hex.EncodeToString(got[:]) != string(want) {
		return fmt.Errorf("checksum mismatch: segment's data file was not written completely (invariant violation — a crash mid-flush should have left no directory entry for this segment)")
	}
	return nil
}

// Close releases the segment's mapped index file. It does not delete
// anything from disk; segments live forever in this MVP (spec §3
// lifecycle: "retirement is out of scope").
func (s *Segment) Close() error {
	return s.idx.Close()
}

// Descriptor returns the directory entry this Segment was opened from.
func (s *Segment) Descriptor() Descriptor { return s.desc }

// dataBody returns the segment's decoded record stream, reading and
// decompressing the data file (decodeData strips its header byte and
// inflates it per Compression) at most once per Segment.
func (s *Segment) dataBody() ([]byte, error) {
	s.dataOnce.Do(func() {
		raw, err := os.ReadFile(s.desc.DataPath)
		if err != nil {
			s.dataErr = fmt.Errorf("segment %d: reading data file: %w", s.desc.ID, err)
			return
		}
		body, err := decodeData(raw)
		if err != nil {
			s.dataErr = fmt.Errorf("segment %d: %w", s.desc.ID, err)
			return
		}
		s.dataBytes = body
	})
	return s.dataBytes, s.dataErr
}

// ScanRange implements spec §4.2's read algorithm: prune by the whole
// segment's [min_ts, max_ts], binary-search the sparse index for the first
// candidate block, and scan forward emitting in-range records until either
// the segment ends or a record's timestamp exceeds b.
//
// ScanRange returns events already in the segment's total order (spec
// invariant 2), so callers merging multiple segments can rely on each
// sub-sequence being sorted.
func (s *Segment) ScanRange(a, b uint64) ([]term.Event, error) {
	if a > b || s.desc.MaxTS < a || s.desc.MinTS > b || len(s.blocks) == 0 {
		return nil, nil
	}

	// First block whose max_ts >= a.
	start := sort.Search(len(s.blocks), func(i int) bool {
		return s.blocks[i].MaxTS >= a
	})
	if start == len(s.blocks) {
		return nil, nil
	}

	body, err := s.dataBody()
	if err != nil {
		return nil, err
	}

	var out []term.Event
	for bi := start; bi < len(s.blocks); bi++ {
		blk := s.blocks[bi]
		if blk.MinTS > b {
			// Spec §4.2 edge case: a block whose min_ts > b terminates the scan.
			break
		}
		offset := blk.FirstRecordOffset
		for r := uint32(0); r < blk.RecordCount; r++ {
			end := offset + recordSize
			if end > uint64(len(body)) {
				return nil, fmt.Errorf("segment %d: record offset %d exceeds decoded data length %d", s.desc.ID, offset, len(body))
			}
			e := getEvent(body[offset:end])
			if e.Timestamp > b {
				return out, nil
			}
			if e.Timestamp >= a {
				out = append(out, e)
			}
			offset = end
		}
	}
	return out, nil
}

// Blocks returns a copy of the segment's sparse index, for diagnostics and
// testing (spec invariant 4: blocks[0].min_ts == segment.min_ts etc).
func (s *Segment) Blocks() []IndexBlock {
	return append([]IndexBlock(nil), s.blocks...)
}
