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
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/janus-rsp/janus/term"
)

// DefaultStride is the default number of records per IndexBlock (spec §4.2).
const DefaultStride = 1000

// uuid mints a random, padding-free base32 token for temporary file names,
// the same idiom ion/blockfmt/index.go uses for its own uuid() helper:
// crypto/rand bytes, base32-encoded, trailing '=' padding stripped.
func uuid() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err) // crypto/rand failing means the platform is broken
	}
	return strings.TrimSuffix(base32.StdEncoding.EncodeToString(buf[:]), "======")
}

// Write builds a new immutable segment from a sorted slice of events
// (callers are responsible for sorting, e.g. via term.ByOrder — see spec
// invariant 2) and stores it under dir as segment_<id:04d>.data /
// segment_<id:04d>.idx / segment_<id:04d>.sum. compression selects the
// data file's encoding (SPEC_FULL.md §6.4); the zero value is
// CompressionNone.
//
// Write stages its output under temporary names and renames into place
// only once every byte has been written successfully, so a crash mid-write
// never leaves a partially-visible segment (spec §4.4 flush failure
// semantics: "partial files are discarded").
func Write(dir string, id int, events []term.Event, stride int, compression Compression) (*Descriptor, error) {
	if stride <= 0 {
		stride = DefaultStride
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("segment: Write called with zero events")
	}

	base := fmt.Sprintf("segment_%04d", id)
	tmpSuffix := "." + uuid() + ".tmp"
	dataTmp := filepath.Join(dir, base+".data"+tmpSuffix)
	idxTmp := filepath.Join(dir, base+".idx"+tmpSuffix)
	sumTmp := filepath.Join(dir, base+".sum"+tmpSuffix)

	dataPath := filepath.Join(dir, base+".data")
	idxPath := filepath.Join(dir, base+".idx")
	sumPath := filepath.Join(dir, base+".sum")

	cleanup := func() {
		os.Remove(dataTmp)
		os.Remove(idxTmp)
		os.Remove(sumTmp)
	}

	sum, blocks, minTS, maxTS, err := writeData(dataTmp, events, stride, compression)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("segment: writing data: %w", err)
	}
	if err := writeIndex(idxTmp, blocks); err != nil {
		cleanup()
		return nil, fmt.Errorf("segment: writing index: %w", err)
	}
	if err := os.WriteFile(sumTmp, []byte(hex.EncodeToString(sum[:])), 0o644); err != nil {
		cleanup()
		return nil, fmt.Errorf("segment: writing checksum: %w", err)
	}

	// Rename into place last; any failure here still leaves no
	// partially-named final file for the directory to discover.
	if err := os.Rename(dataTmp, dataPath); err != nil {
		cleanup()
		return nil, fmt.Errorf("segment: committing data file: %w", err)
	}
	if err := os.Rename(idxTmp, idxPath); err != nil {
		os.Remove(dataPath)
		cleanup()
		return nil, fmt.Errorf("segment: committing index file: %w", err)
	}
	if err := os.Rename(sumTmp, sumPath); err != nil {
		os.Remove(dataPath)
		os.Remove(idxPath)
		cleanup()
		return nil, fmt.Errorf("segment: committing checksum file: %w", err)
	}

	return &Descriptor{
		ID:         id,
		MinTS:      minTS,
		MaxTS:      maxTS,
		BlockCount: len(blocks),
		Records:    len(events),
		DataPath:   dataPath,
		IndexPath:  idxPath,
		SumPath:    sumPath,
	}, nil
}

// writeData builds the uncompressed record stream and its sparse index in
// memory, then encodes the stream per compression (plain passthrough for
// CompressionNone, a single zstd frame for CompressionZstd) before writing
// it to path in one shot. IndexBlock.FirstRecordOffset is always an offset
// into the *decoded* record stream; readers must decode the whole data
// file before seeking into it (see Segment.dataBody).
func writeData(path string, events []term.Event, stride int, compression Compression) (sum [blake2b.Size256]byte, blocks []IndexBlock, minTS, maxTS uint64, err error) {
	var raw bytes.Buffer
	raw.Grow(len(events) * recordSize)

	minTS = events[0].Timestamp
	maxTS = events[0].Timestamp

	var buf [recordSize]byte
	var offset uint64
	for i := 0; i < len(events); i += stride {
		end := i + stride
		if end > len(events) {
			end = len(events)
		}
		blk := IndexBlock{
			MinTS:             events[i].Timestamp,
			FirstRecordOffset: offset,
			RecordCount:       uint32(end - i),
		}
		for j := i; j < end; j++ {
			e := events[j]
			if e.Timestamp < minTS {
				minTS = e.Timestamp
			}
			if e.Timestamp > maxTS {
				maxTS = e.Timestamp
			}
			putEvent(buf[:], e)
			raw.Write(buf[:])
			offset += recordSize
		}
		blk.MaxTS = events[end-1].Timestamp
		blocks = append(blocks, blk)
	}

	encoded, err := encodeData(raw.Bytes(), compression)
	if err != nil {
		return sum, nil, 0, 0, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return sum, nil, 0, 0, err
	}
	defer f.Close()
	if _, err := f.Write(encoded); err != nil {
		return sum, nil, 0, 0, err
	}
	if err := f.Sync(); err != nil {
		return sum, nil, 0, 0, err
	}
	sum = blake2b.Sum256(encoded)
	return sum, blocks, minTS, maxTS, nil
}

func writeIndex(path string, blocks []IndexBlock) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	var buf [indexBlockSize]byte
	for _, b := range blocks {
		putIndexBlock(buf[:], b)
		if _, err := f.Write(buf[:]); err != nil {
			return err
		}
	}
	return f.Sync()
}
