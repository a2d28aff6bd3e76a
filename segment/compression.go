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
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression selects the encoding a segment's data file is stored under
// (SPEC_FULL.md §6.4). It is orthogonal to the fixed 24-byte record layout
// (spec §6.1): a reader decodes the whole data file's body before
// interpreting any bytes as records.
type Compression string

const (
	// CompressionNone stores the record stream as-is.
	CompressionNone Compression = "none"
	// CompressionZstd compresses the whole record stream as a single zstd
	// frame via github.com/klauspost/compress/zstd.
	CompressionZstd Compression = "zstd"
)

// Data files open with a one-byte header identifying how the remainder was
// encoded, so Discover/Open never need the Compression a segment was
// written with passed back in — the file is self-describing.
const (
	dataHeaderNone byte = 0
	dataHeaderZstd byte = 1
)

// encodeData prefixes raw (the concatenated, uncompressed Event records)
// with a header byte and, for CompressionZstd, replaces the body with a
// single zstd frame.
func encodeData(raw []byte, c Compression) ([]byte, error) {
	switch c {
	case "", CompressionNone:
		out := make([]byte, 0, len(raw)+1)
		out = append(out, dataHeaderNone)
		return append(out, raw...), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("segment: zstd: new writer: %w", err)
		}
		defer enc.Close()
		out := make([]byte, 0, len(raw)/2+1)
		out = append(out, dataHeaderZstd)
		out = enc.EncodeAll(raw, out)
		return out, nil
	default:
		return nil, fmt.Errorf("segment: unknown compression %q", c)
	}
}

// decodeData strips buf's header byte and, if it names zstd, inflates the
// body back into the concatenated record stream encodeData started from.
func decodeData(buf []byte) ([]byte, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	header, body := buf[0], buf[1:]
	switch header {
	case dataHeaderNone:
		return body, nil
	case dataHeaderZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("segment: zstd: new reader: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("segment: zstd: decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("segment: unrecognized data file header byte %d", header)
	}
}
