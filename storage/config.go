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

// Package storage implements SegmentedStore (spec §4.4): the component
// that owns a BatchBuffer, a segment directory, and a background flusher,
// and exposes the write/read_range/clear API the rest of Janus is built
// on.
package storage

import "github.com/janus-rsp/janus/segment"

// Compression selects an optional data-file compression scheme. Unlike the
// fixed 24-byte wire record, which is the documented on-disk contract
// (spec §6.1), compression is an opt-in storage-footprint knob, decoded
// transparently by readers. It is an alias of segment.Compression so
// callers never need to convert between the two package's constants when
// a Config is threaded down into segment.Write/segment.Open.
type Compression = segment.Compression

const (
	// CompressionNone stores segment data files uncompressed (default).
	CompressionNone = segment.CompressionNone
	// CompressionZstd compresses segment data files with zstd
	// (github.com/klauspost/compress/zstd).
	CompressionZstd = segment.CompressionZstd
)

// Config enumerates the SegmentedStore's tunables (spec §6.4).
type Config struct {
	// StorageDir is the filesystem root for the dictionary side file and
	// the segments/ directory. Required.
	StorageDir string

	// MaxBatchEvents is the number of buffered events that triggers a
	// forced flush. Default 500_000.
	MaxBatchEvents int
	// MaxBatchBytes is the buffered byte footprint that triggers a
	// forced flush. Default 50 MiB.
	MaxBatchBytes int64
	// FlushIntervalMS is the wall-time flush cadence in milliseconds.
	// Default 5000.
	FlushIntervalMS int64
	// SparseStride is the number of records per IndexBlock. Default 1000.
	SparseStride int

	// Compression selects the optional segment data-file compression
	// scheme (SPEC_FULL.md §6.4). Default CompressionNone.
	Compression Compression
	// MmapIndex controls whether .idx files are mapped via
	// internal/mmapfile (true, default) or always read through
	// os.ReadFile (false). On non-Linux platforms the mmap path already
	// falls back to a plain read regardless of this setting.
	MmapIndex bool
}

const (
	defaultMaxBatchEvents = 500_000
	defaultMaxBatchBytes  = 50 * 1024 * 1024
	defaultFlushInterval  = 5000
)

// withDefaults fills in zero-valued fields with their documented defaults.
func (c Config) withDefaults() Config {
	if c.MaxBatchEvents <= 0 {
		c.MaxBatchEvents = defaultMaxBatchEvents
	}
	if c.MaxBatchBytes <= 0 {
		c.MaxBatchBytes = defaultMaxBatchBytes
	}
	if c.FlushIntervalMS <= 0 {
		c.FlushIntervalMS = defaultFlushInterval
	}
	if c.SparseStride <= 0 {
		c.SparseStride = segment.DefaultStride
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	return c
}
