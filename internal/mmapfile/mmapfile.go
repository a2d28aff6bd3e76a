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

// Package mmapfile provides a read-only memory-mapped view of a file, with
// a portable fallback to a plain in-memory read for platforms (or builds)
// where mmap isn't wired up. Segment readers use this for the .idx files
// only; .data files are read with os.ReadFile (spec §4.2: "Load
// IndexBlocks (mmap or read-through) lazily").
package mmapfile

import "os"

// File is a read-only view of a file's bytes, released by Close.
type File struct {
	data   []byte
	mapped bool
}

// Bytes returns the file's contents. The returned slice must not be
// retained past Close.
func (f *File) Bytes() []byte { return f.data }

// Mapped reports whether Bytes is backed by an mmap (true) or a
// heap-allocated copy (false, the portable fallback).
func (f *File) Mapped() bool { return f.mapped }

// ReadFile always reads path through a plain os.ReadFile, regardless of
// platform — the path Open takes on every non-Linux build, and the one
// segment.Open calls in place of Open when MmapIndex is false
// (storage.Config, SPEC_FULL.md §6.4).
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &File{data: data}, nil
}
