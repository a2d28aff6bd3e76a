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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Discover scans dir for committed segment_<nnnn>.data files (spec §6.1:
// "Segments are discovered by scanning segments/ on startup") and returns
// one bare Descriptor per id found, sorted ascending by id. Any leftover
// *.tmp files from an interrupted flush (spec §4.4: partial files are
// discarded on failure) are ignored — Write only ever renames into the
// final name once every file has been written successfully, so a crash
// mid-flush leaves no '.data' file for Discover to see.
func Discover(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("segment: discover: %w", err)
	}

	var descs []Descriptor
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".data") || !strings.HasPrefix(name, "segment_") {
			continue
		}
		base := strings.TrimSuffix(name, ".data")
		id, err := parseSegmentID(base)
		if err != nil {
			continue // not a well-formed segment file name; ignore
		}
		descs = append(descs, Descriptor{
			ID:        id,
			DataPath:  filepath.Join(dir, base+".data"),
			IndexPath: filepath.Join(dir, base+".idx"),
			SumPath:   filepath.Join(dir, base+".sum"),
		})
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].ID < descs[j].ID })
	return descs, nil
}

func parseSegmentID(base string) (int, error) {
	const prefix = "segment_"
	if !strings.HasPrefix(base, prefix) {
		return 0, fmt.Errorf("not a segment file name: %q", base)
	}
	return strconv.Atoi(base[len(prefix):])
}

// NextSegmentID returns one greater than the highest id in descs, or 0 if
// descs is empty.
func NextSegmentID(descs []Descriptor) int {
	next := 0
	for _, d := range descs {
		if d.ID+1 > next {
			next = d.ID + 1
		}
	}
	return next
}
