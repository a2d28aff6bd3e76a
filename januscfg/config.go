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

// Package januscfg loads janus.yaml/janus.json into a storage.Config
// (spec §6.4, SPEC_FULL.md §6.4), the way db/sync.go in the teacher
// recognizes definition.json/definition.yaml side by side at a known path.
package januscfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"sigs.k8s.io/yaml"

	"github.com/janus-rsp/janus/storage"
)

// fileConfig mirrors the recognized janus.yaml/janus.json keys (spec §6.4
// plus the SPEC_FULL.md §6.4 additions). sigs.k8s.io/yaml converts YAML to
// JSON before decoding, so a single set of json tags covers both formats
// — the same bridge the teacher would need if it ever decoded its own
// definition.yaml rather than merely detecting the extension.
type fileConfig struct {
	StorageDir      string `json:"storage_dir"`
	MaxBatchEvents  int    `json:"max_batch_events,omitempty"`
	MaxBatchBytes   int64  `json:"max_batch_bytes,omitempty"`
	FlushIntervalMS int64  `json:"flush_interval_ms,omitempty"`
	SparseStride    int    `json:"sparse_stride,omitempty"`
	Compression     string `json:"compression,omitempty"`
	MmapIndex       *bool  `json:"mmap_index,omitempty"`
}

// Load reads a janus.yaml or janus.json file at p and decodes it into a
// storage.Config. The extension determines nothing about parsing —
// sigs.k8s.io/yaml.Unmarshal accepts plain JSON as a degenerate case of
// YAML — but Load still validates the extension up front so a typo'd
// config path fails with a clear error rather than a confusing decode
// error from an unrelated file.
func Load(p string) (storage.Config, error) {
	switch path.Ext(p) {
	case ".yaml", ".yml", ".json":
	default:
		return storage.Config{}, fmt.Errorf("januscfg: unrecognized config extension %q (want .yaml, .yml, or .json)", p)
	}

	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.Config{}, fmt.Errorf("januscfg: %s does not exist: %w", p, err)
		}
		return storage.Config{}, fmt.Errorf("januscfg: reading %s: %w", p, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return storage.Config{}, fmt.Errorf("januscfg: parsing %s: %w", p, err)
	}
	if fc.StorageDir == "" {
		return storage.Config{}, fmt.Errorf("januscfg: %s: storage_dir is required", p)
	}

	cfg := storage.Config{
		StorageDir:      fc.StorageDir,
		MaxBatchEvents:  fc.MaxBatchEvents,
		MaxBatchBytes:   fc.MaxBatchBytes,
		FlushIntervalMS: fc.FlushIntervalMS,
		SparseStride:    fc.SparseStride,
		MmapIndex:       true,
	}
	if fc.MmapIndex != nil {
		cfg.MmapIndex = *fc.MmapIndex
	}

	switch storage.Compression(fc.Compression) {
	case "", storage.CompressionNone:
		cfg.Compression = storage.CompressionNone
	case storage.CompressionZstd:
		cfg.Compression = storage.CompressionZstd
	default:
		return storage.Config{}, fmt.Errorf("januscfg: %s: unknown compression %q", p, fc.Compression)
	}

	return cfg, nil
}
