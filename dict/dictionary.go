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

// Package dict implements the bidirectional term<->uint32 mapping shared
// by every event written to or read from a Janus store (spec §4.1).
//
// The shape mirrors ion.Symtab: an append-only slice of interned values
// plus a reverse lookup map, guarded by a single lock. Unlike Symtab,
// Dictionary has no "system" pre-interned range: id 0 is reserved for the
// default graph sentinel and real terms start at 1.
package dict

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/janus-rsp/janus/term"
)

// DefaultGraphID is the reserved id for term.DefaultGraph (spec §3/§4.1).
const DefaultGraphID uint32 = 0

// UnknownIDError is returned by Decode when asked to resolve an id that
// was never assigned by this Dictionary.
type UnknownIDError struct {
	ID uint32
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("dict: unknown id %d", e.ID)
}

// Kind identifies UnknownIDError as the DictionaryError kind (spec §7).
func (e *UnknownIDError) Kind() string { return "DictionaryError" }

// Dictionary is a thread-safe, monotonically-growing term<->id mapping.
// The zero value is not usable; use New.
type Dictionary struct {
	mu       sync.RWMutex
	interned []term.Term    // id (minus 1) -> term
	toindex  map[key]uint32 // term -> id
}

// key is the map key derived from a term.Term; term.Term itself is
// comparable (all fields are plain strings/ints) so it can be used
// directly, but a named type keeps the intent clear at call sites.
type key = term.Term

// New constructs an empty Dictionary. The default graph is pre-registered
// at DefaultGraphID so Encode(term.NewIRI(term.DefaultGraph)) is stable
// across fresh and loaded dictionaries.
func New() *Dictionary {
	d := &Dictionary{}
	d.init()
	return d
}

func (d *Dictionary) init() {
	d.toindex = make(map[key]uint32)
	d.interned = nil
	dg := term.NewIRI(term.DefaultGraph)
	d.toindex[dg] = DefaultGraphID
	d.interned = append(d.interned, dg)
}

// Encode returns the id for t, assigning the next monotonically-increasing
// id (starting at 1; 0 is reserved, see DefaultGraphID) if t has not been
// seen before. Encode is safe for concurrent use.
func (d *Dictionary) Encode(t term.Term) uint32 {
	d.mu.RLock()
	if id, ok := d.toindex[t]; ok {
		d.mu.RUnlock()
		return id
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.toindex[t]; ok {
		return id
	}
	id := uint32(len(d.interned))
	d.toindex[t] = id
	d.interned = append(d.interned, t)
	return id
}

// Decode resolves an id back to the term that produced it, or returns
// UnknownIDError if id was never assigned (spec §4.4: "skip events whose
// ids are absent" relies on callers checking this error).
func (d *Dictionary) Decode(id uint32) (term.Term, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.interned) {
		return term.Term{}, &UnknownIDError{ID: id}
	}
	return d.interned[id], nil
}

// Len returns the number of interned terms, including the reserved
// default-graph entry.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.interned)
}

// Clone returns a snapshot copy of the dictionary's contents, decoupled
// from further mutation of d.
func (d *Dictionary) Clone() *Dictionary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c := &Dictionary{
		toindex:  maps.Clone(d.toindex),
		interned: append([]term.Term(nil), d.interned...),
	}
	return c
}
