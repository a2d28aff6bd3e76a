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

package dict

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/janus-rsp/janus/term"
)

// on-disk record tags, one byte each, mirroring term.Kind but pinned to a
// stable wire value independent of Kind's iota ordering.
const (
	tagIRI     byte = 1
	tagLiteral byte = 2
	tagBlank   byte = 3
)

// Persist writes the dictionary to path as a sequence of length-prefixed
// records, one per interned term, in id order starting at 0 (the reserved
// default-graph entry is included so Load can rebuild ids identically).
// The format: for each term, a 1-byte kind tag, then up to three
// length-prefixed (uint32 LE) byte strings: value, lang, datatype (the
// latter two only present for literals).
func (d *Dictionary) Persist(path string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dict: persist: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, t := range d.interned {
		if err := writeTerm(w, t); err != nil {
			f.Close()
			return fmt.Errorf("dict: persist: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("dict: persist: %w", err)
	}
	return f.Close()
}

func writeTerm(w *bufio.Writer, t term.Term) error {
	var tag byte
	switch t.Kind() {
	case term.IRI:
		tag = tagIRI
	case term.Blank:
		tag = tagBlank
	case term.Literal:
		tag = tagLiteral
	default:
		return fmt.Errorf("unknown term kind %v", t.Kind())
	}
	if err := w.WriteByte(tag); err != nil {
		return err
	}
	if err := writeString(w, t.Value()); err != nil {
		return err
	}
	if tag == tagLiteral {
		if err := writeString(w, t.Lang()); err != nil {
			return err
		}
		if err := writeString(w, t.Datatype()); err != nil {
			return err
		}
	}
	return nil
}

func writeString(w *bufio.Writer, s string) error {
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(s)))
	if _, err := w.Write(lenbuf[:]); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

// Load replaces d's contents with the dictionary persisted at path,
// reassigning ids in the exact order they were written so that
// decode(encode(t)) == t continues to hold after a restart (spec §4.1).
func (d *Dictionary) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dict: load: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.toindex = make(map[key]uint32)
	d.interned = d.interned[:0]

	for {
		t, err := readTerm(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("dict: load: %w", err)
		}
		id := uint32(len(d.interned))
		d.interned = append(d.interned, t)
		d.toindex[t] = id
	}
	return nil
}

func readTerm(r *bufio.Reader) (term.Term, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return term.Term{}, err
	}
	value, err := readString(r)
	if err != nil {
		return term.Term{}, fmt.Errorf("reading value: %w", err)
	}
	switch tag {
	case tagIRI:
		return term.NewIRI(value), nil
	case tagBlank:
		return term.NewBlank(value), nil
	case tagLiteral:
		lang, err := readString(r)
		if err != nil {
			return term.Term{}, fmt.Errorf("reading lang: %w", err)
		}
		datatype, err := readString(r)
		if err != nil {
			return term.Term{}, fmt.Errorf("reading datatype: %w", err)
		}
		switch {
		case lang != "":
			return term.NewLangLiteral(value, lang), nil
		case datatype != "":
			return term.NewTypedLiteral(value, datatype), nil
		default:
			return term.NewLiteral(value), nil
		}
	default:
		return term.Term{}, fmt.Errorf("unknown tag byte %d", tag)
	}
}

func readString(r *bufio.Reader) (string, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenbuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
