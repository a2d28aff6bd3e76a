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

package ingest

import (
	"strings"
	"testing"

	"github.com/janus-rsp/janus/term"
)

func TestScanNTriplesDefaultsGraph(t *testing.T) {
	src := `<http://s> <http://p> <http://o> .`
	s := NewScanner(strings.NewReader(src))
	s.Now = func() uint64 { return 42 }

	if !s.Scan() {
		t.Fatalf("Scan() = false, err = %v", s.Err())
	}
	ev := s.Event()
	if ev.Timestamp != 42 {
		t.Fatalf("Timestamp = %d, want 42", ev.Timestamp)
	}
	if ev.Graph != term.DefaultGraph {
		t.Fatalf("Graph = %q, want default graph", ev.Graph)
	}
	if ev.Subject.Value() != "http://s" || ev.Object.Value() != "http://o" {
		t.Fatalf("Subject/Object = %q/%q", ev.Subject.Value(), ev.Object.Value())
	}
	if s.Scan() {
		t.Fatal("second Scan() = true, want false (single line)")
	}
	if s.Err() != nil {
		t.Fatalf("Err() after clean EOF = %v", s.Err())
	}
}

func TestScanNQuadsKeepsExplicitGraph(t *testing.T) {
	src := `<http://s> <http://p> <http://o> <http://g> .`
	s := NewScanner(strings.NewReader(src))
	if !s.Scan() {
		t.Fatalf("Scan() = false, err = %v", s.Err())
	}
	if s.Event().Graph != "http://g" {
		t.Fatalf("Graph = %q, want http://g", s.Event().Graph)
	}
}

func TestScanSkipsBlankLinesAndComments(t *testing.T) {
	src := "\n# a comment\n<http://s> <http://p> <http://o> .\n\n# trailing\n"
	s := NewScanner(strings.NewReader(src))
	count := 0
	for s.Scan() {
		count++
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d statements, want 1", count)
	}
}

func TestScanLiteralObjectWithLangTag(t *testing.T) {
	src := `<http://s> <http://p> "hello"@en .`
	s := NewScanner(strings.NewReader(src))
	if !s.Scan() {
		t.Fatalf("Scan() = false, err = %v", s.Err())
	}
	obj := s.Event().Object
	if obj.Kind() != term.Literal || obj.Value() != "hello" || obj.Lang() != "en" {
		t.Fatalf("Object = %+v, want literal \"hello\"@en", obj)
	}
}

func TestScanLiteralObjectWithDatatype(t *testing.T) {
	src := `<http://s> <http://p> "23.5"^^<http://www.w3.org/2001/XMLSchema#decimal> .`
	s := NewScanner(strings.NewReader(src))
	if !s.Scan() {
		t.Fatalf("Scan() = false, err = %v", s.Err())
	}
	obj := s.Event().Object
	if obj.Datatype() != "http://www.w3.org/2001/XMLSchema#decimal" || obj.Value() != "23.5" {
		t.Fatalf("Object = %+v", obj)
	}
}

func TestScanLiteralWithEscapedQuoteAndEmbeddedSpace(t *testing.T) {
	src := `<http://s> <http://p> "a \"quoted\" value" .`
	s := NewScanner(strings.NewReader(src))
	if !s.Scan() {
		t.Fatalf("Scan() = false, err = %v", s.Err())
	}
	want := `a "quoted" value`
	if got := s.Event().Object.Value(); got != want {
		t.Fatalf("Object = %q, want %q", got, want)
	}
}

func TestScanBlankNodeSubject(t *testing.T) {
	src := `_:b1 <http://p> <http://o> .`
	s := NewScanner(strings.NewReader(src))
	if !s.Scan() {
		t.Fatalf("Scan() = false, err = %v", s.Err())
	}
	subj := s.Event().Subject
	if subj.Kind() != term.Blank || subj.Value() != "b1" {
		t.Fatalf("Subject = %+v, want blank node b1", subj)
	}
}

func TestScanMissingTerminatorFails(t *testing.T) {
	s := NewScanner(strings.NewReader(`<http://s> <http://p> <http://o>`))
	if s.Scan() {
		t.Fatal("Scan() = true for a statement with no trailing '.'")
	}
	if s.Err() == nil {
		t.Fatal("Err() = nil, want a ParseError")
	}
}

func TestScanWrongArityFails(t *testing.T) {
	s := NewScanner(strings.NewReader(`<http://s> <http://p> .`))
	if s.Scan() {
		t.Fatal("Scan() = true for a 2-term statement")
	}
	if s.Err() == nil {
		t.Fatal("Err() = nil, want a ParseError")
	}
}

func TestScanLiteralSubjectFails(t *testing.T) {
	s := NewScanner(strings.NewReader(`"not a subject" <http://p> <http://o> .`))
	if s.Scan() {
		t.Fatal("Scan() = true with a literal subject")
	}
	if s.Err() == nil {
		t.Fatal("Err() = nil, want a ParseError")
	}
}
