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

package janusql

import (
	"fmt"
	"strconv"
	"strings"
)

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// isWord reports whether tok is a word token matching kw, case-insensitive.
func isWord(tok token, kw string) bool {
	return tok.kind == tokWord && strings.EqualFold(tok.text, kw)
}

func (p *parser) expectWord(kw string) (token, error) {
	tok := p.peek()
	if !isWord(tok, kw) {
		return token{}, p.errf(tok.line, "expected %q, got %q", kw, tok.text)
	}
	return p.advance(), nil
}

func (p *parser) expectBracket(kind tokenKind, ch string) (token, error) {
	tok := p.peek()
	if tok.kind != kind {
		return token{}, p.errf(tok.line, "expected %q, got %q", ch, tok.text)
	}
	return p.advance(), nil
}

// expectIRI consumes either a bracketed <iri> token, or a prefixed-name
// word (prefix:local) expanded against prefixes. Returns the ParseError
// from spec §7 ("an IRI cannot be expanded") if the prefix is unknown.
func (p *parser) expectIRI(prefixes map[string]string) (string, error) {
	tok := p.peek()
	switch tok.kind {
	case tokIRI:
		p.advance()
		return tok.text, nil
	case tokWord:
		if idx := strings.IndexByte(tok.text, ':'); idx >= 0 {
			prefix, local := tok.text[:idx], tok.text[idx+1:]
			base, ok := prefixes[prefix]
			if !ok {
				return "", p.errf(tok.line, "cannot expand IRI: unknown prefix %q", prefix)
			}
			p.advance()
			return base + local, nil
		}
	}
	return "", p.errf(tok.line, "expected an IRI, got %q", tok.text)
}

func parseNumber(tok token) (uint64, error) {
	if tok.kind != tokWord {
		return 0, &ParseError{Line: tok.line, Reason: "expected a number"}
	}
	n, err := strconv.ParseUint(tok.text, 10, 64)
	if err != nil {
		return 0, &ParseError{Line: tok.line, Reason: "expected a number, got " + strconv.Quote(tok.text)}
	}
	return n, nil
}

// Parse lexes and parses src as a JanusQL query (spec §4.5), then derives
// the live rspql_query and per-historical-window sparql_queries.
func Parse(src string) (*Query, error) {
	toks, err := lexAll(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	buildPlans(q)
	return q, nil
}

func (p *parser) parseQuery() (*Query, error) {
	q := &Query{Prefixes: map[string]string{}}

	for isWord(p.peek(), "PREFIX") {
		p.advance()
		nameTok := p.peek()
		if nameTok.kind != tokWord || !strings.HasSuffix(nameTok.text, ":") {
			return nil, p.errf(nameTok.line, "expected prefix name ending in ':', got %q", nameTok.text)
		}
		p.advance()
		iriTok, err := p.expectBracket(tokIRI, "<iri>")
		if err != nil {
			return nil, err
		}
		q.Prefixes[strings.TrimSuffix(nameTok.text, ":")] = iriTok.text
	}

	if _, err := p.expectWord("REGISTER"); err != nil {
		return nil, err
	}
	r2s := p.peek()
	switch strings.ToUpper(r2s.text) {
	case "RSTREAM", "ISTREAM", "DSTREAM":
		q.R2SOp = strings.ToUpper(r2s.text)
		p.advance()
	default:
		return nil, p.errf(r2s.line, "expected RStream, IStream, or DStream, got %q", r2s.text)
	}
	name, err := p.expectIRI(q.Prefixes)
	if err != nil {
		return nil, err
	}
	q.Name = name
	if _, err := p.expectWord("AS"); err != nil {
		return nil, err
	}

	if _, err := p.expectWord("SELECT"); err != nil {
		return nil, err
	}
	selectStart := p.peek().start
	for !isWord(p.peek(), "FROM") {
		if p.peek().kind == tokEOF {
			return nil, p.errf(p.peek().line, "query has no FROM clause")
		}
		p.advance()
	}
	q.Select = strings.TrimSpace(p.src[selectStart:p.peek().start])

	for isWord(p.peek(), "FROM") {
		p.advance()
		if _, err := p.expectWord("NAMED"); err != nil {
			return nil, err
		}
		if _, err := p.expectWord("WINDOW"); err != nil {
			return nil, err
		}
		winIRI, err := p.expectIRI(q.Prefixes)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectWord("ON"); err != nil {
			return nil, err
		}
		if _, err := p.expectWord("STREAM"); err != nil {
			return nil, err
		}
		streamIRI, err := p.expectIRI(q.Prefixes)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectBracket(tokLBracket, "["); err != nil {
			return nil, err
		}
		win, err := p.parseWindowSpec(winIRI, streamIRI)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectBracket(tokRBracket, "]"); err != nil {
			return nil, err
		}
		q.Windows = append(q.Windows, win)
	}
	if len(q.Windows) == 0 {
		return nil, p.errf(p.peek().line, "query has no FROM NAMED WINDOW clause")
	}

	if _, err := p.expectWord("WHERE"); err != nil {
		return nil, err
	}
	lbrace, err := p.expectBracket(tokLBrace, "{")
	if err != nil {
		return nil, err
	}
	depth := 1
	var end int
	for {
		tok := p.peek()
		if tok.kind == tokEOF {
			return nil, p.errf(tok.line, "unterminated WHERE clause")
		}
		p.advance()
		if tok.kind == tokLBrace {
			depth++
		} else if tok.kind == tokRBrace {
			depth--
			if depth == 0 {
				end = tok.end
				break
			}
		}
	}
	q.Where = p.src[lbrace.start:end]

	if p.peek().kind != tokEOF {
		return nil, p.errf(p.peek().line, "unexpected trailing input %q", p.peek().text)
	}

	return q, nil
}

func (p *parser) parseWindowSpec(winIRI, streamIRI string) (Window, error) {
	tok := p.peek()
	w := Window{Name: winIRI, Stream: streamIRI}

	switch strings.ToUpper(tok.text) {
	case "RANGE":
		p.advance()
		rangeMS, err := parseNumber(p.advance())
		if err != nil {
			return Window{}, err
		}
		if _, err := p.expectWord("STEP"); err != nil {
			return Window{}, err
		}
		stepMS, err := parseNumber(p.advance())
		if err != nil {
			return Window{}, err
		}
		w.Kind = Live
		w.RangeMS = rangeMS
		w.StepMS = stepMS
	case "OFFSET":
		p.advance()
		offsetMS, err := parseNumber(p.advance())
		if err != nil {
			return Window{}, err
		}
		if _, err := p.expectWord("RANGE"); err != nil {
			return Window{}, err
		}
		rangeMS, err := parseNumber(p.advance())
		if err != nil {
			return Window{}, err
		}
		if _, err := p.expectWord("STEP"); err != nil {
			return Window{}, err
		}
		stepMS, err := parseNumber(p.advance())
		if err != nil {
			return Window{}, err
		}
		w.Kind = HistoricalSliding
		w.OffsetMS = offsetMS
		w.RangeMS = rangeMS
		w.StepMS = stepMS
	case "START":
		p.advance()
		startTS, err := parseNumber(p.advance())
		if err != nil {
			return Window{}, err
		}
		if _, err := p.expectWord("END"); err != nil {
			return Window{}, err
		}
		endTS, err := parseNumber(p.advance())
		if err != nil {
			return Window{}, err
		}
		w.Kind = HistoricalFixed
		w.StartTS = startTS
		w.EndTS = endTS
	default:
		return Window{}, p.errf(tok.line, "unrecognized window specifier %q", tok.text)
	}
	return w, nil
}
