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
	"fmt"
	"strings"

	"github.com/janus-rsp/janus/term"
)

// isSpace treats the N-Triples/N-Quads whitespace set (space and tab)
// as token separators; unlike janusql's scanner this format has no
// embedded newlines within a statement.
func isSpace(c byte) bool { return c == ' ' || c == '\t' }

// tokenizeStatement splits one line into its term tokens plus the
// trailing '.', respecting quoted literals (which may themselves
// contain escaped spaces and quotes) and bracketed IRIs.
func tokenizeStatement(line string) ([]string, error) {
	var toks []string
	i, n := 0, len(line)
	for i < n {
		for i < n && isSpace(line[i]) {
			i++
		}
		if i >= n {
			break
		}
		switch line[i] {
		case '<':
			end := strings.IndexByte(line[i+1:], '>')
			if end < 0 {
				return nil, fmt.Errorf("unterminated IRI reference starting at byte %d", i)
			}
			end = i + 1 + end + 1
			toks = append(toks, line[i:end])
			i = end
		case '"':
			end, err := literalTokenEnd(line, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, line[i:end])
			i = end
		case '.':
			toks = append(toks, ".")
			i++
		default:
			end := i
			for end < n && !isSpace(line[end]) {
				end++
			}
			toks = append(toks, line[i:end])
			i = end
		}
	}
	return toks, nil
}

// literalTokenEnd scans a quoted literal starting at line[start] == '"'
// through its closing quote and any trailing @lang or ^^<iri> suffix,
// returning the byte offset just past the whole token.
func literalTokenEnd(line string, start int) (int, error) {
	i := start + 1
	for i < len(line) {
		if line[i] == '\\' {
			i += 2
			continue
		}
		if line[i] == '"' {
			break
		}
		i++
	}
	if i >= len(line) {
		return 0, fmt.Errorf("unterminated literal starting at byte %d", start)
	}
	end := i + 1
	switch {
	case end < len(line) && line[end] == '@':
		j := end + 1
		for j < len(line) && !isSpace(line[j]) && line[j] != '.' {
			j++
		}
		return j, nil
	case end+1 < len(line) && line[end] == '^' && line[end+1] == '^':
		j := end + 2
		if j >= len(line) || line[j] != '<' {
			return 0, fmt.Errorf("malformed datatype IRI after byte %d", end)
		}
		close := strings.IndexByte(line[j+1:], '>')
		if close < 0 {
			return 0, fmt.Errorf("unterminated datatype IRI starting at byte %d", j)
		}
		return j + 1 + close + 1, nil
	default:
		return end, nil
	}
}

// parseTerm decodes one tokenized term into a term.Term, dispatching on
// its syntactic shape (bracketed IRI, "_:"-prefixed blank node, or a
// quoted literal with an optional language tag or datatype IRI).
func parseTerm(tok string) (term.Term, error) {
	switch {
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">") && len(tok) >= 2:
		return term.NewIRI(tok[1 : len(tok)-1]), nil
	case strings.HasPrefix(tok, "_:"):
		return term.NewBlank(strings.TrimPrefix(tok, "_:")), nil
	case strings.HasPrefix(tok, `"`):
		return parseLiteral(tok)
	default:
		return term.Term{}, fmt.Errorf("unrecognized term %q", tok)
	}
}

func parseLiteral(tok string) (term.Term, error) {
	i := 1
	for i < len(tok) {
		if tok[i] == '\\' {
			i += 2
			continue
		}
		if tok[i] == '"' {
			break
		}
		i++
	}
	if i >= len(tok) {
		return term.Term{}, fmt.Errorf("unterminated literal %q", tok)
	}
	lexical := unescapeLiteral(tok[1:i])
	rest := tok[i+1:]

	switch {
	case rest == "":
		return term.NewLiteral(lexical), nil
	case strings.HasPrefix(rest, "@"):
		return term.NewLangLiteral(lexical, rest[1:]), nil
	case strings.HasPrefix(rest, "^^"):
		dt := strings.TrimPrefix(rest, "^^")
		if !strings.HasPrefix(dt, "<") || !strings.HasSuffix(dt, ">") {
			return term.Term{}, fmt.Errorf("malformed datatype IRI in %q", tok)
		}
		return term.NewTypedLiteral(lexical, dt[1:len(dt)-1]), nil
	default:
		return term.Term{}, fmt.Errorf("unexpected trailing content in literal %q", tok)
	}
}

func unescapeLiteral(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// parseSubject requires an IRI or blank-node term (never a literal).
func parseSubject(tok string) (term.Term, error) {
	t, err := parseTerm(tok)
	if err != nil {
		return term.Term{}, err
	}
	if t.Kind() == term.Literal {
		return term.Term{}, fmt.Errorf("subject term %q cannot be a literal", tok)
	}
	return t, nil
}

// parsePredicate requires an IRI term.
func parsePredicate(tok string) (term.Term, error) {
	t, err := parseTerm(tok)
	if err != nil {
		return term.Term{}, err
	}
	if t.Kind() != term.IRI {
		return term.Term{}, fmt.Errorf("predicate term %q must be an IRI", tok)
	}
	return t, nil
}

// parseGraph requires an IRI term (RDFEvent.Graph is always an IRI string,
// per term.RDFEvent's contract).
func parseGraph(tok string) (string, error) {
	t, err := parseTerm(tok)
	if err != nil {
		return "", err
	}
	if t.Kind() != term.IRI {
		return "", fmt.Errorf("graph term %q must be an IRI", tok)
	}
	return t.Value(), nil
}
