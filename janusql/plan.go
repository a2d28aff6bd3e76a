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
	"regexp"
	"sort"
	"strings"
)

// buildPlans derives rspql_query and sparql_queries from the already
// fully-parsed Query (spec §4.5 "Outputs").
func buildPlans(q *Query) {
	for _, w := range q.Windows {
		switch w.Kind {
		case Live:
			q.LiveWindows = append(q.LiveWindows, w)
		default:
			q.HistoricalWindows = append(q.HistoricalWindows, w)
		}
	}

	q.RSPQLQuery = reconstruct(q, q.LiveWindows, q.Where)

	q.SPARQLQueries = make([]string, len(q.HistoricalWindows))
	for i, w := range q.HistoricalWindows {
		where := rewriteWindowToGraph(q.Where, w.Name)
		if w.Kind == HistoricalFixed {
			where = appendTimestampFilter(where, w.StartTS, w.EndTS)
		}
		q.SPARQLQueries[i] = reconstruct(q, nil, where)
	}
}

// reconstruct rebuilds query text from a Query's prefixes/register/select
// clauses plus an explicit window set and WHERE body, used for both
// rspql_query (live windows only) and each historical sparql_query
// (no FROM NAMED WINDOW clause at all — the materialised quad container
// already scopes the graph, per §4.6).
func reconstruct(q *Query, windows []Window, where string) string {
	var b strings.Builder

	prefixNames := make([]string, 0, len(q.Prefixes))
	for name := range q.Prefixes {
		prefixNames = append(prefixNames, name)
	}
	sort.Strings(prefixNames)
	for _, name := range prefixNames {
		fmt.Fprintf(&b, "PREFIX %s: <%s>\n", name, q.Prefixes[name])
	}

	fmt.Fprintf(&b, "REGISTER %s <%s> AS\n", q.R2SOp, q.Name)
	fmt.Fprintf(&b, "SELECT %s\n", q.Select)
	for _, w := range windows {
		fmt.Fprintf(&b, "FROM NAMED WINDOW <%s> ON STREAM <%s> %s\n", w.Name, w.Stream, windowSpecText(w))
	}
	fmt.Fprintf(&b, "WHERE %s", where)

	return b.String()
}

func windowSpecText(w Window) string {
	switch w.Kind {
	case Live:
		return fmt.Sprintf("[RANGE %d STEP %d]", w.RangeMS, w.StepMS)
	case HistoricalSliding:
		return fmt.Sprintf("[OFFSET %d RANGE %d STEP %d]", w.OffsetMS, w.RangeMS, w.StepMS)
	case HistoricalFixed:
		return fmt.Sprintf("[START %d END %d]", w.StartTS, w.EndTS)
	default:
		return ""
	}
}

func windowGraphPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\bWINDOW\s*<` + regexp.QuoteMeta(name) + `>`)
}

// rewriteWindowToGraph rewrites "WINDOW <w>" to "GRAPH <w>" for the given
// window IRI (spec §4.5: "rewriting WINDOW <w> -> GRAPH <w>"), since
// quadmat.Materialize (§4.6) stamps every materialized quad's graph term
// with the window IRI.
func rewriteWindowToGraph(where, windowIRI string) string {
	return windowGraphPattern(windowIRI).ReplaceAllString(where, "GRAPH <"+windowIRI+">")
}

// appendTimestampFilter appends the FILTER clause spec §4.5 calls for on
// historical-fixed windows, referencing quadmat's generated TimestampVar
// binding. The filter is inserted just before the WHERE clause's closing
// brace.
func appendTimestampFilter(where string, start, end uint64) string {
	idx := strings.LastIndexByte(where, '}')
	if idx < 0 {
		return where
	}
	filter := fmt.Sprintf(" FILTER(%s >= %d && %s <= %d) ", TimestampVar, start, TimestampVar, end)
	return where[:idx] + filter + where[idx:]
}
