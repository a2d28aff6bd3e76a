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

// WindowKind classifies a <wspec> by the syntactic rule in spec §4.5:
// presence of OFFSET means historical-sliding, presence of START/END
// means historical-fixed, anything else is live.
type WindowKind int

const (
	Live WindowKind = iota
	HistoricalSliding
	HistoricalFixed
)

func (k WindowKind) String() string {
	switch k {
	case Live:
		return "live"
	case HistoricalSliding:
		return "historical-sliding"
	case HistoricalFixed:
		return "historical-fixed"
	default:
		return "unknown"
	}
}

// Window is one FROM NAMED WINDOW clause, fully expanded and classified.
type Window struct {
	Name   string // the <w> window IRI
	Stream string // the <stream> source IRI
	Kind   WindowKind

	RangeMS  uint64 // live, historical-sliding
	StepMS   uint64 // live, historical-sliding
	OffsetMS uint64 // historical-sliding
	StartTS  uint64 // historical-fixed
	EndTS    uint64 // historical-fixed
}

// Query is the parsed and planned form of a JanusQL query (spec §4.5
// "Outputs").
type Query struct {
	Prefixes map[string]string
	R2SOp    string // RSTREAM | ISTREAM | DSTREAM
	Name     string // the REGISTER ... <iri> AS target

	Select string // raw SELECT clause, not including the SELECT keyword
	Where  string // raw WHERE clause, including the enclosing braces

	Windows           []Window
	LiveWindows       []Window
	HistoricalWindows []Window

	// RSPQLQuery retains only the live windows, the original SELECT and
	// WHERE clauses (spec §4.5).
	RSPQLQuery string
	// SPARQLQueries has one entry per HistoricalWindows, in the same
	// order (spec §4.5, spec invariant 6).
	SPARQLQueries []string
}

// TimestampVar is the generated binding quadmat.Materialize produces for
// each quad's event timestamp (spec §4.5, §4.6) — the variable referenced
// by the FILTER clause appended to historical-fixed SPARQL queries.
const TimestampVar = "?timestamp"
