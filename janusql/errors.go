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

import "fmt"

// ParseError is raised for malformed JanusQL (spec §6.2, §7): a missing
// required section, an unrecognized window specifier, or an IRI that
// cannot be expanded against the query's PREFIX declarations.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("janusql: parse error at line %d: %s", e.Line, e.Reason)
}

// Kind identifies ParseError as the ParseError kind (spec §7).
func (e *ParseError) Kind() string { return "ParseError" }
