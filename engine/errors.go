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

package engine

import "fmt"

// RegistryError is the RegistryError kind from spec §7: a registry-map
// precondition violation — duplicate id on register, unknown id, or a
// stop/unregister called from the wrong state. Start on an already running
// query returns *exec.ExecutionError instead.
type RegistryError struct {
	ID     string
	Reason string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("engine: query %s: %s", e.ID, e.Reason)
}

// Kind identifies RegistryError as the RegistryError kind (spec §7).
func (e *RegistryError) Kind() string { return "RegistryError" }
