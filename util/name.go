// This file is part of ndnode, a Named-Data Network overlay node.
// Copyright (C) 2019-2022 Bernd Fix  >Y<
//
// ndnode is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// ndnode is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package util

import "fmt"

// NameMax is the maximum length of an object name (spec §3).
const NameMax = 100

// ErrNameInvalid is returned by ValidateName for any malformed name.
var ErrNameInvalid = fmt.Errorf("name must be 1..%d alphanumeric characters", NameMax)

// ValidateName checks that name is 1..NameMax alphanumeric bytes.
func ValidateName(name string) error {
	if len(name) < 1 || len(name) > NameMax {
		return ErrNameInvalid
	}
	for _, r := range name {
		if !isAlnum(r) {
			return ErrNameInvalid
		}
	}
	return nil
}

func isAlnum(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	}
	return false
}

// ValidateNetID checks that id is exactly three decimal digits (spec §4.2.1).
func ValidateNetID(id string) error {
	if len(id) != 3 {
		return fmt.Errorf("network id must be exactly 3 digits")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("network id must be exactly 3 digits")
		}
	}
	return nil
}
