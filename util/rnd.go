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

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
)

// RndUInt32 returns a new 32-bit unsigned random integer.
func RndUInt32() uint32 {
	b := make([]byte, 4)
	rand.Read(b)
	var v uint32
	binary.Read(bytes.NewBuffer(b), binary.BigEndian, &v)
	return v
}

// PickIndex returns a uniformly random index in [0,n) for picking a
// random element from a list of size n. Used to pick one entry of a
// NODESLIST reply (spec §4.2.1 step 5). Callers must ensure n > 0.
func PickIndex(n int) int {
	return int(RndUInt32() % uint32(n))
}
