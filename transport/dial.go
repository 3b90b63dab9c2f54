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

package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DialTCP opens a TCP connection to ip:port, bounded by timeout (spec
// §4.2.1/§5: "TCP connect uses non-blocking + readiness + 5s timeout,
// never an unbounded blocking connect").
func DialTCP(ctx context.Context, ip string, port int, timeout time.Duration) (*LineChannel, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return nil, err
	}
	return NewLineChannel(conn), nil
}

// Listen opens a TCP listener on ip:port for accepting peer connections
// (spec §4.2.2).
func Listen(ip string, port int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("%s:%d", ip, port))
}
