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

// Package registry implements the UDP registration client (spec §4.5,
// C4): REG/UNREG/NODES requests against a directory node, one blocking
// round trip per call with a 5s timeout and no retries. Grounded on the
// teacher's synchronous-RPC client style and built on transport.RequestUDP.
package registry

import (
	"fmt"
	"strings"
	"time"

	"ndnode/transport"
	"ndnode/wire"
)

// Client is a registry endpoint plus the fixed per-request timeout.
type Client struct {
	IP      string
	Port    int
	Timeout time.Duration
}

// NewClient creates a registry client bound to a fixed registry address.
func NewClient(ip string, port int, timeout time.Duration) *Client {
	return &Client{IP: ip, Port: port, Timeout: timeout}
}

func (c *Client) roundTrip(req wire.Message) (string, error) {
	if c == nil {
		return "", fmt.Errorf("no registry address configured")
	}
	return transport.RequestUDP(c.IP, c.Port, req.Encode(), c.Timeout)
}

func splitReply(reply string) (first string, rest []string) {
	lines := strings.Split(strings.TrimRight(reply, "\r\n"), "\n")
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], lines[1:]
}

// Reg registers (net, ip, port) with the registry, expecting OKREG.
func (c *Client) Reg(net, ip string, port int) error {
	reply, err := c.roundTrip(&wire.RegMsg{Net: net, IP: ip, Port: port})
	if err != nil {
		return fmt.Errorf("registry: REG: %w", err)
	}
	first, _ := splitReply(reply)
	msg, err := wire.Parse(first, nil)
	if err != nil {
		return fmt.Errorf("registry: REG: bad reply %q: %w", reply, err)
	}
	if _, ok := msg.(*wire.OKRegMsg); !ok {
		return fmt.Errorf("registry: REG: unexpected reply %q", reply)
	}
	return nil
}

// Unreg undoes a previous Reg, expecting OKUNREG.
func (c *Client) Unreg(net, ip string, port int) error {
	reply, err := c.roundTrip(&wire.UnregMsg{Net: net, IP: ip, Port: port})
	if err != nil {
		return fmt.Errorf("registry: UNREG: %w", err)
	}
	first, _ := splitReply(reply)
	msg, err := wire.Parse(first, nil)
	if err != nil {
		return fmt.Errorf("registry: UNREG: bad reply %q: %w", reply, err)
	}
	if _, ok := msg.(*wire.OKUnregMsg); !ok {
		return fmt.Errorf("registry: UNREG: unexpected reply %q", reply)
	}
	return nil
}

// Nodes asks the registry for the known members of net, expecting a
// NODESLIST reply (spec §4.2.1 step 2).
func (c *Client) Nodes(net string) ([]wire.NodeAddr, error) {
	reply, err := c.roundTrip(&wire.NodesMsg{Net: net})
	if err != nil {
		return nil, fmt.Errorf("registry: NODES: %w", err)
	}
	first, rest := splitReply(reply)
	msg, err := wire.Parse(first, rest)
	if err != nil {
		return nil, fmt.Errorf("registry: NODES: bad reply %q: %w", reply, err)
	}
	nl, ok := msg.(*wire.NodesListMsg)
	if !ok {
		return nil, fmt.Errorf("registry: NODES: unexpected reply %q", reply)
	}
	if nl.Net != net {
		return nil, fmt.Errorf("registry: NODES: reply net %q does not match request %q", nl.Net, net)
	}
	return nl.Nodes, nil
}
