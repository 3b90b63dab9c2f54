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

package registry

import (
	"net"
	"strings"
	"testing"
	"time"
)

// fakeRegistry runs a trivial UDP echo-reply server for one test and
// returns its listen address.
func fakeRegistry(t *testing.T, handle func(req string) string) (string, int) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 4096)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			reply := handle(string(buf[:n]))
			conn.WriteTo([]byte(reply), addr)
		}
	}()

	addr := conn.LocalAddr().(*net.UDPAddr)
	return addr.IP.String(), addr.Port
}

func TestRegSuccess(t *testing.T) {
	ip, port := fakeRegistry(t, func(req string) string {
		if !strings.HasPrefix(req, "REG 076 ") {
			t.Fatalf("unexpected request %q", req)
		}
		return "OKREG"
	})
	c := NewClient(ip, port, time.Second)
	if err := c.Reg("076", "127.0.0.1", 5000); err != nil {
		t.Fatal(err)
	}
}

func TestUnregSuccess(t *testing.T) {
	ip, port := fakeRegistry(t, func(string) string { return "OKUNREG" })
	c := NewClient(ip, port, time.Second)
	if err := c.Unreg("076", "127.0.0.1", 5000); err != nil {
		t.Fatal(err)
	}
}

func TestNodesSuccess(t *testing.T) {
	ip, port := fakeRegistry(t, func(string) string {
		return "NODESLIST 076\n127.0.0.1 5000\n127.0.0.1 5001"
	})
	c := NewClient(ip, port, time.Second)
	nodes, err := c.Nodes("076")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 || nodes[0].Port != 5000 || nodes[1].Port != 5001 {
		t.Fatalf("unexpected nodes %v", nodes)
	}
}

func TestNodesEmptyList(t *testing.T) {
	ip, port := fakeRegistry(t, func(string) string { return "NODESLIST 076" })
	c := NewClient(ip, port, time.Second)
	nodes, err := c.Nodes("076")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Fatalf("expected no nodes, got %v", nodes)
	}
}

func TestRegUnexpectedReply(t *testing.T) {
	ip, port := fakeRegistry(t, func(string) string { return "OKUNREG" })
	c := NewClient(ip, port, time.Second)
	if err := c.Reg("076", "127.0.0.1", 5000); err == nil {
		t.Fatal("expected error on mismatched reply")
	}
}

func TestRegTimeout(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	addr := conn.LocalAddr().(*net.UDPAddr)

	c := NewClient(addr.IP.String(), addr.Port, 50*time.Millisecond)
	start := time.Now()
	if err := c.Reg("076", "127.0.0.1", 5000); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout took too long")
	}
}

func TestNodesNetMismatch(t *testing.T) {
	ip, port := fakeRegistry(t, func(string) string { return "NODESLIST 999\n127.0.0.1 5000" })
	c := NewClient(ip, port, time.Second)
	if _, err := c.Nodes("076"); err == nil {
		t.Fatal("expected net mismatch error")
	}
}
