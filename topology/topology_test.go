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

package topology

import (
	"context"
	"net"
	"testing"
	"time"

	"ndnode/config"
	"ndnode/neighbor"
	"ndnode/registry"
	"ndnode/transport"
)

// fakeRegistry runs a trivial UDP responder for one test.
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
			conn.WriteTo([]byte(handle(string(buf[:n]))), addr)
		}
	}()
	addr := conn.LocalAddr().(*net.UDPAddr)
	return addr.IP.String(), addr.Port
}

func TestJoinDirectoryEmptyListBecomesStandalone(t *testing.T) {
	ip, port := fakeRegistry(t, func(req string) string {
		if req == "NODES 076" {
			return "NODESLIST 076"
		}
		return "OKREG"
	})
	reg := registry.NewClient(ip, port, time.Second)
	m := New("127.0.0.1", 5000, neighbor.NewSet(10), reg, time.Second)

	n, err := m.JoinDirectory(context.Background(), "076")
	if err != nil {
		t.Fatal(err)
	}
	if n != nil {
		t.Fatal("expected no neighbor when the registry reports no peers")
	}
	if !m.InNetwork || m.NetID != "076" {
		t.Fatalf("expected joined network 076, got in_network=%v netid=%q", m.InNetwork, m.NetID)
	}
	if !m.Registered {
		t.Fatal("expected Registered after a directory-assisted standalone REG")
	}
}

func TestJoinDirectoryRejectsBadNetID(t *testing.T) {
	m := New("127.0.0.1", 5000, neighbor.NewSet(10), nil, time.Second)
	if _, err := m.JoinDirectory(context.Background(), "76"); err == nil {
		t.Fatal("expected validation error for a non-3-digit netid")
	}
}

func TestJoinDirectStandalone(t *testing.T) {
	m := New("127.0.0.1", 5000, neighbor.NewSet(10), nil, time.Second)
	n, err := m.JoinDirect(context.Background(), "0.0.0.0", 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != nil {
		t.Fatal("expected no neighbor for standalone network creation")
	}
	if !m.InNetwork || m.NetID != config.StandaloneNetID {
		t.Fatalf("expected standalone network %q, got in_network=%v netid=%q", config.StandaloneNetID, m.InNetwork, m.NetID)
	}
	if m.Registered {
		t.Fatal("direct join sends no REG, Registered must stay false")
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	m := New("127.0.0.1", 5000, neighbor.NewSet(10), nil, time.Second)
	m.InNetwork = true
	m.NetID = "123"
	m.Leave()
	if m.InNetwork || m.NetID != "" {
		t.Fatal("expected membership cleared after Leave")
	}
	m.Leave() // idempotent: calling again on an already-outside node is a no-op
	if m.InNetwork || m.NetID != "" {
		t.Fatal("expected Leave to remain a no-op when already outside a network")
	}
}

// acceptOne starts a TCP listener, accepts exactly one connection in the
// background, and returns its address and the accepted connection's
// LineChannel (for the test to drive the peer side of a handshake).
func acceptOne(t *testing.T) (string, int, chan *transport.LineChannel) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	ch := make(chan *transport.LineChannel, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ch <- transport.NewLineChannel(conn)
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, ch
}

func TestRepairCaseAConnectsToSafety(t *testing.T) {
	safetyIP, safetyPort, accepted := acceptOne(t)

	m := New("127.0.0.1", 9000, neighbor.NewSet(10), nil, time.Second)
	departed, err := m.Neighbors.Add("127.0.0.1", 9100, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Neighbors.SetExternal(departed.Iface)
	m.Neighbors.SetSafety(safetyIP, safetyPort)

	kase, n, err := m.Repair(departed.Iface, "127.0.0.1", 9100)
	if err != nil {
		t.Fatal(err)
	}
	if kase != RepairCaseA {
		t.Fatalf("expected case A, got %v", kase)
	}
	if n == nil || !m.Neighbors.IsExternal(n.Iface) {
		t.Fatal("expected new external neighbor from case A")
	}

	select {
	case peerCh := <-accepted:
		line, err := peerCh.ReadLine(nil)
		if err != nil {
			t.Fatal(err)
		}
		if line != "ENTRY 127.0.0.1 9000" {
			t.Fatalf("expected ENTRY from repairing node, got %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}
}

func TestRepairCaseBPromotesInternal(t *testing.T) {
	m := New("127.0.0.1", 9000, neighbor.NewSet(10), nil, time.Second)
	departed, _ := m.Neighbors.Add("127.0.0.1", 9100, nil)
	m.Neighbors.SetExternal(departed.Iface)
	m.Neighbors.SetSafety(m.SelfIP, m.SelfPort) // self is own safety

	safetyIP2, safetyPort2, accepted := acceptOne(t)
	internalPeer, err := m.Neighbors.Add(safetyIP2, safetyPort2, nil)
	if err != nil {
		t.Fatal(err)
	}
	ch, err := transport.DialTCP(context.Background(), safetyIP2, safetyPort2, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	internalPeer.Channel = ch
	if err := m.Neighbors.Rewrite(internalPeer.Iface, safetyIP2, safetyPort2); err != nil {
		t.Fatal(err)
	}

	kase, n, err := m.Repair(departed.Iface, "127.0.0.1", 9100)
	if err != nil {
		t.Fatal(err)
	}
	if kase != RepairCaseB {
		t.Fatalf("expected case B, got %v", kase)
	}
	if n != nil {
		t.Fatal("case B promotes an existing internal neighbor, it does not dial a new one")
	}
	if !m.Neighbors.IsExternal(internalPeer.Iface) {
		t.Fatal("expected internal neighbor promoted to external")
	}
	if !m.Neighbors.IsSelfSafety(m.SelfIP, m.SelfPort) {
		t.Fatal("expected self to remain its own safety after case B")
	}

	select {
	case peerCh := <-accepted:
		line, err := peerCh.ReadLine(nil)
		if err != nil {
			t.Fatal(err)
		}
		if line != "ENTRY 127.0.0.1 9000" {
			t.Fatalf("expected ENTRY to promoted neighbor, got %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}
}

func TestRepairCaseCRevertsToStandalone(t *testing.T) {
	m := New("127.0.0.1", 9000, neighbor.NewSet(10), nil, time.Second)
	departed, _ := m.Neighbors.Add("127.0.0.1", 9100, nil)
	m.Neighbors.SetExternal(departed.Iface)
	m.Neighbors.SetSafety(m.SelfIP, m.SelfPort)

	kase, n, err := m.Repair(departed.Iface, "127.0.0.1", 9100)
	if err != nil {
		t.Fatal(err)
	}
	if kase != RepairCaseC {
		t.Fatalf("expected case C, got %v", kase)
	}
	if n != nil {
		t.Fatal("case C never dials anyone")
	}
	if _, ok := m.Neighbors.External(); ok {
		t.Fatal("expected no external neighbor after case C")
	}
	if _, _, ok := m.Neighbors.Safety(); ok {
		t.Fatal("expected no safety neighbor after case C")
	}
}

func TestRepairNoopWhenDepartedWasNotExternal(t *testing.T) {
	m := New("127.0.0.1", 9000, neighbor.NewSet(10), nil, time.Second)
	ext, _ := m.Neighbors.Add("127.0.0.1", 9100, nil)
	m.Neighbors.SetExternal(ext.Iface)
	internal, _ := m.Neighbors.Add("127.0.0.1", 9200, nil)

	kase, n, err := m.Repair(internal.Iface, "127.0.0.1", 9200)
	if err != nil {
		t.Fatal(err)
	}
	if kase != RepairNone || n != nil {
		t.Fatal("expected no repair when the departed neighbor was not external")
	}
	if !m.Neighbors.IsExternal(ext.Iface) {
		t.Fatal("expected external neighbor untouched")
	}
}
