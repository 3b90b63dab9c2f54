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

package neighbor

import "testing"

func TestAddAllocatesSequentialIds(t *testing.T) {
	s := NewSet(10)
	n1, err := s.Add("10.0.0.1", 4000, nil)
	if err != nil {
		t.Fatal(err)
	}
	n2, err := s.Add("10.0.0.2", 4001, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n1.Iface != 1 || n2.Iface != 2 {
		t.Fatalf("expected ids 1, 2, got %d, %d", n1.Iface, n2.Iface)
	}
}

func TestAddNeverIssuesReservedIds(t *testing.T) {
	s := NewSet(4) // usable ids: 1, 2 only (0 and 3 reserved)
	if _, err := s.Add("a", 1, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add("b", 2, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add("c", 3, nil); err != ErrInterfacesExhausted {
		t.Fatalf("expected ErrInterfacesExhausted, got %v", err)
	}
}

func TestRewritePromotesToInternal(t *testing.T) {
	s := NewSet(10)
	n, _ := s.Add("192.168.1.5", 55432, nil) // provisional accepted port
	if n.Role != RoleCandidate {
		t.Fatal("expected candidate role before ENTRY")
	}
	if err := s.Rewrite(n.Iface, "192.168.1.5", 5000); err != nil {
		t.Fatal(err)
	}
	if n.Role != RoleInternal {
		t.Fatal("expected internal role after ENTRY")
	}
	if n.Port != 5000 {
		t.Fatalf("expected rewritten port 5000, got %d", n.Port)
	}
}

func TestRewriteUnknownInterface(t *testing.T) {
	s := NewSet(10)
	if err := s.Rewrite(99, "a", 1); err == nil {
		t.Fatal("expected error for unknown interface")
	}
}

func TestExternalBookkeeping(t *testing.T) {
	s := NewSet(10)
	n1, _ := s.Add("a", 1, nil)
	n2, _ := s.Add("b", 2, nil)

	s.SetExternal(n1.Iface)
	if ext, ok := s.External(); !ok || ext.Iface != n1.Iface {
		t.Fatal("expected n1 external")
	}
	if !s.IsExternal(n1.Iface) || s.IsExternal(n2.Iface) {
		t.Fatal("IsExternal mismatch")
	}

	s.Remove(n1.Iface)
	if _, ok := s.External(); ok {
		t.Fatal("expected external cleared after removing the external neighbor")
	}
	if _, ok := s.Get(n1.Iface); ok {
		t.Fatal("expected n1 gone from set")
	}
}

func TestInternalMembership(t *testing.T) {
	s := NewSet(10)
	n1, _ := s.Add("a", 1, nil)
	n2, _ := s.Add("b", 2, nil)
	if err := s.Rewrite(n1.Iface, "a", 5000); err != nil {
		t.Fatal(err)
	}

	internal := s.Internal()
	if len(internal) != 1 || internal[0].Iface != n1.Iface {
		t.Fatalf("expected only n1 internal, got %v", internal)
	}
	_ = n2
}

func TestSafetySetAndClear(t *testing.T) {
	s := NewSet(10)
	s.SetSafety("10.0.0.9", 6000)
	ip, port, ok := s.Safety()
	if !ok || ip != "10.0.0.9" || port != 6000 {
		t.Fatalf("unexpected safety: %s %d %v", ip, port, ok)
	}
	if !s.IsSelfSafety("10.0.0.9", 6000) {
		t.Fatal("expected self-safety match")
	}
	s.SetSafety("", 0)
	if _, _, ok := s.Safety(); ok {
		t.Fatal("expected safety cleared")
	}
}
