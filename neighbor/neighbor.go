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

// Package neighbor implements the neighbor set (spec §3, §4.3, C3): the
// per-peer TCP connections of one node, the interface-id allocator, the
// external/internal role bookkeeping, and the safety-neighbor pointer.
// Built on the teacher's thread-safe util.Map[K,V], the same way the
// teacher's routing table lets its JSON-RPC introspection read a
// consistent snapshot from outside the core event-loop goroutine.
package neighbor

import (
	"errors"
	"fmt"
	"sync"

	"ndnode/transport"
	"ndnode/util"
)

// Role distinguishes a freshly accepted/dialed connection awaiting its
// ENTRY handshake from a neighbor that has completed it. Per spec §4.2.2,
// "until ENTRY is received, no protocol-level identity decisions are
// taken" — Candidate marks exactly that window.
type Role int

const (
	// RoleCandidate is a connection with no confirmed listening address yet.
	RoleCandidate Role = iota
	// RoleInternal is a neighbor that has completed the ENTRY handshake
	// and is a member of the internal set (spec §4.2.2: both branches of
	// handling ENTRY end with the sender in the internal set).
	RoleInternal
)

func (r Role) String() string {
	if r == RoleInternal {
		return "internal"
	}
	return "candidate"
}

// ErrInterfacesExhausted is returned by Add once every usable interface
// id has been handed out (spec §9 open question: MAX_INTERFACE bounds
// simultaneous peers; raising it is an implementer's choice).
var ErrInterfacesExhausted = errors.New("neighbor: no free interface id")

// Neighbor is one peer connection (spec §3 entity "Neighbor").
type Neighbor struct {
	Iface int
	// IP/Port are the peer's listening address. Authoritative only once
	// ENTRY has been processed (see Set.Rewrite); until then they may
	// still carry the provisional accepted-connection address.
	IP      string
	Port    int
	Channel *transport.LineChannel
	Role    Role
	Created util.AbsoluteTime
}

func newNeighbor(iface int, ip string, port int, ch *transport.LineChannel) *Neighbor {
	return &Neighbor{
		Iface:   iface,
		IP:      ip,
		Port:    port,
		Channel: ch,
		Role:    RoleCandidate,
		Created: util.AbsoluteTimeNow(),
	}
}

// Set is the process-wide neighbor table plus topology bookkeeping. The
// neighbor table itself is backed by util.Map (thread-safe); the scalar
// external/safety fields below are only ever written by the event-loop
// goroutine but are read by the debug API (C9) from its own goroutine,
// so they carry their own mutex rather than relying on the map's.
type Set struct {
	neighbors *util.Map[int, *Neighbor]
	nextIface int
	maxIface  int

	mu            sync.RWMutex
	externalIface int // 0 = no external neighbor (0 is never a real iface)

	safetyIP   string
	safetyPort int
	haveSafety bool
}

// NewSet creates an empty neighbor set. maxIface is MAX_INTERFACE (spec
// §3/§9); ids 0 and maxIface-1 are reserved (local-UI guard and local-UI
// PIT pseudo-interface respectively), so real neighbors use [1, maxIface-2].
func NewSet(maxIface int) *Set {
	return &Set{
		neighbors: util.NewMap[int, *Neighbor](),
		nextIface: 1,
		maxIface:  maxIface,
	}
}

// Add allocates a fresh interface id for a newly accepted or dialed
// connection and registers it as a RoleCandidate neighbor. ip/port is
// the provisional address (the accepted remote port, or the dialed
// address for an outgoing connection) — see Rewrite.
func (s *Set) Add(ip string, port int, ch *transport.LineChannel) (*Neighbor, error) {
	if s.nextIface > s.maxIface-2 {
		return nil, ErrInterfacesExhausted
	}
	iface := s.nextIface
	s.nextIface++
	n := newNeighbor(iface, ip, port, ch)
	s.neighbors.Put(iface, n, 0)
	return n, nil
}

// Get returns the neighbor at the given interface id, if any.
func (s *Set) Get(iface int) (*Neighbor, bool) {
	return s.neighbors.Get(iface, 0)
}

// Remove detaches the interface from the set, clearing external status
// if it held it (spec §4.2.4 step 1). It does not close the neighbor's
// channel; the caller owns that.
func (s *Set) Remove(iface int) {
	s.neighbors.Delete(iface, 0)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.externalIface == iface {
		s.externalIface = 0
	}
}

// Rewrite overwrites the neighbor's listening address and promotes it to
// RoleInternal, implementing update_neighbor_info (spec §4.3, §4.2.2):
// the accepted port is provisional until the peer's own ENTRY line
// supplies its real listening address.
func (s *Set) Rewrite(iface int, ip string, port int) error {
	n, ok := s.neighbors.Get(iface, 0)
	if !ok {
		return fmt.Errorf("neighbor: no such interface %d", iface)
	}
	n.IP = ip
	n.Port = port
	n.Role = RoleInternal
	return nil
}

// SetExternal marks iface as the external neighbor. Per spec §3 invariant
// (i), at most one neighbor is ever external; a prior external marker is
// simply overwritten.
func (s *Set) SetExternal(iface int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalIface = iface
}

// ClearExternal clears the external marker without touching membership.
func (s *Set) ClearExternal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalIface = 0
}

// External returns the current external neighbor, if any.
func (s *Set) External() (*Neighbor, bool) {
	s.mu.RLock()
	iface := s.externalIface
	s.mu.RUnlock()
	if iface == 0 {
		return nil, false
	}
	return s.neighbors.Get(iface, 0)
}

// IsExternal reports whether iface is the current external neighbor.
func (s *Set) IsExternal(iface int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.externalIface != 0 && s.externalIface == iface
}

// Internal returns every neighbor in RoleInternal (spec §4.2.3:
// "propagates a SAFE to every internal neighbor").
func (s *Set) Internal() []*Neighbor {
	var out []*Neighbor
	_ = s.neighbors.ProcessRange(func(_ int, n *Neighbor, _ int) error {
		if n.Role == RoleInternal {
			out = append(out, n)
		}
		return nil
	}, true)
	return out
}

// All returns every neighbor in the set, for CLI/debug display.
func (s *Set) All() []*Neighbor {
	var out []*Neighbor
	_ = s.neighbors.ProcessRange(func(_ int, n *Neighbor, _ int) error {
		out = append(out, n)
		return nil
	}, true)
	return out
}

// SetSafety sets the safety neighbor verbatim (spec §4.2.3: "no further
// rewriting"). ip=="" clears it (standalone state).
func (s *Set) SetSafety(ip string, port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ip == "" {
		s.haveSafety = false
		s.safetyIP, s.safetyPort = "", 0
		return
	}
	s.haveSafety = true
	s.safetyIP, s.safetyPort = ip, port
}

// Safety returns the current safety-neighbor address, if set.
func (s *Set) Safety() (ip string, port int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.safetyIP, s.safetyPort, s.haveSafety
}

// IsSelfSafety reports whether the safety neighbor equals the node's own
// listen address (spec §4.2.4 Case B/C: "self is own safety").
func (s *Set) IsSelfSafety(selfIP string, selfPort int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.haveSafety && s.safetyIP == selfIP && s.safetyPort == selfPort
}

// Len returns the number of neighbors currently in the set.
func (s *Set) Len() int {
	return s.neighbors.Size()
}
