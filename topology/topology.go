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

// Package topology implements the topology manager (spec §4.2, C5):
// directory-assisted and direct join, the ENTRY/SAFE handshake, and
// repair on peer loss. Event-driven reconfiguration is grounded on the
// teacher's routing-table peer-churn handling (RtcConnect/RtcDisconnect),
// generalized from a k-bucket table to a single external link plus an
// internal set.
package topology

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bfix/gospel/logger"

	"ndnode/config"
	"ndnode/neighbor"
	"ndnode/registry"
	"ndnode/transport"
	"ndnode/util"
	"ndnode/wire"
)

// ErrJoinFailed covers any failed join (validation, timeout, registry
// mismatch). A join that fails closes and removes any peer connection it
// opened, so membership and the neighbor set stay as they were.
var ErrJoinFailed = errors.New("topology: join failed")

// RepairCase identifies which of §4.2.4's three repair cases ran, for
// logging and test assertions.
type RepairCase int

const (
	RepairNone RepairCase = iota
	RepairCaseA
	RepairCaseB
	RepairCaseC
)

func (c RepairCase) String() string {
	switch c {
	case RepairCaseA:
		return "A"
	case RepairCaseB:
		return "B"
	case RepairCaseC:
		return "C"
	default:
		return "none"
	}
}

// Manager owns one node's network membership and neighbor topology.
type Manager struct {
	SelfIP   string
	SelfPort int

	Neighbors *neighbor.Set
	registry  *registry.Client

	connectTimeout time.Duration // spec §5, default config.ConnectTimeoutSecs

	InNetwork bool
	NetID     string
	// Registered tracks whether the current membership was established
	// via the registry (JoinDirectory sent REG), so Leave knows whether
	// an UNREG is owed (spec §4.2.1: direct join sends no REG at all).
	Registered bool
}

// New creates a topology manager for one node.
func New(selfIP string, selfPort int, neighbors *neighbor.Set, reg *registry.Client, connectTimeout time.Duration) *Manager {
	return &Manager{
		SelfIP:         selfIP,
		SelfPort:       selfPort,
		Neighbors:      neighbors,
		registry:       reg,
		connectTimeout: connectTimeout,
	}
}

func (m *Manager) dial(ctx context.Context, ip string, port int) (*transport.LineChannel, error) {
	return transport.DialTCP(ctx, ip, port, m.connectTimeout)
}

func (m *Manager) sendTo(n *neighbor.Neighbor, msg wire.Message) error {
	return n.Channel.WriteLine(msg.Encode(), nil)
}

// PropagateSafe sends SAFE, carrying the current external address, to
// every internal neighbor (spec §4.2.3). A no-op while standalone.
func (m *Manager) PropagateSafe() {
	ext, ok := m.Neighbors.External()
	if !ok {
		return
	}
	msg := &wire.SafeMsg{IP: ext.IP, Port: ext.Port}
	for _, n := range m.Neighbors.Internal() {
		if err := m.sendTo(n, msg); err != nil {
			logger.Printf(logger.WARN, "[topology] %s: SAFE propagate to iface %d failed: %v", m.self(), n.Iface, err)
		}
	}
}

func (m *Manager) self() string { return fmt.Sprintf("%s:%d", m.SelfIP, m.SelfPort) }

// connectAsExternal dials ip:port, registers the connection as a fresh
// neighbor, sends our ENTRY, and marks it external. It does not touch
// safety or propagate SAFE; callers do that per their own flow.
func (m *Manager) connectAsExternal(ctx context.Context, ip string, port int) (*neighbor.Neighbor, error) {
	ch, err := m.dial(ctx, ip, port)
	if err != nil {
		return nil, fmt.Errorf("topology: connect to %s:%d: %w", ip, port, err)
	}
	n, err := m.Neighbors.Add(ip, port, ch)
	if err != nil {
		ch.Close()
		return nil, err
	}
	if err := m.Neighbors.Rewrite(n.Iface, ip, port); err != nil {
		ch.Close()
		return nil, err
	}
	m.Neighbors.SetExternal(n.Iface)
	if err := m.sendTo(n, &wire.EntryMsg{IP: m.SelfIP, Port: m.SelfPort}); err != nil {
		ch.Close()
		m.Neighbors.Remove(n.Iface)
		return nil, fmt.Errorf("topology: send ENTRY to %s:%d: %w", ip, port, err)
	}
	return n, nil
}

// JoinDirectory performs the directory-assisted join (spec §4.2.1,
// "JOIN netid"). On success the returned neighbor is non-nil only if a
// peer connection was opened (standalone registration returns nil, nil).
func (m *Manager) JoinDirectory(ctx context.Context, netid string) (*neighbor.Neighbor, error) {
	if err := util.ValidateNetID(netid); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}
	nodes, err := m.registry.Nodes(netid)
	if err != nil {
		return nil, fmt.Errorf("%w: NODES: %v", ErrJoinFailed, err)
	}

	var candidates []wire.NodeAddr
	for _, n := range nodes {
		if n.IP == "0.0.0.0" || n.Port == 0 {
			continue
		}
		if n.IP == m.SelfIP && n.Port == m.SelfPort {
			continue
		}
		candidates = append(candidates, n)
	}

	if len(candidates) == 0 {
		if err := m.registry.Reg(netid, m.SelfIP, m.SelfPort); err != nil {
			return nil, fmt.Errorf("%w: REG: %v", ErrJoinFailed, err)
		}
		m.InNetwork = true
		m.NetID = netid
		m.Registered = true
		return nil, nil
	}

	pick := candidates[util.PickIndex(len(candidates))]
	n, err := m.connectAsExternal(ctx, pick.IP, pick.Port)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}
	if err := m.registry.Reg(netid, m.SelfIP, m.SelfPort); err != nil {
		n.Channel.Close()
		m.Neighbors.Remove(n.Iface)
		return nil, fmt.Errorf("%w: REG: %v", ErrJoinFailed, err)
	}
	m.InNetwork = true
	m.NetID = netid
	m.Registered = true
	return n, nil
}

// JoinDirect performs a direct join (spec §4.2.1, "DJOIN ip port"): no
// registry contact. ip "0.0.0.0" creates a new standalone network under
// config.StandaloneNetID instead of dialing anywhere.
func (m *Manager) JoinDirect(ctx context.Context, ip string, port int) (*neighbor.Neighbor, error) {
	if ip == "0.0.0.0" {
		m.InNetwork = true
		m.NetID = config.StandaloneNetID
		return nil, nil
	}
	n, err := m.connectAsExternal(ctx, ip, port)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}
	m.InNetwork = true
	m.NetID = config.StandaloneNetID
	return n, nil
}

// HandleEntry processes an ENTRY received on iface (spec §4.2.2). When
// this was our first peer, the accepting side's own safety is set to the
// new peer symmetrically with the SAFE it sends out, so that a freshly
// joined two-node network satisfies "each node's safety is the other"
// (spec §8 scenario S2) — §4.2.2 only specifies the message sent to the
// peer, not the acceptor's own safety field, so this is the reading
// chosen to make the two-node case consistent.
func (m *Manager) HandleEntry(iface int, msg *wire.EntryMsg) error {
	n, ok := m.Neighbors.Get(iface)
	if !ok {
		return fmt.Errorf("topology: ENTRY on unknown interface %d", iface)
	}
	if err := m.Neighbors.Rewrite(iface, msg.IP, msg.Port); err != nil {
		return err
	}

	if m.Neighbors.IsExternal(iface) {
		// This is the reply leg of a join we ourselves initiated on this
		// same interface (connectAsExternal already sent our ENTRY and
		// marked it external); nothing left to do but learn the address,
		// already done by Rewrite above. Our own safety is set later,
		// when the peer's SAFE arrives.
		return nil
	}

	if _, hasExternal := m.Neighbors.External(); !hasExternal {
		m.Neighbors.SetExternal(iface)
		m.Neighbors.SetSafety(msg.IP, msg.Port)
		if err := m.sendTo(n, &wire.EntryMsg{IP: m.SelfIP, Port: m.SelfPort}); err != nil {
			return err
		}
		return m.sendTo(n, &wire.SafeMsg{IP: m.SelfIP, Port: m.SelfPort})
	}

	ext, _ := m.Neighbors.External()
	return m.sendTo(n, &wire.SafeMsg{IP: ext.IP, Port: ext.Port})
}

// HandleSafe processes a SAFE received on iface (spec §4.2.3): the
// receiver adopts the carried address verbatim, no further rewriting.
func (m *Manager) HandleSafe(iface int, msg *wire.SafeMsg) error {
	if _, ok := m.Neighbors.Get(iface); !ok {
		return fmt.Errorf("topology: SAFE on unknown interface %d", iface)
	}
	m.Neighbors.SetSafety(msg.IP, msg.Port)
	return nil
}

// Repair runs §4.2.4 after the neighbor at iface (whose last known
// address was departedIP:departedPort) has disconnected. It removes the
// departed neighbor from the Set itself (it needs the pre-removal
// external marker to tell whether repair is needed at all) — the caller
// owns only the socket's own teardown (it is expected to already be
// closed by the time Repair runs). The returned neighbor is non-nil only
// in Case A.
func (m *Manager) Repair(departedIface int, departedIP string, departedPort int) (RepairCase, *neighbor.Neighbor, error) {
	wasExternal := m.Neighbors.IsExternal(departedIface)
	m.Neighbors.Remove(departedIface)
	if !wasExternal {
		return RepairNone, nil, nil
	}

	safetyIP, safetyPort, haveSafety := m.Neighbors.Safety()
	isSelfSafety := haveSafety && safetyIP == m.SelfIP && safetyPort == m.SelfPort
	isDepartedSafety := haveSafety && safetyIP == departedIP && safetyPort == departedPort
	internal := m.Neighbors.Internal()

	switch {
	case haveSafety && !isSelfSafety && !isDepartedSafety:
		// Case A: safety is a reachable third party.
		ctx, cancel := context.WithTimeout(context.Background(), m.connectTimeout)
		defer cancel()
		n, err := m.connectAsExternal(ctx, safetyIP, safetyPort)
		if err != nil {
			return RepairCaseA, nil, err
		}
		m.PropagateSafe()
		return RepairCaseA, n, nil

	case len(internal) > 0:
		// Case B: self is own safety (or safety was the departed peer)
		// and an internal neighbor is available for immediate promotion.
		promoted := internal[0]
		m.Neighbors.SetExternal(promoted.Iface)
		m.Neighbors.SetSafety(m.SelfIP, m.SelfPort)
		if err := m.sendTo(promoted, &wire.EntryMsg{IP: m.SelfIP, Port: m.SelfPort}); err != nil {
			return RepairCaseB, nil, err
		}
		m.PropagateSafe()
		return RepairCaseB, nil, nil

	default:
		// Case C: isolated. Revert to standalone (topology-wise only;
		// registry membership is untouched by a peer-loss event).
		m.Neighbors.SetSafety("", 0)
		return RepairCaseC, nil, nil
	}
}

// Leave clears network membership state (spec §6 "leave"/"l"). The
// caller is responsible for UNREG and closing peer sockets; Leave only
// resets topology bookkeeping, and is idempotent when already outside a
// network (spec.md §10 supplemented behavior).
func (m *Manager) Leave() {
	m.InNetwork = false
	m.NetID = ""
	m.Registered = false
	m.Neighbors.ClearExternal()
	m.Neighbors.SetSafety("", 0)
}
