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

// Package node wires C1-C6 into one process singleton (spec §2/§3) and
// drives them from a single-threaded event loop (spec §4.6/§5, C7).
// Grounded on the teacher's core.Core: one process-wide struct built in
// New, a message pump goroutine reading off a single dispatch channel
// fed by goroutine-per-source readers, and a Shutdown that tears
// everything down in the same order it was built.
package node

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/bfix/gospel/logger"

	"ndnode/config"
	"ndnode/forward"
	"ndnode/neighbor"
	"ndnode/pit"
	"ndnode/registry"
	"ndnode/store"
	"ndnode/topology"
	"ndnode/transport"
)

// Node aggregates one process's runtime state.
type Node struct {
	Cfg *config.NodeConfig

	Store     *store.Store
	PIT       *pit.Table
	Neighbors *neighbor.Set
	Topology  *topology.Manager
	Forward   *forward.Engine
	Registry  *registry.Client

	listener net.Listener
	events   chan event

	// Out receives lines meant for the operator (retrieval outcomes
	// reported asynchronously, well after the triggering "retrieve"
	// command has returned — spec §4.4.2/§5). Defaults to os.Stdout.
	Out *os.File
}

// New builds a Node and binds its TCP listener. The registry client is
// nil when no registry address was configured; JoinDirectory then fails
// at the first NODES round trip, matching "transient I/O" error
// handling (spec §7) rather than a nil-pointer panic.
func New(cfg *config.NodeConfig) (*Node, error) {
	ln, err := transport.Listen(cfg.ListenIP, cfg.ListenPort)
	if err != nil {
		return nil, fmt.Errorf("node: listen %s:%d: %w", cfg.ListenIP, cfg.ListenPort, err)
	}

	var reg *registry.Client
	if cfg.RegistryIP != "" {
		reg = registry.NewClient(cfg.RegistryIP, cfg.RegistryPort, time.Duration(config.RegistryTimeoutSecs)*time.Second)
	}

	st := store.New(cfg.CacheCapacity)
	pitTable := pit.New(time.Duration(config.InterestTimeoutSecs) * time.Second)
	neighbors := neighbor.NewSet(cfg.MaxInterface)
	topo := topology.New(cfg.ListenIP, cfg.ListenPort, neighbors, reg, time.Duration(config.ConnectTimeoutSecs)*time.Second)
	localUI := cfg.MaxInterface - 1
	fwd := forward.New(st, pitTable, neighbors, localUI)

	n := &Node{
		Cfg:       cfg,
		Store:     st,
		PIT:       pitTable,
		Neighbors: neighbors,
		Topology:  topo,
		Forward:   fwd,
		Registry:  reg,
		listener:  ln,
		events:    make(chan event),
		Out:       os.Stdout,
	}
	fwd.Notify = n.reportRetrieval
	return n, nil
}

// reportRetrieval prints the eventual outcome of a retrieval that did
// not resolve synchronously (spec §4.4.2: the CLI command itself only
// reports Found/Pending/Failed-to-start; a Pending retrieval's real
// answer surfaces later, out of band, once OBJECT/NOOBJECT/timeout
// resolves the PIT entry).
func (n *Node) reportRetrieval(name string, found bool) {
	if found {
		fmt.Fprintf(n.Out, "%s found\n", name)
		return
	}
	fmt.Fprintf(n.Out, "%s not found\n", name)
}

// spawnReader starts a goroutine that feeds every line read from nb's
// channel into the shared dispatch channel, tagged with its interface
// id; a closed connection is reported once as evPeerClosed. This is the
// "goroutine-per-source fan-in" half of C7: reading bytes is concurrent,
// processing each line happens only inside the single loop goroutine.
func (n *Node) spawnReader(nb *neighbor.Neighbor) {
	go func() {
		for {
			line, err := nb.Channel.ReadLine(nil)
			if err != nil {
				n.events <- event{kind: evPeerClosed, iface: nb.Iface, ip: nb.IP, port: nb.Port}
				return
			}
			n.events <- event{kind: evPeer, iface: nb.Iface, line: line}
		}
	}()
}

// ListenAddr returns the bound listener address (useful when ListenPort
// was 0 and the OS picked one).
func (n *Node) ListenAddr() net.Addr {
	return n.listener.Addr()
}

// Close releases the listener and every neighbor socket without
// performing the protocol-level LEAVE (UNREG/topology reset); use Leave
// for an orderly network exit, Close for final process teardown.
func (n *Node) Close() {
	n.listener.Close()
	for _, nb := range n.Neighbors.All() {
		if nb.Channel != nil {
			nb.Channel.Close()
		}
	}
}

// Leave performs the orderly exit of §5/§6 "leave"/"l": UNREG with the
// registry if the current membership was registry-assisted, close every
// peer socket, and reset topology bookkeeping. Idempotent when already
// outside a network (spec §10 supplemented behavior), mirroring
// topology.Manager.Leave's own idempotence.
func (n *Node) Leave() {
	if n.Topology.Registered && n.Registry != nil {
		if err := n.Registry.Unreg(n.Topology.NetID, n.Cfg.ListenIP, n.Cfg.ListenPort); err != nil {
			logger.Printf(logger.WARN, "[node] UNREG failed: %v", err)
		}
	}
	for _, nb := range n.Neighbors.All() {
		if nb.Channel != nil {
			nb.Channel.Close()
		}
		n.Neighbors.Remove(nb.Iface)
	}
	n.Topology.Leave()
}
