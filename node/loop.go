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

package node

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/bfix/gospel/logger"

	"ndnode/topology"
	"ndnode/transport"
	"ndnode/wire"
)

// Dispatcher parses and executes one CLI line against n, returning text
// to print (possibly empty) and whether the process should now exit.
// Run takes this as a parameter rather than importing the cli package
// directly, the same separation the teacher keeps between core.Core and
// its callers by taking a plain SendFcn instead of a concrete responder
// type (transport.TransportResponder.SendFcn) — cli.Dispatch has this
// exact shape and is passed in by cmd/ndnode.
type Dispatcher func(ctx context.Context, n *Node, line string) (out string, exit bool)

// eventKind identifies the source of one dispatch-channel event.
type eventKind int

const (
	evStdin eventKind = iota
	evStdinClosed
	evAccept
	evPeer
	evPeerClosed
)

// event is the single shape every goroutine-per-source reader uses to
// hand work to the one loop goroutine (spec §5: "no shared mutable
// state visible across threads" — only this channel is shared).
type event struct {
	kind eventKind
	iface int
	ip    string
	port  int
	line  string
	conn  net.Conn
}

// sweepInterval is how often the loop runs the PIT timeout sweep. Spec
// §4.6 ties this to the same 5s readiness-wait iteration the original
// uses; a ticker plays that role here without busy-waiting.
const sweepInterval = time.Second

// Run drives the event loop until ctx is cancelled (spec §4.6/§5, C7):
// stdin, the TCP listener's accept loop, and every neighbor connection
// each get their own reader goroutine funneling into n.events; this
// goroutine alone processes them, so no locking is needed around Store,
// PIT, Neighbors, or Topology.
func (n *Node) Run(ctx context.Context, dispatch Dispatcher) {
	go n.readStdin()
	go n.acceptLoop()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.Leave()
			return
		case ev := <-n.events:
			n.handle(ctx, ev, dispatch)
		case <-ticker.C:
			n.Forward.Sweep()
		}
	}
}

func (n *Node) readStdin() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		n.Command(scanner.Text())
	}
	n.events <- event{kind: evStdinClosed}
}

// Command enqueues one line of CLI input for processing by Run's loop
// goroutine, the same path stdin uses. Safe to call from any goroutine:
// only the channel send is shared, state mutation still happens
// exclusively inside the loop once Dispatcher runs it.
func (n *Node) Command(line string) {
	n.events <- event{kind: evStdin, line: line}
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			return // listener closed, e.g. by Close during shutdown
		}
		n.events <- event{kind: evAccept, conn: conn}
	}
}

func (n *Node) handle(ctx context.Context, ev event, dispatch Dispatcher) {
	switch ev.kind {
	case evStdin:
		n.handleStdin(ctx, ev.line, dispatch)
	case evStdinClosed:
		n.handleStdin(ctx, "exit", dispatch)
	case evAccept:
		n.handleAccept(ev.conn)
	case evPeer:
		n.handlePeerLine(ev.iface, ev.line)
	case evPeerClosed:
		n.handlePeerClosed(ev.iface, ev.ip, ev.port)
	}
}

// handleStdin dispatches one CLI line and prints its result, exactly as
// a thin text-dispatch front end would (spec §1 "out of scope" puts the
// interactive parser outside the core; here it is the cli package, fed
// in as dispatch).
func (n *Node) handleStdin(ctx context.Context, line string, dispatch Dispatcher) {
	out, exit := dispatch(ctx, n, line)
	if out != "" {
		fmt.Fprintln(n.Out, out)
	}
	if exit {
		os.Exit(0)
	}
}

func (n *Node) handleAccept(conn net.Conn) {
	ch := transport.NewLineChannel(conn)
	ip, port := "", 0
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		ip, port = tcpAddr.IP.String(), tcpAddr.Port
	}
	// Provisional: the accepted ephemeral port is not the peer's
	// listening port until its ENTRY arrives and rewrites it (spec §4.3).
	nb, err := n.Neighbors.Add(ip, port, ch)
	if err != nil {
		logger.Printf(logger.WARN, "[node] accept from %s: %v", ip, err)
		conn.Close()
		return
	}
	n.spawnReader(nb)
}

func (n *Node) handlePeerLine(iface int, line string) {
	msg, err := wire.Parse(line, nil)
	if err != nil {
		logger.Printf(logger.WARN, "[node] iface %d: %v", iface, err)
		return
	}
	switch m := msg.(type) {
	case *wire.EntryMsg:
		if err := n.Topology.HandleEntry(iface, m); err != nil {
			logger.Printf(logger.WARN, "[node] ENTRY on iface %d: %v", iface, err)
		}
	case *wire.SafeMsg:
		if err := n.Topology.HandleSafe(iface, m); err != nil {
			logger.Printf(logger.WARN, "[node] SAFE on iface %d: %v", iface, err)
		}
	case *wire.InterestMsg:
		n.Forward.HandleInterest(iface, m.Name)
	case *wire.ObjectMsg:
		n.Forward.HandleObject(iface, m.Name)
	case *wire.NoObjectMsg:
		n.Forward.HandleNoObject(iface, m.Name)
	default:
		logger.Printf(logger.WARN, "[node] iface %d: unexpected tag %s", iface, msg.Tag())
	}
}

func (n *Node) handlePeerClosed(iface int, ip string, port int) {
	kase, nb, err := n.Topology.Repair(iface, ip, port)
	if err != nil {
		logger.Printf(logger.WARN, "[node] repair iface %d: %v", iface, err)
	}
	if kase != topology.RepairNone {
		logger.Printf(logger.INFO, "[node] repair case %s after losing iface %d", kase, iface)
	}
	if nb != nil {
		n.spawnReader(nb)
	}
}
