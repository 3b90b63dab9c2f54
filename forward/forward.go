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

// Package forward implements the interest/data forwarding engine (spec
// §4.4, C2/C6): local retrieval, INTEREST/OBJECT/NOOBJECT handling, and
// the PIT timeout sweep. It ties together store, pit, and neighbor.
package forward

import (
	"github.com/bfix/gospel/logger"

	"ndnode/neighbor"
	"ndnode/pit"
	"ndnode/store"
	"ndnode/wire"
)

// Result is the outcome of a local retrieval request (spec §4.4.2).
type Result int

const (
	// Found means the name was already owned or cached locally.
	Found Result = iota
	// Pending means an INTEREST was fanned out and resolution will
	// arrive later via HandleObject/HandleNoObject/Sweep.
	Pending
	// Failed means the node is not in a network, has no peers, or every
	// forwarding attempt failed outright.
	Failed
)

// Engine is one node's forwarding engine.
type Engine struct {
	store     *store.Store
	pit       *pit.Table
	neighbors *neighbor.Set
	localUI   int // spec §3/§4.4.2: MAX_INTERFACE-1, the local-UI pseudo-interface

	// Notify reports the eventual outcome of a local-UI retrieval once it
	// resolves (spec §5: retrieval is asynchronous beyond the immediate
	// local-hit case). May be nil.
	Notify func(name string, found bool)
}

// New creates a forwarding engine. localUIIface is MAX_INTERFACE-1.
func New(st *store.Store, pitTable *pit.Table, neighbors *neighbor.Set, localUIIface int) *Engine {
	return &Engine{store: st, pit: pitTable, neighbors: neighbors, localUI: localUIIface}
}

// deliver resolves one PIT interface with either OBJECT or NOOBJECT: the
// local-UI interface is reported through Notify with no wire I/O: any
// other interface is a real neighbor socket (spec §4.4.4/§4.4.5 "dedupe
// by fd" is automatic here since interface ids are 1:1 with neighbors).
func (e *Engine) deliver(iface int, name string, found bool) {
	if iface == e.localUI {
		if e.Notify != nil {
			e.Notify(name, found)
		}
		return
	}
	n, ok := e.neighbors.Get(iface)
	if !ok {
		return
	}
	var msg wire.Message
	if found {
		msg = &wire.ObjectMsg{Name: name}
	} else {
		msg = &wire.NoObjectMsg{Name: name}
	}
	if err := n.Channel.WriteLine(msg.Encode(), nil); err != nil {
		logger.Printf(logger.WARN, "[forward] delivering %s for %q to iface %d failed: %v", msg.Tag(), name, iface, err)
	}
}

// Retrieve handles a CLI-triggered retrieval (spec §4.4.2).
func (e *Engine) Retrieve(name string, inNetwork bool) Result {
	if e.store.Has(name) {
		return Found
	}
	if !inNetwork || e.neighbors.Len() == 0 {
		return Failed
	}

	entry, _ := e.pit.GetOrCreate(name)
	entry.SetState(e.localUI, pit.Response)

	forwarded := false
	for _, n := range e.neighbors.All() {
		if err := n.Channel.WriteLine((&wire.InterestMsg{Name: name}).Encode(), nil); err != nil {
			logger.Printf(logger.WARN, "[forward] INTEREST %q to iface %d failed: %v", name, n.Iface, err)
			continue
		}
		entry.SetState(n.Iface, pit.Waiting)
		forwarded = true
	}
	if !forwarded {
		e.pit.Delete(name)
		return Failed
	}
	return Pending
}

// HandleInterest processes an incoming INTEREST on iface (spec §4.4.3).
func (e *Engine) HandleInterest(iface int, name string) {
	if iface == 0 {
		return
	}
	if e.store.Has(name) {
		e.deliver(iface, name, true)
		return
	}

	entry, created := e.pit.GetOrCreate(name)
	alreadyInFlight := !created && entry.CountWaiting() > 0
	entry.SetState(iface, pit.Response)
	defer entry.Touch()

	if alreadyInFlight {
		return
	}

	forwarded := false
	for _, n := range e.neighbors.All() {
		if n.Iface == iface {
			continue
		}
		if err := n.Channel.WriteLine((&wire.InterestMsg{Name: name}).Encode(), nil); err != nil {
			logger.Printf(logger.WARN, "[forward] INTEREST %q to iface %d failed: %v", name, n.Iface, err)
			continue
		}
		entry.SetState(n.Iface, pit.Waiting)
		forwarded = true
	}
	if !forwarded {
		e.deliver(iface, name, false)
		e.pit.Delete(name)
	}
}

// HandleObject processes an incoming OBJECT on iface (spec §4.4.4).
func (e *Engine) HandleObject(iface int, name string) {
	e.store.CacheInsert(name)

	entry, ok := e.pit.Get(name)
	if !ok {
		return // stale: no one is waiting for this name anymore
	}
	for ifc, state := range entry.Interfaces() {
		if state == pit.Response {
			e.deliver(ifc, name, true)
		}
	}
	e.pit.Delete(name)
}

// HandleNoObject processes an incoming NOOBJECT on iface (spec §4.4.5).
func (e *Engine) HandleNoObject(iface int, name string) {
	entry, ok := e.pit.Get(name)
	if !ok {
		return
	}
	entry.SetState(iface, pit.Closed)

	for ifc, state := range entry.Interfaces() {
		if state != pit.Waiting || ifc == e.localUI {
			continue
		}
		if _, live := e.neighbors.Get(ifc); !live {
			entry.SetState(ifc, pit.Closed)
		}
	}
	if entry.CountWaiting() > 0 {
		return
	}
	for ifc, state := range entry.Interfaces() {
		if state == pit.Response {
			e.deliver(ifc, name, false)
		}
	}
	e.pit.Delete(name)
}

// Sweep resolves every PIT entry older than the configured timeout as if
// every outstanding WAITING interface had reported NOOBJECT (spec §4.4.6).
func (e *Engine) Sweep() {
	for _, entry := range e.pit.Expired() {
		for ifc, state := range entry.Interfaces() {
			if state == pit.Response {
				e.deliver(ifc, entry.Name, false)
			}
		}
	}
}
