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

// Package pit implements the Pending Interest Table (spec §3, §4.4, C2):
// per-name routing memory for in-flight interests, keyed by interface id
// with a creation timestamp and absolute sweep deadline. The table is
// built on the teacher's thread-safe util.Map[K,V] so the debug API (C9)
// can take a read-only snapshot from its own goroutine while all writes
// still happen exclusively from the single event-loop goroutine (spec
// §5), the same split the teacher's DHT routing table and its RPC
// introspection endpoint rely on.
package pit

import (
	"sync"
	"time"

	"ndnode/util"
)

// State is the state of one interface within a PIT entry (spec §3).
type State int

const (
	// Waiting means an INTEREST was forwarded on this interface and no
	// reply has arrived yet.
	Waiting State = iota
	// Response means this interface is owed the eventual OBJECT/NOOBJECT.
	Response
	// Closed means the interface can no longer carry a reply (peer gone
	// or it already reported NOOBJECT).
	Closed
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Response:
		return "RESPONSE"
	case Closed:
		return "CLOSED"
	default:
		return "?"
	}
}

// Entry is one PIT row: an object name and the per-interface state of
// every interface that asked for, or might answer, it. util.Map only
// guards the table's name -> *Entry mapping; once a lookup hands out an
// *Entry pointer, this mutex is what lets the debug API (C9) read an
// entry's interfaces/Created from its own goroutine while the event
// loop keeps calling SetState/Touch on the same pointer.
type Entry struct {
	Name string

	mu         sync.RWMutex
	created    util.AbsoluteTime
	interfaces map[int]State
}

func newEntry(name string) *Entry {
	return &Entry{
		Name:       name,
		created:    util.AbsoluteTimeNow(),
		interfaces: make(map[int]State),
	}
}

// SetState sets the state of interface iface, creating the slot if new.
func (e *Entry) SetState(iface int, s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interfaces[iface] = s
}

// State returns the state of iface and whether it is present at all.
func (e *Entry) State(iface int) (State, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.interfaces[iface]
	return s, ok
}

// Interfaces returns a snapshot of the interface-id -> state map.
func (e *Entry) Interfaces() map[int]State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[int]State, len(e.interfaces))
	for k, v := range e.interfaces {
		out[k] = v
	}
	return out
}

// InterfacesWith returns the interface ids currently in state s.
func (e *Entry) InterfacesWith(s State) []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []int
	for k, v := range e.interfaces {
		if v == s {
			out = append(out, k)
		}
	}
	return out
}

// CountWaiting returns the number of interfaces still in Waiting.
func (e *Entry) CountWaiting() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, v := range e.interfaces {
		if v == Waiting {
			n++
		}
	}
	return n
}

// Age returns how long ago this entry was created.
func (e *Entry) Age() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.created.Elapsed()
}

// Touch resets the entry's creation timestamp, postponing its timeout
// sweep deadline (spec §4.4.3 step 6: "refresh the entry's timestamp").
func (e *Entry) Touch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = util.AbsoluteTimeNow()
}

// Table is the process-wide Pending Interest Table.
type Table struct {
	entries *util.Map[string, *Entry]
	timeout time.Duration
}

// New creates an empty PIT with the given reap timeout (spec §3:
// INTEREST_TIMEOUT, default 10s).
func New(timeout time.Duration) *Table {
	return &Table{
		entries: util.NewMap[string, *Entry](),
		timeout: timeout,
	}
}

// Get returns the entry for name, if any.
func (t *Table) Get(name string) (*Entry, bool) {
	return t.entries.Get(name, 0)
}

// GetOrCreate returns the existing entry for name, or creates and
// inserts a new empty one, reporting whether it was newly created.
func (t *Table) GetOrCreate(name string) (entry *Entry, created bool) {
	if e, ok := t.entries.Get(name, 0); ok {
		return e, false
	}
	e := newEntry(name)
	t.entries.Put(name, e, 0)
	return e, true
}

// Delete removes the entry for name, if any.
func (t *Table) Delete(name string) {
	t.entries.Delete(name, 0)
}

// Len returns the number of pending entries.
func (t *Table) Len() int {
	return t.entries.Size()
}

// Snapshot returns every current entry, for debug/CLI display (spec §6
// "show interest"/si). Safe to call from any goroutine.
func (t *Table) Snapshot() []*Entry {
	var out []*Entry
	_ = t.entries.ProcessRange(func(_ string, e *Entry, _ int) error {
		out = append(out, e)
		return nil
	}, true)
	return out
}

// Expired returns, and removes from the table, every entry whose age
// exceeds the configured timeout (spec §3/§4.4.6). The caller is
// responsible for resolving each returned entry as if every remaining
// WAITING interface had reported NOOBJECT.
func (t *Table) Expired() []*Entry {
	var out []*Entry
	_ = t.entries.ProcessRange(func(name string, e *Entry, pid int) error {
		if e.Age() > t.timeout {
			out = append(out, e)
			t.entries.Delete(name, pid)
		}
		return nil
	}, false)
	return out
}
