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
	"context"
	"fmt"
	"sort"
	"strings"

	"ndnode/forward"
)

// Join performs a directory-assisted join (spec §6 "join"/"j"). Any
// neighbor connection opened as a side effect gets its own reader
// goroutine so the event loop starts seeing its traffic immediately.
func (n *Node) Join(ctx context.Context, netid string) error {
	nb, err := n.Topology.JoinDirectory(ctx, netid)
	if err != nil {
		return err
	}
	if nb != nil {
		n.spawnReader(nb)
	}
	return nil
}

// DirectJoin performs a direct join (spec §6 "djoin"/"dj").
func (n *Node) DirectJoin(ctx context.Context, ip string, port int) error {
	nb, err := n.Topology.JoinDirect(ctx, ip, port)
	if err != nil {
		return err
	}
	if nb != nil {
		n.spawnReader(nb)
	}
	return nil
}

// Create publishes a local name (spec §6 "create"/"c", §4.1).
func (n *Node) Create(name string) {
	n.Store.Publish(name)
}

// Delete unpublishes a local name (spec §6 "delete"/"dl", §4.1).
func (n *Node) Delete(name string) {
	n.Store.Unpublish(name)
}

// Retrieve triggers a local/network retrieval (spec §6 "retrieve"/"r",
// §4.4.2). Its immediate return only reports whether the name was
// already known or a search was started; a Pending search's outcome is
// reported later, out of band, by reportRetrieval.
func (n *Node) Retrieve(name string) string {
	switch n.Forward.Retrieve(name, n.Topology.InNetwork) {
	case forward.Found:
		return fmt.Sprintf("%s found", name)
	case forward.Pending:
		return fmt.Sprintf("%s: searching", name)
	default:
		return fmt.Sprintf("%s not found", name)
	}
}

// ShowTopology renders this node, its external/safety neighbors, and
// its internal set (spec §6 "show topology"/"st").
func (n *Node) ShowTopology() string {
	var b strings.Builder
	fmt.Fprintf(&b, "self:     %s:%d\n", n.Cfg.ListenIP, n.Cfg.ListenPort)
	if ext, ok := n.Neighbors.External(); ok {
		fmt.Fprintf(&b, "external: %s:%d (iface %d)\n", ext.IP, ext.Port, ext.Iface)
	} else {
		fmt.Fprintf(&b, "external: none\n")
	}
	if ip, port, ok := n.Neighbors.Safety(); ok {
		fmt.Fprintf(&b, "safety:   %s:%d\n", ip, port)
	} else {
		fmt.Fprintf(&b, "safety:   none\n")
	}
	internal := n.Neighbors.Internal()
	if len(internal) == 0 {
		fmt.Fprintf(&b, "internal: none")
		return b.String()
	}
	fmt.Fprintf(&b, "internal:")
	for _, nb := range internal {
		fmt.Fprintf(&b, "\n  %s:%d (iface %d)", nb.IP, nb.Port, nb.Iface)
	}
	return b.String()
}

// ShowNames lists owned and cached names (spec §6 "show names"/"sn").
func (n *Node) ShowNames() string {
	owned := n.Store.Owned()
	cached := n.Store.Cached()
	sort.Strings(owned)
	var b strings.Builder
	fmt.Fprintf(&b, "owned (%d): %s\n", len(owned), strings.Join(owned, ", "))
	fmt.Fprintf(&b, "cached (%d): %s", len(cached), strings.Join(cached, ", "))
	return b.String()
}

// ShowInterest dumps the PIT (spec §6 "show interest"/"si").
func (n *Node) ShowInterest() string {
	entries := n.PIT.Snapshot()
	if len(entries) == 0 {
		return "PIT empty"
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (age %s):", e.Name, e.Age().Round(0))
		ifaces := e.Interfaces()
		ids := make([]int, 0, len(ifaces))
		for id := range ifaces {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, " %d=%s", id, ifaces[id])
		}
	}
	return b.String()
}
