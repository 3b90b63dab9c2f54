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

// Package cli implements the interactive command dispatcher (spec §6,
// C10): thin text parsing over the exact command table spec.md
// specifies, calling straight into node.Node methods. It is explicitly
// out of scope as "real" component per spec.md §1 and holds no protocol
// state of its own — every command either validates its arguments and
// delegates, or reads back a snapshot to render.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ndnode/node"
	"ndnode/util"
)

const helpText = `commands:
  join|j       <netid>       enter named network via registry
  djoin|dj     <ip> <port>   direct-join (0.0.0.0 => new standalone)
  create|c     <name>        publish local object
  delete|dl    <name>        unpublish local object
  retrieve|r   <name>        fetch name; local then cache then network
  show topology|st           print this node, external, safety, internals
  show names|sn              list owned and cached names
  show interest|si           dump PIT
  leave|l                    UNREG, drop peers, become outside
  exit|x                     clean exit
  help|h                     this text`

// Dispatch parses and runs one line of input against n, returning text
// to print and whether the process should exit. It has the exact shape
// of node.Dispatcher, passed to node.Node.Run by cmd/ndnode. A blank
// line is silently ignored (spec.md §10 supplemented behavior).
func Dispatch(ctx context.Context, n *node.Node, line string) (out string, exit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "join", "j":
		return run(cmdJoin(ctx, n, args))
	case "djoin", "dj":
		return run(cmdDjoin(ctx, n, args))
	case "create", "c":
		return run(cmdCreate(n, args))
	case "delete", "dl":
		return run(cmdDelete(n, args))
	case "retrieve", "r":
		return run(cmdRetrieve(n, args))
	case "show":
		return run(cmdShow(n, args))
	case "st":
		return n.ShowTopology(), false
	case "sn":
		return n.ShowNames(), false
	case "si":
		return n.ShowInterest(), false
	case "leave", "l":
		n.Leave()
		return "left network", false
	case "exit", "x":
		return "bye", true
	case "help", "h":
		return helpText, false
	default:
		return fmt.Sprintf("unknown command %q (try 'help')", fields[0]), false
	}
}

// run turns a (string, error) command result into cli.Dispatch's
// (out, exit) shape; every command below returns its text as a plain
// error on validation/operational failure rather than a success string.
func run(result string, err error) (string, bool) {
	if err != nil {
		return err.Error(), false
	}
	return result, false
}

func cmdJoin(ctx context.Context, n *node.Node, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: join <netid>")
	}
	netid := args[0]
	if err := util.ValidateNetID(netid); err != nil {
		return "", err
	}
	if err := n.Join(ctx, netid); err != nil {
		return "", err
	}
	return fmt.Sprintf("joined network %s", netid), nil
}

func cmdDjoin(ctx context.Context, n *node.Node, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("usage: djoin <ip> <port>")
	}
	ip := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 0 || port > 65535 {
		return "", fmt.Errorf("djoin: invalid port %q", args[1])
	}
	if err := n.DirectJoin(ctx, ip, port); err != nil {
		return "", err
	}
	if ip == "0.0.0.0" {
		return "created standalone network", nil
	}
	return fmt.Sprintf("joined %s:%d", ip, port), nil
}

func cmdCreate(n *node.Node, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: create <name>")
	}
	name := args[0]
	if err := util.ValidateName(name); err != nil {
		return "", err
	}
	n.Create(name)
	return fmt.Sprintf("published %s", name), nil
}

func cmdDelete(n *node.Node, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: delete <name>")
	}
	name := args[0]
	if err := util.ValidateName(name); err != nil {
		return "", err
	}
	n.Delete(name)
	return fmt.Sprintf("unpublished %s", name), nil
}

func cmdRetrieve(n *node.Node, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: retrieve <name>")
	}
	name := args[0]
	if err := util.ValidateName(name); err != nil {
		return "", err
	}
	return n.Retrieve(name), nil
}

func cmdShow(n *node.Node, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: show topology|names|interest")
	}
	switch args[0] {
	case "topology":
		return n.ShowTopology(), nil
	case "names":
		return n.ShowNames(), nil
	case "interest":
		return n.ShowInterest(), nil
	default:
		return "", fmt.Errorf("show: unknown subject %q", args[0])
	}
}
