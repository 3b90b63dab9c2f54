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

package cli

import (
	"context"
	"strings"
	"testing"

	"ndnode/config"
	"ndnode/node"
)

func newTestNode(t *testing.T) *node.Node {
	t.Helper()
	cfg := config.Default()
	cfg.ListenIP = "127.0.0.1"
	cfg.ListenPort = 0
	n, err := node.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(n.Close)
	return n
}

func TestDispatchBlankLine(t *testing.T) {
	n := newTestNode(t)
	out, exit := Dispatch(context.Background(), n, "   ")
	if out != "" || exit {
		t.Fatalf("expected no-op on blank line, got %q exit=%v", out, exit)
	}
}

func TestDispatchHelp(t *testing.T) {
	n := newTestNode(t)
	for _, cmd := range []string{"help", "h"} {
		out, exit := Dispatch(context.Background(), n, cmd)
		if exit || !strings.Contains(out, "join|j") {
			t.Fatalf("expected help text for %q, got %q", cmd, out)
		}
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	n := newTestNode(t)
	out, exit := Dispatch(context.Background(), n, "frobnicate")
	if exit || !strings.Contains(out, "unknown command") {
		t.Fatalf("expected unknown-command message, got %q", out)
	}
}

func TestDispatchExit(t *testing.T) {
	n := newTestNode(t)
	out, exit := Dispatch(context.Background(), n, "exit")
	if !exit || out != "bye" {
		t.Fatalf("expected exit, got %q exit=%v", out, exit)
	}
	out, exit = Dispatch(context.Background(), n, "x")
	if !exit || out != "bye" {
		t.Fatalf("expected exit via alias, got %q exit=%v", out, exit)
	}
}

func TestDispatchCreateDeleteRetrieve(t *testing.T) {
	n := newTestNode(t)
	if out, _ := Dispatch(context.Background(), n, "create alpha"); out != "published alpha" {
		t.Fatalf("unexpected create result %q", out)
	}
	if out, _ := Dispatch(context.Background(), n, "r alpha"); out != "alpha found" {
		t.Fatalf("expected local hit, got %q", out)
	}
	if out, _ := Dispatch(context.Background(), n, "delete alpha"); out != "unpublished alpha" {
		t.Fatalf("unexpected delete result %q", out)
	}
	if out, _ := Dispatch(context.Background(), n, "retrieve alpha"); out != "alpha not found" {
		t.Fatalf("expected miss after delete, got %q", out)
	}
}

func TestDispatchRetrieveRejectsBadName(t *testing.T) {
	n := newTestNode(t)
	out, _ := Dispatch(context.Background(), n, "retrieve not$alnum")
	if !strings.Contains(out, "alphanumeric") {
		t.Fatalf("expected validation error, got %q", out)
	}
}

func TestDispatchJoinRejectsBadNetID(t *testing.T) {
	n := newTestNode(t)
	out, _ := Dispatch(context.Background(), n, "join 76")
	if !strings.Contains(out, "3 digits") {
		t.Fatalf("expected netid validation error, got %q", out)
	}
}

func TestDispatchDjoinStandalone(t *testing.T) {
	n := newTestNode(t)
	out, exit := Dispatch(context.Background(), n, "djoin 0.0.0.0 0")
	if exit || out != "created standalone network" {
		t.Fatalf("unexpected djoin result %q", out)
	}
	if !n.Topology.InNetwork {
		t.Fatal("expected InNetwork after standalone djoin")
	}
}

func TestDispatchDjoinRejectsBadPort(t *testing.T) {
	n := newTestNode(t)
	out, _ := Dispatch(context.Background(), n, "djoin 127.0.0.1 notaport")
	if !strings.Contains(out, "invalid port") {
		t.Fatalf("expected port validation error, got %q", out)
	}
}

func TestDispatchShowTopologyAndAlias(t *testing.T) {
	n := newTestNode(t)
	full, _ := Dispatch(context.Background(), n, "show topology")
	short, _ := Dispatch(context.Background(), n, "st")
	if full != short {
		t.Fatalf("expected 'show topology' and 'st' to agree, got %q vs %q", full, short)
	}
	if !strings.Contains(full, "self:") {
		t.Fatalf("expected topology dump to mention self, got %q", full)
	}
}

func TestDispatchShowNamesAndAlias(t *testing.T) {
	n := newTestNode(t)
	Dispatch(context.Background(), n, "create beta")
	full, _ := Dispatch(context.Background(), n, "show names")
	short, _ := Dispatch(context.Background(), n, "sn")
	if full != short || !strings.Contains(full, "beta") {
		t.Fatalf("expected matching names dumps mentioning beta, got %q vs %q", full, short)
	}
}

func TestDispatchShowInterestAndAlias(t *testing.T) {
	n := newTestNode(t)
	full, _ := Dispatch(context.Background(), n, "show interest")
	short, _ := Dispatch(context.Background(), n, "si")
	if full != short || full != "PIT empty" {
		t.Fatalf("expected empty PIT dump, got %q vs %q", full, short)
	}
}

func TestDispatchShowUnknownSubject(t *testing.T) {
	n := newTestNode(t)
	out, _ := Dispatch(context.Background(), n, "show weather")
	if !strings.Contains(out, "unknown subject") {
		t.Fatalf("expected unknown-subject error, got %q", out)
	}
}

func TestDispatchLeaveIsIdempotent(t *testing.T) {
	n := newTestNode(t)
	Dispatch(context.Background(), n, "djoin 0.0.0.0 0")
	if out, _ := Dispatch(context.Background(), n, "leave"); out != "left network" {
		t.Fatalf("unexpected leave result %q", out)
	}
	if out, _ := Dispatch(context.Background(), n, "l"); out != "left network" {
		t.Fatalf("unexpected second leave result %q", out)
	}
	if n.Topology.InNetwork {
		t.Fatal("expected InNetwork false after leave")
	}
}
