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

package debugapi_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"ndnode/cli"
	"ndnode/config"
	"ndnode/debugapi"
	"ndnode/node"
)

func startNodeAndAPI(t *testing.T) (*node.Node, string) {
	t.Helper()
	cfg := config.Default()
	cfg.ListenIP = "127.0.0.1"
	cfg.ListenPort = 0
	n, err := node.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx, cli.Dispatch)
	t.Cleanup(cancel)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := debugapi.New(n, addr)
	srv.Start(ctx)
	waitForHTTP(t, "http://"+addr+"/names")
	return n, addr
}

func TestDebugAPITopologyNamesInterest(t *testing.T) {
	n, addr := startNodeAndAPI(t)
	n.Command("create alpha")
	time.Sleep(50 * time.Millisecond)

	var names struct {
		Owned  []string `json:"owned"`
		Cached []string `json:"cached"`
	}
	getJSON(t, "http://"+addr+"/names", &names)
	if len(names.Owned) != 1 || names.Owned[0] != "alpha" {
		t.Fatalf("expected owned=[alpha], got %+v", names)
	}

	var topo struct {
		Self string `json:"self"`
	}
	getJSON(t, "http://"+addr+"/topology", &topo)
	if topo.Self == "" {
		t.Fatal("expected non-empty self address")
	}

	var interest []struct {
		Name string `json:"name"`
	}
	getJSON(t, "http://"+addr+"/interest", &interest)
	if len(interest) != 0 {
		t.Fatalf("expected empty PIT, got %+v", interest)
	}
}

// TestDebugAPIConcurrentWithEventLoop drives a steady stream of create/
// delete commands through the event loop while repeatedly polling
// every debug endpoint from this goroutine, the same split a running
// node has between its own Run loop and the debug API's ListenAndServe
// goroutine. Catches any handler that reads node state without going
// through store.Store's or neighbor.Set's synchronized accessors.
func TestDebugAPIConcurrentWithEventLoop(t *testing.T) {
	n, addr := startNodeAndAPI(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			n.Command("create alpha")
			n.Command("delete alpha")
		}
	}()

	for i := 0; i < 200; i++ {
		var names struct {
			Owned  []string `json:"owned"`
			Cached []string `json:"cached"`
		}
		getJSON(t, "http://"+addr+"/names", &names)
		var topo map[string]any
		getJSON(t, "http://"+addr+"/topology", &topo)
	}
	<-done
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func waitForHTTP(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", url)
}
