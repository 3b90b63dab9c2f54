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

// Package debugapi implements the optional read-only introspection HTTP
// surface (spec.md supplemented feature, C9): GET /topology, GET /names
// and GET /interest, each rendering a JSON snapshot of node.Node state.
// Bound only when a -debug-addr is configured. Grounded on the teacher's
// service.StartRPC/Router (gorilla/mux routed http.Server, ctx-cancelled
// shutdown); unlike the teacher's RPC surface this one never mutates
// state, so there is no equivalent of RegisterRPC's per-module wiring.
package debugapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/bfix/gospel/logger"
	"github.com/gorilla/mux"

	"ndnode/node"
)

// topologyView is the JSON shape of GET /topology.
type topologyView struct {
	Self     string         `json:"self"`
	External *neighborView  `json:"external,omitempty"`
	Safety   *addrView      `json:"safety,omitempty"`
	Internal []neighborView `json:"internal"`
}

type neighborView struct {
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	Interface int    `json:"interface"`
}

type addrView struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// namesView is the JSON shape of GET /names.
type namesView struct {
	Owned  []string `json:"owned"`
	Cached []string `json:"cached"`
}

// interestView is one row of the JSON array returned by GET /interest.
type interestView struct {
	Name       string         `json:"name"`
	AgeSeconds float64        `json:"age_seconds"`
	Interfaces map[int]string `json:"interfaces"`
}

// Server wraps an http.Server bound to a mux.Router, started and
// stopped in step with a context (spec §4.6: the debug surface shares
// the process lifetime, never the event-loop goroutine itself — every
// handler below only reads snapshots already safe for concurrent access).
type Server struct {
	n   *node.Node
	srv *http.Server
}

// New builds (but does not start) a debug server for n, listening on
// addr once Start is called.
func New(n *node.Node, addr string) *Server {
	router := mux.NewRouter()
	s := &Server{n: n}
	router.HandleFunc("/topology", s.handleTopology).Methods(http.MethodGet)
	router.HandleFunc("/names", s.handleNames).Methods(http.MethodGet)
	router.HandleFunc("/interest", s.handleInterest).Methods(http.MethodGet)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start runs the server until ctx is cancelled, in its own goroutine.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf(logger.WARN, "[debugapi] listen failed: %s", err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		if err := s.srv.Shutdown(context.Background()); err != nil {
			logger.Printf(logger.WARN, "[debugapi] shutdown failed: %s", err.Error())
		}
	}()
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	view := topologyView{
		Self: s.n.Cfg.ListenIP + ":" + strconv.Itoa(s.n.Cfg.ListenPort),
	}
	if ext, ok := s.n.Neighbors.External(); ok {
		view.External = &neighborView{IP: ext.IP, Port: ext.Port, Interface: ext.Iface}
	}
	if ip, port, ok := s.n.Neighbors.Safety(); ok {
		view.Safety = &addrView{IP: ip, Port: port}
	}
	for _, nb := range s.n.Neighbors.Internal() {
		view.Internal = append(view.Internal, neighborView{IP: nb.IP, Port: nb.Port, Interface: nb.Iface})
	}
	writeJSON(w, view)
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	owned := s.n.Store.Owned()
	cached := s.n.Store.Cached()
	sort.Strings(owned)
	view := namesView{Owned: owned, Cached: cached}
	writeJSON(w, view)
}

func (s *Server) handleInterest(w http.ResponseWriter, r *http.Request) {
	entries := s.n.PIT.Snapshot()
	views := make([]interestView, 0, len(entries))
	for _, e := range entries {
		ifaces := make(map[int]string)
		for id, state := range e.Interfaces() {
			ifaces[id] = state.String()
		}
		views = append(views, interestView{
			Name:       e.Name,
			AgeSeconds: e.Age().Seconds(),
			Interfaces: ifaces,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	writeJSON(w, views)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf(logger.WARN, "[debugapi] encode: %s", err.Error())
	}
}
