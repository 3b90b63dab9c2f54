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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/bfix/gospel/logger"

	"ndnode/cli"
	"ndnode/config"
	"ndnode/debugapi"
	"ndnode/node"
)

// usage prints the process-argument surface (spec.md §6).
func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <cache_capacity> <ip> <tcp_port> [<reg_ip> <reg_udp_port>]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	defer func() {
		logger.Println(logger.INFO, "[ndnode] bye.")
		logger.Flush()
	}()

	var (
		cfgFile   string
		debugAddr string
		logLevel  int
	)
	flag.StringVar(&cfgFile, "config", "", "JSON configuration file")
	flag.StringVar(&debugAddr, "debug-addr", "", "debug/introspection HTTP API bind address (empty disables it)")
	flag.IntVar(&logLevel, "log-level", logger.INFO, "log level (0=ERROR .. 4=DBG)")
	flag.Usage = usage
	flag.Parse()

	cfg := config.Default()
	if cfgFile != "" {
		if err := config.ParseFile(cfg, cfgFile); err != nil {
			logger.Printf(logger.ERROR, "[ndnode] invalid configuration file: %s\n", err.Error())
			os.Exit(1)
		}
	}

	args := flag.Args()
	if len(args) != 3 && len(args) != 5 {
		usage()
		os.Exit(1)
	}
	var err error
	if cfg.CacheCapacity, err = strconv.Atoi(args[0]); err != nil {
		logger.Printf(logger.ERROR, "[ndnode] invalid cache_capacity %q\n", args[0])
		os.Exit(1)
	}
	cfg.ListenIP = args[1]
	if cfg.ListenPort, err = strconv.Atoi(args[2]); err != nil {
		logger.Printf(logger.ERROR, "[ndnode] invalid tcp_port %q\n", args[2])
		os.Exit(1)
	}
	if len(args) == 5 {
		cfg.RegistryIP = args[3]
		if cfg.RegistryPort, err = strconv.Atoi(args[4]); err != nil {
			logger.Printf(logger.ERROR, "[ndnode] invalid reg_udp_port %q\n", args[4])
			os.Exit(1)
		}
	}
	if debugAddr != "" {
		cfg.DebugAddr = debugAddr
	}
	logger.SetLogLevel(logLevel)

	n, err := node.New(cfg)
	if err != nil {
		logger.Printf(logger.ERROR, "[ndnode] failed to start: %s\n", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DebugAddr != "" {
		debugapi.New(n, cfg.DebugAddr).Start(ctx)
		logger.Printf(logger.INFO, "[ndnode] debug API listening on %s\n", cfg.DebugAddr)
	}

	logger.Printf(logger.INFO, "[ndnode] listening on %s\n", n.ListenAddr().String())

	sigCh := make(chan os.Signal, 5)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				logger.Printf(logger.INFO, "[ndnode] terminating (on signal '%s')\n", sig)
				cancel()
				return
			case syscall.SIGHUP:
				logger.Println(logger.INFO, "[ndnode] SIGHUP")
			}
		}
	}()

	// Run blocks until ctx is cancelled; it calls Leave() itself before
	// returning, so the UNREG/peer-teardown sequence completes here
	// rather than racing process exit (spec.md §6: exit code 0 on SIGINT).
	n.Run(ctx, cli.Dispatch)
}
