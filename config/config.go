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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/bfix/gospel/logger"
)

// Protocol- and implementation-fixed constants (spec §3, §4.4, §9).
const (
	InterestTimeoutSecs = 10  // spec §3: PIT entries older than this are reaped
	RegistryTimeoutSecs = 5   // spec §4.5: UDP registry request timeout
	ConnectTimeoutSecs  = 5   // spec §5: bounded TCP connect
	DefaultMaxInterface = 10  // spec §9: open question, kept as a default, not a hard limit
	StandaloneNetID     = "076"
)

// NodeConfig holds one node's runtime configuration: its own listen
// address, cache capacity, registry address and the optional debug API.
// Layered config: JSON file (if given) with "${VAR}" substitution from
// Environ, then command-line flags override individual fields.
type NodeConfig struct {
	Env Environ `json:"environ"`

	ListenIP   string `json:"listenIP"`
	ListenPort int    `json:"listenPort"`

	CacheCapacity int `json:"cacheCapacity"`

	RegistryIP   string `json:"registryIP"`
	RegistryPort int    `json:"registryPort"`

	MaxInterface int `json:"maxInterface"`

	DebugAddr string `json:"debugAddr"` // empty disables the debug API (C9)

	LogLevel int `json:"logLevel"`
}

// Environ holds environment-style substitution values for "${VAR}" tokens
// appearing in string-valued config fields.
type Environ map[string]string

// Default returns a NodeConfig with the defaults the protocol specifies.
func Default() *NodeConfig {
	return &NodeConfig{
		CacheCapacity: 16,
		MaxInterface:  DefaultMaxInterface,
		LogLevel:      logger.INFO,
	}
}

// ParseFile loads a JSON configuration file into cfg, applying "${VAR}"
// substitutions from its own Environ section. A file that cannot be read,
// a missing one included, is returned as an error; calling ParseFile at
// all is optional (CLI flags are enough to start a node without one).
func ParseFile(cfg *NodeConfig, path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("invalid configuration file %q: %w", path, err)
	}
	applySubstitutions(cfg, cfg.Env)
	return nil
}

var varPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// substString substitutes "${VAR}" occurrences in s from env.
func substString(s string, env map[string]string) string {
	matches := varPattern.FindAllStringSubmatch(s, -1)
	for _, m := range matches {
		if len(m[1]) == 0 {
			continue
		}
		if subst, ok := env[m[1]]; ok {
			s = strings.ReplaceAll(s, "${"+m[1]+"}", subst)
		}
	}
	return s
}

// applySubstitutions walks a configuration struct and applies string
// substitutions to every string field, following the teacher's
// reflection-based traversal so additional config fields automatically
// participate without touching this function.
func applySubstitutions(x interface{}, env map[string]string) {
	var process func(v reflect.Value)
	process = func(v reflect.Value) {
		for i := 0; i < v.NumField(); i++ {
			fld := v.Field(i)
			if !fld.CanSet() {
				continue
			}
			switch fld.Kind() {
			case reflect.String:
				s := fld.Interface().(string)
				for {
					s1 := substString(s, env)
					if s1 == s {
						break
					}
					logger.Printf(logger.DBG, "[config] %s --> %s\n", s, s1)
					fld.SetString(s1)
					s = s1
				}
			case reflect.Struct:
				process(fld)
			case reflect.Ptr:
				if e := fld.Elem(); e.IsValid() {
					process(e)
				}
			}
		}
	}
	v := reflect.ValueOf(x)
	if v.Kind() == reflect.Ptr {
		if e := v.Elem(); e.IsValid() {
			process(e)
		}
		return
	}
	if v.Kind() == reflect.Struct {
		process(v)
	}
}
