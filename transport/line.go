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

// Package transport implements the byte-level plumbing of the TCP peer
// protocol and the UDP registry protocol (spec §4.3, §4.5, §6): per
// connection line framing, bounded TCP connect, and UDP request/reply
// with a timeout. It plays the role the teacher's transport.Channel
// (Open/Close/IsOpen/Read/Write) plays for GNUnet's binary framing,
// generalized here to a line-oriented text protocol; Read/Write still
// take a *concurrent.Signaller so an in-flight line read can be
// interrupted the same way the teacher's NetworkChannel.Read is.
package transport

import (
	"errors"
	"net"

	"github.com/bfix/gospel/concurrent"
	"github.com/bfix/gospel/logger"
)

// MaxLineBuffer bounds one connection's inbound byte buffer (spec §4.3:
// "if the buffer would overflow, the oldest bytes are dropped with a
// warning" — a safety net, not an expected path, since messages are
// bounded in length by the protocol).
const MaxLineBuffer = 4096

// ErrChannelClosed is returned by LineChannel methods once the
// underlying connection has been closed.
var ErrChannelClosed = errors.New("transport: channel closed")

// ErrInterrupted is returned when a Signaller interrupts a pending
// Read/Write.
var ErrInterrupted = errors.New("transport: interrupted")

// LineChannel wraps a net.Conn with per-connection line framing:
// bytes are appended to an inbound buffer, scanned for '\n', and every
// complete line is returned exactly once; a trailing partial line is
// retained across reads (spec §4.3).
type LineChannel struct {
	conn net.Conn
	buf  []byte
}

// NewLineChannel wraps an already-open connection.
func NewLineChannel(conn net.Conn) *LineChannel {
	return &LineChannel{conn: conn}
}

// Close closes the underlying connection.
func (c *LineChannel) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the underlying connection's remote address.
func (c *LineChannel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

type readResult struct {
	n   int
	err error
}

// ReadLine blocks until a complete line (without its trailing '\n') is
// available, the connection errors, or sig is signalled. It may return
// several lines' worth of bytes across repeated calls from one
// underlying Read(); each call consumes and returns exactly one line.
func (c *LineChannel) ReadLine(sig *concurrent.Signaller) (string, error) {
	for {
		if line, ok := c.extractLine(); ok {
			return line, nil
		}
		chunk := make([]byte, 1024)
		result := make(chan readResult, 1)
		go func() {
			n, err := c.conn.Read(chunk)
			result <- readResult{n, err}
		}()

		if sig == nil {
			r := <-result
			if r.err != nil {
				return "", r.err
			}
			c.append(chunk[:r.n])
			continue
		}

		listener := sig.Listen()
		defer sig.Drop(listener)
		select {
		case x := <-listener:
			if interrupted, ok := x.(bool); ok && interrupted {
				c.conn.Close()
				return "", ErrInterrupted
			}
		case r := <-result:
			if r.err != nil {
				return "", r.err
			}
			c.append(chunk[:r.n])
		}
	}
}

// append adds newly-read bytes to the inbound buffer, dropping the
// oldest bytes if it would overflow (spec §4.3 safety net).
func (c *LineChannel) append(b []byte) {
	c.buf = append(c.buf, b...)
	if over := len(c.buf) - MaxLineBuffer; over > 0 {
		logger.Printf(logger.WARN, "[transport] inbound buffer overflow, dropping %d byte(s)", over)
		c.buf = c.buf[over:]
	}
}

// extractLine removes and returns the first complete line in the
// buffer, if any.
func (c *LineChannel) extractLine() (string, bool) {
	for i, b := range c.buf {
		if b == '\n' {
			line := string(c.buf[:i])
			c.buf = c.buf[i+1:]
			// strip a trailing '\r' for interop with CRLF senders
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			return line, true
		}
	}
	return "", false
}

// WriteLine writes line terminated with '\n'.
func (c *LineChannel) WriteLine(line string, sig *concurrent.Signaller) error {
	buf := []byte(line + "\n")
	result := make(chan readResult, 1)
	go func() {
		n, err := c.conn.Write(buf)
		result <- readResult{n, err}
	}()

	if sig == nil {
		r := <-result
		if r.err != nil {
			return r.err
		}
		if r.n != len(buf) {
			return errors.New("transport: incomplete write")
		}
		return nil
	}

	listener := sig.Listen()
	defer sig.Drop(listener)
	select {
	case x := <-listener:
		if interrupted, ok := x.(bool); ok && interrupted {
			c.conn.Close()
			return ErrInterrupted
		}
		return nil
	case r := <-result:
		if r.err != nil {
			return r.err
		}
		if r.n != len(buf) {
			return errors.New("transport: incomplete write")
		}
		return nil
	}
}
