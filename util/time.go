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

package util

import (
	"math"
	"time"
)

//----------------------------------------------------------------------
// Absolute time
//----------------------------------------------------------------------

// AbsoluteTime refers to a unique point in time, held as elapsed
// milliseconds since the Unix epoch. It never travels on the wire here
// (the protocol is line-text, not binary); it backs PIT entry creation
// timestamps and neighbor connect times.
type AbsoluteTime struct {
	Val uint64
}

// NewAbsoluteTime sets the point in time to the given time value.
func NewAbsoluteTime(t time.Time) AbsoluteTime {
	return AbsoluteTime{Val: uint64(t.UnixMilli())}
}

// AbsoluteTimeNow returns the current point in time.
func AbsoluteTimeNow() AbsoluteTime {
	return NewAbsoluteTime(time.Now())
}

// AbsoluteTimeNever returns the time defined as "never".
func AbsoluteTimeNever() AbsoluteTime {
	return AbsoluteTime{Val: math.MaxUint64}
}

// String returns a human-readable notation of an absolute time.
func (t AbsoluteTime) String() string {
	if t.Val == math.MaxUint64 {
		return "Never"
	}
	return time.UnixMilli(int64(t.Val)).Format(time.RFC3339)
}

// Add a duration to an absolute time, yielding a new absolute time.
func (t AbsoluteTime) Add(d time.Duration) AbsoluteTime {
	if t.Val == math.MaxUint64 {
		return t
	}
	return AbsoluteTime{Val: t.Val + uint64(d.Milliseconds())}
}

// Elapsed returns the duration since this point in time.
func (t AbsoluteTime) Elapsed() time.Duration {
	if t.Val == math.MaxUint64 {
		return 0
	}
	return time.Since(time.UnixMilli(int64(t.Val)))
}

// Expired returns true if the timestamp lies strictly in the past.
func (t AbsoluteTime) Expired() bool {
	if t.Val == math.MaxUint64 {
		return false
	}
	return time.UnixMilli(int64(t.Val)).Before(time.Now())
}

// Compare returns -1, 0 or 1 if t is before, equal to or after other.
func (t AbsoluteTime) Compare(other AbsoluteTime) int {
	switch {
	case t.Val < other.Val:
		return -1
	case t.Val > other.Val:
		return 1
	default:
		return 0
	}
}

//----------------------------------------------------------------------
// Relative time
//----------------------------------------------------------------------

// RelativeTime is a duration rendered the GNUnet way (millisecond
// precision, "Forever" for the maximum value). Nothing in this module
// calls it; CLI output of PIT entry ages uses time.Duration directly.
type RelativeTime struct {
	Val uint64
}

// NewRelativeTime is initialized with a given duration.
func NewRelativeTime(d time.Duration) RelativeTime {
	return RelativeTime{Val: uint64(d.Milliseconds())}
}

// String returns a human-readable representation of a relative time.
func (t RelativeTime) String() string {
	if t.Val == math.MaxUint64 {
		return "Forever"
	}
	return (time.Duration(t.Val) * time.Millisecond).String()
}
