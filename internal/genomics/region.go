// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package genomics contains definitions related to Genomic data.
package genomics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidRegion is returned (wrapped) when a region cannot be parsed or
// describes an empty or inverted interval.
var ErrInvalidRegion = errors.New("invalid region")

// ErrInvalidRange is returned (wrapped) when the bounds of a region are
// well formed but do not describe a usable interval.  It wraps
// ErrInvalidRegion.
var ErrInvalidRange = fmt.Errorf("%w: bad range", ErrInvalidRegion)

// MaxPosition is the largest coordinate an index can address.
const MaxPosition = math.MaxUint32

// Region defines a region of genomic interest in index space.
type Region struct {
	// ReferenceID specifies the reference to match.  If it is negative, any
	// reference matches the region.
	ReferenceID int32
	// Start and End specify the open range (in base pairs) relative to the
	// reference.  If End is zero, it is treated as though it was set to the last
	// possible read position.
	Start, End uint32
}

func (region Region) String() string {
	return fmt.Sprintf("[region:%d, start:%d, end:%d]", region.ReferenceID, region.Start, region.End)
}

// Interval is a target interval on a named reference.  Start and End are
// 0-based and half-open, the same convention used for alignment start
// positions, so both bounds can be looked up directly as reference
// coordinates.
type Interval struct {
	Reference  string
	Start, End int
}

// ParseRegion parses a region of the form "name:start-end" where start and
// end are 1-based and inclusive, and returns the equivalent 0-based
// half-open Interval.  Thousands separators in the coordinates are ignored.
func ParseRegion(input string) (Interval, error) {
	colon := strings.LastIndex(input, ":")
	if colon <= 0 || colon == len(input)-1 {
		return Interval{}, fmt.Errorf("%w %q: expected name:start-end", ErrInvalidRegion, input)
	}
	name, span := input[:colon], strings.Replace(input[colon+1:], ",", "", -1)

	bounds := strings.SplitN(span, "-", 2)
	if len(bounds) != 2 {
		return Interval{}, fmt.Errorf("%w %q: expected start-end", ErrInvalidRegion, input)
	}
	start, err := strconv.Atoi(bounds[0])
	if err != nil {
		return Interval{}, fmt.Errorf("%w %q: parsing start: %v", ErrInvalidRegion, input, err)
	}
	end, err := strconv.Atoi(bounds[1])
	if err != nil {
		return Interval{}, fmt.Errorf("%w %q: parsing end: %v", ErrInvalidRegion, input, err)
	}
	if start < 1 {
		return Interval{}, fmt.Errorf("%w %q: start must be at least 1", ErrInvalidRange, input)
	}

	return NewInterval(name, start-1, end)
}

// NewInterval returns the 0-based half-open interval [start, end) on
// reference, or an error if the interval is empty, negative or beyond
// MaxPosition.
func NewInterval(reference string, start, end int) (Interval, error) {
	if reference == "" {
		return Interval{}, fmt.Errorf("%w: no reference name", ErrInvalidRegion)
	}
	if start < 0 {
		return Interval{}, fmt.Errorf("%w: negative start %d", ErrInvalidRange, start)
	}
	if end <= start {
		return Interval{}, fmt.Errorf("%w: start %d >= end %d", ErrInvalidRange, start, end)
	}
	if int64(end) > MaxPosition {
		return Interval{}, fmt.Errorf("%w: end %d beyond %d", ErrInvalidRange, end, MaxPosition)
	}
	return Interval{Reference: reference, Start: start, End: end}, nil
}

// Widen returns the index space window covering iv padded by buffer bases
// on each side, clamped to [0, MaxPosition].
func (iv Interval) Widen(referenceID int32, buffer int) Region {
	start, end := iv.Start-buffer, iv.End+buffer
	if start < 0 {
		start = 0
	}
	if int64(start) > MaxPosition {
		start = MaxPosition
	}
	if int64(end) > MaxPosition || end < iv.End {
		end = MaxPosition
	}
	return Region{
		ReferenceID: referenceID,
		Start:       uint32(start),
		End:         uint32(end),
	}
}

// String returns iv in the 1-based inclusive form accepted by ParseRegion.
func (iv Interval) String() string {
	return fmt.Sprintf("%s:%d-%d", iv.Reference, iv.Start+1, iv.End)
}
