// Copyright 2018 Google Inc.
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

// Package coords translates reference coordinates into read offsets.
package coords

import (
	"fmt"

	"github.com/googlegenomics/extract-region/internal/cigar"
)

// Map maps reference positions to 0-based offsets into a read sequence.
//
// Match and deletion operations consume the reference contiguously from the
// alignment start, so the mapped positions always form the single span
// [Start, End) and are stored densely.
type Map struct {
	// Start and End bound the mapped reference positions.
	Start, End int
	// ReadLen is the number of read bases consumed by the encoding.
	ReadLen int

	offsets []int
}

// Lookup returns the read offset for the reference position pos and whether
// pos is covered by the alignment.
func (m *Map) Lookup(pos int) (int, bool) {
	if pos < m.Start || pos >= m.End {
		return 0, false
	}
	return m.offsets[pos-m.Start], true
}

// Len returns the number of mapped reference positions.
func (m *Map) Len() int {
	return len(m.offsets)
}

// Build walks enc from the reference position refStart and returns the
// mapping of every reference position it covers.
//
// Positions covered by a match map to the aligned read base.  Positions
// covered by a deletion all map to the read offset at which the deletion
// starts, so an interval bound that falls inside a deletion still resolves
// to a slicing index.  Insertions advance the read offset without adding
// entries.
func Build(refStart int, enc cigar.Encoding) (*Map, error) {
	if refStart < 0 {
		return nil, fmt.Errorf("%w: negative start position %d", cigar.ErrInvalidEncoding, refStart)
	}
	if len(enc) == 0 {
		return nil, fmt.Errorf("%w: no operations", cigar.ErrInvalidEncoding)
	}

	for i, op := range enc {
		if op.Len <= 0 {
			return nil, fmt.Errorf("%w: non-positive length %d at operation %d", cigar.ErrInvalidEncoding, op.Len, i)
		}
	}

	refLen, _ := enc.Lengths()
	m := &Map{
		Start:   refStart,
		offsets: make([]int, 0, refLen),
	}

	read := 0
	for i, op := range enc {
		switch op.Kind {
		case cigar.Match:
			for j := 0; j < op.Len; j++ {
				m.offsets = append(m.offsets, read+j)
			}
			read += op.Len
		case cigar.Deletion:
			for j := 0; j < op.Len; j++ {
				m.offsets = append(m.offsets, read)
			}
		case cigar.Insertion:
			read += op.Len
		default:
			return nil, fmt.Errorf("%w %q (%s) at operation %d", cigar.ErrUnrecognizedOperation, op.Code, op.Kind, i)
		}
	}

	m.End = m.Start + len(m.offsets)
	m.ReadLen = read
	return m, nil
}
