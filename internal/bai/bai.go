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

// Package bai reads BAM index (.bai) files.
package bai

import (
	"fmt"
	"io"

	"github.com/googlegenomics/extract-region/internal/bgzf"
	"github.com/googlegenomics/extract-region/internal/binary"
	"github.com/googlegenomics/extract-region/internal/genomics"
)

const (
	magic = "BAI\x01"

	// This ID is used as a virtual bin ID for (unused) chunk metadata.
	metadataID = 37450

	// The maximum read length as constrained by the size of the level zero bin
	// in the SAM specification, section 5.1.1.
	maximumReadLength = 1 << 29

	// The size of each tiling window from the linear index, as specified in the
	// SAM specification section 5.1.3.
	linearWindowSize = 1 << 14
)

type bin struct {
	ID     uint32
	Chunks int32
}

// Read reads index data from r and returns the BGZF chunks that may hold
// reads of region.ReferenceID overlapping [region.Start, region.End).  An
// End of zero selects every read on the reference.  Chunks of other
// references are skipped without being retained.
func Read(r io.Reader, region genomics.Region) ([]*bgzf.Chunk, error) {
	if err := binary.ExpectBytes(r, []byte(magic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}

	var references int32
	if err := binary.Read(r, &references); err != nil {
		return nil, fmt.Errorf("reading reference count: %v", err)
	}
	if region.ReferenceID < 0 || region.ReferenceID >= references {
		return nil, fmt.Errorf("reference %d not in index (%d references)", region.ReferenceID, references)
	}

	bins := binsForRange(region.Start, region.End)

	var chunks []*bgzf.Chunk
	for i := int32(0); i <= region.ReferenceID; i++ {
		target := i == region.ReferenceID

		var binCount int32
		if err := binary.Read(r, &binCount); err != nil {
			return nil, fmt.Errorf("reading bin count: %v", err)
		}
		var candidates []*bgzf.Chunk
		for j := int32(0); j < binCount; j++ {
			var b bin
			if err := binary.Read(r, &b); err != nil {
				return nil, fmt.Errorf("reading bin header: %v", err)
			}
			if b.Chunks < 0 {
				return nil, fmt.Errorf("invalid chunk count (%d chunks)", b.Chunks)
			}
			if !target || b.ID == metadataID || !containsBin(bins, b.ID) {
				if err := binary.Skip(r, bgzf.Chunk{}, int(b.Chunks)); err != nil {
					return nil, fmt.Errorf("skipping chunks: %v", err)
				}
				continue
			}
			for k := int32(0); k < b.Chunks; k++ {
				var chunk bgzf.Chunk
				if err := binary.Read(r, &chunk); err != nil {
					return nil, fmt.Errorf("reading chunk: %v", err)
				}
				candidates = append(candidates, &chunk)
			}
		}

		var intervals int32
		if err := binary.Read(r, &intervals); err != nil {
			return nil, fmt.Errorf("reading interval count: %v", err)
		}
		if intervals < 0 {
			return nil, fmt.Errorf("invalid interval count (%d intervals)", intervals)
		}
		if !target {
			if err := binary.Skip(r, uint64(0), int(intervals)); err != nil {
				return nil, fmt.Errorf("skipping offsets: %v", err)
			}
			continue
		}
		offsets := make([]uint64, intervals)
		if err := binary.Read(r, &offsets); err != nil {
			return nil, fmt.Errorf("reading offsets: %v", err)
		}

		var firstReadOffset bgzf.Address
		if index := int(region.Start / linearWindowSize); index < len(offsets) {
			firstReadOffset = bgzf.Address(offsets[index])
		}
		for _, chunk := range candidates {
			if chunk.End < firstReadOffset {
				continue
			}
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func containsBin(bins []uint16, id uint32) bool {
	if bins == nil {
		return true
	}
	for _, b := range bins {
		if uint32(b) == id {
			return true
		}
	}
	return false
}

// binsForRange returns the bins overlapping [start, end), or nil when every
// bin matches.  This function is derived from the C examples in the BAM
// index specification.
func binsForRange(start, end uint32) []uint16 {
	if start == 0 && end == 0 {
		return nil
	}
	if end == 0 || end > maximumReadLength {
		end = maximumReadLength
	}
	if end <= start || start > maximumReadLength {
		return []uint16{}
	}

	end--

	bins := []uint16{0}
	for k := uint16(1 + (start >> 26)); k <= uint16(1+(end>>26)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(9 + (start >> 23)); k <= uint16(9+(end>>23)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(73 + (start >> 20)); k <= uint16(73+(end>>20)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(585 + (start >> 17)); k <= uint16(585+(end>>17)); k++ {
		bins = append(bins, k)
	}
	for k := uint16(4681 + (start >> 14)); k <= uint16(4681+(end>>14)); k++ {
		bins = append(bins, k)
	}
	return bins
}
