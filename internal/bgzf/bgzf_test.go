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

package bgzf

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	hts "github.com/biogo/hts/bgzf"
)

func TestAddress(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		block uint64
		data  uint16
	}{
		{"maximum value", "ffffffffffffffff", 0x0000ffffffffffff, 0xffff},
		{"zero data offset", "ffff0000", 0xffff, 0x0000},
		{"zero", "0", 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			address, err := ParseAddress(tc.input)
			if err != nil {
				t.Fatalf("Got error parsing %q: %v", tc.input, err)
			}
			if got, want := address.BlockOffset(), tc.block; got != want {
				t.Errorf("Wrong block offset: got 0x%016x, want 0x%016x", got, want)
			}
			if got, want := address.DataOffset(), tc.data; got != want {
				t.Errorf("Wrong data offset: got 0x%04x, want 0x%04x", got, want)
			}
			if got, want := address.String(), tc.input; got != want {
				t.Errorf("Wrong string result: got %q, want %q", got, want)
			}
			if got, want := address.Offset(), (hts.Offset{File: int64(tc.block), Block: tc.data}); got != want {
				t.Errorf("Wrong reader offset: got %+v, want %+v", got, want)
			}
		})
	}
}

func TestParseAddress_InvalidInputs(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"negative value", "-0"},
		{"too large", "ffffffffffffffffffff"},
		{"non-hexidecimal", "g"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got, err := ParseAddress(tc.input); err == nil {
				t.Errorf("Unexpected success: got %v, wanted error", got)
			}
		})
	}
}

func TestChunks(t *testing.T) {
	chunks := []*Chunk{
		{NewAddress(0, 10), NewAddress(0, 40)},
		{NewAddress(0x1234, 7), NewAddress(0x5678, 0)},
	}
	want := []hts.Chunk{
		{Begin: hts.Offset{File: 0, Block: 10}, End: hts.Offset{File: 0, Block: 40}},
		{Begin: hts.Offset{File: 0x1234, Block: 7}, End: hts.Offset{File: 0x5678, Block: 0}},
	}
	if got := Chunks(chunks); !reflect.DeepEqual(got, want) {
		t.Errorf("Chunks(): got %+v, want %+v", got, want)
	}
}

func TestMerge(t *testing.T) {
	testCases := []struct {
		name   string
		limit  uint64
		input  string
		merged string
	}{
		{
			"three chunks, same block, all overlapping",
			1024,
			"0-10,10-40,40-80",
			"0-80",
		},
		{
			"three chunks, same block, one not overlapping",
			1024,
			"0-10,20-40,40-80",
			"0-10,20-80",
		},
		{
			"unsorted (but mergeable) chunks",
			1024,
			"40-80,10-40,0-10",
			"0-80",
		},
		{
			"two chunks, same block, too large",
			32768,
			"0-8000,9000-a000",
			"0-8000,9000-a000",
		},
		{
			"two chunks, different blocks, ok to merge",
			64*1024 + 4096,
			"00000000-00008000,00008000-10000000",
			"00000000-10000000",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input, err := parseChunkString(tc.input)
			if err != nil {
				t.Fatalf("Bad chunk string: %v", err)
			}
			want, err := parseChunkString(tc.merged)
			if err != nil {
				t.Fatalf("Bad chunk string: %v", err)
			}
			if got := Merge(input, tc.limit); !reflect.DeepEqual(got, want) {
				t.Errorf("Merge: got %s, want %s", got, want)
			}
		})
	}

	if got := Merge(nil, 1024); got != nil {
		t.Errorf("Merge(nil): got %s, want nil", got)
	}
}

func parseChunkString(input string) ([]*Chunk, error) {
	var chunks []*Chunk
	for _, s := range strings.Split(input, ",") {
		v := strings.Split(s, "-")
		start, err := ParseAddress(v[0])
		if err != nil {
			return nil, fmt.Errorf("parsing chunk start: %v", err)
		}
		end, err := ParseAddress(v[1])
		if err != nil {
			return nil, fmt.Errorf("parsing chunk end: %v", err)
		}
		chunks = append(chunks, &Chunk{start, end})
	}
	return chunks, nil
}
