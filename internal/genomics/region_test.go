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

package genomics

import (
	"errors"
	"testing"
)

func TestParseRegion(t *testing.T) {
	testCases := []struct {
		input string
		want  Interval
	}{
		{"chr1:101-105", Interval{"chr1", 100, 105}},
		{"1:1-1", Interval{"1", 0, 1}},
		{"chrX:1,000-2,000", Interval{"chrX", 999, 2000}},
		{"HLA-A*01:01:01:01:5-10", Interval{"HLA-A*01:01:01:01", 4, 10}},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseRegion(tc.input)
			if err != nil {
				t.Fatalf("ParseRegion(%q) returned error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("Wrong interval: got %+v, want %+v", got, tc.want)
			}
			if got, want := got.String(), tc.input; got != want && tc.input != "chrX:1,000-2,000" {
				t.Errorf("Wrong string form: got %q, want %q", got, want)
			}
		})
	}
}

func TestParseRegion_Errors(t *testing.T) {
	testCases := []struct {
		name, input string
		badRange    bool
	}{
		{"empty", "", false},
		{"no coordinates", "chr1", false},
		{"trailing colon", "chr1:", false},
		{"no name", ":1-5", false},
		{"no end", "chr1:5", false},
		{"bad start", "chr1:a-5", false},
		{"bad end", "chr1:1-b", false},
		{"zero start", "chr1:0-5", true},
		{"inverted", "chr1:10-5", true},
		{"beyond index", "chr1:1-4294967400", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRegion(tc.input)
			if err == nil {
				t.Fatalf("ParseRegion(%q): got %+v, wanted error", tc.input, got)
			}
			if !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("Wrong error kind: %v", err)
			}
			if got := errors.Is(err, ErrInvalidRange); got != tc.badRange {
				t.Errorf("errors.Is(%v, ErrInvalidRange): got %v, want %v", err, got, tc.badRange)
			}
		})
	}
}

func TestInterval_Widen(t *testing.T) {
	testCases := []struct {
		name   string
		iv     Interval
		buffer int
		want   Region
	}{
		{"no buffer", Interval{"r", 100, 200}, 0, Region{3, 100, 200}},
		{"padded", Interval{"r", 100, 200}, 50, Region{3, 50, 250}},
		{"clamped", Interval{"r", 100, 200}, 500, Region{3, 0, 700}},
		{"clamped end", Interval{"r", 4294967000, 4294967200}, 50000, Region{3, 4294917000, MaxPosition}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.iv.Widen(3, tc.buffer); got != tc.want {
				t.Errorf("Wrong region: got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNewInterval_Errors(t *testing.T) {
	testCases := []struct {
		name       string
		reference  string
		start, end int
	}{
		{"no reference", "", 1, 2},
		{"negative start", "r", -1, 2},
		{"empty", "r", 5, 5},
		{"inverted", "r", 10, 5},
		{"end beyond index", "r", 4294967000, 4294967400},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got, err := NewInterval(tc.reference, tc.start, tc.end); err == nil {
				t.Fatalf("NewInterval(%q, %d, %d): got %+v, wanted error", tc.reference, tc.start, tc.end, got)
			} else if !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("Wrong error kind: %v", err)
			}
		})
	}
}
