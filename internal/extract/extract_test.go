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

package extract

import (
	"errors"
	"testing"

	"github.com/googlegenomics/extract-region/internal/cigar"
	"github.com/googlegenomics/extract-region/internal/genomics"
)

func newRecord(t *testing.T, id string, pos int, encoding, seq string) *Record {
	t.Helper()
	enc, err := cigar.Parse(encoding)
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", encoding, err)
	}
	return &Record{ID: id, Pos: pos, Cigar: enc, Seq: []byte(seq)}
}

func TestExtract(t *testing.T) {
	testCases := []struct {
		name    string
		rec     *Record
		iv      genomics.Interval
		outcome Outcome
		seq     string
	}{
		{
			name:    "full match",
			rec:     newRecord(t, "a", 100, "10M", "ACGTACGTAC"),
			iv:      genomics.Interval{Reference: "r", Start: 100, End: 105},
			outcome: Emitted, seq: "ACGTA",
		},
		{
			name:    "end inside deletion",
			rec:     newRecord(t, "b", 100, "5M3D5M", "AAAAACCCCC"),
			iv:      genomics.Interval{Reference: "r", Start: 102, End: 107},
			outcome: Emitted, seq: "AAA",
		},
		{
			name:    "both bounds inside deletion",
			rec:     newRecord(t, "c", 100, "5M3D5M", "AAAAACCCCC"),
			iv:      genomics.Interval{Reference: "r", Start: 105, End: 107},
			outcome: Emitted, seq: "",
		},
		{
			name:    "insertion inside interval is kept",
			rec:     newRecord(t, "d", 0, "2S3M2I3M", "ssAAAiiCCC"),
			iv:      genomics.Interval{Reference: "r", Start: 1, End: 5},
			outcome: Emitted, seq: "AAiiCC",
		},
		{
			name:    "alignment ends before interval end",
			rec:     newRecord(t, "e", 100, "10M", "ACGTACGTAC"),
			iv:      genomics.Interval{Reference: "r", Start: 105, End: 110},
			outcome: SpansStartOnly,
		},
		{
			name:    "alignment starts after interval start",
			rec:     newRecord(t, "f", 100, "10M", "ACGTACGTAC"),
			iv:      genomics.Interval{Reference: "r", Start: 95, End: 105},
			outcome: SpansEndOnly,
		},
		{
			name:    "alignment inside interval",
			rec:     newRecord(t, "g", 100, "10M", "ACGTACGTAC"),
			iv:      genomics.Interval{Reference: "r", Start: 90, End: 120},
			outcome: SpansNeither,
		},
		{
			name:    "all insertion",
			rec:     newRecord(t, "h", 100, "10S", "ACGTACGTAC"),
			iv:      genomics.Interval{Reference: "r", Start: 100, End: 101},
			outcome: SpansNeither,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.iv, tc.rec)
			if err != nil {
				t.Fatalf("Extract() returned error: %v", err)
			}
			if got.ID != tc.rec.ID {
				t.Errorf("Wrong ID: got %q, want %q", got.ID, tc.rec.ID)
			}
			if got.Outcome != tc.outcome {
				t.Errorf("Wrong outcome: got %s, want %s", got.Outcome, tc.outcome)
			}
			if string(got.Seq) != tc.seq {
				t.Errorf("Wrong sequence: got %q, want %q", got.Seq, tc.seq)
			}
			if tc.outcome == Emitted && got.Seq == nil {
				t.Errorf("Emitted result has nil sequence")
			}
		})
	}
}

func TestExtract_DoesNotAliasRecord(t *testing.T) {
	rec := newRecord(t, "a", 0, "4M", "ACGT")
	got, err := Extract(genomics.Interval{Reference: "r", Start: 0, End: 3}, rec)
	if err != nil {
		t.Fatalf("Extract() returned error: %v", err)
	}
	rec.Seq[0] = 'N'
	if got, want := string(got.Seq), "ACG"; got != want {
		t.Errorf("Result changed with record: got %q, want %q", got, want)
	}
}

func TestExtract_Errors(t *testing.T) {
	iv := genomics.Interval{Reference: "r", Start: 100, End: 105}
	testCases := []struct {
		name string
		rec  *Record
		want error
	}{
		{
			name: "unknown operation",
			rec: &Record{ID: "z", Pos: 100, Seq: []byte("ACGTACGTAC"), Cigar: cigar.Encoding{
				{Len: 5, Kind: cigar.Match, Code: 'M'}, {Len: 2, Kind: cigar.Kind(0), Code: 'Z'}, {Len: 5, Kind: cigar.Match, Code: 'M'},
			}},
			want: cigar.ErrUnrecognizedOperation,
		},
		{
			name: "zero length",
			rec: &Record{ID: "y", Pos: 100, Seq: []byte("ACGTACGTAC"), Cigar: cigar.Encoding{
				{Len: 0, Kind: cigar.Match, Code: 'M'},
			}},
			want: cigar.ErrInvalidEncoding,
		},
		{
			name: "undecodable encoding",
			rec:  &Record{ID: "w", Pos: 100, Seq: []byte("ACGT"), Invalid: cigar.ErrUnrecognizedOperation},
			want: cigar.ErrUnrecognizedOperation,
		},
		{
			name: "missing sequence",
			rec:  newRecord(t, "x", 100, "10M", ""),
			want: cigar.ErrInvalidEncoding,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(iv, tc.rec)
			if err == nil {
				t.Fatalf("Extract(): got %s, wanted error", got.Outcome)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Wrong error: got %v, want %v", err, tc.want)
			}
			var recErr *RecordError
			if !errors.As(err, &recErr) {
				t.Fatalf("Error is not a *RecordError: %T", err)
			}
			if got, want := recErr.ID, tc.rec.ID; got != want {
				t.Errorf("Wrong record ID: got %q, want %q", got, want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	var acc Accumulator
	for _, o := range []Outcome{Emitted, SpansStartOnly, SpansEndOnly, SpansNeither, Emitted, SpansNeither} {
		acc.Add(Result{ID: o.String(), Outcome: o, Seq: []byte{}})
	}
	want := Summary{Written: 2, SkippedStartOnly: 1, SkippedEndOnly: 1, SkippedNeither: 2}
	if acc.Summary != want {
		t.Errorf("Wrong summary: got %+v, want %+v", acc.Summary, want)
	}
	if got, want := len(acc.Results), 2; got != want {
		t.Errorf("Wrong number of results: got %d, want %d", got, want)
	}

	var other Accumulator
	other.Add(Result{ID: "x", Outcome: Emitted})
	other.Malformed = 3
	acc.Merge(&other)
	if got, want := acc.Total(), 10; got != want {
		t.Errorf("Wrong total: got %d, want %d", got, want)
	}
	if got, want := acc.Results[2].ID, "x"; got != want {
		t.Errorf("Merged results out of order: got %q, want %q", got, want)
	}
}
