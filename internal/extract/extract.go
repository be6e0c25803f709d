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

// Package extract slices the part of each aligned read that covers a target
// reference interval.
package extract

import (
	"fmt"

	"github.com/googlegenomics/extract-region/internal/cigar"
	"github.com/googlegenomics/extract-region/internal/coords"
	"github.com/googlegenomics/extract-region/internal/genomics"
)

// Record is a single alignment: a read placed on the reference at Pos
// (0-based) by Cigar.
type Record struct {
	ID    string
	Pos   int
	Cigar cigar.Encoding
	Seq   []byte
	// Invalid is set when the encoding could not be decoded.  Such records
	// are reported as malformed.
	Invalid error
}

// Outcome classifies a record against an interval.
type Outcome int

const (
	// Emitted records span both interval bounds.
	Emitted Outcome = iota
	// SpansStartOnly records cover the start but not the end.
	SpansStartOnly
	// SpansEndOnly records cover the end but not the start.
	SpansEndOnly
	// SpansNeither records cover neither bound.
	SpansNeither
)

func (o Outcome) String() string {
	switch o {
	case Emitted:
		return "emitted"
	case SpansStartOnly:
		return "spans-start-only"
	case SpansEndOnly:
		return "spans-end-only"
	case SpansNeither:
		return "spans-neither"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the outcome for one record.  Seq is set only when Outcome is
// Emitted and may be empty.
type Result struct {
	ID      string
	Outcome Outcome
	Seq     []byte
}

// RecordError reports a malformed record.
type RecordError struct {
	ID  string
	Err error
}

func (err *RecordError) Error() string {
	return fmt.Sprintf("record %q: %v", err.ID, err.Err)
}

func (err *RecordError) Unwrap() error {
	return err.Err
}

// Extract returns the outcome for rec against iv.  The subsequence of an
// emitted record is Seq[map(Start):map(End)], copied out of rec.  Encoding
// errors are returned as a *RecordError and never classified.
func Extract(iv genomics.Interval, rec *Record) (Result, error) {
	if rec.Invalid != nil {
		return Result{}, &RecordError{rec.ID, rec.Invalid}
	}
	m, err := coords.Build(rec.Pos, rec.Cigar)
	if err != nil {
		return Result{}, &RecordError{rec.ID, err}
	}

	lo, hasStart := m.Lookup(iv.Start)
	hi, hasEnd := m.Lookup(iv.End)
	switch {
	case hasStart && hasEnd:
	case hasStart:
		return Result{ID: rec.ID, Outcome: SpansStartOnly}, nil
	case hasEnd:
		return Result{ID: rec.ID, Outcome: SpansEndOnly}, nil
	default:
		return Result{ID: rec.ID, Outcome: SpansNeither}, nil
	}

	if hi < lo {
		hi = lo
	}
	if hi > len(rec.Seq) {
		return Result{}, &RecordError{rec.ID, fmt.Errorf("%w: offset %d beyond sequence of length %d", cigar.ErrInvalidEncoding, hi, len(rec.Seq))}
	}
	seq := make([]byte, hi-lo)
	copy(seq, rec.Seq[lo:hi])
	return Result{ID: rec.ID, Outcome: Emitted, Seq: seq}, nil
}

// Summary holds the aggregate counts of a run.
type Summary struct {
	Written          int `json:"written"`
	SkippedStartOnly int `json:"skipped_start_only"`
	SkippedEndOnly   int `json:"skipped_end_only"`
	SkippedNeither   int `json:"skipped_neither"`
	// Malformed counts records dropped because their encoding was invalid.
	Malformed int `json:"malformed"`
}

// Total returns the number of records accounted for.
func (s Summary) Total() int {
	return s.Written + s.SkippedStartOnly + s.SkippedEndOnly + s.SkippedNeither + s.Malformed
}

// Add counts r.
func (s *Summary) Add(r Result) {
	switch r.Outcome {
	case Emitted:
		s.Written++
	case SpansStartOnly:
		s.SkippedStartOnly++
	case SpansEndOnly:
		s.SkippedEndOnly++
	case SpansNeither:
		s.SkippedNeither++
	}
}

// Merge adds the counts of other to s.
func (s *Summary) Merge(other Summary) {
	s.Written += other.Written
	s.SkippedStartOnly += other.SkippedStartOnly
	s.SkippedEndOnly += other.SkippedEndOnly
	s.SkippedNeither += other.SkippedNeither
	s.Malformed += other.Malformed
}

// Accumulator collects emitted results and counts in input order.
type Accumulator struct {
	Summary
	Results []Result
}

// Add folds r into the accumulator.
func (acc *Accumulator) Add(r Result) {
	acc.Summary.Add(r)
	if r.Outcome == Emitted {
		acc.Results = append(acc.Results, r)
	}
}

// Merge appends the contents of other after those of acc.
func (acc *Accumulator) Merge(other *Accumulator) {
	acc.Summary.Merge(other.Summary)
	acc.Results = append(acc.Results, other.Results...)
}
