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

// Package source reads alignment records from SAM and BAM data and filters
// them down to the records relevant to a target interval.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strings"

	"github.com/biogo/hts/sam"

	"github.com/googlegenomics/extract-region/internal/cigar"
	"github.com/googlegenomics/extract-region/internal/extract"
	"github.com/googlegenomics/extract-region/internal/genomics"
)

const (
	// DefaultBuffer is the number of bases around the interval within which
	// records are considered.
	DefaultBuffer = 50000
	// DefaultMinMapQ is the default mapping quality threshold.
	DefaultMinMapQ = 3
)

var (
	// ErrReferenceNotFound is returned when the header does not name the
	// requested reference.
	ErrReferenceNotFound = errors.New("reference not found")
	// ErrEmptyOrMissingSource is returned when the input does not exist or
	// holds no data.
	ErrEmptyOrMissingSource = errors.New("empty or missing source")
	// ErrUnsupportedFormat is returned for inputs that are neither SAM nor
	// BAM.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Format identifies the serialization of an alignment source.
type Format int

const (
	// SAM is the tab-delimited text format.
	SAM Format = iota + 1
	// BAM is the BGZF compressed binary format.
	BAM
)

func (f Format) String() string {
	switch f {
	case SAM:
		return "SAM"
	case BAM:
		return "BAM"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// FormatFromName determines the format from the extension of name.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".sam":
		return SAM, nil
	case ".bam":
		return BAM, nil
	case ".cram":
		return 0, fmt.Errorf("%w: CRAM input %q", ErrUnsupportedFormat, name)
	}
	return 0, fmt.Errorf("%w: unknown file type %q", ErrUnsupportedFormat, name)
}

// Options controls which records a Source yields.
type Options struct {
	// Region is the target interval.  Only records on Region.Reference that
	// overlap the interval widened by Buffer are considered.
	Region genomics.Interval
	// Buffer widens the interval on both sides.
	Buffer int
	// MinMapQ discards records with a lower mapping quality.
	MinMapQ int
	// KeepSupplementary retains supplementary alignments.
	KeepSupplementary bool
}

// DefaultOptions returns the options used when nothing else is specified.
func DefaultOptions(region genomics.Interval) Options {
	return Options{Region: region, Buffer: DefaultBuffer, MinMapQ: DefaultMinMapQ}
}

// Stats counts the records a Source has read and discarded.
type Stats struct {
	Read          int
	OffTarget     int
	Outside       int
	Supplementary int
	LowMapQ       int
	NoSequence    int
}

// alignment is the format independent form of a single record.
type alignment struct {
	name  string
	refID int
	pos   int
	end   int
	mapQ  int
	flags sam.Flags
	cigar cigar.Encoding
	err   error
	seq   []byte
}

// newAlignment returns the alignment of a record.  The reference end of a
// record whose encoding could not be decoded is unknown, so it is taken to
// extend to the end of the reference.
func newAlignment(name string, refID, pos, mapQ int, flags sam.Flags, enc cigar.Encoding, err error, seq []byte) *alignment {
	a := &alignment{name: name, refID: refID, pos: pos, mapQ: mapQ, flags: flags, cigar: enc, err: err, seq: seq}
	switch n, _ := enc.Lengths(); {
	case err != nil:
		a.end = math.MaxInt
	case n > 0:
		a.end = pos + n
	default:
		a.end = pos + 1
	}
	return a
}

// reader returns successive alignments, or io.EOF once exhausted.
type reader interface {
	next() (*alignment, error)
}

// Source yields the filtered records of an alignment file.  It implements
// extract.Records.
type Source struct {
	r       reader
	target  int
	window  genomics.Region
	opts    Options
	sorted  bool
	closers []io.Closer

	rec   *extract.Record
	err   error
	done  bool
	stats Stats
}

// Open opens the SAM or BAM file name.  BAM files with a .bai index next to
// them are read through the index.
func Open(ctx context.Context, name string, opts Options) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyOrMissingSource, err)
	} else if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrEmptyOrMissingSource, name)
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyOrMissingSource, err)
	}

	var s *Source
	if format == BAM {
		if index, ok := openIndex(name); ok {
			s, err = newIndexedBAM(f, index, opts)
			index.Close()
			if err != nil {
				f.Close()
				return nil, err
			}
			s.closers = append([]io.Closer{f}, s.closers...)
			return s, nil
		}
	}

	s, err = New(f, format, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closers = append(s.closers, f)
	return s, nil
}

// openIndex looks for the index of a BAM file as name.bai or, with the
// .bam suffix replaced, name.bai.
func openIndex(name string) (*os.File, bool) {
	for _, candidate := range []string{name + ".bai", strings.TrimSuffix(name, path.Ext(name)) + ".bai"} {
		if f, err := os.Open(candidate); err == nil {
			return f, true
		}
	}
	return nil, false
}

// New reads records of the given format from r.  The caller remains
// responsible for closing r.
func New(r io.Reader, format Format, opts Options) (*Source, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no input", ErrEmptyOrMissingSource)
	}
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err == io.EOF {
		return nil, fmt.Errorf("%w: no data", ErrEmptyOrMissingSource)
	} else if err != nil {
		return nil, fmt.Errorf("reading input: %v", err)
	}

	switch format {
	case SAM:
		return newSAM(br, opts)
	case BAM:
		return newBAM(br, opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// newSource resolves the target reference in header, whose text form is
// text, and returns a Source reading from r.
func newSource(r reader, header *sam.Header, text []byte, opts Options) (*Source, error) {
	ref, err := resolveReference(header, text, opts.Region.Reference)
	if err != nil {
		return nil, err
	}
	return &Source{
		r:      r,
		target: ref.ID(),
		window: opts.Region.Widen(int32(ref.ID()), opts.Buffer),
		opts:   opts,
		sorted: header.SortOrder == sam.Coordinate,
	}, nil
}

// Next advances to the next record that passes the filters.
func (s *Source) Next() bool {
	if s.err != nil || s.done {
		return false
	}
	for {
		a, err := s.r.next()
		if err == io.EOF {
			s.done = true
			return false
		}
		if err != nil {
			s.err = err
			return false
		}
		s.stats.Read++

		if s.pastWindow(a) {
			s.done = true
			return false
		}
		if !s.accept(a) {
			continue
		}
		s.rec = &extract.Record{ID: a.name, Pos: a.pos, Cigar: a.cigar, Seq: a.seq, Invalid: a.err}
		return true
	}
}

// Record returns the current record.
func (s *Source) Record() *extract.Record {
	return s.rec
}

// Err returns the error that stopped iteration, if any.
func (s *Source) Err() error {
	return s.err
}

// Stats returns the counts of records read and discarded so far.
func (s *Source) Stats() Stats {
	return s.stats
}

// Close releases the underlying readers.
func (s *Source) Close() error {
	var errs []string
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	s.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("closing source: %s", strings.Join(errs, "; "))
	}
	return nil
}

// pastWindow reports whether a sorted input can hold no further records in
// the window.
func (s *Source) pastWindow(a *alignment) bool {
	if !s.sorted {
		return false
	}
	return a.refID < 0 || a.refID > s.target || (a.refID == s.target && a.pos >= int(s.window.End))
}

func (s *Source) accept(a *alignment) bool {
	switch {
	case a.flags&sam.Unmapped != 0 || a.refID != s.target:
		s.stats.OffTarget++
	case a.pos >= int(s.window.End) || a.end <= int(s.window.Start):
		s.stats.Outside++
	case a.flags&sam.Supplementary != 0 && !s.opts.KeepSupplementary:
		s.stats.Supplementary++
	case a.mapQ < s.opts.MinMapQ:
		s.stats.LowMapQ++
	case len(a.seq) == 0:
		s.stats.NoSequence++
	default:
		return true
	}
	return false
}
