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

package source

import (
	"fmt"
	"io"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"github.com/googlegenomics/extract-region/internal/bai"
	"github.com/googlegenomics/extract-region/internal/bgzf"
	"github.com/googlegenomics/extract-region/internal/cigar"
)

// Chunks from the index closer than this are read as one.
const mergeLimit = 1 << 30

type recordReader interface {
	Read() (*sam.Record, error)
}

// bamReader streams every record of a BAM file.
type bamReader struct {
	r recordReader
}

func (r *bamReader) next() (*alignment, error) {
	rec, err := r.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("reading BAM record: %v", err)
	}
	return fromRecord(rec), nil
}

// iteratorReader reads the records in the chunks selected from an index.
type iteratorReader struct {
	it *bam.Iterator
}

func (r *iteratorReader) next() (*alignment, error) {
	if !r.it.Next() {
		if err := r.it.Error(); err != nil {
			return nil, fmt.Errorf("reading BAM record: %v", err)
		}
		return nil, io.EOF
	}
	return fromRecord(r.it.Record()), nil
}

type emptyReader struct{}

func (emptyReader) next() (*alignment, error) {
	return nil, io.EOF
}

func fromRecord(rec *sam.Record) *alignment {
	refID := -1
	if rec.Ref != nil {
		refID = rec.Ref.ID()
	}
	enc, err := cigar.FromSAM(rec.Cigar)
	return newAlignment(rec.Name, refID, rec.Pos, int(rec.MapQ), rec.Flags, enc, err, rec.Seq.Expand())
}

// headerText returns the SAM text form of header, or nil if it cannot be
// formatted.
func headerText(header *sam.Header) []byte {
	text, err := header.MarshalText()
	if err != nil {
		return nil
	}
	return text
}

func newBAM(r io.Reader, opts Options) (*Source, error) {
	br, err := bam.NewReader(r, 1)
	if err != nil {
		return nil, fmt.Errorf("reading BAM header: %v", err)
	}
	s, err := newSource(&bamReader{br}, br.Header(), headerText(br.Header()), opts)
	if err != nil {
		br.Close()
		return nil, err
	}
	s.closers = append(s.closers, br)
	return s, nil
}

// newIndexedBAM reads only the chunks of f that the index lists for the
// window around the target interval.
func newIndexedBAM(f io.ReadSeeker, index io.Reader, opts Options) (*Source, error) {
	br, err := bam.NewReader(f, 1)
	if err != nil {
		return nil, fmt.Errorf("reading BAM header: %v", err)
	}
	s, err := newSource(emptyReader{}, br.Header(), headerText(br.Header()), opts)
	if err != nil {
		br.Close()
		return nil, err
	}

	chunks, err := bai.Read(index, s.window)
	if err != nil {
		br.Close()
		return nil, fmt.Errorf("reading index: %v", err)
	}
	chunks = bgzf.Merge(chunks, mergeLimit)
	if len(chunks) == 0 {
		s.closers = append(s.closers, br)
		return s, nil
	}

	it, err := bam.NewIterator(br, bgzf.Chunks(chunks))
	if err != nil {
		br.Close()
		return nil, fmt.Errorf("seeking to %s: %v", chunks[0], err)
	}
	s.r = &iteratorReader{it}
	s.closers = append(s.closers, br, it)
	return s, nil
}
