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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"

	"github.com/googlegenomics/extract-region/internal/cigar"
)

const (
	// The number of mandatory fields in a SAM alignment line.
	samFields = 11

	maxLineLength = 64 << 20
)

// samReader reads SAM text line by line.  Alignment lines are split here
// rather than by sam.Reader so that a record with a bad CIGAR string is
// reported as a malformed record under its name instead of failing the
// whole stream.
type samReader struct {
	scanner *bufio.Scanner
	refs    map[string]int
	pending *string
	line    int
}

func newSAM(r io.Reader, opts Options) (*Source, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineLength)

	sr := &samReader{scanner: scanner, refs: make(map[string]int)}
	var text bytes.Buffer
	for scanner.Scan() {
		sr.line++
		line := scanner.Text()
		if !strings.HasPrefix(line, "@") {
			sr.pending = &line
			break
		}
		text.WriteString(line)
		text.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading SAM header: %v", err)
	}

	header, err := sam.NewHeader(text.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("parsing SAM header: %v", err)
	}
	for _, ref := range header.Refs() {
		sr.refs[ref.Name()] = ref.ID()
	}
	return newSource(sr, header, text.Bytes(), opts)
}

func (r *samReader) next() (*alignment, error) {
	for {
		var line string
		if r.pending != nil {
			line, r.pending = *r.pending, nil
		} else {
			if !r.scanner.Scan() {
				if err := r.scanner.Err(); err != nil {
					return nil, fmt.Errorf("reading SAM line %d: %v", r.line+1, err)
				}
				return nil, io.EOF
			}
			r.line++
			line = r.scanner.Text()
		}
		if line == "" {
			continue
		}
		a, err := r.parse(line)
		if err != nil {
			return nil, fmt.Errorf("parsing SAM line %d: %v", r.line, err)
		}
		return a, nil
	}
}

func (r *samReader) parse(line string) (*alignment, error) {
	fields := strings.SplitN(line, "\t", samFields+1)
	if len(fields) < samFields {
		return nil, fmt.Errorf("expected at least %d fields, found %d", samFields, len(fields))
	}

	flags, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("parsing flags: %v", err)
	}
	refID := -1
	if id, ok := r.refs[fields[2]]; ok {
		refID = id
	}
	pos, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("parsing position: %v", err)
	}
	mapQ, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, fmt.Errorf("parsing mapping quality: %v", err)
	}

	enc, cigarErr := cigar.Parse(fields[5])
	var seq []byte
	if fields[9] != "*" {
		seq = []byte(fields[9])
	}
	return newAlignment(fields[0], refID, pos-1, mapQ, sam.Flags(flags), enc, cigarErr, seq), nil
}
