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

// Package cigar provides a typed representation of alignment encodings.
//
// An Encoding only distinguishes how each operation consumes coordinates:
// both reference and read (Match), reference only (Deletion) or read only
// (Insertion).  Operations that consume neither coordinate (hard clips and
// padding) are dropped while parsing since they cannot move either cursor.
package cigar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"
)

var (
	// ErrUnrecognizedOperation is returned (wrapped) for operation codes
	// outside the set of known CIGAR operations.
	ErrUnrecognizedOperation = errors.New("unrecognized operation")
	// ErrInvalidEncoding is returned (wrapped) for missing or non-positive
	// lengths and for empty encodings.
	ErrInvalidEncoding = errors.New("invalid encoding")
)

// Kind classifies an operation by the coordinates it consumes.
type Kind byte

const (
	// Match consumes reference and read coordinates one for one (M, = and X).
	Match Kind = iota + 1
	// Deletion consumes reference coordinates only (D and N).
	Deletion
	// Insertion consumes read coordinates only (I and S).
	Insertion
)

func (k Kind) String() string {
	switch k {
	case Match:
		return "match"
	case Deletion:
		return "deletion"
	case Insertion:
		return "insertion"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// Op is a single run-length operation.  Code holds the original CIGAR
// letter for reporting.
type Op struct {
	Len  int
	Kind Kind
	Code byte
}

func (op Op) String() string {
	return strconv.Itoa(op.Len) + string(op.Code)
}

// Encoding is an ordered list of operations.
type Encoding []Op

func (e Encoding) String() string {
	var b strings.Builder
	for _, op := range e {
		b.WriteString(op.String())
	}
	return b.String()
}

// Lengths returns the number of reference and read coordinates consumed by
// e.
func (e Encoding) Lengths() (ref, read int) {
	for _, op := range e {
		switch op.Kind {
		case Match:
			ref += op.Len
			read += op.Len
		case Deletion:
			ref += op.Len
		case Insertion:
			read += op.Len
		}
	}
	return ref, read
}

// maxOpLen is the largest length representable in a BAM CIGAR operation.
const maxOpLen = 1<<28 - 1

// kinds maps CIGAR letters to their kind.  Letters mapped to zero are valid
// but consume nothing.
var kinds = map[byte]Kind{
	'M': Match,
	'=': Match,
	'X': Match,
	'D': Deletion,
	'N': Deletion,
	'I': Insertion,
	'S': Insertion,
	'H': 0,
	'P': 0,
}

// Parse parses a textual CIGAR string such as "3S10M2D5M".
func Parse(input string) (Encoding, error) {
	if input == "" || input == "*" {
		return nil, fmt.Errorf("%w: no operations", ErrInvalidEncoding)
	}

	var (
		enc    Encoding
		digits int
		n      int
	)
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			digits++
			if n > maxOpLen {
				return nil, fmt.Errorf("%w: operation length too large at offset %d", ErrInvalidEncoding, i)
			}
			continue
		}
		kind, ok := kinds[c]
		if !ok {
			return nil, fmt.Errorf("%w %q at offset %d", ErrUnrecognizedOperation, c, i)
		}
		if digits == 0 {
			return nil, fmt.Errorf("%w: missing length for %q at offset %d", ErrInvalidEncoding, c, i)
		}
		if n <= 0 {
			return nil, fmt.Errorf("%w: non-positive length for %q at offset %d", ErrInvalidEncoding, c, i)
		}
		if kind != 0 {
			enc = append(enc, Op{Len: n, Kind: kind, Code: c})
		}
		n, digits = 0, 0
	}
	if digits != 0 {
		return nil, fmt.Errorf("%w: trailing length without operation", ErrInvalidEncoding)
	}
	return enc, nil
}

// FromSAM converts a decoded SAM/BAM CIGAR into an Encoding.
func FromSAM(cigar sam.Cigar) (Encoding, error) {
	if len(cigar) == 0 {
		return nil, fmt.Errorf("%w: no operations", ErrInvalidEncoding)
	}

	enc := make(Encoding, 0, len(cigar))
	for i, co := range cigar {
		var kind Kind
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			kind = Match
		case sam.CigarDeletion, sam.CigarSkipped:
			kind = Deletion
		case sam.CigarInsertion, sam.CigarSoftClipped:
			kind = Insertion
		case sam.CigarHardClipped, sam.CigarPadded:
		default:
			return nil, fmt.Errorf("%w %q at operation %d", ErrUnrecognizedOperation, co.Type().String(), i)
		}
		if co.Len() <= 0 {
			return nil, fmt.Errorf("%w: non-positive length at operation %d", ErrInvalidEncoding, i)
		}
		if kind != 0 {
			enc = append(enc, Op{Len: co.Len(), Kind: kind, Code: co.Type().String()[0]})
		}
	}
	return enc, nil
}
