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

// Package fasta writes unwrapped FASTA records.
package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidName is returned for record names that cannot be written on a
// single header line.
var ErrInvalidName = errors.New("invalid record name")

// Writer writes records as a header line followed by the whole sequence on
// one line.  Output is buffered; call Flush when done.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes one record.  An empty sequence produces an empty sequence
// line.
func (w *Writer) Write(name string, seq []byte) error {
	if name == "" || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	if _, err := fmt.Fprintf(w.w, ">%s\n%s\n", name, seq); err != nil {
		return fmt.Errorf("writing %q: %v", name, err)
	}
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
