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

package fasta

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	long := strings.Repeat("ACGT", 100)
	records := []struct{ name, seq string }{
		{"read1", "ACGTA"},
		{"read2", ""},
		{"read3", long},
	}
	for _, r := range records {
		if err := w.Write(r.name, []byte(r.seq)); err != nil {
			t.Fatalf("Write(%q) returned error: %v", r.name, err)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("Output written before Flush: %q", buf.String())
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() returned error: %v", err)
	}

	want := ">read1\nACGTA\n>read2\n\n>read3\n" + long + "\n"
	if got := buf.String(); got != want {
		t.Errorf("Wrong output: got %q, want %q", got, want)
	}
}

func TestWriter_InvalidName(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, name := range []string{"", "two\nlines"} {
		if err := w.Write(name, []byte("A")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Write(%q): got %v, want %v", name, err, ErrInvalidName)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() returned error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Rejected records were written: %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriter_FlushError(t *testing.T) {
	w := NewWriter(failingWriter{})
	if err := w.Write("read1", []byte("ACGT")); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}
	if err := w.Flush(); err == nil {
		t.Error("Flush() succeeded on a failing writer")
	}
}
