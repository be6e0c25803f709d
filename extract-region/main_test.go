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

package main

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/extract-region/internal/extract"
	"github.com/googlegenomics/extract-region/internal/genomics"
	"github.com/googlegenomics/extract-region/internal/source"
	"github.com/googlegenomics/extract-region/internal/storage"
)

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, extract.Summary{Written: 3, SkippedStartOnly: 1, SkippedEndOnly: 2, SkippedNeither: 4})

	want := "sequences written: 3\n" +
		"reads skipped:\n" +
		" - spanned start coord but not end: 1\n" +
		" - spanned end coord but not start: 2\n" +
		" - spanned neither start nor end:   4\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	printSummary(&buf, extract.Summary{Malformed: 2})
	assert.Contains(t, buf.String(), "malformed records skipped: 2\n")
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]source.Format{"sam": source.SAM, "BAM": source.BAM} {
		got, err := parseFormat(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := parseFormat("")
	assert.True(t, errors.Is(err, source.ErrUnsupportedFormat))
}

func TestOpenInput(t *testing.T) {
	iv, err := genomics.ParseRegion("chr1:105-108")
	require.NoError(t, err)
	opts := source.DefaultOptions(iv)

	dir := t.TempDir()
	name := filepath.Join(dir, "reads.sam")
	require.NoError(t, ioutil.WriteFile(name, []byte("@SQ\tSN:chr1\tLN:1000\n"+
		"r1\t0\tchr1\t101\t60\t10M\t*\t0\t0\tACGTACGTAC\t*\n"), 0644))

	records, closer, err := openInput(context.Background(), name, "", opts)
	require.NoError(t, err)
	defer closer.Close()

	acc, err := extract.Collect(context.Background(), iv, records, extract.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, acc.Written)

	_, _, err = openInput(context.Background(), filepath.Join(dir, "missing.bam"), "", opts)
	assert.True(t, errors.Is(err, source.ErrEmptyOrMissingSource))

	_, _, err = openInput(context.Background(), "gs://bucket", "", opts)
	assert.True(t, errors.Is(err, storage.ErrInvalidURL))
}

func TestOpenInput_DefaultCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(t.TempDir(), "missing.json"))
	iv, err := genomics.ParseRegion("chr1:105-108")
	require.NoError(t, err)

	_, _, err = openInput(context.Background(), "gs://bucket/reads.sam", "", source.DefaultOptions(iv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating storage client")
}
