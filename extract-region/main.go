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

// This binary writes, as FASTA, the part of each read in a SAM or BAM file
// that spans a reference interval, and reports how many reads did not span
// it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/profile"

	"github.com/googlegenomics/extract-region/internal/extract"
	"github.com/googlegenomics/extract-region/internal/fasta"
	"github.com/googlegenomics/extract-region/internal/genomics"
	"github.com/googlegenomics/extract-region/internal/source"
	"github.com/googlegenomics/extract-region/internal/storage"
)

var (
	input  = flag.String("i", "", "input SAM or BAM file, gs://bucket/object, or - for standard input")
	output = flag.String("o", "-", "output FASTA file, or - for standard output")
	region = flag.String("c", "", "reference coordinates as chr:start-end (1-based, inclusive)")

	buffer     = flag.Int("b", source.DefaultBuffer, "buffer size for extracting reads surrounding the region")
	minMapQ    = flag.Int("m", source.DefaultMinMapQ, "minimum read MAPQ")
	keepSuppl  = flag.Bool("keep-suppl", false, "do not discard supplementary alignments")
	inputType  = flag.String("format", "", "input format (SAM or BAM) when reading standard input")
	workers    = flag.Int("workers", runtime.NumCPU(), "number of extraction workers")
	onError    = flag.String("on-error", "abort", "what to do with malformed records: abort or skip")
	profileRun = flag.String("profile", "", "write a cpu or mem profile to the current directory")
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *input == "" || *region == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background()); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

type stopper interface {
	Stop()
}

type noProfile struct{}

func (noProfile) Stop() {}

func startProfile(mode string) (stopper, error) {
	switch mode {
	case "":
		return noProfile{}, nil
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath(".")), nil
	case "mem":
		return profile.Start(profile.MemProfile, profile.ProfilePath(".")), nil
	}
	return nil, fmt.Errorf("unknown profile mode %q", mode)
}

func run(ctx context.Context) error {
	p, err := startProfile(*profileRun)
	if err != nil {
		return err
	}
	defer p.Stop()

	iv, err := genomics.ParseRegion(*region)
	if err != nil {
		return err
	}
	policy, err := extract.ParsePolicy(*onError)
	if err != nil {
		return err
	}
	if *buffer < 0 {
		return fmt.Errorf("invalid buffer %d", *buffer)
	}

	opts := source.Options{
		Region:            iv,
		Buffer:            *buffer,
		MinMapQ:           *minMapQ,
		KeepSupplementary: *keepSuppl,
	}
	records, closer, err := openInput(ctx, *input, *inputType, opts)
	if err != nil {
		return err
	}
	defer closer.Close()

	out, err := createOutput(*output)
	if err != nil {
		return err
	}
	w := fasta.NewWriter(out)

	summary, err := extract.Run(ctx, iv, records, extract.Options{Workers: *workers, OnError: policy}, func(r extract.Result) error {
		return w.Write(r.ID, r.Seq)
	})
	if flushErr := w.Flush(); err == nil && flushErr != nil {
		err = fmt.Errorf("writing %s: %v", *output, flushErr)
	}
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing %s: %v", *output, closeErr)
	}
	if err != nil {
		return err
	}

	stats := records.Stats()
	log.Printf("Read %d records: %d off target, %d outside window, %d supplementary, %d below MAPQ %d, %d without sequence",
		stats.Read, stats.OffTarget, stats.Outside, stats.Supplementary, stats.LowMapQ, *minMapQ, stats.NoSequence)
	printSummary(os.Stdout, summary)
	return nil
}

// openInput opens name as a local file, a storage object or standard input.
// The returned closer releases the source and anything it reads from.
func openInput(ctx context.Context, name, format string, opts source.Options) (*source.Source, io.Closer, error) {
	switch {
	case name == "-":
		f, err := parseFormat(format)
		if err != nil {
			return nil, nil, err
		}
		s, err := source.New(os.Stdin, f, opts)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case storage.IsURL(name):
		bucket, object, err := storage.ParseURL(name)
		if err != nil {
			return nil, nil, err
		}
		f, err := source.FormatFromName(object)
		if err != nil {
			return nil, nil, err
		}
		client, _, err := storage.NewDefaultClient(nil)
		if err != nil {
			return nil, nil, err
		}
		data, err := storage.Open(ctx, client, bucket, object)
		if err != nil {
			return nil, nil, err
		}
		s, err := source.New(data, f, opts)
		if err != nil {
			data.Close()
			return nil, nil, err
		}
		return s, closers{s, data}, nil
	}

	s, err := source.Open(ctx, name, opts)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

func parseFormat(format string) (source.Format, error) {
	switch strings.ToUpper(format) {
	case "SAM":
		return source.SAM, nil
	case "BAM":
		return source.BAM, nil
	}
	return 0, fmt.Errorf("%w: -format must be SAM or BAM when reading standard input", source.ErrUnsupportedFormat)
}

type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, closer := range c {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func createOutput(name string) (io.WriteCloser, error) {
	if name == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("creating output: %v", err)
	}
	return f, nil
}

func printSummary(w io.Writer, summary extract.Summary) {
	fmt.Fprintln(w, "sequences written:", summary.Written)
	fmt.Fprintln(w, "reads skipped:")
	fmt.Fprintln(w, " - spanned start coord but not end:", summary.SkippedStartOnly)
	fmt.Fprintln(w, " - spanned end coord but not start:", summary.SkippedEndOnly)
	fmt.Fprintln(w, " - spanned neither start nor end:  ", summary.SkippedNeither)
	if summary.Malformed > 0 {
		fmt.Fprintln(w, "malformed records skipped:", summary.Malformed)
	}
}
