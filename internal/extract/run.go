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
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/googlegenomics/extract-region/internal/genomics"
)

// The number of records handed to a worker at a time.
const batchSize = 512

// Records is a lazily consumed sequence of alignment records.  Each call to
// Record after a successful Next must return a distinct *Record.
type Records interface {
	Next() bool
	Record() *Record
	Err() error
}

// Policy selects what Run does with malformed records.
type Policy int

const (
	// Abort stops the run at the first malformed record.
	Abort Policy = iota
	// Skip logs malformed records, counts them as Malformed and continues.
	Skip
)

// ParsePolicy parses "abort" or "skip".
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "abort":
		return Abort, nil
	case "skip":
		return Skip, nil
	}
	return Abort, fmt.Errorf("unknown error policy %q", name)
}

func (p Policy) String() string {
	if p == Skip {
		return "skip"
	}
	return "abort"
}

// Options configures Run.
type Options struct {
	// Workers is the number of goroutines extracting records.  Values below
	// two process records on the calling goroutine.
	Workers int
	// OnError selects the policy for malformed records.
	OnError Policy
}

// Run extracts every record in records against iv, calling emit with each
// emitted result in input order, and returns the aggregate counts.  The
// output is identical for any number of workers.
//
// Under the Abort policy the first malformed record stops the run and its
// *RecordError is returned along with the counts accumulated before it.
func Run(ctx context.Context, iv genomics.Interval, records Records, opts Options, emit func(Result) error) (Summary, error) {
	if emit == nil {
		emit = func(Result) error { return nil }
	}
	if opts.Workers < 2 {
		return runSequential(ctx, iv, records, opts, emit)
	}
	return runParallel(ctx, iv, records, opts, emit)
}

// Collect runs the extraction and returns the emitted results together with
// the counts.
func Collect(ctx context.Context, iv genomics.Interval, records Records, opts Options) (*Accumulator, error) {
	acc := &Accumulator{}
	summary, err := Run(ctx, iv, records, opts, func(r Result) error {
		acc.Results = append(acc.Results, r)
		return nil
	})
	acc.Summary = summary
	return acc, err
}

func readBatch(records Records, n int) []*Record {
	var batch []*Record
	for len(batch) < n && records.Next() {
		batch = append(batch, records.Record())
	}
	return batch
}

// extractBatch folds a batch into a fresh accumulator.  Under Abort it stops
// at the first malformed record, returning what was accumulated before it.
func extractBatch(iv genomics.Interval, batch []*Record, policy Policy) (*Accumulator, error) {
	acc := &Accumulator{}
	for _, rec := range batch {
		r, err := Extract(iv, rec)
		if err != nil {
			if policy == Skip {
				log.Printf("Skipping malformed record: %v", err)
				acc.Malformed++
				continue
			}
			return acc, err
		}
		acc.Add(r)
	}
	return acc, nil
}

// reduce merges a batch into summary and emits its results.
func reduce(summary *Summary, acc *Accumulator, emit func(Result) error) error {
	summary.Merge(acc.Summary)
	for _, r := range acc.Results {
		if err := emit(r); err != nil {
			return fmt.Errorf("emitting %q: %v", r.ID, err)
		}
	}
	return nil
}

func runSequential(ctx context.Context, iv genomics.Interval, records Records, opts Options, emit func(Result) error) (Summary, error) {
	var summary Summary
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		batch := readBatch(records, batchSize)
		if len(batch) == 0 {
			break
		}
		acc, extractErr := extractBatch(iv, batch, opts.OnError)
		if err := reduce(&summary, acc, emit); err != nil {
			return summary, err
		}
		if extractErr != nil {
			return summary, extractErr
		}
	}
	if err := records.Err(); err != nil {
		return summary, fmt.Errorf("reading records: %w", err)
	}
	return summary, nil
}

type job struct {
	seq   int
	batch []*Record
}

type partial struct {
	seq int
	acc *Accumulator
	err error
}

func runParallel(ctx context.Context, iv genomics.Interval, records Records, opts Options, emit func(Result) error) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job, opts.Workers*2)
	results := make(chan partial, opts.Workers*2)

	var wg sync.WaitGroup
	wg.Add(opts.Workers)
	for w := 0; w < opts.Workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				acc, err := extractBatch(iv, j.batch, opts.OnError)
				select {
				case results <- partial{j.seq, acc, err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// The feeder owns records until fed is closed.
	fed := make(chan struct{})
	go func() {
		defer close(fed)
		defer close(jobs)
		for seq := 0; ; seq++ {
			if ctx.Err() != nil {
				return
			}
			batch := readBatch(records, batchSize)
			if len(batch) == 0 {
				return
			}
			select {
			case jobs <- job{seq, batch}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		summary Summary
		pending = make(map[int]partial)
		next    int
	)
	fail := func(err error) (Summary, error) {
		cancel()
		<-fed
		return summary, err
	}
	for p := range results {
		pending[p.seq] = p
		for {
			q, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := reduce(&summary, q.acc, emit); err != nil {
				return fail(err)
			}
			if q.err != nil {
				return fail(q.err)
			}
		}
	}
	<-fed

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if err := records.Err(); err != nil {
		return summary, fmt.Errorf("reading records: %w", err)
	}
	return summary, nil
}
