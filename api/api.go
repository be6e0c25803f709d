// Copyright 2017 Google Inc.
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

// Package api implements an HTTP API that extracts the part of each read in
// a stored alignment file covering a reference interval.
//
// A request of the form
//
//	GET /extract/<bucket>/<object>?referenceName=chr1&start=1000&end=2000
//
// returns the extracted sequences as FASTA, or as JSON together with the
// summary counts when format=json is given.  As in htsget, start is 0-based
// and end is exclusive.  A 1-based inclusive region=chr1:1001-2000 may be
// given instead.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/googlegenomics/extract-region/internal/analytics"
	"github.com/googlegenomics/extract-region/internal/extract"
	"github.com/googlegenomics/extract-region/internal/fasta"
	"github.com/googlegenomics/extract-region/internal/genomics"
	"github.com/googlegenomics/extract-region/internal/source"
	"github.com/googlegenomics/extract-region/internal/storage"
)

const (
	extractPath = "/extract/:bucket/*object"

	requestIDHeader = "X-Request-Id"
	summaryHeader   = "X-Extract-"
)

var (
	errInvalidOrUnspecifiedID = errors.New("invalid or unspecified ID")
	errMissingReferenceName   = errors.New("no reference name specified")
)

// Server provides the extraction API.  Must be created with NewServer.
type Server struct {
	newStorageClient storage.NewClientFunc
	workers          int
	whitelist        map[string]bool
}

// NewServer returns a new Server that calls newStorageClient on each request
// to determine which storage client to use, and extracts records with the
// given number of workers.
func NewServer(newStorageClient storage.NewClientFunc, workers int) *Server {
	return &Server{newStorageClient, workers, make(map[string]bool)}
}

// Whitelist adds buckets to the set of buckets which the server is allowed to
// access. If Whitelist is never called for a given Server then reads from any
// bucket are allowed.
func (server *Server) Whitelist(buckets []string) {
	for _, bucket := range buckets {
		server.whitelist[bucket] = true
	}
}

// Export registers the extraction endpoint with router.
func (server *Server) Export(router gin.IRoutes) {
	router.GET(extractPath, forwardOrigin, server.serveExtract)
}

type sequence struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
}

type extractResponse struct {
	Region    string          `json:"region"`
	Summary   extract.Summary `json:"summary"`
	Sequences []sequence      `json:"sequences"`
}

func (server *Server) serveExtract(c *gin.Context) {
	ctx := c.Request.Context()
	id := uuid.New().String()
	c.Header(requestIDHeader, id)

	track := analytics.TrackerFromContext(ctx)
	track(analytics.Event("Extract", "Extract Request Received", "", nil))

	asJSON, err := parseOutputFormat(c.Query("format"))
	if err != nil {
		writeError(c, id, newUnsupportedFormatError(err))
		return
	}

	bucket, object := c.Param("bucket"), strings.TrimPrefix(c.Param("object"), "/")
	if bucket == "" || object == "" {
		writeError(c, id, newInvalidInputError("parsing object ID", errInvalidOrUnspecifiedID))
		return
	}
	format, err := source.FormatFromName(object)
	if err != nil {
		writeError(c, id, newUnsupportedFormatError(err))
		return
	}

	iv, err := parseInterval(c)
	if err != nil {
		if errors.Is(err, genomics.ErrInvalidRange) {
			writeError(c, id, newInvalidRangeError(err))
		} else {
			writeError(c, id, newInvalidInputError("parsing region", err))
		}
		return
	}
	opts, policy, err := parseOptions(c, iv)
	if err != nil {
		writeError(c, id, newInvalidInputError("parsing options", err))
		return
	}

	if err := server.checkWhitelist(bucket); err != nil {
		writeError(c, id, newPermissionDeniedError("checking whitelist", err))
		return
	}

	client, _, err := server.newStorageClient(c.Request)
	if err != nil {
		writeError(c, id, newStorageError("creating client", err))
		return
	}
	data, err := storage.Open(ctx, client, bucket, object)
	if err != nil {
		writeError(c, id, newStorageError("opening data", err))
		return
	}
	defer data.Close()

	records, err := source.New(data, format, opts)
	if err != nil {
		writeError(c, id, newSourceError(err))
		return
	}
	defer records.Close()

	acc, err := extract.Collect(ctx, iv, records, extract.Options{Workers: server.workers, OnError: policy})
	if err != nil {
		track(analytics.Event("Extract", "Extract Internal Error", "", nil))
		var recErr *extract.RecordError
		if errors.As(err, &recErr) {
			err = newMalformedRecordError(recErr)
		}
		writeError(c, id, err)
		return
	}
	for _, hit := range analytics.SummaryEvents("Extract", iv.Reference, acc.Summary) {
		track(hit)
	}
	log.Printf("[%s] %s %s: %+v", id, object, iv, acc.Summary)

	if asJSON {
		response := extractResponse{Region: iv.String(), Summary: acc.Summary, Sequences: make([]sequence, 0, len(acc.Results))}
		for _, r := range acc.Results {
			response.Sequences = append(response.Sequences, sequence{r.ID, string(r.Seq)})
		}
		c.JSON(http.StatusOK, response)
		return
	}

	writeSummaryHeaders(c, acc.Summary)
	c.Header("Content-Type", "text/x-fasta")
	c.Status(http.StatusOK)
	w := fasta.NewWriter(c.Writer)
	for _, r := range acc.Results {
		if err := w.Write(r.ID, r.Seq); err != nil {
			log.Printf("[%s] Failed to write response: %v", id, err)
			return
		}
	}
	if err := w.Flush(); err != nil {
		log.Printf("[%s] Failed to write response: %v", id, err)
	}
}

func writeSummaryHeaders(c *gin.Context, summary extract.Summary) {
	for _, h := range []struct {
		name string
		n    int
	}{
		{"Written", summary.Written},
		{"Skipped-Start-Only", summary.SkippedStartOnly},
		{"Skipped-End-Only", summary.SkippedEndOnly},
		{"Skipped-Neither", summary.SkippedNeither},
		{"Malformed", summary.Malformed},
	} {
		c.Header(summaryHeader+h.name, strconv.Itoa(h.n))
	}
}

func (server *Server) checkWhitelist(bucket string) error {
	if len(server.whitelist) == 0 || server.whitelist[bucket] {
		return nil
	}
	return fmt.Errorf("access to bucket %s is not allowed", bucket)
}

func parseOutputFormat(format string) (asJSON bool, err error) {
	switch format {
	case "", "fasta":
		return false, nil
	case "json":
		return true, nil
	}
	return false, fmt.Errorf("unsupported format %q", format)
}

// parseInterval reads either the region parameter or the referenceName,
// start and end parameters.
func parseInterval(c *gin.Context) (genomics.Interval, error) {
	if region := c.Query("region"); region != "" {
		iv, err := genomics.ParseRegion(region)
		if err != nil {
			return genomics.Interval{}, fmt.Errorf("parsing %q: %w", region, err)
		}
		return iv, nil
	}

	var (
		name  = c.Query("referenceName")
		start = c.Query("start")
		end   = c.Query("end")
	)
	if name == "" {
		return genomics.Interval{}, errMissingReferenceName
	}
	s, err := strconv.Atoi(start)
	if err != nil {
		return genomics.Interval{}, fmt.Errorf("parsing start: %v", err)
	}
	e, err := strconv.Atoi(end)
	if err != nil {
		return genomics.Interval{}, fmt.Errorf("parsing end: %v", err)
	}
	return genomics.NewInterval(name, s, e)
}

func parseOptions(c *gin.Context, iv genomics.Interval) (source.Options, extract.Policy, error) {
	opts := source.DefaultOptions(iv)
	if v := c.Query("buffer"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, 0, fmt.Errorf("invalid buffer %q", v)
		}
		opts.Buffer = n
	}
	if v := c.Query("minMapQ"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, 0, fmt.Errorf("invalid minMapQ %q", v)
		}
		opts.MinMapQ = n
	}
	if v := c.Query("keepSupplementary"); v != "" {
		keep, err := strconv.ParseBool(v)
		if err != nil {
			return opts, 0, fmt.Errorf("invalid keepSupplementary %q", v)
		}
		opts.KeepSupplementary = keep
	}

	policy := extract.Abort
	if v := c.Query("onError"); v != "" {
		p, err := extract.ParsePolicy(v)
		if err != nil {
			return opts, 0, err
		}
		policy = p
	}
	return opts, policy, nil
}

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func newAPIError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %v", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newAPIError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newAPIError("InvalidInput", http.StatusBadRequest, context, err)
}

func newInvalidRangeError(err error) error {
	return &apiError{"InvalidRange", http.StatusBadRequest, err}
}

func newPermissionDeniedError(context string, err error) error {
	return newAPIError("PermissionDenied", http.StatusForbidden, context, err)
}

func newUnsupportedFormatError(err error) error {
	return &apiError{"UnsupportedFormat", http.StatusBadRequest, err}
}

func newNotFoundError(context string, err error) error {
	return newAPIError("NotFound", http.StatusNotFound, context, err)
}

func newMalformedRecordError(err *extract.RecordError) error {
	return &apiError{"MalformedRecord", http.StatusUnprocessableEntity, err}
}

func newStorageError(context string, err error) error {
	if errors.Is(err, storage.ErrMissingOrInvalidToken) {
		return newPermissionDeniedError(context, err)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return newNotFoundError("object does not exist", err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return newInvalidAuthenticationError(context, err)
		case http.StatusForbidden:
			return newPermissionDeniedError(context, err)
		}
	}
	return err
}

func newSourceError(err error) error {
	switch {
	case errors.Is(err, source.ErrReferenceNotFound):
		return newNotFoundError("resolving reference", err)
	case errors.Is(err, source.ErrEmptyOrMissingSource):
		return newNotFoundError("reading data", err)
	case errors.Is(err, source.ErrUnsupportedFormat):
		return newUnsupportedFormatError(err)
	}
	return err
}

// writeError writes either a JSON object or bare HTTP error describing err.
// A JSON object is written only when the error has a name and code defined
// by the API.
func writeError(c *gin.Context, id string, err error) {
	if err, ok := err.(*apiError); ok {
		c.JSON(err.code, gin.H{
			"error":   err.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(err.code), err.cause),
		})
		return
	}

	log.Printf("[%s] Internal error: %v", id, err)
	c.String(http.StatusInternalServerError, "%s: %v", http.StatusText(http.StatusInternalServerError), err)
}

func forwardOrigin(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
}
