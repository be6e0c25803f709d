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

// Package storage provides access to alignment files held in Google Cloud
// Storage or in a local directory tree.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const urlScheme = "gs://"

var (
	// ErrNotFound is returned (wrapped) when an object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrMissingOrInvalidToken is returned when a request carries no usable
	// bearer token.
	ErrMissingOrInvalidToken = errors.New("missing or invalid token")
	// ErrInvalidURL is returned for malformed gs:// URLs.
	ErrInvalidURL = errors.New("invalid storage URL")
)

// Client is an interface to the storage engine.
type Client interface {
	// NewObjectHandle returns a handle to a specified object in
	// the storage engine.
	NewObjectHandle(bucket, object string) ObjectHandle
}

// ObjectHandle is an interface to the actual storage engine in use.
type ObjectHandle interface {
	// NewRangeReader returns a reader that reads from a specified
	// range. Length of -1 means to capture everything until the
	// end.
	NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// NewClientFunc is the type of function that constructs the appropriate
// Client to satisfy an incoming request.  Any headers that caused this
// particular client to be created are returned as well.
type NewClientFunc func(*http.Request) (Client, http.Header, error)

// IsURL reports whether name refers to a storage object rather than a local
// file.
func IsURL(name string) bool {
	return strings.HasPrefix(name, urlScheme)
}

// ParseURL splits a URL of the form gs://bucket/object.
func ParseURL(url string) (bucket, object string, err error) {
	if !IsURL(url) {
		return "", "", fmt.Errorf("%w %q: expected %sbucket/object", ErrInvalidURL, url, urlScheme)
	}
	bucket, object, err = ParseID(url[len(urlScheme):])
	if err != nil {
		return "", "", fmt.Errorf("%w %q: %v", ErrInvalidURL, url, err)
	}
	return bucket, object, nil
}

// ParseID parses path of the form bucket/object.
func ParseID(path string) (bucket, object string, err error) {
	if parts := strings.SplitN(path, "/", 2); len(parts) == 2 {
		if parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], nil
		}
	}
	return "", "", errors.New("invalid or unspecified ID")
}

// Open opens the whole of an object for reading.
func Open(ctx context.Context, client Client, bucket, object string) (io.ReadCloser, error) {
	r, err := client.NewObjectHandle(bucket, object).NewRangeReader(ctx, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("opening %s%s/%s: %w", urlScheme, bucket, object, err)
	}
	return r, nil
}
