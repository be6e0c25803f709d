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

package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// DirectoryClient serves objects from a local directory.  Each bucket is a
// subdirectory of Root.
type DirectoryClient struct {
	Root string
}

// NewDirectoryClientFunc returns a NewClientFunc that always serves from
// root.
func NewDirectoryClientFunc(root string) NewClientFunc {
	client := DirectoryClient{root}
	return func(*http.Request) (Client, http.Header, error) {
		return client, nil, nil
	}
}

// NewObjectHandle returns a handle to the file bucket/object below Root.
func (c DirectoryClient) NewObjectHandle(bucket, object string) ObjectHandle {
	// Cleaning the rooted path keeps ".." from escaping Root.
	rel := filepath.Clean(string(filepath.Separator) + filepath.Join(bucket, object))
	return fileHandle{filepath.Join(c.Root, rel)}
}

type fileHandle struct {
	path string
}

type limitedFile struct {
	io.Reader
	io.Closer
}

func (h fileHandle) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(h.path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seeking to %d: %v", offset, err)
		}
	}
	if length < 0 {
		return f, nil
	}
	return limitedFile{io.LimitReader(f, length), f}, nil
}
