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
	"strings"
	"sync"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// GCSClient is a Client for accessing Google Cloud Storage.
type GCSClient struct {
	*gcs.Client
}

// NewGCSClient returns a Client backed by a new storage client configured
// with opts.
func NewGCSClient(ctx context.Context, opts ...option.ClientOption) (GCSClient, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return GCSClient{}, fmt.Errorf("creating storage client: %v", err)
	}
	return GCSClient{client}, nil
}

// NewObjectHandle returns a handle to a specified object in the
// storage engine.
func (c GCSClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return gcsObjectHandle{c.Bucket(bucket).Object(object)}
}

type gcsObjectHandle struct {
	*gcs.ObjectHandle
}

func (h gcsObjectHandle) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	r, err := h.ObjectHandle.NewRangeReader(ctx, offset, length)
	if err == gcs.ErrObjectNotExist {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return r, err
}

// cachedClient creates a storage client once and shares it between
// requests.
type cachedClient struct {
	once   sync.Once
	client *gcs.Client
	err    error
}

func (c *cachedClient) get(opts ...option.ClientOption) (Client, http.Header, error) {
	c.once.Do(func() {
		c.client, c.err = gcs.NewClient(context.Background(), opts...)
	})
	if c.err != nil {
		return nil, nil, fmt.Errorf("creating storage client: %v", c.err)
	}
	return GCSClient{c.client}, nil, nil
}

var defaultClient, publicClient cachedClient

// NewDefaultClient returns a storage client that uses the application default
// credentials.  It caches the storage client for efficiency.
func NewDefaultClient(_ *http.Request) (Client, http.Header, error) {
	return defaultClient.get()
}

// NewPublicClient returns a storage client that does not use any form of
// client authorization.  It can only be used to read publicly-readable
// objects. It caches the storage client for efficiency.
func NewPublicClient(_ *http.Request) (Client, http.Header, error) {
	return publicClient.get(option.WithHTTPClient(http.DefaultClient))
}

// NewClientFromBearerToken constructs a storage client that uses the OAuth2
// bearer token found in req to make storage requests.  The authorization
// header holding the token is returned as well.
func NewClientFromBearerToken(req *http.Request) (Client, http.Header, error) {
	authorization := req.Header.Get("Authorization")

	fields := strings.Split(authorization, " ")
	if len(fields) != 2 || fields[0] != "Bearer" || fields[1] == "" {
		return nil, nil, ErrMissingOrInvalidToken
	}

	token := oauth2.Token{
		TokenType:   fields[0],
		AccessToken: fields[1],
	}
	client, err := gcs.NewClient(req.Context(), option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, nil, fmt.Errorf("creating client with token source: %v", err)
	}

	return GCSClient{client}, http.Header{
		"Authorization": []string{authorization},
	}, nil
}
