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

// Package extract serves the extraction API on App Engine.
package extract

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/appengine"

	"github.com/googlegenomics/extract-region/api"
	"github.com/googlegenomics/extract-region/internal/storage"
)

// Requests share the instance, so each one extracts on a single worker.
const workers = 1

func init() {
	router := gin.New()
	router.Use(gin.Recovery())

	server := api.NewServer(newAppEngineClient, workers)
	if list := os.Getenv("BUCKET_WHITELIST"); list != "" {
		server.Whitelist(strings.Split(list, ","))
	}
	server.Export(router)
	http.Handle("/", router)
}

func newAppEngineClient(req *http.Request) (storage.Client, http.Header, error) {
	return storage.NewClientFromBearerToken(req.WithContext(appengine.NewContext(req)))
}
