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

// Package genomearch runs the genome architecture API on App Engine.
package genomearch

import (
	"net/http"
	"os"
	"strings"

	"github.com/googlegenomics/genomearch/api"
	"github.com/googlegenomics/genomearch/internal/config"
	"github.com/googlegenomics/genomearch/internal/logging"
	"github.com/googlegenomics/genomearch/internal/storage"
	"google.golang.org/appengine"
)

func init() {
	logger, err := logging.New(logging.DefaultConfig())
	if err != nil {
		panic(err)
	}
	server := api.NewServer(newAppEngineClient, config.DefaultServer().MaxMatrixSize, logger)
	if list := os.Getenv("BUCKET_ALLOWLIST"); list != "" {
		server.AllowBuckets(strings.Split(list, ","))
	}
	http.Handle("/", server.Handler())
}

func newAppEngineClient(req *http.Request) (storage.Client, http.Header, error) {
	return storage.NewClientFromBearerToken(req.WithContext(appengine.NewContext(req)))
}
