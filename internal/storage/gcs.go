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

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// GCSClient is Client for accessing Google Cloud Storage.
type GCSClient struct {
	*storage.Client
}

// NewObjectHandle returns a handle to a specified object in the
// storage engine.
func (c GCSClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return gcsObjectHandle{c.Bucket(bucket).Object(object)}
}

type gcsObjectHandle struct {
	*storage.ObjectHandle
}

func (h gcsObjectHandle) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	r, err := h.ObjectHandle.NewRangeReader(ctx, offset, length)
	return r, gcsError(err)
}

func (h gcsObjectHandle) Size(ctx context.Context) (int64, error) {
	attrs, err := h.Attrs(ctx)
	if err != nil {
		return 0, gcsError(err)
	}
	return attrs.Size, nil
}

func gcsError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %v", ErrObjectNotExist, err)
	}
	return err
}

var (
	defaultClients   = make(map[bool]*storage.Client)
	defaultClientErr = make(map[bool]error)
	defaultClientsMu sync.Mutex
)

// newCachedClient returns a shared client, creating it on first use.
func newCachedClient(public bool) (Client, http.Header, error) {
	defaultClientsMu.Lock()
	defer defaultClientsMu.Unlock()
	if client, ok := defaultClients[public]; ok {
		return GCSClient{client}, nil, nil
	}
	if err, ok := defaultClientErr[public]; ok {
		return nil, nil, err
	}

	var opts []option.ClientOption
	if public {
		opts = append(opts, option.WithHTTPClient(http.DefaultClient))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		err = fmt.Errorf("creating default storage client: %w", err)
		defaultClientErr[public] = err
		return nil, nil, err
	}
	defaultClients[public] = client
	return GCSClient{client}, nil, nil
}

// NewDefaultClient returns a storage client that uses the application default
// credentials.  It caches the storage client for efficiency.
func NewDefaultClient(_ *http.Request) (Client, http.Header, error) {
	return newCachedClient(false)
}

// NewPublicClient returns a storage client that does not use any form of
// client authorization.  It can only be used to read publicly-readable
// objects. It caches the storage client for efficiency.
func NewPublicClient(_ *http.Request) (Client, http.Header, error) {
	return newCachedClient(true)
}

// NewClientFromBearerToken constructs a storage client that uses the OAuth2
// bearer token found in req to make storage requests.  It returns the
// authorization header containing the bearer token as well.
func NewClientFromBearerToken(req *http.Request) (Client, http.Header, error) {
	authorization := req.Header.Get("Authorization")

	fields := strings.Split(authorization, " ")
	if len(fields) != 2 || fields[0] != "Bearer" {
		return nil, nil, ErrMissingOrInvalidToken
	}

	token := oauth2.Token{
		TokenType:   fields[0],
		AccessToken: fields[1],
	}
	client, err := storage.NewClient(req.Context(), option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, nil, fmt.Errorf("creating client with token source: %w", err)
	}

	return GCSClient{client}, http.Header{
		"Authorization": []string{authorization},
	}, nil
}
