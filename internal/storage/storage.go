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

// Package storage provides access to store files held in Google Cloud Storage
// or in a local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/googlegenomics/genomearch/internal/store"
)

var (
	// ErrObjectNotExist is returned when the requested object does not exist.
	ErrObjectNotExist = errors.New("object does not exist")
	// ErrMissingOrInvalidToken is returned when a request does not carry a
	// usable bearer token.
	ErrMissingOrInvalidToken = errors.New("missing or invalid token")
)

// Client provides access to objects in a storage engine.
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
	// Size returns the size of the object in bytes.
	Size(ctx context.Context) (int64, error)
}

// NewClientFunc is the type of function that constructs the appropriate
// Client to satisfy an incoming request.  Any headers that caused this
// particular client to be created are returned as well.
type NewClientFunc func(*http.Request) (Client, http.Header, error)

// OpenStore opens the store file held by h for reading.  Nodes are fetched
// with range requests as they are accessed.
func OpenStore(ctx context.Context, h ObjectHandle) (*store.File, error) {
	size, err := h.Size(ctx)
	if err != nil {
		return nil, err
	}
	f, err := store.OpenReaderAt(&readerAt{ctx, h}, size)
	if err != nil {
		return nil, fmt.Errorf("reading store: %w", err)
	}
	return f, nil
}

// readerAt implements io.ReaderAt with one range request per call.
type readerAt struct {
	ctx context.Context
	h   ObjectHandle
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	rc, err := r.h.NewRangeReader(r.ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	n, err := io.ReadFull(rc, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}
