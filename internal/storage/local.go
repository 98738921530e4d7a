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
	"os"
	"path/filepath"
	"strings"
)

// LocalClient serves objects from a directory.  Buckets are subdirectories of
// the root directory.
type LocalClient struct {
	root string
}

// NewLocalClient returns a Client that reads objects below root.
func NewLocalClient(root string) LocalClient {
	return LocalClient{filepath.Clean(root)}
}

// NewClientFunc returns a NewClientFunc that always yields c.
func (c LocalClient) NewClientFunc() NewClientFunc {
	return func(*http.Request) (Client, http.Header, error) {
		return c, nil, nil
	}
}

// NewObjectHandle returns a handle to a file below the root directory.
func (c LocalClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return localObjectHandle{c.root, filepath.Join(c.root, bucket, filepath.FromSlash(object))}
}

type localObjectHandle struct {
	root, path string
}

func (h localObjectHandle) open() (*os.File, error) {
	rel, err := filepath.Rel(h.root, h.path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s is outside of %s", ErrObjectNotExist, h.path, h.root)
	}
	file, err := os.Open(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrObjectNotExist, err)
	}
	return file, err
}

func (h localObjectHandle) NewRangeReader(_ context.Context, offset, length int64) (io.ReadCloser, error) {
	file, err := h.open()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, err
		}
		length = info.Size() - offset
	}
	return sectionReadCloser{io.NewSectionReader(file, offset, length), file}, nil
}

func (h localObjectHandle) Size(context.Context) (int64, error) {
	file, err := h.open()
	if err != nil {
		return 0, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

type sectionReadCloser struct {
	*io.SectionReader
	io.Closer
}
