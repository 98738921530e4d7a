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

// Package binary provides support for operating on binary data.
package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maximumLength bounds length-prefixed values so that malformed data cannot
// trigger arbitrarily large allocations.
const maximumLength = 1 << 30

// ExpectBytes reads len(want) bytes from r and checks that they match want.
func ExpectBytes(r io.Reader, want []byte) error {
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("wrong magic %v (wanted %v)", got, want)
	}
	return nil
}

// Read reads a little endian value from r into v using binary.Read.
func Read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// Write writes v to w in little endian byte order using binary.Write.
func Write(w io.Writer, v interface{}) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// ReadBytes reads a uint32 length followed by that many bytes.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length uint32
	if err := Read(r, &length); err != nil {
		return nil, fmt.Errorf("reading length: %w", err)
	}
	if length > maximumLength {
		return nil, fmt.Errorf("invalid length (%d bytes)", length)
	}
	// The buffer grows with the bytes actually read.
	var data bytes.Buffer
	if _, err := io.CopyN(&data, r, int64(length)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading %d bytes: %w", length, err)
	}
	return data.Bytes(), nil
}

// WriteBytes writes the length of data as a uint32 followed by data itself.
func WriteBytes(w io.Writer, data []byte) error {
	if len(data) > maximumLength {
		return fmt.Errorf("value too long (%d bytes)", len(data))
	}
	if err := Write(w, uint32(len(data))); err != nil {
		return fmt.Errorf("writing length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return nil
}

// ReadString reads a length-prefixed string written by WriteString.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteString writes s prefixed by its length.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}
