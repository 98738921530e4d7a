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

// Package bgzf stores byte streams as a series of independently compressed
// BGZF blocks addressed by virtual offsets.
package bgzf

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

// MaximumBlockSize bounds both the compressed and the uncompressed size of a
// block.
const MaximumBlockSize = 65536

// Layout of the gzip header of a block: the BSIZE subfield sits at a fixed
// offset because every block carries exactly one extra subfield.
const (
	subfieldID1   = 'B'
	subfieldID2   = 'C'
	subfieldLen   = 2
	bsizeOffset   = 16
	extraFieldLen = 6
)

// Address is a virtual offset into a block stream.  The upper 48 bits hold
// the offset of a compressed block and the lower 16 bits the offset of a byte
// within that block once decompressed.
type Address uint64

// NewAddress combines a block offset and a data offset into an Address.
func NewAddress(blockOffset uint64, dataOffset uint16) Address {
	return Address(blockOffset<<16 | uint64(dataOffset))
}

// BlockOffset returns the offset of the compressed block.
func (a Address) BlockOffset() uint64 {
	return uint64(a >> 16)
}

// DataOffset returns the offset within the uncompressed block.
func (a Address) DataOffset() uint16 {
	return uint16(a)
}

func (a Address) String() string {
	return strconv.FormatUint(a.BlockOffset(), 10) + ":" + strconv.FormatUint(uint64(a.DataOffset()), 10)
}

// DecodeBlock decompresses the block at the start of r.  It returns the data
// and the compressed size of the block, which locates the next one.
func DecodeBlock(r io.Reader) ([]byte, uint16, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("initializing gzip reader: %w", err)
	}
	defer gzr.Close()

	size, err := blockSize(gzr.Header.Extra)
	if err != nil {
		return nil, 0, err
	}
	gzr.Multistream(false)
	var data bytes.Buffer
	if _, err := io.Copy(&data, gzr); err != nil {
		return nil, 0, fmt.Errorf("decompressing block: %w", err)
	}
	return data.Bytes(), size, nil
}

func blockSize(extra []byte) (uint16, error) {
	switch {
	case len(extra) < extraFieldLen:
		return 0, fmt.Errorf("short extra field (%d bytes)", len(extra))
	case extra[0] != subfieldID1 || extra[1] != subfieldID2:
		return 0, fmt.Errorf("unexpected subfield %q", extra[0:2])
	case extra[2] != subfieldLen || extra[3] != 0:
		return 0, fmt.Errorf("unexpected subfield length %x", extra[2:4])
	}
	return (uint16(extra[4]) | uint16(extra[5])<<8) + 1, nil
}

// EncodeBlock compresses data into a single block.  An empty block marks the
// end of a stream.
func EncodeBlock(data []byte) ([]byte, error) {
	if len(data) > MaximumBlockSize {
		return nil, fmt.Errorf("block data of %d bytes exceeds %d", len(data), MaximumBlockSize)
	}

	var block bytes.Buffer
	gzw := gzip.NewWriter(&block)
	// BSIZE is patched in once the compressed length is known.
	gzw.Header.Extra = []byte{subfieldID1, subfieldID2, subfieldLen, 0, 0, 0}
	if _, err := gzw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing block: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing block: %w", err)
	}

	encoded := block.Bytes()
	if len(encoded) > MaximumBlockSize {
		return nil, fmt.Errorf("compressed block of %d bytes exceeds %d", len(encoded), MaximumBlockSize)
	}
	bsize := uint16(len(encoded) - 1)
	encoded[bsizeOffset] = byte(bsize)
	encoded[bsizeOffset+1] = byte(bsize >> 8)
	return encoded, nil
}
