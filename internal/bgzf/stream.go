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

package bgzf

import (
	"fmt"
	"io"
)

// blockDataSize is the amount of uncompressed data packed into each block.
// It leaves headroom so that incompressible data still fits in a block.
const blockDataSize = 0xff00

// Writer compresses a byte stream into consecutive BGZF blocks and tracks the
// virtual address of the next byte written.
type Writer struct {
	w      io.Writer
	buffer []byte
	offset uint64
}

// NewWriter returns a Writer that writes BGZF blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buffer: make([]byte, 0, blockDataSize)}
}

// Address returns the virtual address at which the next written byte will be
// stored.
func (w *Writer) Address() Address {
	return NewAddress(w.offset, uint16(len(w.buffer)))
}

// Offset returns the number of compressed bytes written to the underlying
// writer so far.
func (w *Writer) Offset() uint64 {
	return w.offset
}

// Write implements io.Writer.  Blocks are emitted as soon as they fill up so
// that Address never reports a data offset at the end of a block.
func (w *Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := copy(w.buffer[len(w.buffer):cap(w.buffer)], p)
		w.buffer = w.buffer[:len(w.buffer)+n]
		p = p[n:]
		total += n
		if len(w.buffer) == cap(w.buffer) {
			if err := w.Flush(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Flush writes any buffered data as a single block.
func (w *Writer) Flush() error {
	if len(w.buffer) == 0 {
		return nil
	}
	if err := w.writeBlock(w.buffer); err != nil {
		return err
	}
	w.buffer = w.buffer[:0]
	return nil
}

// Close flushes buffered data and appends the empty EOF marker block.  It
// does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.writeBlock(nil)
}

func (w *Writer) writeBlock(data []byte) error {
	encoded, err := EncodeBlock(data)
	if err != nil {
		return fmt.Errorf("encoding block: %w", err)
	}
	n, err := w.w.Write(encoded)
	w.offset += uint64(n)
	if err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	return nil
}

// Reader decompresses BGZF blocks from random access storage.  Use Seek to
// position the reader at a virtual address.
type Reader struct {
	r    io.ReaderAt
	size int64

	block []byte
	pos   int
	next  uint64
}

// NewReader returns a Reader over size bytes of r, positioned at the start of
// the first block.
func NewReader(r io.ReaderAt, size int64) *Reader {
	return &Reader{r: r, size: size}
}

// Seek positions the reader at the provided virtual address.
func (r *Reader) Seek(address Address) error {
	if err := r.load(address.BlockOffset()); err != nil {
		return err
	}
	if int(address.DataOffset()) > len(r.block) {
		return fmt.Errorf("data offset %d beyond block of %d bytes", address.DataOffset(), len(r.block))
	}
	r.pos = int(address.DataOffset())
	return nil
}

// Read implements io.Reader, crossing block boundaries as needed.  Empty
// blocks (such as the EOF marker) are skipped.
func (r *Reader) Read(p []byte) (int, error) {
	for r.pos == len(r.block) {
		if int64(r.next) >= r.size {
			return 0, io.EOF
		}
		if err := r.load(r.next); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.block[r.pos:])
	r.pos += n
	return n, nil
}

func (r *Reader) load(offset uint64) error {
	if int64(offset) >= r.size {
		return fmt.Errorf("block offset %d beyond end of data (%d bytes)", offset, r.size)
	}
	length := r.size - int64(offset)
	if length > MaximumBlockSize {
		length = MaximumBlockSize
	}
	data, bsize, err := DecodeBlock(io.NewSectionReader(r.r, int64(offset), length))
	if err != nil {
		return fmt.Errorf("decoding block at %d: %w", offset, err)
	}
	r.block, r.pos, r.next = data, 0, offset+uint64(bsize)
	return nil
}
