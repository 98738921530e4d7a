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

// Package store persists named tables and file attributes in a single
// BGZF-compressed file.
//
// A store file is a BGZF stream that starts with a magic number and holds one
// encoded table per node followed by a directory of attributes and node
// addresses.  The virtual address of the directory is stored in a fixed size
// trailer after the BGZF EOF marker, which lets readers load individual nodes
// with random access.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/googlegenomics/genomearch/internal/bgzf"
	"github.com/googlegenomics/genomearch/internal/binary"
	"github.com/googlegenomics/genomearch/internal/table"
	"go.uber.org/zap"
)

var (
	// ErrNoSuchNode is returned when a named node does not exist.
	ErrNoSuchNode = errors.New("no such node")
	// ErrReadOnly is returned when a store opened for reading is modified.
	ErrReadOnly = table.ErrReadOnly
)

var (
	storeMagic   = []byte("GAS\x01")
	trailerMagic = []byte("GASE")
)

// trailerSize is the size of the directory address plus the trailer magic.
const trailerSize = 12

// Mode selects how Open treats the file.
type Mode string

// Supported modes.
const (
	// ReadOnly opens an existing file for reading.
	ReadOnly Mode = "r"
	// Write creates a new file, replacing any existing one.
	Write Mode = "w"
	// Append opens an existing file for reading and writing, creating it if
	// it does not exist.
	Append Mode = "a"
)

// ParseMode converts a mode string into a Mode.
func ParseMode(mode string) (Mode, error) {
	switch m := Mode(mode); m {
	case ReadOnly, Write, Append:
		return m, nil
	}
	return "", fmt.Errorf("invalid mode %q", mode)
}

type node struct {
	address bgzf.Address
	table   *table.Table
}

// File is a collection of named tables and string attributes.  It is not safe
// for concurrent use.
type File struct {
	path     string
	readOnly bool

	attrs map[string]string
	nodes map[string]*node

	reader *bgzf.Reader
	closer io.Closer
	logger *zap.Logger
}

// Open opens the store at path in the provided mode.
func Open(path string, mode Mode) (*File, error) {
	switch mode {
	case Write:
		f := newFile(path)
		return f, nil
	case Append:
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return newFile(path), nil
		}
	case ReadOnly:
	default:
		return nil, fmt.Errorf("invalid mode %q", mode)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("reading store size: %w", err)
	}
	f, err := read(file, info.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f.path, f.closer, f.readOnly = path, file, mode == ReadOnly
	return f, nil
}

// NewMemory returns an empty writable store that is not backed by a file.
func NewMemory() *File {
	return newFile("")
}

// OpenReaderAt returns a read-only store that loads nodes from r on demand.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	f, err := read(r, size)
	if err != nil {
		return nil, err
	}
	f.readOnly = true
	return f, nil
}

func newFile(path string) *File {
	return &File{
		path:   path,
		attrs:  map[string]string{"uuid": uuid.NewString()},
		nodes:  make(map[string]*node),
		logger: zap.NewNop(),
	}
}

func read(r io.ReaderAt, size int64) (*File, error) {
	if size < trailerSize {
		return nil, errors.New("file too short")
	}
	trailer := io.NewSectionReader(r, size-trailerSize, trailerSize)
	var directory uint64
	if err := binary.Read(trailer, &directory); err != nil {
		return nil, fmt.Errorf("reading trailer: %w", err)
	}
	if err := binary.ExpectBytes(trailer, trailerMagic); err != nil {
		return nil, fmt.Errorf("reading trailer: %w", err)
	}

	reader := bgzf.NewReader(r, size-trailerSize)
	if err := binary.ExpectBytes(reader, storeMagic); err != nil {
		return nil, err
	}
	if err := reader.Seek(bgzf.Address(directory)); err != nil {
		return nil, fmt.Errorf("seeking to directory: %w", err)
	}

	f := newFile("")
	f.reader = reader
	if err := f.readDirectory(reader); err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	return f, nil
}

func (f *File) readDirectory(r io.Reader) error {
	var count uint32
	if err := binary.Read(r, &count); err != nil {
		return err
	}
	f.attrs = make(map[string]string, count)
	for i := uint32(0); i < count; i++ {
		key, err := binary.ReadString(r)
		if err != nil {
			return err
		}
		value, err := binary.ReadString(r)
		if err != nil {
			return err
		}
		f.attrs[key] = value
	}

	if err := binary.Read(r, &count); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := binary.ReadString(r)
		if err != nil {
			return err
		}
		var address uint64
		if err := binary.Read(r, &address); err != nil {
			return err
		}
		f.nodes[name] = &node{address: bgzf.Address(address)}
	}
	return nil
}

// SetLogger sets the logger handed to the tables of the store.
func (f *File) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f.logger = logger
	for _, n := range f.nodes {
		if n.table != nil {
			n.table.SetLogger(logger)
		}
	}
}

// Path returns the path of the file backing the store, if any.
func (f *File) Path() string {
	return f.path
}

// ReadOnly reports whether the store rejects modifications.
func (f *File) ReadOnly() bool {
	return f.readOnly
}

// Attr returns the value of a file attribute.
func (f *File) Attr(name string) (string, bool) {
	value, ok := f.attrs[name]
	return value, ok
}

// SetAttr sets a file attribute.
func (f *File) SetAttr(name, value string) error {
	if f.readOnly {
		return ErrReadOnly
	}
	f.attrs[name] = value
	return nil
}

// HasNode reports whether the store contains the named node.
func (f *File) HasNode(name string) bool {
	_, ok := f.nodes[name]
	return ok
}

// Nodes returns the sorted node names.
func (f *File) Nodes() []string {
	names := make([]string, 0, len(f.nodes))
	for name := range f.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the table stored in the named node, loading it if necessary.
func (f *File) Table(name string) (*table.Table, error) {
	n, ok := f.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchNode, name)
	}
	if n.table != nil {
		return n.table, nil
	}
	if f.reader == nil {
		return nil, fmt.Errorf("loading node %q: store is closed", name)
	}
	if err := f.reader.Seek(n.address); err != nil {
		return nil, fmt.Errorf("seeking to node %q: %w", name, err)
	}
	t, err := table.Decode(f.reader)
	if err != nil {
		return nil, fmt.Errorf("decoding node %q: %w", name, err)
	}
	t.SetReadOnly(f.readOnly)
	t.SetLogger(f.logger.With(zap.String("node", name)))
	n.table = t
	return t, nil
}

// CreateTable adds an empty table with the provided schema under name.
func (f *File) CreateTable(name string, schema table.Schema) (*table.Table, error) {
	if f.readOnly {
		return nil, ErrReadOnly
	}
	if f.HasNode(name) {
		return nil, fmt.Errorf("node %q already exists", name)
	}
	t, err := table.New(schema)
	if err != nil {
		return nil, fmt.Errorf("creating node %q: %w", name, err)
	}
	t.SetLogger(f.logger.With(zap.String("node", name)))
	f.nodes[name] = &node{table: t}
	return t, nil
}

// RemoveNode deletes the named node.
func (f *File) RemoveNode(name string) error {
	if f.readOnly {
		return ErrReadOnly
	}
	if !f.HasNode(name) {
		return fmt.Errorf("%w: %q", ErrNoSuchNode, name)
	}
	delete(f.nodes, name)
	return nil
}

// WriteTo encodes the complete store to w.  Staged row writes that have not
// been flushed to their tables are not included.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	if err := f.loadAll(); err != nil {
		return 0, err
	}
	counter := &countingWriter{w: w}
	bw := bgzf.NewWriter(counter)
	if _, err := bw.Write(storeMagic); err != nil {
		return counter.n, fmt.Errorf("writing magic: %w", err)
	}

	names := f.Nodes()
	addresses := make([]bgzf.Address, len(names))
	for i, name := range names {
		addresses[i] = bw.Address()
		if err := table.Encode(bw, f.nodes[name].table); err != nil {
			return counter.n, fmt.Errorf("encoding node %q: %w", name, err)
		}
	}

	directory := bw.Address()
	if err := binary.Write(bw, uint32(len(f.attrs))); err != nil {
		return counter.n, fmt.Errorf("writing attributes: %w", err)
	}
	keys := make([]string, 0, len(f.attrs))
	for key := range f.attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := binary.WriteString(bw, key); err != nil {
			return counter.n, fmt.Errorf("writing attribute %q: %w", key, err)
		}
		if err := binary.WriteString(bw, f.attrs[key]); err != nil {
			return counter.n, fmt.Errorf("writing attribute %q: %w", key, err)
		}
	}
	if err := binary.Write(bw, uint32(len(names))); err != nil {
		return counter.n, fmt.Errorf("writing directory: %w", err)
	}
	for i, name := range names {
		if err := binary.WriteString(bw, name); err != nil {
			return counter.n, fmt.Errorf("writing directory: %w", err)
		}
		if err := binary.Write(bw, uint64(addresses[i])); err != nil {
			return counter.n, fmt.Errorf("writing directory: %w", err)
		}
	}
	if err := bw.Close(); err != nil {
		return counter.n, fmt.Errorf("closing stream: %w", err)
	}

	if err := binary.Write(counter, uint64(directory)); err != nil {
		return counter.n, fmt.Errorf("writing trailer: %w", err)
	}
	if _, err := counter.Write(trailerMagic); err != nil {
		return counter.n, fmt.Errorf("writing trailer: %w", err)
	}
	return counter.n, nil
}

// Flush writes the store to its file.  The file is replaced atomically.  It
// is a no-op for read-only and in-memory stores.
func (f *File) Flush() error {
	if f.readOnly || f.path == "" {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if _, err := f.WriteTo(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	f.logger.Debug("flushed store", zap.String("path", f.path), zap.Int("nodes", len(f.nodes)))
	return f.release()
}

// Close flushes writable stores and releases the underlying file.
func (f *File) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.reader, f.closer = nil, nil
	return err
}

// loadAll decodes every node that has not been loaded yet.
func (f *File) loadAll() error {
	for name, n := range f.nodes {
		if n.table == nil {
			if _, err := f.Table(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// release drops the reader once every node lives in memory.
func (f *File) release() error {
	if f.closer == nil {
		return nil
	}
	for _, n := range f.nodes {
		if n.table == nil {
			return nil
		}
	}
	err := f.closer.Close()
	f.reader, f.closer = nil, nil
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
