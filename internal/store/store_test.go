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

package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/googlegenomics/genomearch/internal/table"
)

var regionSchema = table.Schema{
	{Name: "chromosome", Type: table.String, Width: 8},
	{Name: "start", Type: table.Int64},
	{Name: "end", Type: table.Int64},
}

func populate(t *testing.T, f *File) {
	t.Helper()
	regions, err := f.CreateTable("region_data", regionSchema)
	if err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := regions.Append(map[string]any{"chromosome": "chr1", "start": i*100 + 1, "end": (i + 1) * 100}); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}
	// Large enough to span several BGZF blocks.
	edges, err := f.CreateTable("edges", table.Schema{{Name: "source", Type: table.Int64}, {Name: "weight", Type: table.Float64}})
	if err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	for i := 0; i < 20000; i++ {
		if _, err := edges.Append(map[string]any{"source": i, "weight": float64(i) / 3}); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}
	if err := f.SetAttr("classid", "REGIONS"); err != nil {
		t.Fatalf("SetAttr() failed: %v", err)
	}
}

func column(t *testing.T, f *File, node, field string) []any {
	t.Helper()
	tbl, err := f.Table(node)
	if err != nil {
		t.Fatalf("Table(%q) failed: %v", node, err)
	}
	values, err := tbl.Column(field)
	if err != nil {
		t.Fatalf("Column(%q) failed: %v", field, err)
	}
	return values
}

func TestOpen_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gas")
	f, err := Open(path, Write)
	if err != nil {
		t.Fatalf("Open(w) failed: %v", err)
	}
	populate(t, f)
	id, ok := f.Attr("uuid")
	if !ok || id == "" {
		t.Fatal("new store has no uuid attribute")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	f, err = Open(path, ReadOnly)
	if err != nil {
		t.Fatalf("Open(r) failed: %v", err)
	}
	defer f.Close()
	if got, want := f.Nodes(), []string{"edges", "region_data"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Nodes(): got %v, want %v", got, want)
	}
	if got, _ := f.Attr("uuid"); got != id {
		t.Errorf("Attr(uuid): got %q, want %q", got, id)
	}
	if got, want := column(t, f, "region_data", "start"), []any{int64(1), int64(101), int64(201)}; !reflect.DeepEqual(got, want) {
		t.Errorf("Column(start): got %v, want %v", got, want)
	}
	weights := column(t, f, "edges", "weight")
	if got, want := len(weights), 20000; got != want {
		t.Fatalf("len(weights): got %d, want %d", got, want)
	}
	if got, want := weights[19999], 19999.0/3; got != want {
		t.Errorf("weights[19999]: got %v, want %v", got, want)
	}

	if err := f.SetAttr("title", "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("SetAttr(): got error %v, want %v", err, ErrReadOnly)
	}
	if _, err := f.CreateTable("other", regionSchema); !errors.Is(err, ErrReadOnly) {
		t.Errorf("CreateTable(): got error %v, want %v", err, ErrReadOnly)
	}
	regions, _ := f.Table("region_data")
	if _, err := regions.Append(nil); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Append(): got error %v, want %v", err, ErrReadOnly)
	}
	if _, err := f.Table("missing"); !errors.Is(err, ErrNoSuchNode) {
		t.Errorf("Table(missing): got error %v, want %v", err, ErrNoSuchNode)
	}
}

func TestOpen_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gas")
	f, err := Open(path, Append)
	if err != nil {
		t.Fatalf("Open(a) on missing file failed: %v", err)
	}
	populate(t, f)
	if err := f.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	f, err = Open(path, Append)
	if err != nil {
		t.Fatalf("Open(a) failed: %v", err)
	}
	regions, err := f.Table("region_data")
	if err != nil {
		t.Fatalf("Table() failed: %v", err)
	}
	if _, err := regions.Append(map[string]any{"chromosome": "chr2", "start": 1, "end": 50}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	f, err = Open(path, ReadOnly)
	if err != nil {
		t.Fatalf("Open(r) failed: %v", err)
	}
	defer f.Close()
	if got, want := column(t, f, "region_data", "chromosome"), []any{"chr1", "chr1", "chr1", "chr2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Column(chromosome): got %v, want %v", got, want)
	}
	if got, want := len(column(t, f, "edges", "source")), 20000; got != want {
		t.Errorf("len(Column(source)): got %d, want %d", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if got, want := len(entries), 1; got != want {
		t.Errorf("files in directory: got %d, want %d", got, want)
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(filepath.Join(dir, "missing.gas"), ReadOnly); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open(missing): got error %v, want %v", err, os.ErrNotExist)
	}
	if _, err := Open(filepath.Join(dir, "x.gas"), Mode("x")); err == nil {
		t.Error("Open(invalid mode) succeeded")
	}
	garbage := filepath.Join(dir, "garbage.gas")
	if err := os.WriteFile(garbage, []byte("this is not a store file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(garbage, ReadOnly); err == nil {
		t.Error("Open(garbage) succeeded")
	}
}

func TestOpenReaderAt(t *testing.T) {
	f := NewMemory()
	populate(t, f)
	if err := f.RemoveNode("edges"); err != nil {
		t.Fatalf("RemoveNode() failed: %v", err)
	}
	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo() failed: %v", err)
	}
	if got, want := n, int64(buf.Len()); got != want {
		t.Errorf("WriteTo(): got %d bytes, wrote %d", got, want)
	}

	loaded, err := OpenReaderAt(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenReaderAt() failed: %v", err)
	}
	if !loaded.ReadOnly() {
		t.Error("ReadOnly(): got false, want true")
	}
	if got, want := loaded.Nodes(), []string{"region_data"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Nodes(): got %v, want %v", got, want)
	}
	if got, _ := loaded.Attr("classid"); got != "REGIONS" {
		t.Errorf("Attr(classid): got %q, want %q", got, "REGIONS")
	}
	if got, want := column(t, loaded, "region_data", "end"), []any{int64(100), int64(200), int64(300)}; !reflect.DeepEqual(got, want) {
		t.Errorf("Column(end): got %v, want %v", got, want)
	}
}

func TestParseMode(t *testing.T) {
	for _, input := range []string{"r", "w", "a"} {
		if got, err := ParseMode(input); err != nil || string(got) != input {
			t.Errorf("ParseMode(%q): got (%q, %v)", input, got, err)
		}
	}
	if _, err := ParseMode("rw"); err == nil {
		t.Error("ParseMode(rw) succeeded")
	}
}
