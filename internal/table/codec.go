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

package table

import (
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/googlegenomics/genomearch/internal/binary"
)

var tableMagic = []byte("TBL\x01")

const (
	// maximumRows bounds the row count accepted by Decode.
	maximumRows = 1 << 30
	decodeBatch = 1 << 16
)

// Encode writes the schema, committed rows and masks of t to w.  Staged
// writes and queued filters are not encoded.
func Encode(w io.Writer, t *Table) error {
	if _, err := w.Write(tableMagic); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := binary.Write(w, uint32(len(t.columns))); err != nil {
		return fmt.Errorf("writing field count: %w", err)
	}
	for _, c := range t.columns {
		if err := binary.WriteString(w, c.field.Name); err != nil {
			return fmt.Errorf("writing field name: %w", err)
		}
		if err := binary.Write(w, struct {
			Type  uint8
			Width uint32
		}{uint8(c.field.Type), uint32(c.field.Width)}); err != nil {
			return fmt.Errorf("writing field %q: %w", c.field.Name, err)
		}
	}

	if err := binary.Write(w, uint32(t.rows)); err != nil {
		return fmt.Errorf("writing row count: %w", err)
	}
	for _, c := range t.columns {
		if err := c.encode(w); err != nil {
			return fmt.Errorf("writing column %q: %w", c.field.Name, err)
		}
	}

	if err := binary.Write(w, uint32(len(t.masks))); err != nil {
		return fmt.Errorf("writing mask count: %w", err)
	}
	for i, m := range t.masks {
		if err := encodeMask(w, m, t.maskBits[i]); err != nil {
			return fmt.Errorf("writing mask %q: %w", m.Name, err)
		}
	}
	return nil
}

// Decode reads a table written by Encode.
func Decode(r io.Reader) (*Table, error) {
	if err := binary.ExpectBytes(r, tableMagic); err != nil {
		return nil, err
	}
	var fields uint32
	if err := binary.Read(r, &fields); err != nil {
		return nil, fmt.Errorf("reading field count: %w", err)
	}
	schema := make(Schema, 0, min(fields, 1024))
	for i := uint32(0); i < fields; i++ {
		name, err := binary.ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("reading field name: %w", err)
		}
		var header struct {
			Type  uint8
			Width uint32
		}
		if err := binary.Read(r, &header); err != nil {
			return nil, fmt.Errorf("reading field %q: %w", name, err)
		}
		schema = append(schema, Field{Name: name, Type: Type(header.Type), Width: int(header.Width)})
	}
	t, err := New(schema)
	if err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}

	var rows uint32
	if err := binary.Read(r, &rows); err != nil {
		return nil, fmt.Errorf("reading row count: %w", err)
	}
	if rows > maximumRows {
		return nil, fmt.Errorf("invalid row count %d", rows)
	}
	t.rows = int(rows)
	for _, c := range t.columns {
		if err := c.decode(r, t.rows); err != nil {
			return nil, fmt.Errorf("reading column %q: %w", c.field.Name, err)
		}
	}

	var masks uint32
	if err := binary.Read(r, &masks); err != nil {
		return nil, fmt.Errorf("reading mask count: %w", err)
	}
	for i := uint32(0); i < masks; i++ {
		m, bits, err := decodeMask(r)
		if err != nil {
			return nil, fmt.Errorf("reading mask %d: %w", i, err)
		}
		t.masks = append(t.masks, m)
		t.maskBits = append(t.maskBits, bits)
	}
	return t, nil
}

func (c *column) encode(w io.Writer) error {
	switch c.field.Type {
	case Int64:
		return binary.Write(w, c.ints)
	case Float64:
		return binary.Write(w, c.floats)
	case Bool:
		return binary.Write(w, c.bools)
	}
	for _, s := range c.strings {
		if err := binary.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *column) decode(r io.Reader, rows int) error {
	var err error
	switch c.field.Type {
	case Int64:
		c.ints, err = readValues[int64](r, rows)
		return err
	case Float64:
		c.floats, err = readValues[float64](r, rows)
		return err
	case Bool:
		c.bools, err = readValues[bool](r, rows)
		return err
	}
	c.strings = make([]string, 0, min(rows, decodeBatch))
	for range rows {
		s, err := binary.ReadString(r)
		if err != nil {
			return err
		}
		c.strings = append(c.strings, s)
	}
	return nil
}

// readValues reads rows fixed-size values in batches, so memory grows with
// the data present rather than with the claimed row count.
func readValues[T int64 | float64 | bool](r io.Reader, rows int) ([]T, error) {
	values := make([]T, 0, min(rows, decodeBatch))
	batch := make([]T, min(rows, decodeBatch))
	for len(values) < rows {
		n := min(rows-len(values), decodeBatch)
		if err := binary.Read(r, batch[:n]); err != nil {
			return nil, fmt.Errorf("reading rows %d-%d: %w", len(values), len(values)+n, err)
		}
		values = append(values, batch[:n]...)
	}
	return values, nil
}

func encodeMask(w io.Writer, m Mask, bits *roaring.Bitmap) error {
	if err := binary.Write(w, uint32(m.ID)); err != nil {
		return err
	}
	if err := binary.WriteString(w, m.Name); err != nil {
		return err
	}
	if err := binary.WriteString(w, m.Description); err != nil {
		return err
	}
	data, err := bits.ToBytes()
	if err != nil {
		return fmt.Errorf("serializing bitmap: %w", err)
	}
	return binary.WriteBytes(w, data)
}

func decodeMask(r io.Reader) (Mask, *roaring.Bitmap, error) {
	var m Mask
	var id uint32
	if err := binary.Read(r, &id); err != nil {
		return m, nil, err
	}
	m.ID = int(id)
	var err error
	if m.Name, err = binary.ReadString(r); err != nil {
		return m, nil, err
	}
	if m.Description, err = binary.ReadString(r); err != nil {
		return m, nil, err
	}
	data, err := binary.ReadBytes(r)
	if err != nil {
		return m, nil, err
	}
	bits := roaring.New()
	if err := bits.UnmarshalBinary(data); err != nil {
		return m, nil, fmt.Errorf("deserializing bitmap: %w", err)
	}
	return m, bits, nil
}
