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

// Package table implements an in-memory typed column table with staged row
// writes, soft deletion through named masks and a binary codec.
package table

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
)

var (
	// ErrNoSuchField is returned when a field name is not part of the schema.
	ErrNoSuchField = errors.New("no such field")
	// ErrTypeMismatch is returned when a value cannot be stored in a field.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrReadOnly is returned when a read-only table is modified.
	ErrReadOnly = errors.New("table is read-only")
	// ErrOutOfRange is returned for row positions outside the table.
	ErrOutOfRange = errors.New("row out of range")
)

// Type identifies the storage type of a field.
type Type uint8

// Supported field types.
const (
	Int64 Type = iota + 1
	Float64
	String
	Bool
)

func (t Type) String() string {
	switch t {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Bool:
		return "bool"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Field describes a single column.
type Field struct {
	Name string
	Type Type
	// Width is the maximum length in bytes of a String field.  Longer values
	// are truncated.  A zero width does not limit the length.
	Width int
	// Position is the index of the field within the schema.  It is assigned
	// by the table.
	Position int
}

// Convert returns v as the value stored in field f.  It fails with
// ErrTypeMismatch if v cannot be stored in f.
func (f Field) Convert(v any) (any, error) {
	return convert(f, v)
}

// Schema is an ordered list of fields.
type Schema []Field

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

type cell struct {
	row, field int
}

// Table stores rows of typed fields.  Rows are identified by a stable index
// assigned on append.  Masked rows are hidden from positional access but are
// never removed.
type Table struct {
	columns []*column
	byName  map[string]int
	rows    int

	masks    []Mask
	maskBits []*roaring.Bitmap
	// Union of maskBits and the positions of the visible rows.  Both are nil
	// when stale.
	hidden  *roaring.Bitmap
	visible []int

	staged   map[cell]any
	queue    []MaskFilter
	readOnly bool
	logger   *zap.Logger
}

// New returns an empty table with the provided schema.
func New(schema Schema) (*Table, error) {
	t := &Table{
		byName: make(map[string]int),
		staged: make(map[cell]any),
		logger: zap.NewNop(),
	}
	for _, f := range schema {
		if err := t.AddField(f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SetLogger sets the logger used to report filter progress.
func (t *Table) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t.logger = logger
}

// SetReadOnly controls whether the table accepts modifications.
func (t *Table) SetReadOnly(readOnly bool) {
	t.readOnly = readOnly
}

// ReadOnly reports whether the table rejects modifications.
func (t *Table) ReadOnly() bool {
	return t.readOnly
}

// Schema returns a copy of the table schema.
func (t *Table) Schema() Schema {
	schema := make(Schema, len(t.columns))
	for i, c := range t.columns {
		schema[i] = c.field
	}
	return schema
}

// Field returns the field with the provided name.
func (t *Table) Field(name string) (Field, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Field{}, false
	}
	return t.columns[i].field, true
}

// AddField appends a field to the schema.  Existing rows receive the zero
// value of the field type (NaN for Float64 fields).
func (t *Table) AddField(f Field) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if f.Name == "" {
		return errors.New("field name must not be empty")
	}
	if _, ok := t.byName[f.Name]; ok {
		return fmt.Errorf("duplicate field %q", f.Name)
	}
	switch f.Type {
	case Int64, Float64, String, Bool:
	default:
		return fmt.Errorf("field %q: unsupported type %v", f.Name, f.Type)
	}
	f.Position = len(t.columns)
	t.byName[f.Name] = f.Position
	t.columns = append(t.columns, newColumn(f, t.rows))
	return nil
}

// SetColumn replaces the values of the field named f.Name, changing its type
// and width to those of f.  The field is appended to the schema if it does not
// exist.  values must hold one entry per row, including masked rows.
func (t *Table) SetColumn(f Field, values []any) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if len(values) != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", f.Name, len(values), t.rows)
	}
	i, ok := t.byName[f.Name]
	if !ok {
		if err := t.AddField(f); err != nil {
			return err
		}
		i = t.byName[f.Name]
	}
	f.Position = i
	c := newColumn(f, 0)
	for row, v := range values {
		converted, err := convert(f, v)
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		c.append(converted)
	}
	t.columns[i] = c
	for k := range t.staged {
		if k.field == i {
			delete(t.staged, k)
		}
	}
	return nil
}

// Append adds a row and returns its index.  Fields missing from values are
// set to their zero value.
func (t *Table) Append(values map[string]any) (int, error) {
	if t.readOnly {
		return 0, ErrReadOnly
	}
	converted := make([]any, len(t.columns))
	for name, v := range values {
		i, ok := t.byName[name]
		if !ok {
			return 0, fmt.Errorf("appending row: %w: %q", ErrNoSuchField, name)
		}
		value, err := convert(t.columns[i].field, v)
		if err != nil {
			return 0, fmt.Errorf("appending row: %w", err)
		}
		converted[i] = value
	}
	for i, c := range t.columns {
		if converted[i] == nil {
			converted[i] = c.zero()
		}
		c.append(converted[i])
	}
	t.rows++
	t.visible = nil
	return t.rows - 1, nil
}

// NumRows returns the number of rows, including masked rows.
func (t *Table) NumRows() int {
	return t.rows
}

// Len returns the number of visible rows.
func (t *Table) Len() int {
	return len(t.visibleRows())
}

// Row returns the i-th visible row.
func (t *Table) Row(i int) (Row, error) {
	visible := t.visibleRows()
	if i < 0 || i >= len(visible) {
		return Row{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, len(visible))
	}
	return Row{t, visible[i]}, nil
}

// RowAt returns the row with index ix, whether or not it is masked.
func (t *Table) RowAt(ix int) (Row, error) {
	if ix < 0 || ix >= t.rows {
		return Row{}, fmt.Errorf("%w: index %d not in [0, %d)", ErrOutOfRange, ix, t.rows)
	}
	return Row{t, ix}, nil
}

// Rows returns the visible rows at positions start, start+step, ... up to but
// excluding stop.  Positions are clamped to the visible range and a
// non-positive step is treated as 1.  The visible rows are determined each
// time iteration starts.
func (t *Table) Rows(start, stop, step int) iter.Seq[Row] {
	if step <= 0 {
		step = 1
	}
	return func(yield func(Row) bool) {
		visible := t.visibleRows()
		lo, hi := max(start, 0), min(stop, len(visible))
		for i := lo; i < hi; i += step {
			if !yield(Row{t, visible[i]}) {
				return
			}
		}
	}
}

// All returns every row, including masked rows, in index order.
func (t *Table) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for ix := 0; ix < t.rows; ix++ {
			if !yield(Row{t, ix}) {
				return
			}
		}
	}
}

// Column returns the values of a field for the visible rows.
func (t *Table) Column(name string) ([]any, error) {
	i, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchField, name)
	}
	visible := t.visibleRows()
	values := make([]any, len(visible))
	for j, ix := range visible {
		values[j] = t.value(ix, i)
	}
	return values, nil
}

// Pending returns the number of staged writes.
func (t *Table) Pending() int {
	return len(t.staged)
}

// Flush commits all staged row writes.
func (t *Table) Flush() error {
	if len(t.staged) == 0 {
		return nil
	}
	if t.readOnly {
		return ErrReadOnly
	}
	for k, v := range t.staged {
		t.columns[k.field].set(k.row, v)
	}
	clear(t.staged)
	return nil
}

// Discard drops all staged row writes.
func (t *Table) Discard() {
	clear(t.staged)
}

func (t *Table) value(ix, field int) any {
	if v, ok := t.staged[cell{ix, field}]; ok {
		return v
	}
	return t.columns[field].value(ix)
}

func (t *Table) visibleRows() []int {
	if t.visible != nil {
		return t.visible
	}
	hidden := t.hiddenRows()
	visible := make([]int, 0, t.rows-int(hidden.GetCardinality()))
	for ix := 0; ix < t.rows; ix++ {
		if !hidden.Contains(uint32(ix)) {
			visible = append(visible, ix)
		}
	}
	t.visible = visible
	return visible
}

func (t *Table) hiddenRows() *roaring.Bitmap {
	if t.hidden == nil {
		t.hidden = roaring.FastOr(t.maskBits...)
	}
	return t.hidden
}

type column struct {
	field   Field
	ints    []int64
	floats  []float64
	strings []string
	bools   []bool
}

func newColumn(f Field, n int) *column {
	c := &column{field: f}
	for i := 0; i < n; i++ {
		c.append(c.zero())
	}
	return c
}

func (c *column) zero() any {
	switch c.field.Type {
	case Int64:
		return int64(0)
	case Float64:
		return math.NaN()
	case String:
		return ""
	}
	return false
}

func (c *column) append(v any) {
	switch c.field.Type {
	case Int64:
		c.ints = append(c.ints, v.(int64))
	case Float64:
		c.floats = append(c.floats, v.(float64))
	case String:
		c.strings = append(c.strings, v.(string))
	case Bool:
		c.bools = append(c.bools, v.(bool))
	}
}

func (c *column) set(i int, v any) {
	switch c.field.Type {
	case Int64:
		c.ints[i] = v.(int64)
	case Float64:
		c.floats[i] = v.(float64)
	case String:
		c.strings[i] = v.(string)
	case Bool:
		c.bools[i] = v.(bool)
	}
}

func (c *column) value(i int) any {
	switch c.field.Type {
	case Int64:
		return c.ints[i]
	case Float64:
		return c.floats[i]
	case String:
		return c.strings[i]
	}
	return c.bools[i]
}

// convert returns v as the Go type used to store values of field f.  Nil is
// stored as the zero value of the field.
func convert(f Field, v any) (any, error) {
	mismatch := func() error {
		return fmt.Errorf("%w: cannot store %T in %v field %q", ErrTypeMismatch, v, f.Type, f.Name)
	}
	switch f.Type {
	case Int64:
		switch n := v.(type) {
		case nil:
			return int64(0), nil
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, mismatch()
			}
			return int64(n), nil
		case float32:
			return convert(f, float64(n))
		}
		if n, ok := asInt(v); ok {
			return n, nil
		}
	case Float64:
		switch n := v.(type) {
		case nil:
			return math.NaN(), nil
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		}
		if n, ok := asInt(v); ok {
			return float64(n), nil
		}
	case String:
		switch s := v.(type) {
		case nil:
			return "", nil
		case string:
			return truncate(s, f.Width), nil
		case []byte:
			return truncate(string(s), f.Width), nil
		case fmt.Stringer:
			return truncate(s.String(), f.Width), nil
		}
	case Bool:
		switch b := v.(type) {
		case nil:
			return false, nil
		case bool:
			return b, nil
		}
	}
	return nil, mismatch()
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	for width > 0 && !utf8.RuneStart(s[width]) {
		width--
	}
	return s[:width]
}
