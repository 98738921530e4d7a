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

package feature

import (
	"fmt"
	"iter"
	"reflect"
	"sort"

	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/googlegenomics/genomearch/internal/table"
)

// FieldGetter provides values by field name.  Set accepts FieldGetter items
// to assign several columns of a row at once.
type FieldGetter interface {
	Field(name string) (any, error)
}

// RegionRow is a row of a region table.  Field values are read on access.
type RegionRow struct {
	row table.Row
}

// Ix returns the index of the region.
func (r RegionRow) Ix() int {
	return r.row.Ix()
}

// Region returns the region described by the row.
func (r RegionRow) Region() (genomics.Region, error) {
	return rowRegion(r.row)
}

// Field returns the value of the named field.
func (r RegionRow) Field(name string) (any, error) {
	return r.row.Get(name)
}

// Fields returns every field of the row.
func (r RegionRow) Fields() map[string]any {
	return r.row.Values()
}

// VectorFeature stores one row of data fields per region.
type VectorFeature struct {
	calculation
	file    *store.File
	regions *regionTable
}

// NewVector opens the vector feature stored in f, creating its table if
// necessary.  A feature whose table already holds rows is considered
// calculated.
func NewVector(f *store.File, opts ...Option) (*VectorFeature, error) {
	o := newOptions(opts)
	regions, err := openRegionTable(f, o.regionTable, o.dataFields, o.logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector feature: %w", err)
	}
	name := o.name
	if name == "" {
		name = o.regionTable
	}
	v := &VectorFeature{
		calculation: calculation{
			name:       name,
			calculated: regions.table.NumRows() > 0,
			calculator: o.calculator,
			logger:     o.logger,
			node:       o.regionTable,
		},
		file:    f,
		regions: regions,
	}

	if o.regions != nil {
		if err := v.AddRegions(o.regions); err != nil {
			return nil, err
		}
	}
	if o.data != nil {
		if err := v.AddData(o.data); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// FromRegionsAndData creates a vector feature holding regions and data.  The
// type of each field is inferred from its first non-nil value; string fields
// are as wide as the longest value.
func FromRegionsAndData(f *store.File, regions []genomics.Region, data map[string][]any, opts ...Option) (*VectorFeature, error) {
	var fields []table.Field
	for _, name := range sortedKeys(data) {
		field, err := inferField(name, data[name])
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	opts = append(opts, WithDataFields(fields...), WithRegions(regions), WithData(data))
	return NewVector(f, opts...)
}

// File returns the store holding the feature.
func (v *VectorFeature) File() *store.File {
	return v.file
}

// Table returns the table holding the regions and data fields.
func (v *VectorFeature) Table() *table.Table {
	return v.regions.table
}

// Len returns the number of visible regions.
func (v *VectorFeature) Len() int {
	return v.regions.table.Len()
}

// AddRegions appends regions.  Their data fields hold zero values (NaN for
// floating point fields) until set.
func (v *VectorFeature) AddRegions(regions []genomics.Region) error {
	return v.regions.addRegions(regions)
}

// AddVector is shorthand for AddData with a single named vector.
func (v *VectorFeature) AddVector(name string, values []any) error {
	return v.AddData(map[string][]any{name: values})
}

// AddData replaces the named columns with the provided vectors, creating
// columns that do not exist yet.  Every vector must hold one value per
// region; otherwise ErrSizeMismatch is returned and no column changes.  The
// feature is marked as calculated.
func (v *VectorFeature) AddData(data map[string][]any) error {
	t := v.regions.table
	names := sortedKeys(data)
	fields := make([]table.Field, len(names))
	for i, name := range names {
		values := data[name]
		if len(values) != t.NumRows() {
			return fmt.Errorf("adding %q: %d values for %d regions: %w", name, len(values), t.NumRows(), ErrSizeMismatch)
		}
		if isRegionField(name) {
			return fmt.Errorf("adding %q: cannot replace a region field", name)
		}
		field, ok := t.Field(name)
		if !ok {
			var err error
			if field, err = inferField(name, values); err != nil {
				return err
			}
		}
		for _, value := range values {
			if _, err := field.Convert(value); err != nil {
				return fmt.Errorf("adding %q: %w", name, err)
			}
		}
		fields[i] = field
	}

	for i, name := range names {
		if err := t.SetColumn(fields[i], data[name]); err != nil {
			return fmt.Errorf("adding %q: %w", name, err)
		}
	}
	v.markCalculated()
	return nil
}

// DataFieldNames returns the names of the data fields in schema order.
func (v *VectorFeature) DataFieldNames() []string {
	var names []string
	for _, name := range v.regions.table.Schema().Names() {
		if !isRegionField(name) {
			names = append(names, name)
		}
	}
	return names
}

// Rows returns the rows selected by key, which may be an int (the i-th
// visible row), a Slice, a region descriptor string or a genomics.Region
// (the rows overlapping it).
func (v *VectorFeature) Rows(key any) (iter.Seq[RegionRow], error) {
	if err := v.EnsureCalculated(); err != nil {
		return nil, err
	}
	rows, err := v.regions.rowSeq(key)
	if err != nil {
		return nil, err
	}
	return func(yield func(RegionRow) bool) {
		for row := range rows {
			if !yield(RegionRow{row}) {
				return
			}
		}
	}, nil
}

// Regions returns the visible regions in order.  The sequence can be
// iterated repeatedly.
func (v *VectorFeature) Regions() (iter.Seq[genomics.Region], error) {
	if err := v.EnsureCalculated(); err != nil {
		return nil, err
	}
	return regionSeq(v.regions.table.Rows(0, End, 1)), nil
}

// Get returns the values of the columns selected by colKey for the rows
// selected by rowKey.  Row keys are interpreted as in Rows.  Column keys may
// be an int or Slice (indexing every field including the region fields), a
// field name or a list of field names.
//
// A single column yields a scalar for an int row key and a []any otherwise.
// Several columns yield a map[string]any for an int row key and a
// map[string][]any otherwise.
func (v *VectorFeature) Get(rowKey, colKey any) (any, error) {
	if err := v.EnsureCalculated(); err != nil {
		return nil, err
	}
	rows, singleRow, err := v.regions.selectRows(rowKey)
	if err != nil {
		return nil, err
	}
	names, singleColumn, err := columnNames(v.regions.table.Schema(), colKey)
	if err != nil {
		return nil, err
	}

	if singleRow {
		values := make(map[string]any, len(names))
		for _, name := range names {
			value, err := rows[0].Get(name)
			if err != nil {
				return nil, err
			}
			values[name] = value
		}
		if singleColumn {
			return values[names[0]], nil
		}
		return values, nil
	}

	columns := make(map[string][]any, len(names))
	for _, name := range names {
		column := make([]any, 0, len(rows))
		for _, row := range rows {
			value, err := row.Get(name)
			if err != nil {
				return nil, err
			}
			column = append(column, value)
		}
		columns[name] = column
	}
	if singleColumn {
		return columns[names[0]], nil
	}
	return columns, nil
}

// Set assigns value to the columns selected by colKey for the rows selected
// by rowKey.
//
// If value is a slice it must hold one item per selected row, otherwise
// exactly one row must be selected and value is its item.  With a single
// column each item is the new value.  With several columns an item must be a
// slice holding one value per column, a map[string]any or a FieldGetter.
// All writes are flushed together; on error none of them are kept.
func (v *VectorFeature) Set(rowKey, colKey, value any) error {
	if err := v.EnsureCalculated(); err != nil {
		return err
	}
	rows, _, err := v.regions.selectRows(rowKey)
	if err != nil {
		return err
	}
	names, _, err := columnNames(v.regions.table.Schema(), colKey)
	if err != nil {
		return err
	}

	items, ok := asList(value)
	if ok {
		if len(items) != len(rows) {
			return fmt.Errorf("replacing %d rows with %d values: %w", len(rows), len(items), ErrSizeMismatch)
		}
	} else {
		if len(rows) != 1 {
			return fmt.Errorf("replacing %d rows with a single value: %w", len(rows), ErrSizeMismatch)
		}
		items = []any{value}
	}

	t := v.regions.table
	for i, row := range rows {
		for j, name := range names {
			x, err := component(items[i], names, j)
			if err != nil {
				t.Discard()
				return fmt.Errorf("row %d: %w", row.Ix(), err)
			}
			if err := row.Set(name, x); err != nil {
				t.Discard()
				return err
			}
			if isRegionField(name) {
				v.regions.index = nil
			}
		}
	}
	return v.Flush()
}

// Flush commits buffered writes to the table.
func (v *VectorFeature) Flush() error {
	return v.regions.table.Flush()
}

// Close flushes buffered writes and persists the store.
func (v *VectorFeature) Close() error {
	if err := v.Flush(); err != nil {
		return err
	}
	return v.file.Flush()
}

// component returns the value for column j of names from a Set item.
func component(item any, names []string, j int) (any, error) {
	switch x := item.(type) {
	case FieldGetter:
		value, err := x.Field(names[j])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValueShape, err)
		}
		return value, nil
	case map[string]any:
		value, ok := x[names[j]]
		if !ok {
			return nil, fmt.Errorf("%w: no value for %q", ErrValueShape, names[j])
		}
		return value, nil
	}
	if len(names) == 1 {
		return item, nil
	}
	if list, ok := asList(item); ok && j < len(list) {
		return list[j], nil
	}
	return nil, fmt.Errorf("%w: %T does not provide %d columns", ErrValueShape, item, len(names))
}

// asList converts slices and arrays, other than byte slices, into []any.
func asList(value any) ([]any, bool) {
	switch x := value.(type) {
	case []any:
		return x, true
	case []byte, nil:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

// inferField returns a field able to hold values, typed after the first
// non-nil value.  Strings fields are sized to the longest string.
func inferField(name string, values []any) (table.Field, error) {
	field := table.Field{Name: name, Type: table.Float64}
	found := false
	width := 1
	for _, value := range values {
		if s, ok := value.(string); ok {
			width = max(width, len(s))
		}
		if found || value == nil {
			continue
		}
		switch value.(type) {
		case string:
			field.Type = table.String
		case bool:
			field.Type = table.Bool
		case float32, float64:
			field.Type = table.Float64
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			field.Type = table.Int64
		default:
			return table.Field{}, fmt.Errorf("field %q: %w: unsupported value %T", name, table.ErrTypeMismatch, value)
		}
		found = true
	}
	if field.Type == table.String {
		field.Width = width
	}
	return field, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values converts a typed slice into the []any accepted by AddData.
func Values[T any](values []T) []any {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
	}
	return list
}
