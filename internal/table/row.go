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

import "fmt"

// Row is a handle to a single table row.  Values are read from the table on
// every access so a Row observes staged and committed writes.
type Row struct {
	t  *Table
	ix int
}

// Ix returns the stable index of the row.
func (r Row) Ix() int {
	return r.ix
}

// Masked reports whether the row is hidden by any mask.
func (r Row) Masked() bool {
	return r.t.hiddenRows().Contains(uint32(r.ix))
}

// Get returns the value of the named field.
func (r Row) Get(name string) (any, error) {
	i, ok := r.t.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchField, name)
	}
	return r.t.value(r.ix, i), nil
}

// Set stages a write of v to the named field.  The write becomes permanent
// when the table is flushed.
func (r Row) Set(name string, v any) error {
	if r.t.readOnly {
		return ErrReadOnly
	}
	i, ok := r.t.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchField, name)
	}
	value, err := convert(r.t.columns[i].field, v)
	if err != nil {
		return fmt.Errorf("row %d: %w", r.ix, err)
	}
	r.t.staged[cell{r.ix, i}] = value
	return nil
}

// Values returns all fields of the row keyed by name.
func (r Row) Values() map[string]any {
	values := make(map[string]any, len(r.t.columns))
	for i, c := range r.t.columns {
		values[c.field.Name] = r.t.value(r.ix, i)
	}
	return values
}
