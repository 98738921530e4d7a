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

	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/index"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/googlegenomics/genomearch/internal/table"
	"go.uber.org/zap"
)

// Names of the fields describing a region.  They precede any data fields.
const (
	IxField         = "ix"
	ChromosomeField = "chromosome"
	StartField      = "start"
	EndField        = "end"
	StrandField     = "strand"
)

// chromosomeWidth is the maximum stored length of chromosome names.
const chromosomeWidth = 50

var regionSchema = table.Schema{
	{Name: IxField, Type: table.Int64},
	{Name: ChromosomeField, Type: table.String, Width: chromosomeWidth},
	{Name: StartField, Type: table.Int64},
	{Name: EndField, Type: table.Int64},
	{Name: StrandField, Type: table.Int64},
}

func isRegionField(name string) bool {
	switch name {
	case IxField, ChromosomeField, StartField, EndField, StrandField:
		return true
	}
	return false
}

// regionTable is a table whose rows start with the region fields.
type regionTable struct {
	table *table.Table
	// index is built on first use and dropped whenever regions are added.
	index *index.Index
}

// openRegionTable returns the named table of f, creating it with the region
// fields followed by extra if it does not exist.  Fields of extra missing
// from an existing writable table are added.
func openRegionTable(f *store.File, name string, extra table.Schema, logger *zap.Logger) (*regionTable, error) {
	if f.HasNode(name) {
		t, err := f.Table(name)
		if err != nil {
			return nil, err
		}
		for _, field := range regionSchema {
			if _, ok := t.Field(field.Name); !ok {
				return nil, fmt.Errorf("node %q is missing region field %q", name, field.Name)
			}
		}
		if !t.ReadOnly() {
			for _, field := range extra {
				if _, ok := t.Field(field.Name); !ok {
					if err := t.AddField(field); err != nil {
						return nil, err
					}
				}
			}
		}
		t.SetLogger(logger.With(zap.String("table", name)))
		return &regionTable{table: t}, nil
	}

	schema := append(append(table.Schema(nil), regionSchema...), extra...)
	t, err := f.CreateTable(name, schema)
	if err != nil {
		return nil, err
	}
	t.SetLogger(logger.With(zap.String("table", name)))
	return &regionTable{table: t}, nil
}

// addRegions appends regions, assigning their ix in insertion order.
func (r *regionTable) addRegions(regions []genomics.Region) error {
	for _, region := range regions {
		if region.End != 0 && region.Start > region.End {
			return fmt.Errorf("adding region %s: start > end", region)
		}
		if _, err := r.table.Append(map[string]any{
			IxField:         r.table.NumRows(),
			ChromosomeField: region.Chromosome,
			StartField:      region.Start,
			EndField:        region.End,
			StrandField:     int(region.Strand),
		}); err != nil {
			return fmt.Errorf("adding region %s: %w", region, err)
		}
	}
	r.index = nil
	return nil
}

// rowRegion materializes the region stored in row.
func rowRegion(row table.Row) (genomics.Region, error) {
	values := make([]any, len(regionSchema))
	for i, field := range regionSchema {
		v, err := row.Get(field.Name)
		if err != nil {
			return genomics.Region{}, err
		}
		values[i] = v
	}
	chromosome, _ := values[1].(string)
	ix, _ := values[0].(int64)
	start, _ := values[2].(int64)
	end, _ := values[3].(int64)
	strand, _ := values[4].(int64)
	return genomics.Region{
		Ix:         int(ix),
		Chromosome: chromosome,
		Start:      int(start),
		End:        int(end),
		Strand:     genomics.Strand(strand),
	}, nil
}

func (r *regionTable) regionAt(ix int) (genomics.Region, error) {
	row, err := r.table.RowAt(ix)
	if err != nil {
		return genomics.Region{}, err
	}
	return rowRegion(row)
}

// overlapping returns the visible rows overlapping region in region order.
func (r *regionTable) overlapping(region genomics.Region) ([]table.Row, error) {
	if r.index == nil {
		idx := index.New()
		for row := range r.table.All() {
			region, err := rowRegion(row)
			if err != nil {
				return nil, err
			}
			region.Ix = row.Ix()
			idx.Add(region)
		}
		r.index = idx
	}
	var rows []table.Row
	for _, ix := range r.index.Overlapping(region) {
		row, err := r.table.RowAt(ix)
		if err != nil {
			return nil, err
		}
		if !row.Masked() {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// selectRows resolves a row selector.  single reports whether the selector
// is an integer.
func (r *regionTable) selectRows(key any) (rows []table.Row, single bool, err error) {
	switch k := key.(type) {
	case int:
		i := k
		if i < 0 {
			i += r.table.Len()
		}
		row, err := r.table.Row(i)
		if err != nil {
			return nil, false, err
		}
		return []table.Row{row}, true, nil
	case Slice:
		for row := range r.table.Rows(k.bounds(r.table.Len())) {
			rows = append(rows, row)
		}
		return rows, false, nil
	case string:
		region, err := genomics.ParseRegion(k)
		if err != nil {
			return nil, false, fmt.Errorf("parsing region key: %w", err)
		}
		rows, err := r.overlapping(region)
		return rows, false, err
	case genomics.Region:
		rows, err := r.overlapping(k)
		return rows, false, err
	}
	return nil, false, fmt.Errorf("row key %T: %w", key, ErrUnrecognizedKey)
}

// rowSeq resolves a row selector into a sequence.  Slice selectors are
// evaluated each time the sequence is iterated.
func (r *regionTable) rowSeq(key any) (iter.Seq[table.Row], error) {
	if s, ok := key.(Slice); ok {
		return func(yield func(table.Row) bool) {
			for row := range r.table.Rows(s.bounds(r.table.Len())) {
				if !yield(row) {
					return
				}
			}
		}, nil
	}
	rows, _, err := r.selectRows(key)
	if err != nil {
		return nil, err
	}
	return func(yield func(table.Row) bool) {
		for _, row := range rows {
			if !yield(row) {
				return
			}
		}
	}, nil
}

// regionSeq converts a row sequence into a region sequence.  Rows that cannot
// be decoded end the sequence.
func regionSeq(rows iter.Seq[table.Row]) iter.Seq[genomics.Region] {
	return func(yield func(genomics.Region) bool) {
		for row := range rows {
			region, err := rowRegion(row)
			if err != nil {
				return
			}
			if !yield(region) {
				return
			}
		}
	}
}
