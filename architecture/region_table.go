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

package architecture

import (
	"fmt"
	"sort"

	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/googlegenomics/genomearch/internal/table"
)

const (
	// RegionTableNode is the node holding a BasicRegionTable.
	RegionTableNode = "region_table"

	stringSize = 100
)

// BasicRegionTable is a vector feature with a fixed set of data fields that
// is always populated by its creator.
type BasicRegionTable struct {
	*feature.VectorFeature
}

// NewBasicRegionTable stores regions with one data field per entry of
// fields.  String fields hold up to 100 bytes.  data may be nil or provide
// values for any of the fields.
func NewBasicRegionTable(f *store.File, regions []genomics.Region, fields map[string]table.Type, data map[string][]any, opts ...feature.Option) (*BasicRegionTable, error) {
	opts = append([]feature.Option{feature.WithTableName(RegionTableNode)}, opts...)
	opts = append(opts, dataOptions(fields, regions, data)...)
	return newBasicRegionTable(f, BasicRegionTableClass, opts)
}

// OpenBasicRegionTable opens an existing BasicRegionTable.
func OpenBasicRegionTable(f *store.File, opts ...feature.Option) (*BasicRegionTable, error) {
	if !f.HasNode(RegionTableNode) {
		return nil, fmt.Errorf("opening region table: %w: %q", store.ErrNoSuchNode, RegionTableNode)
	}
	opts = append([]feature.Option{feature.WithTableName(RegionTableNode)}, opts...)
	return newBasicRegionTable(f, BasicRegionTableClass, opts)
}

// dataOptions returns the options populating a region table with fields,
// regions and data.
func dataOptions(fields map[string]table.Type, regions []genomics.Region, data map[string][]any) []feature.Option {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	schema := make([]table.Field, len(names))
	for i, name := range names {
		schema[i] = table.Field{Name: name, Type: fields[name]}
		if fields[name] == table.String {
			schema[i].Width = stringSize
		}
	}
	opts := []feature.Option{feature.WithDataFields(schema...), feature.WithRegions(regions)}
	if data != nil {
		opts = append(opts, feature.WithData(data))
	}
	return opts
}

func newBasicRegionTable(f *store.File, class string, opts []feature.Option) (*BasicRegionTable, error) {
	// Nothing to derive: the data is whatever the creator stored.
	opts = append(opts, feature.WithCalculator(feature.CalculatorFunc(func() error { return nil })))
	v, err := feature.NewVector(f, opts...)
	if err != nil {
		return nil, err
	}
	if err := stamp(f, class); err != nil {
		return nil, err
	}
	return &BasicRegionTable{v}, nil
}
