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
	"cmp"
	"fmt"
	"iter"
	"sort"

	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/metrics"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/googlegenomics/genomearch/internal/table"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Names of the fields every edge table holds.
const (
	SourceField = "source"
	SinkField   = "sink"
)

var edgeSchema = table.Schema{
	{Name: SourceField, Type: table.Int64},
	{Name: SinkField, Type: table.Int64},
	{Name: genomics.WeightField, Type: table.Float64},
}

// MatrixFeature stores data for pairs of regions as edges.  Edges are
// undirected: they are stored with source <= sink and read symmetrically.
type MatrixFeature struct {
	calculation
	file    *store.File
	regions *regionTable
	edges   *table.Table
}

// NewMatrix opens the matrix feature stored in f, creating its tables if
// necessary.  A feature that already holds edges is considered calculated.
func NewMatrix(f *store.File, opts ...Option) (*MatrixFeature, error) {
	o := newOptions(opts)
	regions, err := openRegionTable(f, o.regionTable, nil, o.logger)
	if err != nil {
		return nil, fmt.Errorf("opening matrix regions: %w", err)
	}
	edges, err := openEdgeTable(f, o.edgeTable, o.edgeFields, o.logger)
	if err != nil {
		return nil, fmt.Errorf("opening matrix edges: %w", err)
	}
	name := o.name
	if name == "" {
		name = o.edgeTable
	}
	m := &MatrixFeature{
		calculation: calculation{
			name:       name,
			calculated: edges.NumRows() > 0,
			calculator: o.calculator,
			logger:     o.logger,
			node:       o.edgeTable,
		},
		file:    f,
		regions: regions,
		edges:   edges,
	}

	if o.regions != nil {
		if err := m.AddRegions(o.regions); err != nil {
			return nil, err
		}
	}
	if o.edges != nil {
		if err := m.AddEdges(o.edges); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func openEdgeTable(f *store.File, name string, extra table.Schema, logger *zap.Logger) (*table.Table, error) {
	var t *table.Table
	if f.HasNode(name) {
		var err error
		if t, err = f.Table(name); err != nil {
			return nil, err
		}
		for _, field := range edgeSchema {
			if _, ok := t.Field(field.Name); !ok {
				return nil, fmt.Errorf("node %q is missing edge field %q", name, field.Name)
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
	} else {
		var err error
		schema := append(append(table.Schema(nil), edgeSchema...), extra...)
		if t, err = f.CreateTable(name, schema); err != nil {
			return nil, err
		}
	}
	t.SetLogger(logger.With(zap.String("table", name)))
	return t, nil
}

// File returns the store holding the feature.
func (m *MatrixFeature) File() *store.File {
	return m.file
}

// EdgeTable returns the table holding the edges.
func (m *MatrixFeature) EdgeTable() *table.Table {
	return m.edges
}

// NumRegions returns the number of visible regions.
func (m *MatrixFeature) NumRegions() int {
	return m.regions.table.Len()
}

// Len returns the number of visible edges.
func (m *MatrixFeature) Len() int {
	return m.edges.Len()
}

// AddRegions appends regions.
func (m *MatrixFeature) AddRegions(regions []genomics.Region) error {
	return m.regions.addRegions(regions)
}

// AddEdges appends edges and marks the feature as calculated.  Edges must
// reference existing regions and may only carry declared fields.  Nothing is
// added if any edge is invalid.
func (m *MatrixFeature) AddEdges(edges []genomics.Edge) error {
	n := m.regions.table.NumRows()
	for i, e := range edges {
		if e.Source < 0 || e.Source >= n || e.Sink < 0 || e.Sink >= n {
			return fmt.Errorf("edge %d (%d, %d) references a missing region: %w", i, e.Source, e.Sink, table.ErrOutOfRange)
		}
		for name, value := range e.Fields {
			field, ok := m.edges.Field(name)
			if !ok || name == SourceField || name == SinkField {
				return fmt.Errorf("edge %d: %w: %q", i, table.ErrNoSuchField, name)
			}
			if _, err := field.Convert(value); err != nil {
				return fmt.Errorf("edge %d: %w", i, err)
			}
		}
	}

	for _, e := range edges {
		source, sink := e.Source, e.Sink
		if source > sink {
			source, sink = sink, source
		}
		values := make(map[string]any, len(e.Fields)+2)
		for name, value := range e.Fields {
			values[name] = value
		}
		values[SourceField], values[SinkField] = source, sink
		if _, err := m.edges.Append(values); err != nil {
			return fmt.Errorf("adding edge (%d, %d): %w", source, sink, err)
		}
	}
	m.markCalculated()
	return nil
}

// rowEdge materializes the edge stored in row.
func rowEdge(row table.Row) (genomics.Edge, error) {
	values := row.Values()
	source, ok1 := values[SourceField].(int64)
	sink, ok2 := values[SinkField].(int64)
	if !ok1 || !ok2 {
		return genomics.Edge{}, fmt.Errorf("edge %d: %w: source and sink must be integers", row.Ix(), table.ErrTypeMismatch)
	}
	delete(values, SourceField)
	delete(values, SinkField)
	return genomics.Edge{Source: int(source), Sink: int(sink), Fields: values}, nil
}

// Regions returns the visible regions selected by key (see
// VectorFeature.Rows).
func (m *MatrixFeature) Regions(key any) ([]genomics.Region, error) {
	if err := m.EnsureCalculated(); err != nil {
		return nil, err
	}
	return m.selectRegions(key)
}

func (m *MatrixFeature) selectRegions(key any) ([]genomics.Region, error) {
	rows, _, err := m.regions.selectRows(key)
	if err != nil {
		return nil, err
	}
	regions := make([]genomics.Region, len(rows))
	for i, row := range rows {
		if regions[i], err = rowRegion(row); err != nil {
			return nil, err
		}
	}
	return regions, nil
}

// Region returns the i-th visible region.
func (m *MatrixFeature) Region(i int) (genomics.Region, error) {
	regions, err := m.Regions(i)
	if err != nil {
		return genomics.Region{}, err
	}
	return regions[0], nil
}

// Edge returns the i-th visible edge.
func (m *MatrixFeature) Edge(i int) (genomics.Edge, error) {
	if err := m.EnsureCalculated(); err != nil {
		return genomics.Edge{}, err
	}
	row, err := m.edges.Row(i)
	if err != nil {
		return genomics.Edge{}, err
	}
	return rowEdge(row)
}

// Edges returns the visible edges in insertion order.  The sequence stops at
// the first edge that cannot be decoded.
func (m *MatrixFeature) Edges() (iter.Seq[genomics.Edge], error) {
	if err := m.EnsureCalculated(); err != nil {
		return nil, err
	}
	return func(yield func(genomics.Edge) bool) {
		for row := range m.edges.Rows(0, End, 1) {
			e, err := rowEdge(row)
			if err != nil || !yield(e) {
				return
			}
		}
	}, nil
}

// EdgesSorted returns the visible edges ordered by the named field.  Edges
// with equal values keep their insertion order.
func (m *MatrixFeature) EdgesSorted(field string, reverse bool) ([]genomics.Edge, error) {
	if err := m.EnsureCalculated(); err != nil {
		return nil, err
	}
	f, ok := m.edges.Field(field)
	if !ok {
		return nil, fmt.Errorf("sorting edges: %w: %q", table.ErrNoSuchField, field)
	}

	type keyed struct {
		key  any
		edge genomics.Edge
	}
	var edges []keyed
	for row := range m.edges.Rows(0, End, 1) {
		e, err := rowEdge(row)
		if err != nil {
			return nil, err
		}
		key, _ := row.Get(field)
		edges = append(edges, keyed{key, e})
	}
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i].key, edges[j].key
		if reverse {
			a, b = b, a
		}
		return compareValues(f.Type, a, b) < 0
	})

	sorted := make([]genomics.Edge, len(edges))
	for i, e := range edges {
		sorted[i] = e.edge
	}
	return sorted, nil
}

func compareValues(t table.Type, a, b any) int {
	switch t {
	case table.Int64:
		return cmp.Compare(a.(int64), b.(int64))
	case table.Float64:
		return cmp.Compare(a.(float64), b.(float64))
	case table.String:
		return cmp.Compare(a.(string), b.(string))
	}
	x, y := a.(bool), b.(bool)
	switch {
	case x == y:
		return 0
	case !x:
		return -1
	}
	return 1
}

// AsMatrix returns the values of the valuesFrom field (the weight if empty)
// as a dense matrix.  Rows and columns correspond to the regions selected by
// rowKey and colKey; cells without a visible edge are zero.
func (m *MatrixFeature) AsMatrix(rowKey, colKey any, valuesFrom string) (*mat.Dense, error) {
	if err := m.EnsureCalculated(); err != nil {
		return nil, err
	}
	rows, err := m.selectRegions(rowKey)
	if err != nil {
		return nil, err
	}
	cols, err := m.selectRegions(colKey)
	if err != nil {
		return nil, err
	}
	return m.matrix(rows, cols, valuesFrom)
}

func (m *MatrixFeature) matrix(rows, cols []genomics.Region, valuesFrom string) (*mat.Dense, error) {
	if valuesFrom == "" {
		valuesFrom = genomics.WeightField
	}
	field, ok := m.edges.Field(valuesFrom)
	if !ok {
		return nil, fmt.Errorf("building matrix: %w: %q", table.ErrNoSuchField, valuesFrom)
	}
	if field.Type != table.Int64 && field.Type != table.Float64 {
		return nil, fmt.Errorf("building matrix: %w: %v field %q is not numeric", table.ErrTypeMismatch, field.Type, valuesFrom)
	}
	if len(rows) == 0 || len(cols) == 0 {
		return &mat.Dense{}, nil
	}

	rowPos := make(map[int]int, len(rows))
	for i, region := range rows {
		rowPos[region.Ix] = i
	}
	colPos := make(map[int]int, len(cols))
	for j, region := range cols {
		colPos[region.Ix] = j
	}

	dense := mat.NewDense(len(rows), len(cols), nil)
	for row := range m.edges.Rows(0, End, 1) {
		e, err := rowEdge(row)
		if err != nil {
			return nil, err
		}
		var value float64
		switch v := e.Fields[valuesFrom].(type) {
		case int64:
			value = float64(v)
		case float64:
			value = v
		}
		if i, ok := rowPos[e.Source]; ok {
			if j, ok := colPos[e.Sink]; ok {
				dense.Set(i, j, value)
			}
		}
		if i, ok := rowPos[e.Sink]; ok {
			if j, ok := colPos[e.Source]; ok {
				dense.Set(i, j, value)
			}
		}
	}
	return dense, nil
}

// DataFrame is a matrix labelled with the regions of its rows and columns.
type DataFrame struct {
	Rows, Columns []genomics.Region
	Values        *mat.Dense
}

// RowLabels returns the region descriptors of the rows.
func (d *DataFrame) RowLabels() []string {
	return labels(d.Rows)
}

// ColumnLabels returns the region descriptors of the columns.
func (d *DataFrame) ColumnLabels() []string {
	return labels(d.Columns)
}

// Lookup returns the value for the row and column with the given labels.
func (d *DataFrame) Lookup(row, column string) (float64, bool) {
	i, j := indexOf(d.RowLabels(), row), indexOf(d.ColumnLabels(), column)
	if i < 0 || j < 0 {
		return 0, false
	}
	return d.Values.At(i, j), true
}

func labels(regions []genomics.Region) []string {
	out := make([]string, len(regions))
	for i, region := range regions {
		out[i] = region.String()
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, x := range list {
		if x == s {
			return i
		}
	}
	return -1
}

// DataFrame returns the same values as AsMatrix together with the regions
// labelling its rows and columns.
func (m *MatrixFeature) DataFrame(rowKey, colKey any, valuesFrom string) (*DataFrame, error) {
	if err := m.EnsureCalculated(); err != nil {
		return nil, err
	}
	rows, err := m.selectRegions(rowKey)
	if err != nil {
		return nil, err
	}
	cols, err := m.selectRegions(colKey)
	if err != nil {
		return nil, err
	}
	values, err := m.matrix(rows, cols, valuesFrom)
	if err != nil {
		return nil, err
	}
	return &DataFrame{Rows: rows, Columns: cols, Values: values}, nil
}

// Filter binds f to the matrix and either masks the edges it rejects right
// away or, if queue is set, defers it until RunQueuedFilters.  Edges are
// never removed, so their indices remain stable.
func (m *MatrixFeature) Filter(f *MatrixFilter, queue, logProgress bool) error {
	if err := m.EnsureCalculated(); err != nil {
		return err
	}
	f.SetMatrixObject(m)
	if queue {
		return m.edges.QueueFilter(f)
	}
	return m.countMasked(func() error {
		return m.edges.Filter(f, logProgress)
	})
}

// RunQueuedFilters runs every queued filter in one pass over all edges.  An
// edge rejected by one filter is still evaluated by the others.
func (m *MatrixFeature) RunQueuedFilters(logProgress bool) error {
	return m.countMasked(func() error {
		return m.edges.RunQueuedFilters(logProgress)
	})
}

// countMasked runs filter and records the newly masked edges per mask.
func (m *MatrixFeature) countMasked(filter func() error) error {
	before := m.edges.MaskStatistics()
	err := filter()
	for name, count := range m.edges.MaskStatistics() {
		if added := count - before[name]; added > 0 {
			metrics.MaskedRows.WithLabelValues(name).Add(float64(added))
			m.logger.Info("masked edges", zap.String("feature", m.name), zap.String("mask", name), zap.Int("edges", added))
		}
	}
	return err
}

// MaskStatistics returns the number of masked edges per mask name.
func (m *MatrixFeature) MaskStatistics() map[string]int {
	return m.edges.MaskStatistics()
}

// Flush commits buffered writes to the tables.
func (m *MatrixFeature) Flush() error {
	if err := m.regions.table.Flush(); err != nil {
		return err
	}
	return m.edges.Flush()
}

// Close flushes buffered writes and persists the store.
func (m *MatrixFeature) Close() error {
	if err := m.Flush(); err != nil {
		return err
	}
	return m.file.Flush()
}
