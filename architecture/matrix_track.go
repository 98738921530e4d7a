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
	"slices"
	"strconv"
	"strings"

	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/table"
	"gonum.org/v1/gonum/mat"
)

// Matrix tracks live in sibling nodes named tracks/<name>, one Float64
// column per matrix column and one row per region.
const matrixTrackPrefix = TracksNode + "/"

// MatrixTracks returns the names of the matrix-valued tracks, sorted.
func (g *GenomicTrack) MatrixTracks() []string {
	var names []string
	for _, node := range g.File().Nodes() {
		if name, ok := strings.CutPrefix(node, matrixTrackPrefix); ok {
			names = append(names, name)
		}
	}
	return names
}

// SetMatrixTrack stores m as the named matrix track, replacing any matrix
// track of the same name.  m needs one row per region.
func (g *GenomicTrack) SetMatrixTrack(name string, m *mat.Dense) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("invalid matrix track name %q", name)
	}
	if slices.Contains(g.Tracks(), name) {
		return fmt.Errorf("%w: %q is a vector track", table.ErrTypeMismatch, name)
	}
	rows, cols := m.Dims()
	if rows != g.Len() {
		return fmt.Errorf("%w: matrix track %q has %d rows for %d regions", feature.ErrSizeMismatch, name, rows, g.Len())
	}

	f := g.File()
	node := matrixTrackPrefix + name
	if f.HasNode(node) {
		if err := f.RemoveNode(node); err != nil {
			return err
		}
	}
	schema := make(table.Schema, cols)
	for j := range schema {
		schema[j] = table.Field{Name: strconv.Itoa(j), Type: table.Float64}
	}
	t, err := f.CreateTable(node, schema)
	if err != nil {
		return err
	}
	for i := range rows {
		row := make(map[string]any, cols)
		for j := range cols {
			row[schema[j].Name] = m.At(i, j)
		}
		if _, err := t.Append(row); err != nil {
			return fmt.Errorf("matrix track %q row %d: %w", name, i, err)
		}
	}
	return nil
}

// MatrixTrack returns the named matrix track.
func (g *GenomicTrack) MatrixTrack(name string) (*mat.Dense, error) {
	node := matrixTrackPrefix + name
	if !g.File().HasNode(node) {
		return nil, fmt.Errorf("%w: matrix track %q", table.ErrNoSuchField, name)
	}
	t, err := g.File().Table(node)
	if err != nil {
		return nil, err
	}
	schema := t.Schema()
	rows, cols := t.NumRows(), len(schema)
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("matrix track %q is empty", name)
	}
	m := mat.NewDense(rows, cols, nil)
	for j, field := range schema {
		values, err := t.Column(field.Name)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			x, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("%w: matrix track %q holds %T", table.ErrTypeMismatch, name, v)
			}
			m.Set(i, j, x)
		}
	}
	return m, nil
}

// Data returns the named track: a []any for a vector track or a *mat.Dense
// for a matrix track.
func (g *GenomicTrack) Data(name string) (any, error) {
	if slices.Contains(g.MatrixTracks(), name) {
		return g.MatrixTrack(name)
	}
	return g.Track(name)
}
