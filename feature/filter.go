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

	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/table"
)

// DefaultMask hides edges rejected by filters created without a mask.
var DefaultMask = table.Mask{Name: "default", Description: "Default mask"}

// LazyEdge is an edge whose fields are read from its row on access.
type LazyEdge struct {
	row     table.Row
	regions *regionTable
}

// Ix returns the stable index of the edge.
func (e *LazyEdge) Ix() int {
	return e.row.Ix()
}

// Field returns the value of the named edge field.
func (e *LazyEdge) Field(name string) (any, error) {
	return e.row.Get(name)
}

func (e *LazyEdge) intField(name string) (int, error) {
	v, err := e.row.Get(name)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", table.ErrTypeMismatch, name, v)
	}
	return int(n), nil
}

// Source returns the index of the first region of the edge.
func (e *LazyEdge) Source() (int, error) {
	return e.intField(SourceField)
}

// Sink returns the index of the second region of the edge.
func (e *LazyEdge) Sink() (int, error) {
	return e.intField(SinkField)
}

// Weight returns the weight of the edge.
func (e *LazyEdge) Weight() (float64, error) {
	v, err := e.row.Get(genomics.WeightField)
	if err != nil {
		return 0, err
	}
	switch w := v.(type) {
	case float64:
		return w, nil
	case int64:
		return float64(w), nil
	}
	return 0, fmt.Errorf("%w: weight is %T", table.ErrTypeMismatch, v)
}

// SourceRegion returns the region referenced by Source.
func (e *LazyEdge) SourceRegion() (genomics.Region, error) {
	source, err := e.Source()
	if err != nil {
		return genomics.Region{}, err
	}
	return e.regions.regionAt(source)
}

// SinkRegion returns the region referenced by Sink.
func (e *LazyEdge) SinkRegion() (genomics.Region, error) {
	sink, err := e.Sink()
	if err != nil {
		return genomics.Region{}, err
	}
	return e.regions.regionAt(sink)
}

// Edge reads every field of the edge.
func (e *LazyEdge) Edge() (genomics.Edge, error) {
	return rowEdge(e.row)
}

// EdgePredicate decides whether an edge stays visible.
type EdgePredicate interface {
	ValidEdge(*LazyEdge) (bool, error)
}

// EdgePredicateFunc adapts a function into an EdgePredicate.
type EdgePredicateFunc func(*LazyEdge) (bool, error)

// ValidEdge calls f.
func (f EdgePredicateFunc) ValidEdge(e *LazyEdge) (bool, error) {
	return f(e)
}

// MatrixFilter masks the edges of a MatrixFeature rejected by an
// EdgePredicate.  It implements table.MaskFilter once bound to a matrix with
// SetMatrixObject, which MatrixFeature.Filter does.
type MatrixFilter struct {
	predicate EdgePredicate
	mask      table.Mask
	matrix    *MatrixFeature
}

// NewMatrixFilter returns a filter hiding edges rejected by predicate under
// mask.  DefaultMask is used if mask has no name.
func NewMatrixFilter(predicate EdgePredicate, mask table.Mask) *MatrixFilter {
	if mask.Name == "" {
		mask = DefaultMask
	}
	return &MatrixFilter{predicate: predicate, mask: mask}
}

// SetMatrixObject binds the filter to m.
func (f *MatrixFilter) SetMatrixObject(m *MatrixFeature) {
	f.matrix = m
}

// Mask returns the mask applied to rejected edges.
func (f *MatrixFilter) Mask() table.Mask {
	return f.mask
}

// Valid evaluates the predicate for the edge stored in row.
func (f *MatrixFilter) Valid(row table.Row) (bool, error) {
	if f.matrix == nil {
		return false, ErrUnboundFilter
	}
	return f.predicate.ValidEdge(&LazyEdge{row: row, regions: f.matrix.regions})
}

// MinWeight keeps edges whose weight is at least threshold.
func MinWeight(threshold float64) EdgePredicate {
	return EdgePredicateFunc(func(e *LazyEdge) (bool, error) {
		w, err := e.Weight()
		return w >= threshold, err
	})
}

// DiagonalDistance keeps edges whose regions are more than distance bins
// apart, removing the diagonal and its neighbourhood.
func DiagonalDistance(distance int) EdgePredicate {
	return EdgePredicateFunc(func(e *LazyEdge) (bool, error) {
		source, err := e.Source()
		if err != nil {
			return false, err
		}
		sink, err := e.Sink()
		if err != nil {
			return false, err
		}
		d := sink - source
		if d < 0 {
			d = -d
		}
		return d > distance, nil
	})
}

// ChromosomeFilter keeps intra-chromosomal edges if intra is set and
// inter-chromosomal edges otherwise.
func ChromosomeFilter(intra bool) EdgePredicate {
	return EdgePredicateFunc(func(e *LazyEdge) (bool, error) {
		source, err := e.SourceRegion()
		if err != nil {
			return false, err
		}
		sink, err := e.SinkRegion()
		if err != nil {
			return false, err
		}
		return (source.Chromosome == sink.Chromosome) == intra, nil
	})
}
