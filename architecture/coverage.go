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
	"errors"
	"fmt"

	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/googlegenomics/genomearch/internal/table"
)

const (
	// CoverageNode is the node holding a Coverage vector.
	CoverageNode = "coverage"
	// CoverageField is the data field holding the coverage of each region.
	CoverageField = "coverage"
)

var errNoSource = errors.New("no source feature to calculate from")

// Coverage holds, for every region of a matrix, the sum of the weights of the
// unmasked edges touching it.  It is calculated on first access.
type Coverage struct {
	*feature.VectorFeature
	matrix *feature.MatrixFeature
}

// NewCoverage opens the coverage of matrix stored in f.  matrix may be nil if
// f already holds the calculated coverage.
func NewCoverage(f *store.File, matrix *feature.MatrixFeature, opts ...feature.Option) (*Coverage, error) {
	c := &Coverage{matrix: matrix}
	opts = append([]feature.Option{feature.WithTableName(CoverageNode), feature.WithName(CoverageClass)}, opts...)
	opts = append(opts,
		feature.WithDataFields(table.Field{Name: CoverageField, Type: table.Float64}),
		feature.WithCalculator(feature.CalculatorFunc(c.calculate)))
	v, err := feature.NewVector(f, opts...)
	if err != nil {
		return nil, err
	}
	c.VectorFeature = v
	if err := stamp(f, CoverageClass); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Coverage) calculate() error {
	if c.matrix == nil {
		return errNoSource
	}
	regions, err := c.matrix.Regions(feature.All)
	if err != nil {
		return fmt.Errorf("reading regions: %w", err)
	}
	position := make(map[int]int, len(regions))
	for i, region := range regions {
		position[region.Ix] = i
	}

	sums := make([]float64, len(regions))
	edges, err := c.matrix.Edges()
	if err != nil {
		return fmt.Errorf("reading edges: %w", err)
	}
	for e := range edges {
		w := e.Weight()
		if i, ok := position[e.Source]; ok {
			sums[i] += w
		}
		if e.Sink == e.Source {
			continue
		}
		if j, ok := position[e.Sink]; ok {
			sums[j] += w
		}
	}

	if c.Len() == 0 {
		if err := c.AddRegions(regions); err != nil {
			return err
		}
	}
	return c.AddVector(CoverageField, feature.Values(sums))
}
