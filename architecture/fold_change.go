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

	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/store"
)

const (
	// FoldChangeNode is the edge node of a FoldChange matrix.
	FoldChangeNode = "fold_change"

	foldChangeRegions = "fold_change_regions"
)

// FoldChange holds the ratio of the weights of two matrices over the same
// regions.  Region pairs without a weight in either matrix have no edge.
type FoldChange struct {
	*feature.MatrixFeature
	numerator, denominator *feature.MatrixFeature
}

// NewFoldChange opens the fold change of numerator over denominator stored in
// f.  The sources may be nil if f already holds the calculated matrix.
func NewFoldChange(f *store.File, numerator, denominator *feature.MatrixFeature, opts ...feature.Option) (*FoldChange, error) {
	fc := &FoldChange{numerator: numerator, denominator: denominator}
	opts = append([]feature.Option{
		feature.WithTableName(foldChangeRegions),
		feature.WithEdgeTableName(FoldChangeNode),
		feature.WithName(FoldChangeClass),
	}, opts...)
	opts = append(opts, feature.WithCalculator(feature.CalculatorFunc(fc.calculate)))
	m, err := feature.NewMatrix(f, opts...)
	if err != nil {
		return nil, err
	}
	fc.MatrixFeature = m
	if err := stamp(f, FoldChangeClass); err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *FoldChange) calculate() error {
	if fc.numerator == nil || fc.denominator == nil {
		return errNoSource
	}
	regions, err := fc.numerator.Regions(feature.All)
	if err != nil {
		return fmt.Errorf("reading numerator regions: %w", err)
	}
	if n := fc.denominator.NumRegions(); n != len(regions) {
		return fmt.Errorf("numerator has %d regions, denominator %d: %w", len(regions), n, feature.ErrSizeMismatch)
	}
	numerator, err := fc.numerator.AsMatrix(feature.All, feature.All, "")
	if err != nil {
		return err
	}
	denominator, err := fc.denominator.AsMatrix(feature.All, feature.All, "")
	if err != nil {
		return err
	}

	var edges []genomics.Edge
	for i := range regions {
		for j := i; j < len(regions); j++ {
			n, d := numerator.At(i, j), denominator.At(i, j)
			if n == 0 || d == 0 {
				continue
			}
			edges = append(edges, genomics.NewEdge(i, j, n/d))
		}
	}

	if fc.NumRegions() == 0 {
		if err := fc.AddRegions(regions); err != nil {
			return err
		}
	}
	return fc.AddEdges(edges)
}
