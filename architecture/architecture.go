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

// Package architecture provides concrete genome architecture features built
// on the vector and matrix features, and detection of the feature stored in a
// file.
package architecture

import (
	"errors"
	"fmt"

	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/store"
)

// ClassIDAttr is the file attribute recording which feature created a store.
const ClassIDAttr = "classid"

// Class identifiers stored in ClassIDAttr.
const (
	BasicRegionTableClass = "BasicRegionTable"
	GenomicTrackClass     = "GenomicTrack"
	CoverageClass         = "Coverage"
	FoldChangeClass       = "FoldChange"
	VectorClass           = "VectorFeature"
	MatrixClass           = "MatrixFeature"
)

// ErrUnknownFeature is returned by Load when a store holds no recognizable
// feature.
var ErrUnknownFeature = errors.New("unknown feature")

// Feature is implemented by every feature that Load can return.
type Feature interface {
	NodeName() string
	Calculated() bool
	EnsureCalculated() error
	Flush() error
	Close() error
}

type loader func(f *store.File, opts []feature.Option) (Feature, error)

var classes = map[string]loader{
	BasicRegionTableClass: func(f *store.File, opts []feature.Option) (Feature, error) {
		return as(OpenBasicRegionTable(f, opts...))
	},
	GenomicTrackClass: func(f *store.File, opts []feature.Option) (Feature, error) {
		return as(OpenGenomicTrack(f, opts...))
	},
	CoverageClass: func(f *store.File, opts []feature.Option) (Feature, error) {
		return as(NewCoverage(f, nil, opts...))
	},
	FoldChangeClass: func(f *store.File, opts []feature.Option) (Feature, error) {
		return as(NewFoldChange(f, nil, nil, opts...))
	},
	VectorClass: func(f *store.File, opts []feature.Option) (Feature, error) {
		return as(feature.NewVector(f, opts...))
	},
	MatrixClass: func(f *store.File, opts []feature.Option) (Feature, error) {
		return as(feature.NewMatrix(f, opts...))
	},
}

// as converts the result of a constructor so that a failed call yields a
// nil Feature.
func as[T Feature](v T, err error) (Feature, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// detectable lists the classes recognized by the node they store, in the
// order they are tried.  Matrix nodes come first since every matrix also
// holds a region_data node.
var detectable = []struct {
	node  string
	class string
}{
	{FoldChangeNode, FoldChangeClass},
	{feature.DefaultEdgeTable, MatrixClass},
	{TracksNode, GenomicTrackClass},
	{CoverageNode, CoverageClass},
	{RegionTableNode, BasicRegionTableClass},
	{feature.DefaultRegionTable, VectorClass},
}

// Detect returns the class of the feature stored in f.  The classid
// attribute takes precedence over the nodes present in the store.
func Detect(f *store.File) (string, error) {
	if class, ok := f.Attr(ClassIDAttr); ok {
		if _, ok := classes[class]; !ok {
			return "", fmt.Errorf("%w: class %q", ErrUnknownFeature, class)
		}
		return class, nil
	}
	for _, d := range detectable {
		if f.HasNode(d.node) {
			return d.class, nil
		}
	}
	return "", fmt.Errorf("%w: nodes %v", ErrUnknownFeature, f.Nodes())
}

// Load opens the feature stored in f.  Derived features are opened without
// their sources, so they can only be read if they were calculated before.
func Load(f *store.File, opts ...feature.Option) (Feature, error) {
	class, err := Detect(f)
	if err != nil {
		return nil, err
	}
	return classes[class](f, opts)
}

// stamp records class in f unless f already names a class or is read-only.
func stamp(f *store.File, class string) error {
	if f.ReadOnly() {
		return nil
	}
	if _, ok := f.Attr(ClassIDAttr); ok {
		return nil
	}
	return f.SetAttr(ClassIDAttr, class)
}
