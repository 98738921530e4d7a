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
	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/table"
	"go.uber.org/zap"
)

// Default node names.
const (
	DefaultRegionTable = "region_data"
	DefaultEdgeTable   = "edges"
)

type options struct {
	name       string
	calculator Calculator
	logger     *zap.Logger

	regionTable string
	edgeTable   string

	dataFields table.Schema
	edgeFields table.Schema

	regions []genomics.Region
	data    map[string][]any
	edges   []genomics.Edge
}

// Option configures a VectorFeature or MatrixFeature.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger:      zap.NewNop(),
		regionTable: DefaultRegionTable,
		edgeTable:   DefaultEdgeTable,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// WithName sets the name used for the feature in logs and metrics.  It
// defaults to the name of the table holding the feature data.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithCalculator sets the Calculator run by guarded accessors.
func WithCalculator(c Calculator) Option {
	return func(o *options) { o.calculator = c }
}

// WithLogger sets the logger of the feature and its tables.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTableName sets the node holding the regions (and, for vectors, the
// data fields).
func WithTableName(name string) Option {
	return func(o *options) { o.regionTable = name }
}

// WithEdgeTableName sets the node holding the edges of a matrix.
func WithEdgeTableName(name string) Option {
	return func(o *options) { o.edgeTable = name }
}

// WithDataFields declares vector data fields in addition to the region
// fields.
func WithDataFields(fields ...table.Field) Option {
	return func(o *options) { o.dataFields = append(o.dataFields, fields...) }
}

// WithEdgeFields declares matrix edge fields in addition to source, sink and
// weight.
func WithEdgeFields(fields ...table.Field) Option {
	return func(o *options) { o.edgeFields = append(o.edgeFields, fields...) }
}

// WithRegions adds regions when the feature is created.
func WithRegions(regions []genomics.Region) Option {
	return func(o *options) { o.regions = regions }
}

// WithData adds vector data when the feature is created.
func WithData(data map[string][]any) Option {
	return func(o *options) { o.data = data }
}

// WithEdges adds matrix edges when the feature is created.
func WithEdges(edges []genomics.Edge) Option {
	return func(o *options) { o.edges = edges }
}
