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

// Package index maps genomic coordinates to the row identifiers of the
// regions stored in a table.
package index

import (
	"math"
	"sort"

	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/tidwall/btree"
)

type entry struct {
	chromosome int
	start, end int
	ix         int
}

func entryLess(a, b entry) bool {
	if a.chromosome != b.chromosome {
		return a.chromosome < b.chromosome
	}
	if a.start != b.start {
		return a.start < b.start
	}
	return a.ix < b.ix
}

// Index answers overlap queries over a collection of regions.  Chromosomes
// are ordered by first appearance, regions within a chromosome by start.
type Index struct {
	tree        *btree.BTreeG[entry]
	chromosomes map[string]int
	names       []string
	// Longest region per chromosome, used to bound the overlap scan.
	longest []int
	// Chromosomes holding a region with a zero end, which reaches the end
	// of the chromosome.
	openEnded []bool
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		tree:        btree.NewBTreeG[entry](entryLess),
		chromosomes: make(map[string]int),
	}
}

// Add inserts region, identified by region.Ix, into the index.
func (idx *Index) Add(region genomics.Region) {
	id, ok := idx.chromosomes[region.Chromosome]
	if !ok {
		id = len(idx.names)
		idx.chromosomes[region.Chromosome] = id
		idx.names = append(idx.names, region.Chromosome)
		idx.longest = append(idx.longest, 0)
		idx.openEnded = append(idx.openEnded, false)
	}
	if region.End == 0 {
		idx.openEnded[id] = true
	} else if length := region.End - region.Start; length > idx.longest[id] {
		idx.longest[id] = length
	}
	idx.tree.Set(entry{id, region.Start, region.End, region.Ix})
}

// Len returns the number of indexed regions.
func (idx *Index) Len() int {
	return idx.tree.Len()
}

// Chromosomes returns the chromosome names in order of first appearance.
func (idx *Index) Chromosomes() []string {
	return append([]string(nil), idx.names...)
}

// Overlapping returns the ascending row identifiers of all regions that share
// at least one base pair with query.  A zero end, in query or in an indexed
// region, extends to the end of the chromosome.
func (idx *Index) Overlapping(query genomics.Region) []int {
	id, ok := idx.chromosomes[query.Chromosome]
	if !ok {
		return nil
	}

	var ixs []int
	pivot := entry{chromosome: id, start: query.Start - idx.longest[id], ix: -1}
	if idx.openEnded[id] {
		pivot.start = math.MinInt
	}
	idx.tree.Ascend(pivot, func(e entry) bool {
		if e.chromosome != id {
			return false
		}
		if query.End != 0 && e.start > query.End {
			return false
		}
		if e.end == 0 || e.end >= query.Start {
			ixs = append(ixs, e.ix)
		}
		return true
	})
	sort.Ints(ixs)
	return ixs
}
