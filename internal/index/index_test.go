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

package index

import (
	"reflect"
	"testing"

	"github.com/googlegenomics/genomearch/internal/genomics"
)

func testIndex() *Index {
	idx := New()
	regions := []genomics.Region{
		{Chromosome: "chr1", Start: 1, End: 100},
		{Chromosome: "chr1", Start: 101, End: 200},
		{Chromosome: "chr1", Start: 201, End: 300},
		{Chromosome: "chr2", Start: 1, End: 5000},
		{Chromosome: "chr2", Start: 5001, End: 5100},
		{Chromosome: "chr3", Start: 1, End: 10},
	}
	for i, region := range regions {
		region.Ix = i
		idx.Add(region)
	}
	return idx
}

func TestOverlapping(t *testing.T) {
	testCases := []struct {
		query string
		want  []int
	}{
		{"chr1", []int{0, 1, 2}},
		{"chr1:50-150", []int{0, 1}},
		{"chr1:100-101", []int{0, 1}},
		{"chr1:150-150", []int{1}},
		{"chr1:301-400", nil},
		{"chr2:4000-4001", []int{3}},
		{"chr2:5050-0", []int{4}},
		{"chr3:1-1", []int{5}},
		{"chrY", nil},
	}
	idx := testIndex()
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			query, err := genomics.ParseRegion(tc.query)
			if err != nil {
				t.Fatalf("ParseRegion(%q) failed: %v", tc.query, err)
			}
			if got := idx.Overlapping(query); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Overlapping(%s): got %v, want %v", tc.query, got, tc.want)
			}
		})
	}
}

func TestOverlapping_OpenEnded(t *testing.T) {
	idx := testIndex()
	idx.Add(genomics.Region{Chromosome: "chr1", Start: 250, Ix: 6})
	idx.Add(genomics.Region{Chromosome: "chr4", Start: 1000, Ix: 7})

	testCases := []struct {
		query string
		want  []int
	}{
		{"chr1:500-600", []int{6}},
		{"chr1:150-260", []int{1, 2, 6}},
		{"chr1:1-249", []int{0, 1, 2}},
		{"chr4:5000000-5000001", []int{7}},
		{"chr4:1-999", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			query, err := genomics.ParseRegion(tc.query)
			if err != nil {
				t.Fatalf("ParseRegion(%q) failed: %v", tc.query, err)
			}
			if got := idx.Overlapping(query); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Overlapping(%s): got %v, want %v", tc.query, got, tc.want)
			}
		})
	}
}

func TestChromosomes(t *testing.T) {
	idx := testIndex()
	if got, want := idx.Chromosomes(), []string{"chr1", "chr2", "chr3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Chromosomes(): got %v, want %v", got, want)
	}
	if got, want := idx.Len(), 6; got != want {
		t.Errorf("Len(): got %d, want %d", got, want)
	}
}
