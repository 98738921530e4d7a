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

// Package genomics contains definitions related to Genomic data.
package genomics

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Strand identifies the strand of a genomic region.
type Strand int8

// Recognised strand values.
const (
	UnknownStrand Strand = 0
	Forward       Strand = 1
	Reverse       Strand = -1
)

// String returns the conventional single character representation of s.
func (s Strand) String() string {
	switch s {
	case Forward:
		return "+"
	case Reverse:
		return "-"
	}
	return "."
}

// ParseStrand converts a strand descriptor ("+", "-", "1", "-1", "." or an
// empty string) into a Strand.
func ParseStrand(input string) (Strand, error) {
	switch input {
	case "+", "1", "+1":
		return Forward, nil
	case "-", "-1":
		return Reverse, nil
	case ".", "", "0":
		return UnknownStrand, nil
	}
	return UnknownStrand, fmt.Errorf("invalid strand %q", input)
}

// Region defines a region of genomic interest.
type Region struct {
	// Ix is the position of the region inside the store that holds it.  It is
	// only meaningful for regions that were read from a store.
	Ix int
	// Chromosome names the reference sequence.
	Chromosome string
	// Start and End specify the closed, 1-based range (in base pairs) on the
	// chromosome.  If End is zero, it is treated as though it was set to the
	// last position of the chromosome.
	Start, End int
	Strand     Strand
}

var errMissingChromosome = errors.New("missing chromosome")

// ParseRegion parses a region descriptor of the form
// "chromosome[:start-end[:strand]]".  Thousands separators in the
// coordinates are ignored.
func ParseRegion(input string) (Region, error) {
	parts := strings.Split(strings.TrimSpace(input), ":")
	if parts[0] == "" {
		return Region{}, errMissingChromosome
	}
	region := Region{Ix: -1, Chromosome: parts[0]}
	if len(parts) > 3 {
		return Region{}, fmt.Errorf("too many fields in region %q", input)
	}

	if len(parts) > 1 {
		bounds := strings.SplitN(strings.Replace(parts[1], ",", "", -1), "-", 2)
		if len(bounds) != 2 {
			return Region{}, fmt.Errorf("missing end coordinate in region %q", input)
		}
		start, err := strconv.Atoi(bounds[0])
		if err != nil {
			return Region{}, fmt.Errorf("parsing start: %w", err)
		}
		end, err := strconv.Atoi(bounds[1])
		if err != nil {
			return Region{}, fmt.Errorf("parsing end: %w", err)
		}
		if start < 0 || end < 0 {
			return Region{}, fmt.Errorf("negative coordinate in region %q", input)
		}
		if end > 0 && start > end {
			return Region{}, fmt.Errorf("%s: start > end", input)
		}
		region.Start, region.End = start, end
	}

	if len(parts) > 2 {
		strand, err := ParseStrand(parts[2])
		if err != nil {
			return Region{}, fmt.Errorf("parsing strand: %w", err)
		}
		region.Strand = strand
	}
	return region, nil
}

// Length returns the number of base pairs covered by the region, or zero if
// the region is unbounded.
func (region Region) Length() int {
	if region.End == 0 {
		return 0
	}
	return region.End - region.Start + 1
}

// Overlaps reports whether region and other share at least one base pair.
func (region Region) Overlaps(other Region) bool {
	if region.Chromosome != other.Chromosome {
		return false
	}
	if region.End != 0 && other.Start > region.End {
		return false
	}
	if other.End != 0 && region.Start > other.End {
		return false
	}
	return true
}

// String returns a descriptor that can be parsed with ParseRegion.
func (region Region) String() string {
	s := fmt.Sprintf("%s:%d-%d", region.Chromosome, region.Start, region.End)
	if region.Strand != UnknownStrand {
		s += ":" + region.Strand.String()
	}
	return s
}
