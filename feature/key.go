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
	"math"

	"github.com/googlegenomics/genomearch/internal/table"
)

// End selects every row up to the last when used as Slice.Stop.
const End = math.MaxInt

// Slice selects the visible rows Start, Start+Step, ... up to but excluding
// Stop.  Negative Start and Stop count from the end.  A non-positive Step is
// treated as 1.
type Slice struct {
	Start, Stop, Step int
}

// All selects every visible row.
var All = Slice{0, End, 1}

// Span returns the Slice of rows [start, stop).
func Span(start, stop int) Slice {
	return Slice{start, stop, 1}
}

func (s Slice) String() string {
	stop := fmt.Sprint(s.Stop)
	if s.Stop == End {
		stop = ""
	}
	return fmt.Sprintf("%d:%s:%d", s.Start, stop, s.Step)
}

// bounds resolves s against a sequence of n items.
func (s Slice) bounds(n int) (start, stop, step int) {
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		return min(max(i, 0), n)
	}
	step = s.Step
	if step <= 0 {
		step = 1
	}
	return clamp(s.Start), clamp(s.Stop), step
}

// columnNames resolves a column selector against schema.  Integer and Slice
// selectors index the complete schema, including the region fields.  single
// reports whether the selector names exactly one column rather than a list.
func columnNames(schema table.Schema, key any) (names []string, single bool, err error) {
	all := schema.Names()
	switch k := key.(type) {
	case int:
		i := k
		if i < 0 {
			i += len(all)
		}
		if i < 0 || i >= len(all) {
			return nil, false, fmt.Errorf("column %d: %w", k, table.ErrNoSuchField)
		}
		return all[i : i+1], true, nil
	case Slice:
		start, stop, step := k.bounds(len(all))
		for i := start; i < stop; i += step {
			names = append(names, all[i])
		}
		return names, false, nil
	case string:
		return []string{k}, true, nil
	case []string:
		return append([]string(nil), k...), false, nil
	}
	return nil, false, fmt.Errorf("column key %T: %w", key, ErrUnrecognizedKey)
}
