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

package genomics

// WeightField names the field that stores the contact weight of an edge.
const WeightField = "weight"

// Edge relates two regions, referenced by their index, and carries any number
// of named data fields.
type Edge struct {
	Source, Sink int
	Fields       map[string]interface{}
}

// NewEdge returns an Edge between source and sink with the provided weight.
func NewEdge(source, sink int, weight float64) Edge {
	return Edge{source, sink, map[string]interface{}{WeightField: weight}}
}

// Weight returns the weight field of the edge as a float64.  Edges without a
// numeric weight report zero.
func (e Edge) Weight() float64 {
	switch v := e.Fields[WeightField].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	}
	return 0
}
