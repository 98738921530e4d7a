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
	"errors"
	"testing"

	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLazyVector returns an empty vector whose calculator fills in the test
// regions and counts how often it runs.
func newLazyVector(t *testing.T, fail error) (*VectorFeature, *int) {
	t.Helper()
	calls := 0
	var v *VectorFeature
	v, err := NewVector(store.NewMemory(), WithName("lazy"), WithCalculator(CalculatorFunc(func() error {
		calls++
		if fail != nil {
			return fail
		}
		if err := v.AddRegions(testRegions()); err != nil {
			return err
		}
		return v.AddVector("score", Values([]float64{1, 2, 3}))
	})))
	require.NoError(t, err)
	return v, &calls
}

func TestEnsureCalculated_RunsOnce(t *testing.T) {
	accessors := map[string]func(v *VectorFeature) error{
		"Get": func(v *VectorFeature) error {
			_, err := v.Get(0, "score")
			return err
		},
		"Rows": func(v *VectorFeature) error {
			_, err := v.Rows(All)
			return err
		},
		"Regions": func(v *VectorFeature) error {
			_, err := v.Regions()
			return err
		},
		"Set": func(v *VectorFeature) error {
			return v.Set(0, "score", 4.0)
		},
	}
	for name, access := range accessors {
		t.Run(name, func(t *testing.T) {
			v, calls := newLazyVector(t, nil)
			assert.False(t, v.Calculated())
			assert.Equal(t, 0, *calls)

			require.NoError(t, access(v))
			assert.True(t, v.Calculated())
			assert.Equal(t, 1, *calls)

			for other, access := range accessors {
				require.NoError(t, access(v), other)
			}
			assert.Equal(t, 1, *calls)
			assert.Equal(t, 3, v.Len())
		})
	}
}

func TestEnsureCalculated_NotImplemented(t *testing.T) {
	v, err := NewVector(store.NewMemory())
	require.NoError(t, err)

	_, err = v.Get(0, "ix")
	assert.True(t, errors.Is(err, ErrNotImplemented), "got %v", err)
	assert.False(t, v.Calculated())

	// Adding data directly counts as having calculated.
	require.NoError(t, v.AddRegions([]genomics.Region{{Chromosome: "chr1", Start: 1, End: 10}}))
	require.NoError(t, v.AddVector("score", []any{1.0}))
	assert.True(t, v.Calculated())
	got, err := v.Get(0, "score")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestEnsureCalculated_Failure(t *testing.T) {
	errBoom := errors.New("boom")
	v, calls := newLazyVector(t, errBoom)

	_, err := v.Get(0, "score")
	assert.True(t, errors.Is(err, errBoom), "got %v", err)
	assert.False(t, v.Calculated())

	// A failed calculation is retried on the next access.
	_, err = v.Rows(All)
	assert.True(t, errors.Is(err, errBoom), "got %v", err)
	assert.Equal(t, 2, *calls)
}

func TestEnsureCalculated_PopulatedStore(t *testing.T) {
	f := store.NewMemory()
	_, err := NewVector(f, WithRegions(testRegions()))
	require.NoError(t, err)

	calls := 0
	v, err := NewVector(f, WithCalculator(CalculatorFunc(func() error {
		calls++
		return nil
	})))
	require.NoError(t, err)
	assert.True(t, v.Calculated())
	_, err = v.Get(All, "start")
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}
