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
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/googlegenomics/genomearch/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testRegions() []genomics.Region {
	return []genomics.Region{
		{Chromosome: "chr1", Start: 1, End: 100},
		{Chromosome: "chr1", Start: 101, End: 200},
		{Chromosome: "chr1", Start: 201, End: 300},
	}
}

func testMatrix(t *testing.T, regions []genomics.Region, edges ...genomics.Edge) *feature.MatrixFeature {
	t.Helper()
	m, err := feature.NewMatrix(store.NewMemory(), feature.WithRegions(regions), feature.WithEdges(edges))
	require.NoError(t, err)
	return m
}

const testGTF = `##gff-version 2
chr1	ensembl	gene	11	20	.	+	.	gene_id "G1"; score "5"; level "2";
chr1	ensembl	exon	1	10	.	-	.	gene_id "G2"; ratio "0.5";
`

func TestBasicRegionTable(t *testing.T) {
	f := store.NewMemory()
	rt, err := NewBasicRegionTable(f, testRegions(), map[string]table.Type{
		"score": table.Float64,
		"name":  table.String,
		"count": table.Int64,
	}, map[string][]any{"name": {strings.Repeat("x", 120), "b", "c"}})
	require.NoError(t, err)

	assert.Equal(t, RegionTableNode, rt.NodeName())
	assert.Equal(t, []string{"count", "name", "score"}, rt.DataFieldNames())
	got, err := rt.Get(0, "name")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 100), got)

	require.NoError(t, rt.Set(feature.All, "count", []int{1, 2, 3}))
	got, err = rt.Get(feature.All, "count")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, got)
	assert.True(t, rt.Calculated())

	class, err := Detect(f)
	require.NoError(t, err)
	assert.Equal(t, BasicRegionTableClass, class)
}

func TestGenomicTrack(t *testing.T) {
	f := store.NewMemory()
	track, err := NewGenomicTrack(f, "insulation", testRegions(), map[string][]any{
		"score": {1.5, math.NaN(), 3.0},
		"count": {nil, 2, 3},
		"label": {"a", "b", "c"},
	})
	require.NoError(t, err)

	title, ok := track.Title()
	assert.True(t, ok)
	assert.Equal(t, "insulation", title)
	assert.Equal(t, TracksNode, track.NodeName())
	assert.Equal(t, []string{"count", "label", "score"}, track.Tracks())

	count, err := track.Track("count")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(2), int64(3)}, count)
	_, err = track.Track("start")
	assert.True(t, errors.Is(err, table.ErrNoSuchField), "got %v", err)

	all, err := track.AllTracks()
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, []any{"a", "b", "c"}, all["label"])

	testCases := []struct {
		track   string
		skipNaN bool
		want    string
	}{
		{"score", true, "chr1\t0\t100\t1.5\nchr1\t200\t300\t3\n"},
		{"score", false, "chr1\t0\t100\t1.5\nchr1\t100\t200\tNaN\nchr1\t200\t300\t3\n"},
		{"count", true, "chr1\t0\t100\t0\nchr1\t100\t200\t2\nchr1\t200\t300\t3\n"},
	}
	for _, tc := range testCases {
		var buf bytes.Buffer
		require.NoError(t, track.WriteBedGraph(&buf, tc.track, tc.skipNaN))
		assert.Equal(t, tc.want, buf.String(), "track %s, skipNaN %v", tc.track, tc.skipNaN)
	}
	err = track.WriteBedGraph(&bytes.Buffer{}, "label", true)
	assert.True(t, errors.Is(err, table.ErrTypeMismatch), "got %v", err)

	prefix := filepath.Join(t.TempDir(), "out_")
	require.NoError(t, track.ToBedGraph(prefix, []string{"score"}, true))
	data, err := os.ReadFile(prefix + "score.bedgraph")
	require.NoError(t, err)
	assert.Equal(t, testCases[0].want, string(data))
	_, err = os.Stat(prefix + "count.bedgraph")
	assert.True(t, os.IsNotExist(err))

	prefix = filepath.Join(t.TempDir(), "both_")
	require.NoError(t, track.ToBedGraph(prefix, []string{"score", "count"}, false))
	for _, tc := range testCases[1:] {
		data, err := os.ReadFile(prefix + tc.track + ".bedgraph")
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(data))
	}
	assert.Error(t, track.ToBedGraph(prefix, nil, true), "label is not numeric")
}

func TestFromGTF(t *testing.T) {
	track, err := FromGTF(store.NewMemory(), strings.NewReader(testGTF), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"feature", "gene_id", "level", "ratio", "score", "source"}, track.Tracks())
	regions, err := track.Regions()
	require.NoError(t, err)
	var descriptors []string
	for region := range regions {
		descriptors = append(descriptors, region.String())
	}
	assert.Equal(t, []string{"chr1:1-10:-", "chr1:11-20:+"}, descriptors)

	all, err := track.AllTracks()
	require.NoError(t, err)
	assert.Equal(t, []any{"exon", "gene"}, all["feature"])
	assert.Equal(t, []any{"G2", "G1"}, all["gene_id"])
	assert.Equal(t, []any{int64(0), int64(5)}, all["score"])
	assert.Equal(t, []any{"ensembl", "ensembl"}, all["source"])
	require.Len(t, all["ratio"], 2)
	assert.Equal(t, 0.5, all["ratio"][0])
	assert.True(t, math.IsNaN(all["ratio"][1].(float64)))

	track, err = FromGTF(store.NewMemory(), strings.NewReader(testGTF), []string{"score"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"score"}, track.Tracks())

	_, err = FromGTF(store.NewMemory(), strings.NewReader("chr1\tsrc\tgene\tx\t10\t.\t+\t.\n"), nil, nil)
	assert.Error(t, err)
}

func TestCoverage(t *testing.T) {
	m := testMatrix(t, testRegions(),
		genomics.NewEdge(0, 1, 1),
		genomics.NewEdge(0, 2, 2),
		genomics.NewEdge(1, 2, 3),
		genomics.NewEdge(1, 1, 4))

	testCases := []struct {
		name   string
		filter bool
		want   []any
	}{
		{"all edges", false, []any{3.0, 8.0, 5.0}},
		{"masked edges", true, []any{2.0, 7.0, 5.0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.filter {
				require.NoError(t, m.Filter(feature.NewMatrixFilter(feature.MinWeight(2), table.Mask{}), false, false))
			}
			c, err := NewCoverage(store.NewMemory(), m)
			require.NoError(t, err)
			assert.False(t, c.Calculated())

			got, err := c.Get(feature.All, CoverageField)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, c.Calculated())
			assert.Equal(t, 3, c.Len())
		})
	}

	c, err := NewCoverage(store.NewMemory(), nil)
	require.NoError(t, err)
	_, err = c.Get(0, CoverageField)
	assert.True(t, errors.Is(err, errNoSource), "got %v", err)
	assert.False(t, c.Calculated())
}

func TestFoldChange(t *testing.T) {
	numerator := testMatrix(t, testRegions(), genomics.NewEdge(0, 1, 4), genomics.NewEdge(0, 2, 2))
	denominator := testMatrix(t, testRegions(), genomics.NewEdge(1, 0, 2), genomics.NewEdge(1, 2, 1))

	f := store.NewMemory()
	fc, err := NewFoldChange(f, numerator, denominator)
	require.NoError(t, err)
	assert.Equal(t, FoldChangeNode, fc.NodeName())
	assert.False(t, fc.Calculated())

	e, err := fc.Edge(0)
	require.NoError(t, err)
	assert.Equal(t, genomics.NewEdge(0, 1, 2), e)
	assert.Equal(t, 1, fc.Len())
	assert.Equal(t, 3, fc.NumRegions())

	class, err := Detect(f)
	require.NoError(t, err)
	assert.Equal(t, FoldChangeClass, class)

	short := testMatrix(t, testRegions()[:2], genomics.NewEdge(0, 1, 1))
	fc, err = NewFoldChange(store.NewMemory(), numerator, short)
	require.NoError(t, err)
	_, err = fc.Edges()
	assert.True(t, errors.Is(err, feature.ErrSizeMismatch), "got %v", err)
}

func TestDetect(t *testing.T) {
	vector := store.NewMemory()
	_, err := feature.NewVector(vector, feature.WithRegions(testRegions()))
	require.NoError(t, err)

	matrix := store.NewMemory()
	addMatrix := func(f *store.File) {
		_, err := feature.NewMatrix(f, feature.WithRegions(testRegions()), feature.WithEdges([]genomics.Edge{genomics.NewEdge(0, 1, 1)}))
		require.NoError(t, err)
	}
	addMatrix(matrix)

	unknown := store.NewMemory()
	require.NoError(t, unknown.SetAttr(ClassIDAttr, "InsulationIndex"))

	testCases := []struct {
		name string
		f    *store.File
		want string
		err  error
	}{
		{"vector", vector, VectorClass, nil},
		{"matrix", matrix, MatrixClass, nil},
		{"empty", store.NewMemory(), "", ErrUnknownFeature},
		{"unknown classid", unknown, "", ErrUnknownFeature},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Detect(tc.f)
			assert.True(t, errors.Is(err, tc.err), "got error %v, want %v", err, tc.err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.gas")
	f, err := store.Open(path, store.Write)
	require.NoError(t, err)
	track, err := FromGTF(f, strings.NewReader(testGTF), []string{"score"}, nil)
	require.NoError(t, err)
	require.NoError(t, track.SetTitle("genes"))
	require.NoError(t, track.Close())
	require.NoError(t, f.Close())

	f, err = store.Open(path, store.ReadOnly)
	require.NoError(t, err)
	defer f.Close()
	loaded, err := Load(f)
	require.NoError(t, err)
	require.IsType(t, &GenomicTrack{}, loaded)

	got := loaded.(*GenomicTrack)
	assert.True(t, got.Calculated())
	title, _ := got.Title()
	assert.Equal(t, "genes", title)
	score, err := got.Track("score")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0), int64(5)}, score)

	_, err = Load(store.NewMemory())
	assert.True(t, errors.Is(err, ErrUnknownFeature), "got %v", err)
}

func TestGenomicTrack_MatrixTracks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tads.gas")
	f, err := store.Open(path, store.Write)
	require.NoError(t, err)
	track, err := NewGenomicTrack(f, "", testRegions(), map[string][]any{
		"score": {1.0, 2.0, 3.0},
	})
	require.NoError(t, err)

	di := mat.NewDense(3, 2, []float64{1, 2, 3, 4, math.NaN(), 6})
	require.NoError(t, track.SetMatrixTrack("directionality", di))
	require.NoError(t, track.SetMatrixTrack("insulation", mat.NewDense(3, 1, []float64{0, 1, 0})))
	require.NoError(t, track.SetMatrixTrack("insulation", mat.NewDense(3, 1, []float64{7, 8, 9})))

	err = track.SetMatrixTrack("short", mat.NewDense(2, 2, nil))
	assert.True(t, errors.Is(err, feature.ErrSizeMismatch), "got %v", err)
	err = track.SetMatrixTrack("score", mat.NewDense(3, 1, nil))
	assert.True(t, errors.Is(err, table.ErrTypeMismatch), "got %v", err)
	assert.Error(t, track.SetMatrixTrack("a/b", mat.NewDense(3, 1, nil)))
	require.NoError(t, track.Close())
	require.NoError(t, f.Close())

	f, err = store.Open(path, store.ReadOnly)
	require.NoError(t, err)
	defer f.Close()
	loaded, err := Load(f)
	require.NoError(t, err)
	require.IsType(t, &GenomicTrack{}, loaded)
	got := loaded.(*GenomicTrack)

	assert.Equal(t, []string{"score"}, got.Tracks())
	assert.Equal(t, []string{"directionality", "insulation"}, got.MatrixTracks())

	m, err := got.MatrixTrack("directionality")
	require.NoError(t, err)
	rows, cols := m.Dims()
	assert.Equal(t, [2]int{3, 2}, [2]int{rows, cols})
	assert.Equal(t, []float64{1, 2}, m.RawRowView(0))
	assert.True(t, math.IsNaN(m.At(2, 0)))
	assert.Equal(t, 6.0, m.At(2, 1))

	data, err := got.Data("insulation")
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(3, 1, []float64{7, 8, 9}), data.(*mat.Dense)))
	data, err = got.Data("score")
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, data)

	_, err = got.MatrixTrack("missing")
	assert.True(t, errors.Is(err, table.ErrNoSuchField), "got %v", err)
	_, err = got.Data("missing")
	assert.True(t, errors.Is(err, table.ErrNoSuchField), "got %v", err)
	assert.True(t, errors.Is(got.SetMatrixTrack("late", mat.NewDense(3, 1, nil)), store.ErrReadOnly))
}
