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

package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/genomearch/architecture"
	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/storage"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRegions() []genomics.Region {
	return []genomics.Region{
		{Chromosome: "chr1", Start: 1, End: 100},
		{Chromosome: "chr1", Start: 101, End: 200, Strand: genomics.Forward},
		{Chromosome: "chr1", Start: 201, End: 300},
	}
}

// writeStore creates bucket/object below root and populates it with fill.
func writeStore(t *testing.T, root, object string, fill func(f *store.File) error) {
	t.Helper()
	path := filepath.Join(root, "bucket", object)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := store.Open(path, store.Write)
	require.NoError(t, err)
	require.NoError(t, fill(f))
	require.NoError(t, f.Close())
}

func testRoot(t *testing.T) string {
	root := t.TempDir()
	writeStore(t, root, "vector.gas", func(f *store.File) error {
		v, err := feature.NewVector(f, feature.WithRegions(testRegions()))
		if err != nil {
			return err
		}
		return v.AddVector("score", []any{1.5, math.NaN(), 3.0})
	})
	writeStore(t, root, "nested/track.gas", func(f *store.File) error {
		_, err := architecture.NewGenomicTrack(f, "test", testRegions(), map[string][]any{
			"score": {1.0, 2.0, math.NaN()},
		})
		return err
	})
	writeStore(t, root, "matrix.gas", func(f *store.File) error {
		_, err := feature.NewMatrix(f, feature.WithRegions(testRegions()), feature.WithEdges([]genomics.Edge{
			genomics.NewEdge(0, 1, 1),
			genomics.NewEdge(0, 2, 2),
			genomics.NewEdge(1, 2, 3),
		}))
		return err
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "bucket", "junk.gas"), []byte("not a store"), 0644))
	return root
}

func setupRouter(t *testing.T, configure func(*Server)) *gin.Engine {
	server := NewServer(storage.NewLocalClient(testRoot(t)).NewClientFunc(), 100, nil)
	if configure != nil {
		configure(server)
	}
	router := gin.New()
	server.Export(router)
	return router
}

func get(router http.Handler, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", url, nil)
	router.ServeHTTP(w, req)
	return w
}

func expectError(t *testing.T, name string, code int, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, code, w.Code)
	body := make(map[string]any)
	if assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String()) {
		assert.Equal(t, name, body["error"])
	}
}

func TestInvalidInputs(t *testing.T) {
	router := setupRouter(t, nil)
	testCases := []struct{ name, url string }{
		{"no object", "/regions/bucket/"},
		{"invalid region", "/regions/bucket/vector.gas?region=chr1:x-10"},
		{"unknown field", "/regions/bucket/vector.gas?fields=score,missing"},
		{"not a store", "/regions/bucket/junk.gas"},
		{"regions of a matrix", "/regions/bucket/matrix.gas"},
		{"track of a vector", "/tracks/bucket/vector.gas?track=score"},
		{"missing track", "/tracks/bucket/nested/track.gas"},
		{"unknown track", "/tracks/bucket/nested/track.gas?track=missing"},
		{"invalid skip_nan", "/tracks/bucket/nested/track.gas?track=score&skip_nan=maybe"},
		{"matrix of a vector", "/matrix/bucket/vector.gas"},
		{"invalid values field", "/matrix/bucket/matrix.gas?values=missing"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, "InvalidInput", http.StatusBadRequest, get(router, tc.url))
		})
	}
}

func TestMissingObject(t *testing.T) {
	router := setupRouter(t, nil)
	expectError(t, "NotFound", http.StatusNotFound, get(router, "/regions/bucket/missing.gas"))
	expectError(t, "NotFound", http.StatusNotFound, get(router, "/regions/bucket/../../etc/passwd"))
}

func TestAllowBuckets(t *testing.T) {
	router := setupRouter(t, func(s *Server) { s.AllowBuckets([]string{"other"}) })
	expectError(t, "PermissionDenied", http.StatusForbidden, get(router, "/regions/bucket/vector.gas"))

	router = setupRouter(t, func(s *Server) { s.AllowBuckets([]string{"bucket"}) })
	assert.Equal(t, http.StatusOK, get(router, "/regions/bucket/vector.gas").Code)
}

func TestRegions(t *testing.T) {
	router := setupRouter(t, nil)

	w := get(router, "/regions/bucket/vector.gas?region=chr1:150-250")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	type response struct {
		Feature string       `json:"feature"`
		Regions []regionJSON `json:"regions"`
	}
	var body response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, feature.DefaultRegionTable, body.Feature)
	assert.Equal(t, []regionJSON{
		{Ix: 1, Chromosome: "chr1", Start: 101, End: 200, Strand: "+", Fields: map[string]any{"score": nil}},
		{Ix: 2, Chromosome: "chr1", Start: 201, End: 300, Strand: ".", Fields: map[string]any{"score": 3.0}},
	}, body.Regions)

	w = get(router, "/regions/bucket/vector.gas?fields=chromosome")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = response{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Regions, 3)
	assert.Equal(t, map[string]any{"chromosome": "chr1"}, body.Regions[0].Fields)

	w = get(router, "/regions/bucket/vector.gas?region=chr2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"feature": "region_data", "regions": []}`, w.Body.String())
}

func TestTracks(t *testing.T) {
	router := setupRouter(t, nil)

	w := get(router, "/tracks/bucket/nested/track.gas?track=score")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "chr1\t0\t100\t1\nchr1\t100\t200\t2\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = get(router, "/tracks/bucket/nested/track.gas?track=score&skip_nan=false")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "chr1\t0\t100\t1\nchr1\t100\t200\t2\nchr1\t200\t300\tNaN\n", w.Body.String())
}

func TestMatrix(t *testing.T) {
	router := setupRouter(t, nil)

	w := get(router, "/matrix/bucket/matrix.gas")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"feature": "edges",
		"rows": ["chr1:1-100", "chr1:101-200:+", "chr1:201-300"],
		"columns": ["chr1:1-100", "chr1:101-200:+", "chr1:201-300"],
		"values": [[0, 1, 2], [1, 0, 3], [2, 3, 0]]
	}`, w.Body.String())

	w = get(router, "/matrix/bucket/matrix.gas?rows=chr1:1-100&cols=chr1:150-300&values=weight")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"feature": "edges",
		"rows": ["chr1:1-100"],
		"columns": ["chr1:101-200:+", "chr1:201-300"],
		"values": [[1, 2]]
	}`, w.Body.String())

	server := NewServer(storage.NewLocalClient(testRoot(t)).NewClientFunc(), 4, nil)
	expectError(t, "InvalidInput", http.StatusBadRequest, get(server.Handler(), "/matrix/bucket/matrix.gas"))
}

func TestRequestID(t *testing.T) {
	router := setupRouter(t, nil)

	w := get(router, "/regions/bucket/vector.gas")
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	req, _ := http.NewRequest("GET", "/regions/bucket/vector.gas", nil)
	req.Header.Set(requestIDHeader, "abc")
	req.Header.Set("Origin", "https://example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(requestIDHeader))
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	router := setupRouter(t, nil)
	require.Equal(t, http.StatusOK, get(router, "/regions/bucket/vector.gas").Code)

	w := get(router, metricsPath)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "genomearch_http_requests_total")
	assert.Contains(t, w.Body.String(), `route="/regions/:bucket/*object"`)
}

// This test ensures that the undocumented error handling behaviour of the GCS
// storage client does not change.
func TestGoogleAPIErrors(t *testing.T) {
	testCases := []struct {
		name       string
		transport  http.RoundTripper
		statusCode int
	}{
		{"unauthorized", fixedStatus(http.StatusUnauthorized), http.StatusUnauthorized},
		{"forbidden", fixedStatus(http.StatusForbidden), http.StatusForbidden},
		{"not found", fixedStatus(http.StatusNotFound), http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := gcs.NewClient(context.Background(), option.WithHTTPClient(&http.Client{Transport: tc.transport}))
			require.NoError(t, err)
			newStorageClient := func(*http.Request) (storage.Client, http.Header, error) {
				return storage.GCSClient{Client: client}, nil, nil
			}
			w := get(NewServer(newStorageClient, 0, nil).Handler(), "/regions/bucket/object.gas")
			assert.Equal(t, tc.statusCode, w.Code)
		})
	}
}

func TestBearerTokenRequired(t *testing.T) {
	w := get(NewServer(storage.NewClientFromBearerToken, 0, nil).Handler(), "/regions/bucket/object.gas")
	expectError(t, "InvalidAuthentication", http.StatusUnauthorized, w)
}

type fixedStatus int

func (code fixedStatus) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		Status:     http.StatusText(int(code)),
		StatusCode: int(code),
		Body:       http.NoBody,
		Header:     make(http.Header),
	}, nil
}
