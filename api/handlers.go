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
	"errors"
	"fmt"
	"iter"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/genomearch/architecture"
	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/storage"
	"github.com/googlegenomics/genomearch/internal/store"
)

// vector is implemented by every feature storing one row per region.
type vector interface {
	Rows(key any) (iter.Seq[feature.RegionRow], error)
	DataFieldNames() []string
}

// matrix is implemented by every feature storing edges between regions.
type matrix interface {
	Regions(key any) ([]genomics.Region, error)
	DataFrame(rowKey, colKey any, valuesFrom string) (*feature.DataFrame, error)
}

type regionJSON struct {
	Ix         int            `json:"ix"`
	Chromosome string         `json:"chromosome"`
	Start      int            `json:"start"`
	End        int            `json:"end"`
	Strand     string         `json:"strand"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// open opens the store named by the request and the feature it holds.  The
// returned store must be closed by the caller.
func (server *Server) open(c *gin.Context) (*store.File, architecture.Feature, error) {
	bucket, object, err := parseID(c)
	if err != nil {
		return nil, nil, newInvalidInputError("parsing store ID", err)
	}
	if err := server.checkAllowed(bucket); err != nil {
		return nil, nil, newPermissionDeniedError("checking allowed buckets", err)
	}

	client, _, err := server.newStorageClient(c.Request)
	if err != nil {
		return nil, nil, newStorageError("creating client", err)
	}
	f, err := openStore(c.Request.Context(), client.NewObjectHandle(bucket, object))
	if err != nil {
		return nil, nil, err
	}
	f.SetLogger(server.logger)

	feat, err := architecture.Load(f)
	if err != nil {
		f.Close()
		return nil, nil, newFeatureError("loading feature", err)
	}
	return f, feat, nil
}

func openStore(ctx context.Context, h storage.ObjectHandle) (*store.File, error) {
	f, err := storage.OpenStore(ctx, h)
	if err == nil {
		return f, nil
	}
	var aerr *apiError
	if errors.As(newStorageError("opening store", err), &aerr) {
		return nil, aerr
	}
	return nil, newInvalidInputError("opening store", err)
}

func (server *Server) serveRegions(c *gin.Context) {
	f, feat, err := server.open(c)
	if err != nil {
		server.writeError(c, err)
		return
	}
	defer f.Close()

	v, ok := feat.(vector)
	if !ok {
		server.writeError(c, newInvalidInputError("serving regions", fmt.Errorf("%s does not hold region data", feat.NodeName())))
		return
	}
	key, err := parseRegionKey(c.Query("region"))
	if err != nil {
		server.writeError(c, newInvalidInputError("parsing region", err))
		return
	}
	fields := v.DataFieldNames()
	if list := c.Query("fields"); list != "" {
		fields = strings.Split(list, ",")
	}

	rows, err := v.Rows(key)
	if err != nil {
		server.writeError(c, newFeatureError("reading regions", err))
		return
	}
	regions := []regionJSON{}
	for row := range rows {
		region, err := row.Region()
		if err != nil {
			server.writeError(c, err)
			return
		}
		out := regionJSON{
			Ix:         region.Ix,
			Chromosome: region.Chromosome,
			Start:      region.Start,
			End:        region.End,
			Strand:     region.Strand.String(),
			Fields:     make(map[string]any, len(fields)),
		}
		for _, name := range fields {
			value, err := row.Field(name)
			if err != nil {
				server.writeError(c, newFeatureError("reading field", err))
				return
			}
			out.Fields[name] = jsonValue(value)
		}
		regions = append(regions, out)
	}
	c.JSON(http.StatusOK, gin.H{"feature": feat.NodeName(), "regions": regions})
}

func (server *Server) serveTracks(c *gin.Context) {
	f, feat, err := server.open(c)
	if err != nil {
		server.writeError(c, err)
		return
	}
	defer f.Close()

	track, ok := feat.(*architecture.GenomicTrack)
	if !ok {
		server.writeError(c, newInvalidInputError("serving tracks", fmt.Errorf("%s is not a genomic track", feat.NodeName())))
		return
	}
	name := c.Query("track")
	if name == "" {
		server.writeError(c, newInvalidInputError("parsing track", errMissingTrack))
		return
	}
	skipNaN := true
	if s := c.Query("skip_nan"); s != "" {
		if skipNaN, err = strconv.ParseBool(s); err != nil {
			server.writeError(c, newInvalidInputError("parsing skip_nan", err))
			return
		}
	}

	var buf strings.Builder
	if err := track.WriteBedGraph(&buf, name, skipNaN); err != nil {
		server.writeError(c, newFeatureError("writing track", err))
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(buf.String()))
}

func (server *Server) serveMatrix(c *gin.Context) {
	f, feat, err := server.open(c)
	if err != nil {
		server.writeError(c, err)
		return
	}
	defer f.Close()

	m, ok := feat.(matrix)
	if !ok {
		server.writeError(c, newInvalidInputError("serving matrix", fmt.Errorf("%s does not hold a matrix", feat.NodeName())))
		return
	}
	rowKey, err := parseRegionKey(c.Query("rows"))
	if err != nil {
		server.writeError(c, newInvalidInputError("parsing rows", err))
		return
	}
	colKey, err := parseRegionKey(c.Query("cols"))
	if err != nil {
		server.writeError(c, newInvalidInputError("parsing cols", err))
		return
	}

	rows, err := m.Regions(rowKey)
	if err != nil {
		server.writeError(c, newFeatureError("reading rows", err))
		return
	}
	cols, err := m.Regions(colKey)
	if err != nil {
		server.writeError(c, newFeatureError("reading cols", err))
		return
	}
	if cells := len(rows) * len(cols); server.maxMatrixSize > 0 && cells > server.maxMatrixSize {
		server.writeError(c, newInvalidInputError("checking matrix size", fmt.Errorf("%d cells requested, at most %d allowed", cells, server.maxMatrixSize)))
		return
	}

	df, err := m.DataFrame(rowKey, colKey, c.Query("values"))
	if err != nil {
		server.writeError(c, newFeatureError("building matrix", err))
		return
	}
	values := make([][]any, len(df.Rows))
	for i := range values {
		values[i] = make([]any, len(df.Columns))
		for j := range values[i] {
			values[i][j] = jsonValue(df.Values.At(i, j))
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"feature": feat.NodeName(),
		"rows":    df.RowLabels(),
		"columns": df.ColumnLabels(),
		"values":  values,
	})
}

// jsonValue replaces values that cannot be represented in JSON.
func jsonValue(v any) any {
	if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
		return nil
	}
	return v
}
