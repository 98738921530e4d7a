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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/googlegenomics/genomearch/internal/table"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// TracksNode is the node holding a GenomicTrack.
	TracksNode = "tracks"
	// TitleAttr is the file attribute holding the title of a GenomicTrack.
	TitleAttr = "title"

	maxConcurrentWrites = 8
)

// GenomicTrack is a set of named per-region data tracks.
type GenomicTrack struct {
	*BasicRegionTable
}

// NewGenomicTrack stores one track per entry of data.  The type of each
// track is taken from its first non-nil value.  An empty title is not stored.
func NewGenomicTrack(f *store.File, title string, regions []genomics.Region, data map[string][]any, opts ...feature.Option) (*GenomicTrack, error) {
	fields := make(map[string]table.Type, len(data))
	for name, values := range data {
		typ, err := trackType(values)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", name, err)
		}
		fields[name] = typ
	}
	opts = append([]feature.Option{feature.WithTableName(TracksNode)}, opts...)
	opts = append(opts, dataOptions(fields, regions, data)...)
	t, err := newBasicRegionTable(f, GenomicTrackClass, opts)
	if err != nil {
		return nil, err
	}
	track := &GenomicTrack{t}
	if title != "" {
		if err := track.SetTitle(title); err != nil {
			return nil, err
		}
	}
	return track, nil
}

// OpenGenomicTrack opens an existing GenomicTrack.
func OpenGenomicTrack(f *store.File, opts ...feature.Option) (*GenomicTrack, error) {
	if !f.HasNode(TracksNode) {
		return nil, fmt.Errorf("opening genomic track: %w: %q", store.ErrNoSuchNode, TracksNode)
	}
	opts = append([]feature.Option{feature.WithTableName(TracksNode)}, opts...)
	t, err := newBasicRegionTable(f, GenomicTrackClass, opts)
	if err != nil {
		return nil, err
	}
	return &GenomicTrack{t}, nil
}

func trackType(values []any) (table.Type, error) {
	for _, v := range values {
		switch v.(type) {
		case nil:
			continue
		case string, []byte:
			return table.String, nil
		case bool:
			return table.Bool, nil
		case float32, float64:
			return table.Float64, nil
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return table.Int64, nil
		}
		return 0, fmt.Errorf("%w: unsupported value %T", table.ErrTypeMismatch, v)
	}
	return table.Float64, nil
}

// Title returns the title of the track set, if it has one.
func (g *GenomicTrack) Title() (string, bool) {
	return g.File().Attr(TitleAttr)
}

// SetTitle replaces the title of the track set.
func (g *GenomicTrack) SetTitle(title string) error {
	return g.File().SetAttr(TitleAttr, title)
}

// Tracks returns the track names in storage order.
func (g *GenomicTrack) Tracks() []string {
	return g.DataFieldNames()
}

// Track returns the values of the named track in region order.
func (g *GenomicTrack) Track(name string) ([]any, error) {
	if !slices.Contains(g.Tracks(), name) {
		return nil, fmt.Errorf("%w: track %q", table.ErrNoSuchField, name)
	}
	values, err := g.Get(feature.All, name)
	if err != nil {
		return nil, err
	}
	return values.([]any), nil
}

// AllTracks returns the values of every track keyed by track name.
func (g *GenomicTrack) AllTracks() (map[string][]any, error) {
	tracks := make(map[string][]any)
	for _, name := range g.Tracks() {
		values, err := g.Track(name)
		if err != nil {
			return nil, err
		}
		tracks[name] = values
	}
	return tracks, nil
}

// WriteBedGraph writes a numeric track in bedGraph format.  Start
// coordinates are converted to the 0-based format bedGraph expects.  With
// skipNaN, regions without a value are left out.
func (g *GenomicTrack) WriteBedGraph(w io.Writer, track string, skipNaN bool) error {
	regions, err := g.regionList()
	if err != nil {
		return err
	}
	values, err := g.Track(track)
	if err != nil {
		return err
	}
	if err := writeBedGraph(w, regions, values, skipNaN); err != nil {
		return fmt.Errorf("track %q: %w", track, err)
	}
	return nil
}

func (g *GenomicTrack) regionList() ([]genomics.Region, error) {
	regions, err := g.Regions()
	if err != nil {
		return nil, err
	}
	return slices.Collect(regions), nil
}

func writeBedGraph(w io.Writer, regions []genomics.Region, values []any, skipNaN bool) error {
	bw := bufio.NewWriter(w)
	for i, region := range regions {
		value, err := formatBedGraphValue(values[i])
		if err != nil {
			return err
		}
		if skipNaN && value == "NaN" {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\t%s\n", region.Chromosome, region.Start-1, region.End, value); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatBedGraphValue(v any) (string, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return "NaN", nil
		}
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("%w: %T is not numeric", table.ErrTypeMismatch, v)
}

// ToBedGraph writes each of the named tracks, or all tracks if none are
// named, to a file called <prefix><track>.bedgraph.
func (g *GenomicTrack) ToBedGraph(prefix string, tracks []string, skipNaN bool) error {
	if len(tracks) == 0 {
		tracks = g.Tracks()
	}
	regions, err := g.regionList()
	if err != nil {
		return err
	}
	values := make([][]any, len(tracks))
	for i, track := range tracks {
		if values[i], err = g.Track(track); err != nil {
			return err
		}
	}

	var group errgroup.Group
	group.SetLimit(maxConcurrentWrites)
	for i, track := range tracks {
		path := prefix + track + ".bedgraph"
		group.Go(func() error {
			g.Logger().Info("writing track", zap.String("track", track), zap.String("path", path))
			return writeFile(path, func(w io.Writer) error {
				return writeBedGraph(w, regions, values[i], skipNaN)
			})
		})
	}
	return group.Wait()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
