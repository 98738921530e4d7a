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

package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/googlegenomics/genomearch/architecture"
	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/store"
	"github.com/googlegenomics/genomearch/internal/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type loggerFunc func() (*zap.Logger, error)

// matrix is implemented by every feature storing edges between regions.
type matrix interface {
	architecture.Feature
	NumRegions() int
	Len() int
	Filter(f *feature.MatrixFilter, queue, logProgress bool) error
	RunQueuedFilters(logProgress bool) error
	MaskStatistics() map[string]int
}

// vector is implemented by every feature storing one row per region.
type vector interface {
	architecture.Feature
	Len() int
	DataFieldNames() []string
}

func openFeature(path string, mode store.Mode, newLogger loggerFunc) (*store.File, architecture.Feature, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	f, err := store.Open(path, mode)
	if err != nil {
		return nil, nil, err
	}
	f.SetLogger(logger)
	feat, err := architecture.Load(f, feature.WithLogger(logger))
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, feat, nil
}

func newInfoCommand(newLogger loggerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Describe the feature held in a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, feat, err := openFeature(args[0], store.ReadOnly, newLogger)
			if err != nil {
				return err
			}
			defer f.Close()
			return describe(cmd.OutOrStdout(), f, feat)
		},
	}
}

func describe(w io.Writer, f *store.File, feat architecture.Feature) error {
	class, err := architecture.Detect(f)
	if err != nil {
		return err
	}
	id, _ := f.Attr("uuid")
	fmt.Fprintf(w, "class:\t%s\nnode:\t%s\nuuid:\t%s\n", class, feat.NodeName(), id)
	if title, ok := f.Attr(architecture.TitleAttr); ok {
		fmt.Fprintf(w, "title:\t%s\n", title)
	}
	fmt.Fprintf(w, "nodes:\t%s\n", strings.Join(f.Nodes(), ", "))
	if !feat.Calculated() {
		fmt.Fprintln(w, "calculated:\tno")
		return nil
	}

	switch x := feat.(type) {
	case matrix:
		fmt.Fprintf(w, "regions:\t%d\nedges:\t%d\n", x.NumRegions(), x.Len())
		stats := x.MaskStatistics()
		names := make([]string, 0, len(stats))
		for name := range stats {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "masked by %s:\t%d\n", name, stats[name])
		}
	case vector:
		fmt.Fprintf(w, "regions:\t%d\nfields:\t%s\n", x.Len(), strings.Join(x.DataFieldNames(), ", "))
	}
	if track, ok := feat.(*architecture.GenomicTrack); ok {
		if names := track.MatrixTracks(); len(names) > 0 {
			fmt.Fprintf(w, "matrix tracks:\t%s\n", strings.Join(names, ", "))
		}
	}
	return nil
}

func newExportCommand(newLogger loggerFunc) *cobra.Command {
	var (
		tracks  []string
		keepNaN bool
	)
	cmd := &cobra.Command{
		Use:   "export-bedgraph <file> <prefix>",
		Short: "Write the tracks of a genomic track store as bedGraph files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, feat, err := openFeature(args[0], store.ReadOnly, newLogger)
			if err != nil {
				return err
			}
			defer f.Close()
			track, ok := feat.(*architecture.GenomicTrack)
			if !ok {
				return fmt.Errorf("%s does not hold a genomic track", args[0])
			}
			return track.ToBedGraph(args[1], tracks, !keepNaN)
		},
	}
	cmd.Flags().StringSliceVar(&tracks, "track", nil, "tracks to export (default all)")
	cmd.Flags().BoolVar(&keepNaN, "keep_nan", false, "write regions without a value")
	return cmd
}

func newImportCommand(newLogger loggerFunc) *cobra.Command {
	var (
		attrs []string
		title string
	)
	cmd := &cobra.Command{
		Use:   "import-gtf <gtf> <file>",
		Short: "Create a genomic track store from a GTF or GFF file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			f, err := store.Open(args[1], store.Write)
			if err != nil {
				return err
			}
			f.SetLogger(logger)
			track, err := architecture.FromGTF(f, in, attrs, nil, feature.WithLogger(logger))
			if err != nil {
				f.Close()
				return err
			}
			if title != "" {
				if err := track.SetTitle(title); err != nil {
					return err
				}
			}
			if err := track.Close(); err != nil {
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringSliceVar(&attrs, "attr", nil, "attributes to store (default all)")
	cmd.Flags().StringVar(&title, "title", "", "title of the track set")
	return cmd
}

func newFilterCommand(newLogger loggerFunc) *cobra.Command {
	var mask string
	cmd := &cobra.Command{
		Use:   "filter-weight <file> <min>",
		Short: "Mask the edges of a matrix store with a weight below min",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("parsing min: %w", err)
			}
			f, feat, err := openFeature(args[0], store.Append, newLogger)
			if err != nil {
				return err
			}
			m, ok := feat.(matrix)
			if !ok {
				f.Close()
				return fmt.Errorf("%s does not hold a matrix", args[0])
			}
			if err := filterWeight(m, threshold, mask); err != nil {
				f.Close()
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d edges remain\n", m.Len())
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&mask, "mask", "low_weight", "name of the mask recording filtered edges")
	return cmd
}

func filterWeight(m matrix, threshold float64, mask string) error {
	filter := feature.NewMatrixFilter(feature.MinWeight(threshold), table.Mask{
		Name:        mask,
		Description: fmt.Sprintf("weight below %g", threshold),
	})
	if err := m.Filter(filter, true, true); err != nil {
		return err
	}
	if err := m.RunQueuedFilters(true); err != nil {
		return err
	}
	return m.Flush()
}
