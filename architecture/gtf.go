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
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/store"
)

// DefaultNaNStrings are the GTF values treated as missing.
var DefaultNaNStrings = []string{".", ""}

type gtfRecord struct {
	region genomics.Region
	attrs  map[string]string
	order  []string
}

// FromGTF imports the features of a GTF or GFF stream as a GenomicTrack.
// Every attribute becomes a track, along with the source and feature
// columns.  If storeAttrs is not empty, only the named attributes are kept.
// Values in nanStrings are missing: they become 0 in integer tracks and NaN
// in float tracks.  Tracks that are neither keep their text.
func FromGTF(f *store.File, r io.Reader, storeAttrs, nanStrings []string, opts ...feature.Option) (*GenomicTrack, error) {
	if len(nanStrings) == 0 {
		nanStrings = DefaultNaNStrings
	}
	records, err := readGTF(r)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(records, func(a, b gtfRecord) int {
		return cmp.Or(
			cmp.Compare(a.region.Chromosome, b.region.Chromosome),
			cmp.Compare(a.region.Start, b.region.Start),
		)
	})

	keep := func(name string) bool {
		return len(storeAttrs) == 0 || slices.Contains(storeAttrs, name)
	}
	regions := make([]genomics.Region, len(records))
	columns := make(map[string][]string)
	var names []string
	for i, record := range records {
		regions[i] = record.region
		for _, name := range record.order {
			if _, ok := columns[name]; ok || !keep(name) {
				continue
			}
			columns[name] = slices.Repeat([]string{nanStrings[0]}, i)
			names = append(names, name)
		}
		for _, name := range names {
			value, ok := record.attrs[name]
			if !ok {
				value = nanStrings[0]
			}
			columns[name] = append(columns[name], value)
		}
	}

	data := make(map[string][]any, len(columns))
	for name, values := range columns {
		data[name] = typedValues(values, nanStrings)
	}
	return NewGenomicTrack(f, "", regions, data, opts...)
}

func readGTF(r io.Reader) ([]gtfRecord, error) {
	var records []gtfRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "track") || strings.HasPrefix(text, "browser") {
			continue
		}
		record, err := parseGTFLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading GTF: %w", err)
	}
	return records, nil
}

func parseGTFLine(text string) (gtfRecord, error) {
	fields := strings.Split(text, "\t")
	if len(fields) < 8 {
		return gtfRecord{}, fmt.Errorf("expected at least 8 columns, found %d", len(fields))
	}
	start, err := strconv.Atoi(fields[3])
	if err != nil {
		return gtfRecord{}, fmt.Errorf("parsing start: %w", err)
	}
	end, err := strconv.Atoi(fields[4])
	if err != nil {
		return gtfRecord{}, fmt.Errorf("parsing end: %w", err)
	}
	strand, err := genomics.ParseStrand(fields[6])
	if err != nil {
		return gtfRecord{}, err
	}

	record := gtfRecord{
		region: genomics.Region{Chromosome: fields[0], Start: start, End: end, Strand: strand},
		attrs:  make(map[string]string),
	}
	add := func(name, value string) {
		if _, ok := record.attrs[name]; !ok {
			record.order = append(record.order, name)
		}
		record.attrs[name] = value
	}
	if len(fields) > 8 {
		for _, attr := range strings.Split(fields[8], ";") {
			attr = strings.TrimSpace(attr)
			if attr == "" {
				continue
			}
			// GTF separates names from quoted values with a space, GFF3 uses '='.
			name, value, ok := strings.Cut(attr, "=")
			if !ok {
				name, value, _ = strings.Cut(attr, " ")
			}
			add(strings.TrimSpace(name), strings.Trim(strings.TrimSpace(value), `"`))
		}
	}
	add("source", fields[1])
	add("feature", fields[2])
	return record, nil
}

// typedValues converts values to integers if they all parse as integers,
// else to floats if they all parse as floats, else leaves them as strings.
func typedValues(values, nanStrings []string) []any {
	missing := func(s string) bool { return slices.Contains(nanStrings, s) }

	out := make([]any, len(values))
	ints := true
	for i, s := range values {
		if missing(s) {
			out[i] = int64(0)
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			ints = false
			break
		}
		out[i] = n
	}
	if ints {
		return out
	}

	floats := true
	for i, s := range values {
		if missing(s) {
			out[i] = math.NaN()
			continue
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			floats = false
			break
		}
		out[i] = x
	}
	if floats {
		return out
	}

	for i, s := range values {
		out[i] = s
	}
	return out
}
