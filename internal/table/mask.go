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

package table

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
)

// Mask names a reason for hiding rows.
type Mask struct {
	// ID is assigned by the table when the mask is first used.
	ID          int
	Name        string
	Description string
}

// MaskFilter decides which rows remain visible.  Rows for which Valid
// returns false are hidden by the filter's mask.
type MaskFilter interface {
	Valid(Row) (bool, error)
	Mask() Mask
}

// Masks returns the masks known to the table in order of registration.
func (t *Table) Masks() []Mask {
	return append([]Mask(nil), t.masks...)
}

// register returns the position of the mask with the same name as m, adding
// it to the table if necessary.
func (t *Table) register(m Mask) int {
	for i, existing := range t.masks {
		if existing.Name == m.Name {
			return i
		}
	}
	m.ID = len(t.masks) + 1
	t.masks = append(t.masks, m)
	t.maskBits = append(t.maskBits, roaring.New())
	return len(t.masks) - 1
}

// Filter evaluates f against every row, masked or not, and hides the rows
// it rejects.  An error from f aborts the scan; rows hidden before the error
// stay hidden.
func (t *Table) Filter(f MaskFilter, logProgress bool) error {
	return t.scan([]MaskFilter{f}, logProgress)
}

// QueueFilter adds f to the filters run by RunQueuedFilters.
func (t *Table) QueueFilter(f MaskFilter) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.queue = append(t.queue, f)
	return nil
}

// QueuedFilters returns the number of filters waiting to run.
func (t *Table) QueuedFilters() int {
	return len(t.queue)
}

// RunQueuedFilters evaluates every queued filter against every row in a
// single pass.  A row rejected by one filter is still evaluated by the
// others, so each filter records its own rejections.  The queue is cleared
// once the pass completes.
func (t *Table) RunQueuedFilters(logProgress bool) error {
	if len(t.queue) == 0 {
		return nil
	}
	if err := t.scan(t.queue, logProgress); err != nil {
		return err
	}
	t.queue = nil
	return nil
}

// MaskStatistics returns the number of rows hidden by each mask, keyed by
// mask name.
func (t *Table) MaskStatistics() map[string]int {
	stats := make(map[string]int, len(t.masks))
	for i, m := range t.masks {
		stats[m.Name] = int(t.maskBits[i].GetCardinality())
	}
	return stats
}

func (t *Table) scan(filters []MaskFilter, logProgress bool) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if len(filters) == 0 {
		return errors.New("no filters to run")
	}
	bits := make([]*roaring.Bitmap, len(filters))
	names := make([]string, len(filters))
	for i, f := range filters {
		m := t.register(f.Mask())
		bits[i] = t.maskBits[m]
		names[i] = t.masks[m].Name
	}
	defer func() {
		t.hidden, t.visible = nil, nil
	}()

	step := max(t.rows/10, 1)
	for ix := 0; ix < t.rows; ix++ {
		row := Row{t, ix}
		for i, f := range filters {
			valid, err := f.Valid(row)
			if err != nil {
				return fmt.Errorf("filtering row %d with mask %q: %w", ix, names[i], err)
			}
			if !valid {
				bits[i].Add(uint32(ix))
			}
		}
		if logProgress && (ix+1)%step == 0 {
			t.logger.Info("filtering",
				zap.Strings("masks", names),
				zap.Int("done", ix+1),
				zap.Int("total", t.rows))
		}
	}
	return nil
}
