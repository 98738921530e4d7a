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
	"time"

	"github.com/googlegenomics/genomearch/internal/metrics"
	"go.uber.org/zap"
)

// Calculator derives the contents of a feature.  Calculate is called at most
// once per successful calculation, the first time a guarded accessor is used
// on a feature that holds no data yet.
type Calculator interface {
	Calculate() error
}

// CalculatorFunc adapts a function into a Calculator.
type CalculatorFunc func() error

// Calculate calls f.
func (f CalculatorFunc) Calculate() error {
	return f()
}

// calculation tracks whether the data of a feature has been derived.  Once
// set, the calculated flag is never cleared.
type calculation struct {
	name       string
	calculated bool
	calculator Calculator
	logger     *zap.Logger
	node       string
}

// NodeName returns the store node that holds the feature's rows.
func (c *calculation) NodeName() string {
	return c.node
}

// Logger returns the logger the feature was opened with.
func (c *calculation) Logger() *zap.Logger {
	return c.logger
}

// Calculated reports whether the feature holds its data, either because it
// was loaded, populated explicitly or calculated.
func (c *calculation) Calculated() bool {
	return c.calculated
}

// EnsureCalculated runs the Calculator unless the feature has already been
// calculated.  The feature is marked as calculated only when the Calculator
// succeeds.  Rows written by a failing Calculator are kept.
func (c *calculation) EnsureCalculated() error {
	if c.calculated {
		return nil
	}
	if c.calculator == nil {
		return fmt.Errorf("%s: %w", c.name, ErrNotImplemented)
	}

	c.logger.Debug("calculating feature", zap.String("feature", c.name))
	start := time.Now()
	err := c.calculator.Calculate()
	metrics.ObserveCalculation(c.name, start, err)
	if err != nil {
		c.logger.Warn("calculation failed", zap.String("feature", c.name), zap.Error(err))
		return fmt.Errorf("calculating %s: %w", c.name, err)
	}
	c.calculated = true
	c.logger.Debug("calculated feature", zap.String("feature", c.name), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (c *calculation) markCalculated() {
	c.calculated = true
}
