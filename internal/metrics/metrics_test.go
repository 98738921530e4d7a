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

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCalculation(t *testing.T) {
	before := testutil.ToFloat64(CalculationFailures.WithLabelValues("test"))
	ObserveCalculation("test", time.Now(), nil)
	ObserveCalculation("test", time.Now(), errors.New("failed"))
	if got, want := testutil.ToFloat64(CalculationFailures.WithLabelValues("test"))-before, 1.0; got != want {
		t.Errorf("failures: got %v, want %v", got, want)
	}
	if got := testutil.CollectAndCount(CalculationDuration); got < 1 {
		t.Errorf("CollectAndCount(CalculationDuration): got %d, want at least 1", got)
	}
}
