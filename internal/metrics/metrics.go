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

// Package metrics defines the prometheus collectors exported by the server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genomearch_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genomearch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// CalculationDuration measures on-demand feature calculations.
	CalculationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genomearch_calculation_duration_seconds",
			Help:    "Duration of on-demand feature calculations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"feature"},
	)

	// CalculationFailures counts calculations that returned an error.
	CalculationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genomearch_calculation_failures_total",
			Help: "Total number of failed feature calculations",
		},
		[]string{"feature"},
	)

	// MaskedRows counts rows hidden by filters, by mask name.
	MaskedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genomearch_masked_rows_total",
			Help: "Total number of rows hidden by filters",
		},
		[]string{"mask"},
	)
)

// ObserveCalculation records the outcome of a calculation of feature that
// started at start.
func ObserveCalculation(feature string, start time.Time, err error) {
	CalculationDuration.WithLabelValues(feature).Observe(time.Since(start).Seconds())
	if err != nil {
		CalculationFailures.WithLabelValues(feature).Inc()
	}
}
