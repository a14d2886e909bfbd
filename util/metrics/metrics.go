// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics aids in defining Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the Prometheus namespace shared by all kineo-federation metrics.
const Namespace = "kineo"

// DefaultObjectives are the summary quantiles used throughout the module.
var DefaultObjectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001}

// Registry creates metrics and registers them with R.
type Registry struct {
	R prometheus.Registerer
}

// NewCounter returns a new registered Counter.
func (mr Registry) NewCounter(c prometheus.CounterOpts) prometheus.Counter {
	pm := prometheus.NewCounter(c)
	mr.R.MustRegister(pm)
	return pm
}

// NewCounterVec returns a new registered CounterVec partitioned by labels.
func (mr Registry) NewCounterVec(c prometheus.CounterOpts, labels ...string) *prometheus.CounterVec {
	pm := prometheus.NewCounterVec(c, labels)
	mr.R.MustRegister(pm)
	return pm
}

// NewGauge returns a new registered Gauge.
func (mr Registry) NewGauge(g prometheus.GaugeOpts) prometheus.Gauge {
	pm := prometheus.NewGauge(g)
	mr.R.MustRegister(pm)
	return pm
}

// NewSummary returns a new registered Summary. If s.Objectives is nil,
// DefaultObjectives is used.
func (mr Registry) NewSummary(s prometheus.SummaryOpts) prometheus.Summary {
	if s.Objectives == nil {
		s.Objectives = DefaultObjectives
	}
	pm := prometheus.NewSummary(s)
	mr.R.MustRegister(pm)
	return pm
}

// NewHistogram returns a new registered Histogram.
func (mr Registry) NewHistogram(h prometheus.HistogramOpts) prometheus.Histogram {
	pm := prometheus.NewHistogram(h)
	mr.R.MustRegister(pm)
	return pm
}

// NewHistogramVec returns a new registered HistogramVec partitioned by labels.
func (mr Registry) NewHistogramVec(h prometheus.HistogramOpts, labels ...string) *prometheus.HistogramVec {
	pm := prometheus.NewHistogramVec(h, labels)
	mr.R.MustRegister(pm)
	return pm
}

// NewSummaryVec returns a new registered SummaryVec partitioned by labels. If
// s.Objectives is nil, DefaultObjectives is used.
func (mr Registry) NewSummaryVec(s prometheus.SummaryOpts, labels ...string) *prometheus.SummaryVec {
	if s.Objectives == nil {
		s.Objectives = DefaultObjectives
	}
	pm := prometheus.NewSummaryVec(s, labels)
	mr.R.MustRegister(pm)
	return pm
}
