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

package sparqlendpoint

import (
	metricsutil "github.com/kasei/kineo-federation/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type endpointMetrics struct {
	requests               *prometheus.CounterVec
	requestDurationSeconds prometheus.Summary
}

var metrics endpointMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = endpointMetrics{
		requests: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "sparqlendpoint",
			Name:      "requests",
			Help:      `The number of SPARQL protocol requests answered, by HTTP status.`,
		}, "status"),
		requestDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "sparqlendpoint",
			Name:      "request_duration_seconds",
			Help:      `The time it takes to answer a SPARQL protocol request.`,
		}),
	}
}
