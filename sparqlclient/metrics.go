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

package sparqlclient

import (
	metricsutil "github.com/kasei/kineo-federation/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type clientMetrics struct {
	requests               prometheus.Counter
	requestFailures        prometheus.Counter
	requestDurationSeconds prometheus.Summary
}

var metrics clientMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = clientMetrics{
		requests: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "sparqlclient",
			Name:      "requests",
			Help:      `The number of SPARQL requests sent to remote endpoints.`,
		}),
		requestFailures: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "sparqlclient",
			Name:      "request_failures",
			Help: `The number of SPARQL requests that failed, including those that
returned an HTTP error status or an undecodable response.`,
		}),
		requestDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "sparqlclient",
			Name:      "request_duration_seconds",
			Help:      `The time it takes a remote endpoint to answer a SPARQL request.`,
		}),
	}
}
