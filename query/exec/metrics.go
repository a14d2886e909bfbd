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

package exec

import (
	metricsutil "github.com/kasei/kineo-federation/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type execMetrics struct {
	executeDurationSeconds prometheus.Summary
	operatorRows           *prometheus.CounterVec
	serviceDurationSeconds prometheus.Summary
	serviceErrors          *prometheus.CounterVec
	silencedServiceErrors  prometheus.Counter
	serviceCacheHits       prometheus.Counter
}

var metrics execMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = execMetrics{
		executeDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "exec",
			Name:      "execute_duration_seconds",
			Help:      `The time it takes to evaluate a plan.`,
		}),
		operatorRows: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "exec",
			Name:      "operator_rows",
			Help:      `The number of rows produced by each type of operator.`,
		}, "operator"),
		serviceDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "exec",
			Name:      "service_duration_seconds",
			Help: `The time it takes to evaluate a Service node remotely, including time
spent waiting for a request slot.`,
		}),
		serviceErrors: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "exec",
			Name:      "service_errors",
			Help:      `The number of Service nodes that failed to evaluate, by kind of error.`,
		}, "kind"),
		silencedServiceErrors: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "exec",
			Name:      "silenced_service_errors",
			Help:      `The number of failed SERVICE SILENT calls that produced no rows instead of an error.`,
		}),
		serviceCacheHits: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "exec",
			Name:      "service_cache_hits",
			Help:      `The number of Service nodes answered by an identical Service node's request.`,
		}),
	}
}
