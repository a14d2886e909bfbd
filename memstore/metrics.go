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

package memstore

import (
	metricsutil "github.com/kasei/kineo-federation/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type memstoreMetrics struct {
	quads prometheus.Gauge
}

var metrics memstoreMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = memstoreMetrics{
		quads: mr.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "memstore",
			Name:      "quads",
			Help:      `The number of quads held by all in-memory stores.`,
		}),
	}
}
