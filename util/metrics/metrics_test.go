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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Registry(t *testing.T) {
	reg := prometheus.NewRegistry()
	mr := Registry{R: reg}
	counter := mr.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "test", Name: "things_total", Help: "things",
	})
	counter.Add(3)
	vec := mr.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: "test", Name: "by_endpoint_total", Help: "things",
	}, "endpoint")
	vec.WithLabelValues("http://a").Inc()
	mr.NewSummary(prometheus.SummaryOpts{
		Namespace: Namespace, Subsystem: "test", Name: "duration_seconds", Help: "durations",
	}).Observe(0.25)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["kineo_test_things_total"])
	assert.True(t, names["kineo_test_by_endpoint_total"])
	assert.True(t, names["kineo_test_duration_seconds"])

	assert.Panics(t, func() {
		mr.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "test", Name: "things_total", Help: "dup",
		})
	})
}
