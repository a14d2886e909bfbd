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

// Package tracing reports OpenTracing traces to Jaeger and bridges span
// durations to Prometheus metrics.
package tracing

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kasei/kineo-federation/config"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	jaeger "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// A Tracer reports OpenTracing traces to a collector.
type Tracer struct {
	// If not nil, called by Close.
	close func()
}

// New constructs a tracer and sets it as the global opentracing tracer. Call
// it early on from main functions. If cfg is nil, spans aren't reported
// anywhere, but span metrics set with UpdateMetric are still recorded. If
// err == nil, the returned tracer should be Closed before program exit to
// flush buffered spans.
func New(serviceName string, cfg *config.Tracing) (*Tracer, error) {
	jcfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
	}
	var reporter jaeger.Reporter
	if cfg == nil {
		log.Debug("Not reporting traces: nil Tracing configuration")
		reporter = jaeger.NewNullReporter()
	} else {
		if len(cfg.Collectors) == 0 {
			return nil, fmt.Errorf("tracing: no Jaeger collectors configured")
		}
		reporter = jaeger.NewRemoteReporter(newTransport(cfg.Collectors))
	}
	logger := (*logrusAdapter)(log.WithFields(log.Fields{"component": "jaeger"}))
	tracer, closer, err := jcfg.NewTracer(
		jaegercfg.Logger(logger),
		jaegercfg.Reporter(reporter),
		jaegercfg.ContribObserver(&contribObserver{}),
	)
	if err != nil {
		return nil, fmt.Errorf("could not initialize Jaeger tracer: %v", err)
	}
	opentracing.SetGlobalTracer(tracer)
	return &Tracer{
		close: func() {
			if err := closer.Close(); err != nil {
				log.WithError(err).Warn("Error shutting down Jaeger tracer")
			}
		},
	}, nil
}

// Close stops the Tracer and flushes buffered spans. It is not thread-safe.
func (t *Tracer) Close() {
	if t.close != nil {
		t.close()
	}
	t.close = nil
}

type logrusAdapter log.Entry

func (l *logrusAdapter) Error(msg string) {
	(*log.Entry)(l).Error(strings.TrimSpace(msg))
}

func (l *logrusAdapter) Infof(msg string, args ...interface{}) {
	(*log.Entry)(l).Infof(strings.TrimSpace(msg), args...)
}

type contribObserver struct{}

// OnStartSpan implements the method defined in jaeger.ContribObserver.
func (m *contribObserver) OnStartSpan(
	span opentracing.Span,
	operationName string,
	options opentracing.StartSpanOptions,
) (jaeger.ContribSpanObserver, bool) {
	start := options.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	return &spanObserver{start: start}, true
}

// spanObserver implements jaeger.ContribSpanObserver. It feeds the span's
// duration to a metric set with UpdateMetric.
type spanObserver struct {
	start time.Time
	// lock protects metric.
	lock   sync.Mutex
	metric Metric
}

func (o *spanObserver) OnSetOperationName(name string) {}

func (o *spanObserver) OnSetTag(key string, value interface{}) {
	if key != metricTag {
		return
	}
	var metric Metric
	switch v := value.(type) {
	case stringableMetric:
		metric = v.Metric
	case Metric:
		metric = v
	default:
		return
	}
	o.lock.Lock()
	o.metric = metric
	o.lock.Unlock()
}

func (o *spanObserver) OnFinish(options opentracing.FinishOptions) {
	finish := options.FinishTime
	if finish.IsZero() {
		finish = time.Now()
	}
	o.lock.Lock()
	metric := o.metric
	o.lock.Unlock()
	if metric != nil {
		metric.Observe(finish.Sub(o.start).Seconds())
	}
}

const metricTag = "metric"

// UpdateMetric arranges for the given metric to be updated with the duration
// of the span (in seconds) when it finishes. This only has an effect on spans
// from a tracer set up by New.
func UpdateMetric(span opentracing.Span, metric Metric) {
	span.SetTag(metricTag, stringableMetric{metric})
}

// Metric is satisfied by prometheus.Summary and prometheus.Histogram.
type Metric interface {
	prometheus.Metric
	Observe(float64)
}

// stringableMetric gives the Prometheus metrics a better stringer, which ends
// up as the value of the span's "metric" tag.
type stringableMetric struct {
	Metric
}

// String returns the fully-qualified name of the metric.
func (metric stringableMetric) String() string {
	// Desc's Stringer looks like:
	//   Desc{fqName: %q, help: %q, constLabels: {%s}, variableLabels: %v}
	s := metric.Desc().String()
	s = strings.TrimPrefix(s, `Desc{fqName: "`)
	i := strings.IndexByte(s, '"')
	if i < 0 {
		return ""
	}
	return s[:i]
}
