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

package tracing

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	jaeger "github.com/uber/jaeger-client-go"
	jaegerTransport "github.com/uber/jaeger-client-go/transport"
)

// placeholderHost is put into the host component of trace upload URLs; the
// collectorProxy substitutes a real collector.
const placeholderHost = "some.tracing.collector.localhost"

// newTransport returns a jaeger.Transport that sends traces to one of the
// given collector host:port addresses, switching to another collector when
// the current one stops working.
func newTransport(collectors []string) jaeger.Transport {
	roundTripper := &collectorProxy{
		collectors:    append([]string(nil), collectors...),
		baseTransport: http.DefaultTransport.RoundTrip,
	}
	url := "http://" + placeholderHost + "/api/traces?format=jaeger.thrift"
	return jaegerTransport.NewHTTPTransport(url,
		jaegerTransport.HTTPRoundTripper(roundTripper))
}

// A collectorProxy is an http.RoundTripper that sends each request to the
// current collector.
type collectorProxy struct {
	// host:port of the collectors. Immutable.
	collectors []string
	// Set to http.DefaultTransport.RoundTrip, except for testing.
	baseTransport func(req *http.Request) (*http.Response, error)
	// Protects locked.
	lock sync.Mutex
	// Protected by lock.
	locked struct {
		// The host:port of the collector in use, or "" if none.
		hostPort string
		// If non-nil, the current collector's last request failed with this
		// error.
		lastErr error
		// When the last successful request completed, or when the collector
		// was chosen if there hasn't been one.
		lastSuccess time.Time
	}
}

// switchAfter is how long a failing collector is kept before choosing
// another.
const switchAfter = 10 * time.Second

var errNoServer = errors.New("no Jaeger collectors configured")

// RoundTrip implements the method defined in http.RoundTripper.
func (proxy *collectorProxy) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != placeholderHost {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("tracing: Jaeger client tried to reach unexpected host: %v",
			req.URL.Host)
	}
	hostPort, err := proxy.getHostPort()
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	// RoundTripper must not modify req.
	url2 := *req.URL
	url2.Host = hostPort
	req2 := req.Clone(req.Context())
	req2.URL = &url2
	req2.Host = hostPort
	resp, err := proxy.baseTransport(req2)
	switch {
	case err != nil:
		proxy.report(hostPort, err)
	case resp.StatusCode >= 400 && resp.StatusCode <= 599:
		proxy.report(hostPort, errors.New(resp.Status))
	default:
		proxy.report(hostPort, nil)
	}
	return resp, err
}

// getHostPort returns the collector to send a request to.
func (proxy *collectorProxy) getHostPort() (string, error) {
	proxy.lock.Lock()
	defer proxy.lock.Unlock()

	if len(proxy.collectors) == 0 {
		return "", errNoServer
	}
	current := proxy.locked.hostPort
	if current != "" &&
		(proxy.locked.lastErr == nil || time.Since(proxy.locked.lastSuccess) < switchAfter) {
		return current, nil
	}
	others := make([]string, 0, len(proxy.collectors))
	for _, c := range proxy.collectors {
		if c != current {
			others = append(others, c)
		}
	}
	if len(others) == 0 {
		return current, nil
	}
	next := others[rand.Intn(len(others))]
	now := time.Now()
	if current != "" {
		logrus.WithFields(logrus.Fields{
			"lastError":    proxy.locked.lastErr,
			"oldCollector": current,
			"newCollector": next,
		}).Info("Switching Jaeger collectors")
	}
	proxy.locked.hostPort = next
	proxy.locked.lastErr = nil
	proxy.locked.lastSuccess = now
	return next, nil
}

// report records the outcome of a request to hostPort. err is nil on success.
func (proxy *collectorProxy) report(hostPort string, err error) {
	proxy.lock.Lock()
	defer proxy.lock.Unlock()
	if proxy.locked.hostPort == hostPort {
		if err == nil {
			proxy.locked.lastSuccess = time.Now()
		}
		proxy.locked.lastErr = err
	}
}
