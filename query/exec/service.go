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
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/query/serializer"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/sparqlclient"
	"github.com/kasei/kineo-federation/util/cmp"
	"github.com/kasei/kineo-federation/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Client sends a SPARQL query to an endpoint. sparqlclient.Client is a
// Client.
type Client interface {
	Query(ctx context.Context, endpoint string, query string) (*sparqlclient.Result, error)
}

// Default limits on concurrent Service requests.
const (
	DefaultMaxConcurrentRequests            = 16
	DefaultMaxConcurrentRequestsPerEndpoint = 4
)

// DispatcherOptions bound the requests a Dispatcher makes.
type DispatcherOptions struct {
	// Defaults to DefaultMaxConcurrentRequests.
	MaxConcurrentRequests int
	// Defaults to DefaultMaxConcurrentRequestsPerEndpoint.
	MaxConcurrentRequestsPerEndpoint int
	// If set, each request is abandoned after this long.
	RequestTimeout time.Duration
}

// Dispatcher evaluates Service nodes by sending their sub-plans to remote
// endpoints. It's safe for concurrent use.
type Dispatcher struct {
	client      Client
	opts        DispatcherOptions
	global      *semaphore.Weighted
	lock        sync.Mutex
	perEndpoint map[string]*semaphore.Weighted
}

// NewDispatcher returns a Dispatcher that sends requests with the given
// client.
func NewDispatcher(client Client, opts DispatcherOptions) *Dispatcher {
	if opts.MaxConcurrentRequests <= 0 {
		opts.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if opts.MaxConcurrentRequestsPerEndpoint <= 0 {
		opts.MaxConcurrentRequestsPerEndpoint = DefaultMaxConcurrentRequestsPerEndpoint
	}
	return &Dispatcher{
		client:      client,
		opts:        opts,
		global:      semaphore.NewWeighted(int64(opts.MaxConcurrentRequests)),
		perEndpoint: make(map[string]*semaphore.Weighted),
	}
}

func (d *Dispatcher) endpointLimit(endpoint string) *semaphore.Weighted {
	d.lock.Lock()
	defer d.lock.Unlock()
	sem, ok := d.perEndpoint[endpoint]
	if !ok {
		sem = semaphore.NewWeighted(int64(d.opts.MaxConcurrentRequestsPerEndpoint))
		d.perEndpoint[endpoint] = sem
	}
	return sem
}

// Dispatch evaluates svc remotely. The returned chunk's columns are the
// in-scope variables of the sub-plan. Errors are *EvaluationError. If svc is
// silent, Transport and UnexpectedResult errors are logged and produce an
// empty chunk instead.
func (d *Dispatcher) Dispatch(ctx context.Context, svc *algebra.Service) (ResultChunk, error) {
	cols := columnsOf(algebra.Variables(svc.Input)...)
	chunk, err := d.dispatch(ctx, svc, cols)
	if err == nil {
		return chunk, nil
	}
	var evalErr *EvaluationError
	if svc.Silent && errors.As(err, &evalErr) && evalErr.Kind != Serialization {
		metrics.silencedServiceErrors.Inc()
		log.WithFields(log.Fields{
			"endpoint": svc.Endpoint,
			"kind":     evalErr.Kind,
			"error":    evalErr.Cause,
		}).Warn("Ignoring failed silent service call")
		return ResultChunk{Columns: cols}, nil
	}
	return ResultChunk{}, err
}

func (d *Dispatcher) dispatch(ctx context.Context, svc *algebra.Service, cols Columns) (ResultChunk, error) {
	fail := func(kind ErrorKind, cause error) (ResultChunk, error) {
		metrics.serviceErrors.WithLabelValues(kind.String()).Inc()
		return ResultChunk{}, &EvaluationError{Kind: kind, Endpoint: svc.Endpoint, Cause: cause}
	}
	query, err := serializer.SerializePlan(svc.Input)
	if err != nil {
		return fail(Serialization, err)
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "service call")
	span.SetTag("endpoint", svc.Endpoint)
	tracing.UpdateMetric(span, metrics.serviceDurationSeconds)
	defer span.Finish()

	endpointSem := d.endpointLimit(svc.Endpoint)
	if err := endpointSem.Acquire(ctx, 1); err != nil {
		return ResultChunk{}, err
	}
	defer endpointSem.Release(1)
	if err := d.global.Acquire(ctx, 1); err != nil {
		return ResultChunk{}, err
	}
	defer d.global.Release(1)

	if d.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.RequestTimeout)
		defer cancel()
	}
	start := time.Now()
	res, err := d.client.Query(ctx, svc.Endpoint, query)
	log.WithFields(log.Fields{
		"endpoint": svc.Endpoint,
		"query":    query,
		"duration": time.Since(start),
		"error":    err,
	}).Debug("Service call")
	if err != nil {
		if errors.Is(err, sparqlclient.ErrMalformedResponse) {
			return fail(UnexpectedResult, err)
		}
		return fail(Transport, err)
	}
	if res.Kind != sparqlclient.BindingsResult {
		return fail(UnexpectedResult,
			errors.New("endpoint returned "+res.Kind.String()+" instead of bindings"))
	}
	chunk := ResultChunk{Columns: cols}
	bnodes := newResponseScope()
	for _, solution := range res.Bindings {
		row := make([]rdf.Term, len(cols))
		for name, v := range solution {
			if i := cols.IndexOf(name); i >= 0 {
				row[i] = bnodes.relabel(v)
			}
		}
		if len(cols) == 0 {
			row = []rdf.Term{nil}
		}
		chunk.Values = append(chunk.Values, row...)
	}
	return chunk, nil
}

// responseScope relabels the blank nodes of one results document. A blank
// node label only identifies a node within the response it appears in, so
// each response gets its own label prefix. Within a response, equal labels
// stay equal.
type responseScope struct {
	prefix string
}

func newResponseScope() responseScope {
	return responseScope{prefix: "r" + strings.Replace(uuid.NewString(), "-", "", -1) + "_"}
}

func (s responseScope) relabel(t rdf.Term) rdf.Term {
	if b, ok := t.(rdf.BlankNode); ok {
		return rdf.BlankNode(s.prefix + string(b))
	}
	return t
}

// serviceCache shares the results of identical Service nodes within one
// execution.
type serviceCache struct {
	inflight singleflight.Group
	lock     sync.Mutex
	// Maps from the key of a Service node to its results.
	results map[string]ResultChunk
}

func newServiceCache() *serviceCache {
	return &serviceCache{results: make(map[string]ResultChunk)}
}

func (c *serviceCache) get(key string) (ResultChunk, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	chunk, ok := c.results[key]
	return chunk, ok
}

// fetch returns the results for svc, dispatching it only if no other Service
// node with the same key has been dispatched in this execution.
func (c *serviceCache) fetch(ctx context.Context, d *Dispatcher, svc *algebra.Service) (ResultChunk, error) {
	key := cmp.GetKey(svc)
	if chunk, ok := c.get(key); ok {
		metrics.serviceCacheHits.Inc()
		return chunk, nil
	}
	v, err, shared := c.inflight.Do(key, func() (interface{}, error) {
		if chunk, ok := c.get(key); ok {
			return chunk, nil
		}
		chunk, err := d.Dispatch(ctx, svc)
		if err != nil {
			return nil, err
		}
		c.lock.Lock()
		c.results[key] = chunk
		c.lock.Unlock()
		return chunk, nil
	})
	if err != nil {
		return ResultChunk{}, err
	}
	if shared {
		metrics.serviceCacheHits.Inc()
	}
	return v.(ResultChunk), nil
}

// serviceOp produces the rows of a remote Service call.
type serviceOp struct {
	dispatcher *Dispatcher
	cache      *serviceCache
	def        *algebra.Service
	cols       Columns
}

func newServiceOp(d *Dispatcher, cache *serviceCache, def *algebra.Service) *serviceOp {
	return &serviceOp{
		dispatcher: d,
		cache:      cache,
		def:        def,
		cols:       columnsOf(algebra.Variables(def.Input)...),
	}
}

func (op *serviceOp) columns() Columns {
	return op.cols
}

func (op *serviceOp) execute(ctx context.Context, res results) error {
	chunk, err := op.cache.fetch(ctx, op.dispatcher, op.def)
	if err != nil {
		return err
	}
	for i := 0; i < chunk.NumRows(); i++ {
		res.add(ctx, chunk.Row(i))
	}
	return nil
}
