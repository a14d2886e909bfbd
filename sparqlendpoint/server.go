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

// Package sparqlendpoint serves the SPARQL 1.1 protocol over HTTP, answering
// queries with a query.Engine.
package sparqlendpoint

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/kasei/kineo-federation/query"
	"github.com/kasei/kineo-federation/query/algebra"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Path is where queries are accepted.
const Path = "/sparql"

// Media types of the request bodies the server accepts.
const (
	formMediaType  = "application/x-www-form-urlencoded"
	queryMediaType = "application/sparql-query"
)

// Limits the size of a query sent in a request body.
const maxQueryBytes = 1 << 20

// queryEngine provides an abstraction from query execution to aid in testing.
// query.Engine is a queryEngine.
type queryEngine interface {
	Prepare(ctx context.Context, rawQuery string) (*algebra.Query, error)
	Evaluate(ctx context.Context, query *algebra.Query) (*query.Result, error)
}

// Server answers SPARQL protocol requests. It implements http.Handler.
type Server struct {
	engine queryEngine
	router *httprouter.Router
}

// New returns a Server that evaluates queries with engine. Besides the query
// path, the server exposes Prometheus metrics at /metrics.
func New(engine queryEngine) *Server {
	s := &Server{engine: engine, router: httprouter.New()}
	s.router.GET(Path, s.query)
	s.router.POST(Path, s.query)
	s.router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Debugf("[SPARQL] %v %v", r.Method, r.URL)
	s.router.ServeHTTP(w, r)
}

// ListenAndServe accepts requests on the given host:port until it fails.
func (s *Server) ListenAndServe(address string) error {
	log.WithFields(log.Fields{
		"address": address,
		"path":    Path,
	}).Info("Serving SPARQL endpoint")
	return http.ListenAndServe(address, s)
}

// writeError writes a textual error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, formatMsg string, params ...interface{}) {
	metrics.requests.WithLabelValues(http.StatusText(statusCode)).Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, formatMsg, params...)
	io.WriteString(w, "\n")
}

// rawQuery extracts the query text from a GET query string, a form body, or a
// direct application/sparql-query body.
func rawQuery(r *http.Request) (string, error) {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("query"), nil
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("invalid Content-Type: %v", err)
	}
	switch mediaType {
	case formMediaType:
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("unable to parse form data: %v", err)
		}
		return r.PostForm.Get("query"), nil
	case queryMediaType:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxQueryBytes))
		if err != nil {
			return "", fmt.Errorf("unable to read request body: %v", err)
		}
		return string(body), nil
	}
	return "", fmt.Errorf("unsupported Content-Type %s: must be %s or %s",
		mediaType, formMediaType, queryMediaType)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	span, ctx := opentracing.StartSpanFromContext(r.Context(), "sparql endpoint")
	defer span.Finish()
	start := time.Now()
	defer func() {
		metrics.requestDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	text, err := rawQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter")
		return
	}
	prepared, err := s.engine.Prepare(ctx, text)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query: %v", err)
		return
	}
	res, err := s.engine.Evaluate(ctx, prepared)
	if err != nil {
		log.WithFields(log.Fields{
			"query": text,
			"error": err,
		}).Warn("Query failed")
		writeError(w, http.StatusInternalServerError, "Error during query: %v", err)
		return
	}
	metrics.requests.WithLabelValues(http.StatusText(http.StatusOK)).Inc()
	if err := writeResult(w, res); err != nil {
		log.WithError(err).Warn("Unable to write query results")
	}
}
