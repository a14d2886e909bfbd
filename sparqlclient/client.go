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

// Package sparqlclient sends queries to remote SPARQL endpoints using the
// SPARQL 1.1 protocol over HTTP.
package sparqlclient

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/kasei/kineo-federation/query/parser"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Media types used in requests and responses.
const (
	ResultsJSON = "application/sparql-results+json"
	NTriples    = "application/n-triples"

	acceptHeader = ResultsJSON + ", application/json;q=0.9, " + NTriples + ";q=0.8, text/plain;q=0.5"
)

// ErrMalformedResponse is the cause of errors returned when an endpoint's
// response can't be decoded.
var ErrMalformedResponse = errors.New("malformed SPARQL response")

// maxErrorBody bounds how much of an error response is kept in a StatusError.
const maxErrorBody = 512

// StatusError is returned when an endpoint responds with an HTTP error status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	// The start of the response body.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint %s returned HTTP %d: %s",
		e.Endpoint, e.StatusCode, e.Body)
}

// Options configure a Client.
type Options struct {
	// If set, failed requests are logged and produce an empty result instead
	// of an error.
	Silent bool
	// Used to send requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client sends SPARQL queries to endpoints. It's safe for concurrent use.
type Client struct {
	opts Options
}

// New returns a Client with the given options.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{opts: opts}
}

// Query sends query to the endpoint at the given URL and decodes its results.
func (c *Client) Query(ctx context.Context, endpoint string, query string) (*Result, error) {
	res, err := c.send(ctx, endpoint, query)
	if err != nil && c.opts.Silent {
		log.WithFields(log.Fields{
			"endpoint": endpoint,
			"error":    err,
		}).Warn("Ignoring failed SPARQL request")
		return &Result{Kind: BindingsResult}, nil
	}
	return res, err
}

// Ask sends an ASK query to the endpoint and returns its answer. Failures are
// returned as errors even if the Client is silent, so that they can't be
// mistaken for a false answer.
func (c *Client) Ask(ctx context.Context, endpoint string, query string) (bool, error) {
	res, err := c.send(ctx, endpoint, query)
	if err != nil {
		return false, err
	}
	if res.Kind != BooleanResult {
		return false, errors.Wrapf(ErrMalformedResponse,
			"ASK query to %s returned %v instead of a boolean", endpoint, res.Kind)
	}
	return res.Boolean, nil
}

// send runs query inside a span, counting it and its failure.
func (c *Client) send(ctx context.Context, endpoint string, query string) (*Result, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sparql request")
	span.SetTag("endpoint", endpoint)
	tracing.UpdateMetric(span, metrics.requestDurationSeconds)
	defer span.Finish()
	metrics.requests.Inc()

	res, err := c.query(ctx, endpoint, query)
	if err != nil {
		metrics.requestFailures.Inc()
		span.SetTag("error", true)
		return nil, err
	}
	return res, nil
}

func (c *Client) query(ctx context.Context, endpoint string, query string) (*Result, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid endpoint %s", endpoint)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", acceptHeader)
	log.WithFields(log.Fields{
		"endpoint": endpoint,
		"query":    query,
	}).Debug("Sending SPARQL request")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", endpoint)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		prefix, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(prefix)),
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading response from %s failed", endpoint)
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "response from %s has no valid Content-Type: %v",
			endpoint, err)
	}
	switch mediaType {
	case ResultsJSON, "application/json":
		res, err := decodeJSON(body)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding results from %s", endpoint)
		}
		return res, nil
	case NTriples, "text/plain":
		triples, err := parser.ParseNTriples(string(body))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedResponse, "decoding triples from %s: %v", endpoint, err)
		}
		return &Result{Kind: TriplesResult, Triples: triples}, nil
	}
	return nil, errors.Wrapf(ErrMalformedResponse, "response from %s has unsupported Content-Type %s",
		endpoint, mediaType)
}

// decodeJSON parses a SPARQL 1.1 Query Results JSON document.
func decodeJSON(body []byte) (*Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.Wrap(ErrMalformedResponse, "invalid JSON")
	}
	doc := gjson.ParseBytes(body)
	if b := doc.Get("boolean"); b.Exists() {
		if b.Type != gjson.True && b.Type != gjson.False {
			return nil, errors.Wrapf(ErrMalformedResponse, "boolean result is %s", b.Raw)
		}
		return &Result{Kind: BooleanResult, Boolean: b.Bool()}, nil
	}
	bindings := doc.Get("results.bindings")
	if !bindings.IsArray() {
		return nil, errors.Wrap(ErrMalformedResponse, "neither results.bindings nor boolean present")
	}
	res := &Result{Kind: BindingsResult}
	for _, v := range doc.Get("head.vars").Array() {
		res.Vars = append(res.Vars, v.String())
	}
	var err error
	bindings.ForEach(func(_, row gjson.Result) bool {
		solution := make(Solution)
		row.ForEach(func(name, value gjson.Result) bool {
			var t rdf.Term
			t, err = decodeTerm(value)
			if err != nil {
				err = errors.Wrapf(err, "binding for ?%s", name.String())
				return false
			}
			solution[name.String()] = t
			return true
		})
		if err != nil {
			return false
		}
		res.Bindings = append(res.Bindings, solution)
		return true
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func decodeTerm(value gjson.Result) (rdf.Term, error) {
	lexical := value.Get("value")
	if !lexical.Exists() {
		return nil, errors.Wrapf(ErrMalformedResponse, "term %s has no value", value.Raw)
	}
	switch typ := value.Get("type").String(); typ {
	case "uri":
		return rdf.IRI(lexical.String()), nil
	case "bnode":
		return rdf.BlankNode(lexical.String()), nil
	case "literal", "typed-literal":
		if lang := value.Get("xml:lang"); lang.Exists() {
			return rdf.NewLangString(lexical.String(), lang.String()), nil
		}
		return rdf.NewTyped(lexical.String(), rdf.IRI(value.Get("datatype").String())), nil
	default:
		return nil, errors.Wrapf(ErrMalformedResponse, "unknown term type %q", typ)
	}
}
