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

// Command sparql-endpoint serves N-Triples and N-Quads files over the SPARQL
// protocol. It's useful for standing up endpoints to federate queries to.
package main

import (
	"fmt"
	"os"

	docopt "github.com/docopt/docopt-go"
	"github.com/kasei/kineo-federation/memstore"
	"github.com/kasei/kineo-federation/query"
	"github.com/kasei/kineo-federation/sparqlendpoint"
	"github.com/kasei/kineo-federation/util/debuglog"
	"github.com/kasei/kineo-federation/util/tracing"
	log "github.com/sirupsen/logrus"
)

const usage = `sparql-endpoint serves RDF files over the SPARQL protocol.

Usage:
  sparql-endpoint [options] FILE...

Options:
  -a=ADDR, --address=ADDR  Host and port to listen on [default: localhost:8080]
  --union-default-graph    Match default graph patterns against every graph.
  -v, --verbose            Log each request at debug level.

Files ending in .nt are read as N-Triples; any other file is read as N-Quads.
The endpoint answers at /sparql, and reports metrics at /metrics.
`

type options struct {
	Address           string   `docopt:"--address"`
	UnionDefaultGraph bool     `docopt:"--union-default-graph"`
	Verbose           bool     `docopt:"--verbose"`
	Files             []string `docopt:"FILE"`
}

func parseArgs(argv []string) (*options, error) {
	opts, err := docopt.DefaultParser.ParseArgs(usage, argv, "")
	if err != nil {
		return nil, err
	}
	var options options
	if err := opts.Bind(&options); err != nil {
		return nil, fmt.Errorf("error binding command-line arguments: %v\nfrom: %+v", err, opts)
	}
	return &options, nil
}

// load reads every file into a new store.
func load(options *options) (*memstore.Store, error) {
	store := memstore.New(memstore.Options{UnionDefaultGraph: options.UnionDefaultGraph})
	for _, filename := range options.Files {
		if _, err := store.LoadFile(filename); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func main() {
	options, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("Error parsing command-line arguments: %v", err)
	}
	if options.Verbose {
		debuglog.Configure(debuglog.Options{Level: log.DebugLevel})
	}
	tracer, err := tracing.New("sparql-endpoint", nil)
	if err != nil {
		log.WithError(err).Warn("Could not initialize OpenTracing tracer")
	} else {
		defer tracer.Close()
	}
	store, err := load(options)
	if err != nil {
		log.Fatalf("Unable to load data: %v", err)
	}
	log.WithFields(log.Fields{
		"files": len(options.Files),
		"quads": store.Len(),
	}).Info("Loaded data")
	server := sparqlendpoint.New(query.New(query.Options{Local: store}))
	if err := server.ListenAndServe(options.Address); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
