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

// Command kineo-federation runs a SPARQL query across a set of remote SPARQL
// endpoints.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	docopt "github.com/docopt/docopt-go"
	"github.com/kasei/kineo-federation/config"
	"github.com/kasei/kineo-federation/query"
	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/sparqlclient"
	"github.com/kasei/kineo-federation/util/debuglog"
	"github.com/kasei/kineo-federation/util/parallel"
	"github.com/kasei/kineo-federation/util/table"
	"github.com/kasei/kineo-federation/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

const usage = `kineo-federation runs a SPARQL query across remote SPARQL endpoints.

Usage:
  kineo-federation [options] [-e=URL]... [QUERY]

Options:
  -v, --verbose           Print timing to stderr.
  -c=FILE, --config=FILE  JSON, TOML or YAML configuration file.
  -e=URL, --endpoint=URL  Endpoint to federate the query to. May be repeated.
                          Overrides the endpoints in the configuration.
  --explain               Print the federated plan and exit.
  --format=FMT            Output format for SELECT results: rows or table [default: rows].
  --timeout=DUR           Overall query timeout.

QUERY is the name of a file holding the query, or the query text itself. If
it's omitted, a query for the names and types of things is run.
`

const defaultQuery = `PREFIX foaf: <http://xmlns.com/foaf/0.1/> SELECT * WHERE { ?s a ?type ; foaf:name ?name }`

var defaultEndpoints = []string{"http://dbpedia.org/sparql", "http://example.org/sparql"}

type options struct {
	Verbose    bool     `docopt:"--verbose"`
	ConfigFile string   `docopt:"--config"`
	Endpoints  []string `docopt:"--endpoint"`
	Explain    bool     `docopt:"--explain"`
	Format     string   `docopt:"--format"`
	// Zero if no timeout was given.
	Timeout       time.Duration
	TimeoutString string `docopt:"--timeout"`
	Query         string `docopt:"QUERY"`
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
	if options.TimeoutString != "" {
		options.Timeout, err = time.ParseDuration(options.TimeoutString)
		if err != nil {
			return nil, fmt.Errorf("unable to parse timeout value: %v", err)
		}
	}
	switch options.Format {
	case "rows", "table":
	default:
		return nil, fmt.Errorf("invalid format %q: must be rows or table", options.Format)
	}
	return &options, nil
}

// loadConfig returns the configuration named by the options, with the
// endpoints given on the command line taking precedence.
func loadConfig(options *options) (*config.Federation, error) {
	cfg := &config.Federation{}
	if options.ConfigFile != "" {
		var err error
		cfg, err = config.Load(options.ConfigFile)
		if err != nil {
			return nil, err
		}
	}
	if len(options.Endpoints) > 0 {
		cfg.Endpoints = options.Endpoints
	}
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = defaultEndpoints
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// queryText returns the contents of the named file, or arg itself if there's
// no such file.
func queryText(arg string) (string, error) {
	if arg == "" {
		return defaultQuery, nil
	}
	if arg == "-" {
		all, err := io.ReadAll(os.Stdin)
		return string(all), err
	}
	info, err := os.Stat(arg)
	if err != nil || info.IsDir() {
		return arg, nil
	}
	contents, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("unable to read query file: %v", err)
	}
	return string(contents), nil
}

func main() {
	debuglog.Configure(debuglog.Options{})
	options, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("Error parsing command-line arguments: %v", err)
	}
	cfg, err := loadConfig(options)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	tracer, err := tracing.New("kineo-federation", cfg.Tracing)
	if err != nil {
		log.WithError(err).Warn("Could not initialize OpenTracing tracer")
	} else {
		defer tracer.Close()
	}
	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			err := http.ListenAndServe(cfg.MetricsAddress, mux)
			log.WithError(err).Warn("Metrics server stopped")
		}()
	}
	text, err := queryText(options.Query)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ctx := context.Background()
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "kineo-federation run")
	defer span.Finish()

	client := sparqlclient.New(sparqlclient.Options{})
	engine := query.New(query.OptionsFromConfig(cfg, client))
	if err := run(ctx, engine, text, options, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("Error executing query: %v", err)
	}
}

// run prepares and evaluates the query, writing its results to out and any
// timing information to errOut.
func run(ctx context.Context, engine *query.Engine, text string, options *options, out, errOut io.Writer) error {
	start := time.Now()
	prepared, err := engine.Prepare(ctx, text)
	if err != nil {
		return err
	}
	if options.Verbose {
		fmtr.Fprintf(errOut, "query time: %.3fs\n", time.Since(start).Seconds())
	}
	if options.Explain {
		fmt.Fprint(out, prepared.String())
		return nil
	}
	var count int
	switch {
	case prepared.Form == algebra.SelectForm && options.Format == "rows":
		count, err = printRows(ctx, engine, prepared, out)
	default:
		var res *query.Result
		res, err = engine.Evaluate(ctx, prepared)
		if err == nil {
			count = printResult(res, out)
		}
	}
	if err != nil {
		return err
	}
	if options.Verbose {
		elapsed := time.Since(start).Seconds()
		fmtr.Fprintf(errOut, "elapsed time: %.3fs (%.1f/s)\n", elapsed, float64(count)/elapsed)
	}
	return nil
}

// printRows streams the solutions of a SELECT query as numbered lines, and
// returns how many there were.
func printRows(ctx context.Context, engine *query.Engine, prepared *algebra.Query, out io.Writer) (int, error) {
	resCh := make(chan query.ResultChunk, 4)
	count := 0
	wait := parallel.Go(func() {
		for chunk := range resCh {
			for i := 0; i < chunk.NumRows(); i++ {
				count++
				fmt.Fprintf(out, "%d\t%s\n", count, formatRow(chunk, i))
			}
		}
	})
	err := engine.Stream(ctx, prepared, resCh)
	wait()
	return count, err
}

// formatRow returns the bound variables of the i-th row like
// "?s=<http://example.com/a> ?n=\"A\"".
func formatRow(chunk query.ResultChunk, i int) string {
	var b strings.Builder
	for c, v := range chunk.Row(i) {
		if v == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(chunk.Columns[c].String())
		b.WriteByte('=')
		b.WriteString(v.String())
	}
	return b.String()
}

// printResult writes a complete result and returns the number of solutions
// or triples in it.
func printResult(res *query.Result, out io.Writer) int {
	switch res.Form {
	case algebra.SelectForm:
		table.PrettyPrint(out, res.Solutions.ToTable(), table.HeaderRow)
		return res.Solutions.NumRows()
	case algebra.AskForm:
		fmt.Fprintln(out, res.Boolean)
		return 1
	case algebra.ConstructForm:
		for _, t := range res.Triples {
			fmt.Fprintln(out, t.String())
		}
		return len(res.Triples)
	}
	return 0
}
