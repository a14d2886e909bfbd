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

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	docopt "github.com/docopt/docopt-go"
	"github.com/kasei/kineo-federation/config"
	"github.com/kasei/kineo-federation/memstore"
	"github.com/kasei/kineo-federation/query"
	"github.com/kasei/kineo-federation/sparqlclient"
	"github.com/kasei/kineo-federation/sparqlendpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseArgs(t *testing.T) {
	docopt.DefaultParser.HelpHandler = func(err error, usage string) {}
	opts, err := parseArgs([]string{})
	require.NoError(t, err)
	assert.Equal(t, "rows", opts.Format)
	assert.Empty(t, opts.Endpoints)
	assert.Empty(t, opts.Query)
	assert.Zero(t, opts.Timeout)
	assert.False(t, opts.Verbose)

	opts, err = parseArgs([]string{"-v", "--explain", "-e", "http://e1/sparql",
		"--endpoint=http://e2/sparql", "--format=table", "--timeout=5s", "-c", "fed.yaml",
		"SELECT * WHERE {}"})
	require.NoError(t, err)
	assert.True(t, opts.Verbose)
	assert.True(t, opts.Explain)
	assert.Equal(t, []string{"http://e1/sparql", "http://e2/sparql"}, opts.Endpoints)
	assert.Equal(t, "table", opts.Format)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, "fed.yaml", opts.ConfigFile)
	assert.Equal(t, "SELECT * WHERE {}", opts.Query)

	_, err = parseArgs([]string{"--format=xml"})
	assert.EqualError(t, err, `invalid format "xml": must be rows or table`)
	_, err = parseArgs([]string{"--timeout=soon"})
	assert.Error(t, err)
	_, err = parseArgs([]string{"--bogus"})
	assert.Error(t, err)
}

func Test_loadConfig(t *testing.T) {
	cfg, err := loadConfig(&options{})
	require.NoError(t, err)
	assert.Equal(t, defaultEndpoints, cfg.Endpoints)

	dir := t.TempDir()
	filename := filepath.Join(dir, "fed.json")
	require.NoError(t, config.Write(&config.Federation{
		Endpoints: []string{"http://e1/sparql"},
		Oracle:    config.Oracle{Type: config.OracleNone},
	}, filename))
	cfg, err = loadConfig(&options{ConfigFile: filename})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://e1/sparql"}, cfg.Endpoints)
	assert.Equal(t, config.OracleNone, cfg.Oracle.Type)

	cfg, err = loadConfig(&options{ConfigFile: filename, Endpoints: []string{"http://e2/sparql"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://e2/sparql"}, cfg.Endpoints)

	_, err = loadConfig(&options{Endpoints: []string{"ftp://e3"}})
	assert.Error(t, err)
	_, err = loadConfig(&options{ConfigFile: filepath.Join(dir, "missing.json")})
	assert.Error(t, err)
}

func Test_queryText(t *testing.T) {
	text, err := queryText("")
	require.NoError(t, err)
	assert.Equal(t, defaultQuery, text)

	text, err = queryText("ASK {}")
	require.NoError(t, err)
	assert.Equal(t, "ASK {}", text)

	filename := filepath.Join(t.TempDir(), "q.rq")
	require.NoError(t, os.WriteFile(filename, []byte("SELECT * WHERE {}"), 0644))
	text, err = queryText(filename)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * WHERE {}", text)
}

const testData = `
<http://example.com/alice> <http://example.com/name> "Alice" .
<http://example.com/bob> <http://example.com/name> "Bob" .
<http://example.com/alice> <http://example.com/knows> <http://example.com/bob> .
`

func newTestEngine(t *testing.T) *query.Engine {
	store := memstore.New(memstore.Options{})
	_, err := store.LoadNTriples(testData)
	require.NoError(t, err)
	srv := httptest.NewServer(sparqlendpoint.New(query.New(query.Options{Local: store})))
	t.Cleanup(srv.Close)
	cfg := &config.Federation{
		Endpoints: []string{srv.URL + sparqlendpoint.Path},
		Oracle:    config.Oracle{Type: config.OracleNone},
	}
	return query.New(query.OptionsFromConfig(cfg, sparqlclient.New(sparqlclient.Options{})))
}

func Test_run(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	const prefix = "PREFIX : <http://example.com/>\n"
	tests := []struct {
		name  string
		query string
		opts  options
		exp   string
		has   []string
	}{{
		name:  "rows",
		query: `SELECT ?s ?n WHERE { ?s :name ?n } ORDER BY ?n`,
		opts:  options{Format: "rows"},
		exp: "1\t?s=<http://example.com/alice> ?n=\"Alice\"\n" +
			"2\t?s=<http://example.com/bob> ?n=\"Bob\"\n",
	}, {
		name:  "table",
		query: `SELECT ?n WHERE { ?s :name ?n }`,
		opts:  options{Format: "table"},
		has:   []string{"?n", `"Alice"`, `"Bob"`},
	}, {
		name:  "ask",
		query: `ASK { :alice :knows :bob }`,
		opts:  options{Format: "rows"},
		exp:   "true\n",
	}, {
		name:  "construct",
		query: `CONSTRUCT { ?o :knownBy ?s } WHERE { ?s :knows ?o }`,
		opts:  options{Format: "rows"},
		exp:   "<http://example.com/bob> <http://example.com/knownBy> <http://example.com/alice> .\n",
	}, {
		name:  "explain",
		query: `SELECT ?n WHERE { ?s :name ?n }`,
		opts:  options{Format: "rows", Explain: true},
		has:   []string{"SELECT\n", "Service <"},
	}}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			err := run(ctx, engine, prefix+test.query, &test.opts, &out, &errOut)
			require.NoError(t, err)
			if test.exp != "" {
				assert.Equal(t, test.exp, out.String())
			}
			for _, s := range test.has {
				assert.Contains(t, out.String(), s)
			}
			assert.Empty(t, errOut.String())
		})
	}
}

func Test_runVerbose(t *testing.T) {
	engine := newTestEngine(t)
	var out, errOut bytes.Buffer
	err := run(context.Background(), engine, `SELECT * WHERE { ?s ?p ?o }`,
		&options{Format: "rows", Verbose: true}, &out, &errOut)
	require.NoError(t, err)
	assert.Contains(t, errOut.String(), "query time: ")
	assert.Contains(t, errOut.String(), "elapsed time: ")

	err = run(context.Background(), engine, `SELECT * WHERE {`, &options{Format: "rows"}, &out, &errOut)
	assert.Error(t, err)
}
