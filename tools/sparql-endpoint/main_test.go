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
	"context"
	"os"
	"path/filepath"
	"testing"

	docopt "github.com/docopt/docopt-go"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseArgs(t *testing.T) {
	docopt.DefaultParser.HelpHandler = func(err error, usage string) {}
	opts, err := parseArgs([]string{"a.nt"})
	require.NoError(t, err)
	assert.Equal(t, options{Address: "localhost:8080", Files: []string{"a.nt"}}, *opts)

	opts, err = parseArgs([]string{"-v", "--address=:9000", "--union-default-graph", "a.nt", "b.nq"})
	require.NoError(t, err)
	assert.Equal(t, options{
		Address:           ":9000",
		UnionDefaultGraph: true,
		Verbose:           true,
		Files:             []string{"a.nt", "b.nq"},
	}, *opts)

	_, err = parseArgs([]string{})
	assert.Error(t, err)
}

func Test_load(t *testing.T) {
	dir := t.TempDir()
	triples := filepath.Join(dir, "a.nt")
	require.NoError(t, os.WriteFile(triples, []byte(
		"<http://example.com/a> <http://example.com/p> \"1\" .\n"), 0644))
	quads := filepath.Join(dir, "b.nq")
	require.NoError(t, os.WriteFile(quads, []byte(
		"<http://example.com/b> <http://example.com/p> \"2\" <http://example.com/g> .\n"), 0644))

	store, err := load(&options{Files: []string{triples, quads}, UnionDefaultGraph: true})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
	// With the union default graph, the named graph's triple matches too.
	matched, err := store.Match(context.Background(), nil, nil, rdf.IRI("http://example.com/p"), nil)
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	_, err = load(&options{Files: []string{filepath.Join(dir, "missing.nt")}})
	assert.Error(t, err)
}
