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

package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_PrettyPrint(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		opts Options
		exp  string
	}{
		{
			name: "header",
			rows: [][]string{{"s", "name"}, {"<http://x/alice>", `"Alice"`}},
			opts: HeaderRow,
			exp: "" +
				" s                | name    |\n" +
				" ---------------- | ------- |\n" +
				` <http://x/alice> | "Alice" |` + "\n",
		},
		{
			name: "ragged_right_justified",
			rows: [][]string{{"1", "22"}, {"333"}},
			opts: RightJustify,
			exp: "" +
				"   1 | 22 |\n" +
				" 333 |    |\n",
		},
		{
			name: "skip_empty",
			rows: [][]string{{"s", "name"}},
			opts: HeaderRow | SkipEmpty,
			exp:  "",
		},
		{
			name: "empty",
			rows: nil,
			exp:  "",
		},
		{
			name: "combining_characters",
			rows: [][]string{{"é"}, {"ab"}},
			exp: "" +
				" é  |\n" +
				" ab |\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var b strings.Builder
			PrettyPrint(&b, test.rows, test.opts)
			assert.Equal(t, test.exp, b.String())
		})
	}
}
