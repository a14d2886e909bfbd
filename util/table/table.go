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

// Package table formats rows of strings as a text table for terminals.
package table

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Options control how the table is generated. They can be combined with |.
type Options int

const (
	// HeaderRow separates the first row from the rest with a divider.
	HeaderRow Options = 1 << iota
	// SkipEmpty writes nothing when the table has no data rows.
	SkipEmpty
	// RightJustify pads cells on the left rather than the right.
	RightJustify
)

func (o Options) has(flag Options) bool {
	return o&flag != 0
}

// PrettyPrint writes rows as a table to dest. Rows may have different
// lengths; short rows are padded with empty cells. Newlines within a cell are
// written as spaces.
func PrettyPrint(dest io.Writer, rows [][]string, opts Options) {
	dataRows := len(rows)
	if opts.has(HeaderRow) {
		dataRows--
	}
	if len(rows) == 0 || (opts.has(SkipEmpty) && dataRows <= 0) {
		return
	}
	numCols := 0
	for _, r := range rows {
		if len(r) > numCols {
			numCols = len(r)
		}
	}
	widths := make([]int, numCols)
	cells := make([][]string, len(rows))
	for ridx, r := range rows {
		cells[ridx] = make([]string, numCols)
		for cidx := range cells[ridx] {
			if cidx < len(r) {
				cells[ridx][cidx] = strings.ReplaceAll(r[cidx], "\n", " ")
			}
			if w := charsWide(cells[ridx][cidx]); w > widths[cidx] {
				widths[cidx] = w
			}
		}
	}
	w := bufio.NewWriterSize(dest, 256)
	defer w.Flush()
	for ridx, r := range cells {
		for cidx, c := range r {
			pad := strings.Repeat(" ", widths[cidx]-charsWide(c))
			io.WriteString(w, " ")
			if opts.has(RightJustify) {
				io.WriteString(w, pad)
				io.WriteString(w, c)
			} else {
				io.WriteString(w, c)
				io.WriteString(w, pad)
			}
			io.WriteString(w, " |")
		}
		io.WriteString(w, "\n")
		if ridx == 0 && opts.has(HeaderRow) {
			for _, width := range widths {
				io.WriteString(w, " ")
				io.WriteString(w, strings.Repeat("-", width))
				io.WriteString(w, " |")
			}
			io.WriteString(w, "\n")
		}
	}
}

// charsWide estimates how many terminal columns s occupies. Combining
// sequences are normalized first so that "e" + U+0301 counts as one.
func charsWide(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}
