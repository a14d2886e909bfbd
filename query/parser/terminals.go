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

package parser

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kasei/kineo-federation/rdf"
	"github.com/vektah/goparsify"
)

// sparqlWS is a goparsify Whitespace parser that understands SPARQLs whitespace
// rules. Whitespace chars are ' ' \t \r \n only. # starts a comment which runs
// to the end of the line.
func sparqlWS(s *goparsify.State) {
	for s.Pos < len(s.Input) {
		switch s.Input[s.Pos] {
		case ' ', '\t', '\r', '\n':
			s.Pos++
		case '#':
			s.Pos++
			for s.Pos < len(s.Input) {
				c := s.Input[s.Pos]
				s.Pos++
				if c == '\n' || c == '\r' {
					break
				}
			}
		default:
			return
		}
	}
}

// isNameStart reports whether r may start a prefixed name's local part or a
// variable name (PN_CHARS_U).
func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// isNameChar reports whether r may appear within a prefixed name (PN_CHARS).
func isNameChar(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r) || r == '-' || r == '·' || unicode.Is(unicode.Mn, r)
}

func isVarChar(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r) || r == '·' || unicode.Is(unicode.Mn, r)
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// keyword returns a parser that matches the supplied keyword ignoring case. It
// doesn't match if the keyword is the start of a longer name, so "a" doesn't
// match "abc" and "true" doesn't match "true:x". The Token is the keyword as
// given.
func keyword(match string) goparsify.Parser {
	lenMatch := len(match)
	return goparsify.NewParser(match, func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		if len(in) < lenMatch || !strings.EqualFold(match, in[:lenMatch]) {
			s.ErrorHere(match)
			return
		}
		if len(in) > lenMatch {
			next, _ := utf8.DecodeRuneInString(in[lenMatch:])
			if isNameChar(next) || next == ':' {
				s.ErrorHere(match)
				return
			}
		}
		s.Advance(lenMatch)
		r.Token = match
	})
}

// iriRef parses an IRI in angle brackets. The Result is an *iriTok.
func iriRef() goparsify.Parser {
	return goparsify.NewParser("IRI", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		if len(in) == 0 || in[0] != '<' {
			s.ErrorHere("IRI")
			return
		}
		var b strings.Builder
		for i := 1; i < len(in); {
			c := in[i]
			switch {
			case c == '>':
				r.Result = &iriTok{pos: s.Pos, iri: b.String()}
				s.Advance(i + 1)
				return
			case c == '\\':
				n, ok := unescapeUChar(in[i:], &b)
				if !ok {
					s.ErrorHere("IRI")
					return
				}
				i += n
			case c <= ' ' || strings.IndexByte("<\"{}|^`", c) >= 0:
				s.ErrorHere("IRI")
				return
			case c >= utf8.RuneSelf:
				ch, w := utf8.DecodeRuneInString(in[i:])
				if ch == utf8.RuneError && w == 1 {
					s.ErrorHere("IRI")
					return
				}
				b.WriteString(in[i : i+w])
				i += w
			default:
				b.WriteByte(c)
				i++
			}
		}
		s.ErrorHere("IRI")
	})
}

// unescapeUChar decodes a \uXXXX or \UXXXXXXXX escape at the start of in,
// returning the number of bytes consumed.
func unescapeUChar(in string, b *strings.Builder) (int, bool) {
	if len(in) < 2 {
		return 0, false
	}
	digits := 0
	switch in[1] {
	case 'u':
		digits = 4
	case 'U':
		digits = 8
	default:
		return 0, false
	}
	if len(in) < 2+digits {
		return 0, false
	}
	v, err := strconv.ParseUint(in[2:2+digits], 16, 32)
	if err != nil || !utf8.ValidRune(rune(v)) {
		return 0, false
	}
	b.WriteRune(rune(v))
	return 2 + digits, true
}

// Characters that may be backslash-escaped in a prefixed name's local part.
const localEscapes = "_~.-!$&'()*+,;=/?#@%"

// prefixedName parses a name like foaf:name or :x, or a bare prefix like
// foaf: (with an empty local part). The Result is an *iriTok.
func prefixedName() goparsify.Parser {
	return goparsify.NewParser("prefixed name", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		i := 0
		for i < len(in) {
			c, size := utf8.DecodeRuneInString(in[i:])
			if i == 0 && !unicode.IsLetter(c) {
				break
			}
			if !isNameChar(c) && c != '.' {
				break
			}
			i += size
		}
		if i >= len(in) || in[i] != ':' || (i > 0 && in[i-1] == '.') {
			s.ErrorHere("prefixed name")
			return
		}
		prefix := in[:i]
		i++
		start := i
		// end is the end of the local part excluding any trailing dots,
		// which terminate the triple instead.
		end := i
	scan:
		for i < len(in) {
			c, size := utf8.DecodeRuneInString(in[i:])
			switch {
			case c == '\\' && i+1 < len(in) && strings.IndexByte(localEscapes, in[i+1]) >= 0:
				i += 2
			case c == '%' && i+2 < len(in) && isHex(in[i+1]) && isHex(in[i+2]):
				i += 3
			case c == '.' && i > start:
				i += size
				continue
			case c == ':' || (isNameChar(c) && (i > start || c != '-')) || (i == start && unicode.IsDigit(c)):
				i += size
			default:
				break scan
			}
			end = i
		}
		local := in[start:end]
		if strings.IndexByte(local, '\\') >= 0 {
			var b strings.Builder
			for j := 0; j < len(local); j++ {
				if local[j] == '\\' {
					j++
				}
				b.WriteByte(local[j])
			}
			local = b.String()
		}
		r.Result = &iriTok{pos: s.Pos, prefixed: true, prefix: prefix, local: local}
		s.Advance(end)
	})
}

// variable parses ?name or $name. The Result is a *varTok.
func variable() goparsify.Parser {
	return goparsify.NewParser("variable", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		if len(in) < 2 || (in[0] != '?' && in[0] != '$') {
			s.ErrorHere("variable")
			return
		}
		i := 1
		for i < len(in) {
			c, size := utf8.DecodeRuneInString(in[i:])
			if !isVarChar(c) {
				break
			}
			i += size
		}
		if i == 1 {
			s.ErrorHere("variable")
			return
		}
		r.Result = &varTok{name: in[1:i]}
		s.Advance(i)
	})
}

// blankLabel parses a blank node label like _:b1. The Result is a *bnodeTok.
func blankLabel() goparsify.Parser {
	return goparsify.NewParser("blank node", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		if !strings.HasPrefix(in, "_:") {
			s.ErrorHere("blank node")
			return
		}
		i, end := 2, 2
		for i < len(in) {
			c, size := utf8.DecodeRuneInString(in[i:])
			if i == 2 && !isNameStart(c) && !unicode.IsDigit(c) {
				break
			}
			if c == '.' {
				i += size
				continue
			}
			if !isNameChar(c) {
				break
			}
			i += size
			end = i
		}
		if end == 2 {
			s.ErrorHere("blank node label")
			return
		}
		r.Result = &bnodeTok{label: in[2:end]}
		s.Advance(end)
	})
}

// stringLiteral parses a quoted string in any of SPARQL's four quoting styles.
// The Result is the unescaped string.
func stringLiteral() goparsify.Parser {
	return goparsify.NewParser("string", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		if len(in) == 0 || (in[0] != '"' && in[0] != '\'') {
			s.ErrorHere("string")
			return
		}
		delim := in[:1]
		if long := strings.Repeat(delim, 3); strings.HasPrefix(in, long) {
			delim = long
		}
		var b strings.Builder
		for i := len(delim); i < len(in); {
			if strings.HasPrefix(in[i:], delim) {
				r.Result = b.String()
				s.Advance(i + len(delim))
				return
			}
			c := in[i]
			switch {
			case c == '\\':
				n, ok := unescapeString(in[i:], &b)
				if !ok {
					s.ErrorHere("valid escape sequence")
					return
				}
				i += n
			case len(delim) == 1 && (c == '\n' || c == '\r'):
				s.ErrorHere("end of string")
				return
			default:
				b.WriteByte(c)
				i++
			}
		}
		s.ErrorHere("end of string")
	})
}

func unescapeString(in string, b *strings.Builder) (int, bool) {
	if len(in) < 2 {
		return 0, false
	}
	switch in[1] {
	case 't':
		b.WriteByte('\t')
	case 'b':
		b.WriteByte('\b')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 'f':
		b.WriteByte('\f')
	case '"', '\'', '\\':
		b.WriteByte(in[1])
	case 'u', 'U':
		return unescapeUChar(in, b)
	default:
		return 0, false
	}
	return 2, true
}

// langTag parses a language tag like @en-GB. The Result is the tag without
// the '@'.
func langTag() goparsify.Parser {
	return goparsify.NewParser("language tag", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		if len(in) < 2 || in[0] != '@' {
			s.ErrorHere("language tag")
			return
		}
		i := 1
		for i < len(in) && isAlpha(in[i]) {
			i++
		}
		if i == 1 {
			s.ErrorHere("language tag")
			return
		}
		for i+1 < len(in) && in[i] == '-' && isAlnum(in[i+1]) {
			i++
			for i < len(in) && isAlnum(in[i]) {
				i++
			}
		}
		r.Result = in[1:i]
		s.Advance(i)
	})
}

func isAlpha(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isAlnum(c byte) bool {
	return isDigit(c) || isAlpha(c)
}

// numericLiteral parses an integer, decimal or double, keeping its lexical
// form. Leading signs are only accepted if signed is set; in expressions
// they're unary operators instead. The Result is a *literalTok.
func numericLiteral(signed bool) goparsify.Parser {
	return goparsify.NewParser("number", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		i := 0
		if signed && len(in) > 0 && (in[0] == '+' || in[0] == '-') {
			i++
		}
		intStart := i
		for i < len(in) && isDigit(in[i]) {
			i++
		}
		intDigits := i - intStart
		datatype := rdf.XSDInteger
		if i < len(in) && in[i] == '.' {
			j := i + 1
			for j < len(in) && isDigit(in[j]) {
				j++
			}
			// "1." is the integer 1 followed by a '.', unless there's an
			// exponent.
			if j > i+1 || (intDigits > 0 && exponentLen(in[j:]) > 0) {
				i = j
				datatype = rdf.XSDDecimal
			}
		}
		if intDigits == 0 && datatype == rdf.XSDInteger {
			s.ErrorHere("number")
			return
		}
		if n := exponentLen(in[i:]); n > 0 {
			i += n
			datatype = rdf.XSDDouble
		}
		r.Result = &literalTok{lexical: in[:i], datatype: &iriTok{iri: datatype}}
		s.Advance(i)
	})
}

// exponentLen returns the length of an exponent like "e-10" at the start of
// in, or 0.
func exponentLen(in string) int {
	if len(in) < 2 || (in[0] != 'e' && in[0] != 'E') {
		return 0
	}
	i := 1
	if in[i] == '+' || in[i] == '-' {
		i++
	}
	start := i
	for i < len(in) && isDigit(in[i]) {
		i++
	}
	if i == start {
		return 0
	}
	return i
}

// uint64Literal parses a uint64 in base 10 from state.
func uint64Literal() goparsify.Parser {
	return goparsify.NewParser("uint64Literal", func(ps *goparsify.State, node *goparsify.Result) {
		ps.WS(ps)
		maxPos := ps.Pos
		len := len(ps.Input)
		for maxPos < len && isDigit(ps.Input[maxPos]) {
			maxPos++
		}
		if maxPos == ps.Pos {
			ps.ErrorHere("number")
			return
		}
		v, err := strconv.ParseUint(ps.Input[ps.Pos:maxPos], 10, 64)
		if err != nil {
			ps.ErrorHere("number")
			return
		}
		node.Result = v
		ps.Pos = maxPos
	})
}

// pathModifier parses one of the path modifiers '*', '+' or '?'. A '?' that
// starts a variable name isn't a modifier. The Token is the modifier.
func pathModifier() goparsify.Parser {
	return goparsify.NewParser("path modifier", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		if len(in) == 0 || strings.IndexByte("*+?", in[0]) < 0 {
			s.ErrorHere("path modifier")
			return
		}
		if in[0] == '?' && len(in) > 1 {
			if next, _ := utf8.DecodeRuneInString(in[1:]); isVarChar(next) {
				s.ErrorHere("path modifier")
				return
			}
		}
		r.Token = in[:1]
		s.Advance(1)
	})
}

// operator returns a parser for the first of the given operators that
// matches. Longer operators must come before their prefixes. The Token is the
// operator.
func operator(ops ...string) goparsify.Parser {
	return goparsify.NewParser(strings.Join(ops, " "), func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		for _, op := range ops {
			if strings.HasPrefix(in, op) {
				r.Token = op
				s.Advance(len(op))
				return
			}
		}
		s.ErrorHere(strings.Join(ops, ", "))
	})
}

// functionName parses the name of a built-in function when it's followed by
// an argument list. The Token is the upper-case name.
func functionName(names map[string]bool) goparsify.Parser {
	return goparsify.NewParser("function", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		i := 0
		for i < len(in) && (isAlnum(in[i]) || in[i] == '_') {
			i++
		}
		name := strings.ToUpper(in[:i])
		if i == 0 || !names[name] || !strings.HasPrefix(strings.TrimLeft(in[i:], " \t\r\n"), "(") {
			s.ErrorHere("function name")
			return
		}
		r.Token = name
		s.Advance(i)
	})
}

// repeatZeroOrMore matches zero or more parsers and returns the value as
// .Child[n]. An optional separator can be provided and that value will be
// consumed but not returned. Only one separator can be provided.
//
// goparsify's Some loops forever on a parser that succeeds without consuming
// input, so each repetition must advance.
func repeatZeroOrMore(p goparsify.Parserish, sep ...goparsify.Parserish) goparsify.Parser {
	return goparsify.Some(advancing(p), sep...)
}

// repeatOneOrMore matches one or more parsers and returns the value as
// .Child[n]. An optional separator can be provided and that value will be
// consumed but not returned. Only one separator can be provided.
func repeatOneOrMore(p goparsify.Parserish, sep ...goparsify.Parserish) goparsify.Parser {
	return goparsify.Many(advancing(p), sep...)
}

// advancing returns a parser that fails where p matches without consuming
// any input.
func advancing(p goparsify.Parserish) goparsify.Parser {
	inner := goparsify.Parsify(p)
	return func(s *goparsify.State, r *goparsify.Result) {
		start := s.Pos
		inner(s, r)
		if !s.Errored() && s.Pos == start {
			s.ErrorHere("input")
		}
	}
}

// oneOf matches the first successful parser, like goparsify.Any. Any measures
// its alternatives' failures against the last recovered error, and succeeds
// without matching anything when that error is further along the input than
// all of them. oneOf clears the recovered error first.
func oneOf(parsers ...goparsify.Parserish) goparsify.Parser {
	alternatives := goparsify.Any(parsers...)
	return func(s *goparsify.State, r *goparsify.Result) {
		if !s.Errored() {
			s.Error = goparsify.Error{}
		}
		alternatives(s, r)
	}
}
