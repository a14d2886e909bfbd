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
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// errUnbound is returned when an expression refers to an unbound variable.
var errUnbound = errors.New("unbound variable")

// typeError returns an error for an operation applied to the wrong kinds of
// terms.
func typeError(op string, args ...rdf.Term) error {
	return fmt.Errorf("type error: %s applied to %v", op, args)
}

// evaluator computes expressions over the rows of one set of columns. It's
// not safe for concurrent use.
type evaluator struct {
	cols    Columns
	indexes map[string]int
	// Fixed for the evaluator, so NOW() is the same for every row.
	now     time.Time
	regexps map[string]*regexp.Regexp
	// Blank nodes made by BNODE with an argument, by label.
	bnodes map[string]rdf.BlankNode
}

func newEvaluator(cols Columns) *evaluator {
	indexes := make(map[string]int, len(cols))
	for i, c := range cols {
		indexes[c.Name] = i
	}
	return &evaluator{
		cols:    cols,
		indexes: indexes,
		now:     time.Now(),
		regexps: make(map[string]*regexp.Regexp),
	}
}

// holds returns the effective boolean value of e for row. Errors are false.
func (ev *evaluator) holds(e algebra.Expression, row []rdf.Term) bool {
	v, err := ev.eval(e, row)
	if err != nil {
		return false
	}
	b, err := rdf.EffectiveBooleanValue(v)
	return err == nil && b
}

func (ev *evaluator) lookup(row []rdf.Term, name string) rdf.Term {
	if i, ok := ev.indexes[name]; ok {
		return row[i]
	}
	return nil
}

// eval returns the value of e for row.
func (ev *evaluator) eval(e algebra.Expression, row []rdf.Term) (rdf.Term, error) {
	switch e := e.(type) {
	case *algebra.Variable:
		if v := ev.lookup(row, e.Name); v != nil {
			return v, nil
		}
		return nil, errUnbound
	case *algebra.Constant:
		return e.Term, nil
	case *algebra.Unary:
		return ev.unary(e, row)
	case *algebra.Binary:
		return ev.binary(e, row)
	case *algebra.Call:
		return ev.call(e, row)
	case *algebra.AggregateExpr:
		return nil, fmt.Errorf("aggregate %v outside of a group", e)
	}
	return nil, fmt.Errorf("unexpected expression %T", e)
}

func (ev *evaluator) ebv(e algebra.Expression, row []rdf.Term) (bool, error) {
	v, err := ev.eval(e, row)
	if err != nil {
		return false, err
	}
	return rdf.EffectiveBooleanValue(v)
}

func (ev *evaluator) unary(e *algebra.Unary, row []rdf.Term) (rdf.Term, error) {
	if e.Op == algebra.OpNot {
		b, err := ev.ebv(e.Arg, row)
		if err != nil {
			return nil, err
		}
		return rdf.NewBoolean(!b), nil
	}
	arg, err := ev.eval(e.Arg, row)
	if err != nil {
		return nil, err
	}
	l, ok := arg.(rdf.Literal)
	v, isNum := l.Numeric()
	if !ok || !isNum {
		return nil, typeError(e.Op, arg)
	}
	if e.Op == algebra.OpNegate {
		return numericResult(-v, l.Datatype), nil
	}
	return l, nil
}

func (ev *evaluator) binary(e *algebra.Binary, row []rdf.Term) (rdf.Term, error) {
	switch e.Op {
	case algebra.OpOr, algebra.OpAnd:
		return ev.logical(e, row)
	}
	left, err := ev.eval(e.Left, row)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(e.Right, row)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case algebra.OpEqual, algebra.OpNotEqual:
		eq, err := termsEqual(left, right)
		if err != nil {
			return nil, err
		}
		return rdf.NewBoolean(eq == (e.Op == algebra.OpEqual)), nil
	case algebra.OpLess, algebra.OpLessEq, algebra.OpGreater, algebra.OpGreaterEq:
		c, err := compareValues(left, right)
		if err != nil {
			return nil, err
		}
		var res bool
		switch e.Op {
		case algebra.OpLess:
			res = c < 0
		case algebra.OpLessEq:
			res = c <= 0
		case algebra.OpGreater:
			res = c > 0
		default:
			res = c >= 0
		}
		return rdf.NewBoolean(res), nil
	case algebra.OpAdd, algebra.OpSubtract, algebra.OpMultiply, algebra.OpDivide:
		return arithmetic(e.Op, left, right)
	}
	return nil, fmt.Errorf("unexpected operator %s", e.Op)
}

// logical implements || and && with SPARQL's error handling: an error on one
// side is hidden if the other side decides the result.
func (ev *evaluator) logical(e *algebra.Binary, row []rdf.Term) (rdf.Term, error) {
	l, lerr := ev.ebv(e.Left, row)
	r, rerr := ev.ebv(e.Right, row)
	decisive := e.Op == algebra.OpOr
	switch {
	case lerr == nil && l == decisive, rerr == nil && r == decisive:
		return rdf.NewBoolean(decisive), nil
	case lerr != nil:
		return nil, lerr
	case rerr != nil:
		return nil, rerr
	}
	return rdf.NewBoolean(!decisive), nil
}

// isString returns true for simple literals and xsd:string literals.
func isString(l rdf.Literal) bool {
	return l.Datatype == rdf.XSDString || (l.Datatype == "" && l.Language == "")
}

// termsEqual implements the = operator.
func termsEqual(a, b rdf.Term) (bool, error) {
	la, aok := a.(rdf.Literal)
	lb, bok := b.(rdf.Literal)
	if !aok || !bok {
		return a == b, nil
	}
	if na, ok := la.Numeric(); ok {
		if nb, ok := lb.Numeric(); ok {
			return na == nb, nil
		}
		return false, nil
	}
	if la.Datatype == rdf.XSDBoolean && lb.Datatype == rdf.XSDBoolean {
		return literalBool(la) == literalBool(lb), nil
	}
	if la == lb {
		return true, nil
	}
	if la.Datatype == lb.Datatype && !isString(la) && la.Datatype != rdf.RDFLangString &&
		la.Datatype != rdf.XSDBoolean {
		// Different lexical forms of an unknown datatype may denote the same
		// value.
		return false, typeError("=", a, b)
	}
	return false, nil
}

func literalBool(l rdf.Literal) bool {
	return l.Lexical == "true" || l.Lexical == "1"
}

// compareValues orders two terms for <, <=, > and >=. Only numbers, strings
// with the same language, booleans, and literals of the same datatype
// compare.
func compareValues(a, b rdf.Term) (int, error) {
	la, aok := a.(rdf.Literal)
	lb, bok := b.(rdf.Literal)
	if !aok || !bok {
		return 0, typeError("comparison", a, b)
	}
	if na, ok := la.Numeric(); ok {
		nb, ok := lb.Numeric()
		if !ok || math.IsNaN(na) || math.IsNaN(nb) {
			return 0, typeError("comparison", a, b)
		}
		switch {
		case na < nb:
			return -1, nil
		case na > nb:
			return 1, nil
		}
		return 0, nil
	}
	switch {
	case isString(la) && isString(lb):
	case la.Datatype == rdf.RDFLangString && lb.Datatype == rdf.RDFLangString && la.Language == lb.Language:
	case la.Datatype == rdf.XSDBoolean && lb.Datatype == rdf.XSDBoolean:
		return compareBools(literalBool(la), literalBool(lb)), nil
	case la.Datatype == lb.Datatype && la.Datatype != rdf.RDFLangString:
	default:
		return 0, typeError("comparison", a, b)
	}
	return strings.Compare(la.Lexical, lb.Lexical), nil
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// numericType returns the datatype of an arithmetic result on operands of
// the given types.
func numericType(a, b rdf.Literal) rdf.IRI {
	switch {
	case a.Datatype == rdf.XSDDouble || b.Datatype == rdf.XSDDouble:
		return rdf.XSDDouble
	case a.Datatype == rdf.XSDFloat || b.Datatype == rdf.XSDFloat:
		return rdf.XSDFloat
	case a.IsInteger() && b.IsInteger():
		return rdf.XSDInteger
	}
	return rdf.XSDDecimal
}

func numericResult(v float64, datatype rdf.IRI) rdf.Literal {
	switch datatype {
	case rdf.XSDDouble:
		return rdf.NewDouble(v)
	case rdf.XSDFloat:
		d := rdf.NewDouble(v)
		d.Datatype = rdf.XSDFloat
		return d
	case rdf.XSDDecimal:
		return rdf.NewDecimal(v)
	}
	if v == math.Trunc(v) && math.Abs(v) < 1<<63 {
		return rdf.NewInteger(int64(v))
	}
	return rdf.NewDecimal(v)
}

func arithmetic(op string, a, b rdf.Term) (rdf.Term, error) {
	la, aok := a.(rdf.Literal)
	lb, bok := b.(rdf.Literal)
	x, xok := la.Numeric()
	y, yok := lb.Numeric()
	if !aok || !bok || !xok || !yok {
		return nil, typeError(op, a, b)
	}
	datatype := numericType(la, lb)
	var v float64
	switch op {
	case algebra.OpAdd:
		v = x + y
	case algebra.OpSubtract:
		v = x - y
	case algebra.OpMultiply:
		v = x * y
	case algebra.OpDivide:
		if y == 0 && datatype != rdf.XSDDouble && datatype != rdf.XSDFloat {
			return nil, fmt.Errorf("division by zero: %v / %v", a, b)
		}
		v = x / y
		if datatype == rdf.XSDInteger {
			datatype = rdf.XSDDecimal
		}
	}
	return numericResult(v, datatype), nil
}

// stringArg returns the lexical form of a string literal argument.
func stringArg(fn string, t rdf.Term) (rdf.Literal, error) {
	l, ok := t.(rdf.Literal)
	if !ok || !(isString(l) || l.Datatype == rdf.RDFLangString) {
		return rdf.Literal{}, typeError(fn, t)
	}
	return l, nil
}

// withLexical returns a literal like l, keeping its language tag, but with
// a new lexical form.
func withLexical(l rdf.Literal, lexical string) rdf.Literal {
	if l.Language != "" {
		return rdf.NewLangString(lexical, l.Language)
	}
	return rdf.NewString(lexical)
}

// argsCompatible checks the language tags of two string arguments, as
// required by CONTAINS, STRSTARTS, and friends.
func argsCompatible(fn string, a, b rdf.Literal) error {
	if b.Language == "" || a.Language == b.Language {
		return nil
	}
	return typeError(fn, a, b)
}

func (ev *evaluator) call(e *algebra.Call, row []rdf.Term) (rdf.Term, error) {
	// Functions that don't evaluate all of their arguments.
	switch e.Func {
	case "BOUND":
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("BOUND takes 1 argument, got %d", len(e.Args))
		}
		v, ok := e.Args[0].(*algebra.Variable)
		if !ok {
			return nil, fmt.Errorf("BOUND requires a variable, got %v", e.Args[0])
		}
		return rdf.NewBoolean(ev.lookup(row, v.Name) != nil), nil
	case "IF":
		if len(e.Args) != 3 {
			return nil, fmt.Errorf("IF takes 3 arguments, got %d", len(e.Args))
		}
		cond, err := ev.ebv(e.Args[0], row)
		if err != nil {
			return nil, err
		}
		if cond {
			return ev.eval(e.Args[1], row)
		}
		return ev.eval(e.Args[2], row)
	case "COALESCE":
		for _, arg := range e.Args {
			if v, err := ev.eval(arg, row); err == nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("COALESCE: no argument has a value")
	}
	args := make([]rdf.Term, len(e.Args))
	for i, arg := range e.Args {
		v, err := ev.eval(arg, row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return ev.builtin(e.Func, args)
}

// arity describes how many arguments a built-in function accepts.
type arity struct{ min, max int }

var arities = map[string]arity{
	"STR": {1, 1}, "LANG": {1, 1}, "LANGMATCHES": {2, 2}, "DATATYPE": {1, 1},
	"IRI": {1, 1}, "URI": {1, 1}, "BNODE": {0, 1}, "RAND": {0, 0}, "ABS": {1, 1},
	"CEIL": {1, 1}, "FLOOR": {1, 1}, "ROUND": {1, 1}, "CONCAT": {0, math.MaxInt32},
	"STRLEN": {1, 1}, "UCASE": {1, 1}, "LCASE": {1, 1}, "ENCODE_FOR_URI": {1, 1},
	"CONTAINS": {2, 2}, "STRSTARTS": {2, 2}, "STRENDS": {2, 2}, "STRBEFORE": {2, 2},
	"STRAFTER": {2, 2}, "YEAR": {1, 1}, "MONTH": {1, 1}, "DAY": {1, 1}, "HOURS": {1, 1},
	"MINUTES": {1, 1}, "SECONDS": {1, 1}, "TIMEZONE": {1, 1}, "TZ": {1, 1}, "NOW": {0, 0},
	"UUID": {0, 0}, "STRUUID": {0, 0}, "MD5": {1, 1}, "SHA1": {1, 1}, "SHA256": {1, 1},
	"SHA384": {1, 1}, "SHA512": {1, 1}, "STRLANG": {2, 2}, "STRDT": {2, 2},
	"SAMETERM": {2, 2}, "ISIRI": {1, 1}, "ISURI": {1, 1}, "ISBLANK": {1, 1},
	"ISLITERAL": {1, 1}, "ISNUMERIC": {1, 1}, "REGEX": {2, 3}, "SUBSTR": {2, 3},
	"REPLACE": {3, 4},
}

func (ev *evaluator) builtin(fn string, args []rdf.Term) (rdf.Term, error) {
	if strings.HasPrefix(fn, "<") {
		return cast(rdf.IRI(strings.Trim(fn, "<>")), args)
	}
	a, known := arities[fn]
	if !known {
		return nil, fmt.Errorf("unsupported function %s", fn)
	}
	if len(args) < a.min || len(args) > a.max {
		return nil, fmt.Errorf("%s called with %d arguments", fn, len(args))
	}
	switch fn {
	case "STR":
		switch t := args[0].(type) {
		case rdf.IRI:
			return rdf.NewString(string(t)), nil
		case rdf.Literal:
			return rdf.NewString(t.Lexical), nil
		}
		return nil, typeError(fn, args...)
	case "LANG":
		l, ok := args[0].(rdf.Literal)
		if !ok {
			return nil, typeError(fn, args...)
		}
		return rdf.NewString(l.Language), nil
	case "LANGMATCHES":
		tag, err := stringArg(fn, args[0])
		if err != nil {
			return nil, err
		}
		rng, err := stringArg(fn, args[1])
		if err != nil {
			return nil, err
		}
		return rdf.NewBoolean(langMatches(tag.Lexical, rng.Lexical)), nil
	case "DATATYPE":
		l, ok := args[0].(rdf.Literal)
		if !ok {
			return nil, typeError(fn, args...)
		}
		if l.Datatype == "" {
			return rdf.IRI(rdf.XSDString), nil
		}
		return l.Datatype, nil
	case "IRI", "URI":
		switch t := args[0].(type) {
		case rdf.IRI:
			return t, nil
		case rdf.Literal:
			if isString(t) {
				return rdf.IRI(t.Lexical), nil
			}
		}
		return nil, typeError(fn, args...)
	case "BNODE":
		if len(args) == 0 {
			return rdf.BlankNode("b" + strings.Replace(uuid.NewString(), "-", "", -1)), nil
		}
		l, err := stringArg(fn, args[0])
		if err != nil {
			return nil, err
		}
		if ev.bnodes == nil {
			ev.bnodes = make(map[string]rdf.BlankNode)
		}
		if b, ok := ev.bnodes[l.Lexical]; ok {
			return b, nil
		}
		b := rdf.BlankNode("b" + strings.Replace(uuid.NewString(), "-", "", -1))
		ev.bnodes[l.Lexical] = b
		return b, nil
	case "RAND":
		return rdf.NewDouble(rand.Float64()), nil
	case "ABS", "CEIL", "FLOOR", "ROUND":
		l, ok := args[0].(rdf.Literal)
		v, isNum := l.Numeric()
		if !ok || !isNum {
			return nil, typeError(fn, args...)
		}
		switch fn {
		case "ABS":
			v = math.Abs(v)
		case "CEIL":
			v = math.Ceil(v)
		case "FLOOR":
			v = math.Floor(v)
		case "ROUND":
			v = math.Floor(v + 0.5)
		}
		return numericResult(v, numericType(l, l)), nil
	case "CONCAT":
		var b strings.Builder
		lang := ""
		for i, arg := range args {
			l, err := stringArg(fn, arg)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				lang = l.Language
			} else if l.Language != lang {
				lang = ""
			}
			b.WriteString(l.Lexical)
		}
		if lang != "" {
			return rdf.NewLangString(b.String(), lang), nil
		}
		return rdf.NewString(b.String()), nil
	case "STRLEN", "UCASE", "LCASE", "ENCODE_FOR_URI", "MD5", "SHA1", "SHA256", "SHA384", "SHA512":
		l, err := stringArg(fn, args[0])
		if err != nil {
			return nil, err
		}
		return stringFunction(fn, l), nil
	case "CONTAINS", "STRSTARTS", "STRENDS", "STRBEFORE", "STRAFTER":
		a, err := stringArg(fn, args[0])
		if err != nil {
			return nil, err
		}
		b, err := stringArg(fn, args[1])
		if err != nil {
			return nil, err
		}
		if err := argsCompatible(fn, a, b); err != nil {
			return nil, err
		}
		return substringFunction(fn, a, b), nil
	case "YEAR", "MONTH", "DAY", "HOURS", "MINUTES", "SECONDS", "TIMEZONE", "TZ":
		return dateTimeFunction(fn, args[0])
	case "NOW":
		return rdf.NewTyped(ev.now.UTC().Format(time.RFC3339Nano), rdf.XSD+"dateTime"), nil
	case "UUID":
		return rdf.IRI("urn:uuid:" + uuid.NewString()), nil
	case "STRUUID":
		return rdf.NewString(uuid.NewString()), nil
	case "STRLANG":
		l, ok := args[0].(rdf.Literal)
		lang, err := stringArg(fn, args[1])
		if !ok || !isString(l) || err != nil || lang.Lexical == "" {
			return nil, typeError(fn, args...)
		}
		return rdf.NewLangString(l.Lexical, lang.Lexical), nil
	case "STRDT":
		l, ok := args[0].(rdf.Literal)
		dt, isIRI := args[1].(rdf.IRI)
		if !ok || !isString(l) || !isIRI {
			return nil, typeError(fn, args...)
		}
		return rdf.NewTyped(l.Lexical, dt), nil
	case "SAMETERM":
		return rdf.NewBoolean(args[0] == args[1]), nil
	case "ISIRI", "ISURI":
		_, ok := args[0].(rdf.IRI)
		return rdf.NewBoolean(ok), nil
	case "ISBLANK":
		_, ok := args[0].(rdf.BlankNode)
		return rdf.NewBoolean(ok), nil
	case "ISLITERAL":
		_, ok := args[0].(rdf.Literal)
		return rdf.NewBoolean(ok), nil
	case "ISNUMERIC":
		l, ok := args[0].(rdf.Literal)
		_, valid := l.Numeric()
		return rdf.NewBoolean(ok && valid), nil
	case "REGEX":
		text, err := stringArg(fn, args[0])
		if err != nil {
			return nil, err
		}
		re, err := ev.regexp(args[1:])
		if err != nil {
			return nil, err
		}
		return rdf.NewBoolean(re.MatchString(text.Lexical)), nil
	case "REPLACE":
		text, err := stringArg(fn, args[0])
		if err != nil {
			return nil, err
		}
		patternArgs := []rdf.Term{args[1]}
		if len(args) == 4 {
			patternArgs = append(patternArgs, args[3])
		}
		re, err := ev.regexp(patternArgs)
		if err != nil {
			return nil, err
		}
		repl, err := stringArg(fn, args[2])
		if err != nil {
			return nil, err
		}
		return withLexical(text, re.ReplaceAllString(text.Lexical, repl.Lexical)), nil
	case "SUBSTR":
		return substr(args)
	}
	return nil, fmt.Errorf("unsupported function %s", fn)
}

func langMatches(tag, rng string) bool {
	tag, rng = strings.ToLower(tag), strings.ToLower(rng)
	if rng == "*" {
		return tag != ""
	}
	return tag == rng || strings.HasPrefix(tag, rng+"-")
}

func stringFunction(fn string, l rdf.Literal) rdf.Term {
	var h hash.Hash
	switch fn {
	case "STRLEN":
		return rdf.NewInteger(int64(utf8.RuneCountInString(l.Lexical)))
	case "UCASE":
		return withLexical(l, cases.Upper(language.Und).String(l.Lexical))
	case "LCASE":
		return withLexical(l, cases.Lower(language.Und).String(l.Lexical))
	case "ENCODE_FOR_URI":
		return rdf.NewString(strings.Replace(url.QueryEscape(l.Lexical), "+", "%20", -1))
	case "MD5":
		h = md5.New()
	case "SHA1":
		h = sha1.New()
	case "SHA256":
		h = sha256.New()
	case "SHA384":
		h = sha512.New384()
	case "SHA512":
		h = sha512.New()
	}
	h.Write([]byte(l.Lexical))
	return rdf.NewString(hex.EncodeToString(h.Sum(nil)))
}

func substringFunction(fn string, a, b rdf.Literal) rdf.Term {
	switch fn {
	case "CONTAINS":
		return rdf.NewBoolean(strings.Contains(a.Lexical, b.Lexical))
	case "STRSTARTS":
		return rdf.NewBoolean(strings.HasPrefix(a.Lexical, b.Lexical))
	case "STRENDS":
		return rdf.NewBoolean(strings.HasSuffix(a.Lexical, b.Lexical))
	}
	i := strings.Index(a.Lexical, b.Lexical)
	if i < 0 {
		return rdf.NewString("")
	}
	if fn == "STRBEFORE" {
		return withLexical(a, a.Lexical[:i])
	}
	return withLexical(a, a.Lexical[i+len(b.Lexical):])
}

func substr(args []rdf.Term) (rdf.Term, error) {
	text, err := stringArg("SUBSTR", args[0])
	if err != nil {
		return nil, err
	}
	numberArg := func(t rdf.Term) (int, error) {
		l, _ := t.(rdf.Literal)
		v, ok := l.Numeric()
		if !ok {
			return 0, typeError("SUBSTR", args...)
		}
		return int(math.Floor(v + 0.5)), nil
	}
	runes := []rune(text.Lexical)
	start, err := numberArg(args[1])
	if err != nil {
		return nil, err
	}
	end := len(runes) + 1
	if len(args) == 3 {
		length, err := numberArg(args[2])
		if err != nil {
			return nil, err
		}
		end = start + length
	}
	// Positions are 1-based, and out of range positions are clamped.
	from, to := max(start, 1)-1, min(end, len(runes)+1)-1
	if to <= from {
		return withLexical(text, ""), nil
	}
	return withLexical(text, string(runes[from:to])), nil
}

// regexp compiles a pattern with optional flags, caching the result.
func (ev *evaluator) regexp(args []rdf.Term) (*regexp.Regexp, error) {
	pattern, err := stringArg("REGEX", args[0])
	if err != nil {
		return nil, err
	}
	flags := ""
	if len(args) == 2 {
		f, err := stringArg("REGEX", args[1])
		if err != nil {
			return nil, err
		}
		flags = f.Lexical
	}
	key := flags + "/" + pattern.Lexical
	if re, ok := ev.regexps[key]; ok {
		return re, nil
	}
	expr := pattern.Lexical
	if flags != "" {
		goFlags := strings.Map(func(r rune) rune {
			if strings.ContainsRune("ism", r) {
				return r
			}
			return -1
		}, flags)
		if strings.ContainsRune(flags, 'q') {
			expr = regexp.QuoteMeta(expr)
		}
		if goFlags != "" {
			expr = "(?" + goFlags + ")" + expr
		}
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression %q: %v", pattern.Lexical, err)
	}
	ev.regexps[key] = re
	return re, nil
}

func dateTimeFunction(fn string, t rdf.Term) (rdf.Term, error) {
	l, ok := t.(rdf.Literal)
	if !ok || (l.Datatype != rdf.XSD+"dateTime" && l.Datatype != rdf.XSD+"date") {
		return nil, typeError(fn, t)
	}
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02Z07:00", "2006-01-02"}
	var tm time.Time
	var err error
	for _, layout := range layouts {
		if tm, err = time.Parse(layout, l.Lexical); err == nil {
			break
		}
	}
	if err != nil {
		return nil, typeError(fn, t)
	}
	hasZone := strings.HasSuffix(l.Lexical, "Z") || strings.LastIndexAny(l.Lexical, "+-") > len("2006-01-02")
	switch fn {
	case "YEAR":
		return rdf.NewInteger(int64(tm.Year())), nil
	case "MONTH":
		return rdf.NewInteger(int64(tm.Month())), nil
	case "DAY":
		return rdf.NewInteger(int64(tm.Day())), nil
	case "HOURS":
		return rdf.NewInteger(int64(tm.Hour())), nil
	case "MINUTES":
		return rdf.NewInteger(int64(tm.Minute())), nil
	case "SECONDS":
		secs := float64(tm.Second()) + float64(tm.Nanosecond())/1e9
		return rdf.NewDecimal(secs), nil
	case "TZ":
		if !hasZone {
			return rdf.NewString(""), nil
		}
		if _, offset := tm.Zone(); offset == 0 {
			return rdf.NewString("Z"), nil
		}
		return rdf.NewString(tm.Format("-07:00")), nil
	}
	// TIMEZONE
	if !hasZone {
		return nil, fmt.Errorf("TIMEZONE: %v has no timezone", t)
	}
	_, offset := tm.Zone()
	d := time.Duration(offset) * time.Second
	lexical := "PT0S"
	if d != 0 {
		sign := ""
		if d < 0 {
			sign, d = "-", -d
		}
		lexical = sign + "PT" + strings.TrimSuffix(strings.TrimSuffix(d.String(), "0s"), "0m")
		lexical = strings.ToUpper(lexical)
	}
	return rdf.NewTyped(lexical, rdf.XSD+"dayTimeDuration"), nil
}

// cast implements the XSD constructor functions such as xsd:integer(?x).
func cast(datatype rdf.IRI, args []rdf.Term) (rdf.Term, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%v called with %d arguments", datatype, len(args))
	}
	var lexical string
	switch t := args[0].(type) {
	case rdf.Literal:
		lexical = strings.TrimSpace(t.Lexical)
	case rdf.IRI:
		if datatype != rdf.XSDString {
			return nil, typeError(datatype.String(), t)
		}
		lexical = string(t)
	default:
		return nil, typeError(datatype.String(), t)
	}
	switch datatype {
	case rdf.XSDString:
		return rdf.NewString(lexical), nil
	case rdf.XSDBoolean:
		switch lexical {
		case "true", "1":
			return rdf.NewBoolean(true), nil
		case "false", "0":
			return rdf.NewBoolean(false), nil
		}
		if l, ok := args[0].(rdf.Literal); ok {
			if v, ok := l.Numeric(); ok {
				return rdf.NewBoolean(v != 0 && !math.IsNaN(v)), nil
			}
		}
	case rdf.XSDInteger:
		if v, err := strconv.ParseInt(lexical, 10, 64); err == nil {
			return rdf.NewInteger(v), nil
		}
		if v, err := strconv.ParseFloat(lexical, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
			return rdf.NewInteger(int64(v)), nil
		}
	case rdf.XSDDecimal:
		if v, err := strconv.ParseFloat(lexical, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
			return rdf.NewDecimal(v), nil
		}
	case rdf.XSDDouble, rdf.XSDFloat:
		if v, ok := rdf.NewTyped(lexical, rdf.XSDDouble).Numeric(); ok {
			return numericResult(v, datatype), nil
		}
	default:
		return nil, fmt.Errorf("unsupported function %v", datatype)
	}
	return nil, typeError(datatype.String(), args...)
}
