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

package algebra

import (
	"strings"

	"github.com/kasei/kineo-federation/rdf"
)

// An Expression is a SPARQL expression such as a FILTER condition or a BIND
// value. Its String is valid SPARQL syntax.
type Expression interface {
	String() string
	Key(*strings.Builder)
	anExpression()
}

// ImplementExpression is a list of types that implement Expression. This
// serves as documentation and as a compile-time check.
var ImplementExpression = []Expression{
	new(Variable),
	new(Constant),
	new(Unary),
	new(Binary),
	new(Call),
	new(AggregateExpr),
}

// Constant is an expression with a fixed value.
type Constant struct {
	Term rdf.Term
}

func (*Constant) anExpression() {}

func (c *Constant) String() string {
	return c.Term.String()
}

// Key implements cmp.Key.
func (c *Constant) Key(b *strings.Builder) {
	c.Term.Key(b)
}

// Unary operators.
const (
	OpNot    = "!"
	OpNegate = "-"
	OpPlus   = "+"
)

// Unary is a prefix operator applied to one argument.
type Unary struct {
	Op  string
	Arg Expression
}

func (*Unary) anExpression() {}

func (u *Unary) String() string {
	return u.Op + "(" + u.Arg.String() + ")"
}

// Key implements cmp.Key.
func (u *Unary) Key(b *strings.Builder) {
	b.WriteString(u.Op)
	b.WriteByte('(')
	u.Arg.Key(b)
	b.WriteByte(')')
}

// Binary operators.
const (
	OpOr        = "||"
	OpAnd       = "&&"
	OpEqual     = "="
	OpNotEqual  = "!="
	OpLess      = "<"
	OpLessEq    = "<="
	OpGreater   = ">"
	OpGreaterEq = ">="
	OpAdd       = "+"
	OpSubtract  = "-"
	OpMultiply  = "*"
	OpDivide    = "/"
)

// Binary is an infix operator applied to two arguments.
type Binary struct {
	Op    string
	Left  Expression
	Right Expression
}

func (*Binary) anExpression() {}

func (e *Binary) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}

// Key implements cmp.Key.
func (e *Binary) Key(b *strings.Builder) {
	b.WriteByte('(')
	e.Left.Key(b)
	b.WriteByte(' ')
	b.WriteString(e.Op)
	b.WriteByte(' ')
	e.Right.Key(b)
	b.WriteByte(')')
}

// Call is a call to a built-in function such as BOUND, STR, or REGEX. Func is
// the upper-case function name.
type Call struct {
	Func string
	Args []Expression
}

func (*Call) anExpression() {}

func (c *Call) String() string {
	var b strings.Builder
	b.WriteString(c.Func)
	b.WriteByte('(')
	for i, arg := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Key implements cmp.Key.
func (c *Call) Key(b *strings.Builder) {
	b.WriteString(c.Func)
	b.WriteByte('(')
	for i, arg := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		arg.Key(b)
	}
	b.WriteByte(')')
}

// Aggregate functions.
const (
	AggCount       = "COUNT"
	AggSum         = "SUM"
	AggMin         = "MIN"
	AggMax         = "MAX"
	AggAvg         = "AVG"
	AggSample      = "SAMPLE"
	AggGroupConcat = "GROUP_CONCAT"
)

// AggregateExpr is an aggregate function over a group of solutions. A nil Arg
// means COUNT(*).
type AggregateExpr struct {
	Func     string
	Distinct bool
	Arg      Expression
	// Only used by GROUP_CONCAT. An empty separator means the default " ".
	Separator string
}

func (*AggregateExpr) anExpression() {}

func (a *AggregateExpr) String() string {
	return a.format(func(e Expression, b *strings.Builder) {
		b.WriteString(e.String())
	})
}

// Key implements cmp.Key.
func (a *AggregateExpr) Key(b *strings.Builder) {
	b.WriteString(a.format(func(e Expression, b *strings.Builder) {
		e.Key(b)
	}))
}

func (a *AggregateExpr) format(arg func(Expression, *strings.Builder)) string {
	var b strings.Builder
	b.WriteString(a.Func)
	b.WriteByte('(')
	if a.Distinct {
		b.WriteString("DISTINCT ")
	}
	if a.Arg == nil {
		b.WriteByte('*')
	} else {
		arg(a.Arg, &b)
	}
	if a.Func == AggGroupConcat && a.Separator != "" {
		b.WriteString(" ; SEPARATOR=")
		b.WriteString(rdf.Quote(a.Separator))
	}
	b.WriteByte(')')
	return b.String()
}

// ExpressionVariables returns the variables referenced by e, in order of first
// appearance.
func ExpressionVariables(e Expression) []*Variable {
	var vars []*Variable
	seen := make(map[string]bool)
	var walk func(e Expression)
	walk = func(e Expression) {
		switch e := e.(type) {
		case *Variable:
			if !seen[e.Name] {
				seen[e.Name] = true
				vars = append(vars, e)
			}
		case *Unary:
			walk(e.Arg)
		case *Binary:
			walk(e.Left)
			walk(e.Right)
		case *Call:
			for _, arg := range e.Args {
				walk(arg)
			}
		case *AggregateExpr:
			if e.Arg != nil {
				walk(e.Arg)
			}
		}
	}
	walk(e)
	return vars
}

// True is the constant expression true.
var True Expression = &Constant{Term: rdf.NewBoolean(true)}

// False is the constant expression false.
var False Expression = &Constant{Term: rdf.NewBoolean(false)}
