package expr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	ferrors "github.com/ezachrisen/formrules/errors"
)

var (
	arithmeticChars = regexp.MustCompile(`^[0-9a-zA-Z_.\s+\-*/%()]+$`)
	logicChars      = regexp.MustCompile(`[=!<>&|]`)
	arithmeticOps   = regexp.MustCompile(`[+\-*/%]`)

	gridSum   = regexp.MustCompile(`^grids\.([a-zA-Z_][a-zA-Z0-9_]*)\.sum\(['"]([a-zA-Z_][a-zA-Z0-9_]*)['"]\)$`)
	gridCount = regexp.MustCompile(`^grids\.([a-zA-Z_][a-zA-Z0-9_]*)\.rows\.length$`)
)

// IsArithmetic reports whether s looks like a pure arithmetic expression:
// only identifiers, numbers, + - * / % and parentheses, with at least one
// operator and no comparison or logical operators.
func IsArithmetic(s string) bool {
	return arithmeticChars.MatchString(s) && !logicChars.MatchString(s) && arithmeticOps.MatchString(s)
}

// Arithmetic evaluates + - * / % and parentheses with the usual precedence.
// Identifiers resolve to numbers: numeric strings are parsed, anything else
// counts as 0. Division or modulo by zero yields 0. A faulty expression
// yields 0.
func (e *Evaluator) Arithmetic(expression string) float64 {
	v, err := e.arithmetic(expression)
	if err != nil {
		e.fault(expression, err)
		return 0
	}
	return v
}

func (e *Evaluator) arithmetic(expression string) (v float64, err error) {
	defer guard(expression, &err)
	s := Unwrap(expression)
	if s == "" {
		return 0, nil
	}
	toks, err := e.tokenize(s)
	if err == nil {
		p := &arithParser{toks: toks}
		v, err = p.sum()
		if err == nil && p.pos < len(p.toks) {
			err = fmt.Errorf("unexpected %q", p.toks[p.pos].text)
		}
	}
	if err != nil {
		return 0, &ferrors.ExpressionError{Expression: expression, Reason: err.Error()}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil
	}
	return v, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '.'
}

// tokenize splits s into numbers, operators and parentheses. Identifiers
// are resolved to their numeric value as they are read.
func (e *Evaluator) tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			f, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", s[i:j])
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j], num: f})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			name := strings.TrimSuffix(s[i:j], ".")
			if j < len(s) && s[j] == '(' {
				return nil, fmt.Errorf("function call %s() is not arithmetic", name)
			}
			toks = append(toks, token{kind: tokNumber, text: name, num: e.number(name)})
			i = j
		case strings.IndexByte("+-*/%", c) >= 0:
			toks = append(toks, token{kind: tokOp, text: string(c)})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokOpen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokClose, text: ")"})
			i++
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", c, i)
		}
	}
	return toks, nil
}

// number resolves an identifier for arithmetic.
func (e *Evaluator) number(name string) float64 {
	switch name {
	case "true", "false", "null", "undefined":
		return 0
	}
	switch v := normalize(e.variable(name)).(type) {
	case float64:
		if math.IsNaN(v) {
			return 0
		}
		return v
	case string:
		return relational(v)
	}
	return 0
}

type arithParser struct {
	toks []token
	pos  int
}

func (p *arithParser) peekOp(ops string) (string, bool) {
	if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokOp {
		return "", false
	}
	t := p.toks[p.pos].text
	return t, strings.Contains(ops, t)
}

func (p *arithParser) sum() (float64, error) {
	left, err := p.product()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.product()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *arithParser) product() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("*/%")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch {
		case op == "*":
			left *= right
		case right == 0:
			left = 0
		case op == "/":
			left /= right
		default:
			left = math.Mod(left, right)
		}
	}
}

func (p *arithParser) unary() (float64, error) {
	if op, ok := p.peekOp("+-"); ok {
		p.pos++
		v, err := p.unary()
		if op == "-" {
			v = -v
		}
		return v, err
	}
	return p.primary()
}

func (p *arithParser) primary() (float64, error) {
	if p.pos >= len(p.toks) {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	t := p.toks[p.pos]
	p.pos++
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokOpen:
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokClose {
			return 0, fmt.Errorf("missing )")
		}
		p.pos++
		return v, nil
	}
	return 0, fmt.Errorf("unexpected %q", t.text)
}

// GridFunction evaluates grids.<name>.sum('<column>') and
// grids.<name>.rows.length. For any other expression the second result is
// false so the caller can try another mode. Unknown grids yield 0.
func (e *Evaluator) GridFunction(expression string) (float64, bool) {
	s := strings.TrimSpace(expression)
	if m := gridSum.FindStringSubmatch(s); m != nil {
		if g := e.grids[m[1]]; g != nil {
			return g.Sum(m[2]), true
		}
		return 0, true
	}
	if m := gridCount.FindStringSubmatch(s); m != nil {
		if g := e.grids[m[1]]; g != nil {
			return float64(len(g.Rows)), true
		}
		return 0, true
	}
	return 0, false
}

// Calculation evaluates a calculated-field expression. A leading "return "
// and trailing ";" are ignored. Grid functions are tried first, then pure
// arithmetic, then general evaluation. The second result is false when the
// field should not be updated: the expression is empty, faulty, or refers
// to nothing.
func (e *Evaluator) Calculation(expression string) (any, bool) {
	s := stripStatement(expression)
	if s == "" {
		return nil, false
	}
	if e.grids != nil {
		if v, ok := e.GridFunction(s); ok {
			return v, true
		}
	}
	if IsArithmetic(s) {
		v, err := e.arithmetic(s)
		if err != nil {
			e.fault(expression, err)
			return nil, false
		}
		return v, true
	}
	v, err := e.eval(s)
	if err != nil {
		e.fault(expression, err)
		return nil, false
	}
	if IsUndefined(v) {
		return nil, false
	}
	return v, true
}
