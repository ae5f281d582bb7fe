package rules

import (
	"fmt"
	"strings"
	"unicode"

	"visa-checklist/internal/models"
)

// Supported comparison operators. Ordinal operators only apply to the fields
// listed in models.OrdinalEnums.
const (
	OpEq    = "eq"
	OpNeq   = "neq"
	OpIn    = "in"
	OpNotIn = "not_in"
	OpGt    = "gt"
	OpGte   = "gte"
	OpLt    = "lt"
	OpLte   = "lte"
)

var opAliases = map[string]string{
	"eq": OpEq, "==": OpEq, "=": OpEq,
	"neq": OpNeq, "ne": OpNeq, "!=": OpNeq,
	"in": OpIn,
	"not_in": OpNotIn, "nin": OpNotIn, "not in": OpNotIn,
	"gt": OpGt, ">": OpGt,
	"gte": OpGte, ">=": OpGte,
	"lt": OpLt, "<": OpLt,
	"lte": OpLte, "<=": OpLte,
}

// EvalCondition evaluates a predicate against a profile. It is total: unknown
// fields, unknown operators and values outside an ordinal scale evaluate to
// false. A nil or empty condition is true.
func EvalCondition(c *models.Condition, p models.ApplicantProfile) bool {
	if c == nil {
		return true
	}
	switch {
	case len(c.All) > 0:
		for i := range c.All {
			if !EvalCondition(&c.All[i], p) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for i := range c.Any {
			if EvalCondition(&c.Any[i], p) {
				return true
			}
		}
		return false
	case c.Not != nil:
		return !EvalCondition(c.Not, p)
	case c.Field != "":
		return compare(c, p)
	case c.Op != "":
		return false
	}
	return true
}

func compare(c *models.Condition, p models.ApplicantProfile) bool {
	actual, ok := p.Field(c.Field)
	if !ok {
		return false
	}
	op, ok := opAliases[strings.ToLower(strings.TrimSpace(c.Op))]
	if !ok {
		return false
	}

	switch op {
	case OpEq:
		return equalFold(actual, c.Value)
	case OpNeq:
		return !equalFold(actual, c.Value)
	case OpIn:
		return containsFold(c.Values, actual)
	case OpNotIn:
		return !containsFold(c.Values, actual)
	}

	scale, ok := models.OrdinalEnums[c.Field]
	if !ok {
		return false
	}
	a, b := rank(scale, actual), rank(scale, c.Value)
	if a < 0 || b < 0 {
		return false
	}
	switch op {
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	}
	return false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if equalFold(candidate, v) {
			return true
		}
	}
	return false
}

func rank(scale []string, v string) int {
	for i, s := range scale {
		if equalFold(s, v) {
			return i
		}
	}
	return -1
}

// ParseCondition parses the shorthand form used by the rule sync pipeline:
//
//	sponsorType != self
//	incomeBand >= medium && !hasPriorRefusals
//	maritalStatus in [married, divorced] || familyInHomeCountry
//
// && binds tighter than ||. A bare field name means "field == true".
func ParseCondition(expr string) (*models.Condition, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty condition")
	}
	ps := &condParser{toks: toks}
	c, err := ps.parseOr()
	if err != nil {
		return nil, err
	}
	if ps.pos != len(ps.toks) {
		return nil, fmt.Errorf("unexpected %q at token %d", ps.toks[ps.pos].text, ps.pos)
	}
	return c, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokOp
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '&' || r == '|':
			if i+1 >= len(rs) || rs[i+1] != r {
				return nil, fmt.Errorf("expected %c%c at %d", r, r, i)
			}
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			toks = append(toks, token{kind, string([]rune{r, r})})
			i += 2
		case r == '!' && (i+1 >= len(rs) || rs[i+1] != '='):
			toks = append(toks, token{tokNot, "!"})
			i++
		case r == '=' || r == '!' || r == '<' || r == '>':
			op := string(r)
			if i+1 < len(rs) && rs[i+1] == '=' {
				op += "="
				i++
			}
			toks = append(toks, token{tokOp, op})
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == '[':
			toks = append(toks, token{tokLBracket, "["})
			i++
		case r == ']':
			toks = append(toks, token{tokRBracket, "]"})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case r == '"' || r == '\'':
			j := i + 1
			for j < len(rs) && rs[j] != r {
				j++
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("unterminated string at %d", i)
			}
			toks = append(toks, token{tokWord, string(rs[i+1 : j])})
			i = j + 1
		default:
			j := i
			for j < len(rs) && isWordRune(rs[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("unexpected character %q at %d", r, i)
			}
			toks = append(toks, token{tokWord, string(rs[i:j])})
			i = j
		}
	}
	return toks, nil
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

type condParser struct {
	toks []token
	pos  int
}

func (p *condParser) peek() *token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func (p *condParser) next() *token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

func (p *condParser) parseOr() (*models.Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []models.Condition{*left}
	for t := p.peek(); t != nil && t.kind == tokOr; t = p.peek() {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, *right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &models.Condition{Any: terms}, nil
}

func (p *condParser) parseAnd() (*models.Condition, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []models.Condition{*left}
	for t := p.peek(); t != nil && t.kind == tokAnd; t = p.peek() {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, *right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &models.Condition{All: terms}, nil
}

func (p *condParser) parseUnary() (*models.Condition, error) {
	t := p.next()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of condition")
	}
	switch t.kind {
	case tokNot:
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &models.Condition{Not: inner}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing == nil || closing.kind != tokRParen {
			return nil, fmt.Errorf("missing )")
		}
		return inner, nil
	case tokWord:
		return p.parseComparison(t.text)
	}
	return nil, fmt.Errorf("unexpected %q", t.text)
}

func (p *condParser) parseComparison(field string) (*models.Condition, error) {
	t := p.peek()
	if t == nil || (t.kind != tokOp && !(t.kind == tokWord && isListOp(t.text))) {
		return &models.Condition{Field: field, Op: OpEq, Value: "true"}, nil
	}
	p.next()

	op := t.text
	if t.kind == tokWord && strings.EqualFold(op, "not") {
		in := p.next()
		if in == nil || !strings.EqualFold(in.text, "in") {
			return nil, fmt.Errorf("expected 'in' after 'not'")
		}
		op = OpNotIn
	}
	canonical, ok := opAliases[strings.ToLower(op)]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", op)
	}

	if canonical == OpIn || canonical == OpNotIn {
		values, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &models.Condition{Field: field, Op: canonical, Values: values}, nil
	}

	v := p.next()
	if v == nil || v.kind != tokWord {
		return nil, fmt.Errorf("expected value after %s", op)
	}
	return &models.Condition{Field: field, Op: canonical, Value: v.text}, nil
}

func isListOp(word string) bool {
	w := strings.ToLower(word)
	return w == "in" || w == "not" || w == "not_in" || w == "nin"
}

func (p *condParser) parseList() ([]string, error) {
	if t := p.next(); t == nil || t.kind != tokLBracket {
		return nil, fmt.Errorf("expected [ after in")
	}
	var values []string
	for {
		t := p.next()
		if t == nil {
			return nil, fmt.Errorf("missing ]")
		}
		switch t.kind {
		case tokRBracket:
			return values, nil
		case tokComma:
			continue
		case tokWord:
			values = append(values, t.text)
		default:
			return nil, fmt.Errorf("unexpected %q in list", t.text)
		}
	}
}
