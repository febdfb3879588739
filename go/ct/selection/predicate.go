// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package selection

import (
	"fmt"
	"strings"
	"unicode"
)

// Predicate is a boolean expression over the selector tags of a vector.
type Predicate interface {
	// Eval evaluates the predicate for the given tag set.
	Eval(hasTag func(string) bool) bool

	fmt.Stringer
}

// ParsePredicate parses expressions composed of tags, the constants true
// and false, the operators !, && and ||, and parentheses. Tags may contain
// letters, digits, and the characters _ - . / : and =. An empty expression
// accepts every vector.
func ParsePredicate(expr string) (Predicate, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return True(), nil
	}
	p := &parser{tokens: tokens}
	res, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected %q at position %d in %q", p.peek().text, p.peek().pos, expr)
	}
	return res, nil
}

////////////////////////////////////////////////////////////
// Constants

type constant bool

func True() Predicate  { return constant(true) }
func False() Predicate { return constant(false) }

func (c constant) Eval(func(string) bool) bool {
	return bool(c)
}

func (c constant) String() string {
	if c {
		return "true"
	}
	return "false"
}

////////////////////////////////////////////////////////////
// Tag

type tag string

// Tag is satisfied by vectors carrying the given selector tag.
func Tag(name string) Predicate {
	return tag(name)
}

func (t tag) Eval(hasTag func(string) bool) bool {
	return hasTag(string(t))
}

func (t tag) String() string {
	return string(t)
}

////////////////////////////////////////////////////////////
// Negation

type negation struct {
	inner Predicate
}

func Not(p Predicate) Predicate {
	if n, ok := p.(*negation); ok {
		return n.inner
	}
	return &negation{inner: p}
}

func (n *negation) Eval(hasTag func(string) bool) bool {
	return !n.inner.Eval(hasTag)
}

func (n *negation) String() string {
	return "!" + group(n.inner)
}

////////////////////////////////////////////////////////////
// Conjunction and Disjunction

type junction struct {
	isAnd    bool
	operands []Predicate
}

func And(predicates ...Predicate) Predicate {
	return newJunction(true, predicates)
}

func Or(predicates ...Predicate) Predicate {
	return newJunction(false, predicates)
}

func newJunction(isAnd bool, predicates []Predicate) Predicate {
	if len(predicates) == 1 {
		return predicates[0]
	}
	// Merge nested junctions of the same kind.
	res := []Predicate{}
	for _, cur := range predicates {
		if j, ok := cur.(*junction); ok && j.isAnd == isAnd {
			res = append(res, j.operands...)
		} else {
			res = append(res, cur)
		}
	}
	return &junction{isAnd: isAnd, operands: res}
}

func (j *junction) Eval(hasTag func(string) bool) bool {
	for _, cur := range j.operands {
		if cur.Eval(hasTag) != j.isAnd {
			return !j.isAnd
		}
	}
	return j.isAnd
}

func (j *junction) String() string {
	if len(j.operands) == 0 {
		return constant(j.isAnd).String()
	}
	operator := " || "
	if j.isAnd {
		operator = " && "
	}
	parts := make([]string, 0, len(j.operands))
	for _, cur := range j.operands {
		parts = append(parts, group(cur))
	}
	return strings.Join(parts, operator)
}

func group(p Predicate) string {
	if _, ok := p.(*junction); ok {
		return "(" + p.String() + ")"
	}
	return p.String()
}

////////////////////////////////////////////////////////////
// Parsing

type token struct {
	text string
	pos  int
}

func isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_-./:=", r)
}

func tokenize(expr string) ([]token, error) {
	res := []token{}
	runes := []rune(expr)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')' || r == '!':
			res = append(res, token{text: string(r), pos: i})
			i++
		case r == '&' || r == '|':
			if i+1 >= len(runes) || runes[i+1] != r {
				return nil, fmt.Errorf("invalid operator at position %d in %q", i, expr)
			}
			res = append(res, token{text: string(runes[i : i+2]), pos: i})
			i += 2
		case isTagRune(r):
			start := i
			for i < len(runes) && isTagRune(runes[i]) {
				i++
			}
			res = append(res, token{text: string(runes[start:i]), pos: start})
		default:
			return nil, fmt.Errorf("invalid character %q at position %d in %q", r, i, expr)
		}
	}
	return res, nil
}

type parser struct {
	tokens []token
	next   int
}

func (p *parser) done() bool {
	return p.next >= len(p.tokens)
}

func (p *parser) peek() token {
	if p.done() {
		return token{text: "end of input", pos: -1}
	}
	return p.tokens[p.next]
}

func (p *parser) accept(text string) bool {
	if !p.done() && p.tokens[p.next].text == text {
		p.next++
		return true
	}
	return false
}

// or := and { "||" and }
func (p *parser) parseOr() (Predicate, error) {
	return p.parseList("||", Or, p.parseAnd)
}

// and := unary { "&&" unary }
func (p *parser) parseAnd() (Predicate, error) {
	return p.parseList("&&", And, p.parseUnary)
}

func (p *parser) parseList(
	operator string,
	combine func(...Predicate) Predicate,
	parseOperand func() (Predicate, error),
) (Predicate, error) {
	first, err := parseOperand()
	if err != nil {
		return nil, err
	}
	operands := []Predicate{first}
	for p.accept(operator) {
		next, err := parseOperand()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	return combine(operands...), nil
}

// unary := "!" unary | "(" or ")" | "true" | "false" | tag
func (p *parser) parseUnary() (Predicate, error) {
	if p.accept("!") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}
	if p.accept("(") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, fmt.Errorf("expected ) at position %d, got %q", p.peek().pos, p.peek().text)
		}
		return inner, nil
	}
	cur := p.peek()
	if p.done() || !isTagRune([]rune(cur.text)[0]) {
		return nil, fmt.Errorf("expected tag at position %d, got %q", cur.pos, cur.text)
	}
	p.next++
	switch cur.text {
	case "true":
		return True(), nil
	case "false":
		return False(), nil
	}
	return Tag(cur.text), nil
}
