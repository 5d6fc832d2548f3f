/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package expression

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxDepth limits the nesting of parsed expressions.
var MaxDepth = 64

type parser struct {
	hooks  []Hook
	tokens []Token
	pos    int
	depth  int
}

// Parse parses the source using the given lexer hooks (DefaultHooks
// if nil).
func Parse(src string, hooks []Hook) (Node, error) {
	return parseAt(src, hooks, 0)
}

func parseAt(src string, hooks []Hook, depth int) (Node, error) {
	toks, err := Tokenize(src, hooks)
	if err != nil {
		return nil, err
	}
	p := &parser{
		hooks:  hooks,
		tokens: toks,
		depth:  depth,
	}
	if p.current().Type == EOF {
		return nil, fmt.Errorf("%w: empty expression", SyntaxError)
	}
	n, err := p.expression()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != EOF {
		return nil, fmt.Errorf("%w: unexpected %s at %d", SyntaxError, tok, tok.Pos)
	}
	return n, nil
}

func (p *parser) current() Token {
	if len(p.tokens) <= p.pos {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) at(punct string) bool {
	tok := p.current()
	return tok.Type == Punct && tok.Text == punct
}

func (p *parser) expect(punct string) error {
	if !p.at(punct) {
		tok := p.current()
		return fmt.Errorf("%w: expected %q but got %s at %d", SyntaxError, punct, tok, tok.Pos)
	}
	p.advance()
	return nil
}

// expression parses a conditional expression.
func (p *parser) expression() (Node, error) {
	test, err := p.binaryExpr(1)
	if err != nil {
		return nil, err
	}
	if !p.at("?") {
		return test, nil
	}
	p.advance()
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err = p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &Cond{Test: test, Then: then, Else: els}, nil
}

// binaryExpr parses binary expressions by precedence climbing.
func (p *parser) binaryExpr(minPrec int) (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.current()
		prec := precedence(op)
		if prec == 0 || prec < minPrec {
			break
		}
		p.advance()

		next := prec + 1
		if op.Text == "**" {
			// Right-associative.
			next = prec
		}
		right, err := p.binaryExpr(next)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op.Text, L: left, R: right}
	}
	return left, nil
}

func precedence(tok Token) int {
	if tok.Type != Punct {
		return 0
	}
	switch tok.Text {
	case "||", "??":
		return 1
	case "&&":
		return 2
	case "|":
		return 3
	case "^":
		return 4
	case "&":
		return 5
	case "==", "!=", "===", "!==":
		return 6
	case "<", "<=", ">", ">=":
		return 7
	case "<<", ">>", ">>>":
		return 8
	case "+", "-":
		return 9
	case "*", "/", "%":
		return 10
	case "**":
		return 11
	}
	return 0
}

func (p *parser) unary() (Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if MaxDepth < p.depth {
		return nil, fmt.Errorf("%w: expression nested too deeply", SyntaxError)
	}

	tok := p.current()
	if tok.Type == Punct {
		switch tok.Text {
		case "!", "-", "+", "~":
			p.advance()
			x, err := p.unary()
			if err != nil {
				return nil, err
			}
			return &Unary{Op: tok.Text, X: x}, nil
		}
	}
	return p.postfix()
}

func (p *parser) postfix() (Node, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at("."):
			p.advance()
			tok := p.advance()
			if tok.Type != Identifier {
				return nil, fmt.Errorf("%w: expected a property name at %d", SyntaxError, tok.Pos)
			}
			x = &Member{X: x, Prop: &Literal{Value: tok.Text}}
		case p.at("["):
			p.advance()
			prop, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err = p.expect("]"); err != nil {
				return nil, err
			}
			x = &Member{X: x, Prop: prop}
		case p.at("("):
			id, is := x.(*Ident)
			if !is {
				return nil, fmt.Errorf("%w: only named functions can be called (at %d)", SyntaxError, p.current().Pos)
			}
			p.advance()
			args, err := p.list(")")
			if err != nil {
				return nil, err
			}
			x = &Call{Fn: id.Name, Args: args}
		default:
			return x, nil
		}
	}
}

// list parses comma-separated expressions up to the closing
// punctuation, which is consumed.  A trailing comma is allowed.
func (p *parser) list(closing string) ([]Node, error) {
	acc := make([]Node, 0, 4)
	for !p.at(closing) {
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		acc = append(acc, x)
		if p.at(",") {
			p.advance()
			continue
		}
		if !p.at(closing) {
			tok := p.current()
			return nil, fmt.Errorf("%w: expected %q but got %s at %d", SyntaxError, closing, tok, tok.Pos)
		}
	}
	p.advance()
	return acc, nil
}

func (p *parser) primary() (Node, error) {
	tok := p.advance()
	switch tok.Type {
	case Number:
		f, err := parseNumber(tok.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q at %d", SyntaxError, tok.Text, tok.Pos)
		}
		return &Literal{Value: f}, nil
	case String:
		return &Literal{Value: tok.Text}, nil
	case Template:
		return p.template(tok)
	case Variable:
		return &VarRef{Scope: tok.Scope, Name: tok.Name}, nil
	case Identifier:
		switch tok.Text {
		case "true":
			return &Literal{Value: true}, nil
		case "false":
			return &Literal{Value: false}, nil
		case "null":
			return &Literal{Value: nil}, nil
		case "undefined":
			return &Literal{Value: Unknown}, nil
		}
		return &Ident{Name: tok.Text}, nil
	case Punct:
		switch tok.Text {
		case "(":
			x, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err = p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			elems, err := p.list("]")
			if err != nil {
				return nil, err
			}
			return &ArrayLit{Elems: elems}, nil
		case "{":
			return p.object()
		}
	case EOF:
		return nil, fmt.Errorf("%w: unexpected end of expression", SyntaxError)
	}
	return nil, fmt.Errorf("%w: unexpected %s at %d", SyntaxError, tok, tok.Pos)
}

func (p *parser) object() (Node, error) {
	o := &ObjectLit{}
	for !p.at("}") {
		tok := p.advance()
		var key string
		switch tok.Type {
		case Identifier, String, Number:
			key = tok.Text
		default:
			return nil, fmt.Errorf("%w: bad property name %s at %d", SyntaxError, tok, tok.Pos)
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		o.Keys = append(o.Keys, key)
		o.Values = append(o.Values, v)
		if p.at(",") {
			p.advance()
			continue
		}
		if !p.at("}") {
			tok := p.current()
			return nil, fmt.Errorf("%w: expected \"}\" but got %s at %d", SyntaxError, tok, tok.Pos)
		}
	}
	p.advance()
	return o, nil
}

// template splits the raw template text into literal parts and
// ${...} expressions, which are parsed recursively.
func (p *parser) template(tok Token) (Node, error) {
	raw := tok.Text
	t := &TemplateLit{}
	var part strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				part.WriteByte('\n')
			case 't':
				part.WriteByte('\t')
			default:
				part.WriteByte(raw[i])
			}
			continue
		}
		if c != '$' || i+1 == len(raw) || raw[i+1] != '{' {
			part.WriteByte(c)
			continue
		}
		end := matchingBrace(raw, i+2)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated ${ in template at %d", SyntaxError, tok.Pos)
		}
		x, err := parseAt(raw[i+2:end], p.hooks, p.depth)
		if err != nil {
			return nil, err
		}
		t.Parts = append(t.Parts, part.String())
		part.Reset()
		t.Exprs = append(t.Exprs, x)
		i = end
	}
	t.Parts = append(t.Parts, part.String())
	return t, nil
}

func matchingBrace(s string, from int) int {
	depth := 1
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseNumber(s string) (float64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		return float64(n), err
	}
	return strconv.ParseFloat(s, 64)
}
