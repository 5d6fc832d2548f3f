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
	"strings"
)

// TokenType says what kind of Token we have.
type TokenType int

const (
	EOF TokenType = iota
	Number
	String
	Template
	Identifier
	Variable
	Punct
)

func (t TokenType) String() string {
	switch t {
	case EOF:
		return "EOF"
	case Number:
		return "number"
	case String:
		return "string"
	case Template:
		return "template"
	case Identifier:
		return "identifier"
	case Variable:
		return "variable"
	case Punct:
		return "punctuation"
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a lexeme.
//
// For a String, Text is the unescaped value.  For a Template, Text
// is the raw source between the backticks.  For a Variable, Scope and
// Name are set.
type Token struct {
	Type  TokenType
	Text  string
	Pos   int
	Scope string
	Name  string
}

func (t Token) String() string {
	if t.Type == Variable {
		return "$(" + t.Scope + ":" + t.Name + ")"
	}
	return fmt.Sprintf("%s %q", t.Type, t.Text)
}

// Hook gets the first look at the input at each token boundary.
//
// If the Hook doesn't want to handle the input at pos, it should
// return a zero consumed count (and a nil error).
type Hook interface {
	Scan(src string, pos int) (tok Token, consumed int, err error)
}

// VariableHook recognizes $(scope:name) references.
//
// A reference extends to the next ")" that isn't escaped with a
// backslash.  The scope is everything before the first ":".
type VariableHook struct{}

func (h VariableHook) Scan(src string, pos int) (Token, int, error) {
	if !strings.HasPrefix(src[pos:], "$(") {
		return Token{}, 0, nil
	}
	var (
		acc     strings.Builder
		escaped bool
	)
	for i := pos + 2; i < len(src); i++ {
		c := src[i]
		if escaped {
			acc.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
			continue
		case ')':
			ref := acc.String()
			colon := strings.IndexByte(ref, ':')
			if colon <= 0 || colon == len(ref)-1 {
				return Token{}, 0, fmt.Errorf("%w: bad variable reference %q at %d", SyntaxError, ref, pos)
			}
			return Token{
				Type:  Variable,
				Text:  src[pos : i+1],
				Pos:   pos,
				Scope: ref[:colon],
				Name:  ref[colon+1:],
			}, i + 1 - pos, nil
		}
		acc.WriteByte(c)
	}
	return Token{}, 0, fmt.Errorf("%w: unterminated variable reference at %d", SyntaxError, pos)
}

// DefaultHooks are used when Tokenize is given nil hooks.
var DefaultHooks = []Hook{VariableHook{}}

// puncts is ordered so that longer operators come first.
var puncts = []string{
	"===", "!==", ">>>",
	"**", "==", "!=", "<=", ">=", "&&", "||", "??", "<<", ">>",
	"+", "-", "*", "/", "%", "<", ">", "!", "~", "&", "|", "^",
	"?", ":", ".", ",", "(", ")", "[", "]", "{", "}",
}

// Lexer turns source into Tokens.
type Lexer struct {
	Hooks []Hook

	src string
	pos int
}

// Tokenize returns all of the tokens in the source.  The last token
// is always EOF.
func Tokenize(src string, hooks []Hook) ([]Token, error) {
	if hooks == nil {
		hooks = DefaultHooks
	}
	l := &Lexer{
		Hooks: hooks,
		src:   src,
	}
	acc := make([]Token, 0, 16)
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		acc = append(acc, tok)
		if tok.Type == EOF {
			return acc, nil
		}
	}
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

// Next returns the next Token.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	if len(l.src) <= l.pos {
		return Token{Type: EOF, Pos: l.pos}, nil
	}

	for _, h := range l.Hooks {
		tok, n, err := h.Scan(l.src, l.pos)
		if err != nil {
			return Token{}, err
		}
		if 0 < n {
			l.pos += n
			return tok, nil
		}
	}

	c := l.src[l.pos]
	switch {
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.number()
	case c == '"' || c == '\'':
		return l.str(c)
	case c == '`':
		return l.template()
	case isIdentStart(c):
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return Token{Type: Identifier, Text: l.src[start:l.pos], Pos: start}, nil
	}

	for _, p := range puncts {
		if strings.HasPrefix(l.src[l.pos:], p) {
			tok := Token{Type: Punct, Text: p, Pos: l.pos}
			l.pos += len(p)
			return tok, nil
		}
	}

	return Token{}, fmt.Errorf("%w: unexpected %q at %d", SyntaxError, c, l.pos)
}

func (l *Lexer) number() (Token, error) {
	start := l.pos
	s := l.src
	if strings.HasPrefix(s[l.pos:], "0x") || strings.HasPrefix(s[l.pos:], "0X") {
		l.pos += 2
		for l.pos < len(s) && isHex(s[l.pos]) {
			l.pos++
		}
		if l.pos == start+2 {
			return Token{}, fmt.Errorf("%w: bad hex number at %d", SyntaxError, start)
		}
		return Token{Type: Number, Text: s[start:l.pos], Pos: start}, nil
	}
	for l.pos < len(s) && isDigit(s[l.pos]) {
		l.pos++
	}
	if l.pos < len(s) && s[l.pos] == '.' {
		l.pos++
		for l.pos < len(s) && isDigit(s[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(s) && (s[l.pos] == 'e' || s[l.pos] == 'E') {
		l.pos++
		if l.pos < len(s) && (s[l.pos] == '+' || s[l.pos] == '-') {
			l.pos++
		}
		digits := l.pos
		for l.pos < len(s) && isDigit(s[l.pos]) {
			l.pos++
		}
		if digits == l.pos {
			return Token{}, fmt.Errorf("%w: bad exponent at %d", SyntaxError, start)
		}
	}
	return Token{Type: Number, Text: s[start:l.pos], Pos: start}, nil
}

func (l *Lexer) str(quote byte) (Token, error) {
	start := l.pos
	l.pos++
	var acc strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case quote:
			return Token{Type: String, Text: acc.String(), Pos: start}, nil
		case '\\':
			if len(l.src) <= l.pos {
				break
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				acc.WriteByte('\n')
			case 't':
				acc.WriteByte('\t')
			case 'r':
				acc.WriteByte('\r')
			default:
				acc.WriteByte(e)
			}
		default:
			acc.WriteByte(c)
		}
	}
	return Token{}, fmt.Errorf("%w: unterminated string at %d", SyntaxError, start)
}

// template scans a backtick literal.  Braces inside ${...} are
// balanced, and quotes inside them are skipped.
func (l *Lexer) template() (Token, error) {
	start := l.pos
	l.pos++
	depth := 0
	var quote byte
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch {
		case c == '\\':
			l.pos++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case 0 < depth && (c == '"' || c == '\''):
			quote = c
		case c == '$' && l.pos < len(l.src) && l.src[l.pos] == '{':
			depth++
			l.pos++
		case c == '{' && 0 < depth:
			depth++
		case c == '}' && 0 < depth:
			depth--
		case c == '`' && depth == 0:
			return Token{Type: Template, Text: l.src[start+1 : l.pos-1], Pos: start}, nil
		}
	}
	return Token{}, fmt.Errorf("%w: unterminated template at %d", SyntaxError, start)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
