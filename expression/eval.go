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
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Variables provides variable values.
type Variables interface {
	// Lookup returns false if there's no such variable.
	Lookup(scope, name string) (interface{}, bool)
}

// Table is a simple Variables: scope -> name -> value.
type Table map[string]map[string]interface{}

func (t Table) Lookup(scope, name string) (interface{}, bool) {
	if t == nil {
		return nil, false
	}
	names, have := t[scope]
	if !have {
		return nil, false
	}
	v, have := names[name]
	return v, have
}

// Set sets a variable.
func (t Table) Set(scope, name string, v interface{}) {
	names, have := t[scope]
	if !have {
		names = make(map[string]interface{})
		t[scope] = names
	}
	names[name] = v
}

// VariableId is "scope:name".
func VariableId(scope, name string) string {
	return scope + ":" + name
}

// SplitVariableId is the inverse of VariableId.
func SplitVariableId(id string) (scope, name string, ok bool) {
	i := strings.IndexByte(id, ':')
	if i < 0 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

// LocalScopeName is the scope of a control's local variables.
const LocalScopeName = "local"

// Env is what an evaluation needs.
type Env struct {
	// Variables (optional) is the variable-value table.
	Variables Variables

	// Injected (optional) overrides values in Variables.  Keys
	// are VariableIds.
	Injected map[string]interface{}

	// Locals (optional) resolves $(local:name) references that
	// aren't in Injected.
	Locals *LocalScope

	// Now (optional) is the clock for unixNow().
	Now func() time.Time

	// Functions (optional) extend or override the builtins.
	Functions map[string]Func
}

// Result is the outcome of an evaluation.  Failures are values, not
// Go errors.
type Result struct {
	Value interface{}

	// Error is empty on success.
	Error string

	// VariableIds holds every "scope:name" that the evaluation
	// referred to or tried to resolve, even on failure.
	VariableIds map[string]struct{}

	err error
}

// Ok reports success.
func (r Result) Ok() bool {
	return r.err == nil && r.Error == ""
}

// Err returns the error (if any).  Use errors.Is with the sentinel
// errors in this package.
func (r Result) Err() error {
	if r.err == nil && r.Error != "" {
		return errors.New(r.Error)
	}
	return r.err
}

// Ids returns the VariableIds sorted.
func (r Result) Ids() []string {
	return SortedIds(r.VariableIds)
}

func (r Result) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"ok":          r.Ok(),
		"variableIds": r.Ids(),
	}
	if r.Ok() {
		m["value"] = r.Value
	} else {
		m["error"] = r.Error
	}
	return json.Marshal(m)
}

func failure(err error, ids map[string]struct{}) Result {
	return Result{
		Value:       Unknown,
		Error:       err.Error(),
		VariableIds: ids,
		err:         err,
	}
}

// Failure makes a failed Result.  The error survives for errors.Is.
func Failure(err error, ids map[string]struct{}) Result {
	if ids == nil {
		ids = make(map[string]struct{})
	}
	return failure(err, ids)
}

// SortedIds returns the set's members in order.
func SortedIds(ids map[string]struct{}) []string {
	acc := make([]string, 0, len(ids))
	for id := range ids {
		acc = append(acc, id)
	}
	sort.Strings(acc)
	return acc
}

// Program is a parsed expression.
type Program struct {
	Source string

	root Node
	ids  map[string]struct{}
}

// Compile parses the source.
func Compile(src string) (*Program, error) {
	n, err := Parse(src, nil)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{})
	Walk(n, func(n Node) {
		if v, is := n.(*VarRef); is {
			ids[VariableId(v.Scope, v.Name)] = struct{}{}
		}
	})
	return &Program{
		Source: src,
		root:   n,
		ids:    ids,
	}, nil
}

// VariableIds returns the references that appear in the source.
func (p *Program) VariableIds() map[string]struct{} {
	return copyIds(p.ids)
}

func copyIds(ids map[string]struct{}) map[string]struct{} {
	acc := make(map[string]struct{}, len(ids))
	for id := range ids {
		acc[id] = struct{}{}
	}
	return acc
}

var referencePattern = regexp.MustCompile(`\$\(([^:$)]+):([^)$]+)\)`)

// ScanVariableIds finds $(scope:name) references textually.  Used
// when the source doesn't parse.
func ScanVariableIds(src string) map[string]struct{} {
	acc := make(map[string]struct{})
	for _, m := range referencePattern.FindAllStringSubmatch(src, -1) {
		acc[VariableId(m[1], m[2])] = struct{}{}
	}
	return acc
}

// Evaluate parses and evaluates the source.
func Evaluate(src string, env *Env) Result {
	p, err := Compile(src)
	if err != nil {
		return failure(err, ScanVariableIds(src))
	}
	return p.Eval(env)
}

// Eval evaluates the Program.
func (p *Program) Eval(env *Env) Result {
	if env == nil {
		env = &Env{}
	}
	s := &State{
		env: env,
		ids: copyIds(p.ids),
	}
	v, err := s.eval(p.root)
	if err != nil {
		return failure(err, s.ids)
	}
	return Result{
		Value:       v,
		VariableIds: s.ids,
	}
}

// State is the state of one evaluation.  Funcs use it to look up
// variables.
type State struct {
	env *Env
	ids map[string]struct{}
}

// NewState makes a State for looking up variables outside of an
// expression, as callbacks do.
func NewState(env *Env) *State {
	if env == nil {
		env = &Env{}
	}
	return &State{
		env: env,
		ids: make(map[string]struct{}),
	}
}

// VariableIds returns the references looked up so far.
func (s *State) VariableIds() map[string]struct{} {
	return copyIds(s.ids)
}

// Lookup resolves a variable and records the dependency.  Missing
// variables are Unknown.
func (s *State) Lookup(scope, name string) (interface{}, error) {
	id := VariableId(scope, name)
	s.ids[id] = struct{}{}
	if v, have := s.env.Injected[id]; have {
		return Normalize(v), nil
	}
	if scope == LocalScopeName && s.env.Locals != nil {
		r := s.env.Locals.resolve(name)
		if r.err != nil && errors.Is(r.err, CyclicLocalVariable) {
			return nil, r.err
		}
		return r.Value, nil
	}
	if s.env.Variables == nil {
		return Unknown, nil
	}
	v, have := s.env.Variables.Lookup(scope, name)
	if !have {
		return Unknown, nil
	}
	return Normalize(v), nil
}

// Now returns the Env's time.
func (s *State) Now() time.Time {
	if s.env.Now == nil {
		return time.Now()
	}
	return s.env.Now()
}

func (s *State) eval(n Node) (interface{}, error) {
	switch x := n.(type) {
	case *Literal:
		return x.Value, nil
	case *VarRef:
		return s.Lookup(x.Scope, x.Name)
	case *Ident:
		return nil, fmt.Errorf("%w: %s", UnknownIdentifier, x.Name)
	case *Unary:
		return s.unary(x)
	case *Binary:
		return s.binary(x)
	case *Cond:
		test, err := s.eval(x.Test)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return s.eval(x.Then)
		}
		return s.eval(x.Else)
	case *Member:
		obj, err := s.eval(x.X)
		if err != nil {
			return nil, err
		}
		prop, err := s.eval(x.Prop)
		if err != nil {
			return nil, err
		}
		return member(obj, prop), nil
	case *Call:
		return s.call(x)
	case *ArrayLit:
		acc := make([]interface{}, len(x.Elems))
		for i, e := range x.Elems {
			v, err := s.eval(e)
			if err != nil {
				return nil, err
			}
			acc[i] = v
		}
		return acc, nil
	case *ObjectLit:
		acc := make(map[string]interface{}, len(x.Keys))
		for i, k := range x.Keys {
			v, err := s.eval(x.Values[i])
			if err != nil {
				return nil, err
			}
			acc[k] = v
		}
		return acc, nil
	case *TemplateLit:
		var acc strings.Builder
		for i, part := range x.Parts {
			acc.WriteString(part)
			if i < len(x.Exprs) {
				v, err := s.eval(x.Exprs[i])
				if err != nil {
					return nil, err
				}
				acc.WriteString(Stringify(v))
			}
		}
		return acc.String(), nil
	}
	return nil, fmt.Errorf("internal error: unknown node %T", n)
}

func (s *State) call(c *Call) (interface{}, error) {
	f, have := s.env.Functions[c.Fn]
	if !have {
		if f, have = Builtins[c.Fn]; !have {
			return nil, fmt.Errorf("%w: %s", UnknownFunction, c.Fn)
		}
	}
	args := make([]interface{}, len(c.Args))
	for i, a := range c.Args {
		v, err := s.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := f(s, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Fn, err)
	}
	return Normalize(v), nil
}

func member(obj, prop interface{}) interface{} {
	switch o := obj.(type) {
	case map[string]interface{}:
		v, have := o[Stringify(prop)]
		if !have {
			return Unknown
		}
		return Normalize(v)
	case []interface{}:
		if prop == "length" {
			return float64(len(o))
		}
		if i, ok := index(prop, len(o)); ok {
			return Normalize(o[i])
		}
	case string:
		if prop == "length" {
			return float64(len([]rune(o)))
		}
		rs := []rune(o)
		if i, ok := index(prop, len(rs)); ok {
			return string(rs[i])
		}
	}
	return Unknown
}

func index(prop interface{}, n int) (int, bool) {
	f, is := prop.(float64)
	if !is || f != math.Trunc(f) || f < 0 || float64(n) <= f {
		return 0, false
	}
	return int(f), true
}

func (s *State) unary(u *Unary) (interface{}, error) {
	x, err := s.eval(u.X)
	if err != nil {
		return nil, err
	}
	if u.Op == "!" {
		return !Truthy(x), nil
	}
	if IsUnknown(x) {
		return Unknown, nil
	}
	f, ok := ToNumber(x)
	if !ok {
		return nil, fmt.Errorf("%w: %s%s", TypeMismatch, u.Op, describe(x))
	}
	switch u.Op {
	case "-":
		return -f, nil
	case "+":
		return f, nil
	case "~":
		return float64(^toInt32(f)), nil
	}
	return nil, fmt.Errorf("%w: operator %s", SyntaxError, u.Op)
}

func (s *State) binary(b *Binary) (interface{}, error) {
	l, err := s.eval(b.L)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "&&":
		if !Truthy(l) {
			return l, nil
		}
		return s.eval(b.R)
	case "||":
		if Truthy(l) {
			return l, nil
		}
		return s.eval(b.R)
	case "??":
		if l != nil && !IsUnknown(l) {
			return l, nil
		}
		return s.eval(b.R)
	}

	r, err := s.eval(b.R)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "==":
		return LooseEqual(l, r), nil
	case "!=":
		return !LooseEqual(l, r), nil
	case "===":
		return StrictEqual(l, r), nil
	case "!==":
		return !StrictEqual(l, r), nil
	case "+":
		ls, lstr := l.(string)
		rs, rstr := r.(string)
		if lstr || rstr {
			if !lstr {
				ls = Stringify(l)
			}
			if !rstr {
				rs = Stringify(r)
			}
			return ls + rs, nil
		}
	case "<", "<=", ">", ">=":
		return compare(b.Op, l, r)
	}

	if IsUnknown(l) || IsUnknown(r) {
		return Unknown, nil
	}
	x, xok := ToNumber(l)
	y, yok := ToNumber(r)
	if !xok || !yok {
		return nil, fmt.Errorf("%w: %s %s %s", TypeMismatch, describe(l), b.Op, describe(r))
	}

	switch b.Op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return nil, DivisionByZero
		}
		return x / y, nil
	case "%":
		if y == 0 {
			return nil, DivisionByZero
		}
		return math.Mod(x, y), nil
	case "**":
		return math.Pow(x, y), nil
	case "&":
		return float64(toInt32(x) & toInt32(y)), nil
	case "|":
		return float64(toInt32(x) | toInt32(y)), nil
	case "^":
		return float64(toInt32(x) ^ toInt32(y)), nil
	case "<<":
		return float64(toInt32(x) << (uint32(toInt32(y)) & 31)), nil
	case ">>":
		return float64(toInt32(x) >> (uint32(toInt32(y)) & 31)), nil
	case ">>>":
		return float64(uint32(toInt32(x)) >> (uint32(toInt32(y)) & 31)), nil
	}
	return nil, fmt.Errorf("%w: operator %s", SyntaxError, b.Op)
}

// compare is false when either side is Unknown or the sides can't be
// compared.
func compare(op string, l, r interface{}) (interface{}, error) {
	if IsUnknown(l) || IsUnknown(r) {
		return false, nil
	}
	var c int
	ls, lstr := l.(string)
	rs, rstr := r.(string)
	if lstr && rstr {
		c = strings.Compare(ls, rs)
	} else {
		x, xok := ToNumber(l)
		y, yok := ToNumber(r)
		if !xok || !yok {
			if isScalar(l) && isScalar(r) {
				// Like NaN.
				return false, nil
			}
			return nil, fmt.Errorf("%w: %s %s %s", TypeMismatch, describe(l), op, describe(r))
		}
		if math.IsNaN(x) || math.IsNaN(y) {
			return false, nil
		}
		switch {
		case x < y:
			c = -1
		case y < x:
			c = 1
		}
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return 0 < c, nil
	}
	return 0 <= c, nil
}

func describe(x interface{}) string {
	switch x.(type) {
	case nil:
		return "null"
	case unknown:
		return "undefined"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return fmt.Sprintf("%q", x)
	}
	return Stringify(x)
}
