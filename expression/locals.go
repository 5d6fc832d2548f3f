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
)

// LocalFunc computes a local variable's value.  The Env it gets
// resolves other locals through the same LocalScope.
type LocalFunc func(env *Env) Result

// LocalScope resolves a control's $(local:name) variables.
//
// Each local is computed at most once per LocalScope, lazily, so a
// local can refer to a local declared after it.  A local that refers
// to itself (directly or not) fails with CyclicLocalVariable.
//
// Not safe for concurrent use.  Make a new LocalScope for each
// evaluation.
type LocalScope struct {
	env    Env
	order  []string
	funcs  map[string]LocalFunc
	state  map[string]int
	values map[string]Result
}

const (
	unresolved = iota
	resolving
	resolved
)

// NewLocalScope makes a scope over the given Env, which is copied.
func NewLocalScope(env *Env) *LocalScope {
	s := &LocalScope{
		funcs:  make(map[string]LocalFunc),
		state:  make(map[string]int),
		values: make(map[string]Result),
	}
	if env != nil {
		s.env = *env
	}
	s.env.Locals = s
	return s
}

// Define declares a local.  A later definition with the same name is
// ignored.
func (s *LocalScope) Define(name string, f LocalFunc) {
	if _, have := s.funcs[name]; have {
		return
	}
	s.order = append(s.order, name)
	s.funcs[name] = f
}

// DefineExpression declares a local whose value is an expression.
func (s *LocalScope) DefineExpression(name, src string) {
	p, err := Compile(src)
	s.Define(name, func(env *Env) Result {
		if err != nil {
			return failure(err, ScanVariableIds(src))
		}
		return p.Eval(env)
	})
}

// DefineValue declares a local with a constant value.
func (s *LocalScope) DefineValue(name string, v interface{}) {
	s.Define(name, func(env *Env) Result {
		return Result{Value: Normalize(v), VariableIds: map[string]struct{}{}}
	})
}

// Env returns an Env that resolves locals through this scope.
func (s *LocalScope) Env() *Env {
	env := s.env
	return &env
}

// Names returns the locals in declaration order.
func (s *LocalScope) Names() []string {
	return append([]string(nil), s.order...)
}

func (s *LocalScope) resolve(name string) Result {
	switch s.state[name] {
	case resolved:
		return s.values[name]
	case resolving:
		err := fmt.Errorf("%w: %s", CyclicLocalVariable, name)
		return failure(err, map[string]struct{}{VariableId(LocalScopeName, name): {}})
	}
	f, have := s.funcs[name]
	if !have {
		return Result{Value: Unknown}
	}
	s.state[name] = resolving
	r := f(s.Env())
	if r.VariableIds == nil {
		r.VariableIds = make(map[string]struct{})
	}
	s.state[name] = resolved
	s.values[name] = r
	return r
}

// Resolve computes (if necessary) and returns the local's Result.
func (s *LocalScope) Resolve(name string) Result {
	return s.resolve(name)
}

// ResolveAll resolves every local in declaration order.  The results
// are returned by name.
func (s *LocalScope) ResolveAll() map[string]Result {
	acc := make(map[string]Result, len(s.order))
	for _, name := range s.order {
		acc[name] = s.resolve(name)
	}
	return acc
}

// Injected returns the resolved values keyed by VariableId, which is
// suitable for Env.Injected.
func (s *LocalScope) Injected() map[string]interface{} {
	acc := make(map[string]interface{}, len(s.order))
	for _, name := range s.order {
		acc[VariableId(LocalScopeName, name)] = s.resolve(name).Value
	}
	return acc
}
