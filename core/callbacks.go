/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

package core

import (
	"context"
	"errors"
)

var (
	// InterpreterNotFound occurs when you try to Compile a
	// CallbackSource, and the required interpreter isn't in the
	// given map of interpreters.
	InterpreterNotFound = errors.New("interpreter not found")

	// DefaultInterpreters will be used in CallbackSource.Compile
	// if given nil interpreters.
	DefaultInterpreters = make(InterpretersMap)
)

// Invocation is what a Callback gets to compute a value.
type Invocation struct {
	// Entity is a copy of the Entity being evaluated.
	Entity *Entity

	// Options are the Entity's options with expressions already
	// evaluated and variables already interpolated.
	Options map[string]interface{}

	// Children holds the values of the Entity's child feedbacks
	// by child group.  Boolean values already account for
	// IsInverted.
	Children map[string][]interface{}

	// Variable looks up a variable.  Lookups are reported as
	// dependencies of the evaluation.
	Variable func(scope, name string) interface{}
}

// Callback computes the value of a feedback (or local variable).
//
// Ideally a Callback does no IO and has no side effects: it is
// called on every evaluation.
type Callback interface {
	Exec(context.Context, *Invocation) (interface{}, error)
}

// FuncCallback wraps a Go function.
type FuncCallback struct {
	F func(context.Context, *Invocation) (interface{}, error) `json:"-" yaml:"-"`
}

func (c *FuncCallback) Exec(ctx context.Context, inv *Invocation) (interface{}, error) {
	if c == nil || c.F == nil {
		return nil, nil
	}
	return c.F(ctx, inv)
}

// Interpreter can optionally compile and execute code for Callbacks.
type Interpreter interface {
	// Compile can make something that helps when Exec()ing the
	// code later.
	Compile(ctx context.Context, code interface{}) (interface{}, error)

	// Exec executes the code.  The result of previous Compile()
	// might be provided.
	Exec(ctx context.Context, inv *Invocation, code interface{}, compiled interface{}) (interface{}, error)
}

// InterpretersMap maps interpreter names to Interpreters.
type InterpretersMap map[string]Interpreter

func NewInterpretersMap() InterpretersMap {
	return make(InterpretersMap, 4)
}

// Find returns nil if there's no such interpreter.
func (m InterpretersMap) Find(name string) Interpreter {
	return m[name]
}

// CallbackSource can be compiled to a Callback.
type CallbackSource struct {
	Interpreter string      `json:"interpreter,omitempty" yaml:",omitempty"`
	Source      interface{} `json:"source" yaml:"source"`
}

// Copy makes a shallow copy.
func (s *CallbackSource) Copy() *CallbackSource {
	if s == nil {
		return nil
	}
	return &CallbackSource{
		Interpreter: s.Interpreter,
		Source:      s.Source,
	}
}

// Compile attempts to compile the CallbackSource into a Callback
// using the given interpreters, which defaults to
// DefaultInterpreters.
func (s *CallbackSource) Compile(ctx context.Context, interpreters InterpretersMap) (Callback, error) {
	if interpreters == nil {
		interpreters = DefaultInterpreters
	}

	interpreter, have := interpreters[s.Interpreter]
	if !have {
		return nil, InterpreterNotFound
	}

	x, err := interpreter.Compile(ctx, s.Source)
	if err != nil {
		return nil, err
	}

	return &FuncCallback{
		F: func(ctx context.Context, inv *Invocation) (interface{}, error) {
			return interpreter.Exec(ctx, inv, s.Source, x)
		},
	}, nil
}
