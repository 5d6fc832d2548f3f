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

package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/expression"
	"github.com/Comcast/surface/style"
)

var (
	// UnknownDefinition occurs when an Entity's definition isn't
	// in the Registry.
	UnknownDefinition = errors.New("unknown definition")

	// DebugEvaluation turns on some logging.
	DebugEvaluation = false
)

// Input is what an evaluation needs besides the Control itself.
type Input struct {
	// Variables is the variable-value table.
	Variables expression.Variables

	// FeedbackValues are the values that connections have reported
	// for their feedbacks, by Entity id.
	FeedbackValues map[string]interface{}

	// Now (optional) is the clock for expressions.
	Now func() time.Time

	// Functions (optional) extend the expression builtins.
	Functions map[string]expression.Func
}

// EvalError is a failure that didn't stop an evaluation.
type EvalError struct {
	EntityId string `json:"entityId,omitempty"`
	Error    string `json:"error"`

	err error
}

// Err returns the error, which works with errors.Is.
func (e EvalError) Err() error {
	if e.err == nil {
		return errors.New(e.Error)
	}
	return e.err
}

// Evaluation is the result of evaluating a Control.
type Evaluation struct {
	ControlId string     `json:"controlId"`
	Style     core.Style `json:"style"`

	// Text is the style's text rendered against the variables.
	Text string `json:"text"`

	// VariableIds are the variables that the evaluation depends
	// on.
	VariableIds []string `json:"variableIds"`

	// Locals are the local variables' values by name.
	Locals map[string]interface{} `json:"locals,omitempty"`

	// Values are the values of the top-level feedbacks (and
	// conditions) by Entity id.
	Values map[string]interface{} `json:"values,omitempty"`

	// ConditionsMet is for triggers: all enabled conditions are
	// true.
	ConditionsMet bool `json:"conditionsMet,omitempty"`

	Errors []EvalError `json:"errors,omitempty"`

	ids map[string]struct{}
}

// Failed reports whether any error matches the target.
func (ev *Evaluation) Failed(target error) bool {
	for _, e := range ev.Errors {
		if errors.Is(e.Err(), target) {
			return true
		}
	}
	return false
}

type evaluator struct {
	ctx context.Context
	reg core.Registry
	in  *Input
	ids map[string]struct{}
	ev  *Evaluation
}

func (x *evaluator) fail(id string, err error) {
	if DebugEvaluation {
		log.Printf("control.evaluate %s entity %s error %s", x.ev.ControlId, id, err)
	}
	x.ev.Errors = append(x.ev.Errors, EvalError{
		EntityId: id,
		Error:    err.Error(),
		err:      err,
	})
}

func merge(dst, src map[string]struct{}) {
	for id := range src {
		dst[id] = struct{}{}
	}
}

// eval evaluates an expression source.
func (x *evaluator) eval(src string, env *expression.Env, ids map[string]struct{}) (interface{}, error) {
	r := expression.Evaluate(src, env)
	merge(ids, r.VariableIds)
	if !r.Ok() {
		return expression.Unknown, r.Err()
	}
	return r.Value, nil
}

// options evaluates expressions and interpolates strings per the
// Definition.  Every option is computed even if one fails.  The first
// error is returned.
func (x *evaluator) options(e *core.Entity, def *core.Definition, env *expression.Env, ids map[string]struct{}) (map[string]interface{}, error) {
	acc := make(map[string]interface{}, len(e.Options))
	if def != nil {
		for _, o := range def.Options {
			if o.Default != nil {
				acc[o.Id] = expression.Normalize(core.CopyValue(o.Default))
			}
		}
	}

	var first error
	note := func(err error) {
		if first == nil {
			first = err
		}
	}

	for _, k := range e.Options.Keys() {
		v := e.Options[k]
		var spec core.OptionSpec
		if def != nil {
			spec, _ = def.Option(k)
		}
		if ev, is := core.AsExpressionOrValue(v); is {
			if src, ok := ev.Source(); ok {
				y, err := x.eval(src, env, ids)
				if err != nil {
					note(err)
				}
				acc[k] = y
				continue
			}
			v = ev.Value
		} else if s, is := v.(string); is {
			switch {
			case spec.IsExpression:
				y, err := x.eval(s, env, ids)
				if err != nil {
					note(err)
				}
				acc[k] = y
				continue
			case spec.UseVariables:
				text, refs, err := expression.Interpolate(s, env)
				merge(ids, refs)
				if err != nil {
					note(err)
				}
				acc[k] = text
				continue
			}
		}
		acc[k] = expression.Normalize(core.CopyValue(v))
	}
	return acc, first
}

// active applies IsInverted to a Boolean value.
func active(e *core.Entity, v interface{}) bool {
	return expression.Truthy(v) != e.IsInverted
}

// value computes the value of an Entity.  Errors in child Entities
// are recorded, and those children count as unknown.
func (x *evaluator) value(e *core.Entity, env *expression.Env, ids map[string]struct{}) (interface{}, error) {
	def := core.Lookup(x.reg, e)
	if def == nil {
		return expression.Unknown, fmt.Errorf("%w: %s", UnknownDefinition, e.Key())
	}

	opts, err := x.options(e, def, env, ids)
	if err != nil && errors.Is(err, expression.CyclicLocalVariable) {
		return expression.Unknown, err
	}
	optErr := err

	children := make(map[string][]interface{}, len(e.Children))
	for _, g := range core.SortedGroups(e.Children) {
		vs := make([]interface{}, 0, len(e.Children[g]))
		for _, c := range e.Children[g] {
			if c.Disabled {
				continue
			}
			v, err := x.value(c, env, ids)
			if err != nil {
				x.fail(c.Id, err)
				v = expression.Unknown
			}
			if c.Type == core.TypeFeedback && x.subtype(c) == core.FeedbackBoolean {
				v = active(c, v)
			}
			vs = append(vs, v)
		}
		children[g] = vs
	}

	if def.Callback == nil {
		if v, have := x.in.FeedbackValues[e.Id]; have {
			return expression.Normalize(v), optErr
		}
		return expression.Unknown, optErr
	}

	st := expression.NewState(env)
	var lookupErr error
	inv := &core.Invocation{
		Entity:   e,
		Options:  opts,
		Children: children,
		Variable: func(scope, name string) interface{} {
			v, err := st.Lookup(scope, name)
			if err != nil {
				if lookupErr == nil {
					lookupErr = err
				}
				return expression.Unknown
			}
			return v
		},
	}
	v, err := def.Callback.Exec(x.ctx, inv)
	merge(ids, st.VariableIds())
	if err == nil {
		err = lookupErr
	}
	if err != nil {
		return expression.Unknown, err
	}
	if v == nil {
		v = expression.Unknown
	}
	return expression.Normalize(v), optErr
}

func (x *evaluator) subtype(e *core.Entity) core.FeedbackType {
	if def := core.Lookup(x.reg, e); def != nil {
		return def.Subtype()
	}
	return core.FeedbackBoolean
}

// Evaluate computes the Snapshot's Style, text, and dependencies.
//
// Local variables are resolved first, in declaration order.  Then the
// feedbacks are applied to the base Style in list order.  Finally the
// text is rendered.
func (s *Snapshot) Evaluate(ctx context.Context, in *Input) *Evaluation {
	if in == nil {
		in = &Input{}
	}
	x := &evaluator{
		ctx: ctx,
		reg: s.Tree.Registry,
		in:  in,
		ids: make(map[string]struct{}),
		ev: &Evaluation{
			ControlId: s.Id,
			Locals:    make(map[string]interface{}),
			Values:    make(map[string]interface{}),
		},
	}

	scope := expression.NewLocalScope(&expression.Env{
		Variables: in.Variables,
		Now:       in.Now,
		Functions: in.Functions,
	})

	locals := s.Tree.Entities(LocalVariablesRoot)
	names := make(map[string]string, len(locals))
	for _, e := range locals {
		if e.Disabled {
			continue
		}
		name, _ := e.Options[NameOption].(string)
		if name == "" {
			x.fail(e.Id, fmt.Errorf("%w: local variable has no name", core.InvalidEntity))
			continue
		}
		if _, have := names[name]; have {
			x.fail(e.Id, fmt.Errorf("%w: local variable %q declared twice", core.InvalidEntity, name))
			continue
		}
		names[name] = e.Id
		e := e
		scope.Define(name, func(env *expression.Env) expression.Result {
			ids := make(map[string]struct{})
			v, err := x.value(e, env, ids)
			if err != nil {
				return expression.Failure(err, ids)
			}
			return expression.Result{Value: v, VariableIds: ids}
		})
	}
	for _, name := range scope.Names() {
		r := scope.Resolve(name)
		merge(x.ids, r.VariableIds)
		if !r.Ok() {
			x.fail(names[name], r.Err())
		}
		x.ev.Locals[name] = r.Value
	}

	env := scope.Env()

	b := style.NewFeedbackStyleBuilder(s.Style)
	for _, e := range s.Tree.Entities(FeedbacksRoot) {
		if e.Disabled {
			continue
		}
		v, err := x.value(e, env, x.ids)
		if err != nil {
			x.fail(e.Id, err)
		}
		switch x.subtype(e) {
		case core.FeedbackBoolean:
			on := err == nil && active(e, v)
			x.ev.Values[e.Id] = on
			if on {
				b.ApplySimpleStyle(e.Style)
			}
		case core.FeedbackAdvanced:
			x.ev.Values[e.Id] = v
			if err == nil {
				b.ApplyComplexStyle(v)
			}
		default:
			x.ev.Values[e.Id] = v
		}
	}

	if s.Type == Trigger {
		met := true
		for _, e := range s.Tree.Entities(ConditionsRoot) {
			if e.Disabled {
				continue
			}
			v, err := x.value(e, env, x.ids)
			if err != nil {
				x.fail(e.Id, err)
			}
			on := err == nil && active(e, v)
			x.ev.Values[e.Id] = on
			met = met && on
		}
		x.ev.ConditionsMet = met
	}

	x.ev.Style = b.Style()
	if text, have := x.ev.Style.Text(); have {
		if x.ev.Style.TextExpression() {
			v, err := x.eval(text, env, x.ids)
			if err != nil {
				x.fail("", err)
			}
			x.ev.Text = expression.Stringify(v)
		} else {
			rendered, refs, err := expression.Interpolate(text, env)
			merge(x.ids, refs)
			if err != nil {
				x.fail("", err)
			}
			x.ev.Text = rendered
		}
	}

	x.ev.ids = x.ids
	x.ev.VariableIds = expression.SortedIds(x.ids)
	return x.ev
}

// Evaluate evaluates a snapshot of the Control and remembers the
// dependencies.
func (c *Control) Evaluate(ctx context.Context, in *Input) *Evaluation {
	ev := c.Snapshot().Evaluate(ctx, in)
	c.setDependencies(ev.ids)
	return ev
}
