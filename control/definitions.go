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
	"fmt"

	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/expression"
)

// InternalConnection is the connection id of the built-in
// definitions.
var InternalConnection = "internal"

// Child group and option names used by the internal definitions.
const (
	ChildrenGroup = "children"

	NameOption       = "name"
	ExpressionOption = "expression"
	ValueOption      = "value"
	VariableOption   = "variable"
	OpOption         = "op"
	StyleOption      = "style"
	TimeOption       = "time"
)

func boolean(f func(inv *core.Invocation) (bool, error)) core.Callback {
	return &core.FuncCallback{
		F: func(ctx context.Context, inv *core.Invocation) (interface{}, error) {
			return f(inv)
		},
	}
}

func option(name string) core.Callback {
	return &core.FuncCallback{
		F: func(ctx context.Context, inv *core.Invocation) (interface{}, error) {
			v, have := inv.Options[name]
			if !have {
				return expression.Unknown, nil
			}
			return v, nil
		},
	}
}

func children(inv *core.Invocation) []bool {
	vs := inv.Children[ChildrenGroup]
	acc := make([]bool, len(vs))
	for i, v := range vs {
		acc[i] = expression.Truthy(v)
	}
	return acc
}

// compareVariable implements variable_value.
func compareVariable(inv *core.Invocation) (bool, error) {
	id, _ := inv.Options[VariableOption].(string)
	scope, name, ok := expression.SplitVariableId(id)
	if !ok {
		return false, fmt.Errorf("bad variable %q", id)
	}
	var v interface{} = expression.Unknown
	if inv.Variable != nil {
		v = inv.Variable(scope, name)
	}
	want := inv.Options[ValueOption]

	op, _ := inv.Options[OpOption].(string)
	switch op {
	case "", "eq":
		return expression.LooseEqual(v, want), nil
	case "ne":
		return !expression.LooseEqual(v, want), nil
	case "gt", "lt":
		x, ok := expression.ToNumber(v)
		if !ok || expression.IsUnknown(v) {
			return false, nil
		}
		y, ok := expression.ToNumber(want)
		if !ok {
			return false, nil
		}
		if op == "gt" {
			return y < x, nil
		}
		return x < y, nil
	}
	return false, fmt.Errorf("bad op %q", op)
}

// Internal returns a new registry with the built-in definitions.
func Internal() *core.MapRegistry {
	r := core.NewMapRegistry()

	boolChildren := []core.ChildGroup{
		{
			Id:       ChildrenGroup,
			Label:    "Conditions",
			ListSpec: core.ListOf(core.TypeFeedback, core.FeedbackBoolean),
		},
	}

	exprOption := core.OptionSpec{
		Id:           ExpressionOption,
		Type:         "textinput",
		Label:        "Expression",
		IsExpression: true,
	}

	logic := func(id, label string, f func([]bool) bool) *core.Definition {
		return &core.Definition{
			ConnectionId: InternalConnection,
			Id:           id,
			EntityType:   core.TypeFeedback,
			Label:        label,
			ChildGroups:  boolChildren,
			Callback: boolean(func(inv *core.Invocation) (bool, error) {
				return f(children(inv)), nil
			}),
		}
	}

	r.Add(
		&core.Definition{
			ConnectionId: InternalConnection,
			Id:           "check_expression",
			EntityType:   core.TypeFeedback,
			Label:        "Check expression",
			Options:      []core.OptionSpec{exprOption},
			Callback: boolean(func(inv *core.Invocation) (bool, error) {
				return expression.Truthy(inv.Options[ExpressionOption]), nil
			}),
		},
		&core.Definition{
			ConnectionId: InternalConnection,
			Id:           "variable_value",
			EntityType:   core.TypeFeedback,
			Label:        "Variable value",
			Options: []core.OptionSpec{
				{Id: VariableOption, Type: "variable", Label: "Variable"},
				{Id: OpOption, Type: "dropdown", Label: "Operation", Default: "eq"},
				{Id: ValueOption, Type: "textinput", Label: "Value", UseVariables: true},
			},
			Callback: boolean(compareVariable),
		},
		logic("logic_and", "AND", func(bs []bool) bool {
			for _, b := range bs {
				if !b {
					return false
				}
			}
			return 0 < len(bs)
		}),
		logic("logic_or", "OR", func(bs []bool) bool {
			for _, b := range bs {
				if b {
					return true
				}
			}
			return false
		}),
		logic("logic_xor", "XOR", func(bs []bool) bool {
			n := 0
			for _, b := range bs {
				if b {
					n++
				}
			}
			return n == 1
		}),
		&core.Definition{
			ConnectionId: InternalConnection,
			Id:           "expression_value",
			EntityType:   core.TypeFeedback,
			FeedbackType: core.FeedbackValue,
			Label:        "Expression value",
			Options:      []core.OptionSpec{exprOption},
			Callback:     option(ExpressionOption),
		},
		&core.Definition{
			ConnectionId: InternalConnection,
			Id:           "advanced_style",
			EntityType:   core.TypeFeedback,
			FeedbackType: core.FeedbackAdvanced,
			Label:        "Style from expression",
			Options: []core.OptionSpec{
				{Id: StyleOption, Type: "textinput", Label: "Style", IsExpression: true},
			},
			Callback: option(StyleOption),
		},
		&core.Definition{
			Id:         "expression",
			EntityType: core.TypeLocalVariable,
			Label:      "Expression",
			Options: []core.OptionSpec{
				{Id: NameOption, Type: "textinput", Label: "Name"},
				exprOption,
			},
			Callback: option(ExpressionOption),
		},
		&core.Definition{
			Id:         "constant",
			EntityType: core.TypeLocalVariable,
			Label:      "Constant",
			Options: []core.OptionSpec{
				{Id: NameOption, Type: "textinput", Label: "Name"},
				{Id: ValueOption, Type: "textinput", Label: "Value"},
			},
			Callback: option(ValueOption),
		},
		&core.Definition{
			ConnectionId: InternalConnection,
			Id:           "wait",
			EntityType:   core.TypeAction,
			Label:        "Wait",
			Options: []core.OptionSpec{
				{Id: TimeOption, Type: "number", Label: "Time (ms)", Default: 1000},
			},
		},
	)

	return r
}
