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

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ExpressionOrValue is an option value that is either a literal or
// the source of an expression.
//
// When IsExpression is true, Value is a string.
type ExpressionOrValue struct {
	IsExpression bool        `json:"isExpression" yaml:"isExpression"`
	Value        interface{} `json:"value" yaml:"value"`
}

// NewExpression makes an ExpressionOrValue holding expression source.
func NewExpression(src string) ExpressionOrValue {
	return ExpressionOrValue{IsExpression: true, Value: src}
}

// NewValue makes an ExpressionOrValue holding a literal.
func NewValue(v interface{}) ExpressionOrValue {
	return ExpressionOrValue{Value: v}
}

// Source returns the expression source.  The second value is false
// if this thing isn't an expression.
func (x ExpressionOrValue) Source() (string, bool) {
	if !x.IsExpression {
		return "", false
	}
	s, is := x.Value.(string)
	return s, is
}

// Check enforces the invariant that an expression's value is a
// string.
func (x ExpressionOrValue) Check() error {
	if x.IsExpression {
		if _, is := x.Value.(string); !is {
			return fmt.Errorf("%w: expression value is a %T", InvalidEntity, x.Value)
		}
	}
	return nil
}

func (x ExpressionOrValue) MarshalJSON() ([]byte, error) {
	if err := x.Check(); err != nil {
		return nil, err
	}
	type plain ExpressionOrValue
	return json.Marshal(plain(x))
}

func (x *ExpressionOrValue) UnmarshalJSON(bs []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(bs, &m); err != nil {
		return err
	}
	y, is := asExpressionOrValue(m)
	if !is {
		return errors.New("not an ExpressionOrValue: " + string(bs))
	}
	*x = y
	return x.Check()
}

// asExpressionOrValue recognizes the serialized form: an object with
// exactly the properties "isExpression" (a bool) and "value".
func asExpressionOrValue(x interface{}) (ExpressionOrValue, bool) {
	var m map[string]interface{}
	switch vv := x.(type) {
	case ExpressionOrValue:
		return vv, true
	case *ExpressionOrValue:
		if vv == nil {
			return ExpressionOrValue{}, false
		}
		return *vv, true
	case map[string]interface{}:
		m = vv
	case map[interface{}]interface{}:
		m = make(map[string]interface{}, len(vv))
		for k, v := range vv {
			s, is := k.(string)
			if !is {
				return ExpressionOrValue{}, false
			}
			m[s] = v
		}
	default:
		return ExpressionOrValue{}, false
	}
	if len(m) != 2 {
		return ExpressionOrValue{}, false
	}
	flag, is := m["isExpression"].(bool)
	if !is {
		return ExpressionOrValue{}, false
	}
	v, have := m["value"]
	if !have {
		return ExpressionOrValue{}, false
	}
	return ExpressionOrValue{IsExpression: flag, Value: v}, true
}

// AsExpressionOrValue reports whether the option value is an
// ExpressionOrValue (in either its Go or its serialized form).
func AsExpressionOrValue(x interface{}) (ExpressionOrValue, bool) {
	return asExpressionOrValue(x)
}

// Options maps option names to values.  A value is either a literal
// or an ExpressionOrValue.
type Options map[string]interface{}

// Keys returns the option names in a stable order.
func (o Options) Keys() []string {
	ks := make([]string, 0, len(o))
	for k := range o {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// Copy makes a deep copy.
func (o Options) Copy() Options {
	if o == nil {
		return nil
	}
	acc := make(Options, len(o))
	for k, v := range o {
		acc[k] = CopyValue(v)
	}
	return acc
}

// Normalize converts any serialized ExpressionOrValue objects to
// ExpressionOrValues.  YAML parsers can also give
// map[interface{}]interface{}, which is converted too.
func (o Options) Normalize() error {
	for k, v := range o {
		if x, is := asExpressionOrValue(v); is {
			if err := x.Check(); err != nil {
				return fmt.Errorf("option %s: %w", k, err)
			}
			o[k] = x
			continue
		}
		o[k] = stringMaps(v)
	}
	return nil
}

func (o *Options) UnmarshalJSON(bs []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(bs, &m); err != nil {
		return err
	}
	acc := Options(m)
	if err := acc.Normalize(); err != nil {
		return err
	}
	*o = acc
	return nil
}

func (o *Options) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var m map[string]interface{}
	if err := unmarshal(&m); err != nil {
		return err
	}
	acc := Options(m)
	if err := acc.Normalize(); err != nil {
		return err
	}
	*o = acc
	return nil
}

// Check verifies every ExpressionOrValue in the Options.
func (o Options) Check() error {
	for _, k := range o.Keys() {
		if x, is := o[k].(ExpressionOrValue); is {
			if err := x.Check(); err != nil {
				return fmt.Errorf("option %s: %w", k, err)
			}
		}
	}
	return nil
}

// CopyValue makes a deep copy of a JSON-like value.
func CopyValue(x interface{}) interface{} {
	switch vv := x.(type) {
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			acc[k] = CopyValue(v)
		}
		return acc
	case []interface{}:
		acc := make([]interface{}, len(vv))
		for i, v := range vv {
			acc[i] = CopyValue(v)
		}
		return acc
	case []map[string]interface{}:
		acc := make([]map[string]interface{}, len(vv))
		for i, m := range vv {
			acc[i] = CopyValue(m).(map[string]interface{})
		}
		return acc
	case ExpressionOrValue:
		return ExpressionOrValue{IsExpression: vv.IsExpression, Value: CopyValue(vv.Value)}
	case []byte:
		return append([]byte(nil), vv...)
	default:
		return x
	}
}

// stringMaps recursively converts map[interface{}]interface{} to
// map[string]interface{}.  Keys that aren't strings are formatted.
func stringMaps(x interface{}) interface{} {
	switch vv := x.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			s, is := k.(string)
			if !is {
				s = fmt.Sprintf("%v", k)
			}
			m[s] = stringMaps(v)
		}
		return m
	case map[string]interface{}:
		for k, v := range vv {
			vv[k] = stringMaps(v)
		}
		return vv
	case []interface{}:
		for i, v := range vv {
			vv[i] = stringMaps(v)
		}
		return vv
	default:
		return x
	}
}
