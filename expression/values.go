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
	"math"
	"reflect"
	"strconv"
	"strings"
)

// NA is how Unknown renders as text.
const NA = "$NA"

type unknown struct{}

func (unknown) String() string {
	return NA
}

func (unknown) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Unknown is the value of a variable that isn't in the table (and of
// anything computed from one).
var Unknown interface{} = unknown{}

// IsUnknown reports whether the value is Unknown.
func IsUnknown(x interface{}) bool {
	_, is := x.(unknown)
	return is
}

// Normalize converts Go numeric types to float64 and
// map[interface{}]interface{} to map[string]interface{} so that the
// evaluator only has to deal with JSON-like values.
func Normalize(x interface{}) interface{} {
	switch vv := x.(type) {
	case float64, string, bool, nil, unknown:
		return x
	case int:
		return float64(vv)
	case int8:
		return float64(vv)
	case int16:
		return float64(vv)
	case int32:
		return float64(vv)
	case int64:
		return float64(vv)
	case uint:
		return float64(vv)
	case uint8:
		return float64(vv)
	case uint16:
		return float64(vv)
	case uint32:
		return float64(vv)
	case uint64:
		return float64(vv)
	case float32:
		return float64(vv)
	case json.Number:
		f, err := vv.Float64()
		if err != nil {
			return vv.String()
		}
		return f
	case map[interface{}]interface{}:
		acc := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			acc[Stringify(k)] = Normalize(v)
		}
		return acc
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			acc[k] = Normalize(v)
		}
		return acc
	case []interface{}:
		acc := make([]interface{}, len(vv))
		for i, v := range vv {
			acc[i] = Normalize(v)
		}
		return acc
	case []string:
		acc := make([]interface{}, len(vv))
		for i, v := range vv {
			acc[i] = v
		}
		return acc
	case []float64:
		acc := make([]interface{}, len(vv))
		for i, v := range vv {
			acc[i] = v
		}
		return acc
	case []map[string]interface{}:
		acc := make([]interface{}, len(vv))
		for i, v := range vv {
			acc[i] = Normalize(v)
		}
		return acc
	}
	return x
}

// Truthy follows ECMAScript's notion of truthiness.
func Truthy(x interface{}) bool {
	switch vv := x.(type) {
	case nil, unknown:
		return false
	case bool:
		return vv
	case float64:
		return vv != 0 && !math.IsNaN(vv)
	case string:
		return vv != ""
	}
	return true
}

// ToNumber converts a value to a float64 if that makes sense.
// Strings that don't look like numbers don't.
func ToNumber(x interface{}) (float64, bool) {
	switch vv := Normalize(x).(type) {
	case float64:
		return vv, true
	case bool:
		if vv {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	case string:
		s := strings.TrimSpace(vv)
		if s == "" {
			return 0, true
		}
		if f, err := parseNumber(s); err == nil {
			return f, true
		}
		return 0, false
	}
	return 0, false
}

// Stringify renders a value as text.  Unknown renders as NA.
func Stringify(x interface{}) string {
	switch vv := Normalize(x).(type) {
	case nil:
		return "null"
	case unknown:
		return NA
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return formatNumber(vv)
	}
	js, err := json.Marshal(x)
	if err != nil {
		return NA
	}
	return string(js)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// LooseEqual is ==.
func LooseEqual(x, y interface{}) bool {
	x, y = Normalize(x), Normalize(y)
	xNullish := x == nil || IsUnknown(x)
	yNullish := y == nil || IsUnknown(y)
	if xNullish || yNullish {
		return xNullish && yNullish
	}
	switch xv := x.(type) {
	case string:
		if yv, is := y.(string); is {
			return xv == yv
		}
	case float64:
		if yv, is := y.(float64); is {
			return xv == yv
		}
	case bool:
		if yv, is := y.(bool); is {
			return xv == yv
		}
	}
	if isScalar(x) && isScalar(y) {
		xf, xok := ToNumber(x)
		yf, yok := ToNumber(y)
		return xok && yok && xf == yf
	}
	return reflect.DeepEqual(x, y)
}

// StrictEqual is ===.
func StrictEqual(x, y interface{}) bool {
	x, y = Normalize(x), Normalize(y)
	switch xv := x.(type) {
	case float64:
		yv, is := y.(float64)
		return is && xv == yv
	case nil:
		return y == nil
	}
	if reflect.TypeOf(x) != reflect.TypeOf(y) {
		return false
	}
	return reflect.DeepEqual(x, y)
}

func isScalar(x interface{}) bool {
	switch x.(type) {
	case string, float64, bool:
		return true
	}
	return false
}

// toInt32 is ECMAScript's ToInt32.
func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Mod(math.Trunc(f), 1<<32))))
}
