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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// Func is a function that expressions can call.  Functions must not
// have side effects.
type Func func(s *State, args []interface{}) (interface{}, error)

// Builtins are the functions available to every expression.
var Builtins map[string]Func

func init() {
	Builtins = map[string]Func{
		"round":              mathFunc(func(x float64) float64 { return math.Floor(x + 0.5) }),
		"floor":              mathFunc(math.Floor),
		"ceil":               mathFunc(math.Ceil),
		"abs":                mathFunc(math.Abs),
		"min":                minMax(math.Min, math.Inf(1)),
		"max":                minMax(math.Max, math.Inf(-1)),
		"fromRadix":          fromRadix,
		"toRadix":            toRadix,
		"toFixed":            toFixed,
		"isNumber":           isNumber,
		"parseInt":           parseIntFunc,
		"parseFloat":         parseFloatFunc,
		"bool":               boolFunc,
		"string":             stringFunc,
		"strlen":             strlen,
		"trim":               stringFunc1(strings.TrimSpace),
		"substr":             substr,
		"split":              split,
		"join":               join,
		"concat":             concat,
		"includes":           includes,
		"indexOf":            indexOfFunc(false),
		"lastIndexOf":        indexOfFunc(true),
		"toUpperCase":        stringFunc1(strings.ToUpper),
		"toLowerCase":        stringFunc1(strings.ToLower),
		"replaceAll":         replaceAll,
		"secondsToTimestamp": secondsToTimestamp,
		"msToTimestamp":      msToTimestamp,
		"timestampToSeconds": timestampToSeconds,
		"jsonparse":          jsonparse,
		"jsonstringify":      jsonstringify,
		"unixNow":            unixNow,
		"cronNext":           cronNext,
		"parseVariables":     parseVariablesFunc,
		"getVariable":        getVariable,
	}
}

func arg(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return Unknown
}

func numArg(args []interface{}, i int) (float64, error) {
	x := arg(args, i)
	f, ok := ToNumber(x)
	if !ok || IsUnknown(x) {
		return 0, fmt.Errorf("%w: argument %d (%s) isn't a number", TypeMismatch, i+1, describe(x))
	}
	return f, nil
}

func intArg(args []interface{}, i int, def int) (int, error) {
	if len(args) <= i || IsUnknown(args[i]) {
		return def, nil
	}
	n, err := int64Arg(args, i)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func int64Arg(args []interface{}, i int) (int64, error) {
	f, err := numArg(args, i)
	if err != nil {
		return 0, err
	}
	return toInt64(f, i)
}

// toInt64 truncates f, which must be finite and fit in an int64.
func toInt64(f float64, i int) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= math.MinInt64 || -math.MinInt64 <= f {
		return 0, fmt.Errorf("%w: argument %d (%v) is out of range", TypeMismatch, i+1, f)
	}
	return int64(f), nil
}

func strArg(args []interface{}, i int) string {
	x := arg(args, i)
	if s, is := x.(string); is {
		return s
	}
	return Stringify(x)
}

func mathFunc(f func(float64) float64) Func {
	return func(s *State, args []interface{}) (interface{}, error) {
		if IsUnknown(arg(args, 0)) {
			return Unknown, nil
		}
		x, err := numArg(args, 0)
		if err != nil {
			return nil, err
		}
		return f(x), nil
	}
}

func minMax(f func(float64, float64) float64, acc float64) Func {
	return func(s *State, args []interface{}) (interface{}, error) {
		// min([1,2,3]) works as well as min(1,2,3).
		if len(args) == 1 {
			if xs, is := args[0].([]interface{}); is {
				args = xs
			}
		}
		r := acc
		for i := range args {
			x, err := numArg(args, i)
			if err != nil {
				return nil, err
			}
			r = f(r, x)
		}
		return r, nil
	}
}

func fromRadix(s *State, args []interface{}) (interface{}, error) {
	radix, err := intArg(args, 1, 16)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(strArg(args, 0)), radix, 64)
	if err != nil {
		return math.NaN(), nil
	}
	return float64(n), nil
}

func toRadix(s *State, args []interface{}) (interface{}, error) {
	x, err := int64Arg(args, 0)
	if err != nil {
		return nil, err
	}
	radix, err := intArg(args, 1, 16)
	if err != nil {
		return nil, err
	}
	if radix < 2 || 36 < radix {
		return nil, fmt.Errorf("%w: radix %d", TypeMismatch, radix)
	}
	return strconv.FormatInt(x, radix), nil
}

func toFixed(s *State, args []interface{}) (interface{}, error) {
	x, err := numArg(args, 0)
	if err != nil {
		return nil, err
	}
	d, err := intArg(args, 1, 0)
	if err != nil {
		return nil, err
	}
	if d < 0 || 100 < d {
		return nil, fmt.Errorf("%w: digits %d", TypeMismatch, d)
	}
	return strconv.FormatFloat(x, 'f', d, 64), nil
}

func isNumber(s *State, args []interface{}) (interface{}, error) {
	f, is := arg(args, 0).(float64)
	return is && !math.IsNaN(f), nil
}

// numericPrefix returns the longest prefix of s that looks like a
// number in the given radix (10 allows a fraction and exponent).
func numericPrefix(s string, radix int, float bool) string {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	digit := func(c byte) bool {
		var v int
		switch {
		case isDigit(c):
			v = int(c - '0')
		case 'a' <= c && c <= 'z':
			v = int(c-'a') + 10
		case 'A' <= c && c <= 'Z':
			v = int(c-'A') + 10
		default:
			return false
		}
		return v < radix
	}
	for i < len(s) && digit(s[i]) {
		i++
	}
	if float && i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	return s[:i]
}

func parseIntFunc(s *State, args []interface{}) (interface{}, error) {
	radix, err := intArg(args, 1, 10)
	if err != nil {
		return nil, err
	}
	str := strings.TrimSpace(strArg(args, 0))
	if radix == 16 {
		str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	}
	if radix < 2 || 36 < radix {
		return math.NaN(), nil
	}
	n, err := strconv.ParseInt(numericPrefix(str, radix, false), radix, 64)
	if err != nil {
		return math.NaN(), nil
	}
	return float64(n), nil
}

func parseFloatFunc(s *State, args []interface{}) (interface{}, error) {
	str := numericPrefix(strings.TrimSpace(strArg(args, 0)), 10, true)
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return math.NaN(), nil
	}
	return f, nil
}

// boolFunc also treats "false" and "0" as false.
func boolFunc(s *State, args []interface{}) (interface{}, error) {
	x := arg(args, 0)
	if str, is := x.(string); is && (str == "false" || str == "0") {
		return false, nil
	}
	return Truthy(x), nil
}

func stringFunc(s *State, args []interface{}) (interface{}, error) {
	return Stringify(arg(args, 0)), nil
}

func stringFunc1(f func(string) string) Func {
	return func(s *State, args []interface{}) (interface{}, error) {
		return f(strArg(args, 0)), nil
	}
}

func strlen(s *State, args []interface{}) (interface{}, error) {
	return float64(len([]rune(strArg(args, 0)))), nil
}

// substr is like ECMAScript's slice: negative offsets count from
// the end.
func substr(s *State, args []interface{}) (interface{}, error) {
	rs := []rune(strArg(args, 0))
	n := len(rs)
	start, err := intArg(args, 1, 0)
	if err != nil {
		return nil, err
	}
	end, err := intArg(args, 2, n)
	if err != nil {
		return nil, err
	}
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		if i < 0 {
			return 0
		}
		if n < i {
			return n
		}
		return i
	}
	start, end = clamp(start), clamp(end)
	if end < start {
		return "", nil
	}
	return string(rs[start:end]), nil
}

func split(s *State, args []interface{}) (interface{}, error) {
	parts := strings.Split(strArg(args, 0), strArg(args, 1))
	acc := make([]interface{}, len(parts))
	for i, p := range parts {
		acc[i] = p
	}
	return acc, nil
}

func join(s *State, args []interface{}) (interface{}, error) {
	xs, is := arg(args, 0).([]interface{})
	if !is {
		return nil, fmt.Errorf("%w: join needs an array", TypeMismatch)
	}
	sep := ","
	if 1 < len(args) {
		sep = strArg(args, 1)
	}
	strs := make([]string, len(xs))
	for i, x := range xs {
		strs[i] = Stringify(x)
	}
	return strings.Join(strs, sep), nil
}

func concat(s *State, args []interface{}) (interface{}, error) {
	var acc strings.Builder
	for i := range args {
		acc.WriteString(strArg(args, i))
	}
	return acc.String(), nil
}

func includes(s *State, args []interface{}) (interface{}, error) {
	switch vv := arg(args, 0).(type) {
	case []interface{}:
		for _, x := range vv {
			if StrictEqual(x, arg(args, 1)) {
				return true, nil
			}
		}
		return false, nil
	case string:
		return strings.Contains(vv, strArg(args, 1)), nil
	}
	return false, nil
}

func indexOfFunc(last bool) Func {
	return func(s *State, args []interface{}) (interface{}, error) {
		switch vv := arg(args, 0).(type) {
		case []interface{}:
			found := -1
			for i, x := range vv {
				if StrictEqual(x, arg(args, 1)) {
					found = i
					if !last {
						break
					}
				}
			}
			return float64(found), nil
		default:
			str, sub := strArg(args, 0), strArg(args, 1)
			var i int
			if last {
				i = strings.LastIndex(str, sub)
			} else {
				i = strings.Index(str, sub)
			}
			if i < 0 {
				return -1.0, nil
			}
			return float64(len([]rune(str[:i]))), nil
		}
	}
}

func replaceAll(s *State, args []interface{}) (interface{}, error) {
	return strings.ReplaceAll(strArg(args, 0), strArg(args, 1), strArg(args, 2)), nil
}

// formatDuration renders with the tokens HH, mm, ss, and ms.
func formatDuration(ms int64, format string) string {
	neg := ms < 0
	if neg {
		ms = -ms
	}
	h := ms / 3600000
	m := (ms / 60000) % 60
	sec := (ms / 1000) % 60
	r := strings.NewReplacer(
		"HH", fmt.Sprintf("%02d", h),
		"mm", fmt.Sprintf("%02d", m),
		"ss", fmt.Sprintf("%02d", sec),
		"ms", fmt.Sprintf("%03d", ms%1000),
	)
	acc := r.Replace(format)
	if neg {
		acc = "-" + acc
	}
	return acc
}

func secondsToTimestamp(s *State, args []interface{}) (interface{}, error) {
	x, err := numArg(args, 0)
	if err != nil {
		return nil, err
	}
	ms, err := toInt64(x*1000, 0)
	if err != nil {
		return nil, err
	}
	format := "HH:mm:ss"
	if 1 < len(args) {
		format = strArg(args, 1)
	}
	return formatDuration(ms, format), nil
}

func msToTimestamp(s *State, args []interface{}) (interface{}, error) {
	ms, err := int64Arg(args, 0)
	if err != nil {
		return nil, err
	}
	format := "mm:ss.ms"
	if 1 < len(args) {
		format = strArg(args, 1)
	}
	return formatDuration(ms, format), nil
}

// timestampToSeconds parses [[HH:]mm:]ss.
func timestampToSeconds(s *State, args []interface{}) (interface{}, error) {
	parts := strings.Split(strings.TrimSpace(strArg(args, 0)), ":")
	if 3 < len(parts) {
		return nil, fmt.Errorf("%w: bad timestamp", TypeMismatch)
	}
	acc := 0.0
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp", TypeMismatch)
		}
		acc = acc*60 + f
	}
	return acc, nil
}

func jsonparse(s *State, args []interface{}) (interface{}, error) {
	var x interface{}
	if err := json.Unmarshal([]byte(strArg(args, 0)), &x); err != nil {
		return nil, nil
	}
	return x, nil
}

func jsonstringify(s *State, args []interface{}) (interface{}, error) {
	js, err := json.Marshal(arg(args, 0))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", TypeMismatch, err)
	}
	return string(js), nil
}

func unixNow(s *State, args []interface{}) (interface{}, error) {
	return float64(s.Now().UnixNano() / int64(time.Millisecond)), nil
}

// cronNext returns the next time (in ms) after the given time (in ms,
// default now) that matches the cron spec.
func cronNext(s *State, args []interface{}) (interface{}, error) {
	x, err := cronexpr.Parse(strArg(args, 0))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", TypeMismatch, err)
	}
	from := s.Now()
	if 1 < len(args) {
		ms, err := int64Arg(args, 1)
		if err != nil {
			return nil, err
		}
		from = time.UnixMilli(ms).In(from.Location())
	}
	t := x.Next(from)
	if t.IsZero() {
		return Unknown, nil
	}
	return float64(t.UnixNano() / int64(time.Millisecond)), nil
}

func parseVariablesFunc(s *State, args []interface{}) (interface{}, error) {
	var failed error
	str := ParseVariables(strArg(args, 0), func(scope, name string) interface{} {
		v, err := s.Lookup(scope, name)
		if err != nil && failed == nil {
			failed = err
		}
		return v
	})
	if failed != nil {
		return nil, failed
	}
	return str, nil
}

// getVariable(scope, name) or getVariable("scope:name").
func getVariable(s *State, args []interface{}) (interface{}, error) {
	scope, name := strArg(args, 0), ""
	if len(args) < 2 {
		var ok bool
		if scope, name, ok = SplitVariableId(scope); !ok {
			return nil, fmt.Errorf("%w: getVariable needs a scope and a name", TypeMismatch)
		}
	} else {
		name = strArg(args, 1)
	}
	return s.Lookup(scope, name)
}
