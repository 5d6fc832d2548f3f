/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package testutil has small helpers for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/Comcast/surface/expression"
)

// JS renders its argument as JSON or as a string indicating an error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		log.Printf("warning: testutil.JS error %s for %#v", err, x)
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Dwimjs, when given a string or bytes, parses that data as JSON.  A
// string that isn't JSON is returned as is.  When given anything
// else, just returns what's given.
//
// See https://en.wikipedia.org/wiki/DWIM.
func Dwimjs(x interface{}) interface{} {
	switch vv := x.(type) {
	case []byte:
		return Dwimjs(string(vv))
	case string:
		var v interface{}
		if err := json.Unmarshal([]byte(vv), &v); err != nil {
			return vv
		}
		return v
	default:
		return x
	}
}

// Table makes a variable table from alternating VariableIds and
// values:
//
//	Table("conn:volume", 7, "conn:muted", false)
//
// Values go through Dwimjs.  Panics on a bad VariableId.
func Table(kvs ...interface{}) expression.Table {
	t := make(expression.Table, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		id, _ := kvs[i].(string)
		scope, name, ok := expression.SplitVariableId(id)
		if !ok {
			panic(fmt.Errorf("bad variable id %#v", kvs[i]))
		}
		v := kvs[i+1]
		if s, is := v.([]byte); is {
			v = Dwimjs(s)
		}
		t.Set(scope, name, expression.Normalize(v))
	}
	return t
}

// Unmarshal parses JSON into the target and panics on error.
func Unmarshal(js string, target interface{}) {
	if err := json.Unmarshal([]byte(js), target); err != nil {
		panic(fmt.Errorf("testutil.Unmarshal %s on %s", err, js))
	}
}
