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
	"testing"

	"gopkg.in/yaml.v2"
)

func TestOptionsJSONDiscriminator(t *testing.T) {
	js := `{
  "expr": {"isExpression": true, "value": "$(internal:time_s) > 3"},
  "lit": {"isExpression": false, "value": 42},
  "notEOV": {"isExpression": true, "value": "x", "extra": 1},
  "plain": "$(a:b)"
}`
	var o Options
	if err := json.Unmarshal([]byte(js), &o); err != nil {
		t.Fatal(err)
	}

	x, is := o["expr"].(ExpressionOrValue)
	if !is {
		t.Fatalf("%T", o["expr"])
	}
	if src, _ := x.Source(); src != "$(internal:time_s) > 3" {
		t.Fatal(src)
	}

	if x, is := o["lit"].(ExpressionOrValue); !is || x.IsExpression || x.Value != 42.0 {
		t.Fatal(o["lit"])
	}

	if _, is := o["notEOV"].(map[string]interface{}); !is {
		t.Fatalf("%T", o["notEOV"])
	}

	if o["plain"] != "$(a:b)" {
		t.Fatal(o["plain"])
	}
}

func TestOptionsBadExpression(t *testing.T) {
	js := `{"expr": {"isExpression": true, "value": 3}}`
	var o Options
	if err := json.Unmarshal([]byte(js), &o); err == nil {
		t.Fatal("expected an error")
	}
}

func TestOptionsYAML(t *testing.T) {
	src := `
expr:
  isExpression: true
  value: 1 + 2
nested:
  a:
    b: c
`
	var o Options
	if err := yaml.Unmarshal([]byte(src), &o); err != nil {
		t.Fatal(err)
	}
	if x, is := o["expr"].(ExpressionOrValue); !is || !x.IsExpression {
		t.Fatalf("%#v", o["expr"])
	}
	m, is := o["nested"].(map[string]interface{})
	if !is {
		t.Fatalf("%T", o["nested"])
	}
	if _, is := m["a"].(map[string]interface{}); !is {
		t.Fatalf("%T", m["a"])
	}
}

func TestOptionsRoundTrip(t *testing.T) {
	o := Options{
		"expr": NewExpression("1 + 1"),
		"n":    3.0,
	}
	js, err := json.Marshal(o)
	if err != nil {
		t.Fatal(err)
	}
	var p Options
	if err := json.Unmarshal(js, &p); err != nil {
		t.Fatal(err)
	}
	if x, is := p["expr"].(ExpressionOrValue); !is || !x.IsExpression {
		t.Fatal(string(js))
	}
}

func TestOptionsCopy(t *testing.T) {
	o := Options{
		"m": map[string]interface{}{"x": 1},
	}
	c := o.Copy()
	c["m"].(map[string]interface{})["x"] = 2
	if o["m"].(map[string]interface{})["x"] != 1 {
		t.Fatal("shared")
	}
}
