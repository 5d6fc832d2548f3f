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
	"errors"
	"testing"
)

func TestLocalsOrder(t *testing.T) {
	s := NewLocalScope(&Env{Variables: Table{"a": {"x": 2}}})
	// b refers to c, which is declared later.
	s.DefineExpression("b", "$(local:c) * 10")
	s.DefineExpression("c", "$(a:x) + 1")
	s.DefineValue("k", "const")

	rs := s.ResolveAll()
	if rs["b"].Value != 30.0 {
		t.Fatal(rs["b"])
	}
	if rs["k"].Value != "const" {
		t.Fatal(rs["k"])
	}
	if _, have := rs["b"].VariableIds["local:c"]; !have {
		t.Fatal(rs["b"].VariableIds)
	}

	r := Evaluate("$(local:b) + $(local:k)", s.Env())
	if r.Value != "30const" {
		t.Fatal(r.Value)
	}

	injected := s.Injected()
	if injected["local:c"] != 3.0 {
		t.Fatal(injected)
	}
}

func TestLocalsCyclic(t *testing.T) {
	s := NewLocalScope(nil)
	s.DefineExpression("x", "$(local:x) + 1")

	r := s.Resolve("x")
	if r.Ok() {
		t.Fatal(r.Value)
	}
	if !errors.Is(r.Err(), CyclicLocalVariable) {
		t.Fatal(r.Err())
	}

	// And again, which uses the memoized result.
	r = Evaluate("$(local:x)", s.Env())
	if !errors.Is(r.Err(), CyclicLocalVariable) {
		t.Fatal(r.Err())
	}
}

func TestLocalsIndirectCycle(t *testing.T) {
	s := NewLocalScope(nil)
	s.DefineExpression("a", "$(local:b)")
	s.DefineExpression("b", "$(local:c)")
	s.DefineExpression("c", "$(local:a)")
	s.DefineExpression("ok", "1")

	rs := s.ResolveAll()
	for _, name := range []string{"a", "b", "c"} {
		if !errors.Is(rs[name].Err(), CyclicLocalVariable) {
			t.Fatal(name, rs[name].Err())
		}
	}
	if !rs["ok"].Ok() {
		t.Fatal(rs["ok"].Error)
	}
}

func TestLocalsBadSource(t *testing.T) {
	s := NewLocalScope(nil)
	s.DefineExpression("bad", "$(a:b) +")
	s.DefineExpression("user", "$(local:bad) + 1")

	if r := s.Resolve("bad"); !errors.Is(r.Err(), SyntaxError) {
		t.Fatal(r.Err())
	}
	// A broken local is Unknown to its users.
	if r := s.Resolve("user"); !r.Ok() || !IsUnknown(r.Value) {
		t.Fatal(r)
	}
}
