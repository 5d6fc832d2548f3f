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

package sio

import (
	"reflect"
	"sync"

	"github.com/Comcast/surface/expression"
)

// VariableTable is an expression.Variables that's safe for concurrent
// use.
type VariableTable struct {
	sync.RWMutex
	table expression.Table
}

func NewVariableTable() *VariableTable {
	return &VariableTable{
		table: make(expression.Table, 8),
	}
}

func (t *VariableTable) Lookup(scope, name string) (interface{}, bool) {
	t.RLock()
	defer t.RUnlock()
	return t.table.Lookup(scope, name)
}

// Set sets the variable and reports whether its value changed.
func (t *VariableTable) Set(scope, name string, v interface{}) bool {
	v = expression.Normalize(v)
	t.Lock()
	defer t.Unlock()
	if old, have := t.table.Lookup(scope, name); have && reflect.DeepEqual(old, v) {
		return false
	}
	t.table.Set(scope, name, v)
	return true
}

// Delete removes the variable and reports whether it was present.
func (t *VariableTable) Delete(scope, name string) bool {
	t.Lock()
	defer t.Unlock()
	names, have := t.table[scope]
	if !have {
		return false
	}
	if _, have = names[name]; !have {
		return false
	}
	delete(names, name)
	return true
}

// Scope returns a copy of the variables in the scope.
func (t *VariableTable) Scope(scope string) map[string]interface{} {
	t.RLock()
	defer t.RUnlock()
	acc := make(map[string]interface{}, len(t.table[scope]))
	for k, v := range t.table[scope] {
		acc[k] = v
	}
	return acc
}

// feedbackValues holds the values that connections report for
// their feedbacks, by control id and then entity id.
type feedbackValues struct {
	sync.Mutex
	m map[string]map[string]interface{}
}

func (f *feedbackValues) set(controlId, entityId string, v interface{}) bool {
	v = expression.Normalize(v)
	f.Lock()
	defer f.Unlock()
	if f.m == nil {
		f.m = make(map[string]map[string]interface{})
	}
	vs, have := f.m[controlId]
	if !have {
		vs = make(map[string]interface{})
		f.m[controlId] = vs
	}
	if old, have := vs[entityId]; have && reflect.DeepEqual(old, v) {
		return false
	}
	vs[entityId] = v
	return true
}

func (f *feedbackValues) get(controlId string) map[string]interface{} {
	f.Lock()
	defer f.Unlock()
	acc := make(map[string]interface{}, len(f.m[controlId]))
	for k, v := range f.m[controlId] {
		acc[k] = v
	}
	return acc
}

func (f *feedbackValues) forget(controlId string) {
	f.Lock()
	delete(f.m, controlId)
	f.Unlock()
}
