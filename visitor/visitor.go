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

// Package visitor finds and rewrites the $(label:name) references
// in Entities.
//
// The fields that are visited are: string options that the
// Definition says use variables or are expressions, every option that
// is an expression ExpressionOrValue, and the string fields of a
// feedback's Style.  When an Entity's Definition is unknown, every
// string option is visited.
package visitor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Comcast/surface/core"
)

var (
	labelPattern     = regexp.MustCompile(`\$\(([^:$)]+):`)
	referencePattern = regexp.MustCompile(`\$\(([^:$)]+):([^)$]+)\)`)
)

// References is what CollectReferences finds.
type References struct {
	ConnectionIds    map[string]struct{} `json:"connectionIds"`
	ConnectionLabels map[string]struct{} `json:"connectionLabels"`
	VariableIds      map[string]struct{} `json:"variableIds"`

	// Definitions are the Entities' "connectionId:definitionId"
	// keys.
	Definitions map[string]struct{} `json:"definitions"`
}

func NewReferences() *References {
	return &References{
		ConnectionIds:    make(map[string]struct{}),
		ConnectionLabels: make(map[string]struct{}),
		VariableIds:      make(map[string]struct{}),
		Definitions:      make(map[string]struct{}),
	}
}

// Add adds everything in the given References.
func (r *References) Add(more *References) {
	for k := range more.ConnectionIds {
		r.ConnectionIds[k] = struct{}{}
	}
	for k := range more.ConnectionLabels {
		r.ConnectionLabels[k] = struct{}{}
	}
	for k := range more.VariableIds {
		r.VariableIds[k] = struct{}{}
	}
	for k := range more.Definitions {
		r.Definitions[k] = struct{}{}
	}
}

// Sorted returns a set's members in order.
func Sorted(set map[string]struct{}) []string {
	acc := make([]string, 0, len(set))
	for k := range set {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}

// ScanString adds the references in the string.
func (r *References) ScanString(s string) {
	if !strings.Contains(s, "$(") {
		return
	}
	for _, m := range labelPattern.FindAllStringSubmatch(s, -1) {
		r.ConnectionLabels[m[1]] = struct{}{}
	}
	for _, m := range referencePattern.FindAllStringSubmatch(s, -1) {
		r.VariableIds[m[1]+":"+m[2]] = struct{}{}
	}
}

// visitEntity calls f on each string field that should be scanned.
// When f returns a different string, the field is replaced.
func visitEntity(e *core.Entity, def *core.Definition, f func(string) string) {
	for _, k := range e.Options.Keys() {
		v := e.Options[k]
		if x, is := core.AsExpressionOrValue(v); is {
			if src, ok := x.Source(); ok {
				e.Options[k] = core.NewExpression(f(src))
				continue
			}
			if def == nil {
				e.Options[k] = core.ExpressionOrValue{Value: visitValue(x.Value, f)}
			}
			continue
		}
		if def == nil {
			e.Options[k] = visitValue(v, f)
			continue
		}
		spec, have := def.Option(k)
		if !have || !(spec.UseVariables || spec.IsExpression) {
			continue
		}
		if s, is := v.(string); is {
			e.Options[k] = f(s)
		}
	}
	for _, k := range sortedStyleKeys(e.Style) {
		if s, is := e.Style[k].(string); is {
			e.Style[k] = f(s)
		}
	}
}

// visitValue visits every string in a JSON-like value.
func visitValue(v interface{}, f func(string) string) interface{} {
	switch vv := v.(type) {
	case string:
		return f(vv)
	case map[string]interface{}:
		for k, x := range vv {
			vv[k] = visitValue(x, f)
		}
		return vv
	case []interface{}:
		for i, x := range vv {
			vv[i] = visitValue(x, f)
		}
		return vv
	}
	return v
}

func sortedStyleKeys(s core.Style) []string {
	acc := make([]string, 0, len(s))
	for k := range s {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}

// Collect adds the references of a single Entity (not its Children).
// The Entity is not modified.
func Collect(e *core.Entity, reg core.Registry, refs *References) {
	if e.ConnectionId != "" {
		refs.ConnectionIds[e.ConnectionId] = struct{}{}
	}
	if e.DefinitionId != "" {
		refs.Definitions[e.Key()] = struct{}{}
	}
	// visitEntity writes back, so give it a copy.
	c := &core.Entity{
		Options: e.Options.Copy(),
		Style:   e.Style.Copy(),
	}
	visitEntity(c, core.Lookup(reg, e), func(s string) string {
		refs.ScanString(s)
		return s
	})
}

// CollectReferences finds the references of the Entity and all of its
// Children.
func CollectReferences(e *core.Entity, reg core.Registry) *References {
	refs := NewReferences()
	var walk func(e *core.Entity)
	walk = func(e *core.Entity) {
		Collect(e, reg, refs)
		for _, g := range core.SortedGroups(e.Children) {
			for _, c := range e.Children[g] {
				walk(c)
			}
		}
	}
	walk(e)
	return refs
}

// CollectOptions scans a raw options record.  A nil Definition means
// every string is scanned.
func CollectOptions(opts core.Options, def *core.Definition) *References {
	refs := NewReferences()
	c := &core.Entity{Options: opts.Copy()}
	visitEntity(c, def, func(s string) string {
		refs.ScanString(s)
		return s
	})
	return refs
}

// RenameString replaces each "$(from:" with "$(to:" and returns the
// new string and the number of replacements.  The ":" after the label
// means a label that merely starts with from is left alone.
func RenameString(s, from, to string) (string, int) {
	old := "$(" + from + ":"
	n := strings.Count(s, old)
	if n == 0 {
		return s, 0
	}
	return strings.ReplaceAll(s, old, "$("+to+":"), n
}

// Rename rewrites the references to connection label from in a single
// Entity (not its Children).  Returns the number of substitutions.
func Rename(e *core.Entity, reg core.Registry, from, to string) int {
	if from == to {
		return 0
	}
	count := 0
	visitEntity(e, core.Lookup(reg, e), func(s string) string {
		acc, n := RenameString(s, from, to)
		count += n
		return acc
	})
	return count
}

// RenameConnection rewrites, in place, the references to connection
// label from in the Entity and all of its Children.  Returns the
// number of substitutions.
func RenameConnection(e *core.Entity, reg core.Registry, from, to string) int {
	count := Rename(e, reg, from, to)
	for _, g := range core.SortedGroups(e.Children) {
		for _, c := range e.Children[g] {
			count += RenameConnection(c, reg, from, to)
		}
	}
	return count
}
