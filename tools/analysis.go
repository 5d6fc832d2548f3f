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

package tools

import (
	"encoding/json"
	"sort"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/visitor"
)

// ControlAnalysis reports what's in a Control and what looks wrong.
type ControlAnalysis struct {
	Id   string       `json:"id"`
	Type control.Type `json:"type"`

	// Entities is the total number of Entities, including
	// descendants.
	Entities int `json:"entities"`

	// Types counts Entities by type.
	Types map[core.EntityType]int `json:"types"`

	MaxDepth int `json:"maxDepth"`
	Steps    int `json:"steps,omitempty"`

	Connections        []string `json:"connections,omitempty"`
	Definitions        []string `json:"definitions,omitempty"`
	Variables          []string `json:"variables,omitempty"`
	UnknownDefinitions []string `json:"unknownDefinitions,omitempty"`
	DuplicateIds       []string `json:"duplicateIds,omitempty"`
	Disabled           []string `json:"disabled,omitempty"`

	// Errors are problems that would prevent loading the Control.
	Errors []string `json:"errors,omitempty"`
}

// Analyze examines the persisted Control.  The given Registry (which
// can be nil) is consulted after the internal definitions.
func Analyze(d *control.Data, reg core.Registry) (*ControlAnalysis, error) {
	regs := core.Registries{control.Internal(), reg}

	a := &ControlAnalysis{
		Id:     d.Id,
		Type:   d.Type,
		Types:  make(map[core.EntityType]int, 4),
		Errors: make([]string, 0, 8),
	}

	var (
		seen    = make(map[string]int)
		unknown = make(map[string]struct{})
		refs    = visitor.NewReferences()
	)

	for _, l := range Lists(d) {
		walk(l.Entities, 1, func(e *core.Entity, depth int) {
			a.Entities++
			a.Types[e.Type]++
			if a.MaxDepth < depth {
				a.MaxDepth = depth
			}
			if e.Id != "" {
				seen[e.Id]++
			}
			if e.Disabled {
				a.Disabled = append(a.Disabled, e.Id)
			}
			if core.Lookup(regs, e) == nil {
				unknown[e.Key()] = struct{}{}
			}
			visitor.Collect(e, regs, refs)
		})
	}

	for _, v := range d.Style {
		if s, is := v.(string); is {
			refs.ScanString(s)
		}
	}

	if d.Steps != nil {
		a.Steps = len(d.Steps.Order)
	}

	for id, n := range seen {
		if 1 < n {
			a.DuplicateIds = append(a.DuplicateIds, id)
		}
	}
	sort.Strings(a.DuplicateIds)

	a.UnknownDefinitions = visitor.Sorted(unknown)
	a.Connections = visitor.Sorted(refs.ConnectionIds)
	a.Definitions = visitor.Sorted(refs.Definitions)
	a.Variables = visitor.Sorted(refs.VariableIds)

	// Try a real load on a copy since loading normalizes options
	// in place.
	js, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var cp control.Data
	if err = json.Unmarshal(js, &cp); err != nil {
		return nil, err
	}
	if _, err = control.Load(&cp, regs); err != nil {
		a.Errors = append(a.Errors, err.Error())
	}

	return a, nil
}
