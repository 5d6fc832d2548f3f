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
	"context"
	"sort"
	"sync"
)

// OptionSpec describes one option of a Definition.
type OptionSpec struct {
	Id    string `json:"id" yaml:"id"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// UseVariables means a string value may contain
	// $(label:name) references that are interpolated.
	UseVariables bool `json:"useVariables,omitempty" yaml:"useVariables,omitempty"`

	// IsExpression means a plain string value is itself an
	// expression.
	IsExpression bool `json:"isExpression,omitempty" yaml:"isExpression,omitempty"`

	Default interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// ChildGroup describes a child list that a Definition's instances
// own.
type ChildGroup struct {
	Id    string `json:"id" yaml:"id"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	ListSpec `yaml:",inline"`
}

// Definition is the declared shape of an action, feedback, or local
// variable within a connection.
type Definition struct {
	ConnectionId string     `json:"connectionId" yaml:"connectionId"`
	Id           string     `json:"id" yaml:"id"`
	EntityType   EntityType `json:"entityType" yaml:"entityType"`
	Label        string     `json:"label,omitempty" yaml:"label,omitempty"`

	// FeedbackType is the subtype of a feedback.  Empty means
	// FeedbackBoolean.
	FeedbackType FeedbackType `json:"feedbackType,omitempty" yaml:"feedbackType,omitempty"`

	Options     []OptionSpec `json:"options,omitempty" yaml:"options,omitempty"`
	ChildGroups []ChildGroup `json:"childGroups,omitempty" yaml:"childGroups,omitempty"`

	// DefaultStyle is the style patch that a new Boolean feedback
	// gets.
	DefaultStyle Style `json:"defaultStyle,omitempty" yaml:"defaultStyle,omitempty"`

	// Callback, if not nil, computes the value of an instance.
	// Otherwise the value comes from the connection.
	Callback Callback `json:"-" yaml:"-"`

	// CallbackSource, if given, can be compiled to a Callback.
	CallbackSource *CallbackSource `json:"callback,omitempty" yaml:"callback,omitempty"`
}

// Subtype returns the FeedbackType with the default applied.
func (d *Definition) Subtype() FeedbackType {
	if d.FeedbackType == "" {
		return FeedbackBoolean
	}
	return d.FeedbackType
}

// Option finds the OptionSpec with the given id.
func (d *Definition) Option(id string) (OptionSpec, bool) {
	for _, o := range d.Options {
		if o.Id == id {
			return o, true
		}
	}
	return OptionSpec{}, false
}

// ChildGroup finds the declared child group with the given id.
func (d *Definition) ChildGroup(id string) (ChildGroup, bool) {
	for _, g := range d.ChildGroups {
		if g.Id == id {
			return g, true
		}
	}
	return ChildGroup{}, false
}

// Compile compiles the CallbackSource (if any) unless there's
// already a Callback.
func (d *Definition) Compile(ctx context.Context, interpreters InterpretersMap, force bool) error {
	if d.CallbackSource == nil || (d.Callback != nil && !force) {
		return nil
	}
	cb, err := d.CallbackSource.Compile(ctx, interpreters)
	if err != nil {
		return err
	}
	d.Callback = cb
	return nil
}

// Registry provides Definitions.
type Registry interface {
	// Definition returns nil if there's no such definition.
	Definition(t EntityType, connectionId, definitionId string) *Definition
}

// MapRegistry is a Registry backed by a map.  Safe for concurrent
// use.
type MapRegistry struct {
	sync.RWMutex
	defs map[string]*Definition
}

func NewMapRegistry() *MapRegistry {
	return &MapRegistry{
		defs: make(map[string]*Definition),
	}
}

func registryKey(t EntityType, connectionId, definitionId string) string {
	return string(t) + "/" + connectionId + ":" + definitionId
}

// Add adds (or replaces) the given Definitions.
func (r *MapRegistry) Add(ds ...*Definition) {
	r.Lock()
	for _, d := range ds {
		r.defs[registryKey(d.EntityType, d.ConnectionId, d.Id)] = d
	}
	r.Unlock()
}

// RemConnection removes all Definitions for the connection.
func (r *MapRegistry) RemConnection(connectionId string) {
	r.Lock()
	for k, d := range r.defs {
		if d.ConnectionId == connectionId {
			delete(r.defs, k)
		}
	}
	r.Unlock()
}

func (r *MapRegistry) Definition(t EntityType, connectionId, definitionId string) *Definition {
	r.RLock()
	d := r.defs[registryKey(t, connectionId, definitionId)]
	r.RUnlock()
	return d
}

// Definitions returns all Definitions in a stable order.
func (r *MapRegistry) Definitions() []*Definition {
	r.RLock()
	acc := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		acc = append(acc, d)
	}
	r.RUnlock()
	sort.Slice(acc, func(i, j int) bool {
		return registryKey(acc[i].EntityType, acc[i].ConnectionId, acc[i].Id) <
			registryKey(acc[j].EntityType, acc[j].ConnectionId, acc[j].Id)
	})
	return acc
}

// Compile compiles all Definitions that have CallbackSources.
func (r *MapRegistry) Compile(ctx context.Context, interpreters InterpretersMap, force bool) error {
	for _, d := range r.Definitions() {
		if err := d.Compile(ctx, interpreters, force); err != nil {
			return entityErr(d.ConnectionId+":"+d.Id, err)
		}
	}
	return nil
}

// Registries tries each Registry in turn.
type Registries []Registry

func (rs Registries) Definition(t EntityType, connectionId, definitionId string) *Definition {
	for _, r := range rs {
		if r == nil {
			continue
		}
		if d := r.Definition(t, connectionId, definitionId); d != nil {
			return d
		}
	}
	return nil
}

// Lookup is a nil-tolerant registry lookup for an Entity.
func Lookup(r Registry, e *Entity) *Definition {
	if r == nil || e == nil {
		return nil
	}
	return r.Definition(e.Type, e.ConnectionId, e.DefinitionId)
}
