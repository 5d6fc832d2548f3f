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
	"fmt"
)

// ListSpec declares what a list of Entities accepts.
type ListSpec struct {
	EntityType EntityType `json:"entityType" yaml:"entityType"`

	// FeedbackListType restricts the feedback subtypes in a
	// feedback list.  Nil means a generic list.
	FeedbackListType *FeedbackType `json:"feedbackListType,omitempty" yaml:"feedbackListType,omitempty"`
}

// ListOf is a convenience for declaring a ListSpec.  The optional
// argument is the feedback list type.
func ListOf(t EntityType, listType ...FeedbackType) ListSpec {
	spec := ListSpec{EntityType: t}
	if 0 < len(listType) {
		lt := listType[0]
		spec.FeedbackListType = &lt
	}
	return spec
}

// IsLocalVariablesList reports whether the list holds local
// variables.
func (l ListSpec) IsLocalVariablesList() bool {
	return l.EntityType == TypeLocalVariable
}

// AcceptsFeedbackType applies the capability table:
//
//	list type     accepts
//	(generic)     anything but Value
//	Boolean       Boolean
//	Value         Value or Boolean
//	Advanced      Advanced or Boolean
func AcceptsFeedbackType(listType *FeedbackType, ft FeedbackType) bool {
	if ft == "" {
		ft = FeedbackBoolean
	}
	if listType == nil {
		return ft != FeedbackValue
	}
	switch *listType {
	case FeedbackBoolean:
		return ft == FeedbackBoolean
	case FeedbackValue:
		return ft == FeedbackValue || ft == FeedbackBoolean
	case FeedbackAdvanced:
		return ft == FeedbackAdvanced || ft == FeedbackBoolean
	}
	return false
}

// Accepts checks whether the given Entity may be a member of the
// list.  A nil Definition (unknown to the Registry) doesn't restrict
// feedback subtypes: the connection might not be loaded yet.
func (l ListSpec) Accepts(e *Entity, def *Definition) error {
	if e.Type != l.EntityType {
		return fmt.Errorf("%w: list of %s given a %s", InvalidChildGroup, l.EntityType, e.Type)
	}
	if e.Type != TypeFeedback || def == nil {
		return nil
	}
	if !AcceptsFeedbackType(l.FeedbackListType, def.Subtype()) {
		lt := "generic"
		if l.FeedbackListType != nil {
			lt = string(*l.FeedbackListType)
		}
		return fmt.Errorf("%w: %s list given a %s feedback", IncompatibleFeedbackType, lt, def.Subtype())
	}
	return nil
}

// childListSpec finds the ListSpec for a child group of the given
// parent.
func childListSpec(parent *Entity, group string, reg Registry) (ListSpec, error) {
	if group == "" {
		return ListSpec{}, fmt.Errorf("%w: empty group", InvalidChildGroup)
	}
	switch parent.Type {
	case TypeAction:
		// Composite actions can use any group id.
		return ListOf(TypeAction), nil
	case TypeFeedback:
		def := Lookup(reg, parent)
		if def == nil {
			return ListOf(TypeFeedback), nil
		}
		g, have := def.ChildGroup(group)
		if !have {
			return ListSpec{}, fmt.Errorf("%w: %s has no group %q", InvalidChildGroup, parent.Key(), group)
		}
		if g.EntityType == "" {
			g.EntityType = TypeFeedback
		}
		return g.ListSpec, nil
	}
	return ListSpec{}, fmt.Errorf("%w: a %s has no children", InvalidChildGroup, parent.Type)
}
