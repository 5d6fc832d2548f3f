/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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
	"fmt"
)

// EntityType is the discriminator for the kinds of Entity.
type EntityType string

const (
	TypeAction        EntityType = "action"
	TypeFeedback      EntityType = "feedback"
	TypeLocalVariable EntityType = "localVariable"
)

// Valid reports whether the type is one we know.
func (t EntityType) Valid() bool {
	switch t {
	case TypeAction, TypeFeedback, TypeLocalVariable:
		return true
	}
	return false
}

// FeedbackType is the subtype that a feedback Definition declares.
type FeedbackType string

const (
	FeedbackBoolean  FeedbackType = "boolean"
	FeedbackValue    FeedbackType = "value"
	FeedbackAdvanced FeedbackType = "advanced"
)

// Entity is the atomic unit in a control's tree.
//
// Children is only populated on Entities that have been exported from
// a Tree (or that are about to be loaded into one).  Inside a Tree,
// child lists are kept in the arena.
type Entity struct {
	// Id is generated once and never reused.
	Id string `json:"id" yaml:"id"`

	Type EntityType `json:"type" yaml:"type"`

	// ConnectionId identifies the owning connection.  Empty for
	// local variables.
	ConnectionId string `json:"connectionId,omitempty" yaml:"connectionId,omitempty"`

	// DefinitionId says which definition within that connection
	// this Entity is an instance of.
	DefinitionId string `json:"definitionId" yaml:"definitionId"`

	Options Options `json:"options" yaml:"options"`

	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Headline string `json:"headline,omitempty" yaml:"headline,omitempty"`

	// UpgradeIndex is bumped by upgrade scripts and never
	// decreases.
	UpgradeIndex int `json:"upgradeIndex,omitempty" yaml:"upgradeIndex,omitempty"`

	// Style is the style patch a Boolean feedback applies when it
	// is true.  Feedback only.
	Style Style `json:"style,omitempty" yaml:"style,omitempty"`

	// IsInverted negates a Boolean feedback.  Feedback only.
	IsInverted bool `json:"isInverted,omitempty" yaml:"isInverted,omitempty"`

	Children map[string][]*Entity `json:"children,omitempty" yaml:"children,omitempty"`
}

// Copy makes a deep copy of the Entity, including any Children.
func (e *Entity) Copy() *Entity {
	if e == nil {
		return nil
	}
	acc := e.shallow()
	if e.Children != nil {
		acc.Children = make(map[string][]*Entity, len(e.Children))
		for g, es := range e.Children {
			cs := make([]*Entity, len(es))
			for i, c := range es {
				cs[i] = c.Copy()
			}
			acc.Children[g] = cs
		}
	}
	return acc
}

// shallow copies everything but the Children.
func (e *Entity) shallow() *Entity {
	return &Entity{
		Id:           e.Id,
		Type:         e.Type,
		ConnectionId: e.ConnectionId,
		DefinitionId: e.DefinitionId,
		Options:      e.Options.Copy(),
		Disabled:     e.Disabled,
		Headline:     e.Headline,
		UpgradeIndex: e.UpgradeIndex,
		Style:        e.Style.Copy(),
		IsInverted:   e.IsInverted,
	}
}

// Check verifies the fields that must agree with the Entity's Type.
func (e *Entity) Check() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: bad entity type %q", InvalidEntity, e.Type)
	}
	switch e.Type {
	case TypeLocalVariable:
		if e.ConnectionId != "" {
			return fmt.Errorf("%w: local variable %s has a connection", InvalidEntity, e.Id)
		}
		fallthrough
	case TypeAction:
		if e.Style != nil || e.IsInverted {
			return fmt.Errorf("%w: %s %s has feedback fields", InvalidEntity, e.Type, e.Id)
		}
	}
	return nil
}

// Key is "connectionId:definitionId".
func (e *Entity) Key() string {
	return e.ConnectionId + ":" + e.DefinitionId
}

func (e *Entity) String() string {
	js, err := json.Marshal(e)
	if err != nil {
		return e.Id + "/{*}"
	}
	return string(js)
}

// FindAllIdsDeep returns the set of every Entity id reachable from
// the given list, including all nested child groups.
func FindAllIdsDeep(es []*Entity) map[string]struct{} {
	acc := make(map[string]struct{}, len(es))
	var walk func([]*Entity)
	walk = func(es []*Entity) {
		for _, e := range es {
			if e == nil {
				continue
			}
			acc[e.Id] = struct{}{}
			for _, g := range SortedGroups(e.Children) {
				walk(e.Children[g])
			}
		}
	}
	walk(es)
	return acc
}
