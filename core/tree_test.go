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
	"errors"
	"fmt"
	"testing"
)

func testRegistry() *MapRegistry {
	r := NewMapRegistry()
	r.Add(
		&Definition{
			ConnectionId: "internal",
			Id:           "logic_and",
			EntityType:   TypeFeedback,
			ChildGroups: []ChildGroup{
				{Id: "default", ListSpec: ListOf(TypeFeedback, FeedbackBoolean)},
			},
		},
		&Definition{
			ConnectionId: "internal",
			Id:           "advanced_style",
			EntityType:   TypeFeedback,
			FeedbackType: FeedbackAdvanced,
		},
		&Definition{
			ConnectionId: "internal",
			Id:           "expression_value",
			EntityType:   TypeFeedback,
			FeedbackType: FeedbackValue,
		},
		&Definition{
			ConnectionId: "internal",
			Id:           "check_expression",
			EntityType:   TypeFeedback,
		},
	)
	return r
}

func newTestTree(t *testing.T) *Tree {
	tree := NewTree(testRegistry())
	if err := tree.DeclareRoot("feedbacks", ListOf(TypeFeedback)); err != nil {
		t.Fatal(err)
	}
	if err := tree.DeclareRoot("actions", ListOf(TypeAction)); err != nil {
		t.Fatal(err)
	}
	return tree
}

func fb(def string) *Entity {
	return &Entity{
		Type:         TypeFeedback,
		ConnectionId: "internal",
		DefinitionId: def,
		Options:      Options{},
	}
}

func act(id string) *Entity {
	return &Entity{
		Id:           id,
		Type:         TypeAction,
		ConnectionId: "x",
		DefinitionId: "send",
	}
}

func TestTreeAddFind(t *testing.T) {
	tree := newTestTree(t)

	and := fb("logic_and")
	and.Id = "and"
	if _, err := tree.AddChild("", "feedbacks", and, -1); err != nil {
		t.Fatal(err)
	}
	id, err := tree.AddChild("and", "default", fb("check_expression"), -1)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("no id")
	}
	got, err := tree.Find("and")
	if err != nil {
		t.Fatal(err)
	}
	if n := len(got.Children["default"]); n != 1 {
		t.Fatalf("children: %d", n)
	}
	if got.Children["default"][0].Id != id {
		t.Fatal(got.Children["default"][0].Id)
	}
	if d := tree.Depth(id); d != 2 {
		t.Fatal(d)
	}
}

func TestTreeRoots(t *testing.T) {
	tree := newTestTree(t)
	if err := tree.DeclareRoot("localVariables", ListOf(TypeLocalVariable)); err != nil {
		t.Fatal(err)
	}
	spec, have := tree.RootSpec("localVariables")
	if !have || !spec.IsLocalVariablesList() {
		t.Fatal(spec, have)
	}
	if spec, _ = tree.RootSpec("feedbacks"); spec.IsLocalVariablesList() {
		t.Fatal(spec)
	}
	if _, have = tree.RootSpec("nope"); have {
		t.Fatal("nope")
	}
}

func TestRegistryRemConnection(t *testing.T) {
	r := testRegistry()
	r.Add(&Definition{ConnectionId: "mixer", Id: "power", EntityType: TypeFeedback})
	if r.Definition(TypeFeedback, "mixer", "power") == nil {
		t.Fatal("no mixer:power")
	}
	r.RemConnection("mixer")
	if r.Definition(TypeFeedback, "mixer", "power") != nil {
		t.Fatal("mixer:power survived")
	}
	if r.Definition(TypeFeedback, "internal", "logic_and") == nil {
		t.Fatal("lost internal:logic_and")
	}
}

func TestTreeCapabilities(t *testing.T) {
	type test struct {
		parent, group string
		e             *Entity
		err           error
	}

	tests := []test{
		{"", "feedbacks", fb("check_expression"), nil},
		{"", "feedbacks", fb("advanced_style"), nil},
		{"", "feedbacks", fb("expression_value"), IncompatibleFeedbackType},
		{"", "feedbacks", act(""), InvalidChildGroup},
		{"", "nope", fb("check_expression"), InvalidChildGroup},
		{"missing", "default", fb("check_expression"), UnknownParent},
		{"and", "default", fb("check_expression"), nil},
		{"and", "default", fb("advanced_style"), IncompatibleFeedbackType},
		{"and", "other", fb("check_expression"), InvalidChildGroup},
		{"and", "default", fb("unknown_definition"), nil},
	}

	for i, tc := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			tree := newTestTree(t)
			and := fb("logic_and")
			and.Id = "and"
			if _, err := tree.AddChild("", "feedbacks", and, -1); err != nil {
				t.Fatal(err)
			}
			before := tree.Len()
			_, err := tree.AddChild(tc.parent, tc.group, tc.e, -1)
			if tc.err == nil {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("wanted %v, got %v", tc.err, err)
			}
			if tree.Len() != before {
				t.Fatal("tree changed")
			}
		})
	}
}

func TestAcceptsFeedbackType(t *testing.T) {
	b, v, a := FeedbackBoolean, FeedbackValue, FeedbackAdvanced
	type test struct {
		list *FeedbackType
		ft   FeedbackType
		ok   bool
	}
	for _, tc := range []test{
		{nil, b, true}, {nil, a, true}, {nil, v, false},
		{&b, b, true}, {&b, a, false}, {&b, v, false},
		{&v, v, true}, {&v, b, true}, {&v, a, false},
		{&a, a, true}, {&a, b, true}, {&a, v, false},
	} {
		if got := AcceptsFeedbackType(tc.list, tc.ft); got != tc.ok {
			t.Fatalf("%v %s: %v", tc.list, tc.ft, got)
		}
	}
}

func TestTreeNestedAddIsAtomic(t *testing.T) {
	tree := newTestTree(t)
	and := fb("logic_and")
	and.Children = map[string][]*Entity{
		"default": {fb("check_expression"), fb("advanced_style")},
	}
	_, err := tree.AddChild("", "feedbacks", and, -1)
	if !errors.Is(err, IncompatibleFeedbackType) {
		t.Fatal(err)
	}
	if tree.Len() != 0 {
		t.Fatal(tree.Len())
	}
}

func TestTreeMoveCycle(t *testing.T) {
	tree := newTestTree(t)

	outer := act("outer")
	outer.Children = map[string][]*Entity{
		"group": {act("inner")},
	}
	if _, err := tree.AddChild("", "actions", outer, -1); err != nil {
		t.Fatal(err)
	}
	depth := tree.MaxDepth()

	if err := tree.MoveEntity("outer", "inner", "group", -1); !errors.Is(err, CycleDetected) {
		t.Fatal(err)
	}
	if err := tree.MoveEntity("outer", "outer", "group", -1); !errors.Is(err, CycleDetected) {
		t.Fatal(err)
	}
	if tree.MaxDepth() != depth {
		t.Fatal("depth changed")
	}

	// Moving the inner one up is fine.
	if err := tree.MoveEntity("inner", "", "actions", 0); err != nil {
		t.Fatal(err)
	}
	es := tree.Entities("actions")
	if len(es) != 2 || es[0].Id != "inner" || es[1].Id != "outer" {
		t.Fatal(es)
	}
	if tree.MaxDepth() != 1 {
		t.Fatal(tree.MaxDepth())
	}
}

func TestTreeMoveIndex(t *testing.T) {
	tree := newTestTree(t)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := tree.AddChild("", "actions", act(id), -1); err != nil {
			t.Fatal(err)
		}
	}
	if err := tree.MoveEntity("a", "", "actions", 2); err != nil {
		t.Fatal(err)
	}
	var got string
	for _, e := range tree.Entities("actions") {
		got += e.Id
	}
	if got != "bca" {
		t.Fatal(got)
	}
}

func TestTreeRemove(t *testing.T) {
	tree := newTestTree(t)
	outer := act("outer")
	outer.Children = map[string][]*Entity{
		"group": {act("inner")},
	}
	if _, err := tree.AddChild("", "actions", outer, -1); err != nil {
		t.Fatal(err)
	}
	if err := tree.RemoveEntity("outer"); err != nil {
		t.Fatal(err)
	}
	if tree.Has("inner") {
		t.Fatal("orphan")
	}
	if err := tree.RemoveEntity("outer"); !errors.Is(err, NotFound) {
		t.Fatal(err)
	}
	if tree.Len() != 0 {
		t.Fatal(tree.Len())
	}
}

func TestTreeIdCollision(t *testing.T) {
	tree := newTestTree(t)
	if _, err := tree.AddChild("", "actions", act("a"), -1); err != nil {
		t.Fatal(err)
	}
	id, err := tree.AddChild("", "actions", act("a"), -1)
	if err != nil {
		t.Fatal(err)
	}
	if id == "a" {
		t.Fatal("reused id")
	}
}

func TestTreeDuplicate(t *testing.T) {
	tree := newTestTree(t)
	outer := act("outer")
	outer.Children = map[string][]*Entity{
		"group": {act("inner")},
	}
	if _, err := tree.AddChild("", "actions", outer, -1); err != nil {
		t.Fatal(err)
	}
	id, err := tree.Duplicate("outer")
	if err != nil {
		t.Fatal(err)
	}
	es := tree.Entities("actions")
	if len(es) != 2 || es[1].Id != id {
		t.Fatal(es)
	}
	ids := FindAllIdsDeep(es)
	if len(ids) != 4 {
		t.Fatal(ids)
	}
}

func TestTreeUpdate(t *testing.T) {
	tree := newTestTree(t)
	e := act("a")
	e.UpgradeIndex = 2
	if _, err := tree.AddChild("", "actions", e, -1); err != nil {
		t.Fatal(err)
	}
	err := tree.Update("a", func(e *Entity) error {
		e.UpgradeIndex = 1
		return nil
	})
	if !errors.Is(err, UpgradeIndexDecreased) {
		t.Fatal(err)
	}
	err = tree.Update("a", func(e *Entity) error {
		e.Type = TypeFeedback
		return nil
	})
	if !errors.Is(err, InvalidEntity) {
		t.Fatal(err)
	}
	err = tree.Update("a", func(e *Entity) error {
		e.Headline = "hi"
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := tree.Find("a")
	if got.Headline != "hi" {
		t.Fatal(got.Headline)
	}
}

func TestFindAllIdsDeep(t *testing.T) {
	es := []*Entity{
		{Id: "a", Type: TypeAction, Children: map[string][]*Entity{
			"g1": {{Id: "b", Type: TypeAction}},
			"g2": {{Id: "c", Type: TypeAction, Children: map[string][]*Entity{
				"g": {{Id: "d", Type: TypeAction}},
			}}},
		}},
		{Id: "e", Type: TypeAction},
	}
	ids := FindAllIdsDeep(es)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if _, have := ids[id]; !have {
			t.Fatal(id)
		}
	}
	if len(ids) != 5 {
		t.Fatal(ids)
	}
	if len(FindAllIdsDeep(nil)) != 0 {
		t.Fatal("empty")
	}
}

func TestTreeLoadExport(t *testing.T) {
	tree := newTestTree(t)
	outer := act("outer")
	outer.Children = map[string][]*Entity{
		"group": {act("inner")},
	}
	if err := tree.Load("actions", []*Entity{outer}); err != nil {
		t.Fatal(err)
	}
	copied := tree.Copy()
	if err := copied.RemoveEntity("inner"); err != nil {
		t.Fatal(err)
	}
	if !tree.Has("inner") {
		t.Fatal("copy shares structure")
	}
	if err := tree.RenameRoot("actions", "steps/0/down"); err != nil {
		t.Fatal(err)
	}
	if es := tree.Entities("steps/0/down"); len(es) != 1 {
		t.Fatal(es)
	}
}
