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

package steps

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Comcast/surface/core"
	"github.com/google/go-cmp/cmp"
)

func action(id string, delay interface{}) *core.Entity {
	e := &core.Entity{
		Id:           id,
		Type:         core.TypeAction,
		ConnectionId: "conn",
		DefinitionId: "send",
		Options:      core.Options{},
	}
	if delay != nil {
		e.Options[DelayOption] = delay
	}
	return e
}

func newSteps(t *testing.T) *Steps {
	ss := New(core.NewTree(nil))
	ss.StepAdd()
	return ss
}

func add(t *testing.T, ss *Steps, stepId string, set ActionSetId, es ...*core.Entity) {
	for _, e := range es {
		if _, err := ss.Tree.AddChild("", RootId(stepId, set), e, -1); err != nil {
			t.Fatal(err)
		}
	}
}

func TestActionSetOrder(t *testing.T) {
	ids := []ActionSetId{"2000", RotateRight, "500", Up, Down, RotateLeft, "1000"}
	SortActionSetIds(ids)
	want := []ActionSetId{Down, Up, RotateLeft, RotateRight, "500", "1000", "2000"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatal(diff)
	}
	if ActionSetId("-3").Valid() || ActionSetId("held").Valid() {
		t.Fatal("bad id is valid")
	}
}

func TestHoldThresholdCanonical(t *testing.T) {
	for _, id := range []ActionSetId{"01000", "+1000", "1e3", " 1000", "-0"} {
		if id.IsHold() || id.Valid() {
			t.Fatalf("%q is a threshold", id)
		}
	}
	if n, is := ActionSetId("0").Threshold(); !is || n != 0 {
		t.Fatal(n, is)
	}

	ss := newSteps(t)
	id := ss.Current()
	a, _ := ss.ActionSetAdd(id)
	b, _ := ss.ActionSetAdd(id)
	if ss.ActionSetRename(id, a, "01000") {
		t.Fatal("renamed to 01000")
	}
	if ss.ActionSetRename(id, b, "+1000") {
		t.Fatal("renamed to +1000")
	}
	sets, err := ss.ActionSets(id)
	if err != nil {
		t.Fatal(err)
	}
	want := []ActionSetId{Down, Up, RotateLeft, RotateRight, "1000", "2000"}
	if diff := cmp.Diff(want, sets); diff != "" {
		t.Fatal(diff)
	}

	d := ss.Export()
	d.Steps[id].ActionSets["01000"] = nil
	if err := newSteps(t).Load(d); !errors.Is(err, UnknownActionSet) {
		t.Fatal(err)
	}
}

func TestStepsActionSets(t *testing.T) {
	ss := newSteps(t)
	id := ss.Current()
	if id != "0" {
		t.Fatal(id)
	}

	a, ok := ss.ActionSetAdd(id)
	if !ok || a != "1000" {
		t.Fatal(a, ok)
	}
	b, ok := ss.ActionSetAdd(id)
	if !ok || b != "2000" {
		t.Fatal(b, ok)
	}

	if !ss.ActionSetRunWhileHeld(id, a, true) {
		t.Fatal("couldn't flag hold set")
	}
	if ss.ActionSetRunWhileHeld(id, Up, true) {
		t.Fatal("flagged up")
	}
	if ss.ActionSetRename(id, a, b) {
		t.Fatal("renamed onto existing set")
	}
	if ss.ActionSetRename(id, Down, "3000") {
		t.Fatal("renamed down")
	}
	if !ss.ActionSetRename(id, a, "2500") {
		t.Fatal("rename failed")
	}
	if !ss.RunWhileHeld(id, "2500") || ss.RunWhileHeld(id, a) {
		t.Fatal("runWhileHeld didn't follow the rename")
	}

	sets, err := ss.ActionSets(id)
	if err != nil {
		t.Fatal(err)
	}
	want := []ActionSetId{Down, Up, RotateLeft, RotateRight, "2000", "2500"}
	if diff := cmp.Diff(want, sets); diff != "" {
		t.Fatal(diff)
	}

	if ss.ActionSetRemove(id, Down) {
		t.Fatal("removed down")
	}
	if !ss.ActionSetRemove(id, "2500") {
		t.Fatal("remove failed")
	}
	if ss.RunWhileHeld(id, "2500") {
		t.Fatal("flag survived")
	}
	if _, err := ss.Actions(id, "2500"); !errors.Is(err, UnknownActionSet) {
		t.Fatal(err)
	}
	if _, err := ss.Actions("9", Down); !errors.Is(err, UnknownStep) {
		t.Fatal(err)
	}
}

func TestStepsOps(t *testing.T) {
	ss := newSteps(t)
	if ss.StepRemove("0") {
		t.Fatal("removed the last step")
	}
	add(t, ss, "0", Down, action("a", nil))

	second := ss.StepAdd()
	if !ss.StepSelect(second) || ss.Current() != second {
		t.Fatal("select")
	}
	if !ss.StepSwap("0", second) {
		t.Fatal("swap")
	}
	if diff := cmp.Diff([]string{second, "0"}, ss.Ids()); diff != "" {
		t.Fatal(diff)
	}
	if ss.Current() != second || ss.CurrentIndex() != 0 {
		t.Fatal("current didn't follow the swap")
	}

	ss.StepNext("")
	if ss.Current() != "0" {
		t.Fatal(ss.Current())
	}
	ss.StepNext("")
	if ss.Current() != second {
		t.Fatal("no wrap")
	}

	dup, ok := ss.StepDuplicate("0")
	if !ok {
		t.Fatal("dup")
	}
	if diff := cmp.Diff([]string{second, "0", dup}, ss.Ids()); diff != "" {
		t.Fatal(diff)
	}
	orig, _ := ss.Actions("0", Down)
	copied, _ := ss.Actions(dup, Down)
	if len(copied) != 1 || copied[0].Id == orig[0].Id {
		t.Fatal(copied)
	}

	if !ss.StepRemove("0") {
		t.Fatal("remove")
	}
	if ss.Tree.Has("a") {
		t.Fatal("actions survived")
	}
	if ss.Tree.HasRoot(RootId("0", Down)) {
		t.Fatal("root survived")
	}
}

func TestStepsPersist(t *testing.T) {
	ss := newSteps(t)
	ss.StepRename("0", "first")
	add(t, ss, "0", Down, action("a", 100.0), action("b", nil))
	set, _ := ss.ActionSetAdd("0")
	add(t, ss, "0", set, action("c", nil))
	ss.ActionSetRunWhileHeld("0", Down, true)
	second := ss.StepAdd()
	ss.StepSelect(second)

	bs, err := json.Marshal(ss.Export())
	if err != nil {
		t.Fatal(err)
	}

	var d Data
	if err := json.Unmarshal(bs, &d); err != nil {
		t.Fatal(err)
	}
	loaded := New(core.NewTree(nil))
	if err := loaded.Load(&d); err != nil {
		t.Fatal(err)
	}
	if loaded.Current() != second {
		t.Fatal(loaded.Current())
	}
	if !loaded.RunWhileHeld("0", Down) {
		t.Fatal("lost runWhileHeld")
	}
	again, err := json.Marshal(loaded.Export())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(bs), string(again)); diff != "" {
		t.Fatal(diff)
	}

	// New ids continue after the loaded ones.
	if id := loaded.StepAdd(); id != "2" {
		t.Fatal(id)
	}

	d.Steps["0"].ActionSets["sideways"] = nil
	if err := loaded.Load(&d); !errors.Is(err, UnknownActionSet) {
		t.Fatal(err)
	}
}

func TestStepsLoadFailureKeepsSteps(t *testing.T) {
	ss := newSteps(t)
	add(t, ss, "0", Down, action("a1", nil))

	bad := &Data{
		Steps: map[string]*StepData{
			"0": {
				ActionSets: map[ActionSetId][]*core.Entity{
					Down: {{
						Id:           "f1",
						Type:         core.TypeFeedback,
						ConnectionId: "conn",
						DefinitionId: "power",
					}},
				},
			},
		},
	}
	if err := ss.Load(bad); !errors.Is(err, core.InvalidChildGroup) {
		t.Fatal(err)
	}
	if ss.Len() != 1 || ss.Current() != "0" {
		t.Fatal(ss.Len(), ss.Current())
	}
	es, err := ss.Actions("0", Down)
	if err != nil {
		t.Fatal(err)
	}
	if len(es) != 1 || es[0].Id != "a1" {
		t.Fatal(es)
	}
}
