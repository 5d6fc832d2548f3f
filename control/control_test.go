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

package control

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/expression"
	"github.com/Comcast/surface/steps"
	"github.com/Comcast/surface/util/testutil"
	"github.com/google/go-cmp/cmp"
)

func feedback(def string, opts core.Options, st core.Style) *core.Entity {
	return &core.Entity{
		Type:         core.TypeFeedback,
		ConnectionId: InternalConnection,
		DefinitionId: def,
		Options:      opts,
		Style:        st,
	}
}

func check(src string, st core.Style) *core.Entity {
	return feedback("check_expression", core.Options{
		ExpressionOption: core.NewExpression(src),
	}, st)
}

func local(name, src string) *core.Entity {
	return &core.Entity{
		Type:         core.TypeLocalVariable,
		DefinitionId: "expression",
		Options: core.Options{
			NameOption:       name,
			ExpressionOption: core.NewExpression(src),
		},
	}
}

func constant(name string, v interface{}) *core.Entity {
	return &core.Entity{
		Type:         core.TypeLocalVariable,
		DefinitionId: "constant",
		Options: core.Options{
			NameOption:  name,
			ValueOption: v,
		},
	}
}

func newButton(t *testing.T) (*Surface, *Control) {
	s := NewSurface(nil, nil)
	c, err := s.New("b1", Button)
	if err != nil {
		t.Fatal(err)
	}
	return s, c
}

func add(t *testing.T, c *Control, root string, e *core.Entity) string {
	id, err := c.AddEntity("", root, e, -1)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestEvaluateBoolean(t *testing.T) {
	_, c := newButton(t)
	c.SetStyle(core.Style{"text": "Vol $(conn:volume)", "color": 0}, true)
	add(t, c, FeedbacksRoot, check("$(conn:volume) > 5", core.Style{"color": 255}))

	ctx := context.Background()

	ev := c.Evaluate(ctx, &Input{Variables: testutil.Table("conn:volume", 7)})
	if len(ev.Errors) != 0 {
		t.Fatal(ev.Errors)
	}
	if ev.Style["color"] != 255 {
		t.Fatal(ev.Style)
	}
	if ev.Text != "Vol 7" {
		t.Fatal(ev.Text)
	}
	if diff := cmp.Diff([]string{"conn:volume"}, ev.VariableIds); diff != "" {
		t.Fatal(diff)
	}

	ev = c.Evaluate(ctx, &Input{Variables: testutil.Table("conn:volume", 3)})
	if ev.Style["color"] != 0 {
		t.Fatal(ev.Style)
	}

	// An unknown variable renders as NA and turns nothing on.
	ev = c.Evaluate(ctx, &Input{})
	if ev.Text != "Vol "+expression.NA {
		t.Fatal(ev.Text)
	}
	if ev.Style["color"] != 0 {
		t.Fatal(ev.Style)
	}
}

func TestEvaluateInverted(t *testing.T) {
	_, c := newButton(t)
	id := add(t, c, FeedbacksRoot, check("$(conn:on)", core.Style{"bgcolor": 1}))
	if err := c.Edit(func(tr *core.Tree) error { return tr.SetInverted(id, true) }); err != nil {
		t.Fatal(err)
	}
	ev := c.Evaluate(context.Background(), &Input{Variables: testutil.Table("conn:on", false)})
	if ev.Style["bgcolor"] != 1 {
		t.Fatal(ev.Style)
	}
	if ev.Values[id] != true {
		t.Fatal(ev.Values)
	}
}

func TestEvaluateLocals(t *testing.T) {
	_, c := newButton(t)
	add(t, c, LocalVariablesRoot, local("x", "$(conn:a) * 2"))
	add(t, c, LocalVariablesRoot, constant("y", 10))
	add(t, c, FeedbacksRoot, check("$(local:x) > $(local:y)", core.Style{"bgcolor": 1}))

	ev := c.Evaluate(context.Background(), &Input{Variables: testutil.Table("conn:a", 6)})
	if len(ev.Errors) != 0 {
		t.Fatal(ev.Errors)
	}
	if ev.Style["bgcolor"] != 1 {
		t.Fatal(ev.Style)
	}
	want := map[string]interface{}{"x": 12.0, "y": 10.0}
	if diff := cmp.Diff(want, ev.Locals); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]string{"conn:a", "local:x", "local:y"}, ev.VariableIds); diff != "" {
		t.Fatal(diff)
	}
}

func TestEvaluateCyclicLocal(t *testing.T) {
	_, c := newButton(t)
	add(t, c, LocalVariablesRoot, local("x", "$(local:x) + 1"))
	add(t, c, FeedbacksRoot, check("$(local:x) > 0", core.Style{"bgcolor": 1}))

	done := make(chan *Evaluation)
	go func() {
		done <- c.Evaluate(context.Background(), &Input{})
	}()
	var ev *Evaluation
	select {
	case ev = <-done:
	case <-time.After(time.Second):
		t.Fatal("evaluation hung")
	}
	if !ev.Failed(expression.CyclicLocalVariable) {
		t.Fatal(ev.Errors)
	}
	if _, have := ev.Style["bgcolor"]; have {
		t.Fatal(ev.Style)
	}
}

func TestEvaluateLogic(t *testing.T) {
	_, c := newButton(t)
	and := feedback("logic_and", core.Options{}, core.Style{"text": "both"})
	inverted := check("$(conn:b)", nil)
	inverted.IsInverted = true
	and.Children = map[string][]*core.Entity{
		ChildrenGroup: {check("$(conn:a)", nil), inverted},
	}
	andId := add(t, c, FeedbacksRoot, and)

	type test struct {
		a, b bool
		on   bool
	}
	for _, tc := range []test{
		{true, false, true},
		{true, true, false},
		{false, false, false},
	} {
		ev := c.Evaluate(context.Background(), &Input{Variables: testutil.Table("conn:a", tc.a, "conn:b", tc.b)})
		if got := ev.Text == "both"; got != tc.on {
			t.Fatalf("%v: %#v", tc, ev.Style)
		}
	}

	// Only Boolean feedbacks are allowed under a logic feedback.
	_, err := c.AddEntity(andId, ChildrenGroup, feedback("advanced_style", core.Options{}, nil), -1)
	if !errors.Is(err, core.IncompatibleFeedbackType) {
		t.Fatal(err)
	}
}

func TestEvaluateAdvancedLayers(t *testing.T) {
	_, c := newButton(t)
	c.SetStyle(core.Style{"text": "A", "color": 0}, true)
	add(t, c, FeedbacksRoot, check("true", core.Style{"text": "B"}))
	add(t, c, FeedbacksRoot, feedback("advanced_style", core.Options{
		StyleOption: core.NewExpression(`{imageBuffer: "buf1"}`),
	}, nil))
	add(t, c, FeedbacksRoot, feedback("advanced_style", core.Options{
		StyleOption: core.NewExpression(`{imageBuffer: "buf2", imageBufferPosition: {x: 1}}`),
	}, nil))

	ev := c.Evaluate(context.Background(), &Input{})
	if len(ev.Errors) != 0 {
		t.Fatal(ev.Errors)
	}
	want := core.Style{
		"text":           "B",
		"textExpression": false,
		"color":          0,
		"imageBuffers": []interface{}{
			map[string]interface{}{"buffer": "buf1"},
			map[string]interface{}{"buffer": "buf2", "x": 1.0},
		},
	}
	if diff := cmp.Diff(want, ev.Style); diff != "" {
		t.Fatal(diff)
	}
}

func TestEvaluateTextExpression(t *testing.T) {
	_, c := newButton(t)
	c.SetStyle(core.Style{"text": "'x' + $(conn:b)", "textExpression": true}, true)
	ev := c.Evaluate(context.Background(), &Input{Variables: testutil.Table("conn:b", 2)})
	if ev.Text != "x2" {
		t.Fatal(ev.Text)
	}
	if diff := cmp.Diff([]string{"conn:b"}, ev.VariableIds); diff != "" {
		t.Fatal(diff)
	}
}

func TestEvaluateConnectionFeedback(t *testing.T) {
	s := core.NewMapRegistry()
	s.Add(&core.Definition{
		ConnectionId: "conn",
		Id:           "playing",
		EntityType:   core.TypeFeedback,
	})
	surface := NewSurface(s, nil)
	c, err := surface.New("b", Button)
	if err != nil {
		t.Fatal(err)
	}
	id := add(t, c, FeedbacksRoot, &core.Entity{
		Type:         core.TypeFeedback,
		ConnectionId: "conn",
		DefinitionId: "playing",
		Style:        core.Style{"color": 2},
	})
	unknown := add(t, c, FeedbacksRoot, &core.Entity{
		Type:         core.TypeFeedback,
		ConnectionId: "conn",
		DefinitionId: "gone",
	})

	ev := c.Evaluate(context.Background(), &Input{
		FeedbackValues: map[string]interface{}{id: true},
	})
	if ev.Style["color"] != 2 {
		t.Fatal(ev.Style)
	}
	if !ev.Failed(UnknownDefinition) || ev.Errors[0].EntityId != unknown {
		t.Fatal(ev.Errors)
	}
}

func TestEvaluateVariableValue(t *testing.T) {
	_, c := newButton(t)
	add(t, c, FeedbacksRoot, feedback("variable_value", core.Options{
		VariableOption: "conn:level",
		OpOption:       "gt",
		ValueOption:    "$(conn:limit)",
	}, core.Style{"color": 9}))

	ev := c.Evaluate(context.Background(), &Input{Variables: testutil.Table("conn:level", 5, "conn:limit", 3)})
	if ev.Style["color"] != 9 {
		t.Fatal(ev.Style)
	}
	if diff := cmp.Diff([]string{"conn:level", "conn:limit"}, ev.VariableIds); diff != "" {
		t.Fatal(diff)
	}
}

func TestTrigger(t *testing.T) {
	s := NewSurface(nil, nil)
	var ran []string
	s.RunAction = func(ctx context.Context, controlId string, a *core.Entity) error {
		ran = append(ran, controlId+"/"+a.DefinitionId)
		return nil
	}
	c, err := s.New("t1", Trigger)
	if err != nil {
		t.Fatal(err)
	}
	add(t, c, ConditionsRoot, check("$(conn:x) == 1", nil))
	add(t, c, ActionsRoot, &core.Entity{
		Type:         core.TypeAction,
		ConnectionId: "conn",
		DefinitionId: "send",
	})

	ctx := context.Background()
	fired, err := s.Fire(ctx, "t1", &Input{Variables: testutil.Table("conn:x", 0)})
	if err != nil || fired {
		t.Fatal(fired, err)
	}
	fired, err = s.Fire(ctx, "t1", &Input{Variables: testutil.Table("conn:x", 1)})
	if err != nil || !fired {
		t.Fatal(fired, err)
	}
	if diff := cmp.Diff([]string{"t1/send"}, ran); diff != "" {
		t.Fatal(diff)
	}

	// Conditions only take Boolean feedbacks.
	_, err = c.AddEntity("", ConditionsRoot, feedback("expression_value", core.Options{}, nil), -1)
	if !errors.Is(err, core.IncompatibleFeedbackType) {
		t.Fatal(err)
	}
}

func TestSurfaceAffected(t *testing.T) {
	s := NewSurface(nil, nil)
	a, _ := s.New("a", Button)
	b, _ := s.New("b", Button)
	add(t, a, FeedbacksRoot, check("$(conn:x)", nil))
	add(t, b, FeedbacksRoot, check("$(conn:y)", nil))

	// Not evaluated yet.
	if diff := cmp.Diff([]string{"a", "b"}, s.Affected(map[string]struct{}{"conn:z": {}})); diff != "" {
		t.Fatal(diff)
	}

	ctx := context.Background()
	for _, id := range s.Ids() {
		if _, err := s.Evaluate(ctx, id, &Input{}); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"b"}, s.Affected(map[string]struct{}{"conn:y": {}})); diff != "" {
		t.Fatal(diff)
	}
	if n := len(s.Affected(map[string]struct{}{"conn:z": {}})); n != 0 {
		t.Fatal(n)
	}
	if _, err := s.Evaluate(ctx, "c", &Input{}); !errors.Is(err, NotFound) {
		t.Fatal(err)
	}
}

func TestSurfaceRenameConnection(t *testing.T) {
	s := NewSurface(nil, nil)
	a, _ := s.New("a", Button)
	b, _ := s.New("b", Button)
	a.SetStyle(core.Style{"text": "$(old:foo) and $(oldish:bar)"}, true)
	add(t, a, FeedbacksRoot, check("$(old:x) > 1", nil))
	add(t, b, LocalVariablesRoot, local("l", "$(old:y) + $(old:z)"))

	if n := s.RenameConnection("old", "new"); n != 4 {
		t.Fatal(n)
	}
	if text := a.Export().Style["text"]; text != "$(new:foo) and $(oldish:bar)" {
		t.Fatal(text)
	}
	refs := b.References()
	want := map[string]struct{}{"new:y": {}, "new:z": {}}
	if diff := cmp.Diff(want, refs.VariableIds); diff != "" {
		t.Fatal(diff)
	}
}

func TestPersist(t *testing.T) {
	s, c := newButton(t)
	c.SetStyle(core.Style{"text": "$(conn:a)"}, true)
	c.SetOptions(steps.MachineOptions{StepAutoProgress: true})
	add(t, c, FeedbacksRoot, check("$(conn:a) > 1", core.Style{"color": 1}))
	add(t, c, LocalVariablesRoot, constant("k", "v"))
	if _, err := c.AddEntity("", steps.RootId("0", steps.Down), &core.Entity{
		Type:         core.TypeAction,
		ConnectionId: "conn",
		DefinitionId: "send",
		Options:      core.Options{"delay": 10},
	}, -1); err != nil {
		t.Fatal(err)
	}

	bs, err := json.Marshal(c.Export())
	if err != nil {
		t.Fatal(err)
	}
	var d Data
	if err := json.Unmarshal(bs, &d); err != nil {
		t.Fatal(err)
	}
	d.Id = "b2"
	loaded, err := s.Load(&d)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Options.StepAutoProgress {
		t.Fatal("lost options")
	}

	again, err := json.Marshal(loaded.Export())
	if err != nil {
		t.Fatal(err)
	}
	var x, y map[string]interface{}
	json.Unmarshal(bs, &x)
	json.Unmarshal(again, &y)
	x["id"] = "b2"
	if diff := cmp.Diff(x, y); diff != "" {
		t.Fatal(diff)
	}

	// The loaded expression still works.
	ev := loaded.Evaluate(context.Background(), &Input{Variables: testutil.Table("conn:a", 2)})
	if ev.Style["color"] != 1.0 {
		t.Fatal(ev.Style)
	}

	if _, err := s.Load(&d); !errors.Is(err, Exists) {
		t.Fatal(err)
	}
}

func TestEditSteps(t *testing.T) {
	s := NewSurface(nil, nil)
	trig, _ := s.New("t", Trigger)
	if _, ok := trig.ActionSetAdd("0"); ok {
		t.Fatal("trigger has steps")
	}
	_, b := newButton(t)
	set, ok := b.ActionSetAdd("0")
	if !ok || set != "1000" {
		t.Fatal(set, ok)
	}
	if !b.ActionSetRunWhileHeld("0", set, true) {
		t.Fatal("runWhileHeld")
	}
	if !b.ActionSetRename("0", set, "1500") {
		t.Fatal("rename")
	}
	if b.ActionSetRemove("1", "1500") {
		t.Fatal("removed from a missing step")
	}
	if !b.ActionSetRemove("0", "1500") {
		t.Fatal("remove")
	}
}
