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
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/steps"
	"github.com/google/go-cmp/cmp"
)

func check(t *testing.T, c *control.Control, root, src string, st core.Style) string {
	id, err := c.AddEntity("", root, &core.Entity{
		Type:         core.TypeFeedback,
		ConnectionId: control.InternalConnection,
		DefinitionId: "check_expression",
		Options: core.Options{
			control.ExpressionOption: core.NewExpression(src),
		},
		Style: st,
	}, -1)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// twoButtons makes a surface with button "a" showing conn:x and
// button "b" showing conn:y.
func twoButtons(t *testing.T) *control.Surface {
	s := control.NewSurface(nil, nil)
	for id, v := range map[string]string{"a": "x", "b": "y"} {
		c, err := s.New(id, control.Button)
		if err != nil {
			t.Fatal(err)
		}
		c.SetStyle(core.Style{"text": "$(conn:" + v + ")"}, true)
	}
	return s
}

func ids(rs []*Result) []string {
	acc := make([]string, len(rs))
	for i, r := range rs {
		acc[i] = r.ControlId
	}
	return acc
}

func TestEngineFlush(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, nil, twoButtons(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	if rs := e.Flush(ctx); rs != nil {
		t.Fatal(rs)
	}

	e.TouchAll()
	rs := e.Flush(ctx)
	if diff := cmp.Diff([]string{"a", "b"}, ids(rs)); diff != "" {
		t.Fatal(diff)
	}

	if err := e.ProcessMsg(ctx, map[string]interface{}{
		"variables": map[string]interface{}{"conn:x": 3},
	}); err != nil {
		t.Fatal(err)
	}
	rs = e.Flush(ctx)
	if diff := cmp.Diff([]string{"a"}, ids(rs)); diff != "" {
		t.Fatal(diff)
	}
	if rs[0].Text != "3" {
		t.Fatal(rs[0].Text)
	}
	if diff := cmp.Diff([]string{"conn:x"}, rs[0].VariableIds); diff != "" {
		t.Fatal(diff)
	}

	// Same value: nothing to do.
	e.Set("conn", "x", 3.0)
	if e.Pending() {
		t.Fatal("pending")
	}

	e.Set("conn", "y", "hi")
	e.Set("conn", "z", "unused")
	rs = e.Flush(ctx)
	if diff := cmp.Diff([]string{"b"}, ids(rs)); diff != "" {
		t.Fatal(diff)
	}

	if err := e.ProcessMsg(ctx, &Msg{Unset: []string{"conn:y"}}); err != nil {
		t.Fatal(err)
	}
	rs = e.Flush(ctx)
	if len(rs) != 1 || rs[0].Text != "$NA" {
		t.Fatal(JS(rs))
	}

	if err := e.ProcessMsg(ctx, &Msg{Variables: map[string]interface{}{"nocolon": 1}}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestEngineParallel(t *testing.T) {
	ctx := context.Background()
	s := control.NewSurface(nil, nil)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		c, err := s.New(id, control.Button)
		if err != nil {
			t.Fatal(err)
		}
		check(t, c, control.FeedbacksRoot, "$(conn:n) > 2", core.Style{"color": 1})
	}
	e, err := NewEngine(ctx, &Conf{Parallel: 2}, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	e.Set("conn", "n", 3)
	rs := e.Flush(ctx)
	if len(rs) != 5 {
		t.Fatal(len(rs))
	}
	for _, r := range rs {
		if r.Style["color"] != 1 {
			t.Fatal(JS(r))
		}
	}
}

func TestEngineFeedbacks(t *testing.T) {
	ctx := context.Background()
	reg := core.NewMapRegistry()
	reg.Add(&core.Definition{
		ConnectionId: "player",
		Id:           "playing",
		EntityType:   core.TypeFeedback,
	})
	s := control.NewSurface(reg, nil)
	c, err := s.New("a", control.Button)
	if err != nil {
		t.Fatal(err)
	}
	fid, err := c.AddEntity("", control.FeedbacksRoot, &core.Entity{
		Type:         core.TypeFeedback,
		ConnectionId: "player",
		DefinitionId: "playing",
		Style:        core.Style{"bgcolor": 7},
	}, -1)
	if err != nil {
		t.Fatal(err)
	}

	e, err := NewEngine(ctx, nil, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.ProcessMsg(ctx, &Msg{
		Feedbacks: map[string]map[string]interface{}{
			"a": {fid: true},
		},
	}); err != nil {
		t.Fatal(err)
	}
	rs := e.Flush(ctx)
	if len(rs) != 1 || rs[0].Style["bgcolor"] != 7 {
		t.Fatal(JS(rs))
	}
}

func TestEngineTrigger(t *testing.T) {
	ctx := context.Background()
	s := control.NewSurface(nil, nil)

	var (
		mu  sync.Mutex
		ran []string
	)
	s.RunAction = func(ctx context.Context, controlId string, a *core.Entity) error {
		mu.Lock()
		ran = append(ran, controlId+"/"+a.DefinitionId)
		mu.Unlock()
		return nil
	}

	c, err := s.New("t", control.Trigger)
	if err != nil {
		t.Fatal(err)
	}
	check(t, c, control.ConditionsRoot, "$(conn:x) == 1", nil)
	if _, err := c.AddEntity("", control.ActionsRoot, &core.Entity{
		Type:         core.TypeAction,
		ConnectionId: "conn",
		DefinitionId: "go",
	}, -1); err != nil {
		t.Fatal(err)
	}

	e, err := NewEngine(ctx, nil, s, nil)
	if err != nil {
		t.Fatal(err)
	}

	type step struct {
		x     float64
		fired bool
	}
	for i, st := range []step{{1, true}, {2, false}, {1, true}} {
		e.Set("conn", "x", st.x)
		rs := e.Flush(ctx)
		if len(rs) != 1 {
			t.Fatal(i, JS(rs))
		}
		if rs[0].Fired != st.fired {
			t.Fatal(i, JS(rs[0]))
		}
	}

	// Still met: no new firing.
	e.Touch("t")
	if rs := e.Flush(ctx); rs[0].Fired {
		t.Fatal("fired again")
	}

	e.WaitActions()
	if diff := cmp.Diff([]string{"t/go", "t/go"}, ran); diff != "" {
		t.Fatal(diff)
	}
}

func TestEngineButtonEvents(t *testing.T) {
	ctx := context.Background()
	s := control.NewSurface(nil, nil)

	var (
		mu  sync.Mutex
		ran []string
	)
	s.RunAction = func(ctx context.Context, controlId string, a *core.Entity) error {
		mu.Lock()
		ran = append(ran, a.DefinitionId)
		mu.Unlock()
		return nil
	}
	c, err := s.New("a", control.Button)
	if err != nil {
		t.Fatal(err)
	}
	for _, set := range []steps.ActionSetId{steps.Down, steps.Up} {
		if _, err := c.AddEntity("", steps.RootId("0", set), &core.Entity{
			Type:         core.TypeAction,
			ConnectionId: "conn",
			DefinitionId: string(set),
		}, -1); err != nil {
			t.Fatal(err)
		}
	}

	e, err := NewEngine(ctx, nil, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.ProcessMsg(ctx, &Msg{Press: "a"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := e.ProcessMsg(ctx, &Msg{Release: "a"}); err != nil {
		t.Fatal(err)
	}
	c.Machine.Wait()
	if diff := cmp.Diff([]string{"down", "up"}, ran); diff != "" {
		t.Fatal(diff)
	}

	if err := e.ProcessMsg(ctx, &Msg{Press: "nope"}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestEngineRename(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, nil, twoButtons(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	e.Set("dev", "x", "renamed")
	e.Flush(ctx)

	if err := e.ProcessMsg(ctx, &Msg{Rename: &Rename{From: "conn", To: "dev"}}); err != nil {
		t.Fatal(err)
	}
	rs := e.Flush(ctx)
	if diff := cmp.Diff([]string{"a", "b"}, ids(rs)); diff != "" {
		t.Fatal(diff)
	}
	if rs[0].Text != "renamed" {
		t.Fatal(rs[0].Text)
	}
}

func TestEngineLoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	input := `# Comments are ignored.
{"variables":{"conn:x":"hello"}}
`
	s := NewStdio(false)
	s.In = strings.NewReader(input)
	ro, wo := io.Pipe()
	s.Out = wo

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	e, err := NewEngine(ctx, &Conf{HaltOnInputEOF: true}, twoButtons(t), s)
	if err != nil {
		t.Fatal(err)
	}

	heard := make(chan *Result, 2)
	go func() {
		out := bufio.NewReader(ro)
		for {
			line, err := out.ReadString('\n')
			if err != nil {
				return
			}
			var r Result
			if err := json.Unmarshal([]byte(line), &r); err != nil {
				t.Error(err)
				return
			}
			heard <- &r
		}
	}()

	go func() {
		if err := e.Loop(ctx); err != nil {
			t.Error(err)
		}
	}()

	got := make(map[string]string)
	for len(got) < 2 {
		select {
		case r := <-heard:
			got[r.ControlId] = r.Text
		case <-ctx.Done():
			t.Fatal(got)
		}
	}
	want := map[string]string{"a": "hello", "b": "$NA"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}

	cancel()
	wo.Close()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}
