package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/sio"
	"github.com/Comcast/surface/storage"
	"github.com/Comcast/surface/storage/bolt"
)

func newService(t *testing.T, st storage.Storage) *Service {
	surface := control.NewSurface(nil, nil)
	s := NewService(surface, st, "test", nil)
	e, err := sio.NewEngine(context.Background(), nil, surface, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Engine = e
	s.firehose = make(chan interface{}, 64)
	surface.RunAction = s.RunAction
	return s
}

// lastResult drains the firehose and returns the last Result for the
// control.
func lastResult(s *Service, id string) *sio.Result {
	var last *sio.Result
	for {
		select {
		case x := <-s.firehose:
			if m, is := x.(map[string]interface{}); is {
				if r, is := m["result"].(*sio.Result); is && r.ControlId == id {
					last = r
				}
			}
		default:
			return last
		}
	}
}

func TestServiceOps(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)

	op := &SOp{
		Add: &control.Data{
			Id:    "b1",
			Type:  control.Button,
			Style: core.Style{"text": "$(mixer:x)"},
		},
	}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	r := lastResult(s, "b1")
	if r == nil || r.Text != "$NA" {
		t.Fatal(sio.JS(r))
	}

	op = &SOp{
		Msg: &sio.Msg{
			Variables: map[string]interface{}{"mixer:x": 3},
		},
	}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if r = lastResult(s, "b1"); r == nil || r.Text != "3" {
		t.Fatal(sio.JS(r))
	}

	op = &SOp{
		EOp: &EOp{
			ControlId: "b1",
			AddEntity: &OpAddEntity{
				Group: control.FeedbacksRoot,
				Entity: &core.Entity{
					Type:         core.TypeFeedback,
					ConnectionId: "internal",
					DefinitionId: "check_expression",
					Options: core.Options{
						"expression": core.NewExpression("$(mixer:x) > 2"),
					},
					Style: core.Style{"color": 255},
				},
			},
		},
	}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if op.EOp.AddEntity.Id == "" {
		t.Fatal("no entity id")
	}
	if r = lastResult(s, "b1"); r == nil || fmt.Sprint(r.Style["color"]) != "255" {
		t.Fatal(sio.JS(r))
	}

	fid := op.EOp.AddEntity.Id

	op = &SOp{Deps: "b1"}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if len(op.Ids) != 1 || op.Ids[0] != "mixer:x" {
		t.Fatal(op.Ids)
	}

	op = &SOp{
		EOp: &EOp{
			ControlId: "b1",
			Headline:  &OpSetHeadline{EntityId: fid, Headline: "Over two"},
		},
	}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if e, err := s.Surface.Get("b1").Find(fid); err != nil || e.Headline != "Over two" {
		t.Fatal(e, err)
	}

	op = &SOp{
		EOp: &EOp{
			ControlId: "b1",
			Duplicate: fid,
		},
	}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	dup := op.EOp.DuplicateId
	if dup == "" || dup == fid {
		t.Fatal(dup)
	}
	if err := (&SOp{EOp: &EOp{ControlId: "b1", RemEntity: dup}}).Do(ctx, s); err != nil {
		t.Fatal(err)
	}

	op = &SOp{
		EOp: &EOp{
			ControlId: "b1",
			Disable:   fid,
		},
	}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if r = lastResult(s, "b1"); r == nil || r.Style["color"] != nil {
		t.Fatal(sio.JS(r))
	}

	op = &SOp{List: true}
	if err := op.Do(ctx, s); err != nil || len(op.Ids) != 1 || op.Ids[0] != "b1" {
		t.Fatal(op.Ids, err)
	}

	op = &SOp{Analyze: "b1"}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}
	if op.Analysis.Entities != 1 || len(op.Analysis.Disabled) != 1 {
		t.Fatal(sio.JS(op.Analysis))
	}

	op = &SOp{Rem: "b1"}
	if err := op.Do(ctx, s); err != nil {
		t.Fatal(err)
	}

	op = &SOp{Get: "b1"}
	if err := op.Do(ctx, s); !errors.Is(err, control.NotFound) || op.Err == "" {
		t.Fatal(err, op.Err)
	}

	op = &SOp{}
	if err := op.Do(ctx, s); err == nil {
		t.Fatal("expected an error")
	}
}

func TestServiceEditErrors(t *testing.T) {
	ctx := context.Background()
	s := newService(t, nil)

	op := &SOp{
		EOp: &EOp{
			ControlId: "nope",
			RemEntity: "e1",
		},
	}
	if err := op.Do(ctx, s); !errors.Is(err, control.NotFound) {
		t.Fatal(err)
	}

	if err := (&SOp{Add: &control.Data{Id: "t1", Type: control.Trigger}}).Do(ctx, s); err != nil {
		t.Fatal(err)
	}

	// A feedback isn't an action.
	op = &SOp{
		EOp: &EOp{
			ControlId: "t1",
			AddEntity: &OpAddEntity{
				Group: control.ActionsRoot,
				Entity: &core.Entity{
					Type:         core.TypeFeedback,
					ConnectionId: "internal",
					DefinitionId: "check_expression",
				},
			},
		},
	}
	if err := op.Do(ctx, s); err == nil {
		t.Fatal("expected an error")
	}

	// Duplicate ids aren't allowed.
	if err := (&SOp{Add: &control.Data{Id: "t1", Type: control.Trigger}}).Do(ctx, s); !errors.Is(err, control.Exists) {
		t.Fatal(err)
	}
}

func TestServiceAction(t *testing.T) {
	s := newService(t, nil)
	a := &core.Entity{
		Type:         core.TypeAction,
		ConnectionId: "mixer",
		DefinitionId: "mute",
	}
	if err := s.RunAction(context.Background(), "b1", a); err != nil {
		t.Fatal(err)
	}
	x := <-s.firehose
	m, is := x.(map[string]interface{})
	if !is {
		t.Fatal(x)
	}
	y, have := m["action"].(map[string]interface{})
	if !have {
		t.Fatal(m)
	}
	if at, _ := y["at"].(string); at == "" {
		t.Fatal(y)
	}
}

func TestServiceBolt(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "surface.db")

	open := func() (*Service, *bolt.Storage) {
		st, err := bolt.NewStorage(filename)
		if err != nil {
			t.Fatal(err)
		}
		s := newService(t, st)
		if _, err = s.Restore(ctx); err != nil {
			t.Fatal(err)
		}
		return s, st
	}

	s, st := open()
	for _, id := range []string{"b1", "b2"} {
		if err := s.Add(ctx, &control.Data{Id: id, Type: control.Button}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Remove(ctx, "b1"); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(ctx); err != nil {
		t.Fatal(err)
	}

	s, st = open()
	defer st.Close(ctx)
	ids := s.Surface.Ids()
	if len(ids) != 1 || ids[0] != "b2" {
		t.Fatal(ids)
	}
}
