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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/expression"
)

var (
	// DefaultWindow is how long variable changes are collected
	// before the affected controls are evaluated.
	DefaultWindow = 20 * time.Millisecond

	// DefaultParallel bounds the number of concurrent control
	// evaluations.
	DefaultParallel = 8
)

// Msg is an in-bound message.  A single Msg can carry several
// requests, which are processed in field order.
type Msg struct {
	// Variables are new values by VariableId ("scope:name").
	Variables map[string]interface{} `json:"variables,omitempty"`

	// Unset are VariableIds to forget.
	Unset []string `json:"unset,omitempty"`

	// Feedbacks are connection-reported feedback values by
	// control id and then entity id.
	Feedbacks map[string]map[string]interface{} `json:"feedbacks,omitempty"`

	// Rename changes a connection label everywhere.
	Rename *Rename `json:"rename,omitempty"`

	// Evaluate forces the evaluation of a control.  "*" means
	// every control.
	Evaluate string `json:"evaluate,omitempty"`

	// Press, Release, and Rotate are button events.
	Press   string `json:"press,omitempty"`
	Release string `json:"release,omitempty"`
	Rotate  string `json:"rotate,omitempty"`

	// Right is the direction for Rotate.
	Right bool `json:"right,omitempty"`
}

// Rename is a connection label change.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AsMsg converts something that looks like a Msg into one.
func AsMsg(x interface{}) (*Msg, error) {
	switch vv := x.(type) {
	case *Msg:
		return vv, nil
	case Msg:
		return &vv, nil
	}
	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}
	var m Msg
	if err = json.Unmarshal(js, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Result is the evaluation of one control.
type Result struct {
	ControlId     string              `json:"controlId,omitempty"`
	Style         core.Style          `json:"style,omitempty"`
	Text          string              `json:"text,omitempty"`
	VariableIds   []string            `json:"variableIds,omitempty"`
	ConditionsMet bool                `json:"conditionsMet,omitempty"`
	Errors        []control.EvalError `json:"errors,omitempty"`

	// Fired reports that a trigger's conditions became true and
	// its actions were started.
	Fired bool `json:"fired,omitempty"`
}

// Conf provides some basic Engine parameters.
type Conf struct {
	// Window is the batching window.  Zero means DefaultWindow.
	Window time.Duration `json:"window,omitempty" yaml:"window,omitempty"`

	// Parallel bounds concurrent evaluations.  Zero means
	// DefaultParallel.
	Parallel int `json:"parallel,omitempty" yaml:"parallel,omitempty"`

	// HaltOnInputEOF stops the Loop when the input is done.
	HaltOnInputEOF bool `json:"haltOnInputEOF,omitempty" yaml:"haltOnInputEOF,omitempty"`

	// Now (optional) is the clock for expressions.
	Now func() time.Time `json:"-" yaml:"-"`

	// Functions (optional) extend the expression builtins.
	Functions map[string]expression.Func `json:"-" yaml:"-"`
}

// Engine evaluates a Surface's controls as variables change.
//
// Variable changes are collected for Conf.Window.  Then the controls
// whose last evaluation depends on any of the changed variables are
// evaluated concurrently, and their Results go to the out-bound
// coupling.
type Engine struct {
	Surface *control.Surface
	Vars    *VariableTable
	Conf    *Conf

	// Verbose turns on logging.
	Verbose bool

	feedbacks feedbackValues

	sync.Mutex

	// changed has the VariableIds changed since the last flush.
	changed map[string]struct{}

	// dirty has the ids of the controls that must be evaluated
	// at the next flush regardless of changed.
	dirty map[string]struct{}

	// met remembers the last ConditionsMet of each trigger.
	met map[string]bool

	actions sync.WaitGroup

	in   chan interface{}
	out  chan *Result
	done chan bool
}

// NewEngine makes an Engine for the given Surface.
//
// If couplings isn't nil, its IO() method is called to obtain the
// engine's in/out channels.  Without couplings, use ProcessMsg and
// Flush directly.
func NewEngine(ctx context.Context, conf *Conf, surface *control.Surface, couplings Couplings) (*Engine, error) {
	if conf == nil {
		conf = &Conf{}
	}
	e := &Engine{
		Surface: surface,
		Vars:    NewVariableTable(),
		Conf:    conf,
		changed: make(map[string]struct{}, 32),
		dirty:   make(map[string]struct{}, 8),
		met:     make(map[string]bool),
	}
	if couplings != nil {
		in, out, done, err := couplings.IO(ctx)
		if err != nil {
			return nil, err
		}
		e.in, e.out, e.done = in, out, done
	}
	return e, nil
}

// Logf logs if e.Verbose.
func (e *Engine) Logf(format string, args ...interface{}) {
	if !e.Verbose {
		return
	}
	log.Printf(format, args...)
}

// Errorf emits an error Result and writes a log line with "ERROR"
// prepended.
func (e *Engine) Errorf(ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Println("ERROR " + msg)
	if e.out == nil {
		return
	}
	r := &Result{
		Errors: []control.EvalError{{Error: msg}},
	}
	select {
	case <-ctx.Done():
	case e.out <- r:
	}
}

func (e *Engine) window() time.Duration {
	if e.Conf.Window <= 0 {
		return DefaultWindow
	}
	return e.Conf.Window
}

func (e *Engine) parallel() int {
	if e.Conf.Parallel <= 0 {
		return DefaultParallel
	}
	return e.Conf.Parallel
}

// Set sets a variable.  The change takes effect at the next flush.
func (e *Engine) Set(scope, name string, v interface{}) {
	if e.Vars.Set(scope, name, v) {
		e.Lock()
		e.changed[expression.VariableId(scope, name)] = struct{}{}
		e.Unlock()
	}
}

// Touch schedules the evaluation of the control at the next flush.
func (e *Engine) Touch(controlId string) {
	e.Lock()
	e.dirty[controlId] = struct{}{}
	e.Unlock()
}

// TouchAll schedules the evaluation of every control.
func (e *Engine) TouchAll() {
	for _, id := range e.Surface.Ids() {
		e.Touch(id)
	}
}

// Pending reports whether there's anything to flush.
func (e *Engine) Pending() bool {
	e.Lock()
	defer e.Unlock()
	return 0 < len(e.changed) || 0 < len(e.dirty)
}

// Forget drops the engine's state for a control that has been
// removed.
func (e *Engine) Forget(controlId string) {
	e.feedbacks.forget(controlId)
	e.Lock()
	delete(e.met, controlId)
	delete(e.dirty, controlId)
	e.Unlock()
}

// ProcessMsg applies an in-bound message.  Variable changes aren't
// evaluated until the next flush, but button events take effect
// immediately.
func (e *Engine) ProcessMsg(ctx context.Context, x interface{}) error {
	m, err := AsMsg(x)
	if err != nil {
		return err
	}
	e.Logf("Engine.ProcessMsg %s", jshort(m))

	for id, v := range m.Variables {
		scope, name, ok := expression.SplitVariableId(id)
		if !ok {
			return fmt.Errorf("bad variable id %q", id)
		}
		e.Set(scope, name, v)
	}

	for _, id := range m.Unset {
		scope, name, ok := expression.SplitVariableId(id)
		if !ok {
			return fmt.Errorf("bad variable id %q", id)
		}
		if e.Vars.Delete(scope, name) {
			e.Lock()
			e.changed[id] = struct{}{}
			e.Unlock()
		}
	}

	for cid, vs := range m.Feedbacks {
		for eid, v := range vs {
			if e.feedbacks.set(cid, eid, v) {
				e.Touch(cid)
			}
		}
	}

	if r := m.Rename; r != nil {
		n := e.Surface.RenameConnection(r.From, r.To)
		e.Logf("Engine.ProcessMsg renamed %s to %s (%d)", r.From, r.To, n)
		if 0 < n {
			e.TouchAll()
		}
	}

	switch m.Evaluate {
	case "":
	case "*":
		e.TouchAll()
	default:
		e.Touch(m.Evaluate)
	}

	if m.Press != "" {
		if err := e.machine(m.Press, func(mc machine) error { return mc.Press(ctx) }); err != nil {
			return err
		}
	}
	if m.Release != "" {
		if err := e.machine(m.Release, func(mc machine) error { return mc.Release(ctx) }); err != nil {
			return err
		}
	}
	if m.Rotate != "" {
		if err := e.machine(m.Rotate, func(mc machine) error { return mc.Rotate(ctx, m.Right) }); err != nil {
			return err
		}
	}

	return nil
}

type machine interface {
	Press(ctx context.Context) error
	Release(ctx context.Context) error
	Rotate(ctx context.Context, right bool) error
}

func (e *Engine) machine(controlId string, f func(machine) error) error {
	c := e.Surface.Get(controlId)
	if c == nil {
		return fmt.Errorf("%w: %s", control.NotFound, controlId)
	}
	if c.Machine == nil {
		return fmt.Errorf("%w: %s", control.NotAButton, controlId)
	}
	return f(c.Machine)
}

// Flush evaluates the controls affected by the changes since the
// last flush.  The Results are in control id order.
func (e *Engine) Flush(ctx context.Context) []*Result {
	e.Lock()
	changed, dirty := e.changed, e.dirty
	e.changed = make(map[string]struct{}, 32)
	e.dirty = make(map[string]struct{}, 8)
	e.Unlock()

	if 0 < len(changed) {
		for _, id := range e.Surface.Affected(changed) {
			dirty[id] = struct{}{}
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	ids := make([]string, 0, len(dirty))
	for id := range dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	e.Logf("Engine.Flush %d changes, evaluating %v", len(changed), ids)

	var (
		evs = make([]*control.Evaluation, len(ids))
		sem = make(chan struct{}, e.parallel())
		wg  sync.WaitGroup
	)
	for i, id := range ids {
		c := e.Surface.Get(id)
		if c == nil {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, c *control.Control) {
			defer wg.Done()
			defer func() { <-sem }()
			evs[i] = c.Evaluate(ctx, &control.Input{
				Variables:      e.Vars,
				FeedbackValues: e.feedbacks.get(c.Id),
				Now:            e.Conf.Now,
				Functions:      e.Conf.Functions,
			})
		}(i, c)
	}
	wg.Wait()

	acc := make([]*Result, 0, len(ids))
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		r := &Result{
			ControlId:     ev.ControlId,
			Style:         ev.Style,
			Text:          ev.Text,
			VariableIds:   ev.VariableIds,
			ConditionsMet: ev.ConditionsMet,
			Errors:        ev.Errors,
		}
		if c := e.Surface.Get(ev.ControlId); c != nil && c.Type == control.Trigger {
			r.Fired = e.fire(ctx, c, ev.ConditionsMet)
		}
		acc = append(acc, r)
	}
	return acc
}

// fire starts a trigger's actions when its conditions become true.
func (e *Engine) fire(ctx context.Context, c *control.Control, met bool) bool {
	e.Lock()
	was := e.met[c.Id]
	e.met[c.Id] = met
	e.Unlock()
	if !met || was {
		return false
	}
	actions := c.Entities(control.ActionsRoot)
	x := e.Surface.Executor(c.Id)
	e.actions.Add(1)
	go func() {
		defer e.actions.Done()
		if err := x.Execute(ctx, actions); err != nil {
			e.Logf("Engine.fire %s error %s", c.Id, err)
		}
	}()
	return true
}

// WaitActions waits for the trigger actions that have been started.
func (e *Engine) WaitActions() {
	e.actions.Wait()
}

func (e *Engine) emit(ctx context.Context, rs []*Result) {
	if e.out == nil {
		return
	}
	for _, r := range rs {
		select {
		case <-ctx.Done():
			return
		case e.out <- r:
		}
	}
}

// Loop starts the input processing loop in the current goroutine.
//
// The first change after a flush starts the batching window.  When
// the window closes, the engine flushes.  The loop halts when
// ctx.Done().
func (e *Engine) Loop(ctx context.Context) error {
	if e.in == nil {
		return fmt.Errorf("no couplings")
	}
	e.Logf("Engine.Loop starting")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		fire = nil
	}
	defer stop()

	done := e.done
LOOP:
	for {
		select {
		case <-done:
			done = nil
			if e.Conf.HaltOnInputEOF {
				e.Logf("Engine.Loop shutting down (done)")
				e.emit(ctx, e.Flush(ctx))
				break LOOP
			}
		case <-ctx.Done():
			e.Logf("Engine.Loop shutting down (ctx.Done)")
			break LOOP
		case msg := <-e.in:
			if msg == nil {
				e.emit(ctx, e.Flush(ctx))
				break LOOP
			}
			if err := e.ProcessMsg(ctx, msg); err != nil {
				e.Errorf(ctx, "Engine.Loop ProcessMsg %s", err)
			}
			if fire == nil && e.Pending() {
				timer = time.NewTimer(e.window())
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			e.emit(ctx, e.Flush(ctx))
		}
	}

	e.Logf("Engine.Loop done")
	return nil
}

// jshort is JS truncated for log lines.
func jshort(x interface{}) string {
	const max = 70
	s := JS(x)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
