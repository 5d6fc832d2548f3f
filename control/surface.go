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
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/expression"
	"github.com/Comcast/surface/steps"
	"github.com/Comcast/surface/timers"
)

var (
	// NotFound occurs when a Control isn't in the Surface.
	NotFound = errors.New("control not found")

	// Exists occurs when adding a Control with an id that's in
	// use.
	Exists = errors.New("control exists")
)

// Surface is a collection of Controls that share a Registry, hold
// timers, and an action runner.
type Surface struct {
	sync.RWMutex

	// Registry has the connection definitions.  The internal
	// definitions are always consulted first.
	Registry core.Registry

	Timers *timers.Timers

	// RunAction performs an action that isn't internal.
	RunAction func(ctx context.Context, controlId string, action *core.Entity) error

	Debug bool

	internal *core.MapRegistry
	controls map[string]*Control
}

// NewSurface makes an empty Surface.
func NewSurface(reg core.Registry, ts *timers.Timers) *Surface {
	return &Surface{
		Registry: reg,
		Timers:   ts,
		internal: Internal(),
		controls: make(map[string]*Control, 32),
	}
}

// registry is the internal definitions followed by the Surface's.
func (s *Surface) registry() core.Registry {
	return core.Registries{s.internal, s.Registry}
}

// New makes a Control, which is added to the Surface.
func (s *Surface) New(id string, typ Type) (*Control, error) {
	c, err := New(id, typ, s.registry())
	if err != nil {
		return nil, err
	}
	if err := s.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Add adds the Control.  A button's Machine gets the Surface's Timers
// and an executor that runs actions through the Surface.
func (s *Surface) Add(c *Control) error {
	s.Lock()
	defer s.Unlock()
	if _, have := s.controls[c.Id]; have {
		return fmt.Errorf("%w: %s", Exists, c.Id)
	}
	if m := c.Machine; m != nil {
		m.Timers = s.Timers
		m.Executor = s.Executor(c.Id)
		m.Debug = s.Debug
	}
	s.controls[c.Id] = c
	return nil
}

// Remove removes the Control.
func (s *Surface) Remove(id string) error {
	s.Lock()
	defer s.Unlock()
	if _, have := s.controls[id]; !have {
		return fmt.Errorf("%w: %s", NotFound, id)
	}
	delete(s.controls, id)
	return nil
}

// Get returns the Control (or nil).
func (s *Surface) Get(id string) *Control {
	s.RLock()
	defer s.RUnlock()
	return s.controls[id]
}

// Ids returns the Control ids sorted.
func (s *Surface) Ids() []string {
	s.RLock()
	acc := make([]string, 0, len(s.controls))
	for id := range s.controls {
		acc = append(acc, id)
	}
	s.RUnlock()
	sort.Strings(acc)
	return acc
}

// Controls returns the Controls in id order.
func (s *Surface) Controls() []*Control {
	ids := s.Ids()
	acc := make([]*Control, 0, len(ids))
	s.RLock()
	for _, id := range ids {
		if c, have := s.controls[id]; have {
			acc = append(acc, c)
		}
	}
	s.RUnlock()
	return acc
}

// Affected returns the ids of the Controls whose last evaluation
// depends on any of the changed VariableIds.
func (s *Surface) Affected(changed map[string]struct{}) []string {
	acc := make([]string, 0, 8)
	for _, c := range s.Controls() {
		if c.DependsOn(changed) {
			acc = append(acc, c.Id)
		}
	}
	return acc
}

// RenameConnection renames a connection label in every Control.  Each
// Control is locked in turn.  Returns the total number of
// substitutions.
func (s *Surface) RenameConnection(from, to string) int {
	count := 0
	for _, c := range s.Controls() {
		count += c.RenameConnection(from, to)
	}
	return count
}

// Evaluate evaluates the Control with the given id.
func (s *Surface) Evaluate(ctx context.Context, id string, in *Input) (*Evaluation, error) {
	c := s.Get(id)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", NotFound, id)
	}
	return c.Evaluate(ctx, in), nil
}

// runAction performs one action.  The internal wait action sleeps
// for its time option.
func (s *Surface) runAction(ctx context.Context, controlId string, a *core.Entity) error {
	if a.ConnectionId == InternalConnection && a.DefinitionId == "wait" {
		ms := 1000.0
		if v, have := a.Options[TimeOption]; have {
			if n, ok := number(v); ok {
				ms = n
			}
		}
		t := time.NewTimer(time.Duration(ms * float64(time.Millisecond)))
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	if s.RunAction == nil {
		return nil
	}
	return s.RunAction(ctx, controlId, a)
}

// Executor makes a steps.Executor that runs a Control's actions.
func (s *Surface) Executor(controlId string) steps.Executor {
	return &steps.SequentialExecutor{
		Run: func(ctx context.Context, a *core.Entity) error {
			return s.runAction(ctx, controlId, a)
		},
		Debug: s.Debug,
	}
}

// Fire runs a trigger's actions if its conditions are met.  Returns
// whether the actions ran.
func (s *Surface) Fire(ctx context.Context, id string, in *Input) (bool, error) {
	c := s.Get(id)
	if c == nil {
		return false, fmt.Errorf("%w: %s", NotFound, id)
	}
	if c.Type != Trigger {
		return false, fmt.Errorf("%w: %s is a %s", UnknownType, id, c.Type)
	}
	ev := c.Evaluate(ctx, in)
	if !ev.ConditionsMet {
		return false, nil
	}
	return true, s.Executor(id).Execute(ctx, c.Entities(ActionsRoot))
}

// number gets a literal number from an option value.
func number(v interface{}) (float64, bool) {
	if x, is := core.AsExpressionOrValue(v); is {
		if x.IsExpression {
			return 0, false
		}
		v = x.Value
	}
	return expression.ToNumber(v)
}
