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
	"errors"
	"fmt"
	"sync"

	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/steps"
	"github.com/Comcast/surface/visitor"
)

// Type is the kind of Control.
type Type string

const (
	Button  Type = "button"
	Trigger Type = "trigger"
)

// Root list ids.
const (
	FeedbacksRoot      = "feedbacks"
	LocalVariablesRoot = "localVariables"
	ConditionsRoot     = "conditions"
	ActionsRoot        = "actions"
)

var (
	// UnknownType occurs when a Control's Type isn't one we know.
	UnknownType = errors.New("unknown control type")

	// NotAButton occurs when a button operation is given a
	// trigger.
	NotAButton = errors.New("not a button")
)

// Control is a button or a trigger: a base Style and the Tree of
// Entities that feed it.
//
// All mutations of a Control are serialized by its lock.  Evaluation
// works on a snapshot taken under a read lock, so different Controls
// are fully independent.
type Control struct {
	sync.RWMutex

	Id      string
	Type    Type
	Style   core.Style
	Options steps.MachineOptions

	Tree *core.Tree

	// Steps is nil for triggers.
	Steps *steps.Steps

	// Machine (buttons only) handles press, release, and rotate
	// events.
	Machine *steps.Machine

	deps struct {
		sync.Mutex
		ids map[string]struct{}
	}
}

// New makes an empty Control of the given Type.  A button gets one
// Step.
func New(id string, typ Type, reg core.Registry) (*Control, error) {
	c := &Control{
		Id:    id,
		Type:  typ,
		Style: core.Style{},
		Tree:  core.NewTree(reg),
	}
	if err := c.declareRoots(); err != nil {
		return nil, err
	}
	if typ == Button {
		c.Steps = steps.New(c.Tree)
		c.Steps.StepAdd()
		c.Machine = &steps.Machine{
			Id:     id,
			Steps:  c.Steps,
			Locker: &c.RWMutex,
		}
	}
	return c, nil
}

func (c *Control) declareRoots() error {
	roots := map[string]core.ListSpec{
		FeedbacksRoot:      core.ListOf(core.TypeFeedback),
		LocalVariablesRoot: core.ListOf(core.TypeLocalVariable),
	}
	switch c.Type {
	case Button:
	case Trigger:
		roots[ConditionsRoot] = core.ListOf(core.TypeFeedback, core.FeedbackBoolean)
		roots[ActionsRoot] = core.ListOf(core.TypeAction)
	default:
		return fmt.Errorf("%w: %q", UnknownType, c.Type)
	}
	for id, spec := range roots {
		if err := c.Tree.DeclareRoot(id, spec); err != nil {
			return err
		}
	}
	return nil
}

// AddEntity adds an Entity (with any Children) to a list.  An empty
// parentId means the group is a root list.
func (c *Control) AddEntity(parentId, group string, e *core.Entity, index int) (string, error) {
	c.Lock()
	defer c.Unlock()
	return c.Tree.AddChild(parentId, group, e, index)
}

// RemoveEntity removes an Entity and its descendants.
func (c *Control) RemoveEntity(id string) error {
	c.Lock()
	defer c.Unlock()
	return c.Tree.RemoveEntity(id)
}

// MoveEntity moves an Entity to another list (or position).
func (c *Control) MoveEntity(id, parentId, group string, index int) error {
	c.Lock()
	defer c.Unlock()
	return c.Tree.MoveEntity(id, parentId, group, index)
}

// DuplicateEntity copies an Entity (with fresh ids) to just after
// the original.
func (c *Control) DuplicateEntity(id string) (string, error) {
	c.Lock()
	defer c.Unlock()
	return c.Tree.Duplicate(id)
}

// Find returns a copy of the Entity with its Children.
func (c *Control) Find(id string) (*core.Entity, error) {
	c.RLock()
	defer c.RUnlock()
	return c.Tree.Find(id)
}

// Entities returns copies of the Entities in a root list.
func (c *Control) Entities(root string) []*core.Entity {
	c.RLock()
	defer c.RUnlock()
	return c.Tree.Entities(root)
}

// Edit runs the function with the write lock held.  Use it for the
// Tree's edit operations (SetEnabled, SetOption, etc.).
func (c *Control) Edit(f func(t *core.Tree) error) error {
	c.Lock()
	defer c.Unlock()
	return f(c.Tree)
}

// EditSteps runs the function with the write lock held.
func (c *Control) EditSteps(f func(ss *steps.Steps) error) error {
	c.Lock()
	defer c.Unlock()
	if c.Steps == nil {
		return fmt.Errorf("%w: %s", NotAButton, c.Id)
	}
	return f(c.Steps)
}

// SetStyle patches (or replaces) the base Style.
func (c *Control) SetStyle(patch core.Style, replace bool) {
	c.Lock()
	defer c.Unlock()
	if replace || c.Style == nil {
		c.Style = core.Style{}
	}
	c.Style.Merge(patch)
}

// ActionSetAdd adds a hold threshold set to the Step.
func (c *Control) ActionSetAdd(stepId string) (steps.ActionSetId, bool) {
	var (
		set steps.ActionSetId
		ok  bool
	)
	c.EditSteps(func(ss *steps.Steps) error {
		set, ok = ss.ActionSetAdd(stepId)
		return nil
	})
	return set, ok
}

// ActionSetRemove removes a hold threshold set.
func (c *Control) ActionSetRemove(stepId string, set steps.ActionSetId) bool {
	var ok bool
	c.EditSteps(func(ss *steps.Steps) error {
		ok = ss.ActionSetRemove(stepId, set)
		return nil
	})
	return ok
}

// ActionSetRename changes a hold threshold.
func (c *Control) ActionSetRename(stepId string, from, to steps.ActionSetId) bool {
	var ok bool
	c.EditSteps(func(ss *steps.Steps) error {
		ok = ss.ActionSetRename(stepId, from, to)
		return nil
	})
	return ok
}

// ActionSetRunWhileHeld flags (or unflags) a set.
func (c *Control) ActionSetRunWhileHeld(stepId string, set steps.ActionSetId, flag bool) bool {
	var ok bool
	c.EditSteps(func(ss *steps.Steps) error {
		ok = ss.ActionSetRunWhileHeld(stepId, set, flag)
		return nil
	})
	return ok
}

// RenameConnection rewrites references to the connection label in
// every Entity and in the base Style.  Returns the number of
// substitutions.
func (c *Control) RenameConnection(from, to string) int {
	if from == to {
		return 0
	}
	c.Lock()
	defer c.Unlock()
	count := 0
	c.Tree.Visit(func(e *core.Entity, depth int) {
		count += visitor.Rename(e, c.Tree.Registry, from, to)
	})
	for k, v := range c.Style {
		if s, is := v.(string); is {
			acc, n := visitor.RenameString(s, from, to)
			c.Style[k] = acc
			count += n
		}
	}
	return count
}

// References collects the references of every Entity and of the base
// Style.
func (c *Control) References() *visitor.References {
	c.RLock()
	defer c.RUnlock()
	refs := visitor.NewReferences()
	c.Tree.Visit(func(e *core.Entity, depth int) {
		visitor.Collect(e, c.Tree.Registry, refs)
	})
	for _, v := range c.Style {
		if s, is := v.(string); is {
			refs.ScanString(s)
		}
	}
	return refs
}

// Snapshot is a consistent copy of a Control for evaluation.
type Snapshot struct {
	Id    string
	Type  Type
	Style core.Style
	Tree  *core.Tree
}

// Snapshot copies the Control under a read lock.
func (c *Control) Snapshot() *Snapshot {
	c.RLock()
	defer c.RUnlock()
	return &Snapshot{
		Id:    c.Id,
		Type:  c.Type,
		Style: c.Style.Copy(),
		Tree:  c.Tree.Copy(),
	}
}

// Dependencies returns the VariableIds of the last evaluation.
func (c *Control) Dependencies() map[string]struct{} {
	c.deps.Lock()
	defer c.deps.Unlock()
	acc := make(map[string]struct{}, len(c.deps.ids))
	for id := range c.deps.ids {
		acc[id] = struct{}{}
	}
	return acc
}

// DependsOn reports whether the last evaluation used any of the given
// VariableIds.  A Control that hasn't been evaluated depends on
// everything.
func (c *Control) DependsOn(changed map[string]struct{}) bool {
	c.deps.Lock()
	defer c.deps.Unlock()
	if c.deps.ids == nil {
		return true
	}
	small, big := changed, c.deps.ids
	if len(big) < len(small) {
		small, big = big, small
	}
	for id := range small {
		if _, have := big[id]; have {
			return true
		}
	}
	return false
}

func (c *Control) setDependencies(ids map[string]struct{}) {
	c.deps.Lock()
	c.deps.ids = ids
	c.deps.Unlock()
}

// SetOptions sets the button options.
func (c *Control) SetOptions(o steps.MachineOptions) {
	c.Lock()
	defer c.Unlock()
	c.Options = o
	if m := c.Machine; m != nil {
		m.Lock()
		m.Options = o
		m.Unlock()
	}
}
