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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Comcast/surface/core"
)

var (
	// UnknownStep occurs when a Step id isn't known.
	UnknownStep = errors.New("unknown step")

	// UnknownActionSet occurs when a Step doesn't have the
	// action set.
	UnknownActionSet = errors.New("unknown action set")

	// DefaultHoldStep is the gap between a new hold threshold and
	// the largest existing one.
	DefaultHoldStep = 1000
)

// StepOptions are the persisted options of a Step.
type StepOptions struct {
	RunWhileHeld []ActionSetId `json:"runWhileHeld" yaml:"runWhileHeld"`
	Name         string        `json:"name,omitempty" yaml:"name,omitempty"`
}

func (o StepOptions) runsWhileHeld(id ActionSetId) bool {
	for _, x := range o.RunWhileHeld {
		if x == id {
			return true
		}
	}
	return false
}

// Step is one of a button's alternative configurations.
type Step struct {
	Id      string
	Options StepOptions

	sets []ActionSetId
}

func (s *Step) has(id ActionSetId) bool {
	for _, x := range s.sets {
		if x == id {
			return true
		}
	}
	return false
}

// Sets returns the Step's ActionSetIds in order.
func (s *Step) Sets() []ActionSetId {
	return append([]ActionSetId(nil), s.sets...)
}

// Steps holds a button's Steps.  The actions of each action set are
// kept in a root list of the given Tree.
//
// Not safe for concurrent use.
type Steps struct {
	Tree *core.Tree

	steps   map[string]*Step
	order   []string
	current int
	nextId  int
}

// New makes an empty Steps.  Call StepAdd to make the first Step.
func New(tree *core.Tree) *Steps {
	return &Steps{
		Tree:  tree,
		steps: make(map[string]*Step, 2),
	}
}

// RootId is the id of the Tree root list for an action set.
func RootId(stepId string, set ActionSetId) string {
	return "steps/" + stepId + "/" + string(set)
}

// ParseRootId is the inverse of RootId.
func ParseRootId(root string) (string, ActionSetId, bool) {
	parts := strings.SplitN(root, "/", 3)
	if len(parts) != 3 || parts[0] != "steps" {
		return "", "", false
	}
	return parts[1], ActionSetId(parts[2]), true
}

// Ids returns the Step ids in order.
func (ss *Steps) Ids() []string {
	return append([]string(nil), ss.order...)
}

// Len is the number of Steps.
func (ss *Steps) Len() int {
	return len(ss.order)
}

// Step returns the Step (or nil).
func (ss *Steps) Step(id string) *Step {
	return ss.steps[id]
}

// Current returns the id of the current Step (or "").
func (ss *Steps) Current() string {
	if len(ss.order) == 0 {
		return ""
	}
	return ss.order[ss.current]
}

// CurrentIndex returns the index of the current Step.
func (ss *Steps) CurrentIndex() int {
	return ss.current
}

func (ss *Steps) index(id string) int {
	for i, x := range ss.order {
		if x == id {
			return i
		}
	}
	return -1
}

func (ss *Steps) newId() string {
	for {
		id := strconv.Itoa(ss.nextId)
		ss.nextId++
		if _, have := ss.steps[id]; !have {
			return id
		}
	}
}

func (ss *Steps) declare(stepId string, set ActionSetId) error {
	return ss.Tree.DeclareRoot(RootId(stepId, set), core.ListOf(core.TypeAction))
}

// StepAdd adds a new Step with empty fixed action sets.  Returns the
// new Step's id.
func (ss *Steps) StepAdd() string {
	id := ss.newId()
	s := &Step{
		Id:      id,
		Options: StepOptions{RunWhileHeld: []ActionSetId{}},
	}
	for _, set := range FixedSets {
		if err := ss.declare(id, set); err == nil {
			s.sets = append(s.sets, set)
		}
	}
	ss.steps[id] = s
	ss.order = append(ss.order, id)
	return id
}

// StepRemove removes a Step and its actions.  The last Step can't be
// removed.
func (ss *Steps) StepRemove(id string) bool {
	i := ss.index(id)
	if i < 0 || len(ss.order) == 1 {
		return false
	}
	for _, set := range ss.steps[id].sets {
		ss.Tree.RemoveRoot(RootId(id, set))
	}
	delete(ss.steps, id)
	ss.order = append(ss.order[:i:i], ss.order[i+1:]...)
	if i < ss.current || len(ss.order) <= ss.current {
		ss.current--
	}
	if ss.current < 0 {
		ss.current = 0
	}
	return true
}

// StepSwap swaps the positions of two Steps.
func (ss *Steps) StepSwap(a, b string) bool {
	i, j := ss.index(a), ss.index(b)
	if i < 0 || j < 0 {
		return false
	}
	ss.order[i], ss.order[j] = ss.order[j], ss.order[i]
	switch ss.current {
	case i:
		ss.current = j
	case j:
		ss.current = i
	}
	return true
}

// StepSelect makes the Step current.
func (ss *Steps) StepSelect(id string) bool {
	i := ss.index(id)
	if i < 0 {
		return false
	}
	ss.current = i
	return true
}

// StepNext advances to the Step after the given one, wrapping.  An
// empty id means the current Step.
func (ss *Steps) StepNext(from string) bool {
	if len(ss.order) == 0 {
		return false
	}
	i := ss.current
	if from != "" {
		if i = ss.index(from); i < 0 {
			return false
		}
	}
	ss.current = (i + 1) % len(ss.order)
	return true
}

// StepRename sets the Step's name.
func (ss *Steps) StepRename(id, name string) bool {
	s, have := ss.steps[id]
	if !have {
		return false
	}
	s.Options.Name = name
	return true
}

// StepDuplicate copies a Step (with fresh Entity ids) and puts it
// after the original.
func (ss *Steps) StepDuplicate(id string) (string, bool) {
	s, have := ss.steps[id]
	if !have {
		return "", false
	}
	dupId := ss.newId()
	dup := &Step{
		Id: dupId,
		Options: StepOptions{
			RunWhileHeld: append([]ActionSetId{}, s.Options.RunWhileHeld...),
			Name:         s.Options.Name,
		},
	}
	for _, set := range s.sets {
		if err := ss.declare(dupId, set); err != nil {
			continue
		}
		for _, e := range ss.Tree.Entities(RootId(id, set)) {
			clearIds(e)
			ss.Tree.AddChild("", RootId(dupId, set), e, -1)
		}
		dup.sets = append(dup.sets, set)
	}
	ss.steps[dupId] = dup
	i := ss.index(id) + 1
	ss.order = append(ss.order, "")
	copy(ss.order[i+1:], ss.order[i:])
	ss.order[i] = dupId
	if i <= ss.current {
		ss.current++
	}
	return dupId, true
}

func clearIds(e *core.Entity) {
	e.Id = ""
	for _, cs := range e.Children {
		for _, c := range cs {
			clearIds(c)
		}
	}
}

// ActionSets returns the ActionSetIds of the Step in order.
func (ss *Steps) ActionSets(stepId string) ([]ActionSetId, error) {
	s, have := ss.steps[stepId]
	if !have {
		return nil, fmt.Errorf("%w: %s", UnknownStep, stepId)
	}
	return s.Sets(), nil
}

// Actions returns copies of the actions in an action set.
func (ss *Steps) Actions(stepId string, set ActionSetId) ([]*core.Entity, error) {
	s, have := ss.steps[stepId]
	if !have {
		return nil, fmt.Errorf("%w: %s", UnknownStep, stepId)
	}
	if !s.has(set) {
		return nil, fmt.Errorf("%w: %s/%s", UnknownActionSet, stepId, set)
	}
	return ss.Tree.Entities(RootId(stepId, set)), nil
}

// RunWhileHeld reports whether the action set is flagged.
func (ss *Steps) RunWhileHeld(stepId string, set ActionSetId) bool {
	s, have := ss.steps[stepId]
	return have && s.Options.runsWhileHeld(set)
}

// ActionSetAdd adds a hold threshold set DefaultHoldStep after the
// largest existing threshold (or at DefaultHoldStep).
func (ss *Steps) ActionSetAdd(stepId string) (ActionSetId, bool) {
	s, have := ss.steps[stepId]
	if !have {
		return "", false
	}
	max := 0
	for _, set := range s.sets {
		if n, is := set.Threshold(); is && max < n {
			max = n
		}
	}
	set := HoldSet(max + DefaultHoldStep)
	if err := ss.declare(stepId, set); err != nil {
		return "", false
	}
	s.sets = append(s.sets, set)
	SortActionSetIds(s.sets)
	return set, true
}

// ActionSetRemove removes a hold threshold set and its actions.  The
// fixed sets can't be removed.
func (ss *Steps) ActionSetRemove(stepId string, set ActionSetId) bool {
	s, have := ss.steps[stepId]
	if !have || !s.has(set) || !set.IsHold() {
		return false
	}
	if err := ss.Tree.RemoveRoot(RootId(stepId, set)); err != nil {
		return false
	}
	s.sets = without(s.sets, set)
	s.Options.RunWhileHeld = without(s.Options.RunWhileHeld, set)
	return true
}

// ActionSetRename changes a hold threshold.  Fails if the new
// threshold is already in use within the Step.
func (ss *Steps) ActionSetRename(stepId string, from, to ActionSetId) bool {
	s, have := ss.steps[stepId]
	if !have || !s.has(from) || !from.IsHold() || !to.IsHold() || s.has(to) {
		return false
	}
	if err := ss.Tree.RenameRoot(RootId(stepId, from), RootId(stepId, to)); err != nil {
		return false
	}
	for i, x := range s.sets {
		if x == from {
			s.sets[i] = to
		}
	}
	SortActionSetIds(s.sets)
	for i, x := range s.Options.RunWhileHeld {
		if x == from {
			s.Options.RunWhileHeld[i] = to
		}
	}
	return true
}

// ActionSetRunWhileHeld flags (or unflags) a set.  Only down and the
// hold threshold sets can run while held.
func (ss *Steps) ActionSetRunWhileHeld(stepId string, set ActionSetId, flag bool) bool {
	s, have := ss.steps[stepId]
	if !have || !s.has(set) || !(set == Down || set.IsHold()) {
		return false
	}
	s.Options.RunWhileHeld = without(s.Options.RunWhileHeld, set)
	if flag {
		s.Options.RunWhileHeld = append(s.Options.RunWhileHeld, set)
		SortActionSetIds(s.Options.RunWhileHeld)
	}
	return true
}

func without(ids []ActionSetId, id ActionSetId) []ActionSetId {
	acc := make([]ActionSetId, 0, len(ids))
	for _, x := range ids {
		if x != id {
			acc = append(acc, x)
		}
	}
	return acc
}
