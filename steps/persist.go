package steps

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Comcast/surface/core"
)

// StepData is the persisted form of a Step.
type StepData struct {
	Options    StepOptions                    `json:"options" yaml:"options"`
	ActionSets map[ActionSetId][]*core.Entity `json:"action_sets" yaml:"action_sets"`
}

// Data is the persisted form of Steps.
type Data struct {
	Order   []string             `json:"order" yaml:"order"`
	Current int                  `json:"current" yaml:"current"`
	Steps   map[string]*StepData `json:"steps" yaml:"steps"`
}

// Export makes the persisted form.
func (ss *Steps) Export() *Data {
	d := &Data{
		Order:   ss.Ids(),
		Current: ss.current,
		Steps:   make(map[string]*StepData, len(ss.steps)),
	}
	for id, s := range ss.steps {
		sd := &StepData{
			Options: StepOptions{
				RunWhileHeld: append([]ActionSetId{}, s.Options.RunWhileHeld...),
				Name:         s.Options.Name,
			},
			ActionSets: make(map[ActionSetId][]*core.Entity, len(s.sets)),
		}
		for _, set := range s.sets {
			sd.ActionSets[set] = ss.Tree.Entities(RootId(id, set))
		}
		d.Steps[id] = sd
	}
	return d
}

// Load replaces the Steps (and their root lists in the Tree) with the
// given data.  Missing fixed sets are added.  An empty Order means
// the step ids in numeric order.
func (ss *Steps) Load(d *Data) error {
	order := d.Order
	if len(order) == 0 {
		for id := range d.Steps {
			order = append(order, id)
		}
		sort.Slice(order, func(i, j int) bool {
			x, _ := strconv.Atoi(order[i])
			y, _ := strconv.Atoi(order[j])
			if x != y {
				return x < y
			}
			return order[i] < order[j]
		})
	}
	// Check everything against a scratch Tree before touching the
	// current Steps.
	scratch := core.NewTree(ss.Tree.Registry)
	for _, id := range order {
		sd, have := d.Steps[id]
		if !have {
			return fmt.Errorf("%w: %s", UnknownStep, id)
		}
		for set, es := range sd.ActionSets {
			if !set.Valid() {
				return fmt.Errorf("%w: %s/%s", UnknownActionSet, id, set)
			}
			root := RootId(id, set)
			if err := scratch.DeclareRoot(root, core.ListOf(core.TypeAction)); err != nil {
				return err
			}
			if err := scratch.Load(root, es); err != nil {
				return fmt.Errorf("%s: %w", root, err)
			}
		}
	}

	for _, id := range ss.order {
		for _, set := range ss.steps[id].sets {
			ss.Tree.RemoveRoot(RootId(id, set))
		}
	}
	ss.steps = make(map[string]*Step, len(order))
	ss.order = nil
	ss.current = 0
	ss.nextId = 0

	for _, id := range order {
		sd := d.Steps[id]
		s := &Step{
			Id: id,
			Options: StepOptions{
				RunWhileHeld: append([]ActionSetId{}, sd.Options.RunWhileHeld...),
				Name:         sd.Options.Name,
			},
		}
		sets := append([]ActionSetId{}, FixedSets...)
		for set := range sd.ActionSets {
			if set.IsHold() {
				sets = append(sets, set)
			}
		}
		SortActionSetIds(sets)
		for _, set := range sets {
			if err := ss.declare(id, set); err != nil {
				return err
			}
			if err := ss.Tree.Load(RootId(id, set), sd.ActionSets[set]); err != nil {
				return err
			}
		}
		s.sets = sets
		ss.steps[id] = s
		ss.order = append(ss.order, id)
		if n, err := strconv.Atoi(id); err == nil && ss.nextId <= n {
			ss.nextId = n + 1
		}
	}
	if 0 <= d.Current && d.Current < len(ss.order) {
		ss.current = d.Current
	}
	return nil
}
