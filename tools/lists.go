package tools

import (
	"bytes"
	"encoding/json"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/steps"
)

// List is a named root list of a control.
type List struct {
	Name     string
	Entities []*core.Entity
}

// Lists returns a control's root lists in a sensible order: local
// variables, feedbacks, conditions, actions, and then the action sets
// of each step.  Empty lists are included except for step action
// sets.
func Lists(d *control.Data) []List {
	acc := []List{
		{control.LocalVariablesRoot, d.LocalVariables},
		{control.FeedbacksRoot, d.Feedbacks},
	}
	if d.Type == control.Trigger {
		acc = append(acc,
			List{control.ConditionsRoot, d.Conditions},
			List{control.ActionsRoot, d.Actions})
	}
	if d.Steps == nil {
		return acc
	}
	for _, id := range d.Steps.Order {
		sd, have := d.Steps.Steps[id]
		if !have {
			continue
		}
		sets := make([]steps.ActionSetId, 0, len(sd.ActionSets))
		for set := range sd.ActionSets {
			sets = append(sets, set)
		}
		steps.SortActionSetIds(sets)
		for _, set := range sets {
			if es := sd.ActionSets[set]; 0 < len(es) {
				acc = append(acc, List{steps.RootId(id, set), es})
			}
		}
	}
	return acc
}

// walk calls f on every Entity in the list and their descendants.
func walk(es []*core.Entity, depth int, f func(e *core.Entity, depth int)) {
	for _, e := range es {
		if e == nil {
			continue
		}
		f(e, depth)
		for _, g := range core.SortedGroups(e.Children) {
			walk(e.Children[g], depth+1, f)
		}
	}
}

// jsText renders the value as compact JSON without escaping HTML
// characters.
func jsText(x interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(x); err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(buf.Bytes())), nil
}
