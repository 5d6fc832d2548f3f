package control

import (
	"fmt"

	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/steps"
)

// Data is the persisted form of a Control: nested Entities, as JSON
// or YAML.
type Data struct {
	Id      string               `json:"id" yaml:"id"`
	Type    Type                 `json:"type" yaml:"type"`
	Style   core.Style           `json:"style,omitempty" yaml:"style,omitempty"`
	Options steps.MachineOptions `json:"options" yaml:"options"`

	Feedbacks      []*core.Entity `json:"feedbacks" yaml:"feedbacks"`
	LocalVariables []*core.Entity `json:"localVariables" yaml:"localVariables"`

	// Conditions and Actions are for triggers.
	Conditions []*core.Entity `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions    []*core.Entity `json:"actions,omitempty" yaml:"actions,omitempty"`

	// Steps is for buttons.
	Steps *steps.Data `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// Export makes the persisted form.
func (c *Control) Export() *Data {
	c.RLock()
	defer c.RUnlock()
	d := &Data{
		Id:             c.Id,
		Type:           c.Type,
		Style:          c.Style.Copy(),
		Options:        c.Options,
		Feedbacks:      c.Tree.Entities(FeedbacksRoot),
		LocalVariables: c.Tree.Entities(LocalVariablesRoot),
	}
	switch c.Type {
	case Trigger:
		d.Conditions = c.Tree.Entities(ConditionsRoot)
		d.Actions = c.Tree.Entities(ActionsRoot)
	case Button:
		d.Steps = c.Steps.Export()
	}
	return d
}

// Load makes a Control from its persisted form.  Options are
// normalized so that serialized ExpressionOrValues become
// ExpressionOrValues.
func Load(d *Data, reg core.Registry) (*Control, error) {
	c, err := New(d.Id, d.Type, reg)
	if err != nil {
		return nil, err
	}
	if d.Style != nil {
		c.Style = d.Style.Copy()
	}
	c.Options = d.Options
	if c.Machine != nil {
		c.Machine.Options = d.Options
	}

	lists := map[string][]*core.Entity{
		FeedbacksRoot:      d.Feedbacks,
		LocalVariablesRoot: d.LocalVariables,
	}
	if d.Type == Trigger {
		lists[ConditionsRoot] = d.Conditions
		lists[ActionsRoot] = d.Actions
	}
	for root, es := range lists {
		if err := normalize(es); err != nil {
			return nil, err
		}
		if err := c.Tree.Load(root, es); err != nil {
			return nil, fmt.Errorf("%s: %w", root, err)
		}
	}

	if d.Type == Button && d.Steps != nil {
		for _, sd := range d.Steps.Steps {
			for _, es := range sd.ActionSets {
				if err := normalize(es); err != nil {
					return nil, err
				}
			}
		}
		if err := c.Steps.Load(d.Steps); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func normalize(es []*core.Entity) error {
	for _, e := range es {
		if err := e.Options.Normalize(); err != nil {
			return fmt.Errorf("entity %s: %w", e.Id, err)
		}
		for _, cs := range e.Children {
			if err := normalize(cs); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load adds a persisted Control to the Surface.
func (s *Surface) Load(d *Data) (*Control, error) {
	c, err := Load(d, s.registry())
	if err != nil {
		return nil, err
	}
	if err := s.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}
