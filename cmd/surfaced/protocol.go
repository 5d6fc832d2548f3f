package main

import (
	"context"
	"fmt"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/expression"
	"github.com/Comcast/surface/sio"
	"github.com/Comcast/surface/tools"
)

// SOp is a Service Operation.
//
// Only one of the request fields should have a value.  The response
// fields are filled in by Do.
type SOp struct {
	// Msg is given to the Engine.
	Msg *sio.Msg `json:"msg,omitempty" yaml:",omitempty"`

	// Add adds a control.
	Add *control.Data `json:"add,omitempty" yaml:",omitempty"`

	// Rem gives the id of the control to be removed.
	Rem string `json:"rem,omitempty" yaml:",omitempty"`

	// Get gives the id of a control to export.
	Get string `json:"get,omitempty" yaml:",omitempty"`

	// List asks for the control ids.
	List bool `json:"list,omitempty" yaml:",omitempty"`

	// Analyze gives the id of a control to analyze.
	Analyze string `json:"analyze,omitempty" yaml:",omitempty"`

	// Deps gives the id of a control whose VariableIds from its
	// last evaluation are returned in Ids.
	Deps string `json:"deps,omitempty" yaml:",omitempty"`

	// EOp is an edit of a control's entities.
	EOp *EOp `json:"eop,omitempty" yaml:",omitempty"`

	Control  *control.Data          `json:"control,omitempty" yaml:",omitempty"`
	Ids      []string               `json:"ids,omitempty" yaml:",omitempty"`
	Analysis *tools.ControlAnalysis `json:"analysis,omitempty" yaml:",omitempty"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

// erred is a utility function to return values to assign to operation
// Error and Err fields.
func erred(err error) (error, string) {
	if err == nil {
		return nil, ""
	}
	return err, err.Error()
}

func (o *SOp) wrapForFirehose(tag string) map[string]*SOp {
	return map[string]*SOp{
		tag: o,
	}
}

func (o *SOp) Do(ctx context.Context, s *Service) error {

	var err error
	if o.Msg != nil {
		err = s.Inject(ctx, o.Msg)
	} else if o.Add != nil {
		err = s.Add(ctx, o.Add)
	} else if o.Rem != "" {
		err = s.Remove(ctx, o.Rem)
	} else if o.Get != "" {
		if c := s.Surface.Get(o.Get); c != nil {
			o.Control = c.Export()
		} else {
			err = fmt.Errorf("%w: %s", control.NotFound, o.Get)
		}
	} else if o.List {
		o.Ids = s.Surface.Ids()
	} else if o.Analyze != "" {
		if c := s.Surface.Get(o.Analyze); c != nil {
			o.Analysis, err = tools.Analyze(c.Export(), s.Surface.Registry)
		} else {
			err = fmt.Errorf("%w: %s", control.NotFound, o.Analyze)
		}
	} else if o.Deps != "" {
		if c := s.Surface.Get(o.Deps); c != nil {
			o.Ids = expression.SortedIds(c.Dependencies())
		} else {
			err = fmt.Errorf("%w: %s", control.NotFound, o.Deps)
		}
	} else if o.EOp != nil {
		err = o.EOp.Do(ctx, s)
	} else {
		err = fmt.Errorf("not implemented: %s", sio.JS(o))
	}

	if err != nil && o.Error == nil {
		o.Error, o.Err = erred(err)
	}

	s.publish(o.wrapForFirehose("op"))

	return o.Error
}

// EOp is an edit of one control.
//
// In normal use, only one edit field should be given.
type EOp struct {
	// ControlId gives the id of the target control.
	ControlId string `json:"controlId"`

	AddEntity *OpAddEntity `json:"addEntity,omitempty" yaml:",omitempty"`

	// RemEntity is the id of the Entity to remove.
	RemEntity string `json:"remEntity,omitempty" yaml:",omitempty"`

	// Enable and Disable give Entity ids.
	Enable  string `json:"enable,omitempty" yaml:",omitempty"`
	Disable string `json:"disable,omitempty" yaml:",omitempty"`

	SetOption *OpSetOption `json:"setOption,omitempty" yaml:",omitempty"`

	// Headline sets the user's label for an Entity.
	Headline *OpSetHeadline `json:"headline,omitempty" yaml:",omitempty"`

	// Duplicate is the id of an Entity to copy.  The copy's id
	// ends up in DuplicateId.
	Duplicate   string `json:"duplicate,omitempty" yaml:",omitempty"`
	DuplicateId string `json:"duplicateId,omitempty" yaml:",omitempty"`

	// Style patches the control's base style.
	Style core.Style `json:"style,omitempty" yaml:",omitempty"`
}

type OpAddEntity struct {
	ParentId string `json:"parentId,omitempty"`
	Group    string `json:"group"`

	// Index is the position in the list.  Nil appends.
	Index *int `json:"index,omitempty"`

	Entity *core.Entity `json:"entity"`

	// Id is the new Entity's id.
	Id string `json:"id,omitempty"`
}

type OpSetOption struct {
	EntityId string      `json:"entityId"`
	Key      string      `json:"key"`
	Value    interface{} `json:"value"`
}

type OpSetHeadline struct {
	EntityId string `json:"entityId"`
	Headline string `json:"headline"`
}

func (o *EOp) Do(ctx context.Context, s *Service) error {
	c := s.Surface.Get(o.ControlId)
	if c == nil {
		return fmt.Errorf("%w: %s", control.NotFound, o.ControlId)
	}

	var err error
	if a := o.AddEntity; a != nil {
		if a.Entity == nil {
			return fmt.Errorf("%w: no entity", core.InvalidEntity)
		}
		index := -1
		if a.Index != nil {
			index = *a.Index
		}
		a.Id, err = c.AddEntity(a.ParentId, a.Group, a.Entity, index)
	} else if o.RemEntity != "" {
		err = c.RemoveEntity(o.RemEntity)
	} else if o.Enable != "" || o.Disable != "" {
		err = c.Edit(func(t *core.Tree) error {
			if o.Enable != "" {
				return t.SetEnabled(o.Enable, true)
			}
			return t.SetEnabled(o.Disable, false)
		})
	} else if so := o.SetOption; so != nil {
		err = c.Edit(func(t *core.Tree) error {
			return t.SetOption(so.EntityId, so.Key, so.Value)
		})
	} else if h := o.Headline; h != nil {
		err = c.Edit(func(t *core.Tree) error {
			return t.SetHeadline(h.EntityId, h.Headline)
		})
	} else if o.Duplicate != "" {
		o.DuplicateId, err = c.DuplicateEntity(o.Duplicate)
	} else if o.Style != nil {
		c.SetStyle(o.Style, false)
	} else {
		return fmt.Errorf("not implemented: %s", sio.JS(o))
	}
	if err != nil {
		return err
	}
	return s.Changed(ctx, o.ControlId)
}
