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

// Package storage is the persistence interface for Surfaces.
package storage

import (
	"context"

	"github.com/Comcast/surface/control"
)

// ControlState is a Control as stored in a Storage system.
type ControlState struct {
	*control.Data

	// Deleted indicates that the Control has been removed.
	Deleted bool `json:"-" yaml:"-"`
}

// Storage is a persistence interface that's suitable for Surfaces.
type Storage interface {
	Open(ctx context.Context) error

	Close(ctx context.Context) error

	MakeSurface(ctx context.Context, sid string) error

	RemSurface(ctx context.Context, sid string) error

	// GetSurface returns the stored Controls (if any).
	GetSurface(ctx context.Context, sid string) ([]*control.Data, error)

	// WriteState writes (or deletes) the given Controls.
	WriteState(ctx context.Context, sid string, cs []*ControlState) error
}

// AsControlStates exports the Controls.
func AsControlStates(cs ...*control.Control) []*ControlState {
	acc := make([]*ControlState, 0, len(cs))
	for _, c := range cs {
		acc = append(acc, &ControlState{
			Data: c.Export(),
		})
	}
	return acc
}

// Removed makes the ControlStates that delete the given ids.
func Removed(ids ...string) []*ControlState {
	acc := make([]*ControlState, 0, len(ids))
	for _, id := range ids {
		acc = append(acc, &ControlState{
			Data:    &control.Data{Id: id},
			Deleted: true,
		})
	}
	return acc
}

// Restore loads the stored Controls into the Surface.  Returns the
// number loaded.
func Restore(ctx context.Context, s Storage, sid string, surface *control.Surface) (int, error) {
	ds, err := s.GetSurface(ctx, sid)
	if err != nil {
		return 0, err
	}
	for i, d := range ds {
		if _, err := surface.Load(d); err != nil {
			return i, err
		}
	}
	return len(ds), nil
}
