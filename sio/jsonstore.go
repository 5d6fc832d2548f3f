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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/Comcast/surface/control"

	"github.com/jsccast/yaml"
)

// JSONStore is a primitive facility to store a Surface's controls as
// JSON in a file.
//
// Not glamorous or efficient.
type JSONStore struct {
	// StateOutputFilename, if not empty, will be the filename
	// for writing state as JSON.
	StateOutputFilename string

	// StateInputFilename optionally gives a filename that
	// contains controls (JSON or YAML) to return when Read is
	// called.
	StateInputFilename string

	// Surface, if not nil, is what WriteState writes.
	Surface *control.Surface

	// Last has the most recent Result for each control.
	Last map[string]*Result

	WG sync.WaitGroup

	mu sync.Mutex
}

// NewJSONStore makes a JSONStore that writes the given Surface.
func NewJSONStore(s *control.Surface, out string) *JSONStore {
	return &JSONStore{
		StateOutputFilename: out,
		Surface:             s,
	}
}

// Start does nothing.
func (s *JSONStore) Start(ctx context.Context) error {
	return nil
}

// Stop writes out the state if requested by StateOutputFilename.
//
// This function first waits for s.WG if told to.
func (s *JSONStore) Stop(ctx context.Context, wait bool) error {
	if wait {
		s.WG.Wait()
	}
	return s.WriteState(ctx)
}

// Read reads s.StateInputFilename, which should contain a JSON or
// YAML representation of the controls.
func (s *JSONStore) Read(ctx context.Context) ([]*control.Data, error) {
	if s.StateInputFilename == "" {
		return nil, nil
	}
	bs, err := os.ReadFile(s.StateInputFilename)
	if err != nil {
		return nil, err
	}
	return ParseControls(bs)
}

// WriteState writes all of the Surface's controls as JSON.
func (s *JSONStore) WriteState(ctx context.Context) error {
	if s.Surface == nil || s.StateOutputFilename == "" {
		return nil
	}
	cs := s.Surface.Controls()
	ds := make([]*control.Data, len(cs))
	for i, c := range cs {
		ds[i] = c.Export()
	}
	js, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.StateOutputFilename, js, 0644)
}

// Update remembers the Result.
func (s *JSONStore) Update(r *Result) error {
	if r.ControlId == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Last == nil {
		s.Last = make(map[string]*Result)
	}
	s.Last[r.ControlId] = r
	return nil
}

// ParseControls reads controls from JSON or YAML.  The input can be
// a single control or an array of them.
func ParseControls(bs []byte) ([]*control.Data, error) {
	bs = bytes.TrimSpace(bs)
	if len(bs) == 0 {
		return nil, nil
	}

	var js []byte
	switch bs[0] {
	case '{', '[':
		js = bs
	default:
		// The YAML decoder gives maps with string keys, which
		// we can then render as JSON.
		var x interface{}
		if err := yaml.Unmarshal(bs, &x); err != nil {
			return nil, err
		}
		var err error
		if js, err = json.Marshal(&x); err != nil {
			return nil, err
		}
	}

	js = bytes.TrimSpace(js)
	if 0 < len(js) && js[0] == '{' {
		var d control.Data
		if err := json.Unmarshal(js, &d); err != nil {
			return nil, err
		}
		return []*control.Data{&d}, nil
	}

	var ds []*control.Data
	if err := json.Unmarshal(js, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}
