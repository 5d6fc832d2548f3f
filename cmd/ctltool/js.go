/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/Comcast/surface/control"

	"github.com/dop251/goja"
)

// MacroExpander runs Javascript that rewrites controls.
type MacroExpander struct {
	JS *goja.Runtime
}

func (m *MacroExpander) init() error {
	m.JS = goja.New()
	env := make(map[string]interface{})
	m.JS.Set("_", env)

	env["log"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		bs, err := json.Marshal(&x)
		if err != nil {
			return err
		}
		log.Printf("%s\n", bs)

		return x
	}

	return nil
}

func (m *MacroExpander) load(filename, src string) error {
	if _, err := m.JS.RunScript(filename, src); err != nil {
		return err
	}
	return nil
}

// MacroExpand gives the controls (as plain JSON data) to the
// function expand(controls) that the source defines.  The function
// returns the new controls.
func MacroExpand(ds []*control.Data, filename, src string) ([]*control.Data, error) {

	js, err := json.Marshal(&ds)
	if err != nil {
		return nil, err
	}

	m := &MacroExpander{}

	if err := m.init(); err != nil {
		return nil, err
	}

	if err := m.load(filename, src); err != nil {
		return nil, err
	}

	v, err := m.JS.RunString(fmt.Sprintf("JSON.stringify(expand(%s))", js))
	if err != nil {
		return nil, err
	}

	s, is := v.Export().(string)
	if !is {
		return nil, fmt.Errorf("expand returned %T", v.Export())
	}

	var acc []*control.Data
	if err = json.Unmarshal([]byte(s), &acc); err != nil {
		return nil, err
	}
	return acc, nil
}
