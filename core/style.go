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

package core

import (
	"encoding/json"
)

// Style field names with special meaning.
const (
	StyleText                = "text"
	StyleTextExpression      = "textExpression"
	StyleSize                = "size"
	StyleAlignment           = "alignment"
	StyleColor               = "color"
	StyleBgColor             = "bgcolor"
	StyleImageBuffer         = "imageBuffer"
	StyleImageBufferPosition = "imageBufferPosition"
	StyleImageBufferEncoding = "imageBufferEncoding"
	StyleImageBuffers        = "imageBuffers"

	// LayerBuffer is the property of an image layer that holds
	// the buffer itself.
	LayerBuffer = "buffer"
)

// Style is a (partial) visual description of a button.
//
// A Style is a plain map so that a partial Style can serve as a
// patch: a field that's absent isn't changed by a merge.
type Style map[string]interface{}

// Copy makes a deep copy of the Style.
func (s Style) Copy() Style {
	if s == nil {
		return nil
	}
	acc := make(Style, len(s))
	for k, v := range s {
		acc[k] = CopyValue(v)
	}
	return acc
}

// Merge shallow-merges the given patch over this Style.
//
// The receiver is modified.
func (s Style) Merge(patch Style) Style {
	for k, v := range patch {
		s[k] = CopyValue(v)
	}
	return s
}

// Text returns the text field (if it's a string).
func (s Style) Text() (string, bool) {
	t, is := s[StyleText].(string)
	return t, is
}

// TextExpression reports whether the text field should be evaluated
// as an expression.
func (s Style) TextExpression() bool {
	b, _ := s[StyleTextExpression].(bool)
	return b
}

// ImageBuffers returns the image layers (if any).
func (s Style) ImageBuffers() []map[string]interface{} {
	switch vv := s[StyleImageBuffers].(type) {
	case []map[string]interface{}:
		return vv
	case []interface{}:
		acc := make([]map[string]interface{}, 0, len(vv))
		for _, x := range vv {
			if m, is := x.(map[string]interface{}); is {
				acc = append(acc, m)
			}
		}
		return acc
	}
	return nil
}

// JSON renders the Style canonically (map keys sorted).
func (s Style) JSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(s))
}
