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

// Package style composes the results of a control's feedbacks into
// one Style.
package style

import (
	"github.com/Comcast/surface/core"
)

// transient fields only feed image layers.  They are never merged
// into the style itself.
var transient = []string{
	core.StyleImageBuffer,
	core.StyleImageBufferPosition,
	core.StyleImageBufferEncoding,
	core.StyleImageBuffers,
}

// FeedbackStyleBuilder accumulates style patches in feedback
// evaluation order.
type FeedbackStyleBuilder struct {
	style  core.Style
	layers []map[string]interface{}
}

// NewFeedbackStyleBuilder starts with a copy of the base Style.
func NewFeedbackStyleBuilder(base core.Style) *FeedbackStyleBuilder {
	b := &FeedbackStyleBuilder{
		style:  base.Copy(),
		layers: make([]map[string]interface{}, 0, 2),
	}
	if b.style == nil {
		b.style = make(core.Style, 8)
	}
	delete(b.style, core.StyleImageBuffers)
	return b
}

// ApplySimpleStyle shallow-merges the patch.  The last writer of a
// field wins.
func (b *FeedbackStyleBuilder) ApplySimpleStyle(patch core.Style) {
	if patch == nil {
		return
	}
	b.merge(patch)
}

func (b *FeedbackStyleBuilder) merge(patch core.Style) {
	for k, v := range patch {
		b.style[k] = core.CopyValue(v)
	}
	if _, has := patch[core.StyleText]; has {
		// Text and its expression flag change together.
		flag, _ := patch[core.StyleTextExpression].(bool)
		b.style[core.StyleTextExpression] = flag
	}
}

// ApplyComplexStyle merges the value of an advanced feedback.
//
// The transient image fields aren't merged.  Instead, an imageBuffer
// adds a layer, with the imageBufferPosition and imageBufferEncoding
// properties, after the layers from earlier feedbacks.
//
// Values that aren't objects are ignored.
func (b *FeedbackStyleBuilder) ApplyComplexStyle(raw interface{}) {
	var m map[string]interface{}
	switch vv := raw.(type) {
	case core.Style:
		m = vv
	case map[string]interface{}:
		m = vv
	default:
		return
	}

	patch := make(core.Style, len(m))
	for k, v := range m {
		patch[k] = v
	}
	for _, k := range transient {
		delete(patch, k)
	}
	b.merge(patch)

	buf, has := m[core.StyleImageBuffer]
	if !has || buf == nil {
		return
	}
	layer := make(map[string]interface{}, 4)
	spread(layer, m[core.StyleImageBufferPosition])
	spread(layer, m[core.StyleImageBufferEncoding])
	layer[core.LayerBuffer] = core.CopyValue(buf)
	b.layers = append(b.layers, layer)
}

// spread copies the properties of an object (if it is one).
func spread(dst map[string]interface{}, x interface{}) {
	var m map[string]interface{}
	switch vv := x.(type) {
	case map[string]interface{}:
		m = vv
	case core.Style:
		m = vv
	default:
		return
	}
	for k, v := range m {
		dst[k] = core.CopyValue(v)
	}
}

// Style returns a copy of the accumulated Style.  The imageBuffers
// field, if there are any layers, has all of them in order.
func (b *FeedbackStyleBuilder) Style() core.Style {
	acc := b.style.Copy()
	if 0 < len(b.layers) {
		layers := make([]interface{}, len(b.layers))
		for i, l := range b.layers {
			layers[i] = core.CopyValue(l)
		}
		acc[core.StyleImageBuffers] = layers
	}
	return acc
}

// Layers returns the number of image layers.
func (b *FeedbackStyleBuilder) Layers() int {
	return len(b.layers)
}
