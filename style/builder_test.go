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

package style

import (
	"bytes"
	"testing"

	"github.com/Comcast/surface/core"
	"github.com/google/go-cmp/cmp"
)

func TestCompositorScenario(t *testing.T) {
	b := NewFeedbackStyleBuilder(core.Style{
		"text":  "A",
		"color": 0x000000,
	})

	b.ApplySimpleStyle(core.Style{"text": "B"})
	want := core.Style{
		"text":           "B",
		"color":          0x000000,
		"textExpression": false,
	}
	if diff := cmp.Diff(want, b.Style()); diff != "" {
		t.Fatal(diff)
	}

	b.ApplyComplexStyle(map[string]interface{}{"imageBuffer": "buf1"})
	want["imageBuffers"] = []interface{}{
		map[string]interface{}{"buffer": "buf1"},
	}
	if diff := cmp.Diff(want, b.Style()); diff != "" {
		t.Fatal(diff)
	}

	b.ApplyComplexStyle(map[string]interface{}{"imageBuffer": "buf2"})
	want["imageBuffers"] = []interface{}{
		map[string]interface{}{"buffer": "buf1"},
		map[string]interface{}{"buffer": "buf2"},
	}
	if diff := cmp.Diff(want, b.Style()); diff != "" {
		t.Fatal(diff)
	}
	if layers := b.Style().ImageBuffers(); len(layers) != 2 || layers[1]["buffer"] != "buf2" {
		t.Fatal(layers)
	}
}

func TestComplexStyleRules(t *testing.T) {
	b := NewFeedbackStyleBuilder(core.Style{
		"text":           "$(a:b)",
		"textExpression": true,
		"size":           "auto",
	})
	b.ApplyComplexStyle(map[string]interface{}{
		"text":                "plain",
		"bgcolor":             255,
		"imageBuffer":         "png",
		"imageBufferPosition": map[string]interface{}{"x": 1, "y": 2},
		"imageBufferEncoding": map[string]interface{}{"pixelFormat": "ARGB"},
	})
	got := b.Style()
	want := core.Style{
		"text":           "plain",
		"textExpression": false,
		"size":           "auto",
		"bgcolor":        255,
		"imageBuffers": []interface{}{
			map[string]interface{}{
				"x":           1,
				"y":           2,
				"pixelFormat": "ARGB",
				"buffer":      "png",
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}

	// A patch without text leaves the flag alone.
	b.ApplyComplexStyle(map[string]interface{}{"color": 1})
	if b.Style()["textExpression"] != false {
		t.Fatal(b.Style())
	}

	// Values that aren't objects are ignored.
	b.ApplyComplexStyle(true)
	if b.Layers() != 1 {
		t.Fatal(b.Layers())
	}
}

func TestCompositorDeterminism(t *testing.T) {
	run := func() []byte {
		b := NewFeedbackStyleBuilder(core.Style{"text": "A", "color": 1})
		b.ApplySimpleStyle(core.Style{"text": "B", "size": 14})
		b.ApplyComplexStyle(map[string]interface{}{
			"imageBuffer":         "one",
			"imageBufferPosition": map[string]interface{}{"x": 0, "y": 0, "width": 72, "height": 72},
		})
		b.ApplySimpleStyle(core.Style{"bgcolor": 65280})
		b.ApplyComplexStyle(map[string]interface{}{"imageBuffer": "two", "alignment": "left:top"})
		js, err := b.Style().JSON()
		if err != nil {
			t.Fatal(err)
		}
		return js
	}
	if x, y := run(), run(); !bytes.Equal(x, y) {
		t.Fatalf("%s != %s", x, y)
	}
}

func TestBaseNotModified(t *testing.T) {
	base := core.Style{"text": "A"}
	b := NewFeedbackStyleBuilder(base)
	b.ApplySimpleStyle(core.Style{"text": "B"})
	if base["text"] != "A" {
		t.Fatal(base)
	}
}
