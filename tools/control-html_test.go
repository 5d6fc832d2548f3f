package tools

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderControlHTML(t *testing.T) {
	d := fixture(t, buttonSrc)

	var buf bytes.Buffer
	if err := RenderControlHTML(d, &buf); err != nil {
		t.Fatal(err)
	}
	h := buf.String()
	for _, want := range []string{
		`<div class="control button">`,
		"<em>Loud</em>",
		`class="entity feedback inverted"`,
		`class="entity feedback disabled"`,
		"<h2>steps/0/500</h2>",
		`data-step="0" data-set="500"`,
		"$(mixer:volume) != 0",
	} {
		if !strings.Contains(h, want) {
			t.Fatalf("missing %q in\n%s", want, h)
		}
	}
}

func TestRenderControlPage(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "b1.yaml")
	if err := os.WriteFile(filename, []byte(buttonSrc), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("withoutGraph", func(t *testing.T) {
		out := bytes.NewBuffer(make([]byte, 0, 1024*16))
		if err := ReadAndRenderControlPage(filename, []string{"c.css"}, out, false); err != nil {
			t.Fatal(err)
		}
		h := out.String()
		if !strings.Contains(h, `href="c.css"`) || strings.Contains(h, "mermaid") {
			t.Fatal(h)
		}
	})

	t.Run("withGraph", func(t *testing.T) {
		out := bytes.NewBuffer(make([]byte, 0, 1024*16))
		if err := ReadAndRenderControlPage(filename, nil, out, true); err != nil {
			t.Fatal(err)
		}
		h := out.String()
		if !strings.Contains(h, `<div class="mermaid">`) || !strings.Contains(h, "graph TB") {
			t.Fatal(h)
		}
	})

	t.Run("missing", func(t *testing.T) {
		var out bytes.Buffer
		if err := ReadAndRenderControlPage(filename+".nope", nil, &out, false); err == nil {
			t.Fatal("expected an error")
		}
	})
}
