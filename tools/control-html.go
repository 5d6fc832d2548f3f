package tools

import (
	"fmt"
	"html"
	"io"
	"io/ioutil"
	"strings"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/sio"
	"github.com/Comcast/surface/steps"

	md "github.com/russross/blackfriday/v2"
)

// RenderControlHTML writes an HTML fragment that documents the
// Control: its base style and each root list as nested tables.
// Entity headlines are rendered as Markdown.
func RenderControlHTML(d *control.Data, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="control %s">`, d.Type)

	if 0 < len(d.Style) {
		js, err := jsText(d.Style)
		if err != nil {
			return err
		}
		f(`<div class="style"><code>%s</code></div>`, html.EscapeString(js))
	}

	var entity func(e *core.Entity) error
	entity = func(e *core.Entity) error {
		classes := []string{"entity", string(e.Type)}
		if e.Disabled {
			classes = append(classes, "disabled")
		}
		if e.IsInverted {
			classes = append(classes, "inverted")
		}
		f(`<tr class="%s"><td><span id="%s" class="entityKey">%s</span></td><td>`,
			strings.Join(classes, " "), html.EscapeString(e.Id), html.EscapeString(e.Key()))
		if e.Headline != "" {
			f(`<div class="headline doc">%s</div>`, md.Run([]byte(e.Headline)))
		}
		if 0 < len(e.Options) {
			f(`<table class="options">`)
			for _, k := range e.Options.Keys() {
				js, err := jsText(e.Options[k])
				if err != nil {
					return err
				}
				f(`<tr><td>%s</td><td><code>%s</code></td></tr>`,
					html.EscapeString(k), html.EscapeString(js))
			}
			f(`</table>`)
		}
		for _, g := range core.SortedGroups(e.Children) {
			f(`<div class="group"><span class="groupName">%s</span><table>`, html.EscapeString(g))
			for _, c := range e.Children[g] {
				if err := entity(c); err != nil {
					return err
				}
			}
			f(`</table></div>`)
		}
		f(`</td></tr>`)
		return nil
	}

	for _, l := range Lists(d) {
		if len(l.Entities) == 0 {
			continue
		}
		if step, set, ok := steps.ParseRootId(l.Name); ok {
			f(`<div class="list step" data-step="%s" data-set="%s">`, html.EscapeString(step), html.EscapeString(string(set)))
		} else {
			f(`<div class="list">`)
		}
		f(`<h2>%s</h2><table>`, html.EscapeString(l.Name))
		for _, e := range l.Entities {
			if err := entity(e); err != nil {
				return err
			}
		}
		f(`</table></div>`)
	}

	f(`</div>`)

	return nil
}

// RenderControlPage writes a complete HTML page for the Control.
// With includeGraph, the page has a Mermaid rendering of the
// Control's Entities.
func RenderControlPage(d *control.Data, out io.Writer, cssFiles []string, includeGraph bool) error {

	if cssFiles == nil {
		cssFiles = []string{"/static/control-html.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, html.EscapeString(d.Id))

	if includeGraph {
		fmt.Fprintf(out, `
  <script src="https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.min.js"></script>
  <script>mermaid.initialize({startOnLoad:true});</script>
`)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, html.EscapeString(d.Id))

	if includeGraph {
		fmt.Fprintf(out, `<div class="mermaid">`+"\n")
		if err := Mermaid(d, out, nil); err != nil {
			return err
		}
		fmt.Fprintf(out, "</div>\n")
	}

	if err := RenderControlHTML(d, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadAndRenderControlPage reads controls (YAML or JSON) from the
// file and renders a page for each one.
func ReadAndRenderControlPage(filename string, cssFiles []string, out io.Writer, includeGraph bool) error {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	ds, err := sio.ParseControls(bs)
	if err != nil {
		return err
	}
	for _, d := range ds {
		if err = RenderControlPage(d, out, cssFiles, includeGraph); err != nil {
			return err
		}
	}
	return nil
}
