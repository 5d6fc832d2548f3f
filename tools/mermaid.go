/* Copyright 2018 Comcast Cable Communications Management, LLC
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

package tools

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
)

type MermaidOpts struct {
	// ShowOptions will add the JSON representation of each
	// entity's options to its label.
	ShowOptions bool `json:"showOptions"`

	// ListFill is the fill color for root list nodes.
	ListFill string `json:"listFill,omitempty"`

	// DisabledFill is the fill color for disabled entities.
	DisabledFill string `json:"disabledFill,omitempty"`

	// EmptyLists includes root lists that have no entities.
	EmptyLists bool `json:"emptyLists,omitempty"`
}

// DefaultMermaidOpts are used when Mermaid is given nil options.
var DefaultMermaidOpts = MermaidOpts{
	ShowOptions:  true,
	ListFill:     "#bcf2db",
	DisabledFill: "#dddddd",
}

// mermaidText makes a string safe for a quoted Mermaid label.
func mermaidText(s string) string {
	return strings.Replace(s, `"`, `'`, -1)
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given control's entity tree.
func Mermaid(d *control.Data, out io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		o := DefaultMermaidOpts
		opts = &o
	}

	w := bufio.NewWriter(out)

	fmt.Fprintf(w, "graph TB\n")
	fmt.Fprintf(w, "  c0((\"%s %s\"))\n", mermaidText(d.Id), d.Type)

	num := 0
	nid := func() string {
		num++
		return fmt.Sprintf("n%d", num)
	}

	var entity func(parent, label string, e *core.Entity) error
	entity = func(parent, label string, e *core.Entity) error {
		id := nid()
		text := e.Key()
		if e.Headline != "" {
			text = e.Headline + "<br/>" + text
		}
		if e.IsInverted {
			text = "NOT " + text
		}
		if opts.ShowOptions && 0 < len(e.Options) {
			js, err := jsText(e.Options)
			if err != nil {
				return err
			}
			text += "<br/><code>" + js + "</code>"
		}
		fmt.Fprintf(w, "  %s[\"%s\"]\n", id, mermaidText(text))
		if e.Disabled && opts.DisabledFill != "" {
			fmt.Fprintf(w, "  style %s fill:%s\n", id, opts.DisabledFill)
		}
		fmt.Fprintf(w, "  %s -- \"%s\" --> %s\n", parent, mermaidText(label), id)

		for _, g := range core.SortedGroups(e.Children) {
			for i, c := range e.Children[g] {
				if err := entity(id, fmt.Sprintf("%s %d", g, i), c); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, l := range Lists(d) {
		if len(l.Entities) == 0 && !opts.EmptyLists {
			continue
		}
		lid := nid()
		fmt.Fprintf(w, "  %s(\"%s\")\n", lid, mermaidText(l.Name))
		if opts.ListFill != "" {
			fmt.Fprintf(w, "  style %s fill:%s\n", lid, opts.ListFill)
		}
		fmt.Fprintf(w, "  c0 --> %s\n", lid)
		for i, e := range l.Entities {
			if err := entity(lid, fmt.Sprintf("%d", i), e); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(w, "\n")
	return w.Flush()
}
