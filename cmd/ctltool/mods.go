package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/sio"
	"github.com/Comcast/surface/tools"
)

var Mods = map[string]Mod{
	"analyze": &Analyzer{},
	"graph":   &Grapher{},
	"html":    &Pager{},
	"rename":  &Renamer{},
	"eval":    &Evaluator{},
}

// Mod is a subcommand that works on controls.
type Mod interface {
	F(ds []*control.Data, out io.Writer) error
	Doc() string
	Flags() *flag.FlagSet
}

func ModNames() []string {
	acc := make([]string, 0, len(Mods))
	for name := range Mods {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// load makes a Surface with the controls.
func load(ds []*control.Data) (*control.Surface, error) {
	s := control.NewSurface(nil, nil)
	for _, d := range ds {
		if _, err := s.Load(d); err != nil {
			return nil, fmt.Errorf("%s: %w", d.Id, err)
		}
	}
	return s, nil
}

type Analyzer struct {
}

func (m *Analyzer) F(ds []*control.Data, out io.Writer) error {
	as := make([]*tools.ControlAnalysis, 0, len(ds))
	for _, d := range ds {
		a, err := tools.Analyze(d, nil)
		if err != nil {
			return err
		}
		as = append(as, a)
	}
	js, err := json.MarshalIndent(&as, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", js)
	return nil
}

func (m *Analyzer) Doc() string {
	return "Report entity counts, references, and problems"
}

func (m *Analyzer) Flags() *flag.FlagSet {
	return flag.NewFlagSet("analyze", flag.ContinueOnError)
}

type Grapher struct {
	OutputFilename string
	Opts           tools.MermaidOpts
}

func (m *Grapher) F(ds []*control.Data, out io.Writer) error {
	if m.OutputFilename != "" && m.OutputFilename != "-" {
		f, err := os.Create(m.OutputFilename)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	for _, d := range ds {
		if err := tools.Mermaid(d, out, &m.Opts); err != nil {
			return err
		}
	}
	return nil
}

func (m *Grapher) Doc() string {
	return "Write a Mermaid graph of each control"
}

func (m *Grapher) Flags() *flag.FlagSet {
	m.Opts = tools.DefaultMermaidOpts
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	fs.StringVar(&m.OutputFilename, "o", "-", "output filename")
	fs.BoolVar(&m.Opts.ShowOptions, "options", m.Opts.ShowOptions, "show entity options")
	fs.BoolVar(&m.Opts.EmptyLists, "empty", m.Opts.EmptyLists, "show empty lists")
	return fs
}

type Pager struct {
	CSS   string
	Graph bool
}

func (m *Pager) F(ds []*control.Data, out io.Writer) error {
	var css []string
	if m.CSS != "" {
		css = []string{m.CSS}
	}
	for _, d := range ds {
		if err := tools.RenderControlPage(d, out, css, m.Graph); err != nil {
			return err
		}
	}
	return nil
}

func (m *Pager) Doc() string {
	return "Write an HTML page for each control"
}

func (m *Pager) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("html", flag.ContinueOnError)
	fs.StringVar(&m.CSS, "css", "", "CSS file URL")
	fs.BoolVar(&m.Graph, "g", true, "include a graph")
	return fs
}

type Renamer struct {
	From, To string
}

func (m *Renamer) F(ds []*control.Data, out io.Writer) error {
	if m.From == "" || m.To == "" {
		return fmt.Errorf("need -from and -to")
	}
	s, err := load(ds)
	if err != nil {
		return err
	}
	n := s.RenameConnection(m.From, m.To)
	fmt.Fprintf(os.Stderr, "%d substitutions\n", n)

	acc := make([]*control.Data, 0, len(ds))
	for _, c := range s.Controls() {
		acc = append(acc, c.Export())
	}
	bs, err := AsYAML(acc)
	if err != nil {
		return err
	}
	_, err = out.Write(bs)
	return err
}

func (m *Renamer) Doc() string {
	return "Rename a connection label in every control"
}

func (m *Renamer) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("rename", flag.ContinueOnError)
	fs.StringVar(&m.From, "from", "", "old connection label")
	fs.StringVar(&m.To, "to", "", "new connection label")
	return fs
}

type Evaluator struct {
	VarsJS string
}

func (m *Evaluator) F(ds []*control.Data, out io.Writer) error {
	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(m.VarsJS), &vars); err != nil {
		return fmt.Errorf("bad -vars: %w", err)
	}
	s, err := load(ds)
	if err != nil {
		return err
	}
	ctx := context.Background()
	e, err := sio.NewEngine(ctx, nil, s, nil)
	if err != nil {
		return err
	}
	msg := &sio.Msg{
		Variables: vars,
		Evaluate:  "*",
	}
	if err = e.ProcessMsg(ctx, msg); err != nil {
		return err
	}
	for _, r := range e.Flush(ctx) {
		js, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", js)
	}
	return nil
}

func (m *Evaluator) Doc() string {
	return "Evaluate every control with the given variables"
}

func (m *Evaluator) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	fs.StringVar(&m.VarsJS, "vars", "{}", `variables as JSON (e.g. '{"mixer:volume":7}')`)
	return fs
}
