package tools

import (
	"testing"

	"github.com/Comcast/surface/core"
	"github.com/google/go-cmp/cmp"
)

func TestAnalyze(t *testing.T) {
	d := fixture(t, buttonSrc)

	a, err := Analyze(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	if a.Entities != 6 {
		t.Fatal(a.Entities)
	}
	want := map[core.EntityType]int{
		core.TypeFeedback:      3,
		core.TypeLocalVariable: 1,
		core.TypeAction:        2,
	}
	if diff := cmp.Diff(want, a.Types); diff != "" {
		t.Fatal(diff)
	}
	if a.MaxDepth != 2 || a.Steps != 1 {
		t.Fatal(a.MaxDepth, a.Steps)
	}
	if diff := cmp.Diff([]string{"mixer:mute", "mixer:power"}, a.UnknownDefinitions); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]string{"internal", "mixer"}, a.Connections); diff != "" {
		t.Fatal(diff)
	}
	defs := []string{
		":constant",
		"internal:check_expression",
		"internal:logic_and",
		"internal:wait",
		"mixer:mute",
		"mixer:power",
	}
	if diff := cmp.Diff(defs, a.Definitions); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]string{"mixer:volume"}, a.Variables); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]string{"f3"}, a.Disabled); diff != "" {
		t.Fatal(diff)
	}
	if len(a.DuplicateIds) != 0 || len(a.Errors) != 0 {
		t.Fatal(a.DuplicateIds, a.Errors)
	}
}

func TestAnalyzeProblems(t *testing.T) {
	d := fixture(t, `
id: t1
type: trigger
feedbacks:
  - id: x
    type: action
    connectionId: internal
    definitionId: wait
actions:
  - id: x
    type: action
    connectionId: internal
    definitionId: wait
`)

	a, err := Analyze(d, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"x"}, a.DuplicateIds); diff != "" {
		t.Fatal(diff)
	}
	if len(a.Errors) != 1 {
		t.Fatal(a.Errors)
	}
	// Analysis doesn't change its input.
	if d.Feedbacks[0].Id != "x" {
		t.Fatal(d.Feedbacks[0].Id)
	}
}
