package sio

import (
	"context"
	"strings"
	"testing"
)

func TestShellExpand(t *testing.T) {
	ctx := context.Background()
	got, err := ShellExpand(ctx, `{"variables":{"a:b":<<echo 42>>,"a:c":"<<printf x>>"}}`)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"variables":{"a:b":42,"a:c":"x"}}`; got != want {
		t.Fatal(got)
	}

	if got, err = ShellExpand(ctx, "no commands"); err != nil || got != "no commands" {
		t.Fatal(got, err)
	}

	if _, err = ShellExpand(ctx, "<<exit 3>>"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestJShort(t *testing.T) {
	m := &Msg{Evaluate: strings.Repeat("b", 100)}
	s := jshort(m)
	if len(s) != 73 || !strings.HasSuffix(s, "...") {
		t.Fatal(s)
	}
	if s = jshort(nil); s != "null" {
		t.Fatal(s)
	}
}
