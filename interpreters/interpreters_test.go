package interpreters

import (
	"context"
	"testing"

	"github.com/Comcast/surface/core"
)

func TestStandard(t *testing.T) {
	is := Standard()
	for _, name := range []string{"goja", "ecmascript", "noop"} {
		if is.Find(name) == nil {
			t.Fatalf("no %s", name)
		}
	}

	noop := &core.CallbackSource{
		Interpreter: "noop",
		Source:      "anything",
	}
	cb, err := noop.Compile(context.Background(), is)
	if err != nil {
		t.Fatal(err)
	}
	x, err := cb.Exec(context.Background(), &core.Invocation{})
	if err != nil {
		t.Fatal(err)
	}
	if x != nil {
		t.Fatal(x)
	}
}
