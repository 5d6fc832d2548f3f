// Package noop provides an Interpreter that computes nothing.
package noop

import (
	"context"
	"log"

	"github.com/Comcast/surface/core"
)

// Interpreter is a core.Interpreter whose callbacks always return
// nil, which is an unknown value.
type Interpreter struct {
	// Silent, if true, will suppress warning log messages.
	Silent bool
}

func (i *Interpreter) Compile(ctx context.Context, code interface{}) (interface{}, error) {
	if !i.Silent {
		log.Printf("warning: Using noop Interpreter for compilation")
	}
	return nil, nil
}

func (i *Interpreter) Exec(ctx context.Context, inv *core.Invocation, code interface{}, compiled interface{}) (interface{}, error) {
	if !i.Silent {
		log.Printf("warning: Using noop Interpreter for execution")
	}
	return nil, nil
}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}
