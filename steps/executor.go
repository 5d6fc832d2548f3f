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

package steps

import (
	"context"
	"log"
	"time"

	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/expression"
)

// DelayOption is the action option that holds a delay in
// milliseconds relative to the previous action.
var DelayOption = "delay"

// Executor runs the actions of an action set.
//
// Execute should return promptly when the context is done.
type Executor interface {
	Execute(ctx context.Context, actions []*core.Entity) error
}

// SequentialExecutor runs actions one at a time, in order, waiting
// for each action's relative delay first.  Disabled actions are
// skipped.  Cancelling the context stops the remaining delays.
type SequentialExecutor struct {
	// Run performs a single action.
	Run func(ctx context.Context, action *core.Entity) error

	Debug bool
}

func (x *SequentialExecutor) Execute(ctx context.Context, actions []*core.Entity) error {
	for _, a := range actions {
		if a.Disabled {
			continue
		}
		if d := Delay(a); 0 < d {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				x.logf("SequentialExecutor stopped before %s", a.Id)
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if x.Run == nil {
			continue
		}
		if err := x.Run(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (x *SequentialExecutor) logf(format string, args ...interface{}) {
	if x.Debug {
		log.Printf(format, args...)
	}
}

// Delay returns an action's delay option (if any).
func Delay(a *core.Entity) time.Duration {
	v, have := a.Options[DelayOption]
	if !have {
		return 0
	}
	if x, is := core.AsExpressionOrValue(v); is {
		if x.IsExpression {
			return 0
		}
		v = x.Value
	}
	ms, ok := expression.ToNumber(v)
	if !ok || ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
