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

package core

import (
	"fmt"
)

// SetEnabled enables or disables an Entity.  Disabled Entities are
// skipped by evaluation and execution.
func (t *Tree) SetEnabled(id string, enabled bool) error {
	return t.Update(id, func(e *Entity) error {
		e.Disabled = !enabled
		return nil
	})
}

// SetHeadline sets the user's label for an Entity.
func (t *Tree) SetHeadline(id, headline string) error {
	return t.Update(id, func(e *Entity) error {
		e.Headline = headline
		return nil
	})
}

// SetOption sets (or, with a nil value, removes) one option.
//
// A value can be a serialized ExpressionOrValue, which is
// normalized.
func (t *Tree) SetOption(id, key string, value interface{}) error {
	return t.Update(id, func(e *Entity) error {
		if e.Options == nil {
			e.Options = make(Options, 1)
		}
		if value == nil {
			delete(e.Options, key)
			return nil
		}
		e.Options[key] = value
		return e.Options.Normalize()
	})
}

// SetInverted sets IsInverted on a feedback.
func (t *Tree) SetInverted(id string, inverted bool) error {
	return t.Update(id, func(e *Entity) error {
		if e.Type != TypeFeedback {
			return fmt.Errorf("%w: only a feedback can be inverted", InvalidEntity)
		}
		e.IsInverted = inverted
		return nil
	})
}

// SetStyle replaces (replace is true) or merges the given patch into
// the feedback's Style.
func (t *Tree) SetStyle(id string, patch Style, replace bool) error {
	return t.Update(id, func(e *Entity) error {
		if e.Type != TypeFeedback {
			return fmt.Errorf("%w: only a feedback has a style", InvalidEntity)
		}
		if replace || e.Style == nil {
			e.Style = patch.Copy()
			return nil
		}
		e.Style.Merge(patch)
		return nil
	})
}

// Upgrade applies an upgrade function and records the new upgrade
// index, which may not be lower than the current one.
func (t *Tree) Upgrade(id string, index int, f func(*Entity) error) error {
	return t.Update(id, func(e *Entity) error {
		if index < e.UpgradeIndex {
			return UpgradeIndexDecreased
		}
		if f != nil {
			if err := f(e); err != nil {
				return err
			}
		}
		e.UpgradeIndex = index
		return nil
	})
}
