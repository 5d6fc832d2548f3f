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
	"sort"
	"strconv"
	"time"
)

// ActionSetId names an action set within a Step.  It's one of the
// fixed ids or a hold threshold in milliseconds.
type ActionSetId string

const (
	Down        ActionSetId = "down"
	Up          ActionSetId = "up"
	RotateLeft  ActionSetId = "rotate_left"
	RotateRight ActionSetId = "rotate_right"
)

// FixedSets are the sets every Step has.
var FixedSets = []ActionSetId{Down, Up, RotateLeft, RotateRight}

// HoldSet makes the ActionSetId for a hold threshold.
func HoldSet(ms int) ActionSetId {
	return ActionSetId(strconv.Itoa(ms))
}

// Threshold returns the hold threshold in milliseconds.  The second
// value is false if the id isn't a threshold.
//
// Only the canonical decimal spelling is a threshold, so that no two
// ids share one.  "01000" and "+1000" aren't thresholds.
func (id ActionSetId) Threshold() (int, bool) {
	n, err := strconv.Atoi(string(id))
	if err != nil || n < 0 || strconv.Itoa(n) != string(id) {
		return 0, false
	}
	return n, true
}

// IsHold reports whether the id is a hold threshold.
func (id ActionSetId) IsHold() bool {
	_, is := id.Threshold()
	return is
}

// Duration is the hold threshold as a time.Duration.
func (id ActionSetId) Duration() time.Duration {
	n, _ := id.Threshold()
	return time.Duration(n) * time.Millisecond
}

// Valid reports whether the id is fixed or a threshold.
func (id ActionSetId) Valid() bool {
	for _, f := range FixedSets {
		if id == f {
			return true
		}
	}
	return id.IsHold()
}

func rank(id ActionSetId) int {
	for i, f := range FixedSets {
		if id == f {
			return i
		}
	}
	return len(FixedSets)
}

// Less orders the fixed sets first (down, up, rotate_left,
// rotate_right) and then the thresholds in ascending order.
func Less(a, b ActionSetId) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	x, _ := a.Threshold()
	y, _ := b.Threshold()
	if x != y {
		return x < y
	}
	return a < b
}

// SortActionSetIds sorts in place per Less.
func SortActionSetIds(ids []ActionSetId) {
	sort.Slice(ids, func(i, j int) bool {
		return Less(ids[i], ids[j])
	})
}
