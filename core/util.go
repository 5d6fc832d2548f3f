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

package core

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// NewId makes a new Entity id.
//
// Variable so tests can get deterministic ids.
var NewId = func() string {
	return uuid.NewString()
}

// SortedGroups returns the child group ids in a stable order.
func SortedGroups(m map[string][]*Entity) []string {
	acc := make([]string, 0, len(m))
	for g := range m {
		acc = append(acc, g)
	}
	sort.Strings(acc)
	return acc
}

// Canonicalize round-trips the value through JSON so that numbers are
// float64s, structs are maps, etc.
func Canonicalize(x interface{}) (interface{}, error) {
	var err error

	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}
	var y interface{}
	if err = json.Unmarshal(js, &y); err != nil {
		return nil, err
	}

	return y, nil
}

// Timestamp returns a string representing the current time in
// RFC3339Nano.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
