/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

// Package core provides the data model for control-surface rules:
// the Entities (actions, feedbacks, and local variables) attached to
// buttons and triggers.
//
// The primary type is Tree, which holds the Entities of a single
// control in an arena.  Each Entity lives in exactly one list: either
// a named root list that the control declares (for example
// "feedbacks" or "localVariables") or a named child group of another
// Entity.  A Tree never contains a cycle.
//
// An Entity's option values are either literals or
// ExpressionOrValue wrappers.  When an ExpressionOrValue says that it
// is an expression, its value is the source of a formula that package
// expression knows how to evaluate.
//
// Which feedbacks a list accepts depends on the list's declared
// FeedbackListType and on the feedback's Definition, which comes from
// a Registry.  See Accepts.
//
// A Tree is not safe for concurrent use.  Package control wraps a
// Tree with the locking that a control requires.
package core
