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

// Package expression implements a small, side-effect-free formula
// language over named variables.
//
// The syntax is ECMAScript-flavored: numbers, strings, template
// literals, arrays, objects, the usual operators, the ternary
// operator, and calls to builtin functions.  A variable reference
// looks like
//
//	$(scope:name)
//
// and is recognized by a lexer Hook (VariableHook) before the
// general tokenizer sees the input.  A reference is a primary
// expression, so $(a:b).c[0] works.
//
// Evaluation never returns a Go error.  Instead, a Result says
// whether evaluation succeeded, and its VariableIds report every
// reference the source contains (and any reference resolved
// dynamically), whether evaluation succeeded or not.  A variable
// that isn't in the table is Unknown, which renders as "$NA".
//
// The grammar has no loops or definitions, and parse depth is
// bounded by MaxDepth, so every evaluation terminates.
package expression
