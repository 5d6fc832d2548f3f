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

package expression

// Node is an element of a parsed expression.
type Node interface {
	node()
}

type (
	// Literal is a number (float64), string, bool, nil, or
	// Unknown.
	Literal struct {
		Value interface{}
	}

	// VarRef is a $(scope:name) reference.
	VarRef struct {
		Scope, Name string
	}

	// Ident is a bare identifier, which is only legal as the
	// name of a called function.
	Ident struct {
		Name string
	}

	Unary struct {
		Op string
		X  Node
	}

	// Binary includes the short-circuiting operators &&, ||, and
	// ??.
	Binary struct {
		Op   string
		L, R Node
	}

	Cond struct {
		Test, Then, Else Node
	}

	// Member is x.prop or x[prop].
	Member struct {
		X    Node
		Prop Node
	}

	Call struct {
		Fn   string
		Args []Node
	}

	ArrayLit struct {
		Elems []Node
	}

	ObjectLit struct {
		Keys   []string
		Values []Node
	}

	// TemplateLit has one more string part than it has
	// expressions.
	TemplateLit struct {
		Parts []string
		Exprs []Node
	}
)

func (*Literal) node()     {}
func (*VarRef) node()      {}
func (*Ident) node()       {}
func (*Unary) node()       {}
func (*Binary) node()      {}
func (*Cond) node()        {}
func (*Member) node()      {}
func (*Call) node()        {}
func (*ArrayLit) node()    {}
func (*ObjectLit) node()   {}
func (*TemplateLit) node() {}

// Walk calls f on every Node in pre-order.
func Walk(n Node, f func(Node)) {
	if n == nil {
		return
	}
	f(n)
	switch x := n.(type) {
	case *Unary:
		Walk(x.X, f)
	case *Binary:
		Walk(x.L, f)
		Walk(x.R, f)
	case *Cond:
		Walk(x.Test, f)
		Walk(x.Then, f)
		Walk(x.Else, f)
	case *Member:
		Walk(x.X, f)
		Walk(x.Prop, f)
	case *Call:
		for _, a := range x.Args {
			Walk(a, f)
		}
	case *ArrayLit:
		for _, e := range x.Elems {
			Walk(e, f)
		}
	case *ObjectLit:
		for _, v := range x.Values {
			Walk(v, f)
		}
	case *TemplateLit:
		for _, e := range x.Exprs {
			Walk(e, f)
		}
	}
}
