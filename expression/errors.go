package expression

import (
	"errors"
)

var (
	// SyntaxError occurs when source can't be tokenized or parsed.
	SyntaxError = errors.New("syntax error")

	// UnknownFunction occurs when a call names a function that
	// isn't a builtin (or in Env.Functions).
	UnknownFunction = errors.New("unknown function")

	// TypeMismatch occurs when an operator or function gets an
	// operand it can't use.
	TypeMismatch = errors.New("type mismatch")

	// DivisionByZero occurs for x/0 and x%0.
	DivisionByZero = errors.New("division by zero")

	// CyclicLocalVariable occurs when a local variable's
	// expression refers to itself (possibly indirectly).
	CyclicLocalVariable = errors.New("cyclic local variable")

	// UnknownIdentifier occurs when source uses a bare identifier
	// that isn't a literal keyword.
	UnknownIdentifier = errors.New("unknown identifier")
)
