package core

// These errors are user errors, not internal errors.  They are all
// recoverable: the caller should report them and carry on.

import (
	"errors"
)

var (
	// InvalidChildGroup occurs when a list doesn't accept an
	// Entity of the given type (or doesn't exist at all).
	InvalidChildGroup = errors.New("invalid child group")

	// UnknownParent occurs when the parent Entity isn't in the
	// Tree.
	UnknownParent = errors.New("unknown parent")

	// NotFound occurs when an Entity isn't in the Tree.
	NotFound = errors.New("not found")

	// CycleDetected occurs when a move would put an Entity
	// beneath itself.
	CycleDetected = errors.New("cycle detected")

	// IncompatibleFeedbackType occurs when a feedback list doesn't
	// accept the feedback's subtype.
	IncompatibleFeedbackType = errors.New("incompatible feedback type")

	// IdExists occurs when a root list is declared twice or
	// renamed to an id that's in use.
	IdExists = errors.New("id exists")

	// InvalidEntity occurs when an Entity's fields disagree with
	// its type.
	InvalidEntity = errors.New("invalid entity")

	// UpgradeIndexDecreased occurs when an upgrade would lower an
	// Entity's UpgradeIndex.
	UpgradeIndexDecreased = errors.New("upgrade index decreased")
)

// EntityError says which Entity an operation failed on.
type EntityError struct {
	Id  string
	Err error
}

func (e *EntityError) Error() string {
	return `entity "` + e.Id + `": ` + e.Err.Error()
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

func entityErr(id string, err error) error {
	return &EntityError{Id: id, Err: err}
}
