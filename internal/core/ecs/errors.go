package ecs

import "errors"

// Usage errors indicate a caller bug and are returned immediately; nothing is
// mutated when one is returned.
var (
	ErrDeadEntity     = errors.New("ecs: entity is not alive")
	ErrSelfParent     = errors.New("ecs: entity cannot be its own parent")
	ErrHierarchyCycle = errors.New("ecs: parent assignment would create a cycle")
	ErrNoMatch        = errors.New("ecs: no entity matches")
	ErrMultipleMatch  = errors.New("ecs: more than one entity matches")
)
