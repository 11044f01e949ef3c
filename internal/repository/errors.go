package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate entity")

	// ErrInvalidReference is returned when a write points at a row that does not exist.
	ErrInvalidReference = errors.New("referenced entity does not exist")

	// ErrOutOfRange is returned when a numeric value does not fit its column.
	ErrOutOfRange = errors.New("numeric value out of range")
)
