package repository

import "errors"

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate resource")
	ErrInvalidInput = errors.New("invalid input data")
	ErrNotEnough    = errors.New("not enough stock available")
	ErrForbidden    = errors.New("not authorized for this resource")
)
