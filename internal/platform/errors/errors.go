package apperrors

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrNotMounted      = errors.New("reading view is not mounted")
	ErrAlreadyMounted  = errors.New("reading view is already mounted")
	ErrUnknownUserBook = errors.New("user book is not known")
)
