package domain

import (
	"errors"
	"fmt"
)

// LoadError means the document could not be reached or decoded. The reading view
// reacts by switching to fallback mode; it is never fatal to the session.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load document %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PageError means a single page failed; the page is retried on its next request.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// SyncError means a progress write to the backend failed. It is terminal for
// that attempt only.
type SyncError struct {
	UserBookID int
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync progress for user book %d: %v", e.UserBookID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// StorageError means durable client storage could not be read or written.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AccessError means the surface geometry is not readable from here (the surface
// lives behind a process or origin boundary). Expected; routes to the next signal.
type AccessError struct {
	Surface string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("surface %s geometry is not accessible", e.Surface)
}

func IsAccessError(err error) bool {
	var accessErr *AccessError
	return errors.As(err, &accessErr)
}
