// Package errorspkg provides common app errors.
package errorspkg

import "errors"

var (
	// ErrInternal indicates internal server error.
	ErrInternal = errors.New("internal")
	// ErrStorageFailure indicates that the persistence layer failed to read or write.
	ErrStorageFailure = errors.New("storage failure")
)
