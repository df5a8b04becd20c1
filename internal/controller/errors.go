// internal/controller/errors.go
package controller

import "errors"

var (
	// ErrNotInitialized is returned when the link is used before Initialize
	ErrNotInitialized = errors.New("controller not initialized")

	// ErrIncompleteWrite is returned when the port accepted fewer bytes than sent
	ErrIncompleteWrite = errors.New("incomplete write")
)
