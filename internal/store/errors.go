package store

import "errors"

var (
	// ErrNoSession is returned by LoadSession when nothing is cached.
	ErrNoSession = errors.New("no cached session")

	// ErrInvalidLimit is returned for a non-positive list limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)
