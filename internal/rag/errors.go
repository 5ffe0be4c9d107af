package rag

import "errors"

var (
	// ErrUpstream wraps embedding or generation provider failures so the
	// error surface stays stable regardless of the configured provider.
	ErrUpstream = errors.New("upstream provider failure")

	// ErrNotAuthorized is returned when a privileged operation is invoked
	// without the caller's admin flag set.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrEmptyQuestion rejects blank input before any expensive work.
	ErrEmptyQuestion = errors.New("question must not be empty")
)
