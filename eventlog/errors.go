package eventlog

import "errors"

var (
	// ErrNotFound indicates the requested event id is not in the log.
	ErrNotFound = errors.New("eventlog: event not found")

	// ErrSessionExists is returned when a new session would overwrite an
	// existing session directory.
	ErrSessionExists = errors.New("eventlog: session directory already exists")

	// ErrSessionMissing is returned when resuming a session whose directory
	// does not exist.
	ErrSessionMissing = errors.New("eventlog: session directory not found")

	// ErrForwardReference is returned when an appended event cites an id
	// that has not been committed yet.
	ErrForwardReference = errors.New("eventlog: reference to uncommitted event")

	// ErrReadOnly is returned when a write is attempted on a store opened
	// read-only.
	ErrReadOnly = errors.New("eventlog: store is read-only")
)
