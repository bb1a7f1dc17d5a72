package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrWrongStep is returned when an operation is not legal in the current step.
var ErrWrongStep = errors.New("operation not allowed in current step")

// ErrNotReady is returned when the selection is not sufficient to advance.
var ErrNotReady = errors.New("datasource selection is not ready")

// ErrNoDatasource is returned when an operation requires an active datasource.
var ErrNoDatasource = errors.New("no datasource selected")

// ErrUnknownDatasource is returned when a node id does not match any datasource option.
var ErrUnknownDatasource = errors.New("unknown datasource")

// ErrValidation is returned when processing inputs fail validation.
var ErrValidation = errors.New("validation failed")

// ErrStaleResponse is reported when an async result belongs to a datasource that is no longer active.
var ErrStaleResponse = errors.New("stale response")

// ErrAlreadyDispatched is returned when a session has already handed its run off.
var ErrAlreadyDispatched = errors.New("session already dispatched")
