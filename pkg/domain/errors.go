package domain

import "errors"

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrNotPending is returned when Resume is called on a run that is not awaiting approval.
var ErrNotPending = errors.New("run is not awaiting approval")

// ErrRunFinished is returned when an operation requires an active run.
var ErrRunFinished = errors.New("run already finished")

// ErrNotCompleted is returned when Continue is called on a run that has not completed.
var ErrNotCompleted = errors.New("run has not completed")

// ErrEmptyOutput is returned when a decision node produces nothing twice in a row.
var ErrEmptyOutput = errors.New("decision node produced an empty output twice")

// ErrCapabilityNotAllowed is returned when a decision node requests a capability outside its allow-list.
var ErrCapabilityNotAllowed = errors.New("capability not allowed")

// ErrServiceUnavailable marks failures that cannot be fixed by the decision node
// (authentication, connectivity). Effects wrap it to make the run fail.
var ErrServiceUnavailable = errors.New("service unavailable")

// ErrScheduledWithoutCalendar is returned when an observation tries to set the
// scheduled flag without coming from a calendar effect.
var ErrScheduledWithoutCalendar = errors.New("scheduled can only be set by a calendar observation")

// ErrStepLimit is returned when a run exceeds the configured number of node executions.
var ErrStepLimit = errors.New("step limit exceeded")

// ErrRunExists is returned when starting a run with an ID that is already stored.
var ErrRunExists = errors.New("run already exists")
